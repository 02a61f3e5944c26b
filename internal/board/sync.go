// Package board keeps a project's sprint and backlog views current by
// draining live queries and re-deriving the whole view on every emission.
package board

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/policy"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
)

// View is one full snapshot of a project board.
type View struct {
	ProjectID    string              `json:"project_id"`
	ActiveSprint *domain.Sprint      `json:"active_sprint"`
	Sprint       []domain.Task       `json:"sprint"`
	Backlog      []domain.Task       `json:"backlog"`
	Columns      []policy.ColumnLoad `json:"columns"`
	Loading      bool                `json:"loading"`
}

type Synchronizer struct {
	store    *docstore.Store
	projects *repo.ProjectRepo
	sprints  *repo.SprintRepo
	tasks    *repo.TaskRepo
	logger   *slog.Logger
}

func NewSynchronizer(store *docstore.Store, projects *repo.ProjectRepo, sprints *repo.SprintRepo, tasks *repo.TaskRepo, logger *slog.Logger) *Synchronizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{store: store, projects: projects, sprints: sprints, tasks: tasks, logger: logger}
}

// Open subscribes to the project's board. Every call builds fresh
// subscriptions; nothing is shared between Lives.
func (s *Synchronizer) Open(ctx context.Context, projectID string) (*Live, error) {
	if _, err := s.projects.Get(ctx, projectID); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	l := &Live{
		views:  make(chan View, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	subs := make([]*docstore.Subscription, 0, 3)
	for _, q := range []docstore.Query{
		s.projects.Query(projectID),
		s.sprints.ActiveQuery(projectID),
		s.tasks.BacklogQuery(projectID),
	} {
		sub, err := s.store.Subscribe(ctx, q)
		if err != nil {
			for _, open := range subs {
				open.Close()
			}
			cancel()
			return nil, fmt.Errorf("subscribe board: %w", err)
		}
		subs = append(subs, sub)
	}
	go l.run(ctx, s, projectID, subs[0], subs[1], subs[2])
	return l, nil
}

// Live is an open board. Views carries the latest snapshot; a slow reader
// skips intermediate ones.
type Live struct {
	views  chan View
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Views is closed when the board is closed or a subscription fails.
func (l *Live) Views() <-chan View { return l.views }

// Close tears down every subscription and waits for them to stop.
func (l *Live) Close() {
	l.cancel()
	<-l.done
}

func (l *Live) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Live) fail(err error) {
	l.mu.Lock()
	l.err = err
	l.mu.Unlock()
}

type state struct {
	project       *domain.Project
	activeKnown   bool
	active        *domain.Sprint
	sprint        []domain.Task
	sprintLoaded  bool
	backlog       []domain.Task
	backlogLoaded bool
}

func (st *state) view(projectID string) View {
	v := View{
		ProjectID:    projectID,
		ActiveSprint: st.active,
		Sprint:       nonNil(st.sprint),
		Backlog:      nonNil(st.backlog),
		Columns:      []policy.ColumnLoad{},
		Loading:      st.project == nil || !st.activeKnown || !st.sprintLoaded || !st.backlogLoaded,
	}
	if st.project != nil {
		v.Columns = policy.Evaluate(st.project.Columns, v.Sprint)
	}
	return v
}

func (l *Live) run(ctx context.Context, s *Synchronizer, projectID string, projectSub, activeSub, backlogSub *docstore.Subscription) {
	var sprintSub *docstore.Subscription
	var sprintC <-chan []docstore.Document
	defer close(l.done)
	defer close(l.views)
	defer func() {
		projectSub.Close()
		activeSub.Close()
		backlogSub.Close()
		if sprintSub != nil {
			sprintSub.Close()
		}
	}()

	log := s.logger.With(slog.String("project_id", projectID))
	ended := func(sub *docstore.Subscription) {
		if ctx.Err() != nil {
			return
		}
		err := sub.Err()
		if err == nil {
			err = fmt.Errorf("board subscription ended")
		}
		log.Error("board subscription failed", slog.String("error", err.Error()))
		l.fail(err)
	}

	st := &state{}
	for {
		select {
		case <-ctx.Done():
			return

		case docs, ok := <-projectSub.C():
			if !ok {
				ended(projectSub)
				return
			}
			if len(docs) == 0 {
				l.fail(fmt.Errorf("project %s: %w", projectID, docstore.ErrNotFound))
				return
			}
			p, err := repo.DecodeProject(docs[0])
			if err != nil {
				log.Warn("project document rejected", slog.String("error", err.Error()))
				continue
			}
			st.project = &p

		case docs, ok := <-activeSub.C():
			if !ok {
				ended(activeSub)
				return
			}
			sprints, err := repo.DecodeSprints(docs)
			if err != nil {
				log.Warn("sprint document rejected", slog.String("error", err.Error()))
				continue
			}
			var next *domain.Sprint
			if len(sprints) > 0 {
				next = &sprints[0]
			}
			st.activeKnown = true
			if sameSprint(st.active, next) {
				st.active = next
				break
			}
			// Active sprint changed: drop the old sprint query and its view.
			if sprintSub != nil {
				sprintSub.Close()
				sprintSub, sprintC = nil, nil
			}
			st.active, st.sprint = next, nil
			st.sprintLoaded = next == nil
			if next != nil {
				sub, err := s.store.Subscribe(ctx, s.tasks.SprintQuery(projectID, next.ID))
				if err != nil {
					if ctx.Err() == nil {
						log.Error("sprint subscription failed", slog.String("error", err.Error()))
						l.fail(err)
					}
					return
				}
				sprintSub, sprintC = sub, sub.C()
			}

		case docs, ok := <-sprintC:
			if !ok {
				ended(sprintSub)
				return
			}
			st.sprint = decodeTasks(log, docs)
			st.sprintLoaded = true

		case docs, ok := <-backlogSub.C():
			if !ok {
				ended(backlogSub)
				return
			}
			st.backlog = decodeTasks(log, docs)
			st.backlogLoaded = true
		}
		l.emit(st.view(projectID))
	}
}

func (l *Live) emit(v View) {
	for {
		select {
		case l.views <- v:
			return
		default:
		}
		select {
		case <-l.views:
		default:
		}
	}
}

func sameSprint(a, b *domain.Sprint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

// decodeTasks drops documents that fail schema validation.
func decodeTasks(log *slog.Logger, docs []docstore.Document) []domain.Task {
	out := make([]domain.Task, 0, len(docs))
	for _, d := range docs {
		t, err := repo.DecodeTask(d)
		if err != nil {
			log.Warn("task document rejected", slog.String("path", d.Path()), slog.String("error", err.Error()))
			continue
		}
		out = append(out, t)
	}
	return out
}

func nonNil(ts []domain.Task) []domain.Task {
	if ts == nil {
		return []domain.Task{}
	}
	return ts
}
