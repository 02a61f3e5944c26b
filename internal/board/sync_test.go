package board

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
)

type client struct {
	projects *repo.ProjectRepo
	sprints  *repo.SprintRepo
	tasks    *repo.TaskRepo
	sync     *Synchronizer
}

// newClient builds repos over a shared backend and notifier, the way two
// server instances would see the same database.
func newClient(backend docstore.Backend, notifier docstore.Notifier) client {
	store := docstore.New(backend, notifier, nil)
	projects := repo.NewProjectRepo(store)
	sprints := repo.NewSprintRepo(store)
	tasks := repo.NewTaskRepo(store, projects, sprints, repo.NewEpicRepo(store))
	return client{
		projects: projects,
		sprints:  sprints,
		tasks:    tasks,
		sync:     NewSynchronizer(store, projects, sprints, tasks, nil),
	}
}

func waitFor(t *testing.T, live *Live, what string, pred func(View) bool) View {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-live.Views():
			if !ok {
				t.Fatalf("%s: views closed (err=%v)", what, live.Err())
			}
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		}
	}
}

func ids(ts []domain.Task) map[string]bool {
	out := make(map[string]bool, len(ts))
	for _, t := range ts {
		out[t.ID] = true
	}
	return out
}

func TestLiveBoardFollowsRemoteWrites(t *testing.T) {
	ctx := context.Background()
	backend := docstore.NewMemory()
	notifier := docstore.NewLocalNotifier()
	viewer := newClient(backend, notifier)
	writer := newClient(backend, notifier)

	p, err := writer.projects.Create(ctx, domain.Project{Name: "Nexo"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	task, err := writer.tasks.Create(ctx, domain.Task{ProjectID: p.ID, Title: "Login"})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	live, err := viewer.sync.Open(ctx, p.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer live.Close()

	v := waitFor(t, live, "initial load", func(v View) bool { return !v.Loading })
	if v.ActiveSprint != nil || len(v.Sprint) != 0 || !ids(v.Backlog)[task.ID] {
		t.Fatalf("unexpected initial view %+v", v)
	}
	if len(v.Columns) != len(p.Columns) {
		t.Fatalf("expected %d columns, got %d", len(p.Columns), len(v.Columns))
	}

	now := time.Now().UTC()
	s, err := writer.sprints.Create(ctx, domain.Sprint{
		ProjectID: p.ID, Name: "S1", StartDate: now, EndDate: now.Add(time.Hour), Status: domain.SprintActive,
	})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	if _, err := writer.tasks.Update(ctx, p.ID, task.ID, docstore.Patch{"target": domain.TargetSprint, "sprint_id": s.ID}); err != nil {
		t.Fatalf("move to sprint: %v", err)
	}

	v = waitFor(t, live, "task in sprint view", func(v View) bool {
		return !v.Loading && v.ActiveSprint != nil && ids(v.Sprint)[task.ID] && !ids(v.Backlog)[task.ID]
	})
	if v.ActiveSprint.ID != s.ID || v.Columns[0].Count != 1 {
		t.Fatalf("unexpected sprint view %+v", v)
	}

	if _, err := writer.tasks.Update(ctx, p.ID, task.ID, docstore.Patch{"status": "review"}); err != nil {
		t.Fatalf("status change: %v", err)
	}
	waitFor(t, live, "column change", func(v View) bool {
		for _, c := range v.Columns {
			if c.Column.ID == "review" && c.Count == 1 {
				return true
			}
		}
		return false
	})
}

func TestLiveBoardResubscribesOnSprintChange(t *testing.T) {
	ctx := context.Background()
	c := newClient(docstore.NewMemory(), nil)
	p, err := c.projects.Create(ctx, domain.Project{Name: "Nexo"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	now := time.Now().UTC()
	first, err := c.sprints.Create(ctx, domain.Sprint{
		ProjectID: p.ID, Name: "S1", StartDate: now, EndDate: now.Add(time.Hour), Status: domain.SprintActive,
	})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	if _, err := c.tasks.Create(ctx, domain.Task{ProjectID: p.ID, Title: "old", Target: domain.TargetSprint, SprintID: &first.ID}); err != nil {
		t.Fatalf("create task: %v", err)
	}

	live, err := c.sync.Open(ctx, p.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer live.Close()
	waitFor(t, live, "first sprint", func(v View) bool { return !v.Loading && len(v.Sprint) == 1 })

	if _, err := c.sprints.Complete(ctx, p.ID, first.ID, now); err != nil {
		t.Fatalf("complete: %v", err)
	}
	second, err := c.sprints.Create(ctx, domain.Sprint{
		ProjectID: p.ID, Name: "S2", StartDate: now.Add(time.Minute), EndDate: now.Add(2 * time.Hour), Status: domain.SprintActive,
	})
	if err != nil {
		t.Fatalf("create sprint: %v", err)
	}
	v := waitFor(t, live, "second sprint", func(v View) bool {
		return !v.Loading && v.ActiveSprint != nil && v.ActiveSprint.ID == second.ID
	})
	if len(v.Sprint) != 0 {
		t.Errorf("expected empty view for the new sprint, got %d tasks", len(v.Sprint))
	}
}

func TestOpenUnknownProject(t *testing.T) {
	c := newClient(docstore.NewMemory(), nil)
	if _, err := c.sync.Open(context.Background(), "missing"); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCloseEndsViews(t *testing.T) {
	ctx := context.Background()
	c := newClient(docstore.NewMemory(), nil)
	p, err := c.projects.Create(ctx, domain.Project{Name: "Nexo"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	live, err := c.sync.Open(ctx, p.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	live.Close()
	for range live.Views() {
	}
	if live.Err() != nil {
		t.Errorf("expected clean close, got %v", live.Err())
	}
}
