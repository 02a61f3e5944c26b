// Package notify writes per-recipient notifications for board events and
// serves each recipient's inbox.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/LucasSckenal/nexo-sub000/internal/cache"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

// Store persists notifications. *repo.NotificationRepo implements it.
type Store interface {
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)
	ListForRecipient(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, recipient, id string) error
	MarkAllRead(ctx context.Context, recipient string) (int, error)
}

// Event is one board occurrence to fan out.
type Event struct {
	Type      domain.NotificationType
	Actor     domain.Identity
	Title     string
	Message   string
	TaskID    string
	ProjectID string
}

// Report lists per-recipient outcomes of one fan-out.
type Report struct {
	Delivered []string
	Failed    map[string]error
}

// OK is true when every write succeeded.
func (r Report) OK() bool { return len(r.Failed) == 0 }

// Recipients returns watchers minus the actor, deduplicated, order kept.
func Recipients(watchers []string, actor string) []string {
	seen := make(map[string]struct{}, len(watchers))
	out := make([]string, 0, len(watchers))
	for _, w := range watchers {
		if w == "" || w == actor {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Service is the fan-out side: independent writes, one per recipient.
type Service struct {
	store  Store
	cache  *cache.NotificationCache
	logger *slog.Logger
	limit  int
	now    func() time.Time
}

// NewService creates a Service. If c is nil, inbox caching is disabled.
func NewService(store Store, c *cache.NotificationCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		cache:  c,
		logger: logger,
		limit:  8,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithConcurrency bounds parallel writes per fan-out.
func (s *Service) WithConcurrency(n int) *Service {
	if n > 0 {
		s.limit = n
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Notify writes one notification per recipient. A failed write is logged
// and reported but never stops the others.
func (s *Service) Notify(ctx context.Context, recipients []string, ev Event) Report {
	rep := Report{Delivered: []string{}, Failed: map[string]error{}}
	if len(recipients) == 0 {
		return rep
	}
	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.limit)
	created := s.now()
	for _, r := range recipients {
		r := r
		g.Go(func() error {
			_, err := s.store.Create(ctx, domain.Notification{
				Recipient: r,
				Actor:     ev.Actor.DisplayName,
				Title:     ev.Title,
				Message:   ev.Message,
				Type:      ev.Type,
				TaskID:    ev.TaskID,
				ProjectID: ev.ProjectID,
				CreatedAt: created,
			})
			if err != nil {
				s.logger.Warn("notification not delivered",
					slog.String("recipient", r),
					slog.String("type", string(ev.Type)),
					slog.String("task_id", ev.TaskID),
					slog.String("error", err.Error()))
				mu.Lock()
				rep.Failed[r] = err
				mu.Unlock()
				return nil
			}
			s.invalidate(ctx, r)
			mu.Lock()
			rep.Delivered = append(rep.Delivered, r)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Strings(rep.Delivered)
	return rep
}

func (s *Service) invalidate(ctx context.Context, recipient string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, recipient); err != nil {
		s.logger.Warn("inbox cache not invalidated", slog.String("recipient", recipient), slog.String("error", err.Error()))
	}
}

// StatusChanged notifies the task's watchers, except the actor, that the
// task moved between columns.
func (s *Service) StatusChanged(ctx context.Context, actor domain.Identity, task domain.Task, from, to string) Report {
	return s.Notify(ctx, Recipients(task.Assignees, actor.ID), Event{
		Type:      domain.NotifyStatus,
		Actor:     actor,
		Title:     "Task moved",
		Message:   fmt.Sprintf("%s moved %q from %s to %s", actor.DisplayName, task.Title, from, to),
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
	})
}

// Assigned notifies identities that appear in task.Assignees but not in
// previous. The actor is skipped.
func (s *Service) Assigned(ctx context.Context, actor domain.Identity, task domain.Task, previous []string) Report {
	had := make(map[string]struct{}, len(previous))
	for _, p := range previous {
		had[p] = struct{}{}
	}
	var added []string
	for _, a := range task.Assignees {
		if _, ok := had[a]; !ok {
			added = append(added, a)
		}
	}
	return s.Notify(ctx, Recipients(added, actor.ID), Event{
		Type:      domain.NotifyAssignment,
		Actor:     actor,
		Title:     "Assigned to you",
		Message:   fmt.Sprintf("%s assigned you to %q", actor.DisplayName, task.Title),
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
	})
}

// Mentioned notifies the mentioned identities about a comment on the task.
func (s *Service) Mentioned(ctx context.Context, actor domain.Identity, task domain.Task, mentioned []string, message string) Report {
	return s.Notify(ctx, Recipients(mentioned, actor.ID), Event{
		Type:      domain.NotifyMention,
		Actor:     actor,
		Title:     fmt.Sprintf("%s mentioned you", actor.DisplayName),
		Message:   message,
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
	})
}
