// Package sprint drives the sprint state machine: active -> completed,
// by explicit command or once the end date has passed.
package sprint

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
)

var (
	// ErrAlreadyCompleted is returned by Complete for a sprint that is not active.
	ErrAlreadyCompleted = errors.New("sprint already completed")
	ErrNoActiveSprint   = errors.New("no active sprint")
)

// Manager owns sprint transitions for all projects.
type Manager struct {
	projects *repo.ProjectRepo
	sprints  *repo.SprintRepo
	tasks    *repo.TaskRepo
	logger   *slog.Logger
	retry    docstore.RetryPolicy
	now      func() time.Time
}

func NewManager(projects *repo.ProjectRepo, sprints *repo.SprintRepo, tasks *repo.TaskRepo, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		projects: projects,
		sprints:  sprints,
		tasks:    tasks,
		logger:   logger,
		retry:    docstore.DefaultRetryPolicy(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithRetry sets the backoff used for the completion write.
func (m *Manager) WithRetry(p docstore.RetryPolicy) *Manager {
	m.retry = p
	return m
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Start completes any active sprint of the project and then creates a new
// active sprint running durationDays from now.
func (m *Manager) Start(ctx context.Context, projectID, name string, durationDays int) (domain.Sprint, error) {
	if durationDays < 1 {
		return domain.Sprint{}, fmt.Errorf("%w: sprint duration must be at least one day", domain.ErrInvalid)
	}
	now := m.now()
	next := domain.Sprint{
		ProjectID: projectID,
		Name:      strings.TrimSpace(name),
		StartDate: now,
		EndDate:   now.AddDate(0, 0, durationDays),
		Status:    domain.SprintActive,
	}
	// The running sprint is only closed once the new one is known to be valid.
	if err := next.Validate(); err != nil {
		return domain.Sprint{}, err
	}
	project, err := m.projects.Get(ctx, projectID)
	if err != nil {
		return domain.Sprint{}, err
	}
	active, err := m.sprints.ListActive(ctx, projectID)
	if err != nil {
		return domain.Sprint{}, err
	}
	for _, s := range active {
		if _, err := m.complete(ctx, project, s); err != nil {
			return domain.Sprint{}, fmt.Errorf("complete previous sprint %s: %w", s.ID, err)
		}
	}
	created, err := m.sprints.Create(ctx, next)
	if err != nil {
		return domain.Sprint{}, err
	}
	m.logger.Info("sprint started", slog.String("project_id", projectID), slog.String("sprint_id", created.ID), slog.Time("end_date", created.EndDate))
	winner, err := m.enforceSingleActive(ctx, project)
	if err != nil {
		return created, err
	}
	if winner.ID != created.ID {
		// A concurrent start won; ours has been completed.
		return m.sprints.Get(ctx, projectID, created.ID)
	}
	return created, nil
}

// enforceSingleActive keeps the newest active sprint, ordered by start date
// then id, and completes the rest. Concurrent starters converge on the
// same survivor.
func (m *Manager) enforceSingleActive(ctx context.Context, project domain.Project) (domain.Sprint, error) {
	active, err := m.sprints.ListActive(ctx, project.ID)
	if err != nil {
		return domain.Sprint{}, err
	}
	if len(active) == 0 {
		return domain.Sprint{}, ErrNoActiveSprint
	}
	for _, s := range active[1:] {
		if _, err := m.complete(ctx, project, s); err != nil {
			return active[0], err
		}
	}
	return active[0], nil
}

// Complete ends an active sprint on request.
func (m *Manager) Complete(ctx context.Context, projectID, sprintID string) (domain.Sprint, error) {
	project, err := m.projects.Get(ctx, projectID)
	if err != nil {
		return domain.Sprint{}, err
	}
	s, err := m.sprints.Get(ctx, projectID, sprintID)
	if err != nil {
		return domain.Sprint{}, err
	}
	applied, err := m.complete(ctx, project, s)
	if err != nil {
		return domain.Sprint{}, err
	}
	if !applied {
		return s, ErrAlreadyCompleted
	}
	return m.sprints.Get(ctx, projectID, sprintID)
}

// CheckExpiry completes the sprint when now is past its end date. The write
// is conditioned on the sprint still being active, so repeated calls after
// completion write nothing.
func (m *Manager) CheckExpiry(ctx context.Context, projectID string, s domain.Sprint) (bool, error) {
	if !s.Expired(m.now()) {
		return false, nil
	}
	project, err := m.projects.Get(ctx, projectID)
	if err != nil {
		return false, err
	}
	applied, err := m.complete(ctx, project, s)
	if err != nil {
		return false, err
	}
	if applied {
		m.logger.Info("sprint expired", slog.String("project_id", projectID), slog.String("sprint_id", s.ID), slog.Time("end_date", s.EndDate))
	}
	return applied, nil
}

// Active returns the project's active sprint, or nil when there is none.
func (m *Manager) Active(ctx context.Context, projectID string) (*domain.Sprint, error) {
	active, err := m.sprints.ListActive(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, nil
	}
	s := active[0]
	return &s, nil
}

// CheckActive runs CheckExpiry against whatever sprint is currently active.
func (m *Manager) CheckActive(ctx context.Context, projectID string) (bool, error) {
	s, err := m.Active(ctx, projectID)
	if err != nil || s == nil {
		return false, err
	}
	return m.CheckExpiry(ctx, projectID, *s)
}

// Status is the active sprint with its countdown.
type Status struct {
	Sprint    *domain.Sprint `json:"sprint"`
	Remaining string         `json:"remaining"`
}

func (m *Manager) Status(ctx context.Context, projectID string) (Status, error) {
	s, err := m.Active(ctx, projectID)
	if err != nil {
		return Status{}, err
	}
	if s == nil {
		return Status{}, ErrNoActiveSprint
	}
	return Status{Sprint: s, Remaining: Countdown(s.EndDate, m.now())}, nil
}

// RunExpiry checks the active sprint immediately and then on every tick
// until ctx is done.
func (m *Manager) RunExpiry(ctx context.Context, projectID string, interval time.Duration) {
	check := func() {
		if _, err := m.CheckActive(ctx, projectID); err != nil && ctx.Err() == nil {
			m.logger.Warn("sprint expiry check failed", slog.String("project_id", projectID), slog.String("error", err.Error()))
		}
	}
	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

// complete performs the conditional transition and, when it applied,
// returns the sprint's unfinished tasks to the backlog.
func (m *Manager) complete(ctx context.Context, project domain.Project, s domain.Sprint) (bool, error) {
	applied, err := docstore.RetryValue(ctx, m.retry, func() (bool, error) {
		return m.sprints.Complete(ctx, project.ID, s.ID, m.now())
	})
	if err != nil || !applied {
		return applied, err
	}
	return true, m.returnUnfinished(ctx, project, s.ID)
}

func (m *Manager) returnUnfinished(ctx context.Context, project domain.Project, sprintID string) error {
	tasks, err := m.tasks.ListSprint(ctx, project.ID, sprintID)
	if err != nil {
		return err
	}
	done := project.DoneColumn()
	var errs []error
	for _, t := range tasks {
		if t.Status == done {
			continue
		}
		_, err := m.tasks.Update(ctx, project.ID, t.ID, docstore.Patch{
			"target":    domain.TargetBacklog,
			"sprint_id": nil,
		})
		if err != nil {
			m.logger.Warn("unfinished task not returned to backlog", slog.String("task_id", t.ID), slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
