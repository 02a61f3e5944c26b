// Package move relocates tasks between the backlog, the active sprint and
// Kanban columns with one partial update per gesture.
//
// The mover never holds board state: the caller may show the new location
// optimistically, and the next live board emission is authoritative.
package move

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/notify"
	"github.com/LucasSckenal/nexo-sub000/internal/policy"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
)

var (
	ErrNoActiveSprint = fmt.Errorf("%w: project has no active sprint", domain.ErrConflict)
	ErrUnknownColumn  = policy.ErrUnknownColumn
	ErrInvalidTarget  = fmt.Errorf("%w: move target", domain.ErrInvalid)
)

// Notifier receives column changes. *notify.Service implements it.
type Notifier interface {
	StatusChanged(ctx context.Context, actor domain.Identity, task domain.Task, from, to string) notify.Report
}

// Location is where a task sits or should go: a column, a bucket, or both.
type Location struct {
	Column string        `json:"column,omitempty"`
	Bucket domain.Target `json:"bucket,omitempty"`
}

// IsZero reports whether the location names nothing.
func (l Location) IsZero() bool { return l.Column == "" && l.Bucket == "" }

// Warning flags a column that is over its WIP limit after a move.
type Warning struct {
	Column string `json:"column"`
	Count  int    `json:"count"`
	Limit  int    `json:"limit"`
}

type Result struct {
	Task    domain.Task    `json:"task"`
	From    Location       `json:"from"`
	To      Location       `json:"to"`
	Changed bool           `json:"changed"`
	WIP     *Warning       `json:"wip_warning,omitempty"`
	Report  *notify.Report `json:"-"`
}

type Mover struct {
	projects *repo.ProjectRepo
	sprints  *repo.SprintRepo
	tasks    *repo.TaskRepo
	notifier Notifier
	logger   *slog.Logger
}

// NewMover creates a Mover. A nil notifier disables fan-out.
func NewMover(projects *repo.ProjectRepo, sprints *repo.SprintRepo, tasks *repo.TaskRepo, n Notifier, logger *slog.Logger) *Mover {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mover{projects: projects, sprints: sprints, tasks: tasks, notifier: n, logger: logger}
}

// Gesture is a drag in flight: the task and its source captured when the
// drag started.
type Gesture struct {
	ProjectID string
	TaskID    string
	From      Location
	actor     domain.Identity
	mover     *Mover
}

// Begin captures the task's current location.
func (m *Mover) Begin(ctx context.Context, actor domain.Identity, projectID, taskID string) (*Gesture, error) {
	t, err := m.tasks.Get(ctx, projectID, taskID)
	if err != nil {
		return nil, err
	}
	return &Gesture{
		ProjectID: projectID,
		TaskID:    taskID,
		From:      Location{Column: t.Status, Bucket: t.Target},
		actor:     actor,
		mover:     m,
	}, nil
}

// Release persists the move. Validation failures write nothing. A failed
// write is logged and returned; it is not retried.
func (g *Gesture) Release(ctx context.Context, to Location) (Result, error) {
	return g.mover.release(ctx, g, to)
}

func (m *Mover) MoveToColumn(ctx context.Context, actor domain.Identity, projectID, taskID, column string) (Result, error) {
	return m.move(ctx, actor, projectID, taskID, Location{Column: column})
}

func (m *Mover) MoveToBacklog(ctx context.Context, actor domain.Identity, projectID, taskID string) (Result, error) {
	return m.move(ctx, actor, projectID, taskID, Location{Bucket: domain.TargetBacklog})
}

func (m *Mover) MoveToSprint(ctx context.Context, actor domain.Identity, projectID, taskID string) (Result, error) {
	return m.move(ctx, actor, projectID, taskID, Location{Bucket: domain.TargetSprint})
}

// Move is a gesture started and released in one call.
func (m *Mover) Move(ctx context.Context, actor domain.Identity, projectID, taskID string, to Location) (Result, error) {
	return m.move(ctx, actor, projectID, taskID, to)
}

func (m *Mover) move(ctx context.Context, actor domain.Identity, projectID, taskID string, to Location) (Result, error) {
	g, err := m.Begin(ctx, actor, projectID, taskID)
	if err != nil {
		return Result{}, err
	}
	return g.Release(ctx, to)
}

func (m *Mover) release(ctx context.Context, g *Gesture, to Location) (Result, error) {
	if to.IsZero() {
		return Result{}, fmt.Errorf("%w: destination is empty", ErrInvalidTarget)
	}
	project, err := m.projects.Get(ctx, g.ProjectID)
	if err != nil {
		return Result{}, err
	}
	current, err := m.tasks.Get(ctx, g.ProjectID, g.TaskID)
	if err != nil {
		return Result{}, err
	}
	patch, err := m.plan(ctx, project, current, to)
	if err != nil {
		return Result{}, err
	}
	res := Result{Task: current, From: g.From, To: to}
	if len(patch) == 0 {
		return res, nil
	}

	updated, err := m.tasks.Update(ctx, g.ProjectID, g.TaskID, patch)
	if err != nil {
		m.logger.Warn("move not persisted",
			slog.String("project_id", g.ProjectID),
			slog.String("task_id", g.TaskID),
			slog.String("error", err.Error()))
		return Result{}, err
	}
	res.Task, res.Changed = updated, true

	if _, statusChanged := patch["status"]; statusChanged {
		res.WIP = m.wipWarning(ctx, project, updated)
		if m.notifier != nil {
			rep := m.notifier.StatusChanged(ctx, g.actor, updated, current.Status, updated.Status)
			res.Report = &rep
		}
	}
	return res, nil
}

// plan validates the destination and builds the smallest patch that
// reaches it. An empty patch means the task is already there.
func (m *Mover) plan(ctx context.Context, project domain.Project, t domain.Task, to Location) (docstore.Patch, error) {
	patch := docstore.Patch{}
	if to.Column != "" {
		if _, ok := project.Column(to.Column); !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownColumn, to.Column)
		}
		if to.Column != t.Status {
			patch["status"] = to.Column
		}
	}
	switch to.Bucket {
	case "":
	case domain.TargetBacklog:
		if t.Target != domain.TargetBacklog || t.SprintID != nil {
			patch["target"] = domain.TargetBacklog
			patch["sprint_id"] = nil
		}
	case domain.TargetSprint:
		active, err := m.sprints.ListActive(ctx, project.ID)
		if err != nil {
			return nil, err
		}
		if len(active) == 0 {
			return nil, ErrNoActiveSprint
		}
		id := active[0].ID
		if t.Target != domain.TargetSprint || t.SprintID == nil || *t.SprintID != id {
			patch["target"] = domain.TargetSprint
			patch["sprint_id"] = id
		}
	default:
		return nil, fmt.Errorf("%w: unknown bucket %q", ErrInvalidTarget, to.Bucket)
	}
	return patch, nil
}

func (m *Mover) wipWarning(ctx context.Context, project domain.Project, t domain.Task) *Warning {
	if t.Target != domain.TargetSprint || t.SprintID == nil {
		return nil
	}
	col, ok := project.Column(t.Status)
	if !ok || col.WIPLimit == 0 {
		return nil
	}
	count, err := m.tasks.CountInColumn(ctx, project.ID, *t.SprintID, col.ID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			m.logger.Warn("WIP count failed", slog.String("column", col.ID), slog.String("error", err.Error()))
		}
		return nil
	}
	if !policy.IsOverLimit(col, count) {
		return nil
	}
	return &Warning{Column: col.ID, Count: count, Limit: col.WIPLimit}
}
