package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalid is wrapped by every schema validation failure.
	ErrInvalid = errors.New("invalid entity")
	// ErrConflict is wrapped by commands rejected because of current board state.
	ErrConflict = errors.New("conflict")
)

type TaskType string

const (
	TaskFeature TaskType = "feature"
	TaskBug     TaskType = "bug"
	TaskChore   TaskType = "task"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Target is the board bucket a task lives in.
type Target string

const (
	TargetBacklog Target = "backlog"
	TargetSprint  Target = "sprint"
)

// StatusDone is the column id that marks a task finished.
const StatusDone = "done"

type ChecklistItem struct {
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type Attachment struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Locator string `json:"locator"`
}

// Task is a card on the board. Field names in json tags are the document
// field names used by store queries.
type Task struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"project_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        TaskType        `json:"type"`
	Status      string          `json:"status"`
	Priority    Priority        `json:"priority"`
	Points      int             `json:"points"`
	EpicID      *string         `json:"epic_id"`
	SprintID    *string         `json:"sprint_id"`
	Target      Target          `json:"target"`
	Assignees   []string        `json:"assignees"`
	Checklist   []ChecklistItem `json:"checklist"`
	Attachments []Attachment    `json:"attachments"`
	DueDate     *time.Time      `json:"due_date"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Watches reports whether identity is one of the task's assignees.
func (t Task) Watches(identity string) bool {
	for _, a := range t.Assignees {
		if a == identity {
			return true
		}
	}
	return false
}

// Validate checks the fields that do not need other entities to verify.
// Status membership and sprint existence are checked by the store adapter.
func (t Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("%w: task title is required", ErrInvalid)
	}
	switch t.Type {
	case TaskFeature, TaskBug, TaskChore:
	default:
		return fmt.Errorf("%w: unknown task type %q", ErrInvalid, t.Type)
	}
	switch t.Priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrInvalid, t.Priority)
	}
	if t.Points < 0 {
		return fmt.Errorf("%w: points must not be negative", ErrInvalid)
	}
	if t.Status == "" {
		return fmt.Errorf("%w: task status is required", ErrInvalid)
	}
	switch t.Target {
	case TargetSprint:
		if t.SprintID == nil || *t.SprintID == "" {
			return fmt.Errorf("%w: sprint target requires a sprint reference", ErrInvalid)
		}
	case TargetBacklog:
		if t.SprintID != nil {
			return fmt.Errorf("%w: backlog task must not reference a sprint", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown target %q", ErrInvalid, t.Target)
	}
	for i, item := range t.Checklist {
		if strings.TrimSpace(item.Title) == "" {
			return fmt.Errorf("%w: checklist item %d has no title", ErrInvalid, i)
		}
	}
	for i, a := range t.Attachments {
		if a.Name == "" || a.Locator == "" {
			return fmt.Errorf("%w: attachment %d needs a name and locator", ErrInvalid, i)
		}
	}
	return nil
}

// Normalize fills defaults for optional enum fields.
func (t *Task) Normalize() {
	t.Title = strings.TrimSpace(t.Title)
	t.Description = strings.TrimSpace(t.Description)
	if t.Type == "" {
		t.Type = TaskChore
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Target == "" {
		t.Target = TargetBacklog
	}
	if t.Assignees == nil {
		t.Assignees = []string{}
	}
	if t.Checklist == nil {
		t.Checklist = []ChecklistItem{}
	}
	if t.Attachments == nil {
		t.Attachments = []Attachment{}
	}
	if t.DueDate != nil {
		d := t.DueDate.UTC()
		t.DueDate = &d
	}
}
