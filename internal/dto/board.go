package dto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

// DueAt parses due_date from JSON as either date-only ("2006-01-02") or RFC3339.
// Date-only is stored as start of that day in UTC.
type DueAt struct{ t *time.Time }

func (d *DueAt) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		d.t = nil
		return nil
	}
	s := strings.TrimSpace(*raw)
	if parsed, err := time.Parse("2006-01-02", s); err == nil {
		parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		d.t = &parsed
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			parsed = parsed.UTC()
			d.t = &parsed
			return nil
		}
	}
	return fmt.Errorf("due_date: use date (YYYY-MM-DD) or RFC3339 datetime")
}

// Ptr returns *time.Time for use in service/domain.
func (d DueAt) Ptr() *time.Time { return d.t }

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateProjectRequest struct {
	Name    string          `json:"name" binding:"required,min=1,max=120"`
	Color   string          `json:"color" binding:"max=32"`
	Columns []domain.Column `json:"columns"`
	Members []string        `json:"members"`
}

type ColumnLimitRequest struct {
	WIPLimit *int `json:"wip_limit" binding:"required"`
}

type CreateEpicRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=120"`
	Color string `json:"color" binding:"max=32"`
}

type CreateTaskRequest struct {
	Title       string                 `json:"title" binding:"required,min=1,max=200"`
	Description string                 `json:"description" binding:"max=10000"`
	Type        domain.TaskType        `json:"type"`
	Status      string                 `json:"status"`
	Priority    domain.Priority        `json:"priority"`
	Points      int                    `json:"points" binding:"min=0"`
	EpicID      *string                `json:"epic_id"`
	Sprint      bool                   `json:"sprint"` // true: attach to the active sprint
	Assignees   []string               `json:"assignees"`
	Checklist   []domain.ChecklistItem `json:"checklist"`
	Attachments []domain.Attachment    `json:"attachments"`
	DueDate     DueAt                  `json:"due_date"`
}

// UpdateTaskRequest is a partial edit. Location fields are changed through
// the move endpoint instead.
type UpdateTaskRequest struct {
	Title        *string                 `json:"title" binding:"omitempty,min=1,max=200"`
	Description  *string                 `json:"description" binding:"omitempty,max=10000"`
	Type         *domain.TaskType        `json:"type"`
	Priority     *domain.Priority        `json:"priority"`
	Points       *int                    `json:"points" binding:"omitempty,min=0"`
	EpicID       *string                 `json:"epic_id"`
	ClearEpic    bool                    `json:"clear_epic"`
	Assignees    *[]string               `json:"assignees"`
	Checklist    *[]domain.ChecklistItem `json:"checklist"`
	Attachments  *[]domain.Attachment    `json:"attachments"`
	DueDate      *DueAt                  `json:"due_date"`
	ClearDueDate bool                    `json:"clear_due_date"`
}

// MoveRequest names a column, a bucket ("backlog" or "sprint"), or both.
type MoveRequest struct {
	Column string        `json:"column"`
	Bucket domain.Target `json:"bucket"`
}

type CommentRequest struct {
	Message  string   `json:"message" binding:"required,min=1,max=4000"`
	Mentions []string `json:"mentions"`
}

type StartSprintRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=120"`
	DurationDays int    `json:"duration_days" binding:"required,min=1,max=365"`
}

type ListTasksResponse struct {
	Items []domain.Task `json:"items"`
}

type ListNotificationsResponse struct {
	Items []domain.Notification `json:"items"`
}

type UnreadCountResponse struct {
	Unread int `json:"unread"`
}

type FanoutResponse struct {
	Delivered []string `json:"delivered"`
	Failed    []string `json:"failed"`
}
