package domain

import (
	"fmt"
	"strings"
	"time"
)

type SprintStatus string

const (
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
)

// Sprint moves active -> completed exactly once and is never reactivated.
type Sprint struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	Name        string       `json:"name"`
	StartDate   time.Time    `json:"start_date"`
	EndDate     time.Time    `json:"end_date"`
	Status      SprintStatus `json:"status"`
	CompletedAt *time.Time   `json:"completed_at"`
}

func (s Sprint) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: sprint name is required", ErrInvalid)
	}
	if !s.EndDate.After(s.StartDate) {
		return fmt.Errorf("%w: sprint must end after it starts", ErrInvalid)
	}
	switch s.Status {
	case SprintActive, SprintCompleted:
	default:
		return fmt.Errorf("%w: unknown sprint status %q", ErrInvalid, s.Status)
	}
	return nil
}

// Expired reports whether an active sprint has passed its end date.
func (s Sprint) Expired(now time.Time) bool {
	return s.Status == SprintActive && now.After(s.EndDate)
}

// Epic is a label grouping tasks.
type Epic struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Status    string `json:"status"`
}

func (e Epic) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return fmt.Errorf("%w: epic name is required", ErrInvalid)
	}
	return nil
}
