// Package policy evaluates per-column work-in-progress limits.
//
// Limits are advisory: callers use the result to warn, never to reject a move.
package policy

import (
	"context"
	"fmt"

	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
)

// ColumnLoad is one Kanban column with the tasks currently in it.
type ColumnLoad struct {
	Column    domain.Column `json:"column"`
	Tasks     []domain.Task `json:"tasks"`
	Count     int           `json:"count"`
	OverLimit bool          `json:"over_limit"`
}

// IsOverLimit is true when a limited column holds more tasks than allowed.
// A zero limit means unlimited.
func IsOverLimit(col domain.Column, count int) bool {
	return col.WIPLimit > 0 && count > col.WIPLimit
}

// Evaluate buckets tasks into columns in column order. Tasks whose status
// names no column are left out.
func Evaluate(cols []domain.Column, tasks []domain.Task) []ColumnLoad {
	index := make(map[string]int, len(cols))
	out := make([]ColumnLoad, len(cols))
	for i, c := range cols {
		index[c.ID] = i
		out[i] = ColumnLoad{Column: c, Tasks: []domain.Task{}}
	}
	for _, t := range tasks {
		if i, ok := index[t.Status]; ok {
			out[i].Tasks = append(out[i].Tasks, t)
		}
	}
	for i := range out {
		out[i].Count = len(out[i].Tasks)
		out[i].OverLimit = IsOverLimit(out[i].Column, out[i].Count)
	}
	return out
}

// ValidateLimit accepts any non-negative integer.
func ValidateLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("%w: WIP limit must not be negative", domain.ErrInvalid)
	}
	return nil
}

// ErrUnknownColumn is returned when a column id is not defined on the project.
var ErrUnknownColumn = fmt.Errorf("%w: unknown column", domain.ErrInvalid)

// Service edits column limits on a project.
type Service struct {
	projects *repo.ProjectRepo
}

func NewService(projects *repo.ProjectRepo) *Service {
	return &Service{projects: projects}
}

// SetColumnLimit rewrites the project's column list with one limit changed.
func (s *Service) SetColumnLimit(ctx context.Context, projectID, columnID string, limit int) (domain.Project, error) {
	if err := ValidateLimit(limit); err != nil {
		return domain.Project{}, err
	}
	p, err := s.projects.Get(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	cols := make([]domain.Column, len(p.Columns))
	copy(cols, p.Columns)
	found := false
	for i := range cols {
		if cols[i].ID == columnID {
			cols[i].WIPLimit = limit
			found = true
		}
	}
	if !found {
		return domain.Project{}, fmt.Errorf("%w %q", ErrUnknownColumn, columnID)
	}
	if err := s.projects.SetColumns(ctx, projectID, cols); err != nil {
		return domain.Project{}, err
	}
	p.Columns = cols
	return p, nil
}
