package domain

import (
	"fmt"
	"strings"
	"time"
)

// Column is one Kanban state. WIPLimit 0 means unlimited.
type Column struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	WIPLimit int    `json:"wip_limit"`
}

// Project owns tasks, sprints, epics and the column definition.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Columns   []Column  `json:"columns"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// DefaultColumns is used when a project is created without a column list.
func DefaultColumns() []Column {
	return []Column{
		{ID: "todo", Title: "To Do"},
		{ID: "in-progress", Title: "In Progress"},
		{ID: "review", Title: "Review"},
		{ID: StatusDone, Title: "Done"},
	}
}

// Column looks up a column by id.
func (p Project) Column(id string) (Column, bool) {
	for _, c := range p.Columns {
		if c.ID == id {
			return c, true
		}
	}
	return Column{}, false
}

// FirstColumn is where new tasks land when no status is given.
func (p Project) FirstColumn() string {
	if len(p.Columns) == 0 {
		return ""
	}
	return p.Columns[0].ID
}

// DoneColumn is the "done" column if defined, otherwise the last one.
func (p Project) DoneColumn() string {
	if _, ok := p.Column(StatusDone); ok {
		return StatusDone
	}
	if len(p.Columns) == 0 {
		return ""
	}
	return p.Columns[len(p.Columns)-1].ID
}

func (p Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: project name is required", ErrInvalid)
	}
	if len(p.Columns) == 0 {
		return fmt.Errorf("%w: project needs at least one column", ErrInvalid)
	}
	seen := make(map[string]struct{}, len(p.Columns))
	for _, c := range p.Columns {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("%w: column id is required", ErrInvalid)
		}
		if _, dup := seen[c.ID]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalid, c.ID)
		}
		seen[c.ID] = struct{}{}
		if c.WIPLimit < 0 {
			return fmt.Errorf("%w: column %q has a negative WIP limit", ErrInvalid, c.ID)
		}
	}
	return nil
}
