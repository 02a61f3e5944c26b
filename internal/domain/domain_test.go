package domain

import (
	"errors"
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestTaskValidateTargetInvariant(t *testing.T) {
	base := Task{Title: "Ship it", Type: TaskFeature, Priority: PriorityHigh, Status: "todo"}

	cases := []struct {
		name    string
		target  Target
		sprint  *string
		wantErr bool
	}{
		{"backlog without sprint", TargetBacklog, nil, false},
		{"backlog with sprint", TargetBacklog, strPtr("s1"), true},
		{"sprint with reference", TargetSprint, strPtr("s1"), false},
		{"sprint without reference", TargetSprint, nil, true},
		{"sprint with empty reference", TargetSprint, strPtr(""), true},
		{"unknown target", Target("icebox"), nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := base
			task.Target = tc.target
			task.SprintID = tc.sprint
			err := task.Validate()
			if tc.wantErr && !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestTaskNormalizeDefaults(t *testing.T) {
	due := time.Date(2026, 3, 1, 10, 0, 0, 0, time.FixedZone("X", 3*3600))
	task := Task{Title: "  padded  ", DueDate: &due}
	task.Normalize()

	if task.Title != "padded" {
		t.Errorf("expected trimmed title, got %q", task.Title)
	}
	if task.Type != TaskChore || task.Priority != PriorityMedium || task.Target != TargetBacklog {
		t.Errorf("unexpected defaults: %+v", task)
	}
	if task.DueDate.Location() != time.UTC {
		t.Errorf("expected due date in UTC, got %v", task.DueDate.Location())
	}
	if task.Assignees == nil || task.Checklist == nil || task.Attachments == nil {
		t.Error("expected empty slices instead of nil")
	}
}

func TestTaskValidateRejectsNegativePoints(t *testing.T) {
	task := Task{Title: "x", Type: TaskBug, Priority: PriorityLow, Status: "todo", Target: TargetBacklog, Points: -1}
	if err := task.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestProjectColumns(t *testing.T) {
	p := Project{Name: "Nexo", Columns: DefaultColumns()}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.FirstColumn() != "todo" {
		t.Errorf("expected first column todo, got %s", p.FirstColumn())
	}
	if p.DoneColumn() != StatusDone {
		t.Errorf("expected done column, got %s", p.DoneColumn())
	}

	custom := Project{Name: "Ops", Columns: []Column{{ID: "open"}, {ID: "closed"}}}
	if custom.DoneColumn() != "closed" {
		t.Errorf("expected last column as done, got %s", custom.DoneColumn())
	}

	dup := Project{Name: "Dup", Columns: []Column{{ID: "a"}, {ID: "a"}}}
	if err := dup.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected duplicate column rejection, got %v", err)
	}

	neg := Project{Name: "Neg", Columns: []Column{{ID: "a", WIPLimit: -1}}}
	if err := neg.Validate(); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected negative limit rejection, got %v", err)
	}
}

func TestSprintExpired(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	s := Sprint{Name: "S1", StartDate: now.Add(-48 * time.Hour), EndDate: now.Add(-time.Minute), Status: SprintActive}
	if !s.Expired(now) {
		t.Error("expected active sprint past end date to be expired")
	}
	s.Status = SprintCompleted
	if s.Expired(now) {
		t.Error("completed sprint must never report expiry")
	}
	s.Status = SprintActive
	s.EndDate = now
	if s.Expired(now) {
		t.Error("sprint ending exactly now is not yet expired")
	}
}
