package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

type repos struct {
	store    *docstore.Store
	projects *ProjectRepo
	sprints  *SprintRepo
	epics    *EpicRepo
	tasks    *TaskRepo
}

func newRepos(t *testing.T) repos {
	t.Helper()
	store := docstore.New(docstore.NewMemory(), nil, nil)
	projects := NewProjectRepo(store)
	sprints := NewSprintRepo(store)
	epics := NewEpicRepo(store)
	return repos{
		store:    store,
		projects: projects,
		sprints:  sprints,
		epics:    epics,
		tasks:    NewTaskRepo(store, projects, sprints, epics),
	}
}

func (r repos) project(t *testing.T) domain.Project {
	t.Helper()
	p, err := r.projects.Create(context.Background(), domain.Project{Name: "Nexo"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func TestTaskCreateDefaultsAndInvariants(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	p := r.project(t)

	task, err := r.tasks.Create(ctx, domain.Task{ProjectID: p.ID, Title: "Login page"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if task.Status != "todo" || task.Target != domain.TargetBacklog {
		t.Errorf("expected backlog task in first column, got status=%s target=%s", task.Status, task.Target)
	}

	missing := "nope"
	_, err = r.tasks.Create(ctx, domain.Task{ProjectID: p.ID, Title: "x", Target: domain.TargetSprint, SprintID: &missing})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("expected unknown sprint to be rejected, got %v", err)
	}

	_, err = r.tasks.Create(ctx, domain.Task{ProjectID: p.ID, Title: "x", Status: "icebox"})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("expected unknown column to be rejected, got %v", err)
	}

	_, err = r.tasks.Create(ctx, domain.Task{ProjectID: p.ID, Title: "x", EpicID: &missing})
	if !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("expected unknown epic to be rejected, got %v", err)
	}
}

func TestTaskUpdateIsPartial(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	p := r.project(t)
	task, err := r.tasks.Create(ctx, domain.Task{
		ProjectID: p.ID,
		Title:     "Checklist",
		Checklist: []domain.ChecklistItem{{Title: "one"}},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// A concurrent checklist edit lands between our read and write.
	if err := r.store.Update(ctx, tasksCollection(p.ID), task.ID, docstore.Patch{
		"checklist": []domain.ChecklistItem{{Title: "one", Completed: true}},
	}); err != nil {
		t.Fatalf("concurrent edit: %v", err)
	}
	if _, err := r.tasks.Update(ctx, p.ID, task.ID, docstore.Patch{"status": "review"}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := r.tasks.Get(ctx, p.ID, task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "review" {
		t.Errorf("expected status review, got %s", got.Status)
	}
	if len(got.Checklist) != 1 || !got.Checklist[0].Completed {
		t.Errorf("concurrent checklist edit was lost: %+v", got.Checklist)
	}

	if _, err := r.tasks.Update(ctx, p.ID, task.ID, docstore.Patch{"created_at": time.Now()}); !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("expected non-editable field rejection, got %v", err)
	}
	if _, err := r.tasks.Update(ctx, p.ID, task.ID, docstore.Patch{"target": "sprint"}); !errors.Is(err, domain.ErrInvalid) {
		t.Errorf("expected sprint target without reference to be rejected, got %v", err)
	}
}

func TestSprintCompleteIsConditional(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	p := r.project(t)
	now := time.Now().UTC()
	s, err := r.sprints.Create(ctx, domain.Sprint{
		ProjectID: p.ID, Name: "S1", StartDate: now, EndDate: now.Add(time.Hour), Status: domain.SprintActive,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	applied, err := r.sprints.Complete(ctx, p.ID, s.ID, now)
	if err != nil || !applied {
		t.Fatalf("first Complete: applied=%v err=%v", applied, err)
	}
	applied, err = r.sprints.Complete(ctx, p.ID, s.ID, now)
	if err != nil || applied {
		t.Fatalf("second Complete must be a no-op: applied=%v err=%v", applied, err)
	}
	active, err := r.sprints.ListActive(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active sprints, got %d", len(active))
	}
}

func TestDueBetweenSkipsEachProjectsDoneColumn(t *testing.T) {
	ctx := context.Background()
	r := newRepos(t)
	ops, err := r.projects.Create(ctx, domain.Project{Name: "Ops", Columns: []domain.Column{{ID: "todo"}, {ID: "shipped"}}})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	due := time.Now().UTC().Add(24 * time.Hour)
	open, err := r.tasks.Create(ctx, domain.Task{ProjectID: ops.ID, Title: "Rotate keys", Status: "todo", Assignees: []string{"alice"}, DueDate: &due})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := r.tasks.Create(ctx, domain.Task{ProjectID: ops.ID, Title: "Patch kernel", Status: "shipped", Assignees: []string{"alice"}, DueDate: &due}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := r.tasks.DueBetween(ctx, "alice", due.Add(-time.Hour), due.Add(time.Hour))
	if err != nil {
		t.Fatalf("DueBetween: %v", err)
	}
	if len(got) != 1 || got[0].ID != open.ID {
		t.Fatalf("expected only the open task, got %+v", got)
	}
}

func TestNotificationMarkReadOnlyByRecipient(t *testing.T) {
	ctx := context.Background()
	store := docstore.New(docstore.NewMemory(), nil, nil)
	notes := NewNotificationRepo(store)
	n, err := notes.Create(ctx, domain.Notification{Recipient: "alice", Type: domain.NotifySystem, Title: "hi"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := notes.MarkRead(ctx, "mallory", n.ID); !errors.Is(err, ErrNotRecipient) {
		t.Fatalf("expected ErrNotRecipient, got %v", err)
	}
	if err := notes.MarkRead(ctx, "alice", n.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	unread, err := notes.ListForRecipient(ctx, "alice", true, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(unread) != 0 {
		t.Errorf("expected no unread notifications, got %d", len(unread))
	}
}

func TestUsernameClaimIsUnique(t *testing.T) {
	ctx := context.Background()
	users := NewDocUserRepo(docstore.New(docstore.NewMemory(), nil, nil))
	u, err := users.Create(ctx, "Alice", "Alice A.", "hash")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := users.Create(ctx, "alice", "", "hash"); !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	got, err := users.GetByUsername(ctx, "ALICE")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.ID != u.ID || got.Identity().DisplayName != "Alice A." {
		t.Errorf("unexpected user: %+v", got)
	}
}
