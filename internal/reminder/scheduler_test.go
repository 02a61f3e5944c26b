package reminder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/notify"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
)

// flakyMarkers fails Put while failPut is set.
type flakyMarkers struct {
	Markers
	failPut bool
}

func (f *flakyMarkers) Put(ctx context.Context, m domain.ReminderMarker) error {
	if f.failPut {
		return docstore.ErrUnavailable
	}
	return f.Markers.Put(ctx, m)
}

// flakyNotes fails notification writes while fail is set.
type flakyNotes struct {
	notify.Store
	fail bool
}

func (f *flakyNotes) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if f.fail {
		return domain.Notification{}, docstore.ErrUnavailable
	}
	return f.Store.Create(ctx, n)
}

type fixture struct {
	now     time.Time
	project domain.Project
	tasks   *repo.TaskRepo
	notes   *repo.NotificationRepo
	markers *repo.MarkerRepo
	flakyM  *flakyMarkers
	flakyN  *flakyNotes
	sched   *Scheduler
}

func newFixture(t *testing.T, loc *time.Location, now time.Time) *fixture {
	t.Helper()
	store := docstore.New(docstore.NewMemory(), nil, nil)
	projects := repo.NewProjectRepo(store)
	sprints := repo.NewSprintRepo(store)
	tasks := repo.NewTaskRepo(store, projects, sprints, repo.NewEpicRepo(store))
	notes := repo.NewNotificationRepo(store)
	markers := repo.NewMarkerRepo(store)
	p, err := projects.Create(context.Background(), domain.Project{Name: "Nexo"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	f := &fixture{now: now, project: p, tasks: tasks, notes: notes, markers: markers}
	f.flakyM = &flakyMarkers{Markers: markers}
	f.flakyN = &flakyNotes{Store: notes}
	f.sched = NewScheduler(tasks, f.flakyM, notify.NewService(f.flakyN, nil, nil), loc, nil).
		WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) task(t *testing.T, title, status string, due time.Time, watchers ...string) domain.Task {
	t.Helper()
	tk, err := f.tasks.Create(context.Background(), domain.Task{
		ProjectID: f.project.ID, Title: title, Status: status, DueDate: &due, Assignees: watchers,
	})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	return tk
}

func (f *fixture) inbox(t *testing.T, who string) []domain.Notification {
	t.Helper()
	list, err := f.notes.ListForRecipient(context.Background(), who, false, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return list
}

func TestSweepOncePerDay(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 11, 15, 0, 0, 0, time.UTC)
	f := newFixture(t, time.UTC, now)
	tk := f.task(t, "Ship it", "todo", time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC), "U")

	res, err := f.sched.Sweep(ctx, "U")
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Due != 1 || res.Sent != 1 {
		t.Fatalf("unexpected first sweep %+v", res)
	}
	inbox := f.inbox(t, "U")
	if len(inbox) != 1 || inbox[0].TaskID != tk.ID || inbox[0].Type != domain.NotifySystem {
		t.Fatalf("unexpected inbox %+v", inbox)
	}
	marker := "alert_" + tk.ID + "_2026-05-11"
	if ok, err := f.markers.Exists(ctx, "U", marker); err != nil || !ok {
		t.Fatalf("expected marker %s, ok=%v err=%v", marker, ok, err)
	}

	f.now = now.Add(3 * time.Hour)
	res, err = f.sched.Sweep(ctx, "U")
	if err != nil {
		t.Fatalf("second Sweep: %v", err)
	}
	if res.Sent != 0 || res.Skipped != 1 {
		t.Fatalf("second sweep must be a no-op, got %+v", res)
	}
	if n := len(f.inbox(t, "U")); n != 1 {
		t.Fatalf("expected 1 notification, got %d", n)
	}
}

func TestSweepSelectsOnlyWatchedUnfinishedTasksDueTomorrow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 11, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, time.UTC, now)
	f.task(t, "due today", "todo", time.Date(2026, 5, 11, 20, 0, 0, 0, time.UTC), "U")
	f.task(t, "done", domain.StatusDone, time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC), "U")
	f.task(t, "other watcher", "todo", time.Date(2026, 5, 12, 9, 0, 0, 0, time.UTC), "V")
	f.task(t, "in two days", "todo", time.Date(2026, 5, 13, 0, 0, 0, 0, time.UTC), "U")
	want := f.task(t, "late tomorrow", "review", time.Date(2026, 5, 12, 23, 59, 0, 0, time.UTC), "U", "V")

	res, err := f.sched.Sweep(ctx, "U")
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if res.Sent != 1 {
		t.Fatalf("expected exactly one reminder, got %+v", res)
	}
	if inbox := f.inbox(t, "U"); len(inbox) != 1 || inbox[0].TaskID != want.ID {
		t.Fatalf("unexpected inbox %+v", inbox)
	}
}

func TestSweepUsesConfiguredTimeZone(t *testing.T) {
	ctx := context.Background()
	brt := time.FixedZone("BRT", -3*3600)
	// 23:30 on May 11 in BRT is already May 12 in UTC.
	now := time.Date(2026, 5, 11, 23, 30, 0, 0, brt)
	f := newFixture(t, brt, now)
	tk := f.task(t, "BRT task", "todo", time.Date(2026, 5, 12, 21, 0, 0, 0, brt), "U")

	if res, err := f.sched.Sweep(ctx, "U"); err != nil || res.Sent != 1 {
		t.Fatalf("Sweep: %+v err=%v", res, err)
	}
	if ok, _ := f.markers.Exists(ctx, "U", MarkerID(tk.ID, time.Date(2026, 5, 11, 0, 0, 0, 0, brt))); !ok {
		t.Fatal("expected marker keyed by the local calendar day")
	}
}

func TestSweepIsAtLeastOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 11, 15, 0, 0, 0, time.UTC)
	f := newFixture(t, time.UTC, now)
	f.task(t, "x", "todo", time.Date(2026, 5, 12, 10, 0, 0, 0, time.UTC), "U")

	// Notification write fails: no marker, so the next sweep retries.
	f.flakyN.fail = true
	if res, _ := f.sched.Sweep(ctx, "U"); res.Failed != 1 || res.Sent != 0 {
		t.Fatalf("unexpected sweep %+v", res)
	}
	f.flakyN.fail = false

	// Marker write fails after the notification: the reminder repeats once.
	f.flakyM.failPut = true
	if res, _ := f.sched.Sweep(ctx, "U"); res.Sent != 1 {
		t.Fatalf("unexpected sweep %+v", res)
	}
	f.flakyM.failPut = false
	if res, _ := f.sched.Sweep(ctx, "U"); res.Sent != 1 {
		t.Fatalf("expected the reminder to repeat, got %+v", res)
	}
	if res, _ := f.sched.Sweep(ctx, "U"); res.Sent != 0 {
		t.Fatalf("expected no more reminders, got %+v", res)
	}
	if n := len(f.inbox(t, "U")); n != 2 {
		t.Fatalf("expected 2 notifications, got %d", n)
	}
}

func TestSweepPropagatesQueryErrors(t *testing.T) {
	s := NewScheduler(failingTasks{}, nil, nil, nil, nil)
	if _, err := s.Sweep(context.Background(), "U"); !errors.Is(err, docstore.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

type failingTasks struct{}

func (failingTasks) DueBetween(context.Context, string, time.Time, time.Time) ([]domain.Task, error) {
	return nil, docstore.ErrUnavailable
}
