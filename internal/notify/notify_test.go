package notify

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/LucasSckenal/nexo-sub000/internal/cache"
	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/domain"
	"github.com/LucasSckenal/nexo-sub000/internal/repo"
)

// failingStore rejects writes for selected recipients.
type failingStore struct {
	Store
	fail map[string]bool
}

func (f failingStore) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if f.fail[n.Recipient] {
		return domain.Notification{}, docstore.ErrUnavailable
	}
	return f.Store.Create(ctx, n)
}

func newRepo() *repo.NotificationRepo {
	return repo.NewNotificationRepo(docstore.New(docstore.NewMemory(), nil, nil))
}

func TestRecipients(t *testing.T) {
	cases := []struct {
		name     string
		watchers []string
		actor    string
		want     []string
	}{
		{"actor excluded", []string{"A", "B", "C"}, "B", []string{"A", "C"}},
		{"actor not watching", []string{"A"}, "Z", []string{"A"}},
		{"only actor", []string{"B"}, "B", []string{}},
		{"duplicates and blanks", []string{"A", "", "A", "C"}, "B", []string{"A", "C"}},
		{"none", nil, "B", []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Recipients(tc.watchers, tc.actor)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Recipients(%v, %q) = %v, want %v", tc.watchers, tc.actor, got, tc.want)
			}
		})
	}
}

func TestStatusChangedSkipsActor(t *testing.T) {
	ctx := context.Background()
	notes := newRepo()
	svc := NewService(notes, nil, nil)
	task := domain.Task{ID: "t1", ProjectID: "p1", Title: "Login", Assignees: []string{"A", "B", "C"}}

	rep := svc.StatusChanged(ctx, domain.Identity{ID: "B", DisplayName: "Bea"}, task, "todo", "done")
	if !rep.OK() || !reflect.DeepEqual(rep.Delivered, []string{"A", "C"}) {
		t.Fatalf("unexpected report %+v", rep)
	}
	for who, want := range map[string]int{"A": 1, "B": 0, "C": 1} {
		got, err := notes.ListForRecipient(ctx, who, false, 0)
		if err != nil {
			t.Fatalf("list %s: %v", who, err)
		}
		if len(got) != want {
			t.Errorf("%s: expected %d notifications, got %d", who, want, len(got))
		}
		for _, n := range got {
			if n.Type != domain.NotifyStatus || n.Actor != "Bea" || n.TaskID != "t1" || n.Read {
				t.Errorf("unexpected notification %+v", n)
			}
		}
	}
}

func TestNotifyPartialFailureDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	notes := newRepo()
	svc := NewService(failingStore{Store: notes, fail: map[string]bool{"B": true}}, nil, nil).WithConcurrency(1)

	rep := svc.Notify(ctx, []string{"A", "B", "C"}, Event{Type: domain.NotifySystem, Title: "ping"})
	if rep.OK() {
		t.Fatal("expected a failure in the report")
	}
	if !errors.Is(rep.Failed["B"], docstore.ErrUnavailable) {
		t.Errorf("expected B to fail with ErrUnavailable, got %v", rep.Failed["B"])
	}
	if !reflect.DeepEqual(rep.Delivered, []string{"A", "C"}) {
		t.Errorf("expected A and C delivered, got %v", rep.Delivered)
	}
}

func TestAssignedNotifiesOnlyNewAssignees(t *testing.T) {
	ctx := context.Background()
	notes := newRepo()
	svc := NewService(notes, nil, nil)
	task := domain.Task{ID: "t1", Title: "x", Assignees: []string{"A", "B", "C"}}

	rep := svc.Assigned(ctx, domain.Identity{ID: "C"}, task, []string{"A"})
	if !reflect.DeepEqual(rep.Delivered, []string{"B"}) {
		t.Fatalf("expected only B, got %v", rep.Delivered)
	}
}

func TestInboxCachesAndInvalidates(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := cache.NewNotificationCache(rdb, time.Minute)

	notes := newRepo()
	svc := NewService(notes, c, nil)
	inbox := NewInbox(notes, c, nil)

	if n, err := inbox.UnreadCount(ctx, "A"); err != nil || n != 0 {
		t.Fatalf("expected 0 unread, got %d err=%v", n, err)
	}
	svc.Notify(ctx, []string{"A"}, Event{Type: domain.NotifySystem, Title: "one"})
	svc.Notify(ctx, []string{"A"}, Event{Type: domain.NotifySystem, Title: "two"})

	if n, err := inbox.UnreadCount(ctx, "A"); err != nil || n != 2 {
		t.Fatalf("expected 2 unread after fan-out invalidation, got %d err=%v", n, err)
	}
	list, err := inbox.List(ctx, "A")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d err=%v", len(list), err)
	}

	if err := inbox.MarkRead(ctx, "B", list[0].ID); !errors.Is(err, repo.ErrNotRecipient) {
		t.Fatalf("expected ErrNotRecipient, got %v", err)
	}
	if err := inbox.MarkRead(ctx, "A", list[0].ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n, _ := inbox.UnreadCount(ctx, "A"); n != 1 {
		t.Errorf("expected 1 unread, got %d", n)
	}
	if n, err := inbox.MarkAllRead(ctx, "A"); err != nil || n != 1 {
		t.Fatalf("MarkAllRead: n=%d err=%v", n, err)
	}
	if n, _ := inbox.UnreadCount(ctx, "A"); n != 0 {
		t.Errorf("expected 0 unread, got %d", n)
	}
}

// racingStore runs during once, after the read, to mimic a write landing
// while a list is being loaded.
type racingStore struct {
	Store
	during func()
}

func (r *racingStore) ListForRecipient(ctx context.Context, recipient string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	list, err := r.Store.ListForRecipient(ctx, recipient, unreadOnly, limit)
	if r.during != nil {
		during := r.during
		r.during = nil
		during()
	}
	return list, err
}

func TestInboxDoesNotCacheListLoadedBeforeNotify(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	c := cache.NewNotificationCache(rdb, time.Minute)

	notes := newRepo()
	svc := NewService(notes, c, nil)
	store := &racingStore{Store: notes}
	store.during = func() {
		svc.Notify(ctx, []string{"A"}, Event{Type: domain.NotifySystem, Title: "late"})
	}
	inbox := NewInbox(store, c, nil)

	list, err := inbox.List(ctx, "A")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected the load to miss the late notification, got %d", len(list))
	}
	list, err = inbox.List(ctx, "A")
	if err != nil || len(list) != 1 || list[0].Title != "late" {
		t.Fatalf("expected the late notification after invalidation, got %+v err=%v", list, err)
	}
}
