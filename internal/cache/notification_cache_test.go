package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/LucasSckenal/nexo-sub000/internal/domain"
)

func newCache(t *testing.T) (*NotificationCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewNotificationCache(rdb, time.Minute), mr
}

func TestNotificationCacheRoundTripAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	if list, err := c.GetList(ctx, "alice"); err != nil || list != nil {
		t.Fatalf("expected miss, got %v %v", list, err)
	}
	if _, ok, err := c.GetUnread(ctx, "alice"); err != nil || ok {
		t.Fatalf("expected unread miss, got ok=%v err=%v", ok, err)
	}

	in := []domain.Notification{{ID: "n1", Recipient: "alice", Title: "hi", Type: domain.NotifySystem}}
	if err := c.SetList(ctx, "alice", 0, in); err != nil {
		t.Fatalf("SetList: %v", err)
	}
	if err := c.SetUnread(ctx, "alice", 0, 1); err != nil {
		t.Fatalf("SetUnread: %v", err)
	}
	list, err := c.GetList(ctx, "alice")
	if err != nil || len(list) != 1 || list[0].ID != "n1" {
		t.Fatalf("unexpected cached list %v err=%v", list, err)
	}
	if n, ok, _ := c.GetUnread(ctx, "alice"); !ok || n != 1 {
		t.Fatalf("expected cached unread 1, got %d ok=%v", n, ok)
	}
	if ttl := mr.TTL(listKey("alice")); ttl != time.Minute {
		t.Errorf("expected ttl 1m, got %v", ttl)
	}

	if err := c.Invalidate(ctx, "alice"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if mr.Exists(listKey("alice")) || mr.Exists(unreadKey("alice")) {
		t.Error("expected keys to be removed")
	}
}

func TestNotificationCacheEmptyListIsAHit(t *testing.T) {
	ctx := context.Background()
	c, _ := newCache(t)
	if err := c.SetList(ctx, "bob", 0, nil); err != nil {
		t.Fatalf("SetList: %v", err)
	}
	list, err := c.GetList(ctx, "bob")
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("expected cached empty list, got %v err=%v", list, err)
	}
}

func TestNotificationCacheSkipsWritesAfterInvalidate(t *testing.T) {
	ctx := context.Background()
	c, mr := newCache(t)

	gen, err := c.Generation(ctx, "alice")
	if err != nil {
		t.Fatalf("Generation: %v", err)
	}
	if err := c.Invalidate(ctx, "alice"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	stale := []domain.Notification{{ID: "old", Recipient: "alice", Title: "hi", Type: domain.NotifySystem}}
	if err := c.SetList(ctx, "alice", gen, stale); err != nil {
		t.Fatalf("SetList: %v", err)
	}
	if err := c.SetUnread(ctx, "alice", gen, 1); err != nil {
		t.Fatalf("SetUnread: %v", err)
	}
	if mr.Exists(listKey("alice")) || mr.Exists(unreadKey("alice")) {
		t.Fatal("expected values loaded before the invalidation to be dropped")
	}

	gen, _ = c.Generation(ctx, "alice")
	if err := c.SetList(ctx, "alice", gen, stale); err != nil {
		t.Fatalf("SetList: %v", err)
	}
	if !mr.Exists(listKey("alice")) {
		t.Error("expected write at the current generation to be cached")
	}
}
