package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisNotifierAcrossStores(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	// Two stores sharing one backend but with separate Redis clients stand in
	// for two service instances.
	backend := NewMemory()
	writerRDB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	readerRDB := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer writerRDB.Close()
	defer readerRDB.Close()

	writer := New(backend, NewRedisNotifier(writerRDB), nil)
	reader := New(backend, NewRedisNotifier(readerRDB), nil)

	sub, err := reader.Subscribe(ctx, Query{Group: "tasks"})
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()
	if docs := recv(t, sub); len(docs) != 0 {
		t.Fatalf("expected empty initial set, got %d", len(docs))
	}

	if _, err := writer.Create(ctx, "projects/p9/tasks", "t1", map[string]any{"title": "x"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	select {
	case docs := <-sub.C():
		if len(docs) != 1 || docs[0].ID != "t1" {
			t.Fatalf("unexpected emission: %+v", docs)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("change published on one instance never reached the other")
	}
}
