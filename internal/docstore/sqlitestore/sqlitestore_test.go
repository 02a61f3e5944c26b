package sqlitestore

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "board.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)

	doc, err := s.Create(ctx, "projects/p1/tasks", "", raw(t, map[string]any{
		"title": "Write docs", "status": "todo", "checklist": []string{"a"},
	}))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := s.Create(ctx, "projects/p1/tasks", doc.ID, raw(t, map[string]any{})); !errors.Is(err, docstore.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	if err := s.Update(ctx, "projects/p1/tasks", doc.ID, docstore.Patch{"status": "done", "sprint_id": nil}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := s.Get(ctx, "projects/p1/tasks", doc.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var v map[string]any
	if err := got.Decode(&v); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if v["status"] != "done" || v["title"] != "Write docs" {
		t.Errorf("unexpected document after patch: %v", v)
	}
	if _, ok := v["checklist"].([]any); !ok {
		t.Errorf("checklist should survive partial update, got %T", v["checklist"])
	}

	err = s.Update(ctx, "projects/p1/tasks", doc.ID, docstore.Patch{"status": "todo"}, docstore.Where("status", docstore.OpEq, "review"))
	if !errors.Is(err, docstore.ErrConditionFailed) {
		t.Fatalf("expected ErrConditionFailed, got %v", err)
	}
	if err := s.Delete(ctx, "projects/p1/tasks", doc.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "projects/p1/tasks", doc.ID); !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGroupQueryFilters(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	tomorrow := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	seed := []struct {
		coll, id string
		data     map[string]any
	}{
		{"projects/a/tasks", "due", map[string]any{"assignees": []string{"u1"}, "status": "todo", "due_date": tomorrow}},
		{"projects/b/tasks", "done", map[string]any{"assignees": []string{"u1"}, "status": "done", "due_date": tomorrow}},
		{"projects/b/tasks", "other", map[string]any{"assignees": []string{"u2"}, "status": "todo", "due_date": tomorrow}},
		{"projects/b/tasks", "later", map[string]any{"assignees": []string{"u1"}, "status": "todo", "due_date": tomorrow.Add(48 * time.Hour)}},
	}
	for _, d := range seed {
		if _, err := s.Create(ctx, d.coll, d.id, raw(t, d.data)); err != nil {
			t.Fatalf("Create %s: %v", d.id, err)
		}
	}

	from := time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC)
	docs, err := s.Query(ctx, docstore.Query{
		Group: "tasks",
		Filters: []docstore.Filter{
			docstore.Where("assignees", docstore.OpArrayContains, "u1"),
			docstore.Where("due_date", docstore.OpGte, from),
			docstore.Where("due_date", docstore.OpLt, from.AddDate(0, 0, 1)),
			docstore.Where("status", docstore.OpNeq, "done"),
		},
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "due" {
		t.Fatalf("expected only the due task, got %+v", docs)
	}
}

func TestOrderByTimestampIgnoresFractionWidth(t *testing.T) {
	ctx := context.Background()
	s := openTemp(t)
	base := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	for id, at := range map[string]time.Time{
		"c": base.Add(2 * time.Second),
		"b": base.Add(250 * time.Millisecond),
		"a": base,
	} {
		if _, err := s.Create(ctx, "notifications", id, raw(t, map[string]any{"created_at": at})); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	docs, err := s.Query(ctx, docstore.Query{Collection: "notifications", OrderBy: "created_at", Desc: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	var got []string
	for _, d := range docs {
		got = append(got, d.ID)
	}
	if len(got) != 3 || got[0] != "c" || got[1] != "b" || got[2] != "a" {
		t.Errorf("expected c, b, a; got %v", got)
	}
}
