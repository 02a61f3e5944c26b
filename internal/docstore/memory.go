package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Memory is a process-local Backend used for development and tests.
type Memory struct {
	mu    sync.RWMutex
	colls map[string]map[string]Document
	now   func() time.Time
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		colls: make(map[string]map[string]Document),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Get(ctx context.Context, collection, id string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.colls[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	return doc, nil
}

func (m *Memory) Query(ctx context.Context, q Query) ([]Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	var out []Document
	for name, docs := range m.colls {
		if q.Collection != "" && name != q.Collection {
			continue
		}
		if q.Group != "" && Group(name) != q.Group {
			continue
		}
		for _, doc := range docs {
			if Match(doc.Data, q.Filters) {
				out = append(out, doc)
			}
		}
	}
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareResults(gjson.GetBytes(out[i].Data, q.OrderBy), gjson.GetBytes(out[j].Data, q.OrderBy))
			if c != 0 {
				if q.Desc {
					return c > 0
				}
				return c < 0
			}
		}
		if !out[i].CreateTime.Equal(out[j].CreateTime) {
			return out[i].CreateTime.Before(out[j].CreateTime)
		}
		return out[i].Path() < out[j].Path()
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *Memory) Create(ctx context.Context, collection, id string, data json.RawMessage) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if !json.Valid(data) {
		return Document{}, fmt.Errorf("create %s: data is not valid JSON", collection)
	}
	if id == "" {
		id = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docs, ok := m.colls[collection]
	if !ok {
		docs = make(map[string]Document)
		m.colls[collection] = docs
	}
	if _, exists := docs[id]; exists {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrAlreadyExists)
	}
	now := m.now()
	doc := Document{
		Collection: collection,
		ID:         id,
		Data:       append(json.RawMessage(nil), data...),
		CreateTime: now,
		UpdateTime: now,
	}
	docs[id] = doc
	return doc, nil
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch Patch, conds ...Filter) error {
	if err := ValidatePatch(patch); err != nil {
		return err
	}
	if err := ValidateFilters(conds); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.colls[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	if !Match(doc.Data, conds) {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrConditionFailed)
	}
	merged, err := mergeTopLevel(doc.Data, patch)
	if err != nil {
		return fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	doc.Data = merged
	doc.UpdateTime = m.now()
	m.colls[collection][id] = doc
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.colls[collection][id]; !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	delete(m.colls[collection], id)
	return nil
}

func (m *Memory) Close() error { return nil }

func mergeTopLevel(data json.RawMessage, patch Patch) (json.RawMessage, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, v := range patch {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = b
	}
	return json.Marshal(fields)
}
