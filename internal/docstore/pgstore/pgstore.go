// Package pgstore is the Postgres docstore backend: one JSONB row per document.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/internal/utils"
)

// Store implements docstore.Backend over a pgx pool.
type Store struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const selectCols = `collection, id, data, created_at, updated_at`

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+selectCols+` FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	)
	doc, err := scanDoc(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	if err != nil {
		return docstore.Document{}, classify("get", err)
	}
	return doc, nil
}

func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var b builder
	var where []string
	if q.Collection != "" {
		where = append(where, "collection = "+b.arg(q.Collection))
	} else {
		where = append(where, "grp = "+b.arg(q.Group))
	}
	for _, f := range q.Filters {
		where = append(where, b.filter(f))
	}
	sql := `SELECT ` + selectCols + ` FROM documents WHERE ` + strings.Join(where, " AND ")
	order := "created_at, collection, id"
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		order = fmt.Sprintf("%s %s, data #> '%s' %s, %s", stampOrder(q.OrderBy), dir, jsonPath(q.OrderBy), dir, order)
	}
	sql += " ORDER BY " + order
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.Query(ctx, sql, b.args...)
	if err != nil {
		return nil, classify("query", err)
	}
	defer rows.Close()
	var out []docstore.Document
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, classify("scan", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query", err)
	}
	return out, nil
}

func (s *Store) Create(ctx context.Context, collection, id string, data json.RawMessage) (docstore.Document, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := s.now()
	_, err := s.db.Exec(ctx,
		`INSERT INTO documents (collection, id, grp, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4::jsonb, $5, $5)`,
		collection, id, docstore.Group(collection), string(data), now,
	)
	if err != nil {
		if utils.IsPGUniqueViolation(err) {
			return docstore.Document{}, fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrAlreadyExists)
		}
		return docstore.Document{}, classify("create", err)
	}
	return docstore.Document{Collection: collection, ID: id, Data: data, CreateTime: now, UpdateTime: now}, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, patch docstore.Patch, conds ...docstore.Filter) error {
	if err := docstore.ValidatePatch(patch); err != nil {
		return err
	}
	if err := docstore.ValidateFilters(conds); err != nil {
		return err
	}
	raw, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	var b builder
	set := b.arg(string(raw))
	at := b.arg(s.now())
	where := []string{"collection = " + b.arg(collection), "id = " + b.arg(id)}
	for _, f := range conds {
		where = append(where, b.filter(f))
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE documents SET data = data || `+set+`::jsonb, updated_at = `+at+` WHERE `+strings.Join(where, " AND "),
		b.args...,
	)
	if err != nil {
		return classify("update", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	if _, err := s.Get(ctx, collection, id); err != nil {
		return err
	}
	return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrConditionFailed)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return classify("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

// Close is a no-op: the pool is owned by the caller.
func (s *Store) Close() error { return nil }

func scanDoc(row pgx.Row) (docstore.Document, error) {
	var d docstore.Document
	var data []byte
	if err := row.Scan(&d.Collection, &d.ID, &data, &d.CreateTime, &d.UpdateTime); err != nil {
		return docstore.Document{}, err
	}
	d.Data = data
	return d, nil
}

func classify(op string, err error) error {
	switch {
	case utils.IsPGPermissionDenied(err):
		return fmt.Errorf("%s: %w: %v", op, docstore.ErrPermissionDenied, err)
	case utils.IsPGTransient(err):
		return fmt.Errorf("%s: %w: %v", op, docstore.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// builder accumulates positional arguments for one statement.
type builder struct {
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// jsonPath turns "a.b" into the Postgres text-array path literal {a,b}.
// Field names are validated by docstore before reaching here.
func jsonPath(field string) string {
	return "{" + strings.ReplaceAll(field, ".", ",") + "}"
}

// stampOrder yields the field as timestamptz when it holds an RFC 3339
// string and NULL otherwise. Fractional seconds vary in width, so the text
// form does not sort chronologically.
func stampOrder(field string) string {
	value := fmt.Sprintf("(data #> '%s')", jsonPath(field))
	text := fmt.Sprintf("(data #>> '%s')", jsonPath(field))
	return fmt.Sprintf(`(CASE WHEN jsonb_typeof(%s) = 'string' AND %s ~ '^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}' THEN %s::timestamptz END)`, value, text, text)
}

func (b *builder) filter(f docstore.Filter) string {
	value := fmt.Sprintf("(data #> '%s')", jsonPath(f.Field))
	text := fmt.Sprintf("(data #>> '%s')", jsonPath(f.Field))
	switch f.Op {
	case docstore.OpIsNull:
		return fmt.Sprintf("(%s IS NULL OR jsonb_typeof(%s) = 'null')", value, value)
	case docstore.OpArrayContains:
		raw, _ := json.Marshal([]any{f.Value})
		return fmt.Sprintf("(jsonb_typeof(%s) = 'array' AND %s @> %s::jsonb)", value, value, b.arg(string(raw)))
	case docstore.OpEq, docstore.OpNeq:
		if t, ok := f.Value.(time.Time); ok {
			cmp := "="
			if f.Op == docstore.OpNeq {
				cmp = "IS DISTINCT FROM"
			}
			return fmt.Sprintf("(%s::timestamptz %s %s)", text, cmp, b.arg(t))
		}
		raw, _ := json.Marshal(f.Value)
		if f.Op == docstore.OpEq {
			return fmt.Sprintf("(%s = %s::jsonb)", value, b.arg(string(raw)))
		}
		return fmt.Sprintf("(%s IS DISTINCT FROM %s::jsonb)", value, b.arg(string(raw)))
	}
	op := string(f.Op)
	switch v := f.Value.(type) {
	case time.Time:
		return fmt.Sprintf("(jsonb_typeof(%s) = 'string' AND %s::timestamptz %s %s)", value, text, op, b.arg(v))
	case string:
		return fmt.Sprintf("(jsonb_typeof(%s) = 'string' AND %s COLLATE \"C\" %s %s)", value, text, op, b.arg(v))
	default:
		return fmt.Sprintf("(jsonb_typeof(%s) = 'number' AND %s::numeric %s %s)", value, text, op, b.arg(v))
	}
}
