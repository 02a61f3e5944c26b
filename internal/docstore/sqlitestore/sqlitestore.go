// Package sqlitestore is the single-node docstore backend built on SQLite's
// JSON1 functions.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/LucasSckenal/nexo-sub000/internal/docstore"
	"github.com/LucasSckenal/nexo-sub000/migrations"
)

// Store implements docstore.Backend over database/sql.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and applies migrations.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty database path")
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", path)
	if path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if err := migrate(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Store{db: conn, now: func() time.Time { return time.Now().UTC() }}, nil
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.Up(db, migrations.SQLiteDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

const selectCols = `collection, id, data, created_at, updated_at`

// stampLayout is fixed width so timestamps sort correctly as text.
const stampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (s *Store) Get(ctx context.Context, collection, id string) (docstore.Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectCols+` FROM documents WHERE collection = ? AND id = ?`, collection, id)
	doc, err := scanDoc(row)
	if errors.Is(err, sql.ErrNoRows) {
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
	var args []any
	var where []string
	if q.Collection != "" {
		where = append(where, "collection = ?")
		args = append(args, q.Collection)
	} else {
		where = append(where, "grp = ?")
		args = append(args, q.Group)
	}
	for _, f := range q.Filters {
		clause, fargs := filterSQL(f)
		where = append(where, clause)
		args = append(args, fargs...)
	}
	query := `SELECT ` + selectCols + ` FROM documents WHERE ` + strings.Join(where, " AND ")
	order := "created_at, collection, id"
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		// julianday puts timestamps of different fractional width in time order;
		// it is NULL for non-dates, leaving those to the raw value.
		order = fmt.Sprintf("(CASE WHEN json_type(data, '%[1]s') = 'text' THEN julianday(json_extract(data, '%[1]s')) END) %[2]s, json_extract(data, '%[1]s') %[2]s, %[3]s",
			jsonPath(q.OrderBy), dir, order)
	}
	query += " ORDER BY " + order
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	stamp := now.Format(stampLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, grp, data, created_at, updated_at) VALUES (?, ?, ?, json(?), ?, ?)`,
		collection, id, docstore.Group(collection), string(data), stamp, stamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
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
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var setArgs []string
	var args []any
	for _, k := range keys {
		raw, err := json.Marshal(patch[k])
		if err != nil {
			return fmt.Errorf("encode field %s: %w", k, err)
		}
		setArgs = append(setArgs, fmt.Sprintf("'%s', json(?)", jsonPath(k)))
		args = append(args, string(raw))
	}
	args = append(args, s.now().Format(stampLayout), collection, id)
	where := []string{"collection = ?", "id = ?"}
	for _, f := range conds {
		clause, fargs := filterSQL(f)
		where = append(where, clause)
		args = append(args, fargs...)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET data = json_set(data, `+strings.Join(setArgs, ", ")+`), updated_at = ? WHERE `+strings.Join(where, " AND "),
		args...,
	)
	if err != nil {
		return classify("update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify("update", err)
	}
	if affected > 0 {
		return nil
	}
	if _, err := s.Get(ctx, collection, id); err != nil {
		return err
	}
	return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrConditionFailed)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return classify("delete", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return classify("delete", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s/%s: %w", collection, id, docstore.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDoc(row scanner) (docstore.Document, error) {
	var d docstore.Document
	var data, created, updated string
	if err := row.Scan(&d.Collection, &d.ID, &data, &created, &updated); err != nil {
		return docstore.Document{}, err
	}
	d.Data = json.RawMessage(data)
	var err error
	if d.CreateTime, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return docstore.Document{}, fmt.Errorf("created_at: %w", err)
	}
	if d.UpdateTime, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return docstore.Document{}, fmt.Errorf("updated_at: %w", err)
	}
	return d, nil
}

func jsonPath(field string) string { return "$." + field }

func filterSQL(f docstore.Filter) (string, []any) {
	path := jsonPath(f.Field)
	extract := fmt.Sprintf("json_extract(data, '%s')", path)
	typ := fmt.Sprintf("json_type(data, '%s')", path)
	switch f.Op {
	case docstore.OpIsNull:
		return extract + " IS NULL", nil
	case docstore.OpArrayContains:
		return fmt.Sprintf("(%s = 'array' AND EXISTS (SELECT 1 FROM json_each(data, '%s') AS je WHERE je.value = ?))", typ, path),
			[]any{sqlArg(f.Value)}
	case docstore.OpEq, docstore.OpNeq:
		cmp := "IS"
		if f.Op == docstore.OpNeq {
			cmp = "IS NOT"
		}
		if _, ok := f.Value.(time.Time); ok {
			return fmt.Sprintf("julianday(%s) %s julianday(?)", extract, cmp), []any{sqlArg(f.Value)}
		}
		return fmt.Sprintf("%s %s ?", extract, cmp), []any{sqlArg(f.Value)}
	}
	op := string(f.Op)
	switch f.Value.(type) {
	case time.Time:
		return fmt.Sprintf("(%s = 'text' AND julianday(%s) %s julianday(?))", typ, extract, op), []any{sqlArg(f.Value)}
	case string:
		return fmt.Sprintf("(%s = 'text' AND %s %s ?)", typ, extract, op), []any{f.Value}
	default:
		return fmt.Sprintf("(%s IN ('integer', 'real') AND %s %s ?)", typ, extract, op), []any{f.Value}
	}
}

// sqlArg maps values to what json_extract yields: booleans are 0/1.
func sqlArg(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return docstore.SQLValue(v)
}

func classify(op string, err error) error {
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%s: %w: %v", op, docstore.ErrUnavailable, err)
		case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
			return fmt.Errorf("%s: %w: %v", op, docstore.ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
