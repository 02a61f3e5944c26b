// Package docstore is a path-addressed JSON document store with live queries.
//
// Documents live in collections such as "projects/p1/tasks". A Backend owns
// persistence; a Notifier carries change signals between writers and
// subscribers, possibly across processes. Store combines the two and turns
// change signals into full result-set emissions for each live query.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrAlreadyExists    = errors.New("document already exists")
	ErrConditionFailed  = errors.New("write condition not met")
	ErrUnavailable      = errors.New("store unavailable")
	ErrPermissionDenied = errors.New("permission denied")
)

// Document is a stored record. Data holds the JSON object.
type Document struct {
	Collection string
	ID         string
	Data       json.RawMessage
	CreateTime time.Time
	UpdateTime time.Time
}

// Decode unmarshals the document data into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s: %w", d.Path(), err)
	}
	return nil
}

// Path is the full document path.
func (d Document) Path() string { return d.Collection + "/" + d.ID }

// Join builds a collection or document path from segments.
func Join(segments ...string) string { return strings.Join(segments, "/") }

// Group returns the last segment of a collection path, the key used by
// collection-group queries.
func Group(collection string) string {
	if i := strings.LastIndexByte(collection, '/'); i >= 0 {
		return collection[i+1:]
	}
	return collection
}

// Patch is a partial update: top-level fields are replaced, others untouched.
// A nil value stores JSON null.
type Patch map[string]any

type Op string

const (
	OpEq            Op = "=="
	OpNeq           Op = "!="
	OpLt            Op = "<"
	OpLte           Op = "<="
	OpGt            Op = ">"
	OpGte           Op = ">="
	OpArrayContains Op = "array-contains"
	OpIsNull        Op = "is-null"
)

// Filter restricts a query. Field may be a dotted path. time.Time values
// compare chronologically. OpNeq matches documents that lack the field.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Where is shorthand for a Filter literal.
func Where(field string, op Op, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// Query selects documents from one collection, or from every collection
// sharing the group name when Group is set.
type Query struct {
	Collection string
	Group      string
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidField reports whether name is safe to use as a document field path.
func ValidField(name string) bool { return fieldPattern.MatchString(name) }

func (q Query) Validate() error {
	if (q.Collection == "") == (q.Group == "") {
		return fmt.Errorf("query needs exactly one of collection or group")
	}
	if q.OrderBy != "" && !ValidField(q.OrderBy) {
		return fmt.Errorf("invalid order field %q", q.OrderBy)
	}
	return ValidateFilters(q.Filters)
}

// ValidateFilters checks field names and operators.
func ValidateFilters(filters []Filter) error {
	for _, f := range filters {
		if !ValidField(f.Field) {
			return fmt.Errorf("invalid filter field %q", f.Field)
		}
		switch f.Op {
		case OpEq, OpNeq, OpLt, OpLte, OpGt, OpGte, OpArrayContains, OpIsNull:
		default:
			return fmt.Errorf("invalid filter operator %q", f.Op)
		}
	}
	return nil
}

// ValidatePatch checks that every patch key is a plain top-level field.
func ValidatePatch(p Patch) error {
	if len(p) == 0 {
		return fmt.Errorf("empty patch")
	}
	for k := range p {
		if !ValidField(k) || strings.Contains(k, ".") {
			return fmt.Errorf("invalid patch field %q", k)
		}
	}
	return nil
}

// Backend persists documents. Implementations classify their failures into
// the package sentinel errors.
type Backend interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	// Create stores data under id, generating one when id is empty.
	Create(ctx context.Context, collection, id string, data json.RawMessage) (Document, error)
	// Update merges patch into the document when every condition holds.
	Update(ctx context.Context, collection, id string, patch Patch, conds ...Filter) error
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

func collectionChannel(collection string) string { return "c:" + collection }
func groupChannel(group string) string           { return "g:" + group }

func (q Query) channel() string {
	if q.Group != "" {
		return groupChannel(q.Group)
	}
	return collectionChannel(q.Collection)
}
