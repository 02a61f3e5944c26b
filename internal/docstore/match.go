package docstore

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Match reports whether the JSON document satisfies every filter.
func Match(data []byte, filters []Filter) bool {
	for _, f := range filters {
		if !matchFilter(data, f) {
			return false
		}
	}
	return true
}

func matchFilter(data []byte, f Filter) bool {
	res := gjson.GetBytes(data, f.Field)
	switch f.Op {
	case OpIsNull:
		return !res.Exists() || res.Type == gjson.Null
	case OpArrayContains:
		if !res.IsArray() {
			return false
		}
		found := false
		res.ForEach(func(_, elem gjson.Result) bool {
			if c, ok := compare(elem, f.Value); ok && c == 0 {
				found = true
				return false
			}
			return true
		})
		return found
	case OpNeq:
		if !res.Exists() {
			return true
		}
		c, ok := compare(res, f.Value)
		return !ok || c != 0
	}
	if !res.Exists() {
		return false
	}
	c, ok := compare(res, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEq:
		return c == 0
	case OpLt:
		return c < 0
	case OpLte:
		return c <= 0
	case OpGt:
		return c > 0
	case OpGte:
		return c >= 0
	}
	return false
}

// compare orders a JSON value against a Go value. ok is false when the two
// are of different kinds.
func compare(res gjson.Result, v any) (int, bool) {
	switch val := v.(type) {
	case nil:
		return 0, res.Type == gjson.Null
	case time.Time:
		if res.Type != gjson.String {
			return 0, false
		}
		t, err := time.Parse(time.RFC3339Nano, res.Str)
		if err != nil {
			return 0, false
		}
		return t.Compare(val), true
	case string:
		if res.Type != gjson.String {
			return 0, false
		}
		return strings.Compare(res.Str, val), true
	case bool:
		if res.Type != gjson.True && res.Type != gjson.False {
			return 0, false
		}
		b := res.Bool()
		switch {
		case b == val:
			return 0, true
		case !b:
			return -1, true
		default:
			return 1, true
		}
	}
	n, isNum := toFloat(v)
	if !isNum || res.Type != gjson.Number {
		return 0, false
	}
	switch {
	case res.Num < n:
		return -1, true
	case res.Num > n:
		return 1, true
	}
	return 0, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// compareResults orders two JSON values for OrderBy. Missing values sort
// first and timestamps compare chronologically, not as text.
func compareResults(a, b gjson.Result) int {
	if !a.Exists() || !b.Exists() {
		switch {
		case a.Exists():
			return 1
		case b.Exists():
			return -1
		}
		return 0
	}
	if a.Type == gjson.Number && b.Type == gjson.Number {
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		}
		return 0
	}
	if a.Type == gjson.String && b.Type == gjson.String {
		ta, errA := time.Parse(time.RFC3339Nano, a.Str)
		tb, errB := time.Parse(time.RFC3339Nano, b.Str)
		if errA == nil && errB == nil {
			return ta.Compare(tb)
		}
	}
	return strings.Compare(a.String(), b.String())
}

// SQLValue converts a filter value into the form SQL backends bind.
// Times become RFC3339 UTC strings so they match what encoding/json stores.
func SQLValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}
