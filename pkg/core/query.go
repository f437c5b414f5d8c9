package core

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// Direction is the sort direction of a query.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Filter is an equality condition: Field == Value.
type Filter struct {
	Field string
	Value any
}

// Query describes a live or one-shot read over a collection.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Direction  Direction
}

// Matches reports whether the document satisfies every filter of the query.
func (q Query) Matches(doc Document) bool {
	for _, f := range q.Where {
		v, ok := doc.Fields[f.Field]
		if !ok || !valuesEqual(v, f.Value) {
			return false
		}
	}
	return true
}

// Apply filters and orders docs in place and returns the matching subset.
// Missing (nil) order values sort as the oldest/smallest value, so they come
// last in descending order. Ties are broken by ID to keep results stable.
func (q Query) Apply(docs []Document) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if q.Matches(d) {
			out = append(out, d)
		}
	}
	if q.OrderBy == "" {
		sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(out[i].Fields[q.OrderBy], out[j].Fields[q.OrderBy])
		if c == 0 {
			return out[i].ID < out[j].ID
		}
		if q.Direction == Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

func valuesEqual(a, b any) bool {
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two field values. nil is smaller than any value.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if at, ok := AsTime(a); ok {
		if bt, ok := AsTime(b); ok {
			return at.Compare(bt)
		}
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if as, ok := a.(string); ok {
		if bs, ok := b.(string); ok {
			return strings.Compare(as, bs)
		}
	}
	return 0
}

// AsTime converts a stored timestamp value to time.Time.
// It accepts time.Time, *time.Time and RFC 3339 strings.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	}
	return time.Time{}, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
