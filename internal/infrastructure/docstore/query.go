package docstore

import (
	"fmt"
	"sort"
	"strings"
)

// lookup resolves a dotted field path inside document data.
func lookup(data map[string]any, path string) (any, bool) {
	var current any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// compare orders two normalized values. ok is false when they are not comparable.
func compare(a, b any) (int, bool) {
	if ta, okA := timestampOf(a); okA {
		if tb, okB := timestampOf(b); okB {
			switch {
			case ta.Seconds != tb.Seconds:
				return cmpInt64(ta.Seconds, tb.Seconds), true
			default:
				return cmpInt64(ta.Nanoseconds, tb.Nanoseconds), true
			}
		}
	}

	switch va := a.(type) {
	case float64:
		if vb, ok := b.(float64); ok {
			switch {
			case va < vb:
				return -1, true
			case va > vb:
				return 1, true
			}
			return 0, true
		}
	case string:
		if vb, ok := b.(string); ok {
			return strings.Compare(va, vb), true
		}
	case bool:
		if vb, ok := b.(bool); ok {
			switch {
			case va == vb:
				return 0, true
			case !va:
				return -1, true
			}
			return 1, true
		}
	case nil:
		if b == nil {
			return 0, true
		}
	}
	return 0, false
}

func timestampOf(v any) (Timestamp, bool) {
	if m, ok := v.(map[string]any); ok {
		return TimestampFromValue(m)
	}
	return Timestamp{}, false
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// normalizeValue maps a query operand into the same shape stored values take.
func normalizeValue(v any) (any, error) {
	wrapped, err := Normalize(map[string]any{"v": v})
	if err != nil {
		return nil, err
	}
	return wrapped["v"], nil
}

func normalizeWhere(where []Where) ([]Where, error) {
	out := make([]Where, len(where))
	for i, w := range where {
		switch w.Op {
		case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		default:
			return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidQuery, w.Op)
		}
		if w.Field == "" {
			return nil, fmt.Errorf("%w: field is required", ErrInvalidQuery)
		}
		v, err := normalizeValue(w.Value)
		if err != nil {
			return nil, err
		}
		out[i] = Where{Field: w.Field, Op: w.Op, Value: v}
	}
	return out, nil
}

func matches(data map[string]any, where []Where) bool {
	for _, w := range where {
		got, ok := lookup(data, w.Field)
		if !ok {
			return false
		}
		c, comparable := compare(got, w.Value)
		if !comparable {
			if w.Op == OpNotEqual {
				continue
			}
			return false
		}
		switch w.Op {
		case OpEqual:
			if c != 0 {
				return false
			}
		case OpNotEqual:
			if c == 0 {
				return false
			}
		case OpLess:
			if c >= 0 {
				return false
			}
		case OpLessEqual:
			if c > 0 {
				return false
			}
		case OpGreater:
			if c <= 0 {
				return false
			}
		case OpGreaterEqual:
			if c < 0 {
				return false
			}
		}
	}
	return true
}

// sortDocuments orders docs in place. Documents missing the field sort last.
func sortDocuments(docs []Document, orderBy *OrderBy) {
	if orderBy == nil || orderBy.Field == "" {
		return
	}
	desc := orderBy.Direction == Desc
	sort.SliceStable(docs, func(i, j int) bool {
		a, okA := lookup(docs[i].Data, orderBy.Field)
		b, okB := lookup(docs[j].Data, orderBy.Field)
		if !okA || !okB {
			return okA && !okB
		}
		c, ok := compare(a, b)
		if !ok {
			return false
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
}

// applyQuery filters and orders docs without touching the input slice.
func applyQuery(docs []Document, where []Where, orderBy *OrderBy) []Document {
	out := make([]Document, 0, len(docs))
	for _, d := range docs {
		if matches(d.Data, where) {
			out = append(out, d)
		}
	}
	sortDocuments(out, orderBy)
	return out
}

// mergeTopLevel applies a partial update the way UpdateDocument does.
func mergeTopLevel(current, partial map[string]any) map[string]any {
	out := make(map[string]any, len(current)+len(partial))
	for k, v := range current {
		out[k] = v
	}
	for k, v := range partial {
		out[k] = v
	}
	return out
}
