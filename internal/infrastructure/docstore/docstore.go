package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidWrite = errors.New("invalid write")
	ErrInvalidQuery = errors.New("invalid query")
)

// Store is the document database contract used by the order and identity layers.
type Store interface {
	AddDocument(ctx context.Context, collection string, data any) (string, error)
	GetDocuments(ctx context.Context, collection string) ([]Document, error)
	GetDocumentByID(ctx context.Context, collection, id string) (*Document, error)
	UpdateDocument(ctx context.Context, collection, id string, partial map[string]any) error
	QueryDocuments(ctx context.Context, collection string, where []Where, orderBy *OrderBy) ([]Document, error)
	// SubscribeToQuery delivers the full result set once immediately and again
	// after every change. The returned func stops delivery.
	SubscribeToQuery(ctx context.Context, collection string, where []Where, orderBy *OrderBy, onNext func([]Document), onError func(error)) (func(), error)
	AtomicMultiWrite(ctx context.Context, writes []Write) error
}

type Document struct {
	ID   string         `json:"id"`
	Data map[string]any `json:"data"`
}

// DataTo decodes the document body into v.
func (d Document) DataTo(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

type Op string

const (
	OpEqual        Op = "=="
	OpNotEqual     Op = "!="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
)

type Where struct {
	Field string
	Op    Op
	Value any
}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type OrderBy struct {
	Field     string
	Direction Direction
}

type WriteKind string

const (
	// WriteSet replaces (or creates) the whole document.
	WriteSet WriteKind = "set"
	// WriteUpdate merges top-level fields into an existing document.
	WriteUpdate WriteKind = "update"
)

type Write struct {
	Kind       WriteKind
	Collection string
	ID         string
	Data       any
}

func (w Write) validate() error {
	if w.Collection == "" || w.ID == "" {
		return fmt.Errorf("%w: collection and id are required", ErrInvalidWrite)
	}
	if w.Kind != WriteSet && w.Kind != WriteUpdate {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidWrite, w.Kind)
	}
	return nil
}

// Timestamp is the stored form of a point in time.
type Timestamp struct {
	Seconds     int64 `json:"seconds"`
	Nanoseconds int64 `json:"nanoseconds"`
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Seconds: t.Unix(), Nanoseconds: int64(t.Nanosecond())}
}

func (ts Timestamp) ToDate() time.Time {
	return time.Unix(ts.Seconds, ts.Nanoseconds).UTC()
}

// TimestampFromValue accepts a stored Timestamp map, a Timestamp, a time.Time
// or an RFC 3339 string.
func TimestampFromValue(v any) (Timestamp, bool) {
	switch val := v.(type) {
	case Timestamp:
		return val, true
	case *Timestamp:
		if val == nil {
			return Timestamp{}, false
		}
		return *val, true
	case time.Time:
		return NewTimestamp(val), true
	case string:
		t, err := time.Parse(time.RFC3339Nano, val)
		if err != nil {
			return Timestamp{}, false
		}
		return NewTimestamp(t), true
	case map[string]any:
		secs, ok := val["seconds"].(float64)
		if !ok {
			return Timestamp{}, false
		}
		nanos, _ := val["nanoseconds"].(float64)
		return Timestamp{Seconds: int64(secs), Nanoseconds: int64(nanos)}, true
	}
	return Timestamp{}, false
}

// Normalize converts arbitrary document data into its JSON map form.
func Normalize(data any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWrite, err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: document must be an object", ErrInvalidWrite)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}
