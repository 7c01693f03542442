package docstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================
// Timestamp Tests
// ============================================

func TestTimestamp_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 123000000, time.UTC)

	ts := NewTimestamp(now)

	assert.Equal(t, now.Unix(), ts.Seconds)
	assert.Equal(t, int64(123000000), ts.Nanoseconds)
	assert.True(t, now.Equal(ts.ToDate()))
}

func TestTimestampFromValue(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	want := NewTimestamp(now)

	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"timestamp", want, true},
		{"pointer", &want, true},
		{"time", now, true},
		{"rfc3339", "2024-03-05T12:00:00Z", true},
		{"stored map", map[string]any{"seconds": float64(want.Seconds), "nanoseconds": float64(0)}, true},
		{"garbage string", "yesterday", false},
		{"number", 12.5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := TimestampFromValue(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, want, got)
			}
		})
	}
}

// ============================================
// Matching Tests
// ============================================

func TestMatches_NestedField(t *testing.T) {
	data := map[string]any{"address": map[string]any{"line1": "1 Main St"}}

	assert.True(t, matches(data, []Where{{"address.line1", OpEqual, "1 Main St"}}))
	assert.False(t, matches(data, []Where{{"address.city", OpEqual, "x"}}))
}

func TestMatches_MixedTypesAreNotEqual(t *testing.T) {
	data := map[string]any{"userId": "1"}

	assert.False(t, matches(data, []Where{{"userId", OpEqual, float64(1)}}))
	assert.True(t, matches(data, []Where{{"userId", OpNotEqual, float64(1)}}))
}

func TestSortDocuments_MissingFieldLast(t *testing.T) {
	docs := []Document{
		{ID: "none", Data: map[string]any{}},
		{ID: "low", Data: map[string]any{"n": 1.0}},
		{ID: "high", Data: map[string]any{"n": 5.0}},
	}

	sortDocuments(docs, &OrderBy{"n", Desc})

	assert.Equal(t, []string{"high", "low", "none"}, ids(docs))
}

func TestContainmentFilter(t *testing.T) {
	where, err := normalizeWhere([]Where{
		{"userId", OpEqual, "u1"},
		{"address.country", OpEqual, "NL"},
		{"total", OpGreater, 5},
		{"items", OpEqual, []any{1}},
	})
	require.NoError(t, err)

	got := containmentFilter(where)

	assert.Equal(t, map[string]any{
		"userId":  "u1",
		"address": map[string]any{"country": "NL"},
	}, got)
	assert.Nil(t, containmentFilter(nil))
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(struct {
		A int       `json:"a"`
		T Timestamp `json:"t"`
	}{A: 3, T: Timestamp{Seconds: 10}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": 3.0, "t": map[string]any{"seconds": 10.0, "nanoseconds": 0.0}}, got)

	_, err = Normalize([]int{1, 2})
	assert.ErrorIs(t, err, ErrInvalidWrite)
}

func TestDocument_DataTo(t *testing.T) {
	doc := Document{ID: "x", Data: map[string]any{"userId": "u1", "total": 12.5}}

	var out orderDoc
	require.NoError(t, doc.DataTo(&out))

	assert.Equal(t, "u1", out.UserID)
	assert.Equal(t, 12.5, out.Total)
}

// ============================================
// Polling Tests
// ============================================

func TestPollQuery_EmitsOnlyOnChange(t *testing.T) {
	var calls atomic.Int32
	var emissions atomic.Int32
	query := func(ctx context.Context) ([]Document, error) {
		n := calls.Add(1)
		if n < 3 {
			return []Document{{ID: "a"}}, nil
		}
		return []Document{{ID: "a"}, {ID: "b"}}, nil
	}

	stop := pollQuery(context.Background(), 5*time.Millisecond, query, func([]Document) { emissions.Add(1) }, nil)
	defer stop()

	require.Eventually(t, func() bool { return calls.Load() >= 4 }, time.Second, time.Millisecond)
	assert.Equal(t, int32(2), emissions.Load())
}

func TestPollQuery_ReportsErrors(t *testing.T) {
	boom := errors.New("boom")
	var errs atomic.Int32

	stop := pollQuery(context.Background(), 5*time.Millisecond,
		func(ctx context.Context) ([]Document, error) { return nil, boom },
		func([]Document) { t.Error("unexpected emission") },
		func(err error) {
			if errors.Is(err, boom) {
				errs.Add(1)
			}
		})
	defer stop()

	require.Eventually(t, func() bool { return errs.Load() >= 2 }, time.Second, time.Millisecond)
}
