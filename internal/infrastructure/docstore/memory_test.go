package docstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orderDoc struct {
	UserID    string    `json:"userId"`
	Status    string    `json:"status"`
	Total     float64   `json:"total"`
	CreatedAt Timestamp `json:"createdAt"`
}

func seedOrders(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	writes := []Write{
		{Kind: WriteSet, Collection: "orders", ID: "a", Data: orderDoc{UserID: "u1", Status: "processing", Total: 10, CreatedAt: NewTimestamp(base)}},
		{Kind: WriteSet, Collection: "orders", ID: "b", Data: orderDoc{UserID: "u2", Status: "shipped", Total: 20, CreatedAt: NewTimestamp(base.Add(time.Hour))}},
		{Kind: WriteSet, Collection: "orders", ID: "c", Data: orderDoc{UserID: "u1", Status: "shipped", Total: 30, CreatedAt: NewTimestamp(base.Add(2 * time.Hour))}},
	}
	require.NoError(t, s.AtomicMultiWrite(ctx, writes))
}

func ids(docs []Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.ID)
	}
	return out
}

// ============================================
// CRUD Tests
// ============================================

func TestMemoryStore_AddAndGet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.AddDocument(ctx, "products", map[string]any{"title": "Widget", "price": 9.99})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	doc, err := s.GetDocumentByID(ctx, "products", id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID)
	assert.Equal(t, "Widget", doc.Data["title"])
	assert.Equal(t, 9.99, doc.Data["price"])
}

func TestMemoryStore_GetDocumentByID_NotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetDocumentByID(context.Background(), "orders", "missing")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_GetDocuments_InsertionOrder(t *testing.T) {
	s := NewMemoryStore()
	seedOrders(t, s)

	docs, err := s.GetDocuments(context.Background(), "orders")

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(docs))
}

func TestMemoryStore_UpdateDocument_MergesTopLevel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedOrders(t, s)

	err := s.UpdateDocument(ctx, "orders", "a", map[string]any{"status": "cancelled"})
	require.NoError(t, err)

	doc, err := s.GetDocumentByID(ctx, "orders", "a")
	require.NoError(t, err)
	assert.Equal(t, "cancelled", doc.Data["status"])
	assert.Equal(t, "u1", doc.Data["userId"])
}

func TestMemoryStore_UpdateDocument_Missing(t *testing.T) {
	s := NewMemoryStore()

	err := s.UpdateDocument(context.Background(), "orders", "nope", map[string]any{"status": "x"})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ReturnedDataIsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedOrders(t, s)

	doc, err := s.GetDocumentByID(ctx, "orders", "a")
	require.NoError(t, err)
	doc.Data["status"] = "tampered"

	again, err := s.GetDocumentByID(ctx, "orders", "a")
	require.NoError(t, err)
	assert.Equal(t, "processing", again.Data["status"])
}

// ============================================
// Query Tests
// ============================================

func TestMemoryStore_QueryDocuments(t *testing.T) {
	s := NewMemoryStore()
	seedOrders(t, s)

	tests := []struct {
		name    string
		where   []Where
		orderBy *OrderBy
		want    []string
	}{
		{"equality", []Where{{"userId", OpEqual, "u1"}}, nil, []string{"a", "c"}},
		{"equality desc by timestamp", []Where{{"userId", OpEqual, "u1"}}, &OrderBy{"createdAt", Desc}, []string{"c", "a"}},
		{"range", []Where{{"total", OpGreaterEqual, 20}}, nil, []string{"b", "c"}},
		{"not equal", []Where{{"status", OpNotEqual, "shipped"}}, nil, []string{"a"}},
		{"combined", []Where{{"userId", OpEqual, "u1"}, {"total", OpLess, 15}}, nil, []string{"a"}},
		{"order by number desc", nil, &OrderBy{"total", Desc}, []string{"c", "b", "a"}},
		{"no match", []Where{{"userId", OpEqual, "nobody"}}, nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.QueryDocuments(context.Background(), "orders", tt.where, tt.orderBy)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(docs))
		})
	}
}

func TestMemoryStore_QueryDocuments_BadOperator(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.QueryDocuments(context.Background(), "orders", []Where{{"x", Op("~"), 1}}, nil)

	assert.ErrorIs(t, err, ErrInvalidQuery)
}

// ============================================
// AtomicMultiWrite Tests
// ============================================

func TestMemoryStore_AtomicMultiWrite_AllOrNothing(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.AtomicMultiWrite(ctx, []Write{
		{Kind: WriteSet, Collection: "orders", ID: "x", Data: map[string]any{"a": 1}},
		{Kind: WriteUpdate, Collection: "userCarts", ID: "missing", Data: map[string]any{"items": []any{}}},
	})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetDocumentByID(ctx, "orders", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_AtomicMultiWrite_UpdateSeesEarlierSet(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.AtomicMultiWrite(ctx, []Write{
		{Kind: WriteSet, Collection: "userCarts", ID: "u1", Data: map[string]any{"items": []any{1}}},
		{Kind: WriteUpdate, Collection: "userCarts", ID: "u1", Data: map[string]any{"updatedAt": "now"}},
	})
	require.NoError(t, err)

	doc, err := s.GetDocumentByID(ctx, "userCarts", "u1")
	require.NoError(t, err)
	assert.Equal(t, "now", doc.Data["updatedAt"])
	assert.Len(t, doc.Data["items"], 1)
}

func TestMemoryStore_AtomicMultiWrite_Validation(t *testing.T) {
	s := NewMemoryStore()

	err := s.AtomicMultiWrite(context.Background(), []Write{{Kind: WriteSet, Collection: "orders"}})

	assert.ErrorIs(t, err, ErrInvalidWrite)
}

// ============================================
// Subscription Tests
// ============================================

type recorder struct {
	mu       sync.Mutex
	emission [][]string
}

func (r *recorder) onNext(docs []Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emission = append(r.emission, ids(docs))
}

func (r *recorder) last() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.emission) == 0 {
		return nil
	}
	return r.emission[len(r.emission)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.emission)
}

func TestMemoryStore_SubscribeToQuery(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedOrders(t, s)
	rec := &recorder{}

	unsubscribe, err := s.SubscribeToQuery(ctx, "orders", []Where{{"userId", OpEqual, "u1"}}, &OrderBy{"createdAt", Desc}, rec.onNext, nil)
	require.NoError(t, err)
	defer unsubscribe()

	require.Eventually(t, func() bool { return assert.ObjectsAreEqual([]string{"c", "a"}, rec.last()) }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.AtomicMultiWrite(ctx, []Write{{Kind: WriteSet, Collection: "orders", ID: "d", Data: orderDoc{
		UserID: "u1", Status: "processing", CreatedAt: NewTimestamp(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
	}}}))

	require.Eventually(t, func() bool { return assert.ObjectsAreEqual([]string{"d", "c", "a"}, rec.last()) }, time.Second, 5*time.Millisecond)
}

func TestMemoryStore_SubscribeToQuery_Unsubscribe(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rec := &recorder{}

	unsubscribe, err := s.SubscribeToQuery(ctx, "orders", nil, nil, rec.onNext, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	unsubscribe()
	unsubscribe()
	seedOrders(t, s)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestMemoryStore_SubscribeToQuery_OtherCollectionIgnored(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rec := &recorder{}

	unsubscribe, err := s.SubscribeToQuery(ctx, "orders", nil, nil, rec.onNext, nil)
	require.NoError(t, err)
	defer unsubscribe()
	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)

	_, err = s.AddDocument(ctx, "users", map[string]any{"name": "x"})
	require.NoError(t, err)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}
