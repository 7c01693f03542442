package mocks

import (
	"context"
	"sync"

	"github.com/example/storefront/internal/infrastructure/docstore"
)

// MockStore is a docstore.Store backed by a MemoryStore with call recording
// and per-operation error injection.
type MockStore struct {
	mu    sync.Mutex
	inner *docstore.MemoryStore

	// Errors returned instead of delegating when set
	AddErr        error
	GetErr        error
	UpdateErr     error
	QueryErr      error
	SubscribeErr  error
	MultiWriteErr error
	// SubscriptionErr is delivered through onError right after subscribing
	SubscriptionErr error

	// For tracking calls in tests
	UpdateCalls     []UpdateCall
	QueryCalls      []QueryCall
	MultiWriteCalls [][]docstore.Write
	SubscribeCalls  []QueryCall
	Unsubscribes    int
}

// UpdateCall records parameters passed to UpdateDocument
type UpdateCall struct {
	Collection string
	ID         string
	Partial    map[string]any
}

// QueryCall records parameters passed to QueryDocuments or SubscribeToQuery
type QueryCall struct {
	Collection string
	Where      []docstore.Where
	OrderBy    *docstore.OrderBy
}

// NewMockStore creates a new MockStore
func NewMockStore() *MockStore {
	return &MockStore{inner: docstore.NewMemoryStore()}
}

// Inner exposes the backing store for seeding data.
func (m *MockStore) Inner() *docstore.MemoryStore {
	return m.inner
}

func (m *MockStore) AddDocument(ctx context.Context, collection string, data any) (string, error) {
	if err := m.err(func() error { return m.AddErr }); err != nil {
		return "", err
	}
	return m.inner.AddDocument(ctx, collection, data)
}

func (m *MockStore) GetDocuments(ctx context.Context, collection string) ([]docstore.Document, error) {
	if err := m.err(func() error { return m.GetErr }); err != nil {
		return nil, err
	}
	return m.inner.GetDocuments(ctx, collection)
}

func (m *MockStore) GetDocumentByID(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if err := m.err(func() error { return m.GetErr }); err != nil {
		return nil, err
	}
	return m.inner.GetDocumentByID(ctx, collection, id)
}

func (m *MockStore) UpdateDocument(ctx context.Context, collection, id string, partial map[string]any) error {
	m.mu.Lock()
	m.UpdateCalls = append(m.UpdateCalls, UpdateCall{Collection: collection, ID: id, Partial: partial})
	err := m.UpdateErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.inner.UpdateDocument(ctx, collection, id, partial)
}

func (m *MockStore) QueryDocuments(ctx context.Context, collection string, where []docstore.Where, orderBy *docstore.OrderBy) ([]docstore.Document, error) {
	m.mu.Lock()
	m.QueryCalls = append(m.QueryCalls, QueryCall{Collection: collection, Where: where, OrderBy: orderBy})
	err := m.QueryErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.QueryDocuments(ctx, collection, where, orderBy)
}

func (m *MockStore) SubscribeToQuery(ctx context.Context, collection string, where []docstore.Where, orderBy *docstore.OrderBy, onNext func([]docstore.Document), onError func(error)) (func(), error) {
	m.mu.Lock()
	m.SubscribeCalls = append(m.SubscribeCalls, QueryCall{Collection: collection, Where: where, OrderBy: orderBy})
	err := m.SubscribeErr
	asyncErr := m.SubscriptionErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if asyncErr != nil {
		go onError(asyncErr)
		return m.countUnsubscribe(func() {}), nil
	}

	unsubscribe, err := m.inner.SubscribeToQuery(ctx, collection, where, orderBy, onNext, onError)
	if err != nil {
		return nil, err
	}
	return m.countUnsubscribe(unsubscribe), nil
}

func (m *MockStore) AtomicMultiWrite(ctx context.Context, writes []docstore.Write) error {
	m.mu.Lock()
	m.MultiWriteCalls = append(m.MultiWriteCalls, writes)
	err := m.MultiWriteErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.inner.AtomicMultiWrite(ctx, writes)
}

// Reset clears injected errors and recorded calls
func (m *MockStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddErr, m.GetErr, m.UpdateErr, m.QueryErr = nil, nil, nil, nil
	m.SubscribeErr, m.MultiWriteErr, m.SubscriptionErr = nil, nil, nil
	m.UpdateCalls = nil
	m.QueryCalls = nil
	m.MultiWriteCalls = nil
	m.SubscribeCalls = nil
	m.Unsubscribes = 0
}

// SetFailing makes every operation return err.
func (m *MockStore) SetFailing(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddErr, m.GetErr, m.UpdateErr, m.QueryErr = err, err, err, err
	m.SubscribeErr, m.MultiWriteErr = err, err
}

// MultiWriteCount returns the number of AtomicMultiWrite calls so far.
func (m *MockStore) MultiWriteCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.MultiWriteCalls)
}

// UpdateCount returns the number of UpdateDocument calls so far.
func (m *MockStore) UpdateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.UpdateCalls)
}

func (m *MockStore) countUnsubscribe(fn func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.Unsubscribes++
			m.mu.Unlock()
			fn()
		})
	}
}

func (m *MockStore) err(get func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return get()
}
