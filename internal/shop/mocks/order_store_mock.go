package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/storefront/internal/domain/order"
)

// MockOrderStore is a synchronous in-memory shop.OrderStore for testing.
// Subscription emissions are driven by the test through Emit.
type MockOrderStore struct {
	mu     sync.Mutex
	orders map[string]order.Order
	nextID int
	onNext func([]order.Order)

	UpdateStatusErr error
	ListErr         error

	// For tracking calls in tests
	SaveCalls         []SaveCall
	UpdateStatusCalls []UpdateStatusCall
	PutCalls          []order.Order
	SubscribeCalls    []string
	Unsubscribes      int
}

// SaveCall records parameters passed to Save
type SaveCall struct {
	Order     order.Order
	ResetCart bool
}

// UpdateStatusCall records parameters passed to UpdateStatus
type UpdateStatusCall struct {
	ID     string
	Status order.Status
}

// NewMockOrderStore creates a new MockOrderStore
func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{orders: make(map[string]order.Order)}
}

func (m *MockOrderStore) Save(ctx context.Context, o order.Order, resetCart bool) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	o.ID = fmt.Sprintf("doc-%d", m.nextID)
	m.SaveCalls = append(m.SaveCalls, SaveCall{Order: o, ResetCart: resetCart})
	m.orders[o.ID] = o.Clone()
	return o.ID
}

func (m *MockOrderStore) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateStatusCalls = append(m.UpdateStatusCalls, UpdateStatusCall{ID: id, Status: status})
	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.Status = status
	m.orders[id] = o
	return nil
}

func (m *MockOrderStore) Put(o order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls = append(m.PutCalls, o.Clone())
}

func (m *MockOrderStore) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []order.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	return out, nil
}

func (m *MockOrderStore) Subscribe(ctx context.Context, userID string, onNext func([]order.Order), onError func(error)) func() {
	m.mu.Lock()
	m.SubscribeCalls = append(m.SubscribeCalls, userID)
	m.onNext = onNext
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.Unsubscribes++
			m.onNext = nil
			m.mu.Unlock()
		})
	}
}

func (m *MockOrderStore) Cached(userID string) []order.Order {
	return nil
}

// Seed stores orders as if they had been saved earlier
func (m *MockOrderStore) Seed(orders ...order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range orders {
		m.orders[o.ID] = o.Clone()
	}
}

// Emit delivers orders to the active subscription, if any
func (m *MockOrderStore) Emit(orders []order.Order) {
	m.mu.Lock()
	onNext := m.onNext
	m.mu.Unlock()

	if onNext != nil {
		onNext(orders)
	}
}

// Stored returns the persisted copy of an order
func (m *MockOrderStore) Stored(id string) (order.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	return o, ok
}
