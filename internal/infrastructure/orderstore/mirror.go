package orderstore

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/order"
)

// FallbackPrefix marks ids minted when the document store rejected a write.
const FallbackPrefix = "order-"

// IsFallbackID reports whether id was minted locally.
func IsFallbackID(id string) bool {
	return strings.HasPrefix(id, FallbackPrefix)
}

// Primary is the authoritative order backend.
type Primary interface {
	Save(ctx context.Context, o order.Order, resetCart bool) (string, error)
	UpdateStatus(ctx context.Context, id string, status order.Status) error
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
	Subscribe(ctx context.Context, userID string, onNext func([]order.Order), onError func(error)) (func(), error)
}

// Mirror writes through to the primary and keeps the cache in step. Writes
// and reads degrade to the cache; status updates do not.
type Mirror struct {
	primary Primary
	cache   *CacheRepository
	now     func() time.Time

	mu           sync.Mutex
	lastFallback int64
}

func NewMirror(primary Primary, cache *CacheRepository) *Mirror {
	return &Mirror{primary: primary, cache: cache, now: time.Now}
}

// Save never fails. When the primary write fails the order is kept in the
// cache only under a locally minted id.
func (m *Mirror) Save(ctx context.Context, o order.Order, resetCart bool) string {
	id, err := m.primary.Save(ctx, o, resetCart)
	if err != nil {
		id = m.fallbackID()
		log.Printf("[Orders] Document store write failed, keeping order %s locally: %v", id, err)
	}
	o.ID = id
	if err := m.cache.Put(o); err != nil {
		log.Printf("[Orders] Failed to mirror order %s to cache: %v", id, err)
	}
	return id
}

// fallbackID returns order-<unix millis>, bumped so ids minted within the
// same millisecond stay unique.
func (m *Mirror) fallbackID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ms := m.now().UnixMilli()
	if ms <= m.lastFallback {
		ms = m.lastFallback + 1
	}
	m.lastFallback = ms
	return fmt.Sprintf("%s%d", FallbackPrefix, ms)
}

// UpdateStatus writes the primary first and only mirrors on success.
func (m *Mirror) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	if err := m.primary.UpdateStatus(ctx, id, status); err != nil {
		return err
	}
	if _, err := m.cache.UpdateStatus(id, status); err != nil {
		log.Printf("[Orders] Failed to mirror status of %s to cache: %v", id, err)
	}
	return nil
}

// Put updates the cached copy only.
func (m *Mirror) Put(o order.Order) {
	if err := m.cache.Put(o); err != nil {
		log.Printf("[Orders] Failed to mirror order %s to cache: %v", o.ID, err)
	}
}

// Cached returns the user's cached orders, or nil when the cache is unreadable.
func (m *Mirror) Cached(userID string) []order.Order {
	orders, err := m.cache.ListByUser(userID)
	if err != nil {
		log.Printf("[Orders] Failed to read cached orders: %v", err)
		return nil
	}
	return orders
}

// ListByUser prefers the primary and falls back to the cache when the
// primary fails or has nothing for the user.
func (m *Mirror) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	orders, err := m.primary.ListByUser(ctx, userID)
	if err != nil {
		log.Printf("[Orders] Document store read failed, using cache: %v", err)
		return m.cache.ListByUser(userID)
	}
	if len(orders) == 0 {
		return m.cache.ListByUser(userID)
	}
	return m.reconcile(userID, orders), nil
}

// Subscribe relays primary emissions after mirroring them. Subscription
// failures are reported through onError and answered with the cached orders.
func (m *Mirror) Subscribe(ctx context.Context, userID string, onNext func([]order.Order), onError func(error)) func() {
	fallback := func(err error) {
		log.Printf("[Orders] Order subscription failed, using cache: %v", err)
		if onError != nil {
			onError(err)
		}
		onNext(m.Cached(userID))
	}

	unsubscribe, err := m.primary.Subscribe(ctx, userID,
		func(orders []order.Order) {
			if len(orders) == 0 {
				onNext(orders)
				return
			}
			onNext(m.reconcile(userID, orders))
		},
		fallback,
	)
	if err != nil {
		fallback(err)
		return func() {}
	}
	return unsubscribe
}

// reconcile stores the primary's view of the user's orders in the cache,
// keeping locally minted orders the primary has never seen.
func (m *Mirror) reconcile(userID string, orders []order.Order) []order.Order {
	merged := make([]order.Order, 0, len(orders))
	seen := make(map[string]bool, len(orders))
	for _, o := range orders {
		if o.UserID == "" {
			o.UserID = userID
		}
		seen[o.ID] = true
		merged = append(merged, o)
	}
	for _, o := range m.Cached(userID) {
		if IsFallbackID(o.ID) && !seen[o.ID] {
			merged = append(merged, o)
		}
	}
	if err := m.cache.ReplaceUser(userID, merged); err != nil {
		log.Printf("[Orders] Failed to mirror orders to cache: %v", err)
	}
	return merged
}
