package orderstore

import (
	"log"
	"sync"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/localcache"
)

// CacheRepository keeps every user's orders in one list under the "orders"
// cache key. Reads filter by user id.
type CacheRepository struct {
	mu    sync.Mutex
	cache localcache.Cache
}

func NewCacheRepository(cache localcache.Cache) *CacheRepository {
	return &CacheRepository{cache: cache}
}

// load reads an undecodable entry as empty.
func (r *CacheRepository) load() ([]order.Order, error) {
	var orders []order.Order
	if _, err := r.cache.Get(localcache.KeyOrders, &orders); err != nil {
		log.Printf("[OrderCache] Discarding unreadable orders cache: %v", err)
		return nil, nil
	}
	return orders, nil
}

// Put inserts o or replaces the cached order with the same id.
func (r *CacheRepository) Put(o order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	orders, err := r.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range orders {
		if orders[i].ID == o.ID {
			orders[i] = o
			replaced = true
			break
		}
	}
	if !replaced {
		orders = append(orders, o)
	}
	return r.cache.Set(localcache.KeyOrders, orders)
}

// UpdateStatus reports whether a cached order with id was found.
func (r *CacheRepository) UpdateStatus(id string, status order.Status) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orders, err := r.load()
	if err != nil {
		return false, err
	}
	for i := range orders {
		if orders[i].ID == id {
			orders[i].Status = status
			return true, r.cache.Set(localcache.KeyOrders, orders)
		}
	}
	return false, nil
}

func (r *CacheRepository) ListByUser(userID string) ([]order.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orders, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]order.Order, 0, len(orders))
	for _, o := range orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}

// ReplaceUser swaps the cached orders of userID for orders, leaving other
// users' entries untouched.
func (r *CacheRepository) ReplaceUser(userID string, orders []order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.load()
	if err != nil {
		return err
	}
	next := make([]order.Order, 0, len(current)+len(orders))
	for _, o := range current {
		if o.UserID != userID {
			next = append(next, o)
		}
	}
	for _, o := range orders {
		if o.UserID == "" {
			o.UserID = userID
		}
		next = append(next, o)
	}
	return r.cache.Set(localcache.KeyOrders, next)
}
