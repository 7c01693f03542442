package shop

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/localcache"
	"github.com/example/storefront/internal/session"
)

// OrderStore persists orders. Saves never fail; a store that cannot reach
// its backend assigns a local id instead.
type OrderStore interface {
	Save(ctx context.Context, o order.Order, resetCart bool) string
	UpdateStatus(ctx context.Context, id string, status order.Status) error
	Put(o order.Order)
	ListByUser(ctx context.Context, userID string) ([]order.Order, error)
	Subscribe(ctx context.Context, userID string, onNext func([]order.Order), onError func(error)) func()
	Cached(userID string) []order.Order
}

// Publisher receives order lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Identity is the part of the session the shop follows.
type Identity interface {
	CurrentUser() *session.User
	OnChange(fn func(*session.User)) func()
}

// Shop holds the catalog, the cart and the signed-in user's orders.
type Shop struct {
	fetcher   catalog.Fetcher
	orders    OrderStore
	cache     localcache.Cache
	identity  Identity
	publisher Publisher
	now       func() time.Time

	mu               sync.Mutex
	products         []catalog.Product
	filtered         []catalog.Product
	categories       []string
	selectedCategory string
	searchQuery      string
	catalogErr       string
	loading          bool
	cart             *cart.Cart
	orderList        []order.Order
	user             *session.User
	generation       uint64
	stopOrders       func()
	watchers         map[int]func()
	nextWatcher      int

	stopIdentity func()
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// New restores the cached cart and starts following the identity. publisher
// may be nil.
func New(fetcher catalog.Fetcher, orders OrderStore, cache localcache.Cache, identity Identity, publisher Publisher) *Shop {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Shop{
		fetcher:          fetcher,
		orders:           orders,
		cache:            cache,
		identity:         identity,
		publisher:        publisher,
		now:              time.Now,
		selectedCategory: catalog.AllCategories,
		categories:       []string{catalog.AllCategories},
		cart:             loadCart(cache),
		watchers:         make(map[int]func()),
		ctx:              ctx,
		cancel:           cancel,
	}

	s.stopIdentity = identity.OnChange(s.handleUserChanged)
	s.handleUserChanged(identity.CurrentUser())
	return s
}

// Close stops the order subscription and waits for background refreshes.
func (s *Shop) Close() {
	if s.stopIdentity != nil {
		s.stopIdentity()
	}

	s.mu.Lock()
	s.generation++
	stop := s.stopOrders
	s.stopOrders = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.cancel()
	s.wg.Wait()
}

// handleUserChanged swaps the order subscription when the signed-in user
// changes. Profile edits of the same user keep the subscription.
func (s *Shop) handleUserChanged(user *session.User) {
	s.mu.Lock()
	if user != nil && s.user != nil && user.ID == s.user.ID {
		s.user = user
		s.mu.Unlock()
		return
	}
	if user == nil && s.user == nil && s.generation > 0 {
		s.mu.Unlock()
		return
	}

	s.generation++
	gen := s.generation
	stop := s.stopOrders
	s.stopOrders = nil
	s.user = user
	s.orderList = nil
	s.mu.Unlock()

	if stop != nil {
		log.Printf("[Shop] Cleaning up orders subscription")
		stop()
	}

	if user != nil {
		if cached := s.orders.Cached(user.ID); len(cached) > 0 {
			log.Printf("[Shop] Loaded %d cached orders", len(cached))
			s.mu.Lock()
			if gen == s.generation && len(s.orderList) == 0 {
				s.orderList = cached
			}
			s.mu.Unlock()
		}

		log.Printf("[Shop] Setting up orders subscription for user %s", user.ID)
		unsubscribe := s.orders.Subscribe(s.ctx, user.ID,
			func(orders []order.Order) { s.applyEmission(gen, orders) },
			func(err error) { log.Printf("[Shop] Orders subscription error: %v", err) },
		)

		s.mu.Lock()
		if gen == s.generation {
			s.stopOrders = unsubscribe
			unsubscribe = nil
		}
		s.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
	}

	s.notify()
}

// applyEmission replaces the order list with a non-empty emission from the
// subscription that belongs to generation gen.
func (s *Shop) applyEmission(gen uint64, orders []order.Order) {
	if len(orders) == 0 {
		return
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.orderList = cloneOrders(orders)
	s.mu.Unlock()

	log.Printf("[Shop] Received %d orders from subscription", len(orders))
	s.notify()
}

// Watch registers fn to run after every state change and returns a func
// that removes it.
func (s *Shop) Watch(fn func()) func() {
	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

func (s *Shop) notify() {
	s.mu.Lock()
	watchers := make([]func(), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.mu.Unlock()

	for _, fn := range watchers {
		fn()
	}
}

func (s *Shop) publish(ctx context.Context, eventType, orderID, userID string, payload any) {
	if s.publisher == nil {
		return
	}
	event, err := order.NewEvent(eventType, orderID, userID, payload)
	if err != nil {
		log.Printf("[Shop] Failed to build %s event: %v", eventType, err)
		return
	}
	if err := s.publisher.Publish(ctx, userID, event); err != nil {
		log.Printf("[Shop] Failed to publish %s for order %s: %v", eventType, orderID, err)
	}
}

func cloneOrders(orders []order.Order) []order.Order {
	out := make([]order.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
