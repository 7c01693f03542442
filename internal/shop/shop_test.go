package shop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/identity"
	idmocks "github.com/example/storefront/internal/identity/mocks"
	"github.com/example/storefront/internal/infrastructure/docstore"
	"github.com/example/storefront/internal/infrastructure/docstore/mocks"
	"github.com/example/storefront/internal/infrastructure/localcache"
	"github.com/example/storefront/internal/infrastructure/orderstore"
	"github.com/example/storefront/internal/session"
	shopmocks "github.com/example/storefront/internal/shop/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = errors.New("backend unavailable")

var (
	widget = catalog.Product{ID: 1, Title: "Widget", Price: 9.99, Description: "A useful widget", Category: "tools", Image: "w.png"}
	shirt  = catalog.Product{ID: 2, Title: "Cotton Shirt", Price: 5, Description: "Soft and light", Category: "clothing", Image: "s.png"}
	hammer = catalog.Product{ID: 3, Title: "Hammer", Price: 12.5, Description: "Drives nails, not WIDGETS", Category: "tools", Image: "h.png"}
)

type stubFetcher struct {
	products []catalog.Product
	err      error
}

func (f stubFetcher) FetchProducts(ctx context.Context) ([]catalog.Product, error) {
	return f.products, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	keys   []string
	events []order.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.events = append(p.events, event.(order.Event))
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	shop      *Shop
	store     *shopmocks.MockOrderStore
	provider  *idmocks.MockProvider
	publisher *recordingPublisher
	cache     localcache.Cache
}

var testUser = &identity.Identity{UID: "u1", Email: "ada@example.com", DisplayName: "Ada"}

func newFixture(t *testing.T, user *identity.Identity, seedCart ...cart.Item) *fixture {
	t.Helper()
	cache := localcache.NewMemoryCache()
	if len(seedCart) > 0 {
		require.NoError(t, cache.Set(localcache.KeyCart, seedCart))
	}
	provider := idmocks.NewMockProvider(user)
	sess := session.New(provider, cache)
	store := shopmocks.NewMockOrderStore()
	publisher := &recordingPublisher{}

	s := New(stubFetcher{products: []catalog.Product{widget, shirt, hammer}}, store, cache, sess, publisher)
	t.Cleanup(func() {
		s.Close()
		sess.Close()
	})
	return &fixture{shop: s, store: store, provider: provider, publisher: publisher, cache: cache}
}

func statusOf(t *testing.T, s *Shop, id string) order.Status {
	t.Helper()
	o, ok := s.Order(id)
	require.True(t, ok, "order %s not found", id)
	return o.Status
}

func testOrder(id string, status order.Status, address order.Address, items ...order.Item) order.Order {
	return order.Order{
		ID:      id,
		Items:   items,
		Total:   order.CalculateTotal(items),
		Status:  status,
		UserID:  "u1",
		Address: address,
	}
}

// ============================================
// Catalog Tests
// ============================================

func TestLoadCatalog(t *testing.T) {
	f := newFixture(t, nil)

	f.shop.LoadCatalog(context.Background())

	assert.Empty(t, f.shop.CatalogError())
	assert.Len(t, f.shop.Products(), 3)
	assert.Equal(t, []string{"all", "tools", "clothing"}, f.shop.Categories())
	assert.Len(t, f.shop.FilteredProducts(), 3)
	assert.False(t, f.shop.IsLoading())
}

func TestLoadCatalog_Failure(t *testing.T) {
	cache := localcache.NewMemoryCache()
	sess := session.New(idmocks.NewMockProvider(nil), cache)
	defer sess.Close()
	s := New(stubFetcher{err: errUnavailable}, shopmocks.NewMockOrderStore(), cache, sess, nil)
	defer s.Close()

	s.LoadCatalog(context.Background())

	assert.Equal(t, "Failed to fetch products", s.CatalogError())
	assert.Empty(t, s.Products())
	assert.Empty(t, s.FilteredProducts())
	assert.Equal(t, []string{"all"}, s.Categories())
}

func TestFilterProducts(t *testing.T) {
	f := newFixture(t, nil)
	f.shop.LoadCatalog(context.Background())

	tests := []struct {
		name     string
		category string
		search   string
		wantIDs  []int
	}{
		{"all passes everything", "all", "", []int{1, 2, 3}},
		{"category only", "tools", "", []int{1, 3}},
		{"title match", "all", "shirt", []int{2}},
		{"description match is case-insensitive", "all", "widget", []int{1, 3}},
		{"category and search", "clothing", "widget", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := f.shop.FilterProducts(tt.category, tt.search)

			var ids []int
			for _, p := range got {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Len(t, f.shop.Products(), 3)
		})
	}
}

func TestSetSearchQuery_RefiltersWithCategory(t *testing.T) {
	f := newFixture(t, nil)
	f.shop.LoadCatalog(context.Background())

	f.shop.SetSelectedCategory("tools")
	f.shop.SetSearchQuery("hammer")

	require.Len(t, f.shop.FilteredProducts(), 1)
	assert.Equal(t, 3, f.shop.FilteredProducts()[0].ID)
	assert.Equal(t, "tools", f.shop.SelectedCategory())
	assert.Equal(t, "hammer", f.shop.SearchQuery())
}

// ============================================
// Cart Tests
// ============================================

func TestAddToCart_AccumulatesAndPersists(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	require.NoError(t, f.shop.AddToCart(ctx, widget, 2))
	require.NoError(t, f.shop.AddToCart(ctx, widget, 3))

	items := f.shop.Cart()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, 49.95, f.shop.CartTotal())

	var cached []cart.Item
	ok, err := f.cache.Get(localcache.KeyCart, &cached)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, items, cached)

	assert.Empty(t, f.store.SaveCalls)
}

func TestAddToCart_InvalidQuantity(t *testing.T) {
	f := newFixture(t, testUser)

	err := f.shop.AddToCart(context.Background(), widget, 0)

	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
	assert.Empty(t, f.shop.Cart())
	assert.Empty(t, f.store.SaveCalls)
}

func TestNew_RestoresCachedCart(t *testing.T) {
	f := newFixture(t, nil, cart.Item{ProductID: 2, Quantity: 4, Price: 5, Title: "Cotton Shirt"})

	require.Len(t, f.shop.Cart(), 1)
	assert.Equal(t, 20.0, f.shop.CartTotal())
}

func TestAddToCart_SignedInCreatesTwoOrders(t *testing.T) {
	f := newFixture(t, testUser)

	require.NoError(t, f.shop.AddToCart(context.Background(), widget, 2))

	assert.Equal(t, []cart.Item{{ProductID: 1, Quantity: 2, Price: 9.99, Title: "Widget", Image: "w.png"}}, f.shop.Cart())

	orders := f.shop.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, order.StatusProcessing, orders[0].Status)
	assert.Equal(t, order.StatusShipped, orders[1].Status)
	for _, o := range orders {
		assert.Equal(t, 19.98, o.Total)
		assert.Equal(t, "Ada", o.CustomerName)
		assert.Equal(t, order.SourceAuto, o.Source)
		assert.False(t, o.Address.IsComplete())
	}

	require.Len(t, f.store.SaveCalls, 2)
	assert.False(t, f.store.SaveCalls[0].ResetCart)
	assert.False(t, f.store.SaveCalls[1].ResetCart)
	require.Len(t, f.shop.LiveOrders(), 1)
}

func TestAddToCart_DefaultCustomerName(t *testing.T) {
	f := newFixture(t, &identity.Identity{UID: "u1", Email: "anon@example.com"})

	require.NoError(t, f.shop.AddToCart(context.Background(), widget, 1))

	for _, o := range f.shop.Orders() {
		assert.Equal(t, "Customer", o.CustomerName)
	}
}

func TestRemoveFromCart_PropagatesToOrders(t *testing.T) {
	p1 := order.Item{ProductID: 1, Quantity: 2, Price: 10, Title: "One"}
	p2 := order.Item{ProductID: 2, Quantity: 1, Price: 5, Title: "Two"}
	f := newFixture(t, testUser,
		cart.Item{ProductID: 1, Quantity: 2, Price: 10, Title: "One"},
		cart.Item{ProductID: 2, Quantity: 1, Price: 5, Title: "Two"},
	)
	only1Live := testOrder("live", order.StatusProcessing, order.Address{}, p1)
	only1Shipped := testOrder("shipped", order.StatusShipped, order.Address{}, p1)
	both := testOrder("both", order.StatusShipped, order.Address{}, p1, p2)
	delivered := testOrder("done", order.StatusDelivered, order.Address{}, p1)
	f.store.Seed(only1Live, only1Shipped, both, delivered)
	f.store.Emit([]order.Order{only1Live, only1Shipped, both, delivered})

	f.shop.RemoveFromCart(context.Background(), 1)

	assert.Equal(t, []cart.Item{{ProductID: 2, Quantity: 1, Price: 5, Title: "Two"}}, f.shop.Cart())
	assert.Equal(t, order.StatusCancelled, statusOf(t, f.shop, "live"))
	assert.Equal(t, order.StatusCancelled, statusOf(t, f.shop, "shipped"))
	assert.Equal(t, order.StatusDelivered, statusOf(t, f.shop, "done"))

	got, _ := f.shop.Order("both")
	assert.Equal(t, order.StatusShipped, got.Status)
	assert.Equal(t, []order.Item{p2}, got.Items)
	assert.Equal(t, 5.0, got.Total)

	require.Len(t, f.store.PutCalls, 1)
	assert.Equal(t, "both", f.store.PutCalls[0].ID)
	assert.ElementsMatch(t, []shopmocks.UpdateStatusCall{
		{ID: "live", Status: order.StatusCancelled},
		{ID: "shipped", Status: order.StatusCancelled},
	}, f.store.UpdateStatusCalls)
}

func TestRemoveFromCart_FailedCancellationKeepsStatus(t *testing.T) {
	p1 := order.Item{ProductID: 1, Quantity: 1, Price: 10}
	f := newFixture(t, testUser, cart.Item{ProductID: 1, Quantity: 1, Price: 10})
	live := testOrder("live", order.StatusProcessing, order.Address{}, p1)
	f.store.Emit([]order.Order{live})
	f.store.UpdateStatusErr = errUnavailable

	f.shop.RemoveFromCart(context.Background(), 1)

	assert.Empty(t, f.shop.Cart())
	assert.Equal(t, order.StatusProcessing, statusOf(t, f.shop, "live"))
}

func TestUpdateCartItemQuantity(t *testing.T) {
	p1 := order.Item{ProductID: 1, Quantity: 2, Price: 10}
	p2 := order.Item{ProductID: 2, Quantity: 1, Price: 5}
	f := newFixture(t, testUser,
		cart.Item{ProductID: 1, Quantity: 2, Price: 10},
		cart.Item{ProductID: 2, Quantity: 1, Price: 5},
	)
	both := testOrder("both", order.StatusProcessing, order.Address{}, p1, p2)
	f.store.Emit([]order.Order{both})
	ctx := context.Background()

	f.shop.UpdateCartItemQuantity(ctx, 1, 5)

	item, _ := cartItem(f.shop.Cart(), 1)
	assert.Equal(t, 5, item.Quantity)
	got, _ := f.shop.Order("both")
	assert.Equal(t, 55.0, got.Total)
	assert.Empty(t, f.store.UpdateStatusCalls)

	f.shop.UpdateCartItemQuantity(ctx, 99, 3)
	assert.Len(t, f.shop.Cart(), 2)
}

func TestUpdateCartItemQuantity_ZeroRemoves(t *testing.T) {
	f := newFixture(t, nil,
		cart.Item{ProductID: 1, Quantity: 2, Price: 10},
		cart.Item{ProductID: 2, Quantity: 1, Price: 5},
	)

	f.shop.UpdateCartItemQuantity(context.Background(), 1, 0)

	_, found := cartItem(f.shop.Cart(), 1)
	assert.False(t, found)
	assert.Len(t, f.shop.Cart(), 1)
}

func cartItem(items []cart.Item, productID int) (cart.Item, bool) {
	for _, item := range items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return cart.Item{}, false
}

func TestClearCart(t *testing.T) {
	p1 := order.Item{ProductID: 1, Quantity: 1, Price: 10}
	f := newFixture(t, testUser, cart.Item{ProductID: 1, Quantity: 1, Price: 10})
	home := order.Address{Line1: "1 Main St", City: "Springfield"}
	live := testOrder("live", order.StatusProcessing, order.Address{}, p1)
	auto := testOrder("auto", order.StatusShipped, order.Address{}, p1)
	real := testOrder("real", order.StatusShipped, home, p1)
	f.store.Seed(live, auto, real)
	f.store.Emit([]order.Order{live, auto, real})
	ctx := context.Background()

	f.shop.ClearCart(ctx)

	assert.Empty(t, f.shop.Cart())
	assert.Equal(t, order.StatusCancelled, statusOf(t, f.shop, "live"))
	assert.Equal(t, order.StatusCancelled, statusOf(t, f.shop, "auto"))
	assert.Equal(t, order.StatusShipped, statusOf(t, f.shop, "real"))
	assert.Len(t, f.store.UpdateStatusCalls, 2)
	assert.Equal(t, []string{order.EventOrderStatusChanged, order.EventOrderStatusChanged}, f.publisher.types())

	f.shop.ClearCart(ctx)

	assert.Empty(t, f.shop.Cart())
	assert.Len(t, f.store.UpdateStatusCalls, 2)
}

func TestClearCart_StoreFailureStillCancelsLocally(t *testing.T) {
	p1 := order.Item{ProductID: 1, Quantity: 1, Price: 10}
	f := newFixture(t, testUser)
	f.store.Emit([]order.Order{testOrder("live", order.StatusProcessing, order.Address{}, p1)})
	f.store.UpdateStatusErr = errUnavailable

	f.shop.ClearCart(context.Background())

	assert.Equal(t, order.StatusCancelled, statusOf(t, f.shop, "live"))
	require.Len(t, f.store.PutCalls, 1)
	assert.Equal(t, order.StatusCancelled, f.store.PutCalls[0].Status)
	assert.Empty(t, f.publisher.types())
}

// ============================================
// Order Tests
// ============================================

func TestPlaceOrder_Rejected(t *testing.T) {
	t.Run("empty cart", func(t *testing.T) {
		f := newFixture(t, testUser)

		assert.Empty(t, f.shop.PlaceOrder(context.Background(), order.CustomerInfo{Name: "Ada"}))
		assert.Empty(t, f.store.SaveCalls)
		assert.Empty(t, f.shop.Orders())
	})

	t.Run("signed out", func(t *testing.T) {
		f := newFixture(t, nil, cart.Item{ProductID: 1, Quantity: 1, Price: 10})

		assert.Empty(t, f.shop.PlaceOrder(context.Background(), order.CustomerInfo{Name: "Ada"}))
		assert.Empty(t, f.store.SaveCalls)
		assert.Len(t, f.shop.Cart(), 1)
	})
}

func TestPlaceOrder(t *testing.T) {
	f := newFixture(t, testUser, cart.Item{ProductID: 1, Quantity: 2, Price: 10, Title: "One"})
	info := order.CustomerInfo{
		Name:          "Ada Lovelace",
		Email:         "ada@example.com",
		Phone:         "555-0100",
		Address:       order.Address{Line1: "12 Analytical Way", City: "London"},
		PaymentMethod: "card",
	}

	id := f.shop.PlaceOrder(context.Background(), info)
	f.shop.Close()

	require.NotEmpty(t, id)
	assert.Empty(t, f.shop.Cart())

	var cached []cart.Item
	_, err := f.cache.Get(localcache.KeyCart, &cached)
	require.NoError(t, err)
	assert.Empty(t, cached)

	require.Len(t, f.store.SaveCalls, 1)
	call := f.store.SaveCalls[0]
	assert.True(t, call.ResetCart)
	assert.Equal(t, order.SourceCheckout, call.Order.Source)
	assert.Equal(t, "Ada Lovelace", call.Order.CustomerName)
	assert.Equal(t, 20.0, call.Order.Total)

	o, ok := f.shop.Order(id)
	require.True(t, ok)
	assert.Equal(t, order.StatusProcessing, o.Status)
	assert.Equal(t, "u1", o.UserID)

	assert.Equal(t, []string{order.EventOrderPlaced}, f.publisher.types())
	assert.Equal(t, []string{"u1"}, f.publisher.keys)
}

func TestPlaceOrder_WriteFailureFallsBackToCache(t *testing.T) {
	cache := localcache.NewMemoryCache()
	require.NoError(t, cache.Set(localcache.KeyCart, []cart.Item{{ProductID: 1, Quantity: 1, Price: 10}}))
	store := mocks.NewMockStore()
	store.SetFailing(errUnavailable)
	mirror := orderstore.NewMirror(orderstore.NewDocumentRepository(store), orderstore.NewCacheRepository(cache))
	sess := session.New(idmocks.NewMockProvider(testUser), cache)
	defer sess.Close()
	s := New(stubFetcher{}, mirror, cache, sess, nil)
	ctx := context.Background()

	id := s.PlaceOrder(ctx, order.CustomerInfo{Name: "Ada", Email: "ada@example.com"})
	s.Close()

	assert.Regexp(t, `^order-\d+$`, id)
	require.NoError(t, s.RefreshOrders(ctx))
	o, ok := s.Order(id)
	require.True(t, ok)
	assert.Equal(t, 10.0, o.Total)
}

func TestUpdateOrderStatus(t *testing.T) {
	p1 := order.Item{ProductID: 1, Quantity: 1, Price: 10}
	live := testOrder("live", order.StatusProcessing, order.Address{}, p1)
	done := testOrder("done", order.StatusDelivered, order.Address{}, p1)

	tests := []struct {
		name       string
		id         string
		status     order.Status
		storeErr   error
		wantErr    error
		wantStatus order.Status
		wantWrites int
	}{
		{"valid transition", "live", order.StatusShipped, nil, nil, order.StatusShipped, 1},
		{"store failure leaves order", "live", order.StatusShipped, errUnavailable, errUnavailable, order.StatusProcessing, 1},
		{"terminal order", "done", order.StatusCancelled, nil, order.ErrOrderDelivered, order.StatusDelivered, 0},
		{"skipping a step", "live", order.StatusDelivered, nil, order.ErrInvalidStatus, order.StatusProcessing, 0},
		{"unknown order", "nope", order.StatusShipped, nil, order.ErrOrderNotFound, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, testUser)
			f.store.Seed(live, done)
			f.store.Emit([]order.Order{live, done})
			f.store.UpdateStatusErr = tt.storeErr

			err := f.shop.UpdateOrderStatus(context.Background(), tt.id, tt.status)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, []string{order.EventOrderStatusChanged}, f.publisher.types())
			}
			assert.Len(t, f.store.UpdateStatusCalls, tt.wantWrites)
			if tt.wantStatus != "" {
				assert.Equal(t, tt.wantStatus, statusOf(t, f.shop, tt.id))
			}
		})
	}
}

func TestRefreshOrders(t *testing.T) {
	f := newFixture(t, testUser)
	ctx := context.Background()
	stored := testOrder("a", order.StatusShipped, order.Address{}, order.Item{ProductID: 1, Quantity: 1, Price: 3})
	f.store.Seed(stored)

	require.NoError(t, f.shop.RefreshOrders(ctx))
	require.Len(t, f.shop.Orders(), 1)

	f.store.ListErr = errUnavailable
	assert.ErrorIs(t, f.shop.RefreshOrders(ctx), errUnavailable)
	assert.Len(t, f.shop.Orders(), 1)
}

func TestOrderStatsAndFilter(t *testing.T) {
	f := newFixture(t, testUser)
	item := order.Item{ProductID: 1, Quantity: 1, Price: 10}
	older := testOrder("order-1", order.StatusDelivered, order.Address{}, item)
	older.Date, older.CustomerName = "2024-04-01T09:00:00.000Z", "Ada"
	newer := testOrder("order-2", order.StatusProcessing, order.Address{}, item, order.Item{ProductID: 2, Quantity: 3, Price: 5})
	newer.Date, newer.CustomerName = "2024-05-01T09:00:00.000Z", "Grace"
	f.store.Emit([]order.Order{older, newer})

	stats := f.shop.OrderStats()
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, 35.0, stats.TotalSpent)
	assert.Equal(t, 1, stats.Processing)
	require.Len(t, stats.Recent, 2)
	assert.Equal(t, "order-2", stats.Recent[0].ID)

	got := f.shop.FilterOrders(order.Filter{Search: "ADA"})
	require.Len(t, got, 1)
	assert.Equal(t, "order-1", got[0].ID)

	got = f.shop.FilterOrders(order.Filter{Since: time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)})
	require.Len(t, got, 1)
	assert.Equal(t, "order-2", got[0].ID)

	got = f.shop.FilterOrders(order.Filter{Status: "all"})
	require.Len(t, got, 2)
	assert.Equal(t, "order-2", got[0].ID)
	assert.Len(t, f.shop.Orders(), 2)
}

// ============================================
// Document Store Integration Tests
// ============================================

// Local edits from RemoveFromCart go to the cache only, while cancellations
// are written to the document store. The store emission that follows a
// cancellation therefore restores the persisted items of the edited orders.
func TestRemoveFromCart_PersistedOrdersWinOverLocalEdits(t *testing.T) {
	ctx := context.Background()
	cache := localcache.NewMemoryCache()
	store := docstore.NewMemoryStore()
	primary := orderstore.NewDocumentRepository(store)
	sess := session.New(idmocks.NewMockProvider(testUser), cache)
	s := New(stubFetcher{}, orderstore.NewMirror(primary, orderstore.NewCacheRepository(cache)), cache, sess, nil)
	t.Cleanup(func() {
		s.Close()
		sess.Close()
	})

	require.NoError(t, s.AddToCart(ctx, widget, 2))
	require.NoError(t, s.AddToCart(ctx, shirt, 1))
	require.Eventually(t, func() bool { return len(s.Orders()) == 4 }, time.Second, 10*time.Millisecond)

	s.RemoveFromCart(ctx, widget.ID)

	assert.Equal(t, []cart.Item{{ProductID: 2, Quantity: 1, Price: 5, Title: "Cotton Shirt", Image: "s.png"}}, s.Cart())

	stored, err := primary.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, stored, 4)
	cancelled := 0
	for _, o := range stored {
		if len(o.Items) == 1 {
			assert.Equal(t, order.StatusCancelled, o.Status)
			cancelled++
			continue
		}
		assert.True(t, o.IsOpen())
		assert.Equal(t, 24.98, o.Total)
	}
	assert.Equal(t, 2, cancelled)

	assert.Eventually(t, func() bool {
		orders := s.Orders()
		if len(orders) != 4 {
			return false
		}
		for _, o := range orders {
			if len(o.Items) == 1 && o.Status != order.StatusCancelled {
				return false
			}
			if len(o.Items) == 2 && o.Total != 24.98 {
				return false
			}
		}
		return true
	}, time.Second, 10*time.Millisecond)
}

// ============================================
// Subscription Tests
// ============================================

func TestSubscription_FollowsIdentity(t *testing.T) {
	f := newFixture(t, testUser)
	require.Equal(t, []string{"u1"}, f.store.SubscribeCalls)

	a := testOrder("a", order.StatusProcessing, order.Address{}, order.Item{ProductID: 1, Quantity: 1, Price: 1})
	f.store.Emit([]order.Order{a})
	require.Len(t, f.shop.Orders(), 1)

	f.store.Emit(nil)
	assert.Len(t, f.shop.Orders(), 1)

	f.provider.Emit(nil)
	assert.Equal(t, 1, f.store.Unsubscribes)
	assert.Empty(t, f.shop.Orders())

	f.store.Emit([]order.Order{a})
	assert.Empty(t, f.shop.Orders())

	f.provider.Emit(&identity.Identity{UID: "u2", Email: "b@example.com"})
	assert.Equal(t, []string{"u1", "u2"}, f.store.SubscribeCalls)
}

func TestWatch(t *testing.T) {
	f := newFixture(t, nil)
	calls := 0
	stop := f.shop.Watch(func() { calls++ })

	require.NoError(t, f.shop.AddToCart(context.Background(), widget, 1))
	assert.Equal(t, 1, calls)

	stop()
	f.shop.ClearCart(context.Background())
	assert.Equal(t, 1, calls)
}
