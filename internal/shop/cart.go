package shop

import (
	"context"
	"log"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/catalog"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/localcache"
	"github.com/example/storefront/internal/session"
)

const defaultCustomerName = "Customer"

func loadCart(cache localcache.Cache) *cart.Cart {
	var items []cart.Item
	if _, err := cache.Get(localcache.KeyCart, &items); err != nil {
		log.Printf("[Shop] Ignoring unreadable cached cart: %v", err)
		return &cart.Cart{}
	}
	return cart.New(items)
}

func (s *Shop) persistCart(items []cart.Item) {
	if items == nil {
		items = []cart.Item{}
	}
	if err := s.cache.Set(localcache.KeyCart, items); err != nil {
		log.Printf("[Shop] Failed to persist cart: %v", err)
	}
}

// AddToCart adds quantity units of product. For a signed-in user it also
// records the whole cart as a processing order and a shipped order.
func (s *Shop) AddToCart(ctx context.Context, product catalog.Product, quantity int) error {
	s.mu.Lock()
	err := s.cart.Add(cart.Item{
		ProductID: product.ID,
		Quantity:  quantity,
		Price:     product.Price,
		Title:     product.Title,
		Image:     product.Image,
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snapshot := s.cart.Snapshot()
	user := s.user
	gen := s.generation
	s.mu.Unlock()

	s.persistCart(snapshot)
	log.Printf("[Shop] Added %s to cart", product.Title)

	if user != nil {
		s.createOrdersFromCart(ctx, gen, user, snapshot)
	}
	s.notify()
	return nil
}

func (s *Shop) createOrdersFromCart(ctx context.Context, gen uint64, user *session.User, snapshot []cart.Item) {
	customer := order.CustomerInfo{
		Name:  user.Name,
		Email: user.Email,
		Phone: user.Phone,
	}
	if customer.Name == "" {
		customer.Name = defaultCustomerName
	}
	items := order.ItemsFromCart(snapshot)
	now := s.now()

	var created []order.Order
	for _, status := range []order.Status{order.StatusProcessing, order.StatusShipped} {
		o, err := order.New(user.ID, items, status, customer, order.SourceAuto, now)
		if err != nil {
			log.Printf("[Shop] Error creating orders: %v", err)
			return
		}
		o.ID = s.orders.Save(ctx, *o, false)
		created = append(created, *o)
	}

	s.mu.Lock()
	if gen == s.generation {
		for _, o := range created {
			s.upsertOrderLocked(o)
		}
	}
	s.mu.Unlock()
	log.Printf("[Shop] Live order %s and order %s created", created[0].ID, created[1].ID)
}

// RemoveFromCart drops the product from the cart and from every open order.
// Orders left empty are cancelled through UpdateOrderStatus; the others are
// only rewritten locally.
func (s *Shop) RemoveFromCart(ctx context.Context, productID int) {
	s.mu.Lock()
	s.cart.Remove(productID)
	snapshot := s.cart.Snapshot()

	var edited []order.Order
	var emptied []string
	for i := range s.orderList {
		o := &s.orderList[i]
		if !o.IsOpen() || !o.ContainsProduct(productID) {
			continue
		}
		updated := o.Clone()
		if updated.RemoveProduct(productID) {
			emptied = append(emptied, o.ID)
			continue
		}
		*o = updated
		edited = append(edited, updated)
	}
	s.mu.Unlock()

	s.persistCart(snapshot)
	for _, o := range edited {
		s.orders.Put(o)
	}
	for _, id := range emptied {
		if err := s.UpdateOrderStatus(ctx, id, order.StatusCancelled); err != nil {
			log.Printf("[Shop] Error cancelling order %s: %v", id, err)
		}
	}
	s.notify()
}

// UpdateCartItemQuantity sets the quantity of a cart line and of the same
// product in every open order. A quantity of zero or less removes it.
func (s *Shop) UpdateCartItemQuantity(ctx context.Context, productID, quantity int) {
	if quantity <= 0 {
		s.RemoveFromCart(ctx, productID)
		return
	}

	s.mu.Lock()
	if _, ok := s.cart.Find(productID); !ok {
		s.mu.Unlock()
		return
	}
	s.cart.SetQuantity(productID, quantity)
	snapshot := s.cart.Snapshot()

	var edited []order.Order
	for i := range s.orderList {
		o := &s.orderList[i]
		if !o.IsOpen() || !o.ContainsProduct(productID) {
			continue
		}
		updated := o.Clone()
		updated.SetProductQuantity(productID, quantity)
		*o = updated
		edited = append(edited, updated)
	}
	s.mu.Unlock()

	s.persistCart(snapshot)
	for _, o := range edited {
		s.orders.Put(o)
	}
	s.notify()
}

// ClearCart empties the cart and cancels every processing order plus every
// shipped order that has no delivery address. Orders with an address are
// kept.
func (s *Shop) ClearCart(ctx context.Context) {
	s.mu.Lock()
	s.cart.Clear()
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}

	var cancelled []order.Order
	var previous []order.Status
	for i := range s.orderList {
		o := &s.orderList[i]
		autoShipped := o.Status == order.StatusShipped && !o.Address.IsComplete()
		if o.Status != order.StatusProcessing && !autoShipped {
			continue
		}
		previous = append(previous, o.Status)
		o.Status = order.StatusCancelled
		cancelled = append(cancelled, o.Clone())
	}
	s.mu.Unlock()

	s.persistCart(nil)
	for i, o := range cancelled {
		s.orders.Put(o)
		if err := s.orders.UpdateStatus(ctx, o.ID, order.StatusCancelled); err != nil {
			log.Printf("[Shop] Error cancelling %s order %s: %v", previous[i], o.ID, err)
			continue
		}
		s.publish(ctx, order.EventOrderStatusChanged, o.ID, userID, order.OrderStatusChanged{
			OrderID:   o.ID,
			From:      previous[i],
			To:        order.StatusCancelled,
			ChangedAt: s.now(),
		})
	}
	if len(cancelled) > 0 {
		log.Printf("[Shop] %d order(s) have been cancelled", len(cancelled))
	}
	s.notify()
}

// Cart returns a copy of the cart lines.
func (s *Shop) Cart() []cart.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Snapshot()
}

func (s *Shop) CartTotal() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}
