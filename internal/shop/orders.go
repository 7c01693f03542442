package shop

import (
	"context"
	"fmt"
	"log"

	"github.com/example/storefront/internal/domain/order"
)

// PlaceOrder turns the cart into a processing order and empties the cart.
// It returns "" when nobody is signed in or the cart is empty.
func (s *Shop) PlaceOrder(ctx context.Context, info order.CustomerInfo) string {
	s.mu.Lock()
	user := s.user
	if user == nil {
		s.mu.Unlock()
		log.Printf("[Shop] You must be logged in to place an order")
		return ""
	}
	if s.cart.IsEmpty() {
		s.mu.Unlock()
		log.Printf("[Shop] Cart is empty")
		return ""
	}
	snapshot := s.cart.Snapshot()
	gen := s.generation
	s.mu.Unlock()

	o, err := order.New(user.ID, order.ItemsFromCart(snapshot), order.StatusProcessing, info, order.SourceCheckout, s.now())
	if err != nil {
		log.Printf("[Shop] Error placing order: %v", err)
		return ""
	}
	o.ID = s.orders.Save(ctx, *o, true)

	s.mu.Lock()
	if gen == s.generation {
		s.upsertOrderLocked(*o)
	}
	s.cart.Clear()
	s.mu.Unlock()

	s.persistCart(nil)
	log.Printf("[Shop] Order %s placed successfully", o.ID)

	s.publish(ctx, order.EventOrderPlaced, o.ID, user.ID, order.OrderPlaced{
		Order:    *o,
		PlacedAt: s.now(),
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.RefreshOrders(s.ctx); err != nil {
			log.Printf("[Shop] Error refreshing orders: %v", err)
		}
	}()

	s.notify()
	return o.ID
}

// UpdateOrderStatus validates the transition and writes it to the order
// store before touching local state. A failed write leaves the order as it
// was.
func (s *Shop) UpdateOrderStatus(ctx context.Context, orderID string, status order.Status) error {
	s.mu.Lock()
	current, ok := s.findOrderLocked(orderID)
	userID := ""
	if s.user != nil {
		userID = s.user.ID
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", order.ErrOrderNotFound, orderID)
	}
	if err := current.ValidateTransition(status); err != nil {
		return err
	}

	if err := s.orders.UpdateStatus(ctx, orderID, status); err != nil {
		log.Printf("[Shop] Error updating order status: %v", err)
		return fmt.Errorf("failed to update order %s: %w", orderID, err)
	}

	s.mu.Lock()
	for i := range s.orderList {
		if s.orderList[i].ID == orderID {
			s.orderList[i].Status = status
		}
	}
	s.mu.Unlock()

	log.Printf("[Shop] Order %s status updated to %s", orderID, status)
	s.publish(ctx, order.EventOrderStatusChanged, orderID, userID, order.OrderStatusChanged{
		OrderID:   orderID,
		From:      current.Status,
		To:        status,
		ChangedAt: s.now(),
	})
	s.notify()
	return nil
}

// RefreshOrders reloads the signed-in user's orders. An empty result keeps
// the current list.
func (s *Shop) RefreshOrders(ctx context.Context) error {
	s.mu.Lock()
	user := s.user
	gen := s.generation
	s.mu.Unlock()
	if user == nil {
		return nil
	}

	orders, err := s.orders.ListByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to load orders: %w", err)
	}
	if len(orders) == 0 {
		return nil
	}

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return nil
	}
	s.orderList = cloneOrders(orders)
	s.mu.Unlock()

	log.Printf("[Shop] Got %d orders", len(orders))
	s.notify()
	return nil
}

func (s *Shop) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrders(s.orderList)
}

// OrderStats summarises the current order list.
func (s *Shop) OrderStats() order.Stats {
	return order.ComputeStats(s.Orders())
}

// FilterOrders returns the order history matching f, newest first.
func (s *Shop) FilterOrders(f order.Filter) []order.Order {
	return f.Apply(s.Orders())
}

// LiveOrders returns the processing orders.
func (s *Shop) LiveOrders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []order.Order
	for _, o := range s.orderList {
		if o.Status == order.StatusProcessing {
			out = append(out, o.Clone())
		}
	}
	return out
}

func (s *Shop) Order(id string) (order.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.findOrderLocked(id)
	if !ok {
		return order.Order{}, false
	}
	return o.Clone(), true
}

func (s *Shop) findOrderLocked(id string) (order.Order, bool) {
	for _, o := range s.orderList {
		if o.ID == id {
			return o, true
		}
	}
	return order.Order{}, false
}

// upsertOrderLocked appends o unless a subscription already delivered it.
func (s *Shop) upsertOrderLocked(o order.Order) {
	for i := range s.orderList {
		if s.orderList[i].ID == o.ID {
			s.orderList[i] = o.Clone()
			return
		}
	}
	s.orderList = append(s.orderList, o.Clone())
}
