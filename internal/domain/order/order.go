package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Source records which flow created the order.
type Source string

const (
	SourceCheckout Source = "checkout"
	SourceAuto     Source = "auto"
)

// DateLayout matches the millisecond ISO-8601 form used for Order.Date.
const DateLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrEmptyOrder     = errors.New("order must have at least one item")
	ErrInvalidStatus  = errors.New("invalid order status transition")
	ErrUnknownStatus  = errors.New("unknown order status")
	ErrOrderCancelled = errors.New("order is already cancelled")
	ErrOrderDelivered = errors.New("order is already delivered")
)

// validTransitions defines allowed state transitions
var validTransitions = map[Status][]Status{
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered, StatusCancelled},
	StatusDelivered:  {}, // terminal state
	StatusCancelled:  {}, // terminal state
}

// ParseStatus validates a wire status value.
func ParseStatus(s string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validTransitions[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return status, nil
}

type Item struct {
	ProductID int     `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Title     string  `json:"title"`
	Image     string  `json:"image"`
}

func (i Item) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsFromCart snapshots cart lines into order items.
func ItemsFromCart(items []cart.Item) []Item {
	out := make([]Item, len(items))
	for i, item := range items {
		out[i] = Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Title:     item.Title,
			Image:     item.Image,
		}
	}
	return out
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// IsComplete reports whether the address has a first line.
func (a Address) IsComplete() bool {
	return strings.TrimSpace(a.Line1) != ""
}

// CustomerInfo is the checkout payload for PlaceOrder.
type CustomerInfo struct {
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	Phone         string  `json:"phone,omitempty"`
	Address       Address `json:"address"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
}

type Order struct {
	ID            string  `json:"id"`
	Items         []Item  `json:"items"`
	Total         float64 `json:"total"`
	Date          string  `json:"date"`
	Status        Status  `json:"status"`
	CustomerName  string  `json:"customerName"`
	CustomerEmail string  `json:"customerEmail"`
	CustomerPhone string  `json:"customerPhone,omitempty"`
	Address       Address `json:"address"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	UserID        string  `json:"userId"`
	Source        Source  `json:"source,omitempty"`
}

// New builds an order from item snapshots. The total is derived from items.
func New(userID string, items []Item, status Status, customer CustomerInfo, source Source, now time.Time) (*Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	snapshot := make([]Item, len(items))
	copy(snapshot, items)

	return &Order{
		Items:         snapshot,
		Total:         CalculateTotal(snapshot),
		Date:          now.UTC().Format(DateLayout),
		Status:        status,
		CustomerName:  customer.Name,
		CustomerEmail: customer.Email,
		CustomerPhone: customer.Phone,
		Address:       customer.Address,
		PaymentMethod: customer.PaymentMethod,
		UserID:        userID,
		Source:        source,
	}, nil
}

// CalculateTotal sums price * quantity and rounds to cents.
func CalculateTotal(items []Item) float64 {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Subtotal())
	}
	return sum.Round(2).InexactFloat64()
}

// CanTransitionTo checks if the order can transition to the target status
func (o *Order) CanTransitionTo(target Status) bool {
	allowed, exists := validTransitions[o.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// transitionError returns an appropriate error for an invalid transition
func (o *Order) transitionError(target Status) error {
	switch {
	case o.Status == StatusCancelled:
		return ErrOrderCancelled
	case o.Status == StatusDelivered:
		return ErrOrderDelivered
	default:
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStatus, o.Status, target)
	}
}

// ValidateTransition returns nil when target is reachable from the current status.
func (o *Order) ValidateTransition(target Status) error {
	if _, ok := validTransitions[target]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, target)
	}
	if !o.CanTransitionTo(target) {
		return o.transitionError(target)
	}
	return nil
}

// IsOpen reports whether cart edits still propagate into the order.
func (o *Order) IsOpen() bool {
	return o.Status == StatusProcessing || o.Status == StatusShipped
}

func (o *Order) ContainsProduct(productID int) bool {
	for _, item := range o.Items {
		if item.ProductID == productID {
			return true
		}
	}
	return false
}

// RemoveProduct drops every line for productID and recomputes the total.
// It reports whether the order is left without items.
func (o *Order) RemoveProduct(productID int) bool {
	kept := o.Items[:0:0]
	for _, item := range o.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	o.Items = kept
	o.Total = CalculateTotal(o.Items)
	return len(o.Items) == 0
}

// SetProductQuantity rewrites the quantity of productID and recomputes the total.
func (o *Order) SetProductQuantity(productID, quantity int) bool {
	changed := false
	items := make([]Item, len(o.Items))
	for i, item := range o.Items {
		if item.ProductID == productID {
			item.Quantity = quantity
			changed = true
		}
		items[i] = item
	}
	if changed {
		o.Items = items
		o.Total = CalculateTotal(o.Items)
	}
	return changed
}

// Clone returns a deep copy so callers can mutate items freely.
func (o Order) Clone() Order {
	items := make([]Item, len(o.Items))
	copy(items, o.Items)
	o.Items = items
	return o
}

// CreatedAt parses Date, falling back to the zero time.
func (o *Order) CreatedAt() time.Time {
	t, err := time.Parse(time.RFC3339Nano, o.Date)
	if err != nil {
		return time.Time{}
	}
	return t
}
