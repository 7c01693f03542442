package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidProduct  = errors.New("productId is required")
)

// Item is a single cart line. ProductID is unique within a cart.
type Item struct {
	ProductID int     `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Title     string  `json:"title"`
	Image     string  `json:"image"`
}

// Subtotal returns price * quantity without rounding.
func (i Item) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.Price).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is an ordered list of items. The zero value is an empty cart.
type Cart struct {
	Items []Item `json:"items"`
}

// New returns a cart holding a copy of items.
func New(items []Item) *Cart {
	c := &Cart{}
	for _, item := range items {
		if item.Quantity > 0 {
			c.Items = append(c.Items, item)
		}
	}
	return c
}

// Add appends item or accumulates its quantity onto the existing line.
func (c *Cart) Add(item Item) error {
	if item.ProductID <= 0 {
		return ErrInvalidProduct
	}
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}

	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity += item.Quantity
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

// SetQuantity overwrites the quantity of an existing line. A quantity of zero
// or less removes the line. It reports whether the product was in the cart.
func (c *Cart) SetQuantity(productID, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity = quantity
			return true
		}
	}
	return false
}

// Remove deletes the line for productID and reports whether it existed.
func (c *Cart) Remove(productID int) bool {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c *Cart) Find(productID int) (Item, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return Item{}, false
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Total is the sum of all subtotals rounded to cents.
func (c *Cart) Total() float64 {
	sum := decimal.Zero
	for _, item := range c.Items {
		sum = sum.Add(item.Subtotal())
	}
	return sum.Round(2).InexactFloat64()
}

// Snapshot returns a copy of the items that is safe to retain.
func (c *Cart) Snapshot() []Item {
	out := make([]Item, len(c.Items))
	copy(out, c.Items)
	return out
}
