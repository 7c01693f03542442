package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
)

// Event is the envelope published for order lifecycle changes.
type Event struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

type OrderPlaced struct {
	Order    Order     `json:"order"`
	PlacedAt time.Time `json:"placed_at"`
}

type OrderStatusChanged struct {
	OrderID   string    `json:"order_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedAt time.Time `json:"changed_at"`
}

// NewEvent wraps payload into an Event with a fresh id.
func NewEvent(eventType, orderID, userID string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		UserID:    userID,
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now(),
	}, nil
}
