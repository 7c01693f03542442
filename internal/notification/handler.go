package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/storefront/internal/domain/order"
)

// ReceiptSender delivers an order receipt. *email.Service satisfies it.
type ReceiptSender interface {
	SendOrderReceipt(to string, o order.Order) error
}

// Handler processes events for sending notifications
type Handler struct {
	sender ReceiptSender
}

// NewHandler creates a new notification handler
func NewHandler(sender ReceiptSender) *Handler {
	return &Handler{sender: sender}
}

// HandleEvent processes an order event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event order.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	switch event.EventType {
	case order.EventOrderPlaced:
		var e order.OrderPlaced
		if err := json.Unmarshal(event.Data, &e); err != nil {
			log.Printf("[Notifier] Failed to unmarshal OrderPlaced event: %v", err)
			return err
		}
		if e.Order.ID == "" {
			e.Order.ID = event.OrderID
		}
		return h.HandleOrder(ctx, e.Order)
	case order.EventOrderStatusChanged:
		log.Printf("[Notifier] Order %s status changed (user %s)", event.OrderID, event.UserID)
	}
	return nil
}

// HandleOrder mails a receipt for a newly stored order. Orders created
// automatically from the cart get no receipt.
func (h *Handler) HandleOrder(ctx context.Context, o order.Order) error {
	if o.Source == order.SourceAuto {
		return nil
	}
	if o.CustomerEmail == "" {
		log.Printf("[Notifier] Order %s has no customer email, skipping", o.ID)
		return nil
	}

	log.Printf("[Notifier] Processing order %s for user %s", o.ID, o.UserID)

	if err := h.sender.SendOrderReceipt(o.CustomerEmail, o); err != nil {
		log.Printf("[Notifier] Failed to send email to %s: %v", o.CustomerEmail, err)
		return err
	}

	log.Printf("[Notifier] Order receipt sent to %s for order %s", o.CustomerEmail, o.ID)
	return nil
}
