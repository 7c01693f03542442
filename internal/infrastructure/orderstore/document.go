package orderstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/infrastructure/docstore"
	"github.com/google/uuid"
)

const (
	OrdersCollection    = "orders"
	UserCartsCollection = "userCarts"

	defaultCustomerName  = "Customer"
	defaultCustomerEmail = "customer@example.com"
)

// orderDocument is the stored shape of an order. Date may be a Timestamp or
// a legacy ISO string, so it is decoded loosely.
type orderDocument struct {
	Items         []order.Item  `json:"items"`
	Total         float64       `json:"total"`
	Date          any           `json:"date"`
	CreatedAt     any           `json:"createdAt,omitempty"`
	Status        order.Status  `json:"status"`
	CustomerName  string        `json:"customerName"`
	CustomerEmail string        `json:"customerEmail"`
	CustomerPhone string        `json:"customerPhone,omitempty"`
	Address       order.Address `json:"address"`
	PaymentMethod string        `json:"paymentMethod,omitempty"`
	UserID        string        `json:"userId"`
	Source        order.Source  `json:"source,omitempty"`
}

// DocumentRepository persists orders in the document store.
type DocumentRepository struct {
	store docstore.Store
	now   func() time.Time
}

func NewDocumentRepository(store docstore.Store) *DocumentRepository {
	return &DocumentRepository{store: store, now: time.Now}
}

// Save writes o under a new document id. With resetCart the user's server
// side cart is emptied in the same atomic batch.
func (r *DocumentRepository) Save(ctx context.Context, o order.Order, resetCart bool) (string, error) {
	id := uuid.New().String()
	now := r.now()

	date := now
	if t := o.CreatedAt(); !t.IsZero() {
		date = t
	}

	doc := orderDocument{
		Items:         o.Items,
		Total:         o.Total,
		Date:          docstore.NewTimestamp(date),
		CreatedAt:     docstore.NewTimestamp(now),
		Status:        o.Status,
		CustomerName:  o.CustomerName,
		CustomerEmail: o.CustomerEmail,
		CustomerPhone: o.CustomerPhone,
		Address:       o.Address,
		PaymentMethod: o.PaymentMethod,
		UserID:        o.UserID,
		Source:        o.Source,
	}

	writes := []docstore.Write{{Kind: docstore.WriteSet, Collection: OrdersCollection, ID: id, Data: doc}}
	if resetCart && o.UserID != "" {
		writes = append(writes, docstore.Write{
			Kind:       docstore.WriteSet,
			Collection: UserCartsCollection,
			ID:         o.UserID,
			Data: map[string]any{
				"items":     []any{},
				"updatedAt": docstore.NewTimestamp(now),
			},
		})
	}

	if err := r.store.AtomicMultiWrite(ctx, writes); err != nil {
		return "", fmt.Errorf("failed to save order: %w", err)
	}
	return id, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	err := r.store.UpdateDocument(ctx, OrdersCollection, id, map[string]any{
		"status":    status,
		"updatedAt": docstore.NewTimestamp(r.now()),
	})
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("%w: %s", order.ErrOrderNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update order %s: %w", id, err)
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	doc, err := r.store.GetDocumentByID(ctx, OrdersCollection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o, err := decodeOrder(*doc, "")
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	docs, err := r.store.QueryDocuments(ctx, OrdersCollection, userQuery(userID), newestFirst)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return decodeOrders(docs, userID)
}

// Subscribe streams the result of ListByUser on every change.
func (r *DocumentRepository) Subscribe(ctx context.Context, userID string, onNext func([]order.Order), onError func(error)) (func(), error) {
	return r.store.SubscribeToQuery(ctx, OrdersCollection, userQuery(userID), newestFirst,
		func(docs []docstore.Document) {
			orders, err := decodeOrders(docs, userID)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onNext(orders)
		},
		onError,
	)
}

var newestFirst = &docstore.OrderBy{Field: "createdAt", Direction: docstore.Desc}

func userQuery(userID string) []docstore.Where {
	return []docstore.Where{{Field: "userId", Op: docstore.OpEqual, Value: userID}}
}

func decodeOrders(docs []docstore.Document, userID string) ([]order.Order, error) {
	orders := make([]order.Order, 0, len(docs))
	for _, doc := range docs {
		o, err := decodeOrder(doc, userID)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// DecodeOrder converts a stored order document, filling in defaults for
// fields older documents may lack.
func DecodeOrder(doc docstore.Document) (order.Order, error) {
	return decodeOrder(doc, "")
}

func decodeOrder(doc docstore.Document, fallbackUserID string) (order.Order, error) {
	var d orderDocument
	if err := doc.DataTo(&d); err != nil {
		return order.Order{}, fmt.Errorf("order %s: %w", doc.ID, err)
	}

	o := order.Order{
		ID:            doc.ID,
		Items:         d.Items,
		Status:        d.Status,
		CustomerName:  d.CustomerName,
		CustomerEmail: d.CustomerEmail,
		CustomerPhone: d.CustomerPhone,
		Address:       d.Address,
		PaymentMethod: d.PaymentMethod,
		UserID:        d.UserID,
		Source:        d.Source,
	}
	if o.Items == nil {
		o.Items = []order.Item{}
	}
	o.Total = order.CalculateTotal(o.Items)
	if ts, ok := docstore.TimestampFromValue(d.Date); ok {
		o.Date = ts.ToDate().Format(order.DateLayout)
	} else {
		o.Date = time.Now().UTC().Format(order.DateLayout)
	}
	if o.Status == "" {
		o.Status = order.StatusProcessing
	}
	if o.CustomerName == "" {
		o.CustomerName = defaultCustomerName
	}
	if o.CustomerEmail == "" {
		o.CustomerEmail = defaultCustomerEmail
	}
	if o.UserID == "" {
		o.UserID = fallbackUserID
	}
	return o, nil
}
