package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/internal/domain/cart"
	"github.com/example/storefront/internal/domain/order"
	"github.com/example/storefront/internal/export"
	"github.com/example/storefront/internal/shop"
)

type Handlers struct {
	shop *shop.Shop
	now  func() time.Time
}

func NewHandlers(s *shop.Shop) *Handlers {
	return &Handlers{
		shop: s,
		now:  time.Now,
	}
}

// Cart Handlers

type CartResponse struct {
	Items []cart.Item `json:"items"`
	Total float64     `json:"total"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.cartResponse())
}

func (h *Handlers) cartResponse() CartResponse {
	items := h.shop.Cart()
	if items == nil {
		items = []cart.Item{}
	}
	return CartResponse{Items: items, Total: h.shop.CartTotal()}
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID int `json:"productId"`
		Quantity  int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, ok := h.shop.Product(req.ProductID)
	if !ok {
		respondJSONError(w, "Product not found", http.StatusNotFound)
		return
	}

	if err := h.shop.AddToCart(r.Context(), product, req.Quantity); err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) || errors.Is(err, cart.ErrInvalidProduct) {
			respondJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, h.cartResponse())
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(extractPathParam(r.URL.Path, "/cart/items/"))
	if err != nil {
		respondJSONError(w, "Invalid product id", http.StatusBadRequest)
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.shop.UpdateCartItemQuantity(r.Context(), productID, req.Quantity)
	respondJSON(w, http.StatusOK, h.cartResponse())
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.Atoi(extractPathParam(r.URL.Path, "/cart/items/"))
	if err != nil {
		respondJSONError(w, "Invalid product id", http.StatusBadRequest)
		return
	}

	h.shop.RemoveFromCart(r.Context(), productID)
	respondJSON(w, http.StatusOK, h.cartResponse())
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.shop.ClearCart(r.Context())
	respondJSON(w, http.StatusOK, h.cartResponse())
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var info order.CustomerInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id := h.shop.PlaceOrder(r.Context(), info)
	if id == "" {
		respondJSONError(w, "Unable to place order: the cart is empty or nobody is signed in", http.StatusBadRequest)
		return
	}

	o, _ := h.shop.Order(id)
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":    id,
		"order": o,
	})
}

// GetOrders lists the order history, newest first. Optional query
// parameters: q (id or customer name), status ("all" or a status), since
// (RFC 3339 or YYYY-MM-DD) and range (7days, 30days, 90days, 12months).
func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseOrderFilter(r.URL.Query(), h.now())
	if err != nil {
		respondJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusOK, nonNilOrders(h.shop.FilterOrders(filter)))
}

func (h *Handlers) GetOrderStats(w http.ResponseWriter, r *http.Request) {
	stats := h.shop.OrderStats()
	stats.Recent = nonNilOrders(stats.Recent)
	respondJSON(w, http.StatusOK, stats)
}

func parseOrderFilter(query url.Values, now time.Time) (order.Filter, error) {
	filter := order.Filter{Search: query.Get("q")}

	if raw := query.Get("status"); raw != "" && raw != "all" {
		status, err := order.ParseStatus(raw)
		if err != nil {
			return order.Filter{}, err
		}
		filter.Status = string(status)
	}

	since, err := order.RangeStart(query.Get("range"), now)
	if err != nil {
		return order.Filter{}, err
	}
	filter.Since = since

	if raw := query.Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			t, err = time.Parse(time.DateOnly, raw)
		}
		if err != nil {
			return order.Filter{}, fmt.Errorf("invalid since date %q", raw)
		}
		if t.After(filter.Since) {
			filter.Since = t
		}
	}
	return filter, nil
}

func (h *Handlers) GetLiveOrders(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, nonNilOrders(h.shop.LiveOrders()))
}

func (h *Handlers) RefreshOrders(w http.ResponseWriter, r *http.Request) {
	if err := h.shop.RefreshOrders(r.Context()); err != nil {
		log.Printf("[API] Error refreshing orders: %v", err)
		respondJSONError(w, "Failed to refresh orders", http.StatusBadGateway)
		return
	}
	respondJSON(w, http.StatusOK, nonNilOrders(h.shop.Orders()))
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.shop.Order(orderPathID(r.URL.Path))
	if !ok {
		respondJSONError(w, "Order not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handlers) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := orderPathID(r.URL.Path)

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		respondJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.shop.UpdateOrderStatus(r.Context(), orderID, status); err != nil {
		switch {
		case errors.Is(err, order.ErrOrderNotFound):
			respondJSONError(w, "Order not found", http.StatusNotFound)
		case errors.Is(err, order.ErrInvalidStatus),
			errors.Is(err, order.ErrOrderCancelled),
			errors.Is(err, order.ErrOrderDelivered):
			respondJSONError(w, err.Error(), http.StatusConflict)
		default:
			respondJSONError(w, "Failed to update order status", http.StatusBadGateway)
		}
		return
	}

	o, _ := h.shop.Order(orderID)
	respondJSON(w, http.StatusOK, o)
}

// ExportOrder serves the order as a CSV or HTML download depending on the
// requested file extension.
func (h *Handlers) ExportOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := h.shop.Order(orderPathID(r.URL.Path))
	if !ok {
		respondJSONError(w, "Order not found", http.StatusNotFound)
		return
	}

	var (
		body        string
		err         error
		ext         string
		contentType string
	)
	switch {
	case strings.HasSuffix(r.URL.Path, "/export.csv"):
		body, err = export.OrderCSV(o)
		ext, contentType = "csv", "text/csv; charset=utf-8"
	case strings.HasSuffix(r.URL.Path, "/export.html"):
		body, err = export.OrderHTML(o)
		ext, contentType = "html", "text/html; charset=utf-8"
	default:
		respondJSONError(w, "Unsupported export format", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("[API] Error exporting order %s: %v", o.ID, err)
		respondJSONError(w, "Failed to export order", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.ReportFilename(o, ext, h.now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func nonNilOrders(orders []order.Order) []order.Order {
	if orders == nil {
		return []order.Order{}
	}
	return orders
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

func extractPathParam(path, prefix string) string {
	return strings.TrimSuffix(strings.TrimPrefix(path, prefix), "/")
}

// orderPathID returns the {id} segment of /orders/{id}[/...].
func orderPathID(path string) string {
	id, _, _ := strings.Cut(strings.TrimPrefix(path, "/orders/"), "/")
	return id
}
