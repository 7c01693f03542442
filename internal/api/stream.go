package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const streamKeepAlive = 15 * time.Second

// StreamOrders pushes the order list as server-sent events, once on connect
// and again after every storefront change.
func (h *Handlers) StreamOrders(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondJSONError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	changed := make(chan struct{}, 1)
	stop := h.shop.Watch(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := h.writeOrdersEvent(w); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case <-changed:
			if err := h.writeOrdersEvent(w); err != nil {
				log.Printf("[API] Order stream closed: %v", err)
				return
			}
		}
		flusher.Flush()
	}
}

func (h *Handlers) writeOrdersEvent(w http.ResponseWriter) error {
	data, err := json.Marshal(nonNilOrders(h.shop.Orders()))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: orders\ndata: %s\n\n", data)
	return err
}
