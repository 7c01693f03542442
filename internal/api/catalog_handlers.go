package api

import (
	"net/http"
	"strconv"

	"github.com/example/storefront/internal/domain/catalog"
)

// GetProducts lists the catalog, optionally narrowed by ?category= and ?q=.
// Without either parameter it returns the current storefront filter.
func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	if msg := h.shop.CatalogError(); msg != "" {
		respondJSONError(w, msg, http.StatusBadGateway)
		return
	}

	query := r.URL.Query()
	if !query.Has("category") && !query.Has("q") {
		respondJSON(w, http.StatusOK, nonNilProducts(h.shop.FilteredProducts()))
		return
	}

	category := query.Get("category")
	if category == "" {
		category = catalog.AllCategories
	}
	respondJSON(w, http.StatusOK, nonNilProducts(h.shop.FilterProducts(category, query.Get("q"))))
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(extractPathParam(r.URL.Path, "/products/"))
	if err != nil {
		respondJSONError(w, "Invalid product id", http.StatusBadRequest)
		return
	}
	product, ok := h.shop.Product(id)
	if !ok {
		respondJSONError(w, "Product not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

// GetCategories lists the distinct catalog categories. A failed catalog
// fetch is reported alongside the empty list.
func (h *Handlers) GetCategories(w http.ResponseWriter, r *http.Request) {
	if msg := h.shop.CatalogError(); msg != "" {
		respondJSONError(w, msg, http.StatusBadGateway)
		return
	}
	categories := h.shop.Categories()
	if categories == nil {
		categories = []string{}
	}
	respondJSON(w, http.StatusOK, categories)
}

func nonNilProducts(products []catalog.Product) []catalog.Product {
	if products == nil {
		return []catalog.Product{}
	}
	return products
}
