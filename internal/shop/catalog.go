package shop

import (
	"context"
	"log"

	"github.com/example/storefront/internal/domain/catalog"
)

const catalogErrorMessage = "Failed to fetch products"

// LoadCatalog fetches the product list once. On failure the catalog stays
// empty and CatalogError reports it.
func (s *Shop) LoadCatalog(ctx context.Context) {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	products, err := s.fetcher.FetchProducts(ctx)

	s.mu.Lock()
	s.loading = false
	if err != nil {
		log.Printf("[Shop] Error fetching products: %v", err)
		s.catalogErr = catalogErrorMessage
		s.products = nil
		s.filtered = []catalog.Product{}
		s.categories = []string{catalog.AllCategories}
	} else {
		log.Printf("[Shop] Loaded %d products", len(products))
		s.catalogErr = ""
		s.products = products
		s.categories = catalog.Categories(products)
		s.filtered = catalog.Filter(products, s.selectedCategory, s.searchQuery)
	}
	s.mu.Unlock()

	s.notify()
}

// FilterProducts recomputes the filtered view from the full catalog.
func (s *Shop) FilterProducts(category, search string) []catalog.Product {
	s.mu.Lock()
	filtered := catalog.Filter(s.products, category, search)
	s.filtered = filtered
	s.mu.Unlock()

	s.notify()
	return append([]catalog.Product(nil), filtered...)
}

func (s *Shop) SetSelectedCategory(category string) {
	s.mu.Lock()
	s.selectedCategory = category
	search := s.searchQuery
	s.mu.Unlock()
	s.FilterProducts(category, search)
}

func (s *Shop) SetSearchQuery(search string) {
	s.mu.Lock()
	s.searchQuery = search
	category := s.selectedCategory
	s.mu.Unlock()
	s.FilterProducts(category, search)
}

func (s *Shop) Products() []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.Product(nil), s.products...)
}

func (s *Shop) FilteredProducts() []catalog.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]catalog.Product(nil), s.filtered...)
}

func (s *Shop) Categories() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.categories...)
}

func (s *Shop) Product(id int) (catalog.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return catalog.Find(s.products, id)
}

func (s *Shop) SelectedCategory() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedCategory
}

func (s *Shop) SearchQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchQuery
}

// CatalogError is empty unless the last catalog fetch failed.
func (s *Shop) CatalogError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalogErr
}

func (s *Shop) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}
