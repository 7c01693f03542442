package catalog

import (
	"strings"
)

// AllCategories is the pseudo-category that disables category filtering.
const AllCategories = "all"

type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

type Product struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Price       float64 `json:"price"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Image       string  `json:"image"`
	Rating      Rating  `json:"rating"`
}

// Filter returns the products in category whose title or description contains
// search, case-insensitively. The input slice is never modified.
func Filter(products []Product, category, search string) []Product {
	needle := strings.ToLower(search)
	out := make([]Product, 0, len(products))
	for _, p := range products {
		if category != AllCategories && p.Category != category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.Description), needle) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Categories returns "all" followed by each distinct category in first-seen order.
func Categories(products []Product) []string {
	seen := make(map[string]bool)
	out := []string{AllCategories}
	for _, p := range products {
		if seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}

// Find looks a product up by id.
func Find(products []Product, id int) (Product, bool) {
	for _, p := range products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
