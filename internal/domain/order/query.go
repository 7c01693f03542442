package order

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecentLimit is how many orders Stats.Recent holds.
const RecentLimit = 5

var ErrUnknownRange = errors.New("unknown date range")

// Stats summarises an order list for the dashboard.
type Stats struct {
	TotalOrders int     `json:"totalOrders"`
	TotalSpent  float64 `json:"totalSpent"`
	Processing  int     `json:"processingOrders"`
	Recent      []Order `json:"recentOrders"`
}

// ComputeStats counts orders of every status, including cancelled ones.
func ComputeStats(orders []Order) Stats {
	spent := decimal.Zero
	processing := 0
	for _, o := range orders {
		spent = spent.Add(decimal.NewFromFloat(o.Total))
		if o.Status == StatusProcessing {
			processing++
		}
	}

	recent := SortNewestFirst(orders)
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}

	return Stats{
		TotalOrders: len(orders),
		TotalSpent:  spent.Round(2).InexactFloat64(),
		Processing:  processing,
		Recent:      recent,
	}
}

// Filter selects the orders shown in the order history.
type Filter struct {
	// Search matches the order id or customer name, ignoring case.
	Search string
	// Status "" or "all" matches every status.
	Status string
	// Since excludes orders placed before it unless zero.
	Since time.Time
}

func (f Filter) matches(o *Order) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(o.ID), q) &&
			!strings.Contains(strings.ToLower(o.CustomerName), q) {
			return false
		}
	}
	if f.Status != "" && f.Status != "all" && string(o.Status) != f.Status {
		return false
	}
	if !f.Since.IsZero() && o.CreatedAt().Before(f.Since) {
		return false
	}
	return true
}

// Apply returns the matching orders, newest first.
func (f Filter) Apply(orders []Order) []Order {
	matched := make([]Order, 0, len(orders))
	for i := range orders {
		if f.matches(&orders[i]) {
			matched = append(matched, orders[i])
		}
	}
	return SortNewestFirst(matched)
}

// SortNewestFirst returns a copy ordered by Date descending. Orders with
// equal or unparseable dates keep their relative order.
func SortNewestFirst(orders []Order) []Order {
	out := make([]Order, len(orders))
	copy(out, orders)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt().After(out[j].CreatedAt())
	})
	return out
}

// RangeStart resolves a named history range relative to now. "all" and ""
// return the zero time.
func RangeStart(name string, now time.Time) (time.Time, error) {
	switch name {
	case "", "all":
		return time.Time{}, nil
	case "7days":
		return now.AddDate(0, 0, -7), nil
	case "30days":
		return now.AddDate(0, 0, -30), nil
	case "90days":
		return now.AddDate(0, 0, -90), nil
	case "12months":
		return now.AddDate(-1, 0, 0), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownRange, name)
}
