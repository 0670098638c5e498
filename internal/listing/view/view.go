// Package view derives a display ordering over an already-fetched product
// collection. It is purely in-memory: its parameters are independent of the
// remote query's own filters, and recomputation never touches the network.
package view

import (
	"context"
	"sort"
	"strings"

	"github.com/tair/marketplace-listing/internal/listing/domain"
)

// Sort selects the local ordering of the view
type Sort string

const (
	// SortDefault places drafts before everything else and otherwise keeps
	// the input order.
	SortDefault   Sort = ""
	SortPriceAsc  Sort = "price_asc"
	SortPriceDesc Sort = "price_desc"
	SortNewest    Sort = "newest"
	SortOldest    Sort = "oldest"
)

// Params is the view's own search/category/sort state
type Params struct {
	Search   string
	Category string
	Sort     Sort
}

// Apply returns a freshly allocated filtered and sorted view of the input
// collection. The input is never mutated.
func Apply(products []domain.Product, p Params) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, product := range products {
		if matches(product, p) {
			out = append(out, product)
		}
	}

	switch p.Sort {
	case SortPriceAsc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	case SortPriceDesc:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].IsDraft() && !out[j].IsDraft() })
	}

	return out
}

// matches applies the view's filter predicate: the search text (when
// non-empty) must appear in the title, owner username or owner full name,
// and the category (when active) must match exactly.
func matches(p domain.Product, params Params) bool {
	if params.Category != "" && params.Category != domain.FilterAll && p.Category != params.Category {
		return false
	}
	if params.Search == "" {
		return true
	}
	needle := strings.ToLower(params.Search)
	return strings.Contains(strings.ToLower(p.Title), needle) ||
		strings.Contains(strings.ToLower(p.Username), needle) ||
		strings.Contains(strings.ToLower(p.FullName), needle)
}

// View binds the local parameters to the collaborators supplied by the
// caller: a load-more trigger fired by an external visibility signal and a
// delete delegate. The view itself never orchestrates fetches and never
// mutates the collection; after a successful delete the caller supplies an
// updated collection.
type View struct {
	Params   Params
	HasMore  func() bool
	LoadMore func()
	OnDelete func(ctx context.Context, productID string) error
}

// Apply derives the view over the given collection
func (v *View) Apply(products []domain.Product) []domain.Product {
	return Apply(products, v.Params)
}

// EndReached is the externally supplied visibility signal: it requests the
// next remote page only when more pages are known to exist.
func (v *View) EndReached() {
	if v.HasMore == nil || v.LoadMore == nil {
		return
	}
	if v.HasMore() {
		v.LoadMore()
	}
}

// Delete delegates removal to the caller-supplied collaborator
func (v *View) Delete(ctx context.Context, productID string) error {
	if v.OnDelete == nil {
		return nil
	}
	return v.OnDelete(ctx, productID)
}
