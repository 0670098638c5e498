package query

import (
	"context"
	"fmt"

	"github.com/tair/marketplace-listing/internal/listing/domain"
	"github.com/tair/marketplace-listing/internal/listing/pager"
)

// ListProductsQuery represents the query for one page of listings
type ListProductsQuery struct {
	Params domain.ListParams
	Page   int
}

// ProductPage is one resolved page plus pagination state
type ProductPage struct {
	Products []domain.Product `json:"products"`
	Page     int              `json:"page"`
	HasMore  bool             `json:"has_more"`
}

// ListProductsHandler handles the list products query
type ListProductsHandler struct {
	pager *pager.Pager
}

// NewListProductsHandler creates a new list products handler
func NewListProductsHandler(p *pager.Pager) *ListProductsHandler {
	return &ListProductsHandler{pager: p}
}

// Handle executes the list products query. After a page resolves, the next
// page is prefetched speculatively; the caller never waits on it.
func (h *ListProductsHandler) Handle(ctx context.Context, q ListProductsQuery) (*ProductPage, error) {
	params, err := q.Params.Normalize()
	if err != nil {
		return nil, err
	}

	products, err := h.pager.Page(ctx, params, q.Page)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	page := &ProductPage{
		Products: products,
		Page:     q.Page,
		HasMore:  h.pager.HasMore(params),
	}

	h.pager.Prefetch(params)

	return page, nil
}
