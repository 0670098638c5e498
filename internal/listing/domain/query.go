package domain

import (
	"fmt"
	"strconv"
)

// SortOrder selects the remote ordering of a listing page
type SortOrder string

const (
	SortNewest    SortOrder = "newest"
	SortPriceAsc  SortOrder = "price_asc"
	SortPriceDesc SortOrder = "price_desc"
)

// FilterAll is the selector value that disables a filter
const FilterAll = "all"

// DefaultPageLimit is the page size used when none is requested
const DefaultPageLimit = 20

// ListParams is the full parameter tuple of a remote listing query. The
// tuple doubles as a cache key: identical tuples share cached pages, any
// change restarts pagination from page zero under a fresh key.
type ListParams struct {
	Search        string
	Category      string
	County        string
	Country       string // raw selector: "", "all", or a numeric country id
	Sort          SortOrder
	PublishedOnly bool
	OwnerOnly     bool
	OwnerID       string // authenticated caller, resolved by the delivery layer
	Limit         int

	// CountryID is the parsed numeric country filter, set by Normalize.
	CountryID *int64
}

// Normalize fills defaults and validates the tuple. A non-numeric country
// selector is rejected rather than passed through as a broken filter, and
// OwnerOnly without a resolved identity is an error rather than a silent
// everyone's-items listing.
func (p ListParams) Normalize() (ListParams, error) {
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}

	switch p.Sort {
	case SortPriceAsc, SortPriceDesc:
	default:
		p.Sort = SortNewest
	}

	p.CountryID = nil
	if p.Country != "" && p.Country != FilterAll {
		id, err := strconv.ParseInt(p.Country, 10, 64)
		if err != nil {
			return p, fmt.Errorf("%w: %q", ErrInvalidCountry, p.Country)
		}
		p.CountryID = &id
	}

	if p.OwnerOnly && p.OwnerID == "" {
		return p, ErrAuthRequired
	}

	return p, nil
}

// FilterCategory reports whether the category filter is active
func (p ListParams) FilterCategory() bool {
	return p.Category != "" && p.Category != FilterAll
}

// FilterCounty reports whether the county filter is active
func (p ListParams) FilterCounty() bool {
	return p.County != "" && p.County != FilterAll
}

// Offset returns the zero-based row offset of a page
func (p ListParams) Offset(page int) int {
	return page * p.Limit
}

// Key returns a stable cache key for the parameter tuple. Free-text fields
// are quoted so a delimiter inside a value cannot collide two distinct
// tuples into one key.
func (p ListParams) Key() string {
	country := ""
	if p.CountryID != nil {
		country = strconv.FormatInt(*p.CountryID, 10)
	}
	return fmt.Sprintf("%q|%q|%q|%s|%q|%t|%t|%q|%d",
		p.Search, p.Category, p.County, country, string(p.Sort),
		p.PublishedOnly, p.OwnerOnly, p.OwnerID, p.Limit)
}
