package domain

import (
	"errors"
	"testing"
)

func TestListParams_Normalize(t *testing.T) {
	testCases := []struct {
		name      string
		params    ListParams
		wantErr   error
		wantLimit int
		wantSort  SortOrder
	}{
		{
			name:      "defaults",
			params:    ListParams{},
			wantLimit: DefaultPageLimit,
			wantSort:  SortNewest,
		},
		{
			name:      "unknown sort falls back to newest",
			params:    ListParams{Sort: "alphabetical", Limit: 10},
			wantLimit: 10,
			wantSort:  SortNewest,
		},
		{
			name:      "price sort preserved",
			params:    ListParams{Sort: SortPriceAsc, Limit: 5},
			wantLimit: 5,
			wantSort:  SortPriceAsc,
		},
		{
			name:    "non-numeric country rejected",
			params:  ListParams{Country: "narnia"},
			wantErr: ErrInvalidCountry,
		},
		{
			name:    "owner-only without identity rejected",
			params:  ListParams{OwnerOnly: true},
			wantErr: ErrAuthRequired,
		},
		{
			name:      "owner-only with identity allowed",
			params:    ListParams{OwnerOnly: true, OwnerID: "user-1"},
			wantLimit: DefaultPageLimit,
			wantSort:  SortNewest,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.params.Normalize()
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Normalize() error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got.Limit != tc.wantLimit {
				t.Errorf("Limit = %d, want %d", got.Limit, tc.wantLimit)
			}
			if got.Sort != tc.wantSort {
				t.Errorf("Sort = %q, want %q", got.Sort, tc.wantSort)
			}
		})
	}
}

func TestListParams_NormalizeCountry(t *testing.T) {
	p, err := ListParams{Country: "372"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if p.CountryID == nil || *p.CountryID != 372 {
		t.Errorf("CountryID = %v, want 372", p.CountryID)
	}

	p, err = ListParams{Country: FilterAll}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if p.CountryID != nil {
		t.Errorf("CountryID = %v, want nil for %q selector", p.CountryID, FilterAll)
	}
}

func TestListParams_Key(t *testing.T) {
	base := ListParams{Search: "bike", Category: "sports", Limit: 10}
	a, _ := base.Normalize()

	same, _ := base.Normalize()
	if a.Key() != same.Key() {
		t.Error("identical tuples must produce identical keys")
	}

	variants := []ListParams{
		{Search: "bike", Category: "sports", Limit: 20},
		{Search: "bikes", Category: "sports", Limit: 10},
		{Search: "bike", Category: "electronics", Limit: 10},
		{Search: "bike", Category: "sports", Limit: 10, Sort: SortPriceDesc},
		{Search: "bike", Category: "sports", Limit: 10, PublishedOnly: true},
		{Search: "bike", Category: "sports", Limit: 10, County: "harju"},
		{Search: "bike", Category: "sports", Limit: 10, Country: "372"},
	}
	for _, v := range variants {
		n, err := v.Normalize()
		if err != nil {
			t.Fatalf("Normalize(%+v) error = %v", v, err)
		}
		if n.Key() == a.Key() {
			t.Errorf("tuple %+v must not share a cache key with the base tuple", v)
		}
	}
}

func TestListParams_KeyDelimiterInValue(t *testing.T) {
	// A field value containing the key delimiter must not make two distinct
	// tuples indistinguishable.
	left, err := ListParams{Search: "bike|sports", Limit: 10}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	right, err := ListParams{Search: "bike", Category: "sports", Limit: 10}.Normalize()
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if left.Key() == right.Key() {
		t.Errorf("distinct tuples share key %q", left.Key())
	}
}

func TestListParams_Offset(t *testing.T) {
	p := ListParams{Limit: 10}
	if got := p.Offset(0); got != 0 {
		t.Errorf("Offset(0) = %d, want 0", got)
	}
	if got := p.Offset(3); got != 30 {
		t.Errorf("Offset(3) = %d, want 30", got)
	}
}
