package catalog

import (
	"cmp"
	"fmt"
	"slices"

	perrors "github.com/abgdnv/bazaar/internal/errors"
)

// SortKind names a sort strategy.
type SortKind string

const (
	SortRelevance SortKind = "relevance"
	SortPriceAsc  SortKind = "price-asc"
	SortPriceDesc SortKind = "price-desc"
	SortRating    SortKind = "rating"
	SortNewest    SortKind = "newest"
)

var comparators = map[SortKind]func(a, b Product) int{
	SortPriceAsc:  func(a, b Product) int { return cmp.Compare(a.Price, b.Price) },
	SortPriceDesc: func(a, b Product) int { return cmp.Compare(b.Price, a.Price) },
	SortRating:    func(a, b Product) int { return cmp.Compare(b.Rating, a.Rating) },
	SortNewest:    func(a, b Product) int { return b.CreatedAt.Compare(a.CreatedAt) },
}

// ParseSortKind maps a query value to a SortKind. The empty string means relevance.
func ParseSortKind(s string) (SortKind, error) {
	kind := SortKind(s)
	if s == "" || kind == SortRelevance {
		return SortRelevance, nil
	}
	if _, ok := comparators[kind]; !ok {
		return "", fmt.Errorf("%q: %w", s, perrors.ErrUnknownSort)
	}
	return kind, nil
}

// Sort returns a sorted copy of products. Ties keep their relative order.
// Relevance and unknown kinds return the copy unchanged.
func Sort(products []Product, kind SortKind) []Product {
	out := slices.Clone(products)
	if out == nil {
		out = []Product{}
	}
	if compare, ok := comparators[kind]; ok {
		slices.SortStableFunc(out, compare)
	}
	return out
}
