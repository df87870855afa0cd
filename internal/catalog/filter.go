package catalog

import (
	"fmt"
	"strings"

	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
)

// FilterSpec narrows a product list. Every field is optional; nil means no constraint on that axis.
type FilterSpec struct {
	Query      *string
	CategoryID *uuid.UUID
	VendorID   *uuid.UUID
	MinPrice   *int64
	MaxPrice   *int64
	MinRating  *float64
	InStock    *bool
}

// IsEmpty reports whether no filter axis is set.
func (s FilterSpec) IsEmpty() bool {
	return s.query() == "" && s.CategoryID == nil && s.VendorID == nil &&
		s.MinPrice == nil && s.MaxPrice == nil && s.MinRating == nil && s.InStock == nil
}

// Validate reports a malformed spec: inverted or negative price bounds, or a rating floor outside [0,5].
func (s FilterSpec) Validate() error {
	if s.MinPrice != nil && *s.MinPrice < 0 {
		return fmt.Errorf("minPrice %d is negative: %w", *s.MinPrice, perrors.ErrInvalidFilter)
	}
	if s.MaxPrice != nil && *s.MaxPrice < 0 {
		return fmt.Errorf("maxPrice %d is negative: %w", *s.MaxPrice, perrors.ErrInvalidFilter)
	}
	if s.MinPrice != nil && s.MaxPrice != nil && *s.MinPrice > *s.MaxPrice {
		return fmt.Errorf("minPrice %d exceeds maxPrice %d: %w", *s.MinPrice, *s.MaxPrice, perrors.ErrInvalidFilter)
	}
	if s.MinRating != nil && (*s.MinRating < 0 || *s.MinRating > MaxRating) {
		return fmt.Errorf("minRating %.2f out of range: %w", *s.MinRating, perrors.ErrInvalidFilter)
	}
	return nil
}

func (s FilterSpec) query() string {
	if s.Query == nil {
		return ""
	}
	return strings.TrimSpace(*s.Query)
}

// predicate reports whether a product satisfies one filter axis.
type predicate func(p *Product) bool

// predicates returns one predicate per populated field.
func (s FilterSpec) predicates() []predicate {
	var preds []predicate
	if q := strings.ToLower(s.query()); q != "" {
		preds = append(preds, func(p *Product) bool {
			return strings.Contains(strings.ToLower(p.Name), q) ||
				strings.Contains(strings.ToLower(p.Description), q)
		})
	}
	if s.CategoryID != nil {
		id := *s.CategoryID
		preds = append(preds, func(p *Product) bool { return p.CategoryID == id })
	}
	if s.VendorID != nil {
		id := *s.VendorID
		preds = append(preds, func(p *Product) bool { return p.VendorID == id })
	}
	if s.MinPrice != nil {
		lo := *s.MinPrice
		preds = append(preds, func(p *Product) bool { return p.Price >= lo })
	}
	if s.MaxPrice != nil {
		hi := *s.MaxPrice
		preds = append(preds, func(p *Product) bool { return p.Price <= hi })
	}
	if s.MinRating != nil {
		floor := *s.MinRating
		preds = append(preds, func(p *Product) bool { return p.Rating >= floor })
	}
	if s.InStock != nil && *s.InStock {
		preds = append(preds, func(p *Product) bool { return p.StockQuantity > 0 })
	}
	return preds
}

// Search returns the products passing every populated predicate of spec, in input order.
// A malformed spec matches nothing; callers use FilterSpec.Validate to report why.
// The input slice is never modified and the result is never nil.
func Search(products []Product, spec FilterSpec) []Product {
	if spec.Validate() != nil {
		return []Product{}
	}
	preds := spec.predicates()
	out := make([]Product, 0, len(products))
	for i := range products {
		if matchAll(&products[i], preds) {
			out = append(out, products[i])
		}
	}
	return out
}

func matchAll(p *Product, preds []predicate) bool {
	for _, pred := range preds {
		if !pred(p) {
			return false
		}
	}
	return true
}
