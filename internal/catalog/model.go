// Package catalog implements the in-memory catalog: category index, product filtering,
// sort strategies and pagination. Everything here is pure and safe for concurrent reads.
package catalog

import (
	"fmt"
	"time"

	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
)

// MaxRating is the upper bound of a product rating.
const MaxRating = 5.0

// Product is a sellable item of a vendor. Price is in minor currency units.
type Product struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   string    `json:"description"`
	VendorID      uuid.UUID `json:"vendor_id"`
	CategoryID    uuid.UUID `json:"category_id"`
	Price         int64     `json:"price"`
	Currency      string    `json:"currency"`
	StockQuantity int32     `json:"stock_quantity"`
	Rating        float64   `json:"rating"`
	Tags          []string  `json:"tags,omitempty"`
	Featured      bool      `json:"featured"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Validate checks the product invariants.
func (p Product) Validate() error {
	if p.Price < 0 {
		return fmt.Errorf("product %s: negative price %d: %w", p.ID, p.Price, perrors.ErrValidation)
	}
	if p.Rating < 0 || p.Rating > MaxRating {
		return fmt.Errorf("product %s: rating %.2f out of range: %w", p.ID, p.Rating, perrors.ErrValidation)
	}
	return nil
}

// Category is a node of the category forest.
// ParentID is nil only for roots and Level of a root is 1.
type Category struct {
	ID       uuid.UUID   `json:"id"`
	ParentID *uuid.UUID  `json:"parent_id,omitempty"`
	Name     string      `json:"name"`
	Slug     string      `json:"slug"`
	Level    int         `json:"level"`
	Position int         `json:"position"`
	Children []*Category `json:"children,omitempty"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}
