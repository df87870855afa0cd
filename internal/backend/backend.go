// Package backend provides the remote store the storefront reads its catalog from and writes
// authenticated carts and wishlists to. Every failure is tagged with a Kind so callers can
// decide between retrying, discarding and falling back without inspecting driver errors.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abgdnv/bazaar/internal/catalog"
	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
)

// Kind classifies a backend failure.
type Kind int

const (
	// KindUnknown is an error that carries no classification.
	KindUnknown Kind = iota
	// KindNotFound means the addressed record does not exist.
	KindNotFound
	// KindTransient is a network or availability failure; the same call may succeed later.
	KindTransient
	// KindSemantic is a rejection by the backend (constraint violation, bad input). Retrying will not help.
	KindSemantic
	// KindSchemaMissing means the backend has no table for the requested data.
	KindSchemaMissing
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	case KindSemantic:
		return "semantic"
	case KindSchemaMissing:
		return "schema_missing"
	default:
		return "unknown"
	}
}

// Error is a failed backend call.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("backend %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("backend %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes not-found backend errors match perrors.ErrNotFound.
func (e *Error) Is(target error) bool {
	return e.Kind == KindNotFound && target == perrors.ErrNotFound
}

// NewError tags err with kind. A nil err still produces an error.
func NewError(op string, kind Kind, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the classification of err.
// Context deadlines count as transient, untagged errors as unknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	return KindUnknown
}

// IsTransient reports whether the call that produced err may succeed if retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// IsRejected reports whether the backend refused the call for good.
func IsRejected(err error) bool {
	k := KindOf(err)
	return k == KindSemantic || k == KindNotFound
}

// CartItem is a cart line as stored remotely for a signed-in user.
type CartItem struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int32      `json:"quantity"`
	CreatedAt time.Time  `json:"created_at"`
}

// WishlistItem is a wishlist entry as stored remotely for a signed-in user.
type WishlistItem struct {
	UserID    string    `json:"user_id"`
	ProductID uuid.UUID `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Backend is the remote query service. All methods return *Error on failure.
type Backend interface {
	// ListProducts returns active products ordered by creation time, newest first.
	ListProducts(ctx context.Context, limit, offset int) ([]catalog.Product, error)

	// GetProduct returns a single product. Returns KindNotFound if it does not exist.
	GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error)

	// ListCategories returns all categories as flat rows.
	ListCategories(ctx context.Context) ([]catalog.Category, error)

	// ListCart returns the cart lines of a user.
	ListCart(ctx context.Context, userID string) ([]CartItem, error)

	// AddCartItem adds qty to the line of (product, variant), creating it when missing.
	AddCartItem(ctx context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID, qty int32) (CartItem, error)

	// SetCartQuantity sets the quantity of the line of (product, variant), creating it when missing.
	SetCartQuantity(ctx context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID, qty int32) (CartItem, error)

	// RemoveCartItem removes the line of (product, variant). Returns KindNotFound if there is none.
	RemoveCartItem(ctx context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID) error

	// ListWishlist returns the wishlist of a user.
	ListWishlist(ctx context.Context, userID string) ([]WishlistItem, error)

	// AddWishlist adds a product to the wishlist. Adding twice is not an error.
	AddWishlist(ctx context.Context, userID string, productID uuid.UUID) error

	// RemoveWishlist removes a product from the wishlist. Removing a missing entry is not an error.
	RemoveWishlist(ctx context.Context, userID string, productID uuid.UUID) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// sameVariant compares optional variant ids.
func sameVariant(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
