// Package cart keeps the cart and wishlist of a storefront session. Guest sessions persist
// locally; signed-in sessions write through to the backend and fall back to the sync queue
// when it cannot be reached.
package cart

import (
	"context"
	"time"

	"github.com/abgdnv/bazaar/internal/catalog"
	"github.com/google/uuid"
)

// GuestOwner owns the items of a session that has not signed in.
const GuestOwner = "guest"

// State is the authentication state of a session.
type State int

const (
	StateGuest State = iota
	StateMigrating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateGuest:
		return "guest"
	case StateMigrating:
		return "migrating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// LineItem is a product (and optional variant) in the cart.
type LineItem struct {
	ID        uuid.UUID  `json:"id"`
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int32      `json:"quantity"`
	Owner     string     `json:"owner"`
	AddedAt   time.Time  `json:"added_at"`
}

func (l LineItem) matches(productID uuid.UUID, variantID *uuid.UUID) bool {
	if l.ProductID != productID {
		return false
	}
	if l.VariantID == nil || variantID == nil {
		return l.VariantID == nil && variantID == nil
	}
	return *l.VariantID == *variantID
}

// WishlistEntry is a saved product.
type WishlistEntry struct {
	ProductID uuid.UUID `json:"product_id"`
	Owner     string    `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

// ProductResolver looks up products for price calculations.
type ProductResolver interface {
	ResolveProduct(id uuid.UUID) (catalog.Product, bool)
}

// ResolverFunc adapts a function to ProductResolver.
type ResolverFunc func(id uuid.UUID) (catalog.Product, bool)

func (f ResolverFunc) ResolveProduct(id uuid.UUID) (catalog.Product, bool) {
	return f(id)
}

// Connectivity reports whether the backend is believed reachable. Set records a failed
// write, so the next successful ping reconnects and drains the queues.
type Connectivity interface {
	Online() bool
	Set(ctx context.Context, online bool)
}

// guestDocument is the persisted state of a guest session.
type guestDocument struct {
	Lines     []LineItem      `json:"lines"`
	Wishlist  []WishlistEntry `json:"wishlist"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// sessionDocument records who a session is signed in as.
type sessionDocument struct {
	Owner string `json:"owner"`
}

func guestKey(session string) string {
	return "guest:" + session
}

func sessionKey(session string) string {
	return "session:" + session
}
