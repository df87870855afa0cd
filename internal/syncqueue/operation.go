// Package syncqueue persists cart and wishlist mutations that could not reach the backend
// and replays them, in order, once connectivity returns.
package syncqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/abgdnv/bazaar/internal/backend"
	"github.com/google/uuid"
)

// Kind is the collection an operation targets.
type Kind string

const (
	KindCart     Kind = "cart"
	KindWishlist Kind = "wishlist"
)

// Action is the mutation an operation applies.
type Action string

const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
	// ActionSet overwrites a cart line quantity.
	ActionSet Action = "set"
)

// MaxQuantity caps the quantity of a cart line.
const MaxQuantity int32 = 9999

// Operation is a pending remote mutation. Quantity is the cart delta for add
// and the target quantity for set; wishlist operations ignore it.
// Creates marks an add that introduced the record locally, so a later remove may cancel it.
type Operation struct {
	ID        uuid.UUID  `json:"id"`
	Kind      Kind       `json:"kind"`
	Action    Action     `json:"action"`
	Owner     string     `json:"owner"`
	ProductID uuid.UUID  `json:"product_id"`
	VariantID *uuid.UUID `json:"variant_id,omitempty"`
	Quantity  int32      `json:"quantity,omitempty"`
	Creates   bool       `json:"creates,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Attempts  int        `json:"attempts"`
}

func (o Operation) String() string {
	return fmt.Sprintf("%s %s %s product=%s qty=%d", o.Kind, o.Action, o.Owner, o.ProductID, o.Quantity)
}

// sameTarget reports whether both operations address the same remote record.
func (o Operation) sameTarget(p Operation) bool {
	if o.Kind != p.Kind || o.Owner != p.Owner || o.ProductID != p.ProductID {
		return false
	}
	if o.Kind == KindWishlist {
		return true
	}
	if o.VariantID == nil || p.VariantID == nil {
		return o.VariantID == nil && p.VariantID == nil
	}
	return *o.VariantID == *p.VariantID
}

// Replayer applies a queued operation to the remote store.
type Replayer interface {
	Replay(ctx context.Context, op Operation) error
}

// ReplayerFunc adapts a function to Replayer.
type ReplayerFunc func(ctx context.Context, op Operation) error

func (f ReplayerFunc) Replay(ctx context.Context, op Operation) error {
	return f(ctx, op)
}

// BackendReplayer replays operations against a backend.Backend.
type BackendReplayer struct {
	Backend backend.Backend
}

// Replay maps op onto the matching backend call. Removing a record that is already gone
// counts as success.
func (r BackendReplayer) Replay(ctx context.Context, op Operation) error {
	if op.Action == ActionRemove {
		if err := r.remove(ctx, op); backend.KindOf(err) != backend.KindNotFound {
			return err
		}
		return nil
	}
	switch {
	case op.Kind == KindCart && op.Action == ActionAdd:
		_, err := r.Backend.AddCartItem(ctx, op.Owner, op.ProductID, op.VariantID, op.Quantity)
		return err
	case op.Kind == KindCart && op.Action == ActionSet:
		_, err := r.Backend.SetCartQuantity(ctx, op.Owner, op.ProductID, op.VariantID, op.Quantity)
		return err
	case op.Kind == KindWishlist && op.Action == ActionAdd:
		return r.Backend.AddWishlist(ctx, op.Owner, op.ProductID)
	}
	return unsupported(op)
}

func (r BackendReplayer) remove(ctx context.Context, op Operation) error {
	switch op.Kind {
	case KindCart:
		return r.Backend.RemoveCartItem(ctx, op.Owner, op.ProductID, op.VariantID)
	case KindWishlist:
		return r.Backend.RemoveWishlist(ctx, op.Owner, op.ProductID)
	}
	return unsupported(op)
}

func unsupported(op Operation) error {
	return backend.NewError("replay", backend.KindSemantic, fmt.Errorf("unsupported operation %s %s", op.Kind, op.Action))
}

// Failure describes an operation the queue gave up on.
type Failure struct {
	Op     Operation
	Reason string
	Err    error
}

// FailureHandler is told about every discarded operation.
type FailureHandler func(ctx context.Context, f Failure)
