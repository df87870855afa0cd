package backend

import (
	"context"
	"errors"
	"log/slog"

	"github.com/abgdnv/bazaar/internal/catalog"
	"github.com/abgdnv/bazaar/pkg/config"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
)

// Breaker guards a Backend with a circuit breaker.
// Only transient failures count against the circuit; an open circuit fails fast with KindTransient.
type Breaker struct {
	next Backend
	cb   *gobreaker.CircuitBreaker[any]
}

// WithBreaker wraps next in a circuit breaker configured by cfg.
func WithBreaker(next Backend, cfg config.CircuitBreakerConfig, logger *slog.Logger) *Breaker {
	st := gobreaker.Settings{
		Name:        "backend-cb",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > cfg.ConsecutiveFailures ||
				(counts.TotalSuccesses+counts.TotalFailures > cfg.ConsecutiveFailures &&
					float64(counts.TotalFailures)/float64(counts.TotalSuccesses+counts.TotalFailures)*100 > float64(cfg.ErrorRatePercent))
		},
		// Not found and rejected calls mean the backend is healthy.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker[any](st)}
}

// State returns the current state of the circuit.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func execute[T any](b *Breaker, op string, fn func() (T, error)) (T, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, NewError(op, KindTransient, err)
		}
		return zero, err
	}
	return res.(T), nil
}

func (b *Breaker) ListProducts(ctx context.Context, limit, offset int) ([]catalog.Product, error) {
	return execute(b, "list products", func() ([]catalog.Product, error) {
		return b.next.ListProducts(ctx, limit, offset)
	})
}

func (b *Breaker) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	return execute(b, "get product", func() (*catalog.Product, error) {
		return b.next.GetProduct(ctx, id)
	})
}

func (b *Breaker) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	return execute(b, "list categories", func() ([]catalog.Category, error) {
		return b.next.ListCategories(ctx)
	})
}

func (b *Breaker) ListCart(ctx context.Context, userID string) ([]CartItem, error) {
	return execute(b, "list cart", func() ([]CartItem, error) {
		return b.next.ListCart(ctx, userID)
	})
}

func (b *Breaker) AddCartItem(ctx context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID, qty int32) (CartItem, error) {
	return execute(b, "add cart item", func() (CartItem, error) {
		return b.next.AddCartItem(ctx, userID, productID, variantID, qty)
	})
}

func (b *Breaker) SetCartQuantity(ctx context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID, qty int32) (CartItem, error) {
	return execute(b, "set cart quantity", func() (CartItem, error) {
		return b.next.SetCartQuantity(ctx, userID, productID, variantID, qty)
	})
}

func (b *Breaker) RemoveCartItem(ctx context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID) error {
	_, err := execute(b, "remove cart item", func() (struct{}, error) {
		return struct{}{}, b.next.RemoveCartItem(ctx, userID, productID, variantID)
	})
	return err
}

func (b *Breaker) ListWishlist(ctx context.Context, userID string) ([]WishlistItem, error) {
	return execute(b, "list wishlist", func() ([]WishlistItem, error) {
		return b.next.ListWishlist(ctx, userID)
	})
}

func (b *Breaker) AddWishlist(ctx context.Context, userID string, productID uuid.UUID) error {
	_, err := execute(b, "add wishlist", func() (struct{}, error) {
		return struct{}{}, b.next.AddWishlist(ctx, userID, productID)
	})
	return err
}

func (b *Breaker) RemoveWishlist(ctx context.Context, userID string, productID uuid.UUID) error {
	_, err := execute(b, "remove wishlist", func() (struct{}, error) {
		return struct{}{}, b.next.RemoveWishlist(ctx, userID, productID)
	})
	return err
}

func (b *Breaker) Ping(ctx context.Context) error {
	_, err := execute(b, "ping", func() (struct{}, error) {
		return struct{}{}, b.next.Ping(ctx)
	})
	return err
}
