package backend

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/abgdnv/bazaar/internal/catalog"
	"github.com/google/uuid"
)

// Fallback serves catalog reads from a mock backend while the primary reports a missing schema.
// Cart and wishlist calls always go to the primary.
type Fallback struct {
	Backend
	mock   Backend
	logger *slog.Logger
	warned atomic.Bool
}

// WithFallback wraps primary so catalog reads fall back to mock on KindSchemaMissing.
func WithFallback(primary, mock Backend, logger *slog.Logger) *Fallback {
	return &Fallback{
		Backend: primary,
		mock:    mock,
		logger:  logger.With("component", "backend_fallback"),
	}
}

func (f *Fallback) ListProducts(ctx context.Context, limit, offset int) ([]catalog.Product, error) {
	products, err := f.Backend.ListProducts(ctx, limit, offset)
	if f.useMock(err) {
		return f.mock.ListProducts(ctx, limit, offset)
	}
	return products, err
}

func (f *Fallback) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	product, err := f.Backend.GetProduct(ctx, id)
	if f.useMock(err) {
		return f.mock.GetProduct(ctx, id)
	}
	return product, err
}

func (f *Fallback) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	categories, err := f.Backend.ListCategories(ctx)
	if f.useMock(err) {
		return f.mock.ListCategories(ctx)
	}
	return categories, err
}

func (f *Fallback) useMock(err error) bool {
	if KindOf(err) != KindSchemaMissing {
		return false
	}
	if f.warned.CompareAndSwap(false, true) {
		f.logger.Warn("catalog schema missing, serving mock dataset", "error", err)
	}
	return true
}
