package backend

import (
	"cmp"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/abgdnv/bazaar/internal/catalog"
	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
)

//go:embed mockdata.json
var mockData []byte

// Dataset is a catalog snapshot used to seed a MemoryBackend.
type Dataset struct {
	Categories []catalog.Category `json:"categories"`
	Products   []catalog.Product  `json:"products"`
}

// MockDataset returns the catalog bundled with the binary.
// It is served when the database has no catalog schema yet.
func MockDataset() (Dataset, error) {
	var ds Dataset
	if err := json.Unmarshal(mockData, &ds); err != nil {
		return Dataset{}, fmt.Errorf("failed to decode mock dataset: %w", err)
	}
	return ds, nil
}

// MemoryBackend implements Backend in memory. It can be switched offline,
// in which case every call fails with KindTransient.
type MemoryBackend struct {
	mu         sync.RWMutex
	categories []catalog.Category
	products   []catalog.Product
	carts      map[string][]CartItem
	wishlists  map[string][]WishlistItem
	offline    bool
	now        func() time.Time
}

// NewMemoryBackend creates a backend serving ds.
func NewMemoryBackend(ds Dataset) *MemoryBackend {
	products := slices.Clone(ds.Products)
	slices.SortStableFunc(products, func(a, b catalog.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return &MemoryBackend{
		categories: slices.Clone(ds.Categories),
		products:   products,
		carts:      make(map[string][]CartItem),
		wishlists:  make(map[string][]WishlistItem),
		now:        time.Now,
	}
}

// SetOnline switches the simulated network on or off.
func (m *MemoryBackend) SetOnline(online bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = !online
}

func (m *MemoryBackend) unavailable(op string) error {
	if m.offline {
		return NewError(op, KindTransient, fmt.Errorf("backend unreachable"))
	}
	return nil
}

func (m *MemoryBackend) ListProducts(_ context.Context, limit, offset int) ([]catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.unavailable("list products"); err != nil {
		return nil, err
	}

	active := make([]catalog.Product, 0, len(m.products))
	for _, p := range m.products {
		if p.Active {
			active = append(active, p)
		}
	}
	if offset >= len(active) {
		return []catalog.Product{}, nil
	}
	end := len(active)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return slices.Clone(active[offset:end]), nil
}

func (m *MemoryBackend) GetProduct(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.unavailable("get product"); err != nil {
		return nil, err
	}

	for _, p := range m.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, NewError("get product", KindNotFound, perrors.ErrProductNotFound)
}

func (m *MemoryBackend) ListCategories(_ context.Context) ([]catalog.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.unavailable("list categories"); err != nil {
		return nil, err
	}
	return slices.Clone(m.categories), nil
}

func (m *MemoryBackend) ListCart(_ context.Context, userID string) ([]CartItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.unavailable("list cart"); err != nil {
		return nil, err
	}
	return slices.Clone(m.carts[userID]), nil
}

func (m *MemoryBackend) AddCartItem(_ context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID, qty int32) (CartItem, error) {
	return m.upsertLine("add cart item", userID, productID, variantID, func(current int32) int32 {
		return current + qty
	})
}

func (m *MemoryBackend) SetCartQuantity(_ context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID, qty int32) (CartItem, error) {
	return m.upsertLine("set cart quantity", userID, productID, variantID, func(int32) int32 {
		return qty
	})
}

func (m *MemoryBackend) upsertLine(op, userID string, productID uuid.UUID, variantID *uuid.UUID, next func(int32) int32) (CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.unavailable(op); err != nil {
		return CartItem{}, err
	}
	if !m.hasProduct(productID) {
		return CartItem{}, NewError(op, KindSemantic, perrors.ErrProductNotFound)
	}

	lines := m.carts[userID]
	for i, line := range lines {
		if line.ProductID == productID && sameVariant(line.VariantID, variantID) {
			qty := next(line.Quantity)
			if qty < 1 {
				return CartItem{}, NewError(op, KindSemantic, perrors.ErrInvalidQuantity)
			}
			lines[i].Quantity = qty
			return lines[i], nil
		}
	}
	qty := next(0)
	if qty < 1 {
		return CartItem{}, NewError(op, KindSemantic, perrors.ErrInvalidQuantity)
	}
	item := CartItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		VariantID: variantID,
		Quantity:  qty,
		CreatedAt: m.now(),
	}
	m.carts[userID] = append(lines, item)
	return item, nil
}

func (m *MemoryBackend) RemoveCartItem(_ context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.unavailable("remove cart item"); err != nil {
		return err
	}

	lines := m.carts[userID]
	i := slices.IndexFunc(lines, func(line CartItem) bool {
		return line.ProductID == productID && sameVariant(line.VariantID, variantID)
	})
	if i < 0 {
		return NewError("remove cart item", KindNotFound, perrors.ErrLineNotFound)
	}
	m.carts[userID] = slices.Delete(lines, i, i+1)
	return nil
}

func (m *MemoryBackend) ListWishlist(_ context.Context, userID string) ([]WishlistItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.unavailable("list wishlist"); err != nil {
		return nil, err
	}
	return slices.Clone(m.wishlists[userID]), nil
}

func (m *MemoryBackend) AddWishlist(_ context.Context, userID string, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.unavailable("add wishlist"); err != nil {
		return err
	}
	if !m.hasProduct(productID) {
		return NewError("add wishlist", KindSemantic, perrors.ErrProductNotFound)
	}

	entries := m.wishlists[userID]
	if slices.ContainsFunc(entries, func(w WishlistItem) bool { return w.ProductID == productID }) {
		return nil
	}
	m.wishlists[userID] = append(entries, WishlistItem{UserID: userID, ProductID: productID, CreatedAt: m.now()})
	return nil
}

func (m *MemoryBackend) RemoveWishlist(_ context.Context, userID string, productID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.unavailable("remove wishlist"); err != nil {
		return err
	}
	m.wishlists[userID] = slices.DeleteFunc(m.wishlists[userID], func(w WishlistItem) bool {
		return w.ProductID == productID
	})
	return nil
}

func (m *MemoryBackend) Ping(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.unavailable("ping")
}

func (m *MemoryBackend) hasProduct(id uuid.UUID) bool {
	return slices.ContainsFunc(m.products, func(p catalog.Product) bool { return p.ID == id })
}
