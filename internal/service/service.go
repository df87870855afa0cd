// Package service provides the catalog read model: a cached product list and category index
// loaded from the backend, searched, sorted and paginated in memory.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/abgdnv/bazaar/internal/backend"
	"github.com/abgdnv/bazaar/internal/catalog"
	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// CatalogService defines the read operations of the storefront catalog.
type CatalogService interface {
	// Search filters, sorts and paginates the active products.
	// A malformed filter yields an empty page, not an error.
	Search(ctx context.Context, q SearchQuery) (catalog.Page, error)

	// FindProduct retrieves a single product by its unique identifier.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error)

	// Categories returns every category in tree pre-order.
	Categories(ctx context.Context) ([]CategoryDto, error)

	// FindCategory returns a category with its breadcrumb and children.
	// Returns ErrCategoryNotFound if the id is unknown.
	FindCategory(ctx context.Context, id uuid.UUID) (*CategoryDto, error)

	// FindCategoryBySlug is FindCategory keyed by slug.
	FindCategoryBySlug(ctx context.Context, slug string) (*CategoryDto, error)

	// ResolveProduct looks a product up in the loaded catalog without calling the backend.
	ResolveProduct(id uuid.UUID) (catalog.Product, bool)
}

var _ CatalogService = (*Service)(nil)

// SearchQuery is a parsed product search request.
type SearchQuery struct {
	Filter catalog.FilterSpec
	Sort   catalog.SortKind
	Limit  int
	Offset int
}

// CategoryRef is a short reference to a category.
type CategoryRef struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Slug string    `json:"slug"`
}

// CategoryDto represents a category with its place in the tree.
type CategoryDto struct {
	ID         uuid.UUID     `json:"id"`
	ParentID   *uuid.UUID    `json:"parent_id,omitempty"`
	Name       string        `json:"name"`
	Slug       string        `json:"slug"`
	Level      int           `json:"level"`
	Position   int           `json:"position"`
	Breadcrumb []CategoryRef `json:"breadcrumb,omitempty"`
	Children   []CategoryRef `json:"children"`
}

// snapshot is one immutable load of the catalog.
type snapshot struct {
	products []catalog.Product
	byID     map[uuid.UUID]int
	index    *catalog.Index
}

// Service implements CatalogService over a backend.Backend.
type Service struct {
	backend  backend.Backend
	ttl      time.Duration
	pageSize int
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	snap     *snapshot
	loadedAt time.Time
	group    singleflight.Group
}

// NewService creates a catalog service. The product list is reloaded at most once per ttl
// and read from the backend in pages of pageSize.
func NewService(b backend.Backend, ttl time.Duration, pageSize int, logger *slog.Logger) *Service {
	if pageSize <= 0 {
		pageSize = catalog.MaxPageLimit
	}
	return &Service{
		backend:  b,
		ttl:      ttl,
		pageSize: pageSize,
		logger:   logger.With("component", "catalog"),
		now:      time.Now,
	}
}

// Search filters, sorts and paginates the active products.
func (s *Service) Search(ctx context.Context, q SearchQuery) (catalog.Page, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return catalog.Page{}, err
	}
	if err := q.Filter.Validate(); err != nil {
		s.logger.WarnContext(ctx, "malformed filter, returning no matches", "error", err)
		return catalog.Paginate(nil, q.Limit, q.Offset), nil
	}
	found := catalog.Search(snap.products, q.Filter)
	return catalog.Paginate(catalog.Sort(found, q.Sort), q.Limit, q.Offset), nil
}

// FindProduct looks the product up in the cached list first and asks the backend otherwise.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *Service) FindProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	if p, ok := s.ResolveProduct(id); ok {
		return &p, nil
	}
	p, err := s.backend.GetProduct(ctx, id)
	if err != nil {
		if backend.KindOf(err) == backend.KindNotFound {
			return nil, fmt.Errorf("product %s: %w", id, perrors.ErrProductNotFound)
		}
		return nil, fmt.Errorf("failed to fetch product by ID %s: %w", id, err)
	}
	return p, nil
}

// ResolveProduct returns a product of the last loaded catalog. It never blocks on the backend.
func (s *Service) ResolveProduct(id uuid.UUID) (catalog.Product, bool) {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()
	if snap == nil {
		return catalog.Product{}, false
	}
	i, ok := snap.byID[id]
	if !ok {
		return catalog.Product{}, false
	}
	return snap.products[i], true
}

func (s *Service) Categories(ctx context.Context) ([]CategoryDto, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	nodes := snap.index.Nodes()
	out := make([]CategoryDto, 0, len(nodes))
	for _, node := range nodes {
		out = append(out, toDto(node, nil))
	}
	return out, nil
}

func (s *Service) FindCategory(ctx context.Context, id uuid.UUID) (*CategoryDto, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	node, err := snap.index.Resolve(id)
	if err != nil {
		return nil, err
	}
	return withBreadcrumb(snap.index, node)
}

func (s *Service) FindCategoryBySlug(ctx context.Context, slug string) (*CategoryDto, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	node, err := snap.index.BySlug(slug)
	if err != nil {
		return nil, err
	}
	return withBreadcrumb(snap.index, node)
}

// Warm loads the catalog ahead of the first request.
func (s *Service) Warm(ctx context.Context) error {
	_, err := s.load(ctx)
	return err
}

// Invalidate drops the cached catalog; the next read reloads it.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadedAt = time.Time{}
}

// load returns a fresh snapshot, reloading through a single flight when the cached one expired.
// A failed reload keeps serving the stale snapshot if there is one.
func (s *Service) load(ctx context.Context) (*snapshot, error) {
	s.mu.RLock()
	snap, loadedAt := s.snap, s.loadedAt
	s.mu.RUnlock()
	if snap != nil && s.now().Sub(loadedAt) < s.ttl {
		return snap, nil
	}

	v, err, _ := s.group.Do("catalog", func() (any, error) {
		// the request that started the flight may go away; the load must not
		fresh, err := s.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.snap, s.loadedAt = fresh, s.now()
		s.mu.Unlock()
		return fresh, nil
	})
	if err != nil {
		if snap != nil {
			s.logger.WarnContext(ctx, "catalog reload failed, serving stale data", "error", err,
				"age", s.now().Sub(loadedAt).String())
			return snap, nil
		}
		return nil, err
	}
	return v.(*snapshot), nil
}

func (s *Service) fetch(ctx context.Context) (*snapshot, error) {
	var products []catalog.Product
	for offset := 0; ; offset += s.pageSize {
		page, err := s.backend.ListProducts(ctx, s.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch products: %w", err)
		}
		for _, p := range page {
			if !p.Active {
				continue
			}
			if err := p.Validate(); err != nil {
				s.logger.WarnContext(ctx, "skipping invalid product", "error", err)
				continue
			}
			products = append(products, p)
		}
		if len(page) < s.pageSize {
			break
		}
	}

	rows, err := s.backend.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	roots, err := catalog.BuildTree(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to build category tree: %w", err)
	}

	byID := make(map[uuid.UUID]int, len(products))
	for i, p := range products {
		byID[p.ID] = i
	}
	s.logger.InfoContext(ctx, "catalog loaded", "products", len(products), "categories", len(rows))
	return &snapshot{
		products: products,
		byID:     byID,
		index:    catalog.NewIndex(roots),
	}, nil
}

func withBreadcrumb(idx *catalog.Index, node *catalog.Category) (*CategoryDto, error) {
	path, err := idx.Path(node.ID)
	if err != nil {
		return nil, err
	}
	dto := toDto(node, path)
	return &dto, nil
}

// toDto converts a category node to a CategoryDto.
func toDto(node *catalog.Category, path []*catalog.Category) CategoryDto {
	dto := CategoryDto{
		ID:       node.ID,
		ParentID: node.ParentID,
		Name:     node.Name,
		Slug:     node.Slug,
		Level:    node.Level,
		Position: node.Position,
		Children: make([]CategoryRef, 0, len(node.Children)),
	}
	for _, child := range node.Children {
		dto.Children = append(dto.Children, ref(child))
	}
	for _, p := range path {
		dto.Breadcrumb = append(dto.Breadcrumb, ref(p))
	}
	return dto
}

func ref(c *catalog.Category) CategoryRef {
	return CategoryRef{ID: c.ID, Name: c.Name, Slug: c.Slug}
}
