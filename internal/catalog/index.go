package catalog

import (
	"fmt"
	"slices"
	"strings"

	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
)

// Flatten returns the forest in pre-order: a parent before its children, children in the given order.
// The result is the same for the same input on every call.
func Flatten(roots []*Category) []*Category {
	out := make([]*Category, 0, len(roots))
	var visit func(node *Category)
	visit = func(node *Category) {
		out = append(out, node)
		for _, child := range node.Children {
			visit(child)
		}
	}
	for _, root := range roots {
		visit(root)
	}
	return out
}

// Index is a read-only lookup structure over a category forest.
type Index struct {
	roots  []*Category
	nodes  []*Category
	byID   map[uuid.UUID]*Category
	bySlug map[string]*Category
	byName map[string]*Category
	parent map[uuid.UUID]*Category
}

// NewIndex flattens the forest and precomputes id, slug, name and parent lookups.
// When two nodes share a slug or a name, the first one in pre-order wins.
func NewIndex(roots []*Category) *Index {
	nodes := Flatten(roots)
	idx := &Index{
		roots:  roots,
		nodes:  nodes,
		byID:   make(map[uuid.UUID]*Category, len(nodes)),
		bySlug: make(map[string]*Category, len(nodes)),
		byName: make(map[string]*Category, len(nodes)),
		parent: make(map[uuid.UUID]*Category, len(nodes)),
	}
	for _, node := range nodes {
		idx.byID[node.ID] = node
		if _, ok := idx.bySlug[node.Slug]; !ok {
			idx.bySlug[node.Slug] = node
		}
		name := strings.ToLower(node.Name)
		if _, ok := idx.byName[name]; !ok {
			idx.byName[name] = node
		}
		for _, child := range node.Children {
			idx.parent[child.ID] = node
		}
	}
	return idx
}

// Resolve returns the category with the given id.
// Returns ErrCategoryNotFound if the id is unknown.
func (i *Index) Resolve(id uuid.UUID) (*Category, error) {
	node, ok := i.byID[id]
	if !ok {
		return nil, fmt.Errorf("category %s: %w", id, perrors.ErrCategoryNotFound)
	}
	return node, nil
}

// BySlug returns the category with the given slug.
func (i *Index) BySlug(slug string) (*Category, error) {
	node, ok := i.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("category slug %q: %w", slug, perrors.ErrCategoryNotFound)
	}
	return node, nil
}

// ByName returns the category with the given name, compared case-insensitively.
func (i *Index) ByName(name string) (*Category, error) {
	node, ok := i.byName[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("category name %q: %w", name, perrors.ErrCategoryNotFound)
	}
	return node, nil
}

// Parent returns the parent of the category, or nil for a root.
func (i *Index) Parent(id uuid.UUID) (*Category, error) {
	if _, err := i.Resolve(id); err != nil {
		return nil, err
	}
	return i.parent[id], nil
}

// Children returns the direct children of the category in order.
func (i *Index) Children(id uuid.UUID) ([]*Category, error) {
	node, err := i.Resolve(id)
	if err != nil {
		return nil, err
	}
	return node.Children, nil
}

// Path returns the chain of categories from the root down to id, inclusive.
func (i *Index) Path(id uuid.UUID) ([]*Category, error) {
	node, err := i.Resolve(id)
	if err != nil {
		return nil, err
	}
	var path []*Category
	for n := node; n != nil; n = i.parent[n.ID] {
		path = append(path, n)
	}
	slices.Reverse(path)
	return path, nil
}

// Roots returns the top-level categories.
func (i *Index) Roots() []*Category { return i.roots }

// Nodes returns all categories in pre-order.
func (i *Index) Nodes() []*Category { return i.nodes }

// Len returns the number of categories.
func (i *Index) Len() int { return len(i.nodes) }
