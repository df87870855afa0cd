package catalog

import (
	"cmp"
	"fmt"
	"slices"

	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
)

// BuildTree assembles a category forest from flat rows as they come from storage.
// Siblings are ordered by Position, ties keep row order. Levels of zero are computed,
// non-zero levels must match the depth of the node.
// Returns ErrInvalidTree for duplicate ids, unknown parents, cycles and level mismatches.
func BuildTree(rows []Category) ([]*Category, error) {
	nodes := make(map[uuid.UUID]*Category, len(rows))
	ordered := make([]*Category, 0, len(rows))
	for _, row := range rows {
		if _, dup := nodes[row.ID]; dup {
			return nil, fmt.Errorf("duplicate category %s: %w", row.ID, perrors.ErrInvalidTree)
		}
		node := row
		node.Children = nil
		nodes[row.ID] = &node
		ordered = append(ordered, &node)
	}

	var roots []*Category
	for _, node := range ordered {
		if node.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*node.ParentID]
		if !ok {
			return nil, fmt.Errorf("category %s references unknown parent %s: %w", node.ID, *node.ParentID, perrors.ErrInvalidTree)
		}
		parent.Children = append(parent.Children, node)
	}

	byPosition := func(a, b *Category) int { return cmp.Compare(a.Position, b.Position) }
	slices.SortStableFunc(roots, byPosition)

	visited := 0
	var walk func(node *Category, level int) error
	walk = func(node *Category, level int) error {
		visited++
		if node.Level == 0 {
			node.Level = level
		} else if node.Level != level {
			return fmt.Errorf("category %s has level %d, expected %d: %w", node.ID, node.Level, level, perrors.ErrInvalidTree)
		}
		slices.SortStableFunc(node.Children, byPosition)
		for _, child := range node.Children {
			if err := walk(child, level+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, root := range roots {
		if err := walk(root, 1); err != nil {
			return nil, err
		}
	}
	// nodes that are never reached from a root sit on a parent cycle
	if visited != len(ordered) {
		return nil, fmt.Errorf("%d categories are part of a cycle: %w", len(ordered)-visited, perrors.ErrInvalidTree)
	}
	return roots, nil
}
