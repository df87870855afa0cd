// Package seed loads a category tree from YAML and upserts it into Postgres.
// Category ids derive from the slug path, so reseeding the same file updates rows in place.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/abgdnv/bazaar/internal/catalog"
	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"
)

// Namespace is the UUIDv5 namespace of seeded category ids.
var Namespace = uuid.MustParse("6f1c2a44-8d0e-5b7a-9c3f-2e4d6b8a0c11")

// DefaultBatchSize is the number of rows sent per round trip.
const DefaultBatchSize = 100

// Node is a category of a seed file. A missing slug is derived from the name,
// prefixed with the parent slug.
type Node struct {
	Name     string `yaml:"name"`
	Slug     string `yaml:"slug"`
	Children []Node `yaml:"children"`
}

type document struct {
	Categories []Node `yaml:"categories"`
}

// Parse reads a seed file. Unknown keys are rejected.
func Parse(r io.Reader) ([]Node, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return doc.Categories, nil
}

// Flatten assigns ids, levels and positions and returns the categories in pre-order,
// so every parent precedes its children.
func Flatten(nodes []Node) ([]catalog.Category, error) {
	var (
		out   []catalog.Category
		slugs = make(map[string]struct{})
		walk  func(nodes []Node, parent *catalog.Category, path string) error
	)
	walk = func(nodes []Node, parent *catalog.Category, path string) error {
		for i, n := range nodes {
			name := strings.TrimSpace(n.Name)
			if name == "" {
				return fmt.Errorf("category without name under %q: %w", path, perrors.ErrInvalidTree)
			}
			slug := n.Slug
			if slug == "" {
				slug = slugify(name)
				if parent != nil {
					slug = parent.Slug + "-" + slug
				}
			}
			if _, dup := slugs[slug]; dup {
				return fmt.Errorf("duplicate slug %q: %w", slug, perrors.ErrInvalidTree)
			}
			slugs[slug] = struct{}{}

			nodePath := slug
			if path != "" {
				nodePath = path + "/" + slug
			}
			c := catalog.Category{
				ID:       uuid.NewSHA1(Namespace, []byte(nodePath)),
				Name:     name,
				Slug:     slug,
				Level:    1,
				Position: i,
			}
			if parent != nil {
				parentID := parent.ID
				c.ParentID = &parentID
				c.Level = parent.Level + 1
			}
			out = append(out, c)
			if err := walk(n.Children, &c, nodePath); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(nodes, nil, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// BatchSender is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

const upsertCategory = `
INSERT INTO categories (id, parent_id, name, slug, level, position)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    parent_id  = EXCLUDED.parent_id,
    name       = EXCLUDED.name,
    slug       = EXCLUDED.slug,
    level      = EXCLUDED.level,
    position   = EXCLUDED.position,
    updated_at = NOW()`

// Upsert writes categories in batches of batchSize, in order. It returns the number of rows written.
func Upsert(ctx context.Context, db BatchSender, categories []catalog.Category, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	written := 0
	for start := 0; start < len(categories); start += batchSize {
		chunk := categories[start:min(start+batchSize, len(categories))]
		batch := &pgx.Batch{}
		for _, c := range chunk {
			batch.Queue(upsertCategory, c.ID, c.ParentID, c.Name, c.Slug, c.Level, c.Position)
		}
		if err := sendBatch(ctx, db, batch, len(chunk)); err != nil {
			return written, fmt.Errorf("failed to upsert categories %d-%d: %w", start, start+len(chunk)-1, err)
		}
		written += len(chunk)
	}
	return written, nil
}

func sendBatch(ctx context.Context, db BatchSender, batch *pgx.Batch, n int) (err error) {
	results := db.SendBatch(ctx, batch)
	defer func() {
		err = errors.Join(err, results.Close())
	}()
	for range n {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
