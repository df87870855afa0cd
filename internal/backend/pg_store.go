package backend

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/abgdnv/bazaar/internal/catalog"
	perrors "github.com/abgdnv/bazaar/internal/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = `id, name, slug, description, vendor_id, category_id, price, currency,
	stock_quantity, rating, tags, featured, active, created_at, updated_at`

const cartColumns = `id, user_id, product_id, variant_id, quantity, created_at`

// PgStore implements Backend using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of PgStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

// ListProducts retrieves active products with pagination support.
func (p *PgStore) ListProducts(ctx context.Context, limit, offset int) ([]catalog.Product, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE active ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, classify("list products", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, classify("list products", err)
	}
	return products, nil
}

// GetProduct retrieves a product by its unique identifier.
func (p *PgStore) GetProduct(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	row := p.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, NewError("get product", KindNotFound, perrors.ErrProductNotFound)
		}
		return nil, classify("get product", err)
	}
	return &product, nil
}

// ListCategories retrieves all categories, parents before children.
func (p *PgStore) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	rows, err := p.db.Query(ctx,
		`SELECT id, parent_id, name, slug, level, position FROM categories ORDER BY level, position, name`)
	if err != nil {
		return nil, classify("list categories", err)
	}
	categories, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Category, error) {
		var c catalog.Category
		err := row.Scan(&c.ID, &c.ParentID, &c.Name, &c.Slug, &c.Level, &c.Position)
		return c, err
	})
	if err != nil {
		return nil, classify("list categories", err)
	}
	return categories, nil
}

// ListCart retrieves the cart lines of a user in the order they were added.
func (p *PgStore) ListCart(ctx context.Context, userID string) ([]CartItem, error) {
	rows, err := p.db.Query(ctx,
		`SELECT `+cartColumns+` FROM cart_items WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, classify("list cart", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (CartItem, error) {
		return scanCartItem(row)
	})
	if err != nil {
		return nil, classify("list cart", err)
	}
	return items, nil
}

// AddCartItem increments the line quantity, creating the line when it does not exist.
func (p *PgStore) AddCartItem(ctx context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID, qty int32) (CartItem, error) {
	row := p.db.QueryRow(ctx,
		`INSERT INTO cart_items (user_id, product_id, variant_id, quantity) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, product_id, variant_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		 RETURNING `+cartColumns,
		userID, productID, variantColumn(variantID), qty)
	item, err := scanCartItem(row)
	if err != nil {
		return CartItem{}, classify("add cart item", err)
	}
	return item, nil
}

// SetCartQuantity overwrites the line quantity, creating the line when it does not exist.
func (p *PgStore) SetCartQuantity(ctx context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID, qty int32) (CartItem, error) {
	row := p.db.QueryRow(ctx,
		`INSERT INTO cart_items (user_id, product_id, variant_id, quantity) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, product_id, variant_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()
		 RETURNING `+cartColumns,
		userID, productID, variantColumn(variantID), qty)
	item, err := scanCartItem(row)
	if err != nil {
		return CartItem{}, classify("set cart quantity", err)
	}
	return item, nil
}

// RemoveCartItem deletes the line of (product, variant).
func (p *PgStore) RemoveCartItem(ctx context.Context, userID string, productID uuid.UUID, variantID *uuid.UUID) error {
	tag, err := p.db.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2 AND variant_id = $3`,
		userID, productID, variantColumn(variantID))
	if err != nil {
		return classify("remove cart item", err)
	}
	if tag.RowsAffected() == 0 {
		return NewError("remove cart item", KindNotFound, perrors.ErrLineNotFound)
	}
	return nil
}

// ListWishlist retrieves the wishlist of a user, oldest entry first.
func (p *PgStore) ListWishlist(ctx context.Context, userID string) ([]WishlistItem, error) {
	rows, err := p.db.Query(ctx,
		`SELECT user_id, product_id, created_at FROM wishlist_items WHERE user_id = $1 ORDER BY created_at, product_id`,
		userID)
	if err != nil {
		return nil, classify("list wishlist", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (WishlistItem, error) {
		var w WishlistItem
		err := row.Scan(&w.UserID, &w.ProductID, &w.CreatedAt)
		return w, err
	})
	if err != nil {
		return nil, classify("list wishlist", err)
	}
	return items, nil
}

// AddWishlist inserts a wishlist entry unless it already exists.
func (p *PgStore) AddWishlist(ctx context.Context, userID string, productID uuid.UUID) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO wishlist_items (user_id, product_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		userID, productID)
	if err != nil {
		return classify("add wishlist", err)
	}
	return nil
}

// RemoveWishlist deletes a wishlist entry.
func (p *PgStore) RemoveWishlist(ctx context.Context, userID string, productID uuid.UUID) error {
	_, err := p.db.Exec(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return classify("remove wishlist", err)
	}
	return nil
}

// Ping checks the database connection.
func (p *PgStore) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var pr catalog.Product
	err := row.Scan(&pr.ID, &pr.Name, &pr.Slug, &pr.Description, &pr.VendorID, &pr.CategoryID,
		&pr.Price, &pr.Currency, &pr.StockQuantity, &pr.Rating, &pr.Tags, &pr.Featured, &pr.Active,
		&pr.CreatedAt, &pr.UpdatedAt)
	pr.Currency = strings.TrimSpace(pr.Currency)
	return pr, err
}

func scanCartItem(row pgx.Row) (CartItem, error) {
	var (
		item    CartItem
		variant uuid.UUID
	)
	if err := row.Scan(&item.ID, &item.UserID, &item.ProductID, &variant, &item.Quantity, &item.CreatedAt); err != nil {
		return CartItem{}, err
	}
	if variant != uuid.Nil {
		item.VariantID = &variant
	}
	return item, nil
}

// variantColumn maps an absent variant to the nil uuid so the unique key covers it.
func variantColumn(variantID *uuid.UUID) uuid.UUID {
	if variantID == nil {
		return uuid.Nil
	}
	return *variantID
}

// classify tags a driver error with its Kind.
func classify(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return NewError(op, KindNotFound, perrors.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return NewError(op, pgErrorKind(pgErr.Code), err)
	}
	var connectErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &connectErr),
		errors.As(err, &netErr),
		pgconn.Timeout(err),
		pgconn.SafeToRetry(err),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, context.DeadlineExceeded):
		return NewError(op, KindTransient, err)
	}
	return NewError(op, KindUnknown, err)
}

func pgErrorKind(code string) Kind {
	switch code {
	case "42P01": // undefined_table
		return KindSchemaMissing
	case "23503", "23505", "23514", "23502", "22P02", "22003":
		return KindSemantic
	case "40001", "40P01", "53300", "57P01", "57P03":
		return KindTransient
	}
	if strings.HasPrefix(code, "08") {
		return KindTransient
	}
	return KindUnknown
}
