package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velmar/orderdesk/internal/domain/cart"
)

const (
	createCartSQL = `INSERT INTO carts (id, user_id, session_id, status, jurisdiction)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)`

	getCartSQL = `SELECT id, COALESCE(user_id, ''), COALESCE(session_id, ''), status, jurisdiction, created_at, updated_at
		FROM carts WHERE id = $1`

	getCartLinesSQL = `SELECT product_id, quantity, unit_price
		FROM cart_lines WHERE cart_id = $1 ORDER BY product_id`

	upsertCartLineSQL = `INSERT INTO cart_lines (cart_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id)
		DO UPDATE SET quantity = cart_lines.quantity + EXCLUDED.quantity`

	setCartLineQuantitySQL = `UPDATE cart_lines SET quantity = $3
		WHERE cart_id = $1 AND product_id = $2`

	deleteCartLineSQL = `DELETE FROM cart_lines WHERE cart_id = $1 AND product_id = $2`

	touchCartSQL = `UPDATE carts SET updated_at = now() WHERE id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Create persists a new cart without lines.
func (r *CartRepository) Create(ctx context.Context, c *cart.Cart) error {
	_, err := r.pool.Exec(ctx, createCartSQL,
		c.ID, c.UserID, c.SessionID, string(c.Status), c.Jurisdiction,
	)
	if err != nil {
		return fmt.Errorf("creating cart %q: %w", c.ID, err)
	}
	return nil
}

// Get loads a cart and its lines ordered by product ID.
func (r *CartRepository) Get(ctx context.Context, id string) (*cart.Cart, error) {
	var (
		c      cart.Cart
		status string
	)
	err := r.pool.QueryRow(ctx, getCartSQL, id).Scan(
		&c.ID, &c.UserID, &c.SessionID, &status, &c.Jurisdiction, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}
	c.Status = cart.Status(status)

	rows, err := r.pool.Query(ctx, getCartLinesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting lines for cart %q: %w", id, err)
	}
	c.Lines, err = pgx.CollectRows(rows, scanCartLine)
	if err != nil {
		return nil, fmt.Errorf("getting lines for cart %q: %w", id, err)
	}
	return &c, nil
}

// AddLine merges the line into the cart: an existing line for the same
// product has the quantities added, otherwise the line is inserted.
func (r *CartRepository) AddLine(ctx context.Context, cartID string, line cart.Line) error {
	_, err := r.pool.Exec(ctx, upsertCartLineSQL,
		cartID, line.ProductID, line.Quantity, line.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("adding line to cart %q: %w", cartID, err)
	}
	_, err = r.pool.Exec(ctx, touchCartSQL, cartID)
	return err
}

// SetLineQuantity replaces the quantity of an existing line.
func (r *CartRepository) SetLineQuantity(ctx context.Context, cartID, productID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, setCartLineQuantitySQL, cartID, productID, quantity)
	if err != nil {
		return fmt.Errorf("updating line %q of cart %q: %w", productID, cartID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	_, err = r.pool.Exec(ctx, touchCartSQL, cartID)
	return err
}

// DeleteLine removes a line from the cart.
func (r *CartRepository) DeleteLine(ctx context.Context, cartID, productID string) error {
	tag, err := r.pool.Exec(ctx, deleteCartLineSQL, cartID, productID)
	if err != nil {
		return fmt.Errorf("deleting line %q of cart %q: %w", productID, cartID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	_, err = r.pool.Exec(ctx, touchCartSQL, cartID)
	return err
}

func scanCartLine(row pgx.CollectableRow) (cart.Line, error) {
	var l cart.Line
	err := row.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice)
	return l, err
}
