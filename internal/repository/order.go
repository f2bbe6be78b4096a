package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velmar/orderdesk/internal/domain/cart"
	"github.com/velmar/orderdesk/internal/domain/coupon"
	"github.com/velmar/orderdesk/internal/domain/order"
)

const (
	convertCartSQL = `UPDATE carts SET status = 'CONVERTED', updated_at = now()
		WHERE id = $1 AND status = 'ACTIVE'`

	insertOrderSQL = `INSERT INTO orders (id, user_id, cart_id, coupon_code, free_shipping,
			subtotal, discount, tax, total, status, version)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`

	insertOrderLineSQL = `INSERT INTO order_lines (order_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5)`

	insertHistorySQL = `INSERT INTO order_status_history (order_id, from_status, to_status, actor)
		VALUES ($1, $2, $3, $4)`

	incrementCouponUsageSQL = `UPDATE coupons SET current_usage = current_usage + 1
		WHERE UPPER(code) = UPPER($1) AND (max_usage = 0 OR current_usage < max_usage)`

	insertRedemptionSQL = `INSERT INTO coupon_redemptions (code, user_id, order_id)
		SELECT code, $2, $3 FROM coupons WHERE UPPER(code) = UPPER($1)`

	getOrderSQL = `SELECT id, user_id, cart_id, COALESCE(coupon_code, ''), free_shipping,
			subtotal, discount, tax, total, status, version, created_at, updated_at
		FROM orders WHERE id = $1`

	getOrderLinesSQL = `SELECT product_id, quantity, unit_price, subtotal
		FROM order_lines WHERE order_id = $1 ORDER BY product_id`

	listOrdersByUserSQL = `SELECT id, user_id, cart_id, COALESCE(coupon_code, ''), free_shipping,
			subtotal, discount, tax, total, status, version, created_at, updated_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`

	transitionOrderSQL = `UPDATE orders SET status = $2, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3
		RETURNING id, user_id, cart_id, COALESCE(coupon_code, ''), free_shipping,
			subtotal, discount, tax, total, status, version, created_at, updated_at`

	getOrderVersionSQL = `SELECT version FROM orders WHERE id = $1`

	getHistorySQL = `SELECT order_id, from_status, to_status, actor, occurred_at
		FROM order_status_history WHERE order_id = $1 ORDER BY id`

	upsertPaymentSQL = `INSERT INTO order_payments (payment_id, order_id, amount, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (payment_id) DO UPDATE SET status = EXCLUDED.status, updated_at = now()`

	getPaymentSQL = `SELECT payment_id, order_id, amount, status, created_at, updated_at
		FROM order_payments WHERE payment_id = $1`

	listPaymentsSQL = `SELECT payment_id, order_id, amount, status, created_at, updated_at
		FROM order_payments WHERE order_id = $1 ORDER BY created_at, payment_id`
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. Checkout and
// Transition each run inside a single transaction; partial writes roll back.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// Checkout converts the cart and creates the order atomically. The
// conditional cart update is the mutual-exclusion point for concurrent
// checkouts: the loser sees zero rows affected and gets cart.ErrNotActive.
func (s *OrderStore) Checkout(ctx context.Context, o *order.Order, actor string) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, convertCartSQL, o.CartID)
		if err != nil {
			return fmt.Errorf("converting cart %q: %w", o.CartID, err)
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrNotActive
		}

		err = tx.QueryRow(ctx, insertOrderSQL,
			o.ID, o.UserID, o.CartID, o.CouponCode, o.FreeShipping,
			o.Subtotal, o.Discount, o.Tax, o.Total, string(o.Status), o.Version,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.ID, err)
		}

		for _, l := range o.Lines {
			_, err = tx.Exec(ctx, insertOrderLineSQL,
				o.ID, l.ProductID, l.Quantity, l.UnitPrice, l.Subtotal,
			)
			if err != nil {
				return fmt.Errorf("creating line %q of order %q: %w", l.ProductID, o.ID, err)
			}
		}

		if _, err = tx.Exec(ctx, insertHistorySQL, o.ID, nil, string(o.Status), actor); err != nil {
			return fmt.Errorf("recording initial status of order %q: %w", o.ID, err)
		}

		if o.CouponCode != "" {
			tag, err = tx.Exec(ctx, incrementCouponUsageSQL, o.CouponCode)
			if err != nil {
				return fmt.Errorf("incrementing usage of coupon %q: %w", o.CouponCode, err)
			}
			if tag.RowsAffected() == 0 {
				// Lost a race against a concurrent checkout that burned
				// the last use after our validation.
				return coupon.ErrUsageExceeded
			}
			if _, err = tx.Exec(ctx, insertRedemptionSQL, o.CouponCode, o.UserID, o.ID); err != nil {
				return fmt.Errorf("recording redemption of coupon %q: %w", o.CouponCode, err)
			}
		}
		return nil
	})
}

// Get loads an order and its lines.
func (s *OrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	rows, err := s.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	lineRows, err := s.pool.Query(ctx, getOrderLinesSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %q: %w", id, err)
	}
	o.Lines, err = pgx.CollectRows(lineRows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %q: %w", id, err)
	}
	return &o, nil
}

// ListByUser returns order summaries without lines, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, listOrdersByUserSQL, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders of user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// History returns the status ledger in append order.
func (s *OrderStore) History(ctx context.Context, orderID string) ([]order.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, getHistorySQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting history of order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanHistoryEntry)
}

// Transition writes the status change and the ledger row in one transaction.
// The version-guarded UPDATE is the serialization point: of two concurrent
// calls with the same expectedVersion exactly one can match the row.
func (s *OrderStore) Transition(ctx context.Context, orderID string, from, to order.Status, expectedVersion int64, actor string) (*order.Order, error) {
	var updated order.Order
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, transitionOrderSQL, orderID, string(to), expectedVersion)
		if err != nil {
			return fmt.Errorf("transitioning order %q: %w", orderID, err)
		}

		updated, err = pgx.CollectExactlyOneRow(rows, scanOrder)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("transitioning order %q: %w", orderID, err)
			}
			// No row matched: either the order is gone or the version moved.
			var actual int64
			if verr := tx.QueryRow(ctx, getOrderVersionSQL, orderID).Scan(&actual); verr != nil {
				if errors.Is(verr, pgx.ErrNoRows) {
					return order.ErrNotFound
				}
				return fmt.Errorf("re-reading order %q: %w", orderID, verr)
			}
			return &order.VersionConflictError{OrderID: orderID, Expected: expectedVersion, Actual: actual}
		}

		fromStr := string(from)
		if _, err = tx.Exec(ctx, insertHistorySQL, orderID, &fromStr, string(to), actor); err != nil {
			return fmt.Errorf("recording transition of order %q: %w", orderID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	lineRows, err := s.pool.Query(ctx, getOrderLinesSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %q: %w", orderID, err)
	}
	updated.Lines, err = pgx.CollectRows(lineRows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("getting lines of order %q: %w", orderID, err)
	}
	return &updated, nil
}

// UpsertPayment inserts the payment or updates its status.
func (s *OrderStore) UpsertPayment(ctx context.Context, p *order.Payment) error {
	_, err := s.pool.Exec(ctx, upsertPaymentSQL,
		p.PaymentID, p.OrderID, p.Amount, string(p.Status),
	)
	if err != nil {
		return fmt.Errorf("upserting payment %q: %w", p.PaymentID, err)
	}
	return nil
}

// GetPayment loads a payment by its external ID.
func (s *OrderStore) GetPayment(ctx context.Context, paymentID string) (*order.Payment, error) {
	rows, err := s.pool.Query(ctx, getPaymentSQL, paymentID)
	if err != nil {
		return nil, fmt.Errorf("getting payment %q: %w", paymentID, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPayment)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("getting payment %q: %w", paymentID, err)
	}
	return &p, nil
}

// ListPayments returns all payment attempts for an order, oldest first.
func (s *OrderStore) ListPayments(ctx context.Context, orderID string) ([]order.Payment, error) {
	rows, err := s.pool.Query(ctx, listPaymentsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing payments of order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, scanPayment)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.CartID, &o.CouponCode, &o.FreeShipping,
		&o.Subtotal, &o.Discount, &o.Tax, &o.Total, &status, &o.Version,
		&o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var l order.Line
	err := row.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice, &l.Subtotal)
	return l, err
}

func scanHistoryEntry(row pgx.CollectableRow) (order.HistoryEntry, error) {
	var (
		e    order.HistoryEntry
		from *string
		to   string
	)
	err := row.Scan(&e.OrderID, &from, &to, &e.Actor, &e.OccurredAt)
	if from != nil {
		f := order.Status(*from)
		e.From = &f
	}
	e.To = order.Status(to)
	return e, err
}

func scanPayment(row pgx.CollectableRow) (order.Payment, error) {
	var (
		p      order.Payment
		status string
	)
	err := row.Scan(&p.PaymentID, &p.OrderID, &p.Amount, &status, &p.CreatedAt, &p.UpdatedAt)
	p.Status = order.PaymentStatus(status)
	return p, err
}
