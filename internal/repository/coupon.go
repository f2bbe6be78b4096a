package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velmar/orderdesk/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, type, value, min_order_amount, max_usage, current_usage,
		valid_from, valid_until, active, one_time_per_user, description
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	hasRedemptionSQL = `SELECT EXISTS (
		SELECT 1 FROM coupon_redemptions WHERE UPPER(code) = UPPER($1) AND user_id = $2)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code, case-insensitively. Inactive
// coupons are returned too; the validator decides what to do with them.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// HasRedemption reports whether the user has already redeemed the coupon.
func (r *CouponRepository) HasRedemption(ctx context.Context, code, userID string) (bool, error) {
	var used bool
	if err := r.pool.QueryRow(ctx, hasRedemptionSQL, code, userID).Scan(&used); err != nil {
		return false, fmt.Errorf("checking redemption of %q by %q: %w", code, userID, err)
	}
	return used, nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		couponType   string
		maxUsage     int32
		currentUsage int32
	)
	err := row.Scan(
		&c.Code, &couponType, &c.Value, &c.MinOrderAmount, &maxUsage, &currentUsage,
		&c.ValidFrom, &c.ValidUntil, &c.Active, &c.OneTimePerUser, &c.Description,
	)
	c.Type = coupon.Type(couponType)
	c.MaxUsage = int(maxUsage)
	c.CurrentUsage = int(currentUsage)
	return c, err
}
