package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Validator checks a coupon code against a cart subtotal and user and
// returns the resulting discount. Validation never mutates state: the usage
// counter is incremented by the checkout transaction, not here, so a failed
// checkout cannot burn a use.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (*Discount, error)
}

// RepoValidator implements Validator by looking up coupons from a Repository
// and applying the rule via Apply.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate runs the full eligibility chain: existence, active flag, validity
// window, usage cap, minimum order amount, and one-time-per-user history.
// Every failure is detected before any write happens anywhere.
func (v *RepoValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (*Discount, error) {
	c, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if !c.Active {
		return nil, ErrInactive
	}

	now := v.now()
	if c.ValidFrom != nil && now.Before(*c.ValidFrom) {
		return nil, ErrExpired
	}
	if c.ValidUntil != nil && now.After(*c.ValidUntil) {
		return nil, ErrExpired
	}

	if c.MaxUsage > 0 && c.CurrentUsage >= c.MaxUsage {
		return nil, ErrUsageExceeded
	}

	if c.MinOrderAmount.IsPositive() && subtotal.LessThan(c.MinOrderAmount) {
		return nil, &MinimumNotMetError{Code: c.Code, Minimum: c.MinOrderAmount, Subtotal: subtotal}
	}

	if c.OneTimePerUser && userID != "" {
		used, err := v.repo.HasRedemption(ctx, c.Code, userID)
		if err != nil {
			return nil, errors.Wrap(err, "check redemption history")
		}
		if used {
			return nil, &AlreadyUsedError{Code: c.Code, UserID: userID}
		}
	}

	d, err := Apply(c, subtotal)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
