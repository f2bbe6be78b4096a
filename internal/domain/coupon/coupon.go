package coupon

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Type enumerates the supported coupon discount strategies.
type Type string

const (
	// TypePercentage deducts value% of the subtotal, clamped to the subtotal.
	TypePercentage Type = "PERCENTAGE"
	// TypeFixedAmount deducts min(value, subtotal).
	TypeFixedAmount Type = "FIXED_AMOUNT"
	// TypeFreeShipping waives shipping cost. It does not touch the subtotal;
	// the flag is consumed by the shipping-cost collaborator.
	TypeFreeShipping Type = "FREE_SHIPPING"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrExpired is returned when now is outside [ValidFrom, ValidUntil].
	ErrExpired = errors.New("coupon expired")
	// ErrInactive is returned when the coupon has been switched off.
	ErrInactive = errors.New("coupon inactive")
	// ErrUsageExceeded is returned when the coupon has reached its usage cap.
	ErrUsageExceeded = errors.New("coupon usage limit reached")
)

// MinimumNotMetError indicates the cart subtotal is below the coupon's
// minimum order amount.
type MinimumNotMetError struct {
	Code     string
	Minimum  decimal.Decimal
	Subtotal decimal.Decimal
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum order of %s, cart subtotal is %s",
		e.Code, e.Minimum.StringFixed(2), e.Subtotal.StringFixed(2))
}

// AlreadyUsedError indicates a one-time-per-user coupon was already redeemed
// by this user on a prior order.
type AlreadyUsedError struct {
	Code   string
	UserID string
}

func (e *AlreadyUsedError) Error() string {
	return fmt.Sprintf("coupon %s already used by user %s", e.Code, e.UserID)
}

// Coupon defines a discount rule and its eligibility constraints. Codes are
// unique case-insensitively. CurrentUsage is incremented only inside the
// checkout transaction and never decremented.
type Coupon struct {
	Code           string
	Type           Type
	Value          decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxUsage       int
	CurrentUsage   int
	ValidFrom      *time.Time
	ValidUntil     *time.Time
	Active         bool
	OneTimePerUser bool
	Description    string
}

// Discount is the outcome of validating a coupon against a cart subtotal.
type Discount struct {
	Code         string
	Amount       decimal.Decimal
	FreeShipping bool
	Description  string
}

// Repository provides coupon lookups. FindByCode matches case-insensitively
// and returns ErrNotFound when no coupon exists, regardless of its active
// flag; distinguishing inactive from missing is the validator's job.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// HasRedemption reports whether the user has already redeemed the coupon
	// on a prior order.
	HasRedemption(ctx context.Context, code, userID string) (bool, error)
}
