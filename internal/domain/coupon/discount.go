package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Apply computes the discount for an eligible coupon against a cart subtotal.
// Eligibility (window, usage, minimum) must already have been checked.
func Apply(c *Coupon, subtotal decimal.Decimal) (Discount, error) {
	switch c.Type {
	case TypePercentage:
		amount := subtotal.Mul(c.Value).Div(hundred)
		// A discount can never exceed what is being discounted.
		amount = decimal.Min(amount, subtotal)
		return Discount{
			Code:        c.Code,
			Amount:      floorAtZero(amount).Round(2),
			Description: c.Description,
		}, nil
	case TypeFixedAmount:
		amount := decimal.Min(c.Value, subtotal)
		return Discount{
			Code:        c.Code,
			Amount:      floorAtZero(amount).Round(2),
			Description: c.Description,
		}, nil
	case TypeFreeShipping:
		return Discount{
			Code:         c.Code,
			Amount:       decimal.Zero,
			FreeShipping: true,
			Description:  c.Description,
		}, nil
	default:
		return Discount{}, errors.Errorf("unsupported coupon type: %q", c.Type)
	}
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
