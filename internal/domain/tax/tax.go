// Package tax abstracts the external tax rule source. The service only
// needs a pure function from (subtotal, jurisdiction) to a tax amount.
package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// Calculator computes the tax amount for a subtotal in a jurisdiction.
type Calculator interface {
	Amount(ctx context.Context, subtotal decimal.Decimal, jurisdiction string) (decimal.Decimal, error)
}

// StaticTable is a Calculator backed by an in-memory rate table with a
// fallback rate for unknown jurisdictions.
type StaticTable struct {
	rates       map[string]decimal.Decimal
	defaultRate decimal.Decimal
}

// NewStaticTable builds a StaticTable. rates may be nil.
func NewStaticTable(defaultRate decimal.Decimal, rates map[string]decimal.Decimal) *StaticTable {
	return &StaticTable{
		rates:       rates,
		defaultRate: defaultRate,
	}
}

// Amount returns subtotal × rate rounded to 2 decimal places.
func (t *StaticTable) Amount(_ context.Context, subtotal decimal.Decimal, jurisdiction string) (decimal.Decimal, error) {
	rate := t.defaultRate
	if r, ok := t.rates[jurisdiction]; ok {
		rate = r
	}
	return subtotal.Mul(rate).Round(2), nil
}
