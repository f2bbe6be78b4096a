package coupon

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Percentage(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		subtotal string
		want     string
	}{
		{"twenty percent", "20", "25.00", "5.00"},
		{"rounds half up", "15", "10.10", "1.52"},
		{"full discount", "100", "42.00", "42.00"},
		{"over hundred clamps to subtotal", "150", "10.00", "10.00"},
		{"zero subtotal", "20", "0", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Coupon{
				Code:  "PCT",
				Type:  TypePercentage,
				Value: decimal.RequireFromString(tt.value),
			}

			d, err := Apply(c, decimal.RequireFromString(tt.subtotal))

			require.NoError(t, err)
			want := decimal.RequireFromString(tt.want)
			assert.True(t, want.Equal(d.Amount), "want %s, got %s", want, d.Amount)
			assert.False(t, d.FreeShipping)
		})
	}
}

func TestApply_FixedAmount(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		subtotal string
		want     string
	}{
		{"below subtotal", "10", "25.00", "10.00"},
		{"clamped to subtotal", "30", "25.00", "25.00"},
		{"exact subtotal", "25", "25.00", "25.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Coupon{
				Code:  "FIX",
				Type:  TypeFixedAmount,
				Value: decimal.RequireFromString(tt.value),
			}

			d, err := Apply(c, decimal.RequireFromString(tt.subtotal))

			require.NoError(t, err)
			want := decimal.RequireFromString(tt.want)
			assert.True(t, want.Equal(d.Amount), "want %s, got %s", want, d.Amount)
		})
	}
}

func TestApply_FreeShipping(t *testing.T) {
	c := &Coupon{Code: "SHIP", Type: TypeFreeShipping, Description: "free shipping"}

	d, err := Apply(c, decimal.RequireFromString("19.99"))

	require.NoError(t, err)
	assert.True(t, d.FreeShipping)
	assert.True(t, d.Amount.IsZero(), "free shipping must not reduce the subtotal")
	assert.Equal(t, "free shipping", d.Description)
}

func TestApply_UnknownType(t *testing.T) {
	c := &Coupon{Code: "X", Type: Type("BOGOF")}

	_, err := Apply(c, decimal.NewFromInt(10))

	assert.Error(t, err)
}
