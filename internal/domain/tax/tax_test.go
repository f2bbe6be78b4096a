package tax

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticTable_Amount(t *testing.T) {
	table := NewStaticTable(decimal.RequireFromString("0.08"), map[string]decimal.Decimal{
		"NO-TAX": decimal.Zero,
		"HIGH":   decimal.RequireFromString("0.25"),
	})

	tests := []struct {
		name         string
		subtotal     string
		jurisdiction string
		want         string
	}{
		{"default rate", "20.00", "", "1.60"},
		{"unknown jurisdiction falls back", "20.00", "somewhere", "1.60"},
		{"explicit zero rate", "20.00", "NO-TAX", "0.00"},
		{"higher rate", "100.00", "HIGH", "25.00"},
		{"rounds to cents", "10.10", "HIGH", "2.53"},
		{"zero subtotal", "0", "HIGH", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := table.Amount(context.Background(), decimal.RequireFromString(tt.subtotal), tt.jurisdiction)

			require.NoError(t, err)
			want := decimal.RequireFromString(tt.want)
			assert.True(t, want.Equal(got), "want %s, got %s", want, got)
		})
	}
}
