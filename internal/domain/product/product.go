package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or is
// no longer sold.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Prices are
// captured onto cart lines at add time, so later catalog changes do not
// affect existing carts or orders.
type Product struct {
	ID       string
	SKU      string
	Name     string
	Price    decimal.Decimal
	Category string
	Active   bool
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
