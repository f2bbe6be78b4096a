package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status enumerates the cart lifecycle states.
type Status string

const (
	// StatusActive marks a cart that may still be mutated.
	StatusActive Status = "ACTIVE"
	// StatusConverted marks a cart that has been turned into an order.
	// A converted cart is immutable.
	StatusConverted Status = "CONVERTED"
	// StatusAbandoned marks a cart given up without checkout.
	StatusAbandoned Status = "ABANDONED"
)

var (
	// ErrNotFound is returned when the requested cart does not exist.
	ErrNotFound = errors.New("cart not found")
	// ErrNotActive is returned when mutating or checking out a cart that
	// is no longer ACTIVE.
	ErrNotActive = errors.New("cart is not active")
	// ErrLineNotFound is returned when updating or removing a line that
	// is not in the cart.
	ErrLineNotFound = errors.New("cart line not found")
	// ErrOwnerRequired is returned when a cart is created without exactly
	// one of user ID or session ID.
	ErrOwnerRequired = errors.New("exactly one of user id or session id must be set")
)

// InvalidQuantityError indicates a line mutation with a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s, got %d", e.ProductID, e.Quantity)
}

// Line is a single product entry in a cart. UnitPrice is the catalog price
// at the moment the line was added.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Subtotal returns quantity × unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart holds a customer's pending line items. Exactly one of UserID or
// SessionID identifies the owner.
type Cart struct {
	ID           string
	UserID       string
	SessionID    string
	Status       Status
	Jurisdiction string
	Lines        []Line
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subtotal returns the sum of line subtotals.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// Totals is the computed pricing breakdown for a cart. Discounts are not
// applied at the cart stage; they belong to checkout.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Repository defines persistence operations for carts and their lines.
type Repository interface {
	Create(ctx context.Context, c *Cart) error
	Get(ctx context.Context, id string) (*Cart, error)
	// AddLine inserts the line or, when a line for the same product already
	// exists, adds the quantities together.
	AddLine(ctx context.Context, cartID string, line Line) error
	SetLineQuantity(ctx context.Context, cartID, productID string, quantity int) error
	DeleteLine(ctx context.Context, cartID, productID string) error
}
