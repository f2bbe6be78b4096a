package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when the requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyCart is returned when checking out a cart with no lines.
	ErrEmptyCart = errors.New("cart has no lines")
	// ErrPaymentNotFound is returned when a referenced payment record
	// does not exist.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrNoRefundablePayment is returned when a refund is requested for an
	// order without a succeeded payment.
	ErrNoRefundablePayment = errors.New("order has no succeeded payment to refund")
)

// PaymentMismatchError indicates a payment callback referenced an order the
// payment does not belong to.
type PaymentMismatchError struct {
	PaymentID string
	OrderID   string
}

func (e *PaymentMismatchError) Error() string {
	return fmt.Sprintf("payment %s does not belong to order %s", e.PaymentID, e.OrderID)
}

// VersionConflictError indicates an optimistic version check failed. The
// caller must re-read the order and retry; no automatic retry happens here.
type VersionConflictError struct {
	OrderID  string
	Expected int64
	Actual   int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("order %s modified concurrently: expected version %d, found %d",
		e.OrderID, e.Expected, e.Actual)
}

// Line is an immutable snapshot of a cart line taken at checkout. Changes to
// the source cart afterwards never affect it.
type Line struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Order is the aggregate root for a placed order. Status changes only via
// the transition table and bump Version on every write.
type Order struct {
	ID           string
	UserID       string
	CartID       string
	CouponCode   string
	FreeShipping bool
	Lines        []Line
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Tax          decimal.Decimal
	Total        decimal.Decimal
	Status       Status
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HistoryEntry is one row of the append-only status ledger. From is nil for
// the initial entry written at checkout.
type HistoryEntry struct {
	OrderID    string
	From       *Status
	To         Status
	Actor      string
	OccurredAt time.Time
}

// PaymentStatus enumerates the states of an external payment attempt.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentSucceeded PaymentStatus = "SUCCEEDED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// ParsePaymentStatus validates a payment status string.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch PaymentStatus(s) {
	case PaymentPending, PaymentSucceeded, PaymentFailed, PaymentRefunded:
		return PaymentStatus(s), nil
	default:
		return "", errors.Errorf("unknown payment status: %q", s)
	}
}

// Payment tracks one external payment attempt against an order. An order may
// accumulate several attempts; PaymentID is globally unique.
type Payment struct {
	PaymentID string
	OrderID   string
	Amount    decimal.Decimal
	Status    PaymentStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines transactional persistence for the order aggregate.
type Store interface {
	// Checkout atomically converts the source cart from ACTIVE to CONVERTED,
	// creates the order with its lines, writes the initial CREATED ledger
	// row, and, when a coupon is applied, increments its usage counter and
	// records the redemption. Conversion fails with cart.ErrNotActive when a
	// concurrent checkout got there first; nothing is left behind on any
	// failure.
	Checkout(ctx context.Context, o *Order, actor string) error

	Get(ctx context.Context, id string) (*Order, error)
	// ListByUser returns order summaries (no lines) newest first.
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Order, error)
	History(ctx context.Context, orderID string) ([]HistoryEntry, error)

	// Transition performs the optimistic status write: the row is updated
	// only if its version still equals expectedVersion, and the ledger row is
	// appended in the same transaction. On a lost race it returns
	// *VersionConflictError carrying the current version.
	Transition(ctx context.Context, orderID string, from, to Status, expectedVersion int64, actor string) (*Order, error)

	UpsertPayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	ListPayments(ctx context.Context, orderID string) ([]Payment, error)
}

// PaymentGateway abstracts the external payment processor. Both calls are
// synchronous requests; the processor reports outcomes later through the
// payment callback.
type PaymentGateway interface {
	Initiate(ctx context.Context, orderID string, amount decimal.Decimal) (paymentID string, err error)
	Refund(ctx context.Context, paymentID string) (status string, err error)
}
