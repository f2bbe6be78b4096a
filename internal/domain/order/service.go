package order

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/velmar/orderdesk/internal/domain/cart"
	"github.com/velmar/orderdesk/internal/domain/coupon"
	"github.com/velmar/orderdesk/internal/domain/tax"
	"github.com/velmar/orderdesk/internal/notify"
)

// Service owns the order lifecycle: checkout, status transitions, payment
// bookkeeping. All writes go through Store within single transactions; the
// service itself keeps no state between requests.
type Service struct {
	carts    cart.Repository
	coupons  coupon.Validator
	store    Store
	tax      tax.Calculator
	gateway  PaymentGateway
	notifier notify.Sender
}

// NewService creates an order Service with the required collaborators.
func NewService(
	carts cart.Repository,
	coupons coupon.Validator,
	store Store,
	taxes tax.Calculator,
	gateway PaymentGateway,
	notifier notify.Sender,
) *Service {
	return &Service{
		carts:    carts,
		coupons:  coupons,
		store:    store,
		tax:      taxes,
		gateway:  gateway,
		notifier: notifier,
	}
}

// CheckoutRequest holds the input for converting a cart into an order.
type CheckoutRequest struct {
	CartID            string
	CouponCode        string
	ShippingAddressID string
	Actor             string
}

// Checkout converts an ACTIVE cart into an order. Validation (cart state,
// coupon eligibility) happens before any write; the conversion itself, cart
// flip plus order insert plus ledger row plus coupon usage, is one atomic
// store operation. The order starts in CREATED.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*Order, error) {
	c, err := s.carts.Get(ctx, req.CartID)
	if err != nil {
		return nil, err
	}
	if c.Status != cart.StatusActive {
		return nil, cart.ErrNotActive
	}
	if len(c.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	subtotal := c.Subtotal()

	discountAmount := decimal.Zero
	freeShipping := false
	if req.CouponCode != "" {
		d, err := s.coupons.Validate(ctx, req.CouponCode, subtotal, c.UserID)
		if err != nil {
			return nil, err
		}
		discountAmount = d.Amount
		freeShipping = d.FreeShipping
	}

	// Tax applies to the discounted subtotal.
	taxable := subtotal.Sub(discountAmount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	taxAmount, err := s.tax.Amount(ctx, taxable, c.Jurisdiction)
	if err != nil {
		return nil, errors.Wrap(err, "compute tax")
	}

	lines := make([]Line, len(c.Lines))
	for i, l := range c.Lines {
		lines[i] = Line{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.Subtotal(),
		}
	}

	o := &Order{
		ID:           uuid.New().String(),
		UserID:       c.UserID,
		CartID:       c.ID,
		CouponCode:   req.CouponCode,
		FreeShipping: freeShipping,
		Lines:        lines,
		Subtotal:     subtotal.Round(2),
		Discount:     discountAmount.Round(2),
		Tax:          taxAmount.Round(2),
		Total:        taxable.Add(taxAmount).Round(2),
		Status:       StatusCreated,
		Version:      1,
	}

	if err := s.store.Checkout(ctx, o, req.Actor); err != nil {
		return nil, err
	}

	s.send(ctx, c.UserID, "Order received",
		fmt.Sprintf("Order %s placed, total %s", o.ID, o.Total.StringFixed(2)))
	return o, nil
}

// Get loads an order with its lines.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Get(ctx, id)
}

// History returns the order's status ledger in append order.
func (s *Service) History(ctx context.Context, orderID string) ([]HistoryEntry, error) {
	if _, err := s.store.Get(ctx, orderID); err != nil {
		return nil, err
	}
	return s.store.History(ctx, orderID)
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// List returns the user's orders, newest first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListByUser(ctx, userID, limit, offset)
}

// TransitionStatus moves an order to target under an optimistic version
// check. Exactly one of two concurrent calls with the same expectedVersion
// can win; the loser gets *VersionConflictError and must re-read and retry.
// A REFUNDED transition from PAID first requests a refund from the payment
// gateway for the order's succeeded payment.
func (s *Service) TransitionStatus(ctx context.Context, orderID string, target Status, expectedVersion int64, actor string) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Version != expectedVersion {
		return nil, &VersionConflictError{OrderID: orderID, Expected: expectedVersion, Actual: o.Version}
	}
	if !o.Status.CanTransitionTo(target) {
		return nil, &InvalidTransitionError{From: o.Status, To: target}
	}

	if target == StatusRefunded && o.Status == StatusPaid {
		if err := s.refundPayment(ctx, o); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.Transition(ctx, orderID, o.Status, target, expectedVersion, actor)
	if err != nil {
		return nil, err
	}

	s.send(ctx, o.UserID, "Order update",
		fmt.Sprintf("Order %s is now %s", o.ID, target))
	return updated, nil
}

// refundPayment asks the gateway to refund the order's succeeded payment and
// records the result on the payment row.
func (s *Service) refundPayment(ctx context.Context, o *Order) error {
	payments, err := s.store.ListPayments(ctx, o.ID)
	if err != nil {
		return errors.Wrap(err, "list payments")
	}

	var succeeded *Payment
	for i := range payments {
		if payments[i].Status == PaymentSucceeded {
			succeeded = &payments[i]
			break
		}
	}
	if succeeded == nil {
		return ErrNoRefundablePayment
	}

	if _, err := s.gateway.Refund(ctx, succeeded.PaymentID); err != nil {
		return errors.Wrap(err, "request refund")
	}

	succeeded.Status = PaymentRefunded
	if err := s.store.UpsertPayment(ctx, succeeded); err != nil {
		return errors.Wrap(err, "record refund")
	}
	return nil
}

// InitiatePayment asks the gateway to start a payment for the order's total,
// records a PENDING payment row, and moves the order CREATED→AWAITING_PAYMENT.
func (s *Service) InitiatePayment(ctx context.Context, orderID, actor string) (*Payment, *Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if !o.Status.CanTransitionTo(StatusAwaitingPayment) {
		return nil, nil, &InvalidTransitionError{From: o.Status, To: StatusAwaitingPayment}
	}

	paymentID, err := s.gateway.Initiate(ctx, o.ID, o.Total)
	if err != nil {
		return nil, nil, errors.Wrap(err, "initiate payment")
	}

	p := &Payment{
		PaymentID: paymentID,
		OrderID:   o.ID,
		Amount:    o.Total,
		Status:    PaymentPending,
	}
	if err := s.store.UpsertPayment(ctx, p); err != nil {
		return nil, nil, errors.Wrap(err, "record payment")
	}

	updated, err := s.store.Transition(ctx, o.ID, o.Status, StatusAwaitingPayment, o.Version, actor)
	if err != nil {
		return nil, nil, err
	}
	return p, updated, nil
}

// GatewayActor is recorded in the status ledger for transitions driven by
// payment callbacks.
const GatewayActor = "payment-gateway"

// RecordPaymentResult is the confirmation callback from the payment gateway.
// It upserts the payment row and, where the result implies it, transitions
// the order (SUCCEEDED: AWAITING_PAYMENT→PAID, REFUNDED: →REFUNDED).
// Duplicate callbacks for an already-applied result are no-ops.
func (s *Service) RecordPaymentResult(ctx context.Context, orderID, paymentID string, status PaymentStatus) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	amount := o.Total
	existing, err := s.store.GetPayment(ctx, paymentID)
	switch {
	case err == nil:
		if existing.OrderID != orderID {
			return nil, &PaymentMismatchError{PaymentID: paymentID, OrderID: orderID}
		}
		amount = existing.Amount
	case errors.Is(err, ErrPaymentNotFound):
		// First time we hear about this payment. Record it against the
		// order total.
	default:
		return nil, errors.Wrap(err, "lookup payment")
	}

	p := &Payment{PaymentID: paymentID, OrderID: orderID, Amount: amount, Status: status}
	if err := s.store.UpsertPayment(ctx, p); err != nil {
		return nil, errors.Wrap(err, "record payment result")
	}

	switch status {
	case PaymentSucceeded:
		if o.Status == StatusPaid {
			return o, nil // duplicate confirmation
		}
		if !o.Status.CanTransitionTo(StatusPaid) {
			return nil, &InvalidTransitionError{From: o.Status, To: StatusPaid}
		}
		updated, err := s.store.Transition(ctx, o.ID, o.Status, StatusPaid, o.Version, GatewayActor)
		if err != nil {
			return nil, err
		}
		s.send(ctx, o.UserID, "Payment received",
			fmt.Sprintf("Payment for order %s confirmed", o.ID))
		return updated, nil
	case PaymentRefunded:
		if o.Status == StatusRefunded {
			return o, nil
		}
		if !o.Status.CanTransitionTo(StatusRefunded) {
			return nil, &InvalidTransitionError{From: o.Status, To: StatusRefunded}
		}
		return s.store.Transition(ctx, o.ID, o.Status, StatusRefunded, o.Version, GatewayActor)
	default:
		// PENDING and FAILED only update the payment record.
		return o, nil
	}
}

// send delivers a notification best-effort. Failures are logged and
// swallowed; they must never fail the surrounding operation.
func (s *Service) send(ctx context.Context, userID, subject, body string) {
	if s.notifier == nil || userID == "" {
		return
	}
	msg := notify.Message{
		Recipient: userID,
		Subject:   subject,
		Body:      body,
		Channel:   notify.ChannelEmail,
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		zctx.From(ctx).Warn("Notification send failed",
			zap.String("user_id", userID),
			zap.String("subject", subject),
			zap.Error(err))
	}
}
