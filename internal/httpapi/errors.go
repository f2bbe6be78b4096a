package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/velmar/orderdesk/internal/domain/cart"
	"github.com/velmar/orderdesk/internal/domain/coupon"
	"github.com/velmar/orderdesk/internal/domain/order"
	"github.com/velmar/orderdesk/internal/domain/product"
	"github.com/velmar/orderdesk/internal/paygateway"
)

// Error kinds exposed on the wire. Every error response carries one of
// these, a human-readable message, and optional details for client retry
// logic.
const (
	kindNotFound     = "not_found"
	kindValidation   = "validation_failure"
	kindStateClash   = "state_conflict"
	kindBusinessRule = "business_rule_violation"
	kindDependency   = "dependency_failure"
	kindUnexpected   = "unexpected"
)

// badRequestError marks malformed input detected at the boundary (body
// parse failures, unknown enum values, missing fields).
type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &badRequestError{msg: msg}
}

// writeError translates err through the kind table and sends the JSON error
// body. Unexpected errors are logged with their cause; the response carries
// only a generic message.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, kind, details := classify(err)

	msg := err.Error()
	if kind == kindUnexpected {
		zctx.From(ctx).Error("Unhandled error", zap.Error(err))
		msg = "internal error"
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("kind")
	e.Str(kind)
	e.FieldStart("message")
	e.Str(msg)
	if len(details) > 0 {
		e.FieldStart("details")
		e.ObjStart()
		for _, kv := range details {
			e.FieldStart(kv[0])
			e.Str(kv[1])
		}
		e.ObjEnd()
	}
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// classify maps a domain error to (HTTP status, error kind, details).
// The mapping is the explicit boundary table: one row per error taxonomy
// kind, nothing inferred.
func classify(err error) (int, string, [][2]string) {
	// Not found: absent cart, order, coupon, product, payment, or line.
	switch {
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrLineNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrPaymentNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, kindNotFound, nil
	}

	// Validation: malformed input, rejected before any write.
	var br *badRequestError
	var iq *cart.InvalidQuantityError
	switch {
	case errors.As(err, &br),
		errors.Is(err, errEmptyBody),
		errors.Is(err, cart.ErrOwnerRequired),
		errors.Is(err, order.ErrEmptyCart):
		return http.StatusBadRequest, kindValidation, nil
	case errors.As(err, &iq):
		return http.StatusBadRequest, kindValidation, [][2]string{
			{"productId", iq.ProductID},
		}
	}

	// State conflicts: the resource exists but is in the wrong state.
	var it *order.InvalidTransitionError
	var vc *order.VersionConflictError
	var pm *order.PaymentMismatchError
	switch {
	case errors.Is(err, cart.ErrNotActive):
		return http.StatusConflict, kindStateClash, nil
	case errors.As(err, &it):
		return http.StatusConflict, kindStateClash, [][2]string{
			{"currentStatus", string(it.From)},
			{"targetStatus", string(it.To)},
		}
	case errors.As(err, &vc):
		return http.StatusConflict, kindStateClash, [][2]string{
			{"expectedVersion", int64String(vc.Expected)},
			{"actualVersion", int64String(vc.Actual)},
		}
	case errors.As(err, &pm):
		return http.StatusConflict, kindStateClash, [][2]string{
			{"paymentId", pm.PaymentID},
		}
	}

	// Business rules: coupon eligibility and refund preconditions.
	var mm *coupon.MinimumNotMetError
	var au *coupon.AlreadyUsedError
	switch {
	case errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrUsageExceeded),
		errors.Is(err, order.ErrNoRefundablePayment):
		return http.StatusUnprocessableEntity, kindBusinessRule, nil
	case errors.As(err, &mm):
		return http.StatusUnprocessableEntity, kindBusinessRule, [][2]string{
			{"minimumOrderAmount", mm.Minimum.StringFixed(2)},
			{"cartSubtotal", mm.Subtotal.StringFixed(2)},
		}
	case errors.As(err, &au):
		return http.StatusUnprocessableEntity, kindBusinessRule, [][2]string{
			{"couponCode", au.Code},
		}
	}

	// Dependency failures: gateway or store unavailable, timeouts.
	switch {
	case errors.Is(err, paygateway.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, kindDependency, nil
	}

	return http.StatusInternalServerError, kindUnexpected, nil
}

func int64String(v int64) string {
	return strconv.FormatInt(v, 10)
}
