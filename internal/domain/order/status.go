package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusCreated         Status = "CREATED"
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusPaid            Status = "PAID"
	StatusFulfilling      Status = "FULFILLING"
	StatusShipped         Status = "SHIPPED"
	StatusDelivered       Status = "DELIVERED"
	StatusCompleted       Status = "COMPLETED"
	StatusCancelled       Status = "CANCELLED"
	StatusRefunded        Status = "REFUNDED"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	if _, ok := transitions[Status(s)]; ok {
		return Status(s), nil
	}
	return "", errors.Errorf("unknown order status: %q", s)
}

// transitions is the legal-transition table. Cancellation and refund are
// only reachable before fulfilment starts; afterwards the order must run to
// DELIVERED and be handled as a return, which is out of scope here.
var transitions = map[Status][]Status{
	StatusCreated:         {StatusAwaitingPayment, StatusCancelled, StatusRefunded},
	StatusAwaitingPayment: {StatusPaid, StatusCancelled, StatusRefunded},
	StatusPaid:            {StatusFulfilling, StatusCancelled, StatusRefunded},
	StatusFulfilling:      {StatusShipped},
	StatusShipped:         {StatusDelivered},
	StatusDelivered:       {StatusCompleted},
	StatusCompleted:       {},
	StatusCancelled:       {},
	StatusRefunded:        {},
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to target is legal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// InvalidTransitionError indicates a requested transition is not in the
// legal-transition table. The order state is left unchanged.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("illegal order status transition %s -> %s", e.From, e.To)
}
