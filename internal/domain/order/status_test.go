package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []Status{
	StatusCreated, StatusAwaitingPayment, StatusPaid, StatusFulfilling,
	StatusShipped, StatusDelivered, StatusCompleted, StatusCancelled,
	StatusRefunded,
}

func TestCanTransitionTo_FullTable(t *testing.T) {
	legal := map[Status]map[Status]bool{
		StatusCreated:         {StatusAwaitingPayment: true, StatusCancelled: true, StatusRefunded: true},
		StatusAwaitingPayment: {StatusPaid: true, StatusCancelled: true, StatusRefunded: true},
		StatusPaid:            {StatusFulfilling: true, StatusCancelled: true, StatusRefunded: true},
		StatusFulfilling:      {StatusShipped: true},
		StatusShipped:         {StatusDelivered: true},
		StatusDelivered:       {StatusCompleted: true},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			want := legal[from][to]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	terminals := map[Status]bool{
		StatusCompleted: true,
		StatusCancelled: true,
		StatusRefunded:  true,
	}

	for _, s := range allStatuses {
		assert.Equal(t, terminals[s], s.Terminal(), "status %s", s)
	}
}

func TestCancellationOnlyBeforeFulfilment(t *testing.T) {
	// Once fulfilment starts the order can no longer be cancelled or
	// refunded through the status endpoint.
	for _, from := range []Status{StatusFulfilling, StatusShipped, StatusDelivered} {
		assert.False(t, from.CanTransitionTo(StatusCancelled), "from %s", from)
		assert.False(t, from.CanTransitionTo(StatusRefunded), "from %s", from)
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range allStatuses {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseStatus("SHIPPED ")
	assert.Error(t, err)

	_, err = ParseStatus("archived")
	assert.Error(t, err)
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{From: StatusCreated, To: StatusShipped}
	assert.Equal(t, "illegal order status transition CREATED -> SHIPPED", err.Error())
}
