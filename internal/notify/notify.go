// Package notify abstracts the outbound notification sender. Delivery is
// fire-and-forget from the caller's perspective: senders may fail, and
// callers log and move on.
package notify

import (
	"context"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Channel selects the delivery mechanism.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message is a single outbound notification.
type Message struct {
	Recipient string
	Subject   string
	Body      string
	Channel   Channel
}

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes notifications to the log instead of delivering them.
// It stands in for a real email/SMS provider in development and tests.
type LogSender struct{}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs the message and reports success.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	zctx.From(ctx).Info("Notification",
		zap.String("recipient", msg.Recipient),
		zap.String("channel", string(msg.Channel)),
		zap.String("subject", msg.Subject),
		zap.String("body", msg.Body))
	return nil
}
