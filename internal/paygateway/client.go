// Package paygateway is a typed HTTP client for the external payment
// processor. Timeout and retry behaviour are fixed at construction; the
// processor's asynchronous outcomes arrive through the payment callback
// endpoint, not through this client.
package paygateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// ErrUnavailable wraps transport-level failures after all retries are spent.
var ErrUnavailable = errors.New("payment gateway unavailable")

// Config holds the connection settings for the gateway.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// Retries is the number of additional attempts after the first on
	// network errors and 5xx responses.
	Retries int
}

// Client talks to the payment processor over HTTP with OpenTelemetry
// instrumentation: transport-level spans via otelhttp plus logical spans and
// a call counter per operation.
type Client struct {
	cfg    Config
	http   *http.Client
	tracer trace.Tracer
	calls  metric.Int64Counter
}

// New creates a Client from cfg. A zero Timeout defaults to 5s. Nil
// providers disable the corresponding instrumentation.
func New(cfg Config, mp metric.MeterProvider, tp trace.TracerProvider) (*Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if mp == nil {
		mp = noopmetric.NewMeterProvider()
	}
	if tp == nil {
		tp = nooptrace.NewTracerProvider()
	}

	calls, err := mp.Meter("orderdesk.paygateway").Int64Counter("paygateway.calls",
		metric.WithDescription("Payment gateway calls by operation and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create calls counter")
	}

	return &Client{
		cfg:    cfg,
		tracer: tp.Tracer("orderdesk.paygateway"),
		calls:  calls,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tp)),
		},
	}, nil
}

// finish closes the operation span and counts the call.
func (c *Client) finish(ctx context.Context, span trace.Span, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	c.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// Initiate asks the processor to start collecting the given amount for an
// order and returns the processor-issued payment ID.
func (c *Client) Initiate(ctx context.Context, orderID string, amount decimal.Decimal) (paymentID string, err error) {
	ctx, span := c.tracer.Start(ctx, "paygateway.Initiate",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)
	defer func() { c.finish(ctx, span, "initiate", err) }()

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("orderId")
	e.Str(orderID)
	e.FieldStart("amount")
	e.Str(amount.StringFixed(2))
	e.ObjEnd()

	data, err := c.post(ctx, c.cfg.BaseURL+"/payments", e.Bytes())
	if err != nil {
		return "", err
	}

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == "paymentId" {
			v, err := d.Str()
			paymentID = v
			return err
		}
		return d.Skip()
	}); err != nil {
		return "", errors.Wrap(err, "decode initiate response")
	}
	if paymentID == "" {
		return "", errors.New("gateway returned no payment id")
	}
	return paymentID, nil
}

// Refund asks the processor to refund a payment and returns the reported
// refund status.
func (c *Client) Refund(ctx context.Context, paymentID string) (status string, err error) {
	ctx, span := c.tracer.Start(ctx, "paygateway.Refund",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("payment.id", paymentID)),
	)
	defer func() { c.finish(ctx, span, "refund", err) }()

	data, err := c.post(ctx, c.cfg.BaseURL+"/payments/"+paymentID+"/refund", nil)
	if err != nil {
		return "", err
	}

	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		if key == "status" {
			v, err := d.Str()
			status = v
			return err
		}
		return d.Skip()
	}); err != nil {
		return "", errors.Wrap(err, "decode refund response")
	}
	return status, nil
}

// post issues a JSON POST with retries on network errors and 5xx responses.
func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode >= 500:
			lastErr = errors.Errorf("gateway returned %d", resp.StatusCode)
			continue
		case resp.StatusCode >= 400:
			return nil, errors.Errorf("gateway rejected request: %d %s", resp.StatusCode, data)
		case readErr != nil:
			lastErr = readErr
			continue
		default:
			return data, nil
		}
	}
	return nil, errors.Wrapf(ErrUnavailable, "%v", lastErr)
}
