package cex

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bud42069/Arbeit-Trage/internal/apperror"
	"github.com/bud42069/Arbeit-Trage/internal/httpclient"
	"github.com/shopspring/decimal"
)

const orderTimeout = 10 * time.Second

// Side is the order side for PlaceIOCOrder.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// OrderResult is the outcome of PlaceIOCOrder: data, never a panic. Error
// is populated instead of being returned as a Go error so a rejected order
// is as inspectable as a filled one.
type OrderResult struct {
	ClientOrderID string
	VenueOrderID  string
	Status        string
	Raw           []byte
	Error         string
}

// PlaceIOCOrder submits an immediate-or-cancel limit order. It signs via
// the connector's injected AuthScheme, times out at 10s, and never
// auto-retries - a rejection or network failure is reported as data on the
// returned OrderResult, never escalated to a fatal error for the
// connector process.
func (c *Connector) PlaceIOCOrder(ctx context.Context, symbol string, side Side, qty, limitPrice decimal.Decimal, clientOrderID string) OrderResult {
	ctx, span := c.tracer.Start(ctx, "cex.place_ioc_order",
		trace.WithAttributes(
			attribute.String("venue", c.cfg.Venue),
			attribute.String("symbol", symbol),
			attribute.String("side", string(side)),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, orderTimeout)
	defer cancel()

	if err := c.orderLimiter.Wait(ctx); err != nil {
		span.RecordError(err)
		return OrderResult{ClientOrderID: clientOrderID, Error: err.Error()}
	}

	payload := map[string]string{
		"symbol":          symbol,
		"side":            string(side),
		"quantity":        qty.String(),
		"price":           limitPrice.String(),
		"type":            "LIMIT_IOC",
		"client_order_id": clientOrderID,
	}

	headers, body, err := c.cfg.Auth.Sign(payload)
	if err != nil {
		span.RecordError(err)
		return OrderResult{ClientOrderID: clientOrderID, Error: err.Error()}
	}

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName(c.cfg.Venue),
		httpclient.WithBaseURL(c.cfg.BaseURL),
		httpclient.WithRequestTimeout(orderTimeout),
	)
	if err != nil {
		span.RecordError(err)
		return OrderResult{ClientOrderID: clientOrderID, Error: err.Error()}
	}

	req := client.NewRequest().SetHeaders(headers)
	if body != nil {
		req = req.SetBody(body)
	}

	resp, err := req.Post(ctx, "/order/new")
	if err != nil {
		span.RecordError(err)
		c.log.Warn(ctx, "cex order submission failed", "venue", c.cfg.Venue, "error", err)
		return OrderResult{ClientOrderID: clientOrderID, Error: err.Error()}
	}

	c.metrics.ordersSent.Add(ctx, 1)

	if resp.IsError() {
		rejectErr := apperror.New(apperror.CodeCEXOrderRejected,
			apperror.WithContext(fmt.Sprintf("venue=%s status=%d", c.cfg.Venue, resp.StatusCode)))
		c.log.Warn(ctx, "cex order rejected", "venue", c.cfg.Venue, "status", resp.StatusCode)
		return OrderResult{ClientOrderID: clientOrderID, Status: "rejected", Raw: resp.Body(), Error: rejectErr.Error()}
	}

	return OrderResult{
		ClientOrderID: clientOrderID,
		Status:        "accepted",
		Raw:           resp.Body(),
	}
}
