// Package stripe adapts the Stripe PaymentIntents API to gateway.Gateway.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	stripeapi "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"

	"github.com/PortNumber53/membership-checkout/backend/internal/gateway"
)

// Options configures a Client.
type Options struct {
	SecretKey string
	// BaseURL overrides https://api.stripe.com, mostly for tests.
	BaseURL           string
	HTTPClient        *http.Client
	MaxNetworkRetries int64
}

// Client creates PaymentIntents and hands back their client secrets.
type Client struct {
	api *client.API
	log *zap.Logger
}

var _ gateway.Gateway = (*Client)(nil)

// NewClient builds a Client. An empty secret key yields gateway.ErrDisabled.
func NewClient(opts Options, log *zap.Logger) (*Client, error) {
	if strings.TrimSpace(opts.SecretKey) == "" {
		return nil, gateway.ErrDisabled
	}
	if log == nil {
		log = zap.NewNop()
	}

	cfg := &stripeapi.BackendConfig{
		HTTPClient:        opts.HTTPClient,
		MaxNetworkRetries: stripeapi.Int64(opts.MaxNetworkRetries),
		LeveledLogger:     log.Named("stripe").Sugar(),
	}
	if opts.BaseURL != "" {
		cfg.URL = stripeapi.String(strings.TrimRight(opts.BaseURL, "/"))
	}

	backend := stripeapi.GetBackendWithConfig(stripeapi.APIBackend, cfg)
	api := &client.API{}
	api.Init(opts.SecretKey, &stripeapi.Backends{
		API:     backend,
		Connect: backend,
		Uploads: backend,
	})

	return &Client{api: api, log: log}, nil
}

// CreateChargeToken creates a PaymentIntent for charge and returns its client
// secret. Amounts are sent in cents.
func (c *Client) CreateChargeToken(ctx context.Context, charge gateway.Charge) (string, error) {
	cents := charge.Amount.Shift(2).Round(0).IntPart()
	if cents <= 0 {
		return "", fmt.Errorf("amount %s: %w", charge.Amount.String(), gateway.ErrInvalidCharge)
	}
	currency := strings.ToLower(charge.Currency)
	if currency == "" {
		currency = string(stripeapi.CurrencyUSD)
	}

	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(cents),
		Currency: stripeapi.String(currency),
	}
	params.Context = ctx
	params.AddMetadata("planType", charge.PlanType)
	params.SetIdempotencyKey(uuid.NewString())

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		var serr *stripeapi.Error
		if errors.As(err, &serr) && !IsTransient(err) {
			c.log.Warn("stripe rejected payment intent",
				zap.Int("status", serr.HTTPStatusCode),
				zap.String("type", string(serr.Type)),
				zap.String("code", string(serr.Code)),
			)
			return "", fmt.Errorf("create payment intent: %w: %w", gateway.ErrInvalidCharge, err)
		}
		return "", fmt.Errorf("create payment intent: %w", err)
	}
	if pi.ClientSecret == "" {
		return "", fmt.Errorf("create payment intent %s: missing client secret", pi.ID)
	}

	c.log.Debug("payment intent created", zap.String("payment_intent", pi.ID), zap.Int64("amount_cents", cents))
	return pi.ClientSecret, nil
}

// IsTransient reports whether err is worth retrying: network failures,
// rate limiting and 5xx responses.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var serr *stripeapi.Error
	if !errors.As(err, &serr) {
		return !errors.Is(err, gateway.ErrInvalidCharge) && !errors.Is(err, context.Canceled)
	}
	return serr.HTTPStatusCode == http.StatusTooManyRequests || serr.HTTPStatusCode >= http.StatusInternalServerError || serr.HTTPStatusCode == 0
}
