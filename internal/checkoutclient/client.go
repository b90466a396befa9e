// Package checkoutclient builds and sends checkout requests the way the
// payment form does: it formats card input, validates against the shared
// submission schema and only then calls the API.
package checkoutclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/PortNumber53/membership-checkout/backend/internal/checkout"
	"github.com/PortNumber53/membership-checkout/backend/internal/models"
)

var (
	// ErrNoPlanSelected is returned by SubmitPayment when no plan is given.
	ErrNoPlanSelected = errors.New("no membership plan selected")

	// ErrNotFound matches an APIError with status 404.
	ErrNotFound = errors.New("not found")
)

// APIError is a non-2xx answer from the checkout API.
type APIError struct {
	StatusCode int
	Message    string
	Fields     []checkout.FieldError
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("checkout api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("checkout api: status %d: %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Validation returns the field errors reported by the server, if any.
func (e *APIError) Validation() (*checkout.ValidationError, bool) {
	if len(e.Fields) == 0 {
		return nil, false
	}
	return &checkout.ValidationError{Fields: e.Fields}, true
}

// Form is what a customer types into the payment form.
type Form struct {
	CardholderName string
	Email          string
	CardNumber     string
	ExpiryDate     string
	CVV            string
	Terms          bool
}

// Client calls the checkout API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	schema     *checkout.Schema
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New returns a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		schema:     checkout.NewSchema(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BuildSubmission turns form input into a submission for plan. The plan's id
// and price override anything the form carried.
func BuildSubmission(plan *models.Plan, form Form) (checkout.Submission, error) {
	if plan == nil {
		return checkout.Submission{}, ErrNoPlanSelected
	}
	return checkout.Submission{
		PlanID:         plan.ID,
		Amount:         plan.Price,
		CardholderName: form.CardholderName,
		Email:          form.Email,
		CardNumber:     FormatCardNumber(form.CardNumber),
		ExpiryDate:     FormatExpiryDate(form.ExpiryDate),
		CVV:            FormatCVV(form.CVV),
		Terms:          checkout.Acceptance(form.Terms),
	}, nil
}

// ListPlans fetches the membership catalog.
func (c *Client) ListPlans(ctx context.Context) ([]models.Plan, error) {
	var plans []models.Plan
	if err := c.do(ctx, http.MethodGet, "/api/membership-plans", nil, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// GetPlan fetches one plan.
func (c *Client) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	var plan models.Plan
	if err := c.do(ctx, http.MethodGet, "/api/membership-plans/"+strconv.FormatInt(id, 10), nil, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// SubmitPayment validates the form locally and posts it. A local validation
// failure returns *checkout.ValidationError without any network call.
func (c *Client) SubmitPayment(ctx context.Context, plan *models.Plan, form Form) (*checkout.Confirmation, error) {
	sub, err := BuildSubmission(plan, form)
	if err != nil {
		return nil, err
	}
	if err := c.schema.Validate(sub.Normalize()); err != nil {
		return nil, err
	}

	var conf checkout.Confirmation
	if err := c.do(ctx, http.MethodPost, "/api/payments", sub, &conf); err != nil {
		return nil, err
	}
	return &conf, nil
}

// GetPayment fetches the public status of a payment.
func (c *Client) GetPayment(ctx context.Context, id int64) (*models.PublicPayment, error) {
	var payment models.PublicPayment
	if err := c.do(ctx, http.MethodGet, "/api/payments/"+strconv.FormatInt(id, 10), nil, &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// CreateChargeToken requests a gateway client secret.
func (c *Client) CreateChargeToken(ctx context.Context, amount decimal.Decimal, planType string) (string, error) {
	body := map[string]any{"amount": amount, "planType": planType}
	var out struct {
		ClientSecret string `json:"clientSecret"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/create-payment-intent", body, &out); err != nil {
		return "", err
	}
	return out.ClientSecret, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Message string                `json:"message"`
			Errors  []checkout.FieldError `json:"errors"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Message
			apiErr.Fields = payload.Errors
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
