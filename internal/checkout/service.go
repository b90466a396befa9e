// Package checkout implements the membership checkout workflow: validating a
// submitted payment form, recording a sanitized payment and reporting its
// status back to the caller.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/PortNumber53/membership-checkout/backend/internal/gateway"
	"github.com/PortNumber53/membership-checkout/backend/internal/models"
	"github.com/PortNumber53/membership-checkout/backend/internal/store"
)

var (
	// ErrPlanNotFound is returned when a submission references an unknown plan.
	ErrPlanNotFound = errors.New("selected plan not found")

	// ErrPaymentNotFound is returned when a status lookup finds no payment.
	ErrPaymentNotFound = errors.New("payment not found")
)

// Currency is the only currency charged.
const Currency = "usd"

const defaultGatewayTimeout = 10 * time.Second

// PlanCatalog resolves plans referenced by a submission.
type PlanCatalog interface {
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
}

// PaymentRecorder persists and reads back payment records.
type PaymentRecorder interface {
	CreatePayment(ctx context.Context, fields models.PaymentFields, status models.PaymentStatus) (*models.Payment, error)
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
}

// Confirmation is returned for an accepted submission.
type Confirmation struct {
	Success bool                 `json:"success"`
	Payment models.PublicPayment `json:"payment"`
	Plan    models.PlanSummary   `json:"plan"`
}

// Service runs the checkout workflow.
type Service struct {
	plans          PlanCatalog
	payments       PaymentRecorder
	gateway        gateway.Gateway
	gatewayTimeout time.Duration
	schema         *Schema
	log            *zap.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithGateway sets the collaborator used by CreateChargeToken and the
// deadline applied to each call. A non-positive timeout keeps the default.
func WithGateway(g gateway.Gateway, timeout time.Duration) Option {
	return func(s *Service) {
		if g != nil {
			s.gateway = g
		}
		if timeout > 0 {
			s.gatewayTimeout = timeout
		}
	}
}

// WithSchema replaces the default validation schema.
func WithSchema(schema *Schema) Option {
	return func(s *Service) {
		if schema != nil {
			s.schema = schema
		}
	}
}

// NewService wires a Service. Without WithGateway, charge tokens fail with
// gateway.ErrDisabled.
func NewService(plans PlanCatalog, payments PaymentRecorder, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		plans:          plans,
		payments:       payments,
		gateway:        gateway.Disabled{},
		gatewayTimeout: defaultGatewayTimeout,
		schema:         defaultSchema,
		log:            log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitPayment validates sub, checks the plan exists and records a completed
// payment. Card data never reaches the store.
//
// There is no card processor in this path: the payment is marked completed
// as soon as it is recorded.
func (s *Service) SubmitPayment(ctx context.Context, sub Submission) (*Confirmation, error) {
	sub = sub.Normalize()
	if err := s.schema.Validate(sub); err != nil {
		return nil, err
	}

	plan, err := s.plans.GetPlan(ctx, sub.PlanID)
	if err != nil {
		if errors.Is(err, store.ErrPlanNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("lookup plan %d: %w", sub.PlanID, err)
	}

	fields := sub.Sanitize()
	if fields.Amount != plan.Price {
		s.log.Warn("submitted amount differs from plan price",
			zap.Int64("plan_id", plan.ID),
			zap.String("amount", fields.Amount),
			zap.String("price", plan.Price),
		)
	}

	payment, err := s.payments.CreatePayment(ctx, fields, models.PaymentCompleted)
	if err != nil {
		return nil, fmt.Errorf("record payment: %w", err)
	}

	s.log.Info("payment recorded",
		zap.Int64("payment_id", payment.ID),
		zap.Int64("plan_id", payment.PlanID),
		zap.String("amount", payment.Amount),
		zap.String("status", string(payment.Status)),
	)

	return &Confirmation{
		Success: true,
		Payment: payment.Public(),
		Plan:    plan.Summary(),
	}, nil
}

// GetPaymentStatus returns the public view of a stored payment.
func (s *Service) GetPaymentStatus(ctx context.Context, id int64) (*models.PublicPayment, error) {
	payment, err := s.payments.GetPayment(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("lookup payment %d: %w", id, err)
	}
	public := payment.Public()
	return &public, nil
}

// CreateChargeToken asks the gateway for a client secret covering amount.
func (s *Service) CreateChargeToken(ctx context.Context, amount decimal.Decimal, planType string) (string, error) {
	planType = strings.TrimSpace(planType)

	var fields []FieldError
	if !amount.IsPositive() {
		fields = append(fields, FieldError{Field: "amount", Reason: ReasonRequired, Message: "must be a positive amount"})
	}
	if planType == "" {
		fields = append(fields, FieldError{Field: "planType", Reason: ReasonRequired, Message: "is required"})
	}
	if len(fields) > 0 {
		return "", &ValidationError{Fields: fields}
	}

	ctx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	secret, err := s.gateway.CreateChargeToken(ctx, gateway.Charge{
		Amount:   amount,
		Currency: Currency,
		PlanType: planType,
	})
	if err != nil {
		return "", fmt.Errorf("create charge token: %w", err)
	}

	s.log.Info("charge token created",
		zap.String("amount", amount.StringFixed(2)),
		zap.String("plan_type", planType),
	)
	return secret, nil
}
