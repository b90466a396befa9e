package store

import (
	"context"
	"errors"

	"github.com/PortNumber53/membership-checkout/backend/internal/models"
)

var (
	// ErrPlanNotFound is returned when no plan has the requested id.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrPaymentNotFound is returned when no payment has the requested id.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrInvalidStatus is returned when a payment is created with an unknown status.
	ErrInvalidStatus = errors.New("invalid payment status")
)

// PlanCatalog is the read-only view over the seeded membership plans.
type PlanCatalog interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
}

// PaymentStore persists checkout attempts. Callers are responsible for passing
// card-free fields; the store performs no redaction of its own.
type PaymentStore interface {
	CreatePayment(ctx context.Context, fields models.PaymentFields, status models.PaymentStatus) (*models.Payment, error)
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
}

// Storage is implemented by every backend: the in-memory store and Postgres.
type Storage interface {
	PlanCatalog
	PaymentStore
	Close() error
}

// DefaultPlans returns the seed list of membership plans in display order.
// The ids are assigned by the backend that loads them.
func DefaultPlans() []models.Plan {
	return []models.Plan{
		{
			Name:         "Monthly Membership",
			Type:         models.BillingMonthly,
			Price:        "9.99",
			Description:  "Basic Plan - Valid for 30 days",
			ValidityDays: 30,
			Features: []string{
				"Luggage protection coverage",
				"24/7 customer support",
				"Travel assistance",
			},
		},
		{
			Name:         "Annual Membership",
			Type:         models.BillingAnnual,
			Price:        "99.99",
			Description:  "Premium Plan - Valid for 365 days",
			ValidityDays: 365,
			Features: []string{
				"Everything in Basic Plan",
				"Priority customer support",
				"Extended coverage limits",
				"Exclusive travel perks",
			},
		},
	}
}

func resolveStatus(status models.PaymentStatus) (models.PaymentStatus, error) {
	if status == "" {
		return models.PaymentPending, nil
	}
	if !status.Valid() {
		return "", ErrInvalidStatus
	}
	return status, nil
}

var (
	_ Storage = (*MemoryStore)(nil)
	_ Storage = (*PostgresStore)(nil)
)
