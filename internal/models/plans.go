package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BillingType is the billing cadence of a membership plan.
type BillingType string

const (
	BillingMonthly BillingType = "monthly"
	BillingAnnual  BillingType = "annual"
)

// Valid reports whether t is one of the known billing cadences.
func (t BillingType) Valid() bool {
	return t == BillingMonthly || t == BillingAnnual
}

// Plan represents a purchasable membership tier.
type Plan struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Type         BillingType `json:"type"`
	Price        string      `json:"price"`
	Description  string      `json:"description"`
	ValidityDays int         `json:"validityDays"`
	Features     []string    `json:"features"`
}

// PlanSummary is the descriptive slice of a plan returned with a checkout confirmation.
type PlanSummary struct {
	Name         string      `json:"name"`
	Type         BillingType `json:"type"`
	ValidityDays int         `json:"validityDays"`
}

// Summary projects the plan onto the fields shown after checkout.
func (p Plan) Summary() PlanSummary {
	return PlanSummary{
		Name:         p.Name,
		Type:         p.Type,
		ValidityDays: p.ValidityDays,
	}
}

// IsValid checks the plan invariants: a known billing type, a positive validity
// window and a non-negative price with exactly two fractional digits.
func (p Plan) IsValid() error {
	if p.Name == "" {
		return fmt.Errorf("plan name is required")
	}
	if !p.Type.Valid() {
		return fmt.Errorf("unknown billing type %q", p.Type)
	}
	if p.ValidityDays <= 0 {
		return fmt.Errorf("validity_days must be positive")
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", p.Price, err)
	}
	if price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	if price.StringFixed(2) != p.Price {
		return fmt.Errorf("price %q must have exactly two decimal digits", p.Price)
	}
	return nil
}
