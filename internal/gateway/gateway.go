// Package gateway describes the external card-processing collaborator and the
// guards placed in front of it.
package gateway

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrDisabled is returned when no gateway credentials are configured.
	ErrDisabled = errors.New("payment gateway is not configured")

	// ErrCircuitOpen is returned while the breaker is refusing calls.
	ErrCircuitOpen = errors.New("payment gateway circuit open")

	// ErrInvalidCharge is returned for charges the gateway cannot accept,
	// such as a non-positive amount.
	ErrInvalidCharge = errors.New("invalid charge")
)

// Charge is the amount and context of a charge the client will complete.
type Charge struct {
	Amount   decimal.Decimal
	Currency string
	PlanType string
}

// Gateway exchanges a charge for an opaque client-usable secret.
type Gateway interface {
	CreateChargeToken(ctx context.Context, charge Charge) (string, error)
}

// Disabled is the Gateway used when no provider is configured.
type Disabled struct{}

// CreateChargeToken always fails with ErrDisabled.
func (Disabled) CreateChargeToken(ctx context.Context, charge Charge) (string, error) {
	return "", ErrDisabled
}
