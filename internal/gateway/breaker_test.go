package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type scriptedGateway struct {
	errs  []error
	calls int
}

func (g *scriptedGateway) CreateChargeToken(ctx context.Context, charge Charge) (string, error) {
	i := g.calls
	g.calls++
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	return "secret", nil
}

var testCharge = Charge{Amount: decimal.RequireFromString("9.99"), Currency: "usd", PlanType: "monthly"}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	boom := errors.New("gateway 5xx")
	next := &scriptedGateway{errs: []error{boom, boom}}
	b := NewCircuitBreaker(next, BreakerConfig{FailureThreshold: 2, OpenTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		_, err := b.CreateChargeToken(context.Background(), testCharge)
		require.ErrorIs(t, err, boom)
	}

	_, err := b.CreateChargeToken(context.Background(), testCharge)
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Equal(t, 2, next.calls)
}

func TestCircuitBreaker_HalfOpenProbeCloses(t *testing.T) {
	boom := errors.New("gateway 5xx")
	next := &scriptedGateway{errs: []error{boom}}
	b := NewCircuitBreaker(next, BreakerConfig{FailureThreshold: 1, OpenTimeout: time.Second})

	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	_, err := b.CreateChargeToken(context.Background(), testCharge)
	require.ErrorIs(t, err, boom)

	_, err = b.CreateChargeToken(context.Background(), testCharge)
	require.ErrorIs(t, err, ErrCircuitOpen)

	now = now.Add(2 * time.Second)
	token, err := b.CreateChargeToken(context.Background(), testCharge)
	require.NoError(t, err)
	require.Equal(t, "secret", token)

	token, err = b.CreateChargeToken(context.Background(), testCharge)
	require.NoError(t, err)
	require.Equal(t, "secret", token)
	require.Equal(t, 3, next.calls)
}

func TestCircuitBreaker_IgnoresNonFailures(t *testing.T) {
	next := &scriptedGateway{errs: []error{ErrInvalidCharge, ErrInvalidCharge, ErrInvalidCharge}}
	b := NewCircuitBreaker(next, BreakerConfig{FailureThreshold: 1})

	for i := 0; i < 3; i++ {
		_, err := b.CreateChargeToken(context.Background(), testCharge)
		require.ErrorIs(t, err, ErrInvalidCharge)
	}

	_, err := b.CreateChargeToken(context.Background(), testCharge)
	require.NoError(t, err)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.CreateChargeToken(context.Background(), testCharge)
	require.ErrorIs(t, err, ErrDisabled)
}
