package gateway

import (
	"context"
	"errors"
	"sync"
	"time"
)

// BreakerConfig tunes a CircuitBreaker. Zero values fall back to defaults.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
	// IsFailure decides which errors count against the breaker. Client-side
	// errors such as a declined card should not open the circuit.
	IsFailure func(error) bool
}

const (
	cbClosed = iota
	cbOpen
	cbHalfOpen
)

// CircuitBreaker stops calling the wrapped Gateway after repeated failures
// and lets a single probe through once OpenTimeout has elapsed.
type CircuitBreaker struct {
	next Gateway
	cfg  BreakerConfig
	now  func() time.Time

	mu           sync.Mutex
	state        int
	failures     int
	successes    int
	openedAt     time.Time
	halfInFlight bool
}

// NewCircuitBreaker wraps next.
func NewCircuitBreaker(next Gateway, cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, ErrInvalidCharge)
		}
	}
	return &CircuitBreaker{next: next, cfg: cfg, now: time.Now, state: cbClosed}
}

// CreateChargeToken forwards to the wrapped Gateway unless the circuit is open.
func (b *CircuitBreaker) CreateChargeToken(ctx context.Context, charge Charge) (string, error) {
	if err := b.beforeCall(); err != nil {
		return "", err
	}

	token, err := b.next.CreateChargeToken(ctx, charge)
	b.afterCall(err)
	return token, err
}

func (b *CircuitBreaker) beforeCall() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case cbClosed:
		return nil
	case cbOpen:
		if b.now().Sub(b.openedAt) < b.cfg.OpenTimeout {
			return ErrCircuitOpen
		}
		b.state = cbHalfOpen
		b.successes = 0
		b.halfInFlight = false
		fallthrough
	case cbHalfOpen:
		if b.halfInFlight {
			return ErrCircuitOpen
		}
		b.halfInFlight = true
		return nil
	default:
		return ErrCircuitOpen
	}
}

func (b *CircuitBreaker) afterCall(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == cbHalfOpen {
		b.halfInFlight = false
	}

	if err == nil {
		switch b.state {
		case cbClosed:
			b.failures = 0
		case cbHalfOpen:
			b.successes++
			if b.successes >= b.cfg.SuccessThreshold {
				b.state = cbClosed
				b.failures = 0
				b.successes = 0
			}
		}
		return
	}

	if !b.cfg.IsFailure(err) {
		return
	}

	switch b.state {
	case cbClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.trip()
		}
	case cbHalfOpen:
		b.trip()
	}
}

func (b *CircuitBreaker) trip() {
	b.state = cbOpen
	b.openedAt = b.now()
	b.successes = 0
	b.halfInFlight = false
}
