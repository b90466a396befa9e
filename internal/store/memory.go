package store

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/PortNumber53/membership-checkout/backend/internal/models"
)

// MemoryStore keeps plans and payments in process memory. Plans are fixed at
// construction; payments are guarded by mu so id assignment stays unique
// under concurrent checkouts.
type MemoryStore struct {
	plans     []models.Plan
	planIndex map[int64]int

	mu            sync.RWMutex
	payments      map[int64]models.Payment
	nextPaymentID int64

	now func() time.Time
}

// NewMemoryStore seeds a MemoryStore with the given plans, or DefaultPlans when
// none are given. Plans receive sequential ids starting at 1.
func NewMemoryStore(plans ...models.Plan) (*MemoryStore, error) {
	if len(plans) == 0 {
		plans = DefaultPlans()
	}

	s := &MemoryStore{
		plans:         make([]models.Plan, 0, len(plans)),
		planIndex:     make(map[int64]int, len(plans)),
		payments:      make(map[int64]models.Payment),
		nextPaymentID: 1,
		now:           func() time.Time { return time.Now().UTC() },
	}

	for i, p := range plans {
		p.ID = int64(i + 1)
		p.Features = slices.Clone(p.Features)
		if err := p.IsValid(); err != nil {
			return nil, fmt.Errorf("seed plan %q: %w", p.Name, err)
		}
		s.planIndex[p.ID] = len(s.plans)
		s.plans = append(s.plans, p)
	}

	return s, nil
}

// ListPlans returns every seeded plan in insertion order.
func (s *MemoryStore) ListPlans(ctx context.Context) ([]models.Plan, error) {
	out := make([]models.Plan, len(s.plans))
	for i, p := range s.plans {
		out[i] = clonePlan(p)
	}
	return out, nil
}

// GetPlan returns the plan with the given id or ErrPlanNotFound.
func (s *MemoryStore) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	idx, ok := s.planIndex[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	p := clonePlan(s.plans[idx])
	return &p, nil
}

// CreatePayment stores a new payment under the next sequential id.
func (s *MemoryStore) CreatePayment(ctx context.Context, fields models.PaymentFields, status models.PaymentStatus) (*models.Payment, error) {
	status, err := resolveStatus(status)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payment := models.Payment{
		ID:             s.nextPaymentID,
		PlanID:         fields.PlanID,
		Amount:         fields.Amount,
		CardholderName: fields.CardholderName,
		Email:          fields.Email,
		Status:         status,
		CreatedAt:      s.now(),
	}
	s.payments[payment.ID] = payment
	s.nextPaymentID++

	return &payment, nil
}

// GetPayment returns the payment with the given id or ErrPaymentNotFound.
func (s *MemoryStore) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

// Close is a no-op; it lets MemoryStore satisfy Storage.
func (s *MemoryStore) Close() error {
	return nil
}

func clonePlan(p models.Plan) models.Plan {
	p.Features = slices.Clone(p.Features)
	return p
}
