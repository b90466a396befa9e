package models

import "time"

// PaymentStatus represents the settlement state of a payment record.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentFailed:
		return true
	}
	return false
}

// PaymentFields is the card-free data a checkout persists. It deliberately has
// no place for card number, expiry, CVV or the terms flag.
type PaymentFields struct {
	PlanID         int64
	Amount         string
	CardholderName string
	Email          string
}

// Payment is a stored checkout attempt.
type Payment struct {
	ID             int64         `json:"id"`
	UserID         *int64        `json:"userId"`
	PlanID         int64         `json:"planId"`
	Amount         string        `json:"amount"`
	CardholderName string        `json:"cardholderName"`
	Email          string        `json:"email"`
	Status         PaymentStatus `json:"status"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// PublicPayment is the projection of a payment that may leave the service.
type PublicPayment struct {
	ID        int64         `json:"id"`
	PlanID    int64         `json:"planId"`
	Amount    string        `json:"amount"`
	Status    PaymentStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Public returns the fields of p that are safe to hand back to a caller.
func (p Payment) Public() PublicPayment {
	return PublicPayment{
		ID:        p.ID,
		PlanID:    p.PlanID,
		Amount:    p.Amount,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
	}
}
