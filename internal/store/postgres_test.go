package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	"github.com/PortNumber53/membership-checkout/backend/internal/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return &PostgresStore{db: db}, mock
}

func TestNewPostgresStoreValidation(t *testing.T) {
	if _, err := NewPostgresStore(nil); err == nil {
		t.Fatal("expected error when db is nil")
	}
}

func TestListPlansSuccess(t *testing.T) {
	s, mock := newMockStore(t)

	query := regexp.MustCompile(`SELECT id, name, type, price::text`)
	rows := sqlmock.NewRows([]string{"id", "name", "type", "price", "description", "validity_days", "features"}).
		AddRow(int64(1), "Monthly Membership", "monthly", "9.99", "Basic Plan - Valid for 30 days", 30, `{"Luggage protection coverage","24/7 customer support","Travel assistance"}`).
		AddRow(int64(2), "Annual Membership", "annual", "99.99", "Premium Plan - Valid for 365 days", 365, `{"Everything in Basic Plan"}`)

	mock.ExpectQuery(query.String()).WillReturnRows(rows)

	plans, err := s.ListPlans(context.Background())
	if err != nil {
		t.Fatalf("ListPlans returned error: %v", err)
	}

	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].Type != models.BillingMonthly || plans[0].Price != "9.99" {
		t.Fatalf("unexpected first plan: %+v", plans[0])
	}
	if len(plans[0].Features) != 3 || plans[0].Features[1] != "24/7 customer support" {
		t.Fatalf("unexpected features: %v", plans[0].Features)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListPlansQueryError(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM membership_plans")).WillReturnError(errors.New("boom"))

	if _, err := s.ListPlans(context.Background()); err == nil {
		t.Fatal("expected error when query fails")
	}
}

func TestGetPlanNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM membership_plans")).
		WithArgs(int64(999)).
		WillReturnError(sql.ErrNoRows)

	if _, err := s.GetPlan(context.Background(), 999); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestCreatePaymentSuccess(t *testing.T) {
	s, mock := newMockStore(t)
	createdAt := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(int64(1), "9.99", "Jane Doe", "jane@example.com", "completed").
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "created_at"}).AddRow(int64(7), "9.99", createdAt))

	p, err := s.CreatePayment(context.Background(), models.PaymentFields{
		PlanID:         1,
		Amount:         "9.99",
		CardholderName: "Jane Doe",
		Email:          "jane@example.com",
	}, models.PaymentCompleted)
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}

	if p.ID != 7 || p.Status != models.PaymentCompleted || !p.CreatedAt.Equal(createdAt) {
		t.Fatalf("unexpected payment: %+v", p)
	}
	if p.UserID != nil {
		t.Fatalf("expected nil user id, got %v", *p.UserID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreatePaymentDefaultsToPending(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(int64(2), "99.99", "John Roe", "john@example.com", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "amount", "created_at"}).AddRow(int64(1), "99.99", time.Now()))

	p, err := s.CreatePayment(context.Background(), models.PaymentFields{
		PlanID:         2,
		Amount:         "99.99",
		CardholderName: "John Roe",
		Email:          "john@example.com",
	}, "")
	if err != nil {
		t.Fatalf("CreatePayment returned error: %v", err)
	}
	if p.Status != models.PaymentPending {
		t.Fatalf("expected pending status, got %q", p.Status)
	}
}

func TestGetPaymentScansNullableUser(t *testing.T) {
	s, mock := newMockStore(t)
	createdAt := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "user_id", "plan_id", "amount", "cardholder_name", "email", "status", "created_at"}).
		AddRow(int64(3), nil, int64(1), "9.99", "Jane Doe", "jane@example.com", "completed", createdAt)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments")).WithArgs(int64(3)).WillReturnRows(rows)

	p, err := s.GetPayment(context.Background(), 3)
	if err != nil {
		t.Fatalf("GetPayment returned error: %v", err)
	}
	if p.UserID != nil || p.PlanID != 1 || p.Status != models.PaymentCompleted {
		t.Fatalf("unexpected payment: %+v", p)
	}
}

func TestGetPaymentNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments")).WithArgs(int64(42)).WillReturnError(sql.ErrNoRows)

	if _, err := s.GetPayment(context.Background(), 42); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestLookupsTreatOutOfRangeIDAsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	outOfRange := &pq.Error{Code: "22003", Message: "value \"9999999999\" is out of range for type integer"}

	mock.ExpectQuery(regexp.QuoteMeta("FROM membership_plans")).
		WithArgs(int64(9999999999)).
		WillReturnError(outOfRange)
	mock.ExpectQuery(regexp.QuoteMeta("FROM payments")).
		WithArgs(int64(9999999999)).
		WillReturnError(outOfRange)

	if _, err := s.GetPlan(context.Background(), 9999999999); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
	if _, err := s.GetPayment(context.Background(), 9999999999); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetPaymentOtherDriverErrorIsNotNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payments")).
		WithArgs(int64(5)).
		WillReturnError(&pq.Error{Code: "57P01", Message: "terminating connection"})

	_, err := s.GetPayment(context.Background(), 5)
	if err == nil || errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected a wrapped driver error, got %v", err)
	}
}
