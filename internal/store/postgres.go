package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/PortNumber53/membership-checkout/backend/internal/models"
)

const (
	plansTable    = "membership_plans"
	paymentsTable = "payments"
)

// PostgresStore provides database-backed access to plans and payments. Plans
// are seeded by the migrations; payment ids come from the BIGSERIAL sequence.
type PostgresStore struct {
	db *sql.DB
}

// pqNumericOutOfRange is raised when a lookup id does not fit the id column.
const pqNumericOutOfRange = pq.ErrorCode("22003")

// isMissingRow reports whether err means no row can match the lookup.
func isMissingRow(err error) bool {
	if errors.Is(err, sql.ErrNoRows) {
		return true
	}
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqNumericOutOfRange
}

// NewPostgresStore creates a PostgresStore using the provided sql.DB connection.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	return &PostgresStore{db: db}, nil
}

// ListPlans returns all membership plans ordered by id.
func (s *PostgresStore) ListPlans(ctx context.Context) ([]models.Plan, error) {
	query := fmt.Sprintf(`
SELECT id, name, type, price::text, description, validity_days, features
FROM %s
ORDER BY id ASC
`, plansTable)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", plansTable, err)
	}
	defer rows.Close()

	var plans []models.Plan
	for rows.Next() {
		var p models.Plan
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Type, &p.Price,
			&p.Description, &p.ValidityDays, pq.Array(&p.Features),
		); err != nil {
			return nil, fmt.Errorf("scan %s: %w", plansTable, err)
		}
		plans = append(plans, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", plansTable, err)
	}

	return plans, nil
}

// GetPlan returns the plan with the given id or ErrPlanNotFound.
func (s *PostgresStore) GetPlan(ctx context.Context, id int64) (*models.Plan, error) {
	query := fmt.Sprintf(`
SELECT id, name, type, price::text, description, validity_days, features
FROM %s
WHERE id = $1
`, plansTable)

	var p models.Plan
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Type, &p.Price,
		&p.Description, &p.ValidityDays, pq.Array(&p.Features),
	)
	if err != nil {
		if isMissingRow(err) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan by id: %w", err)
	}
	return &p, nil
}

// CreatePayment inserts a payment row and returns it with the id and
// timestamp assigned by the database.
func (s *PostgresStore) CreatePayment(ctx context.Context, fields models.PaymentFields, status models.PaymentStatus) (*models.Payment, error) {
	status, err := resolveStatus(status)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (user_id, plan_id, amount, cardholder_name, email, status)
VALUES (NULL, $1, $2, $3, $4, $5)
RETURNING id, amount::text, created_at
`, paymentsTable)

	p := models.Payment{
		PlanID:         fields.PlanID,
		CardholderName: fields.CardholderName,
		Email:          fields.Email,
		Status:         status,
	}

	if err := s.db.QueryRowContext(
		ctx,
		query,
		fields.PlanID,
		fields.Amount,
		fields.CardholderName,
		fields.Email,
		string(status),
	).Scan(&p.ID, &p.Amount, &p.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert %s: %w", paymentsTable, err)
	}

	return &p, nil
}

// GetPayment returns the payment with the given id or ErrPaymentNotFound.
func (s *PostgresStore) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	query := fmt.Sprintf(`
SELECT id, user_id, plan_id, amount::text, cardholder_name, email, status, created_at
FROM %s
WHERE id = $1
`, paymentsTable)

	var (
		p      models.Payment
		userID sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &userID, &p.PlanID, &p.Amount,
		&p.CardholderName, &p.Email, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if isMissingRow(err) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("get payment by id: %w", err)
	}
	if userID.Valid {
		p.UserID = &userID.Int64
	}
	return &p, nil
}

// Close closes the underlying database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
