package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
)

// PaymentRepository manages persistence for payment records.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentDetailColumns = `p.id, p.student_id, p.amount, p.payment_method, p.payment_date, p.lessons_count,
        p.description, p.receipt_number, p.status, p.created_at, p.updated_at,
        s.first_name || ' ' || s.last_name AS student_name`

// Create inserts a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, student_id, amount, payment_method, payment_date, lessons_count,
        description, receipt_number, status, created_at, updated_at)
        VALUES (:id, :student_id, :amount, :payment_method, :payment_date, :lessons_count,
        :description, :receipt_number, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID fetches a payment with its owner's name.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.PaymentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p JOIN students s ON s.id = p.student_id WHERE p.id = $1`, paymentDetailColumns)
	var detail models.PaymentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns all payments, most recent payment date first.
func (r *PaymentRepository) List(ctx context.Context) ([]models.PaymentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p JOIN students s ON s.id = p.student_id ORDER BY p.payment_date DESC`, paymentDetailColumns)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// ListByStudent returns one student's payments, most recent first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p JOIN students s ON s.id = p.student_id
        WHERE p.student_id = $1 ORDER BY p.payment_date DESC`, paymentDetailColumns)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list payments by student: %w", err)
	}
	return payments, nil
}

// ListByDateRange returns payments dated inside [start, end], newest first.
func (r *PaymentRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.PaymentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments p JOIN students s ON s.id = p.student_id
        WHERE p.payment_date BETWEEN $1 AND $2 ORDER BY p.payment_date DESC`, paymentDetailColumns)
	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, start, end); err != nil {
		return nil, fmt.Errorf("list payments by date range: %w", err)
	}
	return payments, nil
}

// Update modifies an existing payment.
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	payment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE payments SET student_id = :student_id, amount = :amount, payment_method = :payment_method,
        payment_date = :payment_date, lessons_count = :lessons_count, description = :description,
        receipt_number = :receipt_number, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

// Delete removes a payment.
func (r *PaymentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete payment: %w", err)
	}
	return nil
}

// AggregateCompletedByStudent sums amount and covered lesson counts over one
// student's completed payments. Zero values when no rows match.
func (r *PaymentRepository) AggregateCompletedByStudent(ctx context.Context, studentID string) (*models.PaymentAggregate, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) AS total_amount, COALESCE(SUM(lessons_count), 0) AS lessons_count
        FROM payments WHERE student_id = $1 AND status = $2`
	var agg models.PaymentAggregate
	if err := r.db.GetContext(ctx, &agg, query, studentID, models.PaymentStatusCompleted); err != nil {
		return nil, fmt.Errorf("aggregate payments: %w", err)
	}
	return &agg, nil
}

// Stats aggregates completed-payment counters; today bounds the current day.
func (r *PaymentRepository) Stats(ctx context.Context, today time.Time) (*models.PaymentStats, error) {
	const query = `SELECT
        COUNT(*) AS total_payments,
        COALESCE(SUM(amount), 0) AS total_amount,
        COUNT(*) FILTER (WHERE payment_date = $1) AS today_payments,
        COALESCE(SUM(amount) FILTER (WHERE payment_date = $1), 0) AS today_amount
        FROM payments WHERE status = $2`
	var row struct {
		TotalPayments int             `db:"total_payments"`
		TotalAmount   decimal.Decimal `db:"total_amount"`
		TodayPayments int             `db:"today_payments"`
		TodayAmount   decimal.Decimal `db:"today_amount"`
	}
	if err := r.db.GetContext(ctx, &row, query, today, models.PaymentStatusCompleted); err != nil {
		return nil, fmt.Errorf("payment stats: %w", err)
	}
	return &models.PaymentStats{
		TotalPayments: row.TotalPayments,
		TotalAmount:   row.TotalAmount,
		TodayPayments: row.TodayPayments,
		TodayAmount:   row.TodayAmount,
	}, nil
}
