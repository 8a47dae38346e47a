package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = `id, first_name, last_name, phone_number, cin, date_of_birth, address, license_type,
        price_per_hour, total_lessons_completed, total_lessons_paid, total_amount_paid, total_amount_due,
        status, notes, created_at, updated_at`

// List returns students matching the provided filters, newest first.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Search != "" {
		idx := len(args) + 1
		conditions = append(conditions, fmt.Sprintf(
			"(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d OR phone_number LIKE $%d OR cin LIKE $%d)",
			idx, idx, idx, idx))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY created_at DESC",
		studentColumns, strings.Join(conditions, " AND "))

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID fetches a student by ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByPhone checks if a student with the given phone number exists,
// optionally excluding an ID.
func (r *StudentRepository) ExistsByPhone(ctx context.Context, phone string, excludeID string) (bool, error) {
	return r.exists(ctx, "phone_number", phone, excludeID)
}

// ExistsByCIN checks if a student with the given national ID exists,
// optionally excluding an ID.
func (r *StudentRepository) ExistsByCIN(ctx context.Context, cin string, excludeID string) (bool, error) {
	return r.exists(ctx, "cin", cin, excludeID)
}

func (r *StudentRepository) exists(ctx context.Context, column, value, excludeID string) (bool, error) {
	query := fmt.Sprintf("SELECT 1 FROM students WHERE %s = $1", column)
	args := []interface{}{value}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check %s: %w", column, err)
	}
	return true, nil
}

// Create inserts a new student record.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, first_name, last_name, phone_number, cin, date_of_birth, address, license_type,
        price_per_hour, total_lessons_completed, total_lessons_paid, total_amount_paid, total_amount_due, status, notes, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :phone_number, :cin, :date_of_birth, :address, :license_type,
        :price_per_hour, :total_lessons_completed, :total_lessons_paid, :total_amount_paid, :total_amount_due, :status, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update rewrites an existing student, aggregate columns included. Callers
// that only maintain derived fields use the dedicated aggregate updates.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET first_name = :first_name, last_name = :last_name, phone_number = :phone_number,
        cin = :cin, date_of_birth = :date_of_birth, address = :address, license_type = :license_type,
        price_per_hour = :price_per_hour, total_lessons_completed = :total_lessons_completed,
        total_lessons_paid = :total_lessons_paid, total_amount_paid = :total_amount_paid,
        total_amount_due = :total_amount_due, status = :status, notes = :notes, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// UpdateCompletionAggregates persists the lesson-side derived fields.
func (r *StudentRepository) UpdateCompletionAggregates(ctx context.Context, id string, lessonsCompleted int, amountDue decimal.Decimal) error {
	const query = `UPDATE students SET total_lessons_completed = $2, total_amount_due = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, lessonsCompleted, amountDue, time.Now().UTC()); err != nil {
		return fmt.Errorf("update completion aggregates: %w", err)
	}
	return nil
}

// UpdatePaymentAggregates persists the payment-side derived fields.
func (r *StudentRepository) UpdatePaymentAggregates(ctx context.Context, id string, amountPaid decimal.Decimal, lessonsPaid int, amountDue decimal.Decimal) error {
	const query = `UPDATE students SET total_amount_paid = $2, total_lessons_paid = $3, total_amount_due = $4, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, amountPaid, lessonsPaid, amountDue, time.Now().UTC()); err != nil {
		return fmt.Errorf("update payment aggregates: %w", err)
	}
	return nil
}

// Counts aggregates roster counters for the dashboard.
func (r *StudentRepository) Counts(ctx context.Context) (*models.StudentCounts, error) {
	const query = `SELECT COUNT(*) AS total_students,
        COUNT(*) FILTER (WHERE status = $1) AS active_students FROM students`
	var counts models.StudentCounts
	if err := r.db.GetContext(ctx, &counts, query, models.StudentStatusActive); err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}
	return &counts, nil
}

// Delete removes a student; lessons and payments cascade at the schema level.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
