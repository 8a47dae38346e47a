package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
)

type aggregateStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateCompletionAggregates(ctx context.Context, id string, lessonsCompleted int, amountDue decimal.Decimal) error
	UpdatePaymentAggregates(ctx context.Context, id string, amountPaid decimal.Decimal, lessonsPaid int, amountDue decimal.Decimal) error
}

type aggregateLessonStore interface {
	CountByStudentAndStatus(ctx context.Context, studentID string, status models.LessonStatus) (int, error)
}

type aggregatePaymentStore interface {
	AggregateCompletedByStudent(ctx context.Context, studentID string) (*models.PaymentAggregate, error)
}

// AggregateService keeps the derived student columns consistent with the
// underlying lesson and payment rows. It is a maintenance collaborator, not a
// user-facing command: a missing student is a silent no-op.
//
// The two recompute paths intentionally write total_amount_due with different
// formulas. The completion path charges every completed lesson and ignores
// payments; the payment path discounts lessons already covered by money
// received. Whichever ran last wins. Callers depend on each path's specific
// behaviour, so they stay separate operations.
type AggregateService struct {
	students aggregateStudentStore
	lessons  aggregateLessonStore
	payments aggregatePaymentStore
	logger   *zap.Logger
}

// NewAggregateService constructs the aggregate maintainer.
func NewAggregateService(students aggregateStudentStore, lessons aggregateLessonStore, payments aggregatePaymentStore, logger *zap.Logger) *AggregateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AggregateService{students: students, lessons: lessons, payments: payments, logger: logger}
}

// RecomputeCompletionStats recounts a student's completed lessons and
// recharges total_amount_due from that count alone. Invoked once per
// scheduled→completed transition, whether manual or via the overdue sweep.
// Idempotent: rerunning without intervening writes produces the same values.
func (s *AggregateService) RecomputeCompletionStats(ctx context.Context, studentID string) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("completion recompute skipped, student missing", zap.String("student_id", studentID))
			return nil
		}
		return fmt.Errorf("load student for completion recompute: %w", err)
	}

	completed, err := s.lessons.CountByStudentAndStatus(ctx, studentID, models.LessonStatusCompleted)
	if err != nil {
		return fmt.Errorf("count completed lessons: %w", err)
	}

	amountDue := student.PricePerHour.Mul(decimal.NewFromInt(int64(completed)))

	if err := s.students.UpdateCompletionAggregates(ctx, studentID, completed, amountDue); err != nil {
		return fmt.Errorf("persist completion aggregates: %w", err)
	}

	s.logger.Debug("completion stats recomputed",
		zap.String("student_id", studentID),
		zap.Int("lessons_completed", completed),
		zap.String("amount_due", amountDue.String()))
	return nil
}

// RecomputePaymentStats re-derives a student's payment totals from completed
// payment rows and rewrites total_amount_due for lessons not yet covered.
// Invoked after every payment create, update and delete; when a payment moves
// between students, for both owners. Idempotent.
func (s *AggregateService) RecomputePaymentStats(ctx context.Context, studentID string) error {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("payment recompute skipped, student missing", zap.String("student_id", studentID))
			return nil
		}
		return fmt.Errorf("load student for payment recompute: %w", err)
	}

	agg, err := s.payments.AggregateCompletedByStudent(ctx, studentID)
	if err != nil {
		return fmt.Errorf("aggregate completed payments: %w", err)
	}

	amountPaid := agg.TotalAmount

	// Lessons are equated to money at the student's hourly rate. A zero rate
	// would divide by zero, so it counts as zero lessons paid.
	lessonsPaid := 0
	if student.PricePerHour.IsPositive() {
		lessonsPaid = int(amountPaid.Div(student.PricePerHour).Floor().IntPart())
	}

	unpaidLessons := student.TotalLessonsCompleted - lessonsPaid
	if unpaidLessons < 0 {
		unpaidLessons = 0
	}
	amountDue := student.PricePerHour.Mul(decimal.NewFromInt(int64(unpaidLessons)))

	if err := s.students.UpdatePaymentAggregates(ctx, studentID, amountPaid, lessonsPaid, amountDue); err != nil {
		return fmt.Errorf("persist payment aggregates: %w", err)
	}

	s.logger.Debug("payment stats recomputed",
		zap.String("student_id", studentID),
		zap.String("amount_paid", amountPaid.String()),
		zap.Int("lessons_paid", lessonsPaid),
		zap.String("amount_due", amountDue.String()))
	return nil
}
