package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
	appErrors "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/errors"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/export"
)

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.PaymentDetail, error)
	List(ctx context.Context) ([]models.PaymentDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]models.PaymentDetail, error)
	Update(ctx context.Context, payment *models.Payment) error
	Delete(ctx context.Context, id string) error
	AggregateCompletedByStudent(ctx context.Context, studentID string) (*models.PaymentAggregate, error)
}

type paymentStudentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type paymentRecomputer interface {
	RecomputePaymentStats(ctx context.Context, studentID string) error
}

// schoolNameSource resolves the configured school display name for receipts.
type schoolNameSource interface {
	SchoolName(ctx context.Context, fallback string) string
}

// CreatePaymentRequest holds payload for recording payments.
type CreatePaymentRequest struct {
	StudentID     string          `json:"student_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	PaymentMethod string          `json:"payment_method" validate:"required,oneof=cash card bank_transfer"`
	PaymentDate   time.Time       `json:"payment_date" validate:"required"`
	LessonsCount  int             `json:"lessons_count" validate:"omitempty,min=0"`
	Description   string          `json:"description"`
	ReceiptNumber string          `json:"receipt_number"`
	Status        string          `json:"status" validate:"omitempty,oneof=pending completed refunded"`
}

// UpdatePaymentRequest holds the partial payload for modifying payments.
type UpdatePaymentRequest struct {
	StudentID     *string          `json:"student_id"`
	Amount        *decimal.Decimal `json:"amount"`
	PaymentMethod *string          `json:"payment_method" validate:"omitempty,oneof=cash card bank_transfer"`
	PaymentDate   *time.Time       `json:"payment_date"`
	LessonsCount  *int             `json:"lessons_count" validate:"omitempty,min=0"`
	Description   *string          `json:"description"`
	ReceiptNumber *string          `json:"receipt_number"`
	Status        *string          `json:"status" validate:"omitempty,oneof=pending completed refunded"`
}

// PaymentService handles payment bookkeeping and the balance projection.
type PaymentService struct {
	repo       paymentRepository
	students   paymentStudentLookup
	aggregates paymentRecomputer
	exporter   *export.PDFExporter
	settings   schoolNameSource
	stats      statsInvalidator
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
	currency   string
}

// NewPaymentService constructs the payment service.
func NewPaymentService(repo paymentRepository, students paymentStudentLookup, aggregates paymentRecomputer, exporter *export.PDFExporter, settings schoolNameSource, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger, currency string) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{
		repo:       repo,
		students:   students,
		aggregates: aggregates,
		exporter:   exporter,
		settings:   settings,
		stats:      stats,
		validator:  validate,
		logger:     logger,
		now:        time.Now,
		currency:   currency,
	}
}

func (s *PaymentService) invalidateStats(ctx context.Context) {
	if s.stats != nil {
		s.stats.InvalidateCache(ctx)
	}
}

// Create records a payment and recomputes the owner's payment aggregates.
func (s *PaymentService) Create(ctx context.Context, req CreatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be greater than zero")
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	receipt := req.ReceiptNumber
	if receipt == "" {
		receipt = fmt.Sprintf("REC-%d-%s", s.now().UnixMilli(), req.StudentID)
	}
	status := models.PaymentStatus(req.Status)
	if status == "" {
		status = models.PaymentStatusCompleted
	}

	payment := &models.Payment{
		StudentID:     req.StudentID,
		Amount:        req.Amount,
		PaymentMethod: models.PaymentMethod(req.PaymentMethod),
		PaymentDate:   req.PaymentDate,
		LessonsCount:  req.LessonsCount,
		Description:   req.Description,
		ReceiptNumber: receipt,
		Status:        status,
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}

	if err := s.aggregates.RecomputePaymentStats(ctx, payment.StudentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute payment stats")
	}
	s.invalidateStats(ctx)

	return payment, nil
}

// Get returns a payment with its owner's name.
func (s *PaymentService) Get(ctx context.Context, id string) (*models.PaymentDetail, error) {
	payment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	return payment, nil
}

// List returns all payments, most recent payment date first.
func (s *PaymentService) List(ctx context.Context) ([]models.PaymentDetail, error) {
	payments, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// ListByStudent returns one student's payments.
func (s *PaymentService) ListByStudent(ctx context.Context, studentID string) ([]models.PaymentDetail, error) {
	payments, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// ListByDateRange returns payments dated inside [start, end].
func (s *PaymentService) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.PaymentDetail, error) {
	payments, err := s.repo.ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// Update modifies a payment and recomputes aggregates; when the payment moves
// between students, both the old and the new owner are recomputed.
func (s *PaymentService) Update(ctx context.Context, id string, req UpdatePaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "amount must be greater than zero")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	payment := detail.Payment
	originalStudentID := payment.StudentID

	if req.StudentID != nil {
		payment.StudentID = *req.StudentID
	}
	if req.Amount != nil {
		payment.Amount = *req.Amount
	}
	if req.PaymentMethod != nil {
		payment.PaymentMethod = models.PaymentMethod(*req.PaymentMethod)
	}
	if req.PaymentDate != nil {
		payment.PaymentDate = *req.PaymentDate
	}
	if req.LessonsCount != nil {
		payment.LessonsCount = *req.LessonsCount
	}
	if req.Description != nil {
		payment.Description = *req.Description
	}
	if req.ReceiptNumber != nil {
		payment.ReceiptNumber = *req.ReceiptNumber
	}
	if req.Status != nil {
		payment.Status = models.PaymentStatus(*req.Status)
	}

	if err := s.repo.Update(ctx, &payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
	}

	if payment.StudentID != originalStudentID {
		if err := s.aggregates.RecomputePaymentStats(ctx, originalStudentID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute payment stats")
		}
	}
	if err := s.aggregates.RecomputePaymentStats(ctx, payment.StudentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute payment stats")
	}
	s.invalidateStats(ctx)

	return &payment, nil
}

// Delete removes a payment and recomputes the former owner's aggregates.
func (s *PaymentService) Delete(ctx context.Context, id string) error {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete payment")
	}
	if err := s.aggregates.RecomputePaymentStats(ctx, detail.StudentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute payment stats")
	}
	s.invalidateStats(ctx)
	return nil
}

// CalculateBalance builds the reconciled balance view from completed payment
// rows and the cached completed-lesson counter. Remaining lessons and amount
// due are clamped at zero: an overpaid student never shows a negative figure.
func (s *PaymentService) CalculateBalance(ctx context.Context, studentID string) (*models.StudentBalance, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	agg, err := s.repo.AggregateCompletedByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate payments")
	}

	lessonsPaid := agg.LessonsCount
	lessonsCompleted := student.TotalLessonsCompleted

	lessonsRemaining := lessonsPaid - lessonsCompleted
	if lessonsRemaining < 0 {
		lessonsRemaining = 0
	}
	unpaidLessons := lessonsCompleted - lessonsPaid
	if unpaidLessons < 0 {
		unpaidLessons = 0
	}
	amountDue := student.PricePerHour.Mul(decimal.NewFromInt(int64(unpaidLessons)))

	return &models.StudentBalance{
		StudentID:        studentID,
		StudentName:      student.FullName(),
		LessonsPaid:      lessonsPaid,
		LessonsCompleted: lessonsCompleted,
		LessonsRemaining: lessonsRemaining,
		AmountPaid:       agg.TotalAmount,
		AmountDue:        amountDue,
	}, nil
}

// Receipt renders a payment receipt as a PDF document.
func (s *PaymentService) Receipt(ctx context.Context, id string) ([]byte, error) {
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	title := "Payment Receipt"
	if s.settings != nil {
		title = s.settings.SchoolName(ctx, title)
	}
	fields := []export.ReceiptField{
		{Label: "Receipt", Value: detail.ReceiptNumber},
		{Label: "Student", Value: detail.StudentName},
		{Label: "Date", Value: detail.PaymentDate.Format("2006-01-02")},
		{Label: "Amount", Value: detail.Amount.StringFixed(2) + " " + s.currency},
		{Label: "Method", Value: string(detail.PaymentMethod)},
		{Label: "Lessons", Value: strconv.Itoa(detail.LessonsCount)},
		{Label: "Status", Value: string(detail.Status)},
	}
	if detail.Description != "" {
		fields = append(fields, export.ReceiptField{Label: "Note", Value: detail.Description})
	}

	data, err := s.exporter.RenderReceipt(title, fields)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return data, nil
}
