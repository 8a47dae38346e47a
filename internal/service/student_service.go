package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
	appErrors "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/errors"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByPhone(ctx context.Context, phone string, excludeID string) (bool, error)
	ExistsByCIN(ctx context.Context, cin string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// lessonSweeper is the overdue-lesson sweep, run lazily before student reads
// so the counters a caller sees already reflect lessons whose time has passed.
type lessonSweeper interface {
	AutoComplete(ctx context.Context, studentID string) error
}

// CreateStudentRequest is the payload for registering a student.
type CreateStudentRequest struct {
	FirstName    string           `json:"first_name" validate:"required"`
	LastName     string           `json:"last_name" validate:"required"`
	PhoneNumber  string           `json:"phone_number" validate:"required"`
	CIN          string           `json:"cin" validate:"required"`
	DateOfBirth  time.Time        `json:"date_of_birth" validate:"required"`
	Address      string           `json:"address"`
	LicenseType  string           `json:"license_type" validate:"omitempty,oneof=A B C D"`
	PricePerHour *decimal.Decimal `json:"price_per_hour"`
	Notes        string           `json:"notes"`
}

// UpdateStudentRequest is the partial payload for modifying a student. The
// aggregate counters are deliberately writable here; the next recompute will
// overwrite manual values.
type UpdateStudentRequest struct {
	FirstName             *string          `json:"first_name"`
	LastName              *string          `json:"last_name"`
	PhoneNumber           *string          `json:"phone_number"`
	CIN                   *string          `json:"cin"`
	DateOfBirth           *time.Time       `json:"date_of_birth"`
	Address               *string          `json:"address"`
	LicenseType           *string          `json:"license_type" validate:"omitempty,oneof=A B C D"`
	PricePerHour          *decimal.Decimal `json:"price_per_hour"`
	TotalLessonsCompleted *int             `json:"total_lessons_completed" validate:"omitempty,min=0"`
	TotalLessonsPaid      *int             `json:"total_lessons_paid" validate:"omitempty,min=0"`
	TotalAmountPaid       *decimal.Decimal `json:"total_amount_paid"`
	TotalAmountDue        *decimal.Decimal `json:"total_amount_due"`
	Status                *string          `json:"status" validate:"omitempty,oneof=active completed suspended"`
	Notes                 *string          `json:"notes"`
}

// StudentService manages the student roster.
type StudentService struct {
	repo         studentRepository
	sweeper      lessonSweeper
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	validator    *validator.Validate
	logger       *zap.Logger
	defaultPrice decimal.Decimal
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, sweeper lessonSweeper, csv *export.CSVExporter, pdf *export.PDFExporter, validate *validator.Validate, logger *zap.Logger, defaultPrice decimal.Decimal) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:         repo,
		sweeper:      sweeper,
		csv:          csv,
		pdf:          pdf,
		validator:    validate,
		logger:       logger,
		defaultPrice: defaultPrice,
	}
}

// Create registers a student. Phone number and CIN must be unique.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	if taken, err := s.repo.ExistsByPhone(ctx, req.PhoneNumber, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check phone number")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "phone number already registered")
	}
	if taken, err := s.repo.ExistsByCIN(ctx, req.CIN, ""); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check cin")
	} else if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cin already registered")
	}

	price := s.defaultPrice
	if req.PricePerHour != nil {
		if req.PricePerHour.IsNegative() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "price per hour cannot be negative")
		}
		price = *req.PricePerHour
	}
	licenseType := req.LicenseType
	if licenseType == "" {
		licenseType = models.LicenseTypeB
	}

	student := &models.Student{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PhoneNumber:  req.PhoneNumber,
		CIN:          req.CIN,
		DateOfBirth:  req.DateOfBirth,
		Address:      req.Address,
		LicenseType:  licenseType,
		PricePerHour: price,
		Status:       models.StudentStatusActive,
		Notes:        req.Notes,
	}

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student registered", zap.String("student_id", student.ID))
	return student, nil
}

// List returns students matching the filter. The overdue-lesson sweep runs
// first so returned counters are current; a sweep failure is logged but does
// not block the read.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	s.sweep(ctx, "")
	students, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

// Get returns one student, sweeping their overdue lessons first.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	s.sweep(ctx, id)
	return s.find(ctx, id)
}

// GetStats returns the cached-counter projection for a student. Unlike the
// balance view, LessonsRemaining here may go negative.
func (s *StudentService) GetStats(ctx context.Context, id string) (*models.StudentStats, error) {
	s.sweep(ctx, id)
	student, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.StudentStats{
		TotalLessons:     student.TotalLessonsCompleted,
		TotalPaid:        student.TotalAmountPaid,
		TotalDue:         student.TotalAmountDue,
		LessonsRemaining: student.TotalLessonsPaid - student.TotalLessonsCompleted,
		Status:           student.Status,
	}, nil
}

// Update applies a partial update. Uniqueness checks exclude the student
// itself so re-submitting the current phone or CIN is not a conflict.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if req.PricePerHour != nil && req.PricePerHour.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "price per hour cannot be negative")
	}

	student, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.PhoneNumber != nil && *req.PhoneNumber != student.PhoneNumber {
		if taken, err := s.repo.ExistsByPhone(ctx, *req.PhoneNumber, id); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check phone number")
		} else if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "phone number already registered")
		}
	}
	if req.CIN != nil && *req.CIN != student.CIN {
		if taken, err := s.repo.ExistsByCIN(ctx, *req.CIN, id); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check cin")
		} else if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "cin already registered")
		}
	}

	if req.FirstName != nil {
		student.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		student.LastName = *req.LastName
	}
	if req.PhoneNumber != nil {
		student.PhoneNumber = *req.PhoneNumber
	}
	if req.CIN != nil {
		student.CIN = *req.CIN
	}
	if req.DateOfBirth != nil {
		student.DateOfBirth = *req.DateOfBirth
	}
	if req.Address != nil {
		student.Address = *req.Address
	}
	if req.LicenseType != nil {
		student.LicenseType = *req.LicenseType
	}
	if req.PricePerHour != nil {
		student.PricePerHour = *req.PricePerHour
	}
	if req.TotalLessonsCompleted != nil {
		student.TotalLessonsCompleted = *req.TotalLessonsCompleted
	}
	if req.TotalLessonsPaid != nil {
		student.TotalLessonsPaid = *req.TotalLessonsPaid
	}
	if req.TotalAmountPaid != nil {
		student.TotalAmountPaid = *req.TotalAmountPaid
	}
	if req.TotalAmountDue != nil {
		student.TotalAmountDue = *req.TotalAmountDue
	}
	if req.Status != nil {
		student.Status = models.StudentStatus(*req.Status)
	}
	if req.Notes != nil {
		student.Notes = *req.Notes
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student; lessons, payments and notifications cascade.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.find(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}

// ExportCSV renders the filtered roster as a CSV document.
func (s *StudentService) ExportCSV(ctx context.Context, filter models.StudentFilter) ([]byte, error) {
	students, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	data, err := s.csv.Render(rosterDataset(students))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return data, nil
}

// ExportPDF renders the filtered roster as a tabular PDF document.
func (s *StudentService) ExportPDF(ctx context.Context, filter models.StudentFilter) ([]byte, error) {
	students, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	data, err := s.pdf.Render(rosterDataset(students), "Student Roster")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return data, nil
}

func rosterDataset(students []models.Student) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"First Name", "Last Name", "Phone", "CIN", "License", "Price Per Hour",
			"Lessons Completed", "Lessons Paid", "Amount Paid", "Amount Due", "Status"},
	}
	for _, st := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"First Name":        st.FirstName,
			"Last Name":         st.LastName,
			"Phone":             st.PhoneNumber,
			"CIN":               st.CIN,
			"License":           st.LicenseType,
			"Price Per Hour":    st.PricePerHour.StringFixed(2),
			"Lessons Completed": strconv.Itoa(st.TotalLessonsCompleted),
			"Lessons Paid":      strconv.Itoa(st.TotalLessonsPaid),
			"Amount Paid":       st.TotalAmountPaid.StringFixed(2),
			"Amount Due":        st.TotalAmountDue.StringFixed(2),
			"Status":            string(st.Status),
		})
	}
	return dataset
}

func (s *StudentService) find(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

func (s *StudentService) sweep(ctx context.Context, studentID string) {
	if s.sweeper == nil {
		return
	}
	if err := s.sweeper.AutoComplete(ctx, studentID); err != nil {
		s.logger.Warn("overdue lesson sweep failed", zap.Error(err))
	}
}
