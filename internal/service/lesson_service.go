package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
	appErrors "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/errors"
)

type lessonRepository interface {
	Create(ctx context.Context, lesson *models.Lesson) error
	FindByID(ctx context.Context, id string) (*models.LessonDetail, error)
	List(ctx context.Context) ([]models.LessonDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.LessonDetail, error)
	ListByDateRange(ctx context.Context, start, end time.Time) ([]models.LessonDetail, error)
	Update(ctx context.Context, lesson *models.Lesson) error
	Delete(ctx context.Context, id string) error
	ExistsScheduledAt(ctx context.Context, at time.Time, excludeID string) (bool, error)
	FindOverdueScheduled(ctx context.Context, now time.Time, studentID string) ([]models.Lesson, error)
	MarkCompleted(ctx context.Context, ids []string) error
}

type lessonStudentLookup interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type completionRecomputer interface {
	RecomputeCompletionStats(ctx context.Context, studentID string) error
}

// statsInvalidator drops cached dashboard aggregates after a write.
type statsInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// CreateLessonRequest holds payload for scheduling lessons.
type CreateLessonRequest struct {
	StudentID       string           `json:"student_id" validate:"required"`
	ScheduledAt     time.Time        `json:"scheduled_at" validate:"required"`
	DurationMinutes int              `json:"duration_minutes"`
	LessonType      string           `json:"lesson_type" validate:"omitempty,oneof=theoretical practical exam_prep"`
	Notes           string           `json:"notes"`
	LessonPrice     *decimal.Decimal `json:"lesson_price"`
}

// UpdateLessonRequest holds the partial payload for modifying lessons.
type UpdateLessonRequest struct {
	ScheduledAt     *time.Time       `json:"scheduled_at"`
	DurationMinutes *int             `json:"duration_minutes"`
	Status          *string          `json:"status" validate:"omitempty,oneof=scheduled completed cancelled no_show"`
	LessonType      *string          `json:"lesson_type" validate:"omitempty,oneof=theoretical practical exam_prep"`
	Notes           *string          `json:"notes"`
	SkillsAssessed  *string          `json:"skills_assessed"`
	Rating          *int             `json:"rating" validate:"omitempty,min=1,max=5"`
	LessonPrice     *decimal.Decimal `json:"lesson_price"`
	IsPaid          *bool            `json:"is_paid"`
}

// CompleteLessonRequest carries the optional debrief attached on completion.
type CompleteLessonRequest struct {
	Rating         *int   `json:"rating" validate:"omitempty,min=1,max=5"`
	Notes          string `json:"notes"`
	SkillsAssessed string `json:"skills_assessed"`
}

// LessonService handles lesson scheduling, completion and the overdue sweep.
type LessonService struct {
	repo         lessonRepository
	students     lessonStudentLookup
	aggregates   completionRecomputer
	stats        statsInvalidator
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
	defaultPrice decimal.Decimal
}

// NewLessonService constructs the lesson service.
func NewLessonService(repo lessonRepository, students lessonStudentLookup, aggregates completionRecomputer, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger, defaultPrice decimal.Decimal) *LessonService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultPrice.IsZero() {
		defaultPrice = decimal.NewFromInt(25)
	}
	return &LessonService{
		repo:         repo,
		students:     students,
		aggregates:   aggregates,
		stats:        stats,
		validator:    validate,
		logger:       logger,
		now:          time.Now,
		defaultPrice: defaultPrice,
	}
}

func (s *LessonService) invalidateStats(ctx context.Context) {
	if s.stats != nil {
		s.stats.InvalidateCache(ctx)
	}
}

// Create schedules a new lesson. The exact timestamp must not already hold
// another scheduled lesson.
func (s *LessonService) Create(ctx context.Context, req CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if req.LessonPrice != nil && req.LessonPrice.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson price cannot be negative")
	}
	if err := validateDuration(req.DurationMinutes); err != nil {
		return nil, err
	}

	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	occupied, err := s.repo.ExistsScheduledAt(ctx, req.ScheduledAt, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule slot")
	}
	if occupied {
		return nil, appErrors.Clone(appErrors.ErrConflict, "another lesson is already scheduled at this time")
	}

	lesson := &models.Lesson{
		StudentID:       req.StudentID,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Status:          models.LessonStatusScheduled,
		LessonType:      models.LessonType(req.LessonType),
		Notes:           req.Notes,
		LessonPrice:     s.defaultPrice,
	}
	if lesson.DurationMinutes == 0 {
		lesson.DurationMinutes = 60
	}
	if lesson.LessonType == "" {
		lesson.LessonType = models.LessonTypePractical
	}
	if req.LessonPrice != nil {
		lesson.LessonPrice = *req.LessonPrice
	}

	if err := s.repo.Create(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	s.invalidateStats(ctx)
	return lesson, nil
}

// Get returns a lesson with its owner's name.
func (s *LessonService) Get(ctx context.Context, id string) (*models.LessonDetail, error) {
	lesson, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	return lesson, nil
}

// List returns all lessons, most recently scheduled first.
func (s *LessonService) List(ctx context.Context) ([]models.LessonDetail, error) {
	lessons, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// ListByStudent returns one student's lessons.
func (s *LessonService) ListByStudent(ctx context.Context, studentID string) ([]models.LessonDetail, error) {
	lessons, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// ListByDateRange returns lessons inside [start, end].
func (s *LessonService) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.LessonDetail, error) {
	lessons, err := s.repo.ListByDateRange(ctx, start, end)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// ListToday returns lessons scheduled for the current day, earliest first.
func (s *LessonService) ListToday(ctx context.Context) ([]models.LessonDetail, error) {
	start, end := dayBounds(s.now())
	return s.ListByDateRange(ctx, start, end)
}

// Update modifies a lesson. Moving it onto a timestamp occupied by another
// scheduled lesson is rejected; its own unchanged slot is fine. A transition
// into completed triggers the completion recompute.
func (s *LessonService) Update(ctx context.Context, id string, req UpdateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if req.LessonPrice != nil && req.LessonPrice.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lesson price cannot be negative")
	}
	if req.DurationMinutes != nil {
		if err := validateDuration(*req.DurationMinutes); err != nil {
			return nil, err
		}
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	lesson := detail.Lesson
	previousStatus := lesson.Status

	if req.ScheduledAt != nil {
		occupied, err := s.repo.ExistsScheduledAt(ctx, *req.ScheduledAt, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check schedule slot")
		}
		if occupied {
			return nil, appErrors.Clone(appErrors.ErrConflict, "another lesson is already scheduled at this time")
		}
		lesson.ScheduledAt = *req.ScheduledAt
	}
	if req.DurationMinutes != nil {
		lesson.DurationMinutes = *req.DurationMinutes
	}
	if req.Status != nil {
		lesson.Status = models.LessonStatus(*req.Status)
	}
	if req.LessonType != nil {
		lesson.LessonType = models.LessonType(*req.LessonType)
	}
	if req.Notes != nil {
		lesson.Notes = *req.Notes
	}
	if req.SkillsAssessed != nil {
		lesson.SkillsAssessed = *req.SkillsAssessed
	}
	if req.Rating != nil {
		lesson.Rating = req.Rating
	}
	if req.LessonPrice != nil {
		lesson.LessonPrice = *req.LessonPrice
	}
	if req.IsPaid != nil {
		lesson.IsPaid = *req.IsPaid
	}

	if err := s.repo.Update(ctx, &lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}

	if lesson.Status == models.LessonStatusCompleted && previousStatus != models.LessonStatusCompleted {
		if err := s.aggregates.RecomputeCompletionStats(ctx, lesson.StudentID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute completion stats")
		}
	}
	s.invalidateStats(ctx)

	return &lesson, nil
}

// Complete marks a lesson as completed, attaching the optional debrief, and
// recomputes the owner's completion aggregates.
func (s *LessonService) Complete(ctx context.Context, id string, req CompleteLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	lesson := detail.Lesson

	lesson.Status = models.LessonStatusCompleted
	if req.Rating != nil {
		lesson.Rating = req.Rating
	}
	if req.Notes != "" {
		lesson.Notes = req.Notes
	}
	if req.SkillsAssessed != "" {
		lesson.SkillsAssessed = req.SkillsAssessed
	}

	if err := s.repo.Update(ctx, &lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update lesson")
	}
	if err := s.aggregates.RecomputeCompletionStats(ctx, lesson.StudentID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute completion stats")
	}
	s.invalidateStats(ctx)

	return &lesson, nil
}

// Delete removes a lesson. Deleting does not touch the owner's aggregates;
// only a later recompute trigger will fold the removal in.
func (s *LessonService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete lesson")
	}
	s.invalidateStats(ctx)
	return nil
}

// AutoComplete flips every scheduled lesson whose time has passed to
// completed, then recomputes completion aggregates once per affected student.
// An empty studentID sweeps all students. When nothing is overdue, neither
// the lesson rows nor the aggregate maintainer are touched.
func (s *LessonService) AutoComplete(ctx context.Context, studentID string) error {
	overdue, err := s.repo.FindOverdueScheduled(ctx, s.now(), studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find overdue lessons")
	}
	if len(overdue) == 0 {
		return nil
	}

	ids := make([]string, 0, len(overdue))
	affected := make(map[string]struct{}, len(overdue))
	for _, lesson := range overdue {
		ids = append(ids, lesson.ID)
		affected[lesson.StudentID] = struct{}{}
	}

	if err := s.repo.MarkCompleted(ctx, ids); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete overdue lessons")
	}

	for id := range affected {
		if err := s.aggregates.RecomputeCompletionStats(ctx, id); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to recompute completion stats")
		}
	}

	s.invalidateStats(ctx)
	s.logger.Info("overdue lessons auto-completed",
		zap.Int("lessons", len(ids)),
		zap.Int("students", len(affected)))
	return nil
}

// validateDuration enforces the lesson length bounds; zero means "use the
// default" and is filled in later.
func validateDuration(minutes int) error {
	if minutes == 0 {
		return nil
	}
	if minutes < models.MinLessonDurationMinutes || minutes > models.MaxLessonDurationMinutes {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duration must be between %d and %d minutes",
			models.MinLessonDurationMinutes, models.MaxLessonDurationMinutes))
	}
	return nil
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := start.Add(24*time.Hour - time.Nanosecond)
	return start, end
}
