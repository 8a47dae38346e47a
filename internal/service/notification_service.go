package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
	appErrors "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/errors"
)

type notificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context) ([]models.Notification, error)
	FindDueUnsent(ctx context.Context, now time.Time) ([]models.Notification, error)
	ExistsForLesson(ctx context.Context, lessonID string) (bool, error)
	Update(ctx context.Context, notification *models.Notification) error
	MarkSent(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type reminderLessonSource interface {
	ListToday(ctx context.Context) ([]models.LessonDetail, error)
}

// CreateNotificationRequest is the payload for a manual reminder.
type CreateNotificationRequest struct {
	Title       string    `json:"title" validate:"required"`
	Message     string    `json:"message" validate:"required"`
	ScheduledAt time.Time `json:"scheduled_at" validate:"required"`
	LessonID    *string   `json:"lesson_id"`
}

// UpdateNotificationRequest is the partial payload for modifying a reminder.
type UpdateNotificationRequest struct {
	Title       *string    `json:"title"`
	Message     *string    `json:"message"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	IsSent      *bool      `json:"is_sent"`
}

// ReminderLeadTime is how long before a lesson its reminder fires.
const ReminderLeadTime = 30 * time.Minute

// NotificationService manages lesson reminders.
type NotificationService struct {
	repo      notificationRepository
	lessons   reminderLessonSource
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotificationService constructs the notification service.
func NewNotificationService(repo notificationRepository, lessons reminderLessonSource, validate *validator.Validate, logger *zap.Logger) *NotificationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		repo:      repo,
		lessons:   lessons,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Create records a manual reminder.
func (s *NotificationService) Create(ctx context.Context, req CreateNotificationRequest) (*models.Notification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid notification payload")
	}

	notification := &models.Notification{
		Title:       req.Title,
		Message:     req.Message,
		ScheduledAt: req.ScheduledAt,
		LessonID:    req.LessonID,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create notification")
	}
	return notification, nil
}

// Get returns one notification.
func (s *NotificationService) Get(ctx context.Context, id string) (*models.Notification, error) {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	return notification, nil
}

// List returns all notifications, latest scheduled first.
func (s *NotificationService) List(ctx context.Context) ([]models.Notification, error) {
	notifications, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// ListPending generates today's lesson reminders, then returns unsent
// reminders whose scheduled time has passed. A generation failure is logged
// but does not block the read.
func (s *NotificationService) ListPending(ctx context.Context) ([]models.Notification, error) {
	if _, err := s.GenerateTodayReminders(ctx); err != nil {
		s.logger.Warn("reminder generation failed", zap.Error(err))
	}
	notifications, err := s.repo.FindDueUnsent(ctx, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending notifications")
	}
	return notifications, nil
}

// Update applies a partial update to a reminder.
func (s *NotificationService) Update(ctx context.Context, id string, req UpdateNotificationRequest) (*models.Notification, error) {
	notification, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		notification.Title = *req.Title
	}
	if req.Message != nil {
		notification.Message = *req.Message
	}
	if req.ScheduledAt != nil {
		notification.ScheduledAt = *req.ScheduledAt
	}
	if req.IsSent != nil {
		notification.IsSent = *req.IsSent
	}

	if err := s.repo.Update(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notification")
	}
	return notification, nil
}

// MarkSent flags a reminder as delivered.
func (s *NotificationService) MarkSent(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.MarkSent(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification sent")
	}
	return nil
}

// Delete removes a reminder.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete notification")
	}
	return nil
}

// GenerateTodayReminders creates a reminder for each of today's lessons that
// does not already have one, firing ReminderLeadTime before the lesson.
// Re-running is idempotent: the per-lesson existence check skips covered ones.
func (s *NotificationService) GenerateTodayReminders(ctx context.Context) (int, error) {
	lessons, err := s.lessons.ListToday(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range lessons {
		lesson := &lessons[i]
		exists, err := s.repo.ExistsForLesson(ctx, lesson.ID)
		if err != nil {
			return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check lesson reminder")
		}
		if exists {
			continue
		}

		lessonID := lesson.ID
		notification := &models.Notification{
			Title: "Upcoming lesson",
			Message: fmt.Sprintf("Lesson with %s at %s (%d min, %s)",
				lesson.StudentName, lesson.ScheduledAt.Format("15:04"),
				lesson.DurationMinutes, lesson.LessonType),
			ScheduledAt: lesson.ScheduledAt.Add(-ReminderLeadTime),
			LessonID:    &lessonID,
		}
		if err := s.repo.Create(ctx, notification); err != nil {
			return created, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create reminder")
		}
		created++
	}

	if created > 0 {
		s.logger.Info("lesson reminders generated", zap.Int("count", created))
	}
	return created, nil
}
