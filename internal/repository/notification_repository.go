package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
)

// NotificationRepository manages persistence for lesson reminders.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

const notificationColumns = `id, title, message, scheduled_at, is_sent, lesson_id, created_at, updated_at`

// Create inserts a new notification record.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = now
	}
	notification.UpdatedAt = now
	const query = `INSERT INTO notifications (id, title, message, scheduled_at, is_sent, lesson_id, created_at, updated_at)
        VALUES (:id, :title, :message, :scheduled_at, :is_sent, :lesson_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// FindByID fetches a notification by ID.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications WHERE id = $1", notificationColumns)
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		return nil, err
	}
	return &notification, nil
}

// List returns all notifications, latest scheduled first.
func (r *NotificationRepository) List(ctx context.Context) ([]models.Notification, error) {
	query := fmt.Sprintf("SELECT %s FROM notifications ORDER BY scheduled_at DESC", notificationColumns)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// FindDueUnsent returns unsent notifications whose time has passed, oldest first.
func (r *NotificationRepository) FindDueUnsent(ctx context.Context, now time.Time) ([]models.Notification, error) {
	query := fmt.Sprintf(`SELECT %s FROM notifications WHERE is_sent = FALSE AND scheduled_at <= $1
        ORDER BY scheduled_at ASC`, notificationColumns)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, now); err != nil {
		return nil, fmt.Errorf("find due notifications: %w", err)
	}
	return notifications, nil
}

// ExistsForLesson reports whether a reminder already exists for the lesson.
func (r *NotificationRepository) ExistsForLesson(ctx context.Context, lessonID string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM notifications WHERE lesson_id = $1 LIMIT 1`, lessonID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check lesson notification: %w", err)
	}
	return true, nil
}

// Update modifies an existing notification.
func (r *NotificationRepository) Update(ctx context.Context, notification *models.Notification) error {
	notification.UpdatedAt = time.Now().UTC()
	const query = `UPDATE notifications SET title = :title, message = :message, scheduled_at = :scheduled_at,
        is_sent = :is_sent, lesson_id = :lesson_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	return nil
}

// MarkSent flags a notification as delivered.
func (r *NotificationRepository) MarkSent(ctx context.Context, id string) error {
	const query = `UPDATE notifications SET is_sent = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// Delete removes a notification.
func (r *NotificationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
