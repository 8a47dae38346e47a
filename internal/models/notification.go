package models

import "time"

// Notification is a lesson reminder shown to the instructor.
type Notification struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Message     string    `db:"message" json:"message"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	IsSent      bool      `db:"is_sent" json:"is_sent"`
	LessonID    *string   `db:"lesson_id" json:"lesson_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
