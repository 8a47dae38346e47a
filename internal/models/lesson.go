package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LessonStatus is the lifecycle state of a lesson.
type LessonStatus string

// scheduled → {completed, cancelled, no_show}; all other states are terminal.
const (
	LessonStatusScheduled LessonStatus = "scheduled"
	LessonStatusCompleted LessonStatus = "completed"
	LessonStatusCancelled LessonStatus = "cancelled"
	LessonStatusNoShow    LessonStatus = "no_show"
)

// LessonType distinguishes the kind of instruction delivered.
type LessonType string

// Possible lesson types.
const (
	LessonTypeTheoretical LessonType = "theoretical"
	LessonTypePractical   LessonType = "practical"
	LessonTypeExamPrep    LessonType = "exam_prep"
)

// Lesson bounds enforced on create and update.
const (
	MinLessonDurationMinutes = 30
	MaxLessonDurationMinutes = 180
)

// Lesson is a single driving session belonging to one student.
type Lesson struct {
	ID              string          `db:"id" json:"id"`
	StudentID       string          `db:"student_id" json:"student_id"`
	ScheduledAt     time.Time       `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes int             `db:"duration_minutes" json:"duration_minutes"`
	Status          LessonStatus    `db:"status" json:"status"`
	LessonType      LessonType      `db:"lesson_type" json:"lesson_type"`
	Notes           string          `db:"notes" json:"notes"`
	SkillsAssessed  string          `db:"skills_assessed" json:"skills_assessed"`
	Rating          *int            `db:"rating" json:"rating,omitempty"`
	LessonPrice     decimal.Decimal `db:"lesson_price" json:"lesson_price"`
	IsPaid          bool            `db:"is_paid" json:"is_paid"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// LessonDetail enriches a lesson with its owner's name for list views.
type LessonDetail struct {
	Lesson
	StudentName string `db:"student_name" json:"student_name"`
}

// LessonStats aggregates lesson counters for the dashboard.
type LessonStats struct {
	TodayLessons     int `json:"today_lessons"`
	TotalLessons     int `json:"total_lessons"`
	CompletedLessons int `json:"completed_lessons"`
	ScheduledLessons int `json:"scheduled_lessons"`
}
