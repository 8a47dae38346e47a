package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StudentStatus tracks where a learner is in their training.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusActive    StudentStatus = "active"
	StudentStatusCompleted StudentStatus = "completed"
	StudentStatusSuspended StudentStatus = "suspended"
)

// LicenseType enumerates the Tunisian licence categories the school trains for.
const (
	LicenseTypeA = "A"
	LicenseTypeB = "B"
	LicenseTypeC = "C"
	LicenseTypeD = "D"
)

// Student represents a learner registered with the driving school.
//
// The four aggregate columns (TotalLessonsCompleted, TotalLessonsPaid,
// TotalAmountPaid, TotalAmountDue) are derived from lesson and payment rows
// and are normally rewritten only by the aggregate maintainer. The update
// endpoint may still overwrite them directly; the most recent writer wins.
type Student struct {
	ID                    string          `db:"id" json:"id"`
	FirstName             string          `db:"first_name" json:"first_name"`
	LastName              string          `db:"last_name" json:"last_name"`
	PhoneNumber           string          `db:"phone_number" json:"phone_number"`
	CIN                   string          `db:"cin" json:"cin"`
	DateOfBirth           time.Time       `db:"date_of_birth" json:"date_of_birth"`
	Address               string          `db:"address" json:"address"`
	LicenseType           string          `db:"license_type" json:"license_type"`
	PricePerHour          decimal.Decimal `db:"price_per_hour" json:"price_per_hour"`
	TotalLessonsCompleted int             `db:"total_lessons_completed" json:"total_lessons_completed"`
	TotalLessonsPaid      int             `db:"total_lessons_paid" json:"total_lessons_paid"`
	TotalAmountPaid       decimal.Decimal `db:"total_amount_paid" json:"total_amount_paid"`
	TotalAmountDue        decimal.Decimal `db:"total_amount_due" json:"total_amount_due"`
	Status                StudentStatus   `db:"status" json:"status"`
	Notes                 string          `db:"notes" json:"notes"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name for display.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search string
	Status StudentStatus
}

// StudentStats is the cached-counter projection of a student's standing.
// LessonsRemaining is intentionally unclamped and may go negative when more
// lessons were completed than paid for.
type StudentStats struct {
	TotalLessons     int             `json:"total_lessons"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalDue         decimal.Decimal `json:"total_due"`
	LessonsRemaining int             `json:"lessons_remaining"`
	Status           StudentStatus   `json:"status"`
}

// StudentBalance is the reconciled read-only balance view built from payment
// rows rather than the persisted aggregate columns. LessonsRemaining and
// AmountDue never go below zero.
type StudentBalance struct {
	StudentID        string          `json:"student_id"`
	StudentName      string          `json:"student_name"`
	LessonsPaid      int             `json:"lessons_paid"`
	LessonsCompleted int             `json:"lessons_completed"`
	LessonsRemaining int             `json:"lessons_remaining"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	AmountDue        decimal.Decimal `json:"amount_due"`
}

// Pagination carries list metadata in response envelopes.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
