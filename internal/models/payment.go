package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of a payment.
type PaymentStatus string

// Only completed payments count toward a student's totals.
const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentMethod enumerates accepted payment channels.
type PaymentMethod string

// Possible payment methods.
const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

// Payment records money received from a student. PaymentDate is a calendar
// date; the time portion is always midnight UTC.
type Payment struct {
	ID            string          `db:"id" json:"id"`
	StudentID     string          `db:"student_id" json:"student_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaymentMethod PaymentMethod   `db:"payment_method" json:"payment_method"`
	PaymentDate   time.Time       `db:"payment_date" json:"payment_date"`
	LessonsCount  int             `db:"lessons_count" json:"lessons_count"`
	Description   string          `db:"description" json:"description"`
	ReceiptNumber string          `db:"receipt_number" json:"receipt_number"`
	Status        PaymentStatus   `db:"status" json:"status"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches a payment with its owner's name for list views.
type PaymentDetail struct {
	Payment
	StudentName string `db:"student_name" json:"student_name"`
}

// PaymentAggregate is the completed-payment rollup for one student, used by
// the payment-side aggregate recompute and the balance projection.
type PaymentAggregate struct {
	TotalAmount  decimal.Decimal `db:"total_amount"`
	LessonsCount int             `db:"lessons_count"`
}

// PaymentStats aggregates payment counters for the dashboard.
type PaymentStats struct {
	TotalPayments int             `json:"total_payments"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	TodayPayments int             `json:"today_payments"`
	TodayAmount   decimal.Decimal `json:"today_amount"`
}
