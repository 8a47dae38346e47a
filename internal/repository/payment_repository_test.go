package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
)

func paymentDetailRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "amount", "payment_method", "payment_date", "lessons_count",
		"description", "receipt_number", "status", "created_at", "updated_at", "student_name",
	})
}

func TestPaymentRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	payment := &models.Payment{
		StudentID:     "s1",
		Amount:        decimal.NewFromInt(50),
		PaymentMethod: models.PaymentMethodCash,
		PaymentDate:   time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC),
		LessonsCount:  2,
		ReceiptNumber: "REC-1-s1",
		Status:        models.PaymentStatusCompleted,
	}
	require.NoError(t, repo.Create(context.Background(), payment))
	require.NotEmpty(t, payment.ID)

	rows := paymentDetailRows().AddRow(payment.ID, "s1", "50", "cash", payment.PaymentDate, 2,
		"", "REC-1-s1", "completed", time.Now(), time.Now(), "Amine Ben Salah")
	mock.ExpectQuery("JOIN students s ON s\\.id = p\\.student_id WHERE p\\.id").
		WithArgs(payment.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), payment.ID)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(50).Equal(found.Amount))
	require.Equal(t, "Amine Ben Salah", found.StudentName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryAggregateCompletedByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(amount), 0) AS total_amount")).
		WithArgs("s1", models.PaymentStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"total_amount", "lessons_count"}).AddRow("75.50", 3))

	agg, err := repo.AggregateCompletedByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("75.50").Equal(agg.TotalAmount))
	require.Equal(t, 3, agg.LessonsCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryAggregateEmptyIsZero(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("COALESCE(SUM(amount), 0) AS total_amount")).
		WithArgs("s1", models.PaymentStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"total_amount", "lessons_count"}).AddRow("0", 0))

	agg, err := repo.AggregateCompletedByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.True(t, agg.TotalAmount.IsZero())
	require.Equal(t, 0, agg.LessonsCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryStats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewPaymentRepository(db)
	today := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("total_payments").
		WithArgs(today, models.PaymentStatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"total_payments", "total_amount", "today_payments", "today_amount"}).
			AddRow(20, "900.00", 2, "75.00"))

	stats, err := repo.Stats(context.Background(), today)
	require.NoError(t, err)
	require.Equal(t, 20, stats.TotalPayments)
	require.True(t, decimal.RequireFromString("900.00").Equal(stats.TotalAmount))
	require.Equal(t, 2, stats.TodayPayments)
	require.NoError(t, mock.ExpectationsWereMet())
}
