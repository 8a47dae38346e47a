package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func studentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "first_name", "last_name", "phone_number", "cin", "date_of_birth", "address", "license_type",
		"price_per_hour", "total_lessons_completed", "total_lessons_paid", "total_amount_paid", "total_amount_due",
		"status", "notes", "created_at", "updated_at",
	})
}

func TestStudentRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	student := &models.Student{
		FirstName:    "Amine",
		LastName:     "Ben Salah",
		PhoneNumber:  "22123456",
		CIN:          "09876543",
		DateOfBirth:  time.Date(2000, 5, 14, 0, 0, 0, 0, time.UTC),
		LicenseType:  models.LicenseTypeB,
		PricePerHour: decimal.NewFromInt(25),
		Status:       models.StudentStatusActive,
	}
	require.NoError(t, repo.Create(context.Background(), student))
	require.NotEmpty(t, student.ID)

	rows := studentRows().AddRow(student.ID, "Amine", "Ben Salah", "22123456", "09876543",
		student.DateOfBirth, "", "B", "25", 0, 0, "0", "0", "active", "", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, first_name, last_name")).
		WithArgs(student.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), student.ID)
	require.NoError(t, err)
	require.Equal(t, "Amine", found.FirstName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryListWithFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	rows := studentRows().AddRow("s1", "Amine", "Ben Salah", "22123456", "09876543",
		time.Now(), "", "B", "25", 0, 0, "0", "0", "active", "", time.Now(), time.Now())
	mock.ExpectQuery("FROM students WHERE").
		WithArgs("%amine%", models.StudentStatusActive).
		WillReturnRows(rows)

	students, err := repo.List(context.Background(), models.StudentFilter{Search: "Amine", Status: models.StudentStatusActive})
	require.NoError(t, err)
	require.Len(t, students, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByPhone(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE phone_number = $1")).
		WithArgs("22123456").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsByPhone(context.Background(), "22123456", "")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM students WHERE phone_number = $1 AND id <> $2")).
		WithArgs("22123456", "s1").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsByPhone(context.Background(), "22123456", "s1")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateCompletionAggregates(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET total_lessons_completed = $2, total_amount_due = $3")).
		WithArgs("s1", 3, decimal.NewFromInt(90), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateCompletionAggregates(context.Background(), "s1", 3, decimal.NewFromInt(90))
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) AS total_students")).
		WithArgs(models.StudentStatusActive).
		WillReturnRows(sqlmock.NewRows([]string{"total_students", "active_students"}).AddRow(12, 9))

	counts, err := repo.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12, counts.TotalStudents)
	require.Equal(t, 9, counts.ActiveStudents)
	require.NoError(t, mock.ExpectationsWereMet())
}
