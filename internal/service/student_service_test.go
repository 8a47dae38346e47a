package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
	appErrors "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/errors"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/export"
)

type mockStudentRepo struct {
	students map[string]models.Student
	nextID   int
}

func (m *mockStudentRepo) store() map[string]models.Student {
	if m.students == nil {
		m.students = make(map[string]models.Student)
	}
	return m.students
}

func (m *mockStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	var out []models.Student
	for _, s := range m.students {
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(s.FirstName), needle) &&
				!strings.Contains(strings.ToLower(s.LastName), needle) &&
				!strings.Contains(s.PhoneNumber, filter.Search) &&
				!strings.Contains(s.CIN, filter.Search) {
				continue
			}
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) ExistsByPhone(ctx context.Context, phone string, excludeID string) (bool, error) {
	for _, s := range m.students {
		if s.PhoneNumber == phone && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) ExistsByCIN(ctx context.Context, cin string, excludeID string) (bool, error) {
	for _, s := range m.students {
		if s.CIN == cin && s.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		m.nextID++
		student.ID = fmt.Sprintf("student-%d", m.nextID)
	}
	m.store()[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Update(ctx context.Context, student *models.Student) error {
	m.store()[student.ID] = *student
	return nil
}

func (m *mockStudentRepo) Delete(ctx context.Context, id string) error {
	delete(m.students, id)
	return nil
}

type mockSweeper struct {
	calls []string
}

func (m *mockSweeper) AutoComplete(ctx context.Context, studentID string) error {
	m.calls = append(m.calls, studentID)
	return nil
}

func newStudentServiceForTest(repo *mockStudentRepo, sweeper *mockSweeper) *StudentService {
	return NewStudentService(repo, sweeper, export.NewCSVExporter(), export.NewPDFExporter(), nil, nil, decimal.NewFromInt(25))
}

func validCreateStudentRequest() CreateStudentRequest {
	return CreateStudentRequest{
		FirstName:   "Amine",
		LastName:    "Ben Salah",
		PhoneNumber: "22123456",
		CIN:         "09876543",
		DateOfBirth: time.Date(2000, 5, 14, 0, 0, 0, 0, time.UTC),
	}
}

func TestStudentCreateAppliesDefaults(t *testing.T) {
	repo := &mockStudentRepo{}
	svc := newStudentServiceForTest(repo, &mockSweeper{})

	student, err := svc.Create(context.Background(), validCreateStudentRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StudentStatusActive, student.Status)
	assert.Equal(t, models.LicenseTypeB, student.LicenseType)
	assert.True(t, decimal.NewFromInt(25).Equal(student.PricePerHour))
}

func TestStudentCreateDuplicatePhone(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", PhoneNumber: "22123456", CIN: "11111111"},
	}}
	svc := newStudentServiceForTest(repo, &mockSweeper{})

	_, err := svc.Create(context.Background(), validCreateStudentRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentCreateDuplicateCIN(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", PhoneNumber: "99999999", CIN: "09876543"},
	}}
	svc := newStudentServiceForTest(repo, &mockSweeper{})

	_, err := svc.Create(context.Background(), validCreateStudentRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentListSweepsAllStudents(t *testing.T) {
	sweeper := &mockSweeper{}
	svc := newStudentServiceForTest(&mockStudentRepo{}, sweeper)

	_, err := svc.List(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, []string{""}, sweeper.calls)
}

func TestStudentGetSweepsOwnLessons(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"s1": {ID: "s1"}}}
	sweeper := &mockSweeper{}
	svc := newStudentServiceForTest(repo, sweeper)

	_, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, sweeper.calls)
}

func TestStudentGetStatsRemainingMayGoNegative(t *testing.T) {
	student := models.Student{
		ID:                    "s1",
		TotalLessonsCompleted: 5,
		TotalLessonsPaid:      3,
		TotalAmountPaid:       decimal.NewFromInt(75),
		TotalAmountDue:        decimal.NewFromInt(50),
		Status:                models.StudentStatusActive,
	}
	repo := &mockStudentRepo{students: map[string]models.Student{"s1": student}}
	svc := newStudentServiceForTest(repo, &mockSweeper{})

	stats, err := svc.GetStats(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, -2, stats.LessonsRemaining)
	assert.Equal(t, 5, stats.TotalLessons)
}

func TestStudentUpdateResubmittingOwnPhoneIsNotConflict(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", PhoneNumber: "22123456", CIN: "09876543"},
	}}
	svc := newStudentServiceForTest(repo, &mockSweeper{})

	phone := "22123456"
	_, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{PhoneNumber: &phone})
	require.NoError(t, err)
}

func TestStudentUpdateConflictingPhone(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{
		"s1": {ID: "s1", PhoneNumber: "22123456"},
		"s2": {ID: "s2", PhoneNumber: "33123456"},
	}}
	svc := newStudentServiceForTest(repo, &mockSweeper{})

	phone := "33123456"
	_, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{PhoneNumber: &phone})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestStudentUpdateCanOverwriteAggregates(t *testing.T) {
	repo := &mockStudentRepo{students: map[string]models.Student{"s1": {ID: "s1"}}}
	svc := newStudentServiceForTest(repo, &mockSweeper{})

	completed := 7
	paid := decimal.NewFromInt(100)
	student, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{
		TotalLessonsCompleted: &completed,
		TotalAmountPaid:       &paid,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, student.TotalLessonsCompleted)
	assert.True(t, decimal.NewFromInt(100).Equal(student.TotalAmountPaid))
}

func TestStudentDeleteUnknown(t *testing.T) {
	svc := newStudentServiceForTest(&mockStudentRepo{}, &mockSweeper{})

	err := svc.Delete(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentExportCSV(t *testing.T) {
	student := models.Student{
		ID: "s1", FirstName: "Amine", LastName: "Ben Salah",
		PhoneNumber: "22123456", CIN: "09876543", LicenseType: models.LicenseTypeB,
		PricePerHour: decimal.NewFromInt(25), Status: models.StudentStatusActive,
	}
	repo := &mockStudentRepo{students: map[string]models.Student{"s1": student}}
	svc := newStudentServiceForTest(repo, &mockSweeper{})

	data, err := svc.ExportCSV(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "First Name")
	assert.Contains(t, content, "Amine")
	assert.Contains(t, content, "25.00")
}

func TestStudentExportPDF(t *testing.T) {
	student := models.Student{
		ID: "s1", FirstName: "Amine", LastName: "Ben Salah",
		PhoneNumber: "22123456", CIN: "09876543", LicenseType: models.LicenseTypeB,
		PricePerHour: decimal.NewFromInt(25), Status: models.StudentStatusActive,
	}
	repo := &mockStudentRepo{students: map[string]models.Student{"s1": student}}
	svc := newStudentServiceForTest(repo, &mockSweeper{})

	data, err := svc.ExportPDF(context.Background(), models.StudentFilter{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))
}
