package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/service"
	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/export"
)

type stubStudentRepo struct {
	students map[string]models.Student
}

func (s *stubStudentRepo) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	var out []models.Student
	for _, st := range s.students {
		out = append(out, st)
	}
	return out, nil
}

func (s *stubStudentRepo) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if st, ok := s.students[id]; ok {
		return &st, nil
	}
	return nil, sql.ErrNoRows
}

func (s *stubStudentRepo) ExistsByPhone(ctx context.Context, phone, excludeID string) (bool, error) {
	return false, nil
}

func (s *stubStudentRepo) ExistsByCIN(ctx context.Context, cin, excludeID string) (bool, error) {
	return false, nil
}

func (s *stubStudentRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "new-student"
	}
	if s.students == nil {
		s.students = make(map[string]models.Student)
	}
	s.students[student.ID] = *student
	return nil
}

func (s *stubStudentRepo) Update(ctx context.Context, student *models.Student) error {
	s.students[student.ID] = *student
	return nil
}

func (s *stubStudentRepo) Delete(ctx context.Context, id string) error {
	delete(s.students, id)
	return nil
}

type stubSweeper struct{}

func (s *stubSweeper) AutoComplete(ctx context.Context, studentID string) error { return nil }

func newStudentHandlerForTest(repo *stubStudentRepo) *StudentHandler {
	svc := service.NewStudentService(repo, &stubSweeper{}, export.NewCSVExporter(), export.NewPDFExporter(), nil, nil, decimal.NewFromInt(25))
	return NewStudentHandler(svc, nil)
}

func TestStudentHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentHandlerForTest(&stubStudentRepo{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/students/ghost", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestStudentHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newStudentHandlerForTest(&stubStudentRepo{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/students", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStudentHandlerCreateSucceeds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &stubStudentRepo{}
	handler := newStudentHandlerForTest(repo)

	payload := service.CreateStudentRequest{
		FirstName:   "Amine",
		LastName:    "Ben Salah",
		PhoneNumber: "22123456",
		CIN:         "09876543",
		DateOfBirth: time.Date(2000, 5, 14, 0, 0, 0, 0, time.UTC),
	}
	body, _ := json.Marshal(payload)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/students", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, repo.students, "new-student")
}
