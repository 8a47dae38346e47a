package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
	appErrors "github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/pkg/errors"
)

type mockLessonRepo struct {
	lessons map[string]models.Lesson
	nextID  int
}

func (m *mockLessonRepo) store() map[string]models.Lesson {
	if m.lessons == nil {
		m.lessons = make(map[string]models.Lesson)
	}
	return m.lessons
}

func (m *mockLessonRepo) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		m.nextID++
		lesson.ID = fmt.Sprintf("lesson-%d", m.nextID)
	}
	m.store()[lesson.ID] = *lesson
	return nil
}

func (m *mockLessonRepo) FindByID(ctx context.Context, id string) (*models.LessonDetail, error) {
	if l, ok := m.lessons[id]; ok {
		return &models.LessonDetail{Lesson: l}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockLessonRepo) List(ctx context.Context) ([]models.LessonDetail, error) {
	var out []models.LessonDetail
	for _, l := range m.lessons {
		out = append(out, models.LessonDetail{Lesson: l})
	}
	return out, nil
}

func (m *mockLessonRepo) ListByStudent(ctx context.Context, studentID string) ([]models.LessonDetail, error) {
	var out []models.LessonDetail
	for _, l := range m.lessons {
		if l.StudentID == studentID {
			out = append(out, models.LessonDetail{Lesson: l})
		}
	}
	return out, nil
}

func (m *mockLessonRepo) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.LessonDetail, error) {
	var out []models.LessonDetail
	for _, l := range m.lessons {
		if !l.ScheduledAt.Before(start) && !l.ScheduledAt.After(end) {
			out = append(out, models.LessonDetail{Lesson: l})
		}
	}
	return out, nil
}

func (m *mockLessonRepo) Update(ctx context.Context, lesson *models.Lesson) error {
	m.store()[lesson.ID] = *lesson
	return nil
}

func (m *mockLessonRepo) Delete(ctx context.Context, id string) error {
	delete(m.lessons, id)
	return nil
}

func (m *mockLessonRepo) ExistsScheduledAt(ctx context.Context, at time.Time, excludeID string) (bool, error) {
	for _, l := range m.lessons {
		if l.ID != excludeID && l.Status == models.LessonStatusScheduled && l.ScheduledAt.Equal(at) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockLessonRepo) FindOverdueScheduled(ctx context.Context, now time.Time, studentID string) ([]models.Lesson, error) {
	var out []models.Lesson
	for _, l := range m.lessons {
		if l.Status != models.LessonStatusScheduled || l.ScheduledAt.After(now) {
			continue
		}
		if studentID != "" && l.StudentID != studentID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (m *mockLessonRepo) MarkCompleted(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if l, ok := m.lessons[id]; ok {
			l.Status = models.LessonStatusCompleted
			m.lessons[id] = l
		}
	}
	return nil
}

type mockStudentLookup struct {
	students map[string]models.Student
}

func (m *mockStudentLookup) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

type mockRecomputer struct {
	completionCalls []string
	paymentCalls    []string
}

func (m *mockRecomputer) RecomputeCompletionStats(ctx context.Context, studentID string) error {
	m.completionCalls = append(m.completionCalls, studentID)
	return nil
}

func (m *mockRecomputer) RecomputePaymentStats(ctx context.Context, studentID string) error {
	m.paymentCalls = append(m.paymentCalls, studentID)
	return nil
}

type mockInvalidator struct {
	calls int
}

func (m *mockInvalidator) InvalidateCache(ctx context.Context) {
	m.calls++
}

func newLessonServiceForTest(repo *mockLessonRepo, students *mockStudentLookup, rec *mockRecomputer) *LessonService {
	return NewLessonService(repo, students, rec, nil, nil, nil, decimal.NewFromInt(25))
}

func TestLessonCreateAppliesDefaults(t *testing.T) {
	repo := &mockLessonRepo{}
	students := &mockStudentLookup{students: map[string]models.Student{"s1": newTestStudent("s1", 25)}}
	svc := newLessonServiceForTest(repo, students, &mockRecomputer{})

	lesson, err := svc.Create(context.Background(), CreateLessonRequest{
		StudentID:   "s1",
		ScheduledAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 60, lesson.DurationMinutes)
	assert.Equal(t, models.LessonTypePractical, lesson.LessonType)
	assert.Equal(t, models.LessonStatusScheduled, lesson.Status)
	assert.True(t, decimal.NewFromInt(25).Equal(lesson.LessonPrice))
}

func TestLessonCreateRejectsDurationOutOfRange(t *testing.T) {
	students := &mockStudentLookup{students: map[string]models.Student{"s1": newTestStudent("s1", 25)}}
	svc := newLessonServiceForTest(&mockLessonRepo{}, students, &mockRecomputer{})

	for _, minutes := range []int{20, 200} {
		_, err := svc.Create(context.Background(), CreateLessonRequest{
			StudentID:       "s1",
			ScheduledAt:     time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
			DurationMinutes: minutes,
		})
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}
}

func TestLessonUpdateRejectsDurationOutOfRange(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: time.Now(), Status: models.LessonStatusScheduled},
	}}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, &mockRecomputer{})

	minutes := 15
	_, err := svc.Update(context.Background(), "l1", UpdateLessonRequest{DurationMinutes: &minutes})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLessonWritesInvalidateDashboardCache(t *testing.T) {
	repo := &mockLessonRepo{}
	students := &mockStudentLookup{students: map[string]models.Student{"s1": newTestStudent("s1", 25)}}
	invalidator := &mockInvalidator{}
	svc := NewLessonService(repo, students, &mockRecomputer{}, invalidator, nil, nil, decimal.NewFromInt(25))

	lesson, err := svc.Create(context.Background(), CreateLessonRequest{
		StudentID:   "s1",
		ScheduledAt: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, invalidator.calls)

	_, err = svc.Complete(context.Background(), lesson.ID, CompleteLessonRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, invalidator.calls)

	require.NoError(t, svc.Delete(context.Background(), lesson.ID))
	assert.Equal(t, 3, invalidator.calls)
}

func TestLessonCreateUnknownStudent(t *testing.T) {
	svc := newLessonServiceForTest(&mockLessonRepo{}, &mockStudentLookup{}, &mockRecomputer{})

	_, err := svc.Create(context.Background(), CreateLessonRequest{
		StudentID:   "ghost",
		ScheduledAt: time.Now(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLessonCreateRejectsOccupiedSlot(t *testing.T) {
	slot := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: slot, Status: models.LessonStatusScheduled},
	}}
	students := &mockStudentLookup{students: map[string]models.Student{
		"s1": newTestStudent("s1", 25),
		"s2": newTestStudent("s2", 25),
	}}
	svc := newLessonServiceForTest(repo, students, &mockRecomputer{})

	_, err := svc.Create(context.Background(), CreateLessonRequest{StudentID: "s2", ScheduledAt: slot})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLessonUpdateAllowsKeepingOwnSlot(t *testing.T) {
	slot := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: slot, Status: models.LessonStatusScheduled},
	}}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, &mockRecomputer{})

	notes := "same time, new notes"
	lesson, err := svc.Update(context.Background(), "l1", UpdateLessonRequest{ScheduledAt: &slot, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, lesson.Notes)
}

func TestLessonUpdateCompletionTransitionRecomputes(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: time.Now(), Status: models.LessonStatusScheduled},
	}}
	rec := &mockRecomputer{}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, rec)

	status := string(models.LessonStatusCompleted)
	_, err := svc.Update(context.Background(), "l1", UpdateLessonRequest{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, rec.completionCalls)
}

func TestLessonUpdateToCancelledDoesNotRecompute(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: time.Now(), Status: models.LessonStatusScheduled},
	}}
	rec := &mockRecomputer{}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, rec)

	status := string(models.LessonStatusCancelled)
	_, err := svc.Update(context.Background(), "l1", UpdateLessonRequest{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, rec.completionCalls)
}

func TestLessonUpdateAlreadyCompletedDoesNotRecomputeAgain(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: time.Now(), Status: models.LessonStatusCompleted},
	}}
	rec := &mockRecomputer{}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, rec)

	status := string(models.LessonStatusCompleted)
	_, err := svc.Update(context.Background(), "l1", UpdateLessonRequest{Status: &status})
	require.NoError(t, err)
	assert.Empty(t, rec.completionCalls)
}

func TestLessonCompleteRecomputes(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: time.Now(), Status: models.LessonStatusScheduled},
	}}
	rec := &mockRecomputer{}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, rec)

	rating := 4
	lesson, err := svc.Complete(context.Background(), "l1", CompleteLessonRequest{Rating: &rating, Notes: "parallel parking"})
	require.NoError(t, err)
	assert.Equal(t, models.LessonStatusCompleted, lesson.Status)
	assert.Equal(t, "parallel parking", lesson.Notes)
	assert.Equal(t, []string{"s1"}, rec.completionCalls)
}

func TestLessonDeleteDoesNotRecompute(t *testing.T) {
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: time.Now(), Status: models.LessonStatusCompleted},
	}}
	rec := &mockRecomputer{}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, rec)

	require.NoError(t, svc.Delete(context.Background(), "l1"))
	assert.Empty(t, rec.completionCalls)
	assert.NotContains(t, repo.lessons, "l1")
}

func TestAutoCompleteSweepsOnlyOverdueScheduled(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"past-scheduled":   {ID: "past-scheduled", StudentID: "s1", ScheduledAt: now.Add(-2 * time.Hour), Status: models.LessonStatusScheduled},
		"past-cancelled":   {ID: "past-cancelled", StudentID: "s1", ScheduledAt: now.Add(-3 * time.Hour), Status: models.LessonStatusCancelled},
		"future-scheduled": {ID: "future-scheduled", StudentID: "s2", ScheduledAt: now.Add(2 * time.Hour), Status: models.LessonStatusScheduled},
	}}
	rec := &mockRecomputer{}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, rec)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.AutoComplete(context.Background(), ""))

	assert.Equal(t, models.LessonStatusCompleted, repo.lessons["past-scheduled"].Status)
	assert.Equal(t, models.LessonStatusCancelled, repo.lessons["past-cancelled"].Status)
	assert.Equal(t, models.LessonStatusScheduled, repo.lessons["future-scheduled"].Status)
	assert.Equal(t, []string{"s1"}, rec.completionCalls)
}

func TestAutoCompleteRecomputesOncePerStudent(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: now.Add(-2 * time.Hour), Status: models.LessonStatusScheduled},
		"l2": {ID: "l2", StudentID: "s1", ScheduledAt: now.Add(-1 * time.Hour), Status: models.LessonStatusScheduled},
	}}
	rec := &mockRecomputer{}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, rec)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.AutoComplete(context.Background(), ""))
	assert.Equal(t, []string{"s1"}, rec.completionCalls)
}

func TestAutoCompleteNoOverdueIsNoOp(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: now.Add(time.Hour), Status: models.LessonStatusScheduled},
	}}
	rec := &mockRecomputer{}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, rec)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.AutoComplete(context.Background(), ""))
	assert.Empty(t, rec.completionCalls)
}

func TestAutoCompleteScopedToStudent(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	repo := &mockLessonRepo{lessons: map[string]models.Lesson{
		"l1": {ID: "l1", StudentID: "s1", ScheduledAt: now.Add(-time.Hour), Status: models.LessonStatusScheduled},
		"l2": {ID: "l2", StudentID: "s2", ScheduledAt: now.Add(-time.Hour), Status: models.LessonStatusScheduled},
	}}
	rec := &mockRecomputer{}
	svc := newLessonServiceForTest(repo, &mockStudentLookup{}, rec)
	svc.now = func() time.Time { return now }

	require.NoError(t, svc.AutoComplete(context.Background(), "s1"))
	assert.Equal(t, models.LessonStatusCompleted, repo.lessons["l1"].Status)
	assert.Equal(t, models.LessonStatusScheduled, repo.lessons["l2"].Status)
	assert.Equal(t, []string{"s1"}, rec.completionCalls)
}
