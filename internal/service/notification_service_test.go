package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
)

type mockNotificationRepo struct {
	notifications map[string]models.Notification
	nextID        int
}

func (m *mockNotificationRepo) store() map[string]models.Notification {
	if m.notifications == nil {
		m.notifications = make(map[string]models.Notification)
	}
	return m.notifications
}

func (m *mockNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		m.nextID++
		notification.ID = fmt.Sprintf("notif-%d", m.nextID)
	}
	m.store()[notification.ID] = *notification
	return nil
}

func (m *mockNotificationRepo) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	if n, ok := m.notifications[id]; ok {
		return &n, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockNotificationRepo) List(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range m.notifications {
		out = append(out, n)
	}
	return out, nil
}

func (m *mockNotificationRepo) FindDueUnsent(ctx context.Context, now time.Time) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range m.notifications {
		if !n.IsSent && !n.ScheduledAt.After(now) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockNotificationRepo) ExistsForLesson(ctx context.Context, lessonID string) (bool, error) {
	for _, n := range m.notifications {
		if n.LessonID != nil && *n.LessonID == lessonID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockNotificationRepo) Update(ctx context.Context, notification *models.Notification) error {
	m.store()[notification.ID] = *notification
	return nil
}

func (m *mockNotificationRepo) MarkSent(ctx context.Context, id string) error {
	if n, ok := m.notifications[id]; ok {
		n.IsSent = true
		m.notifications[id] = n
	}
	return nil
}

func (m *mockNotificationRepo) Delete(ctx context.Context, id string) error {
	delete(m.notifications, id)
	return nil
}

type mockTodayLessons struct {
	lessons []models.LessonDetail
}

func (m *mockTodayLessons) ListToday(ctx context.Context) ([]models.LessonDetail, error) {
	return m.lessons, nil
}

func todayLesson(id, student string, at time.Time) models.LessonDetail {
	return models.LessonDetail{
		Lesson: models.Lesson{
			ID: id, StudentID: student, ScheduledAt: at,
			DurationMinutes: 60, LessonType: models.LessonTypePractical,
			Status: models.LessonStatusScheduled,
		},
		StudentName: "Amine Ben Salah",
	}
}

func TestGenerateTodayRemindersCreatesOnePerLesson(t *testing.T) {
	at := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	repo := &mockNotificationRepo{}
	lessons := &mockTodayLessons{lessons: []models.LessonDetail{
		todayLesson("l1", "s1", at),
		todayLesson("l2", "s2", at.Add(time.Hour)),
	}}
	svc := NewNotificationService(repo, lessons, nil, nil)

	created, err := svc.GenerateTodayReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, created)
	assert.Len(t, repo.notifications, 2)

	for _, n := range repo.notifications {
		require.NotNil(t, n.LessonID)
		switch *n.LessonID {
		case "l1":
			assert.True(t, n.ScheduledAt.Equal(at.Add(-ReminderLeadTime)))
		case "l2":
			assert.True(t, n.ScheduledAt.Equal(at.Add(time.Hour-ReminderLeadTime)))
		default:
			t.Fatalf("unexpected lesson id %s", *n.LessonID)
		}
		assert.Contains(t, n.Message, "Amine Ben Salah")
	}
}

func TestGenerateTodayRemindersIsIdempotent(t *testing.T) {
	at := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	repo := &mockNotificationRepo{}
	lessons := &mockTodayLessons{lessons: []models.LessonDetail{todayLesson("l1", "s1", at)}}
	svc := NewNotificationService(repo, lessons, nil, nil)

	first, err := svc.GenerateTodayReminders(context.Background())
	require.NoError(t, err)
	second, err := svc.GenerateTodayReminders(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Len(t, repo.notifications, 1)
}

func TestListPendingReturnsDueUnsentOnly(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	repo := &mockNotificationRepo{notifications: map[string]models.Notification{
		"due":    {ID: "due", ScheduledAt: now.Add(-time.Minute)},
		"sent":   {ID: "sent", ScheduledAt: now.Add(-time.Hour), IsSent: true},
		"future": {ID: "future", ScheduledAt: now.Add(time.Hour)},
	}}
	svc := NewNotificationService(repo, &mockTodayLessons{}, nil, nil)
	svc.now = func() time.Time { return now }

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "due", pending[0].ID)
}

func TestListPendingGeneratesTodayRemindersFirst(t *testing.T) {
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	repo := &mockNotificationRepo{}
	lessons := &mockTodayLessons{lessons: []models.LessonDetail{
		todayLesson("l1", "s1", now.Add(15*time.Minute)),
	}}
	svc := NewNotificationService(repo, lessons, nil, nil)
	svc.now = func() time.Time { return now }

	pending, err := svc.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.NotNil(t, pending[0].LessonID)
	assert.Equal(t, "l1", *pending[0].LessonID)
}

func TestMarkSentFlagsNotification(t *testing.T) {
	repo := &mockNotificationRepo{notifications: map[string]models.Notification{
		"n1": {ID: "n1", ScheduledAt: time.Now()},
	}}
	svc := NewNotificationService(repo, &mockTodayLessons{}, nil, nil)

	require.NoError(t, svc.MarkSent(context.Background(), "n1"))
	assert.True(t, repo.notifications["n1"].IsSent)
}
