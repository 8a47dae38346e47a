package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
)

type mockAggregateStudentStore struct {
	students         map[string]models.Student
	completionWrites []completionWrite
	paymentWrites    []paymentWrite
}

type completionWrite struct {
	id               string
	lessonsCompleted int
	amountDue        decimal.Decimal
}

type paymentWrite struct {
	id          string
	amountPaid  decimal.Decimal
	lessonsPaid int
	amountDue   decimal.Decimal
}

func (m *mockAggregateStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAggregateStudentStore) UpdateCompletionAggregates(ctx context.Context, id string, lessonsCompleted int, amountDue decimal.Decimal) error {
	m.completionWrites = append(m.completionWrites, completionWrite{id, lessonsCompleted, amountDue})
	if s, ok := m.students[id]; ok {
		s.TotalLessonsCompleted = lessonsCompleted
		s.TotalAmountDue = amountDue
		m.students[id] = s
	}
	return nil
}

func (m *mockAggregateStudentStore) UpdatePaymentAggregates(ctx context.Context, id string, amountPaid decimal.Decimal, lessonsPaid int, amountDue decimal.Decimal) error {
	m.paymentWrites = append(m.paymentWrites, paymentWrite{id, amountPaid, lessonsPaid, amountDue})
	if s, ok := m.students[id]; ok {
		s.TotalAmountPaid = amountPaid
		s.TotalLessonsPaid = lessonsPaid
		s.TotalAmountDue = amountDue
		m.students[id] = s
	}
	return nil
}

type mockLessonCounter struct {
	counts map[string]int
}

func (m *mockLessonCounter) CountByStudentAndStatus(ctx context.Context, studentID string, status models.LessonStatus) (int, error) {
	if status != models.LessonStatusCompleted {
		return 0, nil
	}
	return m.counts[studentID], nil
}

type mockPaymentAggregator struct {
	aggregates map[string]models.PaymentAggregate
}

func (m *mockPaymentAggregator) AggregateCompletedByStudent(ctx context.Context, studentID string) (*models.PaymentAggregate, error) {
	agg := m.aggregates[studentID]
	return &agg, nil
}

func newTestStudent(id string, rate int64) models.Student {
	return models.Student{
		ID:           id,
		FirstName:    "Amine",
		LastName:     "Ben Salah",
		PricePerHour: decimal.NewFromInt(rate),
		Status:       models.StudentStatusActive,
	}
}

func TestRecomputeCompletionStatsChargesCompletedLessons(t *testing.T) {
	students := &mockAggregateStudentStore{students: map[string]models.Student{
		"s1": newTestStudent("s1", 30),
	}}
	lessons := &mockLessonCounter{counts: map[string]int{"s1": 3}}
	svc := NewAggregateService(students, lessons, &mockPaymentAggregator{}, nil)

	require.NoError(t, svc.RecomputeCompletionStats(context.Background(), "s1"))

	require.Len(t, students.completionWrites, 1)
	write := students.completionWrites[0]
	assert.Equal(t, 3, write.lessonsCompleted)
	assert.True(t, decimal.NewFromInt(90).Equal(write.amountDue), "due should be 3 lessons at 30")
}

func TestRecomputeCompletionStatsMissingStudentIsNoOp(t *testing.T) {
	students := &mockAggregateStudentStore{students: map[string]models.Student{}}
	svc := NewAggregateService(students, &mockLessonCounter{}, &mockPaymentAggregator{}, nil)

	require.NoError(t, svc.RecomputeCompletionStats(context.Background(), "ghost"))
	assert.Empty(t, students.completionWrites)
}

func TestRecomputeCompletionStatsIdempotent(t *testing.T) {
	students := &mockAggregateStudentStore{students: map[string]models.Student{
		"s1": newTestStudent("s1", 25),
	}}
	lessons := &mockLessonCounter{counts: map[string]int{"s1": 5}}
	svc := NewAggregateService(students, lessons, &mockPaymentAggregator{}, nil)

	require.NoError(t, svc.RecomputeCompletionStats(context.Background(), "s1"))
	require.NoError(t, svc.RecomputeCompletionStats(context.Background(), "s1"))

	require.Len(t, students.completionWrites, 2)
	assert.Equal(t, students.completionWrites[0].lessonsCompleted, students.completionWrites[1].lessonsCompleted)
	assert.True(t, students.completionWrites[0].amountDue.Equal(students.completionWrites[1].amountDue))
}

func TestRecomputePaymentStatsDerivesLessonsPaidByFloor(t *testing.T) {
	student := newTestStudent("s1", 10)
	student.TotalLessonsCompleted = 4
	students := &mockAggregateStudentStore{students: map[string]models.Student{"s1": student}}
	payments := &mockPaymentAggregator{aggregates: map[string]models.PaymentAggregate{
		"s1": {TotalAmount: decimal.RequireFromString("35.00")},
	}}
	svc := NewAggregateService(students, &mockLessonCounter{}, payments, nil)

	require.NoError(t, svc.RecomputePaymentStats(context.Background(), "s1"))

	require.Len(t, students.paymentWrites, 1)
	write := students.paymentWrites[0]
	assert.True(t, decimal.RequireFromString("35.00").Equal(write.amountPaid))
	assert.Equal(t, 3, write.lessonsPaid, "35/10 floors to 3")
	assert.True(t, decimal.NewFromInt(10).Equal(write.amountDue), "one unpaid lesson at 10")
}

func TestRecomputePaymentStatsZeroRateMeansZeroLessonsPaid(t *testing.T) {
	student := newTestStudent("s1", 0)
	student.TotalLessonsCompleted = 2
	students := &mockAggregateStudentStore{students: map[string]models.Student{"s1": student}}
	payments := &mockPaymentAggregator{aggregates: map[string]models.PaymentAggregate{
		"s1": {TotalAmount: decimal.NewFromInt(100)},
	}}
	svc := NewAggregateService(students, &mockLessonCounter{}, payments, nil)

	require.NoError(t, svc.RecomputePaymentStats(context.Background(), "s1"))

	require.Len(t, students.paymentWrites, 1)
	write := students.paymentWrites[0]
	assert.Equal(t, 0, write.lessonsPaid)
	assert.True(t, write.amountDue.IsZero())
}

func TestRecomputePaymentStatsClampsUnpaidLessons(t *testing.T) {
	student := newTestStudent("s1", 20)
	student.TotalLessonsCompleted = 1
	students := &mockAggregateStudentStore{students: map[string]models.Student{"s1": student}}
	payments := &mockPaymentAggregator{aggregates: map[string]models.PaymentAggregate{
		"s1": {TotalAmount: decimal.NewFromInt(200)},
	}}
	svc := NewAggregateService(students, &mockLessonCounter{}, payments, nil)

	require.NoError(t, svc.RecomputePaymentStats(context.Background(), "s1"))

	require.Len(t, students.paymentWrites, 1)
	write := students.paymentWrites[0]
	assert.Equal(t, 10, write.lessonsPaid)
	assert.True(t, write.amountDue.IsZero(), "overpaid students owe nothing")
}

func TestRecomputePaymentStatsMissingStudentIsNoOp(t *testing.T) {
	students := &mockAggregateStudentStore{students: map[string]models.Student{}}
	svc := NewAggregateService(students, &mockLessonCounter{}, &mockPaymentAggregator{}, nil)

	require.NoError(t, svc.RecomputePaymentStats(context.Background(), "ghost"))
	assert.Empty(t, students.paymentWrites)
}
