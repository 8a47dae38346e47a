package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ReguiguiMohamed/Driving-Instructor-Tunisia/internal/models"
)

// LessonRepository manages persistence for lesson records.
type LessonRepository struct {
	db *sqlx.DB
}

// NewLessonRepository constructs a LessonRepository.
func NewLessonRepository(db *sqlx.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

const lessonDetailColumns = `l.id, l.student_id, l.scheduled_at, l.duration_minutes, l.status, l.lesson_type,
        l.notes, l.skills_assessed, l.rating, l.lesson_price, l.is_paid, l.created_at, l.updated_at,
        s.first_name || ' ' || s.last_name AS student_name`

// Create inserts a new lesson record.
func (r *LessonRepository) Create(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
	const query = `INSERT INTO lessons (id, student_id, scheduled_at, duration_minutes, status, lesson_type,
        notes, skills_assessed, rating, lesson_price, is_paid, created_at, updated_at)
        VALUES (:id, :student_id, :scheduled_at, :duration_minutes, :status, :lesson_type,
        :notes, :skills_assessed, :rating, :lesson_price, :is_paid, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// FindByID fetches a lesson with its owner's name.
func (r *LessonRepository) FindByID(ctx context.Context, id string) (*models.LessonDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons l JOIN students s ON s.id = l.student_id WHERE l.id = $1`, lessonDetailColumns)
	var detail models.LessonDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns all lessons, most recently scheduled first.
func (r *LessonRepository) List(ctx context.Context) ([]models.LessonDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons l JOIN students s ON s.id = l.student_id ORDER BY l.scheduled_at DESC`, lessonDetailColumns)
	var lessons []models.LessonDetail
	if err := r.db.SelectContext(ctx, &lessons, query); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// ListByStudent returns one student's lessons, most recently scheduled first.
func (r *LessonRepository) ListByStudent(ctx context.Context, studentID string) ([]models.LessonDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons l JOIN students s ON s.id = l.student_id
        WHERE l.student_id = $1 ORDER BY l.scheduled_at DESC`, lessonDetailColumns)
	var lessons []models.LessonDetail
	if err := r.db.SelectContext(ctx, &lessons, query, studentID); err != nil {
		return nil, fmt.Errorf("list lessons by student: %w", err)
	}
	return lessons, nil
}

// ListByDateRange returns lessons scheduled inside [start, end], ascending.
func (r *LessonRepository) ListByDateRange(ctx context.Context, start, end time.Time) ([]models.LessonDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM lessons l JOIN students s ON s.id = l.student_id
        WHERE l.scheduled_at BETWEEN $1 AND $2 ORDER BY l.scheduled_at ASC`, lessonDetailColumns)
	var lessons []models.LessonDetail
	if err := r.db.SelectContext(ctx, &lessons, query, start, end); err != nil {
		return nil, fmt.Errorf("list lessons by date range: %w", err)
	}
	return lessons, nil
}

// Update modifies an existing lesson.
func (r *LessonRepository) Update(ctx context.Context, lesson *models.Lesson) error {
	lesson.UpdatedAt = time.Now().UTC()
	const query = `UPDATE lessons SET student_id = :student_id, scheduled_at = :scheduled_at,
        duration_minutes = :duration_minutes, status = :status, lesson_type = :lesson_type, notes = :notes,
        skills_assessed = :skills_assessed, rating = :rating, lesson_price = :lesson_price, is_paid = :is_paid,
        updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("update lesson: %w", err)
	}
	return nil
}

// Delete removes a lesson.
func (r *LessonRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM lessons WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}

// ExistsScheduledAt reports whether another lesson already holds the exact
// timestamp with status scheduled, optionally excluding an ID.
func (r *LessonRepository) ExistsScheduledAt(ctx context.Context, at time.Time, excludeID string) (bool, error) {
	query := `SELECT COUNT(*) FROM lessons WHERE scheduled_at = $1 AND status = $2`
	args := []interface{}{at, models.LessonStatusScheduled}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check scheduled slot: %w", err)
	}
	return count > 0, nil
}

// CountByStudentAndStatus counts one student's lessons in a given status.
func (r *LessonRepository) CountByStudentAndStatus(ctx context.Context, studentID string, status models.LessonStatus) (int, error) {
	var count int
	const query = `SELECT COUNT(*) FROM lessons WHERE student_id = $1 AND status = $2`
	if err := r.db.GetContext(ctx, &count, query, studentID, status); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return count, nil
}

// FindOverdueScheduled returns scheduled lessons whose time has passed. An
// empty studentID widens the scan to every student.
func (r *LessonRepository) FindOverdueScheduled(ctx context.Context, now time.Time, studentID string) ([]models.Lesson, error) {
	query := `SELECT id, student_id, scheduled_at, duration_minutes, status, lesson_type, notes, skills_assessed,
        rating, lesson_price, is_paid, created_at, updated_at
        FROM lessons WHERE status = $1 AND scheduled_at <= $2`
	args := []interface{}{models.LessonStatusScheduled, now}
	if studentID != "" {
		query += " AND student_id = $3"
		args = append(args, studentID)
	}
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, args...); err != nil {
		return nil, fmt.Errorf("find overdue lessons: %w", err)
	}
	return lessons, nil
}

// MarkCompleted flips the given lessons to completed in one statement.
func (r *LessonRepository) MarkCompleted(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE lessons SET status = $1, updated_at = $2 WHERE id = ANY($3)`
	if _, err := r.db.ExecContext(ctx, query, models.LessonStatusCompleted, time.Now().UTC(), pq.Array(ids)); err != nil {
		return fmt.Errorf("mark lessons completed: %w", err)
	}
	return nil
}

// Stats aggregates lesson counters; dayStart/dayEnd bound "today".
func (r *LessonRepository) Stats(ctx context.Context, dayStart, dayEnd time.Time) (*models.LessonStats, error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE scheduled_at BETWEEN $1 AND $2) AS today_lessons,
        COUNT(*) AS total_lessons,
        COUNT(*) FILTER (WHERE status = $3) AS completed_lessons,
        COUNT(*) FILTER (WHERE status = $4) AS scheduled_lessons
        FROM lessons`
	var stats struct {
		TodayLessons     int `db:"today_lessons"`
		TotalLessons     int `db:"total_lessons"`
		CompletedLessons int `db:"completed_lessons"`
		ScheduledLessons int `db:"scheduled_lessons"`
	}
	if err := r.db.GetContext(ctx, &stats, query, dayStart, dayEnd, models.LessonStatusCompleted, models.LessonStatusScheduled); err != nil {
		return nil, fmt.Errorf("lesson stats: %w", err)
	}
	return &models.LessonStats{
		TodayLessons:     stats.TodayLessons,
		TotalLessons:     stats.TotalLessons,
		CompletedLessons: stats.CompletedLessons,
		ScheduledLessons: stats.ScheduledLessons,
	}, nil
}
