package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-gradebook-api/internal/models"
)

// EnrollmentRepository answers roster and membership questions for courses.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// ListStudents returns a page of actively enrolled students ordered by name, plus the total count.
func (r *EnrollmentRepository) ListStudents(ctx context.Context, courseID string, page, size int) ([]models.RosterEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 50
	}
	offset := (page - 1) * size

	const base = `FROM enrollments e JOIN users u ON u.id = e.student_id WHERE e.course_id = $1 AND e.status = $2`
	query := fmt.Sprintf(`SELECT e.student_id, u.full_name, u.email %s ORDER BY u.full_name ASC, e.student_id ASC LIMIT %d OFFSET %d`, base, size, offset)

	roster := make([]models.RosterEntry, 0, size)
	if err := r.db.SelectContext(ctx, &roster, query, courseID, models.EnrollmentStatusActive); err != nil {
		return nil, 0, fmt.Errorf("list course roster: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, courseID, models.EnrollmentStatusActive); err != nil {
		return nil, 0, fmt.Errorf("count course roster: %w", err)
	}
	return roster, total, nil
}

// IsEnrolled reports whether the student holds an active enrollment in the course.
func (r *EnrollmentRepository) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND student_id = $2 AND status = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, courseID, studentID, models.EnrollmentStatusActive); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// IsInstructor reports whether the user owns the course or is listed as a co-instructor.
func (r *EnrollmentRepository) IsInstructor(ctx context.Context, courseID, userID string) (bool, error) {
	const query = `SELECT EXISTS (
SELECT 1 FROM courses WHERE id = $1 AND instructor_id = $2
UNION ALL
SELECT 1 FROM course_instructors WHERE course_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, courseID, userID); err != nil {
		return false, fmt.Errorf("check course instructor: %w", err)
	}
	return exists, nil
}
