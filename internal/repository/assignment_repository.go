package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academy-gradebook-api/internal/models"
)

// AssignmentRepository reads assignments and their submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListByCourse returns the course assignments in display order.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	const query = `SELECT id, course_id, title, max_points, grade_category, position, due_at
FROM assignments WHERE course_id = $1 ORDER BY position ASC, created_at ASC, id ASC`
	assignments := make([]models.Assignment, 0)
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list assignments by course: %w", err)
	}
	return assignments, nil
}

// SubmissionRepository reads assignment submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

const submissionColumns = `s.id, s.assignment_id, s.student_id, s.grade, s.submitted_at, s.graded_at`

// ListByStudent returns one student's submissions for every assignment of a course,
// oldest first so later grades override earlier ones.
func (r *SubmissionRepository) ListByStudent(ctx context.Context, courseID, studentID string) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + `
FROM submissions s JOIN assignments a ON a.id = s.assignment_id
WHERE a.course_id = $1 AND s.student_id = $2 ORDER BY s.submitted_at ASC, s.id ASC`
	subs := make([]models.Submission, 0)
	if err := r.db.SelectContext(ctx, &subs, query, courseID, studentID); err != nil {
		return nil, fmt.Errorf("list submissions by student: %w", err)
	}
	return subs, nil
}

// ListByCourse returns submissions for the given students grouped by student id.
func (r *SubmissionRepository) ListByCourse(ctx context.Context, courseID string, studentIDs []string) (map[string][]models.Submission, error) {
	result := make(map[string][]models.Submission, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + submissionColumns + `
FROM submissions s JOIN assignments a ON a.id = s.assignment_id
WHERE a.course_id = $1 AND s.student_id = ANY($2) ORDER BY s.submitted_at ASC, s.id ASC`
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, courseID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list submissions by course: %w", err)
	}
	for _, sub := range subs {
		result[sub.StudentID] = append(result[sub.StudentID], sub)
	}
	return result, nil
}
