package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academy-gradebook-api/internal/models"
)

// CourseRepository reads and updates course grading configuration.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// FindByID returns a course by id or sql.ErrNoRows.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, code, title, instructor_id, weighted_grading, category_weights, created_at, updated_at
FROM courses WHERE id = $1 LIMIT 1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// UpdateGrading replaces the weighted flag and category weights of a course.
func (r *CourseRepository) UpdateGrading(ctx context.Context, id string, weighted bool, weights models.CategoryWeights) error {
	const query = `UPDATE courses SET weighted_grading = $1, category_weights = $2, updated_at = $3 WHERE id = $4`
	res, err := r.db.ExecContext(ctx, query, weighted, weights, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update course grading: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("check course grading rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// InputsVersion fingerprints every record a course's grades depend on: grading
// settings, items, question points, grades, attempts and the active roster. Any
// change to those rows yields a different value.
func (r *CourseRepository) InputsVersion(ctx context.Context, courseID string) (string, error) {
	const query = `SELECT md5(COALESCE(string_agg(v, ',' ORDER BY v), '')) FROM (
SELECT 'c:' || weighted_grading::text || ':' || COALESCE(category_weights::text, '') AS v FROM courses WHERE id = $1
UNION ALL SELECT 'a:' || a.id || ':' || a.title || ':' || a.max_points::text || ':' || COALESCE(a.grade_category, '') FROM assignments a WHERE a.course_id = $1
UNION ALL SELECT 'q:' || q.id || ':' || q.title || ':' || COALESCE(q.grade_category, '') FROM quizzes q WHERE q.course_id = $1
UNION ALL SELECT 'p:' || qq.id || ':' || qq.points::text FROM quiz_questions qq JOIN quizzes q ON q.id = qq.quiz_id WHERE q.course_id = $1
UNION ALL SELECT 's:' || s.id || ':' || COALESCE(s.grade::text, '') || ':' || s.submitted_at::text FROM submissions s JOIN assignments a ON a.id = s.assignment_id WHERE a.course_id = $1
UNION ALL SELECT 't:' || qa.id || ':' || COALESCE(qa.points_earned::text, '') FROM quiz_attempts qa JOIN quizzes q ON q.id = qa.quiz_id WHERE q.course_id = $1
UNION ALL SELECT 'e:' || e.student_id || ':' || e.status || ':' || u.full_name || ':' || COALESCE(u.email, '') FROM enrollments e JOIN users u ON u.id = e.student_id WHERE e.course_id = $1
) inputs`
	var version string
	if err := r.db.GetContext(ctx, &version, query, courseID); err != nil {
		return "", fmt.Errorf("fingerprint course inputs: %w", err)
	}
	return version, nil
}
