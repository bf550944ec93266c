package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/academy-gradebook-api/internal/models"
)

// QuizRepository reads quizzes and their question point totals.
type QuizRepository struct {
	db *sqlx.DB
}

// NewQuizRepository constructs the repository.
func NewQuizRepository(db *sqlx.DB) *QuizRepository {
	return &QuizRepository{db: db}
}

// ListByCourse returns the course quizzes in display order.
func (r *QuizRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	const query = `SELECT id, course_id, title, grade_category, position
FROM quizzes WHERE course_id = $1 ORDER BY position ASC, created_at ASC, id ASC`
	quizzes := make([]models.Quiz, 0)
	if err := r.db.SelectContext(ctx, &quizzes, query, courseID); err != nil {
		return nil, fmt.Errorf("list quizzes by course: %w", err)
	}
	return quizzes, nil
}

// MaxPointsByCourse sums question points per quiz. Quizzes without questions are absent.
func (r *QuizRepository) MaxPointsByCourse(ctx context.Context, courseID string) (map[string]float64, error) {
	const query = `SELECT qq.quiz_id, COALESCE(SUM(qq.points), 0) AS max_points
FROM quiz_questions qq JOIN quizzes q ON q.id = qq.quiz_id
WHERE q.course_id = $1 GROUP BY qq.quiz_id`
	var rows []models.QuizMaxPoints
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("sum quiz points: %w", err)
	}
	result := make(map[string]float64, len(rows))
	for _, row := range rows {
		result[row.QuizID] = row.MaxPoints
	}
	return result, nil
}

// QuizAttemptRepository reads quiz attempts.
type QuizAttemptRepository struct {
	db *sqlx.DB
}

// NewQuizAttemptRepository constructs the repository.
func NewQuizAttemptRepository(db *sqlx.DB) *QuizAttemptRepository {
	return &QuizAttemptRepository{db: db}
}

const attemptColumns = `qa.id, qa.quiz_id, qa.student_id, qa.points_earned, qa.started_at, qa.completed_at`

// ListByStudent returns one student's attempts on every quiz of a course.
func (r *QuizAttemptRepository) ListByStudent(ctx context.Context, courseID, studentID string) ([]models.QuizAttempt, error) {
	query := `SELECT ` + attemptColumns + `
FROM quiz_attempts qa JOIN quizzes q ON q.id = qa.quiz_id
WHERE q.course_id = $1 AND qa.student_id = $2 ORDER BY qa.started_at ASC, qa.id ASC`
	attempts := make([]models.QuizAttempt, 0)
	if err := r.db.SelectContext(ctx, &attempts, query, courseID, studentID); err != nil {
		return nil, fmt.Errorf("list quiz attempts by student: %w", err)
	}
	return attempts, nil
}

// ListByCourse returns attempts for the given students grouped by student id.
func (r *QuizAttemptRepository) ListByCourse(ctx context.Context, courseID string, studentIDs []string) (map[string][]models.QuizAttempt, error) {
	result := make(map[string][]models.QuizAttempt, len(studentIDs))
	if len(studentIDs) == 0 {
		return result, nil
	}
	query := `SELECT ` + attemptColumns + `
FROM quiz_attempts qa JOIN quizzes q ON q.id = qa.quiz_id
WHERE q.course_id = $1 AND qa.student_id = ANY($2) ORDER BY qa.started_at ASC, qa.id ASC`
	var attempts []models.QuizAttempt
	if err := r.db.SelectContext(ctx, &attempts, query, courseID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list quiz attempts by course: %w", err)
	}
	for _, attempt := range attempts {
		result[attempt.StudentID] = append(result[attempt.StudentID], attempt)
	}
	return result, nil
}
