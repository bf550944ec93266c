package models

import "time"

// Quiz is a gradable quiz. Its possible points come from the sum of its question points.
type Quiz struct {
	ID            string  `db:"id" json:"id"`
	CourseID      string  `db:"course_id" json:"course_id"`
	Title         string  `db:"title" json:"title"`
	GradeCategory *string `db:"grade_category" json:"grade_category,omitempty"`
	Position      int     `db:"position" json:"position"`
}

// QuizMaxPoints is one row of the per-quiz question point totals.
type QuizMaxPoints struct {
	QuizID    string  `db:"quiz_id"`
	MaxPoints float64 `db:"max_points"`
}

// QuizAttempt records one try at a quiz. Only the best PointsEarned counts.
type QuizAttempt struct {
	ID           string     `db:"id" json:"id"`
	QuizID       string     `db:"quiz_id" json:"quiz_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	PointsEarned *float64   `db:"points_earned" json:"points_earned,omitempty"`
	StartedAt    time.Time  `db:"started_at" json:"started_at"`
	CompletedAt  *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}
