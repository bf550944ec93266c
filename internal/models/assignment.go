package models

import "time"

// Assignment is a gradable piece of coursework.
type Assignment struct {
	ID            string     `db:"id" json:"id"`
	CourseID      string     `db:"course_id" json:"course_id"`
	Title         string     `db:"title" json:"title"`
	MaxPoints     float64    `db:"max_points" json:"max_points"`
	GradeCategory *string    `db:"grade_category" json:"grade_category,omitempty"`
	Position      int        `db:"position" json:"position"`
	DueAt         *time.Time `db:"due_at" json:"due_at,omitempty"`
}

// Submission is a student's hand-in for an assignment. A nil Grade means not graded yet.
type Submission struct {
	ID           string     `db:"id" json:"id"`
	AssignmentID string     `db:"assignment_id" json:"assignment_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	Grade        *float64   `db:"grade" json:"grade,omitempty"`
	SubmittedAt  time.Time  `db:"submitted_at" json:"submitted_at"`
	GradedAt     *time.Time `db:"graded_at" json:"graded_at,omitempty"`
}
