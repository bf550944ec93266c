package models

import "time"

// EnrollmentStatus represents the lifecycle of a course enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive  EnrollmentStatus = "ACTIVE"
	EnrollmentStatusDropped EnrollmentStatus = "DROPPED"
)

// Enrollment links a student to a course.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
}

// RosterEntry is an active enrollment joined with the student's profile.
type RosterEntry struct {
	StudentID string `db:"student_id" json:"student_id"`
	FullName  string `db:"full_name" json:"full_name"`
	Email     string `db:"email" json:"email"`
}
