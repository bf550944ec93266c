package dto

import (
	"time"

	"github.com/noah-isme/academy-gradebook-api/internal/models"
)

// StudentGradeResponse is one student's computed grade in a course.
type StudentGradeResponse struct {
	CourseID    string             `json:"course_id"`
	CourseTitle string             `json:"course_title"`
	StudentID   string             `json:"student_id"`
	Grade       models.GradeResult `json:"grade"`
	Items       []models.ItemScore `json:"items"`
	ComputedAt  time.Time          `json:"computed_at"`
}

// GradebookColumn describes one gradable item shown as a gradebook column.
type GradebookColumn struct {
	ItemID   string          `json:"item_id"`
	Kind     models.ItemKind `json:"kind"`
	Title    string          `json:"title"`
	Category string          `json:"category"`
	Possible float64         `json:"possible"`
}

// GradebookRow holds one student's raw scores, aligned with the columns, and total grade.
type GradebookRow struct {
	StudentID string             `json:"student_id"`
	FullName  string             `json:"full_name"`
	Email     string             `json:"email"`
	Scores    []*float64         `json:"scores"`
	Grade     models.GradeResult `json:"grade"`
}

// GradebookSummary aggregates the rows of a gradebook page.
type GradebookSummary struct {
	Students     int            `json:"students"`
	Average      float64        `json:"average"`
	Min          float64        `json:"min"`
	Max          float64        `json:"max"`
	Distribution map[string]int `json:"distribution"`
}

// GradebookResponse is the instructor view of a course gradebook page.
type GradebookResponse struct {
	CourseID    string            `json:"course_id"`
	CourseTitle string            `json:"course_title"`
	IsWeighted  bool              `json:"is_weighted"`
	Columns     []GradebookColumn `json:"columns"`
	Rows        []GradebookRow    `json:"rows"`
	Summary     GradebookSummary  `json:"summary"`
	Page        int               `json:"page"`
	PageSize    int               `json:"page_size"`
	Total       int               `json:"total"`
	ComputedAt  time.Time         `json:"computed_at"`
}

// GradebookQuery carries paging for gradebook listing.
type GradebookQuery struct {
	Page     int `form:"page"`
	PageSize int `form:"page_size"`
}
