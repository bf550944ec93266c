package dto

import "github.com/noah-isme/academy-gradebook-api/internal/models"

// UpdateCourseGradingRequest replaces a course's grading configuration.
type UpdateCourseGradingRequest struct {
	Weighted   bool               `json:"weighted"`
	Categories map[string]float64 `json:"categories" validate:"omitempty,dive,keys,required,max=64,endkeys,gt=0,lte=1"`
}

// CourseGradingResponse exposes grading configuration.
type CourseGradingResponse struct {
	CourseID    string                 `json:"course_id"`
	Weighted    bool                   `json:"weighted"`
	Categories  models.CategoryWeights `json:"categories"`
	WeightTotal float64                `json:"weight_total"`
}
