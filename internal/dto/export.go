package dto

import (
	"time"

	"github.com/noah-isme/academy-gradebook-api/internal/models"
)

// ExportRequest captures POST /courses/:id/gradebook/exports payload.
type ExportRequest struct {
	Format            models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	IncludeCategories bool                `json:"include_categories"`
	IncludeSummary    bool                `json:"include_summary"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	CourseID string              `json:"course_id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID         string              `json:"id"`
	CourseID   string              `json:"course_id"`
	Format     models.ExportFormat `json:"format"`
	Status     models.ExportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	ResultURL  *string             `json:"result_url,omitempty"`
	Error      *string             `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}
