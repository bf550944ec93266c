package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-gradebook-api/internal/dto"
	appErrors "github.com/noah-isme/academy-gradebook-api/pkg/errors"
	"github.com/noah-isme/academy-gradebook-api/pkg/response"
)

type courseGradingService interface {
	Get(ctx context.Context, courseID string) (*dto.CourseGradingResponse, error)
	Update(ctx context.Context, courseID string, req dto.UpdateCourseGradingRequest) (*dto.CourseGradingResponse, error)
}

// CourseGradingHandler manages a course's weighting scheme.
type CourseGradingHandler struct {
	grading courseGradingService
	access  courseAccess
}

// NewCourseGradingHandler constructs handler.
func NewCourseGradingHandler(grading courseGradingService, access courseAccess) *CourseGradingHandler {
	return &CourseGradingHandler{grading: grading, access: access}
}

// Get godoc
// @Summary Course grading configuration
// @Tags Grading
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope{data=dto.CourseGradingResponse}
// @Router /courses/{id}/grading [get]
func (h *CourseGradingHandler) Get(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	courseID := c.Param("id")
	if err := h.access.CanManageCourse(c.Request.Context(), claims, courseID); err != nil {
		response.Error(c, err)
		return
	}
	grading, err := h.grading.Get(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grading, nil)
}

// Update godoc
// @Summary Replace course grading configuration
// @Description Weights must each be in (0,1] and sum to at most 1. Cached grades for the course are invalidated.
// @Tags Grading
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body dto.UpdateCourseGradingRequest true "Grading payload"
// @Success 200 {object} response.Envelope{data=dto.CourseGradingResponse}
// @Failure 400 {object} response.Envelope
// @Router /courses/{id}/grading [put]
func (h *CourseGradingHandler) Update(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var req dto.UpdateCourseGradingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	courseID := c.Param("id")
	if err := h.access.CanManageCourse(c.Request.Context(), claims, courseID); err != nil {
		response.Error(c, err)
		return
	}
	grading, err := h.grading.Update(c.Request.Context(), courseID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grading, nil)
}
