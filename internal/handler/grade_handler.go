package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/academy-gradebook-api/internal/dto"
	"github.com/noah-isme/academy-gradebook-api/internal/middleware"
	"github.com/noah-isme/academy-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/academy-gradebook-api/pkg/errors"
	"github.com/noah-isme/academy-gradebook-api/pkg/response"
)

type gradebookReader interface {
	StudentGrade(ctx context.Context, courseID, studentID string) (*dto.StudentGradeResponse, bool, error)
	CourseGradebook(ctx context.Context, courseID string, page, size int) (*dto.GradebookResponse, bool, error)
}

type courseAccess interface {
	CanManageCourse(ctx context.Context, claims *models.JWTClaims, courseID string) error
	CanViewStudent(ctx context.Context, claims *models.JWTClaims, courseID, studentID string) error
}

// GradeHandler exposes computed grade endpoints.
type GradeHandler struct {
	grades gradebookReader
	access courseAccess
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradebookReader, access courseAccess) *GradeHandler {
	return &GradeHandler{grades: grades, access: access}
}

// MyGrade godoc
// @Summary Current student's grade in a course
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope{data=dto.StudentGradeResponse}
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/grades/me [get]
func (h *GradeHandler) MyGrade(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	h.respondStudentGrade(c, claims, c.Param("id"), claims.UserID)
}

// StudentGrade godoc
// @Summary A student's grade in a course
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param studentId path string true "Student ID"
// @Success 200 {object} response.Envelope{data=dto.StudentGradeResponse}
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{id}/students/{studentId}/grade [get]
func (h *GradeHandler) StudentGrade(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	h.respondStudentGrade(c, claims, c.Param("id"), c.Param("studentId"))
}

func (h *GradeHandler) respondStudentGrade(c *gin.Context, claims *models.JWTClaims, courseID, studentID string) {
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId required"))
		return
	}
	if err := h.access.CanViewStudent(c.Request.Context(), claims, courseID, studentID); err != nil {
		response.Error(c, err)
		return
	}
	grade, cacheHit, err := h.grades.StudentGrade(c.Request.Context(), courseID, studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, grade, nil, middleware.ResponseMeta(c))
}

// Gradebook godoc
// @Summary Course gradebook page
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param page query int false "Page number"
// @Param page_size query int false "Students per page"
// @Success 200 {object} response.Envelope{data=dto.GradebookResponse}
// @Failure 403 {object} response.Envelope
// @Router /courses/{id}/gradebook [get]
func (h *GradeHandler) Gradebook(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	var query dto.GradebookQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid paging parameters"))
		return
	}
	courseID := c.Param("id")
	if err := h.access.CanManageCourse(c.Request.Context(), claims, courseID); err != nil {
		response.Error(c, err)
		return
	}
	gradebook, cacheHit, err := h.grades.CourseGradebook(c.Request.Context(), courseID, query.Page, query.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	pagination := &response.Pagination{Page: gradebook.Page, PageSize: gradebook.PageSize, TotalCount: gradebook.Total}
	response.JSON(c, http.StatusOK, gradebook, pagination, middleware.ResponseMeta(c))
}
