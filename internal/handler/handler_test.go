package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academy-gradebook-api/internal/dto"
	"github.com/noah-isme/academy-gradebook-api/internal/middleware"
	"github.com/noah-isme/academy-gradebook-api/internal/models"
	"github.com/noah-isme/academy-gradebook-api/internal/service"
	appErrors "github.com/noah-isme/academy-gradebook-api/pkg/errors"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withClaims(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination map[string]int         `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

type accessMock struct {
	manageErr error
	viewErr   error
	viewed    [2]string
}

func (m *accessMock) CanManageCourse(context.Context, *models.JWTClaims, string) error {
	return m.manageErr
}

func (m *accessMock) CanViewStudent(_ context.Context, _ *models.JWTClaims, courseID, studentID string) error {
	m.viewed = [2]string{courseID, studentID}
	return m.viewErr
}

type gradebookMock struct {
	grade     *dto.StudentGradeResponse
	gradebook *dto.GradebookResponse
	hit       bool
	err       error
	paging    [2]int
}

func (m *gradebookMock) StudentGrade(_ context.Context, courseID, studentID string) (*dto.StudentGradeResponse, bool, error) {
	return m.grade, m.hit, m.err
}

func (m *gradebookMock) CourseGradebook(_ context.Context, _ string, page, size int) (*dto.GradebookResponse, bool, error) {
	m.paging = [2]int{page, size}
	return m.gradebook, m.hit, m.err
}

func TestGradeHandlerMyGrade(t *testing.T) {
	access := &accessMock{}
	grades := &gradebookMock{
		grade: &dto.StudentGradeResponse{CourseID: "course-1", StudentID: "stu-1", Grade: models.GradeResult{Percentage: 80, LetterGrade: "B"}},
		hit:   true,
	}
	handler := NewGradeHandler(grades, access)

	c, w := newGinContext(http.MethodGet, "/courses/course-1/grades/me", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	withClaims(c, "stu-1", models.RoleStudent)
	handler.MyGrade(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]string{"course-1", "stu-1"}, access.viewed)
	env := decode(t, w)
	assert.Equal(t, true, env.Meta["cache_hit"])
	var grade dto.StudentGradeResponse
	require.NoError(t, json.Unmarshal(env.Data, &grade))
	assert.Equal(t, "B", grade.Grade.LetterGrade)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestGradeHandlerStudentGradeForbidden(t *testing.T) {
	access := &accessMock{viewErr: appErrors.ErrForbidden}
	handler := NewGradeHandler(&gradebookMock{}, access)

	c, w := newGinContext(http.MethodGet, "/courses/course-1/students/stu-2/grade", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}, {Key: "studentId", Value: "stu-2"}}
	withClaims(c, "teacher-9", models.RoleTeacher)
	handler.StudentGrade(c)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, w).Error.Code)
}

func TestGradeHandlerStudentGradeUnknownStudent(t *testing.T) {
	access := &accessMock{viewErr: appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in this course")}
	handler := NewGradeHandler(&gradebookMock{grade: &dto.StudentGradeResponse{StudentID: "ghost"}}, access)

	c, w := newGinContext(http.MethodGet, "/courses/course-1/students/ghost/grade", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}, {Key: "studentId", Value: "ghost"}}
	withClaims(c, "teacher-1", models.RoleTeacher)
	handler.StudentGrade(c)

	require.Equal(t, http.StatusNotFound, w.Code)
	env := decode(t, w)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
	assert.Equal(t, [2]string{"course-1", "ghost"}, access.viewed)
}

func TestGradeHandlerRequiresClaims(t *testing.T) {
	handler := NewGradeHandler(&gradebookMock{}, &accessMock{})
	c, w := newGinContext(http.MethodGet, "/courses/course-1/grades/me", nil)
	handler.MyGrade(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGradeHandlerGradebook(t *testing.T) {
	grades := &gradebookMock{gradebook: &dto.GradebookResponse{CourseID: "course-1", Page: 2, PageSize: 10, Total: 25}}
	handler := NewGradeHandler(grades, &accessMock{})

	c, w := newGinContext(http.MethodGet, "/courses/course-1/gradebook?page=2&page_size=10", nil)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	withClaims(c, "teacher-1", models.RoleTeacher)
	handler.Gradebook(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [2]int{2, 10}, grades.paging)
	env := decode(t, w)
	assert.Equal(t, map[string]int{"page": 2, "page_size": 10, "total_count": 25}, env.Pagination)
	assert.Equal(t, false, env.Meta["cache_hit"])
}

func TestGradeHandlerGradebookBadQuery(t *testing.T) {
	handler := NewGradeHandler(&gradebookMock{}, &accessMock{})
	c, w := newGinContext(http.MethodGet, "/courses/course-1/gradebook?page=abc", nil)
	withClaims(c, "teacher-1", models.RoleTeacher)
	handler.Gradebook(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type gradingMock struct {
	resp *dto.CourseGradingResponse
	err  error
	req  dto.UpdateCourseGradingRequest
}

func (m *gradingMock) Get(context.Context, string) (*dto.CourseGradingResponse, error) {
	return m.resp, m.err
}

func (m *gradingMock) Update(_ context.Context, _ string, req dto.UpdateCourseGradingRequest) (*dto.CourseGradingResponse, error) {
	m.req = req
	return m.resp, m.err
}

func TestCourseGradingHandlerUpdate(t *testing.T) {
	grading := &gradingMock{resp: &dto.CourseGradingResponse{CourseID: "course-1", Weighted: true}}
	handler := NewCourseGradingHandler(grading, &accessMock{})

	payload := []byte(`{"weighted":true,"categories":{"Homework":0.4,"Exams":0.6}}`)
	c, w := newGinContext(http.MethodPut, "/courses/course-1/grading", payload)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	withClaims(c, "teacher-1", models.RoleTeacher)
	handler.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, grading.req.Weighted)
	assert.Equal(t, 0.6, grading.req.Categories["Exams"])
}

func TestCourseGradingHandlerErrors(t *testing.T) {
	handler := NewCourseGradingHandler(&gradingMock{err: appErrors.ErrInvalidWeights}, &accessMock{})

	c, w := newGinContext(http.MethodPut, "/courses/course-1/grading", []byte(`{`))
	withClaims(c, "teacher-1", models.RoleTeacher)
	handler.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodPut, "/courses/course-1/grading", []byte(`{"weighted":true,"categories":{"A":2}}`))
	withClaims(c, "teacher-1", models.RoleTeacher)
	handler.Update(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_WEIGHTS", decode(t, w).Error.Code)

	denied := NewCourseGradingHandler(&gradingMock{}, &accessMock{manageErr: appErrors.ErrForbidden})
	c, w = newGinContext(http.MethodGet, "/courses/course-1/grading", nil)
	withClaims(c, "teacher-2", models.RoleTeacher)
	denied.Get(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

type exportServiceMock struct {
	createResp  *dto.ExportJobResponse
	createErr   error
	statusResp  *dto.ExportStatusResponse
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
}

func (m *exportServiceMock) CreateJob(context.Context, *models.JWTClaims, string, dto.ExportRequest) (*dto.ExportJobResponse, error) {
	return m.createResp, m.createErr
}

func (m *exportServiceMock) GetStatus(context.Context, *models.JWTClaims, string) (*dto.ExportStatusResponse, error) {
	return m.statusResp, m.statusErr
}

func (m *exportServiceMock) ResolveDownload(context.Context, string) (*service.ExportDownload, error) {
	return m.download, m.downloadErr
}

func TestExportHandlerCreate(t *testing.T) {
	mockSvc := &exportServiceMock{
		createResp: &dto.ExportJobResponse{ID: "job-1", CourseID: "course-1", Status: models.ExportStatusQueued},
	}
	handler := NewExportHandler(mockSvc, nil)

	payload, _ := json.Marshal(dto.ExportRequest{Format: models.ExportFormatCSV})
	c, w := newGinContext(http.MethodPost, "/courses/course-1/gradebook/exports", payload)
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	withClaims(c, "teacher-1", models.RoleTeacher)
	handler.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
}

func TestExportHandlerCreateDisabled(t *testing.T) {
	handler := NewExportHandler(&exportServiceMock{createErr: appErrors.ErrExportsDisabled}, nil)

	c, w := newGinContext(http.MethodPost, "/courses/course-1/gradebook/exports", []byte(`{"format":"csv"}`))
	withClaims(c, "admin", models.RoleAdmin)
	handler.Create(c)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "EXPORTS_DISABLED", decode(t, w).Error.Code)
}

func TestExportHandlerStatus(t *testing.T) {
	mockSvc := &exportServiceMock{
		statusResp: &dto.ExportStatusResponse{ID: "job-1", Status: models.ExportStatusFinished, Progress: 100},
	}
	handler := NewExportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}
	withClaims(c, "teacher-1", models.RoleTeacher)
	handler.Status(c)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestExportHandlerDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gradebook.csv")
	require.NoError(t, os.WriteFile(path, []byte("Student,Percentage\n"), 0o644))
	file, err := os.Open(path)
	require.NoError(t, err)

	mockSvc := &exportServiceMock{
		download: &service.ExportDownload{
			File:        file,
			Filename:    "gradebook.csv",
			ContentType: "text/csv",
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	}
	handler := NewExportHandler(mockSvc, nil)

	c, w := newGinContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="gradebook.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Student,Percentage\n", w.Body.String())
}

func TestExportHandlerDownloadInvalidToken(t *testing.T) {
	handler := NewExportHandler(&exportServiceMock{downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")}, nil)
	c, w := newGinContext(http.MethodGet, "/export/bad", nil)
	handler.Download(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	handler := NewMetricsHandler(nil, map[string]ReadinessCheck{"database": ok}, map[string]ReadinessCheck{"redis": down})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"degraded","checks":{"database":"ok","redis":"connection refused"}}`, w.Body.String())

	handler = NewMetricsHandler(nil, map[string]ReadinessCheck{"database": down}, nil)
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsHandlerSummaryAndPrometheus(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.RecordGradeComputation(true)
	handler := NewMetricsHandler(metrics, nil, nil)

	c, w := newGinContext(http.MethodGet, "/metrics/summary", nil)
	handler.Summary(c)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot dto.MetricsSnapshot
	require.NoError(t, json.Unmarshal(decode(t, w).Data, &snapshot))
	assert.Equal(t, uint64(1), snapshot.GradesComputed)

	c, w = newGinContext(http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "grade_computations_total")
}
