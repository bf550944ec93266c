package service

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-gradebook-api/internal/dto"
	"github.com/noah-isme/academy-gradebook-api/internal/models"
	"github.com/noah-isme/academy-gradebook-api/pkg/storage"
)

func newExportServiceForTest(t *testing.T, store *fakeCourseStore) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	gradebooks := newTestGradebookService(store, nil, GradebookConfig{})
	svc := NewExportService(gradebooks, files, signer, ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC) }
	return svc, files
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, files := newExportServiceForTest(t, algebraFixture())
	job := &models.ExportJob{ID: "job-1", CourseID: "course-1", Format: models.ExportFormatCSV, CreatedBy: "teacher-1"}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, "gradebooks/job-1/gradebook_course-1_20240901_120000.csv", result.RelativePath)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/export/"))
	assert.Equal(t, result.Token, strings.TrimPrefix(result.URL, "/api/v1/export/"))

	body, err := os.ReadFile(files.Path(result.RelativePath))
	require.NoError(t, err)
	expected := "Student,Email,Essay (/100),Quiz 1 (/50),Percentage,Letter\n" +
		"Ada Lovelace,,80,40,80.00,B\n" +
		"Alan Turing,,95,50,97.00,A\n" +
		"Grace Hopper,,40,,40.00,F\n"
	assert.Equal(t, expected, string(body))

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, result.RelativePath, relPath)
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, files := newExportServiceForTest(t, algebraFixture())
	job := &models.ExportJob{
		ID:       "job-2",
		CourseID: "course-1",
		Format:   models.ExportFormatPDF,
		Params:   models.ExportJobParams{IncludeCategories: true, IncludeSummary: true},
	}

	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, models.ExportFormatPDF, result.Format)

	body, err := os.ReadFile(files.Path(result.RelativePath))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(body), "%PDF-"))
	assert.Equal(t, "application/pdf", svc.ContentType(models.ExportFormatPDF))
}

func TestExportServiceGenerateErrors(t *testing.T) {
	svc, _ := newExportServiceForTest(t, algebraFixture())

	_, err := svc.Generate(context.Background(), &models.ExportJob{ID: "job-3", CourseID: "course-1", Format: "xlsx"})
	assert.Error(t, err)

	_, err = svc.Generate(context.Background(), &models.ExportJob{ID: "job-4", CourseID: "missing", Format: models.ExportFormatCSV})
	assert.Error(t, err)

	_, err = svc.Generate(context.Background(), nil)
	assert.Error(t, err)
}

func TestBuildGradebookDatasetWithCategoriesAndSummary(t *testing.T) {
	gradebook := &dto.GradebookResponse{
		CourseTitle: "Physics",
		IsWeighted:  true,
		Columns: []dto.GradebookColumn{
			{ItemID: "a1", Title: "Lab", Possible: 10},
			{ItemID: "a2", Title: "Lab", Possible: 10},
		},
		Rows: []dto.GradebookRow{
			{
				StudentID: "stu-1",
				FullName:  "Marie Curie",
				Scores:    []*float64{score(9.5), nil},
				Grade: models.GradeResult{
					Percentage:  95,
					LetterGrade: "A",
					Categories: []models.CategoryGrade{
						{Name: "Labs", Percentage: 95, Included: true},
						{Name: "Uncategorized", Percentage: 50, Included: false},
					},
				},
			},
		},
		Summary: dto.GradebookSummary{Students: 1, Average: 95, Min: 95, Max: 95, Distribution: map[string]int{"A": 1}},
	}

	dataset := buildGradebookDataset(gradebook, models.ExportJobParams{IncludeCategories: true, IncludeSummary: true})
	assert.Equal(t, "Physics Gradebook", dataset.Title)
	assert.Equal(t, []string{"Student", "Email", "Lab (/10)", "Lab (/10) #2", "Labs %", "Percentage", "Letter"}, dataset.Headers)
	require.Len(t, dataset.Rows, 1)
	assert.Equal(t, "9.5", dataset.Rows[0]["Lab (/10)"])
	assert.Equal(t, "", dataset.Rows[0]["Lab (/10) #2"])
	assert.Equal(t, "95.00", dataset.Rows[0]["Labs %"])
	require.NotEmpty(t, dataset.Footer)
	assert.Equal(t, "Students: 1", dataset.Footer[0])
	assert.Contains(t, dataset.Footer, "Distribution: A=1 B=0 C=0 D=0 F=0")
	assert.Contains(t, dataset.Footer, "Grading: Weighted categories")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "math-101_fall", sanitizeFilename("math/101 fall"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 150)), 100)
}
