package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/academy-gradebook-api/internal/dto"
	"github.com/noah-isme/academy-gradebook-api/internal/models"
	"github.com/noah-isme/academy-gradebook-api/pkg/export"
	"github.com/noah-isme/academy-gradebook-api/pkg/storage"
)

type gradebookSource interface {
	FullGradebook(ctx context.Context, courseID string) (*dto.GradebookResponse, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders a course gradebook to a file and signs a download URL for it.
type ExportService struct {
	gradebooks gradebookSource
	storage    fileStorage
	renderers  map[models.ExportFormat]datasetRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

// NewExportService constructs an ExportService with the CSV and PDF renderers.
func NewExportService(gradebooks gradebookSource, files fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		gradebooks: gradebooks,
		storage:    files,
		renderers: map[models.ExportFormat]datasetRenderer{
			models.ExportFormatCSV: export.NewCSVExporter(),
			models.ExportFormatPDF: export.NewPDFExporter(),
		},
		signer: signer,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Generate computes the full gradebook for the job's course and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, ok := s.renderers[job.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Format)
	}

	gradebook, err := s.gradebooks.FullGradebook(ctx, job.CourseID)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(buildGradebookDataset(gradebook, job.Params))
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", job.Format, err)
	}

	relPath, err := s.storage.Save(s.buildFilename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	s.logger.Debug("gradebook export rendered",
		zap.String("job_id", job.ID),
		zap.String("course_id", job.CourseID),
		zap.Int("rows", len(gradebook.Rows)),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          fmt.Sprintf("%s/export/%s", prefix, token),
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// ContentType returns the MIME type served for a format.
func (s *ExportService) ContentType(format models.ExportFormat) string {
	if renderer, ok := s.renderers[format]; ok {
		return renderer.ContentType()
	}
	return "application/octet-stream"
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

// buildFilename nests each export under its job id so the basename stays readable for downloads.
func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("gradebooks/%s/gradebook_%s_%s.%s", job.ID, sanitizeFilename(job.CourseID), timestamp, job.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

// buildGradebookDataset flattens a gradebook into one table row per student.
func buildGradebookDataset(gradebook *dto.GradebookResponse, params models.ExportJobParams) export.Dataset {
	headers := []string{"Student", "Email"}
	itemHeaders := make([]string, len(gradebook.Columns))
	seen := make(map[string]int, len(gradebook.Columns))
	for i, column := range gradebook.Columns {
		label := fmt.Sprintf("%s (/%s)", column.Title, formatScore(column.Possible))
		seen[label]++
		if n := seen[label]; n > 1 {
			label = fmt.Sprintf("%s #%d", label, n)
		}
		itemHeaders[i] = label
	}
	headers = append(headers, itemHeaders...)

	var categories []string
	if params.IncludeCategories {
		categories = categoryNames(gradebook.Rows)
		for _, name := range categories {
			headers = append(headers, name+" %")
		}
	}
	headers = append(headers, "Percentage", "Letter")

	rows := make([]map[string]string, 0, len(gradebook.Rows))
	for _, row := range gradebook.Rows {
		record := map[string]string{
			"Student":    row.FullName,
			"Email":      row.Email,
			"Percentage": strconv.FormatFloat(row.Grade.Percentage, 'f', 2, 64),
			"Letter":     row.Grade.LetterGrade,
		}
		for i, header := range itemHeaders {
			if i < len(row.Scores) && row.Scores[i] != nil {
				record[header] = formatScore(*row.Scores[i])
			}
		}
		for _, category := range row.Grade.Categories {
			if params.IncludeCategories && category.Included {
				record[category.Name+" %"] = strconv.FormatFloat(category.Percentage, 'f', 2, 64)
			}
		}
		rows = append(rows, record)
	}

	dataset := export.Dataset{
		Title:   fmt.Sprintf("%s Gradebook", gradebook.CourseTitle),
		Headers: headers,
		Rows:    rows,
	}
	if params.IncludeSummary {
		dataset.Footer = summaryLines(gradebook)
	}
	return dataset
}

func categoryNames(rows []dto.GradebookRow) []string {
	set := map[string]struct{}{}
	for _, row := range rows {
		for _, category := range row.Grade.Categories {
			if category.Included {
				set[category.Name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

func summaryLines(gradebook *dto.GradebookResponse) []string {
	summary := gradebook.Summary
	dist := make([]string, 0, len(letterOrder))
	for _, letter := range letterOrder {
		dist = append(dist, fmt.Sprintf("%s=%d", letter, summary.Distribution[letter]))
	}
	mode := "Points"
	if gradebook.IsWeighted {
		mode = "Weighted categories"
	}
	return []string{
		fmt.Sprintf("Students: %d", summary.Students),
		fmt.Sprintf("Average: %.2f  Min: %.2f  Max: %.2f", summary.Average, summary.Min, summary.Max),
		"Distribution: " + strings.Join(dist, " "),
		"Grading: " + mode,
		"Generated: " + gradebook.ComputedAt.UTC().Format(time.RFC3339),
	}
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
