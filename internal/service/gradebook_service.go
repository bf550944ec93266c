package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/academy-gradebook-api/internal/dto"
	"github.com/noah-isme/academy-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/academy-gradebook-api/pkg/errors"
)

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type assignmentLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
}

type quizLister interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error)
	MaxPointsByCourse(ctx context.Context, courseID string) (map[string]float64, error)
}

type submissionReader interface {
	ListByStudent(ctx context.Context, courseID, studentID string) ([]models.Submission, error)
	ListByCourse(ctx context.Context, courseID string, studentIDs []string) (map[string][]models.Submission, error)
}

type quizAttemptReader interface {
	ListByStudent(ctx context.Context, courseID, studentID string) ([]models.QuizAttempt, error)
	ListByCourse(ctx context.Context, courseID string, studentIDs []string) (map[string][]models.QuizAttempt, error)
}

// inputVersionReader fingerprints every record a course's grades are computed from.
type inputVersionReader interface {
	InputsVersion(ctx context.Context, courseID string) (string, error)
}

type rosterReader interface {
	ListStudents(ctx context.Context, courseID string, page, size int) ([]models.RosterEntry, int, error)
}

// GradebookRepositories groups the read-side stores the gradebook depends on.
type GradebookRepositories struct {
	Courses     courseReader
	Assignments assignmentLister
	Quizzes     quizLister
	Submissions submissionReader
	Attempts    quizAttemptReader
	Roster      rosterReader
	Versions    inputVersionReader
}

// GradebookConfig tunes caching and roster computation.
type GradebookConfig struct {
	CacheTTL          time.Duration
	RosterConcurrency int
	DefaultPageSize   int
	MaxPageSize       int
}

// GradebookService loads course records and runs the grade aggregator per student.
type GradebookService struct {
	repos   GradebookRepositories
	cache   *CacheService
	metrics *MetricsService
	cfg     GradebookConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewGradebookService constructs the service.
func NewGradebookService(repos GradebookRepositories, cache *CacheService, metrics *MetricsService, cfg GradebookConfig, logger *zap.Logger) *GradebookService {
	if cfg.RosterConcurrency <= 0 {
		cfg.RosterConcurrency = 8
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 50
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradebookService{repos: repos, cache: cache, metrics: metrics, cfg: cfg, logger: logger, now: time.Now}
}

// courseInputs are the per-course records shared by every student row.
type courseInputs struct {
	course      *models.Course
	assignments []models.Assignment
	quizzes     []models.Quiz
	maxPoints   map[string]float64
}

// StudentGrade computes one student's grade. The boolean reports a cache hit.
func (s *GradebookService) StudentGrade(ctx context.Context, courseID, studentID string) (*dto.StudentGradeResponse, bool, error) {
	var key string
	if version, ok := s.inputsVersion(ctx, courseID); ok {
		key = StudentGradeCacheKey(courseID, version, studentID)
		var cached dto.StudentGradeResponse
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	inputs, err := s.loadCourseInputs(ctx, courseID)
	if err != nil {
		return nil, false, err
	}

	var (
		submissions []models.Submission
		attempts    []models.QuizAttempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		submissions, err = s.repos.Submissions.ListByStudent(gctx, courseID, studentID)
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = s.repos.Attempts.ListByStudent(gctx, courseID, studentID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student scores")
	}
	s.metrics.ObserveDBQuery("student_grade_inputs", time.Since(start))

	items := ScoreItems(inputs.assignments, inputs.quizzes, submissions, attempts, inputs.maxPoints)
	result := gradeItems(*inputs.course, items)
	s.metrics.RecordGradeComputation(result.IsWeighted)

	resp := &dto.StudentGradeResponse{
		CourseID:    inputs.course.ID,
		CourseTitle: inputs.course.Title,
		StudentID:   studentID,
		Grade:       result,
		Items:       items,
		ComputedAt:  s.now().UTC(),
	}
	if key != "" {
		_ = s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	}
	return resp, false, nil
}

// CourseGradebook computes one page of the roster. Rows keep roster order; the
// boolean reports a cache hit.
func (s *GradebookService) CourseGradebook(ctx context.Context, courseID string, page, size int) (*dto.GradebookResponse, bool, error) {
	page, size = s.normalisePage(page, size)
	var key string
	if version, ok := s.inputsVersion(ctx, courseID); ok {
		key = GradebookCacheKey(courseID, version, page, size)
		var cached dto.GradebookResponse
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, true, nil
		}
	}

	start := time.Now()
	inputs, err := s.loadCourseInputs(ctx, courseID)
	if err != nil {
		return nil, false, err
	}
	rows, total, err := s.computeRows(ctx, inputs, page, size)
	if err != nil {
		return nil, false, err
	}

	resp := s.newGradebookResponse(inputs, rows)
	resp.Page = page
	resp.PageSize = size
	resp.Total = total
	s.logger.Debug("gradebook computed",
		zap.String("course_id", courseID),
		zap.Int("students", len(rows)),
		zap.Duration("elapsed", time.Since(start)),
	)
	if key != "" {
		_ = s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	}
	return resp, false, nil
}

// inputsVersion reads the course input fingerprint used in cache keys. Without one
// the result is computed fresh and not cached.
func (s *GradebookService) inputsVersion(ctx context.Context, courseID string) (string, bool) {
	if !s.cache.Enabled() || s.repos.Versions == nil {
		return "", false
	}
	version, err := s.repos.Versions.InputsVersion(ctx, courseID)
	if err != nil {
		s.logger.Warn("grade input version unavailable, skipping cache", zap.String("course_id", courseID), zap.Error(err))
		return "", false
	}
	return version, true
}

// FullGradebook computes every roster page without touching the cache. Exports use it.
func (s *GradebookService) FullGradebook(ctx context.Context, courseID string) (*dto.GradebookResponse, error) {
	inputs, err := s.loadCourseInputs(ctx, courseID)
	if err != nil {
		return nil, err
	}
	size := s.cfg.MaxPageSize
	all := make([]dto.GradebookRow, 0)
	for page := 1; ; page++ {
		rows, total, err := s.computeRows(ctx, inputs, page, size)
		if err != nil {
			return nil, err
		}
		all = append(all, rows...)
		if len(rows) < size || page*size >= total {
			break
		}
	}
	resp := s.newGradebookResponse(inputs, all)
	resp.Page = 1
	resp.PageSize = len(all)
	resp.Total = len(all)
	return resp, nil
}

func (s *GradebookService) newGradebookResponse(inputs *courseInputs, rows []dto.GradebookRow) *dto.GradebookResponse {
	return &dto.GradebookResponse{
		CourseID:    inputs.course.ID,
		CourseTitle: inputs.course.Title,
		IsWeighted:  inputs.course.UsesWeights() && len(inputs.assignments)+len(inputs.quizzes) > 0,
		Columns:     gradebookColumns(inputs),
		Rows:        rows,
		Summary:     summarise(rows),
		ComputedAt:  s.now().UTC(),
	}
}

// computeRows loads one roster page with its scores and aggregates each student
// on a bounded pool of goroutines.
func (s *GradebookService) computeRows(ctx context.Context, inputs *courseInputs, page, size int) ([]dto.GradebookRow, int, error) {
	courseID := inputs.course.ID
	start := time.Now()
	roster, total, err := s.repos.Roster.ListStudents(ctx, courseID, page, size)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	studentIDs := make([]string, len(roster))
	for i, entry := range roster {
		studentIDs[i] = entry.StudentID
	}
	var (
		submissions map[string][]models.Submission
		attempts    map[string][]models.QuizAttempt
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		submissions, err = s.repos.Submissions.ListByCourse(gctx, courseID, studentIDs)
		return err
	})
	g.Go(func() error {
		var err error
		attempts, err = s.repos.Attempts.ListByCourse(gctx, courseID, studentIDs)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load gradebook scores")
	}
	s.metrics.ObserveDBQuery("gradebook_scores", time.Since(start))

	rows := make([]dto.GradebookRow, len(roster))
	rg, rctx := errgroup.WithContext(ctx)
	rg.SetLimit(s.cfg.RosterConcurrency)
	for i, entry := range roster {
		i, entry := i, entry
		rg.Go(func() error {
			if err := rctx.Err(); err != nil {
				return err
			}
			items := ScoreItems(inputs.assignments, inputs.quizzes, submissions[entry.StudentID], attempts[entry.StudentID], inputs.maxPoints)
			scores := make([]*float64, len(items))
			for j := range items {
				scores[j] = items[j].Earned
			}
			result := gradeItems(*inputs.course, items)
			s.metrics.RecordGradeComputation(result.IsWeighted)
			rows[i] = dto.GradebookRow{
				StudentID: entry.StudentID,
				FullName:  entry.FullName,
				Email:     entry.Email,
				Scores:    scores,
				Grade:     result,
			}
			return nil
		})
	}
	if err := rg.Wait(); err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "gradebook computation interrupted")
	}
	s.metrics.ObserveRosterSize(len(rows))
	return rows, total, nil
}

func (s *GradebookService) loadCourseInputs(ctx context.Context, courseID string) (*courseInputs, error) {
	course, err := s.repos.Courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	inputs := &courseInputs{course: course}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inputs.assignments, err = s.repos.Assignments.ListByCourse(gctx, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		inputs.quizzes, err = s.repos.Quizzes.ListByCourse(gctx, courseID)
		return err
	})
	g.Go(func() error {
		var err error
		inputs.maxPoints, err = s.repos.Quizzes.MaxPointsByCourse(gctx, courseID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course items")
	}
	return inputs, nil
}

func (s *GradebookService) normalisePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = s.cfg.DefaultPageSize
	}
	if size > s.cfg.MaxPageSize {
		size = s.cfg.MaxPageSize
	}
	return page, size
}

func gradebookColumns(inputs *courseInputs) []dto.GradebookColumn {
	items := ScoreItems(inputs.assignments, inputs.quizzes, nil, nil, inputs.maxPoints)
	columns := make([]dto.GradebookColumn, len(items))
	for i, item := range items {
		columns[i] = dto.GradebookColumn{
			ItemID:   item.ItemID,
			Kind:     item.Kind,
			Title:    item.Title,
			Category: item.Category,
			Possible: item.Possible,
		}
	}
	return columns
}

var letterOrder = []string{"A", "B", "C", "D", "F"}

func summarise(rows []dto.GradebookRow) dto.GradebookSummary {
	summary := dto.GradebookSummary{
		Students:     len(rows),
		Distribution: make(map[string]int, len(letterOrder)),
	}
	for _, letter := range letterOrder {
		summary.Distribution[letter] = 0
	}
	if len(rows) == 0 {
		return summary
	}
	summary.Min = math.Inf(1)
	summary.Max = math.Inf(-1)
	var total float64
	for _, row := range rows {
		p := row.Grade.Percentage
		total += p
		summary.Min = math.Min(summary.Min, p)
		summary.Max = math.Max(summary.Max, p)
		summary.Distribution[row.Grade.LetterGrade]++
	}
	summary.Average = roundTo2(total / float64(len(rows)))
	return summary
}
