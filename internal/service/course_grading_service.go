package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academy-gradebook-api/internal/dto"
	"github.com/noah-isme/academy-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/academy-gradebook-api/pkg/errors"
)

// weightSumTolerance absorbs float noise when checking that weights do not exceed 1.
const weightSumTolerance = 1e-9

type courseGradingRepository interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	UpdateGrading(ctx context.Context, id string, weighted bool, weights models.CategoryWeights) error
}

// CourseGradingService manages the weighted flag and category weights of a course.
type CourseGradingService struct {
	repo      courseGradingRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseGradingService constructs the service.
func NewCourseGradingService(repo courseGradingRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseGradingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseGradingService{repo: repo, cache: cache, validator: validate, logger: logger}
}

// Get returns the grading configuration of a course.
func (s *CourseGradingService) Get(ctx context.Context, courseID string) (*dto.CourseGradingResponse, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return gradingResponse(course.ID, course.Weighted, course.CategoryWeights), nil
}

// Update validates and stores new grading configuration, then drops cached grades for the course.
func (s *CourseGradingService) Update(ctx context.Context, courseID string, req dto.UpdateCourseGradingRequest) (*dto.CourseGradingResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grading payload")
	}
	weights, err := normaliseWeights(req.Categories)
	if err != nil {
		return nil, err
	}
	if req.Weighted && len(weights) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "weighted grading requires at least one category")
	}

	if err := s.repo.UpdateGrading(ctx, courseID, req.Weighted, weights); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course grading")
	}
	if err := s.cache.InvalidateCourse(ctx, courseID); err != nil {
		s.logger.Warn("stale grades may be served until cache expiry", zap.String("course_id", courseID), zap.Error(err))
	}
	s.logger.Info("course grading updated",
		zap.String("course_id", courseID),
		zap.Bool("weighted", req.Weighted),
		zap.Int("categories", len(weights)),
	)
	return gradingResponse(courseID, req.Weighted, weights), nil
}

// normaliseWeights trims category names and rejects blanks, case-insensitive
// duplicates, weights outside (0, 1] and totals above 1.
func normaliseWeights(categories map[string]float64) (models.CategoryWeights, error) {
	weights := make(models.CategoryWeights, len(categories))
	seen := make(map[string]string, len(categories))
	var total float64
	for rawName, weight := range categories {
		name := strings.TrimSpace(rawName)
		if name == "" {
			return nil, appErrors.Clone(appErrors.ErrInvalidWeights, "category name must not be blank")
		}
		key := strings.ToLower(name)
		if other, dup := seen[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("duplicate category %q and %q", other, name))
		}
		if weight <= 0 || weight > 1 {
			return nil, appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("weight for %q must be in (0, 1]", name))
		}
		seen[key] = name
		weights[name] = weight
		total += weight
	}
	if total > 1+weightSumTolerance {
		return nil, appErrors.Clone(appErrors.ErrInvalidWeights, fmt.Sprintf("weights sum to %.4f, must not exceed 1", total))
	}
	return weights, nil
}

func gradingResponse(courseID string, weighted bool, weights models.CategoryWeights) *dto.CourseGradingResponse {
	if weights == nil {
		weights = models.CategoryWeights{}
	}
	var total float64
	for _, name := range weights.Names() {
		total += weights[name]
	}
	return &dto.CourseGradingResponse{
		CourseID:    courseID,
		Weighted:    weighted,
		Categories:  weights,
		WeightTotal: roundTo2(total),
	}
}
