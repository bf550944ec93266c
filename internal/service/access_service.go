package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/academy-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/academy-gradebook-api/pkg/errors"
)

type courseMembership interface {
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	IsInstructor(ctx context.Context, courseID, userID string) (bool, error)
}

// CourseAccessService decides whether a caller may read or manage a course gradebook.
type CourseAccessService struct {
	membership courseMembership
	logger     *zap.Logger
}

// NewCourseAccessService constructs the access checker.
func NewCourseAccessService(membership courseMembership, logger *zap.Logger) *CourseAccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseAccessService{membership: membership, logger: logger}
}

// CanManageCourse allows admins and the course's instructors.
func (s *CourseAccessService) CanManageCourse(ctx context.Context, claims *models.JWTClaims, courseID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role.IsAdmin() {
		return nil
	}
	if claims.Role != models.RoleTeacher {
		return appErrors.ErrForbidden
	}
	ok, err := s.membership.IsInstructor(ctx, courseID, claims.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify course instructor")
	}
	if !ok {
		s.logger.Debug("course access denied", zap.String("course_id", courseID), zap.String("user_id", claims.UserID))
		return appErrors.Clone(appErrors.ErrForbidden, "not an instructor of this course")
	}
	return nil
}

// CanViewStudent allows course staff, or the student themself when actively enrolled.
// Staff asking for someone outside the active roster get a not-found error.
func (s *CourseAccessService) CanViewStudent(ctx context.Context, claims *models.JWTClaims, courseID, studentID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if claims.Role != models.RoleStudent {
		if err := s.CanManageCourse(ctx, claims, courseID); err != nil {
			return err
		}
		return s.requireEnrolled(ctx, courseID, studentID, appErrors.Clone(appErrors.ErrNotFound, "student not enrolled in this course"))
	}
	if claims.UserID != studentID {
		return appErrors.ErrForbidden
	}
	return s.requireEnrolled(ctx, courseID, studentID, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course"))
}

func (s *CourseAccessService) requireEnrolled(ctx context.Context, courseID, studentID string, notEnrolled error) error {
	ok, err := s.membership.IsEnrolled(ctx, courseID, studentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify enrollment")
	}
	if !ok {
		return notEnrolled
	}
	return nil
}
