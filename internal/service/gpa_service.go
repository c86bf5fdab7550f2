package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type completedCourseSource interface {
	CompletedByStudent(ctx context.Context, studentID string) ([]models.CompletedCourse, error)
}

type gpaWriter interface {
	UpdateGPA(ctx context.Context, id string, gpa float64, creditsEarned int) error
}

// GpaService recomputes a student's cumulative GPA from completed
// enrollments. It is the only writer of the students.gpa column.
type GpaService struct {
	enrollments completedCourseSource
	students    gpaWriter
	logger      *zap.Logger
}

// NewGpaService constructs GpaService.
func NewGpaService(enrollments completedCourseSource, students gpaWriter, logger *zap.Logger) *GpaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GpaService{enrollments: enrollments, students: students, logger: logger}
}

// Recalculate recomputes the credit-weighted GPA on the 4-point scale and
// persists it together with the earned-credit total. A student with no
// completed credit-bearing coursework keeps the stored values untouched and
// the current computed GPA of zero is returned.
func (s *GpaService) Recalculate(ctx context.Context, studentID string) (float64, error) {
	completed, err := s.enrollments.CompletedByStudent(ctx, studentID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed courses")
	}

	var weightedPoints float64
	var totalCredits int
	var creditsEarned int
	for _, course := range completed {
		if course.Credits <= 0 {
			continue
		}
		weightedPoints += gradePoint(course.FinalGrade) * float64(course.Credits)
		totalCredits += course.Credits
		if course.FinalGrade >= PassingFinalGrade {
			creditsEarned += course.Credits
		}
	}

	if totalCredits == 0 {
		return 0, nil
	}

	gpa := round2(weightedPoints / float64(totalCredits))
	if err := s.students.UpdateGPA(ctx, studentID, gpa, creditsEarned); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist gpa")
	}

	s.logger.Debug("gpa recalculated",
		zap.String("student_id", studentID),
		zap.Float64("gpa", gpa),
		zap.Int("credits_earned", creditsEarned))
	return gpa, nil
}

// gradePoint maps a 0-100 final grade onto the 0-4 scale, clamped at both
// ends.
func gradePoint(finalGrade float64) float64 {
	point := finalGrade / gradePointDivisor
	if point < 0 {
		return 0
	}
	if point > 4 {
		return 4
	}
	return point
}

// round2 rounds half to even at two decimal places.
func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}
