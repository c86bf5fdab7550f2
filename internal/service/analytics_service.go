package service

import (
	"context"
	"strings"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type courseGradeSource interface {
	ListByCourse(ctx context.Context, courseID string, publishedOnly bool) ([]models.Grade, error)
}

type studentStandingSource interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// AnalyticsService computes grade aggregations with cache integration.
type AnalyticsService struct {
	grades   courseGradeSource
	students studentStandingSource
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(grades courseGradeSource, students studentStandingSource, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{grades: grades, students: students, cache: cache, metrics: metrics, logger: logger}
}

// CourseGradeStats aggregates published grade percentages for a course. The
// boolean indicates whether data originated from cache.
func (s *AnalyticsService) CourseGradeStats(ctx context.Context, courseID string) (*models.CourseGradeStats, bool, error) {
	cacheKey := makeAnalyticsCacheKey("course", courseID)
	if s.cache.Enabled() {
		var cached models.CourseGradeStats
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err != nil {
			s.logger.Warn("analytics cache read failed", zap.String("key", cacheKey), zap.Error(err))
		} else if hit {
			return &cached, true, nil
		}
	}

	grades, err := s.grades.ListByCourse(ctx, courseID, true)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course grades")
	}

	result := computeCourseGradeStats(courseID, grades)
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, result, 0); err != nil {
			s.logger.Warn("analytics cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return result, false, nil
}

// StudentStanding reports a student's GPA and credit progress.
func (s *AnalyticsService) StudentStanding(ctx context.Context, studentID string) (*models.StudentStanding, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return &models.StudentStanding{
		StudentID:       student.ID,
		GPA:             student.GPA,
		CreditsEarned:   student.CreditsEarned,
		CreditsRequired: student.CreditsRequired,
	}, nil
}

// SystemMetrics returns the instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	if s.metrics == nil {
		return models.AnalyticsSystemMetrics{}
	}
	return s.metrics.Snapshot()
}

// InvalidateCourse drops cached aggregations for a course after grade writes.
func (s *AnalyticsService) InvalidateCourse(ctx context.Context, courseID string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, makeAnalyticsCacheKey("course", courseID)+"*"); err != nil {
		s.logger.Warn("analytics cache invalidation failed", zap.String("course_id", courseID), zap.Error(err))
	}
}

func computeCourseGradeStats(courseID string, grades []models.Grade) *models.CourseGradeStats {
	result := &models.CourseGradeStats{
		CourseID:     courseID,
		Count:        len(grades),
		Distribution: map[string]int{},
	}
	if len(grades) == 0 {
		return result
	}

	percentages := make([]float64, len(grades))
	for i, grade := range grades {
		percentages[i] = grade.Percentage
		result.Distribution[LetterForPercentage(grade.Percentage)]++
	}

	// stats errors only on empty input, which is handled above.
	mean, _ := stats.Mean(percentages)
	median, _ := stats.Median(percentages)
	p25, _ := stats.Percentile(percentages, 25)
	p75, _ := stats.Percentile(percentages, 75)

	result.Mean = round2(mean)
	result.Median = round2(median)
	result.P25 = round2(p25)
	result.P75 = round2(p75)
	return result
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 16)
	builder.WriteString("analytics")
	for _, part := range parts {
		if part == "" {
			continue
		}
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}
