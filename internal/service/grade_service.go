package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type gradeRepository interface {
	List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, int, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	Update(ctx context.Context, grade *models.Grade) error
	SetPublished(ctx context.Context, id string, published bool) error
	Delete(ctx context.Context, id string) error
}

type analyticsInvalidator interface {
	InvalidateCourse(ctx context.Context, courseID string)
}

// CreateGradeRequest carries a new grade entry. Percentage and letter grade
// are never accepted from callers.
type CreateGradeRequest struct {
	StudentID    string           `json:"student_id" validate:"required"`
	CourseID     string           `json:"course_id" validate:"required"`
	EnrollmentID *string          `json:"enrollment_id,omitempty"`
	GradeType    models.GradeType `json:"grade_type" validate:"required"`
	Value        float64          `json:"value" validate:"min=0"`
	MaxValue     float64          `json:"max_value" validate:"required,gt=0"`
	Weight       float64          `json:"weight" validate:"min=0,max=1"`
}

// UpdateGradeRequest carries a partial grade update.
type UpdateGradeRequest struct {
	GradeType *models.GradeType `json:"grade_type,omitempty"`
	Value     *float64          `json:"value,omitempty" validate:"omitempty,min=0"`
	MaxValue  *float64          `json:"max_value,omitempty" validate:"omitempty,gt=0"`
	Weight    *float64          `json:"weight,omitempty" validate:"omitempty,min=0,max=1"`
}

// GradeService manages grade entries and keeps their derived fields in sync.
type GradeService struct {
	repo      gradeRepository
	analytics analyticsInvalidator
	gpa       gpaRecalculator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(repo gradeRepository, analytics analyticsInvalidator, gpa gpaRecalculator, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, analytics: analytics, gpa: gpa, validator: validate, logger: logger}
}

// List returns grades with pagination metadata.
func (s *GradeService) List(ctx context.Context, filter models.GradeFilter) ([]models.Grade, *models.Pagination, error) {
	grades, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return grades, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches a single grade entry.
func (s *GradeService) Get(ctx context.Context, id string) (*models.Grade, error) {
	grade, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}
	return grade, nil
}

// Create records a grade entry, deriving percentage and letter grade.
func (s *GradeService) Create(ctx context.Context, req CreateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !req.GradeType.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grade type")
	}
	if req.Value > req.MaxValue {
		return nil, appErrors.Clone(appErrors.ErrValidation, "value must not exceed max value")
	}

	calc, err := CalculateGrade(req.Value, req.MaxValue)
	if err != nil {
		return nil, err
	}

	grade := &models.Grade{
		StudentID:    req.StudentID,
		CourseID:     req.CourseID,
		EnrollmentID: req.EnrollmentID,
		GradeType:    req.GradeType,
		Value:        req.Value,
		MaxValue:     req.MaxValue,
		Percentage:   calc.Percentage,
		LetterGrade:  calc.LetterGrade,
		Weight:       req.Weight,
	}
	if err := s.repo.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade")
	}
	s.invalidate(ctx, grade.CourseID)
	s.recalculateGPA(ctx, grade)
	return grade, nil
}

// Update applies a partial update and recomputes the derived fields whenever
// the value or max value changes.
func (s *GradeService) Update(ctx context.Context, id string, req UpdateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	grade, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.GradeType != nil {
		if !req.GradeType.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grade type")
		}
		grade.GradeType = *req.GradeType
	}
	if req.Value != nil {
		grade.Value = *req.Value
	}
	if req.MaxValue != nil {
		grade.MaxValue = *req.MaxValue
	}
	if req.Weight != nil {
		grade.Weight = *req.Weight
	}
	if grade.Value > grade.MaxValue {
		return nil, appErrors.Clone(appErrors.ErrValidation, "value must not exceed max value")
	}

	calc, err := CalculateGrade(grade.Value, grade.MaxValue)
	if err != nil {
		return nil, err
	}
	grade.Percentage = calc.Percentage
	grade.LetterGrade = calc.LetterGrade

	if err := s.repo.Update(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}
	s.invalidate(ctx, grade.CourseID)
	s.recalculateGPA(ctx, grade)
	return grade, nil
}

// Publish makes the grade visible to the student.
func (s *GradeService) Publish(ctx context.Context, id string) (*models.Grade, error) {
	return s.setPublished(ctx, id, true)
}

// Unpublish hides the grade from the student again.
func (s *GradeService) Unpublish(ctx context.Context, id string) (*models.Grade, error) {
	return s.setPublished(ctx, id, false)
}

// Delete removes a grade entry.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	grade, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	s.invalidate(ctx, grade.CourseID)
	return nil
}

func (s *GradeService) setPublished(ctx context.Context, id string, published bool) (*models.Grade, error) {
	grade, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if grade.Published == published {
		return grade, nil
	}
	if err := s.repo.SetPublished(ctx, id, published); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update publication state")
	}
	grade.Published = published
	s.invalidate(ctx, grade.CourseID)
	return grade, nil
}

func (s *GradeService) invalidate(ctx context.Context, courseID string) {
	if s.analytics != nil {
		s.analytics.InvalidateCourse(ctx, courseID)
	}
}

// recalculateGPA refreshes the student's GPA after a FINAL grade write. The
// aggregation reads completed enrollments, so this is a no-op until the
// enrollment itself completes.
func (s *GradeService) recalculateGPA(ctx context.Context, grade *models.Grade) {
	if s.gpa == nil || grade.GradeType != models.GradeTypeFinal {
		return
	}
	if _, err := s.gpa.Recalculate(ctx, grade.StudentID); err != nil {
		s.logger.Warn("gpa recompute failed", zap.String("student_id", grade.StudentID), zap.Error(err))
	}
}
