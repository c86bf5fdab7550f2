package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

// Eligibility denial reasons surfaced to callers.
const (
	ReasonStudentNotFound    = "Student not found"
	ReasonCourseNotFound     = "Course not found"
	ReasonCourseNotActive    = "Course is not active"
	ReasonAlreadyEnrolled    = "Student is already enrolled in this course"
	ReasonCourseFull         = "Course is full"
	ReasonPrerequisitesUnmet = "Student has not met all prerequisites for this course"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	ExistsOpenByPair(ctx context.Context, studentID, courseID string) (bool, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, finalGrade *float64) error
	PassedCourseIDs(ctx context.Context, studentID string, passingGrade float64) ([]string, error)
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type courseCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Prerequisites(ctx context.Context, courseID string) ([]string, error)
	IncrementEnrolled(ctx context.Context, id string) (bool, error)
	DecrementEnrolled(ctx context.Context, id string) error
}

type gpaRecalculator interface {
	Recalculate(ctx context.Context, studentID string) (float64, error)
}

// EnrollRequest describes enrollment creation payload.
type EnrollRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	CourseID  string `json:"course_id" validate:"required"`
}

// CompleteEnrollmentRequest records the final grade when an enrollment
// completes.
type CompleteEnrollmentRequest struct {
	FinalGrade float64 `json:"final_grade" validate:"min=0,max=100"`
}

// EnrollmentService orchestrates eligibility evaluation and the enrollment
// lifecycle.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	courses   courseCatalog
	gpa       gpaRecalculator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, courses courseCatalog, gpa gpaRecalculator, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{repo: repo, students: students, courses: courses, gpa: gpa, validator: validate, logger: logger}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return enrollments, pagination, nil
}

// CheckEligibility evaluates whether a student may enroll in a course. It is
// read-only and short-circuits on the first failing check. Expected denials
// come back as a negative result with a reason, never as an error.
func (s *EnrollmentService) CheckEligibility(ctx context.Context, studentID, courseID string) (*models.EligibilityResult, error) {
	if _, err := s.students.FindByID(ctx, studentID); err != nil {
		if err == sql.ErrNoRows {
			return &models.EligibilityResult{CanEnroll: false, Reason: ReasonStudentNotFound}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if err == sql.ErrNoRows {
			return &models.EligibilityResult{CanEnroll: false, Reason: ReasonCourseNotFound}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if !course.Active {
		return &models.EligibilityResult{CanEnroll: false, Reason: ReasonCourseNotActive}, nil
	}

	enrolled, err := s.repo.ExistsOpenByPair(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return &models.EligibilityResult{CanEnroll: false, Reason: ReasonAlreadyEnrolled}, nil
	}

	if course.EnrolledCount >= course.Capacity {
		return &models.EligibilityResult{CanEnroll: false, Reason: ReasonCourseFull}, nil
	}

	prerequisites, err := s.courses.Prerequisites(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	if len(prerequisites) > 0 {
		passed, err := s.repo.PassedCourseIDs(ctx, studentID, PassingFinalGrade)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load completed courses")
		}
		if check := ResolvePrerequisites(prerequisites, passed); !check.Satisfied {
			return &models.EligibilityResult{CanEnroll: false, Reason: ReasonPrerequisitesUnmet}, nil
		}
	}

	return &models.EligibilityResult{CanEnroll: true}, nil
}

// Enroll registers a student to a course after an eligibility pre-check. The
// seat reservation re-checks capacity conditionally, so a pre-check that
// passed can still lose the race and surface a conflict.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}

	eligibility, err := s.CheckEligibility(ctx, req.StudentID, req.CourseID)
	if err != nil {
		return nil, err
	}
	if !eligibility.CanEnroll {
		return nil, denialError(eligibility.Reason)
	}

	reserved, err := s.courses.IncrementEnrolled(ctx, req.CourseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve seat")
	}
	if !reserved {
		return nil, appErrors.Clone(appErrors.ErrCourseFull, ReasonCourseFull)
	}

	enrollment := &models.Enrollment{StudentID: req.StudentID, CourseID: req.CourseID, Status: models.EnrollmentStatusActive}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		if derr := s.courses.DecrementEnrolled(ctx, req.CourseID); derr != nil {
			s.logger.Error("release seat after failed enrollment", zap.String("course_id", req.CourseID), zap.Error(derr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}
	return enrollment, nil
}

// Drop marks an active or waitlisted enrollment as dropped, freeing the seat.
func (s *EnrollmentService) Drop(ctx context.Context, id string) (*models.Enrollment, error) {
	return s.close(ctx, id, models.EnrollmentStatusDropped)
}

// Withdraw marks an active or waitlisted enrollment as withdrawn, freeing
// the seat.
func (s *EnrollmentService) Withdraw(ctx context.Context, id string) (*models.Enrollment, error) {
	return s.close(ctx, id, models.EnrollmentStatusWithdrawn)
}

// Complete records the final grade, completes the enrollment and triggers a
// synchronous GPA recomputation for the owning student. Completed seats are
// not released; the course roster keeps its size until the term rolls over.
func (s *EnrollmentService) Complete(ctx context.Context, id string, req CompleteEnrollmentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid completion payload")
	}
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment is not active")
	}

	finalGrade := req.FinalGrade
	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusCompleted, &finalGrade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete enrollment")
	}

	if s.gpa != nil {
		if _, err := s.gpa.Recalculate(ctx, enrollment.StudentID); err != nil {
			return nil, err
		}
	}

	enrollment.Status = models.EnrollmentStatusCompleted
	enrollment.FinalGrade = &finalGrade
	return enrollment, nil
}

func (s *EnrollmentService) close(ctx context.Context, id string, status models.EnrollmentStatus) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment already closed")
	}

	wasActive := enrollment.Status == models.EnrollmentStatusActive
	if err := s.repo.UpdateStatus(ctx, id, status, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	if wasActive {
		if err := s.courses.DecrementEnrolled(ctx, enrollment.CourseID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to release seat")
		}
	}

	enrollment.Status = status
	return enrollment, nil
}

func denialError(reason string) *appErrors.Error {
	switch reason {
	case ReasonStudentNotFound, ReasonCourseNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, reason)
	case ReasonAlreadyEnrolled:
		return appErrors.Clone(appErrors.ErrConflict, reason)
	case ReasonCourseFull:
		return appErrors.Clone(appErrors.ErrCourseFull, reason)
	default:
		return appErrors.Clone(appErrors.ErrPreconditionFailed, reason)
	}
}
