package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ExistsByEmail(ctx context.Context, email string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	SoftDelete(ctx context.Context, id string) error
}

// CreateStudentRequest carries the fields for registering a student.
type CreateStudentRequest struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	PhoneNumber     string `json:"phone_number" validate:"max=30"`
	DateOfBirth     string `json:"date_of_birth" validate:"required"`
	EnrollmentDate  string `json:"enrollment_date"`
	Address         string `json:"address" validate:"max=255"`
	City            string `json:"city" validate:"max=100"`
	State           string `json:"state" validate:"max=100"`
	ZipCode         string `json:"zip_code" validate:"max=20"`
	CreditsRequired int    `json:"credits_required" validate:"min=0"`
}

// UpdateStudentRequest carries a partial student update. GPA and earned
// credits are not writable here.
type UpdateStudentRequest struct {
	FirstName       *string               `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName        *string               `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Email           *string               `json:"email,omitempty" validate:"omitempty,email"`
	PhoneNumber     *string               `json:"phone_number,omitempty" validate:"omitempty,max=30"`
	Address         *string               `json:"address,omitempty" validate:"omitempty,max=255"`
	City            *string               `json:"city,omitempty" validate:"omitempty,max=100"`
	State           *string               `json:"state,omitempty" validate:"omitempty,max=100"`
	ZipCode         *string               `json:"zip_code,omitempty" validate:"omitempty,max=20"`
	Status          *models.StudentStatus `json:"status,omitempty"`
	CreditsRequired *int                  `json:"credits_required,omitempty" validate:"omitempty,min=0"`
}

// StudentService manages the student roster.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create registers a new student with a generated student number.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	dateOfBirth, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date_of_birth must be YYYY-MM-DD")
	}
	enrollmentDate := time.Now().UTC()
	if req.EnrollmentDate != "" {
		enrollmentDate, err = time.Parse("2006-01-02", req.EnrollmentDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "enrollment_date must be YYYY-MM-DD")
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	exists, err := s.repo.ExistsByEmail(ctx, email, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	}

	student := &models.Student{
		StudentNumber:   NewStudentNumber(enrollmentDate),
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Email:           email,
		PhoneNumber:     req.PhoneNumber,
		DateOfBirth:     dateOfBirth,
		EnrollmentDate:  enrollmentDate,
		Address:         req.Address,
		City:            req.City,
		State:           req.State,
		ZipCode:         req.ZipCode,
		Status:          models.StudentStatusActive,
		CreditsRequired: req.CreditsRequired,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Update applies a partial update to a student record.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*req.Email))
		if email != student.Email {
			exists, err := s.repo.ExistsByEmail(ctx, email, id)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
			}
			if exists {
				return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
			}
			student.Email = email
		}
	}
	if req.FirstName != nil {
		student.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		student.LastName = *req.LastName
	}
	if req.PhoneNumber != nil {
		student.PhoneNumber = *req.PhoneNumber
	}
	if req.Address != nil {
		student.Address = *req.Address
	}
	if req.City != nil {
		student.City = *req.City
	}
	if req.State != nil {
		student.State = *req.State
	}
	if req.ZipCode != nil {
		student.ZipCode = *req.ZipCode
	}
	if req.Status != nil {
		if !validStudentStatus(*req.Status) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown student status")
		}
		student.Status = *req.Status
	}
	if req.CreditsRequired != nil {
		student.CreditsRequired = *req.CreditsRequired
	}

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete soft-deletes a student. Enrollments and grades are retained for
// transcript history.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

// NewStudentNumber generates a human-readable student number keyed to the
// enrollment year.
func NewStudentNumber(enrollmentDate time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("STU-%d-%s", enrollmentDate.Year(), suffix)
}

func validStudentStatus(status models.StudentStatus) bool {
	switch status {
	case models.StudentStatusActive, models.StudentStatusProbation, models.StudentStatusSuspended,
		models.StudentStatusGraduated, models.StudentStatusWithdrawn, models.StudentStatusLeave:
		return true
	}
	return false
}
