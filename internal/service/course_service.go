package service

import (
	"context"
	"database/sql"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	SoftDelete(ctx context.Context, id string) error
	Prerequisites(ctx context.Context, courseID string) ([]string, error)
	PrerequisiteEdges(ctx context.Context) (map[string][]string, error)
	SetPrerequisites(ctx context.Context, courseID string, prerequisiteIDs []string) error
}

// CreateCourseRequest carries the fields for adding a course to the catalog.
type CreateCourseRequest struct {
	Code        string `json:"code" validate:"required,max=20"`
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=2000"`
	Credits     int    `json:"credits" validate:"required,min=1,max=12"`
	Capacity    int    `json:"capacity" validate:"required,min=1"`
}

// UpdateCourseRequest carries a partial course update.
type UpdateCourseRequest struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,max=255"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Credits     *int    `json:"credits,omitempty" validate:"omitempty,min=1,max=12"`
	Capacity    *int    `json:"capacity,omitempty" validate:"omitempty,min=1"`
	Active      *bool   `json:"active,omitempty"`
}

// SetPrerequisitesRequest replaces the prerequisite set of a course.
type SetPrerequisitesRequest struct {
	PrerequisiteIDs []string `json:"prerequisite_ids"`
}

// CourseService manages the course catalog and its prerequisite graph.
type CourseService struct {
	repo      courseRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs CourseService.
func NewCourseService(repo courseRepository, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, validator: validate, logger: logger}
}

// List returns courses with pagination metadata.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get fetches a course together with its prerequisite IDs.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	prerequisites, err := s.repo.Prerequisites(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisites")
	}
	course.Prerequisites = prerequisites
	return course, nil
}

// Create adds a new active course to the catalog.
func (s *CourseService) Create(ctx context.Context, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	exists, err := s.repo.ExistsByCode(ctx, code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code is already in use")
	}

	course := &models.Course{
		Code:        code,
		Title:       req.Title,
		Description: req.Description,
		Credits:     req.Credits,
		Capacity:    req.Capacity,
		Active:      true,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	return course, nil
}

// Update applies a partial update. Capacity can never drop below the current
// enrolled count.
func (s *CourseService) Update(ctx context.Context, id string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Capacity != nil {
		if *req.Capacity < course.EnrolledCount {
			return nil, appErrors.Clone(appErrors.ErrValidation, "capacity cannot be lower than current enrollment")
		}
		course.Capacity = *req.Capacity
	}
	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Credits != nil {
		course.Credits = *req.Credits
	}
	if req.Active != nil {
		course.Active = *req.Active
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	return course, nil
}

// Delete soft-deletes a course from the catalog.
func (s *CourseService) Delete(ctx context.Context, id string) error {
	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if course.EnrolledCount > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "course still has active enrollments")
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	return nil
}

// SetPrerequisites replaces a course's prerequisite set. The update is
// rejected when it would make the prerequisite graph cyclic, including a
// course requiring itself.
func (s *CourseService) SetPrerequisites(ctx context.Context, id string, req SetPrerequisitesRequest) error {
	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(req.PrerequisiteIDs))
	for _, prereqID := range req.PrerequisiteIDs {
		if prereqID == id {
			return appErrors.Clone(appErrors.ErrValidation, "a course cannot be its own prerequisite")
		}
		if _, dup := seen[prereqID]; dup {
			return appErrors.Clone(appErrors.ErrValidation, "duplicate prerequisite")
		}
		seen[prereqID] = struct{}{}
		if _, err := s.repo.FindByID(ctx, prereqID); err != nil {
			if err == sql.ErrNoRows {
				return appErrors.Clone(appErrors.ErrNotFound, "prerequisite course not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite course")
		}
	}

	edges, err := s.repo.PrerequisiteEdges(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load prerequisite graph")
	}
	edges[id] = req.PrerequisiteIDs
	if hasCycleFrom(edges, id) {
		return appErrors.Clone(appErrors.ErrValidation, "prerequisite update would create a cycle")
	}

	if err := s.repo.SetPrerequisites(ctx, course.ID, req.PrerequisiteIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set prerequisites")
	}
	return nil
}

// hasCycleFrom walks the prerequisite graph from start looking for a path
// back to start.
func hasCycleFrom(edges map[string][]string, start string) bool {
	visited := map[string]struct{}{}
	var walk func(node string) bool
	walk = func(node string) bool {
		for _, next := range edges[node] {
			if next == start {
				return true
			}
			if _, done := visited[next]; done {
				continue
			}
			visited[next] = struct{}{}
			if walk(next) {
				return true
			}
		}
		return false
	}
	return walk(start)
}
