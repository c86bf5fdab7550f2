package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type mockCourseRepo struct {
	courses       map[string]*models.Course
	codes         map[string]string
	prerequisites map[string][]string
	setCalls      int
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{
		courses:       map[string]*models.Course{},
		codes:         map[string]string{},
		prerequisites: map[string][]string{},
	}
}

func (m *mockCourseRepo) List(_ context.Context, _ models.CourseFilter) ([]models.Course, int, error) {
	return nil, 0, nil
}

func (m *mockCourseRepo) FindByID(_ context.Context, id string) (*models.Course, error) {
	c, ok := m.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *c
	return &copied, nil
}

func (m *mockCourseRepo) ExistsByCode(_ context.Context, code string, excludeID string) (bool, error) {
	id, ok := m.codes[code]
	return ok && id != excludeID, nil
}

func (m *mockCourseRepo) Create(_ context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = course.Code
	}
	m.courses[course.ID] = course
	m.codes[course.Code] = course.ID
	return nil
}

func (m *mockCourseRepo) Update(_ context.Context, course *models.Course) error {
	m.courses[course.ID] = course
	return nil
}

func (m *mockCourseRepo) SoftDelete(_ context.Context, id string) error {
	delete(m.courses, id)
	return nil
}

func (m *mockCourseRepo) Prerequisites(_ context.Context, courseID string) ([]string, error) {
	return m.prerequisites[courseID], nil
}

func (m *mockCourseRepo) PrerequisiteEdges(_ context.Context) (map[string][]string, error) {
	edges := map[string][]string{}
	for id, prereqs := range m.prerequisites {
		edges[id] = append([]string(nil), prereqs...)
	}
	return edges, nil
}

func (m *mockCourseRepo) SetPrerequisites(_ context.Context, courseID string, prerequisiteIDs []string) error {
	m.prerequisites[courseID] = prerequisiteIDs
	m.setCalls++
	return nil
}

func courseFixture() *mockCourseRepo {
	repo := newMockCourseRepo()
	for _, id := range []string{"c1", "c2", "c3"} {
		repo.courses[id] = &models.Course{ID: id, Code: id, Title: id, Credits: 3, Capacity: 30, Active: true}
		repo.codes[id] = id
	}
	return repo
}

func TestCreateCourseNormalizesCode(t *testing.T) {
	repo := newMockCourseRepo()
	svc := NewCourseService(repo, nil, nil)

	course, err := svc.Create(context.Background(), CreateCourseRequest{Code: " cs101 ", Title: "Intro", Credits: 3, Capacity: 30})
	require.NoError(t, err)
	assert.Equal(t, "CS101", course.Code)
	assert.True(t, course.Active)
}

func TestCreateCourseRejectsDuplicateCode(t *testing.T) {
	repo := courseFixture()
	svc := NewCourseService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateCourseRequest{Code: "c1", Title: "Dup", Credits: 3, Capacity: 30})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUpdateCourseRejectsCapacityBelowEnrollment(t *testing.T) {
	repo := courseFixture()
	repo.courses["c1"].EnrolledCount = 25
	svc := NewCourseService(repo, nil, nil)

	capacity := 20
	_, err := svc.Update(context.Background(), "c1", UpdateCourseRequest{Capacity: &capacity})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteCourseWithEnrollmentsRejected(t *testing.T) {
	repo := courseFixture()
	repo.courses["c1"].EnrolledCount = 1
	svc := NewCourseService(repo, nil, nil)

	err := svc.Delete(context.Background(), "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestSetPrerequisitesStoresSet(t *testing.T) {
	repo := courseFixture()
	svc := NewCourseService(repo, nil, nil)

	err := svc.SetPrerequisites(context.Background(), "c2", SetPrerequisitesRequest{PrerequisiteIDs: []string{"c1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, repo.prerequisites["c2"])
}

func TestSetPrerequisitesRejectsSelf(t *testing.T) {
	repo := courseFixture()
	svc := NewCourseService(repo, nil, nil)

	err := svc.SetPrerequisites(context.Background(), "c1", SetPrerequisitesRequest{PrerequisiteIDs: []string{"c1"}})
	require.Error(t, err)
	assert.Zero(t, repo.setCalls)
}

func TestSetPrerequisitesRejectsCycle(t *testing.T) {
	repo := courseFixture()
	repo.prerequisites["c2"] = []string{"c1"}
	repo.prerequisites["c3"] = []string{"c2"}
	svc := NewCourseService(repo, nil, nil)

	// c1 -> c3 -> c2 -> c1 would close the loop.
	err := svc.SetPrerequisites(context.Background(), "c1", SetPrerequisitesRequest{PrerequisiteIDs: []string{"c3"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, repo.setCalls)
}

func TestSetPrerequisitesUnknownCourseRejected(t *testing.T) {
	repo := courseFixture()
	svc := NewCourseService(repo, nil, nil)

	err := svc.SetPrerequisites(context.Background(), "c1", SetPrerequisitesRequest{PrerequisiteIDs: []string{"ghost"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
