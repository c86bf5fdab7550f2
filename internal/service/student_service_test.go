package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type mockStudentRepo struct {
	students map[string]*models.Student
	emails   map[string]string
	deleted  []string
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: map[string]*models.Student{}, emails: map[string]string{}}
}

func (m *mockStudentRepo) List(_ context.Context, _ models.StudentFilter) ([]models.Student, int, error) {
	return nil, 0, nil
}

func (m *mockStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (m *mockStudentRepo) ExistsByEmail(_ context.Context, email string, excludeID string) (bool, error) {
	id, ok := m.emails[email]
	return ok && id != excludeID, nil
}

func (m *mockStudentRepo) Create(_ context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = student.Email
	}
	m.students[student.ID] = student
	m.emails[student.Email] = student.ID
	return nil
}

func (m *mockStudentRepo) Update(_ context.Context, student *models.Student) error {
	m.students[student.ID] = student
	m.emails[student.Email] = student.ID
	return nil
}

func (m *mockStudentRepo) SoftDelete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.students, id)
	return nil
}

func TestCreateStudentNormalizesEmailAndGeneratesNumber(t *testing.T) {
	repo := newMockStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Create(context.Background(), CreateStudentRequest{
		FirstName:   "Ann",
		LastName:    "Lee",
		Email:       " Ann.Lee@Uni.EDU ",
		DateOfBirth: "2004-02-10",
	})
	require.NoError(t, err)
	assert.Equal(t, "ann.lee@uni.edu", student.Email)
	assert.Equal(t, models.StudentStatusActive, student.Status)
	assert.True(t, strings.HasPrefix(student.StudentNumber, "STU-"))
}

func TestCreateStudentRejectsDuplicateEmail(t *testing.T) {
	repo := newMockStudentRepo()
	repo.emails["ann@uni.edu"] = "existing"
	svc := NewStudentService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		FirstName:   "Ann",
		LastName:    "Lee",
		Email:       "ann@uni.edu",
		DateOfBirth: "2004-02-10",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCreateStudentRejectsBadDate(t *testing.T) {
	svc := NewStudentService(newMockStudentRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateStudentRequest{
		FirstName:   "Ann",
		LastName:    "Lee",
		Email:       "ann@uni.edu",
		DateOfBirth: "02/10/2004",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateStudentRejectsUnknownStatus(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["s1"] = &models.Student{ID: "s1", Email: "ann@uni.edu", Status: models.StudentStatusActive}
	svc := NewStudentService(repo, nil, nil)

	status := models.StudentStatus("EXPELLED")
	_, err := svc.Update(context.Background(), "s1", UpdateStudentRequest{Status: &status})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDeleteStudentSoftDeletes(t *testing.T) {
	repo := newMockStudentRepo()
	repo.students["s1"] = &models.Student{ID: "s1", Email: "ann@uni.edu"}
	svc := NewStudentService(repo, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "s1"))
	assert.Equal(t, []string{"s1"}, repo.deleted)

	err := svc.Delete(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
