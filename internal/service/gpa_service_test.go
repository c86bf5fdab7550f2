package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

type mockCompletedSource struct {
	completed map[string][]models.CompletedCourse
}

func (m *mockCompletedSource) CompletedByStudent(_ context.Context, studentID string) ([]models.CompletedCourse, error) {
	return m.completed[studentID], nil
}

type mockGpaWriter struct {
	gpa           map[string]float64
	creditsEarned map[string]int
	calls         int
}

func newMockGpaWriter() *mockGpaWriter {
	return &mockGpaWriter{gpa: map[string]float64{}, creditsEarned: map[string]int{}}
}

func (m *mockGpaWriter) UpdateGPA(_ context.Context, id string, gpa float64, creditsEarned int) error {
	m.gpa[id] = gpa
	m.creditsEarned[id] = creditsEarned
	m.calls++
	return nil
}

func TestRecalculateWeightsByCredits(t *testing.T) {
	source := &mockCompletedSource{completed: map[string][]models.CompletedCourse{
		"s1": {
			{CourseID: "c1", Credits: 3, FinalGrade: 90},
			{CourseID: "c2", Credits: 4, FinalGrade: 70},
		},
	}}
	writer := newMockGpaWriter()
	svc := NewGpaService(source, writer, nil)

	gpa, err := svc.Recalculate(context.Background(), "s1")
	require.NoError(t, err)

	// (3.6*3 + 2.8*4) / 7 = 3.142857... rounds to 3.14
	assert.InDelta(t, 3.14, gpa, 0.0001)
	assert.Equal(t, 3.14, writer.gpa["s1"])
	assert.Equal(t, 7, writer.creditsEarned["s1"])
}

func TestRecalculateNoCompletedCoursesSkipsUpdate(t *testing.T) {
	source := &mockCompletedSource{completed: map[string][]models.CompletedCourse{}}
	writer := newMockGpaWriter()
	svc := NewGpaService(source, writer, nil)

	gpa, err := svc.Recalculate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Zero(t, gpa)
	assert.Zero(t, writer.calls)
}

func TestRecalculateIgnoresZeroCreditCourses(t *testing.T) {
	source := &mockCompletedSource{completed: map[string][]models.CompletedCourse{
		"s1": {
			{CourseID: "c1", Credits: 0, FinalGrade: 100},
			{CourseID: "c2", Credits: 3, FinalGrade: 75},
		},
	}}
	writer := newMockGpaWriter()
	svc := NewGpaService(source, writer, nil)

	gpa, err := svc.Recalculate(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, gpa)
	assert.Equal(t, 3, writer.creditsEarned["s1"])
}

func TestRecalculateFailedCoursesCountAgainstGPA(t *testing.T) {
	source := &mockCompletedSource{completed: map[string][]models.CompletedCourse{
		"s1": {
			{CourseID: "c1", Credits: 3, FinalGrade: 100},
			{CourseID: "c2", Credits: 3, FinalGrade: 40},
		},
	}}
	writer := newMockGpaWriter()
	svc := NewGpaService(source, writer, nil)

	gpa, err := svc.Recalculate(context.Background(), "s1")
	require.NoError(t, err)

	// (4.0*3 + 1.6*3) / 6 = 2.8; only the passed course earns credits.
	assert.InDelta(t, 2.8, gpa, 0.0001)
	assert.Equal(t, 3, writer.creditsEarned["s1"])
}

func TestGradePointClamped(t *testing.T) {
	assert.Equal(t, 4.0, gradePoint(100))
	assert.Equal(t, 4.0, gradePoint(120))
	assert.Equal(t, 0.0, gradePoint(-5))
	assert.InDelta(t, 2.0, gradePoint(50), 0.0001)
}
