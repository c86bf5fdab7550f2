package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
)

type mockImportRepo struct {
	students    []models.Student
	courses     []models.Course
	grades      []models.Grade
	enrollments []models.Enrollment
	commitErr   error
}

func (m *mockImportRepo) CommitStudents(_ context.Context, students []models.Student) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.students = students
	return nil
}

func (m *mockImportRepo) CommitCourses(_ context.Context, courses []models.Course) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.courses = courses
	return nil
}

func (m *mockImportRepo) CommitGrades(_ context.Context, grades []models.Grade) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.grades = grades
	return nil
}

func (m *mockImportRepo) CommitEnrollments(_ context.Context, enrollments []models.Enrollment) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.enrollments = enrollments
	return nil
}

type mockStudentIndex struct {
	emails map[string]string
}

func (m *mockStudentIndex) EmailIndex(_ context.Context) (map[string]string, error) {
	if m.emails == nil {
		return map[string]string{}, nil
	}
	return m.emails, nil
}

type mockCourseIndex struct {
	codes map[string]models.Course
}

func (m *mockCourseIndex) CodesLower(_ context.Context) (map[string]models.Course, error) {
	if m.codes == nil {
		return map[string]models.Course{}, nil
	}
	return m.codes, nil
}

type mockEnrollmentIndex struct {
	pairs map[string]struct{}
}

func (m *mockEnrollmentIndex) OpenPairs(_ context.Context) (map[string]struct{}, error) {
	if m.pairs == nil {
		return map[string]struct{}{}, nil
	}
	return m.pairs, nil
}

func newImportService(repo *mockImportRepo, students *mockStudentIndex, courses *mockCourseIndex) *ImportService {
	return NewImportService(repo, students, courses, &mockEnrollmentIndex{}, nil, config.ImportsConfig{MaxRows: 1000}, nil)
}

func studentRow(first, email, dob string) string {
	return strings.Join([]string{first, "Doe", email, "555-0100", dob, "2024-09-01", "1 Main St", "Springfield", "IL", "62701"}, ",")
}

func TestRunStudentsImportToleratesRowErrors(t *testing.T) {
	header := "FirstName,LastName,Email,PhoneNumber,DateOfBirth,EnrollmentDate,Address,City,State,ZipCode"
	rows := []string{header}
	for _, email := range []string{"a@x.edu", "b@x.edu", "c@x.edu", "d@x.edu", "e@x.edu", "f@x.edu", "g@x.edu"} {
		rows = append(rows, studentRow("Ann", email, "2004-02-10"))
	}
	rows = append(rows,
		studentRow("Bad", "h@x.edu", "not-a-date"),
		studentRow("Bad", "i@x.edu", "2004-13-40"),
		studentRow("Dup", "a@x.edu", "2004-02-10"),
	)
	file := strings.NewReader(strings.Join(rows, "\n"))

	repo := &mockImportRepo{}
	svc := newImportService(repo, &mockStudentIndex{}, &mockCourseIndex{})

	result, err := svc.Run(context.Background(), models.ImportKindStudents, file, "students.csv")
	require.NoError(t, err)
	assert.Equal(t, 10, result.TotalRows)
	assert.Equal(t, 7, result.SuccessfulRows)
	assert.Equal(t, 3, result.FailedRows)
	assert.Len(t, result.Errors, 3)
	assert.Len(t, repo.students, 7)
}

func TestRunRejectsSchemaMismatch(t *testing.T) {
	file := strings.NewReader("Email,Name\na@x.edu,Ann\n")
	svc := newImportService(&mockImportRepo{}, &mockStudentIndex{}, &mockCourseIndex{})

	_, err := svc.Run(context.Background(), models.ImportKindStudents, file, "students.csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRunCommitFailureFailsWholeBatch(t *testing.T) {
	header := "FirstName,LastName,Email,PhoneNumber,DateOfBirth,EnrollmentDate,Address,City,State,ZipCode"
	file := strings.NewReader(header + "\n" + studentRow("Ann", "a@x.edu", "2004-02-10"))

	repo := &mockImportRepo{commitErr: errors.New("tx aborted")}
	svc := newImportService(repo, &mockStudentIndex{}, &mockCourseIndex{})

	result, err := svc.Run(context.Background(), models.ImportKindStudents, file, "students.csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrImportFailed.Code, appErrors.FromError(err).Code)

	// The per-row report survives the failed commit.
	require.NotNil(t, result)
	assert.Equal(t, 1, result.SuccessfulRows)
	assert.Equal(t, 0, result.FailedRows)
}

func TestRunEnforcesRowLimit(t *testing.T) {
	header := "FirstName,LastName,Email,PhoneNumber,DateOfBirth,EnrollmentDate,Address,City,State,ZipCode"
	rows := []string{header, studentRow("Ann", "a@x.edu", "2004-02-10"), studentRow("Bea", "b@x.edu", "2004-02-10")}
	file := strings.NewReader(strings.Join(rows, "\n"))

	svc := NewImportService(&mockImportRepo{}, &mockStudentIndex{}, &mockCourseIndex{}, &mockEnrollmentIndex{}, nil, config.ImportsConfig{MaxRows: 1}, nil)

	_, err := svc.Run(context.Background(), models.ImportKindStudents, file, "students.csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRunCoursesResolvesInFilePrerequisites(t *testing.T) {
	file := strings.NewReader(strings.Join([]string{
		"Code,Title,Description,Credits,Capacity,Prerequisites",
		"CS101,Intro,Basics,3,30,",
		"CS201,Data Structures,,4,25,CS101",
		"CS301,Algorithms,,4,25,CS201;MATH100",
	}, "\n"))

	repo := &mockImportRepo{}
	courses := &mockCourseIndex{codes: map[string]models.Course{
		"math100": {ID: "math-id", Code: "MATH100"},
	}}
	svc := newImportService(repo, &mockStudentIndex{}, courses)

	result, err := svc.Run(context.Background(), models.ImportKindCourses, file, "courses.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, result.SuccessfulRows)
	require.Len(t, repo.courses, 3)

	byCode := map[string]models.Course{}
	for _, c := range repo.courses {
		byCode[c.Code] = c
	}
	assert.Equal(t, []string{byCode["CS101"].ID}, byCode["CS201"].Prerequisites)
	assert.ElementsMatch(t, []string{byCode["CS201"].ID, "math-id"}, byCode["CS301"].Prerequisites)
}

func TestRunCoursesRejectsUnknownPrerequisite(t *testing.T) {
	file := strings.NewReader(strings.Join([]string{
		"Code,Title,Description,Credits,Capacity,Prerequisites",
		"CS201,Data Structures,,4,25,GHOST999",
	}, "\n"))

	repo := &mockImportRepo{}
	svc := newImportService(repo, &mockStudentIndex{}, &mockCourseIndex{})

	result, err := svc.Run(context.Background(), models.ImportKindCourses, file, "courses.csv")
	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessfulRows)
	assert.Equal(t, 1, result.FailedRows)
	assert.Empty(t, repo.courses)
}

func TestRunGradesDerivesFieldsAndResolvesKeys(t *testing.T) {
	file := strings.NewReader(strings.Join([]string{
		"StudentEmail,CourseCode,GradeType,Value,MaxValue,Weight",
		"a@x.edu,CS101,MIDTERM,42,50,0.3",
		"ghost@x.edu,CS101,MIDTERM,42,50,0.3",
		"a@x.edu,CS101,POP_QUIZ,42,50,0.3",
	}, "\n"))

	repo := &mockImportRepo{}
	students := &mockStudentIndex{emails: map[string]string{"a@x.edu": "s1"}}
	courses := &mockCourseIndex{codes: map[string]models.Course{"cs101": {ID: "c1", Code: "CS101"}}}
	svc := newImportService(repo, students, courses)

	result, err := svc.Run(context.Background(), models.ImportKindGrades, file, "grades.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulRows)
	assert.Equal(t, 2, result.FailedRows)
	require.Len(t, repo.grades, 1)
	assert.Equal(t, "s1", repo.grades[0].StudentID)
	assert.Equal(t, "c1", repo.grades[0].CourseID)
	assert.InDelta(t, 84.0, repo.grades[0].Percentage, 0.0001)
	assert.Equal(t, "B", repo.grades[0].LetterGrade)
}

func TestRunEnrollmentsRejectsDuplicatePairs(t *testing.T) {
	file := strings.NewReader(strings.Join([]string{
		"StudentEmail,CourseCode,Status,EnrollmentDate",
		"a@x.edu,CS101,ACTIVE,2024-09-01",
		"a@x.edu,CS101,ACTIVE,2024-09-01",
	}, "\n"))

	repo := &mockImportRepo{}
	students := &mockStudentIndex{emails: map[string]string{"a@x.edu": "s1"}}
	courses := &mockCourseIndex{codes: map[string]models.Course{"cs101": {ID: "c1", Code: "CS101", Capacity: 30}}}
	svc := newImportService(repo, students, courses)

	result, err := svc.Run(context.Background(), models.ImportKindEnrollments, file, "enrollments.csv")
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessfulRows)
	assert.Equal(t, 1, result.FailedRows)
	require.Len(t, repo.enrollments, 1)
	assert.Equal(t, models.EnrollmentStatusActive, repo.enrollments[0].Status)
}

func TestRunEnrollmentsRejectsExistingOpenEnrollment(t *testing.T) {
	file := strings.NewReader(strings.Join([]string{
		"StudentEmail,CourseCode,Status,EnrollmentDate",
		"a@x.edu,CS101,ACTIVE,2024-09-01",
		"a@x.edu,CS102,COMPLETED,2024-09-01",
	}, "\n"))

	repo := &mockImportRepo{}
	students := &mockStudentIndex{emails: map[string]string{"a@x.edu": "s1"}}
	courses := &mockCourseIndex{codes: map[string]models.Course{
		"cs101": {ID: "c1", Code: "CS101", Capacity: 30},
		"cs102": {ID: "c2", Code: "CS102", Capacity: 30},
	}}
	enrollments := &mockEnrollmentIndex{pairs: map[string]struct{}{
		"s1/c1": {},
		"s1/c2": {},
	}}
	svc := NewImportService(repo, students, courses, enrollments, nil, config.ImportsConfig{MaxRows: 1000}, nil)

	result, err := svc.Run(context.Background(), models.ImportKindEnrollments, file, "enrollments.csv")
	require.NoError(t, err)

	// The ACTIVE row collides with the open enrollment on the same pair; the
	// COMPLETED row is terminal and may coexist with it.
	assert.Equal(t, 1, result.SuccessfulRows)
	assert.Equal(t, 1, result.FailedRows)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Message, "open enrollment")
	require.Len(t, repo.enrollments, 1)
	assert.Equal(t, models.EnrollmentStatusCompleted, repo.enrollments[0].Status)
}

func TestRunEnrollmentsRejectsFullCourse(t *testing.T) {
	file := strings.NewReader(strings.Join([]string{
		"StudentEmail,CourseCode,Status,EnrollmentDate",
		"a@x.edu,CS101,ACTIVE,2024-09-01",
		"b@x.edu,CS101,ACTIVE,2024-09-01",
		"b@x.edu,CS102,ACTIVE,2024-09-01",
	}, "\n"))

	repo := &mockImportRepo{}
	students := &mockStudentIndex{emails: map[string]string{"a@x.edu": "s1", "b@x.edu": "s2"}}
	courses := &mockCourseIndex{codes: map[string]models.Course{
		"cs101": {ID: "c1", Code: "CS101", Capacity: 2, EnrolledCount: 1},
		"cs102": {ID: "c2", Code: "CS102", Capacity: 1, EnrolledCount: 1},
	}}
	svc := newImportService(repo, students, courses)

	result, err := svc.Run(context.Background(), models.ImportKindEnrollments, file, "enrollments.csv")
	require.NoError(t, err)

	// CS101 has one free seat: the first row takes it, the second exceeds
	// capacity once the in-file reservation is counted. CS102 is already full.
	assert.Equal(t, 1, result.SuccessfulRows)
	assert.Equal(t, 2, result.FailedRows)
	require.Len(t, repo.enrollments, 1)
	assert.Equal(t, "s1", repo.enrollments[0].StudentID)
	for _, rowErr := range result.Errors {
		assert.Contains(t, rowErr.Message, "is full")
	}
}

func TestValidateSchemaExactOrder(t *testing.T) {
	svc := newImportService(&mockImportRepo{}, &mockStudentIndex{}, &mockCourseIndex{})

	valid, err := svc.ValidateSchema(models.ImportKindGrades, []string{"StudentEmail", "CourseCode", "GradeType", "Value", "MaxValue", "Weight"})
	require.NoError(t, err)
	assert.True(t, valid.Valid)

	swapped, err := svc.ValidateSchema(models.ImportKindGrades, []string{"CourseCode", "StudentEmail", "GradeType", "Value", "MaxValue", "Weight"})
	require.NoError(t, err)
	assert.False(t, swapped.Valid)
	assert.NotEmpty(t, swapped.Message)
}

func TestTemplateCSV(t *testing.T) {
	svc := newImportService(&mockImportRepo{}, &mockStudentIndex{}, &mockCourseIndex{})

	csv, err := svc.TemplateCSV(models.ImportKindEnrollments)
	require.NoError(t, err)
	assert.Equal(t, "StudentEmail,CourseCode,Status,EnrollmentDate\n", csv)

	_, err = svc.TemplateCSV(models.ImportKind("rooms"))
	require.Error(t, err)
}
