package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/internal/service"
	"github.com/noah-isme/academic-records-api/pkg/config"
	"github.com/noah-isme/academic-records-api/pkg/response"
)

type importRepoStub struct {
	students  []models.Student
	commitErr error
}

func (s *importRepoStub) CommitStudents(_ context.Context, students []models.Student) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.students = students
	return nil
}

func (s *importRepoStub) CommitCourses(_ context.Context, _ []models.Course) error { return nil }

func (s *importRepoStub) CommitGrades(_ context.Context, _ []models.Grade) error { return nil }

func (s *importRepoStub) CommitEnrollments(_ context.Context, _ []models.Enrollment) error {
	return nil
}

type studentIndexStub struct{}

func (studentIndexStub) EmailIndex(_ context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

type courseIndexStub struct{}

func (courseIndexStub) CodesLower(_ context.Context) (map[string]models.Course, error) {
	return map[string]models.Course{}, nil
}

type enrollmentIndexStub struct{}

func (enrollmentIndexStub) OpenPairs(_ context.Context) (map[string]struct{}, error) {
	return map[string]struct{}{}, nil
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func newImportTestContext(t *testing.T, w *httptest.ResponseRecorder, kind, query, filename, content string) (*gin.Context, *importRepoStub) {
	t.Helper()
	return newImportTestContextWithRepo(t, w, &importRepoStub{}, kind, query, filename, content)
}

func newImportTestContextWithRepo(t *testing.T, w *httptest.ResponseRecorder, repo *importRepoStub, kind, query, filename, content string) (*gin.Context, *importRepoStub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := service.NewImportService(repo, studentIndexStub{}, courseIndexStub{}, enrollmentIndexStub{}, nil, config.ImportsConfig{MaxRows: 100}, nil)
	h := NewImportHandler(svc, nil, 1<<20)

	c, _ := gin.CreateTestContext(w)
	body, contentType := multipartBody(t, filename, content)
	req, err := http.NewRequest(http.MethodPost, "/imports/"+kind+query, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	c.Request = req
	c.Params = gin.Params{{Key: "kind", Value: kind}}
	h.Run(c)
	return c, repo
}

func TestImportHandlerRunCommitsValidRows(t *testing.T) {
	content := "FirstName,LastName,Email,PhoneNumber,DateOfBirth,EnrollmentDate,Address,City,State,ZipCode\n" +
		"Ann,Lee,ann@uni.edu,555-0100,2004-02-10,2024-09-01,1 Main St,Springfield,IL,62701\n"

	w := httptest.NewRecorder()
	_, repo := newImportTestContext(t, w, "students", "", "students.csv", content)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	payload, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var result models.ImportResult
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, 1, result.SuccessfulRows)
	assert.Len(t, repo.students, 1)
}

func TestImportHandlerValidateOnlySkipsCommit(t *testing.T) {
	content := "FirstName,LastName,Email,PhoneNumber,DateOfBirth,EnrollmentDate,Address,City,State,ZipCode\n" +
		"Ann,Lee,ann@uni.edu,555-0100,2004-02-10,2024-09-01,1 Main St,Springfield,IL,62701\n"

	w := httptest.NewRecorder()
	_, repo := newImportTestContext(t, w, "students", "?validate_only=true", "students.csv", content)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, repo.students)
	assert.Contains(t, w.Body.String(), `"valid":true`)
}

func TestImportHandlerRejectsUnknownKind(t *testing.T) {
	w := httptest.NewRecorder()
	newImportTestContext(t, w, "rooms", "", "rooms.csv", "A,B\n1,2\n")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportHandlerFailedCommitReturnsReport(t *testing.T) {
	content := "FirstName,LastName,Email,PhoneNumber,DateOfBirth,EnrollmentDate,Address,City,State,ZipCode\n" +
		"Ann,Lee,ann@uni.edu,555-0100,2004-02-10,2024-09-01,1 Main St,Springfield,IL,62701\n"

	w := httptest.NewRecorder()
	repo := &importRepoStub{commitErr: errors.New("tx aborted")}
	newImportTestContextWithRepo(t, w, repo, "students", "", "students.csv", content)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "IMPORT_FAILED", envelope.Error.Code)
	require.NotNil(t, envelope.Data)
	payload, err := json.Marshal(envelope.Data)
	require.NoError(t, err)
	var result models.ImportResult
	require.NoError(t, json.Unmarshal(payload, &result))
	assert.Equal(t, 1, result.SuccessfulRows)
}

func TestImportHandlerTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := service.NewImportService(&importRepoStub{}, studentIndexStub{}, courseIndexStub{}, enrollmentIndexStub{}, nil, config.ImportsConfig{}, nil)
	h := NewImportHandler(svc, nil, 0)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(http.MethodGet, "/imports/templates/grades", nil)
	require.NoError(t, err)
	c.Request = req
	c.Params = gin.Params{{Key: "kind", Value: "grades"}}
	h.Template(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "StudentEmail,CourseCode,GradeType,Value,MaxValue,Weight\n", w.Body.String())
}
