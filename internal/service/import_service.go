package service

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-records-api/internal/models"
	"github.com/noah-isme/academic-records-api/pkg/config"
	appErrors "github.com/noah-isme/academic-records-api/pkg/errors"
	"github.com/noah-isme/academic-records-api/pkg/tabular"
)

type importRepository interface {
	CommitStudents(ctx context.Context, students []models.Student) error
	CommitCourses(ctx context.Context, courses []models.Course) error
	CommitGrades(ctx context.Context, grades []models.Grade) error
	CommitEnrollments(ctx context.Context, enrollments []models.Enrollment) error
}

type studentIndexSource interface {
	EmailIndex(ctx context.Context) (map[string]string, error)
}

type courseIndexSource interface {
	CodesLower(ctx context.Context) (map[string]models.Course, error)
}

type enrollmentIndexSource interface {
	OpenPairs(ctx context.Context) (map[string]struct{}, error)
}

// importSchemas holds the fixed ordered column schema per import kind.
// Header comparison is exact: same names, same order, no extras.
var importSchemas = map[models.ImportKind][]string{
	models.ImportKindStudents:    {"FirstName", "LastName", "Email", "PhoneNumber", "DateOfBirth", "EnrollmentDate", "Address", "City", "State", "ZipCode"},
	models.ImportKindCourses:     {"Code", "Title", "Description", "Credits", "Capacity", "Prerequisites"},
	models.ImportKindGrades:      {"StudentEmail", "CourseCode", "GradeType", "Value", "MaxValue", "Weight"},
	models.ImportKindEnrollments: {"StudentEmail", "CourseCode", "Status", "EnrollmentDate"},
}

// ImportService runs batch imports: parse, per-row validation, then a single
// all-or-nothing write transaction per batch.
type ImportService struct {
	repo        importRepository
	students    studentIndexSource
	courses     courseIndexSource
	enrollments enrollmentIndexSource
	analytics   analyticsInvalidator
	cfg         config.ImportsConfig
	logger      *zap.Logger
}

// NewImportService constructs ImportService.
func NewImportService(repo importRepository, students studentIndexSource, courses courseIndexSource, enrollments enrollmentIndexSource, analytics analyticsInvalidator, cfg config.ImportsConfig, logger *zap.Logger) *ImportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImportService{repo: repo, students: students, courses: courses, enrollments: enrollments, analytics: analytics, cfg: cfg, logger: logger}
}

// Template returns the expected ordered header row for an import kind.
func (s *ImportService) Template(kind models.ImportKind) ([]string, error) {
	schema, ok := importSchemas[kind]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown import kind")
	}
	return append([]string(nil), schema...), nil
}

// TemplateCSV renders the header template as a one-line CSV document.
func (s *ImportService) TemplateCSV(kind models.ImportKind) (string, error) {
	schema, err := s.Template(kind)
	if err != nil {
		return "", err
	}
	return strings.Join(schema, ",") + "\n", nil
}

// ValidateSchema checks the file's header row against the kind's expected
// schema without touching the data rows.
func (s *ImportService) ValidateSchema(kind models.ImportKind, headers []string) (*models.SchemaValidation, error) {
	expected, err := s.Template(kind)
	if err != nil {
		return nil, err
	}

	result := &models.SchemaValidation{Expected: expected, Actual: headers}
	if len(headers) != len(expected) {
		result.Message = fmt.Sprintf("expected %d columns, got %d", len(expected), len(headers))
		return result, nil
	}
	for i, header := range expected {
		if !strings.EqualFold(strings.TrimSpace(headers[i]), header) {
			result.Message = fmt.Sprintf("column %d must be %q, got %q", i+1, header, headers[i])
			return result, nil
		}
	}
	result.Valid = true
	return result, nil
}

// Run executes a full batch import from a file. Row-level problems are
// collected as tolerated errors while the remaining rows proceed; a failure
// in the write transaction fails the batch as a whole.
func (s *ImportService) Run(ctx context.Context, kind models.ImportKind, file io.Reader, filename string) (*models.ImportResult, error) {
	doc, err := tabular.Read(file, filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to parse import file")
	}

	schema, err := s.ValidateSchema(kind, doc.Headers)
	if err != nil {
		return nil, err
	}
	if !schema.Valid {
		return nil, appErrors.Clone(appErrors.ErrValidation, "schema mismatch: "+schema.Message)
	}
	if s.cfg.MaxRows > 0 && len(doc.Rows) > s.cfg.MaxRows {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("import exceeds the %d row limit", s.cfg.MaxRows))
	}

	result := &models.ImportResult{Kind: kind, TotalRows: len(doc.Rows)}
	var commit func(context.Context) error

	switch kind {
	case models.ImportKindStudents:
		commit, err = s.prepareStudents(ctx, doc, result)
	case models.ImportKindCourses:
		commit, err = s.prepareCourses(ctx, doc, result)
	case models.ImportKindGrades:
		commit, err = s.prepareGrades(ctx, doc, result)
	case models.ImportKindEnrollments:
		commit, err = s.prepareEnrollments(ctx, doc, result)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown import kind")
	}
	if err != nil {
		return nil, err
	}

	if result.SuccessfulRows > 0 {
		if err := commit(ctx); err != nil {
			s.logger.Error("import commit failed", zap.String("kind", string(kind)), zap.Error(err))
			// The per-row report survives the failed commit so callers can
			// still see which rows validated.
			return result, appErrors.Wrap(err, appErrors.ErrImportFailed.Code, appErrors.ErrImportFailed.Status, "import batch failed")
		}
	}

	s.logger.Info("import committed",
		zap.String("kind", string(kind)),
		zap.Int("total_rows", result.TotalRows),
		zap.Int("successful_rows", result.SuccessfulRows),
		zap.Int("failed_rows", result.FailedRows))
	return result, nil
}

func (s *ImportService) prepareStudents(ctx context.Context, doc *tabular.Document, result *models.ImportResult) (func(context.Context) error, error) {
	existing, err := s.students.EmailIndex(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student index")
	}

	seen := map[string]struct{}{}
	var students []models.Student
	for _, row := range doc.Rows {
		record := doc.Record(row)
		email := strings.ToLower(record["Email"])
		if email == "" {
			result.AddError(row.Number, "Email is required")
			continue
		}
		if _, ok := existing[email]; ok {
			result.AddError(row.Number, fmt.Sprintf("email %s is already registered", email))
			continue
		}
		if _, dup := seen[email]; dup {
			result.AddError(row.Number, fmt.Sprintf("duplicate email %s in file", email))
			continue
		}
		if record["FirstName"] == "" || record["LastName"] == "" {
			result.AddError(row.Number, "FirstName and LastName are required")
			continue
		}
		dateOfBirth, err := time.Parse("2006-01-02", record["DateOfBirth"])
		if err != nil {
			result.AddError(row.Number, fmt.Sprintf("invalid DateOfBirth %q", record["DateOfBirth"]))
			continue
		}
		enrollmentDate := time.Now().UTC()
		if record["EnrollmentDate"] != "" {
			enrollmentDate, err = time.Parse("2006-01-02", record["EnrollmentDate"])
			if err != nil {
				result.AddError(row.Number, fmt.Sprintf("invalid EnrollmentDate %q", record["EnrollmentDate"]))
				continue
			}
		}

		seen[email] = struct{}{}
		students = append(students, models.Student{
			StudentNumber:  NewStudentNumber(enrollmentDate),
			FirstName:      record["FirstName"],
			LastName:       record["LastName"],
			Email:          email,
			PhoneNumber:    record["PhoneNumber"],
			DateOfBirth:    dateOfBirth,
			EnrollmentDate: enrollmentDate,
			Address:        record["Address"],
			City:           record["City"],
			State:          record["State"],
			ZipCode:        record["ZipCode"],
			Status:         models.StudentStatusActive,
		})
		result.SuccessfulRows++
	}
	return func(ctx context.Context) error { return s.repo.CommitStudents(ctx, students) }, nil
}

func (s *ImportService) prepareCourses(ctx context.Context, doc *tabular.Document, result *models.ImportResult) (func(context.Context) error, error) {
	existing, err := s.courses.CodesLower(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course index")
	}

	type parsedCourse struct {
		course        models.Course
		rowNumber     int
		prerequisites []string
	}

	seen := map[string]struct{}{}
	var parsed []parsedCourse
	for _, row := range doc.Rows {
		record := doc.Record(row)
		code := strings.ToUpper(record["Code"])
		if code == "" {
			result.AddError(row.Number, "Code is required")
			continue
		}
		lower := strings.ToLower(code)
		if _, ok := existing[lower]; ok {
			result.AddError(row.Number, fmt.Sprintf("course code %s already exists", code))
			continue
		}
		if _, dup := seen[lower]; dup {
			result.AddError(row.Number, fmt.Sprintf("duplicate course code %s in file", code))
			continue
		}
		if record["Title"] == "" {
			result.AddError(row.Number, "Title is required")
			continue
		}
		credits, err := strconv.Atoi(record["Credits"])
		if err != nil || credits < 1 {
			result.AddError(row.Number, fmt.Sprintf("invalid Credits %q", record["Credits"]))
			continue
		}
		capacity, err := strconv.Atoi(record["Capacity"])
		if err != nil || capacity < 1 {
			result.AddError(row.Number, fmt.Sprintf("invalid Capacity %q", record["Capacity"]))
			continue
		}

		seen[lower] = struct{}{}
		entry := parsedCourse{
			course: models.Course{
				ID:          uuid.NewString(),
				Code:        code,
				Title:       record["Title"],
				Description: record["Description"],
				Credits:     credits,
				Capacity:    capacity,
				Active:      true,
			},
			rowNumber: row.Number,
		}
		if record["Prerequisites"] != "" {
			entry.prerequisites = strings.Split(record["Prerequisites"], ";")
		}
		parsed = append(parsed, entry)
	}

	// Prerequisite codes may reference existing courses or other rows in the
	// same file, so resolution runs after the whole file is read.
	fileIDs := make(map[string]string, len(parsed))
	for _, entry := range parsed {
		fileIDs[strings.ToLower(entry.course.Code)] = entry.course.ID
	}

	var courses []models.Course
	for _, entry := range parsed {
		resolved := true
		for _, rawCode := range entry.prerequisites {
			prereqCode := strings.ToLower(strings.TrimSpace(rawCode))
			if prereqCode == "" {
				continue
			}
			if id, ok := fileIDs[prereqCode]; ok {
				entry.course.Prerequisites = append(entry.course.Prerequisites, id)
				continue
			}
			if course, ok := existing[prereqCode]; ok {
				entry.course.Prerequisites = append(entry.course.Prerequisites, course.ID)
				continue
			}
			result.AddError(entry.rowNumber, fmt.Sprintf("unknown prerequisite code %q", strings.TrimSpace(rawCode)))
			resolved = false
			break
		}
		if !resolved {
			continue
		}
		courses = append(courses, entry.course)
		result.SuccessfulRows++
	}

	return func(ctx context.Context) error { return s.repo.CommitCourses(ctx, courses) }, nil
}

func (s *ImportService) prepareGrades(ctx context.Context, doc *tabular.Document, result *models.ImportResult) (func(context.Context) error, error) {
	emails, courses, err := s.loadIndexes(ctx)
	if err != nil {
		return nil, err
	}

	var grades []models.Grade
	for _, row := range doc.Rows {
		record := doc.Record(row)
		studentID, ok := emails[strings.ToLower(record["StudentEmail"])]
		if !ok {
			result.AddError(row.Number, fmt.Sprintf("unknown student email %q", record["StudentEmail"]))
			continue
		}
		course, ok := courses[strings.ToLower(record["CourseCode"])]
		if !ok {
			result.AddError(row.Number, fmt.Sprintf("unknown course code %q", record["CourseCode"]))
			continue
		}
		gradeType := models.GradeType(strings.ToUpper(record["GradeType"]))
		if !gradeType.Valid() {
			result.AddError(row.Number, fmt.Sprintf("unknown grade type %q", record["GradeType"]))
			continue
		}
		value, err := strconv.ParseFloat(record["Value"], 64)
		if err != nil || value < 0 {
			result.AddError(row.Number, fmt.Sprintf("invalid Value %q", record["Value"]))
			continue
		}
		maxValue, err := strconv.ParseFloat(record["MaxValue"], 64)
		if err != nil || maxValue <= 0 {
			result.AddError(row.Number, fmt.Sprintf("invalid MaxValue %q", record["MaxValue"]))
			continue
		}
		if value > maxValue {
			result.AddError(row.Number, "Value must not exceed MaxValue")
			continue
		}
		weight := 0.0
		if record["Weight"] != "" {
			weight, err = strconv.ParseFloat(record["Weight"], 64)
			if err != nil || weight < 0 || weight > 1 {
				result.AddError(row.Number, fmt.Sprintf("invalid Weight %q", record["Weight"]))
				continue
			}
		}

		calc, err := CalculateGrade(value, maxValue)
		if err != nil {
			result.AddError(row.Number, err.Error())
			continue
		}
		grades = append(grades, models.Grade{
			StudentID:   studentID,
			CourseID:    course.ID,
			GradeType:   gradeType,
			Value:       value,
			MaxValue:    maxValue,
			Percentage:  calc.Percentage,
			LetterGrade: calc.LetterGrade,
			Weight:      weight,
		})
		result.SuccessfulRows++
	}

	courseIDs := map[string]struct{}{}
	for _, grade := range grades {
		courseIDs[grade.CourseID] = struct{}{}
	}
	return func(ctx context.Context) error {
		if err := s.repo.CommitGrades(ctx, grades); err != nil {
			return err
		}
		if s.analytics != nil {
			for courseID := range courseIDs {
				s.analytics.InvalidateCourse(ctx, courseID)
			}
		}
		return nil
	}, nil
}

func (s *ImportService) prepareEnrollments(ctx context.Context, doc *tabular.Document, result *models.ImportResult) (func(context.Context) error, error) {
	emails, courses, err := s.loadIndexes(ctx)
	if err != nil {
		return nil, err
	}
	openPairs, err := s.enrollments.OpenPairs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment index")
	}

	seen := map[string]struct{}{}
	// Seats reserved by ACTIVE rows earlier in the file, per course.
	reserved := map[string]int{}
	var enrollments []models.Enrollment
	for _, row := range doc.Rows {
		record := doc.Record(row)
		studentID, ok := emails[strings.ToLower(record["StudentEmail"])]
		if !ok {
			result.AddError(row.Number, fmt.Sprintf("unknown student email %q", record["StudentEmail"]))
			continue
		}
		course, ok := courses[strings.ToLower(record["CourseCode"])]
		if !ok {
			result.AddError(row.Number, fmt.Sprintf("unknown course code %q", record["CourseCode"]))
			continue
		}
		pair := studentID + "/" + course.ID
		if _, dup := seen[pair]; dup {
			result.AddError(row.Number, "duplicate student/course pair in file")
			continue
		}
		status := models.EnrollmentStatusActive
		if record["Status"] != "" {
			status = models.EnrollmentStatus(strings.ToUpper(record["Status"]))
			if !validEnrollmentStatus(status) {
				result.AddError(row.Number, fmt.Sprintf("unknown status %q", record["Status"]))
				continue
			}
		}
		if !status.Terminal() {
			if _, open := openPairs[pair]; open {
				result.AddError(row.Number, fmt.Sprintf("student already has an open enrollment in %s", course.Code))
				continue
			}
		}
		enrolledAt := time.Now().UTC()
		if record["EnrollmentDate"] != "" {
			enrolledAt, err = time.Parse("2006-01-02", record["EnrollmentDate"])
			if err != nil {
				result.AddError(row.Number, fmt.Sprintf("invalid EnrollmentDate %q", record["EnrollmentDate"]))
				continue
			}
		}
		if status == models.EnrollmentStatusActive {
			if course.EnrolledCount+reserved[course.ID] >= course.Capacity {
				result.AddError(row.Number, fmt.Sprintf("course %s is full", course.Code))
				continue
			}
			reserved[course.ID]++
		}

		seen[pair] = struct{}{}
		enrollments = append(enrollments, models.Enrollment{
			StudentID:  studentID,
			CourseID:   course.ID,
			Status:     status,
			EnrolledAt: enrolledAt,
		})
		result.SuccessfulRows++
	}
	return func(ctx context.Context) error { return s.repo.CommitEnrollments(ctx, enrollments) }, nil
}

func (s *ImportService) loadIndexes(ctx context.Context) (map[string]string, map[string]models.Course, error) {
	emails, err := s.students.EmailIndex(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student index")
	}
	courses, err := s.courses.CodesLower(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course index")
	}
	return emails, courses, nil
}

func validEnrollmentStatus(status models.EnrollmentStatus) bool {
	switch status {
	case models.EnrollmentStatusActive, models.EnrollmentStatusCompleted, models.EnrollmentStatusDropped,
		models.EnrollmentStatusWithdrawn, models.EnrollmentStatusWaitlisted:
		return true
	}
	return false
}
