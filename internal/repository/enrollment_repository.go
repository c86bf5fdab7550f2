package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// EnrollmentRepository manages persistence for enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollment details matching the provided filters.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
        JOIN students s ON s.id = e.student_id
        JOIN courses c ON c.id = e.course_id`
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.status, e.enrolled_at, e.final_grade, e.updated_at,
        s.first_name || ' ' || s.last_name AS student_name, s.student_number, c.code AS course_code, c.title AS course_title
        %s ORDER BY e.enrolled_at %s LIMIT %d OFFSET %d`, base, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID fetches an enrollment by ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, status, enrolled_at, final_grade, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindOpenByPair returns the non-terminal enrollment for a (student, course)
// pair if one exists. At most one can exist at a time.
func (r *EnrollmentRepository) FindOpenByPair(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, course_id, status, enrolled_at, final_grade, updated_at FROM enrollments
        WHERE student_id = $1 AND course_id = $2 AND status IN ($3, $4) LIMIT 1`
	var enrollment models.Enrollment
	err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID, models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted)
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ExistsOpenByPair checks for a non-terminal enrollment on the pair.
func (r *EnrollmentRepository) ExistsOpenByPair(ctx context.Context, studentID, courseID string) (bool, error) {
	if _, err := r.FindOpenByPair(ctx, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check open enrollment: %w", err)
	}
	return true, nil
}

// OpenPairs returns every (student, course) pair currently holding a
// non-terminal enrollment, keyed as "studentID/courseID". Batch imports use
// it to validate incoming rows against existing enrollments.
func (r *EnrollmentRepository) OpenPairs(ctx context.Context) (map[string]struct{}, error) {
	const query = `SELECT student_id, course_id FROM enrollments WHERE status IN ($1, $2)`
	var rows []struct {
		StudentID string `db:"student_id"`
		CourseID  string `db:"course_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted); err != nil {
		return nil, fmt.Errorf("list open enrollment pairs: %w", err)
	}
	pairs := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		pairs[row.StudentID+"/"+row.CourseID] = struct{}{}
	}
	return pairs, nil
}

// Create inserts a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	prepareEnrollment(enrollment)
	const query = `INSERT INTO enrollments (id, student_id, course_id, status, enrolled_at, final_grade, updated_at)
        VALUES (:id, :student_id, :course_id, :status, :enrolled_at, :final_grade, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus moves an enrollment to a new status, optionally recording the
// final grade.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, finalGrade *float64) error {
	const query = `UPDATE enrollments SET status = $2, final_grade = COALESCE($3, final_grade), updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, finalGrade, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// CompletedByStudent returns the student's completed, graded enrollments
// joined to course credit values, the input to the GPA aggregation.
func (r *EnrollmentRepository) CompletedByStudent(ctx context.Context, studentID string) ([]models.CompletedCourse, error) {
	const query = `SELECT e.course_id, c.credits, e.final_grade FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.status = $2 AND e.final_grade IS NOT NULL`
	var completed []models.CompletedCourse
	if err := r.db.SelectContext(ctx, &completed, query, studentID, models.EnrollmentStatusCompleted); err != nil {
		return nil, fmt.Errorf("list completed enrollments: %w", err)
	}
	return completed, nil
}

// PassedCourseIDs returns the courses the student completed with a passing
// final grade (grade point of at least 2.0 on the 4-point scale).
func (r *EnrollmentRepository) PassedCourseIDs(ctx context.Context, studentID string, passingGrade float64) ([]string, error) {
	const query = `SELECT course_id FROM enrollments
        WHERE student_id = $1 AND status = $2 AND final_grade >= $3`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID, models.EnrollmentStatusCompleted, passingGrade); err != nil {
		return nil, fmt.Errorf("list passed courses: %w", err)
	}
	return ids, nil
}

func prepareEnrollment(enrollment *models.Enrollment) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	enrollment.UpdatedAt = now
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
}
