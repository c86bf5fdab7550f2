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

// CourseRepository manages persistence for courses and their prerequisite
// relation.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

const courseColumns = `id, code, title, description, credits, capacity, enrolled_count, active, deleted_at, created_at, updated_at`

// List returns live courses matching the provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	base := "FROM courses"
	args := []interface{}{}
	conditions := []string{"deleted_at IS NULL"}

	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(code) LIKE $%d OR LOWER(title) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"code":       "code",
		"title":      "title",
		"credits":    "credits",
		"created_at": "created_at",
	}
	if sortBy == "" {
		sortBy = "code"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", courseColumns, base, column, order, size, offset)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID fetches a live course by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE id = $1 AND deleted_at IS NULL", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCode fetches a live course by its unique code.
func (r *CourseRepository) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE LOWER(code) = LOWER($1) AND deleted_at IS NULL", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, code); err != nil {
		return nil, err
	}
	return &course, nil
}

// ExistsByCode checks if a course with the given code exists, optionally excluding an ID.
func (r *CourseRepository) ExistsByCode(ctx context.Context, code string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM courses WHERE LOWER(code) = LOWER($1) AND deleted_at IS NULL"
	args := []interface{}{code}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check course code: %w", err)
	}
	return true, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	prepareCourse(course)
	const query = `INSERT INTO courses (id, code, title, description, credits, capacity, enrolled_count, active, created_at, updated_at)
        VALUES (:id, :code, :title, :description, :credits, :capacity, :enrolled_count, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course. The enrolled counter is excluded; it
// moves only through IncrementEnrolled/DecrementEnrolled.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET code = :code, title = :title, description = :description, credits = :credits,
        capacity = :capacity, active = :active, updated_at = :updated_at
        WHERE id = :id AND deleted_at IS NULL`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// SoftDelete flags a course as removed without deleting the row.
func (r *CourseRepository) SoftDelete(ctx context.Context, id string) error {
	const query = `UPDATE courses SET deleted_at = $2, updated_at = $2 WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("soft delete course: %w", err)
	}
	return nil
}

// IncrementEnrolled bumps the enrolled counter only while seats remain. It
// returns false when the conditional update matched no row, i.e. the course
// filled up between the eligibility pre-check and the write.
func (r *CourseRepository) IncrementEnrolled(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE courses SET enrolled_count = enrolled_count + 1, updated_at = $2
        WHERE id = $1 AND deleted_at IS NULL AND active AND enrolled_count < capacity`
	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("increment enrolled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("increment enrolled: %w", err)
	}
	return affected > 0, nil
}

// DecrementEnrolled frees a seat, never dropping below zero.
func (r *CourseRepository) DecrementEnrolled(ctx context.Context, id string) error {
	const query = `UPDATE courses SET enrolled_count = GREATEST(enrolled_count - 1, 0), updated_at = $2
        WHERE id = $1 AND deleted_at IS NULL`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("decrement enrolled: %w", err)
	}
	return nil
}

// Prerequisites returns the prerequisite course IDs for a course.
func (r *CourseRepository) Prerequisites(ctx context.Context, courseID string) ([]string, error) {
	var ids []string
	const query = `SELECT prerequisite_id FROM course_prerequisites WHERE course_id = $1 ORDER BY prerequisite_id`
	if err := r.db.SelectContext(ctx, &ids, query, courseID); err != nil {
		return nil, fmt.Errorf("list prerequisites: %w", err)
	}
	return ids, nil
}

// PrerequisiteEdges returns every (course, prerequisite) pair. Used for
// cycle detection when the relation changes.
func (r *CourseRepository) PrerequisiteEdges(ctx context.Context) (map[string][]string, error) {
	rows := []struct {
		CourseID       string `db:"course_id"`
		PrerequisiteID string `db:"prerequisite_id"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, "SELECT course_id, prerequisite_id FROM course_prerequisites"); err != nil {
		return nil, fmt.Errorf("list prerequisite edges: %w", err)
	}
	edges := make(map[string][]string, len(rows))
	for _, row := range rows {
		edges[row.CourseID] = append(edges[row.CourseID], row.PrerequisiteID)
	}
	return edges, nil
}

// SetPrerequisites replaces the prerequisite set for a course atomically.
func (r *CourseRepository) SetPrerequisites(ctx context.Context, courseID string, prerequisiteIDs []string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin set prerequisites: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM course_prerequisites WHERE course_id = $1", courseID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear prerequisites: %w", err)
	}
	for _, prerequisiteID := range prerequisiteIDs {
		if _, err := tx.ExecContext(ctx, "INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2)", courseID, prerequisiteID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert prerequisite: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit prerequisites: %w", err)
	}
	return nil
}

// CodesLower returns live courses keyed by lowercased code. Used by the
// batch importer for duplicate and reference checks.
func (r *CourseRepository) CodesLower(ctx context.Context) (map[string]models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE deleted_at IS NULL", courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query); err != nil {
		return nil, fmt.Errorf("list course codes: %w", err)
	}
	byCode := make(map[string]models.Course, len(courses))
	for _, course := range courses {
		byCode[strings.ToLower(course.Code)] = course
	}
	return byCode, nil
}

func prepareCourse(course *models.Course) {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
}
