package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/academic-records-api/internal/models"
)

// ImportRepository owns the transactional write phase of batch imports.
// Every Commit* method runs inside a single transaction: either every
// record in the batch lands or none do.
type ImportRepository struct {
	db *sqlx.DB
}

// NewImportRepository constructs an ImportRepository.
func NewImportRepository(db *sqlx.DB) *ImportRepository {
	return &ImportRepository{db: db}
}

// CommitStudents inserts the validated student batch.
func (r *ImportRepository) CommitStudents(ctx context.Context, students []models.Student) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO students (id, student_number, first_name, last_name, email, phone_number, date_of_birth, enrollment_date,
            address, city, state, zip_code, status, gpa, credits_earned, credits_required, created_at, updated_at)
            VALUES (:id, :student_number, :first_name, :last_name, :email, :phone_number, :date_of_birth, :enrollment_date,
            :address, :city, :state, :zip_code, :status, :gpa, :credits_earned, :credits_required, :created_at, :updated_at)`
		for i := range students {
			prepareStudent(&students[i])
			if _, err := tx.NamedExecContext(ctx, query, &students[i]); err != nil {
				return fmt.Errorf("insert student %s: %w", students[i].Email, err)
			}
		}
		return nil
	})
}

// CommitCourses inserts the validated course batch together with its
// prerequisite edges.
func (r *ImportRepository) CommitCourses(ctx context.Context, courses []models.Course) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO courses (id, code, title, description, credits, capacity, enrolled_count, active, created_at, updated_at)
            VALUES (:id, :code, :title, :description, :credits, :capacity, :enrolled_count, :active, :created_at, :updated_at)`
		for i := range courses {
			prepareCourse(&courses[i])
			if _, err := tx.NamedExecContext(ctx, query, &courses[i]); err != nil {
				return fmt.Errorf("insert course %s: %w", courses[i].Code, err)
			}
			for _, prerequisiteID := range courses[i].Prerequisites {
				if _, err := tx.ExecContext(ctx, "INSERT INTO course_prerequisites (course_id, prerequisite_id) VALUES ($1, $2)", courses[i].ID, prerequisiteID); err != nil {
					return fmt.Errorf("insert course %s prerequisite: %w", courses[i].Code, err)
				}
			}
		}
		return nil
	})
}

// CommitGrades inserts the validated grade batch.
func (r *ImportRepository) CommitGrades(ctx context.Context, grades []models.Grade) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO grades (id, student_id, course_id, enrollment_id, grade_type, value, max_value, percentage, letter_grade, weight, published, created_at, updated_at)
            VALUES (:id, :student_id, :course_id, :enrollment_id, :grade_type, :value, :max_value, :percentage, :letter_grade, :weight, :published, :created_at, :updated_at)`
		for i := range grades {
			prepareGrade(&grades[i])
			if _, err := tx.NamedExecContext(ctx, query, &grades[i]); err != nil {
				return fmt.Errorf("insert grade row: %w", err)
			}
		}
		return nil
	})
}

// CommitEnrollments inserts the validated enrollment batch, reserving a seat
// for each active enrollment inside the same transaction.
func (r *ImportRepository) CommitEnrollments(ctx context.Context, enrollments []models.Enrollment) error {
	return r.inTx(ctx, func(tx *sqlx.Tx) error {
		const query = `INSERT INTO enrollments (id, student_id, course_id, status, enrolled_at, final_grade, updated_at)
            VALUES (:id, :student_id, :course_id, :status, :enrolled_at, :final_grade, :updated_at)`
		for i := range enrollments {
			prepareEnrollment(&enrollments[i])
			if _, err := tx.NamedExecContext(ctx, query, &enrollments[i]); err != nil {
				return fmt.Errorf("insert enrollment row: %w", err)
			}
			if enrollments[i].Status != models.EnrollmentStatusActive {
				continue
			}
			result, err := tx.ExecContext(ctx, `UPDATE courses SET enrolled_count = enrolled_count + 1, updated_at = $2
                WHERE id = $1 AND enrolled_count < capacity`, enrollments[i].CourseID, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("reserve seat: %w", err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("reserve seat: %w", err)
			}
			if affected == 0 {
				return fmt.Errorf("course %s is full", enrollments[i].CourseID)
			}
		}
		return nil
	})
}

func (r *ImportRepository) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import tx: %w", err)
	}
	return nil
}
