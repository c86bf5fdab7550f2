package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/academic-records-api/internal/models"
)

func TestEnrollmentRepositoryFindOpenByPair(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_id", "status", "enrolled_at", "final_grade", "updated_at"}).
		AddRow("enr-1", "stu-1", "course-1", models.EnrollmentStatusActive, time.Now(), nil, time.Now())
	mock.ExpectQuery("SELECT (.+) FROM enrollments\\s+WHERE student_id = \\$1 AND course_id = \\$2 AND status IN \\(\\$3, \\$4\\) LIMIT 1").
		WithArgs("stu-1", "course-1", models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted).
		WillReturnRows(rows)

	enrollment, err := repo.FindOpenByPair(context.Background(), "stu-1", "course-1")
	require.NoError(t, err)
	require.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryExistsOpenByPairMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM enrollments").
		WithArgs("stu-1", "course-9", models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted).
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "status", "enrolled_at", "final_grade", "updated_at"}))

	exists, err := repo.ExistsOpenByPair(context.Background(), "stu-1", "course-9")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryOpenPairs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "course_id"}).
		AddRow("stu-1", "course-1").
		AddRow("stu-2", "course-1")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT student_id, course_id FROM enrollments WHERE status IN ($1, $2)")).
		WithArgs(models.EnrollmentStatusActive, models.EnrollmentStatusWaitlisted).
		WillReturnRows(rows)

	pairs, err := repo.OpenPairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	require.Contains(t, pairs, "stu-1/course-1")
	require.Contains(t, pairs, "stu-2/course-1")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryPassedCourseIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"course_id"}).AddRow("course-1").AddRow("course-2")
	mock.ExpectQuery("SELECT course_id FROM enrollments\\s+WHERE student_id = \\$1 AND status = \\$2 AND final_grade >= \\$3").
		WithArgs("stu-1", models.EnrollmentStatusCompleted, 50.0).
		WillReturnRows(rows)

	ids, err := repo.PassedCourseIDs(context.Background(), "stu-1", 50.0)
	require.NoError(t, err)
	require.Equal(t, []string{"course-1", "course-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryCompletedByStudent(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	rows := sqlmock.NewRows([]string{"course_id", "credits", "final_grade"}).
		AddRow("course-1", 3, 90.0).
		AddRow("course-2", 4, 70.0)
	mock.ExpectQuery("SELECT e.course_id, c.credits, e.final_grade FROM enrollments e").
		WithArgs("stu-1", models.EnrollmentStatusCompleted).
		WillReturnRows(rows)

	completed, err := repo.CompletedByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, completed, 2)
	require.Equal(t, 3, completed[0].Credits)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnrollmentRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	final := 88.0
	mock.ExpectExec(regexp.QuoteMeta("UPDATE enrollments SET status = $2, final_grade = COALESCE($3, final_grade), updated_at = $4 WHERE id = $1")).
		WithArgs("enr-1", models.EnrollmentStatusCompleted, final, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "enr-1", models.EnrollmentStatusCompleted, &final)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
