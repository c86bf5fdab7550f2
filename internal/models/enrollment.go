package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses. ACTIVE and WAITLISTED are non-terminal; a
// student may hold at most one non-terminal enrollment per course.
const (
	EnrollmentStatusActive     EnrollmentStatus = "ACTIVE"
	EnrollmentStatusCompleted  EnrollmentStatus = "COMPLETED"
	EnrollmentStatusDropped    EnrollmentStatus = "DROPPED"
	EnrollmentStatusWithdrawn  EnrollmentStatus = "WITHDRAWN"
	EnrollmentStatusWaitlisted EnrollmentStatus = "WAITLISTED"
)

// Terminal reports whether the status ends the enrollment lifecycle.
func (s EnrollmentStatus) Terminal() bool {
	switch s {
	case EnrollmentStatusCompleted, EnrollmentStatusDropped, EnrollmentStatusWithdrawn:
		return true
	}
	return false
}

// Enrollment captures a student's registration to a course. FinalGrade is a
// 0-100 value recorded when the enrollment completes.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	Status     EnrollmentStatus `db:"status" json:"status"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	FinalGrade *float64         `db:"final_grade" json:"final_grade,omitempty"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName   string `db:"student_name" json:"student_name"`
	StudentNumber string `db:"student_number" json:"student_number"`
	CourseCode    string `db:"course_code" json:"course_code"`
	CourseTitle   string `db:"course_title" json:"course_title"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CompletedCourse joins a completed enrollment to its course credit value,
// the unit the GPA aggregation works on.
type CompletedCourse struct {
	CourseID   string  `db:"course_id" json:"course_id"`
	Credits    int     `db:"credits" json:"credits"`
	FinalGrade float64 `db:"final_grade" json:"final_grade"`
}

// EligibilityResult is the outcome of an enrollment pre-check. Reason is
// empty when CanEnroll is true.
type EligibilityResult struct {
	CanEnroll bool   `json:"can_enroll"`
	Reason    string `json:"reason,omitempty"`
}
