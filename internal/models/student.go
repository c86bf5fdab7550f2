package models

import "time"

// StudentStatus represents the academic standing of a student.
type StudentStatus string

// Possible student statuses.
const (
	StudentStatusActive    StudentStatus = "ACTIVE"
	StudentStatusProbation StudentStatus = "PROBATION"
	StudentStatusSuspended StudentStatus = "SUSPENDED"
	StudentStatusGraduated StudentStatus = "GRADUATED"
	StudentStatusWithdrawn StudentStatus = "WITHDRAWN"
	StudentStatusLeave     StudentStatus = "LEAVE"
)

// Student represents a learner registered in the institution. GPA and
// CreditsEarned are derived aggregates written only by the GPA service.
type Student struct {
	ID              string        `db:"id" json:"id"`
	StudentNumber   string        `db:"student_number" json:"student_number"`
	FirstName       string        `db:"first_name" json:"first_name"`
	LastName        string        `db:"last_name" json:"last_name"`
	Email           string        `db:"email" json:"email"`
	PhoneNumber     string        `db:"phone_number" json:"phone_number"`
	DateOfBirth     time.Time     `db:"date_of_birth" json:"date_of_birth"`
	EnrollmentDate  time.Time     `db:"enrollment_date" json:"enrollment_date"`
	Address         string        `db:"address" json:"address"`
	City            string        `db:"city" json:"city"`
	State           string        `db:"state" json:"state"`
	ZipCode         string        `db:"zip_code" json:"zip_code"`
	Status          StudentStatus `db:"status" json:"status"`
	GPA             float64       `db:"gpa" json:"gpa"`
	CreditsEarned   int           `db:"credits_earned" json:"credits_earned"`
	CreditsRequired int           `db:"credits_required" json:"credits_required"`
	DeletedAt       *time.Time    `db:"deleted_at" json:"-"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search    string
	Status    StudentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
