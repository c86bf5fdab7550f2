package models

import "time"

// GradeType classifies a grade entry.
type GradeType string

// Possible grade types.
const (
	GradeTypeAssignment    GradeType = "ASSIGNMENT"
	GradeTypeQuiz          GradeType = "QUIZ"
	GradeTypeMidterm       GradeType = "MIDTERM"
	GradeTypeFinal         GradeType = "FINAL"
	GradeTypeProject       GradeType = "PROJECT"
	GradeTypeParticipation GradeType = "PARTICIPATION"
)

// Valid reports whether the grade type is one of the known values.
func (t GradeType) Valid() bool {
	switch t {
	case GradeTypeAssignment, GradeTypeQuiz, GradeTypeMidterm, GradeTypeFinal, GradeTypeProject, GradeTypeParticipation:
		return true
	}
	return false
}

// Grade represents a single scored item. Percentage and LetterGrade are
// derived from Value and MaxValue and recomputed on every mutation of either.
type Grade struct {
	ID           string    `db:"id" json:"id"`
	StudentID    string    `db:"student_id" json:"student_id"`
	CourseID     string    `db:"course_id" json:"course_id"`
	EnrollmentID *string   `db:"enrollment_id" json:"enrollment_id,omitempty"`
	GradeType    GradeType `db:"grade_type" json:"grade_type"`
	Value        float64   `db:"value" json:"value"`
	MaxValue     float64   `db:"max_value" json:"max_value"`
	Percentage   float64   `db:"percentage" json:"percentage"`
	LetterGrade  string    `db:"letter_grade" json:"letter_grade"`
	Weight       float64   `db:"weight" json:"weight"`
	Published    bool      `db:"published" json:"published"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// GradeFilter allows querying of grade entries.
type GradeFilter struct {
	StudentID string
	CourseID  string
	GradeType GradeType
	Published *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
