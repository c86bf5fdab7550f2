package models

import "time"

// Course represents an offered course. EnrolledCount never exceeds Capacity.
type Course struct {
	ID            string     `db:"id" json:"id"`
	Code          string     `db:"code" json:"code"`
	Title         string     `db:"title" json:"title"`
	Description   string     `db:"description" json:"description"`
	Credits       int        `db:"credits" json:"credits"`
	Capacity      int        `db:"capacity" json:"capacity"`
	EnrolledCount int        `db:"enrolled_count" json:"enrolled_count"`
	Active        bool       `db:"active" json:"active"`
	DeletedAt     *time.Time `db:"deleted_at" json:"-"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	// Prerequisites holds the IDs of courses that must be completed first.
	// Loaded from the course_prerequisites relation.
	Prerequisites []string `json:"prerequisites,omitempty"`
}

// CourseFilter encapsulates allowed search parameters for listing courses.
type CourseFilter struct {
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
