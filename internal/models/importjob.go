package models

// ImportKind identifies which entity type a batch import targets.
type ImportKind string

// Supported import kinds.
const (
	ImportKindStudents    ImportKind = "students"
	ImportKindCourses     ImportKind = "courses"
	ImportKindGrades      ImportKind = "grades"
	ImportKindEnrollments ImportKind = "enrollments"
)

// Valid reports whether the kind is supported.
func (k ImportKind) Valid() bool {
	switch k {
	case ImportKindStudents, ImportKindCourses, ImportKindGrades, ImportKindEnrollments:
		return true
	}
	return false
}

// ImportRowError is a tolerated per-row failure. It is data, not control
// flow; collecting one does not abort the batch.
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarises a batch import run. A batch with row failures is
// still successful as a batch; only a commit-phase failure fails the whole
// import.
type ImportResult struct {
	Kind           ImportKind       `json:"kind"`
	TotalRows      int              `json:"total_rows"`
	SuccessfulRows int              `json:"successful_rows"`
	FailedRows     int              `json:"failed_rows"`
	Errors         []ImportRowError `json:"errors,omitempty"`
}

// AddError records a tolerated row failure.
func (r *ImportResult) AddError(row int, message string) {
	r.FailedRows++
	r.Errors = append(r.Errors, ImportRowError{Row: row, Message: message})
}

// SchemaValidation is the outcome of the pre-flight header check.
type SchemaValidation struct {
	Valid    bool     `json:"valid"`
	Expected []string `json:"expected"`
	Actual   []string `json:"actual,omitempty"`
	Message  string   `json:"message,omitempty"`
}
