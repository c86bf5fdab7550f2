package models

import "time"

// CourseGradeStats summarises published grade percentages for a course.
type CourseGradeStats struct {
	CourseID     string         `json:"course_id"`
	Count        int            `json:"count"`
	Mean         float64        `json:"mean"`
	Median       float64        `json:"median"`
	P25          float64        `json:"p25"`
	P75          float64        `json:"p75"`
	Distribution map[string]int `json:"distribution"`
}

// StudentStanding pairs a student's GPA with progress toward required credits.
type StudentStanding struct {
	StudentID       string  `db:"student_id" json:"student_id"`
	GPA             float64 `db:"gpa" json:"gpa"`
	CreditsEarned   int     `db:"credits_earned" json:"credits_earned"`
	CreditsRequired int     `db:"credits_required" json:"credits_required"`
}

// AnalyticsSystemMetrics exposes aggregated instrumentation counters.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
