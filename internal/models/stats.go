package models

import "time"

// StudentCounts aggregates roster counters for the dashboard.
type StudentCounts struct {
	TotalStudents  int `db:"total_students" json:"total_students"`
	ActiveStudents int `db:"active_students" json:"active_students"`
}

// DashboardStats is the combined snapshot served to the dashboard.
type DashboardStats struct {
	Students StudentCounts `json:"students"`
	Lessons  LessonStats   `json:"lessons"`
	Payments PaymentStats  `json:"payments"`
}

// SystemMetrics is a lightweight runtime snapshot for the metrics endpoint.
type SystemMetrics struct {
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
