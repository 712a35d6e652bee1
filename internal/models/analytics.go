package models

import "time"

// RequestStatusCount is a rollup bucket keyed by lifecycle state.
type RequestStatusCount struct {
	Status RequestStatus `db:"status" json:"status"`
	Count  int           `db:"count" json:"count"`
}

// RequestPriorityCount is a rollup bucket keyed by priority.
type RequestPriorityCount struct {
	Priority RequestPriority `db:"priority" json:"priority"`
	Count    int             `db:"count" json:"count"`
}

// RequestCategoryCount is a rollup bucket keyed by category slug.
type RequestCategoryCount struct {
	Category string `db:"category" json:"category"`
	Count    int    `db:"count" json:"count"`
}

// RequestDailyCount is one day of created/resolved volumes.
type RequestDailyCount struct {
	Day      time.Time `db:"day" json:"day"`
	Created  int       `db:"created" json:"created"`
	Resolved int       `db:"resolved" json:"resolved"`
}

// RequestAnalytics aggregates the read-only rollups over the request store.
// Soft-deleted requests are excluded from every bucket.
type RequestAnalytics struct {
	Total      int                    `json:"total"`
	ByStatus   []RequestStatusCount   `json:"by_status"`
	ByPriority []RequestPriorityCount `json:"by_priority"`
	ByCategory []RequestCategoryCount `json:"by_category"`
	Daily      []RequestDailyCount    `json:"daily"`
	From       time.Time              `json:"from"`
	To         time.Time              `json:"to"`
}

// SystemMetrics is a lightweight snapshot of process-level counters for
// the admin analytics endpoint.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	ConnectedClients         int       `json:"connected_clients"`
	GeneratedAt              time.Time `json:"generated_at"`
}
