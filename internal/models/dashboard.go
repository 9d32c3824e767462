package models

import "time"

// DashboardSummary is the admin overview of the catalog.
type DashboardSummary struct {
	Stats             ScholarshipStats    `json:"stats"`
	UpcomingDeadlines []ScholarshipDigest `json:"upcomingDeadlines"`
	RecentlyAdded     []ScholarshipDigest `json:"recentlyAdded"`
	System            SystemMetrics       `json:"system"`
	GeneratedAt       time.Time           `json:"generatedAt"`
}

// SystemMetrics is a point-in-time view of process counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cacheHitRatio"`
	CacheHits                uint64    `json:"cacheHits"`
	CacheMisses              uint64    `json:"cacheMisses"`
	RequestsTotal            uint64    `json:"requestsTotal"`
	AverageRequestDurationMs float64   `json:"averageRequestDurationMs"`
	ViewsQueued              uint64    `json:"viewsQueued"`
	ViewsDropped             uint64    `json:"viewsDropped"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generatedAt"`
}
