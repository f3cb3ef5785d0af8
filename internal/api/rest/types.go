// Package rest provides REST API handlers
package rest

import (
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/recommend"
	"github.com/AwesomeGRV/CloudCostGuard/internal/trend"
)

// ErrorResponse is the uniform error envelope
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Error codes returned in the envelope
const (
	CodeValidationError   = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInsufficientData  = "INSUFFICIENT_DATA"
	CodeInternalError     = "INTERNAL_ERROR"
)

// HealthResponse is the /health payload
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// AzureResourceCost is the per-resource azure cost view
type AzureResourceCost struct {
	ResourceName  string  `json:"resource_name"`
	ResourceGroup string  `json:"resource_group,omitempty"`
	ServiceName   string  `json:"service_name,omitempty"`
	ResourceType  string  `json:"resource_type,omitempty"`
	TotalCost     float64 `json:"total_cost"`
	Currency      string  `json:"currency"`
}

// NamespaceUsageMetrics is the per-namespace kubernetes usage view
type NamespaceUsageMetrics struct {
	Namespace      string  `json:"namespace"`
	PodCount       int     `json:"pod_count"`
	CPURequests    float64 `json:"cpu_requests"`
	CPUUsage       float64 `json:"cpu_usage"`
	MemoryRequests float64 `json:"memory_requests"`
	MemoryUsage    float64 `json:"memory_usage"`
	SampleCount    int     `json:"sample_count"`
}

// TopSpender is one entry of the top-spenders ranking
type TopSpender struct {
	Namespace string  `json:"namespace"`
	TotalCost float64 `json:"total_cost"`
	// Share is this namespace's fraction of the ranked total, in percent
	Share    float64 `json:"share"`
	Currency string  `json:"currency"`
}

// CostTrendsResponse wraps the monthly cost series
type CostTrendsResponse struct {
	Trends []trend.CostTrend `json:"trends"`
	Months int               `json:"months"`
}

// ComparisonList wraps stored comparisons
type ComparisonList struct {
	Comparisons []trend.CostComparison `json:"comparisons"`
	Total       int                    `json:"total"`
}

// RecommendationList wraps recommendations with the applied filters
type RecommendationList struct {
	Recommendations []recommend.OptimizationRecommendation `json:"recommendations"`
	Total           int                                    `json:"total"`
}

// UpdateRecommendationStatusRequest is the body for the status update
type UpdateRecommendationStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// GenerateRecommendationsResponse reports an on-demand generation run
type GenerateRecommendationsResponse struct {
	GeneratedCount    int    `json:"generated_count"`
	SkippedDuplicates int    `json:"skipped_duplicates"`
	Message           string `json:"message"`
}
