// Package rest provides REST API handlers
package rest

import (
	"context"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/aggregate"
	"github.com/AwesomeGRV/CloudCostGuard/internal/efficiency"
	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
	"github.com/AwesomeGRV/CloudCostGuard/internal/recommend"
	"github.com/AwesomeGRV/CloudCostGuard/internal/trend"
)

// Store defines the interface for data persistence
type Store interface {
	CostStore
	AnalyticsStore
	RecommendationStore

	// Health checks the backing database
	Health(ctx context.Context) error
}

// CostStore handles aggregated cost data
type CostStore interface {
	GetCostOverview(ctx context.Context, period aggregate.Period) (*aggregate.CostOverview, error)
	ListNamespaceCosts(ctx context.Context, period aggregate.Period) ([]aggregate.NamespaceCost, error)
	GetCostTrends(ctx context.Context, namespace string, months int) ([]trend.CostTrend, error)
	ListAzureResourceCosts(ctx context.Context, period aggregate.Period) ([]AzureResourceCost, error)
	ListNamespaceUsageMetrics(ctx context.Context, from, to time.Time) ([]NamespaceUsageMetrics, error)
}

// AnalyticsStore handles derived analytics data
type AnalyticsStore interface {
	ListComparisons(ctx context.Context, comparisonType string, limit int) ([]trend.CostComparison, error)
	ListUsageSamples(ctx context.Context, from, to time.Time) ([]ingest.UsageSample, error)
	ListTopSpenders(ctx context.Context, period aggregate.Period, limit int) ([]TopSpender, error)
}

// RecommendationStore handles recommendation data and its lifecycle
type RecommendationStore interface {
	ListRecommendations(ctx context.Context, namespace, clusterName, status, priority string, limit int) ([]recommend.OptimizationRecommendation, error)
	GetRecommendationByID(ctx context.Context, id string) (*recommend.OptimizationRecommendation, error)
	UpdateRecommendationStatus(ctx context.Context, id string, status recommend.Status) (*recommend.OptimizationRecommendation, error)
}

// Generator triggers an on-demand recommendation generation run over a
// trailing sample window. An empty clusterName selects the configured
// cluster.
type Generator interface {
	GenerateNow(ctx context.Context, clusterName string, daysBack int) (recommend.Result, error)
}

// store is the global store instance
var store Store

// generator is the global on-demand generation trigger
var generator Generator

// version reported by the health endpoint
var version = "dev"

// scoringThresholds classify efficiency in the analytics handlers
var scoringThresholds = efficiency.DefaultThresholds()

// forecastPolicy parameterizes the forecast handler
var forecastPolicy = trend.DefaultPolicy()

// SetStore sets the global store instance
func SetStore(s Store) {
	store = s
}

// GetStore returns the global store instance
func GetStore() Store {
	return store
}

// SetGenerator sets the global generation trigger
func SetGenerator(g Generator) {
	generator = g
}

// SetVersion sets the version string reported by /health
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetPolicies sets the analysis policies used by the analytics handlers
func SetPolicies(thresholds efficiency.Thresholds, forecast trend.Policy) {
	scoringThresholds = thresholds
	forecastPolicy = forecast
}
