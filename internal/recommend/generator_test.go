// Package recommend generates optimization recommendations and owns their
// status lifecycle.
package recommend

import (
	"testing"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/aggregate"
	"github.com/AwesomeGRV/CloudCostGuard/internal/efficiency"
	"github.com/AwesomeGRV/CloudCostGuard/internal/trend"
)

func testInputs() Inputs {
	return Inputs{
		ClusterName: "prod",
		Workloads: []efficiency.WorkloadMetric{
			{
				Namespace:         "web",
				DeploymentName:    "frontend",
				AvgCPUUtilization: 0.20,
				CPURequests:       4.0,
				CPUUsage:          0.8,
				SampleCount:       30,
			},
		},
		NamespaceCosts: map[string]aggregate.NamespaceCost{
			"web": {
				Namespace:     "web",
				ClusterName:   "prod",
				TotalCost:     400,
				CostBreakdown: map[aggregate.Category]float64{aggregate.CategoryCompute: 400},
			},
		},
		Now: time.Date(2026, time.August, 23, 12, 0, 0, 0, time.UTC),
	}
}

func TestGenerateRightSizeDown(t *testing.T) {
	gen := NewGenerator(DefaultPolicy())

	result := gen.Generate(testInputs())

	if len(result.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(result.Created))
	}
	rec := result.Created[0]

	if rec.RecommendationType != TypeRightSizeDown {
		t.Errorf("type = %v, want right_size_down", rec.RecommendationType)
	}
	if rec.ResourceType != "cpu" {
		t.Errorf("resource type = %v, want cpu", rec.ResourceType)
	}
	if rec.CurrentValue != 4.0 || rec.RecommendedValue != 2.0 {
		t.Errorf("values = %v -> %v, want 4 -> 2", rec.CurrentValue, rec.RecommendedValue)
	}
	// Namespace compute cost is 400 over 4 requested cores, so trimming two
	// cores saves 200.
	if rec.PotentialSavings != 200 {
		t.Errorf("savings = %v, want 200", rec.PotentialSavings)
	}
	if rec.Priority != PriorityHigh {
		t.Errorf("priority = %v, want high (savings exceed 10%% of namespace cost)", rec.Priority)
	}
	if rec.Status != StatusPending {
		t.Errorf("status = %v, want pending", rec.Status)
	}
	if rec.ConfidenceScore <= 0 || rec.ConfidenceScore > 1 {
		t.Errorf("confidence = %v, want in (0, 1]", rec.ConfidenceScore)
	}
	if rec.ID == "" {
		t.Error("expected a generated id")
	}
}

func TestGenerateIdempotentAgainstPending(t *testing.T) {
	gen := NewGenerator(DefaultPolicy())
	in := testInputs()

	first := gen.Generate(in)
	if len(first.Created) != 1 {
		t.Fatalf("first run created = %d, want 1", len(first.Created))
	}

	in.ExistingPending = first.Created
	second := gen.Generate(in)

	if len(second.Created) != 0 {
		t.Errorf("second run created = %d, want 0", len(second.Created))
	}
	if second.SkippedDuplicates != 1 {
		t.Errorf("second run skipped = %d, want 1", second.SkippedDuplicates)
	}
}

func TestGenerateOtherClusterPendingDoesNotBlock(t *testing.T) {
	gen := NewGenerator(DefaultPolicy())
	in := testInputs()

	first := gen.Generate(in)
	if len(first.Created) != 1 {
		t.Fatalf("first run created = %d, want 1", len(first.Created))
	}

	// An identical pending scope from a different cluster sharing the same
	// database must not suppress this cluster's candidate.
	other := first.Created[0]
	other.ClusterName = "staging"
	in.ExistingPending = []OptimizationRecommendation{other}

	second := gen.Generate(in)

	if len(second.Created) != 1 {
		t.Errorf("created = %d, want 1 despite pending rec in another cluster", len(second.Created))
	}
	if second.SkippedDuplicates != 0 {
		t.Errorf("skipped = %d, want 0", second.SkippedDuplicates)
	}
}

func TestGenerateResolvedScopeRegenerates(t *testing.T) {
	gen := NewGenerator(DefaultPolicy())
	in := testInputs()

	first := gen.Generate(in)
	resolved := first.Created[0]
	resolved.Status = StatusDismissed

	// Dismissed records never block regeneration.
	in.ExistingPending = []OptimizationRecommendation{resolved}
	second := gen.Generate(in)

	if len(second.Created) != 1 {
		t.Errorf("created = %d, want 1 after prior was dismissed", len(second.Created))
	}
}

func TestGenerateBelowMinSavingsSkipped(t *testing.T) {
	gen := NewGenerator(DefaultPolicy())
	in := testInputs()
	// Tiny namespace cost makes the candidate's savings fall under $10.
	in.NamespaceCosts["web"] = aggregate.NamespaceCost{
		Namespace:     "web",
		TotalCost:     10,
		CostBreakdown: map[aggregate.Category]float64{aggregate.CategoryCompute: 10},
	}

	result := gen.Generate(in)

	if len(result.Created) != 0 {
		t.Errorf("created = %d, want 0 for savings below threshold", len(result.Created))
	}
}

func TestGenerateRightSizeUp(t *testing.T) {
	gen := NewGenerator(DefaultPolicy())
	in := testInputs()
	in.Workloads = []efficiency.WorkloadMetric{
		{
			Namespace:         "web",
			DeploymentName:    "frontend",
			AvgCPUUtilization: 1.5,
			CPURequests:       4.0,
			CPUUsage:          6.0,
			SampleCount:       30,
		},
	}

	result := gen.Generate(in)

	if len(result.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(result.Created))
	}
	rec := result.Created[0]

	if rec.RecommendationType != TypeRightSizeUp {
		t.Errorf("type = %v, want right_size_up", rec.RecommendationType)
	}
	if rec.RecommendedValue <= rec.CurrentValue {
		t.Errorf("recommended %v should exceed current %v", rec.RecommendedValue, rec.CurrentValue)
	}
	if rec.PotentialSavings <= 0 {
		t.Errorf("savings = %v, want positive", rec.PotentialSavings)
	}
}

func TestGenerateModerateUtilizationProducesNothing(t *testing.T) {
	gen := NewGenerator(DefaultPolicy())
	in := testInputs()
	in.Workloads[0].AvgCPUUtilization = 0.60

	result := gen.Generate(in)

	if len(result.Created) != 0 {
		t.Errorf("created = %d, want 0 for moderate utilization", len(result.Created))
	}
}

func TestGenerateTrendCandidate(t *testing.T) {
	gen := NewGenerator(DefaultPolicy())
	in := testInputs()
	in.Workloads = nil
	in.Forecasts = map[string]*trend.CostForecast{
		"web": {
			HistoricalData: []trend.CostTrend{
				{Period: "2026-06", Cost: 100},
				{Period: "2026-07", Cost: 120},
			},
			Forecast: []trend.ForecastPoint{
				{Period: "2026-08", PredictedCost: 145, Confidence: trend.ConfidenceHigh},
			},
			TrendDirection:    trend.DirectionIncreasing,
			MonthlyChangeRate: 20,
			Confidence:        trend.ConfidenceHigh,
		},
	}

	result := gen.Generate(in)

	if len(result.Created) != 1 {
		t.Fatalf("created = %d, want 1", len(result.Created))
	}
	rec := result.Created[0]

	if rec.RecommendationType != TypeCostGrowth {
		t.Errorf("type = %v, want cost_growth", rec.RecommendationType)
	}
	if rec.PotentialSavings != 25 {
		t.Errorf("savings = %v, want 25 (projected minus latest)", rec.PotentialSavings)
	}
}

func TestGenerateTrendCandidateRequiresHighConfidence(t *testing.T) {
	gen := NewGenerator(DefaultPolicy())
	in := testInputs()
	in.Workloads = nil
	in.Forecasts = map[string]*trend.CostForecast{
		"web": {
			HistoricalData:    []trend.CostTrend{{Period: "2026-06", Cost: 100}, {Period: "2026-07", Cost: 120}},
			Forecast:          []trend.ForecastPoint{{Period: "2026-08", PredictedCost: 145}},
			TrendDirection:    trend.DirectionIncreasing,
			Confidence:        trend.ConfidenceMedium,
		},
	}

	result := gen.Generate(in)

	if len(result.Created) != 0 {
		t.Errorf("created = %d, want 0 for medium-confidence forecast", len(result.Created))
	}
}

func TestPriorityBands(t *testing.T) {
	gen := NewGenerator(DefaultPolicy())

	tests := []struct {
		name       string
		savings    float64
		confidence float64
		nsTotal    float64
		want       Priority
	}{
		{"relative threshold met", 50, 0.5, 400, PriorityHigh},
		{"boundary rounds up", 40, 0.5, 400, PriorityHigh},
		{"confident and material", 15, 0.85, 1000, PriorityHigh},
		{"material only", 15, 0.5, 1000, PriorityMedium},
		{"immaterial", 5, 0.9, 1000, PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gen.priority(tt.savings, tt.confidence, tt.nsTotal)
			if got != tt.want {
				t.Errorf("priority(%v, %v, %v) = %v, want %v", tt.savings, tt.confidence, tt.nsTotal, got, tt.want)
			}
		})
	}
}
