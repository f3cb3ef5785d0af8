package recommend

import (
	"fmt"
	"math"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/aggregate"
	"github.com/AwesomeGRV/CloudCostGuard/internal/efficiency"
	"github.com/AwesomeGRV/CloudCostGuard/internal/trend"
	"github.com/google/uuid"
)

const bytesPerGB = 1024 * 1024 * 1024

// Policy holds the generation policy knobs. Defaults mirror the documented
// engine policy; all values are configurable, not hardcoded.
type Policy struct {
	Thresholds efficiency.Thresholds

	// MinSavings is the minimum monthly savings for a right-sizing
	// candidate to be worth emitting.
	MinSavings float64

	// PrioritySavingsRatio promotes a candidate to high priority when its
	// savings exceed this share of the namespace's total cost.
	PrioritySavingsRatio float64

	// MinSamples is the sample count treated as full confidence.
	MinSamples int

	// Reduction factors for over-provisioned requests, per dimension.
	CPUReduction     float64
	MemoryReduction  float64
	StorageReduction float64

	// HeadroomFactor pads observed usage when sizing up.
	HeadroomFactor float64
}

// DefaultPolicy returns the standard generation policy.
func DefaultPolicy() Policy {
	return Policy{
		Thresholds:           efficiency.DefaultThresholds(),
		MinSavings:           10.0,
		PrioritySavingsRatio: 0.10,
		MinSamples:           30,
		CPUReduction:         0.5,
		MemoryReduction:      0.6,
		StorageReduction:     0.7,
		HeadroomFactor:       1.2,
	}
}

// Inputs carries everything one generation run consumes. The generator is
// pure and advisory: it never persists; the lifecycle manager does.
type Inputs struct {
	ClusterName    string
	Workloads      []efficiency.WorkloadMetric
	NamespaceCosts map[string]aggregate.NamespaceCost
	// Forecasts per namespace feeding the trend-based candidate source.
	Forecasts map[string]*trend.CostForecast
	// ExistingPending is the current open recommendation set used for
	// dedup; implemented and dismissed records never block regeneration.
	ExistingPending []OptimizationRecommendation
	Now             time.Time
}

// Result is one generation run's output.
type Result struct {
	// Created are the new pending candidates that passed dedup.
	Created []OptimizationRecommendation
	// SkippedDuplicates counts candidates dropped because an identical
	// pending recommendation already exists.
	SkippedDuplicates int
}

// Generator builds recommendation candidates from aggregated cost,
// efficiency scores and trend signals.
type Generator struct {
	policy Policy
}

// NewGenerator creates a generator with the given policy.
func NewGenerator(policy Policy) *Generator {
	return &Generator{policy: policy}
}

// Generate produces deduplicated pending candidates for one cluster scope.
// Calling it twice with unchanged inputs creates nothing the second time.
func (g *Generator) Generate(in Inputs) Result {
	pending := make(map[string]struct{}, len(in.ExistingPending))
	for _, r := range in.ExistingPending {
		if r.Status == StatusPending {
			pending[r.DedupKey()] = struct{}{}
		}
	}

	nsRequests := namespaceRequestTotals(in.Workloads)

	var candidates []OptimizationRecommendation
	for _, wl := range in.Workloads {
		candidates = append(candidates, g.workloadCandidates(wl, in, nsRequests)...)
	}
	candidates = append(candidates, g.trendCandidates(in)...)

	res := Result{}
	for _, c := range candidates {
		if _, dup := pending[c.DedupKey()]; dup {
			res.SkippedDuplicates++
			continue
		}
		pending[c.DedupKey()] = struct{}{}
		res.Created = append(res.Created, c)
	}
	return res
}

// dimensionTotals sums mean requests per namespace so breakdown costs can be
// priced per requested unit.
type dimensionTotals struct {
	cpu, memory, storage float64
}

func namespaceRequestTotals(workloads []efficiency.WorkloadMetric) map[string]dimensionTotals {
	totals := make(map[string]dimensionTotals)
	for _, wl := range workloads {
		t := totals[wl.Namespace]
		t.cpu += wl.CPURequests
		t.memory += wl.MemoryRequests
		t.storage += wl.StorageRequests
		totals[wl.Namespace] = t
	}
	return totals
}

// dimension describes one resource dimension for candidate generation.
type dimension struct {
	name        string
	category    aggregate.Category
	utilization float64
	requests    float64
	usage       float64
	reduction   float64
	unitLabel   string
	unitDiv     float64
}

func (g *Generator) workloadCandidates(wl efficiency.WorkloadMetric, in Inputs, nsRequests map[string]dimensionTotals) []OptimizationRecommendation {
	nc, hasCost := in.NamespaceCosts[wl.Namespace]
	totals := nsRequests[wl.Namespace]

	dims := []dimension{
		{
			name: "cpu", category: aggregate.CategoryCompute,
			utilization: wl.AvgCPUUtilization, requests: wl.CPURequests, usage: wl.CPUUsage,
			reduction: g.policy.CPUReduction, unitLabel: "cores", unitDiv: 1,
		},
		{
			name: "memory", category: aggregate.CategoryMemory,
			utilization: wl.AvgMemoryUtilization, requests: wl.MemoryRequests, usage: wl.MemoryUsage,
			reduction: g.policy.MemoryReduction, unitLabel: "GB", unitDiv: bytesPerGB,
		},
		{
			name: "storage", category: aggregate.CategoryStorage,
			utilization: wl.AvgStorageUtilization, requests: wl.StorageRequests, usage: wl.StorageUsage,
			reduction: g.policy.StorageReduction, unitLabel: "GB", unitDiv: bytesPerGB,
		},
	}

	var recs []OptimizationRecommendation
	for _, d := range dims {
		if d.requests <= 0 || !hasCost {
			continue
		}
		score, direction := g.policy.Thresholds.Classify(d.utilization)
		if score != efficiency.ScorePoor {
			continue
		}

		var nsUnits float64
		switch d.category {
		case aggregate.CategoryCompute:
			nsUnits = totals.cpu
		case aggregate.CategoryMemory:
			nsUnits = totals.memory
		case aggregate.CategoryStorage:
			nsUnits = totals.storage
		}
		unitCost := aggregate.UnitCost(nc, d.category, nsUnits)

		var rec OptimizationRecommendation
		switch direction {
		case efficiency.DirectionOverProvisioned:
			recommended := d.requests * d.reduction
			savings := (d.requests - recommended) * unitCost
			if savings <= 0 || savings < g.policy.MinSavings {
				continue
			}
			rec = OptimizationRecommendation{
				ResourceType:       d.name,
				RecommendationType: TypeRightSizeDown,
				CurrentValue:       d.requests,
				RecommendedValue:   recommended,
				PotentialSavings:   round2(savings),
				ConfidenceScore:    g.rightSizeConfidence(1.0-d.utilization, wl.SampleCount),
				Description: fmt.Sprintf(
					"%s utilization is only %.1f%%. Consider reducing %s requests from %.2f to %.2f %s.",
					d.name, d.utilization*100, d.name,
					d.requests/d.unitDiv, recommended/d.unitDiv, d.unitLabel),
				ImplementationSteps: []string{
					fmt.Sprintf("Update deployment %s %s requests", wl.DeploymentName, d.name),
					"Monitor performance after change",
					"Adjust further if needed",
				},
			}
		case efficiency.DirectionUnderProvisioned:
			recommended := d.usage * g.policy.HeadroomFactor
			// Savings basis for up-sizing is the unrequested consumption
			// currently at risk, which is positive exactly when usage
			// exceeds requests.
			savings := (d.usage - d.requests) * unitCost
			if savings <= 0 {
				continue
			}
			rec = OptimizationRecommendation{
				ResourceType:       d.name,
				RecommendationType: TypeRightSizeUp,
				CurrentValue:       d.requests,
				RecommendedValue:   recommended,
				PotentialSavings:   round2(savings),
				ConfidenceScore:    g.rightSizeConfidence(d.utilization-1.0, wl.SampleCount),
				Description: fmt.Sprintf(
					"%s usage is %.1f%% of requests. Consider raising %s requests from %.2f to %.2f %s to avoid throttling or eviction.",
					d.name, d.utilization*100, d.name,
					d.requests/d.unitDiv, recommended/d.unitDiv, d.unitLabel),
				ImplementationSteps: []string{
					fmt.Sprintf("Update deployment %s %s requests", wl.DeploymentName, d.name),
					"Verify scheduling headroom on the target nodes",
					"Monitor performance after change",
				},
			}
		default:
			continue
		}

		rec.ID = uuid.NewString()
		rec.Namespace = wl.Namespace
		rec.ClusterName = in.ClusterName
		rec.ResourceName = wl.DeploymentName
		rec.Priority = g.priority(rec.PotentialSavings, rec.ConfidenceScore, nc.TotalCost)
		rec.Status = StatusPending
		rec.CreatedAt = in.Now
		recs = append(recs, rec)
	}
	return recs
}

// trendCandidates emits a cost-growth investigation when a namespace shows a
// sustained increasing trend with high forecast confidence.
func (g *Generator) trendCandidates(in Inputs) []OptimizationRecommendation {
	var recs []OptimizationRecommendation
	for ns, fc := range in.Forecasts {
		if fc == nil || fc.TrendDirection != trend.DirectionIncreasing || fc.Confidence != trend.ConfidenceHigh {
			continue
		}
		if len(fc.HistoricalData) == 0 || len(fc.Forecast) == 0 {
			continue
		}
		latest := fc.HistoricalData[len(fc.HistoricalData)-1].Cost
		projected := fc.Forecast[0].PredictedCost
		savings := projected - latest
		if savings <= 0 {
			continue
		}

		nc := in.NamespaceCosts[ns]
		adequacy := math.Min(1.0, float64(len(fc.HistoricalData))/6.0)
		confidence := clamp01(0.9 * (0.5 + 0.5*adequacy))

		rec := OptimizationRecommendation{
			ID:                 uuid.NewString(),
			Namespace:          ns,
			ClusterName:        in.ClusterName,
			ResourceType:       "cost",
			ResourceName:       ns,
			RecommendationType: TypeCostGrowth,
			CurrentValue:       projected,
			RecommendedValue:   latest,
			PotentialSavings:   round2(savings),
			ConfidenceScore:    confidence,
			Description: fmt.Sprintf(
				"Costs for namespace %s are growing %.2f per month with high confidence. Investigate before next period adds %.2f.",
				ns, fc.MonthlyChangeRate, savings),
			ImplementationSteps: []string{
				fmt.Sprintf("Review recent workload changes in namespace %s", ns),
				"Check for unbounded scaling or new deployments",
				"Set resource quotas if growth is unintended",
			},
			Status:    StatusPending,
			CreatedAt: in.Now,
		}
		rec.Priority = g.priority(rec.PotentialSavings, rec.ConfidenceScore, nc.TotalCost)
		recs = append(recs, rec)
	}
	return recs
}

// rightSizeConfidence combines the utilization margin with sample adequacy
// into [0,1].
func (g *Generator) rightSizeConfidence(margin float64, sampleCount int) float64 {
	base := math.Min(0.9, math.Max(0.1, margin))
	adequacy := math.Min(1.0, float64(sampleCount)/float64(g.policy.MinSamples))
	return clamp01(base * (0.5 + 0.5*adequacy))
}

// priority applies the documented policy: high when savings exceed the
// relative threshold of namespace cost or confidence is high with material
// savings; medium for material savings; low otherwise. Boundary cases round
// up to the more actionable category.
func (g *Generator) priority(savings, confidence, namespaceTotal float64) Priority {
	if namespaceTotal > 0 && savings >= namespaceTotal*g.policy.PrioritySavingsRatio {
		return PriorityHigh
	}
	if confidence >= 0.8 && savings >= g.policy.MinSavings {
		return PriorityHigh
	}
	if savings >= g.policy.MinSavings {
		return PriorityMedium
	}
	return PriorityLow
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
