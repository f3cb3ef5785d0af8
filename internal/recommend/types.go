// Package recommend generates optimization recommendations and owns their
// status lifecycle.
package recommend

import "time"

// Status is the recommendation lifecycle state.
type Status string

const (
	StatusPending     Status = "pending"
	StatusImplemented Status = "implemented"
	StatusDismissed   Status = "dismissed"
)

// Priority ranks how actionable a recommendation is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Type identifies what kind of change a recommendation proposes.
type Type string

const (
	TypeRightSizeDown Type = "right_size_down"
	TypeRightSizeUp   Type = "right_size_up"
	TypeCostGrowth    Type = "cost_growth"
)

// OptimizationRecommendation is an auditable suggestion to change a
// resource's configuration. Created only by the generator; status mutated
// only through the lifecycle manager; never deleted.
type OptimizationRecommendation struct {
	ID                  string     `json:"id"`
	Namespace           string     `json:"namespace"`
	ClusterName         string     `json:"cluster_name"`
	ResourceType        string     `json:"resource_type"`
	ResourceName        string     `json:"resource_name"`
	RecommendationType  Type       `json:"recommendation_type"`
	CurrentValue        float64    `json:"current_value"`
	RecommendedValue    float64    `json:"recommended_value"`
	PotentialSavings    float64    `json:"potential_savings"`
	ConfidenceScore     float64    `json:"confidence_score"`
	Priority            Priority   `json:"priority"`
	Description         string     `json:"description"`
	ImplementationSteps []string   `json:"implementation_steps"`
	Status              Status     `json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	ImplementedAt       *time.Time `json:"implemented_at,omitempty"`
}

// DedupKey is the uniqueness key checked against existing pending
// recommendations before creating a new one. Cluster-scoped so clusters
// sharing a database never block each other.
func (r OptimizationRecommendation) DedupKey() string {
	return r.Namespace + "\x00" + r.ClusterName + "\x00" + r.ResourceName + "\x00" + string(r.RecommendationType)
}

// Summary is the derived aggregate over the full recommendation set. Always
// recomputed from current records, never stored as independent truth.
type Summary struct {
	TotalRecommendations       int              `json:"total_recommendations"`
	PendingRecommendations     int              `json:"pending_recommendations"`
	ImplementedRecommendations int              `json:"implemented_recommendations"`
	DismissedRecommendations   int              `json:"dismissed_recommendations"`
	TotalPotentialSavings      float64          `json:"total_potential_savings"`
	ImplementedSavings         float64          `json:"implemented_savings"`
	PriorityBreakdown          map[Priority]int `json:"priority_breakdown"`
	TypeBreakdown              map[Type]int     `json:"type_breakdown"`
}

// Summarize recomputes the summary from the full record set. Potential
// savings counts pending records only; implemented savings is the snapshot
// recorded on each implemented record.
func Summarize(recs []OptimizationRecommendation) Summary {
	s := Summary{
		PriorityBreakdown: map[Priority]int{PriorityHigh: 0, PriorityMedium: 0, PriorityLow: 0},
		TypeBreakdown:     make(map[Type]int),
	}
	for _, r := range recs {
		s.TotalRecommendations++
		s.TypeBreakdown[r.RecommendationType]++
		switch r.Status {
		case StatusPending:
			s.PendingRecommendations++
			s.TotalPotentialSavings += r.PotentialSavings
			s.PriorityBreakdown[r.Priority]++
		case StatusImplemented:
			s.ImplementedRecommendations++
			s.ImplementedSavings += r.PotentialSavings
		case StatusDismissed:
			s.DismissedRecommendations++
		}
	}
	return s
}
