// Package aggregate groups cost records into period cost views.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
)

// Period is a half-open aggregation window [Start, End).
type Period struct {
	Start time.Time `json:"period_start"`
	End   time.Time `json:"period_end"`
}

// Contains reports whether t falls inside the period. Start-inclusive,
// end-exclusive.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// MonthPeriod returns the calendar month period containing t.
func MonthPeriod(t time.Time) Period {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

// CostOverview is the cluster-wide cost total for a period, partitioned by
// record source and broken down by category.
type CostOverview struct {
	TotalCost      float64              `json:"total_cost"`
	AzureCost      float64              `json:"azure_cost"`
	KubernetesCost float64              `json:"kubernetes_cost"`
	Currency       string               `json:"currency"`
	PeriodStart    time.Time            `json:"period_start"`
	PeriodEnd      time.Time            `json:"period_end"`
	CostBreakdown  map[Category]float64 `json:"cost_breakdown"`
}

// NamespaceCost is the derived per-namespace cost view for a period. It is
// recomputed wholesale; total_cost always equals the sum of the breakdown.
type NamespaceCost struct {
	Namespace     string               `json:"namespace"`
	ClusterName   string               `json:"cluster_name"`
	TotalCost     float64              `json:"total_cost"`
	Currency      string               `json:"currency"`
	CostBreakdown map[Category]float64 `json:"cost_breakdown"`
	PeriodStart   time.Time            `json:"period_start"`
	PeriodEnd     time.Time            `json:"period_end"`
}

// Result is the output of one aggregation run.
type Result struct {
	Overview     CostOverview
	PerNamespace []NamespaceCost
	// Skipped counts malformed records that were excluded, not fatal.
	Skipped int
}

// validate reports why a record cannot be aggregated, or nil.
func validate(rec ingest.CostRecord) error {
	if rec.Cost < 0 {
		return fmt.Errorf("negative cost %f", rec.Cost)
	}
	if rec.Source == ingest.SourceKubernetes && rec.Namespace == "" {
		return fmt.Errorf("kubernetes record without namespace")
	}
	if rec.Source != ingest.SourceAzure && rec.Source != ingest.SourceKubernetes {
		return fmt.Errorf("unknown source %q", rec.Source)
	}
	return nil
}

// Aggregate reduces cost records into an overview and per-namespace costs
// for one period. It is a pure function of its inputs: identical records and
// period always yield identical results. Records outside the half-open
// period and malformed records are excluded; the latter are counted in
// Result.Skipped.
func Aggregate(records []ingest.CostRecord, clusterName string, period Period) Result {
	overview := CostOverview{
		Currency:      ingest.DefaultCurrency,
		PeriodStart:   period.Start,
		PeriodEnd:     period.End,
		CostBreakdown: make(map[Category]float64),
	}

	type nsKey struct {
		namespace string
		cluster   string
	}
	perNS := make(map[nsKey]*NamespaceCost)
	skipped := 0

	for _, rec := range records {
		if !period.Contains(rec.Timestamp) {
			continue
		}
		if err := validate(rec); err != nil {
			skipped++
			continue
		}

		category := Classify(rec)
		overview.CostBreakdown[category] += rec.Cost
		if rec.Currency != "" {
			overview.Currency = rec.Currency
		}

		switch rec.Source {
		case ingest.SourceAzure:
			overview.AzureCost += rec.Cost
		case ingest.SourceKubernetes:
			overview.KubernetesCost += rec.Cost
		}

		if rec.Namespace == "" {
			continue
		}

		key := nsKey{namespace: rec.Namespace, cluster: clusterName}
		nc, ok := perNS[key]
		if !ok {
			nc = &NamespaceCost{
				Namespace:     rec.Namespace,
				ClusterName:   clusterName,
				Currency:      overview.Currency,
				CostBreakdown: make(map[Category]float64),
				PeriodStart:   period.Start,
				PeriodEnd:     period.End,
			}
			perNS[key] = nc
		}
		nc.CostBreakdown[category] += rec.Cost
		nc.TotalCost += rec.Cost
	}

	overview.TotalCost = overview.AzureCost + overview.KubernetesCost

	namespaces := make([]NamespaceCost, 0, len(perNS))
	for _, nc := range perNS {
		namespaces = append(namespaces, *nc)
	}
	sort.Slice(namespaces, func(i, j int) bool {
		if namespaces[i].Namespace != namespaces[j].Namespace {
			return namespaces[i].Namespace < namespaces[j].Namespace
		}
		return namespaces[i].ClusterName < namespaces[j].ClusterName
	})

	return Result{Overview: overview, PerNamespace: namespaces, Skipped: skipped}
}

// UnitCost derives an effective unit cost for a resource category from a
// namespace breakdown: the category's share of cost per unit of total. Used
// by the recommendation generator to price right-sizing deltas.
func UnitCost(nc NamespaceCost, category Category, currentUnits float64) float64 {
	if currentUnits <= 0 {
		return 0
	}
	return nc.CostBreakdown[category] / currentUnits
}
