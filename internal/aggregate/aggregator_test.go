// Package aggregate groups cost records into period cost views.
package aggregate

import (
	"math"
	"testing"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
)

func monthOf(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, 0)}
}

func TestAggregateSourceTotals(t *testing.T) {
	period := monthOf(2026, time.July)
	records := []ingest.CostRecord{
		{
			Source:       ingest.SourceAzure,
			ServiceName:  "Virtual Machines",
			ResourceName: "vm-prod-1",
			Cost:         500.0,
			Currency:     "USD",
			Timestamp:    time.Date(2026, time.July, 10, 0, 0, 0, 0, time.UTC),
		},
		{
			Source:       ingest.SourceKubernetes,
			Namespace:    "web",
			ResourceName: "web-pods",
			ResourceType: "cpu",
			Cost:         300.0,
			Currency:     "USD",
			Timestamp:    time.Date(2026, time.July, 15, 0, 0, 0, 0, time.UTC),
		},
	}

	result := Aggregate(records, "prod-cluster", period)

	if result.Overview.AzureCost != 500.0 {
		t.Errorf("AzureCost = %v, want 500", result.Overview.AzureCost)
	}
	if result.Overview.KubernetesCost != 300.0 {
		t.Errorf("KubernetesCost = %v, want 300", result.Overview.KubernetesCost)
	}
	if result.Overview.TotalCost != 800.0 {
		t.Errorf("TotalCost = %v, want 800", result.Overview.TotalCost)
	}
	if result.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", result.Skipped)
	}
}

func TestAggregateBreakdownSumsToTotal(t *testing.T) {
	period := monthOf(2026, time.July)
	records := []ingest.CostRecord{
		{Source: ingest.SourceAzure, ServiceName: "Virtual Machines", ResourceName: "vm-1", Cost: 120.50, Timestamp: period.Start},
		{Source: ingest.SourceAzure, ServiceName: "Storage Accounts", ResourceName: "sa-1", Cost: 45.25, Timestamp: period.Start},
		{Source: ingest.SourceAzure, ServiceName: "Bandwidth", ResourceName: "bw", Cost: 9.99, Timestamp: period.Start},
		{Source: ingest.SourceAzure, ServiceName: "Mystery Service", ResourceName: "x", Cost: 3.17, Timestamp: period.Start},
		{Source: ingest.SourceKubernetes, Namespace: "api", ResourceName: "api", ResourceType: "memory", Cost: 77.77, Timestamp: period.Start},
	}

	result := Aggregate(records, "prod-cluster", period)

	var sum float64
	for _, cost := range result.Overview.CostBreakdown {
		sum += cost
	}
	if math.Abs(sum-result.Overview.TotalCost) > 1e-9 {
		t.Errorf("breakdown sum = %v, total = %v", sum, result.Overview.TotalCost)
	}

	for _, nc := range result.PerNamespace {
		var nsSum float64
		for _, cost := range nc.CostBreakdown {
			nsSum += cost
		}
		if math.Abs(nsSum-nc.TotalCost) > 1e-9 {
			t.Errorf("namespace %s breakdown sum = %v, total = %v", nc.Namespace, nsSum, nc.TotalCost)
		}
	}
}

func TestAggregateHalfOpenPeriod(t *testing.T) {
	period := monthOf(2026, time.July)
	records := []ingest.CostRecord{
		{Source: ingest.SourceAzure, ResourceName: "at-start", Cost: 10, Timestamp: period.Start},
		{Source: ingest.SourceAzure, ResourceName: "at-end", Cost: 20, Timestamp: period.End},
		{Source: ingest.SourceAzure, ResourceName: "before", Cost: 30, Timestamp: period.Start.Add(-time.Second)},
	}

	result := Aggregate(records, "c", period)

	if result.Overview.TotalCost != 10 {
		t.Errorf("TotalCost = %v, want 10 (start inclusive, end exclusive)", result.Overview.TotalCost)
	}
}

func TestAggregateSkipsMalformedRecords(t *testing.T) {
	period := monthOf(2026, time.July)
	records := []ingest.CostRecord{
		{Source: ingest.SourceAzure, ResourceName: "ok", Cost: 100, Timestamp: period.Start},
		{Source: ingest.SourceAzure, ResourceName: "negative", Cost: -5, Timestamp: period.Start},
		{Source: ingest.SourceKubernetes, ResourceName: "no-namespace", ResourceType: "cpu", Cost: 50, Timestamp: period.Start},
		{Source: "gcp", ResourceName: "unknown-source", Cost: 10, Timestamp: period.Start},
	}

	result := Aggregate(records, "c", period)

	if result.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", result.Skipped)
	}
	if result.Overview.TotalCost != 100 {
		t.Errorf("TotalCost = %v, want 100", result.Overview.TotalCost)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	period := monthOf(2026, time.July)
	records := []ingest.CostRecord{
		{Source: ingest.SourceKubernetes, Namespace: "zeta", ResourceName: "z", ResourceType: "cpu", Cost: 10, Timestamp: period.Start},
		{Source: ingest.SourceKubernetes, Namespace: "alpha", ResourceName: "a", ResourceType: "cpu", Cost: 20, Timestamp: period.Start},
		{Source: ingest.SourceKubernetes, Namespace: "mid", ResourceName: "m", ResourceType: "memory", Cost: 30, Timestamp: period.Start},
	}

	first := Aggregate(records, "c", period)
	second := Aggregate(records, "c", period)

	if len(first.PerNamespace) != len(second.PerNamespace) {
		t.Fatalf("namespace counts differ: %d vs %d", len(first.PerNamespace), len(second.PerNamespace))
	}
	for i := range first.PerNamespace {
		if first.PerNamespace[i].Namespace != second.PerNamespace[i].Namespace {
			t.Errorf("order differs at %d: %s vs %s", i, first.PerNamespace[i].Namespace, second.PerNamespace[i].Namespace)
		}
	}
	if first.PerNamespace[0].Namespace != "alpha" {
		t.Errorf("first namespace = %s, want alpha (sorted)", first.PerNamespace[0].Namespace)
	}
}

func TestAggregateAdditivity(t *testing.T) {
	period := monthOf(2026, time.July)
	setA := []ingest.CostRecord{
		{Source: ingest.SourceAzure, ServiceName: "Virtual Machines", ResourceName: "vm-1", Cost: 120.50, Timestamp: period.Start},
		{Source: ingest.SourceKubernetes, Namespace: "web", ResourceName: "web", ResourceType: "cpu", Cost: 40.25, Timestamp: period.Start.AddDate(0, 0, 3)},
		{Source: ingest.SourceKubernetes, Namespace: "batch", ResourceName: "jobs", ResourceType: "memory", Cost: 18.40, Timestamp: period.Start.AddDate(0, 0, 5)},
	}
	setB := []ingest.CostRecord{
		{Source: ingest.SourceAzure, ServiceName: "Storage Accounts", ResourceName: "sa-1", Cost: 33.10, Timestamp: period.Start.AddDate(0, 0, 8)},
		{Source: ingest.SourceKubernetes, Namespace: "web", ResourceName: "web", ResourceType: "memory", Cost: 27.75, Timestamp: period.Start.AddDate(0, 0, 12)},
	}

	partA := Aggregate(setA, "c", period)
	partB := Aggregate(setB, "c", period)
	union := Aggregate(append(append([]ingest.CostRecord{}, setA...), setB...), "c", period)

	approx := func(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

	if !approx(union.Overview.TotalCost, partA.Overview.TotalCost+partB.Overview.TotalCost) {
		t.Errorf("TotalCost = %v, want %v + %v", union.Overview.TotalCost, partA.Overview.TotalCost, partB.Overview.TotalCost)
	}
	if !approx(union.Overview.AzureCost, partA.Overview.AzureCost+partB.Overview.AzureCost) {
		t.Errorf("AzureCost = %v, want %v + %v", union.Overview.AzureCost, partA.Overview.AzureCost, partB.Overview.AzureCost)
	}
	if !approx(union.Overview.KubernetesCost, partA.Overview.KubernetesCost+partB.Overview.KubernetesCost) {
		t.Errorf("KubernetesCost = %v, want %v + %v", union.Overview.KubernetesCost, partA.Overview.KubernetesCost, partB.Overview.KubernetesCost)
	}
	for _, cat := range Categories() {
		if !approx(union.Overview.CostBreakdown[cat], partA.Overview.CostBreakdown[cat]+partB.Overview.CostBreakdown[cat]) {
			t.Errorf("breakdown[%s] = %v, want %v + %v", cat,
				union.Overview.CostBreakdown[cat], partA.Overview.CostBreakdown[cat], partB.Overview.CostBreakdown[cat])
		}
	}

	nsTotals := func(result Result) map[string]NamespaceCost {
		byNS := make(map[string]NamespaceCost, len(result.PerNamespace))
		for _, nc := range result.PerNamespace {
			byNS[nc.Namespace] = nc
		}
		return byNS
	}
	unionNS, aNS, bNS := nsTotals(union), nsTotals(partA), nsTotals(partB)

	for ns, nc := range unionNS {
		if !approx(nc.TotalCost, aNS[ns].TotalCost+bNS[ns].TotalCost) {
			t.Errorf("namespace %s total = %v, want %v + %v", ns, nc.TotalCost, aNS[ns].TotalCost, bNS[ns].TotalCost)
		}
		for _, cat := range Categories() {
			if !approx(nc.CostBreakdown[cat], aNS[ns].CostBreakdown[cat]+bNS[ns].CostBreakdown[cat]) {
				t.Errorf("namespace %s breakdown[%s] = %v, want %v + %v", ns, cat,
					nc.CostBreakdown[cat], aNS[ns].CostBreakdown[cat], bNS[ns].CostBreakdown[cat])
			}
		}
	}
	if len(unionNS) != 2 {
		t.Errorf("union namespaces = %d, want 2", len(unionNS))
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		record   ingest.CostRecord
		expected Category
	}{
		{"azure vm", ingest.CostRecord{Source: ingest.SourceAzure, ServiceName: "Virtual Machines"}, CategoryCompute},
		{"azure storage case insensitive", ingest.CostRecord{Source: ingest.SourceAzure, ServiceName: "STORAGE ACCOUNTS"}, CategoryStorage},
		{"azure bandwidth", ingest.CostRecord{Source: ingest.SourceAzure, ServiceName: "Bandwidth"}, CategoryNetwork},
		{"azure unknown", ingest.CostRecord{Source: ingest.SourceAzure, ServiceName: "Quantum Workspace"}, CategoryOther},
		{"k8s cpu", ingest.CostRecord{Source: ingest.SourceKubernetes, ResourceType: "cpu"}, CategoryCompute},
		{"k8s memory", ingest.CostRecord{Source: ingest.SourceKubernetes, ResourceType: "memory"}, CategoryMemory},
		{"k8s unknown", ingest.CostRecord{Source: ingest.SourceKubernetes, ResourceType: "gpu"}, CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.record); got != tt.expected {
				t.Errorf("Classify() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestUnitCost(t *testing.T) {
	nc := NamespaceCost{
		Namespace:     "web",
		TotalCost:     400,
		CostBreakdown: map[Category]float64{CategoryCompute: 400},
	}

	if got := UnitCost(nc, CategoryCompute, 4); got != 100 {
		t.Errorf("UnitCost = %v, want 100", got)
	}
	if got := UnitCost(nc, CategoryCompute, 0); got != 0 {
		t.Errorf("UnitCost with zero units = %v, want 0", got)
	}
	if got := UnitCost(nc, CategoryMemory, 4); got != 0 {
		t.Errorf("UnitCost for empty bucket = %v, want 0", got)
	}
}

func TestPeriodContains(t *testing.T) {
	period := monthOf(2026, time.July)

	if !period.Contains(period.Start) {
		t.Error("period start should be inside")
	}
	if period.Contains(period.End) {
		t.Error("period end should be outside")
	}
	if period.Contains(period.Start.Add(-time.Nanosecond)) {
		t.Error("instant before start should be outside")
	}
}
