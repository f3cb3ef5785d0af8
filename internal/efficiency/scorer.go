// Package efficiency reduces usage samples into utilization ratios and a
// three-level efficiency classification per namespace.
package efficiency

import (
	"sort"

	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
)

// Score labels how well requested resources match observed usage.
type Score string

const (
	ScoreGood     Score = "good"
	ScoreModerate Score = "moderate"
	ScorePoor     Score = "poor"
)

// Direction distinguishes the two poor failure modes.
type Direction string

const (
	DirectionOverProvisioned  Direction = "over-provisioned"
	DirectionUnderProvisioned Direction = "under-provisioned"
)

// Thresholds are the classification band edges. Utilization below Poor is
// poor (over-provisioned), between Poor and Good inclusive is moderate,
// above Good is good, above 1.0 is poor again (under-provisioned).
type Thresholds struct {
	Poor float64
	Good float64
}

// DefaultThresholds returns the standard 40%/75% bands.
func DefaultThresholds() Thresholds {
	return Thresholds{Poor: 0.40, Good: 0.75}
}

// Classify maps a mean utilization ratio to a score and, for poor scores,
// the direction of the mismatch.
func (t Thresholds) Classify(utilization float64) (Score, Direction) {
	switch {
	case utilization > 1.0:
		return ScorePoor, DirectionUnderProvisioned
	case utilization > t.Good:
		return ScoreGood, ""
	case utilization >= t.Poor:
		return ScoreModerate, ""
	default:
		return ScorePoor, DirectionOverProvisioned
	}
}

// Metric is the derived efficiency view for one namespace. Dimensions with
// no qualifying samples (all requests zero) carry an empty score.
type Metric struct {
	Namespace             string    `json:"namespace"`
	AvgCPUUtilization     float64   `json:"avg_cpu_utilization"`
	AvgMemoryUtilization  float64   `json:"avg_memory_utilization"`
	AvgStorageUtilization float64   `json:"avg_storage_utilization"`
	CPUScore              Score     `json:"cpu_efficiency_score,omitempty"`
	MemoryScore           Score     `json:"memory_efficiency_score,omitempty"`
	StorageScore          Score     `json:"storage_efficiency_score,omitempty"`
	CPUDirection          Direction `json:"cpu_direction,omitempty"`
	MemoryDirection       Direction `json:"memory_direction,omitempty"`
	StorageDirection      Direction `json:"storage_direction,omitempty"`
	SampleCount           int       `json:"sample_count"`
}

// accumulator collects ratio sums per dimension. Samples with zero requests
// are excluded from the ratio but still count toward SampleCount.
type accumulator struct {
	ratioSum float64
	ratioN   int
}

func (a *accumulator) add(f ingest.ResourceFigures) {
	if f.Requests > 0 {
		a.ratioSum += f.Usage / f.Requests
		a.ratioN++
	}
}

func (a *accumulator) mean() (float64, bool) {
	if a.ratioN == 0 {
		return 0, false
	}
	return a.ratioSum / float64(a.ratioN), true
}

// ScoreNamespaces reduces usage samples into per-namespace efficiency
// metrics. Namespaces with zero samples are omitted, never zero-filled.
func ScoreNamespaces(samples []ingest.UsageSample, t Thresholds) map[string]Metric {
	type nsAcc struct {
		cpu, mem, sto accumulator
		count         int
	}
	byNS := make(map[string]*nsAcc)

	for _, s := range samples {
		acc, ok := byNS[s.Namespace]
		if !ok {
			acc = &nsAcc{}
			byNS[s.Namespace] = acc
		}
		acc.cpu.add(s.CPU)
		acc.mem.add(s.Memory)
		acc.sto.add(s.Storage)
		acc.count++
	}

	metrics := make(map[string]Metric, len(byNS))
	for ns, acc := range byNS {
		if acc.count == 0 {
			continue
		}
		m := Metric{Namespace: ns, SampleCount: acc.count}
		if mean, ok := acc.cpu.mean(); ok {
			m.AvgCPUUtilization = mean
			m.CPUScore, m.CPUDirection = t.Classify(mean)
		}
		if mean, ok := acc.mem.mean(); ok {
			m.AvgMemoryUtilization = mean
			m.MemoryScore, m.MemoryDirection = t.Classify(mean)
		}
		if mean, ok := acc.sto.mean(); ok {
			m.AvgStorageUtilization = mean
			m.StorageScore, m.StorageDirection = t.Classify(mean)
		}
		metrics[ns] = m
	}
	return metrics
}

// WorkloadMetric is the deployment-level reduction feeding the
// recommendation generator: utilization plus mean requested and used
// quantities per dimension.
type WorkloadMetric struct {
	Namespace      string
	DeploymentName string

	AvgCPUUtilization     float64
	AvgMemoryUtilization  float64
	AvgStorageUtilization float64

	// Mean requested quantities: cores, bytes, bytes.
	CPURequests     float64
	MemoryRequests  float64
	StorageRequests float64

	// Mean observed usage in the same units.
	CPUUsage     float64
	MemoryUsage  float64
	StorageUsage float64

	SampleCount int
}

// ScoreWorkloads reduces usage samples per (namespace, deployment), sorted
// for deterministic downstream iteration.
func ScoreWorkloads(samples []ingest.UsageSample) []WorkloadMetric {
	type wlAcc struct {
		cpu, mem, sto             accumulator
		cpuReq, memReq, stoReq    float64
		cpuUse, memUse, stoUse    float64
		count                     int
	}
	type wlKey struct {
		namespace, deployment string
	}
	byWL := make(map[wlKey]*wlAcc)

	for _, s := range samples {
		key := wlKey{namespace: s.Namespace, deployment: s.DeploymentName}
		acc, ok := byWL[key]
		if !ok {
			acc = &wlAcc{}
			byWL[key] = acc
		}
		acc.cpu.add(s.CPU)
		acc.mem.add(s.Memory)
		acc.sto.add(s.Storage)
		acc.cpuReq += s.CPU.Requests
		acc.memReq += s.Memory.Requests
		acc.stoReq += s.Storage.Requests
		acc.cpuUse += s.CPU.Usage
		acc.memUse += s.Memory.Usage
		acc.stoUse += s.Storage.Usage
		acc.count++
	}

	metrics := make([]WorkloadMetric, 0, len(byWL))
	for key, acc := range byWL {
		if acc.count == 0 {
			continue
		}
		n := float64(acc.count)
		m := WorkloadMetric{
			Namespace:       key.namespace,
			DeploymentName:  key.deployment,
			CPURequests:     acc.cpuReq / n,
			MemoryRequests:  acc.memReq / n,
			StorageRequests: acc.stoReq / n,
			CPUUsage:        acc.cpuUse / n,
			MemoryUsage:     acc.memUse / n,
			StorageUsage:    acc.stoUse / n,
			SampleCount:     acc.count,
		}
		if mean, ok := acc.cpu.mean(); ok {
			m.AvgCPUUtilization = mean
		}
		if mean, ok := acc.mem.mean(); ok {
			m.AvgMemoryUtilization = mean
		}
		if mean, ok := acc.sto.mean(); ok {
			m.AvgStorageUtilization = mean
		}
		metrics = append(metrics, m)
	}

	sort.Slice(metrics, func(i, j int) bool {
		if metrics[i].Namespace != metrics[j].Namespace {
			return metrics[i].Namespace < metrics[j].Namespace
		}
		return metrics[i].DeploymentName < metrics[j].DeploymentName
	})
	return metrics
}
