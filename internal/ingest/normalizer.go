// Package ingest normalizes heterogeneous collector output into the two
// canonical record types consumed by the rest of the engine.
package ingest

import (
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
)

// ValidationError describes a collector row that could not be normalized.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// BillingRow is a normalized Azure Cost Management row, as produced by the
// billing collector. Quantities are already aggregated per resource per day.
type BillingRow struct {
	SubscriptionID string
	ResourceGroup  string
	ResourceName   string
	ResourceType   string
	ServiceName    string
	Cost           float64
	Currency       string
	Date           time.Time
	Tags           map[string]string
}

// PodSampleRow is a raw pod sample from the usage collector. Request/limit
// quantities arrive as Kubernetes quantity strings ("250m", "512Mi"); usage
// values are plain floats from Prometheus (cores and bytes).
type PodSampleRow struct {
	Namespace       string
	PodName         string
	DeploymentName  string
	ClusterName     string
	CPURequests     string
	CPULimits       string
	CPUUsageCores   float64
	MemoryRequests  string
	MemoryLimits    string
	MemoryUsage     float64
	StorageRequests string
	StorageUsage    float64
	Timestamp       time.Time
	Labels          map[string]string
}

// NormalizeBillingRow converts a billing row into a CostRecord.
func NormalizeBillingRow(row BillingRow) (CostRecord, error) {
	if row.ResourceName == "" && row.ServiceName == "" {
		return CostRecord{}, &ValidationError{Field: "resource_name", Reason: "billing row has neither resource nor service name"}
	}
	if row.Date.IsZero() {
		return CostRecord{}, &ValidationError{Field: "date", Reason: "billing row has no date"}
	}

	currency := row.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	name := row.ResourceName
	if name == "" {
		name = row.ServiceName
	}

	return CostRecord{
		Source:        SourceAzure,
		ResourceGroup: row.ResourceGroup,
		ServiceName:   row.ServiceName,
		ResourceName:  name,
		ResourceType:  row.ResourceType,
		Cost:          row.Cost,
		Currency:      currency,
		Timestamp:     row.Date,
		BillingPeriod: row.Date.Format("2006-01"),
		Tags:          row.Tags,
	}, nil
}

// NormalizePodSample converts a raw pod sample into a UsageSample, parsing
// Kubernetes quantity strings into cores and bytes.
func NormalizePodSample(row PodSampleRow) (UsageSample, error) {
	if row.Namespace == "" {
		return UsageSample{}, &ValidationError{Field: "namespace", Reason: "pod sample has no namespace"}
	}
	if row.Timestamp.IsZero() {
		return UsageSample{}, &ValidationError{Field: "timestamp", Reason: "pod sample has no timestamp"}
	}

	cpuReq, err := parseQuantity(row.CPURequests, false)
	if err != nil {
		return UsageSample{}, &ValidationError{Field: "cpu_requests", Reason: err.Error()}
	}
	cpuLim, err := parseQuantity(row.CPULimits, false)
	if err != nil {
		return UsageSample{}, &ValidationError{Field: "cpu_limits", Reason: err.Error()}
	}
	memReq, err := parseQuantity(row.MemoryRequests, true)
	if err != nil {
		return UsageSample{}, &ValidationError{Field: "memory_requests", Reason: err.Error()}
	}
	memLim, err := parseQuantity(row.MemoryLimits, true)
	if err != nil {
		return UsageSample{}, &ValidationError{Field: "memory_limits", Reason: err.Error()}
	}
	stoReq, err := parseQuantity(row.StorageRequests, true)
	if err != nil {
		return UsageSample{}, &ValidationError{Field: "storage_requests", Reason: err.Error()}
	}

	deployment := row.DeploymentName
	if deployment == "" {
		deployment = DeploymentFromPod(row.PodName)
	}

	cluster := row.ClusterName
	if cluster == "" {
		cluster = "default"
	}

	return UsageSample{
		Namespace:      row.Namespace,
		PodName:        row.PodName,
		DeploymentName: deployment,
		ClusterName:    cluster,
		CPU: ResourceFigures{
			Requests: cpuReq,
			Limits:   cpuLim,
			Usage:    row.CPUUsageCores,
		},
		Memory: ResourceFigures{
			Requests: memReq,
			Limits:   memLim,
			Usage:    row.MemoryUsage,
		},
		Storage: ResourceFigures{
			Requests: stoReq,
			Usage:    row.StorageUsage,
		},
		Timestamp: row.Timestamp,
		Labels:    row.Labels,
	}, nil
}

// NormalizeBillingRows normalizes a batch, skipping malformed rows. Returns
// the normalized records and the count of skipped rows.
func NormalizeBillingRows(rows []BillingRow) ([]CostRecord, int) {
	records := make([]CostRecord, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		rec, err := NormalizeBillingRow(row)
		if err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped
}

// NormalizePodSamples normalizes a batch, skipping malformed rows.
func NormalizePodSamples(rows []PodSampleRow) ([]UsageSample, int) {
	samples := make([]UsageSample, 0, len(rows))
	skipped := 0
	for _, row := range rows {
		s, err := NormalizePodSample(row)
		if err != nil {
			skipped++
			continue
		}
		samples = append(samples, s)
	}
	return samples, skipped
}

// parseQuantity parses a Kubernetes quantity string. Empty strings parse to
// zero. CPU quantities return cores, byte quantities return bytes.
func parseQuantity(s string, bytes bool) (float64, error) {
	if s == "" {
		return 0, nil
	}
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	if bytes {
		return float64(q.Value()), nil
	}
	return float64(q.MilliValue()) / 1000.0, nil
}

// DeploymentFromPod derives a deployment name from a pod name by stripping
// the replicaset and pod hash suffixes (best effort).
func DeploymentFromPod(pod string) string {
	parts := strings.Split(pod, "-")
	if len(parts) <= 2 {
		return pod
	}
	return strings.Join(parts[:len(parts)-2], "-")
}
