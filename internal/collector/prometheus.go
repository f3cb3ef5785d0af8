package collector

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// PrometheusSource collects pod resource samples from a Prometheus server
// scraping kube-state-metrics and cAdvisor.
type PrometheusSource struct {
	api         promv1.API
	clusterName string
}

// NewPrometheusSource creates a usage source against the given Prometheus
// base URL.
func NewPrometheusSource(url, clusterName string) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{Address: url})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}
	if clusterName == "" {
		clusterName = "default"
	}
	return &PrometheusSource{api: promv1.NewAPI(client), clusterName: clusterName}, nil
}

// Name implements UsageSource.
func (s *PrometheusSource) Name() string { return "kubernetes" }

// podKey identifies one pod across the individual metric queries.
type podKey struct {
	namespace string
	pod       string
}

// podFigures accumulates the per-pod values before normalization.
type podFigures struct {
	cpuRequests, cpuLimits, cpuUsage float64
	memRequests, memLimits, memUsage float64
	stoRequests, stoUsage            float64
}

// CollectUsage queries requests, limits and usage per pod at the window end
// and feeds the raw rows through the ingest normalizer. Individual metric
// failures degrade to zero for that metric; only a total query failure
// errors out.
func (s *PrometheusSource) CollectUsage(ctx context.Context, from, to time.Time) ([]ingest.UsageSample, int, error) {
	queries := []struct {
		name  string
		query string
		apply func(*podFigures, float64)
	}{
		{"cpu_requests", `sum(kube_pod_container_resource_requests{resource="cpu"}) by (namespace, pod)`,
			func(f *podFigures, v float64) { f.cpuRequests = v }},
		{"cpu_limits", `sum(kube_pod_container_resource_limits{resource="cpu"}) by (namespace, pod)`,
			func(f *podFigures, v float64) { f.cpuLimits = v }},
		{"cpu_usage", `sum(rate(container_cpu_usage_seconds_total{container!="POD"}[5m])) by (namespace, pod)`,
			func(f *podFigures, v float64) { f.cpuUsage = v }},
		{"memory_requests", `sum(kube_pod_container_resource_requests{resource="memory"}) by (namespace, pod)`,
			func(f *podFigures, v float64) { f.memRequests = v }},
		{"memory_limits", `sum(kube_pod_container_resource_limits{resource="memory"}) by (namespace, pod)`,
			func(f *podFigures, v float64) { f.memLimits = v }},
		{"memory_usage", `sum(container_memory_working_set_bytes{container!="POD"}) by (namespace, pod)`,
			func(f *podFigures, v float64) { f.memUsage = v }},
		{"storage_requests", `sum(kube_persistentvolumeclaim_resource_requests_storage_bytes) by (namespace, persistentvolumeclaim)`,
			func(f *podFigures, v float64) { f.stoRequests = v }},
		{"storage_usage", `sum(kubelet_volume_stats_used_bytes) by (namespace, persistentvolumeclaim)`,
			func(f *podFigures, v float64) { f.stoUsage = v }},
	}

	pods := make(map[podKey]*podFigures)
	failures := 0

	for _, q := range queries {
		vector, err := s.queryVector(ctx, q.query, to)
		if err != nil {
			slog.Warn("Prometheus metric query failed", "metric", q.name, "error", err)
			failures++
			continue
		}
		for _, sample := range vector {
			key := podKey{
				namespace: string(sample.Metric["namespace"]),
				pod:       string(sample.Metric["pod"]),
			}
			if key.pod == "" {
				key.pod = string(sample.Metric["persistentvolumeclaim"])
			}
			if key.namespace == "" {
				continue
			}
			f, ok := pods[key]
			if !ok {
				f = &podFigures{}
				pods[key] = f
			}
			q.apply(f, float64(sample.Value))
		}
	}

	if failures == len(queries) {
		return nil, 0, fmt.Errorf("all %d prometheus queries failed", failures)
	}

	rows := make([]ingest.PodSampleRow, 0, len(pods))
	for key, f := range pods {
		rows = append(rows, ingest.PodSampleRow{
			Namespace:       key.namespace,
			PodName:         key.pod,
			ClusterName:     s.clusterName,
			CPURequests:     formatCores(f.cpuRequests),
			CPULimits:       formatCores(f.cpuLimits),
			CPUUsageCores:   f.cpuUsage,
			MemoryRequests:  formatBytes(f.memRequests),
			MemoryLimits:    formatBytes(f.memLimits),
			MemoryUsage:     f.memUsage,
			StorageRequests: formatBytes(f.stoRequests),
			StorageUsage:    f.stoUsage,
			Timestamp:       to,
		})
	}

	samples, skipped := ingest.NormalizePodSamples(rows)
	if skipped > 0 {
		slog.Warn("Skipped malformed pod samples", "skipped", skipped, "collected", len(samples))
	}
	slog.Info("Collected kubernetes usage samples", "count", len(samples), "cluster", s.clusterName)
	return samples, skipped, nil
}

// formatCores renders a Prometheus core count as a quantity string.
func formatCores(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// formatBytes renders a Prometheus byte count as a quantity string. Byte
// quantities must be integral.
func formatBytes(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(int64(v), 10)
}

func (s *PrometheusSource) queryVector(ctx context.Context, query string, at time.Time) (model.Vector, error) {
	result, warnings, err := s.api.Query(ctx, query, at)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	if len(warnings) > 0 {
		slog.Warn("Prometheus query warnings", "warnings", warnings)
	}
	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", result)
	}
	return vector, nil
}
