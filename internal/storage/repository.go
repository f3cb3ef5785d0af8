// Package storage provides database access for the cost intelligence engine
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/aggregate"
	"github.com/AwesomeGRV/CloudCostGuard/internal/api/rest"
	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
	"github.com/AwesomeGRV/CloudCostGuard/internal/trend"
)

// Repository implements the storage interfaces
type Repository struct {
	db          *DB
	clusterName string
}

// NewRepository creates a new repository scoped to one cluster
func NewRepository(db *DB, clusterName string) *Repository {
	if clusterName == "" {
		clusterName = "default"
	}
	return &Repository{db: db, clusterName: clusterName}
}

// Health checks the backing database
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// CostRecordsInPeriod returns raw cost records inside a half-open period
func (r *Repository) CostRecordsInPeriod(ctx context.Context, period aggregate.Period) ([]ingest.CostRecord, error) {
	query := `
		SELECT source, namespace, resource_group, service_name, resource_name,
		       resource_type, cost, currency, timestamp, billing_period, tags
		FROM cost_records
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp, resource_name
	`

	rows, err := r.db.QueryContext(ctx, query, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost records: %w", err)
	}
	defer rows.Close()

	var records []ingest.CostRecord
	for rows.Next() {
		var rec ingest.CostRecord
		var tags []byte
		err := rows.Scan(
			&rec.Source, &rec.Namespace, &rec.ResourceGroup, &rec.ServiceName,
			&rec.ResourceName, &rec.ResourceType, &rec.Cost, &rec.Currency,
			&rec.Timestamp, &rec.BillingPeriod, &tags,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cost record: %w", err)
		}
		if len(tags) > 0 {
			if err := json.Unmarshal(tags, &rec.Tags); err != nil {
				return nil, fmt.Errorf("failed to decode cost record tags: %w", err)
			}
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// GetCostOverview aggregates stored cost records into the period overview
func (r *Repository) GetCostOverview(ctx context.Context, period aggregate.Period) (*aggregate.CostOverview, error) {
	records, err := r.CostRecordsInPeriod(ctx, period)
	if err != nil {
		return nil, err
	}
	result := aggregate.Aggregate(records, r.clusterName, period)
	return &result.Overview, nil
}

// ListNamespaceCosts returns persisted per-namespace costs for a period
func (r *Repository) ListNamespaceCosts(ctx context.Context, period aggregate.Period) ([]aggregate.NamespaceCost, error) {
	query := `
		SELECT namespace, cluster_name, total_cost, currency, cost_breakdown,
		       period_start, period_end
		FROM namespace_costs
		WHERE period_start = $1 AND period_end = $2
		ORDER BY namespace, cluster_name
	`

	rows, err := r.db.QueryContext(ctx, query, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query namespace costs: %w", err)
	}
	defer rows.Close()

	var costs []aggregate.NamespaceCost
	for rows.Next() {
		var nc aggregate.NamespaceCost
		var breakdown []byte
		err := rows.Scan(
			&nc.Namespace, &nc.ClusterName, &nc.TotalCost, &nc.Currency,
			&breakdown, &nc.PeriodStart, &nc.PeriodEnd,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan namespace cost: %w", err)
		}
		if err := json.Unmarshal(breakdown, &nc.CostBreakdown); err != nil {
			return nil, fmt.Errorf("failed to decode cost breakdown: %w", err)
		}
		costs = append(costs, nc)
	}

	return costs, rows.Err()
}

// GetCostTrends returns the monthly cost series over the trailing months,
// optionally scoped to one namespace
func (r *Repository) GetCostTrends(ctx context.Context, namespace string, months int) ([]trend.CostTrend, error) {
	if months < 1 {
		months = 6
	}
	since := time.Now().UTC().AddDate(0, -months, 0)

	query := `
		SELECT to_char(timestamp, 'YYYY-MM') AS month, SUM(cost)
		FROM cost_records
		WHERE timestamp >= $1 AND ($2 = '' OR namespace = $2)
		GROUP BY to_char(timestamp, 'YYYY-MM')
		ORDER BY month
	`

	rows, err := r.db.QueryContext(ctx, query, since, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost trends: %w", err)
	}
	defer rows.Close()

	var trends []trend.CostTrend
	index := make(map[string]int)
	for rows.Next() {
		var t trend.CostTrend
		if err := rows.Scan(&t.Period, &t.Cost); err != nil {
			return nil, fmt.Errorf("failed to scan cost trend: %w", err)
		}
		index[t.Period] = len(trends)
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Cluster-wide series carries the per-namespace split alongside.
	if namespace == "" && len(trends) > 0 {
		nsQuery := `
			SELECT to_char(timestamp, 'YYYY-MM') AS month, namespace, SUM(cost)
			FROM cost_records
			WHERE timestamp >= $1 AND namespace <> ''
			GROUP BY to_char(timestamp, 'YYYY-MM'), namespace
		`
		nsRows, err := r.db.QueryContext(ctx, nsQuery, since)
		if err != nil {
			return nil, fmt.Errorf("failed to query namespace trends: %w", err)
		}
		defer nsRows.Close()

		for nsRows.Next() {
			var month, ns string
			var cost float64
			if err := nsRows.Scan(&month, &ns, &cost); err != nil {
				return nil, fmt.Errorf("failed to scan namespace trend: %w", err)
			}
			i, ok := index[month]
			if !ok {
				continue
			}
			if trends[i].NamespaceCosts == nil {
				trends[i].NamespaceCosts = make(map[string]float64)
			}
			trends[i].NamespaceCosts[ns] = cost
		}
		if err := nsRows.Err(); err != nil {
			return nil, err
		}
	}

	return trends, nil
}

// ListAzureResourceCosts returns per-resource azure costs for a period
func (r *Repository) ListAzureResourceCosts(ctx context.Context, period aggregate.Period) ([]rest.AzureResourceCost, error) {
	query := `
		SELECT resource_name, resource_group, service_name, resource_type,
		       SUM(cost), MAX(currency)
		FROM cost_records
		WHERE source = 'azure' AND timestamp >= $1 AND timestamp < $2
		GROUP BY resource_name, resource_group, service_name, resource_type
		ORDER BY SUM(cost) DESC, resource_name
	`

	rows, err := r.db.QueryContext(ctx, query, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query azure resource costs: %w", err)
	}
	defer rows.Close()

	var resources []rest.AzureResourceCost
	for rows.Next() {
		var rc rest.AzureResourceCost
		err := rows.Scan(
			&rc.ResourceName, &rc.ResourceGroup, &rc.ServiceName,
			&rc.ResourceType, &rc.TotalCost, &rc.Currency,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan azure resource cost: %w", err)
		}
		resources = append(resources, rc)
	}

	return resources, rows.Err()
}

// ListNamespaceUsageMetrics reduces usage samples into per-namespace
// averages over a window
func (r *Repository) ListNamespaceUsageMetrics(ctx context.Context, from, to time.Time) ([]rest.NamespaceUsageMetrics, error) {
	query := `
		SELECT namespace,
		       COUNT(DISTINCT pod_name),
		       AVG(cpu_requests), AVG(cpu_usage),
		       AVG(memory_requests), AVG(memory_usage),
		       COUNT(*)
		FROM usage_samples
		WHERE timestamp >= $1 AND timestamp < $2
		GROUP BY namespace
		ORDER BY namespace
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query namespace usage metrics: %w", err)
	}
	defer rows.Close()

	var metrics []rest.NamespaceUsageMetrics
	for rows.Next() {
		var m rest.NamespaceUsageMetrics
		err := rows.Scan(
			&m.Namespace, &m.PodCount,
			&m.CPURequests, &m.CPUUsage,
			&m.MemoryRequests, &m.MemoryUsage,
			&m.SampleCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan namespace usage metrics: %w", err)
		}
		metrics = append(metrics, m)
	}

	return metrics, rows.Err()
}

// ListUsageSamples returns raw usage samples inside a window
func (r *Repository) ListUsageSamples(ctx context.Context, from, to time.Time) ([]ingest.UsageSample, error) {
	query := `
		SELECT namespace, pod_name, deployment_name, cluster_name,
		       cpu_requests, cpu_limits, cpu_usage,
		       memory_requests, memory_limits, memory_usage,
		       storage_requests, storage_usage,
		       timestamp, labels
		FROM usage_samples
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp
	`

	rows, err := r.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query usage samples: %w", err)
	}
	defer rows.Close()

	var samples []ingest.UsageSample
	for rows.Next() {
		var s ingest.UsageSample
		var labels []byte
		err := rows.Scan(
			&s.Namespace, &s.PodName, &s.DeploymentName, &s.ClusterName,
			&s.CPU.Requests, &s.CPU.Limits, &s.CPU.Usage,
			&s.Memory.Requests, &s.Memory.Limits, &s.Memory.Usage,
			&s.Storage.Requests, &s.Storage.Usage,
			&s.Timestamp, &labels,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan usage sample: %w", err)
		}
		if len(labels) > 0 {
			if err := json.Unmarshal(labels, &s.Labels); err != nil {
				return nil, fmt.Errorf("failed to decode sample labels: %w", err)
			}
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}

// ListComparisons returns stored comparisons, newest first
func (r *Repository) ListComparisons(ctx context.Context, comparisonType string, limit int) ([]trend.CostComparison, error) {
	if limit < 1 {
		limit = 50
	}
	query := `
		SELECT namespace, cluster_name, comparison_type,
		       current_period_cost, previous_period_cost,
		       percentage_change, absolute_change,
		       current_period_start, current_period_end,
		       previous_period_start, previous_period_end,
		       created_at
		FROM cost_comparisons
		WHERE ($1 = '' OR comparison_type = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, comparisonType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparisons: %w", err)
	}
	defer rows.Close()

	var comparisons []trend.CostComparison
	for rows.Next() {
		var c trend.CostComparison
		var pct sql.NullFloat64
		err := rows.Scan(
			&c.Namespace, &c.ClusterName, &c.ComparisonType,
			&c.CurrentPeriodCost, &c.PreviousPeriodCost,
			&pct, &c.AbsoluteChange,
			&c.CurrentPeriodStart, &c.CurrentPeriodEnd,
			&c.PreviousPeriodStart, &c.PreviousPeriodEnd,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan comparison: %w", err)
		}
		if pct.Valid {
			c.PercentageChange = &pct.Float64
		}
		comparisons = append(comparisons, c)
	}

	return comparisons, rows.Err()
}

// ListTopSpenders ranks namespaces by cost inside a period
func (r *Repository) ListTopSpenders(ctx context.Context, period aggregate.Period, limit int) ([]rest.TopSpender, error) {
	if limit < 1 {
		limit = 10
	}
	query := `
		SELECT namespace, SUM(cost), MAX(currency)
		FROM cost_records
		WHERE namespace <> '' AND timestamp >= $1 AND timestamp < $2
		GROUP BY namespace
		ORDER BY SUM(cost) DESC, namespace
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, period.Start, period.End, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top spenders: %w", err)
	}
	defer rows.Close()

	var spenders []rest.TopSpender
	var total float64
	for rows.Next() {
		var s rest.TopSpender
		if err := rows.Scan(&s.Namespace, &s.TotalCost, &s.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan top spender: %w", err)
		}
		total += s.TotalCost
		spenders = append(spenders, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range spenders {
		if total > 0 {
			spenders[i].Share = spenders[i].TotalCost / total * 100
		}
	}

	return spenders, nil
}

// Ensure Repository implements rest.Store interface
var _ rest.Store = (*Repository)(nil)
