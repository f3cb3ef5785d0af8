// Package storage provides database access for the cost intelligence engine
package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/AwesomeGRV/CloudCostGuard/internal/aggregate"
	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
	"github.com/AwesomeGRV/CloudCostGuard/internal/trend"
)

// InsertCostRecords persists collected records. Re-ingesting the same rows
// conflicts on record identity and inserts nothing; the returned count is the
// number of new rows.
func (r *Repository) InsertCostRecords(ctx context.Context, records []ingest.CostRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO cost_records (
			source, namespace, resource_group, service_name, resource_name,
			resource_type, cost, currency, timestamp, billing_period, tags
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT ON CONSTRAINT ux_cost_records_identity DO NOTHING
	`

	inserted := 0
	for _, rec := range records {
		var tags []byte
		if len(rec.Tags) > 0 {
			var err error
			tags, err = json.Marshal(rec.Tags)
			if err != nil {
				return inserted, fmt.Errorf("failed to encode cost record tags: %w", err)
			}
		}

		result, err := r.db.ExecContext(ctx, query,
			rec.Source, rec.Namespace, rec.ResourceGroup, rec.ServiceName,
			rec.ResourceName, rec.ResourceType, rec.Cost, rec.Currency,
			rec.Timestamp, rec.BillingPeriod, tags,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert cost record: %w", err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted++
		}
	}

	return inserted, nil
}

// InsertUsageSamples persists collected usage samples
func (r *Repository) InsertUsageSamples(ctx context.Context, samples []ingest.UsageSample) error {
	if len(samples) == 0 {
		return nil
	}

	query := `
		INSERT INTO usage_samples (
			namespace, pod_name, deployment_name, cluster_name,
			cpu_requests, cpu_limits, cpu_usage,
			memory_requests, memory_limits, memory_usage,
			storage_requests, storage_usage,
			timestamp, labels
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	for _, s := range samples {
		var labels []byte
		if len(s.Labels) > 0 {
			var err error
			labels, err = json.Marshal(s.Labels)
			if err != nil {
				return fmt.Errorf("failed to encode sample labels: %w", err)
			}
		}

		_, err := r.db.ExecContext(ctx, query,
			s.Namespace, s.PodName, s.DeploymentName, s.ClusterName,
			s.CPU.Requests, s.CPU.Limits, s.CPU.Usage,
			s.Memory.Requests, s.Memory.Limits, s.Memory.Usage,
			s.Storage.Requests, s.Storage.Usage,
			s.Timestamp, labels,
		)
		if err != nil {
			return fmt.Errorf("failed to insert usage sample: %w", err)
		}
	}

	return nil
}

// ReplaceNamespaceCosts swaps the persisted per-namespace aggregates for one
// cluster and period in a single transaction. Aggregation is wholesale
// recomputation, never incremental mutation.
func (r *Repository) ReplaceNamespaceCosts(ctx context.Context, clusterName string, period aggregate.Period, costs []aggregate.NamespaceCost) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM namespace_costs WHERE cluster_name = $1 AND period_start = $2 AND period_end = $3",
		clusterName, period.Start, period.End,
	)
	if err != nil {
		return fmt.Errorf("failed to clear namespace costs: %w", err)
	}

	query := `
		INSERT INTO namespace_costs (
			namespace, cluster_name, total_cost, currency, cost_breakdown,
			period_start, period_end
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, nc := range costs {
		breakdown, err := json.Marshal(nc.CostBreakdown)
		if err != nil {
			return fmt.Errorf("failed to encode cost breakdown: %w", err)
		}
		_, err = tx.ExecContext(ctx, query,
			nc.Namespace, nc.ClusterName, nc.TotalCost, nc.Currency,
			breakdown, nc.PeriodStart, nc.PeriodEnd,
		)
		if err != nil {
			return fmt.Errorf("failed to insert namespace cost: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveComparison persists one period-over-period comparison
func (r *Repository) SaveComparison(ctx context.Context, c trend.CostComparison) error {
	query := `
		INSERT INTO cost_comparisons (
			namespace, cluster_name, comparison_type,
			current_period_cost, previous_period_cost,
			percentage_change, absolute_change,
			current_period_start, current_period_end,
			previous_period_start, previous_period_end,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	var pct interface{}
	if c.PercentageChange != nil {
		pct = *c.PercentageChange
	}

	_, err := r.db.ExecContext(ctx, query,
		c.Namespace, c.ClusterName, c.ComparisonType,
		c.CurrentPeriodCost, c.PreviousPeriodCost,
		pct, c.AbsoluteChange,
		c.CurrentPeriodStart, c.CurrentPeriodEnd,
		c.PreviousPeriodStart, c.PreviousPeriodEnd,
		c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save comparison: %w", err)
	}

	return nil
}

// NamespacesInPeriod returns the distinct namespaces with cost inside a
// period
func (r *Repository) NamespacesInPeriod(ctx context.Context, period aggregate.Period) ([]string, error) {
	query := `
		SELECT DISTINCT namespace
		FROM cost_records
		WHERE namespace <> '' AND timestamp >= $1 AND timestamp < $2
		ORDER BY namespace
	`

	rows, err := r.db.QueryContext(ctx, query, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to query namespaces: %w", err)
	}
	defer rows.Close()

	var namespaces []string
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, fmt.Errorf("failed to scan namespace: %w", err)
		}
		namespaces = append(namespaces, ns)
	}

	return namespaces, rows.Err()
}

// PeriodCost sums stored record cost for a period, optionally scoped to one
// namespace
func (r *Repository) PeriodCost(ctx context.Context, namespace string, period aggregate.Period) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost), 0)
		FROM cost_records
		WHERE timestamp >= $1 AND timestamp < $2 AND ($3 = '' OR namespace = $3)
	`

	var total float64
	err := r.db.QueryRowContext(ctx, query, period.Start, period.End, namespace).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum period cost: %w", err)
	}

	return total, nil
}
