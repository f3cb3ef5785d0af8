package storage

import (
	"context"
	"fmt"
)

// schema holds the DDL for all engine tables. The pending partial unique
// index is the cross-process dedup guarantee for recommendation generation:
// an insert that races another pending record for the same scope conflicts
// instead of duplicating.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS cost_records (
		id              BIGSERIAL PRIMARY KEY,
		source          TEXT NOT NULL,
		namespace       TEXT NOT NULL DEFAULT '',
		resource_group  TEXT NOT NULL DEFAULT '',
		service_name    TEXT NOT NULL DEFAULT '',
		resource_name   TEXT NOT NULL,
		resource_type   TEXT NOT NULL DEFAULT '',
		cost            DOUBLE PRECISION NOT NULL,
		currency        TEXT NOT NULL DEFAULT 'USD',
		timestamp       TIMESTAMPTZ NOT NULL,
		billing_period  TEXT NOT NULL DEFAULT '',
		tags            JSONB,
		CONSTRAINT ux_cost_records_identity
			UNIQUE (source, resource_name, service_name, namespace, timestamp)
	)`,
	`CREATE INDEX IF NOT EXISTS ix_cost_records_timestamp ON cost_records (timestamp)`,
	`CREATE INDEX IF NOT EXISTS ix_cost_records_namespace ON cost_records (namespace)`,

	`CREATE TABLE IF NOT EXISTS usage_samples (
		id               BIGSERIAL PRIMARY KEY,
		namespace        TEXT NOT NULL,
		pod_name         TEXT NOT NULL DEFAULT '',
		deployment_name  TEXT NOT NULL DEFAULT '',
		cluster_name     TEXT NOT NULL DEFAULT 'default',
		cpu_requests     DOUBLE PRECISION NOT NULL DEFAULT 0,
		cpu_limits       DOUBLE PRECISION NOT NULL DEFAULT 0,
		cpu_usage        DOUBLE PRECISION NOT NULL DEFAULT 0,
		memory_requests  DOUBLE PRECISION NOT NULL DEFAULT 0,
		memory_limits    DOUBLE PRECISION NOT NULL DEFAULT 0,
		memory_usage     DOUBLE PRECISION NOT NULL DEFAULT 0,
		storage_requests DOUBLE PRECISION NOT NULL DEFAULT 0,
		storage_usage    DOUBLE PRECISION NOT NULL DEFAULT 0,
		timestamp        TIMESTAMPTZ NOT NULL,
		labels           JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS ix_usage_samples_ns_ts ON usage_samples (namespace, timestamp)`,

	`CREATE TABLE IF NOT EXISTS namespace_costs (
		id             BIGSERIAL PRIMARY KEY,
		namespace      TEXT NOT NULL,
		cluster_name   TEXT NOT NULL,
		total_cost     DOUBLE PRECISION NOT NULL,
		currency       TEXT NOT NULL DEFAULT 'USD',
		cost_breakdown JSONB NOT NULL,
		period_start   TIMESTAMPTZ NOT NULL,
		period_end     TIMESTAMPTZ NOT NULL,
		CONSTRAINT ux_namespace_costs_scope
			UNIQUE (namespace, cluster_name, period_start, period_end)
	)`,

	`CREATE TABLE IF NOT EXISTS cost_comparisons (
		id                    BIGSERIAL PRIMARY KEY,
		namespace             TEXT NOT NULL DEFAULT '',
		cluster_name          TEXT NOT NULL,
		comparison_type       TEXT NOT NULL,
		current_period_cost   DOUBLE PRECISION NOT NULL,
		previous_period_cost  DOUBLE PRECISION NOT NULL,
		percentage_change     DOUBLE PRECISION,
		absolute_change       DOUBLE PRECISION NOT NULL,
		current_period_start  TIMESTAMPTZ NOT NULL,
		current_period_end    TIMESTAMPTZ NOT NULL,
		previous_period_start TIMESTAMPTZ NOT NULL,
		previous_period_end   TIMESTAMPTZ NOT NULL,
		created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS ix_cost_comparisons_created ON cost_comparisons (created_at)`,

	`CREATE TABLE IF NOT EXISTS recommendations (
		id                   UUID PRIMARY KEY,
		namespace            TEXT NOT NULL,
		cluster_name         TEXT NOT NULL,
		resource_type        TEXT NOT NULL,
		resource_name        TEXT NOT NULL,
		recommendation_type  TEXT NOT NULL,
		current_value        DOUBLE PRECISION NOT NULL,
		recommended_value    DOUBLE PRECISION NOT NULL,
		potential_savings    DOUBLE PRECISION NOT NULL,
		confidence_score     DOUBLE PRECISION NOT NULL,
		priority             TEXT NOT NULL,
		description          TEXT NOT NULL DEFAULT '',
		implementation_steps JSONB,
		status               TEXT NOT NULL DEFAULT 'pending',
		created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		implemented_at       TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ux_recommendations_pending
		ON recommendations (namespace, cluster_name, resource_name, recommendation_type)
		WHERE status = 'pending'`,
	`CREATE INDEX IF NOT EXISTS ix_recommendations_status ON recommendations (status)`,
}

// EnsureSchema creates the engine tables if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
