// Package storage provides database access for the cost intelligence engine
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/recommend"
)

const recommendationColumns = `
	id, namespace, cluster_name, resource_type, resource_name,
	recommendation_type, current_value, recommended_value,
	potential_savings, confidence_score, priority, description,
	implementation_steps, status, created_at, implemented_at
`

// scanRecommendation reads one recommendation row
func scanRecommendation(row interface {
	Scan(dest ...interface{}) error
}) (recommend.OptimizationRecommendation, error) {
	var rec recommend.OptimizationRecommendation
	var steps []byte
	var implementedAt sql.NullTime

	err := row.Scan(
		&rec.ID, &rec.Namespace, &rec.ClusterName, &rec.ResourceType,
		&rec.ResourceName, &rec.RecommendationType, &rec.CurrentValue,
		&rec.RecommendedValue, &rec.PotentialSavings, &rec.ConfidenceScore,
		&rec.Priority, &rec.Description, &steps, &rec.Status,
		&rec.CreatedAt, &implementedAt,
	)
	if err != nil {
		return rec, err
	}

	if len(steps) > 0 {
		if err := json.Unmarshal(steps, &rec.ImplementationSteps); err != nil {
			return rec, fmt.Errorf("failed to decode implementation steps: %w", err)
		}
	}
	if implementedAt.Valid {
		rec.ImplementedAt = &implementedAt.Time
	}
	return rec, nil
}

// ListRecommendations returns recommendations with optional filters. A limit
// of zero means unbounded.
func (r *Repository) ListRecommendations(ctx context.Context, namespace, clusterName, status, priority string, limit int) ([]recommend.OptimizationRecommendation, error) {
	query := `
		SELECT ` + recommendationColumns + `
		FROM recommendations
		WHERE ($1 = '' OR namespace = $1)
		  AND ($2 = '' OR cluster_name = $2)
		  AND ($3 = '' OR status = $3)
		  AND ($4 = '' OR priority = $4)
		ORDER BY created_at DESC, id
	`
	if limit > 0 {
		query += " LIMIT " + strconv.Itoa(limit)
	}

	rows, err := r.db.QueryContext(ctx, query, namespace, clusterName, status, priority)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendations: %w", err)
	}
	defer rows.Close()

	var recs []recommend.OptimizationRecommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// GetRecommendationByID returns a recommendation by ID
func (r *Repository) GetRecommendationByID(ctx context.Context, id string) (*recommend.OptimizationRecommendation, error) {
	query := `
		SELECT ` + recommendationColumns + `
		FROM recommendations
		WHERE id = $1
	`

	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", recommend.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}

	return &rec, nil
}

// UpdateRecommendationStatus moves a recommendation through its lifecycle.
// The row is locked for the validation so a concurrent update cannot slip a
// second transition past a terminal state.
func (r *Repository) UpdateRecommendationStatus(ctx context.Context, id string, status recommend.Status) (*recommend.OptimizationRecommendation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var current recommend.Status
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM recommendations WHERE id = $1 FOR UPDATE", id,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", recommend.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock recommendation: %w", err)
	}

	if err := recommend.ValidateTransition(current, status); err != nil {
		return nil, err
	}

	var implementedAt sql.NullTime
	if status == recommend.StatusImplemented {
		implementedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE recommendations SET status = $1, implemented_at = $2 WHERE id = $3",
		status, implementedAt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update recommendation status: %w", err)
	}

	rec, err := scanRecommendation(tx.QueryRowContext(ctx, `
		SELECT `+recommendationColumns+`
		FROM recommendations
		WHERE id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to reread recommendation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &rec, nil
}

// PendingRecommendations returns the open set for one cluster, feeding the
// generator's dedup check
func (r *Repository) PendingRecommendations(ctx context.Context, clusterName string) ([]recommend.OptimizationRecommendation, error) {
	query := `
		SELECT ` + recommendationColumns + `
		FROM recommendations
		WHERE status = 'pending' AND cluster_name = $1
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query, clusterName)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending recommendations: %w", err)
	}
	defer rows.Close()

	var recs []recommend.OptimizationRecommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// InsertRecommendations persists generated candidates and returns the ones
// that actually landed. The partial unique index on pending scopes turns a
// race between two generation runs into a per-row no-op conflict, so any
// candidate may drop out, not just trailing ones.
func (r *Repository) InsertRecommendations(ctx context.Context, recs []recommend.OptimizationRecommendation) ([]recommend.OptimizationRecommendation, error) {
	if len(recs) == 0 {
		return nil, nil
	}

	query := `
		INSERT INTO recommendations (` + recommendationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (namespace, cluster_name, resource_name, recommendation_type)
			WHERE status = 'pending'
			DO NOTHING
	`

	var inserted []recommend.OptimizationRecommendation
	for _, rec := range recs {
		steps, err := json.Marshal(rec.ImplementationSteps)
		if err != nil {
			return inserted, fmt.Errorf("failed to encode implementation steps: %w", err)
		}
		var implementedAt sql.NullTime
		if rec.ImplementedAt != nil {
			implementedAt = sql.NullTime{Time: *rec.ImplementedAt, Valid: true}
		}

		result, err := r.db.ExecContext(ctx, query,
			rec.ID, rec.Namespace, rec.ClusterName, rec.ResourceType,
			rec.ResourceName, rec.RecommendationType, rec.CurrentValue,
			rec.RecommendedValue, rec.PotentialSavings, rec.ConfidenceScore,
			rec.Priority, rec.Description, steps, rec.Status,
			rec.CreatedAt, implementedAt,
		)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert recommendation: %w", err)
		}
		if n, _ := result.RowsAffected(); n > 0 {
			inserted = append(inserted, rec)
		}
	}

	return inserted, nil
}
