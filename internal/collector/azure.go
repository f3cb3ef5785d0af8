package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
)

// BillingClient is the boundary to the Azure Cost Management integration.
// The engine consumes its normalized row output, not the wire protocol.
type BillingClient interface {
	UsageRows(ctx context.Context, from, to time.Time) ([]ingest.BillingRow, error)
}

// AzureSource adapts a BillingClient into a CostSource.
type AzureSource struct {
	client BillingClient
}

// NewAzureSource creates the Azure cost source.
func NewAzureSource(client BillingClient) *AzureSource {
	return &AzureSource{client: client}
}

// Name implements CostSource.
func (s *AzureSource) Name() string { return "azure" }

// CollectCosts fetches billing rows and normalizes them into cost records.
// Rows that fail normalization are dropped and counted, not fatal.
func (s *AzureSource) CollectCosts(ctx context.Context, from, to time.Time) ([]ingest.CostRecord, int, error) {
	rows, err := s.client.UsageRows(ctx, from, to)
	if err != nil {
		return nil, 0, fmt.Errorf("azure billing query: %w", err)
	}

	records, skipped := ingest.NormalizeBillingRows(rows)
	if skipped > 0 {
		slog.Warn("Skipped malformed azure billing rows", "skipped", skipped, "collected", len(records))
	}
	slog.Info("Collected azure cost records", "count", len(records), "from", from, "to", to)
	return records, skipped, nil
}
