// Package collector fetches billing and usage data from upstream sources,
// concurrently and with bounded retries. A failed source degrades to a
// recorded gap; it never blocks the other sources' results.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
)

// CostSource produces normalized cost records for a time window, along with
// the count of raw rows normalization rejected.
type CostSource interface {
	Name() string
	CollectCosts(ctx context.Context, from, to time.Time) ([]ingest.CostRecord, int, error)
}

// UsageSource produces normalized usage samples for a time window, along
// with the count of raw rows normalization rejected.
type UsageSource interface {
	Name() string
	CollectUsage(ctx context.Context, from, to time.Time) ([]ingest.UsageSample, int, error)
}

// Gap records a source that failed to contribute to a run. Surfaced to
// callers as a data-freshness flag rather than an error.
type Gap struct {
	Source     string    `json:"source"`
	Error      string    `json:"error"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Batch is the combined output of one collection run.
type Batch struct {
	Records []ingest.CostRecord
	Samples []ingest.UsageSample
	Gaps    []Gap
	// Skipped counts rows each source produced but normalization rejected.
	Skipped int
}

// Fresh reports whether every source contributed.
func (b Batch) Fresh() bool {
	return len(b.Gaps) == 0
}

// Config bounds each source fetch.
type Config struct {
	Timeout time.Duration
	Retries int
}

// DefaultConfig returns the standard fetch bounds.
func DefaultConfig() Config {
	return Config{Timeout: 60 * time.Second, Retries: 3}
}

// Fetcher runs all configured sources concurrently.
type Fetcher struct {
	costSources  []CostSource
	usageSources []UsageSource
	cfg          Config
}

// NewFetcher creates a fetcher over the given sources.
func NewFetcher(cfg Config, costs []CostSource, usages []UsageSource) *Fetcher {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Fetcher{costSources: costs, usageSources: usages, cfg: cfg}
}

// Collect fetches all sources for the window. Each source runs in its own
// goroutine with its own timeout and retry budget; failures become gaps.
func (f *Fetcher) Collect(ctx context.Context, from, to time.Time) Batch {
	var (
		mu    sync.Mutex
		batch Batch
		wg    sync.WaitGroup
	)

	addGap := func(name string, err error) {
		mu.Lock()
		batch.Gaps = append(batch.Gaps, Gap{Source: name, Error: err.Error(), OccurredAt: time.Now().UTC()})
		mu.Unlock()
		slog.Warn("Collector source failed, recording gap", "source", name, "error", err)
	}

	for _, src := range f.costSources {
		wg.Add(1)
		go func(src CostSource) {
			defer wg.Done()
			records, skipped, err := retryCosts(ctx, src, from, to, f.cfg)
			if err != nil {
				addGap(src.Name(), err)
				return
			}
			mu.Lock()
			batch.Records = append(batch.Records, records...)
			batch.Skipped += skipped
			mu.Unlock()
		}(src)
	}

	for _, src := range f.usageSources {
		wg.Add(1)
		go func(src UsageSource) {
			defer wg.Done()
			samples, skipped, err := retryUsage(ctx, src, from, to, f.cfg)
			if err != nil {
				addGap(src.Name(), err)
				return
			}
			mu.Lock()
			batch.Samples = append(batch.Samples, samples...)
			batch.Skipped += skipped
			mu.Unlock()
		}(src)
	}

	wg.Wait()
	return batch
}

func retryCosts(ctx context.Context, src CostSource, from, to time.Time, cfg Config) ([]ingest.CostRecord, int, error) {
	var lastErr error
	for attempt := 1; attempt <= cfg.Retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		records, skipped, err := src.CollectCosts(attemptCtx, from, to)
		cancel()
		if err == nil {
			return records, skipped, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, 0, fmt.Errorf("source %s failed after %d attempts: %w", src.Name(), cfg.Retries, lastErr)
}

func retryUsage(ctx context.Context, src UsageSource, from, to time.Time, cfg Config) ([]ingest.UsageSample, int, error) {
	var lastErr error
	for attempt := 1; attempt <= cfg.Retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		samples, skipped, err := src.CollectUsage(attemptCtx, from, to)
		cancel()
		if err == nil {
			return samples, skipped, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, 0, fmt.Errorf("source %s failed after %d attempts: %w", src.Name(), cfg.Retries, lastErr)
}
