// Package scheduler drives the engine's periodic jobs: collection,
// aggregation, comparison and recommendation generation. Each job runs on
// its own cadence; a failed run is logged and retried at the next tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/aggregate"
	"github.com/AwesomeGRV/CloudCostGuard/internal/collector"
	"github.com/AwesomeGRV/CloudCostGuard/internal/config"
	"github.com/AwesomeGRV/CloudCostGuard/internal/efficiency"
	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
	"github.com/AwesomeGRV/CloudCostGuard/internal/recommend"
	"github.com/AwesomeGRV/CloudCostGuard/internal/report"
	"github.com/AwesomeGRV/CloudCostGuard/internal/trend"
)

// Repo is the slice of the storage layer the jobs read and write.
// *storage.Repository satisfies it.
type Repo interface {
	InsertCostRecords(ctx context.Context, records []ingest.CostRecord) (int, error)
	InsertUsageSamples(ctx context.Context, samples []ingest.UsageSample) error
	CostRecordsInPeriod(ctx context.Context, period aggregate.Period) ([]ingest.CostRecord, error)
	ReplaceNamespaceCosts(ctx context.Context, clusterName string, period aggregate.Period, costs []aggregate.NamespaceCost) error
	NamespacesInPeriod(ctx context.Context, period aggregate.Period) ([]string, error)
	PeriodCost(ctx context.Context, namespace string, period aggregate.Period) (float64, error)
	SaveComparison(ctx context.Context, c trend.CostComparison) error
	ListUsageSamples(ctx context.Context, from, to time.Time) ([]ingest.UsageSample, error)
	ListNamespaceCosts(ctx context.Context, period aggregate.Period) ([]aggregate.NamespaceCost, error)
	GetCostTrends(ctx context.Context, namespace string, months int) ([]trend.CostTrend, error)
	ListRecommendations(ctx context.Context, namespace, clusterName, status, priority string, limit int) ([]recommend.OptimizationRecommendation, error)
	PendingRecommendations(ctx context.Context, clusterName string) ([]recommend.OptimizationRecommendation, error)
	InsertRecommendations(ctx context.Context, recs []recommend.OptimizationRecommendation) ([]recommend.OptimizationRecommendation, error)
}

// Scheduler owns the background job loop.
type Scheduler struct {
	cfg          config.SchedulerConfig
	repo         Repo
	costFetcher  *collector.Fetcher
	usageFetcher *collector.Fetcher
	generator    *recommend.Generator
	locks        *recommend.ScopeLocks
	archive      *report.Archive
	clusterName  string

	forecastPolicy trend.Policy

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	archived map[string]bool
}

// Options collects the scheduler's dependencies. Archive may be nil.
type Options struct {
	Config         config.SchedulerConfig
	Repository     Repo
	CostFetcher    *collector.Fetcher
	UsageFetcher   *collector.Fetcher
	Generator      *recommend.Generator
	Archive        *report.Archive
	ClusterName    string
	ForecastPolicy trend.Policy
}

// New creates a scheduler.
func New(opts Options) *Scheduler {
	cluster := opts.ClusterName
	if cluster == "" {
		cluster = "default"
	}
	return &Scheduler{
		cfg:            opts.Config,
		repo:           opts.Repository,
		costFetcher:    opts.CostFetcher,
		usageFetcher:   opts.UsageFetcher,
		generator:      opts.Generator,
		locks:          recommend.NewScopeLocks(),
		archive:        opts.Archive,
		clusterName:    cluster,
		forecastPolicy: opts.ForecastPolicy,
		archived:       make(map[string]bool),
	}
}

// Start launches all periodic jobs. Jobs stop when Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.launch(ctx, "collect-costs", s.cfg.AzureCollectInterval, s.runCollectCosts)
	s.launch(ctx, "collect-usage", s.cfg.KubernetesCollectInterval, s.runCollectUsage)
	s.launch(ctx, "analyze", s.cfg.AnalyzeInterval, s.runAnalyze)
	s.launch(ctx, "compare", s.cfg.CompareInterval, s.runCompare)
	s.launch(ctx, "generate", s.cfg.GenerateInterval, s.runGenerate)

	slog.Info("Scheduler started", "cluster", s.clusterName)
}

// Stop cancels the jobs and waits for in-flight runs to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) launch(ctx context.Context, name string, interval time.Duration, job func(context.Context) error) {
	if interval <= 0 {
		slog.Warn("Job disabled, non-positive interval", "job", name)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				err := job(ctx)
				jobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
				if err != nil {
					jobFailures.WithLabelValues(name).Inc()
					slog.Error("Job failed", "job", name, "error", err)
					continue
				}
				jobRuns.WithLabelValues(name).Inc()
				slog.Info("Job completed", "job", name, "duration", time.Since(start))
			}
		}
	}()
}

// runCollectCosts fetches billing data over the trailing day and persists
// whatever new records it produced. Re-collected rows dedupe on identity.
func (s *Scheduler) runCollectCosts(ctx context.Context) error {
	if s.costFetcher == nil {
		return nil
	}
	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)

	batch := s.costFetcher.Collect(ctx, from, to)
	inserted, err := s.repo.InsertCostRecords(ctx, batch.Records)
	if err != nil {
		return fmt.Errorf("persist cost records: %w", err)
	}

	slog.Info("Cost collection run finished",
		"collected", len(batch.Records),
		"inserted", inserted,
		"fresh", batch.Fresh(),
	)
	return nil
}

// runCollectUsage fetches current pod samples and persists them.
func (s *Scheduler) runCollectUsage(ctx context.Context) error {
	if s.usageFetcher == nil {
		return nil
	}
	to := time.Now().UTC()
	from := to.Add(-s.cfg.KubernetesCollectInterval)

	batch := s.usageFetcher.Collect(ctx, from, to)
	if err := s.repo.InsertUsageSamples(ctx, batch.Samples); err != nil {
		return fmt.Errorf("persist usage samples: %w", err)
	}

	slog.Info("Usage collection run finished",
		"samples", len(batch.Samples),
		"fresh", batch.Fresh(),
	)
	return nil
}

// runAnalyze recomputes the current month's per-namespace aggregates
// wholesale and archives the previous month once it has closed.
func (s *Scheduler) runAnalyze(ctx context.Context) error {
	now := time.Now().UTC()
	period := aggregate.MonthPeriod(now)

	records, err := s.repo.CostRecordsInPeriod(ctx, period)
	if err != nil {
		return fmt.Errorf("load cost records: %w", err)
	}

	result := aggregate.Aggregate(records, s.clusterName, period)
	if result.Skipped > 0 {
		slog.Warn("Aggregation skipped malformed records", "skipped", result.Skipped)
	}

	if err := s.repo.ReplaceNamespaceCosts(ctx, s.clusterName, period, result.PerNamespace); err != nil {
		return fmt.Errorf("replace namespace costs: %w", err)
	}

	slog.Info("Analysis run finished",
		"total_cost", result.Overview.TotalCost,
		"namespaces", len(result.PerNamespace),
	)

	if s.archive != nil {
		if err := s.archiveClosedMonth(ctx, now); err != nil {
			slog.Error("Failed to archive closed month", "error", err)
		}
	}
	return nil
}

// archiveClosedMonth writes the previous month's report once per process.
func (s *Scheduler) archiveClosedMonth(ctx context.Context, now time.Time) error {
	prev := aggregate.MonthPeriod(now.AddDate(0, -1, 0))
	label := prev.Start.Format("2006-01")

	s.mu.Lock()
	done := s.archived[label]
	s.mu.Unlock()
	if done {
		return nil
	}

	records, err := s.repo.CostRecordsInPeriod(ctx, prev)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	result := aggregate.Aggregate(records, s.clusterName, prev)

	recs, err := s.repo.ListRecommendations(ctx, "", "", "", "", 0)
	if err != nil {
		return err
	}

	_, _, err = s.archive.Store(ctx, report.PeriodReport{
		Period:         label,
		ClusterName:    s.clusterName,
		GeneratedAt:    now,
		Overview:       result.Overview,
		NamespaceCosts: result.PerNamespace,
		Summary:        recommend.Summarize(recs),
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.archived[label] = true
	s.mu.Unlock()
	return nil
}

// runCompare computes and persists the period-over-period comparisons:
// cluster scope for both types, per-namespace for month-over-month.
func (s *Scheduler) runCompare(ctx context.Context) error {
	now := time.Now().UTC()

	for _, ctype := range []trend.ComparisonType{trend.MonthOverMonth, trend.WeekOverWeek} {
		current, previous, err := trend.ComparisonPeriods(ctype, now)
		if err != nil {
			return err
		}

		if err := s.compareScope(ctx, "", ctype, current, previous, now); err != nil {
			return err
		}

		if ctype != trend.MonthOverMonth {
			continue
		}
		namespaces, err := s.repo.NamespacesInPeriod(ctx, current)
		if err != nil {
			return err
		}
		for _, ns := range namespaces {
			if err := s.compareScope(ctx, ns, ctype, current, previous, now); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *Scheduler) compareScope(ctx context.Context, namespace string, ctype trend.ComparisonType, current, previous aggregate.Period, now time.Time) error {
	currentCost, err := s.repo.PeriodCost(ctx, namespace, current)
	if err != nil {
		return err
	}
	previousCost, err := s.repo.PeriodCost(ctx, namespace, previous)
	if err != nil {
		return err
	}

	comparison := trend.Compare(namespace, s.clusterName, ctype, currentCost, previousCost, current, previous, now)
	if err := s.repo.SaveComparison(ctx, comparison); err != nil {
		return fmt.Errorf("save comparison: %w", err)
	}
	return nil
}

// defaultGenerateWindowDays is the trailing sample window for the periodic
// generation job.
const defaultGenerateWindowDays = 7

// runGenerate is the periodic generation job.
func (s *Scheduler) runGenerate(ctx context.Context) error {
	_, err := s.GenerateNow(ctx, s.clusterName, defaultGenerateWindowDays)
	return err
}

// GenerateNow runs one generation pass over every namespace with samples in
// the trailing daysBack window. Each namespace scope is serialized through
// its lock so overlapping runs cannot both pass the dedup check. An empty
// clusterName selects the configured cluster. Implements the on-demand
// trigger behind the REST surface.
func (s *Scheduler) GenerateNow(ctx context.Context, clusterName string, daysBack int) (recommend.Result, error) {
	if clusterName == "" {
		clusterName = s.clusterName
	}
	if daysBack <= 0 {
		daysBack = defaultGenerateWindowDays
	}

	now := time.Now().UTC()
	period := aggregate.MonthPeriod(now)

	samples, err := s.repo.ListUsageSamples(ctx, now.AddDate(0, 0, -daysBack), now)
	if err != nil {
		return recommend.Result{}, fmt.Errorf("load usage samples: %w", err)
	}
	workloads := efficiency.ScoreWorkloads(samples)

	nsCosts, err := s.repo.ListNamespaceCosts(ctx, period)
	if err != nil {
		return recommend.Result{}, fmt.Errorf("load namespace costs: %w", err)
	}
	costsByNS := make(map[string]aggregate.NamespaceCost, len(nsCosts))
	for _, nc := range nsCosts {
		costsByNS[nc.Namespace] = nc
	}

	workloadsByNS := make(map[string][]efficiency.WorkloadMetric)
	for _, wl := range workloads {
		workloadsByNS[wl.Namespace] = append(workloadsByNS[wl.Namespace], wl)
	}

	namespaces := make(map[string]struct{}, len(workloadsByNS)+len(costsByNS))
	for ns := range workloadsByNS {
		namespaces[ns] = struct{}{}
	}
	for ns := range costsByNS {
		namespaces[ns] = struct{}{}
	}

	var total recommend.Result
	for ns := range namespaces {
		result, err := s.generateNamespace(ctx, ns, clusterName, workloadsByNS[ns], costsByNS, now)
		if err != nil {
			slog.Error("Generation failed for namespace", "namespace", ns, "error", err)
			continue
		}
		total.Created = append(total.Created, result.Created...)
		total.SkippedDuplicates += result.SkippedDuplicates
	}

	recommendationsCreated.Add(float64(len(total.Created)))
	slog.Info("Recommendation generation completed",
		"created", len(total.Created),
		"skipped_duplicates", total.SkippedDuplicates,
	)
	return total, nil
}

// generateNamespace runs one scope under its lock: read pending, generate,
// persist. The pending partial unique index backs the same guarantee across
// processes.
func (s *Scheduler) generateNamespace(ctx context.Context, namespace, clusterName string, workloads []efficiency.WorkloadMetric, costsByNS map[string]aggregate.NamespaceCost, now time.Time) (recommend.Result, error) {
	unlock := s.locks.Acquire(namespace, clusterName)
	defer unlock()

	pending, err := s.repo.PendingRecommendations(ctx, clusterName)
	if err != nil {
		return recommend.Result{}, fmt.Errorf("load pending recommendations: %w", err)
	}

	forecasts := make(map[string]*trend.CostForecast)
	history, err := s.repo.GetCostTrends(ctx, namespace, 6)
	if err != nil {
		return recommend.Result{}, fmt.Errorf("load cost history: %w", err)
	}
	if fc, err := trend.Forecast(history, 3, s.forecastPolicy); err == nil {
		forecasts[namespace] = fc
	}

	result := s.generator.Generate(recommend.Inputs{
		ClusterName:     clusterName,
		Workloads:       workloads,
		NamespaceCosts:  costsByNS,
		Forecasts:       forecasts,
		ExistingPending: pending,
		Now:             now,
	})

	inserted, err := s.repo.InsertRecommendations(ctx, result.Created)
	if err != nil {
		return recommend.Result{}, fmt.Errorf("persist recommendations: %w", err)
	}
	// Conflicts against rows another process created concurrently count as
	// duplicates, not creations. The store reports exactly which candidates
	// landed; any of them may have lost the race, not just trailing ones.
	result.SkippedDuplicates += len(result.Created) - len(inserted)
	result.Created = inserted

	return result, nil
}
