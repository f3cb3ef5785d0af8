// Package rest provides REST API handlers
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/aggregate"
	"github.com/AwesomeGRV/CloudCostGuard/internal/ingest"
	"github.com/AwesomeGRV/CloudCostGuard/internal/recommend"
	"github.com/AwesomeGRV/CloudCostGuard/internal/trend"
	"github.com/gin-gonic/gin"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	overview        *aggregate.CostOverview
	namespaceCosts  []aggregate.NamespaceCost
	trends          []trend.CostTrend
	comparisons     []trend.CostComparison
	samples         []ingest.UsageSample
	recommendations map[string]*recommend.OptimizationRecommendation
	healthErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		recommendations: make(map[string]*recommend.OptimizationRecommendation),
	}
}

func (f *fakeStore) Health(ctx context.Context) error { return f.healthErr }

func (f *fakeStore) GetCostOverview(ctx context.Context, period aggregate.Period) (*aggregate.CostOverview, error) {
	if f.overview != nil {
		return f.overview, nil
	}
	return &aggregate.CostOverview{Currency: "USD", PeriodStart: period.Start, PeriodEnd: period.End}, nil
}

func (f *fakeStore) ListNamespaceCosts(ctx context.Context, period aggregate.Period) ([]aggregate.NamespaceCost, error) {
	return f.namespaceCosts, nil
}

func (f *fakeStore) GetCostTrends(ctx context.Context, namespace string, months int) ([]trend.CostTrend, error) {
	return f.trends, nil
}

func (f *fakeStore) ListAzureResourceCosts(ctx context.Context, period aggregate.Period) ([]AzureResourceCost, error) {
	return nil, nil
}

func (f *fakeStore) ListNamespaceUsageMetrics(ctx context.Context, from, to time.Time) ([]NamespaceUsageMetrics, error) {
	return nil, nil
}

func (f *fakeStore) ListComparisons(ctx context.Context, comparisonType string, limit int) ([]trend.CostComparison, error) {
	return f.comparisons, nil
}

func (f *fakeStore) ListUsageSamples(ctx context.Context, from, to time.Time) ([]ingest.UsageSample, error) {
	return f.samples, nil
}

func (f *fakeStore) ListTopSpenders(ctx context.Context, period aggregate.Period, limit int) ([]TopSpender, error) {
	return nil, nil
}

func (f *fakeStore) ListRecommendations(ctx context.Context, namespace, clusterName, status, priority string, limit int) ([]recommend.OptimizationRecommendation, error) {
	var recs []recommend.OptimizationRecommendation
	for _, r := range f.recommendations {
		if namespace != "" && r.Namespace != namespace {
			continue
		}
		if clusterName != "" && r.ClusterName != clusterName {
			continue
		}
		if status != "" && string(r.Status) != status {
			continue
		}
		if priority != "" && string(r.Priority) != priority {
			continue
		}
		recs = append(recs, *r)
	}
	return recs, nil
}

func (f *fakeStore) GetRecommendationByID(ctx context.Context, id string) (*recommend.OptimizationRecommendation, error) {
	r, ok := f.recommendations[id]
	if !ok {
		return nil, fmt.Errorf("get recommendation %s: %w", id, recommend.ErrNotFound)
	}
	return r, nil
}

func (f *fakeStore) UpdateRecommendationStatus(ctx context.Context, id string, status recommend.Status) (*recommend.OptimizationRecommendation, error) {
	r, ok := f.recommendations[id]
	if !ok {
		return nil, fmt.Errorf("update recommendation %s: %w", id, recommend.ErrNotFound)
	}
	if err := recommend.ValidateTransition(r.Status, status); err != nil {
		return nil, err
	}
	r.Status = status
	return r, nil
}

type fakeGenerator struct {
	result recommend.Result
	err    error

	gotCluster  string
	gotDaysBack int
	calls       int
}

func (f *fakeGenerator) GenerateNow(ctx context.Context, clusterName string, daysBack int) (recommend.Result, error) {
	f.gotCluster = clusterName
	f.gotDaysBack = daysBack
	f.calls++
	return f.result, f.err
}

func setupRouter(s *fakeStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	SetStore(s)
	router := gin.New()
	RegisterRoutes(router)
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	router := setupRouter(newFakeStore())

	w := doRequest(t, router, http.MethodGet, "/health", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", resp.Status)
	}
}

func TestReadyzReportsStoreFailure(t *testing.T) {
	s := newFakeStore()
	s.healthErr = fmt.Errorf("connection refused")
	router := setupRouter(s)

	w := doRequest(t, router, http.MethodGet, "/readyz", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestGetCostOverview(t *testing.T) {
	s := newFakeStore()
	s.overview = &aggregate.CostOverview{
		TotalCost:      800,
		AzureCost:      500,
		KubernetesCost: 300,
		Currency:       "USD",
	}
	router := setupRouter(s)

	w := doRequest(t, router, http.MethodGet, "/api/v1/costs/overview", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	var resp aggregate.CostOverview
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.TotalCost != 800 {
		t.Errorf("TotalCost = %v, want 800", resp.TotalCost)
	}
}

func TestGetCostOverviewRejectsBadPeriod(t *testing.T) {
	router := setupRouter(newFakeStore())

	w := doRequest(t, router, http.MethodGet, "/api/v1/costs/overview?period_start=yesterday", "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Code != CodeValidationError {
		t.Errorf("Code = %q, want %q", resp.Code, CodeValidationError)
	}
}

func TestGetCostOverviewRejectsInvertedPeriod(t *testing.T) {
	router := setupRouter(newFakeStore())

	w := doRequest(t, router, http.MethodGet,
		"/api/v1/costs/overview?period_start=2026-08-01T00:00:00Z&period_end=2026-07-01T00:00:00Z", "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListRecommendationsRejectsUnknownStatus(t *testing.T) {
	router := setupRouter(newFakeStore())

	w := doRequest(t, router, http.MethodGet, "/api/v1/recommendations?status=archived", "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestListRecommendationsFilters(t *testing.T) {
	s := newFakeStore()
	s.recommendations["r1"] = &recommend.OptimizationRecommendation{
		ID: "r1", Namespace: "web", Status: recommend.StatusPending, Priority: recommend.PriorityHigh,
	}
	s.recommendations["r2"] = &recommend.OptimizationRecommendation{
		ID: "r2", Namespace: "batch", Status: recommend.StatusDismissed, Priority: recommend.PriorityLow,
	}
	router := setupRouter(s)

	w := doRequest(t, router, http.MethodGet, "/api/v1/recommendations?status=pending", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp RecommendationList
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Total != 1 || resp.Recommendations[0].ID != "r1" {
		t.Errorf("got %+v, want only r1", resp)
	}
}

func TestListRecommendationsFiltersByCluster(t *testing.T) {
	s := newFakeStore()
	s.recommendations["r1"] = &recommend.OptimizationRecommendation{
		ID: "r1", Namespace: "web", ClusterName: "prod", Status: recommend.StatusPending,
	}
	s.recommendations["r2"] = &recommend.OptimizationRecommendation{
		ID: "r2", Namespace: "web", ClusterName: "staging", Status: recommend.StatusPending,
	}
	router := setupRouter(s)

	w := doRequest(t, router, http.MethodGet, "/api/v1/recommendations?cluster_name=staging", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp RecommendationList
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Total != 1 || resp.Recommendations[0].ID != "r2" {
		t.Errorf("got %+v, want only r2", resp)
	}
}

func TestGetRecommendationNotFound(t *testing.T) {
	router := setupRouter(newFakeStore())

	w := doRequest(t, router, http.MethodGet, "/api/v1/recommendation/missing", "")

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Code != CodeNotFound {
		t.Errorf("Code = %q, want %q", resp.Code, CodeNotFound)
	}
}

func TestUpdateRecommendationStatus(t *testing.T) {
	s := newFakeStore()
	s.recommendations["r1"] = &recommend.OptimizationRecommendation{
		ID: "r1", Namespace: "web", Status: recommend.StatusPending,
	}
	router := setupRouter(s)

	w := doRequest(t, router, http.MethodPut, "/api/v1/recommendation/r1/status",
		`{"status":"implemented"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if s.recommendations["r1"].Status != recommend.StatusImplemented {
		t.Errorf("stored status = %v, want implemented", s.recommendations["r1"].Status)
	}
}

func TestUpdateRecommendationStatusTerminalConflict(t *testing.T) {
	s := newFakeStore()
	s.recommendations["r1"] = &recommend.OptimizationRecommendation{
		ID: "r1", Status: recommend.StatusDismissed,
	}
	router := setupRouter(s)

	w := doRequest(t, router, http.MethodPut, "/api/v1/recommendation/r1/status",
		`{"status":"implemented"}`)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Code != CodeInvalidTransition {
		t.Errorf("Code = %q, want %q", resp.Code, CodeInvalidTransition)
	}
}

func TestUpdateRecommendationStatusValidation(t *testing.T) {
	s := newFakeStore()
	s.recommendations["r1"] = &recommend.OptimizationRecommendation{
		ID: "r1", Status: recommend.StatusPending,
	}
	router := setupRouter(s)

	tests := []struct {
		name string
		body string
	}{
		{"missing status", `{}`},
		{"unknown status", `{"status":"archived"}`},
		{"malformed json", `{status}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPut, "/api/v1/recommendation/r1/status", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestGenerateRecommendations(t *testing.T) {
	router := setupRouter(newFakeStore())
	gen := &fakeGenerator{result: recommend.Result{
		Created:           []recommend.OptimizationRecommendation{{ID: "r1"}, {ID: "r2"}},
		SkippedDuplicates: 3,
	}}
	SetGenerator(gen)
	defer SetGenerator(nil)

	w := doRequest(t, router, http.MethodPost, "/api/v1/recommendations/generate", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp GenerateRecommendationsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.GeneratedCount != 2 || resp.SkippedDuplicates != 3 {
		t.Errorf("generated/skipped = %d/%d, want 2/3", resp.GeneratedCount, resp.SkippedDuplicates)
	}
	if gen.gotCluster != "" || gen.gotDaysBack != 7 {
		t.Errorf("generator called with cluster %q, days_back %d, want defaults \"\", 7", gen.gotCluster, gen.gotDaysBack)
	}
}

func TestGenerateRecommendationsParams(t *testing.T) {
	router := setupRouter(newFakeStore())
	gen := &fakeGenerator{}
	SetGenerator(gen)
	defer SetGenerator(nil)

	w := doRequest(t, router, http.MethodPost,
		"/api/v1/recommendations/generate?cluster_name=staging&days_back=14", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if gen.gotCluster != "staging" {
		t.Errorf("cluster = %q, want staging", gen.gotCluster)
	}
	if gen.gotDaysBack != 14 {
		t.Errorf("days_back = %d, want 14", gen.gotDaysBack)
	}
}

func TestGenerateRecommendationsRejectsBadDaysBack(t *testing.T) {
	router := setupRouter(newFakeStore())
	gen := &fakeGenerator{}
	SetGenerator(gen)
	defer SetGenerator(nil)

	tests := []struct {
		name string
		raw  string
	}{
		{"not a number", "week"},
		{"zero", "0"},
		{"negative", "-3"},
		{"above maximum", "31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodPost,
				"/api/v1/recommendations/generate?days_back="+tt.raw, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
	if gen.calls != 0 {
		t.Errorf("generator ran %d times for invalid input, want 0", gen.calls)
	}
}

func TestGenerateRecommendationsWithoutGenerator(t *testing.T) {
	router := setupRouter(newFakeStore())
	SetGenerator(nil)

	w := doRequest(t, router, http.MethodPost, "/api/v1/recommendations/generate", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestListComparisonsRejectsUnknownType(t *testing.T) {
	router := setupRouter(newFakeStore())

	w := doRequest(t, router, http.MethodGet, "/api/v1/analytics/comparisons?comparison_type=year-over-year", "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestCostForecastInsufficientData(t *testing.T) {
	s := newFakeStore()
	s.trends = []trend.CostTrend{{Period: "2026-07", Cost: 100}}
	router := setupRouter(s)

	w := doRequest(t, router, http.MethodGet, "/api/v1/analytics/cost-forecast", "")

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Code != CodeInsufficientData {
		t.Errorf("Code = %q, want %q", resp.Code, CodeInsufficientData)
	}
}

func TestCostForecast(t *testing.T) {
	s := newFakeStore()
	s.trends = []trend.CostTrend{
		{Period: "2026-04", Cost: 100},
		{Period: "2026-05", Cost: 120},
		{Period: "2026-06", Cost: 140},
		{Period: "2026-07", Cost: 160},
	}
	router := setupRouter(s)

	w := doRequest(t, router, http.MethodGet, "/api/v1/analytics/cost-forecast?horizon=2", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	var resp trend.CostForecast
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Forecast) != 2 {
		t.Errorf("forecast points = %d, want 2", len(resp.Forecast))
	}
	if resp.TrendDirection != trend.DirectionIncreasing {
		t.Errorf("TrendDirection = %v, want increasing", resp.TrendDirection)
	}
}

func TestEfficiencyMetrics(t *testing.T) {
	s := newFakeStore()
	s.samples = []ingest.UsageSample{
		{Namespace: "web", CPU: ingest.ResourceFigures{Requests: 2, Usage: 0.4}},
	}
	router := setupRouter(s)

	w := doRequest(t, router, http.MethodGet, "/api/v1/analytics/efficiency-metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Metrics []json.RawMessage `json:"metrics"`
		Hours   int               `json:"hours"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(resp.Metrics) != 1 {
		t.Errorf("metrics = %d, want 1", len(resp.Metrics))
	}
	if resp.Hours != 168 {
		t.Errorf("hours = %d, want 168", resp.Hours)
	}
}

func TestStoreNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	SetStore(nil)
	router := gin.New()
	RegisterRoutes(router)

	w := doRequest(t, router, http.MethodGet, "/api/v1/costs/overview", "")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}
