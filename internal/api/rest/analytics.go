// Package rest provides REST API handlers
package rest

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/efficiency"
	"github.com/AwesomeGRV/CloudCostGuard/internal/trend"
	"github.com/gin-gonic/gin"
)

// listComparisonsHandler returns stored period-over-period comparisons
func listComparisonsHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	ctype := c.Query("comparison_type")
	if ctype != "" && ctype != string(trend.MonthOverMonth) && ctype != string(trend.WeekOverWeek) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Unknown comparison_type: " + ctype,
			Code:  CodeValidationError,
		})
		return
	}
	limit := intQuery(c, "limit", 50, 500)

	comparisons, err := store.ListComparisons(ctx, ctype, limit)
	if err != nil {
		respondStoreError(c, err, "list comparisons")
		return
	}

	c.JSON(http.StatusOK, ComparisonList{
		Comparisons: comparisons,
		Total:       len(comparisons),
	})
}

// getEfficiencyMetricsHandler scores resource efficiency per namespace over
// a trailing window
func getEfficiencyMetricsHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	hours := intQuery(c, "hours", 24*7, 24*30)
	to := time.Now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)

	samples, err := store.ListUsageSamples(ctx, from, to)
	if err != nil {
		respondStoreError(c, err, "get efficiency metrics")
		return
	}

	byNS := efficiency.ScoreNamespaces(samples, scoringThresholds)
	metrics := make([]efficiency.Metric, 0, len(byNS))
	for _, m := range byNS {
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool {
		return metrics[i].Namespace < metrics[j].Namespace
	})

	c.JSON(http.StatusOK, gin.H{
		"metrics": metrics,
		"hours":   hours,
	})
}

// getCostForecastHandler projects future monthly costs from the historical
// series
func getCostForecastHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	months := intQuery(c, "months", 6, 24)
	horizon := intQuery(c, "horizon", 3, 12)
	namespace := c.Query("namespace")

	history, err := store.GetCostTrends(ctx, namespace, months)
	if err != nil {
		respondStoreError(c, err, "get cost forecast")
		return
	}

	forecast, err := trend.Forecast(history, horizon, forecastPolicy)
	if err != nil {
		if errors.Is(err, trend.ErrInsufficientData) {
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
				Error: "Not enough historical data to forecast; need at least two monthly points",
				Code:  CodeInsufficientData,
			})
			return
		}
		respondStoreError(c, err, "get cost forecast")
		return
	}

	c.JSON(http.StatusOK, forecast)
}

// listTopSpendersHandler ranks namespaces by cost for a period
func listTopSpendersHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	period, err := parsePeriod(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeValidationError})
		return
	}
	limit := intQuery(c, "limit", 10, 100)

	spenders, err := store.ListTopSpenders(ctx, period, limit)
	if err != nil {
		respondStoreError(c, err, "list top spenders")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"top_spenders": spenders,
		"total":        len(spenders),
	})
}
