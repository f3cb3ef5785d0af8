// Package rest provides REST API handlers
package rest

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// getCostOverviewHandler returns the cluster-wide cost overview for a period
func getCostOverviewHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	period, err := parsePeriod(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeValidationError})
		return
	}

	overview, err := store.GetCostOverview(ctx, period)
	if err != nil {
		respondStoreError(c, err, "get cost overview")
		return
	}

	c.JSON(http.StatusOK, overview)
}

// listNamespaceCostsHandler returns per-namespace costs for a period
func listNamespaceCostsHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	period, err := parsePeriod(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeValidationError})
		return
	}

	costs, err := store.ListNamespaceCosts(ctx, period)
	if err != nil {
		respondStoreError(c, err, "list namespace costs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"namespaces": costs,
		"total":      len(costs),
	})
}

// getCostTrendsHandler returns the monthly cost series
func getCostTrendsHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	months := intQuery(c, "months", 6, 24)
	namespace := c.Query("namespace")

	trends, err := store.GetCostTrends(ctx, namespace, months)
	if err != nil {
		respondStoreError(c, err, "get cost trends")
		return
	}

	c.JSON(http.StatusOK, CostTrendsResponse{Trends: trends, Months: months})
}

// listAzureResourceCostsHandler returns per-resource azure costs for a period
func listAzureResourceCostsHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	period, err := parsePeriod(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeValidationError})
		return
	}

	resources, err := store.ListAzureResourceCosts(ctx, period)
	if err != nil {
		respondStoreError(c, err, "list azure resource costs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resources": resources,
		"total":     len(resources),
	})
}

// listKubernetesMetricsHandler returns per-namespace usage metrics over a
// trailing window
func listKubernetesMetricsHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	hours := intQuery(c, "hours", 24, 24*30)
	to := time.Now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)

	metrics, err := store.ListNamespaceUsageMetrics(ctx, from, to)
	if err != nil {
		respondStoreError(c, err, "list kubernetes metrics")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"metrics": metrics,
		"hours":   hours,
	})
}
