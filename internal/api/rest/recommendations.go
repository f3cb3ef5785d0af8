// Package rest provides REST API handlers
package rest

import (
	"net/http"
	"strconv"

	"github.com/AwesomeGRV/CloudCostGuard/internal/recommend"
	"github.com/gin-gonic/gin"
)

// listRecommendationsHandler returns recommendations with optional filters
func listRecommendationsHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	namespace := c.Query("namespace")
	clusterName := c.Query("cluster_name")
	status := c.Query("status")
	priority := c.Query("priority")
	limit := intQuery(c, "limit", 100, 1000)

	if status != "" && !recommend.ValidStatus(recommend.Status(status)) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Unknown status filter: " + status,
			Code:  CodeValidationError,
		})
		return
	}

	recs, err := store.ListRecommendations(ctx, namespace, clusterName, status, priority, limit)
	if err != nil {
		respondStoreError(c, err, "list recommendations")
		return
	}

	c.JSON(http.StatusOK, RecommendationList{
		Recommendations: recs,
		Total:           len(recs),
	})
}

// getRecommendationSummaryHandler returns the derived summary over the full
// recommendation set
func getRecommendationSummaryHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()

	recs, err := store.ListRecommendations(ctx, "", "", "", "", 0)
	if err != nil {
		respondStoreError(c, err, "get recommendation summary")
		return
	}

	c.JSON(http.StatusOK, recommend.Summarize(recs))
}

// Bounds for the generation sample window requested via days_back.
const (
	defaultGenerateDaysBack = 7
	maxGenerateDaysBack     = 30
)

// generateRecommendationsHandler triggers an on-demand generation run
func generateRecommendationsHandler(c *gin.Context) {
	if generator == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Generator not configured",
			Code:  CodeInternalError,
		})
		return
	}

	clusterName := c.Query("cluster_name")

	daysBack := defaultGenerateDaysBack
	if raw := c.Query("days_back"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxGenerateDaysBack {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "days_back must be an integer between 1 and 30",
				Code:  CodeValidationError,
			})
			return
		}
		daysBack = v
	}

	result, err := generator.GenerateNow(c.Request.Context(), clusterName, daysBack)
	if err != nil {
		respondStoreError(c, err, "generate recommendations")
		return
	}

	c.JSON(http.StatusOK, GenerateRecommendationsResponse{
		GeneratedCount:    len(result.Created),
		SkippedDuplicates: result.SkippedDuplicates,
		Message:           "Recommendation generation completed",
	})
}

// getRecommendationHandler returns a recommendation by ID
func getRecommendationHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	rec, err := store.GetRecommendationByID(ctx, id)
	if err != nil {
		respondStoreError(c, err, "get recommendation")
		return
	}

	c.JSON(http.StatusOK, rec)
}

// updateRecommendationStatusHandler moves a recommendation through its
// lifecycle. Only pending records can change; implemented and dismissed are
// terminal.
func updateRecommendationStatusHandler(c *gin.Context) {
	if !requireStore(c) {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")

	var req UpdateRecommendationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: status is required",
			Code:  CodeValidationError,
		})
		return
	}

	status := recommend.Status(req.Status)
	if !recommend.ValidStatus(status) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Unknown status: " + req.Status,
			Code:  CodeValidationError,
		})
		return
	}

	rec, err := store.UpdateRecommendationStatus(ctx, id, status)
	if err != nil {
		respondStoreError(c, err, "update recommendation status")
		return
	}

	c.JSON(http.StatusOK, rec)
}
