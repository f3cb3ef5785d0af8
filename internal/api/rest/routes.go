// Package rest provides REST API handlers
package rest

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up all REST API routes
func RegisterRoutes(r *gin.Engine) {
	// Health endpoints
	r.GET("/health", healthHandler)
	r.GET("/healthz", healthzHandler)
	r.GET("/readyz", readyzHandler)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Costs
		costs := v1.Group("/costs")
		{
			costs.GET("/overview", getCostOverviewHandler)
			costs.GET("/namespaces", listNamespaceCostsHandler)
			costs.GET("/trends", getCostTrendsHandler)
			costs.GET("/azure-resources", listAzureResourceCostsHandler)
			costs.GET("/kubernetes-metrics", listKubernetesMetricsHandler)
		}

		// Recommendations - list, summary and generation
		recommendations := v1.Group("/recommendations")
		{
			recommendations.GET("", listRecommendationsHandler)
			recommendations.GET("/summary", getRecommendationSummaryHandler)
			recommendations.POST("/generate", generateRecommendationsHandler)
		}

		// Recommendation actions - by ID
		recActions := v1.Group("/recommendation")
		{
			recActions.GET("/:id", getRecommendationHandler)
			recActions.PUT("/:id/status", updateRecommendationStatusHandler)
		}

		// Analytics
		analytics := v1.Group("/analytics")
		{
			analytics.GET("/comparisons", listComparisonsHandler)
			analytics.GET("/efficiency-metrics", getEfficiencyMetricsHandler)
			analytics.GET("/cost-forecast", getCostForecastHandler)
			analytics.GET("/top-spenders", listTopSpendersHandler)
		}
	}
}
