// Package rest provides REST API handlers
package rest

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/aggregate"
	"github.com/AwesomeGRV/CloudCostGuard/internal/recommend"
	"github.com/gin-gonic/gin"
)

// requireStore aborts with 503 when no store has been configured.
func requireStore(c *gin.Context) bool {
	if store == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Store not configured",
			Code:  CodeInternalError,
		})
		return false
	}
	return true
}

// parsePeriod reads period_start/period_end query params (RFC 3339),
// defaulting to the current calendar month. The window is half-open.
func parsePeriod(c *gin.Context) (aggregate.Period, error) {
	period := aggregate.MonthPeriod(time.Now().UTC())

	if s := c.Query("period_start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return period, fmt.Errorf("invalid period_start: %s", s)
		}
		period.Start = t
	}
	if s := c.Query("period_end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return period, fmt.Errorf("invalid period_end: %s", s)
		}
		period.End = t
	}
	if !period.End.After(period.Start) {
		return period, fmt.Errorf("period_end must be after period_start")
	}
	return period, nil
}

// intQuery reads an integer query param with a default and an upper bound.
func intQuery(c *gin.Context, name string, def, max int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(def)))
	if err != nil || v < 1 {
		return def
	}
	if max > 0 && v > max {
		return max
	}
	return v
}

// respondStoreError maps storage errors to the uniform error envelope.
func respondStoreError(c *gin.Context, err error, action string) {
	switch {
	case errors.Is(err, recommend.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "Recommendation not found",
			Code:  CodeNotFound,
		})
	case errors.Is(err, recommend.ErrInvalidTransition):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  CodeInvalidTransition,
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "Failed to " + action,
			Code:  CodeInternalError,
		})
	}
}
