// Package trend computes period-over-period cost comparisons and
// short-horizon cost forecasts from historical aggregates.
package trend

import (
	"fmt"
	"time"

	"github.com/AwesomeGRV/CloudCostGuard/internal/aggregate"
)

// ComparisonType selects how the current and previous periods are derived.
type ComparisonType string

const (
	MonthOverMonth ComparisonType = "month-over-month"
	WeekOverWeek   ComparisonType = "week-over-week"
)

// CostComparison is an immutable period-over-period comparison. A nil
// PercentageChange is the zero-previous sentinel: the previous period had no
// cost, so a percentage is undefined.
type CostComparison struct {
	Namespace           string         `json:"namespace,omitempty"`
	ClusterName         string         `json:"cluster_name"`
	CurrentPeriodCost   float64        `json:"current_period_cost"`
	PreviousPeriodCost  float64        `json:"previous_period_cost"`
	PercentageChange    *float64       `json:"percentage_change"`
	AbsoluteChange      float64        `json:"absolute_change"`
	ComparisonType      ComparisonType `json:"comparison_type"`
	CurrentPeriodStart  time.Time      `json:"current_period_start"`
	CurrentPeriodEnd    time.Time      `json:"current_period_end"`
	PreviousPeriodStart time.Time      `json:"previous_period_start"`
	PreviousPeriodEnd   time.Time      `json:"previous_period_end"`
	CreatedAt           time.Time      `json:"created_at"`
}

// ComparisonPeriods derives the half-open current and previous windows for a
// comparison type, anchored at now. Month-over-month compares the two most
// recent complete calendar months; week-over-week compares trailing 7-day
// windows.
func ComparisonPeriods(ctype ComparisonType, now time.Time) (current, previous aggregate.Period, err error) {
	switch ctype {
	case MonthOverMonth:
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		current = aggregate.Period{Start: monthStart.AddDate(0, -1, 0), End: monthStart}
		previous = aggregate.Period{Start: monthStart.AddDate(0, -2, 0), End: current.Start}
	case WeekOverWeek:
		current = aggregate.Period{Start: now.AddDate(0, 0, -7), End: now}
		previous = aggregate.Period{Start: now.AddDate(0, 0, -14), End: current.Start}
	default:
		err = fmt.Errorf("unsupported comparison type: %s", ctype)
	}
	return current, previous, err
}

// Compare builds a comparison between two period costs for one scope.
// percentage_change is (current-previous)/previous expressed in percent; a
// zero previous cost yields the nil sentinel, never a division.
func Compare(namespace, clusterName string, ctype ComparisonType, currentCost, previousCost float64, current, previous aggregate.Period, now time.Time) CostComparison {
	c := CostComparison{
		Namespace:           namespace,
		ClusterName:         clusterName,
		CurrentPeriodCost:   currentCost,
		PreviousPeriodCost:  previousCost,
		AbsoluteChange:      currentCost - previousCost,
		ComparisonType:      ctype,
		CurrentPeriodStart:  current.Start,
		CurrentPeriodEnd:    current.End,
		PreviousPeriodStart: previous.Start,
		PreviousPeriodEnd:   previous.End,
		CreatedAt:           now,
	}
	if previousCost != 0 {
		pct := (currentCost - previousCost) / previousCost * 100
		c.PercentageChange = &pct
	}
	return c
}
