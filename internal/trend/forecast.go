package trend

import (
	"errors"
	"math"
	"time"
)

// ErrInsufficientData is returned when a forecast is requested with fewer
// than two historical points. The engine surfaces this rather than guessing.
var ErrInsufficientData = errors.New("insufficient historical data for forecasting")

// Direction labels the fitted trend of a cost series.
type Direction string

const (
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
)

// Confidence is a qualitative label for the statistical fit quality.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// CostTrend is one historical monthly cost point.
type CostTrend struct {
	Period         string             `json:"period"`
	Cost           float64            `json:"cost"`
	NamespaceCosts map[string]float64 `json:"namespace_costs,omitempty"`
}

// ForecastPoint is one projected future period.
type ForecastPoint struct {
	Period        string     `json:"period"`
	PredictedCost float64    `json:"predicted_cost"`
	Confidence    Confidence `json:"confidence"`
}

// CostForecast is the derived, non-persisted forecast view.
type CostForecast struct {
	HistoricalData    []CostTrend     `json:"historical_data"`
	Forecast          []ForecastPoint `json:"forecast"`
	TrendDirection    Direction       `json:"trend_direction"`
	MonthlyChangeRate float64         `json:"monthly_change_rate"`
	Confidence        Confidence      `json:"forecast_confidence"`
}

// Policy holds the forecast policy knobs: the stable band (percent of mean
// cost below which the per-month rate counts as flat) and the residual
// coefficient-of-variation edges for the confidence label.
type Policy struct {
	StableBandPct float64
	HighCV        float64
	MediumCV      float64
}

// DefaultPolicy returns the standard forecast policy.
func DefaultPolicy() Policy {
	return Policy{StableBandPct: 2.0, HighCV: 0.10, MediumCV: 0.30}
}

// linearFit computes a least-squares fit of y over x = 0..n-1.
func linearFit(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return slope, intercept
}

// residualCV is the coefficient of variation of fit residuals relative to
// the series mean. A degenerate mean yields +Inf, which classifies as low.
func residualCV(ys []float64, slope, intercept float64) float64 {
	n := float64(len(ys))
	var mean, sq float64
	for _, y := range ys {
		mean += y
	}
	mean /= n
	if mean == 0 {
		return math.Inf(1)
	}
	for i, y := range ys {
		r := y - (slope*float64(i) + intercept)
		sq += r * r
	}
	return math.Sqrt(sq/n) / math.Abs(mean)
}

func (p Policy) confidence(cv float64) Confidence {
	switch {
	case cv <= p.HighCV:
		return ConfidenceHigh
	case cv <= p.MediumCV:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// horizonConfidence degrades per-point confidence with forecast distance,
// capped by the overall fit confidence.
func horizonConfidence(monthsOut int, overall Confidence) Confidence {
	var byDistance Confidence
	switch {
	case monthsOut <= 1:
		byDistance = ConfidenceHigh
	case monthsOut <= 3:
		byDistance = ConfidenceMedium
	default:
		byDistance = ConfidenceLow
	}
	rank := map[Confidence]int{ConfidenceHigh: 2, ConfidenceMedium: 1, ConfidenceLow: 0}
	if rank[byDistance] < rank[overall] {
		return byDistance
	}
	return overall
}

// Forecast fits a linear trend to an ordered monthly history and projects
// horizonMonths future periods. trend_direction and monthly_change_rate are
// the first-class signals other components read. A strictly increasing
// history always forecasts increasing.
func Forecast(history []CostTrend, horizonMonths int, policy Policy) (*CostForecast, error) {
	if len(history) < 2 {
		return nil, ErrInsufficientData
	}
	if horizonMonths < 1 {
		horizonMonths = 1
	}

	ys := make([]float64, len(history))
	var mean float64
	for i, h := range history {
		ys[i] = h.Cost
		mean += h.Cost
	}
	mean /= float64(len(ys))

	slope, intercept := linearFit(ys)
	overall := policy.confidence(residualCV(ys, slope, intercept))

	direction := DirectionStable
	if mean != 0 && math.Abs(slope/mean*100) >= policy.StableBandPct {
		if slope > 0 {
			direction = DirectionIncreasing
		} else {
			direction = DirectionDecreasing
		}
	} else if mean == 0 && slope != 0 {
		if slope > 0 {
			direction = DirectionIncreasing
		} else {
			direction = DirectionDecreasing
		}
	}

	lastPeriod, err := time.Parse("2006-01", history[len(history)-1].Period)
	if err != nil {
		lastPeriod = time.Now().UTC()
	}

	points := make([]ForecastPoint, 0, horizonMonths)
	for i := 1; i <= horizonMonths; i++ {
		predicted := slope*float64(len(ys)-1+i) + intercept
		points = append(points, ForecastPoint{
			Period:        lastPeriod.AddDate(0, i, 0).Format("2006-01"),
			PredictedCost: math.Max(0, predicted),
			Confidence:    horizonConfidence(i, overall),
		})
	}

	return &CostForecast{
		HistoricalData:    history,
		Forecast:          points,
		TrendDirection:    direction,
		MonthlyChangeRate: slope,
		Confidence:        overall,
	}, nil
}
