package features

import (
	"fmt"
	"math"

	"github.com/fxviews/fx-views-go/internal/models"
)

// Trend classification thresholds on the 6-month trend z-score.
const (
	trendUpThreshold   = 0.3
	trendDownThreshold = -0.3

	// minTrendHistory is the minimum number of trend observations required
	// before a z-score is meaningful.
	minTrendHistory = 12
)

// Percentile returns the percentile of current against history: the
// fraction of historical values at or below current, times 100.
func Percentile(history []float64, current float64) float64 {
	if len(history) == 0 {
		return 0
	}
	count := 0
	for _, v := range history {
		if v <= current {
			count++
		}
	}
	return float64(count) / float64(len(history)) * 100
}

// Summarize computes the all-time and 5-year percentiles plus the 6-month
// trend z-score for one indicator series. For inverted series the
// percentiles are flipped here, at consumption time; stored values stay raw.
func Summarize(s models.Series) (models.IndicatorSummary, error) {
	if len(s.Points) == 0 {
		return models.IndicatorSummary{}, fmt.Errorf("series %s has no observations", s.Name)
	}
	values := s.Values()
	latest := values[len(values)-1]

	pctAll := Percentile(values, latest)

	fiveYears := s.Frequency.PeriodsPerYear() * 5
	recent := values
	if len(values) > fiveYears {
		recent = values[len(values)-fiveYears:]
	}
	pct5Y := Percentile(recent, latest)

	if s.Inverted {
		pctAll = 100 - pctAll
		pct5Y = 100 - pct5Y
	}

	trendZ, trend, err := trendSignal(values, s.Frequency)
	if err != nil {
		return models.IndicatorSummary{}, fmt.Errorf("trend for %s: %w", s.Name, err)
	}

	return models.IndicatorSummary{
		Series:        s.Name,
		AsOf:          s.Points[len(s.Points)-1].Timestamp,
		Latest:        latest,
		PercentileAll: pctAll,
		Percentile5Y:  pct5Y,
		TrendZ:        trendZ,
		Trend:         trend,
	}, nil
}

// trendSignal standardizes the 6-month level change against its own
// history and classifies it into the closed trend enum.
func trendSignal(values []float64, freq models.Frequency) (float64, models.TrendDirection, error) {
	shift := freq.PeriodsPerYear() / 2
	if shift < 1 {
		shift = 1
	}
	if len(values) <= shift {
		return 0, "", fmt.Errorf("need more than %d observations for a 6-month trend", shift)
	}

	changes := make([]float64, 0, len(values)-shift)
	for i := shift; i < len(values); i++ {
		changes = append(changes, values[i]-values[i-shift])
	}
	if len(changes) < minTrendHistory {
		return 0, "", fmt.Errorf("only %d trend observations, need %d", len(changes), minTrendHistory)
	}

	mean := 0.0
	for _, c := range changes {
		mean += c
	}
	mean /= float64(len(changes))
	variance := 0.0
	for _, c := range changes {
		d := c - mean
		variance += d * d
	}
	variance /= float64(len(changes))
	std := math.Sqrt(variance)
	if std == 0 {
		return 0, models.TrendFlat, nil
	}

	z := (changes[len(changes)-1] - mean) / std
	switch {
	case z > trendUpThreshold:
		return z, models.TrendUp, nil
	case z < trendDownThreshold:
		return z, models.TrendDown, nil
	default:
		return z, models.TrendFlat, nil
	}
}
