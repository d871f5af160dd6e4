package models

import (
	"time"
)

// Frequency identifies the native cadence of a time series.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
)

// PeriodsPerYear returns the approximate number of observations per year
// for a frequency. Used to convert calendar horizons into row shifts.
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case FrequencyDaily:
		return 252
	case FrequencyWeekly:
		return 52
	case FrequencyMonthly:
		return 12
	case FrequencyQuarterly:
		return 4
	default:
		return 12
	}
}

// TimeSeriesPoint is a single dated observation.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Value     float64   `json:"value" db:"value"`
}

// Series is a named, ascending-ordered sequence of observations with its
// source metadata. Gaps are represented by absent points, never by fill
// values; fill policies are applied downstream by the feature engine.
type Series struct {
	Name      string            `json:"name"`
	Frequency Frequency         `json:"frequency"`
	// Inverted marks indicators where a higher raw value is economically
	// adverse (unemployment, credit spreads, volatility). Consumers flip
	// percentile direction before aggregation; stored values are raw.
	Inverted bool              `json:"inverted"`
	Points   []TimeSeriesPoint `json:"points"`
}

// At returns the value at exactly ts, or false when the series has no
// observation on that date.
func (s *Series) At(ts time.Time) (float64, bool) {
	for i := len(s.Points) - 1; i >= 0; i-- {
		p := s.Points[i]
		if p.Timestamp.Equal(ts) {
			return p.Value, true
		}
		if p.Timestamp.Before(ts) {
			return 0, false
		}
	}
	return 0, false
}

// LatestAt returns the most recent observation at or before ts.
func (s *Series) LatestAt(ts time.Time) (TimeSeriesPoint, bool) {
	for i := len(s.Points) - 1; i >= 0; i-- {
		if !s.Points[i].Timestamp.After(ts) {
			return s.Points[i], true
		}
	}
	return TimeSeriesPoint{}, false
}

// Values returns the raw value slice in timestamp order.
func (s *Series) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// FeatureVector maps canonical feature names to values for one reference
// date. Feature names are a schema contract: renaming one is a breaking
// change requiring a new model version.
type FeatureVector struct {
	AsOf      time.Time          `json:"as_of"`
	Frequency Frequency          `json:"frequency"`
	Features  map[string]float64 `json:"features"`
}

// Clone returns a deep copy; predictions must never mutate a caller's vector.
func (fv FeatureVector) Clone() FeatureVector {
	out := FeatureVector{AsOf: fv.AsOf, Frequency: fv.Frequency, Features: make(map[string]float64, len(fv.Features))}
	for k, v := range fv.Features {
		out.Features[k] = v
	}
	return out
}
