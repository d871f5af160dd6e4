// Package positioning classifies speculative futures crowding from the
// weekly net non-commercial position series.
package positioning

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fxviews/fx-views-go/internal/models"
)

// Rolling windows in weekly reports, with their minimum observation counts.
const (
	window6M     = 26
	minPeriods6M = 20
	window1Y     = 52
	minPeriods1Y = 40

	crowdedZ       = 1.5
	crowdedHighPct = 85.0
	crowdedLowPct  = 15.0
)

// Crowding commentary is non-predictive: one fixed sentence per state.
const (
	commentaryCrowdedLong  = "Positioning is crowded long, historically increasing downside asymmetry and sensitivity to negative macro or policy surprises."
	commentaryCrowdedShort = "Positioning is crowded short, increasing squeeze risk if macro or policy dynamics turn supportive."
	commentaryNeutral      = "Positioning is neutral, suggesting limited crowding-related asymmetry."
)

// Observation is one weekly report: the trade date the data describes and
// the later date it was published. The gap matters for staleness checks.
type Observation struct {
	AsOf        time.Time
	PublishedAt time.Time
	NetPosition int64
}

// Scorer computes crowding snapshots. Stateless between calls.
type Scorer struct {
	logger *logrus.Logger
}

func NewScorer(logger *logrus.Logger) *Scorer {
	return &Scorer{logger: logger}
}

// Score evaluates the most recent observation against the full history.
// Observations must be in ascending as-of order.
func (s *Scorer) Score(history []Observation) (models.PositioningSnapshot, error) {
	if len(history) < minPeriods6M {
		return models.PositioningSnapshot{}, fmt.Errorf("need at least %d weekly observations, got %d", minPeriods6M, len(history))
	}

	net := make([]float64, len(history))
	for i, obs := range history {
		net[i] = float64(obs.NetPosition)
	}
	latest := history[len(history)-1]

	z6m, ok6m := rollingZ(net, window6M, minPeriods6M)
	z1y, ok1y := rollingZ(net, window1Y, minPeriods1Y)
	percentile := historicalPercentile(net)

	snapshot := models.PositioningSnapshot{
		AsOf:        latest.AsOf,
		PublishedAt: latest.PublishedAt,
		NetPosition: latest.NetPosition,
		Percentile:  percentile,
	}
	if ok6m {
		snapshot.Z6M = z6m
	}
	if ok1y {
		snapshot.Z1Y = z1y
	}

	// Classification is keyed on the 6-month window. The 1-year z is
	// reported for context only.
	switch {
	case ok6m && z6m > crowdedZ, percentile > crowdedHighPct:
		snapshot.State = models.CrowdedLong
		snapshot.Commentary = commentaryCrowdedLong
	case ok6m && z6m < -crowdedZ, percentile < crowdedLowPct:
		snapshot.State = models.CrowdedShort
		snapshot.Commentary = commentaryCrowdedShort
	default:
		snapshot.State = models.CrowdingNeutral
		snapshot.Commentary = commentaryNeutral
	}

	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"as_of":      latest.AsOf.Format("2006-01-02"),
			"net":        latest.NetPosition,
			"z_6m":       snapshot.Z6M,
			"percentile": percentile,
			"state":      snapshot.State,
		}).Debug("Scored positioning")
	}
	return snapshot, nil
}

// PublicationLag returns how long the latest report had been public at
// the evaluation time. Negative means the report is not yet published.
func PublicationLag(snapshot models.PositioningSnapshot, now time.Time) time.Duration {
	return now.Sub(snapshot.PublishedAt)
}

// rollingZ scores the last value against the trailing window, inclusive of
// itself, using the sample standard deviation. The minimum observation
// count guards early history.
func rollingZ(values []float64, window, minPeriods int) (float64, bool) {
	if len(values) < minPeriods {
		return 0, false
	}
	start := len(values) - window
	if start < 0 {
		start = 0
	}
	slice := values[start:]
	n := float64(len(slice))

	mean := 0.0
	for _, v := range slice {
		mean += v
	}
	mean /= n

	variance := 0.0
	for _, v := range slice {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / (n - 1))
	if std == 0 {
		return 0, false
	}
	return (values[len(values)-1] - mean) / std, true
}

// historicalPercentile is the share of all observations at or below the
// current value, in percent.
func historicalPercentile(values []float64) float64 {
	current := values[len(values)-1]
	atOrBelow := 0
	for _, v := range values {
		if v <= current {
			atOrBelow++
		}
	}
	return float64(atOrBelow) / float64(len(values)) * 100
}
