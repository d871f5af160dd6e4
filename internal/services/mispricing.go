package services

import (
	"fmt"

	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/valuation"
)

// MispricingZSeriesName is the canonical name of the derived weekly
// mispricing z series consumed by the pressure layer.
const MispricingZSeriesName = "mispricing_z"

// BuildMispricingZ derives the weekly mispricing z series: the monthly
// fair value is carried forward to each weekly spot close and the gap is
// scaled by the model's frozen training sigma. Weeks before the first
// available fair value are excluded.
func BuildMispricingZ(state *valuation.ModelState, monthlyRows []models.FeatureVector, weeklySpot models.Series) (models.Series, error) {
	if state == nil {
		return models.Series{}, fmt.Errorf("no active valuation state")
	}
	if len(monthlyRows) == 0 {
		return models.Series{}, fmt.Errorf("no monthly feature rows")
	}

	type anchor struct {
		asOf      int64
		fairValue float64
	}
	anchors := make([]anchor, 0, len(monthlyRows))
	for _, row := range monthlyRows {
		fv, err := state.Predict(row)
		if err != nil {
			return models.Series{}, fmt.Errorf("fair value for %s: %w", row.AsOf.Format("2006-01-02"), err)
		}
		anchors = append(anchors, anchor{asOf: row.AsOf.Unix(), fairValue: fv})
	}

	series := models.Series{Name: MispricingZSeriesName, Frequency: models.FrequencyWeekly}
	cursor := 0
	for _, p := range weeklySpot.Points {
		ts := p.Timestamp.Unix()
		if ts < anchors[0].asOf {
			continue
		}
		for cursor+1 < len(anchors) && anchors[cursor+1].asOf <= ts {
			cursor++
		}
		z := (p.Value - anchors[cursor].fairValue) / state.TrainingSigma
		series.Points = append(series.Points, models.TimeSeriesPoint{Timestamp: p.Timestamp, Value: z})
	}
	if len(series.Points) == 0 {
		return models.Series{}, fmt.Errorf("weekly spot history does not overlap fair-value anchors")
	}
	return series, nil
}
