package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/valuation"
)

func anchorState() *valuation.ModelState {
	return &valuation.ModelState{
		Version:          "v1",
		TrainingFeatures: []string{"rate_spread_t"},
		SelectedFeatures: []string{"rate_spread_t"},
		Coefficients:     map[string]float64{"rate_spread_t": 0.0},
		Intercept:        1.10,
		TrainingSigma:    0.02,
	}
}

func monthlyRow(ts time.Time) models.FeatureVector {
	return models.FeatureVector{
		AsOf:      ts,
		Frequency: models.FrequencyMonthly,
		Features:  map[string]float64{"rate_spread_t": 1.0},
	}
}

func TestBuildMispricingZ_ForwardFillsAnchors(t *testing.T) {
	july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	august := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.FeatureVector{monthlyRow(july), monthlyRow(august)}

	weeklySpot := models.Series{
		Name:      "eurusd_spot_weekly",
		Frequency: models.FrequencyWeekly,
		Points: []models.TimeSeriesPoint{
			{Timestamp: time.Date(2025, 6, 27, 0, 0, 0, 0, time.UTC), Value: 1.08},
			{Timestamp: time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC), Value: 1.12},
			{Timestamp: time.Date(2025, 7, 25, 0, 0, 0, 0, time.UTC), Value: 1.14},
			{Timestamp: time.Date(2025, 8, 8, 0, 0, 0, 0, time.UTC), Value: 1.06},
		},
	}

	series, err := BuildMispricingZ(anchorState(), rows, weeklySpot)
	require.NoError(t, err)

	assert.Equal(t, MispricingZSeriesName, series.Name)
	assert.Equal(t, models.FrequencyWeekly, series.Frequency)

	// The week before the first anchor is excluded; fair value is 1.10
	// everywhere because the only coefficient is zero.
	require.Len(t, series.Points, 3)
	assert.InDelta(t, (1.12-1.10)/0.02, series.Points[0].Value, 1e-12)
	assert.InDelta(t, (1.14-1.10)/0.02, series.Points[1].Value, 1e-12)
	assert.InDelta(t, (1.06-1.10)/0.02, series.Points[2].Value, 1e-12)
}

func TestBuildMispricingZ_InputValidation(t *testing.T) {
	july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	spot := models.Series{Points: []models.TimeSeriesPoint{{Timestamp: july, Value: 1.1}}}

	_, err := BuildMispricingZ(nil, []models.FeatureVector{monthlyRow(july)}, spot)
	assert.ErrorContains(t, err, "no active valuation state")

	_, err = BuildMispricingZ(anchorState(), nil, spot)
	assert.ErrorContains(t, err, "no monthly feature rows")
}

func TestBuildMispricingZ_NoOverlap(t *testing.T) {
	rows := []models.FeatureVector{monthlyRow(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC))}
	weeklySpot := models.Series{Points: []models.TimeSeriesPoint{
		{Timestamp: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), Value: 1.1},
	}}

	_, err := BuildMispricingZ(anchorState(), rows, weeklySpot)
	assert.ErrorContains(t, err, "does not overlap")
}

func TestBuildMispricingZ_PredictFailureSurfaces(t *testing.T) {
	row := models.FeatureVector{
		AsOf:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Features: map[string]float64{"unexpected_t": 1.0},
	}
	spot := models.Series{Points: []models.TimeSeriesPoint{{Timestamp: row.AsOf, Value: 1.1}}}

	_, err := BuildMispricingZ(anchorState(), []models.FeatureVector{row}, spot)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fair value for 2025-07-01")
}
