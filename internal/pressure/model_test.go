package pressure

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/regress"
	"github.com/fxviews/fx-views-go/internal/utils"
)

// weeklyRows builds n weekly vectors with one alternating flow feature.
// flip inverts the flow/target relation from index from onward.
func weeklyRows(n, flip int) ([]models.FeatureVector, []float64, []float64) {
	rows := make([]models.FeatureVector, n)
	targets := make([]float64, n)
	startZ := make([]float64, n)
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		flow := 1.0
		if i%2 == 1 {
			flow = -1.0
		}
		rows[i] = models.FeatureVector{
			AsOf:      start.AddDate(0, 0, 7*i),
			Frequency: models.FrequencyWeekly,
			Features:  map[string]float64{"flow_t": flow, "rate_spread_t": float64(i % 3)},
		}
		targets[i] = 0.1 * flow
		if flip > 0 && i >= flip {
			targets[i] = -0.1 * flow
		}
		startZ[i] = 0.2
		if i%3 == 0 {
			startZ[i] = 1.5
		}
	}
	return rows, targets, startZ
}

func TestModelFit_PrefersLinearOnLinearSignal(t *testing.T) {
	rows, targets, startZ := weeklyRows(48, 0)

	model := New(DefaultConfig(), nil)
	state, err := model.Fit(rows, targets, startZ)
	require.NoError(t, err)

	// Both engines should nail the sign here; the boosted model cannot
	// clear the adoption margin over a perfect baseline.
	assert.Equal(t, EngineLinear, state.Engine)
	assert.Equal(t, 1.0, state.Metrics.HitRate)
	assert.Equal(t, 1.0, state.Metrics.StretchedHitRate)
	assert.Equal(t, []string{"flow_t", "rate_spread_t"}, state.TrainingFeatures)
	assert.NotEmpty(t, state.Version)
}

func TestModelFit_RejectsBelowHitRateFloor(t *testing.T) {
	// The relation inverts exactly at the holdout boundary, so every
	// held-out sign call is wrong for any learner trained on the head.
	rows, targets, startZ := weeklyRows(48, 36)

	model := New(DefaultConfig(), nil)
	state, err := model.Fit(rows, targets, startZ)
	require.Error(t, err)
	assert.Nil(t, state)

	var selErr *utils.ModelSelectionError
	require.ErrorAs(t, err, &selErr)
	assert.Equal(t, "layer2", selErr.Layer)
	assert.Contains(t, selErr.Reason, "hit rate")
}

func TestModelFit_InsufficientHistory(t *testing.T) {
	rows, targets, startZ := weeklyRows(20, 0)

	model := New(DefaultConfig(), nil)
	_, err := model.Fit(rows, targets, startZ)
	require.Error(t, err)

	var selErr *utils.ModelSelectionError
	require.ErrorAs(t, err, &selErr)
	assert.Contains(t, selErr.Reason, "insufficient")
}

func TestModelFit_MismatchedLengths(t *testing.T) {
	rows, targets, startZ := weeklyRows(48, 0)
	model := New(DefaultConfig(), nil)

	_, err := model.Fit(rows, targets[:47], startZ)
	assert.Error(t, err)
	_, err = model.Fit(rows, targets, startZ[:47])
	assert.Error(t, err)
}

func TestModelFit_InconsistentSchema(t *testing.T) {
	rows, targets, startZ := weeklyRows(48, 0)
	delete(rows[20].Features, "rate_spread_t")

	model := New(DefaultConfig(), nil)
	_, err := model.Fit(rows, targets, startZ)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate_spread_t")
}

// constantState carries a zero-coefficient linear learner that always
// predicts out.
func constantState(out float64) *ModelState {
	return &ModelState{
		Version:          "weekly-v1",
		Engine:           EngineLinear,
		TrainingFeatures: []string{"flow_t", "rate_spread_t"},
		Linear: &regress.ElasticNet{
			Coefficients: []float64{0, 0},
			Intercept:    out,
		},
	}
}

func TestStatePredict_DerivesDirectionAndConfidence(t *testing.T) {
	state := constantState(-0.42)
	asOf := time.Date(2025, 8, 22, 0, 0, 0, 0, time.UTC)
	fv := models.FeatureVector{
		AsOf:     asOf,
		Features: map[string]float64{"flow_t": 0.3, "rate_spread_t": 1.1},
	}

	pred, err := state.Predict(fv)
	require.NoError(t, err)
	assert.Equal(t, asOf, pred.AsOf)
	assert.Equal(t, "weekly-v1", pred.ModelVersion)
	assert.Equal(t, -0.42, pred.PredictedDeltaZ)
	assert.Equal(t, models.DirectionCompress, pred.Direction)
	assert.Equal(t, models.ConfidenceHigh, pred.Confidence)
}

func TestStatePredict_MissingFeature(t *testing.T) {
	state := constantState(0.1)

	_, err := state.Predict(models.FeatureVector{Features: map[string]float64{"flow_t": 0.3}})
	require.Error(t, err)

	var missing *utils.MissingFeatureError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "rate_spread_t", missing.Feature)
}

func TestStatePredict_UnknownFeatureRejected(t *testing.T) {
	state := constantState(0.1)

	_, err := state.Predict(models.FeatureVector{Features: map[string]float64{
		"flow_t":        0.3,
		"rate_spread_t": 1.1,
		"surprise_t":    9.9,
	}})
	require.Error(t, err)

	var unknown *utils.UnknownFeatureError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "surprise_t", unknown.Feature)
}

func TestModelState_ArchiveRoundTripReproducesPredictions(t *testing.T) {
	rows, targets, startZ := weeklyRows(48, 0)

	model := New(DefaultConfig(), nil)
	state, err := model.Fit(rows, targets, startZ)
	require.NoError(t, err)

	fv := models.FeatureVector{
		AsOf:     time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC),
		Features: map[string]float64{"flow_t": 1.0, "rate_spread_t": 2.0},
	}
	original, err := state.Predict(fv)
	require.NoError(t, err)

	payload, err := json.Marshal(state)
	require.NoError(t, err)

	var restored ModelState
	require.NoError(t, json.Unmarshal(payload, &restored))

	replayed, err := restored.Predict(fv)
	require.NoError(t, err)
	assert.Equal(t, original.PredictedDeltaZ, replayed.PredictedDeltaZ)
	assert.Equal(t, state.Version, restored.Version)
	assert.Equal(t, state.Engine, restored.Engine)
}
