package valuation

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/utils"
)

// syntheticRows builds n monthly feature vectors with a known linear target
// plus seeded Gaussian noise.
func syntheticRows(n int, noise float64) ([]models.FeatureVector, []float64) {
	rng := rand.New(rand.NewSource(7))
	rows := make([]models.FeatureVector, n)
	targets := make([]float64, n)
	start := time.Date(2019, 1, 31, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		f1 := math.Sin(float64(i) * 0.7)
		f2 := math.Cos(float64(i) * 1.3)
		rows[i] = models.FeatureVector{
			AsOf:      start.AddDate(0, i, 0),
			Frequency: models.FrequencyMonthly,
			Features: map[string]float64{
				"rate_spread_t": f1,
				"cpi_spread_t":  f2,
			},
		}
		targets[i] = 1.12 + 0.08*f1 - 0.05*f2 + rng.NormFloat64()*noise
	}
	return rows, targets
}

func TestModelFit_RecoversLinearSignal(t *testing.T) {
	rows, targets := syntheticRows(72, 0.005)

	model := New(DefaultConfig(), nil)
	state, err := model.Fit(rows, targets)
	require.NoError(t, err)

	assert.NotEmpty(t, state.Version)
	assert.Equal(t, []string{"cpi_spread_t", "rate_spread_t"}, state.TrainingFeatures)
	assert.NotEmpty(t, state.SelectedFeatures)
	assert.Greater(t, state.TrainingSigma, 0.0)
	assert.Greater(t, state.Metrics.OOSR2, 0.5)
	assert.LessOrEqual(t, state.Metrics.RegimeDivergence, DefaultConfig().MaxRegimeDivergence)

	// Coefficients should land near the generating process.
	assert.InDelta(t, 0.08, state.Coefficients["rate_spread_t"], 0.02)
	assert.InDelta(t, -0.05, state.Coefficients["cpi_spread_t"], 0.02)
}

func TestModelFit_NewVersionPerFit(t *testing.T) {
	rows, targets := syntheticRows(72, 0.005)
	model := New(DefaultConfig(), nil)

	first, err := model.Fit(rows, targets)
	require.NoError(t, err)
	second, err := model.Fit(rows, targets)
	require.NoError(t, err)

	assert.NotEqual(t, first.Version, second.Version)
	assert.Equal(t, first.Coefficients, second.Coefficients)
	assert.Equal(t, first.Metrics, second.Metrics)
}

func TestModelFit_TooFewRows(t *testing.T) {
	rows, targets := syntheticRows(6, 0.005)
	model := New(DefaultConfig(), nil)

	_, err := model.Fit(rows, targets)
	require.Error(t, err)
}

func TestModelFit_RejectsUnpredictableTarget(t *testing.T) {
	// A trending target over stationary features fails held-out R2 badly,
	// so no candidate clears the acceptance bar and no state is returned.
	rows, _ := syntheticRows(60, 0.005)
	targets := make([]float64, len(rows))
	for i := range targets {
		targets[i] = float64(i) * 0.01
	}

	model := New(DefaultConfig(), nil)
	state, err := model.Fit(rows, targets)
	require.Error(t, err)
	assert.Nil(t, state)

	var selErr *utils.ModelSelectionError
	require.ErrorAs(t, err, &selErr)
	assert.Equal(t, "layer1", selErr.Layer)
}

func TestModelFit_MismatchedLengths(t *testing.T) {
	rows, targets := syntheticRows(30, 0.005)
	model := New(DefaultConfig(), nil)

	_, err := model.Fit(rows, targets[:len(targets)-1])
	require.Error(t, err)
}

func TestModelFit_InconsistentSchema(t *testing.T) {
	rows, targets := syntheticRows(30, 0.005)
	delete(rows[10].Features, "cpi_spread_t")

	model := New(DefaultConfig(), nil)
	_, err := model.Fit(rows, targets)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func fixedState() *ModelState {
	return &ModelState{
		Version:          "test-version",
		FittedAt:         time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		TrainingFeatures: []string{"cpi_spread_t", "rate_spread_t"},
		SelectedFeatures: []string{"rate_spread_t"},
		Coefficients:     map[string]float64{"rate_spread_t": 0.08},
		Intercept:        1.10,
		TrainingSigma:    0.0285,
	}
}

func TestPredict_Deterministic(t *testing.T) {
	state := fixedState()
	fv := models.FeatureVector{Features: map[string]float64{
		"rate_spread_t": 0.5,
		"cpi_spread_t":  -1.0,
	}}

	first, err := state.Predict(fv)
	require.NoError(t, err)
	assert.InDelta(t, 1.10+0.08*0.5, first, 1e-12)

	second, err := state.Predict(fv)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPredict_MissingFeature(t *testing.T) {
	state := fixedState()
	fv := models.FeatureVector{Features: map[string]float64{
		"cpi_spread_t": 0.1,
	}}

	out, err := state.Predict(fv)
	require.Error(t, err)
	assert.Zero(t, out)

	var missing *utils.MissingFeatureError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "rate_spread_t", missing.Feature)
}

func TestPredict_UnknownFeatureRejected(t *testing.T) {
	state := fixedState()
	fv := models.FeatureVector{Features: map[string]float64{
		"rate_spread_t": 0.5,
		"cpi_spread_t":  0.1,
		"surprise_t":    9.9,
	}}

	_, err := state.Predict(fv)
	require.Error(t, err)

	var unknown *utils.UnknownFeatureError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "surprise_t", unknown.Feature)
}

func TestDeriveRegime_RichStretch(t *testing.T) {
	state := fixedState()
	asOf := time.Date(2025, 8, 29, 0, 0, 0, 0, time.UTC)

	pred := state.DeriveRegime(asOf, 1.1739, 1.1363)

	assert.Equal(t, asOf, pred.AsOf)
	assert.Equal(t, "test-version", pred.ModelVersion)
	assert.InDelta(t, 0.0376, pred.Mispricing, 1e-9)
	assert.InDelta(t, 1.3193, pred.MispricingZ, 1e-3)
	assert.Equal(t, models.RegimeRichStretch, pred.Regime)
}

func TestDeriveRegime_CheapBreak(t *testing.T) {
	state := fixedState()
	pred := state.DeriveRegime(time.Now().UTC(), 1.05, 1.12)
	assert.Less(t, pred.MispricingZ, -2.0)
	assert.Equal(t, models.RegimeCheapBreak, pred.Regime)
}

func TestRegimeDivergence_PerfectPrior(t *testing.T) {
	// 68 residuals inside one sigma, 27 between one and two, 5 beyond.
	observed := make([]float64, 100)
	predicted := make([]float64, 100)
	for i := 0; i < 100; i++ {
		switch {
		case i < 68:
			observed[i] = 0.5
		case i < 95:
			observed[i] = 1.5
		default:
			observed[i] = 2.5
		}
	}
	assert.InDelta(t, 0.0, regimeDivergence(observed, predicted, 1.0), 1e-12)
}

func TestStabilityStd(t *testing.T) {
	// Constant period-over-period change has zero stability penalty.
	assert.InDelta(t, 0.0, stabilityStd([]float64{1.0, 1.1, 1.2, 1.3}), 1e-12)
	assert.Greater(t, stabilityStd([]float64{1.0, 1.3, 0.9, 1.4}), 0.0)
}
