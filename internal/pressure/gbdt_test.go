package pressure

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stepData(n int) ([][]float64, []float64) {
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i)/float64(n/2) - 1.0
		x[i] = []float64{v}
		if v < 0 {
			y[i] = -1.0
		} else {
			y[i] = 1.0
		}
	}
	return x, y
}

func TestFitGBDT_LearnsStepFunction(t *testing.T) {
	x, y := stepData(100)

	model, err := FitGBDT(x, y, DefaultGBDTParams())
	require.NoError(t, err)

	low := model.Predict([]float64{-0.5})
	high := model.Predict([]float64{0.5})
	assert.Less(t, low, -0.7)
	assert.Greater(t, high, 0.7)
}

func TestFitGBDT_SeedDeterminism(t *testing.T) {
	x, y := stepData(80)
	params := DefaultGBDTParams()

	first, err := FitGBDT(x, y, params)
	require.NoError(t, err)
	second, err := FitGBDT(x, y, params)
	require.NoError(t, err)

	for _, v := range []float64{-0.9, -0.2, 0.0, 0.3, 0.8} {
		assert.Equal(t, first.Predict([]float64{v}), second.Predict([]float64{v}))
	}
}

func TestFitGBDT_InvalidInputs(t *testing.T) {
	x, y := stepData(20)

	_, err := FitGBDT(nil, nil, DefaultGBDTParams())
	assert.Error(t, err)

	_, err = FitGBDT(x, y[:10], DefaultGBDTParams())
	assert.Error(t, err)

	bad := DefaultGBDTParams()
	bad.Trees = 0
	_, err = FitGBDT(x, y, bad)
	assert.Error(t, err)
}

func TestFitGBDT_SmallSampleFallsBackToBase(t *testing.T) {
	// Below 2*MinLeaf every tree is a single damped leaf, so the model
	// stays close to the target mean rather than chasing points.
	x := [][]float64{{-1}, {0}, {1}}
	y := []float64{1.0, 2.0, 3.0}

	model, err := FitGBDT(x, y, DefaultGBDTParams())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, model.Predict([]float64{-1}), 0.5)
	assert.InDelta(t, 2.0, model.Predict([]float64{1}), 0.5)
}

func TestGBDT_SerializationRoundTrip(t *testing.T) {
	x, y := stepData(100)

	model, err := FitGBDT(x, y, DefaultGBDTParams())
	require.NoError(t, err)

	payload, err := json.Marshal(model)
	require.NoError(t, err)

	var restored GBDT
	require.NoError(t, json.Unmarshal(payload, &restored))

	for _, v := range []float64{-0.9, -0.3, 0.0, 0.4, 0.8} {
		assert.Equal(t, model.Predict([]float64{v}), restored.Predict([]float64{v}))
	}
}
