package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/utils"
)

func monthlySeries(name string, start time.Time, values []float64) models.Series {
	s := models.Series{Name: name, Frequency: models.FrequencyMonthly}
	for i, v := range values {
		s.Points = append(s.Points, models.TimeSeriesPoint{
			Timestamp: start.AddDate(0, i, 0),
			Value:     v,
		})
	}
	return s
}

func TestEngine_Vector_MonthlyNaming(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14}
	series := map[string]models.Series{
		"rate_spread": monthlySeries("rate_spread", start, values),
	}

	engine := NewEngine(models.FrequencyMonthly, nil, nil)
	asOf := start.AddDate(0, len(values)-1, 0)

	fv, err := engine.Vector(series, asOf)
	require.NoError(t, err)

	assert.Equal(t, asOf, fv.AsOf)
	assert.Equal(t, models.FrequencyMonthly, fv.Frequency)

	assert.Equal(t, 14.0, fv.Features["rate_spread_t"])
	assert.Equal(t, 13.0, fv.Features["rate_spread_t1"])
	assert.Equal(t, 12.0, fv.Features["rate_spread_t2"])
	assert.Equal(t, 11.0, fv.Features["rate_spread_t3"])
	assert.Equal(t, 1.0, fv.Features["d1m_rate_spread"])
	assert.Equal(t, 3.0, fv.Features["d3m_rate_spread"])
	assert.Contains(t, fv.Features, "z12m_rate_spread")

	// Linear ramp: current value sits at the top of the trailing window.
	assert.Greater(t, fv.Features["z12m_rate_spread"], 1.0)
}

func TestEngine_Vector_WeeklyNaming(t *testing.T) {
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	s := models.Series{Name: "risk", Frequency: models.FrequencyWeekly}
	for i := 0; i < 20; i++ {
		s.Points = append(s.Points, models.TimeSeriesPoint{
			Timestamp: start.AddDate(0, 0, 7*i),
			Value:     float64(i * i),
		})
	}

	engine := NewEngine(models.FrequencyWeekly, nil, nil)
	fv, err := engine.Vector(map[string]models.Series{"risk": s}, s.Points[19].Timestamp)
	require.NoError(t, err)

	assert.Contains(t, fv.Features, "risk_t")
	assert.Contains(t, fv.Features, "risk_t1")
	assert.Contains(t, fv.Features, "risk_t2")
	assert.Contains(t, fv.Features, "risk_t4")
	assert.Contains(t, fv.Features, "d1w_risk")
	assert.Contains(t, fv.Features, "d4w_risk")
	assert.Contains(t, fv.Features, "z12w_risk")
	assert.NotContains(t, fv.Features, "risk_t3")
}

func TestEngine_Vector_Deterministic(t *testing.T) {
	start := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	series := map[string]models.Series{
		"m2": monthlySeries("m2", start, []float64{3, 1, 4, 1, 5, 9, 2, 6, 5, 3, 5, 8, 9, 7, 9}),
	}
	engine := NewEngine(models.FrequencyMonthly, nil, nil)
	asOf := start.AddDate(0, 14, 0)

	first, err := engine.Vector(series, asOf)
	require.NoError(t, err)
	second, err := engine.Vector(series, asOf)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEngine_Vector_MissingDateFailsWithoutFillPolicy(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	series := map[string]models.Series{
		"cpi": monthlySeries("cpi", start, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}),
	}
	engine := NewEngine(models.FrequencyMonthly, nil, nil)

	_, err := engine.Vector(series, start.AddDate(0, 12, 3))
	require.Error(t, err)

	var gap *utils.DataGapError
	require.ErrorAs(t, err, &gap)
	assert.Equal(t, "cpi", gap.Series)
}

func TestEngine_Vector_ForwardFillWithinBudget(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	series := map[string]models.Series{
		"cpi": monthlySeries("cpi", start, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}),
	}
	policies := map[string]FillPolicy{
		"cpi": {ForwardFill: true, MaxStaleness: 30 * 24 * time.Hour},
	}
	engine := NewEngine(models.FrequencyMonthly, policies, nil)

	fv, err := engine.Vector(series, start.AddDate(0, 12, 3))
	require.NoError(t, err)
	assert.Equal(t, 13.0, fv.Features["cpi_t"])

	// Past the per-series staleness budget the gap comes back.
	_, err = engine.Vector(series, start.AddDate(0, 12, 40))
	var gap *utils.DataGapError
	require.ErrorAs(t, err, &gap)
}

func TestPoliciesFromDays(t *testing.T) {
	policies := PoliciesFromDays(map[string]int{"cpi": 45, "m2": 0})

	require.Len(t, policies, 2)
	assert.True(t, policies["cpi"].ForwardFill)
	assert.Equal(t, 45*24*time.Hour, policies["cpi"].MaxStaleness)
	assert.Equal(t, MaxForwardFillStaleness, policies["m2"].MaxStaleness)
	assert.Empty(t, PoliciesFromDays(nil))
}

func TestEngine_Vector_ForwardFillFromConfiguredDays(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	series := map[string]models.Series{
		"cpi": monthlySeries("cpi", start, []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13}),
	}
	engine := NewEngine(models.FrequencyMonthly, PoliciesFromDays(map[string]int{"cpi": 30}), nil)

	fv, err := engine.Vector(series, start.AddDate(0, 12, 3))
	require.NoError(t, err)
	assert.Equal(t, 13.0, fv.Features["cpi_t"])

	_, err = engine.Vector(series, start.AddDate(0, 12, 40))
	var gap *utils.DataGapError
	require.ErrorAs(t, err, &gap)
}

func TestEngine_Vector_ZeroVarianceWindowFails(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	flat := make([]float64, 15)
	for i := range flat {
		flat[i] = 2.5
	}
	series := map[string]models.Series{
		"flat": monthlySeries("flat", start, flat),
	}
	engine := NewEngine(models.FrequencyMonthly, nil, nil)

	_, err := engine.Vector(series, start.AddDate(0, 14, 0))
	var gap *utils.DataGapError
	require.ErrorAs(t, err, &gap)
}

func TestEngine_Matrix_SkipsGappedRows(t *testing.T) {
	start := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	series := map[string]models.Series{
		"tot": monthlySeries("tot", start, []float64{2, 4, 1, 7, 3, 6, 2, 9, 4, 8, 1, 6, 3, 7, 5, 9, 2, 8}),
	}
	engine := NewEngine(models.FrequencyMonthly, nil, nil)

	calendar := []time.Time{
		start.AddDate(0, 14, 0),
		start.AddDate(0, 14, 5), // no observation on this date
		start.AddDate(0, 15, 0),
		start.AddDate(0, 2, 0), // insufficient history for lags and z window
	}

	rows, skipped, err := engine.Matrix(series, calendar)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Len(t, skipped, 2)
	assert.Equal(t, start.AddDate(0, 14, 5), skipped[0])
}

func TestDerivedDiff_InnerJoin(t *testing.T) {
	start := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	a := monthlySeries("de_rate", start, []float64{5, 6, 7})
	b := monthlySeries("us_rate", start, []float64{1, 2, 3})
	// Drop the middle observation from b.
	b.Points = append(b.Points[:1], b.Points[2:]...)

	diff := DerivedDiff("rate_spread", a, b)
	require.Len(t, diff.Points, 2)
	assert.Equal(t, 4.0, diff.Points[0].Value)
	assert.Equal(t, 4.0, diff.Points[1].Value)
	assert.Equal(t, "rate_spread", diff.Name)
}
