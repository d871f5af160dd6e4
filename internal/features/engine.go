package features

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/utils"
)

// Transform spans per frequency, expressed in the series' native period
// unit. The rolling z-score window is inclusive of the current point; this
// is a deliberate, documented choice that affects reproducibility, so it
// must not be changed without a model version bump.
const (
	ZScoreWindow = 12

	// MaxForwardFillStaleness caps opt-in forward-fill for slow-moving
	// indicators. Beyond this the value is treated as unavailable.
	MaxForwardFillStaleness = 90 * 24 * time.Hour
)

var (
	monthlyLags  = []int{1, 2, 3}
	monthlyDiffs = []int{1, 3}
	weeklyLags   = []int{1, 2, 4}
	weeklyDiffs  = []int{1, 4}
)

// FillPolicy is the opt-in forward-fill behavior for one series.
type FillPolicy struct {
	ForwardFill  bool
	MaxStaleness time.Duration
}

// PoliciesFromDays builds per-series fill policies from configured day
// counts. Every listed series opts in; a count of zero falls back to
// MaxForwardFillStaleness, and larger counts are clamped at anchor time.
func PoliciesFromDays(days map[string]int) map[string]FillPolicy {
	policies := make(map[string]FillPolicy, len(days))
	for name, d := range days {
		policy := FillPolicy{ForwardFill: true, MaxStaleness: MaxForwardFillStaleness}
		if d > 0 {
			policy.MaxStaleness = time.Duration(d) * 24 * time.Hour
		}
		policies[name] = policy
	}
	return policies
}

// Engine turns aligned raw series into model-ready feature vectors. It is
// stateless apart from configuration, so re-running it on unchanged inputs
// yields identical output.
type Engine struct {
	frequency    models.Frequency
	fillPolicies map[string]FillPolicy
	logger       *logrus.Logger
}

// NewEngine creates a feature engine for one frequency. fillPolicies maps
// series names to their opt-in forward-fill policy; series not listed get
// strict exact-date anchoring.
func NewEngine(frequency models.Frequency, fillPolicies map[string]FillPolicy, logger *logrus.Logger) *Engine {
	if fillPolicies == nil {
		fillPolicies = map[string]FillPolicy{}
	}
	return &Engine{frequency: frequency, fillPolicies: fillPolicies, logger: logger}
}

func (e *Engine) lags() []int {
	if e.frequency == models.FrequencyWeekly {
		return weeklyLags
	}
	return monthlyLags
}

func (e *Engine) diffs() []int {
	if e.frequency == models.FrequencyWeekly {
		return weeklyDiffs
	}
	return monthlyDiffs
}

func (e *Engine) unit() string {
	if e.frequency == models.FrequencyWeekly {
		return "w"
	}
	return "m"
}

// anchorIndex locates the observation a vector is built from. Strict series
// require an observation exactly on asOf; forward-fill series accept the
// latest earlier point within the staleness budget.
func (e *Engine) anchorIndex(s models.Series, asOf time.Time) (int, error) {
	idx := -1
	for i := len(s.Points) - 1; i >= 0; i-- {
		if !s.Points[i].Timestamp.After(asOf) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, utils.NewDataGapError(s.Name, s.Name+"_t", asOf, "no observation at or before date")
	}
	if s.Points[idx].Timestamp.Equal(asOf) {
		return idx, nil
	}
	policy, ok := e.fillPolicies[s.Name]
	if !ok || !policy.ForwardFill {
		return 0, utils.NewDataGapError(s.Name, s.Name+"_t", asOf, "no observation on date and forward-fill not enabled")
	}
	cap := policy.MaxStaleness
	if cap <= 0 || cap > MaxForwardFillStaleness {
		cap = MaxForwardFillStaleness
	}
	if asOf.Sub(s.Points[idx].Timestamp) > cap {
		return 0, utils.NewDataGapError(s.Name, s.Name+"_t", asOf,
			fmt.Sprintf("forward-fill staleness budget %s exceeded", cap))
	}
	return idx, nil
}

// Vector builds the full candidate feature set for one reference date.
// Any unavailable (feature, date) pair fails the whole vector: callers
// either drop the row (training) or surface the failure (inference).
func (e *Engine) Vector(series map[string]models.Series, asOf time.Time) (models.FeatureVector, error) {
	fv := models.FeatureVector{
		AsOf:      asOf,
		Frequency: e.frequency,
		Features:  make(map[string]float64),
	}

	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	unit := e.unit()
	for _, name := range names {
		s := series[name]
		idx, err := e.anchorIndex(s, asOf)
		if err != nil {
			return models.FeatureVector{}, err
		}
		values := s.Values()

		fv.Features[name+"_t"] = values[idx]

		for _, lag := range e.lags() {
			feat := fmt.Sprintf("%s_t%d", name, lag)
			if idx-lag < 0 {
				return models.FeatureVector{}, utils.NewDataGapError(name, feat, asOf, "lag extends before earliest observation")
			}
			fv.Features[feat] = values[idx-lag]
		}

		for _, span := range e.diffs() {
			feat := fmt.Sprintf("d%d%s_%s", span, unit, name)
			if idx-span < 0 {
				return models.FeatureVector{}, utils.NewDataGapError(name, feat, asOf, "difference span extends before earliest observation")
			}
			fv.Features[feat] = values[idx] - values[idx-span]
		}

		zFeat := fmt.Sprintf("z%d%s_%s", ZScoreWindow, unit, name)
		z, err := rollingZ(values, idx, ZScoreWindow)
		if err != nil {
			return models.FeatureVector{}, utils.NewDataGapError(name, zFeat, asOf, err.Error())
		}
		fv.Features[zFeat] = z
	}
	return fv, nil
}

// rollingZ computes (value - mean) / std over the trailing window ending at
// and including idx.
func rollingZ(values []float64, idx, window int) (float64, error) {
	if idx-window+1 < 0 {
		return 0, fmt.Errorf("rolling window of %d extends before earliest observation", window)
	}
	win := values[idx-window+1 : idx+1]
	mean := 0.0
	for _, v := range win {
		mean += v
	}
	mean /= float64(len(win))
	variance := 0.0
	for _, v := range win {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(win) - 1)
	std := math.Sqrt(variance)
	if std == 0 || math.IsNaN(std) {
		return 0, fmt.Errorf("zero variance in rolling window")
	}
	return (values[idx] - mean) / std, nil
}

// Matrix builds training rows for every date in calendar. Dates whose
// vectors hit a data gap are excluded and reported back, never silently
// zero-filled.
func (e *Engine) Matrix(series map[string]models.Series, calendar []time.Time) ([]models.FeatureVector, []time.Time, error) {
	if len(calendar) == 0 {
		return nil, nil, fmt.Errorf("empty training calendar")
	}
	var rows []models.FeatureVector
	var skipped []time.Time
	for _, asOf := range calendar {
		fv, err := e.Vector(series, asOf)
		if err != nil {
			var gap *utils.DataGapError
			if errors.As(err, &gap) {
				skipped = append(skipped, asOf)
				if e.logger != nil {
					e.logger.WithFields(logrus.Fields{
						"as_of":   asOf.Format("2006-01-02"),
						"feature": gap.Feature,
					}).Debug("Excluding training row with data gap")
				}
				continue
			}
			return nil, nil, err
		}
		rows = append(rows, fv)
	}
	if e.logger != nil && len(skipped) > 0 {
		e.logger.WithFields(logrus.Fields{
			"frequency": e.frequency,
			"skipped":   len(skipped),
			"kept":      len(rows),
		}).Info("Feature matrix built with excluded rows")
	}
	return rows, skipped, nil
}

// DerivedDiff inner-joins two component series on date and subtracts b from
// a. Dates where either component is missing are omitted, never zero-filled.
func DerivedDiff(name string, a, b models.Series) models.Series {
	bByDate := make(map[time.Time]float64, len(b.Points))
	for _, p := range b.Points {
		bByDate[p.Timestamp] = p.Value
	}
	out := models.Series{Name: name, Frequency: a.Frequency, Inverted: a.Inverted}
	for _, p := range a.Points {
		if bv, ok := bByDate[p.Timestamp]; ok {
			out.Points = append(out.Points, models.TimeSeriesPoint{Timestamp: p.Timestamp, Value: p.Value - bv})
		}
	}
	return out
}
