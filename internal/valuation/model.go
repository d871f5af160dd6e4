// Package valuation implements the monthly macro fair-value model:
// an elastic-net regression from monthly fundamentals to spot, plus the
// mispricing z-score and regime derivation.
package valuation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/regress"
	"github.com/fxviews/fx-views-go/internal/utils"
)

// Reference prior for the regime-frequency selection criterion: the
// theoretical normal proportions inside 1 sigma and between 1 and 2 sigma.
const (
	priorInLine  = 0.68
	priorStretch = 0.27
	priorBreak   = 0.05
)

// Hyperparameters identify one elastic-net candidate.
type Hyperparameters struct {
	Alpha   float64 `json:"alpha"`
	L1Ratio float64 `json:"l1_ratio"`
}

// SelectionMetrics records why a candidate won, kept on the model state
// for audit.
type SelectionMetrics struct {
	OOSR2            float64 `json:"oos_r2"`
	RegimeDivergence float64 `json:"regime_divergence"`
	StabilityStd     float64 `json:"stability_std"`
	RMSE             float64 `json:"rmse"`
}

// ModelState is the immutable, versioned result of one successful fit.
// Re-fitting never mutates an existing state; it produces a new one.
type ModelState struct {
	Version          string             `json:"version"`
	FittedAt         time.Time          `json:"fitted_at"`
	Hyperparameters  Hyperparameters    `json:"hyperparameters"`
	TrainingFeatures []string           `json:"training_features"`
	SelectedFeatures []string           `json:"selected_features"`
	Coefficients     map[string]float64 `json:"coefficients"`
	Intercept        float64            `json:"intercept"`
	TrainingSigma    float64            `json:"training_sigma"`
	Metrics          SelectionMetrics   `json:"metrics"`
}

// Config controls the fit search and its acceptance bar.
type Config struct {
	Alphas              []float64
	L1Ratios            []float64
	CVFolds             int
	MinOOSR2            float64
	MaxRegimeDivergence float64
}

// DefaultConfig mirrors the grid the model was originally tuned over.
func DefaultConfig() Config {
	return Config{
		Alphas:              []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		L1Ratios:            []float64{0.1, 0.3, 0.5, 0.7, 0.9, 0.95, 0.99},
		CVFolds:             5,
		MinOOSR2:            -0.05,
		MaxRegimeDivergence: 0.70,
	}
}

// Model fits and serves the monthly valuation layer.
type Model struct {
	cfg    Config
	logger *logrus.Logger
}

// New creates a valuation model with the given search configuration.
func New(cfg Config, logger *logrus.Logger) *Model {
	if len(cfg.Alphas) == 0 {
		cfg = DefaultConfig()
	}
	return &Model{cfg: cfg, logger: logger}
}

// Fit searches the hyperparameter grid with contiguous k-fold
// cross-validation and selects by composite score: out-of-sample R2 first,
// closeness of the regime-frequency distribution to the normal prior
// second, fair-value stability third, with RMSE as tie-breaker only.
// On success it returns a brand-new versioned state; on failure the caller
// keeps its previously active state.
func (m *Model) Fit(rows []models.FeatureVector, targets []float64) (*ModelState, error) {
	if len(rows) != len(targets) {
		return nil, fmt.Errorf("feature rows (%d) and targets (%d) must match", len(rows), len(targets))
	}
	if len(rows) < m.cfg.CVFolds*2 {
		return nil, fmt.Errorf("need at least %d training rows, got %d", m.cfg.CVFolds*2, len(rows))
	}

	names, err := featureNames(rows)
	if err != nil {
		return nil, err
	}
	x := buildMatrix(rows, names)

	type candidate struct {
		hp      Hyperparameters
		model   *regress.ElasticNet
		metrics SelectionMetrics
		score   float64
	}
	var best *candidate

	for _, alpha := range m.cfg.Alphas {
		for _, l1 := range m.cfg.L1Ratios {
			hp := Hyperparameters{Alpha: alpha, L1Ratio: l1}

			oosR2, err := m.crossValidate(x, targets, hp)
			if err != nil {
				return nil, fmt.Errorf("cross-validation alpha=%g l1=%g: %w", alpha, l1, err)
			}

			fitted, err := regress.FitElasticNet(x, targets, alpha, l1)
			if err != nil {
				return nil, err
			}
			predicted := predictAll(fitted, x)
			sigma := regress.ResidualStd(targets, predicted)
			if sigma == 0 || math.IsNaN(sigma) {
				continue
			}

			c := &candidate{
				hp:    hp,
				model: fitted,
				metrics: SelectionMetrics{
					OOSR2:            oosR2,
					RegimeDivergence: regimeDivergence(targets, predicted, sigma),
					StabilityStd:     stabilityStd(predicted),
					RMSE:             regress.RMSE(targets, predicted),
				},
			}
			c.score = c.metrics.OOSR2 - 2.0*c.metrics.RegimeDivergence - 5.0*c.metrics.StabilityStd

			if best == nil || c.score > best.score ||
				(c.score == best.score && c.metrics.RMSE < best.metrics.RMSE) {
				best = c
			}
		}
	}

	if best == nil {
		return nil, utils.NewModelSelectionError("layer1", "no candidate produced a usable fit")
	}
	if best.metrics.OOSR2 < m.cfg.MinOOSR2 {
		return nil, utils.NewModelSelectionError("layer1",
			fmt.Sprintf("best out-of-sample R2 %.3f below floor %.3f", best.metrics.OOSR2, m.cfg.MinOOSR2))
	}
	if best.metrics.RegimeDivergence > m.cfg.MaxRegimeDivergence {
		return nil, utils.NewModelSelectionError("layer1",
			fmt.Sprintf("regime distribution divergence %.3f above ceiling %.3f", best.metrics.RegimeDivergence, m.cfg.MaxRegimeDivergence))
	}

	predicted := predictAll(best.model, x)
	state := &ModelState{
		Version:          uuid.NewString(),
		FittedAt:         time.Now().UTC(),
		Hyperparameters:  best.hp,
		TrainingFeatures: names,
		Coefficients:     make(map[string]float64),
		Intercept:        best.model.Intercept,
		TrainingSigma:    regress.ResidualStd(targets, predicted),
		Metrics:          best.metrics,
	}
	for _, j := range best.model.Selected() {
		state.Coefficients[names[j]] = best.model.Coefficients[j]
		state.SelectedFeatures = append(state.SelectedFeatures, names[j])
	}
	sort.Strings(state.SelectedFeatures)

	if m.logger != nil {
		m.logger.WithFields(logrus.Fields{
			"version":  state.Version,
			"alpha":    best.hp.Alpha,
			"l1_ratio": best.hp.L1Ratio,
			"selected": len(state.SelectedFeatures),
			"oos_r2":   best.metrics.OOSR2,
			"sigma":    state.TrainingSigma,
		}).Info("Fitted monthly valuation model")
	}
	return state, nil
}

// crossValidate returns the mean held-out R2 over contiguous folds.
func (m *Model) crossValidate(x [][]float64, y []float64, hp Hyperparameters) (float64, error) {
	n := len(x)
	folds := m.cfg.CVFolds
	foldSize := n / folds
	if foldSize == 0 {
		return 0, fmt.Errorf("too few rows (%d) for %d folds", n, folds)
	}

	total, counted := 0.0, 0
	for f := 0; f < folds; f++ {
		lo := f * foldSize
		hi := lo + foldSize
		if f == folds-1 {
			hi = n
		}

		var trainX [][]float64
		var trainY, testY []float64
		var testX [][]float64
		for i := 0; i < n; i++ {
			if i >= lo && i < hi {
				testX = append(testX, x[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, x[i])
				trainY = append(trainY, y[i])
			}
		}

		fitted, err := regress.FitElasticNet(trainX, trainY, hp.Alpha, hp.L1Ratio)
		if err != nil {
			return 0, err
		}
		r2 := regress.RSquared(testY, predictAll(fitted, testX))
		if !math.IsNaN(r2) {
			total += r2
			counted++
		}
	}
	if counted == 0 {
		return 0, fmt.Errorf("no fold produced a defined R2")
	}
	return total / float64(counted), nil
}

// Predict returns the fair value for one feature vector. It is a pure
// function of (state, features): identical inputs yield identical output.
func (s *ModelState) Predict(fv models.FeatureVector) (float64, error) {
	known := make(map[string]bool, len(s.TrainingFeatures))
	for _, name := range s.TrainingFeatures {
		known[name] = true
	}
	for name := range fv.Features {
		if !known[name] {
			return 0, utils.NewUnknownFeatureError(name)
		}
	}

	out := s.Intercept
	for _, name := range s.SelectedFeatures {
		v, ok := fv.Features[name]
		if !ok {
			return 0, utils.NewMissingFeatureError(name)
		}
		out += s.Coefficients[name] * v
	}
	return out, nil
}

// DeriveRegime builds the full Layer 1 prediction from spot and fair value
// using the state's frozen training sigma.
func (s *ModelState) DeriveRegime(asOf time.Time, spot, fairValue float64) models.Layer1Prediction {
	mispricing := spot - fairValue
	z := mispricing / s.TrainingSigma
	return models.Layer1Prediction{
		AsOf:         asOf,
		ModelVersion: s.Version,
		Spot:         spot,
		FairValue:    fairValue,
		Mispricing:   mispricing,
		MispricingZ:  z,
		Regime:       models.RegimeFromZ(z),
	}
}

// featureNames validates that all rows share one schema and returns it
// sorted for deterministic column order.
func featureNames(rows []models.FeatureVector) ([]string, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no feature rows")
	}
	names := make([]string, 0, len(rows[0].Features))
	for name := range rows[0].Features {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, row := range rows[1:] {
		if len(row.Features) != len(names) {
			return nil, fmt.Errorf("inconsistent feature schema at %s", row.AsOf.Format("2006-01-02"))
		}
		for _, name := range names {
			if _, ok := row.Features[name]; !ok {
				return nil, fmt.Errorf("row %s lacks feature %q", row.AsOf.Format("2006-01-02"), name)
			}
		}
	}
	return names, nil
}

func buildMatrix(rows []models.FeatureVector, names []string) [][]float64 {
	x := make([][]float64, len(rows))
	for i, row := range rows {
		x[i] = make([]float64, len(names))
		for j, name := range names {
			x[i][j] = row.Features[name]
		}
	}
	return x
}

func predictAll(m *regress.ElasticNet, x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		out[i] = m.Predict(row)
	}
	return out
}

// regimeDivergence is the L1 distance between the training residual regime
// frequencies and the normal prior.
func regimeDivergence(observed, predicted []float64, sigma float64) float64 {
	if len(observed) == 0 {
		return math.Inf(1)
	}
	inLine, stretch, brk := 0, 0, 0
	for i := range observed {
		z := math.Abs((observed[i] - predicted[i]) / sigma)
		switch {
		case z < models.StretchThreshold:
			inLine++
		case z < models.BreakThreshold:
			stretch++
		default:
			brk++
		}
	}
	n := float64(len(observed))
	return math.Abs(float64(inLine)/n-priorInLine) +
		math.Abs(float64(stretch)/n-priorStretch) +
		math.Abs(float64(brk)/n-priorBreak)
}

// stabilityStd is the standard deviation of period-over-period fair-value
// changes: a jumpy anchor scores worse.
func stabilityStd(fairValues []float64) float64 {
	if len(fairValues) < 3 {
		return 0
	}
	changes := make([]float64, len(fairValues)-1)
	mean := 0.0
	for i := 1; i < len(fairValues); i++ {
		changes[i-1] = fairValues[i] - fairValues[i-1]
		mean += changes[i-1]
	}
	mean /= float64(len(changes))
	variance := 0.0
	for _, c := range changes {
		d := c - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(changes)))
}
