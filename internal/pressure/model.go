package pressure

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

// EngineKind names which learner won the evaluation.
type EngineKind string

const (
	EngineBoosted EngineKind = "gbdt"
	EngineLinear  EngineKind = "linear"
)

// EvalMetrics are the directional scores used to choose an engine.
// HitRate is the share of held-out weeks where the predicted sign of the
// z-score change matched the realized sign; StretchedHitRate is the same
// conditioned on weeks that started at |z| > 1.
type EvalMetrics struct {
	HitRate          float64 `json:"hit_rate"`
	StretchedHitRate float64 `json:"stretched_hit_rate"`
	RMSE             float64 `json:"rmse"`
}

// Config controls the fit and the anti-complexity bar: the boosted model
// is adopted only when its held-out hit rate beats the best linear
// baseline by at least AdoptionMargin.
type Config struct {
	GBDT           GBDTParams
	HoldoutShare   float64
	AdoptionMargin float64
	MinHitRate     float64
	RidgeAlpha     float64
	NetAlpha       float64
	NetL1Ratio     float64
}

// DefaultConfig mirrors the weekly tuning.
func DefaultConfig() Config {
	return Config{
		GBDT:           DefaultGBDTParams(),
		HoldoutShare:   0.25,
		AdoptionMargin: 0.02,
		MinHitRate:     0.50,
		RidgeAlpha:     1.0,
		NetAlpha:       0.001,
		NetL1Ratio:     0.5,
	}
}

// predictor is the minimal surface both learners expose.
type predictor interface {
	Predict(row []float64) float64
}

// ModelState is the immutable result of one successful weekly fit. The
// winning learner is carried in full so an archived state reproduces its
// historical predictions; exactly one of Boosted and Linear is set.
type ModelState struct {
	Version          string              `json:"version"`
	FittedAt         time.Time           `json:"fitted_at"`
	Engine           EngineKind          `json:"engine"`
	TrainingFeatures []string            `json:"training_features"`
	Metrics          EvalMetrics         `json:"metrics"`
	LinearBaseline   EvalMetrics         `json:"linear_baseline"`
	Boosted          *GBDT               `json:"boosted,omitempty"`
	Linear           *regress.ElasticNet `json:"linear,omitempty"`
}

// learner returns the fitted predictor for the state's engine, or nil for
// a state that never carried one.
func (s *ModelState) learner() predictor {
	if s.Engine == EngineBoosted {
		if s.Boosted == nil {
			return nil
		}
		return s.Boosted
	}
	if s.Linear == nil {
		return nil
	}
	return s.Linear
}

// Model fits and serves the weekly pressure layer.
type Model struct {
	cfg    Config
	logger *logrus.Logger
}

func New(cfg Config, logger *logrus.Logger) *Model {
	if cfg.HoldoutShare <= 0 || cfg.HoldoutShare >= 1 {
		cfg = DefaultConfig()
	}
	return &Model{cfg: cfg, logger: logger}
}

// Fit trains both the boosted ensemble and the linear baselines on a
// chronological split, scores them on the held-out tail, and keeps the
// boosted model only when it clears the adoption margin. startZ carries
// the mispricing z at the start of each week, for the stretched metric.
func (m *Model) Fit(rows []models.FeatureVector, targets, startZ []float64) (*ModelState, error) {
	n := len(rows)
	if n != len(targets) || n != len(startZ) {
		return nil, fmt.Errorf("rows (%d), targets (%d) and start z (%d) must match", n, len(targets), len(startZ))
	}

	names, x, err := designMatrix(rows)
	if err != nil {
		return nil, err
	}

	holdout := int(math.Round(m.cfg.HoldoutShare * float64(n)))
	if holdout < 8 || n-holdout < 24 {
		return nil, utils.NewModelSelectionError("layer2",
			fmt.Sprintf("insufficient weekly history: %d rows", n))
	}
	split := n - holdout
	trainX, testX := x[:split], x[split:]
	trainY, testY := targets[:split], targets[split:]
	testZ := startZ[split:]

	boosted, err := FitGBDT(trainX, trainY, m.cfg.GBDT)
	if err != nil {
		return nil, err
	}
	boostedMetrics := evaluate(boosted, testX, testY, testZ)

	linear, linearMetrics, err := m.bestLinear(trainX, trainY, testX, testY, testZ)
	if err != nil {
		return nil, err
	}

	engine, metrics := EngineBoosted, boostedMetrics
	if boostedMetrics.HitRate < linearMetrics.HitRate+m.cfg.AdoptionMargin {
		engine, metrics = EngineLinear, linearMetrics
	}
	if metrics.HitRate < m.cfg.MinHitRate {
		return nil, utils.NewModelSelectionError("layer2",
			fmt.Sprintf("held-out hit rate %.3f below floor %.2f", metrics.HitRate, m.cfg.MinHitRate))
	}

	state := &ModelState{
		Version:          uuid.NewString(),
		FittedAt:         time.Now().UTC(),
		Engine:           engine,
		TrainingFeatures: names,
		Metrics:          metrics,
		LinearBaseline:   linearMetrics,
	}
	if engine == EngineBoosted {
		state.Boosted = boosted
	} else {
		state.Linear = linear
	}
	if m.logger != nil {
		m.logger.WithFields(logrus.Fields{
			"version":   state.Version,
			"engine":    engine,
			"hit_rate":  metrics.HitRate,
			"stretched": metrics.StretchedHitRate,
		}).Info("Fitted weekly pressure model")
	}
	return state, nil
}

// bestLinear scores ridge and elastic net on the holdout and returns the
// stronger of the two by hit rate.
func (m *Model) bestLinear(trainX [][]float64, trainY []float64, testX [][]float64, testY, testZ []float64) (*regress.ElasticNet, EvalMetrics, error) {
	ridge, err := regress.FitRidge(trainX, trainY, m.cfg.RidgeAlpha)
	if err != nil {
		return nil, EvalMetrics{}, err
	}
	net, err := regress.FitElasticNet(trainX, trainY, m.cfg.NetAlpha, m.cfg.NetL1Ratio)
	if err != nil {
		return nil, EvalMetrics{}, err
	}

	ridgeMetrics := evaluate(ridge, testX, testY, testZ)
	netMetrics := evaluate(net, testX, testY, testZ)
	if netMetrics.HitRate > ridgeMetrics.HitRate {
		return net, netMetrics, nil
	}
	return ridge, ridgeMetrics, nil
}

// Predict derives the full Layer 2 prediction for one weekly vector.
// direction and confidence come from the predicted z change alone.
func (s *ModelState) Predict(fv models.FeatureVector) (models.Layer2Prediction, error) {
	known := make(map[string]bool, len(s.TrainingFeatures))
	for _, name := range s.TrainingFeatures {
		known[name] = true
	}
	for name := range fv.Features {
		if !known[name] {
			return models.Layer2Prediction{}, utils.NewUnknownFeatureError(name)
		}
	}

	row := make([]float64, len(s.TrainingFeatures))
	for j, name := range s.TrainingFeatures {
		v, ok := fv.Features[name]
		if !ok {
			return models.Layer2Prediction{}, utils.NewMissingFeatureError(name)
		}
		row[j] = v
	}

	learner := s.learner()
	if learner == nil {
		return models.Layer2Prediction{}, fmt.Errorf("model state %s carries no fitted %s learner", s.Version, s.Engine)
	}
	deltaZ := learner.Predict(row)
	return models.NewLayer2Prediction(fv.AsOf, s.Version, deltaZ), nil
}

func evaluate(p predictor, x [][]float64, y, startZ []float64) EvalMetrics {
	var hits, total, stretchedHits, stretchedTotal int
	predicted := make([]float64, len(x))
	for i, row := range x {
		predicted[i] = p.Predict(row)
		if y[i] == 0 {
			continue
		}
		total++
		hit := (predicted[i] > 0) == (y[i] > 0)
		if hit {
			hits++
		}
		if math.Abs(startZ[i]) > 1.0 {
			stretchedTotal++
			if hit {
				stretchedHits++
			}
		}
	}

	m := EvalMetrics{RMSE: regress.RMSE(y, predicted)}
	if total > 0 {
		m.HitRate = float64(hits) / float64(total)
	}
	if stretchedTotal > 0 {
		m.StretchedHitRate = float64(stretchedHits) / float64(stretchedTotal)
	}
	return m
}

// designMatrix validates a shared schema across rows and lays the
// features out in sorted column order.
func designMatrix(rows []models.FeatureVector) ([]string, [][]float64, error) {
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("no feature rows")
	}
	names := make([]string, 0, len(rows[0].Features))
	for name := range rows[0].Features {
		names = append(names, name)
	}
	sort.Strings(names)

	x := make([][]float64, len(rows))
	for i, row := range rows {
		x[i] = make([]float64, len(names))
		for j, name := range names {
			v, ok := row.Features[name]
			if !ok {
				return nil, nil, fmt.Errorf("row %s lacks feature %q", row.AsOf.Format("2006-01-02"), name)
			}
			x[i][j] = v
		}
	}
	return names, x, nil
}
