// Package services orchestrates the signal pipeline: model fits, the
// four-way concurrent evaluation, and persistence of every output.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fxviews/fx-views-go/internal/decision"
	"github.com/fxviews/fx-views-go/internal/features"
	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/positioning"
	"github.com/fxviews/fx-views-go/internal/pressure"
	"github.com/fxviews/fx-views-go/internal/technical"
	"github.com/fxviews/fx-views-go/internal/valuation"
)

// SignalStore is the persistence surface the pipeline needs.
type SignalStore interface {
	SaveLayer1Prediction(ctx context.Context, p models.Layer1Prediction) error
	SaveLayer2Prediction(ctx context.Context, p models.Layer2Prediction) error
	SaveDecision(ctx context.Context, d models.DecisionRecord) error
	SaveModelState(ctx context.Context, layer, version string, fittedAt time.Time, state interface{}) error
}

// DecisionStore is the cache surface for the latest outputs.
type DecisionStore interface {
	SetDecision(ctx context.Context, record models.DecisionRecord) error
	SetTechnical(ctx context.Context, score models.TechnicalScore) error
	SetPositioning(ctx context.Context, snapshot models.PositioningSnapshot) error
}

// EvaluationInputs is everything one as-of evaluation consumes, already
// materialized into memory by the data provider.
type EvaluationInputs struct {
	AsOf time.Time

	MonthlySeries map[string]models.Series
	SpotMonthly   models.Series

	WeeklySeries map[string]models.Series
	// MispricingZ is the weekly mispricing z series derived from the
	// active valuation model, consumed by the pressure layer as a feature.
	MispricingZ models.Series

	Bars        []technical.Bar
	Positioning []positioning.Observation
}

// PipelineService wires the feature engines, models, scorers and fusion
// behind one orchestration surface.
type PipelineService struct {
	registry *ModelRegistry

	monthlyEngine *features.Engine
	weeklyEngine  *features.Engine

	valuationModel    *valuation.Model
	pressureModel     *pressure.Model
	technicalScorer   *technical.Scorer
	positioningScorer *positioning.Scorer
	fuser             *decision.Fuser

	store  SignalStore
	cache  DecisionStore
	logger *logrus.Logger
}

func NewPipelineService(
	registry *ModelRegistry,
	monthlyEngine, weeklyEngine *features.Engine,
	valuationModel *valuation.Model,
	pressureModel *pressure.Model,
	technicalScorer *technical.Scorer,
	positioningScorer *positioning.Scorer,
	fuser *decision.Fuser,
	store SignalStore,
	cache DecisionStore,
	logger *logrus.Logger,
) *PipelineService {
	return &PipelineService{
		registry:          registry,
		monthlyEngine:     monthlyEngine,
		weeklyEngine:      weeklyEngine,
		valuationModel:    valuationModel,
		pressureModel:     pressureModel,
		technicalScorer:   technicalScorer,
		positioningScorer: positioningScorer,
		fuser:             fuser,
		store:             store,
		cache:             cache,
		logger:            logger,
	}
}

// FitValuation refits the monthly model on the spot calendar and publishes
// the new state only after the selection gate passes. Rows with data gaps
// are dropped by the feature engine and logged, never silently filled.
func (s *PipelineService) FitValuation(ctx context.Context, monthly map[string]models.Series, spot models.Series) error {
	calendar := make([]time.Time, len(spot.Points))
	targets := make(map[time.Time]float64, len(spot.Points))
	for i, p := range spot.Points {
		calendar[i] = p.Timestamp
		targets[p.Timestamp] = p.Value
	}

	rows, skipped, err := s.monthlyEngine.Matrix(monthly, calendar)
	if err != nil {
		return fmt.Errorf("failed to build monthly training matrix: %w", err)
	}
	if len(skipped) > 0 {
		s.logger.WithField("skipped", len(skipped)).Warn("Dropped gapped months from valuation training")
	}

	y := make([]float64, len(rows))
	for i, row := range rows {
		y[i] = targets[row.AsOf]
	}

	state, err := s.valuationModel.Fit(rows, y)
	if err != nil {
		return fmt.Errorf("valuation fit rejected, keeping previous state: %w", err)
	}
	s.registry.PublishLayer1(state)

	if err := s.store.SaveModelState(ctx, "layer1", state.Version, state.FittedAt, state); err != nil {
		s.logger.WithError(err).Warn("Failed to archive valuation model state")
	}
	return nil
}

// FitPressure refits the weekly model. Targets are next-week changes in
// the mispricing z, so the final week has no target and is excluded.
func (s *PipelineService) FitPressure(ctx context.Context, weekly map[string]models.Series, mispricingZ models.Series) error {
	if len(mispricingZ.Points) < 3 {
		return fmt.Errorf("mispricing z series too short: %d points", len(mispricingZ.Points))
	}

	zByDate := make(map[time.Time]int, len(mispricingZ.Points))
	for i, p := range mispricingZ.Points {
		zByDate[p.Timestamp] = i
	}

	calendar := make([]time.Time, 0, len(mispricingZ.Points)-1)
	for _, p := range mispricingZ.Points[:len(mispricingZ.Points)-1] {
		calendar = append(calendar, p.Timestamp)
	}

	all := make(map[string]models.Series, len(weekly)+1)
	for name, series := range weekly {
		all[name] = series
	}
	all[mispricingZ.Name] = mispricingZ

	rows, skipped, err := s.weeklyEngine.Matrix(all, calendar)
	if err != nil {
		return fmt.Errorf("failed to build weekly training matrix: %w", err)
	}
	if len(skipped) > 0 {
		s.logger.WithField("skipped", len(skipped)).Warn("Dropped gapped weeks from pressure training")
	}

	targets := make([]float64, len(rows))
	startZ := make([]float64, len(rows))
	for i, row := range rows {
		idx := zByDate[row.AsOf]
		startZ[i] = mispricingZ.Points[idx].Value
		targets[i] = mispricingZ.Points[idx+1].Value - mispricingZ.Points[idx].Value
	}

	state, err := s.pressureModel.Fit(rows, targets, startZ)
	if err != nil {
		return fmt.Errorf("pressure fit rejected, keeping previous state: %w", err)
	}
	s.registry.PublishLayer2(state)

	if err := s.store.SaveModelState(ctx, "layer2", state.Version, state.FittedAt, state); err != nil {
		s.logger.WithError(err).Warn("Failed to archive pressure model state")
	}
	return nil
}

// Evaluate runs the four signal components concurrently, joins, and fuses.
// Layer 1 and Layer 2 failures abort the evaluation ("signal unavailable"
// upstream); a scorer failure only drops its confidence modifier.
func (s *PipelineService) Evaluate(ctx context.Context, in EvaluationInputs) (models.DecisionRecord, error) {
	layer1State := s.registry.Layer1()
	layer2State := s.registry.Layer2()
	if layer1State == nil || layer2State == nil {
		return models.DecisionRecord{}, fmt.Errorf("no active model state; fit both layers first")
	}
	if len(in.SpotMonthly.Points) == 0 {
		return models.DecisionRecord{}, fmt.Errorf("monthly spot series is empty")
	}
	if len(in.MispricingZ.Points) == 0 {
		return models.DecisionRecord{}, fmt.Errorf("mispricing z series is empty")
	}

	var (
		wg sync.WaitGroup

		layer1    models.Layer1Prediction
		layer1Err error

		layer2    models.Layer2Prediction
		layer2Err error

		technicalScore  *models.TechnicalScore
		positioningSnap *models.PositioningSnapshot
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		layer1, layer1Err = s.evaluateLayer1(layer1State, in)
	}()
	go func() {
		defer wg.Done()
		layer2, layer2Err = s.evaluateLayer2(layer2State, in)
	}()
	go func() {
		defer wg.Done()
		score, err := s.technicalScorer.Score(in.Bars)
		if err != nil {
			s.logger.WithError(err).Warn("Technical scorer unavailable for this evaluation")
			return
		}
		technicalScore = &score
	}()
	go func() {
		defer wg.Done()
		snapshot, err := s.positioningScorer.Score(in.Positioning)
		if err != nil {
			s.logger.WithError(err).Warn("Positioning scorer unavailable for this evaluation")
			return
		}
		positioningSnap = &snapshot
	}()
	wg.Wait()

	if layer1Err != nil {
		return models.DecisionRecord{}, fmt.Errorf("layer1 prediction failed: %w", layer1Err)
	}
	if layer2Err != nil {
		return models.DecisionRecord{}, fmt.Errorf("layer2 prediction failed: %w", layer2Err)
	}

	record, warnings, err := s.fuser.Fuse(decision.Inputs{
		Layer1:      layer1,
		Layer2:      layer2,
		Technical:   technicalScore,
		Positioning: positioningSnap,
		Now:         in.AsOf,
	})
	if err != nil {
		return models.DecisionRecord{}, err
	}
	for _, w := range warnings {
		s.logger.WithError(w).Warn("Stale input in decision fusion")
	}

	s.persist(ctx, layer1, layer2, record, technicalScore, positioningSnap)
	return record, nil
}

func (s *PipelineService) evaluateLayer1(state *valuation.ModelState, in EvaluationInputs) (models.Layer1Prediction, error) {
	vector, err := s.monthlyEngine.Vector(in.MonthlySeries, lastTimestamp(in.SpotMonthly))
	if err != nil {
		return models.Layer1Prediction{}, err
	}
	fairValue, err := state.Predict(vector)
	if err != nil {
		return models.Layer1Prediction{}, err
	}
	spot := in.SpotMonthly.Points[len(in.SpotMonthly.Points)-1]
	return state.DeriveRegime(spot.Timestamp, spot.Value, fairValue), nil
}

func (s *PipelineService) evaluateLayer2(state *pressure.ModelState, in EvaluationInputs) (models.Layer2Prediction, error) {
	all := make(map[string]models.Series, len(in.WeeklySeries)+1)
	for name, series := range in.WeeklySeries {
		all[name] = series
	}
	all[in.MispricingZ.Name] = in.MispricingZ

	vector, err := s.weeklyEngine.Vector(all, lastTimestamp(in.MispricingZ))
	if err != nil {
		return models.Layer2Prediction{}, err
	}
	return state.Predict(vector)
}

// persist writes outputs best-effort; storage failures are logged, not
// returned, because the decision itself is already made.
func (s *PipelineService) persist(ctx context.Context, layer1 models.Layer1Prediction, layer2 models.Layer2Prediction, record models.DecisionRecord, technicalScore *models.TechnicalScore, positioningSnap *models.PositioningSnapshot) {
	if err := s.store.SaveLayer1Prediction(ctx, layer1); err != nil {
		s.logger.WithError(err).Warn("Failed to persist layer1 prediction")
	}
	if err := s.store.SaveLayer2Prediction(ctx, layer2); err != nil {
		s.logger.WithError(err).Warn("Failed to persist layer2 prediction")
	}
	if err := s.store.SaveDecision(ctx, record); err != nil {
		s.logger.WithError(err).Warn("Failed to persist decision")
	}
	if err := s.cache.SetDecision(ctx, record); err != nil {
		s.logger.WithError(err).Warn("Failed to cache decision")
	}
	if technicalScore != nil {
		if err := s.cache.SetTechnical(ctx, *technicalScore); err != nil {
			s.logger.WithError(err).Warn("Failed to cache technical score")
		}
	}
	if positioningSnap != nil {
		if err := s.cache.SetPositioning(ctx, *positioningSnap); err != nil {
			s.logger.WithError(err).Warn("Failed to cache positioning snapshot")
		}
	}
}

func lastTimestamp(s models.Series) time.Time {
	return s.Points[len(s.Points)-1].Timestamp
}
