package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fxviews/fx-views-go/internal/models"
)

// DatabasePool is the subset of pgxpool.Pool the repository needs. Kept as
// an interface so tests can substitute a mock pool.
type DatabasePool interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// ErrNoDecision reports that no decision record exists for the query.
var ErrNoDecision = errors.New("no decision record found")

// SignalRepository persists predictions, decisions and model states for
// audit. Every model fit and every fused decision leaves a row.
type SignalRepository struct {
	pool DatabasePool
}

func NewSignalRepository(pool DatabasePool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// SaveLayer1Prediction inserts one monthly valuation record.
func (r *SignalRepository) SaveLayer1Prediction(ctx context.Context, p models.Layer1Prediction) error {
	query := `
		INSERT INTO layer1_predictions (as_of, model_version, spot, fair_value, mispricing, mispricing_z, regime)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (as_of, model_version) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		p.AsOf, p.ModelVersion, p.Spot, p.FairValue, p.Mispricing, p.MispricingZ, string(p.Regime))
	if err != nil {
		return fmt.Errorf("failed to save layer1 prediction: %w", err)
	}
	return nil
}

// SaveLayer2Prediction inserts one weekly pressure record.
func (r *SignalRepository) SaveLayer2Prediction(ctx context.Context, p models.Layer2Prediction) error {
	query := `
		INSERT INTO layer2_predictions (as_of, model_version, predicted_delta_z, direction, confidence)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (as_of, model_version) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		p.AsOf, p.ModelVersion, p.PredictedDeltaZ, string(p.Direction), string(p.Confidence))
	if err != nil {
		return fmt.Errorf("failed to save layer2 prediction: %w", err)
	}
	return nil
}

// SaveDecision inserts one fused stance record.
func (r *SignalRepository) SaveDecision(ctx context.Context, d models.DecisionRecord) error {
	query := `
		INSERT INTO decisions (as_of, valuation_regime, pressure_direction, stance_title, stance_badge, action_bias, confidence, summary, watchouts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (as_of) DO UPDATE SET
			valuation_regime = EXCLUDED.valuation_regime,
			pressure_direction = EXCLUDED.pressure_direction,
			stance_title = EXCLUDED.stance_title,
			stance_badge = EXCLUDED.stance_badge,
			action_bias = EXCLUDED.action_bias,
			confidence = EXCLUDED.confidence,
			summary = EXCLUDED.summary,
			watchouts = EXCLUDED.watchouts`

	_, err := r.pool.Exec(ctx, query,
		d.AsOf, string(d.ValuationRegime), string(d.PressureDirection), d.StanceTitle,
		string(d.StanceBadge), string(d.ActionBias), string(d.Confidence), d.Summary, d.Watchouts)
	if err != nil {
		return fmt.Errorf("failed to save decision: %w", err)
	}
	return nil
}

// LatestDecision returns the most recent stance record.
func (r *SignalRepository) LatestDecision(ctx context.Context) (models.DecisionRecord, error) {
	query := `
		SELECT as_of, valuation_regime, pressure_direction, stance_title, stance_badge, action_bias, confidence, summary, watchouts
		FROM decisions
		ORDER BY as_of DESC
		LIMIT 1`

	var d models.DecisionRecord
	var regime, direction, badge, bias, confidence string
	err := r.pool.QueryRow(ctx, query).Scan(
		&d.AsOf, &regime, &direction, &d.StanceTitle, &badge, &bias, &confidence, &d.Summary, &d.Watchouts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.DecisionRecord{}, ErrNoDecision
		}
		return models.DecisionRecord{}, fmt.Errorf("failed to load latest decision: %w", err)
	}
	d.ValuationRegime = models.ValuationRegime(regime)
	d.PressureDirection = models.PressureDirection(direction)
	d.StanceBadge = models.StanceBadge(badge)
	d.ActionBias = models.ActionBias(bias)
	d.Confidence = models.Confidence(confidence)
	return d, nil
}

// SaveModelState archives a fitted model as JSON. The payload schema is
// owned by the layer that produced it.
func (r *SignalRepository) SaveModelState(ctx context.Context, layer, version string, fittedAt time.Time, state interface{}) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal model state: %w", err)
	}

	query := `
		INSERT INTO model_states (layer, version, fitted_at, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (layer, version) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, layer, version, fittedAt, payload); err != nil {
		return fmt.Errorf("failed to save model state: %w", err)
	}
	return nil
}

// DecisionHistory returns stance records in descending as-of order.
func (r *SignalRepository) DecisionHistory(ctx context.Context, limit int) ([]models.DecisionRecord, error) {
	query := `
		SELECT as_of, valuation_regime, pressure_direction, stance_title, stance_badge, action_bias, confidence, summary, watchouts
		FROM decisions
		ORDER BY as_of DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load decision history: %w", err)
	}
	defer rows.Close()

	var out []models.DecisionRecord
	for rows.Next() {
		var d models.DecisionRecord
		var regime, direction, badge, bias, confidence string
		if err := rows.Scan(&d.AsOf, &regime, &direction, &d.StanceTitle, &badge, &bias, &confidence, &d.Summary, &d.Watchouts); err != nil {
			return nil, fmt.Errorf("failed to scan decision row: %w", err)
		}
		d.ValuationRegime = models.ValuationRegime(regime)
		d.PressureDirection = models.PressureDirection(direction)
		d.StanceBadge = models.StanceBadge(badge)
		d.ActionBias = models.ActionBias(bias)
		d.Confidence = models.Confidence(confidence)
		out = append(out, d)
	}
	return out, rows.Err()
}
