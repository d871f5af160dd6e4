package database

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS layer1_predictions (
		as_of        TIMESTAMPTZ NOT NULL,
		model_version TEXT NOT NULL,
		spot         DOUBLE PRECISION NOT NULL,
		fair_value   DOUBLE PRECISION NOT NULL,
		mispricing   DOUBLE PRECISION NOT NULL,
		mispricing_z DOUBLE PRECISION NOT NULL,
		regime       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (as_of, model_version)
	)`,
	`CREATE TABLE IF NOT EXISTS layer2_predictions (
		as_of             TIMESTAMPTZ NOT NULL,
		model_version     TEXT NOT NULL,
		predicted_delta_z DOUBLE PRECISION NOT NULL,
		direction         TEXT NOT NULL,
		confidence        TEXT NOT NULL,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (as_of, model_version)
	)`,
	`CREATE TABLE IF NOT EXISTS decisions (
		as_of              TIMESTAMPTZ PRIMARY KEY,
		valuation_regime   TEXT NOT NULL,
		pressure_direction TEXT NOT NULL,
		stance_title       TEXT NOT NULL,
		stance_badge       TEXT NOT NULL,
		action_bias        TEXT NOT NULL,
		confidence         TEXT NOT NULL,
		summary            TEXT NOT NULL,
		watchouts          TEXT NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS model_states (
		layer      TEXT NOT NULL,
		version    TEXT NOT NULL,
		fitted_at  TIMESTAMPTZ NOT NULL,
		state      JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (layer, version)
	)`,
}

// Migrate applies the schema. Statements are idempotent so startup can
// always run it.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
