package utils

import (
	"fmt"
	"time"
)

// DataGapError reports that a feature cannot be computed because the
// required history is missing, or a forward-fill staleness budget was
// exceeded. The affected (feature, date) pair is excluded, never zero-filled.
type DataGapError struct {
	Series  string
	Feature string
	AsOf    time.Time
	Reason  string
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap for %s (%s) at %s: %s", e.Feature, e.Series, e.AsOf.Format("2006-01-02"), e.Reason)
}

// NewDataGapError creates a DataGapError for a feature/date pair.
func NewDataGapError(series, feature string, asOf time.Time, reason string) error {
	return &DataGapError{Series: series, Feature: feature, AsOf: asOf, Reason: reason}
}

// MissingFeatureError reports that an input feature vector lacks a feature
// the active model requires. Always fatal to that single prediction.
type MissingFeatureError struct {
	Feature string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("feature vector is missing required feature %q", e.Feature)
}

// NewMissingFeatureError creates a MissingFeatureError naming the feature.
func NewMissingFeatureError(feature string) error {
	return &MissingFeatureError{Feature: feature}
}

// UnknownFeatureError reports a feature present at inference time that was
// never part of the training schema. Unknown features are rejected, not
// silently dropped.
type UnknownFeatureError struct {
	Feature string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("feature %q was not in the training feature set", e.Feature)
}

// NewUnknownFeatureError creates an UnknownFeatureError naming the feature.
func NewUnknownFeatureError(feature string) error {
	return &UnknownFeatureError{Feature: feature}
}

// ModelSelectionError reports that no candidate model met the acceptance
// bar. The fit fails entirely and the previously active model stays in force.
type ModelSelectionError struct {
	Layer  string
	Reason string
}

func (e *ModelSelectionError) Error() string {
	return fmt.Sprintf("%s model selection failed: %s", e.Layer, e.Reason)
}

// NewModelSelectionError creates a ModelSelectionError for a layer.
func NewModelSelectionError(layer, reason string) error {
	return &ModelSelectionError{Layer: layer, Reason: reason}
}

// StalePredictionWarning flags an input older than its refresh cadence
// budget. Non-fatal: decision fusion downgrades confidence and appends a
// watchout instead of refusing to produce a record.
type StalePredictionWarning struct {
	Input  string
	AsOf   time.Time
	Budget time.Duration
}

func (e *StalePredictionWarning) Error() string {
	return fmt.Sprintf("%s input as of %s exceeds freshness budget %s", e.Input, e.AsOf.Format("2006-01-02"), e.Budget)
}

// NewStalePredictionWarning creates a StalePredictionWarning for an input.
func NewStalePredictionWarning(input string, asOf time.Time, budget time.Duration) error {
	return &StalePredictionWarning{Input: input, AsOf: asOf, Budget: budget}
}
