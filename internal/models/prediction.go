package models

import (
	"math"
	"time"
)

// ValuationRegime is the discrete bucket derived from the mispricing z-score.
type ValuationRegime string

const (
	RegimeInLine       ValuationRegime = "IN_LINE"
	RegimeCheapStretch ValuationRegime = "CHEAP_STRETCH"
	RegimeCheapBreak   ValuationRegime = "CHEAP_BREAK"
	RegimeRichStretch  ValuationRegime = "RICH_STRETCH"
	RegimeRichBreak    ValuationRegime = "RICH_BREAK"
)

// Regime bucket thresholds in sigma units. Boundaries are closed on the
// outer bucket: z=1.0 is a stretch, z=2.0 is a break.
const (
	StretchThreshold = 1.0
	BreakThreshold   = 2.0
)

// RegimeFromZ maps any real z-score to exactly one regime. Positive z means
// spot above fair value (rich), negative means cheap.
func RegimeFromZ(z float64) ValuationRegime {
	abs := math.Abs(z)
	switch {
	case abs < StretchThreshold:
		return RegimeInLine
	case abs < BreakThreshold:
		if z > 0 {
			return RegimeRichStretch
		}
		return RegimeCheapStretch
	default:
		if z > 0 {
			return RegimeRichBreak
		}
		return RegimeCheapBreak
	}
}

// Layer1Prediction is the monthly valuation output. Immutable once produced
// for a given as_of; refreshes create new records.
type Layer1Prediction struct {
	AsOf         time.Time       `json:"as_of" db:"as_of"`
	ModelVersion string          `json:"model_version" db:"model_version"`
	Spot         float64         `json:"spot" db:"spot"`
	FairValue    float64         `json:"fair_value" db:"fair_value"`
	Mispricing   float64         `json:"mispricing" db:"mispricing"`
	MispricingZ  float64         `json:"mispricing_z" db:"mispricing_z"`
	Regime       ValuationRegime `json:"regime" db:"regime"`
}

// PressureDirection says which way the mispricing gap is expected to move.
type PressureDirection string

const (
	DirectionExpand   PressureDirection = "EXPAND"
	DirectionCompress PressureDirection = "COMPRESS"
)

// DirectionFromDeltaZ maps a predicted Δz to a direction. Exactly zero maps
// to COMPRESS: a flat gap is treated as non-expanding.
func DirectionFromDeltaZ(deltaZ float64) PressureDirection {
	if deltaZ > 0 {
		return DirectionExpand
	}
	return DirectionCompress
}

// Confidence buckets a signal's strength.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Pressure confidence thresholds on |predicted Δz|.
const (
	PressureHighThreshold   = 0.3
	PressureMediumThreshold = 0.1
)

// ConfidenceFromDeltaZ buckets the magnitude of a predicted Δz.
func ConfidenceFromDeltaZ(deltaZ float64) Confidence {
	abs := math.Abs(deltaZ)
	switch {
	case abs > PressureHighThreshold:
		return ConfidenceHigh
	case abs > PressureMediumThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// Layer2Prediction is the weekly pressure output.
type Layer2Prediction struct {
	AsOf            time.Time         `json:"as_of" db:"as_of"`
	ModelVersion    string            `json:"model_version" db:"model_version"`
	PredictedDeltaZ float64           `json:"predicted_delta_z" db:"predicted_delta_z"`
	Direction       PressureDirection `json:"direction" db:"direction"`
	Confidence      Confidence        `json:"confidence" db:"confidence"`
}

// NewLayer2Prediction derives direction and confidence from a raw Δz estimate.
func NewLayer2Prediction(asOf time.Time, modelVersion string, deltaZ float64) Layer2Prediction {
	return Layer2Prediction{
		AsOf:            asOf,
		ModelVersion:    modelVersion,
		PredictedDeltaZ: deltaZ,
		Direction:       DirectionFromDeltaZ(deltaZ),
		Confidence:      ConfidenceFromDeltaZ(deltaZ),
	}
}
