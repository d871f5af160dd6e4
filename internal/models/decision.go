package models

import "time"

// ActionBias is the coarse action implied by a stance.
type ActionBias string

const (
	BiasMeanRevert ActionBias = "MEAN_REVERT"
	BiasTrend      ActionBias = "TREND"
	BiasCaution    ActionBias = "CAUTION"
	BiasNeutral    ActionBias = "NEUTRAL"
)

// StanceBadge is the short display token attached to a stance.
type StanceBadge string

const (
	BadgeRebound   StanceBadge = "REBOUND"
	BadgeCaution   StanceBadge = "CAUTION"
	BadgeBuyTheDip StanceBadge = "BUY_THE_DIP"
	BadgeWait      StanceBadge = "WAIT"
	BadgeNeutral   StanceBadge = "NEUTRAL"
	BadgeWatch     StanceBadge = "WATCH"
	BadgeFade      StanceBadge = "FADE"
	BadgeTrend     StanceBadge = "TREND"
	BadgeReversal  StanceBadge = "REVERSAL"
	BadgeDanger    StanceBadge = "DANGER"
)

// DecisionRecord is the fused stance for one as_of. It is a flat record with
// enums serialized as fixed string tokens so the interface stays
// human-auditable. Field names are part of the external contract.
type DecisionRecord struct {
	AsOf              time.Time         `json:"as_of" db:"as_of"`
	ValuationRegime   ValuationRegime   `json:"valuation_regime" db:"valuation_regime"`
	PressureDirection PressureDirection `json:"pressure_direction" db:"pressure_direction"`
	StanceTitle       string            `json:"stance_title" db:"stance_title"`
	StanceBadge       StanceBadge       `json:"stance_badge" db:"stance_badge"`
	ActionBias        ActionBias        `json:"action_bias" db:"action_bias"`
	Confidence        Confidence        `json:"confidence" db:"confidence"`
	Summary           string            `json:"summary" db:"summary"`
	Watchouts         string            `json:"watchouts" db:"watchouts"`
}
