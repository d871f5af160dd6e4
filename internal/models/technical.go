package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TechnicalRegime is the rule-based bias bucket from the composite score.
type TechnicalRegime string

const (
	TechnicalBullish TechnicalRegime = "BULLISH"
	TechnicalNeutral TechnicalRegime = "NEUTRAL"
	TechnicalBearish TechnicalRegime = "BEARISH"
)

// TradePosture is the tactical stance mapped from (regime, confirmed,
// volatility-expanding).
type TradePosture string

const (
	PostureBuyBreakouts   TradePosture = "BUY_BREAKOUTS"
	PostureFadeRallies    TradePosture = "FADE_RALLIES"
	PostureSellBreakdowns TradePosture = "SELL_BREAKDOWNS"
	PostureRangeWait      TradePosture = "RANGE_WAIT"
)

// LevelKind tags a key level relative to spot.
type LevelKind string

const (
	LevelSupport    LevelKind = "SUPPORT"
	LevelResistance LevelKind = "RESISTANCE"
)

// KeyLevel is a nearby price level of technical interest.
type KeyLevel struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	DistancePct float64         `json:"distance_pct"`
	Kind        LevelKind       `json:"kind"`
}

// TechnicalScore is the full rule-based technical assessment for one date.
// Structure is clamped to [-2.5, 2.5], momentum to [-3, 3], and the
// composite lies in [-3, 3] by construction.
type TechnicalScore struct {
	AsOf           time.Time       `json:"as_of"`
	Spot           float64         `json:"spot"`
	StructureScore float64         `json:"structure_score"`
	MomentumScore  float64         `json:"momentum_score"`
	CompositeBias  float64         `json:"composite_bias"`
	Regime         TechnicalRegime `json:"regime"`
	Confirmed      bool            `json:"confirmed"`
	VolExpanding   bool            `json:"vol_expanding"`
	Posture        TradePosture    `json:"posture"`
	KeyLevels      []KeyLevel      `json:"key_levels"`
}

// Direction returns +1 for bullish, -1 for bearish, 0 for neutral. Used by
// decision fusion when checking cross-signal agreement.
func (r TechnicalRegime) Direction() int {
	switch r {
	case TechnicalBullish:
		return 1
	case TechnicalBearish:
		return -1
	default:
		return 0
	}
}
