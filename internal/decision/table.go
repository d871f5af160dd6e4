// Package decision fuses the valuation regime, pressure direction,
// technical posture and positioning state into one deterministic stance.
package decision

import (
	"fmt"

	"github.com/fxviews/fx-views-go/internal/models"
)

// StanceEntry is one row of the stance table: the human-readable call for
// a (valuation regime, pressure direction) pair. Summary and watchout text
// are fixed editorial strings, not generated.
type StanceEntry struct {
	Regime    models.ValuationRegime
	Direction models.PressureDirection
	Title     string
	Badge     models.StanceBadge
	Bias      models.ActionBias
	Summary   string
	Watchouts string
}

// StanceTable returns all ten regime/direction combinations.
func StanceTable() []StanceEntry {
	return []StanceEntry{
		{
			Regime:    models.RegimeCheapBreak,
			Direction: models.DirectionCompress,
			Title:     "Mean Reversion Setup",
			Badge:     models.BadgeRebound,
			Bias:      models.BiasMeanRevert,
			Summary:   "EUR looks extremely cheap vs macro, and pressure suggests mean reversion has started.",
			Watchouts: "Momentum overrides can delay the turn—watch vol spikes.",
		},
		{
			Regime:    models.RegimeCheapBreak,
			Direction: models.DirectionExpand,
			Title:     "Knife Catch Risk",
			Badge:     models.BadgeCaution,
			Bias:      models.BiasCaution,
			Summary:   "EUR looks extremely cheap, but pressure still points to further cheapening.",
			Watchouts: "Wait for pressure to flip before sizing conviction.",
		},
		{
			Regime:    models.RegimeCheapStretch,
			Direction: models.DirectionCompress,
			Title:     "Attractive Mean Reversion",
			Badge:     models.BadgeBuyTheDip,
			Bias:      models.BiasMeanRevert,
			Summary:   "EUR is cheap vs macro, and pressure supports normalization.",
			Watchouts: "If risk-off spikes, cheap can get cheaper.",
		},
		{
			Regime:    models.RegimeCheapStretch,
			Direction: models.DirectionExpand,
			Title:     "Early, Not Yet",
			Badge:     models.BadgeWait,
			Bias:      models.BiasCaution,
			Summary:   "EUR is cheap, but pressure indicates the market is still leaning away from value.",
			Watchouts: "Look for technical stabilization before conviction.",
		},
		{
			Regime:    models.RegimeInLine,
			Direction: models.DirectionCompress,
			Title:     "Range / Normalization",
			Badge:     models.BadgeNeutral,
			Bias:      models.BiasNeutral,
			Summary:   "EUR is near fair value, and pressure suggests mean reversion / range behavior.",
			Watchouts: "Catalysts matter more than valuation here.",
		},
		{
			Regime:    models.RegimeInLine,
			Direction: models.DirectionExpand,
			Title:     "Trend Building",
			Badge:     models.BadgeWatch,
			Bias:      models.BiasTrend,
			Summary:   "EUR is near fair value, but pressure suggests a new trend may be forming.",
			Watchouts: "Confirm with technicals and risk regime.",
		},
		{
			Regime:    models.RegimeRichStretch,
			Direction: models.DirectionCompress,
			Title:     "Overvaluation Fading",
			Badge:     models.BadgeFade,
			Bias:      models.BiasMeanRevert,
			Summary:   "EUR looks rich vs macro, and pressure suggests mispricing is compressing.",
			Watchouts: "Momentum bursts can extend rallies temporarily.",
		},
		{
			Regime:    models.RegimeRichStretch,
			Direction: models.DirectionExpand,
			Title:     "Momentum vs Value",
			Badge:     models.BadgeTrend,
			Bias:      models.BiasTrend,
			Summary:   "EUR is rich, and pressure still supports further richening—trend may dominate near-term.",
			Watchouts: "Risk of sharp snapback rises as z approaches +2σ.",
		},
		{
			Regime:    models.RegimeRichBreak,
			Direction: models.DirectionCompress,
			Title:     "Mean Reversion Risk High",
			Badge:     models.BadgeReversal,
			Bias:      models.BiasMeanRevert,
			Summary:   "EUR is extremely rich vs macro, and pressure suggests reversion is underway.",
			Watchouts: "Crowded positioning can still whip around—use confirmation.",
		},
		{
			Regime:    models.RegimeRichBreak,
			Direction: models.DirectionExpand,
			Title:     "Blow-off / Late Trend",
			Badge:     models.BadgeDanger,
			Bias:      models.BiasCaution,
			Summary:   "EUR is extremely rich and still getting richer—late-cycle trend behavior.",
			Watchouts: "Highest snapback risk—treat as fragile.",
		},
	}
}

type stanceKey struct {
	regime    models.ValuationRegime
	direction models.PressureDirection
}

// stanceIndex validates that every regime/direction pair appears exactly once.
func stanceIndex(entries []StanceEntry) (map[stanceKey]StanceEntry, error) {
	index := make(map[stanceKey]StanceEntry, len(entries))
	for _, e := range entries {
		key := stanceKey{e.Regime, e.Direction}
		if _, dup := index[key]; dup {
			return nil, fmt.Errorf("duplicate stance entry for %s/%s", e.Regime, e.Direction)
		}
		index[key] = e
	}
	regimes := []models.ValuationRegime{
		models.RegimeInLine, models.RegimeCheapStretch, models.RegimeCheapBreak,
		models.RegimeRichStretch, models.RegimeRichBreak,
	}
	directions := []models.PressureDirection{models.DirectionExpand, models.DirectionCompress}
	for _, r := range regimes {
		for _, d := range directions {
			if _, ok := index[stanceKey{r, d}]; !ok {
				return nil, fmt.Errorf("stance table missing %s/%s", r, d)
			}
		}
	}
	return index, nil
}
