package technical

import (
	"fmt"

	"github.com/fxviews/fx-views-go/internal/models"
)

// PostureRule maps one (regime, confirmed, volatility-expanding) combination
// to a trade posture. The table is plain data so it can be validated for
// completeness at startup and asserted in tests.
type PostureRule struct {
	Regime       models.TechnicalRegime
	Confirmed    bool
	VolExpanding bool
	Posture      models.TradePosture
}

// DefaultPostureTable covers all twelve combinations. Unconfirmed or
// quiet-volatility states degrade toward waiting rather than chasing.
func DefaultPostureTable() []PostureRule {
	return []PostureRule{
		{models.TechnicalBullish, true, true, models.PostureBuyBreakouts},
		{models.TechnicalBullish, true, false, models.PostureBuyBreakouts},
		{models.TechnicalBullish, false, true, models.PostureRangeWait},
		{models.TechnicalBullish, false, false, models.PostureRangeWait},
		{models.TechnicalNeutral, true, true, models.PostureFadeRallies},
		{models.TechnicalNeutral, true, false, models.PostureRangeWait},
		{models.TechnicalNeutral, false, true, models.PostureRangeWait},
		{models.TechnicalNeutral, false, false, models.PostureRangeWait},
		{models.TechnicalBearish, true, true, models.PostureSellBreakdowns},
		{models.TechnicalBearish, true, false, models.PostureSellBreakdowns},
		{models.TechnicalBearish, false, true, models.PostureFadeRallies},
		{models.TechnicalBearish, false, false, models.PostureRangeWait},
	}
}

type postureKey struct {
	regime       models.TechnicalRegime
	confirmed    bool
	volExpanding bool
}

// postureIndex validates that every combination appears exactly once.
func postureIndex(rules []PostureRule) (map[postureKey]models.TradePosture, error) {
	index := make(map[postureKey]models.TradePosture, len(rules))
	for _, r := range rules {
		key := postureKey{r.Regime, r.Confirmed, r.VolExpanding}
		if _, dup := index[key]; dup {
			return nil, fmt.Errorf("duplicate posture rule for %s/confirmed=%t/vol=%t", r.Regime, r.Confirmed, r.VolExpanding)
		}
		index[key] = r.Posture
	}
	for _, regime := range []models.TechnicalRegime{models.TechnicalBullish, models.TechnicalNeutral, models.TechnicalBearish} {
		for _, confirmed := range []bool{true, false} {
			for _, vol := range []bool{true, false} {
				if _, ok := index[postureKey{regime, confirmed, vol}]; !ok {
					return nil, fmt.Errorf("posture table missing %s/confirmed=%t/vol=%t", regime, confirmed, vol)
				}
			}
		}
	}
	return index, nil
}
