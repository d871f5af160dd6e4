package decision

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/utils"
)

// Freshness budgets: how old a layer's as-of may be before the fused
// confidence is forced to LOW.
const (
	Layer1StalenessBudget = 35 * 24 * time.Hour
	Layer2StalenessBudget = 10 * 24 * time.Hour
)

const lowConfidenceCaution = "Confidence is low: treat this stance as provisional until signals realign."

// Inputs carries everything one fusion evaluation needs. Layer 1 and 2 are
// required; the technical and positioning reads are confidence modifiers
// and may be absent.
type Inputs struct {
	Layer1      models.Layer1Prediction
	Layer2      models.Layer2Prediction
	Technical   *models.TechnicalScore
	Positioning *models.PositioningSnapshot
	Now         time.Time
}

// Fuser maps layer outputs to a stance record. It holds no temporal state;
// each as-of is evaluated independently.
type Fuser struct {
	stances map[stanceKey]StanceEntry
	logger  *logrus.Logger
}

// NewFuser validates the stance table for completeness and returns a fuser.
func NewFuser(entries []StanceEntry, logger *logrus.Logger) (*Fuser, error) {
	if len(entries) == 0 {
		entries = StanceTable()
	}
	index, err := stanceIndex(entries)
	if err != nil {
		return nil, err
	}
	return &Fuser{stances: index, logger: logger}, nil
}

// Fuse produces the decision record. The stance title and action bias come
// only from the (regime, direction) table; technical and positioning reads
// move confidence, never the stance. Staleness warnings are returned
// alongside the record, they do not block it.
func (f *Fuser) Fuse(in Inputs) (models.DecisionRecord, []error, error) {
	entry, ok := f.stances[stanceKey{in.Layer1.Regime, in.Layer2.Direction}]
	if !ok {
		return models.DecisionRecord{}, nil, fmt.Errorf("no stance for %s/%s", in.Layer1.Regime, in.Layer2.Direction)
	}

	record := models.DecisionRecord{
		AsOf:              in.Layer2.AsOf,
		ValuationRegime:   in.Layer1.Regime,
		PressureDirection: in.Layer2.Direction,
		StanceTitle:       entry.Title,
		StanceBadge:       entry.Badge,
		ActionBias:        entry.Bias,
		Confidence:        models.ConfidenceMedium,
		Summary:           entry.Summary,
		Watchouts:         entry.Watchouts,
	}

	expected := expectedDirection(entry.Bias, in.Layer1.MispricingZ, in.Layer2.PredictedDeltaZ)

	if in.Technical != nil && expected != 0 {
		techDir := in.Technical.Regime.Direction()
		switch {
		case techDir == -expected:
			record.Confidence = models.ConfidenceLow
		case techDir == expected && positioningSupports(in.Positioning, expected):
			record.Confidence = models.ConfidenceHigh
		}
	}

	var warnings []error
	if age := in.Now.Sub(in.Layer1.AsOf); age > Layer1StalenessBudget {
		warnings = append(warnings, utils.NewStalePredictionWarning("layer1", in.Layer1.AsOf, Layer1StalenessBudget))
	}
	if age := in.Now.Sub(in.Layer2.AsOf); age > Layer2StalenessBudget {
		warnings = append(warnings, utils.NewStalePredictionWarning("layer2", in.Layer2.AsOf, Layer2StalenessBudget))
	}
	if len(warnings) > 0 {
		record.Confidence = models.ConfidenceLow
		record.Watchouts += " Inputs are stale; refresh the underlying models."
	}
	if record.Confidence == models.ConfidenceLow {
		record.Watchouts += " " + lowConfidenceCaution
	}

	if f.logger != nil {
		f.logger.WithFields(logrus.Fields{
			"as_of":      record.AsOf.Format("2006-01-02"),
			"regime":     record.ValuationRegime,
			"direction":  record.PressureDirection,
			"stance":     record.StanceTitle,
			"confidence": record.Confidence,
		}).Info("Fused decision")
	}
	return record, warnings, nil
}

// expectedDirection is the near-term spot direction the stance implies:
// trend stances follow the pressure sign, mean-revert stances lean against
// the current mispricing, caution stances imply no direction.
func expectedDirection(bias models.ActionBias, mispricingZ, deltaZ float64) int {
	switch bias {
	case models.BiasTrend, models.BiasNeutral:
		return sign(deltaZ)
	case models.BiasMeanRevert:
		return -sign(mispricingZ)
	default:
		return 0
	}
}

// positioningSupports accepts neutral crowding, or crowding on the side
// the expected move would squeeze.
func positioningSupports(snapshot *models.PositioningSnapshot, expected int) bool {
	if snapshot == nil || snapshot.State == models.CrowdingNeutral {
		return true
	}
	if expected > 0 {
		return snapshot.State == models.CrowdedShort
	}
	return snapshot.State == models.CrowdedLong
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
