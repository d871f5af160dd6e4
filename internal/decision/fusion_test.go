package decision

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxviews/fx-views-go/internal/models"
	"github.com/fxviews/fx-views-go/internal/utils"
)

func freshInputs(now time.Time) Inputs {
	return Inputs{
		Layer1: models.Layer1Prediction{
			AsOf:        now.AddDate(0, 0, -10),
			Regime:      models.RegimeRichStretch,
			MispricingZ: 1.32,
		},
		Layer2: models.Layer2Prediction{
			AsOf:            now.AddDate(0, 0, -3),
			Direction:       models.DirectionCompress,
			PredictedDeltaZ: -0.42,
		},
		Now: now,
	}
}

func TestFuse_StanceFromRegimeAndDirection(t *testing.T) {
	fuser, err := NewFuser(nil, nil)
	require.NoError(t, err)
	now := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	in := freshInputs(now)
	record, warnings, err := fuser.Fuse(in)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	assert.Equal(t, in.Layer2.AsOf, record.AsOf)
	assert.Equal(t, models.RegimeRichStretch, record.ValuationRegime)
	assert.Equal(t, models.DirectionCompress, record.PressureDirection)
	assert.Equal(t, "Overvaluation Fading", record.StanceTitle)
	assert.Equal(t, models.BadgeFade, record.StanceBadge)
	assert.Equal(t, models.BiasMeanRevert, record.ActionBias)
	assert.Equal(t, models.ConfidenceMedium, record.Confidence)
	assert.NotContains(t, record.Watchouts, lowConfidenceCaution)
}

func TestFuse_AlignedTechnicalAndPositioningUpgrade(t *testing.T) {
	fuser, err := NewFuser(nil, nil)
	require.NoError(t, err)
	now := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	// Mean-revert against a rich reading expects a move down; a bearish
	// technical read plus crowded longs to squeeze both agree.
	in := freshInputs(now)
	in.Technical = &models.TechnicalScore{Regime: models.TechnicalBearish}
	in.Positioning = &models.PositioningSnapshot{State: models.CrowdedLong}

	record, _, err := fuser.Fuse(in)
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceHigh, record.Confidence)
}

func TestFuse_NeutralPositioningStillUpgrades(t *testing.T) {
	fuser, err := NewFuser(nil, nil)
	require.NoError(t, err)
	now := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	in := freshInputs(now)
	in.Technical = &models.TechnicalScore{Regime: models.TechnicalBearish}
	in.Positioning = &models.PositioningSnapshot{State: models.CrowdingNeutral}

	record, _, err := fuser.Fuse(in)
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceHigh, record.Confidence)
}

func TestFuse_MisalignedPositioningBlocksUpgrade(t *testing.T) {
	fuser, err := NewFuser(nil, nil)
	require.NoError(t, err)
	now := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	// Crowded shorts would be squeezed by the expected downward move, so
	// agreement stops at MEDIUM.
	in := freshInputs(now)
	in.Technical = &models.TechnicalScore{Regime: models.TechnicalBearish}
	in.Positioning = &models.PositioningSnapshot{State: models.CrowdedShort}

	record, _, err := fuser.Fuse(in)
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceMedium, record.Confidence)
}

func TestFuse_OpposingTechnicalDowngrades(t *testing.T) {
	fuser, err := NewFuser(nil, nil)
	require.NoError(t, err)
	now := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	in := freshInputs(now)
	in.Technical = &models.TechnicalScore{Regime: models.TechnicalBullish}

	record, _, err := fuser.Fuse(in)
	require.NoError(t, err)
	assert.Equal(t, models.ConfidenceLow, record.Confidence)
	assert.True(t, strings.HasSuffix(record.Watchouts, lowConfidenceCaution))
}

func TestFuse_CautionStanceIgnoresTechnical(t *testing.T) {
	fuser, err := NewFuser(nil, nil)
	require.NoError(t, err)
	now := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	in := freshInputs(now)
	in.Layer1.Regime = models.RegimeCheapBreak
	in.Layer1.MispricingZ = -2.4
	in.Layer2.Direction = models.DirectionExpand
	in.Layer2.PredictedDeltaZ = 0.2
	in.Technical = &models.TechnicalScore{Regime: models.TechnicalBullish}

	record, _, err := fuser.Fuse(in)
	require.NoError(t, err)
	assert.Equal(t, "Knife Catch Risk", record.StanceTitle)
	assert.Equal(t, models.ConfidenceMedium, record.Confidence)
}

func TestFuse_TrendStanceFollowsPressureSign(t *testing.T) {
	fuser, err := NewFuser(nil, nil)
	require.NoError(t, err)
	now := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	in := freshInputs(now)
	in.Layer1.Regime = models.RegimeInLine
	in.Layer1.MispricingZ = 0.2
	in.Layer2.Direction = models.DirectionExpand
	in.Layer2.PredictedDeltaZ = 0.35
	in.Technical = &models.TechnicalScore{Regime: models.TechnicalBullish}

	record, _, err := fuser.Fuse(in)
	require.NoError(t, err)
	assert.Equal(t, "Trend Building", record.StanceTitle)
	assert.Equal(t, models.BiasTrend, record.ActionBias)
	assert.Equal(t, models.ConfidenceHigh, record.Confidence)
}

func TestFuse_StaleLayer1ForcesLow(t *testing.T) {
	fuser, err := NewFuser(nil, nil)
	require.NoError(t, err)
	now := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	in := freshInputs(now)
	in.Layer1.AsOf = now.AddDate(0, 0, -40)

	record, warnings, err := fuser.Fuse(in)
	require.NoError(t, err)
	require.Len(t, warnings, 1)

	var stale *utils.StalePredictionWarning
	require.ErrorAs(t, warnings[0], &stale)
	assert.Equal(t, "layer1", stale.Input)

	assert.Equal(t, models.ConfidenceLow, record.Confidence)
	assert.Contains(t, record.Watchouts, "Inputs are stale")
	assert.Contains(t, record.Watchouts, lowConfidenceCaution)
}

func TestFuse_BothLayersStale(t *testing.T) {
	fuser, err := NewFuser(nil, nil)
	require.NoError(t, err)
	now := time.Date(2025, 8, 29, 12, 0, 0, 0, time.UTC)

	in := freshInputs(now)
	in.Layer1.AsOf = now.AddDate(0, 0, -60)
	in.Layer2.AsOf = now.AddDate(0, 0, -11)

	record, warnings, err := fuser.Fuse(in)
	require.NoError(t, err)
	assert.Len(t, warnings, 2)
	assert.Equal(t, models.ConfidenceLow, record.Confidence)
}

func TestFuse_MissingStanceEntry(t *testing.T) {
	fuser, err := NewFuser(nil, nil)
	require.NoError(t, err)

	in := freshInputs(time.Now().UTC())
	in.Layer1.Regime = models.ValuationRegime("UNMAPPED")

	_, _, err = fuser.Fuse(in)
	require.Error(t, err)
}

func TestExpectedDirection(t *testing.T) {
	assert.Equal(t, 1, expectedDirection(models.BiasTrend, 0.5, 0.3))
	assert.Equal(t, -1, expectedDirection(models.BiasTrend, 0.5, -0.3))
	assert.Equal(t, -1, expectedDirection(models.BiasMeanRevert, 1.2, -0.3))
	assert.Equal(t, 1, expectedDirection(models.BiasMeanRevert, -1.2, 0.3))
	assert.Equal(t, 0, expectedDirection(models.BiasCaution, 2.0, 0.5))
	assert.Equal(t, 1, expectedDirection(models.BiasNeutral, 0.0, 0.2))
	assert.Equal(t, 0, expectedDirection(models.BiasNeutral, 0.0, 0.0))
}
