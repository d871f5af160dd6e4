package technical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fxviews/fx-views-go/internal/models"
)

func TestDefaultPostureTable_CoversEveryCombination(t *testing.T) {
	rules := DefaultPostureTable()
	require.Len(t, rules, 12)

	index, err := postureIndex(rules)
	require.NoError(t, err)
	assert.Len(t, index, 12)
}

func TestDefaultPostureTable_SelectedMappings(t *testing.T) {
	index, err := postureIndex(DefaultPostureTable())
	require.NoError(t, err)

	assert.Equal(t, models.PostureBuyBreakouts,
		index[postureKey{models.TechnicalBullish, true, true}])
	assert.Equal(t, models.PostureSellBreakdowns,
		index[postureKey{models.TechnicalBearish, true, false}])
	assert.Equal(t, models.PostureFadeRallies,
		index[postureKey{models.TechnicalNeutral, true, true}])
	assert.Equal(t, models.PostureFadeRallies,
		index[postureKey{models.TechnicalBearish, false, true}])

	// Unconfirmed bullish setups wait rather than chase.
	assert.Equal(t, models.PostureRangeWait,
		index[postureKey{models.TechnicalBullish, false, true}])
	assert.Equal(t, models.PostureRangeWait,
		index[postureKey{models.TechnicalBullish, false, false}])
}

func TestPostureIndex_RejectsDuplicates(t *testing.T) {
	rules := DefaultPostureTable()
	rules = append(rules, rules[0])

	_, err := postureIndex(rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestPostureIndex_RejectsIncompleteTable(t *testing.T) {
	rules := DefaultPostureTable()[:11]

	_, err := postureIndex(rules)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestNewScorer_ValidatesRules(t *testing.T) {
	_, err := NewScorer(DefaultPostureTable()[:3], nil)
	assert.Error(t, err)

	scorer, err := NewScorer(nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, scorer)
}
