// Package technical scores daily EURUSD price action into a bounded bias
// and a tactical posture, using moving-average structure, momentum
// indicators and volatility percentiles.
package technical

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/cinar/indicator/v2/trend"
	"github.com/cinar/indicator/v2/volatility"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/fxviews/fx-views-go/internal/models"
)

const (
	smaShort  = 50
	smaMedium = 100
	smaLong   = 200

	rsiPeriod    = 14
	macdFast     = 12
	macdSlow     = 26
	macdSignal   = 9
	bbPeriod     = 20
	atrPeriod    = 14
	yearWindow   = 252
	fiveYearDays = 252 * 5

	// Fibonacci swing lookback: 15 months of trading days.
	fibLookbackDays = 15 * 21

	structureClamp = 2.5
	momentumClamp  = 3.0
	regimeBand     = 1.5

	volExpandedPct = 70.0
	volCoiledPct   = 30.0
	rsiBullish     = 55.0
	rsiBearish     = 45.0
)

// Bar is one daily OHLC observation. Only high, low and close are used.
type Bar struct {
	Date  time.Time
	High  float64
	Low   float64
	Close float64
}

// Scorer computes the technical assessment. It is stateless between calls.
type Scorer struct {
	postures map[postureKey]models.TradePosture
	logger   *logrus.Logger
}

// NewScorer validates the posture table and returns a ready scorer.
func NewScorer(rules []PostureRule, logger *logrus.Logger) (*Scorer, error) {
	if len(rules) == 0 {
		rules = DefaultPostureTable()
	}
	index, err := postureIndex(rules)
	if err != nil {
		return nil, err
	}
	return &Scorer{postures: index, logger: logger}, nil
}

// indicatorSet holds the latest values needed for scoring.
type indicatorSet struct {
	spot          float64
	sma50         float64
	sma100        float64
	sma200        float64
	rsi           float64
	macdHist      float64
	macdHistPrev  float64
	bbMiddle      float64
	bbUpper       float64
	bbLower       float64
	bbWidthPct    float64
	atrPct        float64
	yearHigh      float64
	yearLow       float64
	fib           map[string]float64
}

// Score evaluates the most recent bar. Bars must be in ascending date
// order and cover at least the long moving-average window plus MACD warmup.
func (s *Scorer) Score(bars []Bar) (models.TechnicalScore, error) {
	minBars := smaLong + macdSlow
	if len(bars) < minBars {
		return models.TechnicalScore{}, fmt.Errorf("need at least %d daily bars, got %d", minBars, len(bars))
	}

	ind := computeIndicators(bars)

	structure := structureScore(ind)
	momentumScore := momentumVolScore(ind)
	composite := 3.0 * (0.5*structure/structureClamp + 0.5*momentumScore/momentumClamp)

	regime := models.TechnicalNeutral
	switch {
	case composite >= regimeBand:
		regime = models.TechnicalBullish
	case composite <= -regimeBand:
		regime = models.TechnicalBearish
	}

	volExpanding := ind.bbWidthPct > volExpandedPct
	confirmed := isConfirmed(ind, regime)

	posture, ok := s.postures[postureKey{regime, confirmed, volExpanding}]
	if !ok {
		posture = models.PostureRangeWait
	}

	score := models.TechnicalScore{
		AsOf:           bars[len(bars)-1].Date,
		Spot:           ind.spot,
		StructureScore: structure,
		MomentumScore:  momentumScore,
		CompositeBias:  composite,
		Regime:         regime,
		Confirmed:      confirmed,
		VolExpanding:   volExpanding,
		Posture:        posture,
		KeyLevels:      keyLevels(ind),
	}
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"composite": composite,
			"regime":    regime,
			"posture":   posture,
		}).Debug("Scored technicals")
	}
	return score, nil
}

func computeIndicators(bars []Bar) indicatorSet {
	closes := make([]float64, len(bars))
	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		highs[i] = b.High
		lows[i] = b.Low
	}

	ind := indicatorSet{spot: closes[len(closes)-1]}
	ind.sma50 = lastOf(smaSeries(closes, smaShort))
	ind.sma100 = lastOf(smaSeries(closes, smaMedium))
	ind.sma200 = lastOf(smaSeries(closes, smaLong))

	rsiIndicator := momentum.NewRsiWithPeriod[float64](rsiPeriod)
	ind.rsi = lastOf(helper.ChanToSlice(rsiIndicator.Compute(helper.SliceToChan(closes))))

	macdIndicator := trend.NewMacdWithPeriod[float64](macdFast, macdSlow, macdSignal)
	macdLine, signalLine := macdIndicator.Compute(helper.SliceToChan(closes))
	line := helper.ChanToSlice(macdLine)
	signal := helper.ChanToSlice(signalLine)
	hist := make([]float64, len(line))
	for i := range line {
		hist[i] = line[i] - signal[i]
	}
	ind.macdHist = lastOf(hist)
	if len(hist) > 1 {
		ind.macdHistPrev = hist[len(hist)-2]
	}

	mids := smaSeries(closes, bbPeriod)
	widths := make([]float64, 0, len(mids))
	offset := len(closes) - len(mids)
	for i, mid := range mids {
		std := rollingStd(closes[:offset+i+1], bbPeriod)
		upper, lower := mid+2*std, mid-2*std
		if i == len(mids)-1 {
			ind.bbMiddle, ind.bbUpper, ind.bbLower = mid, upper, lower
		}
		if mid != 0 {
			widths = append(widths, (upper-lower)/mid)
		}
	}
	ind.bbWidthPct = trailingPercentile(widths, fiveYearDays)

	atrIndicator := volatility.NewAtr[float64]()
	atr := helper.ChanToSlice(atrIndicator.Compute(
		helper.SliceToChan(highs), helper.SliceToChan(lows), helper.SliceToChan(closes)))
	ind.atrPct = trailingPercentile(atr, fiveYearDays)

	ind.yearHigh = maxOf(highs[len(highs)-yearWindow:])
	ind.yearLow = minOf(lows[len(lows)-yearWindow:])

	fibStart := len(bars) - fibLookbackDays
	if fibStart < 0 {
		fibStart = 0
	}
	swingHigh := maxOf(highs[fibStart:])
	swingLow := minOf(lows[fibStart:])
	diff := swingHigh - swingLow
	ind.fib = map[string]float64{
		"38.2": swingLow + 0.382*diff,
		"50.0": swingLow + 0.500*diff,
		"61.8": swingLow + 0.618*diff,
	}
	return ind
}

func structureScore(ind indicatorSet) float64 {
	score := 0.0
	score += signed(ind.spot > ind.sma200, 1.0)
	score += signed(ind.spot > ind.sma100, 0.5)
	score += signed(ind.spot > ind.sma50, 0.5)
	score += signed(ind.spot > ind.fib["50.0"], 0.5)
	return clamp(score, structureClamp)
}

func momentumVolScore(ind indicatorSet) float64 {
	score := 0.0
	if ind.rsi > rsiBullish {
		score += 1.0
	} else if ind.rsi < rsiBearish {
		score -= 1.0
	}
	score += signed(ind.macdHist > ind.macdHistPrev, 1.0)
	switch {
	case ind.bbWidthPct > volExpandedPct:
		score += signed(ind.spot > ind.bbMiddle, 0.5)
	case ind.bbWidthPct < volCoiledPct:
		// Coiled bands argue against chasing the short-term direction.
		score -= signed(ind.spot > ind.bbMiddle, 0.5)
	}
	if ind.atrPct > volExpandedPct {
		score -= 0.5
	}
	return clamp(score, momentumClamp)
}

// isConfirmed requires aligned moving-average ordering, momentum in the
// regime's direction, and a band or 1-year breakout. It never alters the
// score, only the posture mapping.
func isConfirmed(ind indicatorSet, regime models.TechnicalRegime) bool {
	switch regime {
	case models.TechnicalBullish:
		ordered := ind.sma50 > ind.sma100 && ind.sma100 > ind.sma200
		rising := ind.macdHist > ind.macdHistPrev
		breakout := ind.spot > ind.bbUpper || ind.spot >= ind.yearHigh
		return ordered && rising && breakout
	case models.TechnicalBearish:
		ordered := ind.sma50 < ind.sma100 && ind.sma100 < ind.sma200
		falling := ind.macdHist < ind.macdHistPrev
		breakdown := ind.spot < ind.bbLower || ind.spot <= ind.yearLow
		return ordered && falling && breakdown
	default:
		return false
	}
}

// keyLevels returns the five levels nearest to spot.
func keyLevels(ind indicatorSet) []models.KeyLevel {
	spot := ind.spot
	levels := []models.KeyLevel{
		newLevel("200-day MA", ind.sma200, spot),
		newLevel("Fib 38.2%", ind.fib["38.2"], spot),
		newLevel("Fib 50.0%", ind.fib["50.0"], spot),
		newLevel("Fib 61.8%", ind.fib["61.8"], spot),
		newLevel("100-day MA", ind.sma100, spot),
		newLevel("50-day MA", ind.sma50, spot),
	}

	highDist := math.Abs((ind.yearHigh - spot) / spot)
	lowDist := math.Abs((ind.yearLow - spot) / spot)
	if highDist < lowDist {
		levels = append(levels, newLevel("1-year High", ind.yearHigh, spot))
	} else {
		levels = append(levels, newLevel("1-year Low", ind.yearLow, spot))
	}

	sort.Slice(levels, func(i, j int) bool {
		return math.Abs(levels[i].DistancePct) < math.Abs(levels[j].DistancePct)
	})
	if len(levels) > 5 {
		levels = levels[:5]
	}
	return levels
}

func newLevel(name string, price, spot float64) models.KeyLevel {
	kind := models.LevelResistance
	if price < spot {
		kind = models.LevelSupport
	}
	return models.KeyLevel{
		Name:        name,
		Price:       decimal.NewFromFloat(price),
		DistancePct: (price - spot) / spot * 100,
		Kind:        kind,
	}
}

func smaSeries(values []float64, period int) []float64 {
	smaIndicator := trend.NewSmaWithPeriod[float64](period)
	return helper.ChanToSlice(smaIndicator.Compute(helper.SliceToChan(values)))
}

// rollingStd is the population standard deviation of the last period values.
func rollingStd(values []float64, period int) float64 {
	if len(values) < period {
		return 0
	}
	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)
	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(period))
}

// trailingPercentile ranks the latest value within its trailing window as
// the share of strictly smaller observations, in percent.
func trailingPercentile(values []float64, window int) float64 {
	if len(values) == 0 {
		return 50.0
	}
	if len(values) > window {
		values = values[len(values)-window:]
	}
	current := values[len(values)-1]
	below := 0
	for _, v := range values {
		if v < current {
			below++
		}
	}
	return float64(below) / float64(len(values)) * 100
}

func signed(cond bool, weight float64) float64 {
	if cond {
		return weight
	}
	return -weight
}

func clamp(v, bound float64) float64 {
	return math.Max(-bound, math.Min(bound, v))
}

func lastOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}

func maxOf(v []float64) float64 {
	out := v[0]
	for _, x := range v[1:] {
		if x > out {
			out = x
		}
	}
	return out
}

func minOf(v []float64) float64 {
	out := v[0]
	for _, x := range v[1:] {
		if x < out {
			out = x
		}
	}
	return out
}
