// Package regress implements the small set of penalized linear estimators
// the valuation and pressure layers share: an elastic-net solved by
// cyclical coordinate descent, with ridge as the zero-L1 special case.
package regress

import (
	"fmt"
	"math"
)

const (
	defaultMaxIter = 1000
	defaultTol     = 1e-6

	// coefEpsilon is the magnitude below which a standardized coefficient
	// counts as unselected.
	coefEpsilon = 1e-8
)

// Standardizer holds per-column training means and standard deviations.
// Fitted once on training data and reused verbatim at prediction time.
type Standardizer struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitStandardizer computes column statistics from a design matrix.
// Zero-variance columns get std 1 so they pass through unscaled (their
// coefficient ends up zero anyway).
func FitStandardizer(x [][]float64) (*Standardizer, error) {
	if len(x) == 0 || len(x[0]) == 0 {
		return nil, fmt.Errorf("empty design matrix")
	}
	n, p := len(x), len(x[0])
	s := &Standardizer{Mean: make([]float64, p), Std: make([]float64, p)}
	for j := 0; j < p; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += x[i][j]
		}
		s.Mean[j] = sum / float64(n)
		variance := 0.0
		for i := 0; i < n; i++ {
			d := x[i][j] - s.Mean[j]
			variance += d * d
		}
		variance /= float64(n)
		s.Std[j] = math.Sqrt(variance)
		if s.Std[j] == 0 {
			s.Std[j] = 1
		}
	}
	return s, nil
}

// Apply returns a standardized copy of the matrix.
func (s *Standardizer) Apply(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			out[i][j] = (v - s.Mean[j]) / s.Std[j]
		}
	}
	return out
}

// ElasticNet is a fitted L1+L2 penalized linear model. Coefficients are in
// raw (unstandardized) input space so prediction is a plain dot product.
type ElasticNet struct {
	Alpha        float64   `json:"alpha"`
	L1Ratio      float64   `json:"l1_ratio"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

// FitElasticNet fits by cyclical coordinate descent on standardized
// features and a centered target. alpha is the overall penalty strength,
// l1Ratio the L1 share (0 = ridge, 1 = lasso).
func FitElasticNet(x [][]float64, y []float64, alpha, l1Ratio float64) (*ElasticNet, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("design matrix rows (%d) and targets (%d) must match and be non-empty", len(x), len(y))
	}
	if alpha < 0 || l1Ratio < 0 || l1Ratio > 1 {
		return nil, fmt.Errorf("invalid penalty alpha=%g l1_ratio=%g", alpha, l1Ratio)
	}
	n, p := len(x), len(x[0])

	scaler, err := FitStandardizer(x)
	if err != nil {
		return nil, err
	}
	xs := scaler.Apply(x)

	yMean := 0.0
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(n)
	yc := make([]float64, n)
	for i, v := range y {
		yc[i] = v - yMean
	}

	// Per-column second moments of the standardized matrix.
	colSq := make([]float64, p)
	for j := 0; j < p; j++ {
		for i := 0; i < n; i++ {
			colSq[j] += xs[i][j] * xs[i][j]
		}
		colSq[j] /= float64(n)
	}

	w := make([]float64, p)
	resid := make([]float64, n)
	copy(resid, yc)

	l1Penalty := alpha * l1Ratio
	l2Penalty := alpha * (1 - l1Ratio)

	for iter := 0; iter < defaultMaxIter; iter++ {
		maxDelta := 0.0
		for j := 0; j < p; j++ {
			rho := 0.0
			for i := 0; i < n; i++ {
				rho += xs[i][j] * (resid[i] + xs[i][j]*w[j])
			}
			rho /= float64(n)

			updated := softThreshold(rho, l1Penalty) / (colSq[j] + l2Penalty)
			delta := updated - w[j]
			if delta != 0 {
				for i := 0; i < n; i++ {
					resid[i] -= xs[i][j] * delta
				}
				w[j] = updated
			}
			if math.Abs(delta) > maxDelta {
				maxDelta = math.Abs(delta)
			}
		}
		if maxDelta < defaultTol {
			break
		}
	}

	// Map back to raw input space.
	model := &ElasticNet{Alpha: alpha, L1Ratio: l1Ratio, Coefficients: make([]float64, p)}
	intercept := yMean
	for j := 0; j < p; j++ {
		if math.Abs(w[j]) <= coefEpsilon {
			continue
		}
		model.Coefficients[j] = w[j] / scaler.Std[j]
		intercept -= model.Coefficients[j] * scaler.Mean[j]
	}
	model.Intercept = intercept
	return model, nil
}

// FitRidge is the pure-L2 special case.
func FitRidge(x [][]float64, y []float64, alpha float64) (*ElasticNet, error) {
	return FitElasticNet(x, y, alpha, 0)
}

// Predict returns the linear prediction for one raw-space row.
func (m *ElasticNet) Predict(row []float64) float64 {
	out := m.Intercept
	for j, c := range m.Coefficients {
		if c != 0 && j < len(row) {
			out += c * row[j]
		}
	}
	return out
}

// Selected reports which column indices carry a nonzero coefficient.
func (m *ElasticNet) Selected() []int {
	var out []int
	for j, c := range m.Coefficients {
		if c != 0 {
			out = append(out, j)
		}
	}
	return out
}

func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}

// RSquared is the coefficient of determination of predictions against
// observed targets.
func RSquared(observed, predicted []float64) float64 {
	if len(observed) == 0 || len(observed) != len(predicted) {
		return math.NaN()
	}
	mean := 0.0
	for _, v := range observed {
		mean += v
	}
	mean /= float64(len(observed))

	ssRes, ssTot := 0.0, 0.0
	for i := range observed {
		r := observed[i] - predicted[i]
		ssRes += r * r
		d := observed[i] - mean
		ssTot += d * d
	}
	if ssTot == 0 {
		return math.NaN()
	}
	return 1 - ssRes/ssTot
}

// RMSE is the root mean squared error of predictions.
func RMSE(observed, predicted []float64) float64 {
	if len(observed) == 0 || len(observed) != len(predicted) {
		return math.NaN()
	}
	sum := 0.0
	for i := range observed {
		r := observed[i] - predicted[i]
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(observed)))
}

// ResidualStd is the population standard deviation of fit residuals,
// matching the sigma definition used for regime z-scores.
func ResidualStd(observed, predicted []float64) float64 {
	n := len(observed)
	if n == 0 || n != len(predicted) {
		return math.NaN()
	}
	resid := make([]float64, n)
	mean := 0.0
	for i := range observed {
		resid[i] = observed[i] - predicted[i]
		mean += resid[i]
	}
	mean /= float64(n)
	variance := 0.0
	for _, r := range resid {
		d := r - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(n))
}
