// Package pressure implements the weekly build-up layer: a gradient
// boosted tree regressor over weekly flow and rate features, predicting
// the forward change in the mispricing z-score.
package pressure

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// GBDTParams are the boosting hyperparameters. Defaults are deliberately
// conservative for small weekly samples.
type GBDTParams struct {
	Trees        int     `json:"trees"`
	LearningRate float64 `json:"learning_rate"`
	MaxDepth     int     `json:"max_depth"`
	Subsample    float64 `json:"subsample"`
	Lambda       float64 `json:"lambda"`
	Alpha        float64 `json:"alpha"`
	Seed         int64   `json:"seed"`
	MinLeaf      int     `json:"min_leaf"`
}

// DefaultGBDTParams returns the tuned weekly configuration.
func DefaultGBDTParams() GBDTParams {
	return GBDTParams{
		Trees:        200,
		LearningRate: 0.05,
		MaxDepth:     3,
		Subsample:    0.8,
		Lambda:       5.0,
		Alpha:        2.0,
		Seed:         42,
		MinLeaf:      5,
	}
}

// TreeNode is one node of a fitted regression tree, serializable so an
// archived ensemble can reproduce its historical predictions.
type TreeNode struct {
	Feature int       `json:"feature"`
	Split   float64   `json:"split"`
	Left    *TreeNode `json:"left,omitempty"`
	Right   *TreeNode `json:"right,omitempty"`
	Value   float64   `json:"value"`
	Leaf    bool      `json:"leaf"`
}

// GBDT is a fitted boosted ensemble. Prediction is deterministic; the
// subsampling randomness is fixed by the seed at fit time.
type GBDT struct {
	Params GBDTParams  `json:"params"`
	Base   float64     `json:"base"`
	Trees  []*TreeNode `json:"trees"`
}

// FitGBDT trains the ensemble on x (rows of features) against y.
func FitGBDT(x [][]float64, y []float64, params GBDTParams) (*GBDT, error) {
	n := len(x)
	if n == 0 || n != len(y) {
		return nil, fmt.Errorf("need matching non-empty x (%d) and y (%d)", n, len(y))
	}
	if params.Trees <= 0 || params.MaxDepth <= 0 {
		return nil, fmt.Errorf("invalid boosting parameters: trees=%d depth=%d", params.Trees, params.MaxDepth)
	}

	base := 0.0
	for _, v := range y {
		base += v
	}
	base /= float64(n)

	model := &GBDT{Params: params, Base: base}
	rng := rand.New(rand.NewSource(params.Seed))

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = base
	}
	residual := make([]float64, n)

	sampleSize := int(math.Round(params.Subsample * float64(n)))
	if sampleSize < 1 {
		sampleSize = 1
	}

	for t := 0; t < params.Trees; t++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}

		idx := rng.Perm(n)[:sampleSize]
		tree := buildTree(x, residual, idx, 0, params)
		if tree == nil {
			break
		}
		model.Trees = append(model.Trees, tree)

		for i := range pred {
			pred[i] += params.LearningRate * evalTree(tree, x[i])
		}
	}
	return model, nil
}

// Predict returns the ensemble output for one row.
func (g *GBDT) Predict(row []float64) float64 {
	out := g.Base
	for _, tree := range g.Trees {
		out += g.Params.LearningRate * evalTree(tree, row)
	}
	return out
}

func evalTree(node *TreeNode, row []float64) float64 {
	for !node.Leaf {
		if row[node.Feature] <= node.Split {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

// buildTree grows one regression tree on the sampled indices, splitting
// greedily by squared-error reduction.
func buildTree(x [][]float64, residual []float64, idx []int, depth int, params GBDTParams) *TreeNode {
	if len(idx) == 0 {
		return nil
	}
	if depth >= params.MaxDepth || len(idx) < 2*params.MinLeaf {
		return leaf(residual, idx, params)
	}

	bestFeature, bestSplit := -1, 0.0
	bestGain := 0.0
	baseSSE := sse(residual, idx)

	nFeatures := len(x[idx[0]])
	for f := 0; f < nFeatures; f++ {
		splits := candidateSplits(x, idx, f)
		for _, s := range splits {
			var left, right []int
			for _, i := range idx {
				if x[i][f] <= s {
					left = append(left, i)
				} else {
					right = append(right, i)
				}
			}
			if len(left) < params.MinLeaf || len(right) < params.MinLeaf {
				continue
			}
			gain := baseSSE - sse(residual, left) - sse(residual, right)
			if gain > bestGain {
				bestGain, bestFeature, bestSplit = gain, f, s
			}
		}
	}

	if bestFeature < 0 {
		return leaf(residual, idx, params)
	}

	var left, right []int
	for _, i := range idx {
		if x[i][bestFeature] <= bestSplit {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return &TreeNode{
		Feature: bestFeature,
		Split:   bestSplit,
		Left:    buildTree(x, residual, left, depth+1, params),
		Right:   buildTree(x, residual, right, depth+1, params),
	}
}

// leaf computes the regularized leaf weight: the residual sum is
// L1-shrunk by alpha and L2-damped by lambda.
func leaf(residual []float64, idx []int, params GBDTParams) *TreeNode {
	sum := 0.0
	for _, i := range idx {
		sum += residual[i]
	}
	switch {
	case sum > params.Alpha:
		sum -= params.Alpha
	case sum < -params.Alpha:
		sum += params.Alpha
	default:
		sum = 0
	}
	return &TreeNode{
		Leaf:  true,
		Value: sum / (float64(len(idx)) + params.Lambda),
	}
}

func sse(residual []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	mean := 0.0
	for _, i := range idx {
		mean += residual[i]
	}
	mean /= float64(len(idx))
	total := 0.0
	for _, i := range idx {
		d := residual[i] - mean
		total += d * d
	}
	return total
}

// candidateSplits returns up to a dozen quantile cut points per feature.
func candidateSplits(x [][]float64, idx []int, f int) []float64 {
	values := make([]float64, 0, len(idx))
	seen := make(map[float64]bool)
	for _, i := range idx {
		v := x[i][f]
		if !seen[v] {
			seen[v] = true
			values = append(values, v)
		}
	}
	if len(values) < 2 {
		return nil
	}
	sort.Float64s(values)
	if len(values) <= 12 {
		return values[:len(values)-1]
	}
	out := make([]float64, 0, 12)
	step := float64(len(values)-1) / 12.0
	for k := 1; k <= 12; k++ {
		out = append(out, values[int(float64(k)*step)])
	}
	return out
}
