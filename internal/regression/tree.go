// Package regression holds the tree-ensemble regressors and experiment
// harness used to estimate club delivery metrics (face angle, angle of
// attack) from ball-flight data.
package regression

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

// ErrEmptyTrainingSet is returned when a model is fitted on zero rows.
var ErrEmptyTrainingSet = errors.New("empty training set")

// Regressor is a single-target model.
type Regressor interface {
	Fit(X [][]float64, y []float64) error
	Predict(x []float64) float64
}

// TreeOptions bounds the growth of a regression tree.
type TreeOptions struct {
	MaxDepth       int // 0 = unbounded
	MinSamplesLeaf int // default 1
	// MaxFeatures is the number of features considered per split; 0 = all.
	MaxFeatures int
}

// Tree is a CART regression tree split on squared-error reduction.
type Tree struct {
	opts TreeOptions
	rng  *rand.Rand
	root *node
}

type node struct {
	feature   int
	threshold float64
	value     float64
	left      *node
	right     *node
}

func (n *node) leaf() bool { return n.left == nil }

// NewTree returns an unfitted tree. rng is only consulted when
// opts.MaxFeatures restricts the candidate features; it may be nil otherwise.
func NewTree(opts TreeOptions, rng *rand.Rand) *Tree {
	if opts.MinSamplesLeaf < 1 {
		opts.MinSamplesLeaf = 1
	}
	return &Tree{opts: opts, rng: rng}
}

// Fit grows the tree on X (rows × features) and y.
func (t *Tree) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return fmt.Errorf("fit tree: %d rows but %d targets", len(X), len(y))
	}
	idx := make([]int, len(X))
	for i := range idx {
		idx[i] = i
	}
	t.root = t.grow(X, y, idx, 0)
	return nil
}

// Predict walks the tree for one feature row. An unfitted tree predicts 0.
func (t *Tree) Predict(x []float64) float64 {
	n := t.root
	if n == nil {
		return 0
	}
	for !n.leaf() {
		if x[n.feature] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func (t *Tree) grow(X [][]float64, y []float64, idx []int, depth int) *node {
	n := &node{value: meanAt(y, idx)}
	if len(idx) < 2*t.opts.MinSamplesLeaf || (t.opts.MaxDepth > 0 && depth >= t.opts.MaxDepth) {
		return n
	}

	feature, threshold, ok := t.bestSplit(X, y, idx)
	if !ok {
		return n
	}
	var left, right []int
	for _, i := range idx {
		if X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	n.feature, n.threshold = feature, threshold
	n.left = t.grow(X, y, left, depth+1)
	n.right = t.grow(X, y, right, depth+1)
	return n
}

// bestSplit scans every candidate feature in sorted order and keeps the
// threshold with the lowest summed squared error of the two children.
func (t *Tree) bestSplit(X [][]float64, y []float64, idx []int) (int, float64, bool) {
	var (
		bestFeature   int
		bestThreshold float64
		bestScore     = parentSSE(y, idx)
		found         bool
	)
	minLeaf := t.opts.MinSamplesLeaf
	sorted := slices.Clone(idx)

	for _, f := range t.candidates(len(X[0])) {
		slices.SortFunc(sorted, func(a, b int) int {
			switch {
			case X[a][f] < X[b][f]:
				return -1
			case X[a][f] > X[b][f]:
				return 1
			}
			return 0
		})

		var totalSum, totalSq float64
		for _, i := range sorted {
			totalSum += y[i]
			totalSq += y[i] * y[i]
		}
		var leftSum, leftSq float64
		n := float64(len(sorted))
		for k := 0; k < len(sorted)-1; k++ {
			v := y[sorted[k]]
			leftSum += v
			leftSq += v * v
			nl := float64(k + 1)
			if k+1 < minLeaf || len(sorted)-k-1 < minLeaf {
				continue
			}
			lo, hi := X[sorted[k]][f], X[sorted[k+1]][f]
			if lo == hi {
				continue
			}
			nr := n - nl
			rightSum, rightSq := totalSum-leftSum, totalSq-leftSq
			score := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			if score < bestScore-1e-12 {
				bestScore = score
				bestFeature = f
				bestThreshold = (lo + hi) / 2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func (t *Tree) candidates(nFeatures int) []int {
	all := make([]int, nFeatures)
	for i := range all {
		all[i] = i
	}
	k := t.opts.MaxFeatures
	if k <= 0 || k >= nFeatures || t.rng == nil {
		return all
	}
	t.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:k]
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += y[i]
	}
	return sum / float64(len(idx))
}

func parentSSE(y []float64, idx []int) float64 {
	m := meanAt(y, idx)
	var sse float64
	for _, i := range idx {
		d := y[i] - m
		sse += d * d
	}
	return sse
}
