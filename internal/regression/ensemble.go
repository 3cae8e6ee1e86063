package regression

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"
)

// DefaultSeed keeps splits and ensembles reproducible across runs.
const DefaultSeed = 42

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// RandomForest averages trees grown on bootstrap samples.
type RandomForest struct {
	NEstimators int
	MaxDepth    int
	// MaxFeatures per split; 0 = all features, as in a bagged ensemble.
	MaxFeatures    int
	MinSamplesLeaf int
	Seed           uint64

	trees []*Tree
}

// NewRandomForest returns a forest with n trees and default settings.
func NewRandomForest(n int, seed uint64) *RandomForest {
	return &RandomForest{NEstimators: n, Seed: seed}
}

func (f *RandomForest) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return fmt.Errorf("fit forest: %d rows but %d targets", len(X), len(y))
	}
	n := f.NEstimators
	if n <= 0 {
		n = 100
	}
	rng := newRand(f.Seed)
	f.trees = make([]*Tree, 0, n)

	bx := make([][]float64, len(X))
	by := make([]float64, len(y))
	for range n {
		for i := range bx {
			j := rng.IntN(len(X))
			bx[i], by[i] = X[j], y[j]
		}
		t := NewTree(TreeOptions{
			MaxDepth:       f.MaxDepth,
			MinSamplesLeaf: f.MinSamplesLeaf,
			MaxFeatures:    f.MaxFeatures,
		}, rng)
		if err := t.Fit(bx, by); err != nil {
			return err
		}
		f.trees = append(f.trees, t)
	}
	return nil
}

func (f *RandomForest) Predict(x []float64) float64 {
	if len(f.trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range f.trees {
		sum += t.Predict(x)
	}
	return sum / float64(len(f.trees))
}

// GradientBoosting fits shallow trees to squared-error residuals.
type GradientBoosting struct {
	NEstimators  int
	LearningRate float64
	MaxDepth     int
	Seed         uint64

	init  float64
	trees []*Tree
}

// NewGradientBoosting returns a booster with learning rate 0.1 and depth-3 trees.
func NewGradientBoosting(n int, seed uint64) *GradientBoosting {
	return &GradientBoosting{NEstimators: n, LearningRate: 0.1, MaxDepth: 3, Seed: seed}
}

func (g *GradientBoosting) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return ErrEmptyTrainingSet
	}
	if len(X) != len(y) {
		return fmt.Errorf("fit boosting: %d rows but %d targets", len(X), len(y))
	}
	n := g.NEstimators
	if n <= 0 {
		n = 100
	}
	g.init = stat.Mean(y, nil)
	g.trees = make([]*Tree, 0, n)

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = g.init
	}
	resid := make([]float64, len(y))
	for range n {
		for i := range resid {
			resid[i] = y[i] - pred[i]
		}
		t := NewTree(TreeOptions{MaxDepth: g.MaxDepth}, nil)
		if err := t.Fit(X, resid); err != nil {
			return err
		}
		for i := range pred {
			pred[i] += g.LearningRate * t.Predict(X[i])
		}
		g.trees = append(g.trees, t)
	}
	return nil
}

func (g *GradientBoosting) Predict(x []float64) float64 {
	out := g.init
	for _, t := range g.trees {
		out += g.LearningRate * t.Predict(x)
	}
	return out
}

// MultiOutput fits one independent regressor per target column.
type MultiOutput struct {
	newModel func() Regressor
	models   []Regressor
}

// NewMultiOutput wraps a regressor constructor.
func NewMultiOutput(newModel func() Regressor) *MultiOutput {
	return &MultiOutput{newModel: newModel}
}

// Fit trains on Y given as rows × targets.
func (m *MultiOutput) Fit(X [][]float64, Y [][]float64) error {
	if len(Y) == 0 {
		return ErrEmptyTrainingSet
	}
	nTargets := len(Y[0])
	m.models = make([]Regressor, nTargets)
	for j := range nTargets {
		m.models[j] = m.newModel()
		if err := m.models[j].Fit(X, Column(Y, j)); err != nil {
			return fmt.Errorf("target %d: %w", j, err)
		}
	}
	return nil
}

// Predict returns one value per target.
func (m *MultiOutput) Predict(x []float64) []float64 {
	out := make([]float64, len(m.models))
	for j, model := range m.models {
		out[j] = model.Predict(x)
	}
	return out
}

// PredictAll applies a regressor to every row.
func PredictAll(r Regressor, X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i, x := range X {
		out[i] = r.Predict(x)
	}
	return out
}

// Column extracts column j of a row-major matrix.
func Column(M [][]float64, j int) []float64 {
	col := make([]float64, len(M))
	for i, row := range M {
		col[i] = row[j]
	}
	return col
}
