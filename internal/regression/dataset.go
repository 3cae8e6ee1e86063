package regression

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrMissingColumn is returned when a source lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// Dataset is a row-major feature matrix with one or more targets.
type Dataset struct {
	Features []string
	Targets  []string
	X        [][]float64
	Y        [][]float64
}

// Len returns the number of rows.
func (d Dataset) Len() int { return len(d.X) }

// Subset returns the rows at idx. Row slices are shared, not copied.
func (d Dataset) Subset(idx []int) Dataset {
	out := Dataset{
		Features: d.Features,
		Targets:  d.Targets,
		X:        make([][]float64, len(idx)),
		Y:        make([][]float64, len(idx)),
	}
	for k, i := range idx {
		out.X[k] = d.X[i]
		out.Y[k] = d.Y[i]
	}
	return out
}

// TrainTestSplit shuffles row indices with a seeded generator and holds
// out testFraction of them (rounded up, at least one when n > 1).
func TrainTestSplit(d Dataset, testFraction float64, seed uint64) (train, test Dataset, err error) {
	n := d.Len()
	if n < 2 {
		return Dataset{}, Dataset{}, fmt.Errorf("split %d rows: %w", n, ErrEmptyTrainingSet)
	}
	if testFraction <= 0 || testFraction >= 1 {
		return Dataset{}, Dataset{}, fmt.Errorf("test fraction %v out of (0, 1)", testFraction)
	}
	nTest := int(math.Ceil(float64(n) * testFraction))
	nTest = min(max(nTest, 1), n-1)

	perm := newRand(seed).Perm(n)
	return d.Subset(perm[nTest:]), d.Subset(perm[:nTest]), nil
}

// R2 is the coefficient of determination of predictions against truth.
func R2(truth, pred []float64) float64 {
	return stat.RSquaredFrom(pred, truth, nil)
}

// MSE is the mean squared error of predictions against truth.
func MSE(truth, pred []float64) float64 {
	if len(truth) == 0 {
		return 0
	}
	diff := make([]float64, len(truth))
	floats.SubTo(diff, truth, pred)
	return floats.Dot(diff, diff) / float64(len(diff))
}
