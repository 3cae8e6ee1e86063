package regression

import (
	"errors"
	"fmt"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// MinFaceTrainingShots is the smallest history a face estimator is trained on.
const MinFaceTrainingShots = 20

// ErrInsufficientData is returned when too few shots carry a measured face.
var ErrInsufficientData = errors.New("insufficient training data")

// FaceInputs are the ball-flight fields the face estimator reads, in order.
var FaceInputs = []string{
	domain.FieldBallSpeed,
	domain.FieldLaunchAngle,
	domain.FieldPushPull,
	domain.FieldSideSpin,
	domain.FieldBackSpin,
}

// FaceEstimator predicts face-to-target from launch data, trained on shots
// whose face angle was measured rather than estimated.
type FaceEstimator struct {
	model   Regressor
	trained int
}

// TrainFaceEstimator fits a forest on the usable shots.
func TrainFaceEstimator(shots []domain.Shot, nEstimators int, seed uint64) (*FaceEstimator, error) {
	var (
		X [][]float64
		y []float64
	)
	for _, s := range shots {
		if s.IsEstimated(domain.FieldFaceToTarget) {
			continue
		}
		face, ok := s.Metric(domain.FieldFaceToTarget)
		if !ok {
			continue
		}
		x, ok := faceFeatureRow(s)
		if !ok {
			continue
		}
		X = append(X, x)
		y = append(y, face)
	}
	if len(X) < MinFaceTrainingShots {
		return nil, fmt.Errorf("%w: %d shots with measured face, need %d", ErrInsufficientData, len(X), MinFaceTrainingShots)
	}

	model := NewRandomForest(nEstimators, seed)
	model.MinSamplesLeaf = 2
	if err := model.Fit(X, y); err != nil {
		return nil, err
	}
	return &FaceEstimator{model: model, trained: len(X)}, nil
}

// Trained returns the number of shots the model was fitted on.
func (e *FaceEstimator) Trained() int { return e.trained }

// Predict estimates face-to-target for the given inputs, keyed by field name.
func (e *FaceEstimator) Predict(inputs map[string]float64) (float64, error) {
	x := make([]float64, len(FaceInputs))
	for i, f := range FaceInputs {
		v, ok := inputs[f]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrMissingColumn, f)
		}
		x[i] = v
	}
	return e.model.Predict(x), nil
}

func faceFeatureRow(s domain.Shot) ([]float64, bool) {
	x := make([]float64, len(FaceInputs))
	for i, f := range FaceInputs {
		v, ok := s.Metric(f)
		if !ok {
			return nil, false
		}
		x[i] = v
	}
	return x, true
}
