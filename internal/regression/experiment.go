package regression

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// Rapsodo export columns that must all parse for a row to be used.
var RapsodoColumns = []string{
	"Club Path", "Club Speed", "Launch Angle", "Launch Direction",
	"Attack Angle", "Spin Axis", "Side Carry", "Ball Speed",
	"Apex", "Descent Angle", "Smash Factor",
}

// RapsodoHeaderMarker identifies the header row below the export preamble.
const RapsodoHeaderMarker = "Club Type"

// Engineered face features appended after RapsodoColumns.
var faceFeatures = []string{
	"FaceEst1", "FaceEst2", "FaceEst3",
	"FaceToPathEstimate1", "FaceToPathEstimate2", "FaceToPathEstimate3",
	"SpinAxisLaunchDiff", "ClubSpeedSquared", "AngleCombo",
}

// Face experiment targets.
const (
	TargetFaceAngle  = "Face Angle"
	TargetFaceToPath = "Face to Path"
)

// FaceDataset builds the face-angle dataset from one or more Rapsodo
// exports. Face angle is approximated as club path plus a tenth of the spin
// axis; the model learns it back from launch data.
func FaceDataset(tables ...Table) (Dataset, error) {
	d := Dataset{
		Features: append(append([]string{}, RapsodoColumns...), faceFeatures...),
		Targets:  []string{TargetFaceAngle, TargetFaceToPath},
	}
	for _, t := range tables {
		rows, err := t.Numeric(RapsodoColumns)
		if err != nil {
			return Dataset{}, err
		}
		for _, r := range rows {
			x, y := faceRow(r)
			d.X = append(d.X, x)
			d.Y = append(d.Y, y)
		}
	}
	return d, nil
}

func faceRow(r map[string]float64) (features, targets []float64) {
	path := r["Club Path"]
	axis := r["Spin Axis"]
	dir := r["Launch Direction"]

	faceAngle := path + axis*0.1
	est1 := dir
	est2 := dir + 0.5*(axis-dir)
	est3 := path + axis*0.07

	features = make([]float64, 0, len(RapsodoColumns)+len(faceFeatures))
	for _, c := range RapsodoColumns {
		features = append(features, r[c])
	}
	features = append(features,
		est1, est2, est3,
		est1-path, est2-path, est3-path,
		axis-dir,
		r["Club Speed"]*r["Club Speed"],
		r["Attack Angle"]+r["Launch Angle"],
	)
	return features, []float64{faceAngle, faceAngle - path}
}

// AoA experiment columns.
var (
	AoAFeatures = []string{"ball_speed", "launch_angle", "spin_rate", "carry_distance", "total_distance"}
	AoATarget   = "angle_of_attack"
)

// AoADataset builds the angle-of-attack dataset from a plain CSV.
func AoADataset(t Table) (Dataset, error) {
	cols := append(append([]string{}, AoAFeatures...), AoATarget)
	rows, err := t.Numeric(cols)
	if err != nil {
		return Dataset{}, err
	}
	d := Dataset{Features: AoAFeatures, Targets: []string{AoATarget}}
	for _, r := range rows {
		x := make([]float64, len(AoAFeatures))
		for j, f := range AoAFeatures {
			x[j] = r[f]
		}
		d.X = append(d.X, x)
		d.Y = append(d.Y, []float64{r[AoATarget]})
	}
	return d, nil
}

// Candidate is a named multi-output model under comparison.
type Candidate struct {
	Name     string
	NewModel func() Regressor
}

// DefaultCandidates returns the forest and boosting models with n estimators each.
func DefaultCandidates(n int, seed uint64) []Candidate {
	return []Candidate{
		{Name: "Random Forest", NewModel: func() Regressor { return NewRandomForest(n, seed) }},
		{Name: "Gradient Boosting", NewModel: func() Regressor { return NewGradientBoosting(n, seed) }},
	}
}

// Result holds held-out scores for one model, one entry per target.
type Result struct {
	Model string
	R2    []float64
	MSE   []float64
}

// Compare splits d 80/20 and scores every candidate on the held-out rows.
func Compare(d Dataset, candidates []Candidate, seed uint64) ([]Result, error) {
	train, test, err := TrainTestSplit(d, 0.2, seed)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		m := NewMultiOutput(c.NewModel)
		if err := m.Fit(train.X, train.Y); err != nil {
			return nil, fmt.Errorf("fit %s: %w", c.Name, err)
		}
		pred := make([][]float64, test.Len())
		for i, x := range test.X {
			pred[i] = m.Predict(x)
		}
		res := Result{Model: c.Name}
		for j := range d.Targets {
			truth, p := Column(test.Y, j), Column(pred, j)
			res.R2 = append(res.R2, R2(truth, p))
			res.MSE = append(res.MSE, MSE(truth, p))
		}
		results = append(results, res)
	}
	return results, nil
}

// WriteResults writes an R² comparison table: one row per model, one
// "<target> R2" column per target.
func WriteResults(w io.Writer, targets []string, results []Result) error {
	cw := csv.NewWriter(w)
	header := []string{"Model"}
	for _, t := range targets {
		header = append(header, t+" R2")
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		rec := []string{r.Model}
		for _, v := range r.R2 {
			rec = append(rec, strconv.FormatFloat(v, 'f', 6, 64))
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write %s: %w", r.Model, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
