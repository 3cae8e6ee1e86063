package analytics

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// ErrUnknownMetric is returned for a metric name Shot.Metric does not know.
var ErrUnknownMetric = errors.New("unknown metric")

// Metrics lists every numeric field that can be charted.
var Metrics = []string{
	domain.FieldBallSpeed, domain.FieldCarry, domain.FieldTotalDistance, domain.FieldLaunchAngle,
	domain.FieldPushPull, domain.FieldBackSpin, domain.FieldSideSpin, domain.FieldTotalSpin,
	domain.FieldOffline, domain.FieldPeakHeight, domain.FieldDescentAngle, domain.FieldClubSpeed,
	domain.FieldClubSpeedImpact, domain.FieldEfficiency, domain.FieldAngleOfAttack,
	domain.FieldClubPath, domain.FieldFaceToTarget, domain.FieldLoft, domain.FieldRoll,
	domain.FieldSpinEfficiency,
}

// KnownMetric reports whether name is in Metrics.
func KnownMetric(name string) bool {
	for _, m := range Metrics {
		if m == name {
			return true
		}
	}
	return false
}

// ClubCount is one bar of the club frequency chart.
type ClubCount struct {
	Club  domain.Club `json:"club"`
	Count int         `json:"count"`
}

// Frequency counts shots per club in bag order.
func Frequency(shots []domain.Shot) []ClubCount {
	groups := groupByClub(shots)
	out := make([]ClubCount, 0, len(groups))
	for _, c := range sortedClubs(groups) {
		out = append(out, ClubCount{Club: c, Count: len(groups[c])})
	}
	return out
}

// ClubValue is a per-club average.
type ClubValue struct {
	Club  domain.Club `json:"club"`
	Value float64     `json:"value"`
	Count int         `json:"count"`
}

// AverageRoll averages roll per club. Clubs with no total distance are omitted.
func AverageRoll(shots []domain.Shot) []ClubValue {
	groups := groupByClub(shots)
	out := make([]ClubValue, 0, len(groups))
	for _, c := range sortedClubs(groups) {
		rolls := values(groups[c], domain.FieldRoll)
		if len(rolls) == 0 {
			continue
		}
		out = append(out, ClubValue{Club: c, Value: stat.Mean(rolls, nil), Count: len(rolls)})
	}
	return out
}

// TrendPoint is the average carry of one club on one day.
type TrendPoint struct {
	Date     time.Time   `json:"date"`
	Club     domain.Club `json:"club"`
	AvgCarry float64     `json:"avg_carry"`
	Count    int         `json:"count"`
}

// CarryTrend averages carry per club per day. Undated shots are skipped.
// Points are ordered by date, then bag order.
func CarryTrend(shots []domain.Shot) []TrendPoint {
	type key struct {
		date time.Time
		club domain.Club
	}
	sums := make(map[key][]float64)
	for _, s := range shots {
		d := s.Date()
		if d.IsZero() {
			continue
		}
		k := key{d, s.Club}
		sums[k] = append(sums[k], s.Carry)
	}

	out := make([]TrendPoint, 0, len(sums))
	for k, xs := range sums {
		out = append(out, TrendPoint{Date: k.date, Club: k.club, AvgCarry: stat.Mean(xs, nil), Count: len(xs)})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Club.Order() < out[j].Club.Order()
	})
	return out
}

// Series holds the raw values of one metric for one club.
type Series struct {
	Club   domain.Club `json:"club"`
	Values []float64   `json:"values"`
	Stat   Stat        `json:"stat"`
}

// Distribution returns the values of metric grouped by club, for box and
// histogram charts. Clubs with no values for the metric are omitted.
func Distribution(shots []domain.Shot, metric string) ([]Series, error) {
	if !KnownMetric(metric) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, metric)
	}
	groups := groupByClub(shots)
	out := make([]Series, 0, len(groups))
	for _, c := range sortedClubs(groups) {
		xs := values(groups[c], metric)
		st, ok := Describe(xs)
		if !ok {
			continue
		}
		out = append(out, Series{Club: c, Values: xs, Stat: st})
	}
	return out, nil
}

// Point is one shot on a scatter chart.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ScatterSeries holds the points of one club.
type ScatterSeries struct {
	Club   domain.Club `json:"club"`
	Points []Point     `json:"points"`
}

// Fit is an ordinary least squares line y = Intercept + Slope*x over every
// plotted point.
type Fit struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	R2        float64 `json:"r2"`
	N         int     `json:"n"`
}

// ScatterChart relates two metrics across shots.
type ScatterChart struct {
	X      string          `json:"x"`
	Y      string          `json:"y"`
	Series []ScatterSeries `json:"series"`
	Fit    *Fit            `json:"fit,omitempty"`
}

// ScatterPairs are the metric pairs the dashboard plots by default.
var ScatterPairs = [][2]string{
	{domain.FieldCarry, domain.FieldTotalDistance},
	{domain.FieldLaunchAngle, domain.FieldCarry},
	{domain.FieldBallSpeed, domain.FieldCarry},
	{domain.FieldSideSpin, domain.FieldOffline},
}

// Scatter plots metric y against metric x per club. Shots missing either
// value are skipped. Fit is nil with fewer than two points or when every x
// is the same.
func Scatter(shots []domain.Shot, x, y string) (ScatterChart, error) {
	for _, m := range []string{x, y} {
		if !KnownMetric(m) {
			return ScatterChart{}, fmt.Errorf("%w: %q", ErrUnknownMetric, m)
		}
	}

	chart := ScatterChart{X: x, Y: y, Series: []ScatterSeries{}}
	var xs, ys []float64
	groups := groupByClub(shots)
	for _, c := range sortedClubs(groups) {
		var pts []Point
		for _, s := range groups[c] {
			xv, okx := s.Metric(x)
			yv, oky := s.Metric(y)
			if !okx || !oky {
				continue
			}
			pts = append(pts, Point{X: xv, Y: yv})
			xs = append(xs, xv)
			ys = append(ys, yv)
		}
		if len(pts) > 0 {
			chart.Series = append(chart.Series, ScatterSeries{Club: c, Points: pts})
		}
	}

	if len(xs) < 2 || stat.Variance(xs, nil) == 0 {
		return chart, nil
	}
	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if math.IsNaN(r2) {
		// Constant y: the line fits exactly.
		r2 = 1
	}
	chart.Fit = &Fit{Intercept: alpha, Slope: beta, R2: r2, N: len(xs)}
	return chart, nil
}
