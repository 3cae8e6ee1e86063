package analytics

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// SummaryMetrics are the fields aggregated per club by Summarize.
var SummaryMetrics = []string{
	domain.FieldBallSpeed,
	domain.FieldCarry,
	domain.FieldLaunchAngle,
	domain.FieldTotalSpin,
	domain.FieldClubSpeed,
}

// Stat is a descriptive summary of one metric. Std is the sample standard
// deviation and is 0 when fewer than two values are present. Count is the
// number of shots where the metric was present.
type Stat struct {
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// ClubSummary aggregates every shot of one club.
type ClubSummary struct {
	Club    domain.Club     `json:"club"`
	Count   int             `json:"count"`
	Metrics map[string]Stat `json:"metrics"`
}

// Summarize groups shots by club and describes SummaryMetrics for each group.
// Groups are in bag order and their Count fields sum to len(shots).
func Summarize(shots []domain.Shot) []ClubSummary {
	groups := groupByClub(shots)
	out := make([]ClubSummary, 0, len(groups))
	for _, club := range sortedClubs(groups) {
		group := groups[club]
		cs := ClubSummary{Club: club, Count: len(group), Metrics: make(map[string]Stat, len(SummaryMetrics))}
		for _, field := range SummaryMetrics {
			if st, ok := Describe(values(group, field)); ok {
				cs.Metrics[field] = st
			}
		}
		out = append(out, cs)
	}
	return out
}

// Describe computes a Stat over xs. It reports false for an empty slice.
func Describe(xs []float64) (Stat, bool) {
	if len(xs) == 0 {
		return Stat{}, false
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 || math.IsNaN(std) {
		std = 0
	}
	return Stat{
		Mean:  mean,
		Std:   std,
		Min:   floats.Min(xs),
		Max:   floats.Max(xs),
		Count: len(xs),
	}, true
}

// Performance is the headline block of the dashboard.
type Performance struct {
	TotalShots     int           `json:"total_shots"`
	AvgCarry       float64       `json:"avg_carry"`
	AvgBallSpeed   float64       `json:"avg_ball_speed"`
	AvgLaunchAngle *float64      `json:"avg_launch_angle,omitempty"`
	Sessions       int           `json:"sessions"`
	Clubs          []domain.Club `json:"clubs"`
	From           *time.Time    `json:"from,omitempty"`
	To             *time.Time    `json:"to,omitempty"`
}

// Overview computes the Performance block for shots.
func Overview(shots []domain.Shot) Performance {
	p := Performance{TotalShots: len(shots), Clubs: []domain.Club{}}
	if len(shots) == 0 {
		return p
	}

	p.AvgCarry = stat.Mean(values(shots, domain.FieldCarry), nil)
	p.AvgBallSpeed = stat.Mean(values(shots, domain.FieldBallSpeed), nil)
	if la := values(shots, domain.FieldLaunchAngle); len(la) > 0 {
		p.AvgLaunchAngle = domain.Float(stat.Mean(la, nil))
	}

	sessions := make(map[string]struct{})
	var from, to time.Time
	for _, s := range shots {
		sessions[s.SessionFile] = struct{}{}
		d := s.Date()
		if d.IsZero() {
			continue
		}
		if from.IsZero() || d.Before(from) {
			from = d
		}
		if to.IsZero() || d.After(to) {
			to = d
		}
	}
	p.Sessions = len(sessions)
	p.Clubs = sortedClubs(groupByClub(shots))
	if !from.IsZero() {
		p.From, p.To = &from, &to
	}
	return p
}

func groupByClub(shots []domain.Shot) map[domain.Club][]domain.Shot {
	groups := make(map[domain.Club][]domain.Shot)
	for _, s := range shots {
		groups[s.Club] = append(groups[s.Club], s)
	}
	return groups
}

func sortedClubs[T any](groups map[domain.Club]T) []domain.Club {
	clubs := make([]domain.Club, 0, len(groups))
	for c := range groups {
		clubs = append(clubs, c)
	}
	sort.Slice(clubs, func(i, j int) bool {
		if clubs[i].Order() != clubs[j].Order() {
			return clubs[i].Order() < clubs[j].Order()
		}
		return clubs[i] < clubs[j]
	})
	return clubs
}

// values collects the present values of field across shots.
func values(shots []domain.Shot, field string) []float64 {
	xs := make([]float64, 0, len(shots))
	for _, s := range shots {
		if v, ok := s.Metric(field); ok {
			xs = append(xs, v)
		}
	}
	return xs
}
