// Package analytics aggregates cleaned shots into the summaries and chart
// series served by the dashboard.
package analytics

import (
	"time"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// Filter selects a subset of shots. Zero values disable a criterion.
// From and To are inclusive calendar days; when either is set, shots without
// a date are excluded.
type Filter struct {
	From         time.Time
	To           time.Time
	Clubs        []domain.Club
	MinBallSpeed *float64
	MaxBallSpeed *float64
}

// Apply returns the shots matching every criterion, preserving order.
func (f Filter) Apply(shots []domain.Shot) []domain.Shot {
	clubs := make(map[domain.Club]struct{}, len(f.Clubs))
	for _, c := range f.Clubs {
		clubs[c] = struct{}{}
	}
	from, to := day(f.From), day(f.To)

	out := make([]domain.Shot, 0, len(shots))
	for _, s := range shots {
		if len(clubs) > 0 {
			if _, ok := clubs[s.Club]; !ok {
				continue
			}
		}
		if !from.IsZero() || !to.IsZero() {
			d := s.Date()
			if d.IsZero() {
				continue
			}
			if !from.IsZero() && d.Before(from) {
				continue
			}
			if !to.IsZero() && d.After(to) {
				continue
			}
		}
		if f.MinBallSpeed != nil && s.BallSpeed < *f.MinBallSpeed {
			continue
		}
		if f.MaxBallSpeed != nil && s.BallSpeed > *f.MaxBallSpeed {
			continue
		}
		out = append(out, s)
	}
	return out
}

func day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
