package analytics

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// DefaultColumns is the shot table layout when the caller selects none.
var DefaultColumns = []string{
	"club", domain.FieldBallSpeed, domain.FieldCarry, domain.FieldTotalDistance,
	domain.FieldLaunchAngle, domain.FieldTotalSpin, domain.FieldClubSpeed, "session_file",
}

// SortShots returns a copy of shots ordered by field. "club" sorts by bag
// order and "date" by shot time; any other name must be a metric. Shots
// missing the field sort last regardless of direction.
func SortShots(shots []domain.Shot, field string, desc bool) ([]domain.Shot, error) {
	out := append([]domain.Shot(nil), shots...)
	var less func(a, b domain.Shot) bool
	var missing func(s domain.Shot) bool
	switch field {
	case "", "club":
		less = func(a, b domain.Shot) bool { return a.Club.Order() < b.Club.Order() }
	case "date":
		less = func(a, b domain.Shot) bool { return a.ShotTime.Before(b.ShotTime) }
		missing = func(s domain.Shot) bool { return s.ShotTime.IsZero() }
	default:
		if !KnownMetric(field) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, field)
		}
		sort.SliceStable(out, func(i, j int) bool {
			vi, oki := out[i].Metric(field)
			vj, okj := out[j].Metric(field)
			switch {
			case !oki || !okj:
				return oki && !okj
			case desc:
				return vi > vj
			default:
				return vi < vj
			}
		})
		return out, nil
	}
	sort.SliceStable(out, func(i, j int) bool {
		if missing != nil {
			mi, mj := missing(out[i]), missing(out[j])
			if mi || mj {
				return !mi && mj
			}
		}
		if desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out, nil
}

// Project flattens shots into rows holding only cols. Missing optional
// metrics are nil.
func Project(shots []domain.Shot, cols []string) ([]map[string]any, error) {
	if len(cols) == 0 {
		cols = DefaultColumns
	}
	for _, c := range cols {
		if !projectable(c) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, c)
		}
	}

	rows := make([]map[string]any, 0, len(shots))
	for _, s := range shots {
		row := make(map[string]any, len(cols))
		for _, c := range cols {
			row[c] = cell(s, c)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func projectable(col string) bool {
	switch col {
	case "id", "club", "club_raw", "category", "session_file", "date", "estimated":
		return true
	}
	return KnownMetric(col)
}

func cell(s domain.Shot, col string) any {
	switch col {
	case "id":
		return s.ID
	case "club":
		return s.Club
	case "club_raw":
		return s.ClubRaw
	case "category":
		return s.Category
	case "session_file":
		return s.SessionFile
	case "date":
		if s.ShotTime.IsZero() {
			return nil
		}
		return s.ShotTime
	case "estimated":
		return s.Estimated
	}
	if v, ok := s.Metric(col); ok {
		return v
	}
	return nil
}
