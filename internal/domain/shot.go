package domain

import (
	"strings"
	"time"
)

// RawRow is one unparsed data row from a session export.
// Fields are keyed by lower-cased, trimmed header names.
type RawRow struct {
	Fields     map[string]string
	SourceFile string
	Line       int
}

// NewRawRow zips a header row with a data row. Cells beyond the header are
// ignored; missing trailing cells are left out of the map.
func NewRawRow(header, cells []string, sourceFile string, line int) RawRow {
	fields := make(map[string]string, len(header))
	for i, h := range header {
		if i >= len(cells) {
			break
		}
		key := normalizeHeader(h)
		if key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(cells[i])
	}
	return RawRow{Fields: fields, SourceFile: sourceFile, Line: line}
}

// Get returns the cell for a header, matched case-insensitively.
func (r RawRow) Get(header string) string {
	return r.Fields[normalizeHeader(header)]
}

// Has reports whether the row carries the header at all, even if empty.
func (r RawRow) Has(header string) bool {
	_, ok := r.Fields[normalizeHeader(header)]
	return ok
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// Shot is a cleaned launch-monitor record. Optional measurements are nil when
// the session did not capture them and no estimate applies.
type Shot struct {
	ID       string   `json:"id"`
	ClubRaw  string   `json:"club_raw"`
	Club     Club     `json:"club"`
	Category Category `json:"category"`

	BallSpeed     float64  `json:"ball_speed"`
	Carry         float64  `json:"carry"`
	TotalDistance *float64 `json:"total_distance,omitempty"`
	LaunchAngle   *float64 `json:"launch_angle,omitempty"`
	PushPull      *float64 `json:"push_pull,omitempty"`
	BackSpin      *float64 `json:"back_spin,omitempty"`
	SideSpin      *float64 `json:"side_spin,omitempty"`
	TotalSpin     *float64 `json:"total_spin,omitempty"`
	Offline       *float64 `json:"offline,omitempty"`
	PeakHeight    *float64 `json:"peak_height,omitempty"`
	DescentAngle  *float64 `json:"descent_angle,omitempty"`

	// Club delivery. Filled by DeriveMetrics when absent.
	ClubSpeed            *float64 `json:"club_speed,omitempty"`
	ClubSpeedImpact      *float64 `json:"club_speed_impact,omitempty"`
	Efficiency           *float64 `json:"efficiency,omitempty"`
	AngleOfAttack        *float64 `json:"angle_of_attack,omitempty"`
	ClubPath             *float64 `json:"club_path,omitempty"`
	FaceToTarget         *float64 `json:"face_to_target,omitempty"`
	Lie                  *float64 `json:"lie,omitempty"`
	Loft                 *float64 `json:"loft,omitempty"`
	FaceImpactHorizontal *float64 `json:"face_impact_horizontal,omitempty"`
	FaceImpactVertical   *float64 `json:"face_impact_vertical,omitempty"`
	ClosureRate          *float64 `json:"closure_rate,omitempty"`

	SessionFile string    `json:"session_file"`
	Line        int       `json:"line"`
	ShotTime    time.Time `json:"shot_time,omitzero"`
	Estimated   []string  `json:"estimated,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Field names used for metric lookup, estimation provenance and sorting.
const (
	FieldBallSpeed            = "ball_speed"
	FieldCarry                = "carry"
	FieldTotalDistance        = "total_distance"
	FieldLaunchAngle          = "launch_angle"
	FieldPushPull             = "push_pull"
	FieldBackSpin             = "back_spin"
	FieldSideSpin             = "side_spin"
	FieldTotalSpin            = "total_spin"
	FieldOffline              = "offline"
	FieldPeakHeight           = "peak_height"
	FieldDescentAngle         = "descent_angle"
	FieldClubSpeed            = "club_speed"
	FieldClubSpeedImpact      = "club_speed_impact"
	FieldEfficiency           = "efficiency"
	FieldAngleOfAttack        = "angle_of_attack"
	FieldClubPath             = "club_path"
	FieldFaceToTarget         = "face_to_target"
	FieldLie                  = "lie"
	FieldLoft                 = "loft"
	FieldFaceImpactHorizontal = "face_impact_horizontal"
	FieldFaceImpactVertical   = "face_impact_vertical"
	FieldClosureRate          = "closure_rate"
	FieldRoll                 = "roll"
	FieldSpinEfficiency       = "spin_efficiency"
)

// Metric returns a numeric field by name. The bool is false when the field is
// unknown or the value is missing.
func (s Shot) Metric(field string) (float64, bool) {
	switch field {
	case FieldBallSpeed:
		return s.BallSpeed, true
	case FieldCarry:
		return s.Carry, true
	case FieldRoll:
		return s.Roll()
	case FieldSpinEfficiency:
		return s.SpinEfficiency()
	}
	p := s.optional(field)
	if p == nil || *p == nil {
		return 0, false
	}
	return **p, true
}

// optional maps a field name to the address of its pointer so DeriveMetrics
// and Metric share one table.
func (s *Shot) optional(field string) **float64 {
	switch field {
	case FieldTotalDistance:
		return &s.TotalDistance
	case FieldLaunchAngle:
		return &s.LaunchAngle
	case FieldPushPull:
		return &s.PushPull
	case FieldBackSpin:
		return &s.BackSpin
	case FieldSideSpin:
		return &s.SideSpin
	case FieldTotalSpin:
		return &s.TotalSpin
	case FieldOffline:
		return &s.Offline
	case FieldPeakHeight:
		return &s.PeakHeight
	case FieldDescentAngle:
		return &s.DescentAngle
	case FieldClubSpeed:
		return &s.ClubSpeed
	case FieldClubSpeedImpact:
		return &s.ClubSpeedImpact
	case FieldEfficiency:
		return &s.Efficiency
	case FieldAngleOfAttack:
		return &s.AngleOfAttack
	case FieldClubPath:
		return &s.ClubPath
	case FieldFaceToTarget:
		return &s.FaceToTarget
	case FieldLie:
		return &s.Lie
	case FieldLoft:
		return &s.Loft
	case FieldFaceImpactHorizontal:
		return &s.FaceImpactHorizontal
	case FieldFaceImpactVertical:
		return &s.FaceImpactVertical
	case FieldClosureRate:
		return &s.ClosureRate
	default:
		return nil
	}
}

// SetOptional assigns a nullable measurement by field name. It reports false
// for fields that are not optional.
func (s *Shot) SetOptional(field string, v *float64) bool {
	p := s.optional(field)
	if p == nil {
		return false
	}
	*p = v
	return true
}

// OptionalFields lists every nullable measurement in column order.
func OptionalFields() []string {
	return append([]string(nil), optionalFields...)
}

// Roll is total distance minus carry.
func (s Shot) Roll() (float64, bool) {
	if s.TotalDistance == nil {
		return 0, false
	}
	return *s.TotalDistance - s.Carry, true
}

// SpinEfficiency is back spin as a share of back plus absolute side spin.
func (s Shot) SpinEfficiency() (float64, bool) {
	if s.BackSpin == nil || s.SideSpin == nil {
		return 0, false
	}
	side := *s.SideSpin
	if side < 0 {
		side = -side
	}
	denom := *s.BackSpin + side
	if denom == 0 {
		return 0, false
	}
	return *s.BackSpin / denom, true
}

// IsEstimated reports whether DeriveMetrics filled the field.
func (s Shot) IsEstimated(field string) bool {
	for _, f := range s.Estimated {
		if f == field {
			return true
		}
	}
	return false
}

// Date is the calendar day the shot was hit, or the zero time when unknown.
func (s Shot) Date() time.Time {
	if s.ShotTime.IsZero() {
		return time.Time{}
	}
	y, m, d := s.ShotTime.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }
