package domain

import "math"

// Smash-factor divisors by club family. Wedges share the iron ratio.
const (
	smashDriver  = 1.55
	smashFairway = 1.45
	smashHybrid  = 1.35
	smashIron    = 1.25

	impactSpeedRatio = 0.98
	clubPathRatio    = 1.2
)

// staticLoft is the nominal loft in degrees of a stock club of each code.
var staticLoft = map[Club]float64{
	ClubDriver:        10.5,
	Club3Wood:         15,
	Club5Wood:         19,
	Club3Hybrid:       19,
	Club4Hybrid:       22,
	Club5Hybrid:       25,
	Club3Iron:         21,
	Club4Iron:         24,
	Club5Iron:         27,
	Club6Iron:         31,
	Club7Iron:         35,
	Club8Iron:         39,
	Club9Iron:         43,
	ClubPitchingWedge: 47,
	ClubGapWedge:      52,
	ClubSandWedge:     56,
	ClubLobWedge:      60,
}

// StaticLoft returns the nominal loft for c.
func StaticLoft(c Club) (float64, bool) {
	v, ok := staticLoft[c]
	return v, ok
}

// SmashFactor returns the assumed ball-to-club speed ratio for a family.
// Unknown families use the iron ratio.
func SmashFactor(cat Category) float64 {
	switch cat {
	case CategoryDriver:
		return smashDriver
	case CategoryFairway:
		return smashFairway
	case CategoryHybrid:
		return smashHybrid
	default:
		return smashIron
	}
}

// DeriveMetrics fills missing club-delivery fields from ball data. Measured
// values are never overwritten. Every filled field is appended to
// Shot.Estimated. The input is not modified.
func DeriveMetrics(shot Shot) Shot {
	out := shot
	out.Estimated = append([]string(nil), shot.Estimated...)
	if out.Category == "" {
		out.Category = CategoryOf(out.Club)
	}

	fill := func(field string, v float64) {
		p := out.optional(field)
		if *p != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return
		}
		*p = Float(v)
		out.Estimated = append(out.Estimated, field)
	}

	if out.BallSpeed > 0 {
		fill(FieldClubSpeed, out.BallSpeed/SmashFactor(out.Category))
	}
	if out.ClubSpeed != nil {
		fill(FieldClubSpeedImpact, *out.ClubSpeed*impactSpeedRatio)
		if *out.ClubSpeed > 0 {
			fill(FieldEfficiency, out.BallSpeed / *out.ClubSpeed)
		}
	}
	if out.PushPull != nil {
		fill(FieldClubPath, *out.PushPull*clubPathRatio)
		fill(FieldFaceToTarget, *out.PushPull)
	}
	if loft, ok := staticLoft[out.Club]; ok {
		fill(FieldLoft, loft)
	}
	if out.TotalSpin == nil && out.BackSpin != nil && out.SideSpin != nil {
		fill(FieldTotalSpin, math.Hypot(*out.BackSpin, *out.SideSpin))
	}
	fill(FieldLie, 0)
	fill(FieldFaceImpactHorizontal, 0)
	fill(FieldFaceImpactVertical, 0)
	fill(FieldClosureRate, 0)

	out.ProcessedAt = clock.Now()
	return out
}
