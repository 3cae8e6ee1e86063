package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingRequired marks rows without ball speed or carry.
	ErrMissingRequired = errors.New("missing required field")
	// ErrUnknownClub marks rows whose club label is not in the alias table.
	ErrUnknownClub = errors.New("unknown club")
)

// Header names as written by FSX Live session exports.
const (
	ColClubName        = "Club Name"
	ColClubType        = "Club Type"
	ColBallSpeed       = "Ball Speed (mph)"
	ColPushPull        = "Push/Pull (deg L-/R+)"
	ColLaunchAngle     = "Launch Angle (deg)"
	ColBackSpin        = "Back Spin (rpm)"
	ColSideSpin        = "Side Spin (rpm L-/R+)"
	ColTotalSpin       = "Total Spin (rpm)"
	ColCarry           = "Carry (yds)"
	ColTotalDistance   = "Total Distance (yds)"
	ColOffline         = "Offline (yds L-/R+)"
	ColPeakHeight      = "Peak Height (yds)"
	ColDescentAngle    = "Descent Angle (deg)"
	ColClubSpeed       = "Club Speed (mph)"
	ColClubSpeedImpact = "Club Speed at Impact Location (mph)"
	ColEfficiency      = "Efficiency"
	ColAngleOfAttack   = "Angle of Attack (deg)"
	ColClubPath        = "Club Path (deg out-in-/in-out+)"
	ColFaceToTarget    = "Face to Target (deg closed-/open+)"
	ColLie             = "Lie (deg toe down-/toe up+)"
	ColLoft            = "Loft (deg)"
	ColFaceImpactH     = "Face Impact Horizontal (mm toe-/heel+)"
	ColFaceImpactV     = "Face Impact Vertical (mm low-/high+)"
	ColClosureRate     = "Closure Rate (deg/sec)"
	ColShotCreatedDate = "Shot Created Date"
	ColDate            = "Date"
)

const (
	kmhToMph  = 0.621371
	msToMph   = 2.236936
	metreToYd = 1.093613
)

// column is one accepted header for a field and the factor converting its
// unit into the canonical one.
type column struct {
	header string
	scale  float64
}

// shotColumns lists accepted headers per field in preference order. The
// first non-empty cell wins.
var shotColumns = map[string][]column{
	FieldBallSpeed:     {{ColBallSpeed, 1}, {"Ball Speed", 1}, {"Ball Speed (km/h)", kmhToMph}, {"Ball Speed (m/s)", msToMph}},
	FieldCarry:         {{ColCarry, 1}, {"Carry", 1}, {"Carry Distance", 1}, {"Carry (m)", metreToYd}},
	FieldTotalDistance: {{ColTotalDistance, 1}, {"Total Distance", 1}, {"Total Distance (m)", metreToYd}},
	FieldLaunchAngle:   {{ColLaunchAngle, 1}, {"Launch Angle", 1}},
	FieldPushPull:      {{ColPushPull, 1}, {"Push/Pull", 1}, {"Launch Direction", 1}},
	FieldBackSpin:      {{ColBackSpin, 1}, {"Back Spin", 1}, {"Backspin", 1}},
	FieldSideSpin:      {{ColSideSpin, 1}, {"Side Spin", 1}, {"Sidespin", 1}},
	FieldTotalSpin:     {{ColTotalSpin, 1}, {"Total Spin", 1}, {"Spin Rate", 1}},
	FieldOffline:       {{ColOffline, 1}, {"Offline", 1}, {"Side Carry", 1}, {"Offline (m L-/R+)", metreToYd}},
	FieldPeakHeight:    {{ColPeakHeight, 1}, {"Peak Height", 1}, {"Apex", 1}, {"Peak Height (m)", metreToYd}},
	FieldDescentAngle:  {{ColDescentAngle, 1}, {"Descent Angle", 1}},
	FieldClubSpeed:     {{ColClubSpeed, 1}, {"Club Speed", 1}, {"Club Speed (km/h)", kmhToMph}, {"Club Speed (m/s)", msToMph}},
	FieldClubSpeedImpact: {
		{ColClubSpeedImpact, 1},
	},
	FieldEfficiency:           {{ColEfficiency, 1}, {"Smash Factor", 1}},
	FieldAngleOfAttack:        {{ColAngleOfAttack, 1}, {"Attack Angle", 1}},
	FieldClubPath:             {{ColClubPath, 1}, {"Club Path", 1}},
	FieldFaceToTarget:         {{ColFaceToTarget, 1}, {"Face Angle", 1}},
	FieldLie:                  {{ColLie, 1}},
	FieldLoft:                 {{ColLoft, 1}, {"Dynamic Loft", 1}},
	FieldFaceImpactHorizontal: {{ColFaceImpactH, 1}},
	FieldFaceImpactVertical:   {{ColFaceImpactV, 1}},
	FieldClosureRate:          {{ColClosureRate, 1}},
}

// optionalFields is the parse order for every nullable measurement.
var optionalFields = []string{
	FieldTotalDistance, FieldLaunchAngle, FieldPushPull, FieldBackSpin, FieldSideSpin,
	FieldTotalSpin, FieldOffline, FieldPeakHeight, FieldDescentAngle, FieldClubSpeed,
	FieldClubSpeedImpact, FieldEfficiency, FieldAngleOfAttack, FieldClubPath,
	FieldFaceToTarget, FieldLie, FieldLoft, FieldFaceImpactHorizontal,
	FieldFaceImpactVertical, FieldClosureRate,
}

var clubNameColumns = []string{ColClubName, "Club", ColClubType}

var dateColumns = []string{ColShotCreatedDate, ColDate, "Shot Time", "Timestamp"}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"01/02/2006",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseRawRow converts a raw row into a Shot using canon for club names (nil
// selects DefaultCanonicalizer). Rows with an unrecognized club or without
// ball speed and carry return an error wrapping ErrUnknownClub or
// ErrMissingRequired.
func ParseRawRow(row RawRow, canon *Canonicalizer) (Shot, error) {
	if canon == nil {
		canon = DefaultCanonicalizer
	}

	clubRaw := firstNonEmpty(row, clubNameColumns)
	club, ok := canon.Canonicalize(clubRaw)
	if !ok {
		return Shot{ClubRaw: clubRaw, Club: ClubOther}, fmt.Errorf("%w: %q", ErrUnknownClub, clubRaw)
	}

	ballSpeed := readField(row, FieldBallSpeed)
	carry := readField(row, FieldCarry)
	if ballSpeed == nil || carry == nil {
		var missing []string
		if ballSpeed == nil {
			missing = append(missing, FieldBallSpeed)
		}
		if carry == nil {
			missing = append(missing, FieldCarry)
		}
		return Shot{ClubRaw: clubRaw, Club: club}, fmt.Errorf("%w: %s", ErrMissingRequired, strings.Join(missing, ", "))
	}

	shot := Shot{
		ClubRaw:     clubRaw,
		Club:        club,
		Category:    resolveCategory(row.Get(ColClubType), club),
		BallSpeed:   *ballSpeed,
		Carry:       *carry,
		SessionFile: row.SourceFile,
		Line:        row.Line,
		ShotTime:    parseShotTime(firstNonEmpty(row, dateColumns)),
	}
	for _, f := range optionalFields {
		*shot.optional(f) = readField(row, f)
	}
	shot.ID = generateID(shot.SessionFile, shot.Line, shot.Club, shot.BallSpeed, shot.Carry)
	return shot, nil
}

func firstNonEmpty(row RawRow, headers []string) string {
	for _, h := range headers {
		if v := row.Get(h); v != "" {
			return v
		}
	}
	return ""
}

func readField(row RawRow, field string) *float64 {
	for _, c := range shotColumns[field] {
		if v := ParseNumber(row.Get(c.header)); v != nil {
			scaled := *v * c.scale
			return &scaled
		}
	}
	return nil
}

// ParseNumber coerces a cell to a float, returning nil when the cell is empty
// or not a finite number. Thousands separators are tolerated.
func ParseNumber(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// parseShotTime tries the layouts seen in exports. Unparseable values yield
// the zero time rather than an error.
func parseShotTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// generateID hashes the row's provenance and headline numbers so the same
// session row always maps to the same ID.
func generateID(sessionFile string, line int, club Club, ballSpeed, carry float64) string {
	input := fmt.Sprintf("%s|%d|%s|%g|%g", sessionFile, line, club, ballSpeed, carry)
	hash := sha256.Sum256([]byte(input))
	return string(club) + "-" + hex.EncodeToString(hash[:8])
}
