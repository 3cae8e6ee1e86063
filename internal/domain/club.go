package domain

import (
	"fmt"
	"strings"
)

// Club is a canonical club code.
type Club string

const (
	ClubDriver        Club = "Dr"
	Club3Wood         Club = "3w"
	Club5Wood         Club = "5w"
	Club3Hybrid       Club = "3h"
	Club4Hybrid       Club = "4h"
	Club5Hybrid       Club = "5h"
	Club3Iron         Club = "3i"
	Club4Iron         Club = "4i"
	Club5Iron         Club = "5i"
	Club6Iron         Club = "6i"
	Club7Iron         Club = "7i"
	Club8Iron         Club = "8i"
	Club9Iron         Club = "9i"
	ClubPitchingWedge Club = "PW"
	ClubGapWedge      Club = "GW"
	ClubSandWedge     Club = "SW"
	ClubLobWedge      Club = "LW"

	// ClubOther is the sentinel for labels outside the alias table. It is not
	// a member of the recognized set.
	ClubOther Club = "Other"
)

// Clubs lists the recognized codes in bag order, longest club first.
var Clubs = []Club{
	ClubDriver, Club3Wood, Club5Wood,
	Club3Hybrid, Club4Hybrid, Club5Hybrid,
	Club3Iron, Club4Iron, Club5Iron, Club6Iron, Club7Iron, Club8Iron, Club9Iron,
	ClubPitchingWedge, ClubGapWedge, ClubSandWedge, ClubLobWedge,
}

var clubOrder = func() map[Club]int {
	m := make(map[Club]int, len(Clubs))
	for i, c := range Clubs {
		m[c] = i
	}
	return m
}()

// Valid reports whether c is in the recognized set.
func (c Club) Valid() bool {
	_, ok := clubOrder[c]
	return ok
}

// Order is the bag position of c; unrecognized codes sort last.
func (c Club) Order() int {
	if i, ok := clubOrder[c]; ok {
		return i
	}
	return len(Clubs)
}

// ParseClub accepts a canonical code in any case, e.g. "dr" or "PW".
func ParseClub(s string) (Club, bool) {
	s = strings.TrimSpace(s)
	for _, c := range Clubs {
		if strings.EqualFold(string(c), s) {
			return c, true
		}
	}
	return ClubOther, false
}

// clubAliases is keyed by lower-cased labels with inner whitespace collapsed.
// Canonical codes map to themselves so canonicalization is idempotent.
var clubAliases = map[string]Club{
	"driver": ClubDriver, "dr": ClubDriver,
	"3 wood": Club3Wood, "3w": Club3Wood, "fw": Club3Wood,
	"5 wood": Club5Wood, "5w": Club5Wood,
	"3 hybrid": Club3Hybrid, "3h": Club3Hybrid,
	"4 hybrid": Club4Hybrid, "4h": Club4Hybrid,
	"5 hybrid": Club5Hybrid, "5h": Club5Hybrid,
	"3 iron": Club3Iron, "3i": Club3Iron,
	"4 iron": Club4Iron, "4i": Club4Iron,
	"5 iron": Club5Iron, "5i": Club5Iron, "5 iron5i": Club5Iron,
	"6 iron": Club6Iron, "6i": Club6Iron,
	"7 iron": Club7Iron, "7i": Club7Iron,
	"8 iron": Club8Iron, "8i": Club8Iron,
	"9 iron": Club9Iron, "9i": Club9Iron,
	"pitching wedge": ClubPitchingWedge, "pw": ClubPitchingWedge,
	"gap wedge": ClubGapWedge, "gw": ClubGapWedge, "gap wdge": ClubGapWedge,
	"sand wedge": ClubSandWedge, "sw": ClubSandWedge,
	"lob wedge": ClubLobWedge, "lw": ClubLobWedge,
	"wedge": ClubSandWedge, "swedge": ClubSandWedge,
}

// Canonicalizer maps free-text club labels to canonical codes.
type Canonicalizer struct {
	aliases map[string]Club
}

// DefaultCanonicalizer uses the built-in alias table only.
var DefaultCanonicalizer = &Canonicalizer{aliases: clubAliases}

// NewCanonicalizer extends the built-in table with extra aliases. Extra
// entries override built-in ones; every target must be a recognized club.
func NewCanonicalizer(extra map[string]Club) (*Canonicalizer, error) {
	aliases := make(map[string]Club, len(clubAliases)+len(extra))
	for k, v := range clubAliases {
		aliases[k] = v
	}
	for label, club := range extra {
		if !club.Valid() {
			return nil, fmt.Errorf("alias %q: unrecognized club code %q", label, club)
		}
		key := aliasKey(label)
		if key == "" {
			return nil, fmt.Errorf("alias for %q: empty label", club)
		}
		aliases[key] = club
	}
	return &Canonicalizer{aliases: aliases}, nil
}

// Canonicalize returns the canonical code for label, or ClubOther and false
// when the label is not in the table. Matching is exact after trimming,
// lower-casing and collapsing inner whitespace.
func (c *Canonicalizer) Canonicalize(label string) (Club, bool) {
	if club, ok := c.aliases[aliasKey(label)]; ok {
		return club, true
	}
	return ClubOther, false
}

// CanonicalizeClub canonicalizes with the built-in table.
func CanonicalizeClub(label string) (Club, bool) {
	return DefaultCanonicalizer.Canonicalize(label)
}

func aliasKey(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

// Category is the coarse club family used to pick estimation ratios.
type Category string

const (
	CategoryDriver  Category = "driver"
	CategoryFairway Category = "fairway"
	CategoryHybrid  Category = "hybrid"
	CategoryIron    Category = "iron"
	CategoryWedge   Category = "wedge"
)

// CategoryOf infers the family from a canonical code.
func CategoryOf(c Club) Category {
	switch c {
	case ClubDriver:
		return CategoryDriver
	case Club3Wood, Club5Wood:
		return CategoryFairway
	case Club3Hybrid, Club4Hybrid, Club5Hybrid:
		return CategoryHybrid
	case ClubPitchingWedge, ClubGapWedge, ClubSandWedge, ClubLobWedge:
		return CategoryWedge
	case Club3Iron, Club4Iron, Club5Iron, Club6Iron, Club7Iron, Club8Iron, Club9Iron:
		return CategoryIron
	default:
		return ""
	}
}

// resolveCategory prefers the device's "Club Type" column ("Driver", "Iron",
// "Hybrid", "FW", "Wedge") and falls back to the canonical code.
func resolveCategory(clubType string, club Club) Category {
	t := strings.ToLower(clubType)
	switch {
	case strings.Contains(t, "driver"):
		return CategoryDriver
	case strings.Contains(t, "hybrid"):
		return CategoryHybrid
	case strings.Contains(t, "wedge"):
		return CategoryWedge
	case strings.Contains(t, "iron"):
		return CategoryIron
	case t == "fw" || strings.Contains(t, "fairway") || strings.Contains(t, "wood"):
		return CategoryFairway
	}
	return CategoryOf(club)
}
