// Command validate performs end-to-end integrity checks between raw session
// exports and the cleaned CSV the ETL wrote from them. It verifies row
// coverage, field presence, derivation correctness, and that the dashboard
// aggregates agree with the cleaned rows.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -sessions-dir sessions \
//	  -cleaned cleaned_shots.csv \
//	  -json data/mock/cleaned_shots.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/launch-monitor-etl/internal/adapter/sessions"
	"github.com/couchcryptid/launch-monitor-etl/internal/analytics"
	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
	"github.com/couchcryptid/launch-monitor-etl/internal/observability"
	"github.com/couchcryptid/launch-monitor-etl/internal/pipeline"
)

// tolerance absorbs the decimal round trip through the cleaned CSV.
const tolerance = 1e-6

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// cleanedShot is one row of the cleaned CSV with the columns the domain
// parser does not carry.
type cleanedShot struct {
	shot      domain.Shot
	line      int
	estimated []string
}

func main() {
	sessionsDir := flag.String("sessions-dir", "", "directory containing the raw session exports")
	cleanedCSV := flag.String("cleaned", "", "path to the cleaned CSV written by the ETL")
	fixtureJSON := flag.String("json", "", "optional cleaned shots JSON written by genmock")
	flag.Parse()

	if *sessionsDir == "" || *cleanedCSV == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*sessionsDir, *cleanedCSV, *fixtureJSON); code != 0 {
		os.Exit(code)
	}
}

func run(sessionsDir, cleanedPath, fixturePath string) int {
	fmt.Println("=== Launch Monitor Data Integrity Validation ===")
	fmt.Println()

	// ── Load all data sources ──
	expected, rawCount, err := loadExpected(sessionsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load sessions: %v\n", err)
		return 1
	}

	cleaned, err := loadCleaned(cleanedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load cleaned CSV: %v\n", err)
		return 1
	}

	var fixture []domain.Shot
	if fixturePath != "" {
		fixture, err = loadJSON[domain.Shot](fixturePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load JSON fixture: %v\n", err)
			return 1
		}
	}

	// ── Run validation phases ──
	phases := []*phase{
		validateCoverage(expected, cleaned),
		validateIntegrity(cleaned),
		validateDerivations(cleaned),
		validateAggregates(cleaned),
	}
	if fixture != nil {
		phases = append(phases, validateFixture(fixture, cleaned))
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d raw rows, %d expected clean, %d cleaned CSV, %d JSON fixture\n",
		rawCount, len(expected), len(cleaned), len(fixture))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// loadExpected re-runs extraction and cleaning over the sessions directory,
// keyed by shot ID.
func loadExpected(dir string) (map[string]domain.Shot, int, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	rows, err := sessions.NewDir(dir, logger, observability.NewMetrics()).Extract(ctx)
	if err != nil {
		return nil, 0, err
	}
	t := pipeline.NewTransformer(nil)
	out := make(map[string]domain.Shot, len(rows))
	for _, raw := range rows {
		shot, err := t.Transform(ctx, raw)
		if err != nil {
			continue
		}
		out[shot.ID] = shot
	}
	return out, len(rows), nil
}

func loadCleaned(path string) ([]cleanedShot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := sessions.ReadCSV(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	out := make([]cleanedShot, 0, len(rows))
	for _, raw := range rows {
		shot, err := domain.ParseRawRow(raw, nil)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", raw.Line, err)
		}
		shot.ID = raw.Get(sessions.ColShotID)
		shot.SessionFile = raw.Get(sessions.ColSessionFile)
		shot.ClubRaw = raw.Get(sessions.ColClubRaw)
		var est []string
		if v := raw.Get(sessions.ColEstimated); v != "" {
			est = strings.Split(v, ";")
		}
		shot.Estimated = est
		out = append(out, cleanedShot{shot: shot, line: raw.Line, estimated: est})
	}
	return out, nil
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Coverage ──
// Every shot the sessions should yield is in the cleaned CSV, and nothing else is.

func validateCoverage(expected map[string]domain.Shot, cleaned []cleanedShot) *phase {
	p := &phase{name: "Phase 1: Coverage (sessions vs cleaned)"}

	if len(expected) != len(cleaned) {
		p.errorf("count: expected %d clean shots, cleaned CSV has %d", len(expected), len(cleaned))
	}

	seen := map[string]bool{}
	for _, c := range cleaned {
		want, ok := expected[c.shot.ID]
		if !ok {
			p.errorf("line %d: shot %q not produced by the sessions", c.line, c.shot.ID)
			continue
		}
		seen[c.shot.ID] = true
		compareShots(p, want, c.shot)
	}
	for id, s := range expected {
		if !seen[id] {
			p.errorf("%s line %d: shot %q missing from cleaned CSV", s.SessionFile, s.Line, id)
		}
	}
	return p
}

// compareShots checks every metric and the provenance list of a cleaned shot.
func compareShots(p *phase, want, got domain.Shot) {
	id := want.ID
	if got.Club != want.Club {
		p.errorf("ID %s: club: expected %s, got %s", id, want.Club, got.Club)
	}
	if got.SessionFile != want.SessionFile {
		p.errorf("ID %s: session_file: expected %q, got %q", id, want.SessionFile, got.SessionFile)
	}
	for _, field := range append([]string{domain.FieldBallSpeed, domain.FieldCarry}, domain.OptionalFields()...) {
		w, wok := want.Metric(field)
		g, gok := got.Metric(field)
		switch {
		case wok != gok:
			p.errorf("ID %s: %s presence: expected %t, got %t", id, field, wok, gok)
		case wok && !floatEq(w, g):
			p.errorf("ID %s: %s: expected %g, got %g", id, field, w, g)
		}
	}
	if strings.Join(want.Estimated, ";") != strings.Join(got.Estimated, ";") {
		p.errorf("ID %s: estimated: expected %v, got %v", id, want.Estimated, got.Estimated)
	}
}

// ── Phase 2: Cleaned Integrity ──

func validateIntegrity(cleaned []cleanedShot) *phase {
	p := &phase{name: "Phase 2: Cleaned Integrity (fields)"}

	ids := map[string]int{}
	for _, c := range cleaned {
		s := c.shot
		pf := func(format string, args ...any) {
			p.errorf("line %d (ID %s): "+format, append([]any{c.line, s.ID}, args...)...)
		}

		if s.ID == "" {
			pf("shot ID is empty")
		} else if prev, dup := ids[s.ID]; dup {
			pf("duplicate shot ID, first seen on line %d", prev)
		} else {
			ids[s.ID] = c.line
		}
		if !s.Club.Valid() || s.Club == domain.ClubOther {
			pf("club %q is not a canonical code", s.Club)
		}
		if s.Category == "" {
			pf("category is empty")
		}
		if s.BallSpeed <= 0 {
			pf("ball speed %g is not positive", s.BallSpeed)
		}
		if s.Carry <= 0 {
			pf("carry %g is not positive", s.Carry)
		}
		if s.SessionFile == "" {
			pf("session file is empty")
		}
		if s.ClubSpeed == nil {
			pf("club speed is missing after derivation")
		}
	}
	return p
}

// ── Phase 3: Derivations ──
// Recomputes each estimated field from the shot's own values.

func validateDerivations(cleaned []cleanedShot) *phase {
	p := &phase{name: "Phase 3: Derivations (estimated fields)"}

	for _, c := range cleaned {
		s := c.shot
		pf := func(format string, args ...any) {
			p.errorf("line %d (ID %s): "+format, append([]any{c.line, s.ID}, args...)...)
		}
		for _, field := range c.estimated {
			got, ok := s.Metric(field)
			if !ok {
				pf("%s marked estimated but empty", field)
				continue
			}
			want, known := expectedEstimate(s, field)
			if known && !floatEq(got, want) {
				pf("%s: expected %g, got %g", field, want, got)
			}
		}
	}
	return p
}

// expectedEstimate returns the value a derivation rule gives field.
// The bool is false when the rule cannot be checked from s alone.
func expectedEstimate(s domain.Shot, field string) (float64, bool) {
	switch field {
	case domain.FieldClubSpeed:
		return s.BallSpeed / domain.SmashFactor(s.Category), true
	case domain.FieldClubSpeedImpact:
		if s.ClubSpeed == nil {
			return 0, false
		}
		return *s.ClubSpeed * 0.98, true
	case domain.FieldEfficiency:
		if s.ClubSpeed == nil || *s.ClubSpeed == 0 {
			return 0, false
		}
		return s.BallSpeed / *s.ClubSpeed, true
	case domain.FieldClubPath:
		if s.PushPull == nil {
			return 0, false
		}
		return *s.PushPull * 1.2, true
	case domain.FieldFaceToTarget:
		if s.PushPull == nil {
			return 0, false
		}
		return *s.PushPull, true
	case domain.FieldLoft:
		return domain.StaticLoft(s.Club)
	case domain.FieldTotalSpin:
		if s.BackSpin == nil || s.SideSpin == nil {
			return 0, false
		}
		return math.Hypot(*s.BackSpin, *s.SideSpin), true
	case domain.FieldLie, domain.FieldFaceImpactHorizontal, domain.FieldFaceImpactVertical, domain.FieldClosureRate:
		return 0, true
	}
	return 0, false
}

// ── Phase 4: Aggregates ──
// The dashboard summaries must account for every cleaned shot.

func validateAggregates(cleaned []cleanedShot) *phase {
	p := &phase{name: "Phase 4: Aggregates (dashboard)"}

	shots := make([]domain.Shot, len(cleaned))
	for i, c := range cleaned {
		shots[i] = c.shot
	}

	perf := analytics.Overview(shots)
	if perf.TotalShots != len(shots) {
		p.errorf("overview total: expected %d, got %d", len(shots), perf.TotalShots)
	}

	summaryTotal := 0
	for _, cs := range analytics.Summarize(shots) {
		summaryTotal += cs.Count
		carry, ok := cs.Metrics[domain.FieldCarry]
		if !ok || carry.Count != cs.Count {
			p.errorf("club %s: carry stat covers %d of %d shots", cs.Club, carry.Count, cs.Count)
		}
		if carry.Min > carry.Mean+tolerance || carry.Mean > carry.Max+tolerance {
			p.errorf("club %s: carry mean %g outside [%g, %g]", cs.Club, carry.Mean, carry.Min, carry.Max)
		}
	}
	if summaryTotal != len(shots) {
		p.errorf("summary counts sum to %d, expected %d", summaryTotal, len(shots))
	}

	freqTotal := 0
	for _, cc := range analytics.Frequency(shots) {
		freqTotal += cc.Count
	}
	if freqTotal != len(shots) {
		p.errorf("frequency counts sum to %d, expected %d", freqTotal, len(shots))
	}
	if len(perf.Clubs) != len(analytics.Frequency(shots)) {
		p.errorf("overview lists %d clubs, frequency chart %d", len(perf.Clubs), len(analytics.Frequency(shots)))
	}
	return p
}

// ── Phase 5: Fixture ──
// A genmock JSON fixture must describe the same shots as the cleaned CSV.

func validateFixture(fixture []domain.Shot, cleaned []cleanedShot) *phase {
	p := &phase{name: "Phase 5: Fixture (JSON vs cleaned)"}

	byID := make(map[string]domain.Shot, len(cleaned))
	for _, c := range cleaned {
		byID[c.shot.ID] = c.shot
	}
	if len(fixture) != len(cleaned) {
		p.errorf("count: fixture has %d shots, cleaned CSV has %d", len(fixture), len(cleaned))
	}
	for i := range fixture {
		got, ok := byID[fixture[i].ID]
		if !ok {
			p.errorf("fixture record %d: ID %q not in cleaned CSV", i, fixture[i].ID)
			continue
		}
		compareShots(p, fixture[i], got)
	}
	return p
}

// ── Helpers ──

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}
