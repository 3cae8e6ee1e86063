// Command genmock writes synthetic FSX session exports for local runs and
// dashboard demos, and optionally the cleaned JSON the ETL produces from
// them. Cleaning uses the actual domain package so the fixture matches real
// pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out sessions -sessions 4 -shots 60 -json-out data/mock/cleaned_shots.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

var baseDate = time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)

// clubProfile is a typical stock shot for one club.
type clubProfile struct {
	label     string
	clubType  string
	ballSpeed float64
	launch    float64
	backSpin  float64
	carry     float64
	rollRatio float64
	aoa       float64
}

var profiles = []clubProfile{
	{"Driver", "Driver", 150, 12, 2700, 240, 0.10, 2},
	{"3 Wood", "Wood", 140, 11, 3600, 220, 0.08, -1},
	{"5 Hybrid", "Hybrid", 130, 14, 4500, 195, 0.06, -2},
	{"5 Iron", "Iron", 125, 13, 5200, 180, 0.05, -3},
	{"6 Iron", "Iron", 122, 15, 5800, 170, 0.05, -3.5},
	{"7 Iron", "Iron", 118, 17, 6500, 158, 0.04, -4},
	{"8 Iron", "Iron", 112, 19, 7200, 146, 0.04, -4.5},
	{"9 Iron", "Iron", 106, 22, 8000, 134, 0.03, -4.5},
	{"Pitching Wedge", "Wedge", 100, 25, 8800, 120, 0.03, -5},
	{"Gap Wdge", "Wedge", 94, 27, 9200, 106, 0.02, -5},
	{"Sand Wedge", "Wedge", 86, 30, 9800, 90, 0.02, -5},
}

var header = []string{
	domain.ColClubName, domain.ColClubType, domain.ColBallSpeed, domain.ColPushPull,
	domain.ColLaunchAngle, domain.ColBackSpin, domain.ColSideSpin, domain.ColTotalSpin,
	domain.ColCarry, domain.ColTotalDistance, domain.ColOffline, domain.ColPeakHeight,
	domain.ColDescentAngle, domain.ColClubSpeed, domain.ColAngleOfAttack, domain.ColClubPath,
	domain.ColFaceToTarget, domain.ColShotCreatedDate,
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out", "", "directory for generated session CSVs")
	jsonOut := flag.String("json-out", "", "optional path for the cleaned shots JSON fixture")
	nSessions := flag.Int("sessions", 3, "number of session files")
	nShots := flag.Int("shots", 40, "shots per session")
	measured := flag.Float64("measured", 0.5, "fraction of sessions that carry club data")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return errors.New("missing required flag: -out")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	// Fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(baseDate.Add(30 * 24 * time.Hour)))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewPCG(*seed, *seed))
	var shots []domain.Shot //nolint:prealloc // size depends on drop rate
	for s := range *nSessions {
		start := baseDate.AddDate(0, 0, 2*s)
		withClub := float64(s) < math.Ceil(float64(*nSessions)*(*measured))
		rows := genSession(rng, start, *nShots, withClub)

		name := fmt.Sprintf("%s_range.csv", start.Format("2006-01-02"))
		path := filepath.Join(*outDir, name)
		if err := writeCSV(path, rows); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		cleaned := clean(rows, name)
		shots = append(shots, cleaned...)
		log.Printf("%s: %d rows, %d clean", name, len(rows), len(cleaned))
	}

	if *jsonOut != "" {
		if err := writeJSON(*jsonOut, shots); err != nil {
			return fmt.Errorf("writing JSON fixture: %w", err)
		}
		log.Printf("wrote JSON fixture: %s", *jsonOut)
	}

	printStats(shots)
	return nil
}

// genSession produces rows in FSX export layout. Roughly one row in forty
// misses ball speed and one in sixty is a putt, so cleaning has work to do.
func genSession(rng *rand.Rand, start time.Time, n int, withClub bool) [][]string {
	rows := make([][]string, 0, n)
	for i := range n {
		p := profiles[rng.IntN(len(profiles))]
		ts := start.Add(time.Duration(i*45) * time.Second)

		if rng.IntN(60) == 0 {
			rows = append(rows, []string{"Putter", "Putter", "8.0", "0", "2", "0", "0", "0", "", "", "", "", "", "", "", "", "", ts.Format("2006-01-02 15:04:05")})
			continue
		}

		ball := p.ballSpeed + rng.NormFloat64()*3
		quality := ball / p.ballSpeed
		pushPull := rng.NormFloat64() * 2.5
		back := p.backSpin + rng.NormFloat64()*p.backSpin*0.08
		side := pushPull*120 + rng.NormFloat64()*150
		carry := p.carry*quality*quality + rng.NormFloat64()*4
		total := carry * (1 + p.rollRatio + rng.Float64()*0.02)
		launch := p.launch + rng.NormFloat64()*1.2

		row := []string{
			p.label, p.clubType, f1(ball), f1(pushPull), f1(launch), f0(back), f0(side),
			f0(math.Hypot(back, side)), f1(carry), f1(total), f1(side / 60),
			f1(carry * math.Tan(launch*math.Pi/180) / 2.2), f1(launch*2 + 20),
			"", "", "", "", ts.Format("2006-01-02 15:04:05"),
		}
		if withClub {
			smash := domain.SmashFactor(domain.CategoryOf(mustClub(p.label)))
			row[13] = f1(ball/smash + rng.NormFloat64())
			row[14] = f1(p.aoa + rng.NormFloat64())
			row[15] = f1(pushPull*1.1 + rng.NormFloat64()*0.5)
			row[16] = f1(pushPull*0.8 + rng.NormFloat64()*0.4)
		}
		if rng.IntN(40) == 0 {
			row[2] = ""
		}
		rows = append(rows, row)
	}
	return rows
}

func mustClub(label string) domain.Club {
	c, ok := domain.CanonicalizeClub(label)
	if !ok {
		panic("genmock profile has unknown club " + label)
	}
	return c
}

func clean(rows [][]string, file string) []domain.Shot {
	var shots []domain.Shot
	for i, row := range rows {
		raw := domain.NewRawRow(header, row, file, i+2)
		shot, err := domain.ParseRawRow(raw, domain.DefaultCanonicalizer)
		if err != nil {
			continue
		}
		shots = append(shots, domain.DeriveMetrics(shot))
	}
	return shots
}

func f0(v float64) string { return strconv.FormatFloat(v, 'f', 0, 64) }
func f1(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Sync()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

type clubCount struct {
	club  domain.Club
	count int
}

func printStats(shots []domain.Shot) {
	counts := map[domain.Club]int{}
	estimated := 0
	for i := range shots {
		counts[shots[i].Club]++
		if shots[i].IsEstimated(domain.FieldClubSpeed) {
			estimated++
		}
	}
	cc := make([]clubCount, 0, len(counts))
	for c, n := range counts {
		cc = append(cc, clubCount{c, n})
	}
	sort.Slice(cc, func(i, j int) bool { return cc[i].club.Order() < cc[j].club.Order() })

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total clean shots: %d\n", len(shots))
	fmt.Printf("Club speed estimated: %d\n", estimated)
	fmt.Printf("Clubs (%d):", len(cc))
	for _, c := range cc {
		fmt.Printf(" %s=%d", c.club, c.count)
	}
	fmt.Println()
}
