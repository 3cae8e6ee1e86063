package fsx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/launch-monitor-etl/internal/adapter/sessions"
	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
	"github.com/couchcryptid/launch-monitor-etl/internal/observability"
)

const statsPage = `<html><body>
<table class="stats-summary-table"><tbody>
  <tr class="row-link" data-href="/Stats/Session?SessionID=101"><td>May 1</td></tr>
  <tr class="row-link" data-href="/Stats/Session?sessionid=102"><td>May 3</td></tr>
  <tr class="row-link" data-href="/Stats/Other"><td>no id</td></tr>
</tbody></table>
</body></html>`

const sessionPage = `<html><body>
<div class="shot-analysis-data">
  <div class="shot-analysis-item"><div class="shot-analysis-item-label">Club</div><div class="shot-analysis-item-data">7 Iron</div></div>
  <div class="shot-analysis-item"><div class="shot-analysis-item-label">Ball Speed</div><div class="shot-analysis-item-data">119.8 mph</div></div>
  <div class="shot-analysis-item"><div class="shot-analysis-item-label">Carry</div><div class="shot-analysis-item-data"> 151.2 yds </div></div>
  <div class="shot-analysis-item"><div class="shot-analysis-item-label">Push/Pull</div><div class="shot-analysis-item-data">1.5 L</div></div>
</div>
<div class="shot-analysis-data">
  <div class="shot-analysis-item"><div class="shot-analysis-item-label">Club</div><div class="shot-analysis-item-data">Driver</div></div>
  <div class="shot-analysis-item"><div class="shot-analysis-item-label">Ball Speed</div><div class="shot-analysis-item-data">151.3 mph</div></div>
  <div class="shot-analysis-item"><div class="shot-analysis-item-label">Carry</div><div class="shot-analysis-item-data">243.1 yds</div></div>
  <div class="shot-analysis-item"><div class="shot-analysis-item-label">Push/Pull</div><div class="shot-analysis-item-data">0.8 R</div></div>
</div>
<div class="shot-analysis-data"></div>
</body></html>`

const roundsPage = `<html><body><table><tbody>
<tr class="row-link" data-href="/Rounds/Round?id=9"><td>Jul 6, 2025</td><td>Pebble Beach</td><td>18</td><td>82</td></tr>
<tr class="row-link"><td>Jul 2, 2025</td><td>St Andrews</td><td>9</td><td>44</td></tr>
</tbody></table></body></html>`

const roundPage = `<html><body>
<table class="hole-shots-table"><tbody>
<tr class="shot-row"><td>1</td><td>Driver</td><td>Fairway</td><td>245.0 yds</td><td>268.2 yds</td><td>4.1 L</td></tr>
<tr class="shot-analysis"><td colspan="6"><div class="shot-analysis-data-container">
  <div class="shot-analysis-item"><div class="shot-analysis-item-label">Ball Speed</div><div class="shot-analysis-item-data">152.0 mph</div></div>
  <div class="shot-analysis-item"><div class="shot-analysis-item-label">Back Spin</div><div class="shot-analysis-item-data">2,610 rpm</div></div>
</div></td></tr>
<tr class="shot-row"><td>2</td><td>7 Iron</td><td>Green</td><td>150.1</td><td>156.0</td><td>2.0 R</td></tr>
</tbody></table>
</body></html>`

func TestParseSessionLinksAndIDs(t *testing.T) {
	links, err := ParseSessionLinks(statsPage)
	require.NoError(t, err)
	assert.Equal(t, []string{"/Stats/Session?SessionID=101", "/Stats/Session?sessionid=102", "/Stats/Other"}, links)

	ids, err := ParseSessionIDs(statsPage)
	require.NoError(t, err)
	assert.Equal(t, []string{"101", "102"}, ids)
}

func TestParseShotAnalysis(t *testing.T) {
	records, err := ParseShotAnalysis(sessionPage)
	require.NoError(t, err)
	require.Len(t, records, 2, "empty analysis blocks are skipped")

	assert.Equal(t, Record{
		"Club":       "7 Iron",
		"Ball Speed": "119.8",
		"Carry":      "151.2",
		"Push/Pull":  "-1.5",
	}, records[0])
	assert.Equal(t, "0.8", records[1]["Push/Pull"])
}

func TestParseRoundsAndHoleShots(t *testing.T) {
	rounds, err := ParseRounds(roundsPage)
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, Round{Date: "Jul 6, 2025", Course: "Pebble Beach", Score: "82", Href: "/Rounds/Round?id=9"}, rounds[0])
	assert.Empty(t, rounds[1].Href)

	shots, err := ParseHoleShots(roundPage)
	require.NoError(t, err)
	require.Len(t, shots, 2)
	assert.Equal(t, Record{
		ColShotNumber: "1",
		ColClub:       "Driver",
		ColResult:     "Fairway",
		ColCarry:      "245.0",
		ColTotal:      "268.2",
		ColOffline:    "-4.1",
		"Ball Speed":  "152.0",
		"Back Spin":   "2610",
	}, shots[0])
	assert.Equal(t, "2.0", shots[1][ColOffline])
	assert.NotContains(t, shots[1], "Ball Speed")
}

func TestParseDisplayValue(t *testing.T) {
	tests := map[string]string{
		"151.2 mph": "151.2",
		"3.4 L":     "-3.4",
		"L 3.4":     "-3.4",
		"-2 L":      "-2",
		"12 R":      "12",
		"12.5°":     "12.5",
		"2,650 rpm": "2650",
		"Fairway":   "Fairway",
		"5/3/2024":  "5/3/2024",
		"":          "",
	}
	for in, want := range tests {
		assert.Equal(t, want, parseDisplayValue(in), in)
	}
}

func TestCleanExportCSVAndParseExport(t *testing.T) {
	raw := "<html>\r\n<body>\r\nClub,Ball Speed (mph),Carry (yds)\r\n7 Iron,120.1,150.2\r\n\r\n" +
		"Driver,150.0\r\n<div>a,b</div>\r\nPW,92.0,110.5\r\n</body>"

	assert.Equal(t, "Club,Ball Speed (mph),Carry (yds)\n7 Iron,120.1,150.2\nDriver,150.0\nPW,92.0,110.5",
		CleanExportCSV(raw))

	records, err := ParseExport(raw, "101")
	require.NoError(t, err)
	require.Len(t, records, 2, "short rows are skipped")
	assert.Equal(t, Record{ColSessionID: "101", "Club": "7 Iron", "Ball Speed (mph)": "120.1", "Carry (yds)": "150.2"}, records[0])

	none, err := ParseExport("<html></html>", "x")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestWriteRecords_IngestibleBySessions(t *testing.T) {
	records, err := ParseShotAnalysis(sessionPage)
	require.NoError(t, err)
	records[0][ColSessionID] = "101"

	var buf bytes.Buffer
	require.NoError(t, WriteRecords(&buf, records))
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Equal(t, "Session ID,Club,Ball Speed,Push/Pull,Carry", header)

	rows, err := sessions.ReadCSV(&buf, "fsx_sessions.csv")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	shot, err := domain.ParseRawRow(rows[0], domain.DefaultCanonicalizer)
	require.NoError(t, err)
	assert.Equal(t, domain.Club7Iron, shot.Club)
	assert.Equal(t, 119.8, shot.BallSpeed)
	assert.Equal(t, -1.5, *shot.PushPull)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Rounds ")
	require.NoError(t, err)
	assert.Equal(t, ModeRounds, m)

	_, err = ParseMode("all")
	require.Error(t, err)
}

// fakeBrowser serves canned pages keyed by URL.
type fakeBrowser struct {
	pages    map[string]string
	fetches  map[string]string
	loginErr error
	visited  []string
}

func (f *fakeBrowser) Login(_ context.Context, _, _ string) error { return f.loginErr }

func (f *fakeBrowser) Page(_ context.Context, url, _ string) (string, error) {
	f.visited = append(f.visited, url)
	html, ok := f.pages[url]
	if !ok {
		return "", errors.New("404 " + url)
	}
	return html, nil
}

func (f *fakeBrowser) Fetch(_ context.Context, url string) (string, error) {
	f.visited = append(f.visited, url)
	body, ok := f.fetches[url]
	if !ok {
		return "", errors.New("404 " + url)
	}
	return body, nil
}

func (f *fakeBrowser) Close() {}

const base = "https://fsx.test"

func newTestScraper(b Browser, clock clockwork.Clock, pace time.Duration) (*Scraper, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	s := NewScraper(b, Options{BaseURL: base + "/", Username: "u", Password: "p", Pace: pace, Clock: clock},
		slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	return s, m
}

func TestScraper_SessionsContinuesPastFailures(t *testing.T) {
	b := &fakeBrowser{pages: map[string]string{
		base + "/Stats":                       statsPage,
		base + "/Stats/Session?SessionID=101": sessionPage,
		base + "/Stats/Session?sessionid=102": sessionPage,
	}}
	s, m := newTestScraper(b, nil, 0)

	records, err := s.Run(context.Background(), ModeSessions)
	require.NoError(t, err)
	assert.Len(t, records, 4)
	assert.Equal(t, "101", records[0][ColSessionID])
	assert.Equal(t, "102", records[3][ColSessionID])

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScrapeItems.WithLabelValues("sessions", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ScrapeItems.WithLabelValues("sessions", "error")))
}

func TestScraper_RoundsTagsShots(t *testing.T) {
	b := &fakeBrowser{pages: map[string]string{
		base + "/":                  roundsPage,
		base + "/Rounds/Round?id=9": roundPage,
	}}
	s, _ := newTestScraper(b, nil, 0)

	records, err := s.Run(context.Background(), ModeRounds)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, "Pebble Beach", r[ColCourse])
		assert.Equal(t, "82", r[ColRoundScore])
		assert.Equal(t, "Jul 6, 2025", r[ColRoundDate])
	}
}

func TestScraper_ExportPacesRequests(t *testing.T) {
	b := &fakeBrowser{
		pages: map[string]string{base + "/Stats": statsPage},
		fetches: map[string]string{
			base + "/Stats/Export?sessionId=101": "Club,Ball Speed (mph),Carry (yds)\n7 Iron,120,150\n",
			base + "/Stats/Export?sessionId=102": "<html>\nClub,Ball Speed (mph),Carry (yds)\nDriver,150,240\nPW,90,110\n",
		},
	}
	clock := clockwork.NewFakeClock()
	s, m := newTestScraper(b, clock, 2*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		records []Record
		err     error
	}
	done := make(chan result, 1)
	go func() {
		r, err := s.Run(ctx, ModeExport)
		done <- result{r, err}
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Second)

	res := <-done
	require.NoError(t, res.err)
	require.Len(t, res.records, 3)
	assert.Equal(t, "102", res.records[2][ColSessionID])
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ScrapeItems.WithLabelValues("export", "success")))
}

func TestScraper_LoginFailureIsFatal(t *testing.T) {
	s, _ := newTestScraper(&fakeBrowser{loginErr: errors.New("bad credentials")}, nil, 0)
	_, err := s.Run(context.Background(), ModeSessions)
	require.Error(t, err)
}

func TestScraper_CancelledWhilePacing(t *testing.T) {
	b := &fakeBrowser{pages: map[string]string{
		base + "/Stats":                       statsPage,
		base + "/Stats/Session?SessionID=101": sessionPage,
	}}
	clock := clockwork.NewFakeClock()
	s, _ := newTestScraper(b, clock, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := s.Run(ctx, ModeSessions)
		done <- err
	}()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	cancel()

	require.ErrorIs(t, <-done, context.Canceled)
}

func TestResolve(t *testing.T) {
	s, _ := newTestScraper(&fakeBrowser{}, nil, 0)
	assert.Equal(t, base+"/a", s.resolve("/a"))
	assert.Equal(t, base+"/a", s.resolve("a"))
	assert.Equal(t, "https://other/x", s.resolve("https://other/x"))
}

func TestChromeBrowser_LaunchesWithoutDeadline(t *testing.T) {
	b := NewChromeBrowser("https://fsx.example", true)
	defer b.Close()

	var launches []context.Context
	b.launch = func(ctx context.Context) error {
		launches = append(launches, ctx)
		return nil
	}

	require.NoError(t, b.start())
	require.NoError(t, b.start())

	require.Len(t, launches, 1, "browser starts once")
	_, hasDeadline := launches[0].Deadline()
	assert.False(t, hasDeadline, "the browser process must outlive per-page timeouts")
}

func TestChromeBrowser_LaunchFailureIsRetried(t *testing.T) {
	b := NewChromeBrowser("https://fsx.example", true)
	defer b.Close()

	errNoChrome := errors.New("chrome not found")
	calls := 0
	b.launch = func(context.Context) error {
		calls++
		return errNoChrome
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := b.Login(ctx, "user", "pass")
	require.ErrorIs(t, err, errNoChrome)
	_, err = b.Page(ctx, "https://fsx.example/Stats", "body")
	require.ErrorIs(t, err, errNoChrome)
	assert.Equal(t, 2, calls)
}
