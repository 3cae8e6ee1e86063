package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
	"github.com/couchcryptid/launch-monitor-etl/internal/observability"
	"github.com/couchcryptid/launch-monitor-etl/internal/pipeline"
)

// --- mocks ---

type mockExtractor struct {
	rows  []domain.RawRow
	err   error
	calls int
}

func (m *mockExtractor) Extract(_ context.Context) ([]domain.RawRow, error) {
	m.calls++
	return m.rows, m.err
}

type mockLoader struct {
	mu       sync.Mutex
	batches  [][]domain.Shot
	failures int
}

func (m *mockLoader) Load(_ context.Context, shots []domain.Shot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("sink unavailable")
	}
	m.batches = append(m.batches, append([]domain.Shot(nil), shots...))
	return nil
}

func (m *mockLoader) loaded() int {
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

type resettableLoader struct {
	mockLoader
	resets int
}

func (m *resettableLoader) Reset(_ context.Context) error {
	m.resets++
	m.batches = nil
	return nil
}

func newTestMetrics() *observability.Metrics {
	// Use a fresh registry to avoid "already registered" panics in tests.
	return observability.NewMetricsForTesting()
}

func row(cells ...string) domain.RawRow {
	return domain.NewRawRow([]string{domain.ColClubName, domain.ColBallSpeed, domain.ColCarry}, cells, "s.csv", 2)
}

// --- tests ---

func TestPipeline_Clean(t *testing.T) {
	ext := &mockExtractor{rows: []domain.RawRow{
		row("7 Iron", "120", "150"),
		row("Unknown", "NaN", ""),
		row("Driver", "", "250"),
		row("Driver", "150", "240"),
	}}
	metrics := newTestMetrics()
	p := pipeline.New(ext, pipeline.NewTransformer(nil), nil, slog.Default(), metrics, 50)

	shots, report, err := p.Clean(context.Background())
	require.NoError(t, err)

	require.Len(t, shots, 2)
	assert.Equal(t, domain.Club7Iron, shots[0].Club)
	assert.Equal(t, domain.ClubDriver, shots[1].Club)
	require.NotNil(t, shots[1].ClubSpeed)
	assert.InDelta(t, 96.77, *shots[1].ClubSpeed, 0.01)

	assert.Equal(t, 4, report.RowsRead)
	assert.Equal(t, 2, report.ShotsKept)
	assert.Equal(t, 1, report.UnknownClub)
	assert.Equal(t, 1, report.MissingFields)
	assert.Equal(t, 2, report.Dropped())
	assert.Equal(t, 2, report.EstimatedField[domain.FieldClubSpeed])

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues("unknown_club")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues("missing_required")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.FieldsEstimated.WithLabelValues(domain.FieldClubSpeed)), 0)
}

func TestPipeline_Clean_ExtractError(t *testing.T) {
	ext := &mockExtractor{err: errors.New("disk gone")}
	p := pipeline.New(ext, pipeline.NewTransformer(nil), nil, slog.Default(), newTestMetrics(), 50)

	_, _, err := p.Clean(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
}

func TestPipeline_Run_Batches(t *testing.T) {
	var rows []domain.RawRow
	for range 5 {
		rows = append(rows, row("PW", "90", "110"))
	}
	ldr := &mockLoader{}
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{rows: rows}, pipeline.NewTransformer(nil),
		[]pipeline.Sink{{Name: "mock", Loader: ldr}}, slog.Default(), metrics, 2)

	require.Error(t, p.CheckReadiness(context.Background()))

	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.ShotsKept)

	sizes := make([]int, 0, len(ldr.batches))
	for _, b := range ldr.batches {
		sizes = append(sizes, len(b))
	}
	if diff := cmp.Diff([]int{2, 2, 1}, sizes); diff != "" {
		t.Errorf("batch sizes mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 5, testutil.ToFloat64(metrics.ShotsLoaded.WithLabelValues("mock")), 0)
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ResetsSinkWhenNothingKept(t *testing.T) {
	ldr := &resettableLoader{}
	ext := &mockExtractor{rows: []domain.RawRow{row("7 Iron", "120", "150")}}
	p := pipeline.New(ext, pipeline.NewTransformer(nil),
		[]pipeline.Sink{{Name: "mirror", Loader: ldr}}, slog.Default(), newTestMetrics(), 50)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ldr.loaded())

	ext.rows = []domain.RawRow{row("Unknown", "120", "150")}
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.ShotsKept)
	assert.Equal(t, 2, ldr.resets, "reset runs once per run")
	assert.Equal(t, 0, ldr.loaded())
}

func TestPipeline_Run_RetriesThenSucceeds(t *testing.T) {
	ldr := &mockLoader{failures: 2}
	metrics := newTestMetrics()
	p := pipeline.New(&mockExtractor{rows: []domain.RawRow{row("9i", "110", "140")}}, pipeline.NewTransformer(nil),
		[]pipeline.Sink{{Name: "flaky", Loader: ldr}}, slog.Default(), metrics, 50)
	pipeline.SetBackoff(p, time.Millisecond)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ldr.loaded())
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.LoadErrors.WithLabelValues("flaky")), 0)
}

func TestPipeline_Run_SinkGivesUp(t *testing.T) {
	bad := &mockLoader{failures: 100}
	good := &mockLoader{}
	p := pipeline.New(&mockExtractor{rows: []domain.RawRow{row("9i", "110", "140")}}, pipeline.NewTransformer(nil),
		[]pipeline.Sink{{Name: "bad", Loader: bad}, {Name: "good", Loader: good}}, slog.Default(), newTestMetrics(), 50)
	pipeline.SetBackoff(p, time.Millisecond)

	report, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink bad")
	assert.Equal(t, 1, report.ShotsKept)
	assert.Equal(t, 1, good.loaded())
	require.NoError(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ContextCancelled(t *testing.T) {
	bad := &mockLoader{failures: 100}
	p := pipeline.New(&mockExtractor{rows: []domain.RawRow{row("9i", "110", "140")}}, pipeline.NewTransformer(nil),
		[]pipeline.Sink{{Name: "bad", Loader: bad}}, slog.Default(), newTestMetrics(), 50)
	pipeline.SetBackoff(p, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestShotTransformer_Transform(t *testing.T) {
	fixed := time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(fixed))
	t.Cleanup(func() { domain.SetClock(nil) })

	canon, err := domain.NewCanonicalizer(map[string]domain.Club{"big dog": domain.ClubDriver})
	require.NoError(t, err)

	out, err := pipeline.NewTransformer(canon).Transform(context.Background(), row("Big Dog", "150", "240"))
	require.NoError(t, err)
	assert.Equal(t, domain.ClubDriver, out.Club)
	assert.Equal(t, fixed, out.ProcessedAt)
	assert.True(t, out.IsEstimated(domain.FieldClubSpeed))

	_, err = pipeline.NewTransformer(nil).Transform(context.Background(), row("Big Dog", "150", "240"))
	require.ErrorIs(t, err, domain.ErrUnknownClub)
}

type stubFingerprint struct {
	key   string
	calls int
}

func (s *stubFingerprint) Fingerprint(_ context.Context) (string, error) {
	s.calls++
	return s.key, nil
}

func TestCachedDataset(t *testing.T) {
	ext := &mockExtractor{rows: []domain.RawRow{row("7 Iron", "120", "150")}}
	p := pipeline.New(ext, pipeline.NewTransformer(nil), nil, slog.Default(), newTestMetrics(), 50)
	fp := &stubFingerprint{key: "v1"}
	metrics := newTestMetrics()
	ds := pipeline.NewCachedDataset(p, fp, 2, metrics)
	ctx := context.Background()

	shots, err := ds.Shots(ctx)
	require.NoError(t, err)
	require.Len(t, shots, 1)

	_, err = ds.Shots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ext.calls, "unchanged fingerprint must not re-clean")

	fp.key = "v2"
	_, err = ds.Shots(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, ext.calls)

	ds.Refresh()
	snap, err := ds.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, ext.calls)
	assert.Equal(t, "v2", snap.Fingerprint)
	assert.Equal(t, 1, snap.Report.ShotsKept)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DatasetCache.WithLabelValues("hit")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.DatasetCache.WithLabelValues("miss")), 0)
}

func TestCachedDataset_CleanError(t *testing.T) {
	ext := &mockExtractor{err: errors.New("boom")}
	p := pipeline.New(ext, pipeline.NewTransformer(nil), nil, slog.Default(), newTestMetrics(), 50)
	ds := pipeline.NewCachedDataset(p, &stubFingerprint{key: "k"}, 2, newTestMetrics())

	_, err := ds.Shots(context.Background())
	require.Error(t, err)
	_, err = ds.Shots(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, ext.calls, "errors are not cached")
}

func TestAnyReady_FollowsDataAfterFailedRun(t *testing.T) {
	ext := &mockExtractor{err: errors.New("no session data found")}
	p := pipeline.New(ext, pipeline.NewTransformer(nil), nil, slog.Default(), newTestMetrics(), 50)
	fp := &stubFingerprint{key: "empty"}
	ds := pipeline.NewCachedDataset(p, fp, 2, newTestMetrics())
	ready := pipeline.AnyReady{p, ds}
	ctx := context.Background()

	_, err := p.Run(ctx)
	require.Error(t, err)
	require.Error(t, ready.CheckReadiness(ctx))

	// A session file lands after startup.
	ext.err = nil
	ext.rows = []domain.RawRow{row("7 Iron", "120", "150")}
	fp.key = "one-file"
	require.NoError(t, ready.CheckReadiness(ctx))
	require.Error(t, p.CheckReadiness(ctx), "the startup run still has not completed")
}

func TestAnyReady_Empty(t *testing.T) {
	require.Error(t, pipeline.AnyReady{}.CheckReadiness(context.Background()))
}
