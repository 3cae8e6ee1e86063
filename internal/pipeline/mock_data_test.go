package pipeline_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/launch-monitor-etl/internal/adapter/sessions"
	"github.com/couchcryptid/launch-monitor-etl/internal/analytics"
	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
	"github.com/couchcryptid/launch-monitor-etl/internal/pipeline"
)

func sessionFixtures() string {
	return filepath.Join("testdata", "sessions")
}

func TestPipeline_WithSessionFixtures(t *testing.T) {
	metrics := newTestMetrics()
	src := sessions.NewDir(sessionFixtures(), slog.Default(), metrics)
	var out bytes.Buffer
	ldr := &mockLoader{}

	p := pipeline.New(src, pipeline.NewTransformer(nil), []pipeline.Sink{{Name: "mock", Loader: ldr}}, slog.Default(), metrics, 3)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, report.RowsRead)
	assert.Equal(t, 8, report.ShotsKept)
	assert.Equal(t, 1, report.UnknownClub, "putter is not a recognized club")
	assert.Equal(t, 1, report.MissingFields, "5 iron row has no ball speed")
	assert.Equal(t, 8, ldr.loaded())

	var shots []domain.Shot
	for _, b := range ldr.batches {
		shots = append(shots, b...)
	}
	for _, s := range shots {
		assert.True(t, s.Club.Valid(), s.ClubRaw)
		assert.Positive(t, s.BallSpeed)
		assert.Positive(t, s.Carry)
		assert.NotEmpty(t, s.ID)
		assert.False(t, s.ShotTime.IsZero())
	}

	// Range session has no club data; the measured session keeps its own.
	rangeIron := shots[2]
	assert.Equal(t, domain.Club7Iron, rangeIron.Club)
	assert.True(t, rangeIron.IsEstimated(domain.FieldClubSpeed))

	wood := shots[5]
	assert.Equal(t, domain.Club3Wood, wood.Club)
	assert.Equal(t, domain.CategoryFairway, wood.Category)
	assert.False(t, wood.IsEstimated(domain.FieldClubSpeed))
	assert.Equal(t, 96.5, *wood.ClubSpeed)

	total := 0
	for _, cs := range analytics.Summarize(shots) {
		total += cs.Count
	}
	assert.Equal(t, len(shots), total)

	require.NoError(t, sessions.WriteCSV(&out, shots))
	again, err := sessions.ReadCSV(&out, "cleaned.csv")
	require.NoError(t, err)
	assert.Len(t, again, len(shots))
}

func TestPipeline_CSVOutputTracksLatestRun(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(t.TempDir(), "cleaned_shots.csv")
	session := filepath.Join(dir, "s.csv")
	header := domain.ColClubName + "," + domain.ColBallSpeed + "," + domain.ColCarry + "\n"

	metrics := newTestMetrics()
	writer := sessions.NewCSVWriter(out, slog.Default())
	p := pipeline.New(sessions.NewDir(dir, slog.Default(), metrics), pipeline.NewTransformer(nil),
		[]pipeline.Sink{{Name: "csv", Loader: writer}}, slog.Default(), metrics, 10)

	require.NoError(t, os.WriteFile(session, []byte(header+"7 Iron,120,150\n"), 0o600))
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	require.NoError(t, os.WriteFile(session, []byte(header+"Unknown,120,150\n"), 0o600))
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	assert.Equal(t, 0, report.ShotsKept)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 1, "dropped rows must not linger from the previous run")
}
