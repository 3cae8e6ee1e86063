package sessions

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// Extra columns appended to the FSX layout in cleaned output.
const (
	ColSessionFile = "Session_File"
	ColShotID      = "Shot ID"
	ColClubRaw     = "Club Raw"
	ColEstimated   = "Estimated Fields"
)

// outputColumn pairs a header with the field it is rendered from.
type outputColumn struct {
	header string
	field  string
}

// outputColumns keeps the FSX header names so cleaned files can be fed back
// through the reader unchanged.
var outputColumns = []outputColumn{
	{domain.ColBallSpeed, domain.FieldBallSpeed},
	{domain.ColPushPull, domain.FieldPushPull},
	{domain.ColLaunchAngle, domain.FieldLaunchAngle},
	{domain.ColBackSpin, domain.FieldBackSpin},
	{domain.ColSideSpin, domain.FieldSideSpin},
	{domain.ColTotalSpin, domain.FieldTotalSpin},
	{domain.ColCarry, domain.FieldCarry},
	{domain.ColTotalDistance, domain.FieldTotalDistance},
	{domain.ColOffline, domain.FieldOffline},
	{domain.ColPeakHeight, domain.FieldPeakHeight},
	{domain.ColDescentAngle, domain.FieldDescentAngle},
	{domain.ColClubSpeed, domain.FieldClubSpeed},
	{domain.ColClubSpeedImpact, domain.FieldClubSpeedImpact},
	{domain.ColEfficiency, domain.FieldEfficiency},
	{domain.ColAngleOfAttack, domain.FieldAngleOfAttack},
	{domain.ColClubPath, domain.FieldClubPath},
	{domain.ColFaceToTarget, domain.FieldFaceToTarget},
	{domain.ColLie, domain.FieldLie},
	{domain.ColLoft, domain.FieldLoft},
	{domain.ColFaceImpactH, domain.FieldFaceImpactHorizontal},
	{domain.ColFaceImpactV, domain.FieldFaceImpactVertical},
	{domain.ColClosureRate, domain.FieldClosureRate},
}

// Header returns the column names written by WriteCSV.
func Header() []string {
	h := []string{ColSessionFile, ColShotID, domain.ColClubName, ColClubRaw, domain.ColClubType}
	for _, c := range outputColumns {
		h = append(h, c.header)
	}
	return append(h, domain.ColShotCreatedDate, ColEstimated)
}

// Record renders one shot in Header order. Missing values are empty cells.
func Record(s domain.Shot) []string {
	rec := []string{s.SessionFile, s.ID, string(s.Club), s.ClubRaw, string(s.Category)}
	for _, c := range outputColumns {
		v, ok := s.Metric(c.field)
		if !ok {
			rec = append(rec, "")
			continue
		}
		rec = append(rec, strconv.FormatFloat(v, 'f', -1, 64))
	}
	date := ""
	if !s.ShotTime.IsZero() {
		date = s.ShotTime.Format(time.RFC3339)
	}
	return append(rec, date, strings.Join(s.Estimated, ";"))
}

// WriteCSV writes a header and one record per shot.
func WriteCSV(w io.Writer, shots []domain.Shot) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range shots {
		if err := cw.Write(Record(s)); err != nil {
			return fmt.Errorf("write shot %s: %w", s.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// CSVWriter is a pipeline sink that writes cleaned shots to a file. The file
// is truncated by Reset at the start of each run, or by the first Load.
type CSVWriter struct {
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	file *os.File
	csv  *csv.Writer
}

// NewCSVWriter creates a sink writing to path.
func NewCSVWriter(path string, logger *slog.Logger) *CSVWriter {
	return &CSVWriter{path: path, logger: logger}
}

// Load appends shots to the output file, creating it with a header on first use.
func (w *CSVWriter) Load(_ context.Context, shots []domain.Shot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.csv == nil {
		if err := w.create(); err != nil {
			return err
		}
	}

	for _, s := range shots {
		if err := w.csv.Write(Record(s)); err != nil {
			return fmt.Errorf("write shot %s: %w", s.ID, err)
		}
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Reset truncates the output to a bare header so a run that keeps no shots
// does not leave the previous run's rows behind.
func (w *CSVWriter) Reset(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		w.file.Close()
		w.file, w.csv = nil, nil
	}
	if err := w.create(); err != nil {
		return err
	}
	w.csv.Flush()
	return w.csv.Error()
}

func (w *CSVWriter) create() error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	w.file = f
	w.csv = csv.NewWriter(f)
	if err := w.csv.Write(Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

// Close flushes and closes the output file. A later Load starts a new file.
func (w *CSVWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	w.csv.Flush()
	flushErr := w.csv.Error()
	closeErr := w.file.Close()
	w.file, w.csv = nil, nil
	if flushErr != nil {
		return fmt.Errorf("flush output: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close output: %w", closeErr)
	}
	w.logger.Info("cleaned shots written", "path", w.path)
	return nil
}
