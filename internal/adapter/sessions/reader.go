// Package sessions reads launch-monitor session exports from a directory and
// writes cleaned shots back out as CSV.
package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
	"github.com/couchcryptid/launch-monitor-etl/internal/observability"
)

// ErrNoData is returned when a directory yields no data rows at all.
var ErrNoData = errors.New("no session data found")

// headerScanLimit bounds how far into a file the header row is searched for.
// Rapsodo exports put a few lines of player metadata above it.
const headerScanLimit = 20

var headerMarkers = map[string]bool{
	"club name": true,
	"club type": true,
	"club":      true,
}

// Dir extracts raw rows from every .csv and .xlsx file directly inside a
// directory. Files are read in name order.
type Dir struct {
	path    string
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewDir creates a directory source.
func NewDir(path string, logger *slog.Logger, metrics *observability.Metrics) *Dir {
	return &Dir{path: path, logger: logger, metrics: metrics}
}

// Path is the directory being read.
func (d *Dir) Path() string { return d.path }

// Extract reads all session files. Files that cannot be read or have no
// recognizable header are skipped with a warning. It returns ErrNoData when
// nothing usable was found.
func (d *Dir) Extract(ctx context.Context) ([]domain.RawRow, error) {
	files, err := d.files()
	if err != nil {
		return nil, err
	}

	var rows []domain.RawRow
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileRows, err := readFile(path)
		if err != nil {
			d.logger.Warn("skipping session file", "file", filepath.Base(path), "error", err)
			d.metrics.FilesSkipped.Inc()
			continue
		}
		d.logger.Debug("read session file", "file", filepath.Base(path), "rows", len(fileRows))
		rows = append(rows, fileRows...)
	}
	d.metrics.RowsRead.Add(float64(len(rows)))

	if len(rows) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoData, d.path)
	}
	return rows, nil
}

// Fingerprint hashes the name and content of every session file so callers
// can tell whether the directory changed since the last read.
func (d *Dir) Fingerprint(ctx context.Context) (string, error) {
	files, err := d.files()
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		f, err := os.Open(path)
		if err != nil {
			// Unreadable files are skipped by Extract too; hash the name only.
			fmt.Fprintf(h, "%s|unreadable\n", filepath.Base(path))
			continue
		}
		fmt.Fprintf(h, "%s|", filepath.Base(path))
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("hash %s: %w", path, err)
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (d *Dir) files() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read sessions dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), "~$") {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".csv", ".xlsx":
			files = append(files, filepath.Join(d.path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func readFile(path string) ([]domain.RawRow, error) {
	name := filepath.Base(path)
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		records, err := readXLSX(path)
		if err != nil {
			return nil, err
		}
		return tableRows(records, nil, name)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, name)
}

// ReadCSV parses one session CSV. Ragged rows and stray quotes are tolerated.
func ReadCSV(r io.Reader, sourceFile string) ([]domain.RawRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var records [][]string
	var lines []int
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
	return tableRows(records, lines, sourceFile)
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

// tableRows locates the header and zips every following non-blank record
// with it. lines holds the 1-based file line of each record; nil means the
// record index is the line.
func tableRows(records [][]string, lines []int, sourceFile string) ([]domain.RawRow, error) {
	headerIdx := findHeader(records)
	if headerIdx < 0 {
		return nil, errors.New("no club column in header")
	}
	header := records[headerIdx]

	rows := make([]domain.RawRow, 0, len(records)-headerIdx-1)
	for i := headerIdx + 1; i < len(records); i++ {
		if blank(records[i]) {
			continue
		}
		line := i + 1
		if lines != nil {
			line = lines[i]
		}
		rows = append(rows, domain.NewRawRow(header, records[i], sourceFile, line))
	}
	return rows, nil
}

func findHeader(records [][]string) int {
	for i := 0; i < len(records) && i < headerScanLimit; i++ {
		for _, cell := range records[i] {
			key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(cell, "\ufeff")))
			if headerMarkers[key] {
				return i
			}
		}
	}
	return -1
}

func blank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
