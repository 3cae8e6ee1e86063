package regression

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
)

// ErrNoHeader is returned when no row carries the expected header marker.
var ErrNoHeader = errors.New("header row not found")

// Table is a CSV body keyed by its header row.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// ReadTable reads a CSV and uses the first row containing marker as the
// header. An empty marker takes the first row. Rows above the header are
// export preamble and are discarded.
func ReadTable(r io.Reader, marker string) (Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read csv: %w", err)
	}

	for i, rec := range records {
		if marker != "" && !containsCell(rec, marker) {
			continue
		}
		t := Table{Header: rec, Rows: records[i+1:], index: make(map[string]int, len(rec))}
		for j, h := range rec {
			t.index[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = j
		}
		return t, nil
	}
	return Table{}, ErrNoHeader
}

func containsCell(rec []string, marker string) bool {
	for _, c := range rec {
		if strings.Contains(c, marker) {
			return true
		}
	}
	return false
}

// Numeric returns the named columns of every row that parses cleanly on all
// of them. Rows with any blank or non-numeric cell are skipped.
func (t Table) Numeric(cols []string) ([]map[string]float64, error) {
	pos := make([]int, len(cols))
	for k, c := range cols {
		j, ok := t.index[c]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, c)
		}
		pos[k] = j
	}

	var out []map[string]float64
rows:
	for _, rec := range t.Rows {
		row := make(map[string]float64, len(cols))
		for k, c := range cols {
			if pos[k] >= len(rec) {
				continue rows
			}
			v := domain.ParseNumber(rec[pos[k]])
			if v == nil {
				continue rows
			}
			row[c] = *v
		}
		out = append(out, row)
	}
	return out, nil
}

// Fetch downloads a remote CSV.
func Fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}
