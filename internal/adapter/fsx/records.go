package fsx

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
)

// columnOrder puts identifying columns first in written files; any other
// label follows alphabetically.
var columnOrder = []string{
	ColSessionID, ColRoundDate, ColCourse, ColRoundScore, ColShotNumber, ColClub, ColResult,
	"Ball Speed", "Launch Angle", "Push/Pull", "Back Spin", "Side Spin", "Total Spin",
	ColCarry, ColTotal, ColOffline, "Peak Height", "Descent Angle",
}

// Columns returns the union of labels across records in write order. The
// club column is always present so the ETL can locate the header row.
func Columns(records []Record) []string {
	seen := map[string]bool{ColClub: true}
	for _, r := range records {
		for k := range r {
			seen[k] = true
		}
	}
	var cols []string
	for _, c := range columnOrder {
		if seen[c] {
			cols = append(cols, c)
			delete(seen, c)
		}
	}
	extra := make([]string, 0, len(seen))
	for c := range seen {
		extra = append(extra, c)
	}
	slices.Sort(extra)
	return append(cols, extra...)
}

// WriteRecords writes records as CSV with a header row.
func WriteRecords(w io.Writer, records []Record) error {
	cols := Columns(records)
	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	row := make([]string, len(cols))
	for i, r := range records {
		for j, c := range cols {
			row[j] = r[c]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ParseExport reads a cleaned session export. Rows whose width differs from
// the header are skipped; each kept row is tagged with the session id.
func ParseExport(text, sessionID string) ([]Record, error) {
	cr := csv.NewReader(strings.NewReader(CleanExportCSV(text)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read export header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var records []Record
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}
		if len(rec) != len(header) {
			continue
		}
		r := Record{ColSessionID: sessionID}
		for i, h := range header {
			r[h] = strings.TrimSpace(rec[i])
		}
		records = append(records, r)
	}
	return records, nil
}
