// Package fsx scrapes shot data from the FSX Live web portal and writes it
// as session CSVs the ETL can ingest.
package fsx

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Record is one scraped shot keyed by column label.
type Record map[string]string

// Extra columns the scraper adds to every record it can attribute.
const (
	ColSessionID   = "Session ID"
	ColRoundDate   = "Date"
	ColCourse      = "Course"
	ColRoundScore  = "Round Score"
	ColShotNumber  = "Shot Number"
	ColClub        = "Club"
	ColResult      = "Result"
	ColCarry       = "Carry"
	ColTotal       = "Total Distance"
	ColOffline     = "Offline"
	sessionIDParam = "SessionID"
)

// Page selectors.
const (
	selSessionRows  = "table.stats-summary-table tr.row-link"
	selLinkedRows   = "tr.row-link[data-href]"
	selShotAnalysis = ".shot-analysis-data"
	selAnalysisItem = ".shot-analysis-item"
	selItemLabel    = ".shot-analysis-item-label"
	selItemData     = ".shot-analysis-item-data"
	selHoleShotRows = "table.hole-shots-table tr.shot-row"
	selAnalysisBox  = ".shot-analysis-data-container"
)

// Round is one row of the rounds table.
type Round struct {
	Date   string
	Course string
	Score  string
	Href   string
}

func parseHTML(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseSessionLinks returns the detail-page links of the stats summary table.
func ParseSessionLinks(html string) ([]string, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}
	var links []string
	doc.Find(selSessionRows).Each(func(_ int, row *goquery.Selection) {
		if href, ok := row.Attr("data-href"); ok && href != "" {
			links = append(links, href)
		}
	})
	return links, nil
}

// ParseSessionIDs extracts the SessionID query parameter of every linked row.
// Rows whose link carries no session id are skipped.
func ParseSessionIDs(html string) ([]string, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}
	var ids []string
	doc.Find(selLinkedRows).Each(func(_ int, row *goquery.Selection) {
		href, _ := row.Attr("data-href")
		if id := sessionID(href); id != "" {
			ids = append(ids, id)
		}
	})
	return ids, nil
}

func sessionID(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	for k, v := range u.Query() {
		if strings.EqualFold(k, sessionIDParam) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

// ParseShotAnalysis returns one record per shot-analysis block on a session
// detail page.
func ParseShotAnalysis(html string) ([]Record, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}
	var records []Record
	doc.Find(selShotAnalysis).Each(func(_ int, block *goquery.Selection) {
		rec := Record{}
		analysisItems(block, rec)
		if len(rec) > 0 {
			records = append(records, rec)
		}
	})
	return records, nil
}

func analysisItems(block *goquery.Selection, into Record) {
	block.Find(selAnalysisItem).Each(func(_ int, item *goquery.Selection) {
		label := cleanText(item.Find(selItemLabel).First().Text())
		if label == "" {
			return
		}
		into[label] = parseDisplayValue(cleanText(item.Find(selItemData).First().Text()))
	})
}

// ParseRounds reads the rounds table: date, course and score from the first,
// second and fourth cells.
func ParseRounds(html string) ([]Round, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}
	var rounds []Round
	doc.Find("tr.row-link").Each(func(_ int, row *goquery.Selection) {
		href, _ := row.Attr("data-href")
		rounds = append(rounds, Round{
			Date:   cell(row, 1),
			Course: cell(row, 2),
			Score:  cell(row, 4),
			Href:   href,
		})
	})
	return rounds, nil
}

var holeShotCells = []string{ColShotNumber, ColClub, ColResult, ColCarry, ColTotal, ColOffline}

// ParseHoleShots reads a round's hole-shots table. Each shot row is followed
// by an optional analysis row whose items are merged into the record.
func ParseHoleShots(html string) ([]Record, error) {
	doc, err := parseHTML(html)
	if err != nil {
		return nil, err
	}
	var records []Record
	doc.Find(selHoleShotRows).Each(func(_ int, row *goquery.Selection) {
		rec := Record{}
		for i, col := range holeShotCells {
			v := cell(row, i+1)
			if col != ColClub && col != ColResult {
				v = parseDisplayValue(v)
			}
			rec[col] = v
		}
		if next := row.Next(); next.HasClass("shot-analysis") {
			analysisItems(next.Find(selAnalysisBox), rec)
		}
		records = append(records, rec)
	})
	return records, nil
}

func cell(row *goquery.Selection, n int) string {
	return cleanText(row.Find(fmt.Sprintf("td:nth-child(%d)", n)).First().Text())
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// displayValue matches portal readouts such as "151.2 mph", "3.4 L" or
// "R 12". L is left of target and becomes negative.
var displayValue = regexp.MustCompile(`^([LR])?\s*(-?\d[\d,]*(?:\.\d+)?)\s*(?:mph|yds|yd|rpm|deg|°|ft|m|%)?\s*([LR])?$`)

// parseDisplayValue strips units and folds a direction suffix into the sign.
// Text that is not a readout is returned unchanged.
func parseDisplayValue(s string) string {
	m := displayValue.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return s
	}
	num := strings.ReplaceAll(m[2], ",", "")
	if m[1] == "L" || m[3] == "L" {
		if strings.HasPrefix(num, "-") {
			return num
		}
		return "-" + num
	}
	return num
}

// CleanExportCSV drops the HTML and blank lines the export endpoint mixes
// into its CSV: a line is kept when it contains a comma and does not start
// with "<".
func CleanExportCSV(text string) string {
	var kept []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		l := strings.TrimSpace(line)
		if strings.Contains(l, ",") && !strings.HasPrefix(l, "<") {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
