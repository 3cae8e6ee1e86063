package fsx

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/launch-monitor-etl/internal/observability"
)

// Mode selects what the scraper collects.
type Mode string

const (
	// ModeSessions walks the stats page and reads each session's shot analysis.
	ModeSessions Mode = "sessions"
	// ModeRounds walks the rounds table and reads every hole shot.
	ModeRounds Mode = "rounds"
	// ModeExport downloads each session's CSV export.
	ModeExport Mode = "export"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeSessions, ModeRounds, ModeExport:
		return m, nil
	}
	return "", fmt.Errorf("unknown scrape mode %q (want sessions, rounds or export)", s)
}

const (
	statsPath  = "/Stats"
	exportPath = "/Stats/Export"
)

// Scraper walks the portal one page at a time with a fixed pause between
// items. A failing item is logged and counted, never fatal.
type Scraper struct {
	browser  Browser
	baseURL  string
	username string
	password string
	pace     time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// Options configures a Scraper.
type Options struct {
	BaseURL  string
	Username string
	Password string
	Pace     time.Duration
	Clock    clockwork.Clock // nil = real clock
}

// NewScraper creates a scraper driving browser.
func NewScraper(browser Browser, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Scraper {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scraper{
		browser:  browser,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		username: opts.Username,
		password: opts.Password,
		pace:     opts.Pace,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run logs in and scrapes in the given mode. Only login and index-page
// failures are returned; per-item failures are skipped.
func (s *Scraper) Run(ctx context.Context, mode Mode) ([]Record, error) {
	if err := s.browser.Login(ctx, s.username, s.password); err != nil {
		return nil, err
	}
	s.logger.Info("logged in", "base_url", s.baseURL)

	switch mode {
	case ModeSessions:
		return s.scrapeSessions(ctx)
	case ModeRounds:
		return s.scrapeRounds(ctx)
	case ModeExport:
		return s.scrapeExports(ctx)
	}
	return nil, fmt.Errorf("unknown scrape mode %q", mode)
}

func (s *Scraper) scrapeSessions(ctx context.Context) ([]Record, error) {
	index, err := s.browser.Page(ctx, s.baseURL+statsPath, "table.stats-summary-table")
	if err != nil {
		return nil, err
	}
	links, err := ParseSessionLinks(index)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sessions found", "count", len(links))

	var all []Record
	for i, link := range links {
		if !s.pause(ctx, i) {
			return all, ctx.Err()
		}
		html, err := s.browser.Page(ctx, s.resolve(link), selShotAnalysis)
		if err == nil {
			var records []Record
			records, err = ParseShotAnalysis(html)
			if id := sessionID(link); id != "" {
				for _, r := range records {
					r[ColSessionID] = id
				}
			}
			all = append(all, records...)
		}
		s.observe(ModeSessions, link, err)
	}
	return all, nil
}

func (s *Scraper) scrapeRounds(ctx context.Context) ([]Record, error) {
	index, err := s.browser.Page(ctx, s.baseURL+"/", "tr.row-link")
	if err != nil {
		return nil, err
	}
	rounds, err := ParseRounds(index)
	if err != nil {
		return nil, err
	}
	s.logger.Info("rounds found", "count", len(rounds))

	var all []Record
	for i, round := range rounds {
		if round.Href == "" {
			continue
		}
		if !s.pause(ctx, i) {
			return all, ctx.Err()
		}
		s.logger.Info("scraping round", "date", round.Date, "course", round.Course, "score", round.Score)
		html, err := s.browser.Page(ctx, s.resolve(round.Href), "table.hole-shots-table")
		if err == nil {
			var records []Record
			records, err = ParseHoleShots(html)
			for _, r := range records {
				r[ColRoundDate] = round.Date
				r[ColCourse] = round.Course
				r[ColRoundScore] = round.Score
			}
			all = append(all, records...)
		}
		s.observe(ModeRounds, round.Href, err)
	}
	return all, nil
}

func (s *Scraper) scrapeExports(ctx context.Context) ([]Record, error) {
	index, err := s.browser.Page(ctx, s.baseURL+statsPath, selLinkedRows)
	if err != nil {
		return nil, err
	}
	ids, err := ParseSessionIDs(index)
	if err != nil {
		return nil, err
	}
	s.logger.Info("sessions found", "count", len(ids))

	var all []Record
	for i, id := range ids {
		if !s.pause(ctx, i) {
			return all, ctx.Err()
		}
		s.logger.Info("exporting session", "session_id", id)
		body, err := s.browser.Fetch(ctx, s.baseURL+exportPath+"?sessionId="+url.QueryEscape(id))
		if err == nil {
			var records []Record
			records, err = ParseExport(body, id)
			all = append(all, records...)
		}
		s.observe(ModeExport, id, err)
	}
	return all, nil
}

// pause waits s.pace before every item but the first. It reports false when
// ctx ends first.
func (s *Scraper) pause(ctx context.Context, i int) bool {
	if ctx.Err() != nil {
		return false
	}
	if i == 0 || s.pace <= 0 {
		return true
	}
	select {
	case <-s.clock.After(s.pace):
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scraper) observe(mode Mode, item string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		s.logger.Warn("scrape item failed", "mode", mode, "item", item, "error", err)
	}
	s.metrics.ScrapeItems.WithLabelValues(string(mode), outcome).Inc()
}

func (s *Scraper) resolve(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return s.baseURL + href
}
