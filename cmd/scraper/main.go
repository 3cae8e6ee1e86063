// Command scraper logs in to FSX Live and writes scraped shots as a session
// CSV that the ETL picks up from its sessions directory.
//
// Usage:
//
//	FSX_USERNAME=... FSX_PASSWORD=... go run ./cmd/scraper -mode export -out sessions/fsx_export.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/launch-monitor-etl/internal/adapter/fsx"
	"github.com/couchcryptid/launch-monitor-etl/internal/config"
	"github.com/couchcryptid/launch-monitor-etl/internal/observability"
)

func main() {
	if err := run(); err != nil {
		slog.Error("scrape failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	modeFlag := flag.String("mode", string(fsx.ModeSessions), "what to scrape: sessions, rounds or export")
	out := flag.String("out", "", "output CSV (default <SESSIONS_DIR>/fsx_<mode>.csv)")
	flag.Parse()

	mode, err := fsx.ParseMode(*modeFlag)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	username, password, err := cfg.ScraperCredentials()
	if err != nil {
		return err
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	path := *out
	if path == "" {
		path = filepath.Join(cfg.SessionsDir, fmt.Sprintf("fsx_%s.csv", mode))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	browser := fsx.NewChromeBrowser(cfg.FSXBaseURL, cfg.ScraperHeadless)
	defer browser.Close()

	scraper := fsx.NewScraper(browser, fsx.Options{
		BaseURL:  cfg.FSXBaseURL,
		Username: username,
		Password: password,
		Pace:     cfg.ScraperPace,
	}, logger, metrics)

	records, err := scraper.Run(ctx, mode)
	if err != nil && len(records) == 0 {
		return err
	}
	if err != nil {
		logger.Warn("scrape interrupted, writing partial results", "error", err)
	}
	if len(records) == 0 {
		logger.Warn("no shots scraped", "mode", mode)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := fsx.WriteRecords(f, records); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	logger.Info("scrape complete", "mode", mode, "shots", len(records), "path", path)
	return nil
}
