package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/launch-monitor-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/launch-monitor-etl/internal/adapter/kafka"
	"github.com/couchcryptid/launch-monitor-etl/internal/adapter/sessions"
	"github.com/couchcryptid/launch-monitor-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/launch-monitor-etl/internal/config"
	"github.com/couchcryptid/launch-monitor-etl/internal/observability"
	"github.com/couchcryptid/launch-monitor-etl/internal/pipeline"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code. Every path returns through it so
// deferred sink and store Close calls always run.
func run() int {
	serve := flag.Bool("serve", true, "serve the dashboard after the run; false exits once sinks are written")
	source := flag.String("dashboard-source", "sessions", "dashboard data: sessions (re-cleaned on change) or sqlite")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	canon, err := config.LoadClubAliases(cfg.ClubAliasesFile)
	if err != nil {
		logger.Error("failed to load club aliases", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dir := sessions.NewDir(cfg.SessionsDir, logger, metrics)
	csvWriter := sessions.NewCSVWriter(cfg.OutputPath, logger)
	defer closeLogged(logger, "csv writer", csvWriter.Close)
	sinks := []pipeline.Sink{{Name: "csv", Loader: csvWriter}}

	var store *sqlite.Store
	if cfg.SQLitePath != "" {
		store, err = sqlite.Open(ctx, cfg.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open sqlite", "path", cfg.SQLitePath, "error", err)
			return 1
		}
		defer closeLogged(logger, "sqlite", store.Close)
		sinks = append(sinks, pipeline.Sink{Name: "sqlite", Loader: store})
	}

	if cfg.KafkaEnabled {
		writer := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		defer closeLogged(logger, "kafka writer", writer.Close)
		sinks = append(sinks, pipeline.Sink{Name: "kafka", Loader: writer})
		logger.Info("kafka sink enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSinkTopic)
	}

	p := pipeline.New(dir, pipeline.NewTransformer(canon), sinks, logger, metrics, cfg.BatchSize)

	report, err := p.Run(ctx)
	if err != nil {
		logger.Error("pipeline run failed", "error", err)
		if !*serve || errors.Is(err, context.Canceled) {
			return 1
		}
	} else {
		logger.Info("pipeline run complete",
			"rows_read", report.RowsRead,
			"shots_kept", report.ShotsKept,
			"dropped", report.Dropped(),
			"duration", report.Duration,
		)
	}
	if !*serve {
		return 0
	}

	// Readiness follows the dashboard's data, so a failed startup run
	// (for example an empty sessions directory) recovers once data appears.
	var data httpadapter.DataSource
	ready := pipeline.AnyReady{p}
	switch *source {
	case "sqlite":
		if store == nil {
			logger.Error("dashboard source sqlite requires SQLITE_PATH")
			return 1
		}
		data = store
		ready = append(ready, store)
	case "sessions":
		cached := pipeline.NewCachedDataset(p, dir, cfg.CacheSize, metrics)
		data = cached
		ready = append(ready, cached)
	default:
		logger.Error("unknown dashboard source", "source", *source)
		return 1
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, data, canon, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

func closeLogged(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error("close error", "component", name, "error", err)
	}
}
