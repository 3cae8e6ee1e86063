package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/couchcryptid/launch-monitor-etl/internal/domain"
	"github.com/couchcryptid/launch-monitor-etl/internal/observability"
)

// Extractor reads every raw row from the source.
type Extractor interface {
	Extract(ctx context.Context) ([]domain.RawRow, error)
}

// Transformer converts a raw row into a cleaned shot.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawRow) (domain.Shot, error)
}

// Loader writes a batch of cleaned shots to a destination.
type Loader interface {
	Load(ctx context.Context, shots []domain.Shot) error
}

// Resetter is implemented by loaders that mirror the latest run rather than
// accumulate across runs. Reset is called once per run before any Load, even
// when the run keeps no shots.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Sink is a named Loader. The name labels metrics and logs.
type Sink struct {
	Name   string
	Loader Loader
}

// Report summarizes one cleaning pass.
type Report struct {
	RowsRead       int            `json:"rows_read"`
	ShotsKept      int            `json:"shots_kept"`
	UnknownClub    int            `json:"dropped_unknown_club"`
	MissingFields  int            `json:"dropped_missing_required"`
	OtherErrors    int            `json:"dropped_other"`
	EstimatedField map[string]int `json:"estimated_fields"`
	Duration       time.Duration  `json:"duration"`
}

// Dropped is the number of rows that did not survive cleaning.
func (r Report) Dropped() int {
	return r.UnknownClub + r.MissingFields + r.OtherErrors
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
	maxAttempts    = 5
)

// Pipeline orchestrates extract, clean and load over a whole session directory.
type Pipeline struct {
	extractor   Extractor
	transformer Transformer
	sinks       []Sink
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
	backoff     time.Duration
}

// New creates a Pipeline. Sinks are written in order; batchSize bounds each Load call.
func New(e Extractor, t Transformer, sinks []Sink, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Pipeline{
		extractor:   e,
		transformer: t,
		sinks:       sinks,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
		backoff:     initialBackoff,
	}
}

// CheckReadiness returns nil once a run has completed, or an error
// describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// AnyReady reports ready as soon as one of its checkers does, and otherwise
// returns every checker's error.
type AnyReady []sharedobs.ReadinessChecker

// CheckReadiness implements sharedobs.ReadinessChecker.
func (a AnyReady) CheckReadiness(ctx context.Context) error {
	errs := make([]error, 0, len(a))
	for _, c := range a {
		err := c.CheckReadiness(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return errors.New("no readiness checks configured")
	}
	return errors.Join(errs...)
}

// Clean extracts every row and returns the shots that survive parsing and
// derivation, in source order. Per-row failures are counted, never returned.
func (p *Pipeline) Clean(ctx context.Context) ([]domain.Shot, Report, error) {
	start := time.Now()
	report := Report{EstimatedField: make(map[string]int)}

	rows, err := p.extractor.Extract(ctx)
	if err != nil {
		return nil, report, fmt.Errorf("extract: %w", err)
	}
	report.RowsRead = len(rows)

	shots := make([]domain.Shot, 0, len(rows))
	for _, raw := range rows {
		shot, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			reason := dropReason(err)
			switch reason {
			case reasonUnknownClub:
				report.UnknownClub++
			case reasonMissingRequired:
				report.MissingFields++
			default:
				report.OtherErrors++
			}
			p.metrics.RowsDropped.WithLabelValues(reason).Inc()
			p.logger.Debug("row dropped", "file", raw.SourceFile, "line", raw.Line, "reason", reason, "error", err)
			continue
		}
		for _, f := range shot.Estimated {
			report.EstimatedField[f]++
			p.metrics.FieldsEstimated.WithLabelValues(f).Inc()
		}
		shots = append(shots, shot)
	}
	report.ShotsKept = len(shots)
	report.Duration = time.Since(start)
	return shots, report, nil
}

const (
	reasonUnknownClub     = "unknown_club"
	reasonMissingRequired = "missing_required"
	reasonOther           = "other"
)

func dropReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnknownClub):
		return reasonUnknownClub
	case errors.Is(err, domain.ErrMissingRequired):
		return reasonMissingRequired
	default:
		return reasonOther
	}
}

// Run performs one full extract-clean-load pass. A sink that keeps failing
// after retries is skipped and its error is returned alongside the report;
// the remaining sinks are still written.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	p.logger.Info("pipeline started", "batch_size", p.batchSize, "sinks", len(p.sinks))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	shots, report, err := p.Clean(ctx)
	if err != nil {
		return report, err
	}

	var loadErrs []error
	for _, sink := range p.sinks {
		if err := p.loadSink(ctx, sink, shots); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			loadErrs = append(loadErrs, fmt.Errorf("sink %s: %w", sink.Name, err))
		}
	}

	report.Duration = time.Since(start)
	p.metrics.RunDuration.Observe(report.Duration.Seconds())
	p.ready.Store(true)
	p.logger.Info("pipeline finished",
		"rows_read", report.RowsRead,
		"shots_kept", report.ShotsKept,
		"dropped", report.Dropped(),
		"duration", report.Duration,
	)
	return report, errors.Join(loadErrs...)
}

// loadSink writes shots in batches, retrying each batch with exponential backoff.
func (p *Pipeline) loadSink(ctx context.Context, sink Sink, shots []domain.Shot) error {
	if r, ok := sink.Loader.(Resetter); ok {
		if err := r.Reset(ctx); err != nil {
			p.metrics.LoadErrors.WithLabelValues(sink.Name).Inc()
			return fmt.Errorf("reset: %w", err)
		}
	}
	for start := 0; start < len(shots); start += p.batchSize {
		end := min(start+p.batchSize, len(shots))
		batch := shots[start:end]
		if err := p.loadWithRetry(ctx, sink, batch); err != nil {
			return err
		}
		p.metrics.ShotsLoaded.WithLabelValues(sink.Name).Add(float64(len(batch)))
	}
	return nil
}

func (p *Pipeline) loadWithRetry(ctx context.Context, sink Sink, batch []domain.Shot) error {
	backoff := p.backoff
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = sink.Loader.Load(ctx, batch); err == nil {
			return nil
		}
		p.metrics.LoadErrors.WithLabelValues(sink.Name).Inc()
		p.logger.Error("load batch failed",
			"sink", sink.Name,
			"attempt", attempt,
			"batch_size", len(batch),
			"error", err,
		)
		if attempt == maxAttempts || !retry.SleepWithContext(ctx, backoff) {
			break
		}
		backoff = retry.NextBackoff(backoff, maxBackoff)
	}
	return err
}
