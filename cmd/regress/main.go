// Command regress runs the offline regression experiments.
//
// The face experiment fits forest and boosting models on Rapsodo range
// exports and writes an R² comparison table:
//
//	go run ./cmd/regress -experiment face -out model_comparison_results.csv 7-6-25_range.csv 7-15-25_range.csv
//
// The aoa experiment predicts angle of attack from a (possibly remote) CSV:
//
//	go run ./cmd/regress -experiment aoa -url https://example.com/data.csv
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/launch-monitor-etl/internal/regression"
)

const defaultAoAURL = "https://raw.githubusercontent.com/tim-blackmore/launch-monitor-regression/main/data.csv"

func main() {
	if err := run(); err != nil {
		slog.Error("experiment failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	experiment := flag.String("experiment", "face", "experiment to run: face or aoa")
	out := flag.String("out", "model_comparison_results.csv", "R² table output for the face experiment")
	url := flag.String("url", defaultAoAURL, "CSV location for the aoa experiment (http(s) URL or file path)")
	trees := flag.Int("trees", 150, "estimators per model")
	seed := flag.Uint64("seed", regression.DefaultSeed, "split and ensemble seed")
	logLevel := flag.String("log-level", "info", "log level")
	flag.Parse()

	logger := sharedobs.NewLogger(*logLevel, "text")

	switch *experiment {
	case "face":
		return runFace(logger, flag.Args(), *out, *trees, *seed)
	case "aoa":
		return runAoA(logger, *url, *trees, *seed)
	}
	return fmt.Errorf("unknown experiment %q", *experiment)
}

func runFace(logger *slog.Logger, files []string, out string, trees int, seed uint64) error {
	if len(files) == 0 {
		return fmt.Errorf("face experiment needs at least one Rapsodo export")
	}
	tables := make([]regression.Table, 0, len(files))
	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		t, err := regression.ReadTable(f, regression.RapsodoHeaderMarker)
		f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		tables = append(tables, t)
	}

	d, err := regression.FaceDataset(tables...)
	if err != nil {
		return err
	}
	logger.Info("face dataset built", "rows", d.Len(), "features", len(d.Features))

	results, err := regression.Compare(d, regression.DefaultCandidates(trees, seed), seed)
	if err != nil {
		return err
	}
	for _, r := range results {
		logger.Info("model scored", "model", r.Model, "face_angle_r2", r.R2[0], "face_to_path_r2", r.R2[1])
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()
	if err := regression.WriteResults(f, d.Targets, results); err != nil {
		return err
	}
	logger.Info("results written", "path", out)
	return nil
}

func runAoA(logger *slog.Logger, location string, trees int, seed uint64) error {
	body, err := readSource(location)
	if err != nil {
		return err
	}
	t, err := regression.ReadTable(bytes.NewReader(body), "")
	if err != nil {
		return err
	}
	d, err := regression.AoADataset(t)
	if err != nil {
		return err
	}
	logger.Info("aoa dataset built", "rows", d.Len())

	candidates := []regression.Candidate{{
		Name:     "Random Forest",
		NewModel: func() regression.Regressor { return regression.NewRandomForest(trees, seed) },
	}}
	results, err := regression.Compare(d, candidates, seed)
	if err != nil {
		return err
	}
	logger.Info("model scored", "model", results[0].Model, "r2", results[0].R2[0], "mse", results[0].MSE[0])
	return nil
}

func readSource(location string) ([]byte, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return regression.Fetch(ctx, &http.Client{Timeout: time.Minute}, location)
	}
	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", location, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}
