package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/precipgrid/precipgrid/dispatcher/internal/config"
	"github.com/precipgrid/precipgrid/dispatcher/internal/dispatch"
	"github.com/precipgrid/precipgrid/dispatcher/internal/endpoint"
	"github.com/precipgrid/precipgrid/dispatcher/internal/grid"
	"github.com/precipgrid/precipgrid/dispatcher/internal/raster"
	"github.com/precipgrid/precipgrid/dispatcher/internal/scraper"
	"github.com/precipgrid/precipgrid/dispatcher/internal/stations"
)

func main() {
	configPath := flag.String("config", "dispatcher.yaml", "path to config file")
	envFile := flag.String("env", "", "optional .env file loaded before the config")
	output := flag.String("output", "", "raster output path, overrides output")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("precipgrid-dispatcher starting", "config", *configPath)

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			slog.Warn("env file not loaded, using process environment", "path", *envFile, "err", err)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if *output != "" {
		cfg.Output = *output
	}

	slog.Info("config loaded",
		"endpoints", len(cfg.Endpoints),
		"region", cfg.Region.Name,
		"resolution", cfg.Resolution,
		"batch_size", cfg.BatchSize,
		"auth_mode", cfg.Auth.Mode,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	start := time.Now()

	g, err := grid.New(cfg.Region.Bounds, cfg.Resolution)
	if err != nil {
		return fmt.Errorf("build grid: %w", err)
	}
	known := stations.Generate(cfg.Region.Bounds, cfg.Stations, cfg.Seed)
	slog.Info("grid built",
		"height", g.Height,
		"width", g.Width,
		"stations", known.Len(),
	)

	batches, err := grid.Batches(g, known, cfg.Power, cfg.BatchSize, nil)
	if err != nil {
		return fmt.Errorf("partition grid: %w", err)
	}

	client, err := endpoint.NewClient(cfg.Auth, cfg.TLS)
	if err != nil {
		return err
	}

	sess := dispatch.NewSession(client, dispatch.Options{
		HealthTimeout:  cfg.HealthTimeout,
		BatchTimeout:   cfg.BatchTimeout,
		MaxConcurrency: cfg.MaxConcurrency,
	})
	slog.Info("session created", "session", sess.ID, "batches", len(batches))

	// A signal after probing does not interrupt dispatch; every batch runs until
	// it completes or its own timeout expires.
	results, err := sess.Run(ctx, cfg.Endpoints, batches)
	if err != nil {
		return err
	}

	r := raster.Merge(results, g.Height, g.Width)
	filled, holes := r.Coverage()
	for _, h := range holes {
		slog.Warn("raster hole", "start_row", h.Start, "end_row", h.End)
	}

	desc := fmt.Sprintf("IDW precipitation, %s", cfg.Region.Name)
	if err := raster.WriteENVI(cfg.Output, r, g.Transform, desc); err != nil {
		return err
	}

	sum := sess.Summary()
	slog.Info("raster written",
		"path", cfg.Output,
		"header", raster.HeaderPath(cfg.Output),
		"filled_rows", filled,
		"height", g.Height,
	)

	for _, ws := range scraper.ScrapeAll(context.WithoutCancel(ctx), client, sum.Endpoints) {
		if ws.Err != nil {
			continue
		}
		slog.Info("worker stats",
			"endpoint", ws.Endpoint,
			"batches", ws.Batches,
			"errors", ws.Errors,
			"pixels", ws.Pixels,
			"busy", time.Duration(ws.Seconds*float64(time.Second)),
		)
	}

	slog.Info("run complete",
		"session", sum.ID,
		"successful", sum.Completed,
		"total", sum.Total,
		"failed", len(sum.Failed),
		"endpoints", sum.Endpoints,
		"session_elapsed", sum.Elapsed,
		"total_elapsed", time.Since(start),
	)
	return nil
}
