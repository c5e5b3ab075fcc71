package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/precipgrid/precipgrid/worker/internal/api"
	"github.com/precipgrid/precipgrid/worker/internal/config"
	"github.com/precipgrid/precipgrid/worker/internal/metrics"
)

func main() {
	configPath := flag.String("config", "", "path to config file; empty uses defaults")
	envFile := flag.String("env", "", "optional .env file loaded before the config")
	port := flag.Int("port", 0, "listen port, overrides worker.port")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: &level}))
	slog.SetDefault(logger)

	slog.Info("precipgrid-worker starting", "config", *configPath)

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			slog.Warn("env file not loaded, using process environment", "path", *envFile, "err", err)
		}
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
	}
	if *port != 0 {
		cfg.Worker.Port = *port
	}
	level.Set(cfg.Worker.Level())

	slog.Info("config loaded",
		"port", cfg.Worker.Port,
		"log_level", cfg.Worker.LogLevel,
		"workers", cfg.Worker.Workers,
		"auth_mode", cfg.Worker.Auth.Mode,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *configPath != "" {
		go func() {
			if err := config.WatchLevel(ctx, *configPath, &level); err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	if cfg.Worker.Auth.Mode == "apikey" && cfg.Worker.Auth.Key() == "" {
		slog.Warn("auth mode is apikey but the key is empty, accepting all requests",
			"key_env", cfg.Worker.Auth.KeyEnv)
	}

	counters := &metrics.Counters{}
	handler := api.RequireAPIKey(
		cfg.Worker.Auth.Mode,
		cfg.Worker.Auth.EffectiveHeader(),
		cfg.Worker.Auth.Key(),
		counters,
		api.New(counters, cfg.Worker.Workers),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Worker.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Worker.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("precipgrid-worker shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	srv.Shutdown(shutdownCtx) //nolint:errcheck
}
