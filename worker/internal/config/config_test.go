package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "worker.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeConfig(t, `dispatcher_only: true
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Worker.Port != DefaultPort {
		t.Errorf("port: got %d, want %d", cfg.Worker.Port, DefaultPort)
	}
	if cfg.Worker.Level() != slog.LevelInfo {
		t.Errorf("level: got %v, want info", cfg.Worker.Level())
	}
	if cfg.Worker.Workers != 0 {
		t.Errorf("workers: got %d, want 0", cfg.Worker.Workers)
	}
	if h := cfg.Worker.Auth.EffectiveHeader(); h != DefaultAPIKeyHeader {
		t.Errorf("header: got %q, want %q", h, DefaultAPIKeyHeader)
	}
}

func TestLoad_Full(t *testing.T) {
	t.Setenv("PRECIP_WORKER_KEY", "s3cret")
	p := writeConfig(t, `worker:
  port: 5100
  log_level: DEBUG
  workers: 4
  auth:
    mode: apikey
    key_env: PRECIP_WORKER_KEY
    header: X-Worker-Key
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	w := cfg.Worker
	if w.Port != 5100 || w.Workers != 4 {
		t.Errorf("port/workers: got %d/%d", w.Port, w.Workers)
	}
	if w.Level() != slog.LevelDebug {
		t.Errorf("level: got %v, want debug", w.Level())
	}
	if w.Auth.Key() != "s3cret" {
		t.Errorf("key: got %q", w.Auth.Key())
	}
	if w.Auth.EffectiveHeader() != "X-Worker-Key" {
		t.Errorf("header: got %q", w.Auth.EffectiveHeader())
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"port", "worker:\n  port: 70000\n", "worker.port"},
		{"level", "worker:\n  log_level: loud\n", "worker.log_level"},
		{"workers", "worker:\n  workers: -1\n", "worker.workers"},
		{"auth mode", "worker:\n  auth:\n    mode: jwt\n", "worker.auth.mode"},
		{"apikey without env", "worker:\n  auth:\n    mode: apikey\n", "key_env"},
		{"yaml", "worker: [\n", "parse yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWatchLevel_Reload(t *testing.T) {
	p := writeConfig(t, "worker:\n  log_level: info\n")

	var lv slog.LevelVar
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WatchLevel(ctx, p, &lv) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	// An invalid file is ignored.
	if err := os.WriteFile(p, []byte("worker:\n  log_level: loud\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if lv.Level() != slog.LevelInfo {
		t.Fatalf("level changed on invalid file: %v", lv.Level())
	}

	if err := os.WriteFile(p, []byte("worker:\n  log_level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for lv.Level() != slog.LevelDebug && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if lv.Level() != slog.LevelDebug {
		t.Errorf("level: got %v, want debug", lv.Level())
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestLoad_ShippedExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "config", "worker.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Worker.Port != 5000 || cfg.Worker.Auth.Mode != "apikey" {
		t.Errorf("unexpected example config: %+v", cfg.Worker)
	}
}
