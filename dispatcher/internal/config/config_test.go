package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const regionYAML = `
region:
  name: Massachusetts
  west: -73.5
  east: -69.9
  south: 41.2
  north: 42.9
`

func TestLoad_Valid(t *testing.T) {
	yaml := `
endpoints:
  - "http://10.0.0.5:5000"
  - "http://10.0.0.6:5000"
resolution: 0.05
stations: 12
power: 3
batch_size: 8
max_concurrency: 4
health_timeout: 2s
batch_timeout: 30m
output: /tmp/out.bin
auth:
  mode: apikey
  key_env: WORKER_KEY
` + regionYAML
	cfg := loadFromString(t, yaml)

	if len(cfg.Endpoints) != 2 || cfg.Endpoints[1] != "http://10.0.0.6:5000" {
		t.Errorf("endpoints: got %v", cfg.Endpoints)
	}
	if cfg.Region.Name != "Massachusetts" || cfg.Region.West != -73.5 || cfg.Region.North != 42.9 {
		t.Errorf("region: got %+v", cfg.Region)
	}
	if cfg.Resolution != 0.05 || cfg.Stations != 12 || cfg.Power != 3 {
		t.Errorf("grid settings: got res=%v stations=%d power=%v", cfg.Resolution, cfg.Stations, cfg.Power)
	}
	if cfg.BatchSize != 8 || cfg.MaxConcurrency != 4 {
		t.Errorf("dispatch settings: got batch=%d conc=%d", cfg.BatchSize, cfg.MaxConcurrency)
	}
	if cfg.HealthTimeout != 2*time.Second || cfg.BatchTimeout != 30*time.Minute {
		t.Errorf("timeouts: got %v %v", cfg.HealthTimeout, cfg.BatchTimeout)
	}
	if cfg.Auth.EffectiveHeader() != DefaultAPIKeyHeader {
		t.Errorf("header: got %q", cfg.Auth.EffectiveHeader())
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadFromString(t, "endpoints: [\"http://localhost:5000\"]\n"+regionYAML)

	if cfg.Resolution != DefaultResolution {
		t.Errorf("default resolution: got %v", cfg.Resolution)
	}
	if cfg.Stations != DefaultStations || cfg.Seed != DefaultSeed {
		t.Errorf("default stations/seed: got %d/%d", cfg.Stations, cfg.Seed)
	}
	if cfg.Power != DefaultPower || cfg.BatchSize != DefaultBatchSize {
		t.Errorf("default power/batch: got %v/%d", cfg.Power, cfg.BatchSize)
	}
	if cfg.MaxConcurrency != 0 {
		t.Errorf("default max_concurrency: got %d, want 0", cfg.MaxConcurrency)
	}
	if cfg.HealthTimeout != DefaultHealthTimeout || cfg.BatchTimeout != DefaultBatchTimeout {
		t.Errorf("default timeouts: got %v/%v", cfg.HealthTimeout, cfg.BatchTimeout)
	}
	if cfg.Output != DefaultOutput {
		t.Errorf("default output: got %q", cfg.Output)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no endpoints", regionYAML},
		{"bad endpoint", "endpoints: [\"10.0.0.5:5000\"]\n" + regionYAML},
		{"no region", "endpoints: [\"http://a:1\"]\n"},
		{"inverted region", "endpoints: [\"http://a:1\"]\nregion: {west: 1, east: 0, south: 0, north: 1}\n"},
		{"zero batch", "endpoints: [\"http://a:1\"]\nbatch_size: 0\n" + regionYAML},
		{"negative concurrency", "endpoints: [\"http://a:1\"]\nmax_concurrency: -1\n" + regionYAML},
		{"unknown auth", "endpoints: [\"http://a:1\"]\nauth: {mode: magic}\n" + regionYAML},
		{"mtls without cert", "endpoints: [\"https://a:1\"]\nauth: {mode: mtls}\n" + regionYAML},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := loadStringErr(t, tc.yaml); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAuthConfig_KeyAndToken(t *testing.T) {
	t.Setenv("TEST_WORKER_KEY", "supersecret")
	t.Setenv("TEST_WORKER_TOKEN", "mytoken")
	a := AuthConfig{KeyEnv: "TEST_WORKER_KEY", TokenEnv: "TEST_WORKER_TOKEN", Header: "X-Key"}
	if got := a.Key(); got != "supersecret" {
		t.Errorf("Key(): got %q", got)
	}
	if got := a.Token(); got != "mytoken" {
		t.Errorf("Token(): got %q", got)
	}
	if got := a.EffectiveHeader(); got != "X-Key" {
		t.Errorf("EffectiveHeader(): got %q", got)
	}
	if got := (AuthConfig{}).Key(); got != "" {
		t.Errorf("Key() with no KeyEnv: got %q, want empty", got)
	}
}

// loadFromString writes yaml to a temp file and calls Load, failing on error.
func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	cfg, err := loadStringErr(t, content)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	return cfg
}

// loadStringErr writes yaml to a temp file and calls Load, returning any error.
func loadStringErr(t *testing.T, content string) (*Config, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dispatcher.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return Load(path)
}

func TestLoad_ShippedExample(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "config", "dispatcher.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Endpoints) != 3 || cfg.BatchSize != 20 || cfg.BatchTimeout != time.Hour {
		t.Errorf("unexpected example config: %+v", cfg)
	}
}
