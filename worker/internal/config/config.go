package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default values for the worker configuration.
const (
	DefaultPort         = 5000
	DefaultLogLevel     = "info"
	DefaultAPIKeyHeader = "X-API-Key"
)

// Config holds the worker configuration parsed from the `worker:` section of
// the config file.
type Config struct {
	Worker WorkerConfig `yaml:"worker"`
}

// WorkerConfig holds all worker-side settings.
type WorkerConfig struct {
	// Port is the HTTP listen port (default 5000).
	Port int `yaml:"port"`

	// LogLevel is one of: debug | info | warn | error.
	LogLevel string `yaml:"log_level"`

	// Workers is the number of goroutines interpolating rows of one batch.
	// 0 means runtime.NumCPU().
	Workers int `yaml:"workers"`

	// Auth configures how the worker authenticates incoming requests.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls request authentication on the worker.
type AuthConfig struct {
	// Mode is one of: apikey | none.
	Mode string `yaml:"mode"`

	// KeyEnv is the name of the environment variable that holds the expected API key.
	KeyEnv string `yaml:"key_env"`

	// Header is the HTTP header carrying the key. Defaults to "X-API-Key".
	Header string `yaml:"header"`
}

// Key returns the expected API key resolved from the environment.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// EffectiveHeader returns the configured header name, or the default.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header != "" {
		return a.Header
	}
	return DefaultAPIKeyHeader
}

// Level returns the slog level named by LogLevel.
func (w WorkerConfig) Level() slog.Level {
	lvl, _ := parseLevel(w.LogLevel)
	return lvl
}

// Load reads and parses the config file at path.
// Missing fields are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("worker config: read %q: %w", path, err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("worker config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("worker config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		Worker: WorkerConfig{
			Port:     DefaultPort,
			LogLevel: DefaultLogLevel,
		},
	}
}

func validate(cfg *Config) error {
	w := cfg.Worker
	if w.Port <= 0 || w.Port > 65535 {
		return fmt.Errorf("worker.port %d is out of range [1, 65535]", w.Port)
	}
	if _, err := parseLevel(w.LogLevel); err != nil {
		return err
	}
	if w.Workers < 0 {
		return fmt.Errorf("worker.workers must not be negative")
	}
	switch w.Auth.Mode {
	case "apikey", "none", "":
	default:
		return fmt.Errorf("worker.auth.mode %q unknown: want apikey|none", w.Auth.Mode)
	}
	if w.Auth.Mode == "apikey" && w.Auth.KeyEnv == "" {
		return fmt.Errorf("worker.auth.key_env is required when mode is apikey")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("worker.log_level %q unknown: want debug|info|warn|error", s)
	}
	return lvl, nil
}
