package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/precipgrid/precipgrid/dispatcher/internal/grid"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultResolution    = 0.01
	DefaultStations      = 80
	DefaultSeed          = 42
	DefaultPower         = 2.0
	DefaultBatchSize     = 20
	DefaultHealthTimeout = 5 * time.Second
	DefaultBatchTimeout  = time.Hour
	DefaultOutput        = "precipitation.bin"
	DefaultAPIKeyHeader  = "X-API-Key"
)

// Config is the dispatcher configuration.
type Config struct {
	// Endpoints are base URLs of compute workers, e.g. http://10.0.0.5:5000.
	Endpoints []string `yaml:"endpoints"`

	// Auth configures how the dispatcher authenticates to every endpoint.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options shared by all endpoints.
	TLS TLSConfig `yaml:"tls"`

	// Region is the area to interpolate.
	Region Region `yaml:"region"`

	// Resolution is the pixel size in degrees.
	Resolution float64 `yaml:"resolution"`

	// Stations is the number of synthetic observation stations.
	Stations int `yaml:"stations"`

	// Seed drives station generation.
	Seed int64 `yaml:"seed"`

	// Power is the IDW distance exponent.
	Power float64 `yaml:"power"`

	// BatchSize is the number of grid rows per batch.
	BatchSize int `yaml:"batch_size"`

	// MaxConcurrency caps in-flight batches. 0 means one per healthy endpoint.
	MaxConcurrency int `yaml:"max_concurrency"`

	// HealthTimeout bounds each GET /health probe.
	HealthTimeout time.Duration `yaml:"health_timeout"`

	// BatchTimeout bounds each POST /process_batch call.
	BatchTimeout time.Duration `yaml:"batch_timeout"`

	// Output is the path of the raster file. The ENVI header is written next to it.
	Output string `yaml:"output"`
}

// Region is a named bounding box.
type Region struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	grid.Bounds `yaml:",inline"`
}

// AuthConfig specifies the authentication mode used for endpoints.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | none.
	Mode string `yaml:"mode"`

	// mTLS fields: used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Header is the HTTP header name the API key is sent in. Defaults to X-API-Key.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv is the name of the environment variable that holds the bearer token.
	TokenEnv string `yaml:"token_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// EffectiveHeader returns Header or the default API key header.
func (a AuthConfig) EffectiveHeader() string {
	if a.Header == "" {
		return DefaultAPIKeyHeader
	}
	return a.Header
}

// TLSConfig holds TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Resolution:    DefaultResolution,
		Stations:      DefaultStations,
		Seed:          DefaultSeed,
		Power:         DefaultPower,
		BatchSize:     DefaultBatchSize,
		HealthTimeout: DefaultHealthTimeout,
		BatchTimeout:  DefaultBatchTimeout,
		Output:        DefaultOutput,
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if len(cfg.Endpoints) == 0 {
		return fmt.Errorf("at least one endpoint is required")
	}
	for i, ep := range cfg.Endpoints {
		u, err := url.Parse(ep)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("endpoints[%d]: %q is not an http(s) URL", i, ep)
		}
	}
	if err := cfg.Region.Validate(); err != nil {
		return fmt.Errorf("region %q: %w", cfg.Region.Name, err)
	}
	if cfg.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive")
	}
	if cfg.Stations < 0 {
		return fmt.Errorf("stations must not be negative")
	}
	if cfg.Power < 0 {
		return fmt.Errorf("power must not be negative")
	}
	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive")
	}
	if cfg.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must not be negative")
	}
	if cfg.HealthTimeout <= 0 {
		return fmt.Errorf("health_timeout must be positive")
	}
	if cfg.BatchTimeout <= 0 {
		return fmt.Errorf("batch_timeout must be positive")
	}
	if cfg.Output == "" {
		return fmt.Errorf("output is required")
	}
	switch cfg.Auth.Mode {
	case "mtls", "apikey", "bearer", "none", "":
	default:
		return fmt.Errorf("unknown auth mode %q", cfg.Auth.Mode)
	}
	if cfg.Auth.Mode == "mtls" && (cfg.Auth.CertFile == "" || cfg.Auth.KeyFile == "") {
		return fmt.Errorf("auth mode mtls requires cert_file and key_file")
	}
	return nil
}
