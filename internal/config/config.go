// Package config loads the caseprefetch configuration from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	prefetch "github.com/bragbook2/brag-book-gallery-sub005"
)

// Environment variables that override file values.
const (
	EnvSessionToken = "PREFETCH_SESSION_TOKEN" //nolint:gosec // variable name, not a credential
	EnvBaseURL      = "PREFETCH_BASE_URL"
	EnvProxyURL     = "PREFETCH_PROXY_URL"
	EnvLogLevel     = "PREFETCH_LOG_LEVEL"
)

// Common configuration errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported config file format")
	ErrInvalidConfig     = errors.New("invalid configuration")
)

// BackendConfig holds the two call paths to the case detail source.
type BackendConfig struct {
	BaseURL        string        `yaml:"base_url" toml:"base_url"`
	ProxyURL       string        `yaml:"proxy_url" toml:"proxy_url"`
	ProxyAction    string        `yaml:"proxy_action" toml:"proxy_action"`
	SessionToken   string        `yaml:"session_token" toml:"session_token"`
	RequestTimeout time.Duration `yaml:"request_timeout" toml:"request_timeout"` // secondary transport only
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"` // "console" or "json"
}

// Config holds the prefetch tunables and the backend settings.
type Config struct {
	Concurrency     int           `yaml:"concurrency" toml:"concurrency"`
	HoverDelay      time.Duration `yaml:"hover_delay" toml:"hover_delay"`
	ViewportMargin  float64       `yaml:"viewport_margin" toml:"viewport_margin"`
	PrimaryTimeout  time.Duration `yaml:"primary_timeout" toml:"primary_timeout"`
	FailureLogSize  int           `yaml:"failure_log_size" toml:"failure_log_size"`
	PlaceholderTick time.Duration `yaml:"placeholder_tick" toml:"placeholder_tick"`
	Debug           bool          `yaml:"debug" toml:"debug"` // cache contract violations panic

	Backend BackendConfig `yaml:"backend" toml:"backend"`
	Logging LoggingConfig `yaml:"logging" toml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Concurrency:     prefetch.DefaultConcurrency,
		HoverDelay:      prefetch.DefaultHoverDelay,
		ViewportMargin:  prefetch.DefaultViewportMargin,
		PrimaryTimeout:  prefetch.DefaultPrimaryTimeout,
		FailureLogSize:  prefetch.DefaultFailureLogSize,
		PlaceholderTick: prefetch.DefaultPlaceholderTick,
		Backend: BackendConfig{
			RequestTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and validates.
// An empty path returns the defaults with environment overrides.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LoadWithEnv is Load with an explicit environment lookup for testability.
func LoadWithEnv(path string, lookupEnv func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := cfg.decode(filepath.Ext(path), data); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	cfg.applyEnv(lookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) decode(ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, c)
	case ".toml":
		_, err := toml.Decode(string(data), c)
		return err
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

func (c *Config) applyEnv(lookupEnv func(string) (string, bool)) {
	if v, ok := lookupEnv(EnvSessionToken); ok {
		c.Backend.SessionToken = v
	}

	if v, ok := lookupEnv(EnvBaseURL); ok && v != "" {
		c.Backend.BaseURL = v
	}

	if v, ok := lookupEnv(EnvProxyURL); ok && v != "" {
		c.Backend.ProxyURL = v
	}

	if v, ok := lookupEnv(EnvLogLevel); ok && v != "" {
		c.Logging.Level = v
	}
}

// Validate checks value ranges. Backend URLs are checked by RequireBackend.
func (c *Config) Validate() error {
	var errs []error

	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency))
	}

	if c.HoverDelay < 0 {
		errs = append(errs, fmt.Errorf("hover_delay must be >= 0, got %s", c.HoverDelay))
	}

	if c.ViewportMargin < 0 {
		errs = append(errs, fmt.Errorf("viewport_margin must be >= 0, got %g", c.ViewportMargin))
	}

	if c.PrimaryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("primary_timeout must be > 0, got %s", c.PrimaryTimeout))
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// RequireBackend checks that both transports can be built.
func (c *Config) RequireBackend() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("%w: backend.base_url is required", ErrInvalidConfig)
	}

	if c.Backend.ProxyURL == "" {
		return fmt.Errorf("%w: backend.proxy_url is required", ErrInvalidConfig)
	}

	return nil
}

// Options converts the tunables into session options.
func (c *Config) Options(logger zerolog.Logger) []prefetch.Option {
	return []prefetch.Option{
		prefetch.WithLogger(logger),
		prefetch.WithConcurrency(c.Concurrency),
		prefetch.WithHoverDelay(c.HoverDelay),
		prefetch.WithViewportMargin(c.ViewportMargin),
		prefetch.WithPrimaryTimeout(c.PrimaryTimeout),
		prefetch.WithFailureLogSize(c.FailureLogSize),
		prefetch.WithPlaceholderTick(c.PlaceholderTick),
		prefetch.WithDebug(c.Debug),
	}
}
