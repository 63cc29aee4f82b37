// ABOUTME: Configuration loading for the ragchat client
// ABOUTME: TOML with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the complete client configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Ingest  IngestConfig  `toml:"ingest"`
	Reports ReportsConfig `toml:"reports"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig points at the remote assistant service.
type ServerConfig struct {
	URL string `toml:"url"`

	RequestTimeout    time.Duration `toml:"-"`
	RequestTimeoutRaw string        `toml:"request_timeout"`
}

// IngestConfig tunes the post-upload settle polling.
type IngestConfig struct {
	PollInterval    time.Duration `toml:"-"`
	PollIntervalRaw string        `toml:"poll_interval"`
	PollTimeout     time.Duration `toml:"-"`
	PollTimeoutRaw  string        `toml:"poll_timeout"`
}

// ReportsConfig controls where generated PDFs and transcripts land.
type ReportsConfig struct {
	OutputDir string `toml:"output_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads config from the given path, expanding ${VAR} environment
// variables and parsing duration strings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if _, err := toml.Decode(expanded, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.parseDurations(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.URL == "" {
		c.Server.URL = "http://localhost:8000"
	}
	if c.Server.RequestTimeoutRaw == "" {
		c.Server.RequestTimeoutRaw = "120s"
	}
	if c.Ingest.PollIntervalRaw == "" {
		c.Ingest.PollIntervalRaw = "2s"
	}
	if c.Ingest.PollTimeoutRaw == "" {
		c.Ingest.PollTimeoutRaw = "60s"
	}
	if c.Reports.OutputDir == "" {
		c.Reports.OutputDir = "."
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	// Raw values are authoritative; keep parsed fields in sync.
	c.Server.RequestTimeout, _ = time.ParseDuration(c.Server.RequestTimeoutRaw)
	c.Ingest.PollInterval, _ = time.ParseDuration(c.Ingest.PollIntervalRaw)
	c.Ingest.PollTimeout, _ = time.ParseDuration(c.Ingest.PollTimeoutRaw)
}

func (c *Config) parseDurations() error {
	var err error
	if c.Server.RequestTimeout, err = time.ParseDuration(c.Server.RequestTimeoutRaw); err != nil {
		return fmt.Errorf("parsing server.request_timeout: %w", err)
	}
	if c.Ingest.PollInterval, err = time.ParseDuration(c.Ingest.PollIntervalRaw); err != nil {
		return fmt.Errorf("parsing ingest.poll_interval: %w", err)
	}
	if c.Ingest.PollTimeout, err = time.ParseDuration(c.Ingest.PollTimeoutRaw); err != nil {
		return fmt.Errorf("parsing ingest.poll_timeout: %w", err)
	}
	return nil
}

// Validate checks that required fields are present and sane.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Server.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server.url must be an absolute URL, got %q", c.Server.URL)
	}
	if c.Ingest.PollInterval <= 0 {
		return fmt.Errorf("ingest.poll_interval must be positive")
	}
	if c.Ingest.PollTimeout < c.Ingest.PollInterval {
		return fmt.Errorf("ingest.poll_timeout must be at least ingest.poll_interval")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json")
	}
	return nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}
