package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Dump    DumpConfig    `yaml:"dump"`
	Metrics MetricsConfig `yaml:"metrics"`
	Follow  FollowConfig  `yaml:"follow"`
}

// LoggingConfig defines logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// DumpConfig controls how log files are discovered and written out
type DumpConfig struct {
	Format      string `yaml:"format"`      // csv, tsv, jsonl
	Compression string `yaml:"compression"` // none, gzip, snappy, zstd, lz4
	Pattern     string `yaml:"pattern"`
	Sort        *bool  `yaml:"sort,omitempty"`
	Output      string `yaml:"output,omitempty"` // empty means stdout
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	// Textfile is a node_exporter textfile collector path written after each run
	Textfile string `yaml:"textfile,omitempty"`
}

// FollowConfig holds follow-mode configuration
type FollowConfig struct {
	Existing   bool   `yaml:"existing"`
	Checkpoint string `yaml:"checkpoint,omitempty"`
}

// Default values
const (
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "console"
	DefaultFormat      = "csv"
	DefaultCompression = "none"
	DefaultPattern     = "vcslog-*"
)

// Load loads configuration from a YAML file with environment variable overrides
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadOptional loads path if it exists and returns defaults if it does not.
// Read, parse and validation errors are still returned.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// applyDefaults sets default values for unspecified configuration
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Dump.Format == "" {
		c.Dump.Format = DefaultFormat
	}
	if c.Dump.Compression == "" {
		c.Dump.Compression = DefaultCompression
	}
	if c.Dump.Pattern == "" {
		c.Dump.Pattern = DefaultPattern
	}
	if c.Dump.Sort == nil {
		sorted := true
		c.Dump.Sort = &sorted
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true, "console": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	validFormats := map[string]bool{
		"csv": true, "tsv": true, "jsonl": true,
	}
	if !validFormats[c.Dump.Format] {
		return fmt.Errorf("invalid dump format: %s", c.Dump.Format)
	}

	validCompressions := map[string]bool{
		"none": true, "gzip": true, "snappy": true, "zstd": true, "lz4": true,
	}
	if !validCompressions[c.Dump.Compression] {
		return fmt.Errorf("invalid dump compression: %s", c.Dump.Compression)
	}

	return nil
}

// SortFiles reports whether discovered log files are sorted by name
func (c *Config) SortFiles() bool {
	return c.Dump.Sort == nil || *c.Dump.Sort
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
