// Package config handles configuration loading from YAML files and environment variables.
// Configuration precedence: CLI flags > environment (including .env) > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/memdiag/crashreport/internal/report"
)

// Memory sources accepted by MemoryConfig.Source.
const (
	MemorySourceStorage = "storage"
	MemorySourceRAM     = "ram"
)

// Duration is a wrapper around time.Duration that supports YAML unmarshaling
// from human-readable strings like "15s", "30s", "1m".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		parsed, err := time.ParseDuration(value.Value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value.Value, err)
		}
		d.Duration = parsed
		return nil
	default:
		return fmt.Errorf("unsupported duration format: %v", value.Kind)
	}
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Config holds all crash reporter configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Report     ReportConfig     `yaml:"report"`
	Collectors CollectorsConfig `yaml:"collectors"`
	Memory     MemoryConfig     `yaml:"memory"`
	Store      StoreConfig      `yaml:"store"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig holds report endpoint settings. Sending is off when URL is empty.
type ServerConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// ReportConfig selects which fields a report contains.
type ReportConfig struct {
	Fields     []report.Field `yaml:"fields"`
	Exclude    []report.Field `yaml:"exclude"`
	AppVersion string         `yaml:"app_version"`
}

// CollectorsConfig enables or disables collectors by name.
type CollectorsConfig struct {
	Disabled []string `yaml:"disabled"`
}

// MemoryConfig configures the memory diagnostics collector.
type MemoryConfig struct {
	// Source is "storage" (filesystem of StoragePath) or "ram".
	Source      string `yaml:"source"`
	StoragePath string `yaml:"storage_path"`
	// CommandTimeout bounds dumpsys; "0s" waits forever.
	CommandTimeout Duration `yaml:"command_timeout"`
}

// StoreConfig holds local report store settings.
type StoreConfig struct {
	Dir       string `yaml:"dir"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Report: ReportConfig{
			Fields: report.AllFields(),
		},
		Memory: MemoryConfig{
			Source:         MemorySourceStorage,
			CommandTimeout: Duration{30 * time.Second},
		},
		Store: StoreConfig{
			Dir:       "./reports",
			MaxSizeMB: 50,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// RequestedFields returns the configured report fields as a set.
func (c *Config) RequestedFields() report.FieldSet {
	return report.NewFieldSet(c.Report.Fields...)
}

// SendEnabled reports whether reports should be sent to a server.
func (c *Config) SendEnabled() bool {
	return c.Server.URL != ""
}

// LoadFromBytes parses YAML configuration from a byte slice and merges with defaults.
// Environment variables take highest precedence and override values from the byte slice.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config data: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load reads configuration from a YAML file and merges with defaults.
// If path is empty or the file does not exist, only defaults and environment
// variables are used.
func Load(path string) (*Config, error) {
	if path == "" {
		return LoadFromBytes(nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		return LoadFromBytes(nil)
	}

	return LoadFromBytes(data)
}

// CLIOverrides holds values from command-line flags.
// Empty strings are treated as "not set" and skipped.
type CLIOverrides struct {
	URL   string
	Token string
}

// Locate searches standard config file paths and returns the first one found.
// Returns empty string if no config file exists.
func Locate() string {
	for _, p := range configSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// LoadLayered loads configuration with the full precedence chain:
// CLI flags > env vars > .env file > external YAML file > defaults.
//
// configPath selects the YAML file; "" auto-discovers via Locate.
// envFile names a dotenv file; a missing file is not an error.
func LoadLayered(cli CLIOverrides, configPath, envFile string) (*Config, error) {
	if envFile != "" {
		// godotenv.Load never overrides variables already set in the process.
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	}

	if configPath == "" {
		configPath = Locate()
	}
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}

	if cli.URL != "" {
		cfg.Server.URL = cli.URL
	}
	if cli.Token != "" {
		cfg.Server.Token = cli.Token
	}

	return cfg, nil
}

// WriteConfig serializes the config to a YAML file at the given path.
// Creates parent directories if needed.
func WriteConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}

// applyEnvOverrides applies CR_* environment variable overrides.
func applyEnvOverrides(cfg *Config) error {
	if url := os.Getenv("CR_SERVER_URL"); url != "" {
		cfg.Server.URL = url
	}
	if token := os.Getenv("CR_SERVER_TOKEN"); token != "" {
		cfg.Server.Token = token
	}
	if level := os.Getenv("CR_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if dir := os.Getenv("CR_STORE_DIR"); dir != "" {
		cfg.Store.Dir = dir
	}
	if src := os.Getenv("CR_MEMORY_SOURCE"); src != "" {
		cfg.Memory.Source = src
	}
	if v := os.Getenv("CR_COMMAND_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CR_COMMAND_TIMEOUT: %w", err)
		}
		cfg.Memory.CommandTimeout = Duration{d}
	}
	if v := os.Getenv("CR_STORE_MAX_SIZE_MB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CR_STORE_MAX_SIZE_MB: %w", err)
		}
		cfg.Store.MaxSizeMB = n
	}
	return nil
}

// Validate checks that the configuration is usable. When sending is enabled
// it requires a token and HTTPS for non-localhost server URLs.
func (c *Config) Validate() error {
	switch c.Memory.Source {
	case MemorySourceStorage, MemorySourceRAM:
	default:
		return fmt.Errorf("memory source must be %q or %q (got: %q)", MemorySourceStorage, MemorySourceRAM, c.Memory.Source)
	}
	if c.Memory.CommandTimeout.Duration < 0 {
		return fmt.Errorf("memory command timeout must not be negative")
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("store directory is required")
	}
	if len(c.Report.Fields) == 0 {
		return fmt.Errorf("at least one report field is required")
	}

	if !c.SendEnabled() {
		return nil
	}
	if c.Server.Token == "" {
		return fmt.Errorf("server token is required when a server URL is set")
	}
	if !strings.HasPrefix(c.Server.URL, "https://") {
		// Allow localhost for development
		if !strings.Contains(c.Server.URL, "localhost") && !strings.Contains(c.Server.URL, "127.0.0.1") {
			return fmt.Errorf("server URL must use HTTPS (got: %s)", c.Server.URL)
		}
	}
	return nil
}
