// Package config provides configuration loading and management for mockmes.
//
// Configuration is loaded using Viper, supporting YAML or JSON config files and
// environment variable overrides. The package provides defaults that match the
// historical mock MES behavior (port 5000, "ROUTING"/"SFCMOCK" ids, seeded
// counts), so no config file is needed to get started.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [ServerConfig] and [ClientConfig] cover the HTTP transport
//   - [CatalogConfig], [SFCConfig] and [SeedConfig] shape the store
//   - [ClaudeConfig] contains Claude CLI binary settings
//
// Configuration priority (highest to lowest):
//  1. Environment variables (MOCKMES_ prefix, dots become underscores,
//     e.g. MOCKMES_SERVER_PORT)
//  2. Config file specified by MOCKMES_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/mockmes/config.yaml
//     - macOS: ~/Library/Application Support/mockmes/config.yaml
//     - Windows: %APPDATA%\mockmes\config.yaml
//  4. ./mockmes.yaml
//  5. [DefaultConfig] defaults
package config

import (
	"fmt"
	"log/slog"
	"time"
)

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used
// throughout the application. Use [DefaultConfig] to get the defaults.
type Config struct {
	// Server configures the HTTP server started by "mockmes serve".
	Server ServerConfig `mapstructure:"server"`

	// Client configures how client commands reach a running server.
	Client ClientConfig `mapstructure:"client"`

	// Catalog configures routing ids and default operation counts.
	Catalog CatalogConfig `mapstructure:"catalog"`

	// SFC configures shop floor card ids.
	SFC SFCConfig `mapstructure:"sfc"`

	// Status configures how the SFC status is derived.
	Status StatusConfig `mapstructure:"status"`

	// Seed configures the mock data loaded at server start.
	Seed SeedConfig `mapstructure:"seed"`

	// Log configures structured logging.
	Log LogConfig `mapstructure:"log"`

	// Claude contains Claude CLI settings used by the chat fallback resolver.
	Claude ClaudeConfig `mapstructure:"claude"`

	// Output controls terminal rendering.
	Output OutputConfig `mapstructure:"output"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	// Host is the interface to bind. Default: "127.0.0.1"
	Host string `mapstructure:"host"`

	// Port is the TCP port. 0 picks a free port. Default: 5000
	Port int `mapstructure:"port"`

	// ReadTimeout bounds reading a request. Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout bounds writing a response. Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout bounds keep-alive connections. Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

// ClientConfig configures the HTTP client used by client commands.
type ClientConfig struct {
	// BaseURL is the server address. Default: "http://127.0.0.1:5000"
	BaseURL string `mapstructure:"base_url"`

	// Timeout bounds each request. Default: 5s
	Timeout time.Duration `mapstructure:"timeout"`
}

// RangeConfig is an inclusive operation-count range.
type RangeConfig struct {
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

// CatalogConfig configures the routing catalog.
type CatalogConfig struct {
	// RoutingPrefix is prepended to routing ordinals. Default: "ROUTING"
	RoutingPrefix string `mapstructure:"routing_prefix"`

	// AdHocRange is the count range for routings created without an
	// explicit count. Default: 1-15
	AdHocRange RangeConfig `mapstructure:"adhoc_range"`

	// SeedRange is the count range for seeded routings. Default: 5-10
	SeedRange RangeConfig `mapstructure:"seed_range"`
}

// SFCConfig configures the state machine.
type SFCConfig struct {
	// Prefix is prepended to SFC ordinals. Default: "SFCMOCK"
	Prefix string `mapstructure:"prefix"`
}

// StatusConfig configures status derivation.
type StatusConfig struct {
	// BypassedCountsAsDone lets an SFC whose operations are all done or
	// bypassed derive to Done. Default: false
	BypassedCountsAsDone bool `mapstructure:"bypassed_counts_as_done"`
}

// SeedConfig configures the mock data created at server start.
type SeedConfig struct {
	// Enabled turns seeding on. Default: true
	Enabled bool `mapstructure:"enabled"`

	// Routings is the number of generated routings. Default: 3
	Routings int `mapstructure:"routings"`

	// SFCs is the number of SFCs, each assigned a random routing. Default: 5
	SFCs int `mapstructure:"sfcs"`

	// Manifest is an optional CSV or YAML file of named routings registered
	// before the generated ones.
	Manifest string `mapstructure:"manifest"`
}

// LogConfig configures the slog logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: "info"
	Level string `mapstructure:"level"`

	// Format is "text" or "json". Default: "text"
	Format string `mapstructure:"format"`
}

// ClaudeConfig contains Claude CLI configuration.
type ClaudeConfig struct {
	// BinaryPath is the path to the Claude CLI binary.
	// Default: "claude" (found via PATH)
	BinaryPath string `mapstructure:"binary_path"`

	// OutputFormat is the Claude CLI output format. Default: "stream-json"
	OutputFormat string `mapstructure:"output_format"`

	// Model is passed as --model when set.
	Model string `mapstructure:"model"`
}

// OutputConfig controls how results are rendered in the terminal.
type OutputConfig struct {
	// Color enables colored output. Default: true
	Color bool `mapstructure:"color"`
}

// DefaultConfig returns a new [Config] with the defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "127.0.0.1",
			Port:         5000,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Client: ClientConfig{
			BaseURL: "http://127.0.0.1:5000",
			Timeout: 5 * time.Second,
		},
		Catalog: CatalogConfig{
			RoutingPrefix: "ROUTING",
			AdHocRange:    RangeConfig{Min: 1, Max: 15},
			SeedRange:     RangeConfig{Min: 5, Max: 10},
		},
		SFC: SFCConfig{Prefix: "SFCMOCK"},
		Seed: SeedConfig{
			Enabled:  true,
			Routings: 3,
			SFCs:     5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Claude: ClaudeConfig{
			BinaryPath:   "claude",
			OutputFormat: "stream-json",
		},
		Output: OutputConfig{Color: true},
	}
}

// Validate checks values that would otherwise fail deep inside the store or
// the server.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Catalog.RoutingPrefix == "" {
		return fmt.Errorf("catalog.routing_prefix must not be empty")
	}
	if c.SFC.Prefix == "" {
		return fmt.Errorf("sfc.prefix must not be empty")
	}
	if c.Seed.Routings < 0 || c.Seed.SFCs < 0 {
		return fmt.Errorf("seed counts must not be negative")
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
