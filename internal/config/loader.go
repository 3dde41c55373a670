package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "MOCKMES"

	// ConfigPathEnv names a config file that replaces the search path.
	ConfigPathEnv = "MOCKMES_CONFIG_PATH"

	appDirName     = "mockmes"
	configFileName = "config.yaml"
	localFileName  = "mockmes.yaml"
)

// Loader handles Viper-based configuration loading.
//
// Create with [NewLoader] or [NewLoaderWithFs].
type Loader struct {
	v  *viper.Viper
	fs afero.Fs
}

// NewLoader creates a Loader reading from the OS filesystem.
func NewLoader() *Loader {
	return NewLoaderWithFs(afero.NewOsFs())
}

// NewLoaderWithFs creates a Loader reading config files from fs.
func NewLoaderWithFs(fs afero.Fs) *Loader {
	v := viper.New()
	v.SetFs(fs)
	return &Loader{v: v, fs: fs}
}

// Load resolves the config file (see the package documentation for the
// search order), applies environment overrides and validates the result.
// A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	path, err := l.findConfigFile()
	if err != nil {
		return nil, err
	}
	return l.load(path)
}

// LoadFromFile loads configuration from path, which must exist. The format
// follows the file extension.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	return l.load(path)
}

func (l *Loader) load(path string) (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()
	// Short aliases for the two settings most often overridden by hand.
	_ = l.v.BindEnv("claude.binary_path", "MOCKMES_CLAUDE_BINARY_PATH", "MOCKMES_CLAUDE_PATH")
	_ = l.v.BindEnv("client.base_url", "MOCKMES_CLIENT_BASE_URL", "MOCKMES_SERVER_URL")

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed returns the file the last load read, or "" when only
// defaults and environment were used.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	l.v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	l.v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	l.v.SetDefault("client.base_url", d.Client.BaseURL)
	l.v.SetDefault("client.timeout", d.Client.Timeout)

	l.v.SetDefault("catalog.routing_prefix", d.Catalog.RoutingPrefix)
	l.v.SetDefault("catalog.adhoc_range.min", d.Catalog.AdHocRange.Min)
	l.v.SetDefault("catalog.adhoc_range.max", d.Catalog.AdHocRange.Max)
	l.v.SetDefault("catalog.seed_range.min", d.Catalog.SeedRange.Min)
	l.v.SetDefault("catalog.seed_range.max", d.Catalog.SeedRange.Max)

	l.v.SetDefault("sfc.prefix", d.SFC.Prefix)
	l.v.SetDefault("status.bypassed_counts_as_done", d.Status.BypassedCountsAsDone)

	l.v.SetDefault("seed.enabled", d.Seed.Enabled)
	l.v.SetDefault("seed.routings", d.Seed.Routings)
	l.v.SetDefault("seed.sfcs", d.Seed.SFCs)
	l.v.SetDefault("seed.manifest", d.Seed.Manifest)

	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)

	l.v.SetDefault("claude.binary_path", d.Claude.BinaryPath)
	l.v.SetDefault("claude.output_format", d.Claude.OutputFormat)
	l.v.SetDefault("claude.model", d.Claude.Model)

	l.v.SetDefault("output.color", d.Output.Color)
}

// findConfigFile returns the first existing candidate, or "" if none exists.
// MOCKMES_CONFIG_PATH is returned as is so a typo surfaces as a read error.
func (l *Loader) findConfigFile() (string, error) {
	if path := os.Getenv(ConfigPathEnv); path != "" {
		return path, nil
	}

	var candidates []string
	if path, err := DefaultConfigPath(); err == nil {
		candidates = append(candidates, path)
	}
	candidates = append(candidates, localFileName)

	for _, c := range candidates {
		ok, err := afero.Exists(l.fs, c)
		if err != nil {
			return "", fmt.Errorf("error checking config file %s: %w", c, err)
		}
		if ok {
			return c, nil
		}
	}
	return "", nil
}

// MustLoad loads configuration from the default locations and panics on
// error. Intended for tests and examples.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// ConfigDir returns the mockmes directory under the platform user config
// directory.
func ConfigDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, appDirName), nil
}

// DefaultConfigPath returns the config file path inside [ConfigDir].
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// EnsureConfigDir creates [ConfigDir] on fs if it does not exist.
func EnsureConfigDir(fs afero.Fs) error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}
