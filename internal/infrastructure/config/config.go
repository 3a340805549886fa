package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodegraph/internal/shared/paths"
)

// FileEnv names the environment variable pointing at an optional config file.
const FileEnv = "CONFIG_FILE"

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server" toml:"server"`
	Extensions ExtensionsConfig `yaml:"extensions" toml:"extensions"`
	App        AppConfig        `yaml:"app" toml:"app"`
	Logging    LogConfig        `yaml:"logging" toml:"logging"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" toml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" yaml:"port" toml:"port"`
	Host string `envconfig:"HOST" yaml:"host" toml:"host"`
}

// ExtensionsConfig holds install roots, upload limits and watcher settings.
type ExtensionsConfig struct {
	ExtensionsPath string   `envconfig:"EXTENSIONS_PATH" yaml:"extensions_path" toml:"extensions_path"`
	NodesPath      string   `envconfig:"NODES_PATH" yaml:"nodes_path" toml:"nodes_path"`
	PublicURL      string   `envconfig:"PUBLIC_URL" yaml:"public_url" toml:"public_url"`
	MaxUploadMB    int      `envconfig:"MAX_UPLOAD_MB" yaml:"max_upload_mb" toml:"max_upload_mb"`
	MaxFileMB      int      `envconfig:"MAX_FILE_MB" yaml:"max_file_mb" toml:"max_file_mb"`
	WatchEnabled   bool     `envconfig:"WATCH_ENABLED" yaml:"watch_enabled" toml:"watch_enabled"`
	WatchDebounce  Duration `envconfig:"WATCH_DEBOUNCE" yaml:"watch_debounce" toml:"watch_debounce"`
}

// AppConfig identifies the host application.
type AppConfig struct {
	Name    string `envconfig:"APP_NAME" yaml:"name" toml:"name"`
	Version string `envconfig:"APP_VERSION" yaml:"version" toml:"version"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"LOG_DEV" yaml:"development" toml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" yaml:"enabled" toml:"enabled"`
}

// Duration decodes from strings such as "500ms" in env vars and config files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Load builds configuration from defaults, then the file named by CONFIG_FILE,
// then environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if file := os.Getenv(FileEnv); file != "" {
		if err := cfg.LoadFile(file); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		cfg = Default()
		cfg.resolve()
	}
	return cfg
}

// LoadFile overlays a YAML or TOML file onto cfg, chosen by extension.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file type %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Default returns default configuration. Install roots are left empty and
// derived from App.Name when the configuration is loaded.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Extensions: ExtensionsConfig{
			MaxUploadMB:   50,
			MaxFileMB:     10,
			WatchEnabled:  true,
			WatchDebounce: Duration(500 * time.Millisecond),
		},
		App: AppConfig{
			Name:    "nodegraph",
			Version: "1.0.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

func (c *Config) resolve() {
	if c.Extensions.ExtensionsPath == "" {
		c.Extensions.ExtensionsPath = paths.ExtensionsDir(c.App.Name)
	}
	if c.Extensions.NodesPath == "" {
		c.Extensions.NodesPath = paths.NodesDir(c.App.Name)
	}
	if c.Extensions.PublicURL == "" {
		c.Extensions.PublicURL = "http://localhost:" + c.Server.Port
	}
	c.Extensions.PublicURL = strings.TrimRight(c.Extensions.PublicURL, "/")
}

// Validate reports the first unusable setting
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("invalid config: PORT is required")
	}
	if c.App.Name == "" {
		return fmt.Errorf("invalid config: APP_NAME is required")
	}
	if c.Extensions.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid config: MAX_UPLOAD_MB must be positive, got %d", c.Extensions.MaxUploadMB)
	}
	if c.Extensions.MaxFileMB <= 0 {
		return fmt.Errorf("invalid config: MAX_FILE_MB must be positive, got %d", c.Extensions.MaxFileMB)
	}
	if c.Extensions.WatchDebounce < 0 {
		return fmt.Errorf("invalid config: WATCH_DEBOUNCE cannot be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0) {
		return fmt.Errorf("invalid config: rate limit needs positive RATE_LIMIT_RPS and RATE_LIMIT_BURST")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, c.Server.Port)
}

// MaxUploadBytes returns the request body ceiling for uploads
func (c *ExtensionsConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

// MaxFileBytes returns the per-entry extraction ceiling
func (c *ExtensionsConfig) MaxFileBytes() int64 {
	return int64(c.MaxFileMB) << 20
}
