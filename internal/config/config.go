// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix is the prefix for environment variable overrides
	// (e.g. ANYENV_HTTP_CACHE_TTL).
	EnvPrefix = "ANYENV"

	// DefaultUserAgent identifies anyenv in outbound HTTP requests.
	DefaultUserAgent = "anyenv"

	// DefaultCacheTTL is the freshness lifetime of cached HTTP responses.
	DefaultCacheTTL = 15 * time.Minute

	// DefaultHTTPTimeout bounds a single HTTP request.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultExecTimeout bounds a single code execution.
	DefaultExecTimeout = 60 * time.Second

	// DefaultContainerImage is used by the container environment when no
	// image is configured.
	DefaultContainerImage = "python:3.13-slim"
)

var (
	// ErrInvalidLogLevel is returned when the configured log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidShareProvider is returned when the configured share provider is not recognized.
	ErrInvalidShareProvider = errors.New("invalid share provider")
)

type (
	// Config is the root application configuration.
	Config struct {
		HTTP  HTTPConfig  `mapstructure:"http"`
		Exec  ExecConfig  `mapstructure:"exec"`
		Share ShareConfig `mapstructure:"share"`
		Log   LogConfig   `mapstructure:"log"`
	}

	// HTTPConfig configures the fetch client.
	HTTPConfig struct {
		// CacheEnabled turns the response cache on.
		CacheEnabled bool `mapstructure:"cache_enabled"`
		// CacheTTL is the freshness lifetime of cached responses.
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
		// CacheDir overrides the cache location (default: <cache>/http).
		CacheDir string `mapstructure:"cache_dir"`
		// UserAgent is sent with every request.
		UserAgent string `mapstructure:"user_agent"`
		// Timeout bounds a single request.
		Timeout time.Duration `mapstructure:"timeout"`
	}

	// ExecConfig configures code execution defaults.
	ExecConfig struct {
		// DefaultType selects the environment when none is requested
		// (local, subprocess, container, ssh).
		DefaultType string `mapstructure:"default_type"`
		// DefaultLanguage selects the language when none is requested.
		DefaultLanguage string `mapstructure:"default_language"`
		// Timeout bounds a single execution.
		Timeout time.Duration `mapstructure:"timeout"`
		// ContainerImage is the default image for container environments.
		ContainerImage string `mapstructure:"container_image"`
		// ContainerEngine prefers an engine (docker, podman); empty
		// auto-selects.
		ContainerEngine string `mapstructure:"container_engine"`
	}

	// ShareConfig configures text sharing.
	ShareConfig struct {
		// DefaultProvider selects the sharer when none is requested
		// (gist, pastebin, paste_rs).
		DefaultProvider string `mapstructure:"default_provider"`
	}

	// LogConfig configures logging.
	LogConfig struct {
		// Level is one of debug, info, warn, error.
		Level string `mapstructure:"level"`
	}
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			CacheEnabled: true,
			CacheTTL:     DefaultCacheTTL,
			UserAgent:    DefaultUserAgent,
			Timeout:      DefaultHTTPTimeout,
		},
		Exec: ExecConfig{
			DefaultType:     "subprocess",
			DefaultLanguage: "python",
			Timeout:         DefaultExecTimeout,
			ContainerImage:  DefaultContainerImage,
		},
		Share: ShareConfig{
			DefaultProvider: "gist",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// LoadOptions defines explicit configuration loading inputs.
type LoadOptions struct {
	// ConfigFilePath forces loading from a specific config file when set.
	ConfigFilePath string
}

// Load reads the configuration from disk and environment. A missing config
// file is not an error; defaults apply.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := Default()
	setDefaults(v, cfg)

	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFilePath, err)
		}
	} else {
		dir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(ConfigFileName)
		v.SetConfigType(ConfigFileExt)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Log.Level)
	}

	switch c.Share.DefaultProvider {
	case "", "gist", "pastebin", "paste_rs":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidShareProvider, c.Share.DefaultProvider)
	}

	return nil
}

// HTTPCacheDir resolves the HTTP cache directory, falling back to
// <cache dir>/http when not configured.
func (c *Config) HTTPCacheDir() (string, error) {
	if c.HTTP.CacheDir != "" {
		return c.HTTP.CacheDir, nil
	}
	dir, err := CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "http"), nil
}

// WriteDefault writes a commented default config file to path, creating
// parent directories as needed. Existing files are not overwritten.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigTOML), 0o644)
}

const defaultConfigTOML = `# anyenv configuration

[http]
cache_enabled = true
cache_ttl = "15m"
user_agent = "anyenv"
timeout = "30s"

[exec]
default_type = "subprocess"
default_language = "python"
timeout = "1m0s"
container_image = "python:3.13-slim"

[share]
default_provider = "gist"

[log]
level = "warn"
`

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("http.cache_enabled", cfg.HTTP.CacheEnabled)
	v.SetDefault("http.cache_ttl", cfg.HTTP.CacheTTL)
	v.SetDefault("http.cache_dir", cfg.HTTP.CacheDir)
	v.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	v.SetDefault("http.timeout", cfg.HTTP.Timeout)
	v.SetDefault("exec.default_type", cfg.Exec.DefaultType)
	v.SetDefault("exec.default_language", cfg.Exec.DefaultLanguage)
	v.SetDefault("exec.timeout", cfg.Exec.Timeout)
	v.SetDefault("exec.container_image", cfg.Exec.ContainerImage)
	v.SetDefault("exec.container_engine", cfg.Exec.ContainerEngine)
	v.SetDefault("share.default_provider", cfg.Share.DefaultProvider)
	v.SetDefault("log.level", cfg.Log.Level)
}
