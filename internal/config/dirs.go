// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/phil65/anyenv/pkg/platform"
)

const (
	// AppName is the application name, used as the directory name under the
	// platform config and cache roots.
	AppName = "anyenv"
	// ConfigFileName is the config file name (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
)

// Test override hooks. Production code never sets these.
var (
	configDirOverride string
	cacheDirOverride  string
)

// SetConfigDirOverride overrides the config directory lookup (tests only).
// It returns a function restoring the previous value.
func SetConfigDirOverride(dir string) func() {
	prev := configDirOverride
	configDirOverride = dir
	return func() { configDirOverride = prev }
}

// SetCacheDirOverride overrides the cache directory lookup (tests only).
// It returns a function restoring the previous value.
func SetCacheDirOverride(dir string) func() {
	prev := cacheDirOverride
	cacheDirOverride = dir
	return func() { cacheDirOverride = prev }
}

// ConfigDir returns the anyenv configuration directory using
// platform-specific conventions: Windows uses %APPDATA%, macOS uses
// ~/Library/Application Support, and Linux/others use $XDG_CONFIG_HOME
// (defaulting to ~/.config).
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// CacheDir returns the anyenv cache directory: %LOCALAPPDATA% on Windows,
// ~/Library/Caches on macOS, $XDG_CACHE_HOME (default ~/.cache) elsewhere.
// The HTTP response cache lives below this directory.
func CacheDir() (string, error) {
	if cacheDirOverride != "" {
		return cacheDirOverride, nil
	}

	var cacheDir string

	switch runtime.GOOS {
	case platform.Windows:
		cacheDir = os.Getenv("LOCALAPPDATA")
		if cacheDir == "" {
			cacheDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Local")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		cacheDir = filepath.Join(home, "Library", "Caches")
	default:
		cacheDir = os.Getenv("XDG_CACHE_HOME")
		if cacheDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			cacheDir = filepath.Join(home, ".cache")
		}
	}

	return filepath.Join(cacheDir, AppName), nil
}

// ConfigFilePath returns the full path of the config file.
func ConfigFilePath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), nil
}
