// SPDX-License-Identifier: MPL-2.0

// Package config loads and validates anyenv's application configuration.
//
// Configuration is read from $XDG_CONFIG_HOME/anyenv/config.toml (with
// platform-specific equivalents on Windows and macOS) and from ANYENV_*
// environment variables, environment taking precedence.
package config
