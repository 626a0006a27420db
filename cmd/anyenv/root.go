// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/phil65/anyenv/internal/config"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	// verbose enables verbose output
	verbose bool
	// cfgFile allows specifying a custom config file
	cfgFile string

	// appCfg holds the loaded configuration; nil until initRootConfig runs.
	appCfg *config.Config

	// rootCmd represents the base command when called without any subcommands
	rootCmd = &cobra.Command{
		Use:   "anyenv",
		Short: "Fetch, execute, and share across execution environments",
		Long: TitleStyle.Render("anyenv") + SubtitleStyle.Render(" - one toolbelt, many environments") + `

anyenv fetches URLs with caching, runs code in pluggable execution
environments (local shell, interpreter subprocess, container, SSH),
drives filesystem operations inside those environments, manages
background processes, and shares text snippets.

Environments are declared in an 'anyenv.cue' or 'anyenv.toml' file and
selected with --env, or assembled ad hoc from flags.

` + SubtitleStyle.Render("Examples:") + `
  anyenv fetch https://example.com/readme.md --render
  anyenv exec script.py --type container --image python:3.13-slim
  anyenv fs ls /tmp --env sandbox
  anyenv run -- sleep 30
  anyenv share notes.md --provider gist`,
	}
)

func init() {
	cobra.OnInitialize(initRootConfig)

	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/anyenv/config.toml)")

	// Add subcommands
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(fsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(upgradeCmd)
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Use fang.Execute for enhanced Cobra styling
	// Pass version via fang.WithVersion() since fang overrides rootCmd.Version
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		maybeRenderIssue(err)
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// initRootConfig reads in config file and ENV variables if set.
func initRootConfig() {
	cfg, err := config.Load(config.LoadOptions{ConfigFilePath: cfgFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())
		cfg = config.Default()
	}
	appCfg = cfg

	applyLogLevel(cfg.Log.Level)
}

// loadedConfig returns the active configuration, falling back to defaults
// when initialization has not run (unit tests call handlers directly).
func loadedConfig() *config.Config {
	if appCfg == nil {
		return config.Default()
	}
	return appCfg
}

func applyLogLevel(level string) {
	if verbose {
		log.SetLevel(log.DebugLevel)
		return
	}
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.WarnLevel)
	}
}
