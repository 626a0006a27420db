// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phil65/anyenv/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage anyenv configuration",
	Long: `Manage anyenv configuration.

Configuration is stored in:
  - Linux: ~/.config/anyenv/config.toml
  - macOS: ~/Library/Application Support/anyenv/config.toml
  - Windows: %APPDATA%\anyenv\config.toml

Every key can also be set through the environment with an ANYENV_
prefix, e.g. ANYENV_HTTP_TIMEOUT=10s.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return initConfigFile()
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ConfigFilePath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		},
	})
}

func showConfig() error {
	cfg := loadedConfig()

	fmt.Println(TitleStyle.Render("anyenv configuration"))
	fmt.Println()

	fmt.Println(SubtitleStyle.Render("http"))
	printConfigValue("cache_enabled", fmt.Sprint(cfg.HTTP.CacheEnabled))
	printConfigValue("cache_ttl", cfg.HTTP.CacheTTL.String())
	if cfg.HTTP.CacheDir != "" {
		printConfigValue("cache_dir", cfg.HTTP.CacheDir)
	}
	printConfigValue("user_agent", cfg.HTTP.UserAgent)
	printConfigValue("timeout", cfg.HTTP.Timeout.String())
	fmt.Println()

	fmt.Println(SubtitleStyle.Render("exec"))
	printConfigValue("default_type", cfg.Exec.DefaultType)
	printConfigValue("default_language", cfg.Exec.DefaultLanguage)
	printConfigValue("timeout", cfg.Exec.Timeout.String())
	printConfigValue("container_image", cfg.Exec.ContainerImage)
	if cfg.Exec.ContainerEngine != "" {
		printConfigValue("container_engine", cfg.Exec.ContainerEngine)
	}
	fmt.Println()

	fmt.Println(SubtitleStyle.Render("share"))
	printConfigValue("default_provider", cfg.Share.DefaultProvider)
	fmt.Println()

	fmt.Println(SubtitleStyle.Render("log"))
	printConfigValue("level", cfg.Log.Level)
	return nil
}

func printConfigValue(key, value string) {
	fmt.Printf("  %s = %s\n", CmdStyle.Render(key), value)
}

func initConfigFile() error {
	path, err := config.ConfigFilePath()
	if err != nil {
		return err
	}
	if err := config.WriteDefault(path); err != nil {
		return err
	}
	fmt.Println(SuccessStyle.Render("created " + path))
	fmt.Println("Edit it to change defaults, or override keys with ANYENV_* environment variables.")
	return nil
}
