// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/phil65/anyenv/pkg/execenv"
	"github.com/phil65/anyenv/pkg/oscmd"
)

var (
	fsOS string

	fsCmd = &cobra.Command{
		Use:   "fs",
		Short: "Filesystem operations inside an execution environment",
		Long: `Run filesystem operations inside an execution environment.

Operations are expressed as shell commands for the environment's
operating system and their output is parsed on the host, so they work
over any environment that can run a command line. The environment is
selected the same way as for 'anyenv exec' (--env, --type, ...).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	fsCmd.PersistentFlags().StringVarP(&execEnvName, "env", "e", "", "environment name from the envfile")
	fsCmd.PersistentFlags().StringVar(&execEnvFile, "file", "", "envfile path (default: nearest anyenv.cue or anyenv.toml)")
	fsCmd.PersistentFlags().StringVarP(&execType, "type", "t", "", "environment type (local, subprocess, container, ssh)")
	fsCmd.PersistentFlags().StringVar(&execHost, "host", "", "remote host (ssh type)")
	fsCmd.PersistentFlags().StringVar(&execUser, "user", "", "remote user (ssh type)")
	fsCmd.PersistentFlags().StringVar(&fsOS, "os", "", "target operating system (default: inferred from environment)")

	fsCmd.AddCommand(&cobra.Command{
		Use:   "ls PATH",
		Short: "List a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemoteFS(cmd.Context(), func(ctx context.Context, fs *oscmd.RemoteFS) error {
				entries, err := fs.List(ctx, args[0])
				if err != nil {
					return err
				}
				for _, entry := range entries {
					printFileInfo(entry)
				}
				return nil
			})
		},
	})

	fsCmd.AddCommand(&cobra.Command{
		Use:   "stat PATH",
		Short: "Show file details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemoteFS(cmd.Context(), func(ctx context.Context, fs *oscmd.RemoteFS) error {
				info, err := fs.Stat(ctx, args[0])
				if err != nil {
					return err
				}
				printFileInfo(*info)
				return nil
			})
		},
	})

	fsCmd.AddCommand(&cobra.Command{
		Use:   "exists PATH",
		Short: "Check whether a path exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemoteFS(cmd.Context(), func(ctx context.Context, fs *oscmd.RemoteFS) error {
				ok, err := fs.Exists(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Println(ok)
				if !ok {
					return &ExitError{Code: 1}
				}
				return nil
			})
		},
	})

	fsCmd.AddCommand(&cobra.Command{
		Use:   "mkdir PATH",
		Short: "Create a directory (with parents)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemoteFS(cmd.Context(), func(ctx context.Context, fs *oscmd.RemoteFS) error {
				return fs.MkDir(ctx, args[0])
			})
		},
	})

	fsCmd.AddCommand(&cobra.Command{
		Use:   "rm PATH",
		Short: "Remove a file or directory tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemoteFS(cmd.Context(), func(ctx context.Context, fs *oscmd.RemoteFS) error {
				return fs.Remove(ctx, args[0])
			})
		},
	})

	fsCmd.AddCommand(&cobra.Command{
		Use:   "cat PATH",
		Short: "Print a file's contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemoteFS(cmd.Context(), func(ctx context.Context, fs *oscmd.RemoteFS) error {
				content, err := fs.ReadFile(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Print(content)
				return nil
			})
		},
	})

	fsCmd.AddCommand(&cobra.Command{
		Use:   "find ROOT PATTERN",
		Short: "Find files by name pattern",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRemoteFS(cmd.Context(), func(ctx context.Context, fs *oscmd.RemoteFS) error {
				matches, err := fs.Find(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				for _, match := range matches {
					printFileInfo(match)
				}
				return nil
			})
		},
	})
}

// withRemoteFS resolves the environment, sets it up, and hands a RemoteFS
// to fn, tearing the environment down afterwards.
func withRemoteFS(ctx context.Context, fn func(context.Context, *oscmd.RemoteFS) error) error {
	env, err := resolveEnvironment()
	if err != nil {
		return err
	}
	if err := env.Setup(ctx); err != nil {
		return fmt.Errorf("environment setup failed: %w", err)
	}
	defer func() {
		teardownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = env.Teardown(teardownCtx)
	}()

	fs, err := oscmd.NewRemoteFS(env, targetOS(env))
	if err != nil {
		return err
	}
	return fn(ctx, fs)
}

// targetOS infers the operating system commands should be built for.
// Containers and remote hosts default to linux; host-bound environments
// use the local GOOS.
func targetOS(env execenv.Environment) string {
	if fsOS != "" {
		return fsOS
	}
	switch env.Name() {
	case execenv.ProviderContainer, execenv.ProviderSSH:
		return "linux"
	default:
		return runtime.GOOS
	}
}

func printFileInfo(info oscmd.FileInfo) {
	kind := SubtitleStyle.Render(fmt.Sprintf("%-4s", info.Kind))
	when := ""
	if !info.ModTime.IsZero() {
		when = info.ModTime.Format("2006-01-02 15:04")
	}
	fmt.Printf("%s %10d  %16s  %s\n", kind, info.Size, when, info.Name)
}
