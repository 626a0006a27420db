// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/phil65/anyenv/pkg/envfile"
	"github.com/phil65/anyenv/pkg/execenv"
	"github.com/phil65/anyenv/pkg/jsonx"
)

var (
	execEnvName  string
	execEnvFile  string
	execType     string
	execLanguage string
	execImage    string
	execHost     string
	execUser     string
	execTimeout  time.Duration
	execDeps     []string
	execStream   bool

	execCmd = &cobra.Command{
		Use:   "exec [FILE|-]",
		Short: "Run code in an execution environment",
		Long: `Run code in an execution environment.

The code is read from FILE, or from stdin when FILE is '-' or omitted.
The environment comes from an anyenv.cue/anyenv.toml file (--env selects
a declared environment) or is assembled from flags (--type, --image,
--host, ...). A 'result' variable or the return value of an async main()
function becomes the reported result.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runExec,
	}
)

func init() {
	execCmd.Flags().StringVarP(&execEnvName, "env", "e", "", "environment name from the envfile")
	execCmd.Flags().StringVar(&execEnvFile, "file", "", "envfile path (default: nearest anyenv.cue or anyenv.toml)")
	execCmd.Flags().StringVarP(&execType, "type", "t", "", "environment type (local, subprocess, container, ssh)")
	execCmd.Flags().StringVarP(&execLanguage, "language", "l", "", "snippet language (python, javascript, typescript, shell)")
	execCmd.Flags().StringVar(&execImage, "image", "", "container image (container type)")
	execCmd.Flags().StringVar(&execHost, "host", "", "remote host (ssh type)")
	execCmd.Flags().StringVar(&execUser, "user", "", "remote user (ssh type)")
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 0, "execution timeout (default from config)")
	execCmd.Flags().StringArrayVar(&execDeps, "dep", nil, "dependency to install during setup (repeatable)")
	execCmd.Flags().BoolVar(&execStream, "stream", false, "stream output while the code runs")
}

func runExec(cmd *cobra.Command, args []string) error {
	code, err := readCode(args)
	if err != nil {
		return err
	}

	env, err := resolveEnvironment()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := env.Setup(ctx); err != nil {
		return fmt.Errorf("environment setup failed: %w", err)
	}
	defer func() {
		teardownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := env.Teardown(teardownCtx); err != nil {
			fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+"teardown failed: "+err.Error())
		}
	}()

	var opts []execenv.ExecOption
	if execLanguage != "" {
		lang := execenv.Language(execLanguage)
		if err := lang.Validate(); err != nil {
			return err
		}
		opts = append(opts, execenv.WithLanguage(lang))
	}
	if execTimeout > 0 {
		opts = append(opts, execenv.WithTimeout(execTimeout))
	}

	if execStream {
		return execStreaming(ctx, env, code, opts)
	}

	result, err := env.Execute(ctx, code, opts...)
	if err != nil {
		return err
	}
	return printResult(result, true)
}

// execStreaming runs the code while relaying output chunks as they arrive.
func execStreaming(ctx context.Context, env execenv.Environment, code string, opts []execenv.ExecOption) error {
	events, err := env.ExecuteStream(ctx, code, opts...)
	if err != nil {
		return err
	}

	for ev := range events {
		switch ev.Kind {
		case execenv.EventOutput:
			if ev.Stream == execenv.StreamStderr {
				fmt.Fprint(os.Stderr, ev.Data)
			} else {
				fmt.Print(ev.Data)
			}
		case execenv.EventCompleted:
			return printResult(ev.Result, false)
		case execenv.EventFailed:
			return ev.Err
		}
	}
	return errors.New("execution ended without a completion event")
}

// printResult reports the outcome. Captured output is replayed unless it
// was already streamed.
func printResult(result *execenv.Result, replayOutput bool) error {
	if replayOutput {
		if result.Stdout != "" {
			fmt.Print(result.Stdout)
		}
		if result.Stderr != "" {
			fmt.Fprint(os.Stderr, result.Stderr)
		}
	}

	if result.Value != nil {
		rendered, err := jsonx.Dump(result.Value, jsonx.DumpOptions{Indent: true})
		if err != nil {
			return err
		}
		fmt.Println(SuccessStyle.Render("result: ") + rendered)
	}

	if !result.Success {
		code := result.ExitCode
		if code == 0 {
			code = 1
		}
		return &ExitError{Code: code, Err: result.Err()}
	}
	return nil
}

// readCode loads the snippet from the positional file argument or stdin.
func readCode(args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	return string(data), nil
}

// resolveEnvironment picks the execution environment: a named envfile
// entry when --env is set (or an envfile is found and no --type given),
// otherwise one assembled from flags and config defaults.
func resolveEnvironment() (execenv.Environment, error) {
	if execType == "" || execEnvName != "" {
		if env, ok, err := environmentFromEnvfile(); err != nil {
			return nil, err
		} else if ok {
			return env, nil
		}
	}
	return environmentFromFlags()
}

// environmentFromEnvfile loads the envfile named by --file or discovered
// from the working directory. Returns ok=false when none applies.
func environmentFromEnvfile() (execenv.Environment, bool, error) {
	path := execEnvFile
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, false, err
		}
		path, err = envfile.Find(cwd)
		if errors.Is(err, envfile.ErrNotFound) {
			if execEnvName != "" {
				return nil, false, fmt.Errorf("--env %s: %w", execEnvName, err)
			}
			return nil, false, nil
		} else if err != nil {
			return nil, false, err
		}
	}

	ef, err := envfile.Parse(path)
	if err != nil {
		return nil, false, err
	}
	env, err := ef.Build(execEnvName)
	if err != nil {
		return nil, false, err
	}
	return env, true, nil
}

func environmentFromFlags() (execenv.Environment, error) {
	cfg := loadedConfig()

	envType := execType
	if envType == "" {
		envType = cfg.Exec.DefaultType
	}
	timeout := execTimeout
	if timeout == 0 {
		timeout = cfg.Exec.Timeout
	}
	language := execenv.Language(execLanguage)
	if execLanguage == "" {
		language = execenv.Language(cfg.Exec.DefaultLanguage)
	}

	switch envType {
	case execenv.ProviderLocal, execenv.ProviderSSH:
		if len(execDeps) > 0 {
			return nil, fmt.Errorf("--dep is not supported for the %s environment", envType)
		}
	}

	switch envType {
	case execenv.ProviderLocal:
		return execenv.New(execenv.LocalConfig{Timeout: timeout})
	case execenv.ProviderSubprocess:
		return execenv.New(execenv.SubprocessConfig{
			Language:     language,
			Timeout:      timeout,
			Dependencies: execDeps,
		})
	case execenv.ProviderContainer:
		image := execImage
		if image == "" {
			image = cfg.Exec.ContainerImage
		}
		return execenv.New(execenv.ContainerConfig{
			Image:        image,
			Engine:       cfg.Exec.ContainerEngine,
			Language:     language,
			Timeout:      timeout,
			Dependencies: execDeps,
		})
	case execenv.ProviderSSH:
		return execenv.New(execenv.SSHConfig{
			Host:     execHost,
			User:     execUser,
			Language: language,
			Timeout:  timeout,
			KeyPath:  defaultSSHKeyPath(),
		})
	default:
		return nil, fmt.Errorf("%w: %q", execenv.ErrUnknownProvider, envType)
	}
}

// defaultSSHKeyPath returns the conventional private key path, if present.
func defaultSSHKeyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	for _, name := range []string{"id_ed25519", "id_rsa"} {
		path := home + "/.ssh/" + name
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
