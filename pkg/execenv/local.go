// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// LocalEnvironment runs shell code in-process through a virtual POSIX
// shell interpreter. No shell binary is required on the host.
type LocalEnvironment struct {
	cfg LocalConfig
}

// NewLocalEnvironment creates the in-process shell environment.
func NewLocalEnvironment(cfg LocalConfig) *LocalEnvironment {
	return &LocalEnvironment{cfg: cfg}
}

// Name identifies the environment provider.
func (e *LocalEnvironment) Name() string { return ProviderLocal }

// Setup is a no-op; the interpreter needs no preparation.
func (e *LocalEnvironment) Setup(context.Context) error { return nil }

// Teardown is a no-op.
func (e *LocalEnvironment) Teardown(context.Context) error { return nil }

// Execute runs a shell snippet and waits for its result.
func (e *LocalEnvironment) Execute(ctx context.Context, code string, opts ...ExecOption) (*Result, error) {
	cfg := applyExecOptions(LanguageShell, e.cfg.Timeout, opts)
	return e.run(ctx, code, cfg, nil, nil)
}

// ExecuteStream runs a shell snippet and emits events as it progresses.
func (e *LocalEnvironment) ExecuteStream(ctx context.Context, code string, opts ...ExecOption) (<-chan Event, error) {
	cfg := applyExecOptions(LanguageShell, e.cfg.Timeout, opts)
	if cfg.language != LanguageShell {
		return nil, &UnsupportedLanguageError{Language: cfg.language, Environment: ProviderLocal}
	}
	return stream(ctx, func(ctx context.Context, stdoutTee, stderrTee io.Writer) (*Result, error) {
		return e.run(ctx, code, cfg, stdoutTee, stderrTee)
	}), nil
}

// RunCommand runs a command line through the interpreter.
func (e *LocalEnvironment) RunCommand(ctx context.Context, command string, opts ...ExecOption) (*Result, error) {
	return e.Execute(ctx, command, opts...)
}

func (e *LocalEnvironment) run(ctx context.Context, code string, cfg execConfig, stdoutTee, stderrTee io.Writer) (*Result, error) {
	if cfg.language != LanguageShell {
		return nil, &UnsupportedLanguageError{Language: cfg.language, Environment: ProviderLocal}
	}

	parser := syntax.NewParser()
	prog, err := parser.Parse(strings.NewReader(code), "snippet")
	if err != nil {
		return nil, fmt.Errorf("failed to parse shell snippet: %w", err)
	}

	workDir := cfg.workDir
	if workDir == "" {
		workDir = e.cfg.WorkDir
	}

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := io.Writer(&stdoutBuf)
	if stdoutTee != nil {
		stdout = io.MultiWriter(&stdoutBuf, stdoutTee)
	}
	stderr := io.Writer(&stderrBuf)
	if stderrTee != nil {
		stderr = io.MultiWriter(&stderrBuf, stderrTee)
	}

	runnerOpts := []interp.RunnerOption{
		interp.Dir(workDir),
		interp.Env(expand.ListEnviron(mergedEnviron(cfg.env)...)),
		interp.StdIO(nil, stdout, stderr),
	}

	runner, err := interp.New(runnerOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create interpreter: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	start := time.Now()
	err = runner.Run(runCtx, prog)
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			exitCode = int(exitStatus)
		} else if runCtx.Err() != nil {
			return timeoutResult(stdoutBuf.String(), stderrBuf.String(), duration, cfg.timeout), nil
		} else {
			return nil, fmt.Errorf("shell execution failed: %w", err)
		}
	}

	result := resultFromOutput(stdoutBuf.String(), stderrBuf.String(), exitCode)
	result.Duration = duration
	return result, nil
}

// mergedEnviron layers overrides onto the process environment.
func mergedEnviron(overrides map[string]string) []string {
	environ := os.Environ()
	for k, v := range overrides {
		environ = append(environ, k+"="+v)
	}
	return environ
}

// timeoutResult describes an execution killed by its deadline.
func timeoutResult(stdout, stderr string, duration, timeout time.Duration) *Result {
	_, cleaned := parseMarker(stdout)
	return &Result{
		Stdout:   cleaned,
		Stderr:   stderr,
		Duration: duration,
		Success:  false,
		ErrMsg:   fmt.Sprintf("execution exceeded timeout of %s", timeout),
		ErrType:  "TimeoutError",
		ExitCode: -1,
	}
}
