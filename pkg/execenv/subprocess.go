// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// defaultInterpreters maps each language to the interpreter binary used
// when the config carries no override.
var defaultInterpreters = map[Language]string{
	LanguagePython:     "python3",
	LanguageJavaScript: "node",
	LanguageTypeScript: "deno",
	LanguageShell:      "sh",
}

// SubprocessEnvironment runs code in interpreter subprocesses on the host.
type SubprocessEnvironment struct {
	cfg SubprocessConfig
}

// NewSubprocessEnvironment creates the host subprocess environment.
func NewSubprocessEnvironment(cfg SubprocessConfig) *SubprocessEnvironment {
	return &SubprocessEnvironment{cfg: cfg}
}

// Name identifies the environment provider.
func (e *SubprocessEnvironment) Name() string { return ProviderSubprocess }

// Setup installs configured dependencies with the language's package
// manager. Interpreters themselves are resolved per execution.
func (e *SubprocessEnvironment) Setup(ctx context.Context) error {
	return e.installDependencies(ctx)
}

func (e *SubprocessEnvironment) installDependencies(ctx context.Context) error {
	if len(e.cfg.Dependencies) == 0 {
		return nil
	}

	var installCmd []string
	switch e.defaultLanguage() {
	case LanguagePython:
		installCmd = append([]string{e.interpreter(LanguagePython), "-m", "pip", "install", "--quiet"},
			e.cfg.Dependencies...)
	case LanguageJavaScript, LanguageTypeScript:
		installCmd = append([]string{"npm", "install", "-g", "--silent"}, e.cfg.Dependencies...)
	default:
		return fmt.Errorf("%w: dependencies are not supported for %s code",
			ErrInvalidConfig, e.defaultLanguage())
	}

	timeout := e.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, installCmd[0], installCmd[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("dependency install failed (exit %d): %s",
				exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("failed to run %s: %w", installCmd[0], err)
	}
	return nil
}

// Teardown is a no-op.
func (e *SubprocessEnvironment) Teardown(context.Context) error { return nil }

// Execute runs a code snippet in an interpreter subprocess.
func (e *SubprocessEnvironment) Execute(ctx context.Context, code string, opts ...ExecOption) (*Result, error) {
	cfg := applyExecOptions(e.defaultLanguage(), e.cfg.Timeout, opts)
	return e.run(ctx, code, cfg, nil, nil)
}

// ExecuteStream runs a code snippet and emits events as it progresses.
func (e *SubprocessEnvironment) ExecuteStream(ctx context.Context, code string, opts ...ExecOption) (<-chan Event, error) {
	cfg := applyExecOptions(e.defaultLanguage(), e.cfg.Timeout, opts)
	if err := cfg.language.Validate(); err != nil {
		return nil, err
	}
	return stream(ctx, func(ctx context.Context, stdoutTee, stderrTee io.Writer) (*Result, error) {
		return e.run(ctx, code, cfg, stdoutTee, stderrTee)
	}), nil
}

// RunCommand runs a command line through the system shell.
func (e *SubprocessEnvironment) RunCommand(ctx context.Context, command string, opts ...ExecOption) (*Result, error) {
	cfg := applyExecOptions(LanguageShell, e.cfg.Timeout, opts)

	argv := []string{e.interpreter(LanguageShell), "-c", command}
	return e.execArgv(ctx, argv, cfg, nil, nil)
}

func (e *SubprocessEnvironment) defaultLanguage() Language {
	if e.cfg.Language != "" {
		return e.cfg.Language
	}
	return LanguagePython
}

func (e *SubprocessEnvironment) interpreter(lang Language) string {
	if path, ok := e.cfg.Interpreters[lang]; ok && path != "" {
		return path
	}
	return defaultInterpreters[lang]
}

// interpreterArgv builds the command line that runs a script file in the
// given language.
func (e *SubprocessEnvironment) interpreterArgv(lang Language, scriptPath string) ([]string, error) {
	if err := lang.Validate(); err != nil {
		return nil, err
	}

	bin := e.interpreter(lang)
	if lang == LanguageTypeScript {
		return []string{bin, "run", "--quiet", "--allow-all", scriptPath}, nil
	}
	return []string{bin, scriptPath}, nil
}

func (e *SubprocessEnvironment) run(ctx context.Context, code string, cfg execConfig, stdoutTee, stderrTee io.Writer) (*Result, error) {
	wrapped, err := wrapCode(cfg.language, code)
	if err != nil {
		return nil, err
	}

	scriptDir, err := os.MkdirTemp("", "anyenv-exec-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create script directory: %w", err)
	}
	defer os.RemoveAll(scriptDir)

	scriptPath := filepath.Join(scriptDir, scriptFileName(cfg.language))
	if err := os.WriteFile(scriptPath, []byte(wrapped), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write script file: %w", err)
	}

	argv, err := e.interpreterArgv(cfg.language, scriptPath)
	if err != nil {
		return nil, err
	}
	return e.execArgv(ctx, argv, cfg, stdoutTee, stderrTee)
}

func (e *SubprocessEnvironment) execArgv(ctx context.Context, argv []string, cfg execConfig, stdoutTee, stderrTee io.Writer) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)

	workDir := cfg.workDir
	if workDir == "" {
		workDir = e.cfg.WorkDir
	}
	cmd.Dir = workDir
	cmd.Env = mergedEnviron(cfg.env)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = io.Writer(&stdoutBuf)
	if stdoutTee != nil {
		cmd.Stdout = io.MultiWriter(&stdoutBuf, stdoutTee)
	}
	cmd.Stderr = io.Writer(&stderrBuf)
	if stderrTee != nil {
		cmd.Stderr = io.MultiWriter(&stderrBuf, stderrTee)
	}

	start := time.Now()
	err := cmd.Run()
	duration := time.Since(start)

	exitCode := 0
	if err != nil {
		if runCtx.Err() != nil {
			return timeoutResult(stdoutBuf.String(), stderrBuf.String(), duration, cfg.timeout), nil
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("failed to run %s: %w", argv[0], err)
		}
	}

	result := resultFromOutput(stdoutBuf.String(), stderrBuf.String(), exitCode)
	result.Duration = duration
	return result, nil
}
