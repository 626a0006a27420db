// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/phil65/anyenv/internal/container"
	"github.com/phil65/anyenv/internal/toolserver"
)

// keepAliveCommand keeps the execution container running between calls.
var keepAliveCommand = []string{"sleep", "infinity"}

// Environment variables exposing the host tool-callback server to code
// running inside the container.
const (
	ToolsURLEnv   = "ANYENV_TOOLS_URL"
	ToolsTokenEnv = "ANYENV_TOOLS_TOKEN"
)

// ContainerEnvironment runs code inside a long-lived container. Setup
// starts the container and installs configured dependencies; every Execute
// copies the snippet in and runs it with the container's interpreter.
type ContainerEnvironment struct {
	cfg     ContainerConfig
	volumes []container.VolumeMount
	tools   *toolserver.Server

	mu          sync.Mutex
	engine      container.Engine
	containerID string
}

// NewContainerEnvironment creates the container environment. The engine is
// resolved during Setup so construction works on hosts without a container
// runtime.
func NewContainerEnvironment(cfg ContainerConfig) (*ContainerEnvironment, error) {
	volumes := make([]container.VolumeMount, 0, len(cfg.Volumes))
	for _, raw := range cfg.Volumes {
		mount, err := container.ParseVolumeMount(raw)
		if err != nil {
			return nil, err
		}
		volumes = append(volumes, mount)
	}
	return &ContainerEnvironment{cfg: cfg, volumes: volumes}, nil
}

// NewContainerEnvironmentWithEngine creates the container environment with
// a pre-resolved engine. Intended for tests.
func NewContainerEnvironmentWithEngine(cfg ContainerConfig, engine container.Engine) (*ContainerEnvironment, error) {
	env, err := NewContainerEnvironment(cfg)
	if err != nil {
		return nil, err
	}
	env.engine = engine
	return env, nil
}

// Name identifies the environment provider.
func (e *ContainerEnvironment) Name() string { return ProviderContainer }

// RegisterTool makes a host function callable from code running inside the
// container. The callback server starts during Setup and its address and
// bearer token are exported as ANYENV_TOOLS_URL / ANYENV_TOOLS_TOKEN.
// Must be called before Setup.
func (e *ContainerEnvironment) RegisterTool(name string, fn toolserver.ToolFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tools == nil {
		e.tools = toolserver.New()
	}
	e.tools.Register(name, fn)
}

// Setup starts the execution container and installs dependencies.
func (e *ContainerEnvironment) Setup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.containerID != "" {
		return nil
	}

	if e.engine == nil {
		engine, err := e.resolveEngine()
		if err != nil {
			return err
		}
		e.engine = engine
	}

	if e.cfg.PullImage {
		log.Debug("pulling image", "image", e.cfg.Image)
		if err := e.engine.Pull(ctx, e.cfg.Image); err != nil {
			return fmt.Errorf("failed to pull %s: %w", e.cfg.Image, err)
		}
	} else if exists, err := e.engine.ImageExists(ctx, e.cfg.Image); err == nil && !exists {
		log.Debug("image not present, pulling", "image", e.cfg.Image)
		if err := e.engine.Pull(ctx, e.cfg.Image); err != nil {
			return fmt.Errorf("failed to pull %s: %w", e.cfg.Image, err)
		}
	}

	runOpts := container.RunOptions{
		Image:   e.cfg.Image,
		Command: keepAliveCommand,
		Name:    "anyenv-exec-" + uuid.NewString()[:8],
		WorkDir: e.cfg.WorkDir,
		Volumes: e.volumes,
		Remove:  true,
	}
	if e.tools != nil {
		// Host networking lets the container reach the loopback callback
		// server.
		if err := e.tools.Start(); err != nil {
			return fmt.Errorf("failed to start tool server: %w", err)
		}
		addr, err := e.tools.Addr()
		if err != nil {
			return err
		}
		runOpts.Network = "host"
		runOpts.Env = map[string]string{
			ToolsURLEnv:   addr,
			ToolsTokenEnv: e.tools.Token(),
		}
	}

	id, err := e.engine.StartDetached(ctx, runOpts)
	if err != nil {
		if e.tools != nil {
			_ = e.tools.Close()
		}
		return err
	}
	e.containerID = id
	log.Debug("execution container started", "engine", e.engine.Name(), "container", id[:min(12, len(id))])

	return e.installDependencies(ctx)
}

// Teardown stops and removes the execution container and shuts down the
// tool-callback server, if one was started.
func (e *ContainerEnvironment) Teardown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tools != nil {
		_ = e.tools.Close()
	}

	if e.containerID == "" {
		return nil
	}
	id := e.containerID
	e.containerID = ""

	if err := e.engine.Stop(ctx, id, 2); err != nil {
		// --rm containers vanish on stop; force-remove covers the rest.
		return e.engine.Remove(ctx, id, true)
	}
	return nil
}

// Execute runs a code snippet inside the container.
func (e *ContainerEnvironment) Execute(ctx context.Context, code string, opts ...ExecOption) (*Result, error) {
	cfg := applyExecOptions(e.defaultLanguage(), e.cfg.Timeout, opts)
	return e.run(ctx, code, cfg, nil, nil)
}

// ExecuteStream runs a code snippet and emits events as it progresses.
func (e *ContainerEnvironment) ExecuteStream(ctx context.Context, code string, opts ...ExecOption) (<-chan Event, error) {
	cfg := applyExecOptions(e.defaultLanguage(), e.cfg.Timeout, opts)
	if err := cfg.language.Validate(); err != nil {
		return nil, err
	}
	return stream(ctx, func(ctx context.Context, stdoutTee, stderrTee io.Writer) (*Result, error) {
		return e.run(ctx, code, cfg, stdoutTee, stderrTee)
	}), nil
}

// RunCommand runs a command line in the container's shell.
func (e *ContainerEnvironment) RunCommand(ctx context.Context, command string, opts ...ExecOption) (*Result, error) {
	cfg := applyExecOptions(LanguageShell, e.cfg.Timeout, opts)

	id, err := e.runningContainer()
	if err != nil {
		return nil, err
	}
	return e.execInContainer(ctx, id, []string{"sh", "-c", command}, cfg, nil, nil)
}

func (e *ContainerEnvironment) defaultLanguage() Language {
	if e.cfg.Language != "" {
		return e.cfg.Language
	}
	return LanguagePython
}

func (e *ContainerEnvironment) resolveEngine() (container.Engine, error) {
	switch e.cfg.Engine {
	case "":
		return container.AutoDetectEngine()
	default:
		return container.NewEngine(container.EngineType(e.cfg.Engine))
	}
}

func (e *ContainerEnvironment) runningContainer() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.containerID == "" {
		return "", ErrNotSetUp
	}
	return e.containerID, nil
}

// installDependencies installs configured packages with the language's
// package manager. Called with e.mu held.
func (e *ContainerEnvironment) installDependencies(ctx context.Context) error {
	if len(e.cfg.Dependencies) == 0 {
		return nil
	}

	var installCmd []string
	switch e.defaultLanguage() {
	case LanguagePython:
		installCmd = append([]string{"python3", "-m", "pip", "install", "--quiet"}, e.cfg.Dependencies...)
	case LanguageJavaScript, LanguageTypeScript:
		installCmd = append([]string{"npm", "install", "-g", "--silent"}, e.cfg.Dependencies...)
	default:
		return fmt.Errorf("%w: dependencies are not supported for %s code",
			ErrInvalidConfig, e.defaultLanguage())
	}

	log.Debug("installing dependencies", "packages", strings.Join(e.cfg.Dependencies, ", "))
	var stderr bytes.Buffer
	result, err := e.engine.Exec(ctx, e.containerID, installCmd, container.RunOptions{Stderr: &stderr})
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("dependency install failed (exit %d): %s",
			result.ExitCode, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (e *ContainerEnvironment) run(ctx context.Context, code string, cfg execConfig, stdoutTee, stderrTee io.Writer) (*Result, error) {
	id, err := e.runningContainer()
	if err != nil {
		return nil, err
	}

	wrapped, err := wrapCode(cfg.language, code)
	if err != nil {
		return nil, err
	}

	scriptDir, err := os.MkdirTemp("", "anyenv-exec-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create script directory: %w", err)
	}
	defer os.RemoveAll(scriptDir)

	scriptName := scriptFileName(cfg.language)
	hostPath := filepath.Join(scriptDir, scriptName)
	if err := os.WriteFile(hostPath, []byte(wrapped), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write script file: %w", err)
	}

	remotePath := "/tmp/anyenv-" + uuid.NewString()[:8] + "-" + scriptName
	if err := e.engine.CopyTo(ctx, id, hostPath, remotePath); err != nil {
		return nil, fmt.Errorf("failed to copy script into container: %w", err)
	}
	defer func() {
		// Cleanup must not use the (possibly expired) execution context.
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = e.engine.Exec(cleanupCtx, id, []string{"rm", "-f", remotePath}, container.RunOptions{})
	}()

	argv := containerInterpreterArgv(cfg.language, remotePath)
	return e.execInContainer(ctx, id, argv, cfg, stdoutTee, stderrTee)
}

func (e *ContainerEnvironment) execInContainer(ctx context.Context, id string, argv []string, cfg execConfig, stdoutTee, stderrTee io.Writer) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	var stdoutBuf, stderrBuf bytes.Buffer
	stdout := io.Writer(&stdoutBuf)
	if stdoutTee != nil {
		stdout = io.MultiWriter(&stdoutBuf, stdoutTee)
	}
	stderr := io.Writer(&stderrBuf)
	if stderrTee != nil {
		stderr = io.MultiWriter(&stderrBuf, stderrTee)
	}

	runOpts := container.RunOptions{
		Env:     cfg.env,
		WorkDir: cfg.workDir,
		Stdout:  stdout,
		Stderr:  stderr,
	}

	start := time.Now()
	execResult, err := e.engine.Exec(runCtx, id, argv, runOpts)
	duration := time.Since(start)

	if err != nil {
		return nil, err
	}
	if runCtx.Err() != nil {
		return timeoutResult(stdoutBuf.String(), stderrBuf.String(), duration, cfg.timeout), nil
	}
	if execResult.Error != nil {
		return nil, fmt.Errorf("container exec failed: %w", execResult.Error)
	}

	result := resultFromOutput(stdoutBuf.String(), stderrBuf.String(), execResult.ExitCode)
	result.Duration = duration
	return result, nil
}

// containerInterpreterArgv builds the in-container command line for a
// script of the given language.
func containerInterpreterArgv(lang Language, scriptPath string) []string {
	switch lang {
	case LanguageTypeScript:
		return []string{"deno", "run", "--quiet", "--allow-all", scriptPath}
	default:
		return []string{defaultInterpreters[lang], scriptPath}
	}
}
