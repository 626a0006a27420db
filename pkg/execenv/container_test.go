// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/phil65/anyenv/internal/container"
)

// fakeEngine is an in-memory container.Engine that records calls and plays
// back canned exec output.
type fakeEngine struct {
	execStdout string
	execExit   int

	started  []container.RunOptions
	execArgv [][]string
	copied   []string
	stopped  []string
	removed  []string
}

func (f *fakeEngine) Name() string { return "fake" }

func (f *fakeEngine) Available() bool { return true }

func (f *fakeEngine) Version(context.Context) (string, error) { return "0.0.0", nil }

func (f *fakeEngine) Pull(context.Context, string) error { return nil }

func (f *fakeEngine) ImageExists(context.Context, string) (bool, error) { return true, nil }

func (f *fakeEngine) Run(context.Context, container.RunOptions) (*container.RunResult, error) {
	return &container.RunResult{}, nil
}

func (f *fakeEngine) StartDetached(_ context.Context, opts container.RunOptions) (string, error) {
	f.started = append(f.started, opts)
	return "fake-container-id", nil
}

func (f *fakeEngine) Exec(_ context.Context, containerID string, command []string, opts container.RunOptions) (*container.RunResult, error) {
	f.execArgv = append(f.execArgv, command)
	if opts.Stdout != nil && f.execStdout != "" {
		io.WriteString(opts.Stdout, f.execStdout)
	}
	return &container.RunResult{ContainerID: containerID, ExitCode: f.execExit}, nil
}

func (f *fakeEngine) CopyTo(_ context.Context, _, hostPath, containerPath string) error {
	f.copied = append(f.copied, containerPath)
	return nil
}

func (f *fakeEngine) Stop(_ context.Context, containerID string, _ int) error {
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeEngine) Remove(_ context.Context, containerID string, _ bool) error {
	f.removed = append(f.removed, containerID)
	return nil
}

func newFakeContainerEnv(t *testing.T, cfg ContainerConfig, engine *fakeEngine) *ContainerEnvironment {
	t.Helper()
	env, err := NewContainerEnvironmentWithEngine(cfg, engine)
	if err != nil {
		t.Fatalf("NewContainerEnvironmentWithEngine() error = %v", err)
	}
	return env
}

func TestContainerEnvironment_RequiresSetup(t *testing.T) {
	env := newFakeContainerEnv(t, ContainerConfig{Image: "python:3.13-slim"}, &fakeEngine{})

	_, err := env.Execute(context.Background(), "result = 1")
	if !errors.Is(err, ErrNotSetUp) {
		t.Fatalf("Execute() before Setup error = %v, want ErrNotSetUp", err)
	}
}

func TestContainerEnvironment_SetupStartsKeepAlive(t *testing.T) {
	engine := &fakeEngine{}
	env := newFakeContainerEnv(t, ContainerConfig{Image: "python:3.13-slim"}, engine)

	if err := env.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if len(engine.started) != 1 {
		t.Fatalf("started %d containers, want 1", len(engine.started))
	}
	opts := engine.started[0]
	if opts.Image != "python:3.13-slim" {
		t.Errorf("Image = %q", opts.Image)
	}
	if strings.Join(opts.Command, " ") != "sleep infinity" {
		t.Errorf("Command = %v, want sleep infinity", opts.Command)
	}

	// Setup is idempotent.
	if err := env.Setup(context.Background()); err != nil {
		t.Fatalf("second Setup() error = %v", err)
	}
	if len(engine.started) != 1 {
		t.Errorf("second Setup started another container")
	}
}

func TestContainerEnvironment_SetupInstallsDependencies(t *testing.T) {
	engine := &fakeEngine{}
	env := newFakeContainerEnv(t, ContainerConfig{
		Image:        "python:3.13-slim",
		Dependencies: []string{"httpx", "rich"},
	}, engine)

	if err := env.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if len(engine.execArgv) != 1 {
		t.Fatalf("exec calls = %d, want 1 install call", len(engine.execArgv))
	}
	install := strings.Join(engine.execArgv[0], " ")
	if !strings.Contains(install, "pip install") || !strings.Contains(install, "httpx") {
		t.Errorf("install command = %q", install)
	}
}

func TestContainerEnvironment_SetupExportsToolCallback(t *testing.T) {
	engine := &fakeEngine{}
	env := newFakeContainerEnv(t, ContainerConfig{Image: "python:3.13-slim"}, engine)
	env.RegisterTool("double", func(_ context.Context, args map[string]any) (any, error) {
		n, _ := args["n"].(float64)
		return n * 2, nil
	})

	ctx := context.Background()
	if err := env.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	defer env.Teardown(ctx)

	opts := engine.started[0]
	if opts.Network != "host" {
		t.Errorf("Network = %q, want host", opts.Network)
	}
	url := opts.Env[ToolsURLEnv]
	token := opts.Env[ToolsTokenEnv]
	if url == "" || token == "" {
		t.Fatalf("callback env not exported: %v", opts.Env)
	}

	// The exported URL and token must reach the registered tool.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		url+"/api/tools/double", strings.NewReader(`{"params":{"n":21}}`))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("tool call error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tool call status = %d, body %s", resp.StatusCode, body)
	}
	if !strings.Contains(string(body), "42") {
		t.Errorf("tool response = %s, want result 42", body)
	}
}

func TestContainerEnvironment_SetupWithoutToolsSkipsCallback(t *testing.T) {
	engine := &fakeEngine{}
	env := newFakeContainerEnv(t, ContainerConfig{Image: "python:3.13-slim"}, engine)

	if err := env.Setup(context.Background()); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	opts := engine.started[0]
	if opts.Network != "" {
		t.Errorf("Network = %q, want unset", opts.Network)
	}
	if len(opts.Env) != 0 {
		t.Errorf("Env = %v, want empty", opts.Env)
	}
}

func TestContainerEnvironment_ExecuteParsesMarker(t *testing.T) {
	engine := &fakeEngine{
		execStdout: "side output\n" + ResultMarker + ` {"result": 9, "success": true}` + "\n",
	}
	env := newFakeContainerEnv(t, ContainerConfig{Image: "python:3.13-slim"}, engine)
	ctx := context.Background()

	if err := env.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	result, err := env.Execute(ctx, "result = 9")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Errorf("Success = false: %+v", result)
	}
	if got, ok := result.Value.(float64); !ok || got != 9 {
		t.Errorf("Value = %v, want 9", result.Value)
	}
	if len(engine.copied) == 0 {
		t.Fatal("script was never copied into the container")
	}
	if !strings.HasSuffix(engine.copied[0], "snippet.py") {
		t.Errorf("copied path = %q, want python snippet", engine.copied[0])
	}
}

func TestContainerEnvironment_RunCommand(t *testing.T) {
	engine := &fakeEngine{execStdout: "inside\n"}
	env := newFakeContainerEnv(t, ContainerConfig{Image: "alpine"}, engine)
	ctx := context.Background()

	if err := env.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	result, err := env.RunCommand(ctx, "cat /etc/os-release")
	if err != nil {
		t.Fatalf("RunCommand() error = %v", err)
	}
	if !result.Success {
		t.Errorf("Success = false: %+v", result)
	}

	last := engine.execArgv[len(engine.execArgv)-1]
	if last[0] != "sh" || last[1] != "-c" {
		t.Errorf("RunCommand argv = %v, want sh -c prefix", last)
	}
}

func TestContainerEnvironment_Teardown(t *testing.T) {
	engine := &fakeEngine{}
	env := newFakeContainerEnv(t, ContainerConfig{Image: "alpine"}, engine)
	ctx := context.Background()

	if err := env.Setup(ctx); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := env.Teardown(ctx); err != nil {
		t.Fatalf("Teardown() error = %v", err)
	}
	if len(engine.stopped) != 1 {
		t.Errorf("stopped = %v, want one container", engine.stopped)
	}

	// Execute after teardown requires a new Setup.
	if _, err := env.Execute(ctx, "result = 1"); !errors.Is(err, ErrNotSetUp) {
		t.Errorf("Execute() after Teardown error = %v, want ErrNotSetUp", err)
	}
}

func TestContainerEnvironment_RejectsBadVolume(t *testing.T) {
	_, err := NewContainerEnvironment(ContainerConfig{
		Image:   "alpine",
		Volumes: []string{"/only-host-path"},
	})
	if !errors.Is(err, container.ErrInvalidVolumeMount) {
		t.Fatalf("NewContainerEnvironment() error = %v, want ErrInvalidVolumeMount", err)
	}
}
