// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLocalEnvironment_Execute(t *testing.T) {
	env := NewLocalEnvironment(LocalConfig{})

	result, err := env.Execute(context.Background(), "echo hello")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Errorf("Success = false: %+v", result)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "hello")
	}
	if result.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", result.ExitCode)
	}
}

func TestLocalEnvironment_ExitCode(t *testing.T) {
	env := NewLocalEnvironment(LocalConfig{})

	result, err := env.Execute(context.Background(), "exit 3")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Success {
		t.Error("Success = true for failing snippet")
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
	if result.ErrType != "ExitError" {
		t.Errorf("ErrType = %q, want ExitError", result.ErrType)
	}
}

func TestLocalEnvironment_EnvOverride(t *testing.T) {
	env := NewLocalEnvironment(LocalConfig{})

	result, err := env.Execute(context.Background(), "echo $GREETING",
		WithEnv(map[string]string{"GREETING": "howdy"}))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "howdy" {
		t.Errorf("Stdout = %q, want %q", result.Stdout, "howdy")
	}
}

func TestLocalEnvironment_WorkDir(t *testing.T) {
	dir := t.TempDir()
	env := NewLocalEnvironment(LocalConfig{})

	result, err := env.Execute(context.Background(), "pwd", WithWorkDir(dir))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.TrimSpace(result.Stdout) != dir {
		t.Errorf("pwd = %q, want %q", result.Stdout, dir)
	}
}

func TestLocalEnvironment_MarkerFromShell(t *testing.T) {
	env := NewLocalEnvironment(LocalConfig{})

	code := `echo before
echo '` + ResultMarker + ` {"result": 7, "success": true}'`
	result, err := env.Execute(context.Background(), code)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if got, ok := result.Value.(float64); !ok || got != 7 {
		t.Errorf("Value = %v, want 7", result.Value)
	}
	if strings.Contains(result.Stdout, ResultMarker) {
		t.Error("marker should be stripped from stdout")
	}
}

func TestLocalEnvironment_RejectsOtherLanguages(t *testing.T) {
	env := NewLocalEnvironment(LocalConfig{})

	_, err := env.Execute(context.Background(), "print(1)", WithLanguage(LanguagePython))
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("Execute() error = %v, want ErrUnsupportedLanguage", err)
	}
}

func TestLocalEnvironment_Timeout(t *testing.T) {
	env := NewLocalEnvironment(LocalConfig{})

	result, err := env.Execute(context.Background(), "sleep 10",
		WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Success {
		t.Error("Success = true for timed-out execution")
	}
	if result.ErrType != "TimeoutError" {
		t.Errorf("ErrType = %q, want TimeoutError", result.ErrType)
	}
}

func TestLocalEnvironment_ExecuteStream(t *testing.T) {
	env := NewLocalEnvironment(LocalConfig{})

	events, err := env.ExecuteStream(context.Background(), "echo streamed")
	if err != nil {
		t.Fatalf("ExecuteStream() error = %v", err)
	}

	var kinds []EventKind
	var output strings.Builder
	var final *Result
	for ev := range events {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == EventOutput && ev.Stream == StreamStdout {
			output.WriteString(ev.Data)
		}
		if ev.Kind == EventCompleted {
			final = ev.Result
		}
		if ev.ExecutionID == "" {
			t.Error("event missing execution ID")
		}
	}

	if len(kinds) < 2 || kinds[0] != EventStarted || kinds[len(kinds)-1] != EventCompleted {
		t.Errorf("event kinds = %v, want started...completed", kinds)
	}
	if !strings.Contains(output.String(), "streamed") {
		t.Errorf("streamed output = %q", output.String())
	}
	if final == nil || !final.Success {
		t.Errorf("final result = %+v, want success", final)
	}
}

func TestLocalEnvironment_SetupTeardown(t *testing.T) {
	env := NewLocalEnvironment(LocalConfig{})
	ctx := context.Background()

	if err := env.Setup(ctx); err != nil {
		t.Errorf("Setup() error = %v", err)
	}
	if err := env.Teardown(ctx); err != nil {
		t.Errorf("Teardown() error = %v", err)
	}
}
