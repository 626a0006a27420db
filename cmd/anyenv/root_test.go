// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/phil65/anyenv/internal/container"
	"github.com/phil65/anyenv/internal/issue"
	"github.com/phil65/anyenv/pkg/envfile"
	"github.com/phil65/anyenv/pkg/execenv"
)

func TestParseHeaderFlags(t *testing.T) {
	t.Parallel()

	headers, err := parseHeaderFlags([]string{"Accept: text/plain", "X-Token:abc"})
	if err != nil {
		t.Fatalf("parseHeaderFlags() error = %v", err)
	}
	if headers["Accept"] != "text/plain" {
		t.Errorf("Accept = %q, want %q", headers["Accept"], "text/plain")
	}
	if headers["X-Token"] != "abc" {
		t.Errorf("X-Token = %q, want %q", headers["X-Token"], "abc")
	}

	if _, err := parseHeaderFlags([]string{"no-colon"}); err == nil {
		t.Error("parseHeaderFlags() expected error for header without colon")
	}
	if _, err := parseHeaderFlags([]string{": value"}); err == nil {
		t.Error("parseHeaderFlags() expected error for empty header name")
	}
}

func TestDownloadName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://example.com/files/report.pdf", "report.pdf"},
		{"https://example.com/files/report.pdf?version=2#top", "report.pdf"},
		{"https://example.com/files/", "files"},
		{"https://example.com", "example.com"},
		{"https://example.com/", "example.com"},
	}
	for _, tt := range tests {
		if got := downloadName(tt.rawURL); got != tt.want {
			t.Errorf("downloadName(%q) = %q, want %q", tt.rawURL, got, tt.want)
		}
	}
}

func TestParseEnvPairs(t *testing.T) {
	t.Parallel()

	env, err := parseEnvPairs([]string{"FOO=bar", "EMPTY=", "EQ=a=b"})
	if err != nil {
		t.Fatalf("parseEnvPairs() error = %v", err)
	}
	if env["FOO"] != "bar" {
		t.Errorf("FOO = %q, want %q", env["FOO"], "bar")
	}
	if v, ok := env["EMPTY"]; !ok || v != "" {
		t.Errorf("EMPTY = %q (present=%v), want empty string", v, ok)
	}
	if env["EQ"] != "a=b" {
		t.Errorf("EQ = %q, want %q", env["EQ"], "a=b")
	}

	if _, err := parseEnvPairs([]string{"NOVALUE"}); err == nil {
		t.Error("parseEnvPairs() expected error for pair without '='")
	}
	if _, err := parseEnvPairs([]string{"=value"}); err == nil {
		t.Error("parseEnvPairs() expected error for empty key")
	}

	env, err = parseEnvPairs(nil)
	if err != nil {
		t.Fatalf("parseEnvPairs(nil) error = %v", err)
	}
	if env != nil {
		t.Errorf("parseEnvPairs(nil) = %v, want nil", env)
	}
}

func TestExitError(t *testing.T) {
	t.Parallel()

	inner := errors.New("boom")
	err := &ExitError{Code: 3, Err: inner}
	if !errors.Is(err, inner) {
		t.Error("errors.Is(ExitError, inner) = false, want true")
	}

	var exitErr *ExitError
	wrapped := errors.Join(errors.New("outer"), err)
	if !errors.As(wrapped, &exitErr) {
		t.Fatal("errors.As() failed to find ExitError")
	}
	if exitErr.Code != 3 {
		t.Errorf("Code = %d, want 3", exitErr.Code)
	}
}

func TestRootCommandWiring(t *testing.T) {
	t.Parallel()

	want := []string{"fetch", "exec", "fs", "run", "share", "config"}
	for _, name := range want {
		found := false
		for _, sub := range rootCmd.Commands() {
			if sub.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("root command is missing subcommand %q", name)
		}
	}
}

func TestTargetOSDefaults(t *testing.T) {
	tests := []struct {
		provider string
		want     string
	}{
		{"container", "linux"},
		{"ssh", "linux"},
	}
	for _, tt := range tests {
		env := stubEnvironment{name: tt.provider}
		if got := targetOS(env); got != tt.want {
			t.Errorf("targetOS(%s) = %q, want %q", tt.provider, got, tt.want)
		}
	}
}

func TestClassifyIssue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    error
		wantID issue.Id
		wantOK bool
	}{
		{
			name:   "envfile not found",
			err:    fmt.Errorf("--env sandbox: %w", envfile.ErrNotFound),
			wantID: issue.EnvfileNotFoundId,
			wantOK: true,
		},
		{
			name:   "environment not in envfile",
			err:    fmt.Errorf("building: %w", envfile.ErrEnvironmentNotFound),
			wantID: issue.EnvironmentNotFoundId,
			wantOK: true,
		},
		{
			name:   "no container engine",
			err:    &container.ErrEngineNotAvailable{},
			wantID: issue.ContainerEngineNotFoundId,
			wantOK: true,
		},
		{
			name:   "unsupported language",
			err:    fmt.Errorf("%w: cobol", execenv.ErrUnsupportedLanguage),
			wantID: issue.LanguageNotSupportedId,
			wantOK: true,
		},
		{
			name:   "unclassified error",
			err:    errors.New("boom"),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, ok := classifyIssue(tt.err)
			if ok != tt.wantOK {
				t.Fatalf("classifyIssue() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && id != tt.wantID {
				t.Errorf("classifyIssue() id = %d, want %d", id, tt.wantID)
			}
		})
	}
}

type stubEnvironment struct {
	name string
}

func (s stubEnvironment) Name() string { return s.name }

func (stubEnvironment) Setup(ctx context.Context) error    { return nil }
func (stubEnvironment) Teardown(ctx context.Context) error { return nil }

func (stubEnvironment) Execute(ctx context.Context, code string, opts ...execenv.ExecOption) (*execenv.Result, error) {
	return nil, errors.New("not implemented")
}

func (stubEnvironment) ExecuteStream(ctx context.Context, code string, opts ...execenv.ExecOption) (<-chan execenv.Event, error) {
	return nil, errors.New("not implemented")
}

func (stubEnvironment) RunCommand(ctx context.Context, command string, opts ...execenv.ExecOption) (*execenv.Result, error) {
	return nil, errors.New("not implemented")
}
