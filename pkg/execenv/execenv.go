// SPDX-License-Identifier: MPL-2.0

// Package execenv runs snippets of code in isolated execution environments.
//
// An Environment abstracts where code runs: in-process (a virtual shell
// interpreter), in a subprocess on the host, inside a container, or on a
// remote host over SSH. All environments share the same result contract:
// wrapped code reports its outcome on a marker line that the environment
// parses out of stdout, so the caller gets a structured Result regardless
// of where the code ran.
package execenv

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Language identifies the language of a code snippet.
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageShell      Language = "shell"
)

// DefaultTimeout bounds a single execution when no timeout is configured.
const DefaultTimeout = 30 * time.Second

var (
	// ErrUnsupportedLanguage is the sentinel error wrapped by
	// UnsupportedLanguageError.
	ErrUnsupportedLanguage = errors.New("unsupported language")

	// ErrNotSetUp is returned when Execute is called before Setup on an
	// environment that requires it.
	ErrNotSetUp = errors.New("environment not set up")
)

type (
	// Environment runs code and commands in some isolated location.
	//
	// Setup must be called before Execute on environments that hold
	// resources (containers, SSH connections); Teardown releases them.
	// Both are cheap no-ops where nothing needs to be prepared.
	Environment interface {
		// Name identifies the environment provider (local, subprocess, ...).
		Name() string
		// Setup prepares the environment for execution.
		Setup(ctx context.Context) error
		// Teardown releases resources held by the environment.
		Teardown(ctx context.Context) error
		// Execute runs a code snippet and waits for its result.
		Execute(ctx context.Context, code string, opts ...ExecOption) (*Result, error)
		// ExecuteStream runs a code snippet and emits lifecycle and output
		// events as execution progresses. The channel is closed once the
		// execution finishes. Callers must drain the channel or cancel
		// ctx; an abandoned channel stops the execution once its buffer
		// fills and ctx ends.
		ExecuteStream(ctx context.Context, code string, opts ...ExecOption) (<-chan Event, error)
		// RunCommand runs a plain command line in the environment.
		RunCommand(ctx context.Context, command string, opts ...ExecOption) (*Result, error)
	}

	// Result is the outcome of an execution.
	Result struct {
		// Value is the structured value reported by the executed code, if any.
		Value any
		// Stdout holds captured standard output with the marker line removed.
		Stdout string
		// Stderr holds captured standard error.
		Stderr string
		// Duration is the wall-clock execution time.
		Duration time.Duration
		// Success reports whether the execution completed without error.
		Success bool
		// ErrMsg describes the failure when Success is false.
		ErrMsg string
		// ErrType names the kind of failure (exception class, exit status).
		ErrType string
		// ExitCode is the process exit code where one exists.
		ExitCode int
	}

	// UnsupportedLanguageError is returned when an environment cannot run
	// the requested language.
	UnsupportedLanguageError struct {
		Language    Language
		Environment string
	}
)

// Error implements the error interface.
func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("%s environment cannot run %s code", e.Environment, e.Language)
}

// Unwrap returns ErrUnsupportedLanguage so callers can use errors.Is.
func (e *UnsupportedLanguageError) Unwrap() error { return ErrUnsupportedLanguage }

// Err converts a failed Result into an error, or nil for a successful one.
func (r *Result) Err() error {
	if r.Success {
		return nil
	}
	if r.ErrType != "" {
		return fmt.Errorf("execution failed (%s): %s", r.ErrType, r.ErrMsg)
	}
	return fmt.Errorf("execution failed: %s", r.ErrMsg)
}

// Validate returns an error if the Language is not one of the defined
// languages. The zero value is invalid.
func (l Language) Validate() error {
	switch l {
	case LanguagePython, LanguageJavaScript, LanguageTypeScript, LanguageShell:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, l)
	}
}

// String returns the string representation of the Language.
func (l Language) String() string { return string(l) }
