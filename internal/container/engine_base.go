// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	// SELinuxLabelNone means no SELinux label is applied to volume mounts.
	SELinuxLabelNone SELinuxLabel = ""
	// SELinuxLabelShared allows sharing the volume between containers.
	SELinuxLabelShared SELinuxLabel = "z"
	// SELinuxLabelPrivate restricts the volume to a single container.
	SELinuxLabelPrivate SELinuxLabel = "Z"
)

var (
	// ErrInvalidVolumeMount is the sentinel error wrapped by InvalidVolumeMountError.
	ErrInvalidVolumeMount = errors.New("invalid volume mount")
)

type (
	// ExecCommandFunc is the function signature for creating exec.Cmd.
	// This allows injection of mock implementations for testing.
	ExecCommandFunc func(ctx context.Context, name string, arg ...string) *exec.Cmd

	// VolumeFormatFunc formats a volume mount as a -v argument. Podman uses
	// this to add SELinux labels (:z/:Z), which SELinux-enforcing hosts
	// require before container processes may touch bind-mounted paths.
	VolumeFormatFunc func(mount VolumeMount) string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine provides common implementation for CLI-based container
	// engines. Docker and Podman engines embed this struct; methods that are
	// identical across CLI engines live here, while engine-specific methods
	// (Available, Version, ImageExists) remain on the concrete types.
	BaseCLIEngine struct {
		name            string
		binaryPath      string
		execCommand     ExecCommandFunc
		volumeFormatter VolumeFormatFunc
	}

	// SELinuxLabel represents an SELinux volume labeling option.
	// The zero value ("") means no SELinux label is applied.
	SELinuxLabel string

	// VolumeMount represents a bind mount specification.
	VolumeMount struct {
		HostPath      string
		ContainerPath string
		ReadOnly      bool
		SELinux       SELinuxLabel
	}

	// InvalidVolumeMountError is returned when a VolumeMount is missing a
	// host or container path.
	InvalidVolumeMountError struct {
		Value VolumeMount
	}
)

// Error implements the error interface.
func (e *InvalidVolumeMountError) Error() string {
	return fmt.Sprintf("invalid volume mount %q:%q: host and container paths must be non-empty",
		e.Value.HostPath, e.Value.ContainerPath)
}

// Unwrap returns ErrInvalidVolumeMount so callers can use errors.Is.
func (e *InvalidVolumeMountError) Unwrap() error { return ErrInvalidVolumeMount }

// Validate returns an error if the VolumeMount lacks a host or container path.
func (v VolumeMount) Validate() error {
	if strings.TrimSpace(v.HostPath) == "" || strings.TrimSpace(v.ContainerPath) == "" {
		return &InvalidVolumeMountError{Value: v}
	}
	return nil
}

// String returns the volume mount in "host:container[:options]" format.
func (v VolumeMount) String() string {
	var result strings.Builder
	result.WriteString(v.HostPath)
	result.WriteString(":")
	result.WriteString(v.ContainerPath)

	var options []string
	if v.ReadOnly {
		options = append(options, "ro")
	}
	if v.SELinux != "" {
		options = append(options, string(v.SELinux))
	}

	if len(options) > 0 {
		result.WriteString(":")
		result.WriteString(strings.Join(options, ","))
	}

	return result.String()
}

// ParseVolumeMount parses a volume string in
// "host_path:container_path[:options]" format.
func ParseVolumeMount(volume string) (VolumeMount, error) {
	mount := VolumeMount{}

	parts := strings.Split(volume, ":")
	if len(parts) >= 1 {
		mount.HostPath = parts[0]
	}
	if len(parts) >= 2 {
		mount.ContainerPath = parts[1]
	}
	if len(parts) >= 3 {
		for opt := range strings.SplitSeq(parts[2], ",") {
			switch opt {
			case "ro":
				mount.ReadOnly = true
			case "z", "Z":
				mount.SELinux = SELinuxLabel(opt)
			}
		}
	}

	if err := mount.Validate(); err != nil {
		return mount, err
	}
	return mount, nil
}

// --- Option Functions ---

// WithExecCommand sets a custom exec command function for testing.
func WithExecCommand(fn ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithVolumeFormatter sets a custom volume formatter function.
// This is used by Podman to add SELinux labels on Linux.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// --- Constructor ---

// NewBaseCLIEngine creates a new base engine with the given binary path.
func NewBaseCLIEngine(name, binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		name:            name,
		binaryPath:      binaryPath,
		execCommand:     exec.CommandContext,
		volumeFormatter: func(v VolumeMount) string { return v.String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the engine name used in error messages.
func (e *BaseCLIEngine) Name() string {
	return e.name
}

// BinaryPath returns the path to the container engine binary.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// --- Argument Builders ---

// RunArgs constructs arguments for a container run command.
//
// Generated command: <binary> run [options] <image> [command...]
func (e *BaseCLIEngine) RunArgs(opts RunOptions, detached bool) []string {
	args := []string{"run"}

	if detached {
		args = append(args, "-d")
	}

	if opts.Remove {
		args = append(args, "--rm")
	}

	if opts.Name != "" {
		args = append(args, "--name", opts.Name)
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	if opts.Network != "" {
		args = append(args, "--network", opts.Network)
	}

	if opts.Interactive {
		args = append(args, "-i")
	}

	if opts.TTY {
		args = append(args, "-t")
	}

	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	for _, v := range opts.Volumes {
		args = append(args, "-v", e.volumeFormatter(v))
	}

	args = append(args, opts.Image)
	args = append(args, opts.Command...)

	return args
}

// ExecArgs constructs arguments for a container exec command.
//
// Generated command: <binary> exec [options] <container> <command...>
func (e *BaseCLIEngine) ExecArgs(containerID string, command []string, opts RunOptions) []string {
	args := []string{"exec"}

	if opts.Interactive {
		args = append(args, "-i")
	}

	if opts.TTY {
		args = append(args, "-t")
	}

	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}

	for k, v := range opts.Env {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, v))
	}

	args = append(args, containerID)
	args = append(args, command...)

	return args
}

// CopyToArgs constructs arguments for copying a host path into a container.
func (e *BaseCLIEngine) CopyToArgs(containerID, hostPath, containerPath string) []string {
	return []string{"cp", hostPath, containerID + ":" + containerPath}
}

// StopArgs constructs arguments for stopping a container.
func (e *BaseCLIEngine) StopArgs(containerID string, timeoutSeconds int) []string {
	args := []string{"stop"}
	if timeoutSeconds > 0 {
		args = append(args, "-t", strconv.Itoa(timeoutSeconds))
	}
	args = append(args, containerID)
	return args
}

// RemoveArgs constructs arguments for a container remove command.
func (e *BaseCLIEngine) RemoveArgs(containerID string, force bool) []string {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, containerID)
	return args
}

// --- Command Execution ---

// RunCommandStatus executes a command and returns only the error status.
func (e *BaseCLIEngine) RunCommandStatus(ctx context.Context, args ...string) error {
	cmd := e.CreateCommand(ctx, args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}
	return nil
}

// RunCommandWithOutput executes a command with stdout captured to a buffer.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.CreateCommand(ctx, args...)
	var out bytes.Buffer
	cmd.Stdout = &out

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("command %s %v failed: %w", e.binaryPath, args, err)
	}

	return out.String(), nil
}

// CreateCommand creates an exec.Cmd for the given arguments.
// This is useful when the caller needs to customize stdin/stdout/stderr.
func (e *BaseCLIEngine) CreateCommand(ctx context.Context, args ...string) *exec.Cmd {
	return e.execCommand(ctx, e.binaryPath, args...)
}

// --- Promoted Engine Methods (shared by Docker and Podman) ---

// Pull pulls an image from a registry.
func (e *BaseCLIEngine) Pull(ctx context.Context, image string) error {
	return e.RunCommandStatus(ctx, "pull", image)
}

// Run runs a command in a fresh container and waits for completion.
// A non-zero exit code is captured in RunResult.ExitCode (not returned as
// error). Only infrastructure failures (binary not found, etc.) set
// RunResult.Error.
func (e *BaseCLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	for _, v := range opts.Volumes {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	args := e.RunArgs(opts, false)

	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()

	result := &RunResult{}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = 1
			result.Error = err
		}
	}

	return result, nil
}

// StartDetached starts a long-lived container and returns its ID.
func (e *BaseCLIEngine) StartDetached(ctx context.Context, opts RunOptions) (string, error) {
	for _, v := range opts.Volumes {
		if err := v.Validate(); err != nil {
			return "", err
		}
	}

	args := e.RunArgs(opts, true)
	out, err := e.RunCommandWithOutput(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("failed to start container from %s: %w", opts.Image, err)
	}

	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("%s run -d produced no container ID", e.name)
	}
	return id, nil
}

// Exec runs a command in a running container.
func (e *BaseCLIEngine) Exec(ctx context.Context, containerID string, command []string, opts RunOptions) (*RunResult, error) {
	args := e.ExecArgs(containerID, command, opts)

	cmd := e.CreateCommand(ctx, args...)
	cmd.Stdin = opts.Stdin
	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr

	err := cmd.Run()

	result := &RunResult{ContainerID: containerID}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = 1
			result.Error = err
		}
	}

	return result, nil
}

// CopyTo copies a file or directory from the host into a container.
func (e *BaseCLIEngine) CopyTo(ctx context.Context, containerID, hostPath, containerPath string) error {
	return e.RunCommandStatus(ctx, e.CopyToArgs(containerID, hostPath, containerPath)...)
}

// Stop stops a running container.
func (e *BaseCLIEngine) Stop(ctx context.Context, containerID string, timeoutSeconds int) error {
	return e.RunCommandStatus(ctx, e.StopArgs(containerID, timeoutSeconds)...)
}

// Remove removes a container.
func (e *BaseCLIEngine) Remove(ctx context.Context, containerID string, force bool) error {
	return e.RunCommandStatus(ctx, e.RemoveArgs(containerID, force)...)
}
