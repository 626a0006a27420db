// SPDX-License-Identifier: MPL-2.0

// Package container provides an abstraction layer for container runtimes
// (Docker/Podman) driven through their CLIs.
package container

import (
	"context"
	"fmt"
	"io"
)

// Engine defines the interface for container operations.
type Engine interface {
	// Name returns the engine name (docker or podman)
	Name() string
	// Available checks if the engine is available on the system
	Available() bool
	// Version returns the engine version
	Version(ctx context.Context) (string, error)

	// Pull pulls an image from a registry
	Pull(ctx context.Context, image string) error
	// ImageExists checks if an image exists locally
	ImageExists(ctx context.Context, image string) (bool, error)
	// Run runs a command in a fresh container and waits for it
	Run(ctx context.Context, opts RunOptions) (*RunResult, error)
	// StartDetached starts a long-lived container and returns its ID
	StartDetached(ctx context.Context, opts RunOptions) (string, error)
	// Exec runs a command in a running container
	Exec(ctx context.Context, containerID string, command []string, opts RunOptions) (*RunResult, error)
	// CopyTo copies a file or directory from the host into a container
	CopyTo(ctx context.Context, containerID, hostPath, containerPath string) error
	// Stop stops a running container
	Stop(ctx context.Context, containerID string, timeoutSeconds int) error
	// Remove removes a container
	Remove(ctx context.Context, containerID string, force bool) error
}

// RunOptions contains options for running a container or an exec session.
type RunOptions struct {
	// Image is the image to run
	Image string
	// Command is the command to run
	Command []string
	// WorkDir is the working directory inside the container
	WorkDir string
	// Env contains environment variables
	Env map[string]string
	// Network selects the container network mode (e.g. "host")
	Network string
	// Volumes are bind mounts applied to the container
	Volumes []VolumeMount
	// Remove automatically removes the container after exit
	Remove bool
	// Name is the container name
	Name string
	// Stdin is the standard input
	Stdin io.Reader
	// Stdout is where to write standard output
	Stdout io.Writer
	// Stderr is where to write standard error
	Stderr io.Writer
	// Interactive enables interactive mode
	Interactive bool
	// TTY allocates a pseudo-TTY
	TTY bool
}

// RunResult contains the result of running a container command.
type RunResult struct {
	// ContainerID is the container ID, when known
	ContainerID string
	// ExitCode is the exit code
	ExitCode int
	// Error contains any infrastructure error (not a non-zero exit)
	Error error
}

// EngineType identifies the container engine type
type EngineType string

const (
	EngineTypePodman EngineType = "podman"
	EngineTypeDocker EngineType = "docker"
)

// ErrEngineNotAvailable is returned when a container engine is not available
type ErrEngineNotAvailable struct {
	Engine string
	Reason string
}

func (e *ErrEngineNotAvailable) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// NewEngine creates a new container engine based on preference, falling back
// to the other engine when the preferred one is not installed.
func NewEngine(preferredType EngineType) (Engine, error) {
	switch preferredType {
	case EngineTypePodman:
		engine := NewPodmanEngine()
		if engine.Available() {
			return engine, nil
		}
		dockerEngine := NewDockerEngine()
		if dockerEngine.Available() {
			return dockerEngine, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "podman",
			Reason: "podman is not installed or not accessible, and docker fallback is also not available",
		}

	case EngineTypeDocker:
		engine := NewDockerEngine()
		if engine.Available() {
			return engine, nil
		}
		podmanEngine := NewPodmanEngine()
		if podmanEngine.Available() {
			return podmanEngine, nil
		}
		return nil, &ErrEngineNotAvailable{
			Engine: "docker",
			Reason: "docker is not installed or not accessible, and podman fallback is also not available",
		}

	default:
		return nil, fmt.Errorf("unknown container engine type: %s", preferredType)
	}
}

// AutoDetectEngine tries to find an available container engine.
func AutoDetectEngine() (Engine, error) {
	// Docker first; it is the more common default for execution sandboxes.
	docker := NewDockerEngine()
	if docker.Available() {
		return docker, nil
	}

	podman := NewPodmanEngine()
	if podman.Available() {
		return podman, nil
	}

	return nil, &ErrEngineNotAvailable{
		Engine: "any",
		Reason: "no container engine (docker or podman) is available on this system",
	}
}
