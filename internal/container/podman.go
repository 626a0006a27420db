// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// PodmanEngine implements the Engine interface using the Podman CLI.
// It embeds BaseCLIEngine for common CLI operations.
type PodmanEngine struct {
	*BaseCLIEngine
}

// NewPodmanEngine creates a new Podman engine.
// On Linux with SELinux enabled, volume mounts are automatically labeled with :z.
func NewPodmanEngine(opts ...BaseCLIEngineOption) *PodmanEngine {
	path, _ := exec.LookPath("podman")

	// Podman needs SELinux volume labels on Linux (prepend to user options)
	allOpts := append([]BaseCLIEngineOption{WithVolumeFormatter(addSELinuxLabel)}, opts...)

	return &PodmanEngine{
		BaseCLIEngine: NewBaseCLIEngine(string(EngineTypePodman), path, allOpts...),
	}
}

// Available checks if Podman is available.
func (e *PodmanEngine) Available() bool {
	if e.BinaryPath() == "" {
		return false
	}
	cmd := e.CreateCommand(context.Background(), "version", "--format", "{{.Version}}")
	return cmd.Run() == nil
}

// Version returns the Podman version.
func (e *PodmanEngine) Version(ctx context.Context) (string, error) {
	out, err := e.RunCommandWithOutput(ctx, "version", "--format", "{{.Version}}")
	if err != nil {
		return "", fmt.Errorf("failed to get podman version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// ImageExists checks if an image exists locally.
func (e *PodmanEngine) ImageExists(ctx context.Context, image string) (bool, error) {
	err := e.RunCommandStatus(ctx, "image", "exists", image)
	return err == nil, nil
}

// addSELinuxLabel formats a volume mount, adding a shared SELinux label when
// the mount does not already carry one.
func addSELinuxLabel(mount VolumeMount) string {
	if mount.SELinux == SELinuxLabelNone && selinuxEnabled() {
		mount.SELinux = SELinuxLabelShared
	}
	return mount.String()
}

func selinuxEnabled() bool {
	out, err := exec.Command("getenforce").Output() //nolint:noctx // quick local probe
	if err != nil {
		return false
	}
	mode := strings.TrimSpace(string(out))
	return strings.EqualFold(mode, "Enforcing") || strings.EqualFold(mode, "Permissive")
}
