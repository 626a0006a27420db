// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package procman

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// startPty starts a command attached to a pseudo-terminal.
func startPty(cmd *exec.Cmd) (*os.File, error) {
	return pty.Start(cmd)
}

// terminateProcess asks a process to exit gracefully.
func terminateProcess(p *os.Process) error {
	return p.Signal(syscall.SIGTERM)
}
