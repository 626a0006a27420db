// SPDX-License-Identifier: MPL-2.0

//go:build windows

package procman

import (
	"os"
	"os/exec"
)

// startPty reports that interactive processes need a PTY.
func startPty(*exec.Cmd) (*os.File, error) {
	return nil, ErrInteractiveUnsupported
}

// terminateProcess stops a process. Windows has no graceful signal, so
// this kills outright.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}
