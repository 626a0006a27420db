// SPDX-License-Identifier: MPL-2.0

//go:build windows

package watch

import (
	"errors"
	"syscall"
)

// Win32 error codes that leave the watcher in an unrecoverable state.
const (
	errnoTooManyOpenFiles = syscall.Errno(4) // ERROR_TOO_MANY_OPEN_FILES, EMFILE analog
	errnoInvalidHandle    = syscall.Errno(6) // ERROR_INVALID_HANDLE, watched dir gone
	errnoNotEnoughMemory  = syscall.Errno(8) // ERROR_NOT_ENOUGH_MEMORY, RDCW buffer alloc
)

// isFatalFsnotifyError reports whether the watcher cannot recover from err.
// ReadDirectoryChangesW has no inotify-style watch limits, but handle
// exhaustion, a deleted watch root, or buffer allocation failure all end
// the session.
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, errnoTooManyOpenFiles) ||
		errors.Is(err, errnoInvalidHandle) ||
		errors.Is(err, errnoNotEnoughMemory)
}
