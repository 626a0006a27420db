// SPDX-License-Identifier: MPL-2.0

//go:build !windows

package watch

import (
	"errors"
	"syscall"
)

// isFatalFsnotifyError reports whether the watcher cannot recover from err.
// On Unix these are inotify/fd exhaustion: ENOSPC (max_user_watches hit),
// EMFILE (process fd limit), ENFILE (system fd limit).
func isFatalFsnotifyError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}
