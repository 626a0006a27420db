// SPDX-License-Identifier: MPL-2.0

// Package testutil holds shared test helpers: Must* wrappers that fail
// the test on error (MustSetenv, MustChdir, MustClose, MustStop), home
// directory redirection, a controllable Clock, and a semaphore gating
// container-backed tests.
package testutil
