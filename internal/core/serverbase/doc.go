// SPDX-License-Identifier: MPL-2.0

// Package serverbase provides a reusable state machine and lifecycle infrastructure
// for long-running server components.
//
// It covers the patterns long-lived servers need: atomic state reads,
// mutex-protected transitions, WaitGroup tracking, and context-based
// cancellation. The callback SSH server builds on it.
package serverbase
