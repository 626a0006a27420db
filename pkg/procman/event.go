// SPDX-License-Identifier: MPL-2.0

package procman

import "time"

type (
	// EventKind distinguishes process lifecycle events.
	EventKind string

	// Stream names an output stream.
	Stream string

	// Event is a process lifecycle signal emitted on Manager.Events.
	Event struct {
		// Kind distinguishes the event.
		Kind EventKind
		// ProcessID is the manager-scoped process id.
		ProcessID string
		// Time is when the event occurred.
		Time time.Time
		// Stream and Data carry one output chunk for EventOutput.
		Stream Stream
		Data   string
		// ExitCode carries the exit status for EventExited.
		ExitCode int
	}
)

const (
	// EventStarted fires after a process launched.
	EventStarted EventKind = "started"
	// EventOutput fires for each chunk a process writes.
	EventOutput EventKind = "output"
	// EventExited fires after a process finished.
	EventExited EventKind = "exited"

	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)
