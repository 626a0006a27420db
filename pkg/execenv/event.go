// SPDX-License-Identifier: MPL-2.0

package execenv

import "time"

// EventKind identifies the type of an execution event.
type EventKind string

const (
	// EventStarted is emitted once when execution begins.
	EventStarted EventKind = "started"
	// EventOutput is emitted for each chunk of stdout or stderr.
	EventOutput EventKind = "output"
	// EventCompleted is emitted once when execution finishes, regardless
	// of whether the executed code succeeded.
	EventCompleted EventKind = "completed"
	// EventFailed is emitted instead of EventCompleted when the execution
	// itself could not run (infrastructure failure).
	EventFailed EventKind = "failed"
)

// StreamName identifies which output stream a chunk came from.
type StreamName string

const (
	StreamStdout StreamName = "stdout"
	StreamStderr StreamName = "stderr"
)

// Event is a single execution lifecycle or output notification.
type Event struct {
	// Kind is the event type.
	Kind EventKind
	// ExecutionID identifies the execution this event belongs to.
	ExecutionID string
	// Time is when the event was produced.
	Time time.Time
	// Stream names the output stream for EventOutput events.
	Stream StreamName
	// Data holds the output chunk for EventOutput events.
	Data string
	// Result holds the final result for EventCompleted events.
	Result *Result
	// Err holds the infrastructure error for EventFailed events.
	Err error
}
