// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"errors"
	"fmt"
)

// State is the lifecycle phase of a server.
type State int32

// Lifecycle states. Stopped and Failed are terminal.
const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

// ErrInvalidState marks a State value outside the defined lifecycle.
var ErrInvalidState = errors.New("invalid state")

// InvalidStateError reports an out-of-range State. It wraps
// ErrInvalidState for errors.Is.
type InvalidStateError struct {
	Value State
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid state %d (valid: 0=created, 1=starting, 2=running, 3=stopping, 4=stopped, 5=failed)", e.Value)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Validate returns an InvalidStateError when s is not a defined state.
func (s State) Validate() error {
	switch s {
	case StateCreated, StateStarting, StateRunning, StateStopping, StateStopped, StateFailed:
		return nil
	default:
		return &InvalidStateError{Value: s}
	}
}

// IsTerminal reports whether s is Stopped or Failed.
func (s State) IsTerminal() bool {
	return s == StateStopped || s == StateFailed
}
