// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Base carries the lifecycle state machine a long-running server embeds.
// An instance is single-use: once stopped or failed, build a new one.
type Base struct {
	state atomic.Int32

	mu      sync.Mutex // guards failure
	failure error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ready  chan struct{}
	errs   chan error
}

// NewBase builds a Base in the Created state. The error channel buffer
// defaults to 1; override with WithErrorChannel.
func NewBase(opts ...Option) *Base {
	b := &Base{
		ready: make(chan struct{}),
		errs:  make(chan error, 1),
	}
	b.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// State returns the current lifecycle state without locking.
func (b *Base) State() State {
	return State(b.state.Load())
}

// IsRunning reports whether the server is in the Running state.
func (b *Base) IsRunning() bool {
	return b.State() == StateRunning
}

// Err exposes asynchronous serve errors.
func (b *Base) Err() <-chan error {
	return b.errs
}

// LastError returns the error that moved the server to Failed, or nil.
func (b *Base) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failure
}

// TransitionToStarting moves Created to Starting. It rejects a context
// that is already cancelled before any setup happens, so a serve
// goroutine can never reach Running under a dead context.
func (b *Base) TransitionToStarting(ctx context.Context) error {
	select {
	case <-ctx.Done():
		b.TransitionToFailed(fmt.Errorf("context cancelled before start: %w", ctx.Err()))
		return b.LastError()
	default:
	}

	if !b.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start server in state %s", b.State())
	}

	b.ctx, b.cancel = context.WithCancel(context.Background())
	return nil
}

// TransitionToRunning marks the server ready and releases WaitForReady
// waiters. Call once the listener is accepting connections.
func (b *Base) TransitionToRunning() {
	if b.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(b.ready)
	}
}

// TransitionToFailed records err, moves to Failed, and cancels the
// server context.
func (b *Base) TransitionToFailed(err error) {
	b.mu.Lock()
	b.failure = err
	b.mu.Unlock()

	b.state.Store(int32(StateFailed))

	if b.cancel != nil {
		b.cancel()
	}
	b.SendError(err)
}

// TransitionToStopping begins shutdown. It returns true when the caller
// owns the transition; false means the server never ran, already
// stopped, or another stop is in flight. A Created server moves
// straight to Stopped.
func (b *Base) TransitionToStopping() bool {
	for {
		current := State(b.state.Load())
		switch current {
		case StateStopped, StateFailed, StateStopping:
			return false
		case StateCreated:
			if b.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return false
			}
		case StateStarting, StateRunning:
			if !b.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				continue
			}
			if b.cancel != nil {
				b.cancel()
			}
			return true
		default:
			return false
		}
	}
}

// TransitionToStopped finalizes shutdown. Call after WaitForShutdown.
func (b *Base) TransitionToStopped() {
	b.state.Store(int32(StateStopped))
}

// WaitForReady blocks until the server reaches Running or ctx ends.
func (b *Base) WaitForReady(ctx context.Context) error {
	select {
	case <-b.ready:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for server ready: %w", ctx.Err())
	}
}

// WaitForShutdown blocks until every tracked goroutine has exited.
func (b *Base) WaitForShutdown() {
	b.wg.Wait()
}

// Context returns the server context, or nil before start.
func (b *Base) Context() context.Context {
	return b.ctx
}

// AddGoroutine registers a goroutine with the shutdown WaitGroup.
// Call before spawning; pair with a deferred DoneGoroutine.
func (b *Base) AddGoroutine() {
	b.wg.Add(1)
}

// DoneGoroutine marks a tracked goroutine as exited.
func (b *Base) DoneGoroutine() {
	b.wg.Done()
}

// SendError delivers err to the Err channel, dropping it when full.
func (b *Base) SendError(err error) {
	select {
	case b.errs <- err:
	default:
	}
}

// CloseErrChannel closes the Err channel once the server is fully stopped.
func (b *Base) CloseErrChannel() {
	close(b.errs)
}

// StartedChannel is closed when the server reaches Running.
func (b *Base) StartedChannel() <-chan struct{} {
	return b.ready
}
