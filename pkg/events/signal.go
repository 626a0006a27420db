// SPDX-License-Identifier: MPL-2.0

// Package events provides typed in-process signals: a value of Signal[T]
// fans a payload out to connected handlers, either sequentially or in
// background goroutines.
package events

import (
	"context"
	"sync"
)

type (
	// Handler receives an emitted payload. Returning an error stops a
	// sequential Emit and is reported to the caller.
	Handler[T any] func(ctx context.Context, payload T) error

	// Signal is a typed event source. The zero value is ready to use.
	// Connect and Emit are safe for concurrent use.
	Signal[T any] struct {
		mu       sync.RWMutex
		nextID   int
		handlers []connection[T]
	}

	connection[T any] struct {
		id int
		fn Handler[T]
	}
)

// Connect registers a handler and returns a function that disconnects it.
func (s *Signal[T]) Connect(fn Handler[T]) (disconnect func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.handlers = append(s.handlers, connection[T]{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, c := range s.handlers {
			if c.id == id {
				s.handlers = append(s.handlers[:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers payload to all handlers in connection order. Delivery stops
// at the first handler error, which is returned.
func (s *Signal[T]) Emit(ctx context.Context, payload T) error {
	for _, fn := range s.snapshot() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, payload); err != nil {
			return err
		}
	}
	return nil
}

// EmitBackground delivers payload to each handler in its own goroutine and
// returns without waiting. Handler errors are discarded.
func (s *Signal[T]) EmitBackground(ctx context.Context, payload T) {
	for _, fn := range s.snapshot() {
		go func(fn Handler[T]) {
			_ = fn(ctx, payload)
		}(fn)
	}
}

// Len returns the number of connected handlers.
func (s *Signal[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.handlers)
}

// snapshot copies the handler list so emission never holds the lock while
// running user code.
func (s *Signal[T]) snapshot() []Handler[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fns := make([]Handler[T], len(s.handlers))
	for i, c := range s.handlers {
		fns[i] = c.fn
	}
	return fns
}
