// SPDX-License-Identifier: MPL-2.0

package serverbase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBase_FullLifecycle(t *testing.T) {
	t.Parallel()

	b := NewBase()

	if b.State() != StateCreated {
		t.Errorf("State() = %s, want created", b.State())
	}

	if err := b.TransitionToStarting(context.Background()); err != nil {
		t.Fatalf("TransitionToStarting() error = %v", err)
	}
	if b.State() != StateStarting {
		t.Errorf("State() = %s, want starting", b.State())
	}

	b.TransitionToRunning()
	if !b.IsRunning() {
		t.Errorf("IsRunning() = false after TransitionToRunning, state %s", b.State())
	}

	if !b.TransitionToStopping() {
		t.Error("TransitionToStopping() = false, want true for running server")
	}
	if b.State() != StateStopping {
		t.Errorf("State() = %s, want stopping", b.State())
	}

	b.TransitionToStopped()
	if b.State() != StateStopped {
		t.Errorf("State() = %s, want stopped", b.State())
	}
}

func TestBase_FailedStartup(t *testing.T) {
	t.Parallel()

	b := NewBase()
	if err := b.TransitionToStarting(context.Background()); err != nil {
		t.Fatalf("TransitionToStarting() error = %v", err)
	}

	bootErr := errors.New("bind failed")
	b.TransitionToFailed(bootErr)

	if b.State() != StateFailed {
		t.Errorf("State() = %s, want failed", b.State())
	}
	if !errors.Is(b.LastError(), bootErr) {
		t.Errorf("LastError() = %v, want %v", b.LastError(), bootErr)
	}

	select {
	case err := <-b.Err():
		if !errors.Is(err, bootErr) {
			t.Errorf("Err() delivered %v, want %v", err, bootErr)
		}
	default:
		t.Error("Err() channel empty after TransitionToFailed")
	}
}

// Run under -race: lock-free reads must be safe against transitions.
func TestBase_ConcurrentReads(t *testing.T) {
	t.Parallel()

	b := NewBase()

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			for range 100 {
				_ = b.State()
				_ = b.IsRunning()
			}
		})
	}

	_ = b.TransitionToStarting(context.Background())
	b.TransitionToRunning()
	b.TransitionToStopping()
	b.TransitionToStopped()

	wg.Wait()
}

func TestBase_ConcurrentStops(t *testing.T) {
	t.Parallel()

	b := NewBase()
	if err := b.TransitionToStarting(context.Background()); err != nil {
		t.Fatalf("TransitionToStarting() error = %v", err)
	}
	b.TransitionToRunning()

	var wg sync.WaitGroup
	for range 10 {
		wg.Go(func() {
			b.TransitionToStopping()
		})
	}
	wg.Wait()

	if state := b.State(); state != StateStopping && state != StateStopped {
		t.Errorf("State() = %s, want stopping or stopped", state)
	}
}

func TestBase_Idempotency(t *testing.T) {
	t.Parallel()

	t.Run("second start rejected", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting() error = %v", err)
		}
		if err := b.TransitionToStarting(context.Background()); err == nil {
			t.Error("second TransitionToStarting() succeeded, want error")
		}
	})

	t.Run("double stop is a no-op", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting() error = %v", err)
		}
		b.TransitionToRunning()

		if !b.TransitionToStopping() {
			t.Error("first TransitionToStopping() = false, want true")
		}
		b.TransitionToStopped()

		if b.TransitionToStopping() {
			t.Error("second TransitionToStopping() = true, want false")
		}
		if b.State() != StateStopped {
			t.Errorf("State() = %s, want stopped", b.State())
		}
	})

	t.Run("stop before start marks stopped", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if b.TransitionToStopping() {
			t.Error("TransitionToStopping() from created = true, want false")
		}
		if b.State() != StateStopped {
			t.Errorf("State() = %s, want stopped", b.State())
		}
	})

	t.Run("stop after failure keeps failed", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting() error = %v", err)
		}
		b.TransitionToFailed(errors.New("boom"))

		if b.TransitionToStopping() {
			t.Error("TransitionToStopping() from failed = true, want false")
		}
		if b.State() != StateFailed {
			t.Errorf("State() = %s, want failed", b.State())
		}
	})
}

func TestBase_CancelledContext(t *testing.T) {
	t.Parallel()

	t.Run("start under dead context fails", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		if err := b.TransitionToStarting(ctx); err == nil {
			t.Error("TransitionToStarting() with cancelled context succeeded")
		}
		if b.State() != StateFailed {
			t.Errorf("State() = %s, want failed", b.State())
		}
	})

	t.Run("WaitForReady honors deadline", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting() error = %v", err)
		}

		waitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		// Server never reaches Running.
		if err := b.WaitForReady(waitCtx); err == nil {
			t.Error("WaitForReady() on stalled server succeeded, want deadline error")
		}
	})

	t.Run("WaitForReady releases on running", func(t *testing.T) {
		t.Parallel()

		b := NewBase()
		if err := b.TransitionToStarting(context.Background()); err != nil {
			t.Fatalf("TransitionToStarting() error = %v", err)
		}

		go b.TransitionToRunning()

		waitCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := b.WaitForReady(waitCtx); err != nil {
			t.Errorf("WaitForReady() error = %v", err)
		}
	})
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state State
		want  string
	}{
		{StateCreated, "created"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateStopped, "stopped"},
		{StateFailed, "failed"},
		{State(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}

func TestState_IsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    State
		terminal bool
	}{
		{StateCreated, false},
		{StateStarting, false},
		{StateRunning, false},
		{StateStopping, false},
		{StateStopped, true},
		{StateFailed, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			t.Parallel()
			if got := tt.state.IsTerminal(); got != tt.terminal {
				t.Errorf("State(%d).IsTerminal() = %v, want %v", tt.state, got, tt.terminal)
			}
		})
	}
}

func TestState_Validate(t *testing.T) {
	t.Parallel()

	for _, s := range []State{StateCreated, StateStarting, StateRunning, StateStopping, StateStopped, StateFailed} {
		if err := s.Validate(); err != nil {
			t.Errorf("State(%d).Validate() error = %v", s, err)
		}
	}

	for _, s := range []State{State(99), State(-1)} {
		err := s.Validate()
		if err == nil {
			t.Fatalf("State(%d).Validate() = nil, want error", s)
		}
		if !errors.Is(err, ErrInvalidState) {
			t.Errorf("State(%d).Validate() = %v, want ErrInvalidState", s, err)
		}
		var invalid *InvalidStateError
		if !errors.As(err, &invalid) || invalid.Value != s {
			t.Errorf("State(%d).Validate() = %v, want InvalidStateError for that value", s, err)
		}
	}
}

func TestWithErrorChannel(t *testing.T) {
	t.Parallel()

	b := NewBase(WithErrorChannel(5))

	for range 5 {
		b.SendError(errors.New("serve error"))
	}

	for i := range 5 {
		select {
		case <-b.Err():
		default:
			t.Errorf("Err() missing buffered error %d", i)
		}
	}
}

func TestBase_GoroutineTracking(t *testing.T) {
	t.Parallel()

	b := NewBase()
	if err := b.TransitionToStarting(context.Background()); err != nil {
		t.Fatalf("TransitionToStarting() error = %v", err)
	}

	var (
		mu      sync.Mutex
		counter int
	)
	for range 5 {
		b.AddGoroutine()
		go func() {
			defer b.DoneGoroutine()
			mu.Lock()
			counter++
			mu.Unlock()
		}()
	}

	b.WaitForShutdown()

	mu.Lock()
	defer mu.Unlock()
	if counter != 5 {
		t.Errorf("tracked goroutines ran = %d, want 5", counter)
	}
}

func TestBase_Context(t *testing.T) {
	t.Parallel()

	b := NewBase()

	if b.Context() != nil {
		t.Error("Context() before start = non-nil, want nil")
	}

	if err := b.TransitionToStarting(context.Background()); err != nil {
		t.Fatalf("TransitionToStarting() error = %v", err)
	}
	if b.Context() == nil {
		t.Fatal("Context() after start = nil")
	}

	b.TransitionToRunning()
	b.TransitionToStopping()

	select {
	case <-b.Context().Done():
	default:
		t.Error("Context() still live after TransitionToStopping")
	}
}
