// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"sync"
	"time"
)

// Clock abstracts time so token expiry and scheduling can be tested
// deterministically. Production code passes RealClock.
type Clock interface {
	Now() time.Time
	// After behaves like time.After. On FakeClock the channel fires
	// when Advance or Set moves past the deadline.
	After(d time.Duration) <-chan time.Time
	Since(t time.Time) time.Duration
}

// RealClock delegates to the time package.
type RealClock struct{}

func (RealClock) Now() time.Time                         { return time.Now() }
func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (RealClock) Since(t time.Time) time.Duration        { return time.Since(t) }

// FakeClock only moves when Advance or Set is called.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	pending []fakeTimer
}

type fakeTimer struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFakeClock builds a FakeClock starting at initial. A zero initial
// falls back to a fixed reference instant so tests stay reproducible.
func NewFakeClock(initial time.Time) *FakeClock {
	if initial.IsZero() {
		initial = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &FakeClock{current: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After registers a timer that fires once the fake time reaches now+d.
// Non-positive durations fire immediately.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.pending = append(c.pending, fakeTimer{deadline: c.current.Add(d), ch: ch})
	return ch
}

func (c *FakeClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(t)
}

// Advance moves the fake time forward by d and fires expired timers.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	c.fireExpired()
}

// Set jumps the fake time to t and fires expired timers.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
	c.fireExpired()
}

// fireExpired delivers to every timer at or past its deadline. Caller
// holds mu.
func (c *FakeClock) fireExpired() {
	remaining := c.pending[:0]
	for _, timer := range c.pending {
		if c.current.Before(timer.deadline) {
			remaining = append(remaining, timer)
			continue
		}
		select {
		case timer.ch <- c.current:
		default:
		}
	}
	c.pending = remaining
}
