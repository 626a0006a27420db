// SPDX-License-Identifier: MPL-2.0

// Package taskgroup runs functions in parallel and collects their results
// and errors. Unlike errgroup, a failing task does not discard the results
// of the tasks that succeeded.
package taskgroup

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Group executes tasks concurrently, optionally bounded by a worker limit.
// Create one with New; the zero value is not usable.
type Group[R any] struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu      sync.Mutex
	results []R
	errs    []error
}

// Option configures a Group.
type Option func(*options)

type options struct {
	maxWorkers int
}

// WithMaxWorkers bounds the number of tasks running at once. Zero or
// negative means unbounded.
func WithMaxWorkers(n int) Option {
	return func(o *options) { o.maxWorkers = n }
}

// New creates a Group.
func New[R any](opts ...Option) *Group[R] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	g := &Group[R]{}
	if o.maxWorkers > 0 {
		g.sem = semaphore.NewWeighted(int64(o.maxWorkers))
	}
	return g
}

// Go schedules fn. The task starts immediately (or once a worker slot frees
// up) and its result or error is recorded for Wait.
func (g *Group[R]) Go(ctx context.Context, fn func(ctx context.Context) (R, error)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()

		if g.sem != nil {
			if err := g.sem.Acquire(ctx, 1); err != nil {
				g.record(*new(R), err)
				return
			}
			defer g.sem.Release(1)
		}

		res, err := fn(ctx)
		g.record(res, err)
	}()
}

// Wait blocks until all scheduled tasks finish and returns the collected
// results together with the joined task errors (nil when every task
// succeeded). Result order is completion order.
func (g *Group[R]) Wait() ([]R, error) {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.results, errors.Join(g.errs...)
}

// Results returns the results collected so far.
func (g *Group[R]) Results() []R {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]R(nil), g.results...)
}

// Errs returns the errors collected so far.
func (g *Group[R]) Errs() []error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]error(nil), g.errs...)
}

func (g *Group[R]) record(res R, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.errs = append(g.errs, err)
		return
	}
	g.results = append(g.results, res)
}
