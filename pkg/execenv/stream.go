// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// runFunc is the provider execution core shared between Execute and
// ExecuteStream. The tee writers receive output as it is produced; they
// may be nil when nobody is streaming.
type runFunc func(ctx context.Context, stdoutTee, stderrTee io.Writer) (*Result, error)

// stream drives a runFunc and turns its progress into events. The
// returned channel is closed after the terminal event. Sends select on
// ctx so a consumer that stops draining can cancel instead of wedging
// the run goroutine behind a full buffer.
func stream(ctx context.Context, run runFunc) <-chan Event {
	id := uuid.NewString()
	ch := make(chan Event, 16)

	send := func(ev Event) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(ch)

		if !send(Event{Kind: EventStarted, ExecutionID: id, Time: time.Now()}) {
			return
		}

		stdout := &eventWriter{ctx: ctx, ch: ch, id: id, stream: StreamStdout}
		stderr := &eventWriter{ctx: ctx, ch: ch, id: id, stream: StreamStderr}

		result, err := run(ctx, stdout, stderr)
		if err != nil {
			send(Event{Kind: EventFailed, ExecutionID: id, Time: time.Now(), Err: err})
			return
		}
		send(Event{Kind: EventCompleted, ExecutionID: id, Time: time.Now(), Result: result})
	}()

	return ch
}

// eventWriter forwards written chunks as EventOutput events. Once the
// context ends it reports the context error, which aborts the copy
// feeding it.
type eventWriter struct {
	ctx    context.Context
	ch     chan Event
	id     string
	stream StreamName
}

func (w *eventWriter) Write(b []byte) (int, error) {
	ev := Event{
		Kind:        EventOutput,
		ExecutionID: w.id,
		Time:        time.Now(),
		Stream:      w.stream,
		Data:        string(b),
	}
	select {
	case w.ch <- ev:
		return len(b), nil
	case <-w.ctx.Done():
		return 0, w.ctx.Err()
	}
}
