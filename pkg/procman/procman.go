// SPDX-License-Identifier: MPL-2.0

// Package procman manages long-lived background processes: start them,
// collect their output into bounded buffers, feed them input, and stop
// them gracefully. Each process gets a manager-scoped id of the form
// "proc_<n>".
package procman

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/phil65/anyenv/pkg/events"
)

const (
	// DefaultStopGrace is how long Stop waits after a graceful terminate
	// before killing the process.
	DefaultStopGrace = 5 * time.Second

	readChunkSize = 4096
)

var (
	// ErrStart is the sentinel error wrapped when a process cannot be
	// started.
	ErrStart = errors.New("failed to start process")

	// ErrNotFound is the sentinel error wrapped when a process id is not
	// tracked by the manager.
	ErrNotFound = errors.New("process not found")

	// ErrExited is returned when input is sent to a finished process.
	ErrExited = errors.New("process has exited")

	// ErrInteractiveUnsupported is returned when an interactive process
	// is requested on a platform without PTY support.
	ErrInteractiveUnsupported = errors.New("interactive processes are not supported on this platform")
)

type (
	// ProcessOutput is a snapshot of everything a process has written.
	ProcessOutput struct {
		// Stdout holds captured standard output.
		Stdout string
		// Stderr holds captured standard error.
		Stderr string
		// Combined interleaves both streams in arrival order.
		Combined string
		// Truncated reports whether the output limit dropped old data.
		Truncated bool
		// ExitCode is the exit status. Only meaningful when Exited is set.
		ExitCode int
		// Exited reports whether the process has finished.
		Exited bool
	}

	// ProcessInfo describes a tracked process.
	ProcessInfo struct {
		ID        string
		Command   string
		Args      []string
		Dir       string
		StartedAt time.Time
		Running   bool
		ExitCode  int
	}

	// Manager starts and tracks background processes. The zero value is
	// not usable; create one with NewManager.
	Manager struct {
		// Events carries process lifecycle signals (started, output,
		// exited). Connect handlers before starting processes.
		Events events.Signal[Event]

		mu     sync.Mutex
		nextID int
		procs  map[string]*process
	}

	process struct {
		id        string
		command   string
		args      []string
		dir       string
		startedAt time.Time
		cmd       *exec.Cmd
		input     io.WriteCloser
		pty       *os.File

		mu       sync.Mutex
		stdout   outputBuffer
		stderr   outputBuffer
		combined outputBuffer
		exited   bool
		exitCode int

		done chan struct{}
	}
)

// NewManager creates an empty process manager.
func NewManager() *Manager {
	return &Manager{procs: make(map[string]*process)}
}

// Start launches a process and returns its id. With args, the command is
// executed directly; without args, it is run through the system shell so
// pipelines and conjunctions work.
func (m *Manager) Start(ctx context.Context, command string, args []string, opts ...StartOption) (string, error) {
	cfg := applyStartOptions(opts)

	cmd := buildCommand(command, args)
	cmd.Dir = cfg.dir
	if len(cfg.env) > 0 {
		cmd.Env = os.Environ()
		for k, v := range cfg.env {
			cmd.Env = append(cmd.Env, k+"="+v)
		}
	}

	p := &process{
		command:   command,
		args:      args,
		dir:       cfg.dir,
		startedAt: time.Now(),
		cmd:       cmd,
		done:      make(chan struct{}),
	}
	p.stdout.limit = cfg.outputLimit
	p.stderr.limit = cfg.outputLimit
	p.combined.limit = cfg.outputLimit

	var pumps []func()
	if cfg.interactive {
		ptyFile, err := startPty(cmd)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrStart, command, err)
		}
		p.pty = ptyFile
		p.input = ptyFile
		pumps = append(pumps, func() { m.pump(p, StreamStdout, ptyFile) })
	} else {
		stdin, err := cmd.StdinPipe()
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrStart, command, err)
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrStart, command, err)
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrStart, command, err)
		}
		if err := cmd.Start(); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrStart, command, err)
		}
		p.input = stdin
		pumps = append(pumps,
			func() { m.pump(p, StreamStdout, stdout) },
			func() { m.pump(p, StreamStderr, stderr) },
		)
	}

	m.mu.Lock()
	m.nextID++
	p.id = fmt.Sprintf("proc_%d", m.nextID)
	m.procs[p.id] = p
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, pump := range pumps {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pump()
		}()
	}
	go m.reap(p, &wg)

	m.Events.EmitBackground(ctx, Event{
		Kind:      EventStarted,
		ProcessID: p.id,
		Time:      time.Now(),
	})
	return p.id, nil
}

// Output returns a snapshot of a process's captured output.
func (m *Manager) Output(id string) (*ProcessOutput, error) {
	p, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return p.snapshot(), nil
}

// Info returns metadata about a tracked process.
func (m *Manager) Info(id string) (*ProcessInfo, error) {
	p, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return &ProcessInfo{
		ID:        p.id,
		Command:   p.command,
		Args:      p.args,
		Dir:       p.dir,
		StartedAt: p.startedAt,
		Running:   !p.exited,
		ExitCode:  p.exitCode,
	}, nil
}

// List returns the ids of all tracked processes.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.procs))
	for id := range m.procs {
		ids = append(ids, id)
	}
	return ids
}

// SendInput writes to a process's standard input (or its PTY when
// interactive).
func (m *Manager) SendInput(id, input string) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()
	if exited {
		return fmt.Errorf("%w: %s", ErrExited, id)
	}

	if _, err := io.WriteString(p.input, input); err != nil {
		return fmt.Errorf("failed to send input to %s: %w", id, err)
	}
	return nil
}

// Wait blocks until a process exits and returns its exit code.
func (m *Manager) Wait(ctx context.Context, id string) (int, error) {
	p, err := m.lookup(id)
	if err != nil {
		return 0, err
	}

	select {
	case <-p.done:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, nil
}

// Stop terminates a process: a graceful signal first, then a kill when it
// has not exited after the grace period.
func (m *Manager) Stop(ctx context.Context, id string, opts ...StopOption) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}
	return m.stop(ctx, p, applyStopOptions(opts).grace)
}

// Release stops tracking a process. A still-running process is killed
// first.
func (m *Manager) Release(id string) error {
	p, err := m.lookup(id)
	if err != nil {
		return err
	}

	p.mu.Lock()
	running := !p.exited
	p.mu.Unlock()
	if running {
		_ = p.cmd.Process.Kill()
		<-p.done
	}

	m.mu.Lock()
	delete(m.procs, id)
	m.mu.Unlock()
	return nil
}

// Cleanup stops every tracked process and clears the manager.
func (m *Manager) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	procs := make([]*process, 0, len(m.procs))
	for _, p := range m.procs {
		procs = append(procs, p)
	}
	m.procs = make(map[string]*process)
	m.mu.Unlock()

	var errs []error
	for _, p := range procs {
		if err := m.stop(ctx, p, time.Second); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *Manager) stop(ctx context.Context, p *process, grace time.Duration) error {
	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()
	if exited {
		return nil
	}

	if err := terminateProcess(p.cmd.Process); err != nil {
		// Already gone between the exited check and the signal.
		return nil
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		_ = p.cmd.Process.Kill()
		return ctx.Err()
	case <-timer.C:
	}

	_ = p.cmd.Process.Kill()
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) lookup(id string) (*process, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.procs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// pump drains one output stream into the process buffers, emitting an
// output event per chunk. Output events are delivered sequentially so
// handlers observe chunks in read order; handler errors are dropped.
func (m *Manager) pump(p *process, stream Stream, r io.Reader) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := string(buf[:n])
			p.addOutput(stream, chunk)
			_ = m.Events.Emit(context.Background(), Event{
				Kind:      EventOutput,
				ProcessID: p.id,
				Time:      time.Now(),
				Stream:    stream,
				Data:      chunk,
			})
		}
		if err != nil {
			return
		}
	}
}

// reap waits for the pumps to drain, collects the exit status, and emits
// the exited event.
func (m *Manager) reap(p *process, pumps *sync.WaitGroup) {
	pumps.Wait()
	err := p.cmd.Wait()

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = -1
		}
	}

	p.mu.Lock()
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()
	if p.pty != nil {
		_ = p.pty.Close()
	}
	close(p.done)

	m.Events.EmitBackground(context.Background(), Event{
		Kind:      EventExited,
		ProcessID: p.id,
		Time:      time.Now(),
		ExitCode:  code,
	})
}

func (p *process) addOutput(stream Stream, chunk string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch stream {
	case StreamStderr:
		p.stderr.write(chunk)
	default:
		p.stdout.write(chunk)
	}
	p.combined.write(chunk)
}

func (p *process) snapshot() *ProcessOutput {
	p.mu.Lock()
	defer p.mu.Unlock()

	return &ProcessOutput{
		Stdout:    p.stdout.String(),
		Stderr:    p.stderr.String(),
		Combined:  p.combined.String(),
		Truncated: p.stdout.truncated || p.stderr.truncated || p.combined.truncated,
		ExitCode:  p.exitCode,
		Exited:    p.exited,
	}
}

// buildCommand prepares the exec.Cmd: direct invocation with args, shell
// interpretation without.
func buildCommand(command string, args []string) *exec.Cmd {
	if len(args) > 0 {
		return exec.Command(command, args...)
	}
	if runtime.GOOS == "windows" {
		return exec.Command("cmd", "/C", command)
	}
	return exec.Command("sh", "-c", command)
}

// outputBuffer keeps at most limit bytes, dropping the oldest data. A
// zero limit keeps everything.
type outputBuffer struct {
	limit     int
	data      []byte
	truncated bool
}

func (b *outputBuffer) write(chunk string) {
	b.data = append(b.data, chunk...)
	if b.limit > 0 && len(b.data) > b.limit {
		b.data = b.data[len(b.data)-b.limit:]
		b.truncated = true
	}
}

func (b *outputBuffer) String() string {
	return string(b.data)
}
