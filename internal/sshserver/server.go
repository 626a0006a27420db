// SPDX-License-Identifier: MPL-2.0

package sshserver

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"

	"github.com/phil65/anyenv/internal/core/serverbase"
	"github.com/phil65/anyenv/internal/testutil"
)

type (
	// Token represents an authentication token for a sandbox callback session.
	Token struct {
		Value     TokenValue
		CreatedAt time.Time
		ExpiresAt time.Time
		SessionID string
	}

	// Server is the loopback SSH server for sandbox callbacks.
	// A Server instance is single-use: once stopped or failed, create a new instance.
	Server struct {
		*serverbase.Base

		// Immutable configuration (set at creation, never modified)
		cfg Config

		// Initialized during Start() - protected by srvMu
		srvMu    sync.Mutex
		srv      *ssh.Server
		listener serverListener
		addr     string // Actual bound address (including resolved port)

		// Token management
		tokens  map[TokenValue]*Token
		tokenMu sync.RWMutex

		clock  testutil.Clock
		logger *log.Logger
	}

	// Config holds immutable configuration for the callback server.
	Config struct {
		// Host is the address to bind to (default: 127.0.0.1)
		Host string
		// Port is the port to listen on (0 = auto-select)
		Port int
		// TokenTTL is how long tokens are valid (default: 1 hour)
		TokenTTL time.Duration
		// ShutdownTimeout is the timeout for graceful shutdown (default: 10s)
		ShutdownTimeout time.Duration
		// DefaultShell is the shell to use (default: /bin/sh)
		DefaultShell string
		// StartupTimeout is the max time to wait for server to be ready (default: 5s)
		StartupTimeout time.Duration
	}

	// ConnectionInfo contains what a sandboxed session needs to connect back.
	ConnectionInfo struct {
		Host     string
		Port     int
		Token    TokenValue
		User     string
		ExpireAt time.Time
	}
)

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		Host:            "127.0.0.1",
		Port:            0,
		TokenTTL:        time.Hour,
		ShutdownTimeout: 10 * time.Second,
		DefaultShell:    "/bin/sh",
		StartupTimeout:  5 * time.Second,
	}
}

// Validate returns nil if the Config is usable, or an *InvalidConfigError
// collecting the field-level failures.
func (c Config) Validate() error {
	var fieldErrs []error
	if err := HostAddress(c.Host).Validate(); err != nil {
		fieldErrs = append(fieldErrs, err)
	}
	if err := ListenPort(c.Port).Validate(); err != nil {
		fieldErrs = append(fieldErrs, err)
	}
	if c.DefaultShell == "" {
		fieldErrs = append(fieldErrs, errors.New("default shell must be non-empty"))
	}
	if len(fieldErrs) > 0 {
		return &InvalidConfigError{FieldErrors: fieldErrs}
	}
	return nil
}

// New creates a new callback server instance.
// The server is not started; call Start() to begin accepting connections.
func New(cfg Config) *Server {
	return NewWithClock(cfg, testutil.RealClock{})
}

// NewWithClock creates a new callback server with an explicit clock.
// Tests use this with a FakeClock to control token expiry deterministically.
func NewWithClock(cfg Config, clock testutil.Clock) *Server {
	// Apply defaults
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = time.Hour
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.DefaultShell == "" {
		cfg.DefaultShell = "/bin/sh"
	}
	if cfg.StartupTimeout == 0 {
		cfg.StartupTimeout = 5 * time.Second
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "callback-server",
	})

	return &Server{
		Base:   serverbase.NewBase(),
		cfg:    cfg,
		tokens: make(map[TokenValue]*Token),
		clock:  clock,
		logger: logger,
	}
}

// commandMiddleware handles command execution for authenticated sessions.
func (s *Server) commandMiddleware() wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			cmd := sess.Command()

			if len(cmd) == 0 {
				// Interactive shell session
				s.runInteractiveShell(sess)
			} else {
				// Execute command directly
				s.runCommand(sess, cmd)
			}
		}
	}
}

// runInteractiveShell starts an interactive shell session.
func (s *Server) runInteractiveShell(sess ssh.Session) {
	shell := s.cfg.DefaultShell

	cmd := exec.CommandContext(sess.Context(), shell)
	cmd.Env = append(os.Environ(), sess.Environ()...)

	ptyReq, winCh, isPty := sess.Pty()
	if isPty {
		cmd.Env = append(cmd.Env, fmt.Sprintf("TERM=%s", ptyReq.Term))
	}

	// Start the command with a pseudo-terminal
	f, err := startPty(cmd)
	if err != nil {
		_, _ = fmt.Fprintf(sess.Stderr(), "Error starting shell: %v\n", err)
		_ = sess.Exit(1)
		return
	}
	defer func() { _ = f.Close() }() // PTY cleanup; error non-critical

	// Handle window size changes
	go func() {
		for win := range winCh {
			setWinsize(f, win.Width, win.Height)
		}
	}()

	// Copy I/O
	go func() {
		_, _ = copyBuffer(f, sess)
	}()
	_, _ = copyBuffer(sess, f)

	// Wait for command to complete
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			_ = sess.Exit(exitErr.ExitCode())
			return
		}
	}
	_ = sess.Exit(0)
}

// runCommand executes a single command.
// A lone argument runs through the configured shell so pipelines and
// redirections work the way the sandboxed side expects.
func (s *Server) runCommand(sess ssh.Session, args []string) {
	var cmd *exec.Cmd
	if len(args) == 1 {
		cmd = exec.CommandContext(sess.Context(), s.cfg.DefaultShell, "-c", args[0])
	} else {
		cmd = exec.CommandContext(sess.Context(), args[0], args[1:]...)
	}

	cmd.Env = append(os.Environ(), sess.Environ()...)
	cmd.Stdin = sess
	cmd.Stdout = sess
	cmd.Stderr = sess.Stderr()

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			_ = sess.Exit(exitErr.ExitCode())
			return
		}
		_, _ = fmt.Fprintf(sess.Stderr(), "Error: %v\n", err)
		_ = sess.Exit(1)
		return
	}
	_ = sess.Exit(0)
}

// isClosedConnError checks if the error is a "use of closed network connection" error.
func isClosedConnError(err error) bool {
	if err == nil {
		return false
	}
	var opErr *netOpError
	if errors.As(err, &opErr) {
		return opErr.Err.Error() == "use of closed network connection"
	}
	return false
}
