// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const sshDialTimeout = 10 * time.Second

// SSHEnvironment runs code on a remote host over SSH. Setup opens the
// connection and creates a remote scratch directory; Teardown removes the
// directory and closes the connection.
type SSHEnvironment struct {
	cfg SSHConfig

	mu        sync.Mutex
	client    *ssh.Client
	remoteDir string
}

// NewSSHEnvironment creates the remote SSH environment.
func NewSSHEnvironment(cfg SSHConfig) *SSHEnvironment {
	return &SSHEnvironment{cfg: cfg}
}

// Name identifies the environment provider.
func (e *SSHEnvironment) Name() string { return ProviderSSH }

// Setup connects to the remote host and creates a scratch directory.
func (e *SSHEnvironment) Setup(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client != nil {
		return nil
	}

	clientCfg, err := e.clientConfig()
	if err != nil {
		return err
	}

	port := e.cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(port))

	client, err := dialSSH(ctx, addr, clientCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	out, _, code, err := runSession(ctx, client, "mktemp -d /tmp/anyenv.XXXXXX", nil, nil, nil)
	if err != nil || code != 0 {
		client.Close()
		if err == nil {
			err = fmt.Errorf("mktemp exited with status %d", code)
		}
		return fmt.Errorf("failed to create remote scratch directory: %w", err)
	}

	e.client = client
	e.remoteDir = strings.TrimSpace(out)
	return nil
}

// Teardown removes the remote scratch directory and closes the connection.
func (e *SSHEnvironment) Teardown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.client == nil {
		return nil
	}

	if e.remoteDir != "" {
		_, _, _, _ = runSession(ctx, e.client, "rm -rf "+e.remoteDir, nil, nil, nil)
		e.remoteDir = ""
	}
	err := e.client.Close()
	e.client = nil
	return err
}

// Execute runs a code snippet on the remote host.
func (e *SSHEnvironment) Execute(ctx context.Context, code string, opts ...ExecOption) (*Result, error) {
	cfg := applyExecOptions(e.defaultLanguage(), e.cfg.Timeout, opts)
	return e.run(ctx, code, cfg, nil, nil)
}

// ExecuteStream runs a code snippet and emits events as it progresses.
func (e *SSHEnvironment) ExecuteStream(ctx context.Context, code string, opts ...ExecOption) (<-chan Event, error) {
	cfg := applyExecOptions(e.defaultLanguage(), e.cfg.Timeout, opts)
	if err := cfg.language.Validate(); err != nil {
		return nil, err
	}
	return stream(ctx, func(ctx context.Context, stdoutTee, stderrTee io.Writer) (*Result, error) {
		return e.run(ctx, code, cfg, stdoutTee, stderrTee)
	}), nil
}

// RunCommand runs a command line on the remote host.
func (e *SSHEnvironment) RunCommand(ctx context.Context, command string, opts ...ExecOption) (*Result, error) {
	cfg := applyExecOptions(LanguageShell, e.cfg.Timeout, opts)

	client, _, err := e.connection()
	if err != nil {
		return nil, err
	}
	return e.runRemote(ctx, client, command, cfg, nil, nil)
}

func (e *SSHEnvironment) defaultLanguage() Language {
	if e.cfg.Language != "" {
		return e.cfg.Language
	}
	return LanguagePython
}

func (e *SSHEnvironment) connection() (*ssh.Client, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == nil {
		return nil, "", ErrNotSetUp
	}
	return e.client, e.remoteDir, nil
}

func (e *SSHEnvironment) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	switch {
	case e.cfg.Password != "":
		auth = append(auth, ssh.Password(e.cfg.Password))
	case e.cfg.KeyPath != "":
		keyData, err := os.ReadFile(e.cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	default:
		return nil, fmt.Errorf("%w: ssh config requires a password or key_path", ErrInvalidConfig)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // verification is opt-in via known_hosts_path
	if e.cfg.KnownHostsPath != "" {
		cb, err := knownhosts.New(e.cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            e.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         sshDialTimeout,
	}, nil
}

func (e *SSHEnvironment) run(ctx context.Context, code string, cfg execConfig, stdoutTee, stderrTee io.Writer) (*Result, error) {
	client, remoteDir, err := e.connection()
	if err != nil {
		return nil, err
	}

	wrapped, err := wrapCode(cfg.language, code)
	if err != nil {
		return nil, err
	}

	scriptPath := remoteDir + "/" + scriptFileName(cfg.language)
	if err := e.upload(ctx, client, scriptPath, wrapped); err != nil {
		return nil, err
	}

	argv := containerInterpreterArgv(cfg.language, scriptPath)
	return e.runRemote(ctx, client, strings.Join(argv, " "), cfg, stdoutTee, stderrTee)
}

// upload writes content to a remote path by piping it into cat.
func (e *SSHEnvironment) upload(ctx context.Context, client *ssh.Client, path, content string) error {
	_, stderr, code, err := runSession(ctx, client, "cat > "+path, strings.NewReader(content), nil, nil)
	if err != nil {
		return fmt.Errorf("failed to upload script: %w", err)
	}
	if code != 0 {
		return fmt.Errorf("failed to upload script (exit %d): %s", code, strings.TrimSpace(stderr))
	}
	return nil
}

func (e *SSHEnvironment) runRemote(ctx context.Context, client *ssh.Client, command string, cfg execConfig, stdoutTee, stderrTee io.Writer) (*Result, error) {
	runCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	full := command
	if cfg.workDir != "" {
		full = "cd " + cfg.workDir + " && " + command
	}
	if len(cfg.env) > 0 {
		var exports []string
		for k, v := range cfg.env {
			exports = append(exports, fmt.Sprintf("export %s=%q", k, v))
		}
		full = strings.Join(exports, "; ") + "; " + full
	}

	start := time.Now()
	stdout, stderr, exitCode, err := runSession(runCtx, client, full, nil, stdoutTee, stderrTee)
	duration := time.Since(start)

	if runCtx.Err() != nil {
		return timeoutResult(stdout, stderr, duration, cfg.timeout), nil
	}
	if err != nil {
		return nil, fmt.Errorf("remote execution failed: %w", err)
	}

	result := resultFromOutput(stdout, stderr, exitCode)
	result.Duration = duration
	return result, nil
}

// dialSSH dials with context cancellation, which ssh.Dial does not offer.
func dialSSH(ctx context.Context, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(sshConn, chans, reqs), nil
}

// runSession runs one command in a fresh session and returns its output
// and exit status. The session is torn down if ctx expires first.
func runSession(ctx context.Context, client *ssh.Client, command string, stdin io.Reader, stdoutTee, stderrTee io.Writer) (stdout, stderr string, exitCode int, err error) {
	session, err := client.NewSession()
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	session.Stdin = stdin
	session.Stdout = io.Writer(&stdoutBuf)
	if stdoutTee != nil {
		session.Stdout = io.MultiWriter(&stdoutBuf, stdoutTee)
	}
	session.Stderr = io.Writer(&stderrBuf)
	if stderrTee != nil {
		session.Stderr = io.MultiWriter(&stderrBuf, stderrTee)
	}

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		session.Close()
		<-done
		return stdoutBuf.String(), stderrBuf.String(), -1, ctx.Err()
	case runErr := <-done:
		if runErr != nil {
			var exitErr *ssh.ExitError
			if errors.As(runErr, &exitErr) {
				return stdoutBuf.String(), stderrBuf.String(), exitErr.ExitStatus(), nil
			}
			return stdoutBuf.String(), stderrBuf.String(), -1, runErr
		}
		return stdoutBuf.String(), stderrBuf.String(), 0, nil
	}
}
