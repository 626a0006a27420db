// SPDX-License-Identifier: MPL-2.0

// Package toolserver exposes host-registered tool functions over a loopback
// HTTP API so code running inside an execution environment (subprocess,
// container, remote host) can call back into the host process.
package toolserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/phil65/anyenv/pkg/jsonx"
)

const shutdownTimeout = 5 * time.Second

var (
	// ErrUnknownTool is returned when a call names a tool that was never
	// registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrNotStarted is returned by Addr before Start has been called.
	ErrNotStarted = errors.New("tool server not started")
)

type (
	// ToolFunc is a host function callable from inside an execution
	// environment. args holds the decoded JSON arguments of the call.
	ToolFunc func(ctx context.Context, args map[string]any) (any, error)

	// Option configures a Server.
	Option func(*Server)

	// Server serves registered tools on an ephemeral loopback listener.
	// Calls must carry the bearer token returned by Token.
	Server struct {
		mu       sync.RWMutex
		tools    map[string]ToolFunc
		token    string
		listener net.Listener
		httpSrv  *http.Server
	}

	// callRequest is the wire format of a tool call. Arguments travel
	// under a "params" key so the body stays extensible.
	callRequest struct {
		Params map[string]any `json:"params"`
	}

	callResponse struct {
		Result any    `json:"result,omitempty"`
		Error  string `json:"error,omitempty"`
	}
)

// WithToken overrides the generated bearer token. Useful in tests.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// New creates a Server with a fresh random bearer token.
func New(opts ...Option) *Server {
	s := &Server{
		tools: make(map[string]ToolFunc),
		token: uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register makes a tool callable. Registering the same name twice replaces
// the previous function.
func (s *Server) Register(name string, fn ToolFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[name] = fn
}

// Token returns the bearer token callers must present.
func (s *Server) Token() string { return s.token }

// Addr returns the base URL of the running server.
func (s *Server) Addr() (string, error) {
	if s.listener == nil {
		return "", ErrNotStarted
	}
	return "http://" + s.listener.Addr().String(), nil
}

// Start begins serving on an ephemeral loopback port.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen on loopback: %w", err)
	}
	s.listener = ln
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		// http.ErrServerClosed is the normal shutdown path.
		_ = s.httpSrv.Serve(ln)
	}()
	return nil
}

// Close shuts the server down, waiting briefly for in-flight calls.
func (s *Server) Close() error {
	if s.httpSrv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpSrv.Shutdown(ctx)
	s.httpSrv = nil
	s.listener = nil
	return err
}

// Handler returns the HTTP handler serving the tool API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/tools", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/", s.handleList)
		r.Post("/{name}", s.handleCall)
	})

	return r
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeJSON(w, http.StatusUnauthorized, callResponse{Error: "invalid or missing token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{"tools": names})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.RLock()
	fn, ok := s.tools[name]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, callResponse{Error: ErrUnknownTool.Error() + ": " + name})
		return
	}

	args := map[string]any{}
	if r.Body != nil && r.ContentLength != 0 {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, callResponse{Error: "failed to read request body: " + err.Error()})
			return
		}
		var call callRequest
		if err := jsonx.Load(body, &call); err != nil {
			writeJSON(w, http.StatusBadRequest, callResponse{Error: "invalid arguments: " + err.Error()})
			return
		}
		if call.Params != nil {
			args = call.Params
		}
	}

	result, err := fn(r.Context(), args)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, callResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, callResponse{Result: result})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	buf, err := jsonx.Dump(v, jsonx.DumpOptions{})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf))
}
