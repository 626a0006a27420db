// SPDX-License-Identifier: MPL-2.0

package toolserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/phil65/anyenv/pkg/jsonx"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := New(WithToken("test-token"))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func callTool(t *testing.T, ts *httptest.Server, name, token string, args map[string]any) *http.Response {
	t.Helper()
	body, err := jsonx.Dump(map[string]any{"params": args}, jsonx.DumpOptions{})
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	req, err := http.NewRequestWithContext(context.Background(),
		http.MethodPost, ts.URL+"/api/tools/"+name, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	var out map[string]any
	if err := jsonx.Load(body, &out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestServer_CallTool(t *testing.T) {
	s, ts := newTestServer(t)
	s.Register("add", func(_ context.Context, args map[string]any) (any, error) {
		a, _ := args["a"].(float64)
		b, _ := args["b"].(float64)
		return a + b, nil
	})

	resp := callTool(t, ts, "add", "test-token", map[string]any{"a": 2, "b": 3})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	out := decodeResponse(t, resp)
	if fmt.Sprint(out["result"]) != "5" {
		t.Errorf("result = %v, want 5", out["result"])
	}
}

func TestServer_ParamsEnvelope(t *testing.T) {
	s, ts := newTestServer(t)
	var got map[string]any
	s.Register("echo", func(_ context.Context, args map[string]any) (any, error) {
		got = args
		return len(args), nil
	})

	// Arguments arrive wrapped under "params"; the tool sees them unwrapped.
	req, err := http.NewRequestWithContext(context.Background(),
		http.MethodPost, ts.URL+"/api/tools/echo", strings.NewReader(`{"params":{"a":2,"b":"x"}}`))
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Authorization", "Bearer test-token")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if _, ok := got["params"]; ok {
		t.Error("tool args contain a nested params key, want unwrapped arguments")
	}
	if fmt.Sprint(got["a"]) != "2" || got["b"] != "x" {
		t.Errorf("tool args = %v, want a=2 b=x", got)
	}
}

func TestServer_RejectsBadToken(t *testing.T) {
	s, ts := newTestServer(t)
	s.Register("noop", func(context.Context, map[string]any) (any, error) { return nil, nil })

	for _, token := range []string{"", "wrong"} {
		resp := callTool(t, ts, "noop", token, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want %d", token, resp.StatusCode, http.StatusUnauthorized)
		}
	}
}

func TestServer_UnknownTool(t *testing.T) {
	_, ts := newTestServer(t)

	resp := callTool(t, ts, "missing", "test-token", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
	out := decodeResponse(t, resp)
	errMsg, _ := out["error"].(string)
	if !strings.Contains(errMsg, "unknown tool") {
		t.Errorf("error = %q, want mention of unknown tool", errMsg)
	}
}

func TestServer_ToolError(t *testing.T) {
	s, ts := newTestServer(t)
	s.Register("boom", func(context.Context, map[string]any) (any, error) {
		return nil, errors.New("exploded")
	})

	resp := callTool(t, ts, "boom", "test-token", nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}
	out := decodeResponse(t, resp)
	if out["error"] != "exploded" {
		t.Errorf("error = %v, want %q", out["error"], "exploded")
	}
}

func TestServer_ListTools(t *testing.T) {
	s, ts := newTestServer(t)
	s.Register("one", func(context.Context, map[string]any) (any, error) { return nil, nil })
	s.Register("two", func(context.Context, map[string]any) (any, error) { return nil, nil })

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, ts.URL+"/api/tools/", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	defer resp.Body.Close()

	out := decodeResponse(t, resp)
	tools, _ := out["tools"].([]any)
	if len(tools) != 2 {
		t.Errorf("tools = %v, want 2 entries", tools)
	}
}

func TestServer_StartAndClose(t *testing.T) {
	s := New()
	if _, err := s.Addr(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Addr() before Start error = %v, want ErrNotStarted", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	addr, err := s.Addr()
	if err != nil {
		t.Fatalf("Addr() error = %v", err)
	}

	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, addr+"/healthz", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("healthz request error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
