// SPDX-License-Identifier: MPL-2.0

// Package fetch provides an HTTP client with optional response caching,
// convenience helpers for common request shapes, and streaming downloads
// with progress reporting.
//
// Caching follows conservative client-side rules: only GET requests with
// 200 responses are stored, entries expire after a freshness TTL, and
// expired entries may still be served when the origin is unreachable.
package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/phil65/anyenv/internal/httpcache"
)

const (
	// DefaultTimeout bounds a single request when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies the client when none is configured.
	DefaultUserAgent = "anyenv"
)

var (
	// ErrRequestFailed is the sentinel error wrapped by RequestError.
	ErrRequestFailed = errors.New("request failed")

	// ErrBadStatus is the sentinel error wrapped by ResponseError.
	ErrBadStatus = errors.New("server returned error status")
)

type (
	// RequestError reports a transport-level failure (connection refused,
	// DNS, timeout). The response never arrived.
	RequestError struct {
		URL string
		Err error
	}

	// ResponseError reports a response with status >= 400. The response
	// itself is attached for callers that want the body.
	ResponseError struct {
		URL      string
		Response *Response
	}

	// Client is an HTTP client with optional response caching. Create one
	// with NewClient; the zero value is not usable.
	Client struct {
		httpClient *http.Client
		baseURL    string
		headers    http.Header
		userAgent  string
		cache      *httpcache.Store
		ownsCache  bool
	}
)

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("request to %s failed: %v", e.URL, e.Err)
}

// Unwrap makes the error match ErrRequestFailed and the transport error.
func (e *RequestError) Unwrap() []error { return []error{ErrRequestFailed, e.Err} }

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.Response.StatusCode, e.URL)
}

// Unwrap makes the error match ErrBadStatus.
func (e *ResponseError) Unwrap() error { return ErrBadStatus }

// NewClient creates a Client.
func NewClient(opts ...ClientOption) (*Client, error) {
	c := &Client{
		userAgent: DefaultUserAgent,
		headers:   http.Header{},
	}

	var cfg clientConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.httpClient != nil {
		c.httpClient = cfg.httpClient
	} else {
		timeout := cfg.timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		c.httpClient = &http.Client{Timeout: timeout}
	}
	if cfg.baseURL != "" {
		c.baseURL = strings.TrimRight(cfg.baseURL, "/")
	}
	if cfg.userAgent != "" {
		c.userAgent = cfg.userAgent
	}
	for k, vs := range cfg.headers {
		for _, v := range vs {
			c.headers.Add(k, v)
		}
	}

	switch {
	case cfg.cacheStore != nil:
		c.cache = cfg.cacheStore
	case cfg.cacheDir != "":
		store, err := httpcache.Open(cfg.cacheDir, httpcache.Options{TTL: cfg.cacheTTL})
		if err != nil {
			return nil, fmt.Errorf("failed to open response cache: %w", err)
		}
		c.cache = store
		c.ownsCache = true
	}

	return c, nil
}

// Close releases the response cache when the client owns it.
func (c *Client) Close() error {
	if c.ownsCache && c.cache != nil {
		err := c.cache.Close()
		c.cache = nil
		return err
	}
	return nil
}

// Session derives a client scoped to a base URL and extra default headers,
// sharing the transport and response cache with its parent.
func (c *Client) Session(baseURL string, headers map[string]string) *Client {
	derived := &Client{
		httpClient: c.httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  c.userAgent,
		headers:    c.headers.Clone(),
		cache:      c.cache,
	}
	if derived.headers == nil {
		derived.headers = http.Header{}
	}
	for k, v := range headers {
		derived.headers.Set(k, v)
	}
	return derived
}

// resolveURL joins the client base URL with a request URL and attaches
// query parameters.
func (c *Client) resolveURL(rawURL string, params url.Values) (string, error) {
	full := rawURL
	if c.baseURL != "" && !strings.Contains(rawURL, "://") {
		full = c.baseURL + "/" + strings.TrimLeft(rawURL, "/")
	}

	u, err := url.Parse(full)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
