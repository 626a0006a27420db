// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/phil65/anyenv/internal/httpcache"
	"github.com/phil65/anyenv/pkg/jsonx"
)

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// FromCache reports whether the response was served from the local
	// response cache rather than the origin.
	FromCache bool
}

// Text returns the response body as a string.
func (r *Response) Text() string { return string(r.Body) }

// JSON decodes the response body into v.
func (r *Response) JSON(v any) error {
	return jsonx.Load(r.Body, v)
}

// Request performs an HTTP request and reads the full response body.
// Responses with status >= 400 are returned together with a
// *ResponseError so callers can still inspect the body.
func (c *Client) Request(ctx context.Context, method, rawURL string, opts ...RequestOption) (*Response, error) {
	var cfg requestConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	fullURL, err := c.resolveURL(rawURL, cfg.params)
	if err != nil {
		return nil, err
	}

	cacheable := c.cache != nil && method == http.MethodGet && !cfg.noCache
	var cacheKey string
	if cacheable {
		cacheKey = httpcache.Key(method, fullURL, nil)
		if entry, err := c.cache.Get(cacheKey); err == nil && entry != nil && entry.Fresh(time.Now()) {
			return cachedResponse(entry), nil
		}
	}

	var bodyReader io.Reader
	if cfg.body != nil {
		bodyReader = bytes.NewReader(cfg.body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", fullURL, err)
	}
	c.applyHeaders(req, cfg)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		// Expired cache entries still beat an unreachable origin.
		if cacheable {
			if entry, cerr := c.cache.Get(cacheKey); cerr == nil && entry != nil {
				return cachedResponse(entry), nil
			}
		}
		return nil, &RequestError{URL: fullURL, Err: err}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &RequestError{URL: fullURL, Err: err}
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
	}

	if resp.StatusCode >= 400 {
		return resp, &ResponseError{URL: fullURL, Response: resp}
	}

	if cacheable && resp.StatusCode == http.StatusOK {
		// Cache errors must not fail an otherwise good request.
		_ = c.cache.Put(cacheKey, resp.StatusCode, resp.Header, resp.Body)
	}

	return resp, nil
}

func (c *Client) applyHeaders(req *http.Request, cfg requestConfig) {
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range cfg.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if cfg.contentType != "" {
		req.Header.Set("Content-Type", cfg.contentType)
	}
}

func cachedResponse(entry *httpcache.Entry) *Response {
	return &Response{
		StatusCode: entry.Status,
		Header:     entry.Header.Clone(),
		Body:       entry.Body,
		FromCache:  true,
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodGet, url, opts...)
}

// GetText performs a GET request and returns the body as a string.
func (c *Client) GetText(ctx context.Context, url string, opts ...RequestOption) (string, error) {
	resp, err := c.Get(ctx, url, opts...)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// GetBytes performs a GET request and returns the raw body.
func (c *Client) GetBytes(ctx context.Context, url string, opts ...RequestOption) ([]byte, error) {
	resp, err := c.Get(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Post performs a POST request.
func (c *Client) Post(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return c.Request(ctx, http.MethodPost, url, opts...)
}

// PostJSON performs a POST request with a JSON-encoded body.
func (c *Client) PostJSON(ctx context.Context, url string, payload any, opts ...RequestOption) (*Response, error) {
	body, err := jsonx.Dump(payload, jsonx.DumpOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	opts = append(opts, WithBody([]byte(body), "application/json"))
	return c.Post(ctx, url, opts...)
}

// GetJSON performs a GET request and decodes the JSON body into T.
func GetJSON[T any](ctx context.Context, c *Client, url string, opts ...RequestOption) (T, error) {
	var out T
	resp, err := c.Get(ctx, url, opts...)
	if err != nil {
		return out, err
	}
	if err := resp.JSON(&out); err != nil {
		return out, err
	}
	return out, nil
}
