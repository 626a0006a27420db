// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"net/http"
	"net/url"
	"time"

	"github.com/phil65/anyenv/internal/httpcache"
)

type (
	// ClientOption configures a Client at construction time.
	ClientOption func(*clientConfig)

	// RequestOption configures a single request.
	RequestOption func(*requestConfig)

	clientConfig struct {
		httpClient *http.Client
		baseURL    string
		headers    http.Header
		userAgent  string
		timeout    time.Duration
		cacheDir   string
		cacheTTL   time.Duration
		cacheStore *httpcache.Store
	}

	requestConfig struct {
		params      url.Values
		headers     http.Header
		body        []byte
		contentType string
		noCache     bool
	}
)

// WithBaseURL sets a base URL that relative request URLs are resolved
// against.
func WithBaseURL(baseURL string) ClientOption {
	return func(cfg *clientConfig) { cfg.baseURL = baseURL }
}

// WithTimeout bounds each request made by the client.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) { cfg.timeout = timeout }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(cfg *clientConfig) { cfg.userAgent = ua }
}

// WithDefaultHeader adds a header sent with every request.
func WithDefaultHeader(key, value string) ClientOption {
	return func(cfg *clientConfig) {
		if cfg.headers == nil {
			cfg.headers = http.Header{}
		}
		cfg.headers.Add(key, value)
	}
}

// WithHTTPClient substitutes the underlying *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(cfg *clientConfig) { cfg.httpClient = hc }
}

// WithCache enables response caching backed by an on-disk store in dir.
// A zero ttl uses the store default.
func WithCache(dir string, ttl time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		cfg.cacheDir = dir
		cfg.cacheTTL = ttl
	}
}

// WithCacheStore attaches an existing response cache. The client does not
// close it.
func WithCacheStore(store *httpcache.Store) ClientOption {
	return func(cfg *clientConfig) { cfg.cacheStore = store }
}

// WithParam adds a query parameter to the request URL.
func WithParam(key, value string) RequestOption {
	return func(cfg *requestConfig) {
		if cfg.params == nil {
			cfg.params = url.Values{}
		}
		cfg.params.Add(key, value)
	}
}

// WithParams adds a set of query parameters to the request URL.
func WithParams(params map[string]string) RequestOption {
	return func(cfg *requestConfig) {
		if cfg.params == nil {
			cfg.params = url.Values{}
		}
		for k, v := range params {
			cfg.params.Add(k, v)
		}
	}
}

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(cfg *requestConfig) {
		if cfg.headers == nil {
			cfg.headers = http.Header{}
		}
		cfg.headers.Add(key, value)
	}
}

// WithBody sets the request body and content type.
func WithBody(body []byte, contentType string) RequestOption {
	return func(cfg *requestConfig) {
		cfg.body = body
		cfg.contentType = contentType
	}
}

// WithNoCache bypasses the response cache for this request.
func WithNoCache() RequestOption {
	return func(cfg *requestConfig) { cfg.noCache = true }
}
