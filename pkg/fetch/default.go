// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"sync"
)

var (
	defaultClient     *Client
	defaultClientOnce sync.Once
)

// Default returns the shared package-level client. It has no base URL and
// no response cache.
func Default() *Client {
	defaultClientOnce.Do(func() {
		defaultClient, _ = NewClient()
	})
	return defaultClient
}

// Get performs a GET request with the default client.
func Get(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return Default().Get(ctx, url, opts...)
}

// GetText performs a GET request with the default client and returns the
// body as a string.
func GetText(ctx context.Context, url string, opts ...RequestOption) (string, error) {
	return Default().GetText(ctx, url, opts...)
}

// GetBytes performs a GET request with the default client and returns the
// raw body.
func GetBytes(ctx context.Context, url string, opts ...RequestOption) ([]byte, error) {
	return Default().GetBytes(ctx, url, opts...)
}

// Post performs a POST request with the default client.
func Post(ctx context.Context, url string, opts ...RequestOption) (*Response, error) {
	return Default().Post(ctx, url, opts...)
}

// Download streams a URL to a local file with the default client.
func Download(ctx context.Context, url, path string, opts ...DownloadOption) error {
	return Default().Download(ctx, url, path, opts...)
}
