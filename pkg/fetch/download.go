// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

type (
	// ProgressFunc receives download progress. total is -1 when the origin
	// does not report a content length.
	ProgressFunc func(current, total int64)

	// DownloadOption configures a Download call.
	DownloadOption func(*downloadConfig)

	downloadConfig struct {
		progress ProgressFunc
		headers  http.Header
		mode     os.FileMode
	}

	progressWriter struct {
		w        io.Writer
		current  int64
		total    int64
		progress ProgressFunc
	}
)

// WithProgress registers a callback invoked as the download advances.
func WithProgress(fn ProgressFunc) DownloadOption {
	return func(cfg *downloadConfig) { cfg.progress = fn }
}

// WithDownloadHeader adds a header to the download request.
func WithDownloadHeader(key, value string) DownloadOption {
	return func(cfg *downloadConfig) {
		if cfg.headers == nil {
			cfg.headers = http.Header{}
		}
		cfg.headers.Add(key, value)
	}
}

// WithFileMode sets the permissions of the downloaded file.
func WithFileMode(mode os.FileMode) DownloadOption {
	return func(cfg *downloadConfig) { cfg.mode = mode }
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.current += int64(n)
	if p.progress != nil {
		p.progress(p.current, p.total)
	}
	return n, err
}

// Download streams a URL to a local file. The body is written to a
// temporary file next to the destination and renamed into place once the
// download completes, so a partial download never replaces an existing
// file. The response cache is not consulted.
func (c *Client) Download(ctx context.Context, rawURL, path string, opts ...DownloadOption) error {
	cfg := downloadConfig{mode: 0o644}
	for _, opt := range opts {
		opt(&cfg)
	}

	fullURL, err := c.resolveURL(rawURL, nil)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", fullURL, err)
	}
	c.applyHeaders(req, requestConfig{headers: cfg.headers})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &RequestError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ResponseError{URL: fullURL, Response: &Response{
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
		}}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}

	tmp, err := renameio.TempFile("", path)
	if err != nil {
		return fmt.Errorf("failed to create temporary file for %s: %w", path, err)
	}
	defer tmp.Cleanup() //nolint:errcheck // no-op after CloseAtomicallyReplace

	if err := tmp.Chmod(cfg.mode); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}

	var dst io.Writer = tmp
	if cfg.progress != nil {
		dst = &progressWriter{w: tmp, total: resp.ContentLength, progress: cfg.progress}
	}
	if _, err := io.Copy(dst, resp.Body); err != nil {
		return fmt.Errorf("download of %s interrupted: %w", fullURL, err)
	}

	if err := tmp.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("failed to finalize download to %s: %w", path, err)
	}
	return nil
}
