// SPDX-License-Identifier: MPL-2.0

package share

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/phil65/anyenv/pkg/fetch"
)

type (
	// PasteRsSharer uploads snippets to paste.rs. The service needs no
	// authentication and does not support titles, visibility, or expiry.
	PasteRsSharer struct {
		client     *fetch.Client
		httpClient *http.Client
		baseURL    string
	}

	// PasteRsOption configures a PasteRsSharer during construction.
	PasteRsOption func(*PasteRsSharer)
)

// WithPasteRsBaseURL overrides the paste.rs URL, primarily for test
// servers.
func WithPasteRsBaseURL(base string) PasteRsOption {
	return func(p *PasteRsSharer) { p.baseURL = strings.TrimRight(base, "/") }
}

// WithPasteRsHTTPClient sets a custom HTTP transport.
func WithPasteRsHTTPClient(c *http.Client) PasteRsOption {
	return func(p *PasteRsSharer) { p.httpClient = c }
}

// NewPasteRsSharer creates a paste.rs uploader.
func NewPasteRsSharer(opts ...PasteRsOption) *PasteRsSharer {
	p := &PasteRsSharer{baseURL: "https://paste.rs"}
	for _, opt := range opts {
		opt(p)
	}

	clientOpts := []fetch.ClientOption{fetch.WithBaseURL(p.baseURL)}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, fetch.WithHTTPClient(p.httpClient))
	}
	// Construction only fails when a cache is configured; there is none.
	p.client, _ = fetch.NewClient(clientOpts...) //nolint:errcheck
	return p
}

// Name identifies the service.
func (p *PasteRsSharer) Name() string { return "paste.rs" }

// Share uploads the content as a plain POST body. The response body is
// the paste URL; a syntax hint is appended as a file extension so the
// service highlights it.
func (p *PasteRsSharer) Share(ctx context.Context, content string, opts ...ShareOption) (*ShareResult, error) {
	cfg := applyShareOptions(opts)

	resp, err := p.client.Post(ctx, "/",
		fetch.WithBody([]byte(content), "text/plain; charset=utf-8"))
	if resp == nil {
		return nil, fmt.Errorf("uploading to paste.rs: %w", err)
	}

	// 201 is a full upload; 206 means the content was truncated to the
	// service's size cap but a paste still exists.
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("%w: paste.rs status %d: %s", ErrShareFailed, resp.StatusCode, strings.TrimSpace(resp.Text()))
	}

	pasteURL := strings.TrimSpace(resp.Text())
	id := pasteURL[strings.LastIndex(pasteURL, "/")+1:]

	result := &ShareResult{
		URL:       pasteURL,
		RawURL:    pasteURL,
		DeleteURL: pasteURL,
		ID:        id,
	}
	if cfg.syntax != "" {
		result.URL = pasteURL + "." + syntaxExtension(cfg.syntax)
	}
	return result, nil
}

// Delete removes a paste by id.
func (p *PasteRsSharer) Delete(ctx context.Context, id string) error {
	resp, err := p.client.Request(ctx, http.MethodDelete, "/"+id)
	if resp == nil {
		return fmt.Errorf("deleting paste %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("deleting paste %s: unexpected status %d", id, resp.StatusCode)
	}
	return nil
}
