// SPDX-License-Identifier: MPL-2.0

package share

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/phil65/anyenv/pkg/fetch"
)

type (
	// PastebinSharer uploads snippets through the Pastebin form API.
	PastebinSharer struct {
		client     *fetch.Client
		httpClient *http.Client
		baseURL    string
		apiKey     string
	}

	// PastebinOption configures a PastebinSharer during construction.
	PastebinOption func(*PastebinSharer)
)

// WithPastebinKey sets an explicit API key instead of reading
// PASTEBIN_API_KEY from the environment.
func WithPastebinKey(key string) PastebinOption {
	return func(p *PastebinSharer) { p.apiKey = key }
}

// WithPastebinBaseURL overrides the Pastebin URL, primarily for test
// servers.
func WithPastebinBaseURL(base string) PastebinOption {
	return func(p *PastebinSharer) { p.baseURL = strings.TrimRight(base, "/") }
}

// WithPastebinHTTPClient sets a custom HTTP transport.
func WithPastebinHTTPClient(c *http.Client) PastebinOption {
	return func(p *PastebinSharer) { p.httpClient = c }
}

// NewPastebinSharer creates a Pastebin uploader. Without an explicit key
// it reads PASTEBIN_API_KEY and fails when it is not set.
func NewPastebinSharer(opts ...PastebinOption) (*PastebinSharer, error) {
	p := &PastebinSharer{baseURL: "https://pastebin.com"}
	for _, opt := range opts {
		opt(p)
	}

	if p.apiKey == "" {
		p.apiKey = os.Getenv("PASTEBIN_API_KEY")
	}
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: set PASTEBIN_API_KEY for pastebin sharing", ErrMissingCredentials)
	}

	clientOpts := []fetch.ClientOption{fetch.WithBaseURL(p.baseURL)}
	if p.httpClient != nil {
		clientOpts = append(clientOpts, fetch.WithHTTPClient(p.httpClient))
	}
	client, err := fetch.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("building pastebin client: %w", err)
	}
	p.client = client
	return p, nil
}

// Name identifies the service.
func (p *PastebinSharer) Name() string { return "Pastebin" }

// Share uploads the content through api_post.php. The response body is
// either the paste URL or a "Bad API request" message.
func (p *PastebinSharer) Share(ctx context.Context, content string, opts ...ShareOption) (*ShareResult, error) {
	cfg := applyShareOptions(opts)

	form := url.Values{
		"api_dev_key":       {p.apiKey},
		"api_option":        {"paste"},
		"api_paste_code":    {content},
		"api_paste_private": {pastebinVisibility(cfg.visibility)},
	}
	if cfg.title != "" {
		form.Set("api_paste_name", cfg.title)
	}
	if cfg.syntax != "" {
		form.Set("api_paste_format", cfg.syntax)
	}
	if cfg.expiresIn > 0 {
		form.Set("api_paste_expire_date", pastebinExpiry(cfg.expiresIn))
	}

	resp, err := p.client.Post(ctx, "/api/api_post.php",
		fetch.WithBody([]byte(form.Encode()), "application/x-www-form-urlencoded"))
	if resp == nil {
		return nil, fmt.Errorf("uploading to pastebin: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(text, "http") {
		return nil, fmt.Errorf("%w: pastebin: %s", ErrShareFailed, text)
	}

	id := text[strings.LastIndex(text, "/")+1:]
	return &ShareResult{
		URL:    text,
		RawURL: p.baseURL + "/raw/" + id,
		ID:     id,
	}, nil
}

// pastebinVisibility maps to the api_paste_private field: 0 public,
// 1 unlisted, 2 private.
func pastebinVisibility(v Visibility) string {
	switch v {
	case VisibilityPublic:
		return "0"
	case VisibilityPrivate:
		return "2"
	default:
		return "1"
	}
}

// pastebinExpiry maps a duration onto the nearest api_paste_expire_date
// bucket at or above it.
func pastebinExpiry(d time.Duration) string {
	switch {
	case d <= 10*time.Minute:
		return "10M"
	case d <= time.Hour:
		return "1H"
	case d <= 24*time.Hour:
		return "1D"
	case d <= 7*24*time.Hour:
		return "1W"
	case d <= 14*24*time.Hour:
		return "2W"
	case d <= 30*24*time.Hour:
		return "1M"
	case d <= 182*24*time.Hour:
		return "6M"
	case d <= 365*24*time.Hour:
		return "1Y"
	default:
		return "N"
	}
}
