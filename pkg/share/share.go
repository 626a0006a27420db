// SPDX-License-Identifier: MPL-2.0

// Package share uploads text snippets to paste services. Each provider
// implements Sharer; New selects one by name with credentials taken from
// the environment.
package share

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	// ErrUnknownProvider is returned by New for an unrecognized name.
	ErrUnknownProvider = errors.New("unknown sharing provider")

	// ErrMissingCredentials is returned when a provider needs an API
	// token that is neither configured nor present in the environment.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrShareFailed is the sentinel error wrapped when a provider
	// rejects an upload.
	ErrShareFailed = errors.New("share failed")
)

type (
	// Visibility controls who can see a shared snippet. Providers that
	// support fewer levels map to the nearest one.
	Visibility string

	// ShareResult describes an uploaded snippet.
	ShareResult struct {
		// URL is the browser URL of the snippet.
		URL string
		// RawURL serves the plain content, when the provider has one.
		RawURL string
		// DeleteURL removes the snippet, when the provider supports it.
		DeleteURL string
		// ID is the provider-assigned identifier.
		ID string
	}

	// Sharer uploads text content to a paste service.
	Sharer interface {
		// Name identifies the service.
		Name() string
		// Share uploads content and returns where it lives.
		Share(ctx context.Context, content string, opts ...ShareOption) (*ShareResult, error)
	}

	// RateLimitError is returned when a provider's API rate limit is
	// exceeded.
	RateLimitError struct {
		Limit     int
		Remaining int
		ResetAt   time.Time
	}

	// ShareOption customizes a single upload.
	ShareOption func(*shareConfig)

	shareConfig struct {
		title      string
		syntax     string
		visibility Visibility
		expiresIn  time.Duration
	}
)

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

// Error formats the rate limit details as a human-readable message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("API rate limit exceeded (%d remaining, resets at %s)",
		e.Remaining, e.ResetAt.UTC().Format("15:04 UTC"))
}

// WithTitle sets the snippet title (or filename, for providers that use
// one).
func WithTitle(title string) ShareOption {
	return func(c *shareConfig) { c.title = title }
}

// WithSyntax sets a syntax-highlighting hint, e.g. "python" or "go".
func WithSyntax(syntax string) ShareOption {
	return func(c *shareConfig) { c.syntax = syntax }
}

// WithVisibility sets who can see the snippet.
func WithVisibility(v Visibility) ShareOption {
	return func(c *shareConfig) { c.visibility = v }
}

// WithExpiry asks the provider to delete the snippet after d. Providers
// without expiration ignore it.
func WithExpiry(d time.Duration) ShareOption {
	return func(c *shareConfig) { c.expiresIn = d }
}

func applyShareOptions(opts []ShareOption) shareConfig {
	cfg := shareConfig{visibility: VisibilityUnlisted}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// New returns the Sharer for a provider name: "gist", "pastebin", or
// "paste_rs". Credentials come from the environment (GITHUB_TOKEN or
// GH_TOKEN for gists, PASTEBIN_API_KEY for Pastebin).
func New(provider string) (Sharer, error) {
	switch provider {
	case "gist":
		return NewGistSharer()
	case "pastebin":
		return NewPastebinSharer()
	case "paste_rs":
		return NewPasteRsSharer(), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
}

// checkRateLimit inspects the X-RateLimit-* response headers and returns
// a RateLimitError when the remaining quota is zero.
func checkRateLimit(header http.Header) error {
	remaining := header.Get("X-RateLimit-Remaining")
	if remaining == "" {
		return nil
	}

	rem, err := strconv.Atoi(remaining)
	if err != nil || rem > 0 {
		return nil
	}

	limit, _ := strconv.Atoi(header.Get("X-RateLimit-Limit"))                 //nolint:errcheck // Best-effort header parsing.
	resetUnix, _ := strconv.ParseInt(header.Get("X-RateLimit-Reset"), 10, 64) //nolint:errcheck // Best-effort header parsing.

	return &RateLimitError{
		Limit:     limit,
		Remaining: 0,
		ResetAt:   time.Unix(resetUnix, 0),
	}
}

// syntaxExtension maps a highlighting hint to a file extension.
func syntaxExtension(syntax string) string {
	switch syntax {
	case "python":
		return "py"
	case "javascript":
		return "js"
	case "typescript":
		return "ts"
	case "go", "golang":
		return "go"
	case "shell", "bash", "sh":
		return "sh"
	case "json":
		return "json"
	case "yaml":
		return "yaml"
	case "toml":
		return "toml"
	case "markdown":
		return "md"
	case "rust":
		return "rs"
	case "":
		return "txt"
	default:
		return syntax
	}
}
