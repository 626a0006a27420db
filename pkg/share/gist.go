// SPDX-License-Identifier: MPL-2.0

package share

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/phil65/anyenv/pkg/fetch"
)

type (
	// GistSharer uploads snippets as GitHub Gists.
	GistSharer struct {
		client     *fetch.Client
		httpClient *http.Client
		baseURL    string
		token      string
	}

	// GistOption configures a GistSharer during construction.
	GistOption func(*GistSharer)

	// gistRequest is the JSON wire format for gist creation.
	gistRequest struct {
		Description string              `json:"description,omitempty"`
		Public      bool                `json:"public"`
		Files       map[string]gistFile `json:"files"`
	}

	gistFile struct {
		Content string `json:"content"`
		RawURL  string `json:"raw_url,omitempty"`
	}

	// gistResponse is the JSON wire format for a created gist.
	gistResponse struct {
		ID      string              `json:"id"`
		HTMLURL string              `json:"html_url"`
		Files   map[string]gistFile `json:"files"`
	}
)

// WithGistToken sets an explicit GitHub token instead of reading
// GITHUB_TOKEN or GH_TOKEN from the environment.
func WithGistToken(token string) GistOption {
	return func(g *GistSharer) { g.token = token }
}

// WithGistBaseURL overrides the GitHub API base URL, primarily for test
// servers.
func WithGistBaseURL(base string) GistOption {
	return func(g *GistSharer) { g.baseURL = strings.TrimRight(base, "/") }
}

// WithGistHTTPClient sets a custom HTTP transport.
func WithGistHTTPClient(c *http.Client) GistOption {
	return func(g *GistSharer) { g.httpClient = c }
}

// NewGistSharer creates a gist uploader. Without an explicit token it
// reads GITHUB_TOKEN, then GH_TOKEN, and fails when neither is set.
func NewGistSharer(opts ...GistOption) (*GistSharer, error) {
	g := &GistSharer{baseURL: "https://api.github.com"}
	for _, opt := range opts {
		opt(g)
	}

	if g.token == "" {
		g.token = os.Getenv("GITHUB_TOKEN")
	}
	if g.token == "" {
		g.token = os.Getenv("GH_TOKEN")
	}
	if g.token == "" {
		return nil, fmt.Errorf("%w: set GITHUB_TOKEN or GH_TOKEN for gist sharing", ErrMissingCredentials)
	}

	clientOpts := []fetch.ClientOption{
		fetch.WithBaseURL(g.baseURL),
		fetch.WithDefaultHeader("Accept", "application/vnd.github+json"),
		fetch.WithDefaultHeader("X-GitHub-Api-Version", "2022-11-28"),
		fetch.WithDefaultHeader("Authorization", "Bearer "+g.token),
	}
	if g.httpClient != nil {
		clientOpts = append(clientOpts, fetch.WithHTTPClient(g.httpClient))
	}
	client, err := fetch.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("building gist client: %w", err)
	}
	g.client = client
	return g, nil
}

// Name identifies the service.
func (g *GistSharer) Name() string { return "GitHub Gist" }

// Share creates a gist holding the content. Only VisibilityPublic maps
// to a public gist; everything else becomes a secret one. Gists never
// expire, so WithExpiry is ignored.
func (g *GistSharer) Share(ctx context.Context, content string, opts ...ShareOption) (*ShareResult, error) {
	cfg := applyShareOptions(opts)

	filename := cfg.title
	if filename == "" {
		filename = "snippet"
	}
	if !strings.Contains(filename, ".") {
		filename += "." + syntaxExtension(cfg.syntax)
	}

	resp, err := g.client.PostJSON(ctx, "/gists", gistRequest{
		Description: cfg.title,
		Public:      cfg.visibility == VisibilityPublic,
		Files:       map[string]gistFile{filename: {Content: content}},
	})
	if resp == nil {
		return nil, fmt.Errorf("creating gist: %w", err)
	}
	if rlErr := checkRateLimit(resp.Header); rlErr != nil {
		return nil, rlErr
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("%w: gist API status %d: %s", ErrShareFailed, resp.StatusCode, strings.TrimSpace(resp.Text()))
	}

	var gr gistResponse
	if err := resp.JSON(&gr); err != nil {
		return nil, fmt.Errorf("decoding gist response: %w", err)
	}

	result := &ShareResult{
		URL:       gr.HTMLURL,
		DeleteURL: g.baseURL + "/gists/" + gr.ID,
		ID:        gr.ID,
	}
	if f, ok := gr.Files[filename]; ok {
		result.RawURL = f.RawURL
	}
	return result, nil
}

// Delete removes a gist by id.
func (g *GistSharer) Delete(ctx context.Context, id string) error {
	resp, err := g.client.Request(ctx, http.MethodDelete, "/gists/"+id)
	if resp == nil {
		return fmt.Errorf("deleting gist %s: %w", id, err)
	}
	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("deleting gist %s: unexpected status %d", id, resp.StatusCode)
	}
	return nil
}
