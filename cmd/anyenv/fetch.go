// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/phil65/anyenv/internal/config"
	"github.com/phil65/anyenv/pkg/fetch"
	"github.com/phil65/anyenv/pkg/jsonx"
	"github.com/phil65/anyenv/pkg/taskgroup"
)

const fetchWorkers = 4

var (
	fetchOutput  string
	fetchRender  bool
	fetchJSON    bool
	fetchNoCache bool
	fetchHeaders []string

	fetchCmd = &cobra.Command{
		Use:   "fetch URL...",
		Short: "Fetch URLs with caching",
		Long: `Fetch one or more URLs.

Responses are cached on disk (GET only) and served from cache while
fresh. With --output the body is downloaded to a file instead of
printed; multiple URLs download in parallel into a directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runFetch,
	}
)

func init() {
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "download to file (or directory for multiple URLs)")
	fetchCmd.Flags().BoolVar(&fetchRender, "render", false, "render the body as markdown")
	fetchCmd.Flags().BoolVar(&fetchJSON, "json", false, "pretty-print the body as JSON")
	fetchCmd.Flags().BoolVar(&fetchNoCache, "no-cache", false, "bypass the response cache")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaders, "header", "H", nil, "request header as 'Key: Value' (repeatable)")
}

type fetchResult struct {
	url  string
	body string
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig()

	client, err := newFetchClient(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	headers, err := parseHeaderFlags(fetchHeaders)
	if err != nil {
		return err
	}

	if fetchOutput != "" {
		return downloadAll(cmd.Context(), client, args, headers)
	}

	reqOpts := make([]fetch.RequestOption, 0, len(headers)+1)
	for key, value := range headers {
		reqOpts = append(reqOpts, fetch.WithHeader(key, value))
	}
	if fetchNoCache {
		reqOpts = append(reqOpts, fetch.WithNoCache())
	}

	group := taskgroup.New[fetchResult](taskgroup.WithMaxWorkers(fetchWorkers))
	for _, rawURL := range args {
		group.Go(cmd.Context(), func(ctx context.Context) (fetchResult, error) {
			body, err := client.GetText(ctx, rawURL, reqOpts...)
			if err != nil {
				return fetchResult{}, fmt.Errorf("%s: %w", rawURL, err)
			}
			return fetchResult{url: rawURL, body: body}, nil
		})
	}

	results, err := group.Wait()
	for _, res := range results {
		if len(args) > 1 {
			fmt.Println(SubtitleStyle.Render("# " + res.url))
		}
		if printErr := printBody(res.body); printErr != nil {
			return printErr
		}
	}
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}

// newFetchClient builds a fetch client from the application configuration.
func newFetchClient(cfg *config.Config) (*fetch.Client, error) {
	opts := []fetch.ClientOption{
		fetch.WithUserAgent(cfg.HTTP.UserAgent),
		fetch.WithTimeout(cfg.HTTP.Timeout),
	}
	if cfg.HTTP.CacheEnabled {
		dir, err := cfg.HTTPCacheDir()
		if err != nil {
			return nil, err
		}
		opts = append(opts, fetch.WithCache(dir, cfg.HTTP.CacheTTL))
	}
	return fetch.NewClient(opts...)
}

// parseHeaderFlags splits repeated 'Key: Value' flags into a map.
func parseHeaderFlags(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		key, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid header %q: expected 'Key: Value'", h)
		}
		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return headers, nil
}

func printBody(body string) error {
	switch {
	case fetchRender:
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return err
		}
		out, err := renderer.Render(body)
		if err != nil {
			return err
		}
		fmt.Print(out)
	case fetchJSON:
		var v any
		if err := jsonx.LoadString(body, &v); err != nil {
			return err
		}
		pretty, err := jsonx.Dump(v, jsonx.DumpOptions{Indent: true})
		if err != nil {
			return err
		}
		fmt.Println(pretty)
	default:
		fmt.Print(body)
		if !strings.HasSuffix(body, "\n") {
			fmt.Println()
		}
	}
	return nil
}

// downloadAll fetches every URL to disk. For a single URL the output flag
// names the destination file (unless it is an existing directory); for
// multiple URLs it names a directory.
func downloadAll(ctx context.Context, client *fetch.Client, urls []string, headers map[string]string) error {
	opts := make([]fetch.DownloadOption, 0, len(headers)+1)
	for key, value := range headers {
		opts = append(opts, fetch.WithDownloadHeader(key, value))
	}

	toDir := len(urls) > 1
	if info, err := os.Stat(fetchOutput); err == nil && info.IsDir() {
		toDir = true
	}
	if toDir {
		if err := os.MkdirAll(fetchOutput, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	group := taskgroup.New[string](taskgroup.WithMaxWorkers(fetchWorkers))
	for _, rawURL := range urls {
		group.Go(ctx, func(ctx context.Context) (string, error) {
			dest := fetchOutput
			if toDir {
				dest = filepath.Join(fetchOutput, downloadName(rawURL))
			}
			dlOpts := opts
			if len(urls) == 1 {
				dlOpts = append(dlOpts, fetch.WithProgress(progressPrinter(dest)))
			}
			if err := client.Download(ctx, rawURL, dest, dlOpts...); err != nil {
				return "", fmt.Errorf("%s: %w", rawURL, err)
			}
			return dest, nil
		})
	}

	dests, err := group.Wait()
	for _, dest := range dests {
		fmt.Println(SuccessStyle.Render("saved ") + dest)
	}
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	return nil
}

// downloadName derives a local filename from the URL path.
func downloadName(rawURL string) string {
	trimmed := strings.TrimRight(rawURL, "/")
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
	}
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	name := filepath.Base(trimmed)
	if name == "." || name == "/" || name == "" {
		return "download"
	}
	return name
}

// progressPrinter writes a carriage-return progress line to stderr.
func progressPrinter(dest string) fetch.ProgressFunc {
	return func(current, total int64) {
		if total > 0 {
			fmt.Fprintf(os.Stderr, "\r%s: %d%% (%d/%d bytes)", dest, current*100/total, current, total)
		} else {
			fmt.Fprintf(os.Stderr, "\r%s: %d bytes", dest, current)
		}
		if current == total {
			fmt.Fprintln(os.Stderr)
		}
	}
}
