// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phil65/anyenv/pkg/share"
)

var (
	shareProvider   string
	shareTitle      string
	shareSyntax     string
	shareVisibility string
	shareExpiry     time.Duration
	shareRawURL     bool

	shareCmd = &cobra.Command{
		Use:   "share [FILE]",
		Short: "Upload text to a paste service",
		Long: `Upload a file (or stdin) to a paste service and print the URL.

Supported providers are gist, pastebin, and paste_rs. Credentials come
from the environment: GITHUB_TOKEN or GH_TOKEN for gists,
PASTEBIN_API_KEY for Pastebin. paste.rs needs none.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runShare,
	}
)

func init() {
	shareCmd.Flags().StringVarP(&shareProvider, "provider", "p", "", "paste provider (gist, pastebin, paste_rs; default from config)")
	shareCmd.Flags().StringVar(&shareTitle, "title", "", "snippet title or filename (default: basename of FILE)")
	shareCmd.Flags().StringVar(&shareSyntax, "syntax", "", "syntax highlighting hint, e.g. python (default: from file extension)")
	shareCmd.Flags().StringVar(&shareVisibility, "visibility", "", "public, unlisted, or private")
	shareCmd.Flags().DurationVar(&shareExpiry, "expire", 0, "ask the provider to delete the snippet after this duration")
	shareCmd.Flags().BoolVar(&shareRawURL, "raw", false, "print the raw content URL instead of the browser URL")
}

func runShare(cmd *cobra.Command, args []string) error {
	content, name, err := readShareContent(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("nothing to share: input is empty")
	}

	provider := shareProvider
	if provider == "" {
		provider = loadedConfig().Share.DefaultProvider
	}
	sharer, err := share.New(provider)
	if err != nil {
		return err
	}

	var opts []share.ShareOption
	switch {
	case shareTitle != "":
		opts = append(opts, share.WithTitle(shareTitle))
	case name != "":
		opts = append(opts, share.WithTitle(name))
	}
	syntax := shareSyntax
	if syntax == "" && name != "" {
		syntax = strings.TrimPrefix(filepath.Ext(name), ".")
	}
	if syntax != "" {
		opts = append(opts, share.WithSyntax(syntax))
	}
	if shareVisibility != "" {
		opts = append(opts, share.WithVisibility(share.Visibility(shareVisibility)))
	}
	if shareExpiry > 0 {
		opts = append(opts, share.WithExpiry(shareExpiry))
	}

	result, err := sharer.Share(cmd.Context(), content, opts...)
	if err != nil {
		return fmt.Errorf("sharing via %s: %w", sharer.Name(), err)
	}

	url := result.URL
	if shareRawURL && result.RawURL != "" {
		url = result.RawURL
	}
	fmt.Println(SuccessStyle.Render("shared via " + sharer.Name()))
	fmt.Println(url)
	if result.DeleteURL != "" {
		fmt.Println(SubtitleStyle.Render("delete: " + result.DeleteURL))
	}
	return nil
}

// readShareContent returns the text to upload and, for file input, the
// base name to use as a title hint. "-" or no argument reads stdin.
func readShareContent(args []string) (content, name string, err error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "", nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", err
	}
	return string(data), filepath.Base(args[0]), nil
}
