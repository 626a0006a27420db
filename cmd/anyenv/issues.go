// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/phil65/anyenv/internal/container"
	"github.com/phil65/anyenv/internal/issue"
	"github.com/phil65/anyenv/pkg/envfile"
	"github.com/phil65/anyenv/pkg/execenv"
)

// maybeRenderIssue prints a rendered troubleshooting guide to stderr when
// a command failed with a mistake we have specific guidance for.
func maybeRenderIssue(err error) {
	id, ok := classifyIssue(err)
	if !ok {
		return
	}
	guide := issue.Get(id)
	if guide == nil {
		return
	}
	rendered, renderErr := guide.Render("auto")
	if renderErr != nil {
		return
	}
	fmt.Fprint(os.Stderr, rendered)
}

// classifyIssue maps an error to a troubleshooting guide in the catalog.
func classifyIssue(err error) (issue.Id, bool) {
	var engineErr *container.ErrEngineNotAvailable
	switch {
	case errors.Is(err, envfile.ErrNotFound):
		return issue.EnvfileNotFoundId, true
	case errors.Is(err, envfile.ErrEnvironmentNotFound), errors.Is(err, envfile.ErrNoDefault):
		return issue.EnvironmentNotFoundId, true
	case errors.As(err, &engineErr):
		return issue.ContainerEngineNotFoundId, true
	case errors.Is(err, execenv.ErrUnsupportedLanguage):
		return issue.LanguageNotSupportedId, true
	case errors.Is(err, os.ErrPermission):
		return issue.PermissionDeniedId, true
	}
	return 0, false
}
