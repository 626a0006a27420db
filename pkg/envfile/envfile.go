// SPDX-License-Identifier: MPL-2.0

// Package envfile loads environment definition files: an anyenv.cue
// (validated against an embedded CUE schema) or anyenv.toml declaring
// named execution environments, each parsed into its execenv provider
// config.
package envfile

import (
	"errors"
	"fmt"
	"sort"

	"github.com/phil65/anyenv/pkg/execenv"
)

var (
	// ErrEnvironmentNotFound is returned when a requested environment
	// name is not declared in the file.
	ErrEnvironmentNotFound = errors.New("environment not found")

	// ErrNoDefault is returned when no environment name is given and the
	// file declares neither a default nor exactly one environment.
	ErrNoDefault = errors.New("no default environment")
)

type (
	// Envfile is a parsed environment definition file.
	Envfile struct {
		// Default names the environment used when none is requested.
		Default string `json:"default,omitempty" toml:"default,omitempty"`

		// Environments holds the raw per-environment definitions, keyed
		// by name.
		Environments map[string]map[string]any `json:"environments" toml:"environments"`

		// FilePath is where the file was loaded from.
		FilePath string `json:"-" toml:"-"`

		// configs are the decoded provider configs, built during parse.
		configs map[string]execenv.ProviderConfig
	}
)

// Names returns the declared environment names, sorted.
func (f *Envfile) Names() []string {
	names := make([]string, 0, len(f.configs))
	for name := range f.configs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Config returns the provider config for an environment. An empty name
// selects the declared default, or the only environment when exactly one
// is declared.
func (f *Envfile) Config(name string) (execenv.ProviderConfig, error) {
	if name == "" {
		resolved, err := f.defaultName()
		if err != nil {
			return nil, err
		}
		name = resolved
	}

	cfg, ok := f.configs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrEnvironmentNotFound, name, f.Names())
	}
	return cfg, nil
}

// Build creates the execution environment for a name. The caller owns
// the environment's Setup/Teardown lifecycle.
func (f *Envfile) Build(name string) (execenv.Environment, error) {
	cfg, err := f.Config(name)
	if err != nil {
		return nil, err
	}
	return execenv.New(cfg)
}

func (f *Envfile) defaultName() (string, error) {
	if f.Default != "" {
		return f.Default, nil
	}
	if len(f.configs) == 1 {
		for name := range f.configs {
			return name, nil
		}
	}
	return "", fmt.Errorf("%w: declare a default or pass an environment name (have %v)", ErrNoDefault, f.Names())
}

// decode turns the raw environment maps into provider configs. Called
// once at parse time so a bad definition fails loading, not first use.
func (f *Envfile) decode() error {
	if len(f.Environments) == 0 {
		return fmt.Errorf("%s: no environments declared", f.FilePath)
	}

	f.configs = make(map[string]execenv.ProviderConfig, len(f.Environments))
	for name, raw := range f.Environments {
		cfg, err := execenv.DecodeConfig(raw)
		if err != nil {
			return fmt.Errorf("environment %q: %w", name, err)
		}
		f.configs[name] = cfg
	}

	if f.Default != "" {
		if _, ok := f.configs[f.Default]; !ok {
			return fmt.Errorf("%w: default %q is not declared", ErrEnvironmentNotFound, f.Default)
		}
	}
	return nil
}
