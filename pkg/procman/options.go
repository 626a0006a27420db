// SPDX-License-Identifier: MPL-2.0

package procman

import "time"

type (
	// StartOption customizes Manager.Start.
	StartOption func(*startConfig)

	// StopOption customizes Manager.Stop.
	StopOption func(*stopConfig)

	startConfig struct {
		dir         string
		env         map[string]string
		outputLimit int
		interactive bool
	}

	stopConfig struct {
		grace time.Duration
	}
)

// WithDir sets the working directory.
func WithDir(dir string) StartOption {
	return func(c *startConfig) { c.dir = dir }
}

// WithEnv adds environment variables on top of the inherited environment.
func WithEnv(env map[string]string) StartOption {
	return func(c *startConfig) { c.env = env }
}

// WithOutputLimit bounds captured output to n bytes per stream, dropping
// the oldest data. Zero means unlimited.
func WithOutputLimit(n int) StartOption {
	return func(c *startConfig) { c.outputLimit = n }
}

// WithInteractive runs the process on a pseudo-terminal. Output arrives
// on the stdout stream; input goes to the terminal.
func WithInteractive() StartOption {
	return func(c *startConfig) { c.interactive = true }
}

// WithStopGrace overrides the grace period before Stop escalates to a
// kill.
func WithStopGrace(d time.Duration) StopOption {
	return func(c *stopConfig) { c.grace = d }
}

func applyStartOptions(opts []StartOption) startConfig {
	var cfg startConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func applyStopOptions(opts []StopOption) stopConfig {
	cfg := stopConfig{grace: DefaultStopGrace}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
