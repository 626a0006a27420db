// SPDX-License-Identifier: MPL-2.0

package execenv

import "time"

type (
	// ExecOption configures a single Execute or RunCommand call.
	ExecOption func(*execConfig)

	execConfig struct {
		language Language
		timeout  time.Duration
		env      map[string]string
		workDir  string
	}
)

func applyExecOptions(defaultLang Language, defaultTimeout time.Duration, opts []ExecOption) execConfig {
	cfg := execConfig{
		language: defaultLang,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.timeout == 0 {
		cfg.timeout = DefaultTimeout
	}
	return cfg
}

// WithLanguage sets the language of the code snippet. Environments default
// to their configured language when this option is absent.
func WithLanguage(lang Language) ExecOption {
	return func(cfg *execConfig) { cfg.language = lang }
}

// WithTimeout bounds the execution. A zero value keeps the environment
// default.
func WithTimeout(timeout time.Duration) ExecOption {
	return func(cfg *execConfig) { cfg.timeout = timeout }
}

// WithEnv adds environment variables visible to the executed code.
func WithEnv(env map[string]string) ExecOption {
	return func(cfg *execConfig) {
		if cfg.env == nil {
			cfg.env = make(map[string]string, len(env))
		}
		for k, v := range env {
			cfg.env[k] = v
		}
	}
}

// WithWorkDir sets the working directory for the execution.
func WithWorkDir(dir string) ExecOption {
	return func(cfg *execConfig) { cfg.workDir = dir }
}
