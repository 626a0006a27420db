// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

const (
	// ProviderLocal runs shell code in-process through a virtual interpreter.
	ProviderLocal = "local"
	// ProviderSubprocess runs code in interpreter subprocesses on the host.
	ProviderSubprocess = "subprocess"
	// ProviderContainer runs code inside a long-lived container.
	ProviderContainer = "container"
	// ProviderSSH runs code on a remote host over SSH.
	ProviderSSH = "ssh"
)

var (
	// ErrUnknownProvider is returned for a config with an unrecognized type.
	ErrUnknownProvider = errors.New("unknown execution provider")

	// ErrInvalidConfig is the sentinel error wrapped by config validation
	// failures.
	ErrInvalidConfig = errors.New("invalid execution config")
)

type (
	// ProviderConfig is implemented by per-provider configuration structs.
	ProviderConfig interface {
		// Provider returns the provider discriminator.
		Provider() string
		// Validate checks the configuration for completeness.
		Validate() error
	}

	// LocalConfig configures the in-process shell environment.
	LocalConfig struct {
		// Timeout bounds each execution. Zero means DefaultTimeout.
		Timeout time.Duration `mapstructure:"timeout"`
		// WorkDir is the default working directory.
		WorkDir string `mapstructure:"work_dir"`
	}

	// SubprocessConfig configures the host subprocess environment.
	SubprocessConfig struct {
		// Language is the default snippet language.
		Language Language `mapstructure:"language"`
		// Timeout bounds each execution. Zero means DefaultTimeout.
		Timeout time.Duration `mapstructure:"timeout"`
		// WorkDir is the default working directory.
		WorkDir string `mapstructure:"work_dir"`
		// Interpreters overrides the interpreter command per language
		// (e.g. python -> "python3.13").
		Interpreters map[Language]string `mapstructure:"interpreters"`
		// Dependencies are packages installed during Setup (pip or npm,
		// depending on Language).
		Dependencies []string `mapstructure:"dependencies"`
	}

	// ContainerConfig configures the container environment.
	ContainerConfig struct {
		// Image is the container image to run code in.
		Image string `mapstructure:"image"`
		// Engine selects docker or podman; empty auto-detects.
		Engine string `mapstructure:"engine"`
		// Language is the default snippet language.
		Language Language `mapstructure:"language"`
		// Timeout bounds each execution. Zero means DefaultTimeout.
		Timeout time.Duration `mapstructure:"timeout"`
		// WorkDir is the working directory inside the container.
		WorkDir string `mapstructure:"work_dir"`
		// Dependencies are packages installed during Setup (pip or npm,
		// depending on Language).
		Dependencies []string `mapstructure:"dependencies"`
		// Volumes are bind mounts in "host:container[:options]" format.
		Volumes []string `mapstructure:"volumes"`
		// PullImage forces an image pull during Setup.
		PullImage bool `mapstructure:"pull_image"`
	}

	// SSHConfig configures the remote SSH environment.
	SSHConfig struct {
		// Host is the remote host to connect to.
		Host string `mapstructure:"host"`
		// Port is the SSH port. Zero means 22.
		Port int `mapstructure:"port"`
		// User is the login user.
		User string `mapstructure:"user"`
		// Password authenticates when set.
		Password string `mapstructure:"password"`
		// KeyPath points to a private key file used when Password is empty.
		KeyPath string `mapstructure:"key_path"`
		// KnownHostsPath points to a known_hosts file for host verification.
		// Empty skips verification.
		KnownHostsPath string `mapstructure:"known_hosts_path"`
		// Language is the default snippet language.
		Language Language `mapstructure:"language"`
		// Timeout bounds each execution. Zero means DefaultTimeout.
		Timeout time.Duration `mapstructure:"timeout"`
	}
)

// Provider returns the provider discriminator.
func (LocalConfig) Provider() string { return ProviderLocal }

// Validate checks the configuration for completeness.
func (LocalConfig) Validate() error { return nil }

// Provider returns the provider discriminator.
func (SubprocessConfig) Provider() string { return ProviderSubprocess }

// Validate checks the configuration for completeness.
func (c SubprocessConfig) Validate() error {
	if c.Language != "" {
		if err := c.Language.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Provider returns the provider discriminator.
func (ContainerConfig) Provider() string { return ProviderContainer }

// Validate checks the configuration for completeness.
func (c ContainerConfig) Validate() error {
	if c.Image == "" {
		return fmt.Errorf("%w: container config requires an image", ErrInvalidConfig)
	}
	if c.Language != "" {
		if err := c.Language.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Provider returns the provider discriminator.
func (SSHConfig) Provider() string { return ProviderSSH }

// Validate checks the configuration for completeness.
func (c SSHConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: ssh config requires a host", ErrInvalidConfig)
	}
	if c.User == "" {
		return fmt.Errorf("%w: ssh config requires a user", ErrInvalidConfig)
	}
	if c.Password == "" && c.KeyPath == "" {
		return fmt.Errorf("%w: ssh config requires a password or key_path", ErrInvalidConfig)
	}
	return nil
}

// New creates the Environment described by a provider config.
func New(cfg ProviderConfig) (Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch c := cfg.(type) {
	case LocalConfig:
		return NewLocalEnvironment(c), nil
	case *LocalConfig:
		return NewLocalEnvironment(*c), nil
	case SubprocessConfig:
		return NewSubprocessEnvironment(c), nil
	case *SubprocessConfig:
		return NewSubprocessEnvironment(*c), nil
	case ContainerConfig:
		return NewContainerEnvironment(c)
	case *ContainerConfig:
		return NewContainerEnvironment(*c)
	case SSHConfig:
		return NewSSHEnvironment(c), nil
	case *SSHConfig:
		return NewSSHEnvironment(*c), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownProvider, cfg)
	}
}

// DecodeConfig turns a raw map (parsed from TOML, CUE, or JSON) into the
// provider config selected by its "type" field.
func DecodeConfig(raw map[string]any) (ProviderConfig, error) {
	providerType, _ := raw["type"].(string)

	var cfg ProviderConfig
	switch providerType {
	case ProviderLocal:
		cfg = &LocalConfig{}
	case ProviderSubprocess:
		cfg = &SubprocessConfig{}
	case ProviderContainer:
		cfg = &ContainerConfig{}
	case ProviderSSH:
		cfg = &SSHConfig{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerType)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build config decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
