package config

import (
	"errors"
	"fmt"
)

// Validation errors returned by Config.Validate.
var (
	ErrInvalidMaxIterations  = errors.New("agent.max_iterations must be positive")
	ErrInvalidMaxTokens      = errors.New("context.max_tokens must be positive")
	ErrInvalidThreshold      = errors.New("context.compress_threshold must be in (0, 1]")
	ErrInvalidKeepRecent     = errors.New("context.keep_recent must not be negative")
	ErrInvalidTimeout        = errors.New("shell.timeout must be positive")
	ErrInvalidConfirmMode    = errors.New("shell.confirm must be one of: all, dangerous, none")
	ErrInvalidMaxOutputBytes = errors.New("shell.max_output_size must be positive")
)

// Validate checks the merged configuration for values the core cannot run
// with. It is called once at load time; the config is immutable afterwards.
func (c *Config) Validate() error {
	if c.Agent.MaxIterations <= 0 {
		return ErrInvalidMaxIterations
	}
	if c.Context.MaxTokens <= 0 {
		return ErrInvalidMaxTokens
	}
	if c.Context.CompressThreshold <= 0 || c.Context.CompressThreshold > 1 {
		return ErrInvalidThreshold
	}
	if c.Context.KeepRecent < 0 {
		return ErrInvalidKeepRecent
	}
	if c.Shell.TimeoutSeconds <= 0 {
		return ErrInvalidTimeout
	}
	if c.Shell.MaxOutputBytes <= 0 {
		return ErrInvalidMaxOutputBytes
	}
	switch c.Shell.Confirm {
	case ConfirmAll, ConfirmDangerous, ConfirmNone:
	default:
		return fmt.Errorf("%w: got %q", ErrInvalidConfirmMode, c.Shell.Confirm)
	}
	return nil
}
