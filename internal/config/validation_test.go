package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Defaults(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"zero iterations", func(c *Config) { c.Agent.MaxIterations = 0 }, ErrInvalidMaxIterations},
		{"negative max tokens", func(c *Config) { c.Context.MaxTokens = -1 }, ErrInvalidMaxTokens},
		{"zero threshold", func(c *Config) { c.Context.CompressThreshold = 0 }, ErrInvalidThreshold},
		{"threshold above one", func(c *Config) { c.Context.CompressThreshold = 1.01 }, ErrInvalidThreshold},
		{"negative keep recent", func(c *Config) { c.Context.KeepRecent = -1 }, ErrInvalidKeepRecent},
		{"zero timeout", func(c *Config) { c.Shell.TimeoutSeconds = 0 }, ErrInvalidTimeout},
		{"unknown confirm mode", func(c *Config) { c.Shell.Confirm = "maybe" }, ErrInvalidConfirmMode},
		{"zero output cap", func(c *Config) { c.Shell.MaxOutputBytes = 0 }, ErrInvalidMaxOutputBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestValidate_ThresholdOfExactlyOneIsAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Context.CompressThreshold = 1.0
	require.NoError(t, cfg.Validate())
}
