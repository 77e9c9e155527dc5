package config

import (
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockFileSystem implements FileSystem for testing.
type MockFileSystem struct {
	HomeDir     string
	HomeDirErr  error
	Files       map[string][]byte
	ReadFileErr error
}

func (m *MockFileSystem) UserHomeDir() (string, error) {
	return m.HomeDir, m.HomeDirErr
}

func (m *MockFileSystem) ReadFile(path string) ([]byte, error) {
	if m.ReadFileErr != nil {
		return nil, m.ReadFileErr
	}
	data, ok := m.Files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func TestLoad_NoConfigFile_ReturnsDefaults(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files:   map[string][]byte{},
	}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Agent.MaxIterations)
	assert.Equal(t, 100000, cfg.Context.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Context.CompressThreshold, 1e-9)
	assert.Equal(t, ConfirmDangerous, cfg.Shell.Confirm)
	assert.Equal(t, 30, cfg.Shell.TimeoutSeconds)
	assert.False(t, cfg.Plugins.Trusted)
}

func TestLoad_PartialOverride_KeepsRemainingDefaults(t *testing.T) {
	configJSON := `{
		"agent": {"max_iterations": 5, "auto_checkpoint": false},
		"shell": {"blocked": ["sudo"], "confirm": "all", "timeout": 30, "max_output_size": 1048576}
	}`
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/codecli/config.json": []byte(configJSON),
		},
	}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.False(t, cfg.Agent.AutoCheckpoint)
	assert.Equal(t, []string{"sudo"}, cfg.Shell.Blocked)
	assert.Equal(t, ConfirmAll, cfg.Shell.Confirm)
	// Untouched sections keep defaults.
	assert.Equal(t, 100000, cfg.Context.MaxTokens)
}

func TestLoad_MalformedJSON_ReturnsError(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/codecli/config.json": []byte(`{not json`),
		},
	}
	loader := NewLoaderWithFS(fs)

	cfg, err := loader.Load()

	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_PermissionError_ReturnsError(t *testing.T) {
	fs := &MockFileSystem{
		HomeDir:     "/home/user",
		ReadFileErr: errors.New("permission denied"),
	}
	loader := NewLoaderWithFS(fs)

	_, err := loader.Load()

	require.Error(t, err)
}

func TestLoad_InvalidMergedConfig_FailsValidation(t *testing.T) {
	configJSON := `{"context": {"compress_threshold": 1.5, "max_tokens": 100000, "keep_recent": 4}}`
	fs := &MockFileSystem{
		HomeDir: "/home/user",
		Files: map[string][]byte{
			"/home/user/.config/codecli/config.json": []byte(configJSON),
		},
	}
	loader := NewLoaderWithFS(fs)

	_, err := loader.Load()

	require.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestProvider_DecodesSettings(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers = map[string]map[string]any{
		"openai": {
			"type":       "openai",
			"api_key":    "sk-test",
			"model":      "gpt-4o-mini",
			"base_url":   "http://localhost:11434/v1",
			"max_tokens": 4096,
		},
	}

	settings, err := cfg.Provider("openai")

	require.NoError(t, err)
	assert.Equal(t, "openai", settings.Type)
	assert.Equal(t, "sk-test", settings.APIKey)
	assert.Equal(t, "gpt-4o-mini", settings.Model)
	assert.Equal(t, 4096, settings.MaxTokens)
}

func TestProvider_UnknownName_ReturnsZeroSettingsWithType(t *testing.T) {
	cfg := DefaultConfig()

	settings, err := cfg.Provider("gemini")

	require.NoError(t, err)
	assert.Equal(t, "gemini", settings.Type)
	assert.Empty(t, settings.APIKey)
}
