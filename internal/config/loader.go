package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"
)

const (
	// ConfigDir is the directory name under ~/.config
	ConfigDir = "codecli"
	// ConfigFile is the config file name
	ConfigFile = "config.json"
)

// FileSystem abstracts file operations for testability
type FileSystem interface {
	UserHomeDir() (string, error)
	ReadFile(path string) ([]byte, error)
}

// ConfigFileReader implements FileSystem using the real OS for config loading
type ConfigFileReader struct{}

func (ConfigFileReader) UserHomeDir() (string, error) {
	return os.UserHomeDir()
}

func (ConfigFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Loader handles configuration loading with injected dependencies
type Loader struct {
	fs FileSystem
}

// NewLoader creates a production Loader using the real filesystem
func NewLoader() *Loader {
	return &Loader{fs: ConfigFileReader{}}
}

// NewLoaderWithFS creates a Loader with a custom filesystem (for testing)
func NewLoaderWithFS(fs FileSystem) *Loader {
	return &Loader{fs: fs}
}

// Load reads configuration from ~/.config/codecli/config.json
// and merges it with defaults. Dotfile values override defaults.
// Returns default config if dotfile doesn't exist.
// Returns error only for parse errors, permission issues, or validation failures.
//
// NOTE: JSON keys are unmarshaled directly over the default configuration,
// so explicit zero values (0, false, "") in the config file override
// defaults while missing keys leave the defaults untouched.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := l.fs.UserHomeDir()
	if err != nil {
		return cfg, nil // Use defaults if can't get home dir
	}

	configPath := filepath.Join(homeDir, ".config", ConfigDir, ConfigFile)
	return l.loadPath(cfg, configPath)
}

// LoadPath reads configuration from an explicit path, merging over defaults.
func (l *Loader) LoadPath(path string) (*Config, error) {
	return l.loadPath(DefaultConfig(), path)
}

func (l *Loader) loadPath(cfg *Config, path string) (*Config, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if file doesn't exist
		}
		return nil, err // Return error for permission issues
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err // Return error for malformed JSON
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is a convenience function using the default loader
func Load() (*Config, error) {
	return NewLoader().Load()
}

// ProviderSettings holds the decoded per-provider configuration block.
type ProviderSettings struct {
	Type      string `mapstructure:"type"`
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	BaseURL   string `mapstructure:"base_url"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// Provider decodes the named provider block into typed settings.
// Unknown providers return zero settings with Type set to the name so the
// caller can surface a useful error.
func (c *Config) Provider(name string) (ProviderSettings, error) {
	var settings ProviderSettings
	raw, ok := c.Providers[name]
	if !ok {
		settings.Type = name
		return settings, nil
	}
	if err := mapstructure.Decode(raw, &settings); err != nil {
		return settings, err
	}
	if settings.Type == "" {
		settings.Type = name
	}
	return settings, nil
}
