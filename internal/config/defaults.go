package config

// Config holds all session configuration.
// Defaults are set in DefaultConfig() and can be overridden via dotfile.
// NOTE: Values in config files override defaults, including explicit zero values.
// Missing keys are left at their default values.
// The config is loaded once per session and treated as read-only afterwards.
type Config struct {
	Agent     AgentConfig               `json:"agent"`
	Context   ContextConfig             `json:"context"`
	Shell     ShellConfig               `json:"shell"`
	Plugins   PluginConfig              `json:"plugins"`
	Providers map[string]map[string]any `json:"providers"`

	DefaultProvider string `json:"default_provider"`
}

// AgentConfig controls the agent loop.
type AgentConfig struct {
	MaxIterations  int  `json:"max_iterations"`  // Default: 20
	AutoCheckpoint bool `json:"auto_checkpoint"` // Default: true

	// FatalTools abort the remaining batch when they fail (e.g. a required
	// setup step). Empty by default.
	FatalTools []string `json:"fatal_tools"`
}

// ContextConfig controls conversation token budgeting.
type ContextConfig struct {
	MaxTokens         int     `json:"max_tokens"`         // Default: 100000
	CompressThreshold float64 `json:"compress_threshold"` // Default: 0.7
	KeepRecent        int     `json:"keep_recent"`        // Default: 4
	CheckpointOnTool  bool    `json:"checkpoint_on_tool"` // Default: true
}

// ConfirmMode selects which shell invocations require user confirmation.
type ConfirmMode string

const (
	ConfirmAll       ConfirmMode = "all"
	ConfirmDangerous ConfirmMode = "dangerous"
	ConfirmNone      ConfirmMode = "none"
)

// ShellConfig controls shell command gating and execution.
type ShellConfig struct {
	// Allowed lists command roots permitted to run. An empty list allows
	// any root not otherwise blocked.
	Allowed []string `json:"allowed"`

	// Blocked lists substrings that unconditionally block a command,
	// even when the same command also matches an allowed entry.
	Blocked []string `json:"blocked"`

	// Dangerous extends the built-in dangerous-command classification.
	Dangerous []string `json:"dangerous"`

	Confirm        ConfirmMode `json:"confirm"`         // Default: "dangerous"
	TimeoutSeconds int         `json:"timeout"`         // Default: 30
	MaxOutputBytes int64       `json:"max_output_size"` // Default: 1MB
}

// PluginConfig controls workspace-provided tools. Trusted is the explicit
// opt-in trust signal; it is read once at session start and never implicit.
type PluginConfig struct {
	Trusted bool `json:"trusted"` // Default: false
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxIterations:  20,
			AutoCheckpoint: true,
		},
		Context: ContextConfig{
			MaxTokens:         100000,
			CompressThreshold: 0.7,
			KeepRecent:        4,
			CheckpointOnTool:  true,
		},
		Shell: ShellConfig{
			Allowed:        []string{"ls", "cat", "grep", "git", "pytest", "npm", "go"},
			Blocked:        []string{"rm -rf", "> /dev/"},
			Confirm:        ConfirmDangerous,
			TimeoutSeconds: 30,
			MaxOutputBytes: 1024 * 1024,
		},
		Plugins:         PluginConfig{Trusted: false},
		DefaultProvider: "gemini",
	}
}
