// Package main is the codecli binary: an agentic coding assistant that
// plans with a model provider and acts through gated workspace tools.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/codecli/codecli/internal/agent"
	"github.com/codecli/codecli/internal/agent/models"
	"github.com/codecli/codecli/internal/config"
	"github.com/codecli/codecli/internal/conversation"
	"github.com/codecli/codecli/internal/event"
	"github.com/codecli/codecli/internal/provider"
	"github.com/codecli/codecli/internal/provider/gemini"
	"github.com/codecli/codecli/internal/provider/openai"
	"github.com/codecli/codecli/internal/registry"
	"github.com/codecli/codecli/internal/security"
	"github.com/codecli/codecli/internal/tool"
	"github.com/codecli/codecli/internal/tool/file"
	"github.com/codecli/codecli/internal/tool/shell"
	"github.com/codecli/codecli/internal/workspace"
)

var (
	workspaceFlag string
	configFlag    string
	providerFlag  string
	armedFlag     bool
)

var rootCmd = &cobra.Command{
	Use:   "codecli [prompt]",
	Short: "Agentic coding assistant for your workspace",
	Long: `codecli runs a model-driven agent loop against the current workspace.
The model proposes tool invocations (read, write, edit, run commands);
every invocation passes a security gate before it executes, and dangerous
actions require your confirmation.

With a prompt argument codecli answers once and exits. Without one it
starts an interactive session.`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	rootCmd.Flags().StringVarP(&workspaceFlag, "workspace", "w", ".", "Workspace root the agent may touch")
	rootCmd.Flags().StringVar(&configFlag, "config", "", "Config file (default: ~/.config/codecli/config.json)")
	rootCmd.Flags().StringVarP(&providerFlag, "provider", "p", "", "Model provider (default: from config)")
	rootCmd.Flags().BoolVar(&armedFlag, "armed", false, "Skip confirmation for non-destructive actions")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// session bundles everything run needs after wiring.
type session struct {
	id      string
	loop    *agent.Loop
	console *console
	bus     *event.Bus
	plugins []registry.Plugin
	model   string
}

func run(ctx context.Context, prompt string) error {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	s, err := wire(ctx, cfg)
	if err != nil {
		log.Fatalf("initialize: %v", err)
	}
	defer s.console.Close()
	defer s.bus.Close()
	defer s.bus.Publish(event.New(s.id, event.KindSessionEnd, "", nil))

	renderer := newRenderer(os.Stdout)
	go renderer.Run(s.bus.Subscribe("console", 64))

	for _, p := range s.plugins {
		if p.Disabled {
			fmt.Fprintf(os.Stderr, "plugin %s disabled: %s\n", p.Name, p.Reason)
		}
	}

	if prompt != "" {
		return runOnce(ctx, s, renderer, prompt)
	}
	return runInteractive(ctx, s, renderer)
}

func runOnce(ctx context.Context, s *session, renderer *renderer, prompt string) error {
	answer, err := s.loop.Run(ctx, prompt)
	if err != nil {
		return err
	}
	renderer.Answer(answer)
	return nil
}

func runInteractive(ctx context.Context, s *session, renderer *renderer) error {
	fmt.Printf("codecli (%s) - workspace gated, Ctrl+D to exit\n", s.model)

	for {
		if ctx.Err() != nil {
			return nil
		}
		goal, err := s.console.ReadGoal()
		if err != nil {
			// EOF or interrupt ends the session.
			return nil
		}
		if goal == "" {
			continue
		}

		answer, err := s.loop.Run(ctx, goal)
		if err != nil {
			if models.KindOf(err) == models.KindUserCancelled {
				fmt.Println("cancelled")
				continue
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		renderer.Answer(answer)
	}
}

func loadConfig() (*config.Config, error) {
	if configFlag != "" {
		return config.NewLoader().LoadPath(configFlag)
	}
	return config.Load()
}

func wire(ctx context.Context, cfg *config.Config) (*session, error) {
	root, err := security.CanonicaliseRoot(workspaceFlag)
	if err != nil {
		return nil, fmt.Errorf("workspace root: %w", err)
	}
	resolver := security.NewPathResolver(root)

	reg := registry.NewRegistry()
	if err := registerBuiltins(reg, cfg, resolver, root); err != nil {
		return nil, err
	}
	plugins, err := registry.DiscoverPlugins(reg, root, cfg.Plugins.Trusted, int(cfg.Shell.MaxOutputBytes))
	if err != nil {
		return nil, fmt.Errorf("discover plugins: %w", err)
	}

	mode := models.ModeSafe
	if armedFlag {
		mode = models.ModeArmed
	}
	gate := security.NewGate(cfg.Shell, mode, resolver, reg.MutatingTools())

	adapter, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}

	bus := event.NewBus()
	sessionID := uuid.NewString()
	conv := conversation.NewManager(cfg.Context, conversation.NewEstimator(), sessionID, bus)

	var snapshotter agent.Snapshotter
	if gitSnap, err := workspace.NewGitSnapshotter(root); err == nil {
		snapshotter = gitSnap
	} else {
		if !errors.Is(err, workspace.ErrNotARepository) {
			fmt.Fprintf(os.Stderr, "snapshots unavailable: %v\n", err)
		}
		snapshotter = workspace.NoopSnapshotter{}
	}

	cons := newConsole(os.Stdout)

	loop := agent.NewLoop(cfg.Agent, agent.Deps{
		Provider:     adapter,
		Conversation: conv,
		Gate:         gate,
		Executor:     reg,
		Broker:       cons,
		Snapshotter:  snapshotter,
		Bus:          bus,
		SessionID:    sessionID,
	})

	return &session{id: sessionID, loop: loop, console: cons, bus: bus, plugins: plugins, model: adapter.Model()}, nil
}

func registerBuiltins(reg *registry.Registry, cfg *config.Config, resolver *security.PathResolver, root string) error {
	builtins := []tool.Tool{
		file.NewReadTool(resolver),
		file.NewWriteTool(resolver),
		file.NewEditTool(resolver),
		shell.NewRunCommandTool(cfg.Shell, root),
	}
	for _, t := range builtins {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("register %s: %w", t.Declaration().Name, err)
		}
	}
	return nil
}

// defaultModels map provider type to a sensible model when the config
// names none.
var defaultModels = map[string]string{
	"gemini": "gemini-2.0-flash",
	"openai": "gpt-4o",
}

func buildProvider(ctx context.Context, cfg *config.Config) (provider.Adapter, error) {
	name := cfg.DefaultProvider
	if providerFlag != "" {
		name = providerFlag
	}
	settings, err := cfg.Provider(name)
	if err != nil {
		return nil, fmt.Errorf("provider %q config: %w", name, err)
	}
	model := settings.Model
	if model == "" {
		model = defaultModels[settings.Type]
	}

	var adapter provider.Adapter
	switch settings.Type {
	case "gemini":
		apiKey := settings.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("gemini: set GEMINI_API_KEY or providers.gemini.api_key")
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		adapter = gemini.New(gemini.NewSDKClient(client), model, settings.MaxTokens)
	case "openai":
		apiKey := settings.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("openai: set OPENAI_API_KEY or providers.openai.api_key")
		}
		adapter = openai.NewWithKey(apiKey, settings.BaseURL, model, settings.MaxTokens)
	default:
		return nil, fmt.Errorf("unknown provider type %q", settings.Type)
	}

	return provider.WithRetry(adapter, provider.DefaultRetryPolicy()), nil
}
