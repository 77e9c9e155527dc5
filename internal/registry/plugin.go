package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codecli/codecli/internal/tool"
	"github.com/codecli/codecli/internal/tool/shell"
)

// PluginDir is the workspace-relative directory scanned for tool manifests.
const PluginDir = ".codecli/tools"

// defaultPluginTimeout applies when a manifest does not set its own.
const defaultPluginTimeout = 60

// Manifest is the YAML description of a plugin tool. Command is an argv
// slice; an optional free-form "args" parameter from the model is split
// and appended to it.
type Manifest struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	Command        []string `yaml:"command"`
	Mutating       bool     `yaml:"mutating"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

func (m *Manifest) validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest is missing a name")
	}
	if len(m.Command) == 0 {
		return fmt.Errorf("manifest is missing a command")
	}
	return nil
}

// Plugin is one discovered manifest and its enablement state.
type Plugin struct {
	Name     string
	Path     string
	Disabled bool
	Reason   string
}

// DiscoverPlugins scans the workspace plugin directory and registers each
// manifest. Plugins fail closed: unless the configuration trusts them, and
// the manifest parses and validates, the tool is registered disabled and
// any invocation of it is rejected before security evaluation.
func DiscoverPlugins(r *Registry, workspaceRoot string, trusted bool, maxOutputBytes int) ([]Plugin, error) {
	dir := filepath.Join(workspaceRoot, filepath.FromSlash(PluginDir))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ext := filepath.Ext(entry.Name()); ext != ".yaml" && ext != ".yml" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var plugins []Plugin
	for _, name := range names {
		path := filepath.Join(dir, name)
		p := loadPlugin(r, path, trusted, workspaceRoot, maxOutputBytes)
		plugins = append(plugins, p)
	}
	return plugins, nil
}

func loadPlugin(r *Registry, path string, trusted bool, workspaceRoot string, maxOutputBytes int) Plugin {
	fallbackName := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return disablePlugin(r, fallbackName, path, fmt.Sprintf("unreadable manifest: %v", err))
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return disablePlugin(r, fallbackName, path, fmt.Sprintf("malformed manifest: %v", err))
	}
	if err := m.validate(); err != nil {
		return disablePlugin(r, fallbackName, path, err.Error())
	}
	if !trusted {
		return disablePlugin(r, m.Name, path, "workspace plugins are not trusted (set plugins.trusted to enable)")
	}

	pt := newPluginTool(m, workspaceRoot, maxOutputBytes)
	if err := r.Register(pt); err != nil {
		return disablePlugin(r, m.Name, path, err.Error())
	}
	return Plugin{Name: m.Name, Path: path}
}

func disablePlugin(r *Registry, name, path, reason string) Plugin {
	r.RegisterDisabled(name, reason)
	return Plugin{Name: name, Path: path, Disabled: true, Reason: reason}
}

type pluginArgs struct {
	Args string `json:"args"`
}

func newPluginTool(m Manifest, workspaceRoot string, maxOutputBytes int) tool.Tool {
	timeout := m.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultPluginTimeout
	}
	decl := tool.Declaration{
		Name:        m.Name,
		Description: m.Description,
		Parameters: &tool.Schema{
			Type: tool.TypeObject,
			Properties: map[string]*tool.Schema{
				"args": {Type: tool.TypeString, Description: "Extra arguments appended to the command"},
			},
		},
	}
	executor := shell.NewExecutor(maxOutputBytes)
	run := func(ctx context.Context, req pluginArgs) (tool.Result, error) {
		argv := append([]string(nil), m.Command...)
		if req.Args != "" {
			extra, err := shell.Split(req.Args)
			if err != nil {
				return tool.Result{}, &tool.InvalidArgsError{Tool: m.Name, Cause: err}
			}
			argv = append(argv, extra...)
		}
		res, err := executor.Run(ctx, argv, workspaceRoot, time.Duration(timeout)*time.Second)
		if err != nil && res == nil {
			return tool.Result{}, err
		}
		content := fmt.Sprintf("STDOUT:\n%s", res.Stdout)
		if res.Stderr != "" {
			content += "\nSTDERR:\n" + res.Stderr
		}
		if errors.Is(err, tool.ErrTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return tool.Result{Content: content}, err
		}
		if res.ExitCode != 0 {
			return tool.Result{Content: fmt.Sprintf("%s\nCommand failed (exit %d)", content, res.ExitCode), Failed: true}, nil
		}
		return tool.Result{Content: content}, nil
	}
	return tool.NewAdapter(decl, m.Mutating, run)
}
