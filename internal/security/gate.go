package security

import (
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/codecli/codecli/internal/agent/models"
	"github.com/codecli/codecli/internal/config"
	"github.com/codecli/codecli/internal/observability"
	"github.com/codecli/codecli/internal/tool/shell"
)

// metacharacters enable command chaining, substitution or redirection and
// are rejected outright: commands run via argv exec, never a shell, so
// these would silently change meaning. Order matters only for which rule id
// is reported.
var metacharacters = []string{
	"|", "||", "&&", ";", "$(", "`", ">", "<", ">>", "&", "\n",
}

// builtinDangerousRoots are command roots classified as destructive.
var builtinDangerousRoots = []string{
	"rm", "sudo", "kill", "pkill", "dd", "chmod", "chown", "mv",
	"mkfs", "shutdown", "reboot",
}

// builtinDangerousPrefixes match the normalized command string.
var builtinDangerousPrefixes = []string{
	"git push", "git commit",
}

// pathArgKeys are invocation argument names treated as filesystem paths.
var pathArgKeys = []string{"path", "cwd", "dir", "file", "source", "dest"}

// Gate classifies proposed tool invocations as allowed, blocked, or
// requiring confirmation. Decide is a pure function of the invocation and
// the session policy; the confirmation round-trip itself happens in the
// loop. Block rules always dominate allow rules.
type Gate struct {
	shell    config.ShellConfig
	mode     models.RunMode
	resolver *PathResolver

	// mutating marks tool names that declare a workspace-mutation side
	// effect; they are classified dangerous.
	mutating map[string]bool

	mu           sync.RWMutex
	sessionAllow map[string]bool
}

// NewGate creates a Gate for one session. The policy is read-only for the
// session's lifetime; only the session allowlist mutates, via AllowAlways.
func NewGate(shell config.ShellConfig, mode models.RunMode, resolver *PathResolver, mutating map[string]bool) *Gate {
	if mutating == nil {
		mutating = map[string]bool{}
	}
	return &Gate{
		shell:        shell,
		mode:         mode,
		resolver:     resolver,
		mutating:     mutating,
		sessionAllow: make(map[string]bool),
	}
}

// Decide classifies a single invocation. One decision per invocation;
// decisions are never cached since arguments vary.
func (g *Gate) Decide(inv models.ToolInvocation) models.SecurityDecision {
	dec := g.decide(inv)
	observability.RecordGateDecision(string(dec.Verdict), string(dec.Reason))
	return dec
}

func (g *Gate) decide(inv models.ToolInvocation) models.SecurityDecision {
	// Path containment applies to every tool, independent of any list.
	for _, key := range pathArgKeys {
		raw, ok := inv.Args[key]
		if !ok {
			continue
		}
		path, ok := raw.(string)
		if !ok || path == "" {
			continue
		}
		if _, err := g.resolver.Contain(path); err != nil {
			return models.SecurityDecision{
				InvocationID: inv.ID,
				Verdict:      models.VerdictBlocked,
				Reason:       models.ReasonPathTraversal,
				MatchedRule:  key + "=" + path,
			}
		}
	}

	if command, ok := inv.Args["command"].(string); ok {
		return g.decideShell(inv, command)
	}
	return g.decideTool(inv)
}

// decideShell filters a shell command string. Blocked patterns are checked
// first and dominate unconditionally, even when the same string also
// matches an allowed entry.
func (g *Gate) decideShell(inv models.ToolInvocation, command string) models.SecurityDecision {
	blocked := func(reason models.ReasonCode, rule string) models.SecurityDecision {
		return models.SecurityDecision{
			InvocationID: inv.ID,
			Verdict:      models.VerdictBlocked,
			Reason:       reason,
			MatchedRule:  rule,
		}
	}

	if strings.TrimSpace(command) == "" {
		return blocked(models.ReasonBlockedPattern, "empty command")
	}

	for _, meta := range metacharacters {
		if strings.Contains(command, meta) {
			return blocked(models.ReasonBlockedPattern, "metacharacter "+meta)
		}
	}

	for _, pattern := range g.shell.Blocked {
		if strings.Contains(command, pattern) {
			return blocked(models.ReasonBlockedPattern, pattern)
		}
	}

	// Tokenize with the executor's own splitter so quoting cannot make the
	// gate classify a different binary than the one that would run.
	argv, err := shell.Split(command)
	if err != nil {
		return blocked(models.ReasonBlockedPattern, "unparseable command")
	}
	root := filepath.Base(argv[0])

	g.mu.RLock()
	sessionAllowed := g.sessionAllow[root]
	g.mu.RUnlock()

	if len(g.shell.Allowed) > 0 && !slices.Contains(g.shell.Allowed, root) && !sessionAllowed {
		return blocked(models.ReasonNotAllowlisted, root)
	}

	dangerous := g.isDangerous(argv, root)

	if sessionAllowed {
		return models.SecurityDecision{
			InvocationID: inv.ID,
			Verdict:      models.VerdictAllowed,
			Reason:       models.ReasonAllowlisted,
			MatchedRule:  root,
			Dangerous:    dangerous,
		}
	}

	return g.applyConfirmMode(inv, dangerous, root, slices.Contains(g.shell.Allowed, root))
}

// decideTool gates non-shell tools: path containment already passed, so the
// only question is whether a workspace-mutating tool needs confirmation.
func (g *Gate) decideTool(inv models.ToolInvocation) models.SecurityDecision {
	return g.applyConfirmMode(inv, g.mutating[inv.Name], inv.Name, false)
}

func (g *Gate) applyConfirmMode(inv models.ToolInvocation, dangerous bool, rule string, allowlisted bool) models.SecurityDecision {
	needsConfirmation := false
	reason := models.ReasonConfirmationOff

	switch g.shell.Confirm {
	case config.ConfirmAll:
		needsConfirmation = true
		reason = models.ReasonConfirmAll
		if dangerous {
			reason = models.ReasonDangerousCommand
		}
	case config.ConfirmDangerous:
		if dangerous {
			needsConfirmation = true
			reason = models.ReasonDangerousCommand
		}
	case config.ConfirmNone:
		// Never confirm.
	}

	// ARMED suppresses confirmation for non-destructive actions only.
	// Dangerous actions are never silently auto-approved by mode alone.
	if g.mode == models.ModeArmed && !dangerous {
		needsConfirmation = false
		reason = models.ReasonConfirmationOff
	}

	verdict := models.VerdictAllowed
	if needsConfirmation {
		verdict = models.VerdictNeedsConfirmation
	} else if reason == models.ReasonConfirmationOff && allowlisted {
		reason = models.ReasonAllowlisted
	}

	return models.SecurityDecision{
		InvocationID: inv.ID,
		Verdict:      verdict,
		Reason:       reason,
		MatchedRule:  rule,
		Dangerous:    dangerous,
	}
}

// AllowAlways adds a command root to the session allowlist after an
// explicit approve-always decision. Never persisted.
func (g *Gate) AllowAlways(root string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionAllow[root] = true
}

func (g *Gate) isDangerous(argv []string, root string) bool {
	if slices.Contains(builtinDangerousRoots, root) {
		return true
	}
	// Prefix patterns match against the root plus the remaining argv, so
	// "/usr/bin/git push" and "'git' push" both normalize to "git push".
	normalized := strings.Join(append([]string{root}, argv[1:]...), " ")
	for _, prefix := range builtinDangerousPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return true
		}
	}
	for _, extra := range g.shell.Dangerous {
		if root == extra || strings.HasPrefix(normalized, extra) {
			return true
		}
	}
	return false
}

// CommandRoot extracts the root command (basename) from a command string,
// using the executor's tokenizer so quoting never changes which binary the
// gate attributes. Example: "/usr/bin/docker run" returns "docker".
// Unparseable commands return "".
func CommandRoot(command string) string {
	argv, err := shell.Split(command)
	if err != nil || len(argv) == 0 {
		return ""
	}
	return filepath.Base(argv[0])
}
