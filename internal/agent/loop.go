// Package agent drives the request/execute/record cycle at the heart of
// the assistant. One Loop instance runs per session.
package agent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codecli/codecli/internal/agent/models"
	"github.com/codecli/codecli/internal/config"
	"github.com/codecli/codecli/internal/event"
	providermodels "github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/security"
)

// State is the loop's position in its lifecycle.
type State string

const (
	StateIdle         State = "idle"
	StateRequesting   State = "requesting"
	StateInterpreting State = "interpreting"
	StateExecuting    State = "executing"
	StateRecording    State = "recording"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// malformedRepeatThreshold is how many consecutive unparseable provider
// replies are tolerated before the run fails.
const malformedRepeatThreshold = 3

// Deps bundles the loop's collaborators.
type Deps struct {
	Provider     Provider
	Conversation Conversation
	Gate         Gate
	Executor     Executor
	Broker       Broker
	Snapshotter  Snapshotter
	Bus          *event.Bus
	SessionID    string
}

// Loop is the per-session agent driver. Not safe for concurrent Runs.
type Loop struct {
	cfg  config.AgentConfig
	deps Deps

	state     State
	malformed int
}

func NewLoop(cfg config.AgentConfig, deps Deps) *Loop {
	return &Loop{cfg: cfg, deps: deps, state: StateIdle}
}

// State reports the loop's current lifecycle state.
func (l *Loop) State() State { return l.state }

// Run processes one user prompt to completion: it iterates
// request/interpret/execute/record cycles until the model produces a final
// answer, the iteration cap is hit, or a fatal error occurs. Recoverable
// failures (blocked invocations, tool failures, a stray malformed reply)
// are recorded as turns and the run continues.
func (l *Loop) Run(ctx context.Context, prompt string) (string, error) {
	l.publish(event.KindTurnStarted, "", map[string]any{"prompt": prompt})

	if err := l.append(models.Turn{Role: models.RoleUser, Content: prompt, Timestamp: time.Now()}); err != nil {
		return "", l.fail(err)
	}

	for iteration := 1; ; iteration++ {
		if iteration > l.cfg.MaxIterations {
			return "", l.fail(models.NewRunError(models.KindIterationLimitExceeded,
				fmt.Errorf("no final answer after %d iterations", l.cfg.MaxIterations)))
		}

		l.state = StateRequesting
		reply, err := l.deps.Provider.Generate(ctx, l.deps.Conversation.History(), l.deps.Executor.Declarations())
		if err != nil {
			if ctx.Err() != nil {
				return "", l.fail(models.NewRunError(models.KindUserCancelled, ctx.Err()))
			}
			if providermodels.CodeOf(err) == providermodels.ErrorCodeInvalidResponse {
				if recErr := l.recordMalformed(err); recErr != nil {
					return "", l.fail(recErr)
				}
				continue
			}
			return "", l.fail(models.NewRunError(models.KindProviderUnavailable, err))
		}
		l.malformed = 0

		l.state = StateInterpreting
		if reply.Type == providermodels.ReplyTypeText {
			if err := l.append(models.Turn{
				Role:      models.RoleAssistant,
				Content:   reply.Text,
				Tokens:    reply.Usage.CompletionTokens,
				Timestamp: time.Now(),
			}); err != nil {
				return "", l.fail(err)
			}
			l.publish(event.KindAssistantText, "", map[string]any{"text": reply.Text})
			l.state = StateDone
			return reply.Text, nil
		}

		if err := l.append(models.Turn{
			Role:        models.RoleAssistant,
			Invocations: reply.Invocations,
			Timestamp:   time.Now(),
		}); err != nil {
			return "", l.fail(err)
		}

		l.state = StateExecuting
		results, mutated, execErr := l.executeBatch(ctx, reply.Invocations)

		l.state = StateRecording
		if len(results) > 0 {
			if err := l.append(models.Turn{Role: models.RoleTool, Results: results, Timestamp: time.Now()}); err != nil {
				return "", l.fail(err)
			}
		}
		if execErr != nil {
			return "", l.fail(execErr)
		}
		if mutated && l.cfg.AutoCheckpoint {
			l.checkpoint()
		}
	}
}

// recordMalformed notes an unparseable provider reply as an error turn.
// Repeated malformed replies fail the run.
func (l *Loop) recordMalformed(cause error) error {
	l.malformed++
	if l.malformed >= malformedRepeatThreshold {
		return models.NewRunError(models.KindInvalidResponse,
			fmt.Errorf("%d consecutive malformed replies: %w", l.malformed, cause))
	}
	l.publish(event.KindError, "", map[string]any{"error": cause.Error(), "recoverable": true})
	return l.append(models.Turn{
		Role:      models.RoleError,
		Content:   "malformed model output: " + cause.Error(),
		Timestamp: time.Now(),
	})
}

// executeBatch gates every invocation in model order, resolves any
// confirmation round-trips, then executes the allowed ones. Non-mutating
// invocations run concurrently; mutating ones run serialized in order.
// Results come back in invocation order. The returned error is fatal
// (user cancel); everything recoverable is folded into the results.
func (l *Loop) executeBatch(ctx context.Context, invs []models.ToolInvocation) ([]models.ToolResult, bool, error) {
	results := make([]models.ToolResult, len(invs))
	mutating := l.deps.Executor.MutatingTools()

	type pending struct {
		index int
		inv   models.ToolInvocation
	}
	var sequential, concurrent []pending

	for i, inv := range invs {
		l.publish(event.KindToolRequested, inv.ID, map[string]any{"tool": inv.Name, "args": inv.Args})

		// A disabled plugin or unknown name is rejected before any security
		// evaluation. Success/Failure/Timeout are reserved for invocations
		// that were allowed to run, so these are marked denied.
		if _, err := l.deps.Executor.Lookup(inv.Name); err != nil {
			results[i] = models.ToolResult{
				InvocationID: inv.ID,
				Name:         inv.Name,
				Status:       models.StatusDenied,
				Content:      "Denied: " + err.Error(),
			}
			l.publishResult(results[i])
			continue
		}

		decision := l.deps.Gate.Decide(inv)
		if decision.Verdict == models.VerdictNeedsConfirmation {
			var fatal error
			decision, fatal = l.confirm(ctx, inv, decision)
			if fatal != nil {
				results[i] = deniedResult(inv, models.ReasonUserCancelled)
				l.publishResult(results[i])
				// Invocations gated earlier but not yet executed resolve
				// the same way; nothing stays pending.
				for _, p := range append(sequential, concurrent...) {
					results[p.index] = deniedResult(p.inv, models.ReasonUserCancelled)
				}
				return results[:i+1], false, fatal
			}
		}

		if decision.Verdict == models.VerdictBlocked {
			results[i] = deniedResult(inv, decision.Reason)
			l.publishResult(results[i])
			continue
		}

		if mutating[inv.Name] {
			sequential = append(sequential, pending{i, inv})
		} else {
			concurrent = append(concurrent, pending{i, inv})
		}
	}

	var g errgroup.Group
	for _, p := range concurrent {
		g.Go(func() error {
			res, err := l.deps.Executor.Execute(ctx, p.inv)
			if err != nil {
				res = executionFailure(p.inv, err)
			}
			results[p.index] = res
			l.publishResult(res)
			return nil
		})
	}

	mutated := false
	skipFrom := -1
	for n, p := range sequential {
		res, err := l.deps.Executor.Execute(ctx, p.inv)
		if err != nil {
			res = executionFailure(p.inv, err)
		}
		results[p.index] = res
		l.publishResult(res)
		if res.Status == models.StatusSuccess {
			mutated = true
		}
		if res.Status != models.StatusSuccess && l.isFatalTool(p.inv.Name) {
			skipFrom = n + 1
			break
		}
	}
	if skipFrom >= 0 {
		for _, p := range sequential[skipFrom:] {
			results[p.index] = models.ToolResult{
				InvocationID: p.inv.ID,
				Name:         p.inv.Name,
				Status:       models.StatusFailure,
				Content:      "Error: batch aborted after a required tool failed",
			}
			l.publishResult(results[p.index])
		}
	}

	_ = g.Wait()

	if ctx.Err() != nil {
		return results, false, models.NewRunError(models.KindUserCancelled, ctx.Err())
	}
	return results, mutated, nil
}

// confirm suspends the invocation until the user answers. Deny converts
// the decision to Blocked/UserDenied; cancellation is fatal to the run.
func (l *Loop) confirm(ctx context.Context, inv models.ToolInvocation, decision models.SecurityDecision) (models.SecurityDecision, error) {
	command, _ := inv.Args["command"].(string)
	l.publish(event.KindConfirmationRequired, inv.ID, map[string]any{
		"tool":      inv.Name,
		"command":   command,
		"dangerous": decision.Dangerous,
		"reason":    string(decision.Reason),
	})

	answer, err := l.deps.Broker.Confirm(ctx, security.ConfirmationRequest{
		Invocation: inv,
		Command:    command,
		Dangerous:  decision.Dangerous,
		Reason:     decision.Reason,
	})
	if err != nil {
		return decision, models.NewRunError(models.KindUserCancelled, err)
	}

	l.publish(event.KindConfirmationResolved, inv.ID, map[string]any{"answer": string(answer)})

	switch answer {
	case security.DecisionDeny:
		decision.Verdict = models.VerdictBlocked
		decision.Reason = models.ReasonUserDenied
	case security.DecisionApproveAlways:
		if root := security.CommandRoot(command); root != "" {
			l.deps.Gate.AllowAlways(root)
		}
		decision.Verdict = models.VerdictAllowed
	default:
		decision.Verdict = models.VerdictAllowed
	}
	return decision, nil
}

// checkpoint snapshots the workspace (best effort) and records a
// conversation checkpoint. A workspace without version control still
// checkpoints, just without a snapshot ref.
func (l *Loop) checkpoint() {
	ref, err := l.deps.Snapshotter.Snapshot("checkpoint " + time.Now().Format(time.RFC3339))
	if err != nil {
		ref = ""
	}
	l.deps.Conversation.Checkpoint(ref)
}

func (l *Loop) isFatalTool(name string) bool {
	for _, t := range l.cfg.FatalTools {
		if t == name {
			return true
		}
	}
	return false
}

// append wraps Conversation.Append, promoting overflow to the fatal
// taxonomy.
func (l *Loop) append(turn models.Turn) error {
	if err := l.deps.Conversation.Append(turn); err != nil {
		return models.NewRunError(models.KindContextOverflow, err)
	}
	return nil
}

// fail marks the loop failed and publishes the terminal error.
func (l *Loop) fail(err error) error {
	l.state = StateFailed
	l.publish(event.KindError, "", map[string]any{
		"error": err.Error(),
		"kind":  string(models.KindOf(err)),
	})
	return err
}

func deniedResult(inv models.ToolInvocation, reason models.ReasonCode) models.ToolResult {
	return models.ToolResult{
		InvocationID: inv.ID,
		Name:         inv.Name,
		Status:       models.StatusDenied,
		Content:      "Denied: " + string(reason),
	}
}

func executionFailure(inv models.ToolInvocation, err error) models.ToolResult {
	return models.ToolResult{
		InvocationID: inv.ID,
		Name:         inv.Name,
		Status:       models.StatusFailure,
		Content:      "Error: " + err.Error(),
	}
}

func (l *Loop) publish(kind event.Kind, invocationID string, payload map[string]any) {
	if l.deps.Bus == nil {
		return
	}
	l.deps.Bus.Publish(event.New(l.deps.SessionID, kind, invocationID, payload))
}

func (l *Loop) publishResult(res models.ToolResult) {
	l.publish(event.KindToolResult, res.InvocationID, map[string]any{
		"tool":     res.Name,
		"status":   string(res.Status),
		"duration": res.Duration.Seconds(),
	})
}
