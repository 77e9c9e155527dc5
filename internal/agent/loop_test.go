package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codecli/codecli/internal/agent/models"
	"github.com/codecli/codecli/internal/config"
	"github.com/codecli/codecli/internal/conversation"
	"github.com/codecli/codecli/internal/event"
	providermodels "github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/registry"
	"github.com/codecli/codecli/internal/security"
	"github.com/codecli/codecli/internal/tool"
)

// -- Scripted collaborators --

type scriptedProvider struct {
	replies    []*providermodels.Reply
	errs       []error
	repeatLast bool
	calls      int
}

func (p *scriptedProvider) Name() string  { return "scripted" }
func (p *scriptedProvider) Model() string { return "scripted-1" }

func (p *scriptedProvider) Generate(ctx context.Context, history []models.Turn, tools []tool.Declaration) (*providermodels.Reply, error) {
	i := p.calls
	if i >= len(p.replies) {
		if !p.repeatLast {
			return nil, fmt.Errorf("unexpected generate call %d", i)
		}
		i = len(p.replies) - 1
	}
	p.calls++
	var err error
	if i < len(p.errs) {
		err = p.errs[i]
	}
	return p.replies[i], err
}

type scriptedBroker struct {
	answers  []security.Decision
	err      error
	requests []security.ConfirmationRequest
}

func (b *scriptedBroker) Confirm(ctx context.Context, req security.ConfirmationRequest) (security.Decision, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return "", b.err
	}
	i := len(b.requests) - 1
	if i >= len(b.answers) {
		return security.DecisionApprove, nil
	}
	return b.answers[i], nil
}

type countingSnapshotter struct {
	calls int
}

func (s *countingSnapshotter) Snapshot(message string) (string, error) {
	s.calls++
	return fmt.Sprintf("ref-%d", s.calls), nil
}

// spyGate counts decisions so tests can assert the gate was never reached.
type spyGate struct {
	inner   *security.Gate
	decides int
}

func (g *spyGate) Decide(inv models.ToolInvocation) models.SecurityDecision {
	g.decides++
	return g.inner.Decide(inv)
}

func (g *spyGate) AllowAlways(root string) { g.inner.AllowAlways(root) }

// recordingTool is a stub tool that records executions.
type recordingTool struct {
	name     string
	mutating bool
	result   tool.Result
	err      error

	mu   sync.Mutex
	runs []map[string]any
}

func (r *recordingTool) Declaration() tool.Declaration {
	return tool.Declaration{Name: r.name, Description: "stub"}
}

func (r *recordingTool) Mutating() bool { return r.mutating }

func (r *recordingTool) Execute(ctx context.Context, args map[string]any) (tool.Result, error) {
	r.mu.Lock()
	r.runs = append(r.runs, args)
	r.mu.Unlock()
	return r.result, r.err
}

func (r *recordingTool) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

// -- Rig --

type rig struct {
	loop     *Loop
	provider *scriptedProvider
	broker   *scriptedBroker
	conv     *conversation.Manager
	gate     *spyGate
	snaps    *countingSnapshotter
	shell    *recordingTool
	reader   *recordingTool
	writer   *recordingTool
}

func newRig(t *testing.T, agentCfg config.AgentConfig, provider *scriptedProvider, broker *scriptedBroker) *rig {
	t.Helper()

	reg := registry.NewRegistry()
	shellTool := &recordingTool{name: "run_command", mutating: true, result: tool.Result{Content: "STDOUT:\nok"}}
	readTool := &recordingTool{name: "read_file", result: tool.Result{Content: "contents"}}
	writeTool := &recordingTool{name: "write_file", mutating: true, result: tool.Result{Content: "Created x"}}
	require.NoError(t, reg.Register(shellTool))
	require.NoError(t, reg.Register(readTool))
	require.NoError(t, reg.Register(writeTool))

	root, err := security.CanonicaliseRoot(t.TempDir())
	require.NoError(t, err)
	resolver := security.NewPathResolver(root)

	shellCfg := config.DefaultConfig().Shell
	gate := security.NewGate(shellCfg, models.ModeSafe, resolver, reg.MutatingTools())
	spy := &spyGate{inner: gate}

	conv := conversation.NewManager(config.DefaultConfig().Context, conversation.HeuristicEstimator{}, "sess-1", event.NewBus())
	snaps := &countingSnapshotter{}

	loop := NewLoop(agentCfg, Deps{
		Provider:     provider,
		Conversation: conv,
		Gate:         spy,
		Executor:     reg,
		Broker:       broker,
		Snapshotter:  snaps,
		Bus:          event.NewBus(),
		SessionID:    "sess-1",
	})
	return &rig{loop: loop, provider: provider, broker: broker, conv: conv, gate: spy, snaps: snaps, shell: shellTool, reader: readTool, writer: writeTool}
}

func agentCfg() config.AgentConfig {
	return config.AgentConfig{MaxIterations: 10}
}

func textReply(text string) *providermodels.Reply {
	return &providermodels.Reply{Type: providermodels.ReplyTypeText, Text: text}
}

func toolReply(invs ...models.ToolInvocation) *providermodels.Reply {
	return &providermodels.Reply{Type: providermodels.ReplyTypeToolCall, Invocations: invs}
}

func command(id, cmd string) models.ToolInvocation {
	return models.ToolInvocation{ID: id, Name: "run_command", Args: map[string]any{"command": cmd}}
}

func toolTurns(history []models.Turn) []models.Turn {
	var out []models.Turn
	for _, turn := range history {
		if turn.Role == models.RoleTool {
			out = append(out, turn)
		}
	}
	return out
}

// -- Scenarios --

func TestRunReturnsFinalAnswer(t *testing.T) {
	r := newRig(t, agentCfg(), &scriptedProvider{replies: []*providermodels.Reply{textReply("all done")}}, &scriptedBroker{})

	answer, err := r.loop.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "all done", answer)
	assert.Equal(t, StateDone, r.loop.State())

	history := r.conv.History()
	require.Len(t, history, 2)
	assert.Equal(t, models.RoleUser, history[0].Role)
	assert.Equal(t, models.RoleAssistant, history[1].Role)
}

func TestToolCycleThenAnswer(t *testing.T) {
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(command("inv-1", "ls -la")),
		textReply("there are 3 files"),
	}}
	r := newRig(t, agentCfg(), provider, &scriptedBroker{})

	answer, err := r.loop.Run(context.Background(), "list the files")
	require.NoError(t, err)
	assert.Equal(t, "there are 3 files", answer)
	assert.Equal(t, 1, r.shell.runCount(), "allowlisted non-dangerous command executes without confirmation")
	assert.Empty(t, r.broker.requests)

	turns := toolTurns(r.conv.History())
	require.Len(t, turns, 1)
	require.Len(t, turns[0].Results, 1)
	assert.Equal(t, models.StatusSuccess, turns[0].Results[0].Status)
	assert.Equal(t, "inv-1", turns[0].Results[0].InvocationID)
}

func TestBlockedCommandNeverExecutes(t *testing.T) {
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(command("inv-1", "sudo rm -rf /")),
		textReply("I could not do that"),
	}}
	r := newRig(t, agentCfg(), provider, &scriptedBroker{})

	_, err := r.loop.Run(context.Background(), "wipe the disk")
	require.NoError(t, err, "a blocked invocation is recoverable")
	assert.Zero(t, r.shell.runCount())
	assert.Empty(t, r.broker.requests, "blocked dominates confirmation")

	turns := toolTurns(r.conv.History())
	require.Len(t, turns, 1)
	result := turns[0].Results[0]
	assert.Equal(t, models.StatusDenied, result.Status)
	assert.Contains(t, result.Content, "Denied:")
}

func TestIterationLimitExceeded(t *testing.T) {
	cfg := agentCfg()
	cfg.MaxIterations = 3
	provider := &scriptedProvider{
		replies:    []*providermodels.Reply{toolReply(command("inv-1", "ls"))},
		repeatLast: true,
	}
	r := newRig(t, cfg, provider, &scriptedBroker{})

	_, err := r.loop.Run(context.Background(), "loop forever")
	require.Error(t, err)
	assert.Equal(t, models.KindIterationLimitExceeded, models.KindOf(err))
	assert.Equal(t, StateFailed, r.loop.State())
	assert.Len(t, toolTurns(r.conv.History()), 3, "exactly three full cycles recorded")
	assert.Equal(t, 3, provider.calls)
}

func TestConfirmationDeny(t *testing.T) {
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(command("inv-1", "git push")),
		textReply("not pushed"),
	}}
	broker := &scriptedBroker{answers: []security.Decision{security.DecisionDeny}}
	r := newRig(t, agentCfg(), provider, broker)

	answer, err := r.loop.Run(context.Background(), "push my branch")
	require.NoError(t, err)
	assert.Equal(t, "not pushed", answer)
	assert.Zero(t, r.shell.runCount())

	require.Len(t, broker.requests, 1)
	assert.Equal(t, "git push", broker.requests[0].Command)
	assert.True(t, broker.requests[0].Dangerous)

	turns := toolTurns(r.conv.History())
	require.Len(t, turns, 1)
	assert.Equal(t, models.StatusDenied, turns[0].Results[0].Status)
	assert.Contains(t, turns[0].Results[0].Content, string(models.ReasonUserDenied))
}

func TestConfirmationApprove(t *testing.T) {
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(command("inv-1", "git push")),
		textReply("pushed"),
	}}
	broker := &scriptedBroker{answers: []security.Decision{security.DecisionApprove}}
	r := newRig(t, agentCfg(), provider, broker)

	_, err := r.loop.Run(context.Background(), "push my branch")
	require.NoError(t, err)
	assert.Equal(t, 1, r.shell.runCount())

	turns := toolTurns(r.conv.History())
	assert.Equal(t, models.StatusSuccess, turns[0].Results[0].Status)
}

func TestApproveAlwaysSkipsLaterConfirmations(t *testing.T) {
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(command("inv-1", "git push")),
		toolReply(command("inv-2", "git push --force-with-lease")),
		textReply("pushed twice"),
	}}
	broker := &scriptedBroker{answers: []security.Decision{security.DecisionApproveAlways}}
	r := newRig(t, agentCfg(), provider, broker)

	_, err := r.loop.Run(context.Background(), "push everything")
	require.NoError(t, err)
	assert.Equal(t, 2, r.shell.runCount())
	assert.Len(t, broker.requests, 1, "approve-always covers the session")
}

func TestCancelDuringConfirmation(t *testing.T) {
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(command("inv-1", "git push")),
	}}
	broker := &scriptedBroker{err: context.Canceled}
	r := newRig(t, agentCfg(), provider, broker)

	_, err := r.loop.Run(context.Background(), "push my branch")
	require.Error(t, err)
	assert.Equal(t, models.KindUserCancelled, models.KindOf(err))
	assert.Equal(t, StateFailed, r.loop.State())
	assert.Zero(t, r.shell.runCount())

	turns := toolTurns(r.conv.History())
	require.Len(t, turns, 1)
	assert.Equal(t, models.StatusDenied, turns[0].Results[0].Status, "no invocation left pending")
}

func TestMalformedReplyRecovers(t *testing.T) {
	invalid := &providermodels.ProviderError{Code: providermodels.ErrorCodeInvalidResponse, Message: "bad json"}
	provider := &scriptedProvider{
		replies: []*providermodels.Reply{nil, textReply("recovered")},
		errs:    []error{invalid, nil},
	}
	r := newRig(t, agentCfg(), provider, &scriptedBroker{})

	answer, err := r.loop.Run(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "recovered", answer)

	var errorTurns int
	for _, turn := range r.conv.History() {
		if turn.Role == models.RoleError {
			errorTurns++
		}
	}
	assert.Equal(t, 1, errorTurns)
}

func TestRepeatedMalformedRepliesFail(t *testing.T) {
	invalid := &providermodels.ProviderError{Code: providermodels.ErrorCodeInvalidResponse, Message: "bad json"}
	provider := &scriptedProvider{
		replies:    []*providermodels.Reply{nil},
		errs:       []error{invalid},
		repeatLast: true,
	}
	r := newRig(t, agentCfg(), provider, &scriptedBroker{})

	_, err := r.loop.Run(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, models.KindInvalidResponse, models.KindOf(err))
}

func TestProviderUnavailableIsFatal(t *testing.T) {
	down := &providermodels.ProviderError{Code: providermodels.ErrorCodeUnavailable, Message: "backend down"}
	provider := &scriptedProvider{replies: []*providermodels.Reply{nil}, errs: []error{down}}
	r := newRig(t, agentCfg(), provider, &scriptedBroker{})

	_, err := r.loop.Run(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, models.KindProviderUnavailable, models.KindOf(err))
	assert.Equal(t, StateFailed, r.loop.State())
}

func TestAutoCheckpointAfterMutatingBatch(t *testing.T) {
	cfg := agentCfg()
	cfg.AutoCheckpoint = true
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(models.ToolInvocation{ID: "inv-1", Name: "write_file", Args: map[string]any{"path": "a.txt", "content": "x"}}),
		textReply("written"),
	}}
	broker := &scriptedBroker{answers: []security.Decision{security.DecisionApprove}}
	r := newRig(t, cfg, provider, broker)

	_, err := r.loop.Run(context.Background(), "write a file")
	require.NoError(t, err)
	assert.Equal(t, 1, r.writer.runCount())
	assert.Equal(t, 1, r.snaps.calls, "mutating batch snapshots the workspace")
}

func TestNoCheckpointWithoutMutation(t *testing.T) {
	cfg := agentCfg()
	cfg.AutoCheckpoint = true
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(models.ToolInvocation{ID: "inv-1", Name: "read_file", Args: map[string]any{"path": "a.txt"}}),
		textReply("read it"),
	}}
	r := newRig(t, cfg, provider, &scriptedBroker{})

	_, err := r.loop.Run(context.Background(), "read a file")
	require.NoError(t, err)
	assert.Zero(t, r.snaps.calls)
}

func TestConcurrentReadsKeepResultOrder(t *testing.T) {
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(
			models.ToolInvocation{ID: "inv-1", Name: "read_file", Args: map[string]any{"path": "a.txt"}},
			models.ToolInvocation{ID: "inv-2", Name: "read_file", Args: map[string]any{"path": "b.txt"}},
		),
		textReply("both read"),
	}}
	r := newRig(t, agentCfg(), provider, &scriptedBroker{})

	_, err := r.loop.Run(context.Background(), "read both")
	require.NoError(t, err)
	assert.Equal(t, 2, r.reader.runCount())

	turns := toolTurns(r.conv.History())
	require.Len(t, turns[0].Results, 2)
	assert.Equal(t, "inv-1", turns[0].Results[0].InvocationID)
	assert.Equal(t, "inv-2", turns[0].Results[1].InvocationID)
}

func TestFatalToolAbortsBatch(t *testing.T) {
	cfg := agentCfg()
	cfg.FatalTools = []string{"write_file"}
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(
			models.ToolInvocation{ID: "inv-1", Name: "write_file", Args: map[string]any{"path": "a.txt", "content": "x"}},
			command("inv-2", "ls"),
		),
		textReply("gave up"),
	}}
	broker := &scriptedBroker{answers: []security.Decision{security.DecisionApprove}}
	r := newRig(t, cfg, provider, broker)
	r.writer.result = tool.Result{Content: "disk full", Failed: true}

	_, err := r.loop.Run(context.Background(), "write then list")
	require.NoError(t, err)
	assert.Zero(t, r.shell.runCount(), "batch aborted after required tool failed")

	turns := toolTurns(r.conv.History())
	require.Len(t, turns[0].Results, 2)
	assert.Equal(t, models.StatusFailure, turns[0].Results[0].Status)
	assert.Contains(t, turns[0].Results[1].Content, "batch aborted")
}

func TestDisabledPluginFailsBeforeGate(t *testing.T) {
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(models.ToolInvocation{ID: "inv-1", Name: "lint", Args: map[string]any{}}),
		textReply("cannot lint"),
	}}
	r := newRig(t, agentCfg(), provider, &scriptedBroker{})
	reg := r.loop.deps.Executor.(*registry.Registry)
	reg.RegisterDisabled("lint", "workspace plugins are not trusted")

	_, err := r.loop.Run(context.Background(), "lint the code")
	require.NoError(t, err)
	assert.Zero(t, r.gate.decides, "disabled plugin rejected before security evaluation")

	turns := toolTurns(r.conv.History())
	assert.Equal(t, models.StatusDenied, turns[0].Results[0].Status,
		"never-allowed invocations do not report execution statuses")
	assert.Contains(t, turns[0].Results[0].Content, "disabled")
}

func TestUnknownToolIsRecoverable(t *testing.T) {
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(models.ToolInvocation{ID: "inv-1", Name: "ghost", Args: map[string]any{}}),
		textReply("no such tool"),
	}}
	r := newRig(t, agentCfg(), provider, &scriptedBroker{})

	answer, err := r.loop.Run(context.Background(), "use the ghost tool")
	require.NoError(t, err)
	assert.Equal(t, "no such tool", answer)

	turns := toolTurns(r.conv.History())
	assert.Equal(t, models.StatusDenied, turns[0].Results[0].Status)
	assert.Contains(t, turns[0].Results[0].Content, "unknown tool")
}

func TestTimeoutStatusIsDistinct(t *testing.T) {
	provider := &scriptedProvider{replies: []*providermodels.Reply{
		toolReply(command("inv-1", "ls")),
		textReply("too slow"),
	}}
	r := newRig(t, agentCfg(), provider, &scriptedBroker{})
	r.shell.result = tool.Result{Content: "STDOUT:\npartial"}
	r.shell.err = tool.ErrTimeout

	_, err := r.loop.Run(context.Background(), "list slowly")
	require.NoError(t, err, "a timed-out tool is recoverable")

	turns := toolTurns(r.conv.History())
	assert.Equal(t, models.StatusTimeout, turns[0].Results[0].Status)
}

func TestRunCancelledBeforeProviderCall(t *testing.T) {
	provider := &scriptedProvider{
		replies: []*providermodels.Reply{nil},
		errs:    []error{errors.New("context cancelled mid flight")},
	}
	r := newRig(t, agentCfg(), provider, &scriptedBroker{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.loop.Run(ctx, "hello")
	require.Error(t, err)
	assert.Equal(t, models.KindUserCancelled, models.KindOf(err))
}
