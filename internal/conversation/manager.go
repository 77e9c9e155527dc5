package conversation

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/codecli/codecli/internal/agent/models"
	"github.com/codecli/codecli/internal/config"
	"github.com/codecli/codecli/internal/event"
	"github.com/codecli/codecli/internal/observability"
)

// Checkpoint is a recorded point in conversation history enabling rollback.
// Checkpoints are ordered by monotonically increasing sequence number.
type Checkpoint struct {
	Seq    int
	Length int
	Tokens int

	// SnapshotRef is an opaque external workspace snapshot token
	// (e.g. a version-control commit id). May be empty.
	SnapshotRef string

	CreatedAt time.Time
}

// Manager owns the conversation and its token accounting. No other
// component mutates the history; all changes go through Append, Compress,
// Checkpoint and Rollback.
type Manager struct {
	mu          sync.Mutex
	turns       []models.Turn
	tokens      int
	checkpoints []Checkpoint
	nextSeq     int

	maxTokens        int
	threshold        float64
	keepRecent       int
	checkpointOnTool bool
	estimator        Estimator

	sessionID string
	bus       *event.Bus
}

// NewManager creates a Manager from context configuration. bus may be nil.
func NewManager(cfg config.ContextConfig, est Estimator, sessionID string, bus *event.Bus) *Manager {
	if est == nil {
		est = NewEstimator()
	}
	return &Manager{
		maxTokens:        cfg.MaxTokens,
		threshold:        cfg.CompressThreshold,
		keepRecent:       cfg.KeepRecent,
		checkpointOnTool: cfg.CheckpointOnTool,
		estimator:        est,
		sessionID:        sessionID,
		bus:              bus,
		nextSeq:          1,
	}
}

// Append adds a turn to the conversation, estimating its token count if
// unset, and triggers compression once usage crosses the threshold
// fraction of the budget. Returns ErrContextOverflow if compression cannot
// bring usage back under the budget. When checkpoint_on_tool is set,
// appending a tool-result turn records a conversation checkpoint.
func (m *Manager) Append(turn models.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if turn.Tokens == 0 {
		turn.Tokens = m.estimator.Estimate(turnText(turn))
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	m.turns = append(m.turns, turn)
	m.tokens += turn.Tokens

	if float64(m.tokens) > m.threshold*float64(m.maxTokens) {
		m.compressLocked()
		if m.tokens > m.maxTokens {
			return ErrContextOverflow
		}
	}

	if m.checkpointOnTool && turn.Role == models.RoleTool {
		m.checkpointLocked("")
	}
	return nil
}

// Compress summarizes contiguous runs of non-pinned turns into synthetic
// pinned turns, oldest first, preserving the most recent turns verbatim.
// It stops once usage drops under the threshold or no run can shrink, so
// calling it on an already-compressed history is a no-op.
func (m *Manager) Compress() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.compressLocked()
}

func (m *Manager) compressLocked() {
	// Walk runs oldest first. A run that cannot shrink (too short, or its
	// summary saves nothing) is skipped rather than retried, so a stale
	// oldest run never starves compressible turns behind it.
	start := 0
	for {
		// The most recent keepRecent turns are never summarized.
		limit := len(m.turns) - m.keepRecent
		for start < limit && m.turns[start].Pinned {
			start++
		}
		if limit-start < 2 {
			return
		}

		end := start
		for end < limit && !m.turns[end].Pinned {
			end++
		}
		if end-start < 2 {
			start = end
			continue
		}

		run := m.turns[start:end]
		runTokens := 0
		for _, t := range run {
			runTokens += t.Tokens
		}

		summary := models.Turn{
			Role:      models.RoleSystem,
			Content:   summarize(run),
			Timestamp: time.Now(),
			Pinned:    true, // summaries are never re-summarized
		}
		summary.Tokens = m.estimator.Estimate(summary.Content)

		// Only replace when summarization actually saves tokens; otherwise
		// repeated triggers could thrash without progress.
		if summary.Tokens >= runTokens {
			start = end
			continue
		}

		rest := make([]models.Turn, 0, len(m.turns)-(end-start)+1)
		rest = append(rest, m.turns[:start]...)
		rest = append(rest, summary)
		rest = append(rest, m.turns[end:]...)
		m.turns = rest
		m.tokens = m.tokens - runTokens + summary.Tokens

		observability.RecordCompression()
		m.publish(event.KindContextCompressed, "", map[string]any{
			"summarized_turns": len(run),
			"saved_tokens":     runTokens - summary.Tokens,
			"total_tokens":     m.tokens,
		})

		if float64(m.tokens) <= m.threshold*float64(m.maxTokens) {
			return
		}
		start++ // move past the pinned summary just inserted
	}
}

// summarize produces a deterministic digest of a run of turns. The digest
// keeps user intents and tool names, which is what the model needs to stay
// on track after compression.
func summarize(run []models.Turn) string {
	var topics []string
	for _, t := range run {
		switch t.Role {
		case models.RoleUser:
			topics = append(topics, "user: "+clip(t.Content, 60))
		case models.RoleAssistant:
			for _, inv := range t.Invocations {
				topics = append(topics, "ran "+inv.Name)
			}
		}
	}
	if len(topics) == 0 {
		return fmt.Sprintf("[Summary of %d earlier turns]", len(run))
	}
	return fmt.Sprintf("[Summary of %d earlier turns: %s]", len(run), strings.Join(topics, "; "))
}

// turnText flattens everything token-bearing in a turn: text content, tool
// call names and arguments, and tool result payloads.
func turnText(turn models.Turn) string {
	var sb strings.Builder
	sb.WriteString(turn.Content)
	for _, inv := range turn.Invocations {
		sb.WriteString(inv.Name)
		for k, v := range inv.Args {
			fmt.Fprintf(&sb, " %s=%v", k, v)
		}
	}
	for _, res := range turn.Results {
		sb.WriteString(res.Content)
	}
	return sb.String()
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Checkpoint captures the current conversation length and token count along
// with an opaque external snapshot reference.
func (m *Manager) Checkpoint(snapshotRef string) Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkpointLocked(snapshotRef)
}

func (m *Manager) checkpointLocked(snapshotRef string) Checkpoint {
	cp := Checkpoint{
		Seq:         m.nextSeq,
		Length:      len(m.turns),
		Tokens:      m.tokens,
		SnapshotRef: snapshotRef,
		CreatedAt:   time.Now(),
	}
	m.nextSeq++
	m.checkpoints = append(m.checkpoints, cp)

	observability.RecordCheckpoint()
	m.publish(event.KindCheckpointCreated, "", map[string]any{
		"seq":          cp.Seq,
		"length":       cp.Length,
		"tokens":       cp.Tokens,
		"snapshot_ref": cp.SnapshotRef,
	})
	return cp
}

// Rollback truncates the conversation to the checkpoint's recorded length
// and restores the token count exactly. Checkpoints captured after the
// target are discarded.
func (m *Manager) Rollback(cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := -1
	for i, known := range m.checkpoints {
		if known.Seq == cp.Seq {
			idx = i
			break
		}
	}
	if idx == -1 {
		return &CheckpointError{Seq: cp.Seq, Cause: ErrInvalidCheckpoint}
	}
	target := m.checkpoints[idx]
	if target.Length > len(m.turns) {
		return &CheckpointError{Seq: cp.Seq, Cause: ErrInvalidCheckpoint}
	}

	m.turns = m.turns[:target.Length]
	m.tokens = target.Tokens
	m.checkpoints = m.checkpoints[:idx+1]
	return nil
}

// History returns a copy of the conversation.
func (m *Manager) History() []models.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// TokenCount returns the current cumulative token count.
func (m *Manager) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens
}

// Len returns the number of turns in the conversation.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

func (m *Manager) publish(kind event.Kind, invocationID string, payload map[string]any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(event.New(m.sessionID, kind, invocationID, payload))
}
