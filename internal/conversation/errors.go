package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrContextOverflow is returned when compression cannot bring the
	// conversation back under the token budget (e.g. a single pinned turn
	// exceeds max_tokens).
	ErrContextOverflow = errors.New("context overflow: compression cannot reduce below budget")

	// ErrInvalidCheckpoint is returned when a rollback target does not
	// exist or exceeds current conversation state.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)

// CheckpointError carries the offending sequence number.
type CheckpointError struct {
	Seq   int
	Cause error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %d: %v", e.Seq, e.Cause)
}

func (e *CheckpointError) Unwrap() error { return e.Cause }
