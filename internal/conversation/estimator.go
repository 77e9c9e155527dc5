package conversation

import (
	"github.com/pkoukk/tiktoken-go"
)

// Estimator estimates token counts for text.
type Estimator interface {
	Estimate(text string) int
}

// TiktokenEstimator counts tokens with the cl100k_base encoding. The counts
// are an approximation for non-OpenAI models but close enough for budgeting.
type TiktokenEstimator struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenEstimator loads the cl100k_base encoding. Returns an error if
// the encoding cannot be initialized; callers should fall back to
// HeuristicEstimator.
func NewTiktokenEstimator() (*TiktokenEstimator, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, err
	}
	return &TiktokenEstimator{enc: enc}, nil
}

func (e *TiktokenEstimator) Estimate(text string) int {
	return len(e.enc.Encode(text, nil, nil))
}

// HeuristicEstimator approximates one token per four characters.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}

// NewEstimator returns the tiktoken estimator when available, otherwise the
// chars/4 heuristic.
func NewEstimator() Estimator {
	if est, err := NewTiktokenEstimator(); err == nil {
		return est
	}
	return HeuristicEstimator{}
}
