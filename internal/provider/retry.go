package provider

import (
	"context"
	"math"
	"math/rand"
	"time"

	agent "github.com/codecli/codecli/internal/agent/models"
	"github.com/codecli/codecli/internal/provider/models"
	"github.com/codecli/codecli/internal/tool"
)

// RetryPolicy configures retry behavior with exponential backoff.
type RetryPolicy struct {
	MaxRetries        int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	Jitter            bool
	OnRetry           func(err error, attempt int, delay time.Duration)
}

// DefaultRetryPolicy retries twice with exponential backoff and jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}
}

// Delay calculates the delay for attempt n (0-indexed).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.BackoffMultiplier, float64(attempt))
	delay = math.Min(delay, float64(p.MaxDelay))
	if p.Jitter {
		// +/- 50% jitter to avoid thundering herds.
		delay *= 0.5 + rand.Float64()
	}
	return time.Duration(delay)
}

type retryingAdapter struct {
	inner  Adapter
	policy RetryPolicy
}

// WithRetry wraps an adapter so transient failures (rate limits, backend
// unavailability) are retried per the policy. A server-provided retry
// delay overrides the computed backoff unless it exceeds MaxDelay.
func WithRetry(inner Adapter, policy RetryPolicy) Adapter {
	return &retryingAdapter{inner: inner, policy: policy}
}

func (r *retryingAdapter) Name() string  { return r.inner.Name() }
func (r *retryingAdapter) Model() string { return r.inner.Model() }

func (r *retryingAdapter) Generate(ctx context.Context, history []agent.Turn, tools []tool.Declaration) (*models.Reply, error) {
	reply, err := r.inner.Generate(ctx, history, tools)
	if err == nil {
		return reply, nil
	}

	for attempt := 0; attempt < r.policy.MaxRetries; attempt++ {
		if !models.IsRetryable(err) {
			return nil, err
		}

		delay := r.policy.Delay(attempt)
		if after := models.GetRetryAfter(err); after != nil {
			if *after > r.policy.MaxDelay {
				return nil, err
			}
			delay = *after
		}

		if r.policy.OnRetry != nil {
			r.policy.OnRetry(err, attempt+1, delay)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		reply, err = r.inner.Generate(ctx, history, tools)
		if err == nil {
			return reply, nil
		}
	}

	return nil, err
}
