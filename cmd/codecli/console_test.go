package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codecli/codecli/internal/security"
)

func TestParseDecision(t *testing.T) {
	cases := []struct {
		answer string
		want   security.Decision
	}{
		{"y", security.DecisionApprove},
		{"yes", security.DecisionApprove},
		{" Yes ", security.DecisionApprove},
		{"a", security.DecisionApproveAlways},
		{"always", security.DecisionApproveAlways},
		{"n", security.DecisionDeny},
		{"no", security.DecisionDeny},
		{"", security.DecisionDeny},
		{"sure why not", security.DecisionDeny},
	}
	for _, tc := range cases {
		t.Run("answer "+tc.answer, func(t *testing.T) {
			assert.Equal(t, tc.want, parseDecision(tc.answer))
		})
	}
}
