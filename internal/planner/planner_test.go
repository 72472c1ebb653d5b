package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStripCodeFence(t *testing.T) {
	require.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}

func TestParsePlanJSONStrict(t *testing.T) {
	p := parsePlanJSON(`{"thought":"x","done":true,"final_output":"ok","actions":[]}`)
	require.False(t, p.IsSentinel())
	require.True(t, p.Done)
	require.Equal(t, "ok", p.FinalOutput)
}

func TestParsePlanJSONOutermostBracesFallback(t *testing.T) {
	p := parsePlanJSON("here is your plan: {\"thought\":\"x\",\"done\":false,\"actions\":[]} thanks")
	require.False(t, p.IsSentinel())
	require.False(t, p.Done)
}

func TestParsePlanJSONSentinelOnGarbage(t *testing.T) {
	p := parsePlanJSON("not json at all")
	require.True(t, p.IsSentinel())
	require.False(t, p.Done)
	require.Contains(t, p.FinalOutput, "planner_parse_error")
}

func TestCompactPreviousOutputShort(t *testing.T) {
	require.Equal(t, "short", compactPreviousOutput("short", 4000))
}

func TestCompactPreviousOutputLong(t *testing.T) {
	long := make([]byte, 10000)
	for i := range long {
		long[i] = byte('a' + i%26)
	}
	out := compactPreviousOutput(string(long), 1000)
	require.Less(t, len(out), 10000)
	require.Contains(t, out, "truncated previous output")
}

type stubProvider struct {
	responses []string
	calls     int
}

func (s *stubProvider) Generate(messages []Message, model string, maxTokens int) (string, Usage, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	return s.responses[idx], Usage{TotalTokens: 10}, nil
}

func TestBuildPlanRetriesOnSentinelThenSucceeds(t *testing.T) {
	stub := &stubProvider{responses: []string{"garbage", `{"thought":"t","done":true,"final_output":"done","actions":[]}`}}
	p := New(stub, Config{RetryMaxAttempts: 2, Sleep: func(time.Duration) {}})

	res := p.BuildPlan("run1", "do it", 1, 3, "", "", "")
	require.False(t, res.Plan.IsSentinel())
	require.True(t, res.Plan.Done)
	require.Equal(t, 2, stub.calls)
}

func TestBuildPlanExhaustsRetriesReturnsSentinel(t *testing.T) {
	stub := &stubProvider{responses: []string{"garbage", "still garbage", "more garbage"}}
	p := New(stub, Config{RetryMaxAttempts: 2, Sleep: func(time.Duration) {}})

	res := p.BuildPlan("run1", "do it", 1, 3, "", "", "")
	require.True(t, res.Plan.IsSentinel())
	require.Equal(t, 2, res.RetryAttempts)
}
