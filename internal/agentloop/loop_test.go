package agentloop_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/softnix/agentic-core/internal/agentloop"
	"github.com/softnix/agentic-core/internal/planner"
	"github.com/softnix/agentic-core/internal/runstate"
	"github.com/softnix/agentic-core/internal/sandbox"
	"github.com/softnix/agentic-core/internal/store"
)

type scriptedProvider struct {
	plans []string
	calls int
}

func (p *scriptedProvider) Generate(messages []planner.Message, model string, maxTokens int) (string, planner.Usage, error) {
	idx := p.calls
	if idx >= len(p.plans) {
		idx = len(p.plans) - 1
	}
	p.calls++
	return p.plans[idx], planner.Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}, nil
}

func TestAgentLoopCompletesWhenOutputWritten(t *testing.T) {
	runsDir := t.TempDir()
	workspace := t.TempDir()
	st, err := store.New(runsDir)
	require.NoError(t, err)

	provider := &scriptedProvider{plans: []string{
		`{"thought":"write it","done":true,"final_output":"wrote result.txt","actions":[{"name":"write_workspace_file","params":{"path":"result.txt","content":"hello"}}]}`,
	}}
	pl := planner.New(provider, planner.Config{RetryMaxAttempts: 1})

	loop := agentloop.New(st, pl, func(s *runstate.RunState) *sandbox.Sandbox {
		return sandbox.New(sandbox.Config{RunID: s.RunID, Workspace: s.Workspace, RunDir: st.RunDir(s.RunID)})
	})

	final, err := loop.StartRun(context.Background(), "write the result to result.txt", "test-provider", "test-model", workspace, "", 5)
	require.NoError(t, err)
	require.Equal(t, runstate.StatusCompleted, final.Status)
	require.Equal(t, runstate.StopReasonCompleted, final.StopReason)

	data, err := os.ReadFile(filepath.Join(workspace, "result.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	iters, err := st.ReadIterations(final.RunID)
	require.NoError(t, err)
	require.Len(t, iters, 1)
	require.True(t, iters[0].Done)
}

func TestAgentLoopStopsAtMaxIters(t *testing.T) {
	runsDir := t.TempDir()
	workspace := t.TempDir()
	st, err := store.New(runsDir)
	require.NoError(t, err)

	provider := &scriptedProvider{plans: []string{
		`{"thought":"thinking 1","done":false,"actions":[]}`,
		`{"thought":"thinking 2","done":false,"actions":[]}`,
	}}
	pl := planner.New(provider, planner.Config{RetryMaxAttempts: 1})

	loop := agentloop.New(st, pl, func(s *runstate.RunState) *sandbox.Sandbox {
		return sandbox.New(sandbox.Config{RunID: s.RunID, Workspace: s.Workspace, RunDir: st.RunDir(s.RunID)})
	})
	loop.Config.NoProgressRepeatThreshold = 100

	final, err := loop.StartRun(context.Background(), "do nothing in particular", "test-provider", "test-model", workspace, "", 2)
	require.NoError(t, err)
	require.Equal(t, runstate.StatusFailed, final.Status)
	require.Equal(t, runstate.StopReasonMaxIters, final.StopReason)
	require.Equal(t, 2, final.Iteration)
}

func TestAgentLoopDetectsNoProgress(t *testing.T) {
	runsDir := t.TempDir()
	workspace := t.TempDir()
	st, err := store.New(runsDir)
	require.NoError(t, err)

	repeated := `{"thought":"stuck","done":false,"actions":[{"name":"list_dir","params":{"path":"."}}]}`
	provider := &scriptedProvider{plans: []string{repeated, repeated, repeated}}
	pl := planner.New(provider, planner.Config{RetryMaxAttempts: 1})

	loop := agentloop.New(st, pl, func(s *runstate.RunState) *sandbox.Sandbox {
		return sandbox.New(sandbox.Config{RunID: s.RunID, Workspace: s.Workspace, RunDir: st.RunDir(s.RunID)})
	})
	loop.Config.NoProgressRepeatThreshold = 3

	final, err := loop.StartRun(context.Background(), "explore the workspace", "test-provider", "test-model", workspace, "", 10)
	require.NoError(t, err)
	require.Equal(t, runstate.StatusFailed, final.Status)
	require.Equal(t, runstate.StopReasonNoProgress, final.StopReason)
}

func TestAgentLoopResumeIsNoopOnTerminalRun(t *testing.T) {
	runsDir := t.TempDir()
	workspace := t.TempDir()
	st, err := store.New(runsDir)
	require.NoError(t, err)

	provider := &scriptedProvider{plans: []string{
		`{"thought":"write it","done":true,"final_output":"wrote result.txt","actions":[{"name":"write_workspace_file","params":{"path":"result.txt","content":"hi"}}]}`,
	}}
	pl := planner.New(provider, planner.Config{RetryMaxAttempts: 1})

	loop := agentloop.New(st, pl, func(s *runstate.RunState) *sandbox.Sandbox {
		return sandbox.New(sandbox.Config{RunID: s.RunID, Workspace: s.Workspace, RunDir: st.RunDir(s.RunID)})
	})

	final, err := loop.StartRun(context.Background(), "write the result to result.txt", "test-provider", "test-model", workspace, "", 5)
	require.NoError(t, err)

	again, err := loop.ResumeRun(context.Background(), final.RunID)
	require.NoError(t, err)
	require.Equal(t, final.Status, again.Status)
	require.Equal(t, final.Iteration, again.Iteration)
}

func TestAgentLoopCancelRequestStopsRun(t *testing.T) {
	runsDir := t.TempDir()
	workspace := t.TempDir()
	st, err := store.New(runsDir)
	require.NoError(t, err)

	provider := &scriptedProvider{plans: []string{
		`{"thought":"thinking","done":false,"actions":[]}`,
	}}
	pl := planner.New(provider, planner.Config{RetryMaxAttempts: 1})

	loop := agentloop.New(st, pl, func(s *runstate.RunState) *sandbox.Sandbox {
		return sandbox.New(sandbox.Config{RunID: s.RunID, Workspace: s.Workspace, RunDir: st.RunDir(s.RunID)})
	})

	prepared, err := loop.PrepareRun("do nothing", "test-provider", "test-model", workspace, "", 10)
	require.NoError(t, err)
	require.NoError(t, st.RequestCancel(prepared.RunID))

	final, err := loop.ExecutePreparedRun(context.Background(), prepared.RunID)
	require.NoError(t, err)
	require.Equal(t, runstate.StatusCanceled, final.Status)
	require.Equal(t, runstate.StopReasonCanceled, final.StopReason)
}
