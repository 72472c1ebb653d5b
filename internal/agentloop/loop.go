// Package agentloop implements the AgentLoop: the orchestrator that
// drives RunStore, ActionSandbox, Planner and ObjectiveValidator through
// the iterative plan-execute-validate cycle, enforcing stop conditions
// and snapshotting artifacts.
//
// Grounded on original_source/agent/loop.py's AgentLoopRunner for control
// flow, and on the teacher's internal/agent/session.go for the Go idiom
// of a per-run owned loop with loop detection and cooperative
// cancellation.
package agentloop

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/softnix/agentic-core/internal/metrics"
	"github.com/softnix/agentic-core/internal/obslog"
	"github.com/softnix/agentic-core/internal/planner"
	"github.com/softnix/agentic-core/internal/runstate"
	"github.com/softnix/agentic-core/internal/sandbox"
	"github.com/softnix/agentic-core/internal/store"
	"github.com/softnix/agentic-core/internal/validator"
)

// SkillContextProvider renders an opaque, read-only text block for a
// task. Its implementation is out of scope for this module.
type SkillContextProvider interface {
	Render(task string) string
}

// MemoryContextProvider renders an opaque effective-memory context
// block for a task. Out of scope for this module; the core only
// consumes the returned string.
type MemoryContextProvider interface {
	Render(task string) string
}

type noopContextProvider struct{}

func (noopContextProvider) Render(string) string { return "" }

// Config parameterizes one AgentLoop.
type Config struct {
	NoProgressRepeatThreshold int
	RunMaxWallTimeSec         int
}

// SandboxBuilder constructs a per-run Sandbox from the run's state; the
// loop owns the sandbox's lifetime (including container shutdown).
type SandboxBuilder func(state *runstate.RunState) *sandbox.Sandbox

// AgentLoop orchestrates A-D per iteration.
type AgentLoop struct {
	Store          *store.FilesystemStore
	Planner        *planner.Planner
	SandboxBuilder SandboxBuilder
	SkillContext   SkillContextProvider
	MemoryContext  MemoryContextProvider
	Logger         *slog.Logger
	Config         Config
}

func New(st *store.FilesystemStore, pl *planner.Planner, sb SandboxBuilder) *AgentLoop {
	return &AgentLoop{
		Store:          st,
		Planner:        pl,
		SandboxBuilder: sb,
		SkillContext:   noopContextProvider{},
		MemoryContext:  noopContextProvider{},
		Logger:         obslog.New(nil),
		Config:         Config{NoProgressRepeatThreshold: 3, RunMaxWallTimeSec: 0},
	}
}

// PrepareRun creates a fresh RunState in Running status at iteration 0.
func (l *AgentLoop) PrepareRun(task, provider, model, workspace, skillsDir string, maxIters int) (*runstate.RunState, error) {
	now := time.Now().UTC()
	st := &runstate.RunState{
		RunID:     runstate.NewRunID(),
		Task:      task,
		Provider:  provider,
		Model:     model,
		Workspace: workspace,
		SkillsDir: skillsDir,
		MaxIters:  maxIters,
		Status:    runstate.StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.Store.InitRun(st); err != nil {
		return nil, err
	}
	return st, nil
}

// StartRun is PrepareRun followed by ExecutePreparedRun.
func (l *AgentLoop) StartRun(ctx context.Context, task, provider, model, workspace, skillsDir string, maxIters int) (*runstate.RunState, error) {
	st, err := l.PrepareRun(task, provider, model, workspace, skillsDir, maxIters)
	if err != nil {
		return nil, err
	}
	return l.ExecutePreparedRun(ctx, st.RunID)
}

// ExecutePreparedRun runs the loop for runID to a terminal state (or
// until ctx is canceled). It is effectively idempotent on an
// already-terminal run: it returns the current state unmutated.
func (l *AgentLoop) ExecutePreparedRun(ctx context.Context, runID string) (*runstate.RunState, error) {
	st, err := l.Store.ReadState(runID)
	if err != nil {
		return nil, err
	}
	if st.Terminal() {
		return st, nil
	}

	sb := l.SandboxBuilder(st)
	defer sb.Shutdown(context.Background())

	if sb.Runtime() == sandbox.RuntimeContainer {
		profile, image := sb.RuntimeProfile()
		l.Store.LogEvent(runID, fmt.Sprintf("container runtime profile=%s image=%s", profile, image))
	}

	metrics.ActiveRuns.Inc()
	defer metrics.ActiveRuns.Dec()

	val := validator.New(st.Workspace)
	tracker := newNoProgressTracker(l.Config.NoProgressRepeatThreshold)
	deadline := time.Time{}
	if l.Config.RunMaxWallTimeSec > 0 {
		deadline = st.CreatedAt.Add(time.Duration(l.Config.RunMaxWallTimeSec) * time.Second)
	}

	logger := obslog.WithRun(l.Logger, runID)

	for {
		st, err = l.Store.ReadState(runID)
		if err != nil {
			return nil, err
		}
		if st.Terminal() {
			return st, nil
		}

		if ctx.Err() != nil {
			return l.transitionTerminal(st, runstate.StatusCanceled, runstate.StopReasonInterrupted, "stopped by interrupt")
		}
		if st.CancelRequested {
			return l.transitionTerminal(st, runstate.StatusCanceled, runstate.StopReasonCanceled, "stopped by cancel request")
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return l.transitionTerminal(st, runstate.StatusFailed, runstate.StopReasonNoProgress, "stopped: wall_time_limit reached")
		}

		iterLogger := obslog.WithIteration(logger, runID, st.Iteration+1)

		skillsCtx := l.SkillContext.Render(st.Task)
		memoryCtx := l.MemoryContext.Render(st.Task)

		result := l.Planner.BuildPlan(runID, st.Task, st.Iteration+1, st.MaxIters, st.LastOutput, skillsCtx, memoryCtx)
		plan := result.Plan
		metrics.RecordPlannerCall(plan.IsSentinel(), result.RetryAttempts)
		if result.RetryAttempts > 0 {
			l.Store.LogEvent(runID, fmt.Sprintf("planner retry attempt=%d/%d mode=reduced_context",
				result.RetryAttempts, l.Planner.MaxRetryAttempts()))
		}
		for _, v := range plan.Validations {
			switch v.Type {
			case planner.ValidationFileExists, planner.ValidationTextInFile,
				planner.ValidationJSONKeyExists, planner.ValidationJSONKeyEquals:
			default:
				l.Store.LogEvent(runID, fmt.Sprintf("warning: unknown validation type %q ignored", v.Type))
			}
		}

		actions := stageSkillPaths(st.SkillsDir, st.Workspace, plan.Actions)

		var actionResults []runstate.ActionResult
		writtenThisIteration := map[string]bool{}
		for _, a := range actions {
			ar := sb.Execute(ctx, sandbox.Action{Name: a.Name, Params: a.Params})
			metrics.RecordAction(a.Name, ar.OK)
			actionResults = append(actionResults, ar)
			if ar.OK && (strings.EqualFold(a.Name, "write_workspace_file") || strings.EqualFold(a.Name, "write_file")) {
				if rel, ok := a.Params["path"].(string); ok {
					writtenThisIteration[rel] = true
					if snapRel, err := l.Store.SnapshotWorkspaceFile(runID, st.Workspace, rel); err == nil {
						l.Store.LogEvent(runID, "artifact saved: "+snapRel)
					}
				}
			}
		}

		output := plan.FinalOutput
		if strings.TrimSpace(output) == "" {
			output = composeOutputFromResults(actionResults)
		}

		previousFailureSignal := validator.HasFailureSignal(st.LastOutput)
		recoveryTaken := len(actions) > 0
		eval := val.Evaluate(st.Task, plan, actionResults, writtenThisIteration, previousFailureSignal, recoveryTaken)

		done := plan.Done
		if eval.AutoComplete {
			done = true
			l.Store.LogEvent(runID, "objective auto-completed from inferred validations")
		}
		accepted := done && eval.Accepted
		if done && !eval.Accepted {
			output = strings.Join(append([]string{output}, eval.Reasons...), "; ")
			if len(eval.Hints) > 0 {
				output = output + "; " + strings.Join(eval.Hints, "; ")
			}
		}

		st.Iteration++
		st.LastOutput = output
		st.UpdatedAt = time.Now().UTC()

		rec := &runstate.IterationRecord{
			RunID:         runID,
			Iteration:     st.Iteration,
			Timestamp:     st.UpdatedAt,
			Prompt:        result.PromptText,
			Plan:          planToMap(plan),
			Actions:       actionsToMaps(actions),
			ActionResults: actionResults,
			Output:        output,
			Done:          accepted,
			TokenUsage: runstate.TokenUsage{
				PromptTokens:     result.Usage.PromptTokens,
				CompletionTokens: result.Usage.CompletionTokens,
				TotalTokens:      result.Usage.TotalTokens,
			},
		}
		if plan.IsSentinel() {
			rec.Error = plan.ParseError
		}

		if accepted {
			if err := l.Store.AppendIteration(rec); err != nil {
				return nil, err
			}
			return l.transitionTerminal(st, runstate.StatusCompleted, runstate.StopReasonCompleted, "stopped: completed")
		}

		signature := actionSignature(actions)
		capabilityBlocked := anyCapabilityBlocked(actionResults)
		if tracker.Observe(signature, capabilityBlocked, plan.IsSentinel()) {
			if err := l.Store.AppendIteration(rec); err != nil {
				return nil, err
			}
			l.Store.LogEvent(runID, "stopped: no_progress detected")
			return l.transitionTerminal(st, runstate.StatusFailed, runstate.StopReasonNoProgress, "")
		}

		if st.Iteration >= st.MaxIters {
			if err := l.Store.AppendIteration(rec); err != nil {
				return nil, err
			}
			l.Store.LogEvent(runID, "stopped: max_iters")
			return l.transitionTerminal(st, runstate.StatusFailed, runstate.StopReasonMaxIters, "")
		}

		if err := l.Store.AppendIteration(rec); err != nil {
			return nil, err
		}
		if err := l.Store.WriteState(st); err != nil {
			return nil, err
		}
		iterLogger.Info("iteration complete", slog.Bool("done", accepted))
	}
}

// ResumeRun is a no-op on a terminal RunState, otherwise continues
// ExecutePreparedRun from the current iteration.
func (l *AgentLoop) ResumeRun(ctx context.Context, runID string) (*runstate.RunState, error) {
	st, err := l.Store.ReadState(runID)
	if err != nil {
		return nil, err
	}
	if st.Terminal() {
		return st, nil
	}
	return l.ExecutePreparedRun(ctx, runID)
}

func (l *AgentLoop) transitionTerminal(st *runstate.RunState, status runstate.Status, reason runstate.StopReason, event string) (*runstate.RunState, error) {
	st.Status = status
	st.StopReason = reason
	st.UpdatedAt = time.Now().UTC()
	if err := l.Store.WriteState(st); err != nil {
		return nil, err
	}
	if event != "" {
		l.Store.LogEvent(st.RunID, event)
	}
	metrics.RecordRunTerminal(string(status), string(reason), st.UpdatedAt.Sub(st.CreatedAt).Seconds())
	return st, nil
}

func composeOutputFromResults(results []runstate.ActionResult) string {
	var parts []string
	for _, r := range results {
		if r.OK {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Output))
		} else {
			parts = append(parts, fmt.Sprintf("%s: error: %s", r.Name, r.Error))
		}
	}
	return strings.Join(parts, "\n")
}

func anyCapabilityBlocked(results []runstate.ActionResult) bool {
	for _, r := range results {
		if !r.OK && validator.HasCapabilityBlockSignal(r.Error) {
			return true
		}
	}
	return false
}

func planToMap(p planner.Plan) map[string]any {
	m := map[string]any{
		"thought":      p.Thought,
		"done":         p.Done,
		"final_output": p.FinalOutput,
	}
	return m
}

func actionsToMaps(actions []planner.Action) []map[string]any {
	out := make([]map[string]any, 0, len(actions))
	for _, a := range actions {
		out = append(out, map[string]any{"name": a.Name, "params": a.Params})
	}
	return out
}
