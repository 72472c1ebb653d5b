package validator_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/softnix/agentic-core/internal/planner"
	"github.com/softnix/agentic-core/internal/runstate"
	"github.com/softnix/agentic-core/internal/validator"
)

func TestParseContractInfersOutputFromWriteVerb(t *testing.T) {
	c := validator.ParseContract("write the result to result.txt")
	require.Contains(t, c.RequiredOutputs, "result.txt")
}

func TestParseContractThaiOutputIntent(t *testing.T) {
	c := validator.ParseContract("เขียนผลลัพธ์ลง result.txt")
	require.Contains(t, c.RequiredOutputs, "result.txt")
}

func TestParseContractReclassifiesSourceExtension(t *testing.T) {
	c := validator.ParseContract("summarize report.pdf and save summary.txt")
	require.Contains(t, c.SourceInputs, "report.pdf")
	require.Contains(t, c.RequiredOutputs, "summary.txt")
}

func TestParseContractDeleteVerb(t *testing.T) {
	c := validator.ParseContract("please delete old.log")
	require.Contains(t, c.RequiredAbsent, "old.log")
}

func TestEvaluateAcceptsWhenOutputWrittenThisIteration(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "result.txt"), []byte("ok"), 0o644))
	v := validator.New(ws)

	plan := planner.Plan{Done: true, FinalOutput: "saved result.txt"}
	eval := v.Evaluate("write the result to result.txt", plan, nil, map[string]bool{"result.txt": true}, false, false)
	require.True(t, eval.Accepted)
}

func TestEvaluateRejectsWhenOutputPreExistingNotWrittenThisIteration(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "result.txt"), []byte("stale"), 0o644))
	v := validator.New(ws)

	plan := planner.Plan{Done: true, FinalOutput: "saved result.txt"}
	eval := v.Evaluate("write the result to result.txt", plan, nil, map[string]bool{}, false, false)
	require.False(t, eval.Accepted)
}

func TestEvaluateRejectsWhenOutputMissing(t *testing.T) {
	ws := t.TempDir()
	v := validator.New(ws)
	plan := planner.Plan{Done: true, FinalOutput: "saved result.txt"}
	eval := v.Evaluate("เขียนผลลัพธ์ลง result.txt", plan, nil, map[string]bool{}, false, false)
	require.False(t, eval.Accepted)
	require.Contains(t, eval.Reasons[0], "missing output file: result.txt")
}

func TestEvaluateRejectsOnActionFailure(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "result.txt"), []byte("ok"), 0o644))
	v := validator.New(ws)

	plan := planner.Plan{Done: true}
	results := []runstate.ActionResult{{Name: "write_workspace_file", OK: false, Error: "boom"}}
	eval := v.Evaluate("write the result to result.txt", plan, results, map[string]bool{"result.txt": true}, false, false)
	require.False(t, eval.Accepted)
}

func TestEvaluateExplicitFileExists(t *testing.T) {
	ws := t.TempDir()
	v := validator.New(ws)
	plan := planner.Plan{Done: true, Validations: []planner.Validation{{Type: planner.ValidationFileExists, Path: "missing.txt"}}}
	eval := v.Evaluate("do something", plan, nil, map[string]bool{}, false, false)
	require.False(t, eval.Accepted)
}

func TestEvaluateAutoCompletesFromInferredValidations(t *testing.T) {
	ws := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(ws, "result.txt"), []byte("ok"), 0o644))
	v := validator.New(ws)

	plan := planner.Plan{Done: false}
	eval := v.Evaluate("write the result to result.txt", plan, nil, map[string]bool{"result.txt": true}, false, false)
	require.True(t, eval.Accepted)
	require.True(t, eval.AutoComplete)
}

func TestHasCapabilityBlockSignal(t *testing.T) {
	require.True(t, validator.HasCapabilityBlockSignal("write failed: escapes workspace"))
	require.False(t, validator.HasCapabilityBlockSignal("all good"))
}
