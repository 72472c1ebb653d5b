package validator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/softnix/agentic-core/internal/planner"
	"github.com/softnix/agentic-core/internal/runstate"
)

// Validator is the ObjectiveValidator: given the final iteration's plan
// and the task, it verifies that done=true is substantiated by explicit
// and inferred validations.
type Validator struct {
	Workspace string
}

func New(workspace string) *Validator {
	return &Validator{Workspace: workspace}
}

// Evaluation is the outcome of one Evaluate call.
type Evaluation struct {
	Accepted     bool
	AutoComplete bool
	Reasons      []string
	Hints        []string
}

// Evaluate checks plan against the task's implicit contract and explicit
// validations. writtenThisIteration holds the workspace-relative paths
// written by successful write_workspace_file/write_file actions in the
// current iteration, used to enforce that
// inferred outputs were produced now, not merely pre-existing.
func (v *Validator) Evaluate(task string, plan planner.Plan, actionResults []runstate.ActionResult, writtenThisIteration map[string]bool, previousOutputFailureSignal bool, recoveryActionTaken bool) Evaluation {
	var reasons []string
	var hints []string

	for _, r := range actionResults {
		if !r.OK {
			reasons = append(reasons, fmt.Sprintf("action %q failed: %s", r.Name, r.Error))
		}
	}
	if previousOutputFailureSignal && !recoveryActionTaken {
		reasons = append(reasons, "previous iteration reported a failure signal with no recovery action taken")
	}

	for _, val := range plan.Validations {
		if err := v.checkExplicit(val); err != "" {
			reasons = append(reasons, err)
		}
	}

	contract := ParseContract(task)
	for _, out := range contract.RequiredOutputs {
		if !v.fileExists(out) {
			reasons = append(reasons, "missing output file: "+out)
			if hint := findCandidate(v.Workspace, out, contract.HintedDirectories); hint != "" {
				hints = append(hints, fmt.Sprintf("did you mean: %s?", hint))
			}
			continue
		}
		if !writtenThisIteration[out] {
			reasons = append(reasons, "output file not written by this iteration: "+out)
		}
	}
	for _, absent := range contract.RequiredAbsent {
		if v.fileExists(absent) {
			reasons = append(reasons, "file should have been removed: "+absent)
		}
	}
	for script, mods := range contract.RequiredPythonModules {
		content, err := os.ReadFile(filepath.Join(v.Workspace, script))
		if err != nil {
			continue
		}
		for _, mod := range mods {
			if !strings.Contains(string(content), "import "+mod) {
				reasons = append(reasons, fmt.Sprintf("script %s does not import required module %s", script, mod))
			}
		}
	}
	for _, marker := range contract.ExpectedTextMarkers {
		if !v.anyOutputContains(contract.RequiredOutputs, marker) {
			reasons = append(reasons, "expected text not found in output: "+marker)
		}
	}

	allInferredPass := len(reasons) == 0

	if plan.Done {
		return Evaluation{Accepted: allInferredPass, Reasons: reasons, Hints: hints}
	}

	if allInferredPass && len(contract.RequiredOutputs) > 0 {
		return Evaluation{Accepted: true, AutoComplete: true}
	}
	return Evaluation{Accepted: false, Reasons: reasons, Hints: hints}
}

func (v *Validator) checkExplicit(val planner.Validation) string {
	switch val.Type {
	case planner.ValidationFileExists:
		if !v.fileExists(val.Path) {
			return "missing output file: " + val.Path
		}
	case planner.ValidationTextInFile:
		content, err := os.ReadFile(filepath.Join(v.Workspace, val.Path))
		if err != nil || !strings.Contains(string(content), val.Contains) {
			return fmt.Sprintf("expected text %q not found in %s", val.Contains, val.Path)
		}
	case planner.ValidationJSONKeyExists:
		doc, err := v.readJSON(val.Path)
		if err != nil {
			return "could not read JSON file: " + val.Path
		}
		if _, ok := doc[val.Key]; !ok {
			return fmt.Sprintf("json key %q missing in %s", val.Key, val.Path)
		}
	case planner.ValidationJSONKeyEquals:
		doc, err := v.readJSON(val.Path)
		if err != nil {
			return "could not read JSON file: " + val.Path
		}
		got, ok := doc[val.Key]
		if !ok || fmt.Sprint(got) != fmt.Sprint(val.Value) {
			return fmt.Sprintf("json key %q does not equal expected value in %s", val.Key, val.Path)
		}
	default:
		// Unknown validation types are ignored with a warning event,
		// logged by the caller (the loop owns event logging).
	}
	return ""
}

func (v *Validator) readJSON(rel string) (map[string]any, error) {
	data, err := os.ReadFile(filepath.Join(v.Workspace, rel))
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (v *Validator) fileExists(rel string) bool {
	info, err := os.Stat(filepath.Join(v.Workspace, rel))
	return err == nil && !info.IsDir()
}

func (v *Validator) anyOutputContains(outputs []string, marker string) bool {
	for _, out := range outputs {
		data, err := os.ReadFile(filepath.Join(v.Workspace, out))
		if err == nil && strings.Contains(string(data), marker) {
			return true
		}
	}
	return false
}
