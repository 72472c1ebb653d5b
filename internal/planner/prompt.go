package planner

import "fmt"

const maxPreviousOutputChars = 4000

// compactPreviousOutput keeps an 80%-head / 20%-tail slice of s once it
// exceeds budget chars, with a minimum of 200 head / 120 tail chars,
// matching original_source/agent/planner.py's _compact_previous_output.
func compactPreviousOutput(s string, budget int) string {
	if budget <= 0 {
		budget = maxPreviousOutputChars
	}
	if len(s) <= budget {
		return s
	}
	head := budget * 4 / 5
	if head < 200 {
		head = 200
	}
	tail := budget - head
	if tail < 120 {
		tail = 120
	}
	if head+tail >= len(s) {
		return s
	}
	marker := fmt.Sprintf("\n\n[truncated previous output: showing first %d and last %d chars]\n\n", head, tail)
	return s[:head] + marker + s[len(s)-tail:]
}

// systemPrompt fixes the plan schema and the planner's operating rules.
// It deliberately mirrors the shape (not the literal wording) of
// original_source/agent/planner.py's SYSTEM_PROMPT: JSON-only response,
// small-safe-actions preference, write-then-run-then-inspect loop,
// done=true only once an output has been created and verified.
const systemPrompt = `You are the planning component of an autonomous coding and research agent.
Respond with a single compact JSON object and nothing else: no prose, no markdown fences.

Shape:
{
  "thought": string,
  "done": boolean,
  "final_output": string (optional, required when done=true),
  "validations": [{"type": "file_exists"|"text_in_file"|"json_key_exists"|"json_key_equals", "path": string, ...}] (optional),
  "actions": [{"name": string, "params": object}]
}

Rules:
- Prefer several small, safe actions over one large one.
- Use "path", never "file_path", for file-targeting params.
- All paths are relative to the workspace; never use absolute paths or "..".
- Any script you write must be executed in a later iteration before the task can be marked done.
- Before setting done=true, verify your output exists and is correct (list_dir / read_file), and include validations whenever the expected result is known in advance.
- Prefer running a matching skill-pack script over rewriting it ad hoc.
- When summarizing remote content, prefer web_fetch over writing a scraper with run_python_code.
- For run_python_code, default python_bin to "python" and only write python3 when "python3" is explicitly allowlisted.
- For run_safe_command, never emit shell operators like > or 2>&1; use the stdout_path / stderr_path / redirect_output params instead.
- If a command degrades into a partial success (e.g. a fetch fallback), say so in final_output rather than claiming done=true.
- If the response would be very long, split it across iterations; use mode="append" when continuing a file.
`

func buildUserPrompt(task string, iteration, maxIters int, previousOutput, skillsContext, memoryContext string, compactionBudget int) string {
	compacted := compactPreviousOutput(previousOutput, compactionBudget)
	return fmt.Sprintf(
		"Task: %s\nIteration: %d/%d\n\nPrevious output:\n%s\n\nMemory:\n%s\n\nSkills:\n%s\n",
		task, iteration, maxIters, compacted, memoryContext, skillsContext,
	)
}
