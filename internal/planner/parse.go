package planner

import (
	"encoding/json"
	"strings"
)

const sentinelParseErrorPrefix = "planner_parse_error: "

// stripCodeFence removes a leading/trailing ``` or ```json fence, if
// present, matching _strip_code_fence in original_source/agent/planner.py.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		if firstLine == "json" || firstLine == "" {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// outermostBraces returns the substring from the first '{' to the last
// '}', inclusive, or "" if no braces are present.
func outermostBraces(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return ""
	}
	return s[start : end+1]
}

// rawPlan mirrors Plan's JSON shape for unmarshaling before defaulting.
type rawPlan struct {
	Thought     string       `json:"thought"`
	Done        bool         `json:"done"`
	FinalOutput string       `json:"final_output"`
	Validations []Validation `json:"validations"`
	Actions     []Action     `json:"actions"`
}

// parsePlanJSON implements the full recovery chain: strict parse of the
// fence-stripped content, then a fallback parse bounded by the outermost
// {...}, else the synthetic sentinel plan.
func parsePlanJSON(content string) Plan {
	stripped := stripCodeFence(content)

	if p, ok := tryParse(stripped); ok {
		return p
	}
	if braces := outermostBraces(stripped); braces != "" {
		if p, ok := tryParse(braces); ok {
			return p
		}
	}
	return Plan{
		Thought:     "fallback parse: invalid JSON from model",
		Done:        false,
		FinalOutput: sentinelParseErrorPrefix + "model returned invalid or truncated JSON",
		Actions:     nil,
		ParseError:  sentinelParseErrorPrefix + "model returned invalid or truncated JSON",
	}
}

func tryParse(s string) (Plan, bool) {
	var rp rawPlan
	if err := json.Unmarshal([]byte(s), &rp); err != nil {
		return Plan{}, false
	}
	return Plan{
		Thought:     rp.Thought,
		Done:        rp.Done,
		FinalOutput: rp.FinalOutput,
		Validations: rp.Validations,
		Actions:     rp.Actions,
	}, true
}
