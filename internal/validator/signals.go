package validator

import "strings"

// capabilityBlockSignals are error substrings that indicate the planner
// keeps attempting something the sandbox will never allow. Repetition of
// any of these across iterations counts toward no-progress detection in
// the loop. This set is heuristic by design (spec.md Design Notes, Open
// Question 2) and may be tightened by an implementer.
var capabilityBlockSignals = []string{
	"Action not allowed",
	"escapes workspace",
	"is not allowlisted",
	"is blocked",
	"loopback host",
	"unsupported scheme",
}

// HasCapabilityBlockSignal reports whether text contains one of the
// known capability-block substrings.
func HasCapabilityBlockSignal(text string) bool {
	for _, sig := range capabilityBlockSignals {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

// HasFailureSignal reports whether a composed iteration output looks
// like it is reporting a failure an agent should recover from (used for
// the "previous iteration's output contains a failure signal" rule).
func HasFailureSignal(output string) bool {
	if HasCapabilityBlockSignal(output) {
		return true
	}
	lower := strings.ToLower(output)
	for _, s := range []string{"error:", "traceback", "exception", "failed", "planner_parse_error"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
