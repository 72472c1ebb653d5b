package sandbox

import "fmt"

// truncate bounds output to the sandbox's output cap, appending an
// explicit trailing marker when truncation occurred, matching the
// "ends with an explicit truncation marker when originally longer"
// invariant.
//
// Grounded on the teacher's internal/agent/tool_registry.go
// truncateChars, simplified to a single head-only strategy (the
// original_source executor.py appends a single "[truncated to N chars]"
// marker rather than the teacher's head+tail split).
func (sb *Sandbox) truncate(output string) string {
	max := sb.cfg.MaxOutputChars
	if max <= 0 || len(output) <= max {
		return output
	}
	head := output[:max]
	return head + fmt.Sprintf("\n\n[truncated to %d chars]", max)
}
