package agentloop

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/softnix/agentic-core/internal/planner"
)

// actionSignature fingerprints one iteration's action list (name +
// sorted param keys/values) so repeated-signature detection is order-
// and formatting-insensitive to the raw JSON. Grounded on the teacher's
// use of zeebo/blake3 for content-addressing (internal/cxdb sink),
// reused here for a fixed-width, cheap-to-compare digest instead of
// comparing raw JSON strings.
func actionSignature(actions []planner.Action) string {
	var sb strings.Builder
	for _, a := range actions {
		sb.WriteString(a.Name)
		sb.WriteByte('|')
		keys := make([]string, 0, len(a.Params))
		for k := range a.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(toComparable(a.Params[k]))
			sb.WriteByte(';')
		}
		sb.WriteByte('\n')
	}
	sum := blake3.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

func toComparable(v any) string {
	switch vv := v.(type) {
	case string:
		return vv
	case nil:
		return ""
	default:
		return fmt.Sprint(vv)
	}
}

// noProgressTracker observes a rolling window of per-iteration signals
// and reports whether the loop should stop with NoProgress.
type noProgressTracker struct {
	threshold int

	lastSignatures   []string
	capabilityStreak int
	parserErrStreak  int
}

func newNoProgressTracker(threshold int) *noProgressTracker {
	if threshold <= 0 {
		threshold = 3
	}
	return &noProgressTracker{threshold: threshold}
}

// Observe records one iteration's outcome and returns true if no-progress
// should now be declared.
func (t *noProgressTracker) Observe(signature string, capabilityBlocked bool, parserError bool) bool {
	t.lastSignatures = append(t.lastSignatures, signature)
	if len(t.lastSignatures) > t.threshold {
		t.lastSignatures = t.lastSignatures[len(t.lastSignatures)-t.threshold:]
	}
	if capabilityBlocked {
		t.capabilityStreak++
	} else {
		t.capabilityStreak = 0
	}
	if parserError {
		t.parserErrStreak++
	} else {
		t.parserErrStreak = 0
	}

	if t.capabilityStreak >= t.threshold {
		return true
	}
	if t.parserErrStreak >= t.threshold {
		return true
	}
	if len(t.lastSignatures) == t.threshold {
		first := t.lastSignatures[0]
		for _, s := range t.lastSignatures[1:] {
			if s != first {
				return false
			}
		}
		return true
	}
	return false
}
