package store

import (
	"context"
	"time"
)

// Event is one line surfaced by Tail, tagged with a monotonically
// increasing id so a disconnected client can resume from LastEventID.
//
// Grounded on the teacher's internal/server/sse.go Broadcaster, which
// fans out in-memory events with incrementing ids; adapted here to poll
// the durable events.log on disk instead, since the store (not a live
// in-process broadcaster) is the source of truth a restarted process can
// resume from.
type Event struct {
	ID   int64
	Line string
}

const defaultTailPollInterval = 250 * time.Millisecond

// Tail streams events.log lines newer than afterID (0 = from the start).
// The returned channel is closed when ctx is done, or on the first poll
// that finds the run in a terminal state, once that poll's new lines have
// been sent.
func (s *FilesystemStore) Tail(ctx context.Context, runID string, afterID int64) (<-chan Event, error) {
	out := make(chan Event)
	go func() {
		defer close(out)
		var lastID int64
		ticker := time.NewTicker(defaultTailPollInterval)
		defer ticker.Stop()

		emit := func() bool {
			lines, err := s.ReadEvents(runID)
			if err != nil {
				return true
			}
			for i, line := range lines {
				id := int64(i + 1)
				if id <= afterID || id <= lastID {
					continue
				}
				select {
				case out <- Event{ID: id, Line: line}:
					lastID = id
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st, err := s.ReadState(runID)
				if !emit() {
					return
				}
				if err == nil && st.Terminal() {
					return
				}
			}
		}
	}()
	return out, nil
}
