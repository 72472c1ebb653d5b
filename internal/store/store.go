// Package store implements the durable, crash-safe filesystem RunStore:
// per-run directories holding state.json, iterations.jsonl, events.log and
// an artifacts/ tree, plus a poll-based tail for streaming observability.
//
// Grounded on original_source's storage/filesystem_store.py for operation
// shape, adapted to satisfy the atomic-write requirement spec.md imposes
// (the original does a plain json.dump; this store writes state.json via
// write-to-temp-then-rename so no reader ever observes a torn document).
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/softnix/agentic-core/internal/agenterr"
	"github.com/softnix/agentic-core/internal/runstate"
)

// FilesystemStore is the durable RunStore. All mutating operations on a
// single run are safe under concurrent single-writer/multi-reader access;
// the mutex here only protects against this process's own goroutines
// (e.g. a reader racing request_cancel), not against other processes.
type FilesystemStore struct {
	runsDir string
	mu      sync.Mutex
}

// New constructs a store rooted at runsDir, creating it if necessary.
func New(runsDir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return nil, agenterr.New(agenterr.KindStore, "store.New", err)
	}
	return &FilesystemStore{runsDir: runsDir}, nil
}

func (s *FilesystemStore) RunDir(runID string) string {
	return filepath.Join(s.runsDir, runID)
}

func (s *FilesystemStore) statePath(runID string) string     { return filepath.Join(s.RunDir(runID), "state.json") }
func (s *FilesystemStore) iterationsPath(runID string) string {
	return filepath.Join(s.RunDir(runID), "iterations.jsonl")
}
func (s *FilesystemStore) eventsPath(runID string) string  { return filepath.Join(s.RunDir(runID), "events.log") }
func (s *FilesystemStore) artifactsDir(runID string) string { return filepath.Join(s.RunDir(runID), "artifacts") }

// ListRunIDs returns the ids of every run directory containing a
// state.json, sorted lexically (ULIDs sort chronologically).
func (s *FilesystemStore) ListRunIDs() ([]string, error) {
	entries, err := os.ReadDir(s.runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, agenterr.New(agenterr.KindStore, "store.ListRunIDs", err)
	}
	var ids []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(s.runsDir, e.Name(), "state.json")); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// InitRun creates the run directory tree, writes the initial state and
// appends an "initialized" event. Fails if run_id already has a directory
// with a state.json.
func (s *FilesystemStore) InitRun(state *runstate.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.RunDir(state.RunID)
	if _, err := os.Stat(filepath.Join(dir, "state.json")); err == nil {
		return agenterr.Newf(agenterr.KindStore, "store.InitRun", "run %q already exists", state.RunID)
	}
	if err := os.MkdirAll(s.artifactsDir(state.RunID), 0o755); err != nil {
		return agenterr.New(agenterr.KindStore, "store.InitRun", err)
	}
	if err := s.writeStateLocked(state); err != nil {
		return err
	}
	return s.logEventLocked(state.RunID, fmt.Sprintf("run initialized task=%q", state.Task))
}

// ReadState reads the full state.json document.
func (s *FilesystemStore) ReadState(runID string) (*runstate.RunState, error) {
	data, err := os.ReadFile(s.statePath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, agenterr.Newf(agenterr.KindStore, "store.ReadState", "run %q not found", runID)
		}
		return nil, agenterr.New(agenterr.KindStore, "store.ReadState", err)
	}
	var st runstate.RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, agenterr.New(agenterr.KindStore, "store.ReadState", err)
	}
	return &st, nil
}

// WriteState atomically overwrites state.json via write-to-temp + rename.
func (s *FilesystemStore) WriteState(state *runstate.RunState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeStateLocked(state)
}

func (s *FilesystemStore) writeStateLocked(state *runstate.RunState) error {
	dir := s.RunDir(state.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return agenterr.New(agenterr.KindStore, "store.writeState", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return agenterr.New(agenterr.KindStore, "store.writeState", err)
	}
	return atomicWriteFile(s.statePath(state.RunID), data)
}

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return agenterr.New(agenterr.KindStore, "atomicWriteFile", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return agenterr.New(agenterr.KindStore, "atomicWriteFile", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return agenterr.New(agenterr.KindStore, "atomicWriteFile", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return agenterr.New(agenterr.KindStore, "atomicWriteFile", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return agenterr.New(agenterr.KindStore, "atomicWriteFile", err)
	}
	return nil
}

// AppendIteration appends one line to iterations.jsonl.
func (s *FilesystemStore) AppendIteration(record *runstate.IterationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return agenterr.New(agenterr.KindStore, "store.AppendIteration", err)
	}
	return appendLine(s.iterationsPath(record.RunID), data)
}

func appendLine(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return agenterr.New(agenterr.KindStore, "appendLine", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return agenterr.New(agenterr.KindStore, "appendLine", err)
	}
	return nil
}

// ReadIterations replays every IterationRecord in order.
func (s *FilesystemStore) ReadIterations(runID string) ([]runstate.IterationRecord, error) {
	data, err := os.ReadFile(s.iterationsPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, agenterr.New(agenterr.KindStore, "store.ReadIterations", err)
	}
	var out []runstate.IterationRecord
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec runstate.IterationRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, agenterr.New(agenterr.KindStore, "store.ReadIterations", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// LogEvent appends one "<iso8601> <message>" line to events.log.
func (s *FilesystemStore) LogEvent(runID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logEventLocked(runID, message)
}

func (s *FilesystemStore) logEventLocked(runID, message string) error {
	line := fmt.Sprintf("%s %s", time.Now().UTC().Format(time.RFC3339Nano), message)
	return appendLine(s.eventsPath(runID), []byte(line))
}

// ReadEvents returns every logged event line for runID, in order.
func (s *FilesystemStore) ReadEvents(runID string) ([]string, error) {
	data, err := os.ReadFile(s.eventsPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, agenterr.New(agenterr.KindStore, "store.ReadEvents", err)
	}
	var out []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// RequestCancel idempotently sets cancel_requested=true and bumps
// updated_at. It does not wait for the run to observe the flag.
func (s *FilesystemStore) RequestCancel(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.statePath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return agenterr.Newf(agenterr.KindStore, "store.RequestCancel", "run %q not found", runID)
		}
		return agenterr.New(agenterr.KindStore, "store.RequestCancel", err)
	}
	var st runstate.RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return agenterr.New(agenterr.KindStore, "store.RequestCancel", err)
	}
	st.CancelRequested = true
	st.UpdatedAt = time.Now().UTC()
	if err := s.writeStateLocked(&st); err != nil {
		return err
	}
	return s.logEventLocked(runID, "cancel requested")
}
