package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/softnix/agentic-core/internal/runstate"
	"github.com/softnix/agentic-core/internal/store"
)

func newTestStore(t *testing.T) *store.FilesystemStore {
	t.Helper()
	dir := t.TempDir()
	s, err := store.New(filepath.Join(dir, "runs"))
	require.NoError(t, err)
	return s
}

func TestInitRunAndRoundTripState(t *testing.T) {
	s := newTestStore(t)
	st := &runstate.RunState{
		RunID:     "run1",
		Task:      "do the thing",
		Provider:  "openai",
		Model:     "gpt-4o-mini",
		Workspace: "/tmp/ws",
		SkillsDir: "/tmp/skills",
		MaxIters:  5,
		Status:    runstate.StatusRunning,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InitRun(st))

	got, err := s.ReadState("run1")
	require.NoError(t, err)
	require.Equal(t, st.RunID, got.RunID)
	require.Equal(t, st.Task, got.Task)
	require.Equal(t, st.MaxIters, got.MaxIters)
	require.Equal(t, runstate.StatusRunning, got.Status)

	err = s.InitRun(st)
	require.Error(t, err)
}

func TestWriteStateIsAtomic(t *testing.T) {
	s := newTestStore(t)
	st := &runstate.RunState{RunID: "run2", Status: runstate.StatusRunning, MaxIters: 1}
	require.NoError(t, s.InitRun(st))

	for i := 0; i < 5; i++ {
		st.Iteration = i
		require.NoError(t, s.WriteState(st))
		got, err := s.ReadState("run2")
		require.NoError(t, err)
		require.Equal(t, i, got.Iteration)
	}

	entries, err := os.ReadDir(s.RunDir("run2"))
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestAppendAndReadIterations(t *testing.T) {
	s := newTestStore(t)
	st := &runstate.RunState{RunID: "run3", Status: runstate.StatusRunning, MaxIters: 2}
	require.NoError(t, s.InitRun(st))

	rec := &runstate.IterationRecord{RunID: "run3", Iteration: 1, Output: "ok", Done: false}
	require.NoError(t, s.AppendIteration(rec))
	rec2 := &runstate.IterationRecord{RunID: "run3", Iteration: 2, Output: "done", Done: true}
	require.NoError(t, s.AppendIteration(rec2))

	recs, err := s.ReadIterations("run3")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, 1, recs[0].Iteration)
	require.True(t, recs[1].Done)
}

func TestRequestCancelIdempotent(t *testing.T) {
	s := newTestStore(t)
	st := &runstate.RunState{RunID: "run4", Status: runstate.StatusRunning, MaxIters: 1}
	require.NoError(t, s.InitRun(st))

	require.NoError(t, s.RequestCancel("run4"))
	require.NoError(t, s.RequestCancel("run4"))

	got, err := s.ReadState("run4")
	require.NoError(t, err)
	require.True(t, got.CancelRequested)
}

func TestSnapshotAndListArtifacts(t *testing.T) {
	s := newTestStore(t)
	workspace := t.TempDir()
	st := &runstate.RunState{RunID: "run5", Status: runstate.StatusRunning, MaxIters: 1, Workspace: workspace}
	require.NoError(t, s.InitRun(st))

	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "out"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "out", "report.txt"), []byte("ok"), 0o644))

	rel, err := s.SnapshotWorkspaceFile("run5", workspace, "out/report.txt")
	require.NoError(t, err)
	require.Equal(t, "out/report.txt", rel)

	entries, err := s.ListArtifacts("run5")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "out/report.txt", entries[0].Path)

	resolved, err := s.ResolveArtifactPath("run5", "out/report.txt")
	require.NoError(t, err)
	data, err := os.ReadFile(resolved)
	require.NoError(t, err)
	require.Equal(t, "ok", string(data))

	_, err = s.ResolveArtifactPath("run5", "../escape.txt")
	require.Error(t, err)
}

func TestSnapshotRejectsWorkspaceEscape(t *testing.T) {
	s := newTestStore(t)
	workspace := t.TempDir()
	outside := t.TempDir()
	st := &runstate.RunState{RunID: "run6", Status: runstate.StatusRunning, MaxIters: 1, Workspace: workspace}
	require.NoError(t, s.InitRun(st))

	outsideFile := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(outsideFile, []byte("x"), 0o644))

	_, err := s.SnapshotWorkspaceFile("run6", workspace, outsideFile)
	require.Error(t, err)
}

func TestLogAndReadEvents(t *testing.T) {
	s := newTestStore(t)
	st := &runstate.RunState{RunID: "run7", Status: runstate.StatusRunning, MaxIters: 1}
	require.NoError(t, s.InitRun(st))
	require.NoError(t, s.LogEvent("run7", "stopped: max_iters"))

	events, err := s.ReadEvents("run7")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Contains(t, events[1], "stopped: max_iters")
}
