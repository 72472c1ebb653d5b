package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/softnix/agentic-core/internal/agentloop"
	"github.com/softnix/agentic-core/internal/httpapi"
	"github.com/softnix/agentic-core/internal/planner"
	"github.com/softnix/agentic-core/internal/runstate"
	"github.com/softnix/agentic-core/internal/sandbox"
	"github.com/softnix/agentic-core/internal/store"
)

type stubProvider struct{}

func (stubProvider) Generate(messages []planner.Message, model string, maxTokens int) (string, planner.Usage, error) {
	return `{"thought":"done","done":true,"final_output":"ok","actions":[]}`, planner.Usage{}, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *store.FilesystemStore) {
	t.Helper()
	runsDir := t.TempDir()
	st, err := store.New(runsDir)
	require.NoError(t, err)

	pl := planner.New(stubProvider{}, planner.Config{RetryMaxAttempts: 1})
	loop := agentloop.New(st, pl, func(s *runstate.RunState) *sandbox.Sandbox {
		return sandbox.New(sandbox.Config{RunID: s.RunID, Workspace: s.Workspace, RunDir: st.RunDir(s.RunID)})
	})

	srv := httpapi.New(httpapi.Config{Addr: ":0"}, loop, st)
	return httptest.NewServer(srv.Handler()), st
}

func TestStartRunAndGetState(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	workspace := t.TempDir()
	body, _ := json.Marshal(httpapi.StartRunRequest{Task: "do something", Workspace: workspace, MaxIters: 3})
	resp, err := http.Post(srv.URL+"/runs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&started))
	runID := started["run_id"]
	require.NotEmpty(t, runID)

	require.Eventually(t, func() bool {
		r, err := http.Get(srv.URL + "/runs/" + runID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var st runstate.RunState
		json.NewDecoder(r.Body).Decode(&st)
		return st.Status == runstate.StatusCompleted
	}, 2*time.Second, 20*time.Millisecond)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCancelUnknownRunReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/runs/does-not-exist/cancel", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
