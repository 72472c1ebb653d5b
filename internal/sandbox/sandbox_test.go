package sandbox_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/softnix/agentic-core/internal/sandbox"
)

func newTestSandbox(t *testing.T) (*sandbox.Sandbox, string) {
	t.Helper()
	ws := t.TempDir()
	sb := sandbox.New(sandbox.Config{
		Workspace:         ws,
		SafeCommands:      []string{"ls", "pwd", "cat", "echo", "python", "rm"},
		CommandTimeoutSec: 5,
		MaxOutputChars:    100,
	})
	return sb, ws
}

func TestWriteAndReadRoundTrip(t *testing.T) {
	sb, _ := newTestSandbox(t)
	ctx := context.Background()

	res := sb.Execute(ctx, sandbox.Action{Name: "write_workspace_file", Params: map[string]any{
		"path": "out/report.txt", "content": "ok",
	}})
	require.True(t, res.OK, res.Error)

	res = sb.Execute(ctx, sandbox.Action{Name: "read_file", Params: map[string]any{"path": "out/report.txt"}})
	require.True(t, res.OK, res.Error)
	require.Equal(t, "ok", res.Output)
}

func TestWriteAliasAndAppendMode(t *testing.T) {
	sb, ws := newTestSandbox(t)
	ctx := context.Background()

	res := sb.Execute(ctx, sandbox.Action{Name: "write_file", Params: map[string]any{
		"path": "log.txt", "content": "a\n",
	}})
	require.True(t, res.OK, res.Error)
	res = sb.Execute(ctx, sandbox.Action{Name: "write_file", Params: map[string]any{
		"path": "log.txt", "content": "b\n", "mode": "append",
	}})
	require.True(t, res.OK, res.Error)

	data, err := os.ReadFile(filepath.Join(ws, "log.txt"))
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", string(data))
}

func TestPathEscapeDenied(t *testing.T) {
	sb, ws := newTestSandbox(t)
	ctx := context.Background()

	res := sb.Execute(ctx, sandbox.Action{Name: "write_workspace_file", Params: map[string]any{
		"path": "../escape.txt", "content": "x",
	}})
	require.False(t, res.OK)
	require.Contains(t, res.Error, "escapes workspace")

	_, statErr := os.Stat(filepath.Join(filepath.Dir(ws), "escape.txt"))
	require.True(t, os.IsNotExist(statErr))
}

func TestUnknownActionRejected(t *testing.T) {
	sb, _ := newTestSandbox(t)
	res := sb.Execute(context.Background(), sandbox.Action{Name: "delete_universe"})
	require.False(t, res.OK)
	require.Equal(t, "Action not allowed", res.Error)
}

func TestBlockedTokenRejectedEvenIfAllowlisted(t *testing.T) {
	sb := sandbox.New(sandbox.Config{
		Workspace:         t.TempDir(),
		SafeCommands:      []string{"mv", "curl"},
		CommandTimeoutSec: 5,
		MaxOutputChars:    100,
	})
	res := sb.Execute(context.Background(), sandbox.Action{Name: "run_safe_command", Params: map[string]any{
		"command": "mv a b",
	}})
	require.False(t, res.OK)
	require.Contains(t, res.Error, "blocked")
}

func TestRmRequiresTarget(t *testing.T) {
	sb, _ := newTestSandbox(t)
	res := sb.Execute(context.Background(), sandbox.Action{Name: "run_safe_command", Params: map[string]any{
		"command": "rm -rf",
	}})
	require.False(t, res.OK)
	require.Contains(t, res.Error, "target")
}

func TestRunSafeCommandEchoRedirectsToFile(t *testing.T) {
	sb, ws := newTestSandbox(t)
	res := sb.Execute(context.Background(), sandbox.Action{Name: "run_safe_command", Params: map[string]any{
		"command":     "echo hello",
		"stdout_path": "out.txt",
	}})
	require.True(t, res.OK, res.Error)

	data, err := os.ReadFile(filepath.Join(ws, "out.txt"))
	require.NoError(t, err)
	require.Contains(t, string(data), "hello")
}

func TestWebFetchRejectsLoopback(t *testing.T) {
	sb, _ := newTestSandbox(t)
	res := sb.Execute(context.Background(), sandbox.Action{Name: "web_fetch", Params: map[string]any{
		"url": "http://localhost:9999/",
	}})
	require.False(t, res.OK)
	require.Contains(t, res.Error, "loopback")
}

func TestWebFetchRejectsBadScheme(t *testing.T) {
	sb, _ := newTestSandbox(t)
	res := sb.Execute(context.Background(), sandbox.Action{Name: "web_fetch", Params: map[string]any{
		"url": "ftp://example.com/",
	}})
	require.False(t, res.OK)
	require.Contains(t, res.Error, "scheme")
}

func TestOutputTruncationMarker(t *testing.T) {
	sb := sandbox.New(sandbox.Config{
		Workspace:         t.TempDir(),
		SafeCommands:      []string{"python"},
		CommandTimeoutSec: 5,
		MaxOutputChars:    10,
	})
	res := sb.Execute(context.Background(), sandbox.Action{Name: "write_workspace_file", Params: map[string]any{
		"path": "x.txt", "content": "hello world, longer than the cap",
	}})
	require.True(t, res.OK)

	res = sb.Execute(context.Background(), sandbox.Action{Name: "read_file", Params: map[string]any{"path": "x.txt"}})
	require.True(t, res.OK)
	require.Equal(t, "hello worl\n\n[truncated to 10 chars]", res.Output)
}
