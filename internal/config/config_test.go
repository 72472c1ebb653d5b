package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/softnix/agentic-core/internal/config"
)

func TestDefaultHasExpectedBaseline(t *testing.T) {
	cfg := config.Default()
	require.Equal(t, "openai", cfg.Provider)
	require.Equal(t, 10, cfg.MaxIters)
	require.Contains(t, cfg.SafeCommands, "rm")
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("AGENTCORE_PROVIDER", "claude")
	t.Setenv("AGENTCORE_MAX_ITERS", "25")
	t.Setenv("AGENTCORE_SAFE_COMMANDS", "ls,cat")

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "claude", cfg.Provider)
	require.Equal(t, 25, cfg.MaxIters)
	require.Contains(t, cfg.SafeCommands, "rm") // always appended if missing
}

func TestLoadAppliesYAMLOverlayThenEnv(t *testing.T) {
	dir := t.TempDir()
	overlay := filepath.Join(dir, "agentcore.yaml")
	require.NoError(t, os.WriteFile(overlay, []byte("model: gpt-4o\nmax_iters: 7\n"), 0o644))

	t.Setenv("AGENTCORE_MAX_ITERS", "9")

	cfg, err := config.Load(overlay)
	require.NoError(t, err)
	require.Equal(t, "gpt-4o", cfg.Model)
	require.Equal(t, 9, cfg.MaxIters) // env wins over yaml overlay
}

func TestContainerImageFallbacks(t *testing.T) {
	t.Setenv("AGENTCORE_EXEC_CONTAINER_IMAGE", "custom:latest")
	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "custom:latest", cfg.ExecContainerImageWeb)
	require.Equal(t, "custom:latest", cfg.ExecContainerImageQA)
}
