package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const pythonStagingDir = ".agentcore_exec"

// runPythonCode handles run_python_code: writes code to a workspace
// script (auto-named under .agentcore_exec/ when no path is given), then
// invokes python_bin with the script path and args.
//
// Grounded on original_source/agent/executor.py's _run_python_code,
// including the ModuleNotFoundError auto-install-and-retry-once behavior
// in Container mode.
func (sb *Sandbox) runPythonCode(ctx context.Context, params map[string]any) (string, error) {
	code, hasCode := paramString(params, "code")
	path, hasPath := paramString(params, "path")
	pythonBin, _ := paramString(params, "python_bin")
	if pythonBin == "" {
		pythonBin = "python"
	}
	pythonBin = normalizePythonBinAlias(pythonBin, sb.cfg.SafeCommands)
	if !isAllowlisted(pythonBin, sb.cfg.SafeCommands) {
		return "", confinementError("python_bin %q is not allowlisted", pythonBin)
	}

	if !hasCode && !hasPath {
		return "", sandboxError("run_python_code: code or path is required")
	}

	scriptRel := path
	if scriptRel == "" {
		scriptRel = filepath.ToSlash(filepath.Join(pythonStagingDir, fmt.Sprintf("script_%d.py", time.Now().UnixNano())))
	}
	scriptAbs, err := sb.resolveWorkspacePath(scriptRel)
	if err != nil {
		return "", err
	}

	if hasCode {
		if err := os.MkdirAll(parentDir(scriptAbs), 0o755); err != nil {
			return "", sandboxError("run_python_code: %v", err)
		}
		if err := atomicWriteFile(scriptAbs, []byte(code)); err != nil {
			return "", sandboxError("run_python_code: %v", err)
		}
	} else {
		if _, err := os.Stat(scriptAbs); err != nil {
			return "", sandboxError("run_python_code: script %q not found", scriptRel)
		}
	}

	var args []string
	if raw, ok := params["args"]; ok {
		args = toStringSlice(raw)
	}

	output, err := sb.execPythonOnce(ctx, pythonBin, scriptRel, args)
	if err == nil {
		return output, nil
	}
	if sb.cfg.Runtime != RuntimeContainer {
		return output, err
	}
	missing := missingModuleName(output)
	if missing == "" {
		return output, err
	}
	if installErr := sb.autoInstallPackage(ctx, missing); installErr != nil {
		return output, err
	}
	return sb.execPythonOnce(ctx, pythonBin, scriptRel, args)
}

// normalizePythonBinAlias rewrites python3 -> python when only "python"
// is allowlisted.
func normalizePythonBinAlias(bin string, allow []string) string {
	if strings.ToLower(bin) == "python3" && isAllowlisted("python", allow) && !isAllowlisted("python3", allow) {
		return "python"
	}
	return bin
}

func (sb *Sandbox) execPythonOnce(ctx context.Context, pythonBin, scriptRel string, args []string) (string, error) {
	timeout := time.Duration(sb.cfg.CommandTimeoutSec) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if sb.cfg.Runtime == RuntimeContainer {
		return sb.execPythonInContainer(runCtx, pythonBin, scriptRel, args)
	}

	argv := append([]string{scriptRel}, args...)
	var out bytes.Buffer
	cmd := exec.CommandContext(runCtx, pythonBin, argv...)
	cmd.Dir = sb.cfg.Workspace
	cmd.Stdout = &out
	cmd.Stderr = &out
	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", sandboxError("run_python_code: timed out after %ds", sb.cfg.CommandTimeoutSec)
	}
	if runErr != nil {
		return out.String(), sandboxError("run_python_code: %v", runErr)
	}
	return out.String(), nil
}

// missingModuleName extracts the module name from a
// "ModuleNotFoundError: No module named 'X'" line, or "" if absent.
func missingModuleName(output string) string {
	const marker = "ModuleNotFoundError: No module named "
	idx := strings.Index(output, marker)
	if idx < 0 {
		return ""
	}
	rest := strings.TrimSpace(output[idx+len(marker):])
	rest = strings.Trim(rest, "'\"\n")
	if i := strings.IndexAny(rest, "'\"\n"); i >= 0 {
		rest = rest[:i]
	}
	return strings.TrimSpace(rest)
}
