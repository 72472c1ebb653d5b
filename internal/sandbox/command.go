package sandbox

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"
)

// runSafeCommand handles run_safe_command and its run_shell_command
// alias. command is split into tokens (no shell), args (if present) are
// appended, and the whole thing runs as a direct argv vector.
//
// Grounded on original_source/agent/executor.py's _run_safe_command: same
// allowlist/blocklist order, same rm-target hydration, same declarative
// stdout_path/stderr_path/redirect_output handling instead of shell
// operators.
func (sb *Sandbox) runSafeCommand(ctx context.Context, params map[string]any) (string, error) {
	commandStr, ok := paramString(params, "command")
	if !ok || strings.TrimSpace(commandStr) == "" {
		return "", sandboxError("run_safe_command: command is required")
	}
	tokens := strings.Fields(commandStr)
	if extra, ok := params["args"]; ok {
		for _, a := range toStringSlice(extra) {
			tokens = append(tokens, a)
		}
	}
	if len(tokens) == 0 {
		return "", sandboxError("run_safe_command: empty command")
	}

	base := normalizeCommandAlias(tokens[0], sb.cfg.SafeCommands)
	tokens[0] = base

	for _, tok := range tokens {
		if isBlockedToken(tok) {
			return "", confinementError("command %q is blocked", tok)
		}
	}
	if !isAllowlisted(base, sb.cfg.SafeCommands) {
		return "", confinementError("command %q is not allowlisted", base)
	}

	if base == "rm" {
		targets := rmTargets(tokens)
		if len(targets) == 0 {
			targets = hydrateRMTargets(params)
		}
		if len(targets) == 0 {
			return "", confinementError("rm requires at least one target path")
		}
		for _, t := range targets {
			if _, err := sb.resolveWorkspacePath(t); err != nil {
				return "", err
			}
		}
	}

	stdoutPath, hasStdoutPath := paramString(params, "stdout_path")
	stderrPath, hasStderrPath := paramString(params, "stderr_path")
	redirectOutput, hasRedirect := paramString(params, "redirect_output")
	append_ := paramBool(params, "append", false)

	timeout := time.Duration(sb.cfg.CommandTimeoutSec) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, tokens[0], tokens[1:]...)
	cmd.Dir = sb.cfg.Workspace
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", sandboxError("run_safe_command: timed out after %ds", sb.cfg.CommandTimeoutSec)
	}

	combined := stdout.String()
	if stderr.Len() > 0 {
		if combined != "" {
			combined += "\n"
		}
		combined += stderr.String()
	}

	if hasRedirect && redirectOutput != "" {
		if err := sb.writeRedirectTarget(redirectOutput, combined, append_); err != nil {
			return "", err
		}
		combined += "\nredirected output: " + redirectOutput
	} else {
		if hasStdoutPath && stdoutPath != "" {
			if err := sb.writeRedirectTarget(stdoutPath, stdout.String(), append_); err != nil {
				return "", err
			}
			combined += "\nredirected output: " + stdoutPath
		}
		if hasStderrPath && stderrPath != "" {
			if err := sb.writeRedirectTarget(stderrPath, stderr.String(), append_); err != nil {
				return "", err
			}
			combined += "\nredirected output: " + stderrPath
		}
	}

	if runErr != nil {
		return combined, sandboxError("run_safe_command: %v", runErr)
	}
	return combined, nil
}

func (sb *Sandbox) writeRedirectTarget(rel, content string, append_ bool) error {
	abs, err := sb.resolveWorkspacePath(rel)
	if err != nil {
		return err
	}
	mode := map[string]any{"path": rel, "content": content, "mode": "overwrite"}
	if append_ {
		mode["mode"] = "append"
	}
	_ = abs
	_, werr := sb.writeWorkspaceFile(mode)
	return werr
}

// normalizeCommandAlias rewrites python3 -> python when only "python" is
// allowlisted, matching _normalize_python_command_alias.
func normalizeCommandAlias(base string, allow []string) string {
	if strings.ToLower(base) == "python3" && isAllowlisted("python", allow) && !isAllowlisted("python3", allow) {
		return "python"
	}
	return base
}

// rmTargets extracts non-flag tokens (after the leading "rm") as targets.
func rmTargets(tokens []string) []string {
	var targets []string
	for _, t := range tokens[1:] {
		if strings.HasPrefix(t, "-") {
			continue
		}
		targets = append(targets, t)
	}
	return targets
}

// hydrateRMTargets falls back to params.path / params.paths when the
// command string itself carried no concrete target.
func hydrateRMTargets(params map[string]any) []string {
	var out []string
	if p, ok := paramString(params, "path"); ok && p != "" {
		out = append(out, p)
	}
	if raw, ok := params["paths"]; ok {
		out = append(out, toStringSlice(raw)...)
	}
	return out
}

func toStringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
