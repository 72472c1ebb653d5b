package sandbox

import (
	"path/filepath"
	"strings"
)

// resolveWorkspacePath resolves rel (absolute or workspace-relative)
// against the sandbox workspace and confirms the result is a descendant
// of the workspace after symlink resolution. Lexical prefix checks are
// insufficient when symlinks exist inside the workspace, so every
// ancestor directory that exists is resolved; the final (possibly
// not-yet-existing) leaf is joined back on.
func (sb *Sandbox) resolveWorkspacePath(rel string) (string, error) {
	joined := rel
	if !filepath.IsAbs(joined) {
		joined = filepath.Join(sb.cfg.Workspace, rel)
	}
	joined = filepath.Clean(joined)

	resolvedWorkspace, err := filepath.EvalSymlinks(sb.cfg.Workspace)
	if err != nil {
		resolvedWorkspace = filepath.Clean(sb.cfg.Workspace)
	}

	resolvedLeaf := resolveExistingPrefix(joined)

	relToWorkspace, err := filepath.Rel(resolvedWorkspace, resolvedLeaf)
	if err != nil || relToWorkspace == ".." || strings.HasPrefix(relToWorkspace, ".."+string(filepath.Separator)) {
		return "", confinementError("path %q escapes workspace", rel)
	}
	return filepath.Join(resolvedWorkspace, relToWorkspace), nil
}

// resolveExistingPrefix walks up from path until it finds an existing
// ancestor, resolves that ancestor's symlinks, then rejoins the
// non-existent suffix. This lets confinement checks work for paths about
// to be created (e.g. a write target) as well as existing ones.
func resolveExistingPrefix(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	dir := filepath.Dir(path)
	if dir == path {
		return path
	}
	resolvedDir := resolveExistingPrefix(dir)
	return filepath.Join(resolvedDir, filepath.Base(path))
}

// workspaceRelative renders an absolute, already-confined path relative
// to the workspace, using forward slashes.
func (sb *Sandbox) workspaceRelative(abs string) string {
	resolvedWorkspace, err := filepath.EvalSymlinks(sb.cfg.Workspace)
	if err != nil {
		resolvedWorkspace = filepath.Clean(sb.cfg.Workspace)
	}
	rel, err := filepath.Rel(resolvedWorkspace, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}

func isAllowlisted(base string, allow []string) bool {
	base = strings.ToLower(strings.TrimSpace(base))
	for _, a := range allow {
		if strings.ToLower(strings.TrimSpace(a)) == base {
			return true
		}
	}
	return false
}

func isBlockedToken(token string) bool {
	_, blocked := blockedTokens[strings.ToLower(strings.TrimSpace(token))]
	return blocked
}
