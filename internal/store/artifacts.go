package store

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/softnix/agentic-core/internal/agenterr"
)

// ArtifactEntry describes one file under a run's artifacts/ tree.
type ArtifactEntry struct {
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

// DefaultArtifactExcludeGlobs are skipped when snapshotting (ListArtifacts
// does not filter by them),
// grounded on the teacher's attractor artifact-policy default exclude set
// (adapted from build-tool caches to this runtime's own staging dirs).
var DefaultArtifactExcludeGlobs = []string{
	"**/.agentcore_skill_exec/**",
	"**/.agentcore_exec/**",
	"**/__pycache__/**",
}

func matchesAnyGlob(rel string, globs []string) bool {
	for _, g := range globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true
		}
	}
	return false
}

// ResolveArtifactPath resolves rel against the run's artifacts/ directory,
// rejecting anything that escapes it after normalization.
func (s *FilesystemStore) ResolveArtifactPath(runID, rel string) (string, error) {
	root := s.artifactsDir(runID)
	joined := filepath.Join(root, rel)
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}
	cleanJoined := filepath.Clean(joined)
	relToRoot, err := filepath.Rel(resolvedRoot, cleanJoined)
	if err != nil || strings.HasPrefix(relToRoot, "..") {
		return "", agenterr.Newf(agenterr.KindStore, "store.ResolveArtifactPath", "path %q escapes artifacts root", rel)
	}
	return cleanJoined, nil
}

// ListArtifacts enumerates every file under artifacts/, sorted.
func (s *FilesystemStore) ListArtifacts(runID string) ([]ArtifactEntry, error) {
	root := s.artifactsDir(runID)
	var entries []ArtifactEntry
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		entries = append(entries, ArtifactEntry{
			Path:       rel,
			Size:       info.Size(),
			ModifiedAt: info.ModTime().UTC().Format("2006-01-02T15:04:05.999999999Z07:00"),
		})
		return nil
	})
	if err != nil {
		return nil, agenterr.New(agenterr.KindStore, "store.ListArtifacts", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// SnapshotWorkspaceFile copies workspace/rel into artifacts/rel, preserving
// relative path, rejecting sources that escape the workspace root and
// targets matching DefaultArtifactExcludeGlobs.
func (s *FilesystemStore) SnapshotWorkspaceFile(runID, workspace, rel string) (string, error) {
	if matchesAnyGlob(filepath.ToSlash(rel), DefaultArtifactExcludeGlobs) {
		return "", agenterr.Newf(agenterr.KindStore, "store.SnapshotWorkspaceFile", "excluded path %q", rel)
	}

	srcAbs := rel
	if !filepath.IsAbs(srcAbs) {
		srcAbs = filepath.Join(workspace, rel)
	}
	resolvedWorkspace, err := filepath.EvalSymlinks(workspace)
	if err != nil {
		resolvedWorkspace = workspace
	}
	resolvedSrc, err := filepath.EvalSymlinks(srcAbs)
	if err != nil {
		return "", agenterr.Newf(agenterr.KindStore, "store.SnapshotWorkspaceFile", "source %q not found", rel)
	}
	relToWorkspace, err := filepath.Rel(resolvedWorkspace, resolvedSrc)
	if err != nil || strings.HasPrefix(relToWorkspace, "..") {
		return "", agenterr.Newf(agenterr.KindStore, "store.SnapshotWorkspaceFile", "path %q escapes workspace", rel)
	}

	destAbs, err := s.ResolveArtifactPath(runID, relToWorkspace)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(destAbs), 0o755); err != nil {
		return "", agenterr.New(agenterr.KindStore, "store.SnapshotWorkspaceFile", err)
	}
	if err := copyFile(resolvedSrc, destAbs); err != nil {
		return "", agenterr.New(agenterr.KindStore, "store.SnapshotWorkspaceFile", err)
	}
	return filepath.ToSlash(relToWorkspace), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
