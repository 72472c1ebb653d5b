package validator

import (
	"os"
	"path/filepath"
	"strings"
)

// findCandidate performs a fuzzy same-basename search across the
// workspace (excluding the run's own staging directories) and returns
// the best-scoring match, or "" if none exists. This is a "did you mean"
// diagnostic only -- it never itself satisfies a validation.
//
// Grounded on original_source/agent/task_contract.py's
// PathDiscoveryPolicy.find_candidates.
func findCandidate(workspace, missingPath string, hintedDirs []string) string {
	base := strings.ToLower(filepath.Base(missingPath))
	ext := strings.ToLower(filepath.Ext(missingPath))

	type scored struct {
		path  string
		score int
	}
	var candidates []scored

	_ = filepath.Walk(workspace, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if strings.HasPrefix(info.Name(), ".agentcore") || info.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.ToLower(info.Name()) != base {
			return nil
		}
		rel, relErr := filepath.Rel(workspace, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		score := 0
		if strings.HasSuffix(strings.ToLower(rel), ext) && ext != "" {
			score += 20
		}
		for _, hd := range hintedDirs {
			if strings.HasPrefix(rel, hd+"/") {
				score += 60
				break
			}
			if strings.Contains(rel, hd) {
				score += 30
			}
		}
		depth := strings.Count(rel, "/")
		if depth < 10 {
			score += 10 - depth
		}
		candidates = append(candidates, scored{path: rel, score: score})
		return nil
	})

	if len(candidates) == 0 {
		return ""
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.score > best.score {
			best = c
		}
	}
	return best.path
}
