package agentloop

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/softnix/agentic-core/internal/planner"
)

const skillStagingDir = ".agentcore_skill_exec"

// stageSkillPaths remaps any action param (or run_python_code.code
// reference) that points into skillsDir into an in-workspace staging
// area, copying the skill file lazily on first use.
//
// Grounded on original_source/agent/loop.py's skill-script remapping
// step, renamed from .softnix_skill_exec to this module's own staging
// convention.
func stageSkillPaths(skillsDir, workspace string, actions []planner.Action) []planner.Action {
	if skillsDir == "" {
		return actions
	}
	out := make([]planner.Action, len(actions))
	for i, a := range actions {
		params := make(map[string]any, len(a.Params))
		for k, v := range a.Params {
			params[k] = v
		}
		if p, ok := params["path"].(string); ok {
			params["path"] = remapOne(skillsDir, workspace, p)
		}
		if p, ok := params["file_path"].(string); ok {
			params["file_path"] = remapOne(skillsDir, workspace, p)
		}
		if code, ok := params["code"].(string); ok {
			params["code"] = rewriteEmbeddedSkillPaths(skillsDir, workspace, code)
		}
		out[i] = planner.Action{Name: a.Name, Params: params}
	}
	return out
}

func remapOne(skillsDir, workspace, p string) string {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(skillsDir, strings.TrimPrefix(p, "skillpacks/"))
	}
	resolvedSkillsDir, err := filepath.Abs(skillsDir)
	if err != nil {
		return p
	}
	resolvedAbs, err := filepath.Abs(abs)
	if err != nil || !strings.HasPrefix(resolvedAbs, resolvedSkillsDir) {
		return p
	}
	rel, err := filepath.Rel(resolvedSkillsDir, resolvedAbs)
	if err != nil {
		return p
	}
	staged := filepath.Join(skillStagingDir, rel)
	stagedAbs := filepath.Join(workspace, staged)
	if _, err := os.Stat(stagedAbs); os.IsNotExist(err) {
		_ = os.MkdirAll(filepath.Dir(stagedAbs), 0o755)
		_ = copyFile(resolvedAbs, stagedAbs)
	}
	return filepath.ToSlash(staged)
}

func rewriteEmbeddedSkillPaths(skillsDir, workspace, code string) string {
	resolvedSkillsDir, err := filepath.Abs(skillsDir)
	if err != nil || !strings.Contains(code, resolvedSkillsDir) {
		return code
	}
	return strings.ReplaceAll(code, resolvedSkillsDir, filepath.Join(workspace, skillStagingDir))
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
	_, err = io.Copy(out, in)
	return err
}
