package sandbox

import (
	"os"
	"sort"
	"strings"
)

func (sb *Sandbox) listDir(params map[string]any) (string, error) {
	path, _ := paramString(params, "path")
	if path == "" {
		path = "."
	}
	abs, err := sb.resolveWorkspacePath(path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return "", sandboxError("list_dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

func (sb *Sandbox) readFile(params map[string]any) (string, error) {
	path, ok := paramString(params, "path")
	if !ok || path == "" {
		return "", sandboxError("read_file: path is required")
	}
	abs, err := sb.resolveWorkspacePath(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return "", sandboxError("read_file: %v", err)
	}
	return string(data), nil
}

// writeWorkspaceFile handles both write_workspace_file and its
// write_file alias. mode is overwrite (default) or append; overwrite
// writes atomically via write-to-temp+rename.
func (sb *Sandbox) writeWorkspaceFile(params map[string]any) (string, error) {
	path, ok := paramString(params, "path")
	if !ok || path == "" {
		path, ok = paramString(params, "file_path")
	}
	if !ok || path == "" {
		return "", sandboxError("write_workspace_file: path is required")
	}
	content, _ := paramString(params, "content")
	mode, _ := paramString(params, "mode")
	if mode == "" {
		mode = "overwrite"
	}

	abs, err := sb.resolveWorkspacePath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(parentDir(abs), 0o755); err != nil {
		return "", sandboxError("write_workspace_file: %v", err)
	}

	switch mode {
	case "append":
		f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return "", sandboxError("write_workspace_file: %v", err)
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return "", sandboxError("write_workspace_file: %v", err)
		}
	default:
		if err := atomicWriteFile(abs, []byte(content)); err != nil {
			return "", sandboxError("write_workspace_file: %v", err)
		}
	}
	return "wrote " + sb.workspaceRelative(abs), nil
}

func parentDir(path string) string {
	i := strings.LastIndexByte(path, os.PathSeparator)
	if i < 0 {
		return "."
	}
	return path[:i]
}

func atomicWriteFile(path string, data []byte) error {
	dir := parentDir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
