package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// hotReloadableFields is the subset of the settings record that is safe to
// change while a run is in progress: sandbox limits and thresholds, not
// provider identity or workspace roots.
var hotReloadableFields = []string{
	"exec_timeout_sec", "max_action_output_chars", "no_progress_repeat_threshold",
	"web_fetch_tls_verify", "exec_container_cpus", "exec_container_memory",
	"exec_container_pids_limit",
}

// Watcher reloads the YAML overlay on change and applies only the
// hot-reloadable subset onto the live Config, leaving identity fields
// (provider, workspace, runs_dir) untouched once a process has started.
type Watcher struct {
	path    string
	live    *Config
	fsw     *fsnotify.Watcher
	logger  *slog.Logger
	applyFn func(dst, reloaded *Config)
}

// NewWatcher watches overlayPath for changes and hot-applies its
// reloadable fields onto live as they occur. Call Close when done.
func NewWatcher(overlayPath string, live *Config, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(overlayPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{path: overlayPath, live: live, fsw: fsw, logger: logger, applyFn: applyHotReloadable}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !(ev.Op&(fsnotify.Write|fsnotify.Create) != 0) {
				continue
			}
			reloaded := Default()
			if err := applyYAMLOverlay(reloaded, w.path); err != nil {
				w.logger.Warn("config: overlay reload failed", "path", w.path, "error", err)
				continue
			}
			w.applyFn(w.live, reloaded)
			w.logger.Info("config: reloadable fields applied", "path", w.path)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config: watch error", "error", err)
		}
	}
}

// Close stops watching and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func applyHotReloadable(dst, reloaded *Config) {
	dst.ExecTimeoutSec = reloaded.ExecTimeoutSec
	dst.MaxActionOutputChars = reloaded.MaxActionOutputChars
	dst.NoProgressRepeatThreshold = reloaded.NoProgressRepeatThreshold
	dst.WebFetchTLSVerify = reloaded.WebFetchTLSVerify
	dst.ExecContainerCPUs = reloaded.ExecContainerCPUs
	dst.ExecContainerMemory = reloaded.ExecContainerMemory
	dst.ExecContainerPIDsLimit = reloaded.ExecContainerPIDsLimit
}
