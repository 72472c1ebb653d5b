package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Container mode shells out to the docker CLI directly (os/exec, not a
// Docker SDK client), matching both the original Python's
// subprocess.run(["docker", "run", ...]) approach and the idiom shown by
// this pack's apex-build-platform container sandbox reference file.

var containerNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

func buildContainerName(runID string) string {
	sanitized := containerNameSanitizer.ReplaceAllString(runID, "")
	if sanitized == "" {
		sanitized = "runtime"
	}
	return "agentcore-run-" + sanitized
}

func (sb *Sandbox) envFlags() []string {
	var flags []string
	for _, name := range sb.cfg.EnvPassthroughNames {
		if os.Getenv(name) != "" {
			flags = append(flags, "-e", name)
		}
	}
	return flags
}

func (sb *Sandbox) resourceFlags() []string {
	flags := []string{
		"--network", orDefault(sb.cfg.ContainerNetwork, "none"),
		"--cpus", fmt.Sprintf("%.2f", orDefaultFloat(sb.cfg.ContainerCPUs, 1.0)),
		"--memory", orDefault(sb.cfg.ContainerMemory, "512m"),
		"--pids-limit", strconv.Itoa(orDefaultInt(sb.cfg.ContainerPIDsLimit, 256)),
	}
	return flags
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
func orDefaultFloat(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}
func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// mapWorkspacePathForContainer rewrites a host-absolute path within the
// workspace to /workspace/<rel>; anything else passes through unchanged.
func (sb *Sandbox) mapWorkspacePathForContainer(hostPath string) string {
	rel := sb.workspaceRelative(hostPath)
	if strings.HasPrefix(rel, "..") {
		return hostPath
	}
	return "/workspace/" + rel
}

func (sb *Sandbox) containerImage() string {
	if sb.cfg.ContainerImage != "" {
		return sb.cfg.ContainerImage
	}
	return "python:3.11-slim"
}

// Runtime reports which runtime mode this sandbox was built with, for
// callers that only need to log/branch on host-vs-container without
// reaching into Config.
func (sb *Sandbox) Runtime() RuntimeMode {
	return sb.cfg.Runtime
}

// RuntimeProfile reports the configured image profile and the image that
// is actually used. Matches original_source/agent/executor.py, which
// likewise only ever consults the single exec_container_image setting
// regardless of profile; the per-profile fields
// (ContainerImage{Base,Web,Data,Scraping,ML,QA}) are accepted but never
// selected from, and profile "auto" does not inspect the action.
func (sb *Sandbox) RuntimeProfile() (profile, image string) {
	profile = sb.cfg.ContainerImageProfile
	if profile == "" {
		profile = "auto"
	}
	return profile, sb.containerImage()
}

func (sb *Sandbox) execPythonInContainer(ctx context.Context, pythonBin, scriptRel string, args []string) (string, error) {
	containerScriptPath := "/workspace/" + strings.TrimPrefix(filepath.ToSlash(scriptRel), "/")

	switch sb.cfg.ContainerLifecycle {
	case LifecyclePerRun:
		if err := sb.ensureRunContainerStarted(ctx); err != nil {
			return "", sandboxError("container bootstrap failed: %v", err)
		}
		argv := append([]string{"exec", sb.containerName, pythonBin, containerScriptPath}, args...)
		return sb.runDocker(ctx, argv)
	default: // per_action
		argv := []string{"run", "--rm"}
		argv = append(argv, sb.resourceFlags()...)
		argv = append(argv, sb.envFlags()...)
		argv = append(argv, "-v", sb.cfg.Workspace+":/workspace", "-w", "/workspace")
		argv = append(argv, sb.containerImage(), pythonBin, containerScriptPath)
		argv = append(argv, args...)
		return sb.runDocker(ctx, argv)
	}
}

func (sb *Sandbox) runDocker(ctx context.Context, argv []string) (string, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "docker", argv...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	if ctx.Err() != nil {
		return "", sandboxError("docker: timed out")
	}
	if err != nil {
		return out.String(), sandboxError("docker: %v", err)
	}
	return out.String(), nil
}

// ensureRunContainerStarted bootstraps a long-lived, detached container
// named agentcore-run-<sanitized-run-id> on first use. Idempotent.
func (sb *Sandbox) ensureRunContainerStarted(ctx context.Context) error {
	if sb.containerStarted {
		return nil
	}
	name := buildContainerName(sb.cfg.RunID)
	sb.containerName = name

	argv := []string{"run", "-d", "--rm", "--name", name}
	argv = append(argv, sb.resourceFlags()...)
	argv = append(argv, sb.envFlags()...)
	argv = append(argv, "-v", sb.cfg.Workspace+":/workspace", "-w", "/workspace")
	argv = append(argv, sb.containerImage(), "sh", "-lc", "while true; do sleep 3600; done")

	if _, err := sb.runDocker(ctx, argv); err != nil {
		return err
	}
	sb.containerStarted = true
	return nil
}

// Shutdown idempotently removes the per-run long-lived container, if any.
func (sb *Sandbox) Shutdown(ctx context.Context) error {
	if !sb.containerStarted || sb.containerName == "" {
		return nil
	}
	_, err := sb.runDocker(ctx, []string{"rm", "-f", sb.containerName})
	sb.containerStarted = false
	return err
}

// autoInstallPackage runs `pip install <pkg>` inside the per-run context
// and records it in runtime_manifest.json / requirements.lock.
func (sb *Sandbox) autoInstallPackage(ctx context.Context, pkg string) error {
	var argv []string
	switch sb.cfg.ContainerLifecycle {
	case LifecyclePerRun:
		if err := sb.ensureRunContainerStarted(ctx); err != nil {
			return err
		}
		argv = []string{"exec", sb.containerName, "pip", "install", pkg}
	default:
		argv = []string{"run", "--rm"}
		argv = append(argv, sb.resourceFlags()...)
		argv = append(argv, "-v", sb.cfg.Workspace+":/workspace", "-w", "/workspace")
		argv = append(argv, sb.containerImage(), "pip", "install", pkg)
	}
	if _, err := sb.runDocker(ctx, argv); err != nil {
		return err
	}
	return sb.recordInstalledPackage(pkg)
}
