// Package sandbox implements the ActionSandbox: a bounded-capability
// executor for the fixed action vocabulary (list_dir, read_file,
// write_workspace_file, run_safe_command, run_python_code, web_fetch)
// with path confinement, command allowlisting, and Host/Container runtime
// modes.
//
// Grounded on original_source/agent/executor.py's SafeActionExecutor for
// behavior, and on the teacher's internal/agent/tool_registry.go for the
// Go idiom (RegisteredTool-style per-action dispatch, schema validation,
// truncation with explicit markers).
package sandbox

import (
	"context"
	"strings"

	"github.com/softnix/agentic-core/internal/agenterr"
	"github.com/softnix/agentic-core/internal/runstate"
)

// RuntimeMode selects where commands and python code actually execute.
type RuntimeMode string

const (
	RuntimeHost      RuntimeMode = "host"
	RuntimeContainer RuntimeMode = "container"
)

// ContainerLifecycle selects how long a container lives relative to one
// action, when RuntimeMode is RuntimeContainer.
type ContainerLifecycle string

const (
	LifecyclePerAction ContainerLifecycle = "per_action"
	LifecyclePerRun    ContainerLifecycle = "per_run"
)

// Config parameterizes one Sandbox instance. A Sandbox is constructed once
// per run.
type Config struct {
	RunID     string
	Workspace string

	SafeCommands []string // allowlisted base executables

	CommandTimeoutSec int
	MaxOutputChars    int

	Runtime            RuntimeMode
	ContainerLifecycle ContainerLifecycle
	ContainerImage     string
	ContainerImageProfile string
	ContainerImageBase     string
	ContainerImageWeb      string
	ContainerImageData     string
	ContainerImageScraping string
	ContainerImageML       string
	ContainerImageQA       string
	ContainerNetwork   string
	ContainerCPUs      float64
	ContainerMemory    string
	ContainerPIDsLimit int
	ContainerCacheDir  string
	ContainerPipCacheEnabled bool

	// EnvPassthroughNames lists environment variable names whose values
	// may be forwarded into subprocesses/containers. Values are never
	// embedded in argv.
	EnvPassthroughNames []string

	WebFetchTLSVerify bool

	RunDir string // runs/<run_id>, for runtime_manifest.json / requirements.lock
}

// unconditionally rejected regardless of allowlist membership.
var blockedTokens = map[string]struct{}{
	"sudo": {}, "curl": {}, "wget": {}, "ssh": {}, "scp": {}, "mv": {},
}

// Sandbox executes one action at a time within its configured confinement.
type Sandbox struct {
	cfg Config

	containerStarted bool
	containerName    string
}

// New constructs a Sandbox for one run.
func New(cfg Config) *Sandbox {
	if cfg.CommandTimeoutSec <= 0 {
		cfg.CommandTimeoutSec = 30
	}
	if cfg.MaxOutputChars <= 0 {
		cfg.MaxOutputChars = 12000
	}
	if cfg.Runtime == "" {
		cfg.Runtime = RuntimeHost
	}
	if cfg.ContainerLifecycle == "" {
		cfg.ContainerLifecycle = LifecyclePerAction
	}
	return &Sandbox{cfg: cfg}
}

// Action is one planner-emitted action: a name plus opaque params, as
// decoded from the plan's JSON.
type Action struct {
	Name   string
	Params map[string]any
}

// Execute dispatches action to its handler. It never returns an error:
// failures are reported as ActionResult{OK:false}, matching the "never
// raises for a handled action" contract.
func (sb *Sandbox) Execute(ctx context.Context, action Action) runstate.ActionResult {
	name := normalizeActionName(action.Name)

	if _, known := actionSchemas[name]; known {
		if err := ValidateParams(action); err != nil {
			return runstate.ActionResult{Name: action.Name, OK: false, Error: err.Error()}
		}
	}

	var (
		output string
		err    error
	)
	switch name {
	case "list_dir":
		output, err = sb.listDir(action.Params)
	case "read_file":
		output, err = sb.readFile(action.Params)
	case "write_workspace_file":
		output, err = sb.writeWorkspaceFile(action.Params)
	case "run_safe_command":
		output, err = sb.runSafeCommand(ctx, action.Params)
	case "run_python_code":
		output, err = sb.runPythonCode(ctx, action.Params)
	case "web_fetch":
		output, err = sb.webFetch(ctx, action.Params)
	default:
		return runstate.ActionResult{Name: action.Name, OK: false, Error: "Action not allowed"}
	}

	if err != nil {
		return runstate.ActionResult{Name: action.Name, OK: false, Error: err.Error()}
	}
	return runstate.ActionResult{Name: action.Name, OK: true, Output: sb.truncate(output)}
}

// normalizeActionName resolves the alias names spec.md §4.B defines:
// write_file -> write_workspace_file, run_shell_command -> run_safe_command.
func normalizeActionName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "write_file":
		return "write_workspace_file"
	case "run_shell_command":
		return "run_safe_command"
	default:
		return strings.ToLower(strings.TrimSpace(name))
	}
}

func paramString(params map[string]any, key string) (string, bool) {
	v, ok := params[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func paramBool(params map[string]any, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func confinementError(format string, args ...any) error {
	return agenterr.Newf(agenterr.KindConfinement, "sandbox", format, args...)
}

func sandboxError(format string, args ...any) error {
	return agenterr.Newf(agenterr.KindSandbox, "sandbox", format, args...)
}
