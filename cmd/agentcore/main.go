// Command agentcore is the thin entrypoint over internal/agentloop.
//
// Grounded on the teacher's cmd/kilroy/main.go: the default surface is a
// switch-based subcommand dispatch (start, resume, status, cancel, serve)
// wired through signalCancelContext so SIGINT/SIGTERM cancels an
// in-flight run instead of killing the process mid-write. A second,
// cobra-based command tree (cli.go) is reachable via the "cobra"
// subcommand for operators who prefer flag completion and --help
// generation; both paths call the same buildRuntime wiring.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/softnix/agentic-core/internal/agentloop"
	"github.com/softnix/agentic-core/internal/config"
	"github.com/softnix/agentic-core/internal/httpapi"
	"github.com/softnix/agentic-core/internal/llmhttp"
	"github.com/softnix/agentic-core/internal/obslog"
	"github.com/softnix/agentic-core/internal/planner"
	"github.com/softnix/agentic-core/internal/runstate"
	"github.com/softnix/agentic-core/internal/sandbox"
	"github.com/softnix/agentic-core/internal/store"
)

func signalCancelContext() (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(context.Background())
	sigCh := make(chan os.Signal, 1)
	stopCh := make(chan struct{})
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for {
			select {
			case sig := <-sigCh:
				cancel(fmt.Errorf("stopped by signal %s", sig.String()))
			case <-stopCh:
				return
			}
		}
	}()
	cleanup := func() {
		signal.Stop(sigCh)
		close(stopCh)
		cancel(nil)
	}
	return ctx, cleanup
}

// runtime bundles the wired components a subcommand needs.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.FilesystemStore
	loop   *agentloop.AgentLoop
	watch  *config.Watcher
}

func buildRuntime(overlayPath string) (*runtime, error) {
	cfg, err := config.Load(overlayPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := obslog.New(obslog.FromEnv())

	st, err := store.New(cfg.RunsDir)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	provider := llmhttp.New(llmhttp.Config{
		APIKey:  apiKeyFor(cfg),
		BaseURL: baseURLFor(cfg),
		Model:   cfg.Model,
	})
	pl := planner.New(provider, planner.Config{
		MaxTokens:            4096,
		RetryMaxAttempts:     3,
		PreviousOutputBudget: 4000,
		Sleep:                time.Sleep,
	})

	sandboxBuilder := func(s *runstate.RunState) *sandbox.Sandbox {
		return sandbox.New(sandbox.Config{
			RunID:              s.RunID,
			Workspace:          s.Workspace,
			RunDir:             st.RunDir(s.RunID),
			SafeCommands:       cfg.SafeCommands,
			CommandTimeoutSec:  cfg.ExecTimeoutSec,
			MaxOutputChars:     cfg.MaxActionOutputChars,
			Runtime:                sandbox.RuntimeMode(cfg.ExecRuntime),
			ContainerLifecycle:     sandbox.ContainerLifecycle(cfg.ExecContainerLifecycle),
			ContainerImage:         cfg.ExecContainerImage,
			ContainerImageProfile:  cfg.ExecContainerImageProfile,
			ContainerImageBase:     cfg.ExecContainerImageBase,
			ContainerImageWeb:      cfg.ExecContainerImageWeb,
			ContainerImageData:     cfg.ExecContainerImageData,
			ContainerImageScraping: cfg.ExecContainerImageScraping,
			ContainerImageML:       cfg.ExecContainerImageML,
			ContainerImageQA:       cfg.ExecContainerImageQA,
			ContainerNetwork:       cfg.ExecContainerNetwork,
			ContainerCPUs:          cfg.ExecContainerCPUs,
			ContainerMemory:        cfg.ExecContainerMemory,
			ContainerPIDsLimit:     cfg.ExecContainerPIDsLimit,
			ContainerCacheDir:      cfg.ExecContainerCacheDir,
			WebFetchTLSVerify:      cfg.WebFetchTLSVerify,
		})
	}

	loop := agentloop.New(st, pl, sandboxBuilder)
	loop.Config = agentloop.Config{
		NoProgressRepeatThreshold: cfg.NoProgressRepeatThreshold,
		RunMaxWallTimeSec:         cfg.RunMaxWallTimeSec,
	}

	watcher, err := config.NewWatcher(overlayPath, cfg, logger)
	if err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
		watcher = nil
	}

	return &runtime{cfg: cfg, logger: logger, store: st, loop: loop, watch: watcher}, nil
}

func apiKeyFor(cfg *config.Config) string {
	switch cfg.Provider {
	case "claude":
		return cfg.ClaudeAPIKey
	case "custom":
		return cfg.CustomAPIKey
	default:
		return cfg.OpenAIAPIKey
	}
}

func baseURLFor(cfg *config.Config) string {
	switch cfg.Provider {
	case "claude":
		return cfg.ClaudeBaseURL
	case "custom":
		return cfg.CustomBaseURL
	default:
		return cfg.OpenAIBaseURL
	}
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	if os.Args[1] == "cobra" {
		executeCobra(os.Args[2:])
		return
	}

	switch os.Args[1] {
	case "--version", "-v", "version":
		fmt.Println("agentcore 0.1.0")
	case "start":
		cmdStart(os.Args[2:])
	case "resume":
		cmdResume(os.Args[2:])
	case "status":
		cmdStatus(os.Args[2:])
	case "cancel":
		cmdCancel(os.Args[2:])
	case "serve":
		cmdServe(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  agentcore --version")
	fmt.Fprintln(os.Stderr, "  agentcore start --task <text> --workspace <dir> [--provider p] [--model m] [--skills-dir d] [--max-iters n] [--config overlay.yaml]")
	fmt.Fprintln(os.Stderr, "  agentcore resume --run-id <id> [--config overlay.yaml]")
	fmt.Fprintln(os.Stderr, "  agentcore status --run-id <id> [--config overlay.yaml]")
	fmt.Fprintln(os.Stderr, "  agentcore cancel --run-id <id> [--config overlay.yaml]")
	fmt.Fprintln(os.Stderr, "  agentcore serve [--addr host:port] [--config overlay.yaml]")
	fmt.Fprintln(os.Stderr, "  agentcore cobra ...  (alternative cobra-based CLI tree)")
}

func parseFlags(args []string, spec map[string]*string) error {
	for i := 0; i < len(args); i++ {
		name := args[i]
		dst, ok := spec[name]
		if !ok {
			return fmt.Errorf("unknown flag: %s", name)
		}
		i++
		if i >= len(args) {
			return fmt.Errorf("%s requires a value", name)
		}
		*dst = args[i]
	}
	return nil
}

func cmdStart(args []string) {
	var task, workspace, provider, model, skillsDir, maxIters, overlay string
	if err := parseFlags(args, map[string]*string{
		"--task": &task, "--workspace": &workspace, "--provider": &provider,
		"--model": &model, "--skills-dir": &skillsDir, "--max-iters": &maxIters,
		"--config": &overlay,
	}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if task == "" || workspace == "" {
		usage()
		os.Exit(1)
	}

	rt, err := buildRuntime(overlay)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if rt.watch != nil {
		defer rt.watch.Close()
	}

	iters := rt.cfg.MaxIters
	if maxIters != "" {
		fmt.Sscanf(maxIters, "%d", &iters)
	}
	if provider == "" {
		provider = rt.cfg.Provider
	}
	if model == "" {
		model = rt.cfg.Model
	}
	if skillsDir == "" {
		skillsDir = rt.cfg.SkillsDir
	}

	ctx, cleanup := signalCancelContext()
	defer cleanup()

	st, err := rt.loop.StartRun(ctx, task, provider, model, workspace, skillsDir, iters)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printRunState(st)
	if st.Status != runstate.StatusCompleted {
		os.Exit(1)
	}
}

func cmdResume(args []string) {
	var runID, overlay string
	if err := parseFlags(args, map[string]*string{"--run-id": &runID, "--config": &overlay}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if runID == "" {
		usage()
		os.Exit(1)
	}
	rt, err := buildRuntime(overlay)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if rt.watch != nil {
		defer rt.watch.Close()
	}

	ctx, cleanup := signalCancelContext()
	defer cleanup()

	st, err := rt.loop.ResumeRun(ctx, runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printRunState(st)
}

func cmdStatus(args []string) {
	var runID, overlay string
	if err := parseFlags(args, map[string]*string{"--run-id": &runID, "--config": &overlay}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if runID == "" {
		usage()
		os.Exit(1)
	}
	rt, err := buildRuntime(overlay)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	st, err := rt.store.ReadState(runID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	printRunState(st)
}

func cmdCancel(args []string) {
	var runID, overlay string
	if err := parseFlags(args, map[string]*string{"--run-id": &runID, "--config": &overlay}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if runID == "" {
		usage()
		os.Exit(1)
	}
	rt, err := buildRuntime(overlay)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := rt.store.RequestCancel(runID); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("cancel requested for %s\n", runID)
}

func cmdServe(args []string) {
	var addr, overlay string
	if err := parseFlags(args, map[string]*string{"--addr": &addr, "--config": &overlay}); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rt, err := buildRuntime(overlay)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if rt.watch != nil {
		defer rt.watch.Close()
	}
	if addr == "" {
		addr = rt.cfg.ListenAddr
	}

	srv := httpapi.New(httpapi.Config{Addr: addr}, rt.loop, rt.store)

	ctx, cleanup := signalCancelContext()
	defer cleanup()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	go serveMetrics(rt.cfg, rt.logger)

	rt.logger.Info("agentcore: serving", "addr", addr)
	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printRunState(st *runstate.RunState) {
	fmt.Printf("run_id=%s\n", st.RunID)
	fmt.Printf("status=%s\n", st.Status)
	fmt.Printf("stop_reason=%s\n", st.StopReason)
	fmt.Printf("iterations=%d\n", st.Iteration)
	if st.LastOutput != "" {
		fmt.Printf("last_output=%s\n", st.LastOutput)
	}
}
