package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/softnix/agentic-core/internal/httpapi"
)

// executeCobra builds the alternative cobra-based command tree and runs
// it against args (everything after "agentcore cobra"). It reuses
// buildRuntime so both entrypoints stay wired identically.
func executeCobra(args []string) {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var overlay string

	root := &cobra.Command{
		Use:           "agentcore",
		Short:         "Run and observe autonomous plan-execute-validate agent loops.",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&overlay, "config", "", "path to a YAML config overlay")

	root.AddCommand(newStartCmd(&overlay))
	root.AddCommand(newResumeCmd(&overlay))
	root.AddCommand(newStatusCmd(&overlay))
	root.AddCommand(newCancelCmd(&overlay))
	root.AddCommand(newServeCmd(&overlay))
	return root
}

func newStartCmd(overlay *string) *cobra.Command {
	var task, workspace, provider, model, skillsDir string
	var maxIters int

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new run and block until it reaches a terminal state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" || workspace == "" {
				return fmt.Errorf("--task and --workspace are required")
			}
			rt, err := buildRuntime(*overlay)
			if err != nil {
				return err
			}
			if rt.watch != nil {
				defer rt.watch.Close()
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
			if maxIters <= 0 {
				maxIters = rt.cfg.MaxIters
			}

			ctx, cleanup := signalCancelContext()
			defer cleanup()

			st, err := rt.loop.StartRun(ctx, task, provider, model, workspace, skillsDir, maxIters)
			if err != nil {
				return err
			}
			printRunState(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&task, "task", "", "task description for the run")
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace directory the run operates on")
	cmd.Flags().StringVar(&provider, "provider", "", "provider override (openai, claude, custom)")
	cmd.Flags().StringVar(&model, "model", "", "model override")
	cmd.Flags().StringVar(&skillsDir, "skills-dir", "", "skill pack directory override")
	cmd.Flags().IntVar(&maxIters, "max-iters", 0, "iteration budget override")
	return cmd
}

func newResumeCmd(overlay *string) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				return fmt.Errorf("--run-id is required")
			}
			rt, err := buildRuntime(*overlay)
			if err != nil {
				return err
			}
			if rt.watch != nil {
				defer rt.watch.Close()
			}
			ctx, cleanup := signalCancelContext()
			defer cleanup()
			st, err := rt.loop.ResumeRun(ctx, runID)
			if err != nil {
				return err
			}
			printRunState(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run to resume")
	return cmd
}

func newStatusCmd(overlay *string) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the current state of a run",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				return fmt.Errorf("--run-id is required")
			}
			rt, err := buildRuntime(*overlay)
			if err != nil {
				return err
			}
			st, err := rt.store.ReadState(runID)
			if err != nil {
				return err
			}
			printRunState(st)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run to inspect")
	return cmd
}

func newCancelCmd(overlay *string) *cobra.Command {
	var runID string
	cmd := &cobra.Command{
		Use:   "cancel",
		Short: "Request that a running run stop at its next iteration boundary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				return fmt.Errorf("--run-id is required")
			}
			rt, err := buildRuntime(*overlay)
			if err != nil {
				return err
			}
			if err := rt.store.RequestCancel(runID); err != nil {
				return err
			}
			fmt.Printf("cancel requested for %s\n", runID)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run to cancel")
	return cmd
}

func newServeCmd(overlay *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(*overlay)
			if err != nil {
				return err
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

			return srv.ListenAndServe()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address override")
	return cmd
}
