package main

import (
	"context"
	"fmt"
	"os"

	"github.com/metalagman/ralph/internal/agent"
	"github.com/metalagman/ralph/internal/run"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	var (
		tool          string
		maxIterations int
		taskList      string
		output        string
		noHistory     bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent loop until all stories pass or the budget is spent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(output, "text", "jsonl"); err != nil {
				return err
			}
			if cmd.Flags().Changed("max-iterations") && maxIterations <= 0 {
				return fmt.Errorf("--max-iterations must be a positive integer")
			}

			var runner *run.Runner
			app := newRunApp(runOptions{
				TaskListPath: taskList,
				Output:       output,
				NoHistory:    noHistory,
				Out:          cmd.OutOrStdout(),
				ErrOut:       cmd.ErrOrStderr(),
			}, &runner)
			if err := app.Err(); err != nil {
				return err
			}
			if err := app.Start(cmd.Context()); err != nil {
				return err
			}
			defer func() { _ = app.Stop(context.WithoutCancel(cmd.Context())) }()

			req := run.Request{
				Tool:          tool,
				MaxIterations: maxIterations,
				TaskListPath:  taskList,
			}
			if !cmd.Flags().Changed("prd") {
				root, err := os.Getwd()
				if err != nil {
					return err
				}
				req.LegacyRoot = root
			}

			signals, stopSignals := run.NotifySignals()
			defer stopSignals()
			ctx, ctrl := run.NewInterruptController(cmd.Context(), signals, func() {
				runner.Printer.Warning("Received interrupt signal, stopping...")
			})
			defer ctrl.Stop()

			_, err := runner.Execute(ctx, req)
			return err
		},
	}
	cmd.Flags().StringVar(&tool, "tool", agent.Auto, "agent CLI to use: amp, claude, codebuddy, a custom command, or auto")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "maximum number of iterations (defaults to max_iterations from config)")
	addTaskListFlag(cmd, &taskList)
	cmd.Flags().StringVar(&output, "output", "text", "output format: text or jsonl")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "do not record the run in the history database")
	return cmd
}
