package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/metalagman/ralph/internal/db"
	"github.com/metalagman/ralph/internal/run"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func runsCmd() *cobra.Command {
	var taskList, format string
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded ralph runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "text", "yaml"); err != nil {
				return err
			}
			storeDB, closeFn, err := openHistory(filepath.Dir(taskList))
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := db.NewStore(storeDB).ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if format == "yaml" {
				enc := yaml.NewEncoder(out)
				defer enc.Close()
				return enc.Encode(records)
			}
			if len(records) == 0 {
				fmt.Fprintln(out, "No recorded runs")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tSTARTED\tBRANCH\tTOOL\tITERATIONS\tSTORIES\tOUTCOME")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%d/%d\t%s\n",
					r.RunID, r.StartedAt, r.Branch, r.Tool,
					r.Iterations, r.MaxIterations, r.StoriesCompleted, r.StoriesTotal, r.Outcome)
			}
			return tw.Flush()
		},
	}
	cmd.PersistentFlags().StringVar(&taskList, "prd", defaultTaskListPath, "path to the task list (prd.json)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().StringVar(&format, "format", "text", "output format: text or yaml")
	cmd.AddCommand(runsPruneCmd(&taskList))
	return cmd
}

func runsPruneCmd(taskList *string) *cobra.Command {
	var keepLast int
	var keepDays int
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Prune old runs from the history database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			policy := db.RetentionPolicy{KeepLast: keepLast, KeepDays: keepDays}
			if policy.KeepLast <= 0 && policy.KeepDays <= 0 {
				return fmt.Errorf("set --keep-last or --keep-days")
			}
			runDir := filepath.Dir(*taskList)
			storeDB, closeFn, err := openHistory(runDir)
			if err != nil {
				return err
			}
			defer closeFn()

			lock, err := run.TryAcquireRunLock(runDir)
			if err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			res, err := db.NewStore(storeDB).Prune(cmd.Context(), policy, dryRun)
			if err != nil {
				return err
			}
			mode := "deleted"
			if dryRun {
				mode = "would delete"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d runs (kept %d of %d)\n", mode, res.Deleted, res.Kept, res.Considered)
			return nil
		},
	}
	cmd.Flags().IntVar(&keepLast, "keep-last", 0, "keep the newest N runs")
	cmd.Flags().IntVar(&keepDays, "keep-days", 0, "keep runs newer than N days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be pruned without deleting")
	return cmd
}
