package main

import (
	"path/filepath"
	"strings"

	"github.com/metalagman/ralph/internal/reconcile"
	"github.com/spf13/cobra"
)

func archiveCmd() *cobra.Command {
	var taskList string
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "List snapshots of previous runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := reconcile.ListArchives(filepath.Dir(taskList))
			if err != nil {
				return err
			}
			u := newUI(cmd.OutOrStdout())
			u.Title("Ralph Archives")
			if len(entries) == 0 {
				u.Println("No archived runs")
				return nil
			}
			for _, e := range entries {
				files := u.dim.Render("(empty)")
				if len(e.Files) > 0 {
					files = strings.Join(e.Files, ", ")
				}
				u.Printf("  %s  %s\n", e.Name, files)
			}
			u.Println()
			u.Printf("Total: %d archived runs\n", len(entries))
			return nil
		},
	}
	addTaskListFlag(cmd, &taskList)
	return cmd
}
