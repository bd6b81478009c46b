package main

import (
	"os"
	"path/filepath"

	"github.com/metalagman/ralph/internal/reconcile"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Move run files from the project root into ralph/",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			runDir := filepath.Join(root, "ralph")
			u := newUI(cmd.OutOrStdout())
			if !reconcile.HasLegacyLayout(root, runDir) {
				u.Println("Nothing to migrate")
				return nil
			}
			moved, err := reconcile.MigrateLegacy(root, runDir)
			if err != nil {
				return err
			}
			for _, name := range moved {
				u.Success("Moved %s to ralph/%s", name, name)
			}
			if len(moved) == 0 {
				u.Warn("Legacy files were left in place because ralph/ already has them")
			}
			return nil
		},
	}
}
