package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/ralph/internal/config"
	"github.com/metalagman/ralph/internal/db"
	"github.com/metalagman/ralph/internal/prd"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var defaultTaskListPath = filepath.Join(".", "ralph", prd.FileName)

func configPath() (string, error) {
	path := viper.GetString("config")
	if path == "" {
		return "", fmt.Errorf("config path is not set, pass --config")
	}
	return path, nil
}

func loadConfig() (config.Config, error) {
	path, err := configPath()
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(path)
}

// openHistory opens the run history database of an existing run directory.
func openHistory(runDir string) (*sql.DB, func(), error) {
	if _, err := os.Stat(runDir); err != nil {
		return nil, func() {}, fmt.Errorf("run directory %s not found, run 'ralph init' first: %w", runDir, err)
	}
	storeDB, err := db.Open(filepath.Join(runDir, db.FileName))
	if err != nil {
		return nil, func() {}, err
	}
	return storeDB, func() { _ = storeDB.Close() }, nil
}

func addTaskListFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "prd", defaultTaskListPath, "path to the task list (prd.json)")
}

func checkFormat(format string, allowed ...string) error {
	for _, a := range allowed {
		if format == a {
			return nil
		}
	}
	return fmt.Errorf("unknown format %q (want one of %v)", format, allowed)
}
