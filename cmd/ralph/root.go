package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/metalagman/ralph/internal/config"
	"github.com/metalagman/ralph/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var debug bool
	rootCmd := &cobra.Command{
		Use:           "ralph",
		Short:         "ralph runs an AI coding agent in a loop until the task list is done",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			logging.Init(debug)
			return nil
		},
	}

	defaultConfig, err := config.DefaultPath()
	if err != nil {
		defaultConfig = ""
	}
	rootCmd.PersistentFlags().String("config", defaultConfig, "config file path")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(detectCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(archiveCmd())
	rootCmd.AddCommand(runsCmd())
	rootCmd.AddCommand(migrateCmd())
	return rootCmd
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
}
