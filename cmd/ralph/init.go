package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/metalagman/ralph/internal/agent"
	"github.com/metalagman/ralph/internal/config"
	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var tool string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the ralph run directory in the current project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := os.Getwd()
			if err != nil {
				return err
			}
			u := newUI(cmd.OutOrStdout())
			u.Title("Ralph Project Initialization")
			if err := initProject(u, root); err != nil {
				return err
			}
			if tool == "" {
				tool = detectDefaultTool(agent.ProbeChecker{})
			}
			if tool != "" {
				if err := saveDefaultTool(u, tool); err != nil {
					return err
				}
			}
			u.Println()
			u.Println("Next steps:")
			u.Println("  1. Write your task list to ralph/prd.json")
			u.Println("  2. Run 'ralph run' to start the agent loop")
			return nil
		},
	}
	cmd.Flags().StringVar(&tool, "tool", "", "agent CLI to store as default_tool (detected when empty)")
	return cmd
}

func initProject(u *ui, root string) error {
	for _, rel := range []string{"ralph", filepath.Join("ralph", "tasks")} {
		dir := filepath.Join(root, rel)
		if info, err := os.Stat(dir); err == nil {
			if !info.IsDir() {
				return fmt.Errorf("%s exists and is not a directory", rel)
			}
			u.Printf("  %s already exists\n", rel+"/")
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", rel, err)
		}
		u.Success("Created %s", rel+"/")
	}
	return nil
}

// detectDefaultTool returns the only installed built-in agent, or "" when
// zero or several are installed.
func detectDefaultTool(checker agent.Checker) string {
	var found []string
	for _, d := range agent.Detect(checker) {
		if d.Installed {
			found = append(found, d.Name)
		}
	}
	if len(found) != 1 {
		return ""
	}
	return found[0]
}

func saveDefaultTool(u *ui, tool string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Set(config.KeyDefaultTool, tool); err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	u.Success("Set %s = %s", config.KeyDefaultTool, tool)
	return nil
}
