package main

import (
	"github.com/metalagman/ralph/internal/agent"
	"github.com/spf13/cobra"
)

func detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Detect installed AI agent CLIs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			printDetections(newUI(cmd.OutOrStdout()), agent.Detect(agent.ProbeChecker{}))
			return nil
		},
	}
}

func printDetections(u *ui, detections []agent.Detection) {
	u.Title("Detecting AI Agent CLIs")
	installed := 0
	for _, d := range detections {
		status := u.bad.Render("✗ Not found")
		if d.Installed {
			installed++
			status = u.ok.Render("✓ Installed")
		}
		u.Printf("  %-14s %-10s %s\n", d.DisplayName, "("+d.Name+")", status)
	}
	u.Println()
	u.Printf("Total: %d/%d agents installed\n", installed, len(detections))
	if installed == 0 {
		u.Warn("%v", agent.ErrNoAgent)
	}
}
