package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"
	"github.com/metalagman/ralph/internal/git"
	"github.com/metalagman/ralph/internal/prd"
	"github.com/metalagman/ralph/internal/reconcile"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type storyStatus struct {
	ID       string `json:"id"       yaml:"id"`
	Title    string `json:"title"    yaml:"title"`
	Priority uint   `json:"priority" yaml:"priority"`
}

type statusReport struct {
	Project    string       `json:"project"               yaml:"project"`
	Branch     string       `json:"branch"                yaml:"branch"`
	GitBranch  string       `json:"git_branch,omitempty"  yaml:"git_branch,omitempty"`
	LastBranch string       `json:"last_branch,omitempty" yaml:"last_branch,omitempty"`
	Total      int          `json:"total"                 yaml:"total"`
	Completed  int          `json:"completed"             yaml:"completed"`
	Pending    int          `json:"pending"               yaml:"pending"`
	Next       *storyStatus `json:"next,omitempty"        yaml:"next,omitempty"`
	Archives   int          `json:"archives"              yaml:"archives"`

	progress string
}

func statusCmd() *cobra.Command {
	var taskList, format string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show task list progress and the latest progress log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format, "text", "json", "yaml"); err != nil {
				return err
			}
			report, err := buildStatus(cmd, taskList)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch format {
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			case "yaml":
				enc := yaml.NewEncoder(out)
				defer enc.Close()
				return enc.Encode(report)
			}
			printStatus(newUI(out), report)
			return nil
		},
	}
	addTaskListFlag(cmd, &taskList)
	cmd.Flags().StringVar(&format, "format", "text", "output format: text, json or yaml")
	return cmd
}

func buildStatus(cmd *cobra.Command, taskList string) (*statusReport, error) {
	doc, err := prd.Load(taskList)
	if err != nil {
		return nil, err
	}
	runDir := filepath.Dir(taskList)
	report := &statusReport{
		Project:   doc.Project,
		Branch:    doc.BranchName,
		Total:     doc.Total(),
		Completed: doc.Completed(),
		Pending:   doc.Pending(),
	}
	if next, ok := doc.NextPending(); ok {
		report.Next = &storyStatus{ID: next.ID, Title: next.Title, Priority: next.Priority}
	}
	if branch, err := git.CurrentBranch(cmd.Context(), runDir); err == nil {
		report.GitBranch = branch
	}
	if last, err := reconcile.ReadLastBranch(runDir); err == nil {
		report.LastBranch = last
	}
	archives, err := reconcile.ListArchives(runDir)
	if err != nil {
		return nil, err
	}
	report.Archives = len(archives)

	data, err := os.ReadFile(filepath.Join(runDir, reconcile.ProgressFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read progress log: %w", err)
	}
	report.progress = string(data)
	return report, nil
}

func printStatus(u *ui, r *statusReport) {
	u.Title("Ralph Status")
	u.Printf("Project: %s\n", r.Project)
	u.Printf("Branch: %s\n", r.Branch)
	if r.GitBranch != "" {
		u.Printf("Git branch: %s\n", r.GitBranch)
		if r.GitBranch != r.Branch {
			u.Warn("Warning: checked-out branch differs from the task list branch")
		}
	}
	if r.LastBranch != "" && r.LastBranch != r.Branch {
		u.Printf("Last run branch: %s (will be archived on next run)\n", r.LastBranch)
	}
	u.Printf("Progress: %d/%d stories completed (%d pending)\n", r.Completed, r.Total, r.Pending)
	if r.Next != nil {
		u.Printf("Next story: %s: %s\n", r.Next.ID, r.Next.Title)
	} else {
		u.Success("All stories are complete!")
	}
	u.Printf("Archives: %d\n", r.Archives)

	if r.progress == "" {
		return
	}
	u.Println()
	u.Println(u.keyName.Render("Progress log"))
	renderMarkdown(u.out, r.progress)
}

// renderMarkdown prints text through glamour, falling back to the raw text.
func renderMarkdown(w io.Writer, text string) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err == nil {
		if rendered, err := renderer.Render(text); err == nil {
			fmt.Fprint(w, rendered)
			return
		}
	}
	fmt.Fprintln(w, text)
}
