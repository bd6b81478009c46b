package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/metalagman/ralph/internal/agent"
	"github.com/metalagman/ralph/internal/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPRD = `{
  "project": "Demo",
  "branchName": "ralph/demo",
  "description": "demo project",
  "userStories": [
    {"id": "US-001", "title": "First", "description": "d", "acceptanceCriteria": ["a"], "priority": 1, "passes": true, "notes": ""},
    {"id": "US-002", "title": "Second", "description": "d", "acceptanceCriteria": ["b"], "priority": 2, "passes": false, "notes": ""}
  ]
}`

// execute runs the CLI in a fresh project directory with an isolated config file.
func execute(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func setupProject(t *testing.T) (string, string) {
	t.Helper()
	root := t.TempDir()
	t.Chdir(root)
	return root, filepath.Join(t.TempDir(), "config.toml")
}

func TestConfigCommand(t *testing.T) {
	_, cfgPath := setupProject(t)

	out, err := execute(t, cfgPath, "config", "--set", "max_iterations", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Set max_iterations = 5")

	out, err = execute(t, cfgPath, "config", "--get", "max_iterations")
	require.NoError(t, err)
	assert.Equal(t, "max_iterations = 5\n", out)

	out, err = execute(t, cfgPath, "config", "--get", "default_tool")
	require.NoError(t, err)
	assert.Equal(t, "default_tool is not set\n", out)

	out, err = execute(t, cfgPath, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "Ralph Configuration")
	assert.Contains(t, out, "Config file: "+cfgPath)
	assert.Contains(t, out, "auto_archive = true")

	cfg, err := config.LoadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxIterations)
}

func TestConfigCommand_Errors(t *testing.T) {
	_, cfgPath := setupProject(t)

	_, err := execute(t, cfgPath, "config", "--set", "max_iterations", "zero")
	require.EqualError(t, err, "max_iterations must be a positive integer")

	_, err = execute(t, cfgPath, "config", "--get", "colour")
	require.ErrorIs(t, err, config.ErrUnknownKey)

	_, err = execute(t, cfgPath, "config", "--set", "max_iterations")
	require.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	root, cfgPath := setupProject(t)

	out, err := execute(t, cfgPath, "init", "--tool", "claude")
	require.NoError(t, err)
	assert.Contains(t, out, "Ralph Project Initialization")
	assert.Contains(t, out, "✓ Created ralph/")
	assert.DirExists(t, filepath.Join(root, "ralph", "tasks"))

	cfg, err := config.LoadFile(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "claude", cfg.DefaultTool)

	out, err = execute(t, cfgPath, "init", "--tool", "claude")
	require.NoError(t, err)
	assert.Contains(t, out, "ralph/ already exists")
}

func TestDetectDefaultTool(t *testing.T) {
	only := agent.CheckerFunc(func(name string) bool { return name == "claude" })
	assert.Equal(t, "claude", detectDefaultTool(only))

	all := agent.CheckerFunc(func(string) bool { return true })
	assert.Empty(t, detectDefaultTool(all))
}

func TestPrintDetections(t *testing.T) {
	var out bytes.Buffer
	printDetections(newUI(&out), agent.Detect(agent.CheckerFunc(func(name string) bool { return name == "amp" })))

	text := out.String()
	assert.Contains(t, text, "✓ Installed")
	assert.Contains(t, text, "✗ Not found")
	assert.Contains(t, text, "Total: 1/3 agents installed")
}

func TestMigrateCommand(t *testing.T) {
	root, cfgPath := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "prd.json"), []byte(testPRD), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "progress.txt"), []byte("log"), 0o644))

	_, err := execute(t, cfgPath, "run", "--tool", "sh")
	require.ErrorContains(t, err, "ralph migrate")

	out, err := execute(t, cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Moved prd.json")
	assert.FileExists(t, filepath.Join(root, "ralph", "prd.json"))
	assert.FileExists(t, filepath.Join(root, "ralph", "progress.txt"))
	assert.NoFileExists(t, filepath.Join(root, "prd.json"))

	out, err = execute(t, cfgPath, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to migrate")
}

func TestStatusCommand(t *testing.T) {
	root, cfgPath := setupProject(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ralph"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ralph", "prd.json"), []byte(testPRD), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "ralph", "progress.txt"), []byte("# Ralph Progress Log\n"), 0o644))

	out, err := execute(t, cfgPath, "status", "--format", "json")
	require.NoError(t, err)
	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "Demo", report["project"])
	assert.InDelta(t, 1, report["pending"], 0)
	next, ok := report["next"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "US-002", next["id"])

	out, err = execute(t, cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Progress: 1/2 stories completed (1 pending)")
	assert.Contains(t, out, "Next story: US-002: Second")
	assert.Contains(t, out, "Ralph Progress Log")

	_, err = execute(t, cfgPath, "status", "--format", "xml")
	require.Error(t, err)
}

func TestRunCommand_EndToEnd(t *testing.T) {
	root, cfgPath := setupProject(t)
	runDir := filepath.Join(root, "ralph")
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "prd.json"), []byte(testPRD), 0o644))
	script := filepath.Join(root, "agent.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\ncat > /dev/null\necho working\necho '<promise>COMPLETE</promise>'\n"), 0o755))

	out, err := execute(t, cfgPath, "run", "--tool", script, "--max-iterations", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Iteration 1 / 3")
	assert.Contains(t, out, "✓ Agent signaled completion!")
	assert.NotContains(t, out, "Iteration 2 / 3")
	assert.FileExists(t, filepath.Join(runDir, "progress.txt"))
	assert.FileExists(t, filepath.Join(runDir, ".last-branch"))

	out, err = execute(t, cfgPath, "runs", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "outcome: completed")
	assert.Contains(t, out, "branch: ralph/demo")

	out, err = execute(t, cfgPath, "runs", "prune", "--keep-last", "1", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would delete 0 runs")

	_, err = execute(t, cfgPath, "run", "--tool", script, "--max-iterations", "0")
	require.Error(t, err)
}

func TestArchiveCommand_Empty(t *testing.T) {
	root, cfgPath := setupProject(t)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ralph"), 0o755))

	out, err := execute(t, cfgPath, "archive")
	require.NoError(t, err)
	assert.Contains(t, out, "No archived runs")
}
