package run

import (
	_ "embed"
	"strings"
	"text/template"

	"github.com/metalagman/ralph/internal/reconcile"
)

//go:embed prompt.md
var promptTemplate string

var promptTmpl = template.Must(template.New("prompt").Parse(promptTemplate))

type promptData struct {
	TaskList    string
	ProgressLog string
	Marker      string
}

// BuildPrompt renders the fixed agent prompt for a task list file name.
func BuildPrompt(taskListName string) string {
	if taskListName == "" {
		taskListName = "prd.json"
	}
	var buf strings.Builder
	// The template is static and the data is plain strings, so execution cannot fail.
	_ = promptTmpl.Execute(&buf, promptData{
		TaskList:    taskListName,
		ProgressLog: reconcile.ProgressFile,
		Marker:      CompletionMarker,
	})
	return buf.String()
}
