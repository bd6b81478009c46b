package run

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Header is shown once before the loop starts.
type Header struct {
	Project   string
	Branch    string
	Tool      string
	Completed int
	Total     int
}

// Printer renders run progress for the operator.
// Implementations must be safe for concurrent use.
type Printer interface {
	Sink
	Header(Header)
	Notice(msg string)
	Warning(msg string)
	Archived(previousBranch, dest string)
	IterationStart(iteration, maxIterations int)
	Completion()
	Summary(*Summary)
}

// NewPrinter returns the printer for format ("text" or "jsonl").
func NewPrinter(format string, out, errOut io.Writer) (Printer, error) {
	switch format {
	case "", "text":
		return NewConsolePrinter(out, errOut), nil
	case "jsonl":
		return NewJSONPrinter(out), nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// ConsolePrinter writes colored human-readable output.
type ConsolePrinter struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer

	title    lipgloss.Style
	accent   lipgloss.Style
	bold     lipgloss.Style
	dim      lipgloss.Style
	errStyle lipgloss.Style
	warn     lipgloss.Style
	success  lipgloss.Style
	complete lipgloss.Style
	stderr   lipgloss.Style
}

// NewConsolePrinter styles output according to the capabilities of out.
func NewConsolePrinter(out, errOut io.Writer) *ConsolePrinter {
	r := lipgloss.NewRenderer(out)
	er := lipgloss.NewRenderer(errOut)
	return &ConsolePrinter{
		out:      out,
		errOut:   errOut,
		title:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		accent:   r.NewStyle().Foreground(lipgloss.Color("6")),
		bold:     r.NewStyle().Bold(true),
		dim:      r.NewStyle().Faint(true),
		errStyle: r.NewStyle().Foreground(lipgloss.Color("1")),
		warn:     r.NewStyle().Foreground(lipgloss.Color("3")),
		success:  r.NewStyle().Foreground(lipgloss.Color("2")),
		complete: r.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		stderr:   er.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func (p *ConsolePrinter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

// Header prints the run banner.
func (p *ConsolePrinter) Header(h Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("%s\n%s\n\n", p.title.Render("Ralph Task Runner"), p.accent.Render("================="))
	p.printf("Project: %s\n", p.bold.Render(h.Project))
	p.printf("Branch: %s\n", p.accent.Render(h.Branch))
	p.printf("Tool: %s\n\n", p.accent.Render(h.Tool))
	p.printf("Progress: %s/%d stories completed\n\n", p.success.Render(fmt.Sprint(h.Completed)), h.Total)
}

// Notice prints an informational message.
func (p *ConsolePrinter) Notice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("%s\n", p.success.Bold(true).Render(msg))
}

// Warning prints a non-fatal problem.
func (p *ConsolePrinter) Warning(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("%s\n", p.warn.Render(msg))
}

// Archived reports where the previous run was archived.
func (p *ConsolePrinter) Archived(previousBranch, dest string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("Archiving previous run: %s -> %s\n", p.accent.Render(previousBranch), dest)
}

// IterationStart prints the iteration separator.
func (p *ConsolePrinter) IterationStart(iteration, maxIterations int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\n%s %d / %d\n%s\n", p.bold.Render("Iteration"), iteration, maxIterations, p.dim.Render(strings.Repeat("-", 40)))
}

// Line prints one agent line, routing stderr lines to the error writer.
func (p *ConsolePrinter) Line(l Line) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l.Stream == StreamStderr {
		_, _ = fmt.Fprintln(p.errOut, p.stderr.Render(l.Text))
		return
	}
	text := l.Text
	switch l.Class {
	case ClassError:
		text = p.errStyle.Render(text)
	case ClassWarning:
		text = p.warn.Render(text)
	case ClassSuccess:
		text = p.success.Render(text)
	case ClassComplete:
		text = p.complete.Render(text)
	}
	p.printf("%s\n", text)
}

// Completion announces that the agent printed the completion marker.
func (p *ConsolePrinter) Completion() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printf("\n%s\n", p.complete.Render("✓ Agent signaled completion!"))
}

// Summary prints the end-of-run report.
func (p *ConsolePrinter) Summary(s *Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rule := p.accent.Render("=================")
	p.printf("\n%s\n%s\n%s\n", rule, p.title.Render("Run Summary"), rule)
	p.printf("Iterations: %d/%d\n", s.Iterations, s.MaxIterations)
	stale := ""
	if s.CountsStale {
		stale = p.dim.Render(" (from start of run)")
	}
	p.printf("Stories completed: %d/%d%s\n", s.StoriesCompleted, s.StoriesTotal, stale)
	p.printf("Duration: %s\n", s.Duration.Round(time.Second))
	switch s.Outcome {
	case OutcomeInterrupted:
		p.printf("%s\n", p.warn.Render("Run interrupted by user"))
	case OutcomeExhausted:
		p.printf("%s\n", p.warn.Render("Maximum iterations reached"))
	case OutcomeCompleted:
		p.printf("%s\n", p.success.Render("All stories reported complete"))
	}
}

// JSONPrinter emits one JSON object per event.
type JSONPrinter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONPrinter writes JSON Lines to out.
func NewJSONPrinter(out io.Writer) *JSONPrinter {
	return &JSONPrinter{enc: json.NewEncoder(out)}
}

func (p *JSONPrinter) writeJSON(v map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.enc.Encode(v)
}

// Header emits a start event.
func (p *JSONPrinter) Header(h Header) {
	p.writeJSON(map[string]any{
		"type":              "start",
		"project":           h.Project,
		"branch":            h.Branch,
		"tool":              h.Tool,
		"stories_completed": h.Completed,
		"stories_total":     h.Total,
	})
}

// Notice emits a notice event.
func (p *JSONPrinter) Notice(msg string) {
	p.writeJSON(map[string]any{"type": "notice", "message": msg})
}

// Warning emits a warning event.
func (p *JSONPrinter) Warning(msg string) {
	p.writeJSON(map[string]any{"type": "warning", "message": msg})
}

// Archived emits an archive event.
func (p *JSONPrinter) Archived(previousBranch, dest string) {
	p.writeJSON(map[string]any{"type": "archive", "previous_branch": previousBranch, "path": dest})
}

// IterationStart emits an iteration event.
func (p *JSONPrinter) IterationStart(iteration, maxIterations int) {
	p.writeJSON(map[string]any{"type": "iteration", "iteration": iteration, "max_iterations": maxIterations})
}

// Line emits a line event.
func (p *JSONPrinter) Line(l Line) {
	p.writeJSON(map[string]any{"type": "line", "stream": l.Stream.String(), "class": l.Class.String(), "text": l.Text})
}

// Completion emits a complete event.
func (p *JSONPrinter) Completion() {
	p.writeJSON(map[string]any{"type": "complete"})
}

// Summary emits the summary event.
func (p *JSONPrinter) Summary(s *Summary) {
	p.writeJSON(map[string]any{
		"type":              "summary",
		"run_id":            s.RunID,
		"outcome":           string(s.Outcome),
		"iterations":        s.Iterations,
		"max_iterations":    s.MaxIterations,
		"stories_completed": s.StoriesCompleted,
		"stories_total":     s.StoriesTotal,
		"counts_stale":      s.CountsStale,
		"duration_ms":       s.Duration.Milliseconds(),
	})
}
