package run

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeScript writes an executable sh script and returns its path.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

// writePRD writes a task list with one story per entry of passes.
func writePRD(t *testing.T, dir, branch string, passes ...bool) string {
	t.Helper()
	stories := make([]string, 0, len(passes))
	for i, p := range passes {
		stories = append(stories, fmt.Sprintf(
			`{"id": "US-%03d", "title": "Story %d", "description": "d", "acceptanceCriteria": [], "priority": %d, "passes": %t, "notes": ""}`,
			i+1, i+1, i+1, p))
	}
	content := fmt.Sprintf(`{"project": "Demo", "branchName": %q, "description": "demo", "userStories": [%s]}`,
		branch, strings.Join(stories, ","))
	path := filepath.Join(dir, "prd.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// counterAgent counts invocations in ./count and prints the marker on iteration markAt (0 = never).
func counterAgent(t *testing.T, dir string, markAt int, extra string) string {
	t.Helper()
	return writeScript(t, dir, "agent.sh", fmt.Sprintf(`cat > /dev/null
n=$(cat count 2>/dev/null || echo 0)
n=$((n+1))
echo "$n" > count
echo "iteration $n"
if [ "$n" -eq %d ]; then
  %s
  echo "<promise>COMPLETE</promise> done"
fi
`, markAt, nonEmpty(extra)))
}

func nonEmpty(cmd string) string {
	if cmd == "" {
		return ":"
	}
	return cmd
}

func readCount(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "count"))
	if os.IsNotExist(err) {
		return "0"
	}
	require.NoError(t, err)
	return strings.TrimSpace(string(data))
}

// recordingPrinter captures everything a run prints.
type recordingPrinter struct {
	mu       sync.Mutex
	lines    []Line
	warnings []string
	notices  []string
	archived []string
	iters    []int
	complete int
	summary  *Summary
	onLine   func(Line)
}

func (p *recordingPrinter) Line(l Line) {
	p.mu.Lock()
	p.lines = append(p.lines, l)
	cb := p.onLine
	p.mu.Unlock()
	if cb != nil {
		cb(l)
	}
}

func (p *recordingPrinter) Header(Header) {}

func (p *recordingPrinter) Notice(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, msg)
}

func (p *recordingPrinter) Warning(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warnings = append(p.warnings, msg)
}

func (p *recordingPrinter) Archived(previousBranch, dest string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.archived = append(p.archived, previousBranch+" -> "+dest)
}

func (p *recordingPrinter) IterationStart(iteration, _ int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.iters = append(p.iters, iteration)
}

func (p *recordingPrinter) Completion() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.complete++
}

func (p *recordingPrinter) Summary(s *Summary) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.summary = s
}

// collectSink records lines for multiplexer and supervisor tests.
type collectSink struct {
	mu     sync.Mutex
	lines  []Line
	onLine func(Line)
}

func (s *collectSink) Line(l Line) {
	s.mu.Lock()
	s.lines = append(s.lines, l)
	s.mu.Unlock()
	if s.onLine != nil {
		s.onLine(l)
	}
}

func (s *collectSink) texts(stream Stream) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, l := range s.lines {
		if l.Stream == stream {
			out = append(out, l.Text)
		}
	}
	return out
}
