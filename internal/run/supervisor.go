package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/metalagman/ralph/internal/agent"
	"github.com/rs/zerolog/log"
)

// ErrSpawn marks an agent that could not be started at all.
var ErrSpawn = errors.New("failed to spawn agent")

// DefaultWaitDelay bounds how long a terminated agent may keep its pipes open.
const DefaultWaitDelay = 5 * time.Second

// IterationResult is the outcome of a single agent invocation.
type IterationResult struct {
	Completed bool
	Cancelled bool
	ExitCode  int
	Duration  time.Duration
}

// Failed reports a non-zero exit that was not caused by cancellation.
func (r IterationResult) Failed() bool {
	return !r.Cancelled && r.ExitCode != 0
}

// Supervisor runs one agent process per iteration.
type Supervisor struct {
	Prompt    string
	Sink      Sink
	WaitDelay time.Duration
}

// RunIteration spawns cmd in dir, feeds it the prompt and consumes its output.
// Cancellation of ctx sends SIGTERM to the agent and yields Cancelled rather
// than an error. Only a failure to start, or to reap, the agent is an error.
func (s *Supervisor) RunIteration(ctx context.Context, cmd agent.Command, dir string) (IterationResult, error) {
	started := time.Now()
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = dir
	c.Cancel = func() error {
		return c.Process.Signal(syscall.SIGTERM)
	}
	c.WaitDelay = s.WaitDelay
	if c.WaitDelay <= 0 {
		c.WaitDelay = DefaultWaitDelay
	}

	stdin, err := c.StdinPipe()
	if err != nil {
		return IterationResult{}, fmt.Errorf("open agent stdin: %w", err)
	}
	stdout, err := c.StdoutPipe()
	if err != nil {
		return IterationResult{}, fmt.Errorf("open agent stdout: %w", err)
	}
	stderr, err := c.StderrPipe()
	if err != nil {
		return IterationResult{}, fmt.Errorf("open agent stderr: %w", err)
	}

	if err := c.Start(); err != nil {
		if ctx.Err() != nil {
			return IterationResult{Cancelled: true, ExitCode: -1, Duration: time.Since(started)}, nil
		}
		return IterationResult{}, fmt.Errorf("%w %s: %w", ErrSpawn, cmd.Name, err)
	}
	log.Debug().Str("cmd", cmd.Name).Strs("args", cmd.Args).Int("pid", c.Process.Pid).Str("dir", dir).Msg("agent started")

	go writePrompt(stdin, s.Prompt)

	sink := s.Sink
	if sink == nil {
		sink = discardSink{}
	}
	streamed := Multiplex(ctx, stdout, stderr, sink)
	waitErr := c.Wait()

	res := IterationResult{
		Completed: streamed.MarkerSeen,
		Cancelled: streamed.Cancelled || ctx.Err() != nil,
		ExitCode:  c.ProcessState.ExitCode(),
		Duration:  time.Since(started),
	}
	if res.Cancelled {
		log.Debug().Str("cmd", cmd.Name).Err(waitErr).Msg("agent terminated after interrupt")
		return res, nil
	}

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		log.Warn().Str("cmd", cmd.Name).Int("exit_code", res.ExitCode).Dur("duration", res.Duration).Msg("agent exited with failure status")
	case errors.Is(waitErr, exec.ErrWaitDelay):
		log.Warn().Str("cmd", cmd.Name).Msg("agent left output pipes open after exit")
	default:
		return res, fmt.Errorf("wait for agent %s: %w", cmd.Name, waitErr)
	}
	return res, nil
}

func writePrompt(stdin io.WriteCloser, prompt string) {
	defer func() { _ = stdin.Close() }()
	if _, err := io.WriteString(stdin, prompt); err != nil {
		log.Warn().Err(err).Msg("failed to write prompt to agent stdin")
	}
}

type discardSink struct{}

func (discardSink) Line(Line) {}
