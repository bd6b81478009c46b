package agent

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultProbeTimeout bounds a single presence probe.
const DefaultProbeTimeout = 5 * time.Second

// Checker reports whether an executable can be launched.
type Checker interface {
	Available(name string) bool
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(name string) bool

// Available implements Checker.
func (f CheckerFunc) Available(name string) bool { return f(name) }

// ProbeChecker probes a binary by running "<name> --version".
// The binary counts as present when the process launches, whatever its exit status.
type ProbeChecker struct {
	Timeout time.Duration
}

// Available implements Checker.
func (p ProbeChecker) Available(name string) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, "--version")
	err := cmd.Run()
	if err == nil {
		return true
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		log.Debug().Str("agent", name).Int("exit_code", exitErr.ExitCode()).Msg("probe exited with non-zero status")
		return true
	}
	log.Debug().Err(err).Str("agent", name).Msg("agent not found")
	return false
}
