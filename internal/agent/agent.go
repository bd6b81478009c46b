// Package agent resolves which external agent CLI a run invokes and how.
package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kballard/go-shellquote"
)

// Auto asks the resolver to pick an installed agent.
const Auto = "auto"

// ErrNoAgent is returned when auto-detection finds no installed agent.
var ErrNoAgent = errors.New("no AI agent CLI detected. Please install Amp, Claude Code, or CodeBuddy")

// Command is a fully resolved agent invocation.
type Command struct {
	Name string
	Args []string
}

// String renders the command line for display.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Builtin describes an agent CLI ralph knows how to drive.
type Builtin struct {
	Name        string
	DisplayName string
	extraFlags  []string
}

type agentSpec struct {
	displayName string
	extraFlags  []string
}

var agentSpecs = map[string]agentSpec{
	"amp": {
		displayName: "Amp",
		extraFlags:  []string{"--dangerously-allow-all"},
	},
	"claude": {
		displayName: "Claude Code",
		extraFlags:  []string{"--dangerously-skip-permissions", "--print"},
	},
	"codebuddy": {
		displayName: "CodeBuddy",
		extraFlags:  []string{"-p", "--dangerously-skip-permissions", "--tools", "default"},
	},
}

// detectionOrder is the fixed priority used by auto-detection.
var detectionOrder = []string{"amp", "claude", "codebuddy"}

// Builtins returns the known agents in detection priority order.
func Builtins() []Builtin {
	out := make([]Builtin, 0, len(detectionOrder))
	for _, name := range detectionOrder {
		spec := agentSpecs[name]
		out = append(out, Builtin{Name: name, DisplayName: spec.displayName, extraFlags: spec.extraFlags})
	}
	return out
}

// IsBuiltin reports whether name is one of the known agents.
func IsBuiltin(name string) bool {
	_, ok := agentSpecs[name]
	return ok
}

// DisplayName returns the human name for a known agent, or name itself.
func DisplayName(name string) string {
	if spec, ok := agentSpecs[name]; ok {
		return spec.displayName
	}
	return name
}

// Resolve turns the requested tool into a command.
//
// An explicit known agent wins over configuration. "auto" (or "") prefers
// configuredDefault when it is available and otherwise falls back to the first
// detected agent. Any other value is a command line split with shell quoting
// rules, so "aider --yes" runs aider with --yes; whether the binary exists is
// only discovered at spawn time.
func Resolve(requested, configuredDefault string, checker Checker, extraArgs ...string) (Command, error) {
	requested = strings.TrimSpace(requested)
	name := requested
	if requested == "" || requested == Auto {
		var err error
		name, err = autoSelect(strings.TrimSpace(configuredDefault), checker)
		if err != nil {
			return Command{}, err
		}
	}
	return prepareCmd(name, extraArgs)
}

func autoSelect(configuredDefault string, checker Checker) (string, error) {
	if configuredDefault != "" && configuredDefault != Auto {
		if words, err := shellquote.Split(configuredDefault); err == nil && len(words) > 0 && checker.Available(words[0]) {
			return configuredDefault, nil
		}
	}
	for _, name := range detectionOrder {
		if checker.Available(name) {
			return name, nil
		}
	}
	return "", ErrNoAgent
}

// prepareCmd splits a custom command line with shell quoting rules; built-in
// names get their fixed flags.
func prepareCmd(name string, extraArgs []string) (Command, error) {
	if spec, ok := agentSpecs[name]; ok {
		out := Command{Name: name, Args: append([]string{}, spec.extraFlags...)}
		out.Args = append(out.Args, extraArgs...)
		return out, nil
	}
	words, err := shellquote.Split(name)
	if err != nil {
		return Command{}, fmt.Errorf("parse agent command %q: %w", name, err)
	}
	if len(words) == 0 {
		return Command{}, fmt.Errorf("empty agent command")
	}
	out := Command{Name: words[0]}
	out.Args = append(out.Args, words[1:]...)
	out.Args = append(out.Args, extraArgs...)
	return out, nil
}

// Detection is the installation status of one known agent.
type Detection struct {
	Builtin
	Installed bool
}

// Detect probes every known agent in priority order.
func Detect(checker Checker) []Detection {
	builtins := Builtins()
	out := make([]Detection, 0, len(builtins))
	for _, b := range builtins {
		out = append(out, Detection{Builtin: b, Installed: checker.Available(b.Name)})
	}
	return out
}

// Flags returns the fixed arguments of a known agent.
func (b Builtin) Flags() []string {
	return append([]string(nil), b.extraFlags...)
}
