package main

import (
	"context"
	"io"
	"path/filepath"

	"github.com/metalagman/ralph/internal/agent"
	"github.com/metalagman/ralph/internal/config"
	"github.com/metalagman/ralph/internal/db"
	"github.com/metalagman/ralph/internal/run"
	"github.com/rs/zerolog/log"
	"go.uber.org/fx"
)

type runOptions struct {
	TaskListPath string
	Output       string
	NoHistory    bool
	Out          io.Writer
	ErrOut       io.Writer
}

type historyParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Options   runOptions
}

type runnerParams struct {
	fx.In

	Config  config.Config
	Checker agent.Checker
	Printer run.Printer
	History run.History
}

// newRunApp assembles a runner for one invocation of the run command.
func newRunApp(opts runOptions, target **run.Runner) *fx.App {
	return fx.New(
		fx.NopLogger,
		fx.Supply(opts),
		fx.Provide(
			func() (config.Config, error) { return loadConfig() },
			func() agent.Checker { return agent.ProbeChecker{} },
			func(o runOptions) (run.Printer, error) { return run.NewPrinter(o.Output, o.Out, o.ErrOut) },
			provideHistory,
			newRunner,
		),
		fx.Populate(target),
	)
}

// provideHistory opens the history store next to the task list. A missing run
// directory or an unusable database disables history without failing the run.
func provideHistory(p historyParams) run.History {
	if p.Options.NoHistory {
		return nil
	}
	runDir := filepath.Dir(p.Options.TaskListPath)
	storeDB, closeFn, err := openHistory(runDir)
	if err != nil {
		log.Debug().Err(err).Msg("run history disabled")
		return nil
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeFn()
			return nil
		},
	})
	return db.NewStore(storeDB)
}

func newRunner(p runnerParams) *run.Runner {
	return &run.Runner{
		Config:  p.Config,
		Checker: p.Checker,
		Printer: p.Printer,
		History: p.History,
	}
}
