// Package run implements the ralph iteration loop.
//
// A run resolves the agent CLI, reconciles the run directory with the task
// list's branch, then invokes the agent repeatedly until it prints the
// completion marker, the iteration budget is spent, or the operator interrupts.
package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/metalagman/ralph/internal/agent"
	"github.com/metalagman/ralph/internal/config"
	"github.com/metalagman/ralph/internal/db"
	"github.com/metalagman/ralph/internal/prd"
	"github.com/metalagman/ralph/internal/reconcile"
	"github.com/rs/zerolog/log"
)

// ErrLegacyLayout is returned while run files still sit in the project root.
var ErrLegacyLayout = errors.New("legacy files detected")

// Outcome is the terminal condition of a run.
type Outcome string

const (
	OutcomeCompleted   Outcome = "completed"
	OutcomeInterrupted Outcome = "interrupted"
	OutcomeExhausted   Outcome = "exhausted"
	OutcomeNothingToDo Outcome = "nothing_to_do"
	outcomeFailed      Outcome = "failed"
)

// Request is what the caller asks a run to do.
type Request struct {
	// Tool is a known agent name, a custom command, or "auto".
	Tool string
	// MaxIterations overrides the configured budget when positive.
	MaxIterations int
	// TaskListPath locates prd.json; its directory is the run directory.
	TaskListPath string
	// LegacyRoot, when set, is checked for a root-level prd.json that was never migrated.
	LegacyRoot string
}

// Summary describes a finished run.
type Summary struct {
	RunID            string
	Project          string
	Branch           string
	Tool             string
	Iterations       int
	MaxIterations    int
	Outcome          Outcome
	StoriesCompleted int
	StoriesTotal     int
	// CountsStale is set when the task list could not be reloaded after the loop.
	CountsStale bool
	Archive     reconcile.Result
	Duration    time.Duration
}

// IterationRunner executes a single agent invocation.
type IterationRunner interface {
	RunIteration(ctx context.Context, cmd agent.Command, dir string) (IterationResult, error)
}

// History persists run records. Failures are logged and never stop a run.
type History interface {
	CreateRun(ctx context.Context, start db.RunStart) (string, error)
	RecordIteration(ctx context.Context, rec db.IterationRecord) error
	FinishRun(ctx context.Context, runID string, fin db.RunFinish) error
}

// Runner drives the iteration loop.
type Runner struct {
	Config  config.Config
	Checker agent.Checker
	Printer Printer
	// History is optional.
	History History
	// Iterations defaults to a Supervisor feeding the embedded prompt.
	Iterations IterationRunner
	Now        func() time.Time
}

// Execute performs a run. Cancellation of ctx ends the run with OutcomeInterrupted
// and a nil error; configuration, archival and spawn failures are returned as errors.
func (r *Runner) Execute(ctx context.Context, req Request) (*Summary, error) {
	started := r.now()

	maxIterations := req.MaxIterations
	if maxIterations <= 0 {
		maxIterations = r.Config.MaxIterations
	}
	if maxIterations <= 0 {
		maxIterations = config.DefaultMaxIterations
	}

	taskList := req.TaskListPath
	if taskList == "" {
		taskList = filepath.Join("ralph", prd.FileName)
	}
	runDir := filepath.Dir(taskList)

	if req.LegacyRoot != "" && reconcile.HasLegacyLayout(req.LegacyRoot, runDir) {
		return nil, fmt.Errorf("%w: found prd.json in %s; run 'ralph migrate' to move it into %s", ErrLegacyLayout, req.LegacyRoot, runDir)
	}
	info, err := os.Stat(runDir)
	if err != nil {
		return nil, fmt.Errorf("run directory %s not found, run 'ralph init' first: %w", runDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("run directory %s is not a directory", runDir)
	}

	doc, err := prd.Load(taskList)
	if err != nil {
		return nil, fmt.Errorf("load prd %s: %w", taskList, err)
	}

	checker := r.Checker
	if checker == nil {
		checker = agent.ProbeChecker{}
	}
	cmd, err := agent.Resolve(req.Tool, r.Config.DefaultTool, checker, r.Config.ExtraArgs...)
	if err != nil {
		return nil, err
	}

	printer := r.printer()
	printer.Header(Header{
		Project:   doc.Project,
		Branch:    doc.BranchName,
		Tool:      cmd.String(),
		Completed: doc.Completed(),
		Total:     doc.Total(),
	})

	summary := &Summary{
		Project:          doc.Project,
		Branch:           doc.BranchName,
		Tool:             cmd.Name,
		MaxIterations:    maxIterations,
		StoriesCompleted: doc.Completed(),
		StoriesTotal:     doc.Total(),
	}
	defer func() { summary.Duration = r.now().Sub(started) }()

	if doc.Pending() == 0 {
		printer.Notice("All stories are complete!")
		summary.Outcome = OutcomeNothingToDo
		return summary, nil
	}

	lock, err := TryAcquireRunLock(runDir)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			log.Warn().Err(err).Str("dir", runDir).Msg("failed to release run lock")
		}
	}()

	archiver := &reconcile.Archiver{
		Dir:          runDir,
		TaskListPath: taskList,
		Disabled:     !r.Config.AutoArchive,
		Now:          r.Now,
	}
	archived, err := archiver.Run(doc.BranchName)
	if err != nil {
		return nil, fmt.Errorf("archive previous run: %w", err)
	}
	summary.Archive = archived
	if archived.Archived {
		printer.Archived(archived.PreviousBranch, archived.ArchivePath)
	}
	if err := reconcile.EnsureProgressLog(runDir, r.now()); err != nil {
		return nil, fmt.Errorf("init progress log: %w", err)
	}

	runID := r.startHistory(ctx, db.RunStart{
		RunDir:        runDir,
		Branch:        doc.BranchName,
		Tool:          cmd.Name,
		MaxIterations: maxIterations,
		StoriesTotal:  doc.Total(),
		Completed:     doc.Completed(),
	})
	summary.RunID = runID

	iterations := r.Iterations
	if iterations == nil {
		iterations = &Supervisor{Prompt: BuildPrompt(filepath.Base(taskList)), Sink: printer}
	}

	summary.Outcome = OutcomeExhausted
	for i := 1; i <= maxIterations; i++ {
		if ctx.Err() != nil {
			summary.Outcome = OutcomeInterrupted
			break
		}
		printer.IterationStart(i, maxIterations)
		iterStarted := r.now()
		res, err := iterations.RunIteration(ctx, cmd, runDir)
		if err != nil {
			summary.Outcome = outcomeFailed
			r.finishHistory(ctx, summary)
			return nil, err
		}
		summary.Iterations = i
		log.Debug().
			Int("iteration", i).
			Str("tool", cmd.Name).
			Int("exit_code", res.ExitCode).
			Bool("completed", res.Completed).
			Bool("cancelled", res.Cancelled).
			Dur("duration", res.Duration).
			Msg("iteration finished")
		r.recordIteration(ctx, db.IterationRecord{
			RunID:     runID,
			Iteration: i,
			StartedAt: iterStarted,
			EndedAt:   r.now(),
			ExitCode:  res.ExitCode,
			Completed: res.Completed,
			Cancelled: res.Cancelled,
		})

		if res.Failed() {
			printer.Warning(fmt.Sprintf("Warning: %s exited with status: %d", cmd.Name, res.ExitCode))
		}
		if res.Completed {
			printer.Completion()
			summary.Outcome = OutcomeCompleted
			break
		}
		if res.Cancelled {
			summary.Outcome = OutcomeInterrupted
			break
		}
	}

	if reloaded, err := prd.Load(taskList); err != nil {
		log.Warn().Err(err).Str("path", taskList).Msg("failed to reload prd, reporting counts from start of run")
		summary.CountsStale = true
	} else {
		summary.StoriesCompleted = reloaded.Completed()
		summary.StoriesTotal = reloaded.Total()
	}

	r.finishHistory(ctx, summary)
	summary.Duration = r.now().Sub(started)
	printer.Summary(summary)
	return summary, nil
}

func (r *Runner) printer() Printer {
	if r.Printer != nil {
		return r.Printer
	}
	return NewJSONPrinter(io.Discard)
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) startHistory(ctx context.Context, start db.RunStart) string {
	if r.History == nil {
		return ""
	}
	runID, err := r.History.CreateRun(context.WithoutCancel(ctx), start)
	if err != nil {
		log.Warn().Err(err).Msg("failed to record run start")
		return ""
	}
	return runID
}

func (r *Runner) recordIteration(ctx context.Context, rec db.IterationRecord) {
	if r.History == nil || rec.RunID == "" {
		return
	}
	if err := r.History.RecordIteration(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn().Err(err).Int("iteration", rec.Iteration).Msg("failed to record iteration")
	}
}

func (r *Runner) finishHistory(ctx context.Context, s *Summary) {
	if r.History == nil || s.RunID == "" {
		return
	}
	err := r.History.FinishRun(context.WithoutCancel(ctx), s.RunID, db.RunFinish{
		Iterations:       s.Iterations,
		Outcome:          string(s.Outcome),
		StoriesCompleted: s.StoriesCompleted,
		StoriesTotal:     s.StoriesTotal,
	})
	if err != nil {
		log.Warn().Err(err).Str("run_id", s.RunID).Msg("failed to record run finish")
	}
}
