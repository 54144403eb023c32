package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/imgopt/internal/term"
)

// Logger is the minimal logging interface needed by the processor. Defined
// here so batch stays testable with a recording logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(string, ...interface{})
}

// Batch describes one stage: the files to process and how to build the task
// for each of them.
type Batch struct {
	Kind           string // Plural noun for the completion line, e.g. "thumbnails".
	Files          []string
	NoFilesMessage string
	Build          func(path string) Task
}

// Result holds the aggregate counts of one or more batches.
// Invariant: Succeeded+Failed == Attempted and Skipped <= Succeeded.
type Result struct {
	Attempted int
	Succeeded int // Includes Skipped.
	Skipped   int
	Failed    int
}

// Add returns the element-wise sum of r and o.
func (r Result) Add(o Result) Result {
	return Result{
		Attempted: r.Attempted + o.Attempted,
		Succeeded: r.Succeeded + o.Succeeded,
		Skipped:   r.Skipped + o.Skipped,
		Failed:    r.Failed + o.Failed,
	}
}

// OK reports whether every attempted task succeeded.
func (r Result) OK() bool { return r.Succeeded == r.Attempted }

type outcome int

const (
	outcomeSucceeded outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Processor runs batches with bounded parallelism.
type Processor struct {
	Runner  Runner
	Workers int // <= 0 means runtime.NumCPU().
	Log     Logger
}

// NewProcessor returns a Processor using runner for every command.
func NewProcessor(runner Runner, workers int, log Logger) *Processor {
	return &Processor{Runner: runner, Workers: workers, Log: log}
}

func (p *Processor) workers() int {
	if p.Workers > 0 {
		return p.Workers
	}
	return runtime.NumCPU()
}

// Run executes b.Build(path) for every file and returns the counts. An
// empty file list logs b.NoFilesMessage and returns the zero Result.
//
// Cancelling ctx does not stop a batch that has started: every task is
// dispatched and in-flight commands are left to finish. Callers check ctx
// between batches.
func (p *Processor) Run(ctx context.Context, b Batch) Result {
	if len(b.Files) == 0 {
		p.Log.Info("%s", term.Yellow(b.NoFilesMessage))
		return Result{}
	}

	ctx = context.WithoutCancel(ctx)
	outcomes := make([]outcome, len(b.Files))

	var g errgroup.Group
	g.SetLimit(p.workers())
	for i, path := range b.Files {
		g.Go(func() error {
			outcomes[i] = p.runTask(ctx, b.Build(path))
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors; failures are outcomes

	res := tally(outcomes)
	line := fmt.Sprintf("Completed converting %d/%d %s", res.Succeeded, res.Attempted, b.Kind)
	if res.OK() {
		p.Log.Info("%s", term.Green(line))
	} else {
		p.Log.Info("%s", term.Yellow(line))
	}
	return res
}

// runTask applies the skip predicate, then the command sequence, then
// cleanup on failure.
func (p *Processor) runTask(ctx context.Context, t Task) outcome {
	name := filepath.Base(t.Source)

	if t.Skip != nil && t.Skip() {
		p.Log.Debug("%s", term.Gray("Skipping "+t.SkipReason+": "+name))
		return outcomeSkipped
	}

	var err error
	if t.Prepare != nil {
		err = t.Prepare()
	}
	if err == nil {
		for _, cmd := range t.Commands {
			p.Log.Debug("%s", term.Gray("$ "+cmd.String()))
			if err = p.Runner.Run(ctx, cmd); err != nil {
				break
			}
		}
	}

	if err == nil {
		p.Log.Info("%s: %s %s %s", term.Green(t.SuccessMessage), name, term.Magenta("->"), filepath.Base(t.Dest))
		return outcomeSucceeded
	}

	p.Log.Error("%s: %s", term.Red(t.FailMessage), name)
	p.Log.Debug("  %v", err)
	if t.Cleanup != nil && Exists(t.Dest) {
		if cerr := t.Cleanup(); cerr != nil {
			p.Log.Warn("Cleanup failed for %s: %v", t.Dest, cerr)
		}
	}
	return outcomeFailed
}

func tally(outcomes []outcome) Result {
	res := Result{Attempted: len(outcomes)}
	for _, o := range outcomes {
		switch o {
		case outcomeSucceeded:
			res.Succeeded++
		case outcomeSkipped:
			res.Succeeded++
			res.Skipped++
		case outcomeFailed:
			res.Failed++
		}
	}
	return res
}
