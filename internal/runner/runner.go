// Package runner executes a closure of the build graph. Tasks run strictly
// one at a time, in topological order, on the calling goroutine: the SDK
// tools share build outputs on disk and are never run concurrently.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/droidbuild/internal/buildctx"
	"github.com/specialistvlad/droidbuild/internal/ctxlog"
	"github.com/specialistvlad/droidbuild/internal/dag"
	"github.com/specialistvlad/droidbuild/internal/task"
)

// TaskExecutionError reports the failure of a task's action. The cause is
// usually an *extcmd.Error carrying exit code and stderr.
type TaskExecutionError struct {
	Task string
	Err  error
}

func (e *TaskExecutionError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task, e.Err)
}

func (e *TaskExecutionError) Unwrap() error { return e.Err }

// Observer is notified of task transitions during a run.
type Observer interface {
	TaskStarted(name string)
	TaskFinished(name string, status task.Status, err error)
}

// Options tune a Runner.
type Options struct {
	// FailFast skips every task not yet run once a task fails. Without it
	// only the failed task's dependents are skipped and independent
	// branches still run.
	FailFast bool
	// Observer, if set, receives task transitions.
	Observer Observer
}

// Runner executes task graphs.
type Runner struct {
	opts Options
	// mu serializes runs: two builds never interleave external commands.
	mu sync.Mutex
}

// New creates a Runner.
func New(opts Options) *Runner {
	return &Runner{opts: opts}
}

// Run executes the targets and all of their transitive dependencies. Graph
// errors (unknown target) are returned before anything runs. If a task
// fails, the returned error is the first *TaskExecutionError; the Report
// always lists every task of the closure with its final status.
func (r *Runner) Run(ctx context.Context, g *dag.Graph, bc *buildctx.Context, targets ...string) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger := ctxlog.FromContext(ctx)

	order, err := g.Closure(targets...)
	if err != nil {
		return nil, err
	}

	tasks := make([]*task.Task, len(order))
	for i, name := range order {
		tasks[i], _ = g.Task(name)
		tasks[i].SetStatus(task.Pending)
	}

	report := &Report{Targets: targets, Order: order}
	logger.Info("🚀 Starting build.", "targets", targets, "tasks", len(order))

	for _, t := range tasks {
		taskLogger := logger.With("task", t.Name)

		if skipErr := r.skipReason(ctx, g, t, report); skipErr != nil {
			taskLogger.Warn("Skipping task.", "reason", skipErr)
			t.SetStatus(task.Skipped)
			report.add(Outcome{Task: t.Name, Status: task.Skipped, Err: skipErr})
			r.finished(t.Name, task.Skipped, skipErr)
			continue
		}

		t.SetStatus(task.Running)
		if r.opts.Observer != nil {
			r.opts.Observer.TaskStarted(t.Name)
		}
		taskLogger.Info("Running task.")

		start := time.Now()
		var runErr error
		if t.Action != nil {
			runErr = t.Action.Execute(ctxlog.WithLogger(ctx, taskLogger), bc)
		}
		elapsed := time.Since(start)

		if runErr != nil {
			taskLogger.Error("Task failed.", "error", runErr, "duration", elapsed)
			t.SetStatus(task.Failed)
			execErr := &TaskExecutionError{Task: t.Name, Err: runErr}
			report.add(Outcome{Task: t.Name, Status: task.Failed, Duration: elapsed, Err: execErr})
			if report.Err == nil {
				report.Err = execErr
			}
			r.finished(t.Name, task.Failed, execErr)
			continue
		}

		taskLogger.Debug("Task succeeded.", "duration", elapsed)
		t.SetStatus(task.Succeeded)
		report.add(Outcome{Task: t.Name, Status: task.Succeeded, Duration: elapsed})
		r.finished(t.Name, task.Succeeded, nil)
	}

	if report.Err == nil && ctx.Err() != nil {
		report.Err = fmt.Errorf("build interrupted: %w", ctx.Err())
	}
	if report.Err != nil {
		logger.Error("Build failed.", "error", report.Err)
		return report, report.Err
	}
	logger.Info("🏁 Build finished.", "tasks", len(order))
	return report, nil
}

// skipReason returns why t must not run, or nil if it may run.
func (r *Runner) skipReason(ctx context.Context, g *dag.Graph, t *task.Task, report *Report) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("skipped: %w", err)
	}
	if r.opts.FailFast && report.Err != nil {
		var execErr *TaskExecutionError
		if errors.As(report.Err, &execErr) {
			return fmt.Errorf("skipped due to failure of '%s' (fail-fast)", execErr.Task)
		}
	}
	deps, _ := g.Dependencies(t.Name)
	for _, d := range deps {
		switch report.Status(d) {
		case task.Failed, task.Skipped:
			return fmt.Errorf("skipped due to upstream failure of '%s'", d)
		}
	}
	return nil
}

func (r *Runner) finished(name string, status task.Status, err error) {
	if r.opts.Observer != nil {
		r.opts.Observer.TaskFinished(name, status, err)
	}
}
