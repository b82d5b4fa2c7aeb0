// Package task defines the unit of work scheduled by the build graph: a named
// task with declared dependencies, a deferred action and an execution status.
package task

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/specialistvlad/droidbuild/internal/buildctx"
	"github.com/specialistvlad/droidbuild/internal/ctxlog"
	"github.com/specialistvlad/droidbuild/internal/extcmd"
)

// Status represents the execution state of a task within a run.
type Status int32

const (
	// Pending indicates the task has not been considered yet in this run.
	Pending Status = iota
	// Running indicates the task's action is executing.
	Running
	// Succeeded indicates the action returned without error.
	Succeeded
	// Failed indicates the action returned an error.
	Failed
	// Skipped indicates the task was never run because an upstream task failed.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("status(%d)", int32(s))
	}
}

// Terminal reports whether the status is final for a run.
func (s Status) Terminal() bool {
	return s == Succeeded || s == Failed || s == Skipped
}

// Action is the deferred body of a task. It receives the read-only build
// context of the current run.
type Action interface {
	Execute(ctx context.Context, bc *buildctx.Context) error
}

// Func adapts an in-process function to the Action interface.
type Func func(ctx context.Context, bc *buildctx.Context) error

// Execute calls f.
func (f Func) Execute(ctx context.Context, bc *buildctx.Context) error {
	return f(ctx, bc)
}

// Commands is an Action made of external tool invocations. The command list
// is built from the build context when the task runs, then each command is
// executed in order. The first failing command stops the sequence.
type Commands func(bc *buildctx.Context) ([]extcmd.Command, error)

// Execute builds the command list and runs it through the context's executor.
func (c Commands) Execute(ctx context.Context, bc *buildctx.Context) error {
	cmds, err := c(bc)
	if err != nil {
		return err
	}
	for _, cmd := range cmds {
		if _, err := Run(ctx, bc, cmd); err != nil {
			return err
		}
	}
	return nil
}

// Run executes a single command through the context's executor. Actions that
// need to inspect a tool's output call it directly.
func Run(ctx context.Context, bc *buildctx.Context, cmd extcmd.Command) (*extcmd.Result, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Running external command.", "command", cmd.String())

	res, err := bc.Executor().Run(ctx, cmd)
	if err != nil {
		return res, err
	}
	if len(res.Stdout) > 0 {
		logger.Debug("External command output.", "tool", cmd.Name(), "stdout", string(res.Stdout))
	}
	return res, nil
}

// Task is a single vertex in the build graph.
type Task struct {
	// Name is the unique identifier used on the command line and in depends-on lists.
	Name string
	// Description is shown by the task listing.
	Description string
	// DependsOn lists upstream task names in declaration order.
	DependsOn []string
	// Action is executed by the runner once every dependency succeeded.
	Action Action

	// state is the task's current execution status, managed atomically so
	// that read-only tooling can observe a running build.
	state atomic.Int32
}

// New creates a pending task.
func New(name, description string, action Action, dependsOn ...string) *Task {
	return &Task{
		Name:        name,
		Description: description,
		DependsOn:   dependsOn,
		Action:      action,
	}
}

// SetStatus atomically sets the task's execution status.
func (t *Task) SetStatus(s Status) {
	t.state.Store(int32(s))
}

// Status atomically retrieves the task's execution status.
func (t *Task) Status() Status {
	return Status(t.state.Load())
}
