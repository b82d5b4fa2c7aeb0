package cli

import (
	"context"
	"errors"

	"github.com/specialistvlad/droidbuild/internal/buildctx"
	"github.com/specialistvlad/droidbuild/internal/dag"
	"github.com/specialistvlad/droidbuild/internal/extcmd"
)

// Exit codes.
const (
	Success     = 0
	Failure     = 1
	UsageError  = 2
	ConfigError = 3
	GraphError  = 4
	Interrupted = 130
)

// ExitError is an error that carries the process exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error { return e.Err }

// ExitCode classifies err. A failing external tool's own exit code is
// propagated when it has one.
func ExitCode(err error) int {
	if err == nil {
		return Success
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return Interrupted
	}
	if errors.Is(err, dag.ErrUnknownTask) {
		return UsageError
	}
	if errors.Is(err, buildctx.ErrConfig) {
		return ConfigError
	}
	var graphErr *dag.GraphError
	if errors.As(err, &graphErr) {
		return GraphError
	}
	var cmdErr *extcmd.Error
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}
	return Failure
}

// asExitError wraps err with its exit code, leaving nil and existing
// ExitErrors alone.
func asExitError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return &ExitError{Code: ExitCode(err), Message: err.Error(), Err: err}
}
