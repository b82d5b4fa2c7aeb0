// Package extcmd runs external tools (aapt, dx, apkbuilder, zipalign, adb)
// with an exact argument vector and captures their output.
package extcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
)

// Command describes one external tool invocation. It is a plain value: the
// same Command can be executed any number of times.
type Command struct {
	// Path is the executable, either absolute or looked up in PATH.
	Path string
	// Args is passed to the process as-is. No shell is involved, so each
	// element reaches the tool as exactly one argument.
	Args []string
	// Dir is the working directory; empty means the current directory.
	Dir string
	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env []string
	// FailOnNonzeroExit turns a nonzero exit code into an *Error.
	FailOnNonzeroExit bool
}

// Result is the outcome of a finished process.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Error reports a command that could not be started or exited nonzero.
type Error struct {
	// Command is the rendered command line.
	Command string
	// ExitCode is the process exit code, or -1 if it never ran or was
	// killed by a signal.
	ExitCode int
	Stderr   []byte
	// Err is the start error, or the *exec.ExitError of a killed process.
	Err error
}

func (e *Error) Error() string {
	var msg string
	var exitErr *exec.ExitError
	switch {
	case errors.As(e.Err, &exitErr):
		msg = fmt.Sprintf("command %q terminated: %v", e.Command, exitErr)
	case e.Err != nil:
		return fmt.Sprintf("command %q could not be started: %v", e.Command, e.Err)
	default:
		msg = fmt.Sprintf("command %q exited with code %d", e.Command, e.ExitCode)
	}
	if stderr := strings.TrimSpace(string(e.Stderr)); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Name returns the base name of the executable, used as a short label in logs.
func (c Command) Name() string {
	return filepath.Base(c.Path)
}

var safeArg = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// String renders the command as a shell-quoted line. It is meant for logs and
// error messages; the command itself never goes through a shell.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	for _, p := range append([]string{c.Path}, c.Args...) {
		if p != "" && safeArg.MatchString(p) {
			parts = append(parts, p)
			continue
		}
		parts = append(parts, "'"+strings.ReplaceAll(p, "'", `'\''`)+"'")
	}
	return strings.Join(parts, " ")
}

// Execute spawns the process, blocks until it exits and returns its captured
// output. The context is only checked before the process starts: a started
// tool always runs to completion.
func (c Command) Execute(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	exitCode := 0
	var exitErr *exec.ExitError
	if err := cmd.Run(); err != nil {
		if !errors.As(err, &exitErr) {
			return nil, &Error{Command: c.String(), ExitCode: -1, Err: err}
		}
		exitCode = exitErr.ExitCode()
	}

	res := &Result{
		ExitCode: exitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
	}
	// A process killed by a signal has no exit code to judge.
	if exitCode < 0 {
		return res, &Error{Command: c.String(), ExitCode: -1, Stderr: res.Stderr, Err: exitErr}
	}
	return res, c.Check(res)
}

// Check applies the FailOnNonzeroExit policy to a result.
func (c Command) Check(res *Result) error {
	if c.FailOnNonzeroExit && res.ExitCode != 0 {
		return &Error{Command: c.String(), ExitCode: res.ExitCode, Stderr: res.Stderr}
	}
	return nil
}

// Executor runs commands. Build actions go through an Executor so that tests
// can observe invocations without spawning SDK tools.
type Executor interface {
	Run(ctx context.Context, c Command) (*Result, error)
}

// ExecExecutor runs commands as real processes.
type ExecExecutor struct{}

// Run executes c.
func (ExecExecutor) Run(ctx context.Context, c Command) (*Result, error) {
	return c.Execute(ctx)
}
