package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/specialistvlad/droidbuild/internal/cli"
)

// main is the entrypoint for the droidbuild application.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, outW, errW io.Writer) int {
	err := cli.Execute(ctx, args, cli.Options{Out: outW, Err: errW})
	if err == nil {
		return cli.Success
	}

	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) && exitErr.Code == cli.Interrupted {
		fmt.Fprintln(errW, "\nBuild interrupted")
		return exitErr.Code
	}
	fmt.Fprintf(errW, "Error: %v\n", err)
	return cli.ExitCode(err)
}
