// Package cli is the command-line surface of droidbuild. It parses flags
// into an app.Config, runs or lists the requested tasks, and maps failures
// to process exit codes.
package cli
