// Package integration_tests runs the droidbuild command line end to end
// against on-disk projects and a fake SDK. Scenarios live in the
// subpackages, grouped by behavior.
package integration_tests
