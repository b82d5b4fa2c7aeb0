// Package app is the composition root of a build. It creates the run's
// logger, resolves the build context, assembles the task graph from the
// built-in pipeline and the project's extensions, and runs it. It is
// decoupled from the command line so that tests can drive it directly.
package app
