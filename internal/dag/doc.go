// Package dag holds the build's task graph: named tasks connected by
// depends-on edges. It validates the graph as it is built (no duplicate
// names, no unknown dependencies, no cycles) and computes the deterministic
// execution order the runner follows.
//
// The graph is populated once by the pipeline and extension loaders, then
// only read. Ordering methods take a read lock, so a dry-run listing can
// inspect the graph while a run is in progress.
package dag
