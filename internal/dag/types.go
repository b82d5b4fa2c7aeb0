package dag

import (
	"sync"

	"github.com/specialistvlad/droidbuild/internal/task"
)

// Graph is a collection of tasks and their dependencies, representing a DAG.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects nodes and order during concurrent access.
	mutex sync.RWMutex
	// nodes stores all tasks in the graph, keyed by their unique name.
	nodes map[string]*node
	// order is the registration order of task names. It is the tie-break
	// for tasks with no ordering constraint between them.
	order []string
}

// node represents a single vertex in the graph. It is un-exported to
// enforce interaction with the graph via the public API (using task names),
// not by direct struct manipulation.
type node struct {
	task *task.Task
	// deps holds the names this task depends on, in declaration order.
	deps []string
	// dependents holds the names of tasks depending on this one, in the
	// order the edges were added.
	dependents []string
}

func (n *node) hasDep(name string) bool {
	for _, d := range n.deps {
		if d == name {
			return true
		}
	}
	return false
}
