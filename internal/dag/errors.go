package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateTask is the kind of error returned when a task name is registered twice.
	ErrDuplicateTask = errors.New("duplicate task")
	// ErrUnknownDependency is the kind of error returned when a task depends on an unregistered task.
	ErrUnknownDependency = errors.New("unknown dependency")
	// ErrUnknownTask is the kind of error returned when a requested task does not exist.
	ErrUnknownTask = errors.New("unknown task")
	// ErrCycle is the kind of error returned when an edge would make the graph cyclic.
	ErrCycle = errors.New("dependency cycle")
)

// GraphError reports an invalid graph operation. Kind is one of the Err*
// sentinels above and is matched by errors.Is.
type GraphError struct {
	Kind error
	// Task is the task the failing operation was about.
	Task string
	// Dependency is set for ErrUnknownDependency.
	Dependency string
	// Cycle lists the task names forming the cycle, first name repeated last.
	Cycle []string
}

func (e *GraphError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrCycle) && len(e.Cycle) > 0:
		return fmt.Sprintf("%s: %s", e.Kind, strings.Join(e.Cycle, " -> "))
	case e.Dependency != "":
		return fmt.Sprintf("%s: task %q depends on %q", e.Kind, e.Task, e.Dependency)
	case e.Task != "":
		return fmt.Sprintf("%s: %q", e.Kind, e.Task)
	default:
		return e.Kind.Error()
	}
}

func (e *GraphError) Unwrap() error { return e.Kind }

func duplicateTask(name string) error {
	return &GraphError{Kind: ErrDuplicateTask, Task: name}
}

func unknownDependency(name, dep string) error {
	return &GraphError{Kind: ErrUnknownDependency, Task: name, Dependency: dep}
}

func unknownTask(name string) error {
	return &GraphError{Kind: ErrUnknownTask, Task: name}
}

func cycle(path []string) error {
	first := ""
	if len(path) > 0 {
		first = path[0]
	}
	return &GraphError{Kind: ErrCycle, Task: first, Cycle: path}
}
