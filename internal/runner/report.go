package runner

import (
	"time"

	"github.com/specialistvlad/droidbuild/internal/task"
)

// Outcome is the final state of one task in a run.
type Outcome struct {
	Task     string
	Status   task.Status
	Duration time.Duration
	// Err is the *TaskExecutionError of a failed task or the skip reason.
	Err error
}

// Report describes a finished run.
type Report struct {
	Targets []string
	// Order is the execution order of the closure.
	Order    []string
	Outcomes []Outcome
	// Err is the first task failure, or the interruption cause.
	Err error

	index map[string]int
}

func (r *Report) add(o Outcome) {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	r.index[o.Task] = len(r.Outcomes)
	r.Outcomes = append(r.Outcomes, o)
}

// Status returns the final status of a task, or Pending if it was not part
// of the run.
func (r *Report) Status(name string) task.Status {
	if i, ok := r.index[name]; ok {
		return r.Outcomes[i].Status
	}
	return task.Pending
}

// Succeeded reports whether every task in the closure succeeded.
func (r *Report) Succeeded() bool {
	return r.Err == nil
}

// Count returns how many tasks ended with the given status.
func (r *Report) Count(status task.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
