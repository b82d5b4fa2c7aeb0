// Package extcmdtest provides an extcmd.Executor that records invocations
// instead of spawning processes.
package extcmdtest

import (
	"context"
	"sync"

	"github.com/specialistvlad/droidbuild/internal/extcmd"
)

// Recorder is a fake extcmd.Executor. Commands succeed with exit code 0
// unless a result is scripted for the tool's base name.
type Recorder struct {
	mu       sync.Mutex
	commands []extcmd.Command
	results  map[string]*extcmd.Result
	hooks    map[string]func(extcmd.Command)
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		results: make(map[string]*extcmd.Result),
		hooks:   make(map[string]func(extcmd.Command)),
	}
}

// Script makes every invocation of the named tool return res.
func (r *Recorder) Script(tool string, res *extcmd.Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[tool] = res
}

// OnRun registers a side effect executed when the named tool is invoked,
// e.g. creating the file a real tool would have written.
func (r *Recorder) OnRun(tool string, fn func(extcmd.Command)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[tool] = fn
}

// Run records c and returns the scripted result.
func (r *Recorder) Run(_ context.Context, c extcmd.Command) (*extcmd.Result, error) {
	r.mu.Lock()
	r.commands = append(r.commands, c)
	res, ok := r.results[c.Name()]
	hook := r.hooks[c.Name()]
	r.mu.Unlock()

	if hook != nil {
		hook(c)
	}
	if !ok {
		res = &extcmd.Result{}
	}
	return res, c.Check(res)
}

// Commands returns every recorded invocation in order.
func (r *Recorder) Commands() []extcmd.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]extcmd.Command(nil), r.commands...)
}

// Invoked returns the recorded invocations of the named tool.
func (r *Recorder) Invoked(tool string) []extcmd.Command {
	var out []extcmd.Command
	for _, c := range r.Commands() {
		if c.Name() == tool {
			out = append(out, c)
		}
	}
	return out
}
