package dag

import (
	"github.com/specialistvlad/droidbuild/internal/task"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]*node),
	}
}

// AddTask registers a task. Every name in t.DependsOn must already be
// registered: dependencies are declared before their dependents. Edges to
// tasks registered later are added with AddDependency.
func (g *Graph) AddTask(t *task.Task) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.nodes[t.Name]; ok {
		return duplicateTask(t.Name)
	}

	n := &node{task: t}
	for _, dep := range t.DependsOn {
		if _, ok := g.nodes[dep]; !ok {
			return unknownDependency(t.Name, dep)
		}
		if !n.hasDep(dep) {
			n.deps = append(n.deps, dep)
		}
	}

	for _, dep := range n.deps {
		g.nodes[dep].dependents = append(g.nodes[dep].dependents, t.Name)
	}
	g.nodes[t.Name] = n
	g.order = append(g.order, t.Name)
	return nil
}

// AddDependency makes the task `name` depend on `dependsOn`. Both tasks must
// be registered. An edge that would close a cycle is rejected with an
// ErrCycle GraphError and the graph is left unchanged. Adding an existing
// edge is a no-op.
func (g *Graph) AddDependency(name, dependsOn string) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	n, ok := g.nodes[name]
	if !ok {
		return unknownTask(name)
	}
	dep, ok := g.nodes[dependsOn]
	if !ok {
		return unknownDependency(name, dependsOn)
	}
	if name == dependsOn {
		return cycle([]string{name, name})
	}
	if n.hasDep(dependsOn) {
		return nil
	}

	// The new edge closes a cycle iff dependsOn already reaches name.
	if path := g.pathLocked(dependsOn, name); path != nil {
		return cycle(append([]string{name}, path...))
	}

	n.deps = append(n.deps, dependsOn)
	n.task.DependsOn = append(n.task.DependsOn, dependsOn)
	dep.dependents = append(dep.dependents, name)
	return nil
}

// pathLocked returns the dependency path from `from` to `to` (both
// included), or nil if `to` is not reachable. Caller holds the lock.
func (g *Graph) pathLocked(from, to string) []string {
	visited := make(map[string]bool)
	var walk func(cur string) []string
	walk = func(cur string) []string {
		if cur == to {
			return []string{cur}
		}
		if visited[cur] {
			return nil
		}
		visited[cur] = true
		for _, d := range g.nodes[cur].deps {
			if rest := walk(d); rest != nil {
				return append([]string{cur}, rest...)
			}
		}
		return nil
	}
	return walk(from)
}

// Task returns the task registered under name.
func (g *Graph) Task(name string) (*task.Task, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil, false
	}
	return n.task, true
}

// Tasks returns all tasks in registration order.
func (g *Graph) Tasks() []*task.Task {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	tasks := make([]*task.Task, 0, len(g.order))
	for _, name := range g.order {
		tasks = append(tasks, g.nodes[name].task)
	}
	return tasks
}

// Len returns the number of registered tasks.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.order)
}

// Dependencies returns the names the given task depends on, in declaration order.
func (g *Graph) Dependencies(name string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil, unknownTask(name)
	}
	return append([]string(nil), n.deps...), nil
}

// Dependents returns the names of tasks that directly depend on the given task.
func (g *Graph) Dependents(name string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	n, ok := g.nodes[name]
	if !ok {
		return nil, unknownTask(name)
	}
	return append([]string(nil), n.dependents...), nil
}

// TopologicalOrder returns every task name ordered so that each task comes
// after all of its dependencies. Tasks are visited depth-first in
// registration order, dependencies in declaration order, which makes the
// result deterministic.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.orderLocked(g.order)
}

// Closure returns the targets and all of their transitive dependencies in
// topological order. Unknown targets yield an ErrUnknownTask GraphError.
func (g *Graph) Closure(targets ...string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	for _, t := range targets {
		if _, ok := g.nodes[t]; !ok {
			return nil, unknownTask(t)
		}
	}

	all, err := g.orderLocked(g.order)
	if err != nil {
		return nil, err
	}

	needed := make(map[string]bool)
	var mark func(name string)
	mark = func(name string) {
		if needed[name] {
			return
		}
		needed[name] = true
		for _, d := range g.nodes[name].deps {
			mark(d)
		}
	}
	for _, t := range targets {
		mark(t)
	}

	closure := make([]string, 0, len(needed))
	for _, name := range all {
		if needed[name] {
			closure = append(closure, name)
		}
	}
	return closure, nil
}

type color int

const (
	white color = iota // unvisited
	grey               // on the current DFS path
	black              // finished
)

func (g *Graph) orderLocked(roots []string) ([]string, error) {
	colors := make(map[string]color, len(g.nodes))
	ordered := make([]string, 0, len(g.nodes))
	var stack []string

	var visit func(name string) error
	visit = func(name string) error {
		switch colors[name] {
		case black:
			return nil
		case grey:
			// Revisiting a task on the current path: the cycle is the
			// stack suffix starting at its first occurrence.
			for i, s := range stack {
				if s == name {
					path := append(append([]string(nil), stack[i:]...), name)
					return cycle(path)
				}
			}
			return cycle([]string{name, name})
		}

		colors[name] = grey
		stack = append(stack, name)
		for _, d := range g.nodes[name].deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		colors[name] = black
		ordered = append(ordered, name)
		return nil
	}

	for _, name := range roots {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}
