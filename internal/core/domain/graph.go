// Package domain contains the core domain models and business logic for the task dependency graph.
package domain

import (
	"iter"
)

const (
	unvisited uint8 = iota
	inProgress
	done
)

// Graph is an index-based dependency graph of tasks.
// Tasks keep their declaration order; edges are stored as index lists.
type Graph struct {
	root       string
	tasks      []Task
	index      map[InternedString]int
	deps       [][]int
	dependents [][]int
	order      []int
	validated  bool
}

// NewGraph creates a new empty Graph.
func NewGraph() *Graph {
	return &Graph{index: make(map[InternedString]int)}
}

// SetRoot sets the directory that relative task paths resolve against.
func (g *Graph) SetRoot(root string) {
	g.root = root
}

// Root returns the directory that relative task paths resolve against.
func (g *Graph) Root() string {
	return g.root
}

// AddTask appends a task in declaration order.
// It returns an InvalidTask error if a task with the same name already exists.
func (g *Graph) AddTask(t *Task) error {
	if _, exists := g.index[t.Name]; exists {
		return NewInvalidTask(t.Name.String(), "duplicate task name")
	}
	g.index[t.Name] = len(g.tasks)
	g.tasks = append(g.tasks, *t)
	g.validated = false
	return nil
}

// Validate resolves dependency names, rejects cycles and records a topological order.
func (g *Graph) Validate() error {
	if g.validated {
		return nil
	}
	if err := g.resolveEdges(); err != nil {
		return err
	}
	order, err := g.topoSort()
	if err != nil {
		return err
	}
	g.order = order
	g.validated = true
	return nil
}

func (g *Graph) resolveEdges() error {
	deps := make([][]int, len(g.tasks))
	dependents := make([][]int, len(g.tasks))
	for i := range g.tasks {
		for _, name := range g.tasks[i].Dependencies {
			j, ok := g.index[name]
			if !ok {
				err := NewTaskNotFound(name.String(), g.Names())
				return withReferencedBy(err, g.tasks[i].Name.String())
			}
			deps[i] = append(deps[i], j)
			dependents[j] = append(dependents[j], i)
		}
	}
	g.deps = deps
	g.dependents = dependents
	return nil
}

// topoSort runs a DFS over declaration order and returns the post-order.
// The first revisit of an in-progress node is reported as the cycle.
func (g *Graph) topoSort() ([]int, error) {
	state := make([]uint8, len(g.tasks))
	order := make([]int, 0, len(g.tasks))
	var path []int

	var visit func(u int) error
	visit = func(u int) error {
		state[u] = inProgress
		path = append(path, u)
		for _, v := range g.deps[u] {
			switch state[v] {
			case inProgress:
				return g.cycleError(path, v)
			case unvisited:
				if err := visit(v); err != nil {
					return err
				}
			}
		}
		state[u] = done
		path = path[:len(path)-1]
		order = append(order, u)
		return nil
	}

	for i := range g.tasks {
		if state[i] == unvisited {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}

func (g *Graph) cycleError(path []int, revisited int) error {
	start := 0
	for i, node := range path {
		if node == revisited {
			start = i
			break
		}
	}
	cycle := make([]string, 0, len(path)-start+1)
	for _, node := range path[start:] {
		cycle = append(cycle, g.tasks[node].Name.String())
	}
	cycle = append(cycle, g.tasks[revisited].Name.String())
	return NewCycle(cycle)
}

// Names returns all task names in declaration order.
func (g *Graph) Names() []string {
	names := make([]string, len(g.tasks))
	for i := range g.tasks {
		names[i] = g.tasks[i].Name.String()
	}
	return names
}

// TaskCount returns the number of tasks in the graph.
func (g *Graph) TaskCount() int {
	return len(g.tasks)
}

// GetTask returns the task with the given name.
func (g *Graph) GetTask(name InternedString) (*Task, bool) {
	i, ok := g.index[name]
	if !ok {
		return nil, false
	}
	return &g.tasks[i], true
}

// Walk yields tasks in topological order.
// It assumes Validate has been called and returned nil.
func (g *Graph) Walk() iter.Seq[*Task] {
	return func(yield func(*Task) bool) {
		for _, i := range g.order {
			if !yield(&g.tasks[i]) {
				return
			}
		}
	}
}

// Dependents returns the names of tasks that directly depend on name, in declaration order.
// It assumes Validate has been called and returned nil.
func (g *Graph) Dependents(name InternedString) []InternedString {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]InternedString, 0, len(g.dependents[i]))
	for _, j := range g.dependents[i] {
		out = append(out, g.tasks[j].Name)
	}
	return out
}

// Closure returns the targets plus their transitive dependencies in topological order.
func (g *Graph) Closure(targets ...InternedString) ([]*Task, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	include := make([]bool, len(g.tasks))
	stack := make([]int, 0, len(targets))
	for _, target := range targets {
		i, ok := g.index[target]
		if !ok {
			return nil, NewTaskNotFound(target.String(), g.Names())
		}
		stack = append(stack, i)
	}
	for len(stack) > 0 {
		u := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if include[u] {
			continue
		}
		include[u] = true
		stack = append(stack, g.deps[u]...)
	}

	plan := make([]*Task, 0, len(g.tasks))
	for _, i := range g.order {
		if include[i] {
			plan = append(plan, &g.tasks[i])
		}
	}
	return plan, nil
}
