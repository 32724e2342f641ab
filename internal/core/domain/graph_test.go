package domain_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/zerr"
)

func task(name string, deps ...string) *domain.Task {
	t := domain.NewCommandTask(name, "true")
	t.Dependencies = domain.NewInternedStrings(deps)
	return t
}

func buildGraph(t *testing.T, tasks ...*domain.Task) *domain.Graph {
	t.Helper()
	g := domain.NewGraph()
	for _, tk := range tasks {
		require.NoError(t, g.AddTask(tk))
	}
	return g
}

func names(tasks []*domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name.String()
	}
	return out
}

func metadata(err error) map[string]any {
	var zErr *zerr.Error
	if errors.As(err, &zErr) {
		return zErr.Metadata()
	}
	return nil
}

func TestGraph_AddTask_Duplicate(t *testing.T) {
	g := buildGraph(t, task("build"))

	err := g.AddTask(task("build"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidTask)
	assert.Equal(t, "build", metadata(err)["task"])
	assert.Equal(t, "duplicate task name", metadata(err)["reason"])
}

func TestGraph_Validate_Cycle(t *testing.T) {
	tests := []struct {
		name    string
		tasks   []*domain.Task
		message string
		cycle   []string
	}{
		{
			name:    "self loop",
			tasks:   []*domain.Task{task("a", "a")},
			message: "a → a",
			cycle:   []string{"a", "a"},
		},
		{
			name:    "two nodes",
			tasks:   []*domain.Task{task("a", "b"), task("b", "a")},
			message: "a → b → a",
			cycle:   []string{"a", "b", "a"},
		},
		{
			name:    "three nodes behind an entry task",
			tasks:   []*domain.Task{task("entry", "x"), task("x", "y"), task("y", "z"), task("z", "x")},
			message: "x → y → z → x",
			cycle:   []string{"x", "y", "z", "x"},
		},
		{
			name:    "declaration order decides which cycle is reported",
			tasks:   []*domain.Task{task("p", "q"), task("q", "p"), task("m", "n"), task("n", "m")},
			message: "p → q → p",
			cycle:   []string{"p", "q", "p"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := buildGraph(t, tt.tasks...)

			err := g.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrCyclicDependency)
			assert.Equal(t, domain.KindCyclicDependency, domain.KindOf(err))
			assert.Contains(t, err.Error(), tt.message)
			assert.Equal(t, tt.cycle, metadata(err)["cycle"])
		})
	}
}

func TestGraph_Validate_CycleIsDeterministic(t *testing.T) {
	var first string
	for range 20 {
		g := buildGraph(t, task("a", "b", "c"), task("b", "c"), task("c", "a"))
		err := g.Validate()
		require.Error(t, err)
		if first == "" {
			first = err.Error()
		}
		assert.Equal(t, first, err.Error())
	}
}

func TestGraph_Validate_UnknownDependency(t *testing.T) {
	g := buildGraph(t, task("build", "generate"), task("test", "build"))

	err := g.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)

	meta := metadata(err)
	assert.Equal(t, "generate", meta["task"])
	assert.Equal(t, "build", meta["referenced_by"])
	assert.Equal(t, []string{"build", "test"}, meta["available"])
}

func TestGraph_Walk(t *testing.T) {
	// A -> B -> C, D independent.
	g := buildGraph(t, task("A", "B"), task("B", "C"), task("C"), task("D"))
	require.NoError(t, g.Validate())

	var executed []string
	for tk := range g.Walk() {
		executed = append(executed, tk.Name.String())
	}

	assert.Equal(t, []string{"C", "B", "A", "D"}, executed)
}

func TestGraph_Closure(t *testing.T) {
	g := buildGraph(t,
		task("lint"),
		task("generate"),
		task("build", "generate"),
		task("test", "build", "lint"),
		task("docs"),
	)

	tests := []struct {
		name    string
		targets []string
		want    []string
	}{
		{name: "leaf", targets: []string{"generate"}, want: []string{"generate"}},
		{name: "chain", targets: []string{"build"}, want: []string{"generate", "build"}},
		{name: "diamond", targets: []string{"test"}, want: []string{"lint", "generate", "build", "test"}},
		{name: "union", targets: []string{"docs", "build"}, want: []string{"generate", "build", "docs"}},
		{name: "duplicate targets", targets: []string{"build", "build"}, want: []string{"generate", "build"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := g.Closure(domain.NewInternedStrings(tt.targets)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(plan))
		})
	}
}

func TestGraph_Closure_UnknownTarget(t *testing.T) {
	g := buildGraph(t, task("build"), task("test"))

	_, err := g.Closure(domain.NewInternedString("tset"))
	require.Error(t, err)
	assert.Equal(t, domain.KindTaskNotFound, domain.KindOf(err))
	assert.Equal(t, []string{"build", "test"}, metadata(err)["available"])
}

func TestGraph_Dependents(t *testing.T) {
	g := buildGraph(t, task("gen"), task("build", "gen"), task("docs", "gen"), task("test", "build"))
	require.NoError(t, g.Validate())

	assert.Equal(t, []string{"build", "docs"}, domain.Strings(g.Dependents(domain.NewInternedString("gen"))))
	assert.Empty(t, g.Dependents(domain.NewInternedString("test")))
	assert.Nil(t, g.Dependents(domain.NewInternedString("missing")))
}

func TestGraph_Lookups(t *testing.T) {
	g := buildGraph(t, task("b"), task("a"))
	g.SetRoot("/repo")

	assert.Equal(t, []string{"b", "a"}, g.Names())
	assert.Equal(t, 2, g.TaskCount())
	assert.Equal(t, "/repo", g.Root())

	got, ok := g.GetTask(domain.NewInternedString("a"))
	require.True(t, ok)
	assert.Equal(t, "a", got.Name.String())

	_, ok = g.GetTask(domain.NewInternedString("c"))
	assert.False(t, ok)
}
