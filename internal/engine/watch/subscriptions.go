package watch

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.trai.ch/steppe/internal/core/domain"
)

// subscription maps one declared input to the tasks that declare it.
type subscription struct {
	// pattern is an absolute path or an absolute glob.
	pattern string
	glob    bool
	tasks   []string
}

// subscriptionTable is built once per session and only read afterwards.
type subscriptionTable struct {
	subs      []subscription
	planOrder map[string]int
}

func newSubscriptionTable(root string, plan []*domain.Task) *subscriptionTable {
	table := &subscriptionTable{planOrder: make(map[string]int, len(plan))}
	byPattern := make(map[string]int)

	for i, task := range plan {
		name := task.Name.String()
		table.planOrder[name] = i

		for _, input := range task.Inputs {
			pattern := input.String()
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(root, pattern)
			}
			pattern = filepath.Clean(pattern)

			j, ok := byPattern[pattern]
			if !ok {
				j = len(table.subs)
				byPattern[pattern] = j
				table.subs = append(table.subs, subscription{
					pattern: pattern,
					glob:    hasMeta(input.String()),
				})
			}
			if !slices.Contains(table.subs[j].tasks, name) {
				table.subs[j].tasks = append(table.subs[j].tasks, name)
			}
		}
	}
	return table
}

// affected returns the tasks whose inputs match any of paths, in plan order.
func (t *subscriptionTable) affected(paths ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, path := range paths {
		path = filepath.Clean(path)
		for _, sub := range t.subs {
			if !sub.matches(path) {
				continue
			}
			for _, name := range sub.tasks {
				if !seen[name] {
					seen[name] = true
					out = append(out, name)
				}
			}
		}
	}
	sortByPlan(out, t.planOrder)
	return out
}

func sortByPlan(names []string, planOrder map[string]int) {
	slices.SortFunc(names, func(a, b string) int {
		return planOrder[a] - planOrder[b]
	})
}

func (t *subscriptionTable) len() int {
	return len(t.subs)
}

// matches reports an exact match, a path under a declared directory, or a glob match.
func (s subscription) matches(path string) bool {
	if s.glob {
		ok, err := doublestar.PathMatch(s.pattern, path)
		return err == nil && ok
	}
	if path == s.pattern {
		return true
	}
	return strings.HasPrefix(path, s.pattern+string(filepath.Separator))
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}
