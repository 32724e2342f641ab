package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/ui/style"
)

// List prints every task in declaration order with its description and dependencies.
func (a *App) List(opts LoadOptions) error {
	graph, err := a.load(opts)
	if err != nil {
		return err
	}

	names := graph.Names()
	if len(names) == 0 {
		a.logger.Info("no tasks defined")
		return nil
	}

	width := nameWidth(names)
	for _, name := range names {
		task, _ := graph.GetTask(domain.NewInternedString(name))
		var note string
		if len(task.Dependencies) > 0 {
			note = "(needs " + strings.Join(domain.Strings(task.Dependencies), ", ") + ")"
		}
		writeTaskLine(a.stdout, width, task.Name.String(), describe(task), note)
	}
	return nil
}

// Plan prints the closure of targets in execution order without running anything.
// Tasks with inputs show how many files their fingerprint would cover.
func (a *App) Plan(targets []string, opts LoadOptions) error {
	if len(targets) == 0 {
		return domain.ErrNoTargetsSpecified
	}

	graph, err := a.load(opts)
	if err != nil {
		return err
	}

	plan, err := graph.Closure(domain.NewInternedStrings(targets)...)
	if err != nil {
		return err
	}

	names := make([]string, len(plan))
	for i, task := range plan {
		names[i] = fmt.Sprintf("%d. %s", i+1, task.Name)
	}

	width := nameWidth(names)
	for i, task := range plan {
		writeTaskLine(a.stdout, width, names[i], task.Body.Summary(), a.inputNote(task, graph.Root()))
	}
	return nil
}

func (a *App) inputNote(task *domain.Task, root string) string {
	if len(task.Inputs) == 0 {
		return ""
	}
	files, err := a.resolver.ResolveInputs(domain.Strings(task.Inputs), root)
	if err != nil {
		return "(inputs unresolved: " + err.Error() + ")"
	}
	return "(" + humanize.Comma(int64(len(files))) + " " + plural(len(files), "input file", "input files") + ")"
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func describe(task *domain.Task) string {
	if task.Description != "" {
		return task.Description
	}
	if task.Body == nil {
		return ""
	}
	return task.Body.Summary()
}

func nameWidth(names []string) int {
	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}
	return width + 2
}

func writeTaskLine(w io.Writer, width int, name, detail, note string) {
	var b strings.Builder
	b.WriteString(style.Name.Width(width).Render(name))
	b.WriteString(detail)
	if note != "" {
		b.WriteString(" ")
		b.WriteString(style.Muted.Render(note))
	}
	b.WriteString("\n")
	_, _ = io.WriteString(w, b.String())
}
