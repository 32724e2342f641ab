// Package linear provides a synchronous, line-buffered renderer: every task
// output line is printed with the task name as prefix, in completion order.
package linear

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/steppe/internal/ui/output"
	"go.trai.ch/steppe/internal/ui/style"
)

var _ ports.Renderer = (*Renderer)(nil)

// prefixPalette colors task prefixes so interleaved output stays readable.
var prefixPalette = []lipgloss.Color{style.Steppe, style.Sky, style.Green, style.Yellow}

// Renderer implements ports.Renderer. Task output goes to stdout, lifecycle
// lines go to stderr.
type Renderer struct {
	stdout io.Writer
	stderr io.Writer
	out    *termenv.Output

	mu    sync.Mutex
	tasks map[string]*taskState // spanID -> task state
}

type taskState struct {
	name      string
	startTime time.Time
	partial   bytes.Buffer
}

// NewRenderer creates a Renderer. Nil writers default to os.Stdout and os.Stderr.
func NewRenderer(stdout, stderr io.Writer) *Renderer {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	return &Renderer{
		stdout: stdout,
		stderr: stderr,
		out:    output.NewAuto(stderr),
		tasks:  make(map[string]*taskState),
	}
}

// Start is a no-op; the renderer prints synchronously.
func (r *Renderer) Start(_ context.Context) error {
	return nil
}

// Stop prints any partial lines still buffered.
func (r *Renderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, task := range r.tasks {
		r.flushPartialLocked(task)
	}
	return nil
}

// Wait is a no-op; the renderer prints synchronously.
func (r *Renderer) Wait() error {
	return nil
}

// OnPlanEmit prints the execution order.
func (r *Renderer) OnPlanEmit(tasks []string, _ map[string][]string, targets []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	line := fmt.Sprintf("%s %s (%d %s for %s)",
		style.Arrow, strings.Join(tasks, ", "), len(tasks), plural(len(tasks), "task", "tasks"), strings.Join(targets, ", "))
	r.printStatusLocked(line, style.Slate)
}

// OnTaskStart registers the task and prints a start line.
func (r *Renderer) OnTaskStart(spanID, _ /* parentID */, name string, startTime time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tasks[spanID] = &taskState{name: name, startTime: startTime}
	r.printStatusLocked(fmt.Sprintf("%s %s", r.prefix(name), style.Circle), style.Slate)
}

// OnTaskLog prints every complete line in data and keeps the trailing partial line.
func (r *Renderer) OnTaskLog(spanID string, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[spanID]
	if !ok {
		return
	}

	task.partial.Write(data)
	for {
		buffered := task.partial.Bytes()
		i := bytes.IndexByte(buffered, '\n')
		if i < 0 {
			break
		}
		r.printLineLocked(task.name, buffered[:i])
		task.partial.Next(i + 1)
	}
}

// OnTaskComplete flushes the task output and prints its outcome.
func (r *Renderer) OnTaskComplete(spanID string, endTime time.Time, err error, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[spanID]
	if !ok {
		return
	}
	r.flushPartialLocked(task)
	delete(r.tasks, spanID)

	prefix := r.prefix(task.name)
	duration := formatDuration(endTime.Sub(task.startTime))
	switch {
	case err != nil:
		r.printStatusLocked(fmt.Sprintf("%s %s failed after %s: %v", prefix, style.Cross, duration, err), style.Red)
	case cached:
		r.printStatusLocked(fmt.Sprintf("%s %s cached", prefix, style.Tilde), style.Slate)
	default:
		r.printStatusLocked(fmt.Sprintf("%s %s done in %s", prefix, style.Check, duration), style.Green)
	}
}

// flushPartialLocked must be called with r.mu held.
func (r *Renderer) flushPartialLocked(task *taskState) {
	if task.partial.Len() > 0 {
		r.printLineLocked(task.name, task.partial.Bytes())
		task.partial.Reset()
	}
}

// printLineLocked must be called with r.mu held.
func (r *Renderer) printLineLocked(taskName string, line []byte) {
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) == 0 {
		return
	}
	_, _ = fmt.Fprintf(r.stdout, "%s %s\n", r.prefix(taskName), line)
}

// printStatusLocked must be called with r.mu held.
func (r *Renderer) printStatusLocked(line string, color lipgloss.Color) {
	styled := r.out.String(line).Foreground(r.out.Color(string(color))).String()
	_, _ = fmt.Fprintln(r.stderr, styled)
}

func (r *Renderer) prefix(taskName string) string {
	return r.out.String("[" + taskName + "]").Foreground(r.out.Color(string(colorFor(taskName)))).String()
}

// colorFor picks a stable palette color for a task name.
func colorFor(taskName string) lipgloss.Color {
	return prefixPalette[xxhash.Sum64String(taskName)%uint64(len(prefixPalette))]
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
