package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"go.trai.ch/steppe/internal/ui/output"
	"go.trai.ch/steppe/internal/ui/style"
)

// PrettyHandler is a slog.Handler that writes one colored line per record,
// prefixing warnings and errors with the shared icons.
type PrettyHandler struct {
	out   *termenv.Output
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewPrettyHandler creates a new PrettyHandler writing to the provided writer.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}

	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}

	return &PrettyHandler{
		out:   output.New(w),
		level: level,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func levelPrefix(level slog.Level) (string, lipgloss.Color) {
	switch {
	case level >= slog.LevelError:
		return style.Cross + " ", style.Red
	case level >= slog.LevelWarn:
		return style.Warning + " ", style.Yellow
	default:
		return "", style.Slate
	}
}

// Handle formats and outputs the log record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	prefix, color := levelPrefix(r.Level)

	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString(r.Message)

	for _, attr := range h.attrs {
		b.WriteByte(' ')
		b.WriteString(formatAttr("", attr))
	}
	r.Attrs(func(attr slog.Attr) bool {
		b.WriteByte(' ')
		b.WriteString(formatAttr(h.group, attr))
		return true
	})

	// Each line is styled on its own so continuation lines keep their color.
	fg := termenv.RGBColor(string(color))
	lines := strings.Split(b.String(), "\n")
	for i, line := range lines {
		lines[i] = h.out.String(line).Foreground(fg).String()
	}
	_, err := h.out.WriteString(strings.Join(lines, "\n") + "\n")
	return err
}

// WithAttrs returns a new Handler with the given attributes appended.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = slices.Clone(h.attrs)
	for _, attr := range attrs {
		if h.group != "" {
			attr.Key = h.group + "." + attr.Key
		}
		clone.attrs = append(clone.attrs, attr)
	}
	return &clone
}

// WithGroup returns a new Handler with the given group name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if h.group != "" {
		name = h.group + "." + name
	}
	clone.group = name
	return &clone
}

// formatAttr renders key=value, prefixing the key with the group and quoting
// values that contain whitespace.
func formatAttr(group string, attr slog.Attr) string {
	key := attr.Key
	if group != "" {
		key = group + "." + key
	}
	value := attr.Value.Resolve().String()
	if strings.ContainsAny(value, " \t\n") {
		value = strconv.Quote(value)
	}
	return key + "=" + value
}
