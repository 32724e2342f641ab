package logger

import (
	"fmt"
	"slices"
	"strings"

	"go.trai.ch/steppe/internal/core/domain"
)

// messager describes an error that can report its own message without the chain.
// zerr.Error and the domain kind errors both provide it.
type messager interface {
	Message() string
}

type metadataer interface {
	Metadata() map[string]any
}

// causer is implemented by errors whose Unwrap returns several errors
// but that still have one nested cause to follow.
type causer interface {
	Cause() error
}

// hiddenKeys are rendered elsewhere and are left out of the metadata lines.
var hiddenKeys = map[string]bool{
	"stderr": true,
}

// ErrorEntry is one level of an error chain.
type ErrorEntry struct {
	Message  string
	Metadata map[string]any
}

// FormatError renders err as a multi-line diagnostic.
func FormatError(err error) string {
	out := formatErrorEntries(collectErrorEntries(err))
	if extra := formatHints(err); extra != "" {
		out += "\n\n" + extra
	}
	return out
}

// collectErrorEntries walks the chain. A wrapper with an empty message contributes
// its metadata to the next entry that has one.
func collectErrorEntries(err error) []ErrorEntry {
	var entries []ErrorEntry
	var pending map[string]any

	for current := err; current != nil; {
		m, ok := current.(messager)
		if !ok {
			entries = append(entries, ErrorEntry{Message: current.Error(), Metadata: pending})
			break
		}

		meta := metadataOf(current)
		if m.Message() == "" {
			pending = mergeMetadata(pending, meta)
		} else {
			entries = append(entries, ErrorEntry{Message: m.Message(), Metadata: mergeMetadata(pending, meta)})
			pending = nil
		}

		current = next(current)
	}
	return entries
}

func metadataOf(err error) map[string]any {
	if md, ok := err.(metadataer); ok {
		return md.Metadata()
	}
	return nil
}

func next(err error) error {
	if c, ok := err.(causer); ok {
		return c.Cause()
	}
	if u, ok := err.(interface{ Unwrap() error }); ok {
		return u.Unwrap()
	}
	return nil
}

func mergeMetadata(a, b map[string]any) map[string]any {
	if a == nil {
		return b
	}
	merged := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		merged[k] = v
	}
	for k, v := range b {
		merged[k] = v
	}
	return merged
}

func formatErrorEntries(entries []ErrorEntry) string {
	var lines []string

	for i, entry := range entries {
		msgLines := strings.Split(entry.Message, "\n")

		if i == 0 {
			lines = append(lines, "Error: "+msgLines[0])
			for _, line := range msgLines[1:] {
				lines = append(lines, "       "+line)
			}
			lines = append(lines, formatMetadata(entry.Metadata, "       ")...)
			continue
		}

		if i == 1 {
			lines = append(lines, "", "  Caused by:")
		}
		lines = append(lines, "    → "+msgLines[0])
		for _, line := range msgLines[1:] {
			lines = append(lines, "      "+line)
		}
		lines = append(lines, formatMetadata(entry.Metadata, "      ")...)
	}

	return strings.Join(lines, "\n")
}

func formatMetadata(meta map[string]any, indent string) []string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		if !hiddenKeys[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, indent+k+": "+formatValue(meta[k]))
	}
	return lines
}

func formatValue(v any) string {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, ", ")
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// formatHints renders the help text and, for unknown tasks, the closest known name.
func formatHints(err error) string {
	var lines []string
	if domain.KindOf(err) == domain.KindTaskNotFound {
		if s := suggestion(err); s != "" {
			lines = append(lines, "  Did you mean '"+s+"'?")
		}
	}
	if help := domain.Help(err); help != "" {
		helpLines := strings.Split(help, "\n")
		lines = append(lines, "  help: "+helpLines[0])
		for _, line := range helpLines[1:] {
			lines = append(lines, "        "+line)
		}
	}
	return strings.Join(lines, "\n")
}

func suggestion(err error) string {
	var name string
	var available []string
	for _, entry := range collectErrorEntries(err) {
		if v, ok := entry.Metadata["task"].(string); ok && name == "" {
			name = v
		}
		if v, ok := entry.Metadata["available"].([]string); ok && available == nil {
			available = v
		}
	}
	return closest(name, available)
}

// closest returns the candidate within edit distance max(2, len/3) of name, preferring
// the smallest distance and then declaration order.
func closest(name string, candidates []string) string {
	if name == "" {
		return ""
	}
	limit := max(2, len(name)/3)
	best, bestDist := "", limit+1
	for _, c := range candidates {
		if d := levenshtein(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}
