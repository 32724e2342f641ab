package domain

import (
	"encoding/binary"
	"strings"
	"unicode"
)

// ReservedTaskName cannot be declared by a project; it is kept for a future "run everything" target.
const ReservedTaskName = "all"

// Task represents a unit of work in the task graph.
// It uses InternedString for fields that are frequently repeated to save memory.
type Task struct {
	Name         InternedString
	Body         Body
	Dependencies []InternedString
	Inputs       []InternedString
	Outputs      []InternedString
	Environment  map[string]string
	AlwaysRun    bool
	Description  string
}

// Body is what a task runs. It is either a CommandBody or a ScriptBody.
type Body interface {
	// Definition returns a canonical encoding of the body used for fingerprinting.
	Definition() []byte
	// Summary renders the body for humans.
	Summary() string

	body()
}

// CommandBody runs an external program with an argument vector.
type CommandBody struct {
	Program string
	Args    []string
	// Dir is the working directory, relative to the graph root when not absolute.
	Dir string
}

// ScriptBody evaluates embedded script source in-process.
type ScriptBody struct {
	Source string
}

const (
	commandTag byte = 'c'
	scriptTag  byte = 's'
)

func (CommandBody) body() {}
func (ScriptBody) body()  {}

// Definition encodes the program, arguments and directory, each length-prefixed.
func (b CommandBody) Definition() []byte {
	buf := []byte{commandTag}
	buf = appendField(buf, b.Program)
	buf = binary.AppendUvarint(buf, uint64(len(b.Args)))
	for _, arg := range b.Args {
		buf = appendField(buf, arg)
	}
	return appendField(buf, b.Dir)
}

// Summary returns the command line joined by spaces.
func (b CommandBody) Summary() string {
	return strings.Join(append([]string{b.Program}, b.Args...), " ")
}

// Definition encodes the script source.
func (b ScriptBody) Definition() []byte {
	return appendField([]byte{scriptTag}, b.Source)
}

// Summary returns the first non-blank line of the script.
func (b ScriptBody) Summary() string {
	for line := range strings.Lines(b.Source) {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return "script: " + trimmed
		}
	}
	return "script"
}

func appendField(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

// NewCommandTask creates a task that runs program with args.
func NewCommandTask(name, program string, args ...string) *Task {
	return &Task{
		Name: NewInternedString(name),
		Body: CommandBody{Program: program, Args: args},
	}
}

// NewScriptTask creates a task that evaluates source.
func NewScriptTask(name, source string) *Task {
	return &Task{
		Name: NewInternedString(name),
		Body: ScriptBody{Source: source},
	}
}

// IsCacheable reports whether the task participates in caching at all.
// Tasks without inputs, and tasks marked always, are executed every time.
func (t *Task) IsCacheable() bool {
	return !t.AlwaysRun && len(t.Inputs) > 0
}

// Validate reports an InvalidTask error for an inconsistent declaration.
func (t *Task) Validate() error {
	name := t.Name.String()
	if err := ValidateTaskName(name); err != nil {
		return err
	}
	switch b := t.Body.(type) {
	case nil:
		return NewInvalidTask(name, "task has no body")
	case CommandBody:
		if strings.TrimSpace(b.Program) == "" {
			return NewInvalidTask(name, "command is empty")
		}
	case ScriptBody:
		if strings.TrimSpace(b.Source) == "" {
			return NewInvalidTask(name, "script is empty")
		}
	}
	for _, dep := range t.Dependencies {
		if dep.String() == "" {
			return NewInvalidTask(name, "dependency name is empty")
		}
	}
	return nil
}

// ValidateTaskName rejects empty names, the reserved name and names containing whitespace.
func ValidateTaskName(name string) error {
	switch {
	case name == "":
		return NewInvalidTask(name, "task name is empty")
	case name == ReservedTaskName:
		return NewInvalidTask(name, "task name '"+ReservedTaskName+"' is reserved")
	case strings.IndexFunc(name, unicode.IsSpace) >= 0:
		return NewInvalidTask(name, "task name contains whitespace")
	}
	return nil
}
