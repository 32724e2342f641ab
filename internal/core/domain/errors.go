package domain

import (
	"errors"
	"fmt"
	"strings"

	"go.trai.ch/zerr"
)

// Kind classifies an error produced by the engine or one of its collaborators.
type Kind uint8

const (
	// KindUnknown is reported for errors that carry no steppe kind.
	KindUnknown Kind = iota
	// KindConfigNotFound means no configuration file was discovered.
	KindConfigNotFound
	// KindConfigParse means the configuration file could not be parsed.
	KindConfigParse
	// KindTaskNotFound means a requested or referenced task does not exist.
	KindTaskNotFound
	// KindCyclicDependency means the task graph contains a cycle.
	KindCyclicDependency
	// KindInvalidTask means a task declaration is internally inconsistent.
	KindInvalidTask
	// KindCommandNotFound means the program of a command task could not be resolved.
	KindCommandNotFound
	// KindTaskFailed means a command task exited non-zero.
	KindTaskFailed
	// KindScriptFailed means an embedded script failed to evaluate.
	KindScriptFailed
	// KindBlocked means a task never ran because one of its dependencies failed.
	KindBlocked
	// KindCache means the cache backing store misbehaved.
	KindCache
	// KindWatch means filesystem observation failed.
	KindWatch
	// KindIO is a generic filesystem or OS fault.
	KindIO
)

var (
	// ErrConfigNotFound is the sentinel for KindConfigNotFound.
	ErrConfigNotFound = zerr.New("configuration file not found")

	// ErrConfigParse is the sentinel for KindConfigParse.
	ErrConfigParse = zerr.New("failed to parse configuration")

	// ErrTaskNotFound is the sentinel for KindTaskNotFound.
	ErrTaskNotFound = zerr.New("task not found")

	// ErrCyclicDependency is the sentinel for KindCyclicDependency.
	ErrCyclicDependency = zerr.New("circular dependency detected")

	// ErrInvalidTask is the sentinel for KindInvalidTask.
	ErrInvalidTask = zerr.New("invalid task configuration")

	// ErrCommandNotFound is the sentinel for KindCommandNotFound.
	ErrCommandNotFound = zerr.New("command not found")

	// ErrTaskFailed is the sentinel for KindTaskFailed.
	ErrTaskFailed = zerr.New("task failed")

	// ErrScriptFailed is the sentinel for KindScriptFailed.
	ErrScriptFailed = zerr.New("script execution failed")

	// ErrBlocked is the sentinel for KindBlocked.
	ErrBlocked = zerr.New("task blocked by failed dependency")

	// ErrCache is the sentinel for KindCache.
	ErrCache = zerr.New("cache error")

	// ErrWatch is the sentinel for KindWatch.
	ErrWatch = zerr.New("watch error")

	// ErrIO is the sentinel for KindIO.
	ErrIO = zerr.New("i/o error")

	// ErrNoTargetsSpecified is returned when a run or watch is requested without targets.
	ErrNoTargetsSpecified = zerr.New("no targets specified")

	// ErrRunFailed marks a run whose plan contained at least one failed task.
	// The CLI uses it to exit non-zero without logging the error twice.
	ErrRunFailed = zerr.New("run failed")
)

type kindInfo struct {
	sentinel error
	name     string
	code     string
	help     string
}

var kinds = map[Kind]kindInfo{
	KindConfigNotFound: {
		sentinel: ErrConfigNotFound,
		name:     "ConfigNotFound",
		code:     "steppe::config::not_found",
		help:     "Create a " + ConfigFileName + " in your project root, or specify one with --config",
	},
	KindConfigParse: {
		sentinel: ErrConfigParse,
		name:     "ConfigParse",
		code:     "steppe::config::parse",
	},
	KindTaskNotFound: {
		sentinel: ErrTaskNotFound,
		name:     "TaskNotFound",
		code:     "steppe::task::not_found",
		help:     "Run `steppe list` to see available tasks",
	},
	KindCyclicDependency: {
		sentinel: ErrCyclicDependency,
		name:     "CyclicDependency",
		code:     "steppe::task::cycle",
		help:     "Check the 'depends' field in your task definitions",
	},
	KindInvalidTask: {
		sentinel: ErrInvalidTask,
		name:     "InvalidTask",
		code:     "steppe::task::invalid",
	},
	KindCommandNotFound: {
		sentinel: ErrCommandNotFound,
		name:     "CommandNotFound",
		code:     "steppe::exec::command_not_found",
		help:     "Ensure the command is installed and in your PATH",
	},
	KindTaskFailed: {
		sentinel: ErrTaskFailed,
		name:     "TaskFailed",
		code:     "steppe::task::failed",
	},
	KindScriptFailed: {
		sentinel: ErrScriptFailed,
		name:     "ScriptFailed",
		code:     "steppe::script::failed",
	},
	KindBlocked: {
		sentinel: ErrBlocked,
		name:     "Blocked",
		code:     "steppe::task::blocked",
	},
	KindCache: {
		sentinel: ErrCache,
		name:     "Cache",
		code:     "steppe::cache",
	},
	KindWatch: {
		sentinel: ErrWatch,
		name:     "Watch",
		code:     "steppe::watch",
	},
	KindIO: {
		sentinel: ErrIO,
		name:     "Io",
		code:     "steppe::io",
	},
}

// kindOrder fixes the classification order so KindOf is deterministic when
// an error chain joins several kinds.
var kindOrder = []Kind{
	KindConfigNotFound,
	KindConfigParse,
	KindTaskNotFound,
	KindCyclicDependency,
	KindInvalidTask,
	KindCommandNotFound,
	KindTaskFailed,
	KindScriptFailed,
	KindBlocked,
	KindCache,
	KindWatch,
	KindIO,
}

// String returns the name of the kind.
func (k Kind) String() string {
	if info, ok := kinds[k]; ok {
		return info.name
	}
	return "Unknown"
}

// Code returns the stable diagnostic code of the kind.
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return "steppe::unknown"
}

// Sentinel returns the sentinel error that identifies the kind in an error chain.
func (k Kind) Sentinel() error {
	if info, ok := kinds[k]; ok {
		return info.sentinel
	}
	return nil
}

// KindOf reports the kind of err by inspecting its chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	// The outermost kind wins: a ScriptFailed wrapping an IO error is a ScriptFailed.
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	for _, k := range kindOrder {
		if errors.Is(err, kinds[k].sentinel) {
			return k
		}
	}
	return KindUnknown
}

// Code returns the diagnostic code for err.
func Code(err error) string {
	return KindOf(err).Code()
}

// Help returns the human help text for err, if any.
// A TaskFailed error uses its captured stderr as help.
func Help(err error) string {
	kind := KindOf(err)
	if kind == KindTaskFailed {
		var ke *kindError
		if errors.As(err, &ke) && ke.help != "" {
			return ke.help
		}
		return ""
	}
	if kind == KindUnknown {
		return ""
	}
	return kinds[kind].help
}

// kindError ties a kind sentinel to an optional detail and cause.
// Its message reads "<kind message>: <detail>: <cause>".
type kindError struct {
	kind   Kind
	detail string
	help   string
	cause  error
}

func (e *kindError) Error() string {
	parts := []string{kinds[e.kind].sentinel.Error()}
	if e.detail != "" {
		parts = append(parts, e.detail)
	}
	if e.cause != nil {
		parts = append(parts, e.cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Message returns the message without the cause, matching zerr's chain rendering.
func (e *kindError) Message() string {
	if e.detail == "" {
		return kinds[e.kind].sentinel.Error()
	}
	return kinds[e.kind].sentinel.Error() + ": " + e.detail
}

func (e *kindError) Unwrap() []error {
	if e.cause == nil {
		return []error{kinds[e.kind].sentinel}
	}
	return []error{kinds[e.kind].sentinel, e.cause}
}

// Cause returns the nested cause for single-chain walkers.
func (e *kindError) Cause() error {
	return e.cause
}

func newKindError(kind Kind, detail string, cause error) error {
	return zerr.Wrap(&kindError{kind: kind, detail: detail, cause: cause}, "")
}

// NewConfigNotFound reports that no configuration file exists in any searched directory.
func NewConfigNotFound(searched []string) error {
	return zerr.With(newKindError(KindConfigNotFound, "", nil), "searched", searched)
}

// NewConfigParse reports a configuration parse failure at path.
func NewConfigParse(path string, cause error) error {
	return zerr.With(newKindError(KindConfigParse, path, cause), "path", path)
}

// NewTaskNotFound reports a missing task along with every known task name.
func NewTaskNotFound(name string, available []string) error {
	err := zerr.With(newKindError(KindTaskNotFound, name, nil), "task", name)
	return zerr.With(err, "available", available)
}

// NewCycle reports a dependency cycle. The cycle starts and ends with the same task.
func NewCycle(cycle []string) error {
	return zerr.With(newKindError(KindCyclicDependency, RenderCycle(cycle), nil), "cycle", cycle)
}

// RenderCycle joins a cycle path with arrows.
func RenderCycle(cycle []string) string {
	return strings.Join(cycle, " → ")
}

// NewInvalidTask reports an internally inconsistent task declaration.
func NewInvalidTask(task, reason string) error {
	err := zerr.With(newKindError(KindInvalidTask, task+": "+reason, nil), "task", task)
	return zerr.With(err, "reason", reason)
}

// NewCommandNotFound reports that program could not be resolved.
func NewCommandNotFound(program string) error {
	return zerr.With(newKindError(KindCommandNotFound, program, nil), "command", program)
}

// NewTaskFailed reports a non-zero exit. The captured stderr becomes help text.
func NewTaskFailed(task string, exitCode int, stderr string) error {
	ke := &kindError{
		kind:   KindTaskFailed,
		detail: fmt.Sprintf("%s exited with code %d", task, exitCode),
		help:   strings.TrimSpace(stderr),
	}
	err := zerr.With(zerr.Wrap(ke, ""), "task", task)
	err = zerr.With(err, "exit_code", exitCode)
	if ke.help != "" {
		err = zerr.With(err, "stderr", ke.help)
	}
	return err
}

// NewTaskAborted reports a task whose process was terminated before it exited on its own.
func NewTaskAborted(task string, cause error) error {
	err := zerr.With(newKindError(KindTaskFailed, task+" aborted", cause), "task", task)
	return zerr.With(err, "exit_code", -1)
}

// NewScriptFailed wraps an evaluator failure, preserving it as the nested cause.
func NewScriptFailed(task string, cause error) error {
	return zerr.With(newKindError(KindScriptFailed, task, cause), "task", task)
}

// NewBlocked reports a task that never ran because blocker failed.
func NewBlocked(task, blocker string) error {
	err := zerr.With(newKindError(KindBlocked, task, nil), "task", task)
	return zerr.With(err, "blocked_by", blocker)
}

// NewCacheError wraps a cache backing-store fault.
func NewCacheError(message string, cause error) error {
	return newKindError(KindCache, message, cause)
}

// NewWatchError wraps a filesystem observation fault.
func NewWatchError(cause error) error {
	return newKindError(KindWatch, "", cause)
}

// NewIOError wraps an OS fault with the operation that was attempted.
func NewIOError(op, path string, cause error) error {
	err := zerr.With(newKindError(KindIO, op, cause), "op", op)
	if path != "" {
		err = zerr.With(err, "path", path)
	}
	return err
}

func withReferencedBy(err error, task string) error {
	return zerr.With(err, "referenced_by", task)
}
