package script

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.starlark.net/starlark"
	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/zerr"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// shKillTimeout is how long sh() waits after an interrupt before killing a command.
const shKillTimeout = 2 * time.Second

func builtins() starlark.StringDict {
	return starlark.StringDict{
		"OS":         starlark.String(runtime.GOOS),
		"ARCH":       starlark.String(runtime.GOARCH),
		"info":       starlark.NewBuiltin("info", starInfo),
		"warn":       starlark.NewBuiltin("warn", starWarn),
		"getenv":     starlark.NewBuiltin("getenv", getenv),
		"setenv":     starlark.NewBuiltin("setenv", setenv),
		"exists":     starlark.NewBuiltin("exists", starExists),
		"isfile":     starlark.NewBuiltin("isfile", starIsfile),
		"isdir":      starlark.NewBuiltin("isdir", starIsdir),
		"read_file":  starlark.NewBuiltin("read_file", readFile),
		"write_file": starlark.NewBuiltin("write_file", writeFile),
		"glob":       starlark.NewBuiltin("glob", starGlob),
		"sh":         starlark.NewBuiltin("sh", starSh),
	}
}

// resolve makes path absolute against the script directory.
func resolve(thread *starlark.Thread, path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(stateOf(thread).dir, path)
}

func starInfo(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message); err != nil {
		return nil, err
	}

	thread.Print(thread, message)
	return starlark.None, nil
}

func starWarn(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var message string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &message); err != nil {
		return nil, err
	}

	st := stateOf(thread)
	st.logger.Warn(st.task + ": " + message)
	return starlark.None, nil
}

func getenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key string
	var defaultValue starlark.Value = starlark.None
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &key, &defaultValue); err != nil {
		return nil, err
	}

	if value, ok := stateOf(thread).env.get(key); ok {
		return starlark.String(value), nil
	}
	return defaultValue, nil
}

func setenv(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, value string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &key, &value); err != nil {
		return nil, err
	}

	stateOf(thread).env.set(key, value)
	return starlark.None, nil
}

func starExists(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path); err != nil {
		return nil, err
	}

	_, err := os.Stat(resolve(thread, path))
	return starlark.Bool(err == nil), nil
}

func starIsfile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path); err != nil {
		return nil, err
	}

	info, err := os.Stat(resolve(thread, path))
	return starlark.Bool(err == nil && info.Mode().IsRegular()), nil
}

func starIsdir(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path); err != nil {
		return nil, err
	}

	info, err := os.Stat(resolve(thread, path))
	return starlark.Bool(err == nil && info.IsDir()), nil
}

func readFile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(resolve(thread, path))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read file"), "path", path)
	}
	return starlark.String(data), nil
}

func writeFile(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var path, content string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &path, &content); err != nil {
		return nil, err
	}

	abs := resolve(thread, path)
	if err := os.MkdirAll(filepath.Dir(abs), domain.DirPerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create directory"), "path", path)
	}
	if err := os.WriteFile(abs, []byte(content), domain.FilePerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to write file"), "path", path)
	}
	return starlark.None, nil
}

// starGlob returns the files matching a doublestar pattern, relative to the script directory.
func starGlob(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &pattern); err != nil {
		return nil, err
	}

	fsys := os.DirFS(stateOf(thread).dir)
	matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern), doublestar.WithFilesOnly())
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid glob pattern"), "pattern", pattern)
	}
	slices.Sort(matches)

	values := make([]starlark.Value, len(matches))
	for i, m := range matches {
		values[i] = starlark.String(m)
	}
	return starlark.NewList(values), nil
}

// starSh runs a shell snippet with mvdan.cc/sh and returns its stdout.
// Stderr is forwarded to the task output. A failing snippet raises an error
// unless check=False, in which case the captured stdout is still returned.
func starSh(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var command string
	check := true
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "command", &command, "check?", &check); err != nil {
		return nil, err
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(command), "sh")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to parse shell command")
	}

	st := stateOf(thread)
	var out bytes.Buffer
	runner, err := interp.New(
		interp.Dir(st.dir),
		interp.Env(expand.ListEnviron(st.env.pairs()...)),
		interp.ExecHandler(interp.DefaultExecHandler(shKillTimeout)),
		interp.StdIO(nil, &out, st.stdout),
		interp.Params("-e"),
	)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to initialize shell")
	}

	if err := runner.Run(st.ctx, file); err != nil && check {
		if status, ok := interp.IsExitStatus(err); ok {
			return nil, zerr.With(zerr.New("shell command failed"), "exit_code", int(status))
		}
		return nil, zerr.Wrap(err, "shell command failed")
	}
	return starlark.String(out.String()), nil
}
