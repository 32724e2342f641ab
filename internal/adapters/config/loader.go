// Package config provides the configuration loader for steppe.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.trai.ch/steppe/internal/core/domain"
	"go.trai.ch/steppe/internal/core/ports"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/syntax"
)

var _ ports.ConfigLoader = (*Loader)(nil)

// Loader implements ports.ConfigLoader using a YAML file.
type Loader struct {
	Logger ports.Logger
}

// NewLoader creates a new Loader with the given logger.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{Logger: logger}
}

// Load discovers steppe.yaml upward from cwd and returns the validated task graph.
func (l *Loader) Load(cwd string) (*domain.Graph, error) {
	configPath, err := findConfiguration(cwd)
	if err != nil {
		return nil, err
	}
	return l.LoadFile(configPath)
}

// DiscoverRoot returns the directory holding the nearest steppe.yaml.
func (l *Loader) DiscoverRoot(cwd string) (string, error) {
	configPath, err := findConfiguration(cwd)
	if err != nil {
		return "", err
	}
	return filepath.Dir(configPath), nil
}

// LoadFile reads the configuration at configPath and returns the validated task graph.
func (l *Loader) LoadFile(configPath string) (*domain.Graph, error) {
	// #nosec G304 -- configPath is discovered or given on the command line
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.NewConfigNotFound([]string{filepath.Dir(configPath)})
		}
		return nil, domain.NewIOError("read config", configPath, err)
	}

	var stepfile Stepfile
	if err := yaml.Unmarshal(data, &stepfile); err != nil {
		return nil, domain.NewConfigParse(configPath, err)
	}

	g := domain.NewGraph()
	g.SetRoot(resolveRoot(configPath, stepfile.Root))

	entries, err := taskEntries(&stepfile.Tasks)
	if err != nil {
		return nil, domain.NewConfigParse(configPath, err)
	}

	for _, entry := range entries {
		task, err := l.buildTask(configPath, entry, stepfile.Env)
		if err != nil {
			return nil, zerr.With(err, "line", entry.line)
		}
		if err := g.AddTask(task); err != nil {
			return nil, zerr.With(err, "line", entry.line)
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

type taskEntry struct {
	name string
	line int
	dto  TaskDTO
}

// taskEntries decodes the tasks mapping in declaration order.
func taskEntries(tasks *yaml.Node) ([]taskEntry, error) {
	if tasks.IsZero() || tasks.Tag == "!!null" {
		return nil, nil
	}
	if tasks.Kind != yaml.MappingNode {
		return nil, zerr.With(zerr.New("tasks must be a mapping of task names"), "line", tasks.Line)
	}

	// Decoding into a map makes yaml.v3 reject duplicate task names.
	var unique map[string]yaml.Node
	if err := tasks.Decode(&unique); err != nil {
		return nil, err
	}

	entries := make([]taskEntry, 0, len(tasks.Content)/2)
	for i := 0; i+1 < len(tasks.Content); i += 2 {
		key, value := tasks.Content[i], tasks.Content[i+1]

		var dto TaskDTO
		if err := value.Decode(&dto); err != nil {
			return nil, zerr.With(err, "task", key.Value)
		}
		entries = append(entries, taskEntry{name: key.Value, line: key.Line, dto: dto})
	}
	return entries, nil
}

func (l *Loader) buildTask(configPath string, entry taskEntry, projectEnv map[string]string) (*domain.Task, error) {
	name, dto := entry.name, &entry.dto
	if err := domain.ValidateTaskName(name); err != nil {
		return nil, err
	}

	env := mergeEnv(projectEnv, dto.Env)

	var task *domain.Task
	switch {
	case !dto.Cmd.IsZero() && dto.Script != "":
		return nil, domain.NewInvalidTask(name, "task declares both cmd and script")
	case !dto.Cmd.IsZero():
		argv, err := commandWords(dto.Cmd, env)
		if err != nil {
			err = zerr.With(err, "task", name)
			return nil, domain.NewConfigParse(configPath, err)
		}
		if len(argv) == 0 {
			return nil, domain.NewInvalidTask(name, "command is empty")
		}
		task = domain.NewCommandTask(name, argv[0], argv[1:]...)
		task.Body = domain.CommandBody{Program: argv[0], Args: argv[1:], Dir: cleanDir(dto.Dir)}
	case dto.Script != "":
		task = domain.NewScriptTask(name, dto.Script)
		if dto.Dir != "" {
			l.Logger.Warn(fmt.Sprintf("task %s: 'dir' has no effect on script tasks", name))
		}
	default:
		return nil, domain.NewInvalidTask(name, "task declares neither cmd nor script")
	}

	task.Description = dto.Description
	task.Dependencies = domain.NewInternedStrings(uniqueInOrder(dto.Depends))
	task.Inputs = canonicalizeStrings(dto.Inputs)
	task.Outputs = canonicalizeStrings(dto.Outputs)
	task.Environment = env
	task.AlwaysRun = dto.Always

	if len(task.Outputs) > 0 && len(task.Inputs) == 0 {
		l.Logger.Warn(fmt.Sprintf("task %s declares outputs but no inputs and is never cached", name))
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}
	return task, nil
}

// commandWords returns the argument vector of cmd. A command line is split into
// shell words and its $VARS are expanded against env overlaid on the process
// environment. Lists are used verbatim.
func commandWords(cmd Command, env map[string]string) ([]string, error) {
	if cmd.Line == "" {
		return slices.Clone(cmd.Words), nil
	}

	var words []*syntax.Word
	parser := syntax.NewParser()
	err := parser.Words(strings.NewReader(cmd.Line), func(w *syntax.Word) bool {
		words = append(words, w)
		return true
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to split command"), "cmd", cmd.Line)
	}

	pairs := os.Environ()
	for _, k := range slices.Sorted(maps.Keys(env)) {
		pairs = append(pairs, k+"="+env[k])
	}
	fields, err := expand.Fields(&expand.Config{Env: expand.ListEnviron(pairs...)}, words...)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to expand command"), "cmd", cmd.Line)
	}
	return fields, nil
}

// findConfiguration walks upward from cwd until it finds steppe.yaml.
func findConfiguration(cwd string) (string, error) {
	var searched []string
	currentDir := filepath.Clean(cwd)

	for {
		searched = append(searched, currentDir)
		candidate := filepath.Join(currentDir, domain.ConfigFileName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root
			break
		}
		currentDir = parentDir
	}

	return "", domain.NewConfigNotFound(searched)
}

func resolveRoot(configPath, configuredRoot string) string {
	configDir := filepath.Dir(configPath)
	if configuredRoot == "" {
		return filepath.Clean(configDir)
	}
	if filepath.IsAbs(configuredRoot) {
		return filepath.Clean(configuredRoot)
	}
	return filepath.Clean(filepath.Join(configDir, configuredRoot))
}

func cleanDir(dir string) string {
	if dir == "" {
		return ""
	}
	return filepath.Clean(dir)
}

// mergeEnv overlays the task environment on the project environment.
func mergeEnv(project, task map[string]string) map[string]string {
	if len(project) == 0 && len(task) == 0 {
		return nil
	}
	result := make(map[string]string, len(project)+len(task))
	maps.Copy(result, project)
	maps.Copy(result, task)
	return result
}

func canonicalizeStrings(strs []string) []domain.InternedString {
	if len(strs) == 0 {
		return nil
	}

	sorted := slices.Clone(strs)
	slices.Sort(sorted)
	return domain.NewInternedStrings(slices.Compact(sorted))
}

func uniqueInOrder(strs []string) []string {
	seen := make(map[string]bool, len(strs))
	out := make([]string, 0, len(strs))
	for _, s := range strs {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
