package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Stepfile represents the structure of the steppe.yaml configuration file.
// Tasks stay a yaml.Node so declaration order survives decoding.
type Stepfile struct {
	Root  string            `yaml:"root"`
	Env   map[string]string `yaml:"env"`
	Tasks yaml.Node         `yaml:"tasks"`
}

// TaskDTO represents a task definition in the configuration.
type TaskDTO struct {
	Description string            `yaml:"description"`
	Cmd         Command           `yaml:"cmd"`
	Script      string            `yaml:"script"`
	Dir         string            `yaml:"dir"`
	Env         map[string]string `yaml:"env"`
	Depends     []string          `yaml:"depends"`
	Inputs      []string          `yaml:"inputs"`
	Outputs     []string          `yaml:"outputs"`
	Always      bool              `yaml:"always"`
}

// Command is either a shell-like command line or an explicit argument list.
type Command struct {
	Line  string
	Words []string
}

// UnmarshalYAML accepts a scalar command line or a sequence of words.
func (c *Command) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag != "!!null" {
			c.Line = n.Value
		}
		return nil
	case yaml.SequenceNode:
		return n.Decode(&c.Words)
	default:
		return &yaml.TypeError{Errors: []string{
			fmt.Sprintf("line %d: cmd must be a string or a list of strings", n.Line),
		}}
	}
}

// IsZero reports whether no command was declared.
func (c Command) IsZero() bool {
	return c.Line == "" && len(c.Words) == 0
}
