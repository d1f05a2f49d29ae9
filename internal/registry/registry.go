// Package registry loads and validates the catalog of known commands.
package registry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ashwch/bumblebee/internal/runtime"
	"gopkg.in/yaml.v3"
)

//go:embed default_commands.json
var defaultCommands []byte

type Command struct {
	ID          string   `json:"id" yaml:"id"`
	Description string   `json:"description" yaml:"description"`
	Examples    []string `json:"examples,omitempty" yaml:"examples,omitempty"`
	Template    string   `json:"shell_command_template" yaml:"shell_command_template"`
	Dangerous   bool     `json:"dangerous,omitempty" yaml:"dangerous,omitempty"`
}

// fileCommand accepts the older shell_command key alongside the template key.
type fileCommand struct {
	ID           string   `json:"id" yaml:"id"`
	Description  string   `json:"description" yaml:"description"`
	Examples     []string `json:"examples" yaml:"examples"`
	Template     string   `json:"shell_command_template" yaml:"shell_command_template"`
	ShellCommand string   `json:"shell_command" yaml:"shell_command"`
	Dangerous    bool     `json:"dangerous" yaml:"dangerous"`
}

// Registry keeps commands in file order; that order breaks ranking ties.
type Registry struct {
	Commands []Command
	index    map[string]int
}

// ConfigurationError means the registry cannot be used for this attempt.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Load reads a JSON or YAML registry file. Every failure is a *ConfigurationError.
func Load(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Registry{}, &ConfigurationError{Path: path, Err: fmt.Errorf("registry not found")}
	}
	if err != nil {
		return Registry{}, &ConfigurationError{Path: path, Err: fmt.Errorf("could not read registry: %w", err)}
	}

	var reg Registry
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		reg, err = parseYAML(data)
	default:
		reg, err = Parse(data)
	}
	if err != nil {
		return Registry{}, &ConfigurationError{Path: path, Err: err}
	}
	return reg, nil
}

// Parse decodes and validates a JSON registry document.
func Parse(data []byte) (Registry, error) {
	var raw []fileCommand
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&raw); err != nil {
		return Registry{}, fmt.Errorf("malformed registry: %w", err)
	}
	return build(raw)
}

func parseYAML(data []byte) (Registry, error) {
	var raw []fileCommand
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Registry{}, fmt.Errorf("malformed registry: %w", err)
	}
	return build(raw)
}

func build(raw []fileCommand) (Registry, error) {
	commands := make([]Command, 0, len(raw))
	for _, item := range raw {
		template := item.Template
		if strings.TrimSpace(template) == "" {
			template = item.ShellCommand
		}
		commands = append(commands, Command{
			ID:          strings.TrimSpace(item.ID),
			Description: strings.TrimSpace(item.Description),
			Examples:    item.Examples,
			Template:    template,
			Dangerous:   item.Dangerous,
		})
	}
	return New(commands)
}

// New validates commands and builds the id index.
func New(commands []Command) (Registry, error) {
	reg := Registry{Commands: commands, index: make(map[string]int, len(commands))}
	if err := reg.validate(); err != nil {
		return Registry{}, err
	}
	return reg, nil
}

func (r *Registry) validate() error {
	if len(r.Commands) == 0 {
		return fmt.Errorf("registry has no commands")
	}
	for i, cmd := range r.Commands {
		if cmd.ID == "" {
			return fmt.Errorf("command #%d has no id", i+1)
		}
		if _, exists := r.index[cmd.ID]; exists {
			return fmt.Errorf("duplicate command id %q", cmd.ID)
		}
		if strings.TrimSpace(cmd.Template) == "" {
			return fmt.Errorf("command %q has no shell_command_template", cmd.ID)
		}
		for _, name := range runtime.Placeholders(cmd.Template) {
			if !runtime.AllowedPlaceholder(name) {
				return fmt.Errorf("command %q uses placeholder {%s}; only {value} and {delta} are allowed", cmd.ID, name)
			}
		}
		r.index[cmd.ID] = i
	}
	return nil
}

func (r Registry) Lookup(id string) (Command, bool) {
	i, ok := r.index[strings.TrimSpace(id)]
	if !ok {
		return Command{}, false
	}
	return r.Commands[i], true
}

func (r Registry) Len() int {
	return len(r.Commands)
}

// Texts lists the reference texts of a command: the trimmed description,
// then the examples exactly as written. Blank examples are skipped.
func Texts(cmd Command) []string {
	texts := make([]string, 0, 1+len(cmd.Examples))
	if d := strings.TrimSpace(cmd.Description); d != "" {
		texts = append(texts, d)
	}
	for _, example := range cmd.Examples {
		if strings.TrimSpace(example) != "" {
			texts = append(texts, example)
		}
	}
	return texts
}

// DefaultCatalog is the built-in starter registry.
func DefaultCatalog() (Registry, error) {
	return Parse(defaultCommands)
}

// DefaultCatalogJSON is the raw starter registry, as written by `registry init`.
func DefaultCatalogJSON() []byte {
	out := make([]byte, len(defaultCommands))
	copy(out, defaultCommands)
	return out
}

// WriteDefault writes the starter registry to path unless a file is already there.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("could not stat registry path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, fmt.Errorf("could not create registry dir: %w", err)
	}
	if err := os.WriteFile(path, defaultCommands, 0o600); err != nil {
		return false, fmt.Errorf("could not write registry: %w", err)
	}
	return true, nil
}
