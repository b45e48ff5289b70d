package macro

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loveplay1983/pydirector-cn/internal/models"
)

// Macro is a portable, ordered list of actions.
type Macro struct {
	Name        string  `yaml:"name,omitempty"`
	Description string  `yaml:"description,omitempty"`
	Actions     []Entry `yaml:"actions"`

	// Logs holds messages a Lua script passed to log().
	Logs []string `yaml:"-"`
}

// Entry is one action without store identity.
type Entry struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`
	Params string `yaml:"params,omitempty"`
}

// Creator is the part of the action store Import needs.
type Creator interface {
	CreateAction(name string, kind models.Kind, parameters string) (int64, error)
}

// Load reads a macro from a .lua script or a YAML file.
func Load(path string) (*Macro, error) {
	if IsLuaScript(path) {
		return NewRuntime().Execute(path)
	}
	return Parse(path)
}

func Parse(path string) (*Macro, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read macro file: %w", err)
	}

	var m Macro
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse macro YAML: %w", err)
	}

	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	return &m, nil
}

// Validate checks that every entry names a known kind. Parameters are
// checked by the interpreter at run time.
func Validate(m *Macro) error {
	if len(m.Actions) == 0 {
		return fmt.Errorf("macro %q has no actions", m.Name)
	}

	for i, e := range m.Actions {
		if _, err := models.ParseKind(e.Kind); err != nil {
			return fmt.Errorf("action %d (%s): %w", i+1, e.Name, err)
		}
	}

	return nil
}

// Import appends the macro's actions to the store in file order and
// returns the new ids.
func Import(store Creator, m *Macro) ([]int64, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(m.Actions))
	for _, e := range m.Actions {
		kind, _ := models.ParseKind(e.Kind)
		name := e.Name
		if name == "" {
			name = string(kind)
		}

		id, err := store.CreateAction(name, kind, e.Params)
		if err != nil {
			return ids, fmt.Errorf("failed to import %q: %w", name, err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// FromActions builds a macro from stored actions, normalising legacy
// kind labels where possible.
func FromActions(name string, actions []models.Action) *Macro {
	m := &Macro{Name: name}
	for _, a := range actions {
		kind := string(a.Kind)
		if k, err := models.ParseKind(kind); err == nil {
			kind = string(k)
		}
		m.Actions = append(m.Actions, Entry{Name: a.Name, Kind: kind, Params: a.Parameters})
	}
	return m
}

// Write stores m as YAML.
func Write(path string, m *Macro) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal macro: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write macro file: %w", err)
	}

	return nil
}
