// Package docmodel defines the normalized document mdl's core consumes.
// Parsing the user's Markdown action definitions into this shape is the
// Markdown front-end's job and happens upstream of this module; this
// package only decodes the YAML the front-end would hand to the core and
// maps it onto internal/domain/action's pure value objects.
package docmodel

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"
)

var actionNamePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// Document is the full normalized definition set discovered by `--defs`
// globbing.
type Document struct {
	Axes        []Axis     `yaml:"axes,omitempty" validate:"omitempty,dive"`
	Environment Environment `yaml:"environment,omitempty"`
	Actions     []Action   `yaml:"actions" validate:"required,min=1,dive"`
}

// Axis mirrors action.AxisDefinition on the wire.
type Axis struct {
	Name    string   `yaml:"name" validate:"required,axis_name"`
	Values  []string `yaml:"values" validate:"required,min=1"`
	Default string   `yaml:"default,omitempty"`
}

// Environment is the document's `environment` block: vars listed here are
// exported into every child process;
// Passthrough vars are forwarded only when present in the parent's
// environment.
type Environment struct {
	Vars        map[string]string `yaml:"vars,omitempty"`
	Passthrough []string          `yaml:"passthrough,omitempty"`
}

// Action mirrors action.ActionDefinition on the wire.
type Action struct {
	Name        string    `yaml:"name" validate:"required,action_name"`
	Description string    `yaml:"description,omitempty"`
	RequiredEnv []string  `yaml:"required_env,omitempty"`
	Versions    []Version `yaml:"versions" validate:"required,min=1,dive"`
}

// Version mirrors action.ActionVersion on the wire. Conditions and Returns
// are pre-extracted by the front-end; expansions and in-script dependency
// declarations are scanned from Script by ToDomain.
type Version struct {
	Language   string       `yaml:"language" validate:"required,oneof=bash python"`
	Script     string       `yaml:"script" validate:"required"`
	Conditions []Condition  `yaml:"conditions,omitempty" validate:"omitempty,dive"`
	Returns    []Return     `yaml:"returns,omitempty" validate:"omitempty,dive"`
	StrongDeps []string     `yaml:"depends_on,omitempty"`
	WeakDeps   []string     `yaml:"weak_depends_on,omitempty"`
	SoftDeps   []SoftDep    `yaml:"soft_depends_on,omitempty" validate:"omitempty,dive"`
	EnvDeps    []string     `yaml:"env_depends_on,omitempty"`
	Args       []Argument   `yaml:"args,omitempty" validate:"omitempty,dive"`
	Flags      []Flag       `yaml:"flags,omitempty" validate:"omitempty,dive"`
}

// Condition mirrors action.Condition on the wire: exactly one of Axis/Value
// or Platform must be set.
type Condition struct {
	Axis     string `yaml:"axis,omitempty"`
	Value    string `yaml:"value,omitempty"`
	Platform string `yaml:"platform,omitempty"`
}

// Return mirrors action.ReturnDeclaration on the wire.
type Return struct {
	Name  string `yaml:"name" validate:"required"`
	Type  string `yaml:"type" validate:"required,oneof=int string bool file directory"`
	Value string `yaml:"value,omitempty"`
}

// SoftDep mirrors action.SoftDependency on the wire.
type SoftDep struct {
	Target   string `yaml:"target" validate:"required"`
	Retainer string `yaml:"retainer" validate:"required"`
}

// Argument mirrors action.ArgumentDefinition on the wire.
type Argument struct {
	Name    string  `yaml:"name" validate:"required"`
	Type    string  `yaml:"type" validate:"required,oneof=int string bool file directory"`
	Default *string `yaml:"default,omitempty"`
}

// Flag mirrors action.FlagDefinition on the wire.
type Flag struct {
	Name    string `yaml:"name" validate:"required"`
	Default bool   `yaml:"default,omitempty"`
}

// Decode parses raw normalized-document YAML. Kept separate from file I/O so
// tests can exercise it against in-memory fixtures.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}
