// Package action holds mdl's domain model: the typed entities the Markdown
// front-end normalizes into before the planner-executor core ever sees them
// before the planner-executor core ever sees them. These are pure value
// objects with no YAML tags, no I/O, no
// logging — so the context algebra, graph builder and scheduler can depend
// on them without pulling in the document loader.
package action

import (
	"fmt"
	"regexp"
)

var nameKebabPattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// Language identifies the interpreter a version's script runs under.
type Language string

const (
	LanguageBash   Language = "bash"
	LanguagePython Language = "python"
)

// ArgumentType enumerates the supported CLI argument/return value types.
type ArgumentType string

const (
	TypeInt       ArgumentType = "int"
	TypeString    ArgumentType = "string"
	TypeBool      ArgumentType = "bool"
	TypeFile      ArgumentType = "file"
	TypeDirectory ArgumentType = "directory"
)

func isValidArgumentType(t ArgumentType) bool {
	switch t {
	case TypeInt, TypeString, TypeBool, TypeFile, TypeDirectory:
		return true
	default:
		return false
	}
}

// ConditionKind distinguishes an axis predicate from a platform predicate.
type ConditionKind string

const (
	ConditionAxis     ConditionKind = "axis"
	ConditionPlatform ConditionKind = "platform"
)

// Condition gates a version's selection in a given context.
// An axis condition is satisfied when the resolved context binds AxisName to
// AxisValue; a platform condition is satisfied when the host platform
// equals PlatformValue.
type Condition struct {
	Kind          ConditionKind
	AxisName      string
	AxisValue     string
	PlatformValue string
}

// Satisfied reports whether the condition holds for the given context and
// host platform (GOOS-style identifier, e.g. "linux", "darwin").
func (c Condition) Satisfied(ctx map[string]string, platform string) bool {
	switch c.Kind {
	case ConditionAxis:
		return ctx[c.AxisName] == c.AxisValue
	case ConditionPlatform:
		return platform == c.PlatformValue
	default:
		return false
	}
}

func (c Condition) Validate() error {
	switch c.Kind {
	case ConditionAxis:
		if c.AxisName == "" {
			return newMissingFieldError("axis name")
		}
		if c.AxisValue == "" {
			return newMissingFieldError("axis value")
		}
	case ConditionPlatform:
		if c.PlatformValue == "" {
			return newMissingFieldError("platform value")
		}
	default:
		return newTypeError("axis or platform", string(c.Kind))
	}
	return nil
}

// ExpansionKind tags what an `${...}` reference substitutes.
type ExpansionKind string

const (
	ExpansionSystem       ExpansionKind = "system"
	ExpansionEnv          ExpansionKind = "env"
	ExpansionArgs         ExpansionKind = "args"
	ExpansionFlags        ExpansionKind = "flags"
	ExpansionActionStrong ExpansionKind = "action_strong"
	ExpansionActionWeak   ExpansionKind = "action_weak"
	ExpansionRetained     ExpansionKind = "retained"
)

// Expansion is one `${...}` reference extracted from a version's script
// text. Target/Field identify what is being referenced: for
// `${action.strong.A.v}` Target is "A" and Field is "v"; for `${args.X}`
// Target is "X" and Field is empty; for `${retained.soft.X}` Target is "X".
type Expansion struct {
	Kind       ExpansionKind
	Target     string
	Field      string
	RawLiteral string // the exact `${...}` text, used for rendering substitution
}

func (e Expansion) Validate() error {
	if e.Target == "" {
		return newMissingFieldError("expansion target")
	}
	switch e.Kind {
	case ExpansionSystem, ExpansionEnv, ExpansionArgs, ExpansionFlags,
		ExpansionActionStrong, ExpansionActionWeak, ExpansionRetained:
		return nil
	default:
		return newTypeError("system|env|args|flags|action(strong)|action(weak)|retained", string(e.Kind))
	}
}

// IsActionRef reports whether the expansion references another action's
// output, strong or weak.
func (e Expansion) IsActionRef() bool {
	return e.Kind == ExpansionActionStrong || e.Kind == ExpansionActionWeak
}

// ReturnDeclaration names a typed output a version may publish via `ret` /
// `mdl.ret(...)`. ValueExpr is the source-level expression as written in the
// script; the core never evaluates it, only records the declared shape.
type ReturnDeclaration struct {
	Name      string
	Type      ArgumentType
	ValueExpr string
}

func (r ReturnDeclaration) Validate() error {
	if r.Name == "" {
		return newMissingFieldError("return name")
	}
	if !isValidArgumentType(r.Type) {
		return newTypeError("int|string|bool|file|directory", string(r.Type))
	}
	return nil
}

// SoftDependency is a `soft action.F retain.action.R` declaration: F is only
// scheduled if R signals retain.
type SoftDependency struct {
	Target    string
	Retainer  string
}

func (s SoftDependency) Validate() error {
	if s.Target == "" {
		return newMissingFieldError("soft dependency target")
	}
	if s.Retainer == "" {
		return newMissingFieldError("soft dependency retainer")
	}
	return nil
}

// ArgumentDefinition describes one CLI-settable argument. Mandatoriness is
// derived: an argument with no Default and no CLI binding is missing
// reported by the validator as a missing argument.
type ArgumentDefinition struct {
	Name    string
	Type    ArgumentType
	Default *string
}

// Mandatory reports whether the argument must be bound (no declared
// default).
func (a ArgumentDefinition) Mandatory() bool {
	return a.Default == nil
}

func (a ArgumentDefinition) Validate() error {
	if a.Name == "" {
		return newMissingFieldError("argument name")
	}
	if !isValidArgumentType(a.Type) {
		return newTypeError("int|string|bool|file|directory", string(a.Type))
	}
	return nil
}

// FlagDefinition describes a boolean CLI flag; a flag is false unless its
// definition sets Default.
type FlagDefinition struct {
	Name    string
	Default bool
}

func (f FlagDefinition) Validate() error {
	if f.Name == "" {
		return newMissingFieldError("flag name")
	}
	return nil
}

// AxisDefinition declares one dimension of the context space. At most one
// value may be marked default.
type AxisDefinition struct {
	Name    string
	Values  []string
	Default *string
}

func (a AxisDefinition) Validate() error {
	if a.Name == "" {
		return newMissingFieldError("axis name")
	}
	if len(a.Values) == 0 {
		return newValidationError("axis must declare at least one value", map[string]interface{}{"axis": a.Name})
	}
	seen := make(map[string]struct{}, len(a.Values))
	for _, v := range a.Values {
		if _, ok := seen[v]; ok {
			return newDuplicateError(fmt.Sprintf("%s:%s", a.Name, v))
		}
		seen[v] = struct{}{}
	}
	if a.Default != nil {
		if _, ok := seen[*a.Default]; !ok {
			return newValidationError("axis default is not an allowed value", map[string]interface{}{
				"axis": a.Name, "default": *a.Default,
			})
		}
	}
	return nil
}

// HasValue reports whether v is one of the axis's allowed values.
func (a AxisDefinition) HasValue(v string) bool {
	for _, candidate := range a.Values {
		if candidate == v {
			return true
		}
	}
	return false
}

// ActionVersion is a script bound by zero or more conditions.
type ActionVersion struct {
	Script      string
	Language    Language
	Conditions  []Condition
	Expansions  []Expansion
	Returns     []ReturnDeclaration
	StrongDeps  []string
	WeakDeps    []string
	SoftDeps    []SoftDependency
	EnvDeps     []string
	Args        []ArgumentDefinition
	Flags       []FlagDefinition
}

// ConditionCount returns the number of conditions gating this version, used
// by the maximal-condition-count selection rule.
func (v ActionVersion) ConditionCount() int {
	return len(v.Conditions)
}

// Satisfies reports whether every condition on this version holds for the
// given context and platform.
func (v ActionVersion) Satisfies(ctx map[string]string, platform string) bool {
	for _, c := range v.Conditions {
		if !c.Satisfied(ctx, platform) {
			return false
		}
	}
	return true
}

// ReturnNames returns the set of declared return names, used by the
// validator's "Missing outputs" check.
func (v ActionVersion) ReturnNames() map[string]ReturnDeclaration {
	out := make(map[string]ReturnDeclaration, len(v.Returns))
	for _, r := range v.Returns {
		out[r.Name] = r
	}
	return out
}

func (v ActionVersion) Validate() error {
	switch v.Language {
	case LanguageBash, LanguagePython:
	default:
		return newTypeError("bash|python", string(v.Language))
	}
	for _, c := range v.Conditions {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	for _, e := range v.Expansions {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	for _, r := range v.Returns {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	for _, s := range v.SoftDeps {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	for _, a := range v.Args {
		if err := a.Validate(); err != nil {
			return err
		}
	}
	for _, f := range v.Flags {
		if err := f.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ActionDefinition is a unique, kebab-case named unit of work with one or
// more versions.
type ActionDefinition struct {
	Name        string
	Description string
	RequiredEnv []string
	Versions    []ActionVersion
}

func (a ActionDefinition) Validate() error {
	if a.Name == "" {
		return newMissingFieldError("action name")
	}
	if !nameKebabPattern.MatchString(a.Name) {
		return newValidationError("action name must be kebab-case", map[string]interface{}{"name": a.Name})
	}
	for i, v := range a.Versions {
		if err := v.Validate(); err != nil {
			return NewDomainError(ErrCodeValidation, "invalid version", err, map[string]interface{}{
				"action": a.Name, "version_index": i,
			})
		}
	}
	return nil
}

// SelectVersion picks the version satisfying all
// conditions with maximal condition count; ties are errors.
func (a ActionDefinition) SelectVersion(ctx map[string]string, platform string) (*ActionVersion, error) {
	var best *ActionVersion
	bestCount := -1
	tie := false

	for i := range a.Versions {
		v := &a.Versions[i]
		if !v.Satisfies(ctx, platform) {
			continue
		}
		count := v.ConditionCount()
		switch {
		case count > bestCount:
			best = v
			bestCount = count
			tie = false
		case count == bestCount:
			tie = true
		}
	}

	if best == nil {
		return nil, NewDomainError(ErrCodeNoVersion, "no version matches context", nil, map[string]interface{}{
			"action": a.Name,
		})
	}
	if tie {
		return nil, NewDomainError(ErrCodeAmbiguous, "multiple versions tie on condition count", nil, map[string]interface{}{
			"action": a.Name, "condition_count": bestCount,
		})
	}
	return best, nil
}

// IsMultiVersion reports whether selecting a version for this action
// could depend on an axis condition at all (used by the validator's
// "Missing required axis" check when the action has more than one version).
func (a ActionDefinition) IsMultiVersion() bool {
	return len(a.Versions) > 1
}
