package docmodel

import (
	"regexp"
	"strings"

	"github.com/mudyla/mdl/internal/domain/action"
)

var expansionPattern = regexp.MustCompile(`\$\{([a-z_]+(?:\.[a-zA-Z0-9_-]+)*)\}`)

// ToDomain maps the normalized wire document onto the pure domain model
// internal/graph and internal/ctxalgebra operate over. Expansions are
// extracted here by scanning the script text for `${...}` references — the
// one piece of "Markdown front-end" work the core still has to perform,
// since the normalized document only guarantees the script text itself,
// never a pre-tokenized expansion list (see ScanExpansions and
// ScanDeclarations below).
func ToDomain(doc *Document) ([]action.AxisDefinition, []action.ActionDefinition, Environment) {
	axes := make([]action.AxisDefinition, 0, len(doc.Axes))
	for _, a := range doc.Axes {
		var dflt *string
		if a.Default != "" {
			d := a.Default
			dflt = &d
		}
		axes = append(axes, action.AxisDefinition{Name: a.Name, Values: append([]string(nil), a.Values...), Default: dflt})
	}

	actions := make([]action.ActionDefinition, 0, len(doc.Actions))
	for _, a := range doc.Actions {
		actions = append(actions, action.ActionDefinition{
			Name:        a.Name,
			Description: a.Description,
			RequiredEnv: append([]string(nil), a.RequiredEnv...),
			Versions:    versionsToDomain(a.Versions),
		})
	}

	return axes, actions, doc.Environment
}

func versionsToDomain(versions []Version) []action.ActionVersion {
	out := make([]action.ActionVersion, 0, len(versions))
	for _, v := range versions {
		decl := ScanDeclarations(v.Script)
		out = append(out, action.ActionVersion{
			Script:     v.Script,
			Language:   action.Language(v.Language),
			Conditions: conditionsToDomain(v.Conditions),
			Expansions: ScanExpansions(v.Script),
			Returns:    returnsToDomain(v.Returns),
			StrongDeps: mergeNames(v.StrongDeps, decl.Strong),
			WeakDeps:   mergeNames(v.WeakDeps, decl.Weak),
			SoftDeps:   mergeSoftDeps(softDepsToDomain(v.SoftDeps), decl.Soft),
			EnvDeps:    mergeNames(v.EnvDeps, decl.Env),
			Args:       argsToDomain(v.Args),
			Flags:      flagsToDomain(v.Flags),
		})
	}
	return out
}

func mergeNames(declared, scanned []string) []string {
	seen := make(map[string]struct{}, len(declared)+len(scanned))
	out := make([]string, 0, len(declared)+len(scanned))
	for _, n := range append(append([]string(nil), declared...), scanned...) {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func mergeSoftDeps(declared, scanned []action.SoftDependency) []action.SoftDependency {
	seen := make(map[string]struct{}, len(declared)+len(scanned))
	out := make([]action.SoftDependency, 0, len(declared)+len(scanned))
	for _, d := range append(append([]action.SoftDependency(nil), declared...), scanned...) {
		key := d.Target + "\x00" + d.Retainer
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, d)
	}
	return out
}

func conditionsToDomain(conds []Condition) []action.Condition {
	out := make([]action.Condition, 0, len(conds))
	for _, c := range conds {
		if c.Platform != "" {
			out = append(out, action.Condition{Kind: action.ConditionPlatform, PlatformValue: c.Platform})
			continue
		}
		out = append(out, action.Condition{Kind: action.ConditionAxis, AxisName: c.Axis, AxisValue: c.Value})
	}
	return out
}

func returnsToDomain(rets []Return) []action.ReturnDeclaration {
	out := make([]action.ReturnDeclaration, 0, len(rets))
	for _, r := range rets {
		out = append(out, action.ReturnDeclaration{Name: r.Name, Type: action.ArgumentType(r.Type), ValueExpr: r.Value})
	}
	return out
}

func softDepsToDomain(deps []SoftDep) []action.SoftDependency {
	out := make([]action.SoftDependency, 0, len(deps))
	for _, d := range deps {
		out = append(out, action.SoftDependency{Target: d.Target, Retainer: d.Retainer})
	}
	return out
}

func argsToDomain(args []Argument) []action.ArgumentDefinition {
	out := make([]action.ArgumentDefinition, 0, len(args))
	for _, a := range args {
		out = append(out, action.ArgumentDefinition{Name: a.Name, Type: action.ArgumentType(a.Type), Default: a.Default})
	}
	return out
}

func flagsToDomain(flags []Flag) []action.FlagDefinition {
	out := make([]action.FlagDefinition, 0, len(flags))
	for _, f := range flags {
		out = append(out, action.FlagDefinition{Name: f.Name, Default: f.Default})
	}
	return out
}

// ScanExpansions extracts every `${...}` reference from a script body,
// tagging its kind and target. It is exported so tests in other packages
// can build action versions from script text with the same grammar
// ToDomain uses.
func ScanExpansions(script string) []action.Expansion {
	matches := expansionPattern.FindAllStringSubmatch(script, -1)
	out := make([]action.Expansion, 0, len(matches))
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		raw := "${" + m[1] + "}"
		if _, ok := seen[raw]; ok {
			continue
		}
		seen[raw] = struct{}{}

		exp, ok := parseExpansionPath(m[1])
		if !ok {
			continue
		}
		exp.RawLiteral = raw
		out = append(out, exp)
	}
	return out
}

func parseExpansionPath(path string) (action.Expansion, bool) {
	parts := splitDot(path)
	if len(parts) < 2 {
		return action.Expansion{}, false
	}

	switch parts[0] {
	case "system":
		return action.Expansion{Kind: action.ExpansionSystem, Target: parts[1]}, true
	case "env":
		return action.Expansion{Kind: action.ExpansionEnv, Target: parts[1]}, true
	case "args":
		return action.Expansion{Kind: action.ExpansionArgs, Target: parts[1]}, true
	case "flags":
		return action.Expansion{Kind: action.ExpansionFlags, Target: parts[1]}, true
	case "action":
		// action.strong.<name>.<field> or action.weak.<name>.<field>
		if len(parts) < 4 {
			return action.Expansion{}, false
		}
		switch parts[1] {
		case "strong":
			return action.Expansion{Kind: action.ExpansionActionStrong, Target: parts[2], Field: parts[3]}, true
		case "weak":
			return action.Expansion{Kind: action.ExpansionActionWeak, Target: parts[2], Field: parts[3]}, true
		}
		return action.Expansion{}, false
	case "retained":
		// retained.weak.<name> or retained.soft.<name>
		if len(parts) < 3 {
			return action.Expansion{}, false
		}
		return action.Expansion{Kind: action.ExpansionRetained, Target: parts[2]}, true
	default:
		return action.Expansion{}, false
	}
}

// Declarations are the dependency statements written directly in a script
// body: `dep action.X`, `weak action.X`, `soft action.X retain.action.R`,
// `dep env.NAME`. The bash runtime defines dep/weak/soft as no-op shell
// functions so these lines execute harmlessly; their meaning lives here, at
// parse time.
type Declarations struct {
	Strong []string
	Weak   []string
	Soft   []action.SoftDependency
	Env    []string
}

var declPattern = regexp.MustCompile(`(?m)^\s*(dep|weak|soft)\s+(\S+)(?:\s+retain\.action\.(\S+))?\s*$`)

// ScanDeclarations extracts dependency declarations from a script body.
func ScanDeclarations(script string) Declarations {
	var out Declarations
	for _, m := range declPattern.FindAllStringSubmatch(script, -1) {
		verb, target, retainer := m[1], m[2], m[3]
		switch verb {
		case "dep":
			if name, ok := strings.CutPrefix(target, "action."); ok {
				out.Strong = append(out.Strong, name)
			} else if name, ok := strings.CutPrefix(target, "env."); ok {
				out.Env = append(out.Env, name)
			}
		case "weak":
			if name, ok := strings.CutPrefix(target, "action."); ok {
				out.Weak = append(out.Weak, name)
			}
		case "soft":
			name, ok := strings.CutPrefix(target, "action.")
			if ok && retainer != "" {
				out.Soft = append(out.Soft, action.SoftDependency{Target: name, Retainer: retainer})
			}
		}
	}
	return out
}

func splitDot(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
