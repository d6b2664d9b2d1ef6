// Package ctxalgebra builds, reduces, and unifies the axis-valued contexts
// that parameterize graph nodes. It owns the four operations of the context
// model: layering CLI bindings over axis defaults, expanding wildcard
// bindings into concrete invocations, computing the axis footprint of an
// action's dependency closure, and reducing a node's context to that
// footprint so equivalent invocations unify onto one node.
package ctxalgebra

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mudyla/mdl/internal/domain/action"
	apperrors "github.com/mudyla/mdl/pkg/errors"
)

// DefaultContext returns the union of every axis's declared default value.
// Axes without a default contribute no binding.
func DefaultContext(axes []action.AxisDefinition) action.Context {
	ctx := make(action.Context)
	for _, a := range axes {
		if a.Default != nil {
			ctx[a.Name] = *a.Default
		}
	}
	return ctx
}

// Layer merges axis bindings with per-invocation precedence: defaults <
// global CLI bindings < per-invocation bindings. Later layers always win.
func Layer(defaults, global, local action.Context) action.Context {
	out := defaults.Clone()
	for k, v := range global {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

// ExpandWildcards expands an invocation whose axis bindings may contain `*`
// or `prefix*` patterns into the Cartesian product of their concrete
// expansions. Concrete bindings are preserved on every child. An empty
// expansion is a planning error.
func ExpandWildcards(inv action.Invocation, axes map[string]action.AxisDefinition) ([]action.Invocation, error) {
	type wildcard struct {
		axis    string
		matches []string
	}

	var wildcards []wildcard
	concrete := make(action.Context, len(inv.AxisBindings))

	names := make([]string, 0, len(inv.AxisBindings))
	for name := range inv.AxisBindings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pattern := inv.AxisBindings[name]
		if !strings.HasSuffix(pattern, "*") {
			concrete[name] = pattern
			continue
		}

		def, ok := axes[name]
		if !ok {
			return nil, apperrors.NewPlanningError(fmt.Sprintf("unknown axis %q", name), nil)
		}
		prefix := strings.TrimSuffix(pattern, "*")
		var matches []string
		for _, v := range def.Values {
			if strings.HasPrefix(v, prefix) {
				matches = append(matches, v)
			}
		}
		if len(matches) == 0 {
			return nil, apperrors.NewPlanningError(fmt.Sprintf("no matches for %s:%s", name, pattern), nil)
		}
		wildcards = append(wildcards, wildcard{axis: name, matches: matches})
	}

	if len(wildcards) == 0 {
		out := inv.Clone()
		out.AxisBindings = concrete
		return []action.Invocation{out}, nil
	}

	expansions := []action.Context{concrete}
	for _, w := range wildcards {
		next := make([]action.Context, 0, len(expansions)*len(w.matches))
		for _, base := range expansions {
			for _, v := range w.matches {
				next = append(next, base.With(w.axis, v))
			}
		}
		expansions = next
	}

	out := make([]action.Invocation, 0, len(expansions))
	for _, ctx := range expansions {
		child := inv.Clone()
		child.AxisBindings = ctx
		out = append(out, child)
	}
	return out, nil
}

// Footprints computes, per action, the set of axis names whose value can
// influence version selection anywhere in that action's potential dependency
// closure. "Potential" means every version's declared dependencies are
// followed, regardless of which version a concrete context would select:
// reduction has to be context-independent for unification to be sound.
type Footprints struct {
	byAction map[string]map[string]struct{}
}

// ComputeFootprints walks the potential dependency edges of every action and
// accumulates the axis names referenced by conditions along the way.
func ComputeFootprints(actions map[string]action.ActionDefinition) *Footprints {
	own := make(map[string]map[string]struct{}, len(actions))
	deps := make(map[string][]string, len(actions))

	for name, def := range actions {
		axes := make(map[string]struct{})
		var targets []string
		for _, v := range def.Versions {
			for _, c := range v.Conditions {
				if c.Kind == action.ConditionAxis {
					axes[c.AxisName] = struct{}{}
				}
			}
			targets = append(targets, v.StrongDeps...)
			targets = append(targets, v.WeakDeps...)
			for _, s := range v.SoftDeps {
				targets = append(targets, s.Target, s.Retainer)
			}
			for _, e := range v.Expansions {
				if e.IsActionRef() {
					targets = append(targets, e.Target)
				}
			}
		}
		own[name] = axes
		deps[name] = targets
	}

	fp := &Footprints{byAction: make(map[string]map[string]struct{}, len(actions))}
	for name := range actions {
		acc := make(map[string]struct{})
		visited := make(map[string]struct{})
		var walk func(string)
		walk = func(n string) {
			if _, seen := visited[n]; seen {
				return
			}
			visited[n] = struct{}{}
			for axis := range own[n] {
				acc[axis] = struct{}{}
			}
			for _, t := range deps[n] {
				walk(t)
			}
		}
		walk(name)
		fp.byAction[name] = acc
	}
	return fp
}

// Of returns the axis footprint for the named action. Unknown actions have
// an empty footprint.
func (f *Footprints) Of(name string) map[string]struct{} {
	if fp, ok := f.byAction[name]; ok {
		return fp
	}
	return map[string]struct{}{}
}

// Reduce restricts ctx to the action's footprint.
// Actions with an empty footprint reduce to the shared global context.
func (f *Footprints) Reduce(name string, ctx action.Context) action.Context {
	return ctx.Restrict(f.Of(name))
}

// NodeKeyFor composes the unified node identity for an action in a context:
// the pair (action, reduced context).
func (f *Footprints) NodeKeyFor(name string, ctx action.Context) action.NodeKey {
	return action.NodeKey{Action: name, Context: f.Reduce(name, ctx)}
}
