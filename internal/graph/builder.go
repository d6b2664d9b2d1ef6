package graph

import (
	"errors"

	"github.com/mudyla/mdl/internal/ctxalgebra"
	"github.com/mudyla/mdl/internal/docmodel"
	"github.com/mudyla/mdl/internal/domain/action"
)

// Builder materializes graph nodes from invocations. Version-selection
// failures are recorded as findings, not fatal errors, so the validator can
// report every problem in one batch.
type Builder struct {
	graph *Graph
	batch *ValidationBatch
}

// BuildInput carries everything the builder needs for one run.
type BuildInput struct {
	Actions     []action.ActionDefinition
	Axes        []action.AxisDefinition
	Environment docmodel.Environment
	Platform    string

	// Invocations have fully layered, wildcard-expanded axis bindings and
	// merged global + per-invocation args/flags.
	Invocations []action.Invocation
}

// Build constructs the node arena for the given invocations. The returned
// batch holds version-selection findings; callers run the Validator next and
// merge its findings into the same batch.
func Build(in BuildInput) (*Graph, *ValidationBatch) {
	actions := make(map[string]action.ActionDefinition, len(in.Actions))
	for _, a := range in.Actions {
		actions[a.Name] = a
	}
	axes := make(map[string]action.AxisDefinition, len(in.Axes))
	for _, a := range in.Axes {
		axes[a.Name] = a
	}

	b := &Builder{
		graph: &Graph{
			Nodes:       make(map[string]*Node),
			Actions:     actions,
			Axes:        axes,
			Environment: in.Environment,
			Footprints:  ctxalgebra.ComputeFootprints(actions),
			Platform:    in.Platform,
		},
		batch: &ValidationBatch{},
	}

	seenGoals := make(map[string]struct{})
	for _, inv := range in.Invocations {
		id := b.buildNode(inv.Goal, inv.AxisBindings, inv.Args, inv.Flags)
		if id == "" {
			continue
		}
		if _, ok := seenGoals[id]; !ok {
			seenGoals[id] = struct{}{}
			b.graph.Goals = append(b.graph.Goals, id)
		}
	}

	return b.graph, b.batch
}

// buildNode emits the node for (name, ctx) and recursively emits its
// dependency closure. Returns the node id, or "" when the node could not be
// built (unknown action or version-selection failure).
func (b *Builder) buildNode(name string, ctx action.Context, args map[string]string, flags map[string]bool) string {
	def, ok := b.graph.Actions[name]
	if !ok {
		b.batch.add(FindingNoVersion, name, "unknown action %q", name)
		return ""
	}

	reduced := b.graph.Footprints.Reduce(name, ctx)
	key := action.NodeKey{Action: name, Context: reduced}
	id := key.String()

	if existing, ok := b.graph.Nodes[id]; ok {
		mergeBindings(existing, args, flags)
		return id
	}

	version, err := def.SelectVersion(reduced, b.graph.Platform)
	if err != nil {
		b.recordSelectionFailure(def, reduced, key, err)
		return ""
	}

	node := &Node{
		Key:     key,
		Version: version,
		Strong:  make(map[string]struct{}),
		Weak:    make(map[string]struct{}),
		Soft:    make(map[string]SoftEdge),
		Args:    cloneStringMap(args),
		Flags:   cloneBoolMap(flags),
	}
	// Register before recursing so dependency cycles terminate; the
	// validator reports them afterwards.
	b.graph.Nodes[id] = node

	for _, target := range strongDepNames(version) {
		if childID := b.buildNode(target, ctx, args, flags); childID != "" {
			node.Strong[childID] = struct{}{}
		}
	}
	for _, target := range weakDepNames(version) {
		if childID := b.buildNode(target, ctx, args, flags); childID != "" {
			node.Weak[childID] = struct{}{}
		}
	}
	for _, soft := range version.SoftDeps {
		targetID := b.buildNode(soft.Target, ctx, args, flags)
		retainerID := b.buildNode(soft.Retainer, ctx, args, flags)
		if targetID == "" || retainerID == "" {
			continue
		}
		node.Soft[targetID] = SoftEdge{Target: targetID, Retainer: retainerID}
		// The retainer gates the edge, so it is a strong prerequisite of
		// the edge's source, never of the target.
		node.Strong[retainerID] = struct{}{}
	}

	return id
}

func (b *Builder) recordSelectionFailure(def action.ActionDefinition, ctx action.Context, key action.NodeKey, err error) {
	var domainErr *action.DomainError
	if errors.As(err, &domainErr) && domainErr.Code == action.ErrCodeAmbiguous {
		b.batch.add(FindingAmbiguous, key.Label(), "%v", err)
		return
	}

	// A multi-version action with an unbound, defaultless condition axis is
	// a "missing required axis" finding; anything else is "no matching
	// version".
	if def.IsMultiVersion() {
		for _, v := range def.Versions {
			for _, c := range v.Conditions {
				if c.Kind != action.ConditionAxis {
					continue
				}
				if _, bound := ctx[c.AxisName]; bound {
					continue
				}
				axis, declared := b.graph.Axes[c.AxisName]
				if declared && axis.Default == nil {
					b.batch.add(FindingMissingAxis, key.Label(),
						"action %q needs axis %q but no binding or default exists", def.Name, c.AxisName)
					return
				}
			}
		}
	}

	b.batch.add(FindingNoVersion, key.Label(), "%v", err)
}

// strongDepNames unions explicit strong declarations with the targets of
// `${action.strong.*}` expansions, preserving first-mention order.
func strongDepNames(v *action.ActionVersion) []string {
	return unionNames(v.StrongDeps, v.Expansions, action.ExpansionActionStrong)
}

func weakDepNames(v *action.ActionVersion) []string {
	return unionNames(v.WeakDeps, v.Expansions, action.ExpansionActionWeak)
}

func unionNames(declared []string, expansions []action.Expansion, kind action.ExpansionKind) []string {
	seen := make(map[string]struct{}, len(declared))
	out := make([]string, 0, len(declared))
	for _, n := range declared {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	for _, e := range expansions {
		if e.Kind != kind {
			continue
		}
		if _, ok := seen[e.Target]; ok {
			continue
		}
		seen[e.Target] = struct{}{}
		out = append(out, e.Target)
	}
	return out
}

func mergeBindings(node *Node, args map[string]string, flags map[string]bool) {
	for k, v := range args {
		if _, ok := node.Args[k]; !ok {
			node.Args[k] = v
		}
	}
	for k, v := range flags {
		if _, ok := node.Flags[k]; !ok {
			node.Flags[k] = v
		}
	}
}

func cloneStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
