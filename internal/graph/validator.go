package graph

import (
	"sort"
	"strings"

	"github.com/mudyla/mdl/internal/docmodel"
	"github.com/mudyla/mdl/internal/domain/action"
)

// EnvLookup resolves an environment variable from the parent process.
type EnvLookup func(string) (string, bool)

// Validate runs every static check over the built graph and appends findings
// to the batch the builder started. Weak references are exempt from
// resolution checks; retained checks are deferred to the executor.
func Validate(g *Graph, invocations []action.Invocation, env EnvLookup, batch *ValidationBatch) *ValidationBatch {
	if batch == nil {
		batch = &ValidationBatch{}
	}

	validateInvocationBindings(g, invocations, batch)
	validateCycles(g, batch)

	for _, id := range g.NodeIDs() {
		node := g.Nodes[id]
		validateConditions(g, node, batch)
		validateArgsAndFlags(node, batch)
		validateEnv(g, node, env, batch)
		validateStrongOutputs(g, node, batch)
		validateRetainers(g, node, batch)
	}

	return batch
}

func validateInvocationBindings(g *Graph, invocations []action.Invocation, batch *ValidationBatch) {
	type binding struct{ axis, value string }
	seen := make(map[binding]struct{})
	for _, inv := range invocations {
		for axis, value := range inv.AxisBindings {
			b := binding{axis, value}
			if _, ok := seen[b]; ok {
				continue
			}
			seen[b] = struct{}{}

			def, ok := g.Axes[axis]
			if !ok {
				batch.add(FindingUnknownAxis, "", "axis %q is not declared", axis)
				continue
			}
			if !def.HasValue(value) {
				batch.add(FindingUnknownAxis, "", "axis %q has no value %q (allowed: %s)",
					axis, value, strings.Join(def.Values, ", "))
			}
		}
	}
}

func validateConditions(g *Graph, node *Node, batch *ValidationBatch) {
	for _, c := range node.Version.Conditions {
		if c.Kind != action.ConditionAxis {
			continue
		}
		def, ok := g.Axes[c.AxisName]
		if !ok {
			batch.add(FindingUnknownAxis, node.ID(), "condition references undeclared axis %q", c.AxisName)
			continue
		}
		if !def.HasValue(c.AxisValue) {
			batch.add(FindingUnknownAxis, node.ID(), "condition value %s:%s is not an allowed value", c.AxisName, c.AxisValue)
		}
	}
}

func validateArgsAndFlags(node *Node, batch *ValidationBatch) {
	argDefs := make(map[string]action.ArgumentDefinition, len(node.Version.Args))
	for _, a := range node.Version.Args {
		argDefs[a.Name] = a

		// CLI-supplied values are type-checked here, before the expansion
		// evaluator ever substitutes them: int and bool must parse, file
		// and directory must reference existing paths.
		if value, bound := node.Args[a.Name]; bound {
			if err := docmodel.ValidateArgumentValue(a.Type, a.Name, value); err != nil {
				batch.add(FindingBadArg, node.ID(), "%v", err)
			}
		}
	}
	flagDefs := make(map[string]struct{}, len(node.Version.Flags))
	for _, f := range node.Version.Flags {
		flagDefs[f.Name] = struct{}{}
	}

	for _, e := range node.Version.Expansions {
		switch e.Kind {
		case action.ExpansionArgs:
			def, ok := argDefs[e.Target]
			if !ok {
				batch.add(FindingMissingArg, node.ID(), "argument %q is referenced but not defined", e.Target)
				continue
			}
			if _, bound := node.Args[e.Target]; !bound && def.Mandatory() {
				batch.add(FindingMissingArg, node.ID(), "argument %q has no default and no CLI binding", e.Target)
			}
		case action.ExpansionFlags:
			if _, ok := flagDefs[e.Target]; !ok {
				batch.add(FindingMissingFlag, node.ID(), "flag %q is referenced but not defined", e.Target)
			}
		}
	}
}

func validateEnv(g *Graph, node *Node, env EnvLookup, batch *ValidationBatch) {
	available := func(name string) bool {
		if _, ok := g.Environment.Vars[name]; ok {
			return true
		}
		if env != nil {
			if _, ok := env(name); ok {
				return true
			}
		}
		return false
	}

	for _, e := range node.Version.Expansions {
		if e.Kind != action.ExpansionEnv {
			continue
		}
		if !available(e.Target) {
			batch.add(FindingMissingEnv, node.ID(), "environment variable %q is not set and not declared", e.Target)
		}
	}
	for _, name := range node.Version.EnvDeps {
		if !available(name) {
			batch.add(FindingMissingEnv, node.ID(), "environment variable %q is not set and not declared", name)
		}
	}
}

// validateStrongOutputs checks every `${action.strong.A.v}` against A's
// selected version's return declarations. Weak references are exempt.
func validateStrongOutputs(g *Graph, node *Node, batch *ValidationBatch) {
	byAction := make(map[string]*Node)
	for id := range node.Strong {
		if target := g.Nodes[id]; target != nil {
			byAction[target.Key.Action] = target
		}
	}

	for _, e := range node.Version.Expansions {
		if e.Kind != action.ExpansionActionStrong {
			continue
		}
		target, ok := byAction[e.Target]
		if !ok {
			// Build already reported the missing target.
			continue
		}
		if _, ok := target.Version.ReturnNames()[e.Field]; !ok {
			batch.add(FindingMissingOut, node.ID(), "action %q declares no return %q for the selected version", e.Target, e.Field)
		}
	}
}

// validateRetainers rejects retainers that themselves carry weak or soft
// dependencies; that interaction is undefined and refused up front.
func validateRetainers(g *Graph, node *Node, batch *ValidationBatch) {
	for _, edge := range node.SoftEdges() {
		retainer := g.Nodes[edge.Retainer]
		if retainer == nil {
			continue
		}
		if len(retainer.Weak) > 0 || len(retainer.Soft) > 0 {
			batch.add(FindingUnsupported, node.ID(),
				"retainer %q must not declare weak or soft dependencies", retainer.Key.Action)
		}
	}
}

// validateCycles detects cycles over strong edges and reports each cycle's
// path once.
func validateCycles(g *Graph, batch *ValidationBatch) {
	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := make(map[string]int, len(g.Nodes))
	var stack []string
	reported := make(map[string]struct{})

	var visit func(id string)
	visit = func(id string) {
		color[id] = grey
		stack = append(stack, id)

		node := g.Nodes[id]
		for _, next := range node.StrongTargets() {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				cycle := extractCycle(stack, next)
				key := canonicalCycleKey(cycle)
				if _, ok := reported[key]; !ok {
					reported[key] = struct{}{}
					batch.add(FindingCycle, next, "dependency cycle: %s", strings.Join(append(cycle, next), " -> "))
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[id] = black
	}

	for _, id := range g.NodeIDs() {
		if color[id] == white {
			visit(id)
		}
	}
}

func extractCycle(stack []string, entry string) []string {
	for i, id := range stack {
		if id == entry {
			out := make([]string, len(stack)-i)
			copy(out, stack[i:])
			return out
		}
	}
	return append([]string(nil), stack...)
}

func canonicalCycleKey(cycle []string) string {
	sorted := append([]string(nil), cycle...)
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
