// Package graph materializes per-(action, context) nodes from CLI
// invocations and validates the result as one aggregated batch. Nodes hold
// their edges as node-id strings into an arena map, never as direct
// pointers, so the structure stays acyclic in ownership even when the
// dependency declarations are not.
package graph

import (
	"sort"

	"github.com/mudyla/mdl/internal/ctxalgebra"
	"github.com/mudyla/mdl/internal/docmodel"
	"github.com/mudyla/mdl/internal/domain/action"
)

// SoftEdge records a retainer-gated dependency: Target is only scheduled if
// Retainer signals retain. Both are node ids.
type SoftEdge struct {
	Target   string
	Retainer string
}

// Node is the unit of scheduling: one action in one reduced context.
type Node struct {
	Key     action.NodeKey
	Version *action.ActionVersion

	// Strong, Weak and Soft are outgoing dependency edges, keyed by target
	// node id. Retainers appear in Strong as well: a retainer is a strong
	// prerequisite of the soft edge's source.
	Strong map[string]struct{}
	Weak   map[string]struct{}
	Soft   map[string]SoftEdge

	// Args and Flags are the CLI bindings in effect for this node, resolved
	// at build time from the invocation that first created it.
	Args  map[string]string
	Flags map[string]bool
}

// ID returns the node's stable identity string.
func (n *Node) ID() string {
	return n.Key.String()
}

// StrongTargets returns the strong edge targets in lexicographic order.
func (n *Node) StrongTargets() []string {
	out := make([]string, 0, len(n.Strong))
	for id := range n.Strong {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// WeakTargets returns the weak edge targets in lexicographic order.
func (n *Node) WeakTargets() []string {
	out := make([]string, 0, len(n.Weak))
	for id := range n.Weak {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SoftEdges returns the soft edges ordered by target node id.
func (n *Node) SoftEdges() []SoftEdge {
	out := make([]SoftEdge, 0, len(n.Soft))
	for _, e := range n.Soft {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}

// Graph is the arena of nodes built for one run, plus everything the
// validator and planner need to interpret them.
type Graph struct {
	Nodes map[string]*Node

	// Goals lists goal node ids in invocation order; duplicates removed.
	Goals []string

	Actions     map[string]action.ActionDefinition
	Axes        map[string]action.AxisDefinition
	Environment docmodel.Environment
	Footprints  *ctxalgebra.Footprints
	Platform    string
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *Node {
	return g.Nodes[id]
}

// NodeIDs returns every node id in lexicographic order.
func (g *Graph) NodeIDs() []string {
	out := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
