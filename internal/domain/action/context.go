package action

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Context is an assignment of axis values. Equality is by
// mapping.
type Context map[string]string

// Equal reports whether two contexts bind the same axes to the same values.
func (c Context) Equal(other Context) bool {
	if len(c) != len(other) {
		return false
	}
	for k, v := range c {
		if ov, ok := other[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Clone returns a defensive copy.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// With returns a copy of c with the given axis binding applied, replacing
// any existing binding for that axis.
func (c Context) With(axis, value string) Context {
	out := c.Clone()
	out[axis] = value
	return out
}

// Restrict returns the subset of c whose axis names appear in footprint.
// This is the context-reduction operation: a node's
// context is narrowed to only the axes its own version, and any ancestor's
// version, actually references.
func (c Context) Restrict(footprint map[string]struct{}) Context {
	out := make(Context, len(footprint))
	for k, v := range c {
		if _, ok := footprint[k]; ok {
			out[k] = v
		}
	}
	return out
}

// sortedPairs returns the (axis, value) pairs sorted by axis name, used by
// both Hash() and Label() to guarantee a stable, deterministic rendering.
func (c Context) sortedPairs() [][2]string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([][2]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, [2]string{k, c[k]})
	}
	return pairs
}

// Label renders a human-readable identifier: "axis:value+axis:value", or
// "global" for the empty context.
func (c Context) Label() string {
	pairs := c.sortedPairs()
	if len(pairs) == 0 {
		return "global"
	}
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p[0] + ":" + p[1]
	}
	return strings.Join(parts, "+")
}

// Hash returns a stable, directory-safe identifier derived from the sorted
// (axis, value) pairs. Empty contexts hash to
// the fixed string "global" so every node with an empty footprint shares one
// directory.
func (c Context) Hash() string {
	if len(c) == 0 {
		return "global"
	}
	pairs := c.sortedPairs()
	var sb strings.Builder
	for _, p := range pairs {
		sb.WriteString(p[0])
		sb.WriteByte('=')
		sb.WriteString(p[1])
		sb.WriteByte(';')
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:])[:12]
}

// Invocation is a goal action name plus explicit axis bindings and
// per-invocation args/flags, with wildcards already expanded.
type Invocation struct {
	Goal         string
	AxisBindings Context
	Args         map[string]string
	Flags        map[string]bool
}

// Clone returns a defensive copy of the invocation.
func (i Invocation) Clone() Invocation {
	out := Invocation{
		Goal:         i.Goal,
		AxisBindings: i.AxisBindings.Clone(),
		Args:         make(map[string]string, len(i.Args)),
		Flags:        make(map[string]bool, len(i.Flags)),
	}
	for k, v := range i.Args {
		out.Args[k] = v
	}
	for k, v := range i.Flags {
		out.Flags[k] = v
	}
	return out
}

// NodeKey is the composite identity of a scheduled unit: (action-name,
// context).
type NodeKey struct {
	Action  string
	Context Context
}

// String renders a stable node identifier: "<action>" for the global
// context, or "<action>@<context-hash>" otherwise — matching the run
// store's on-disk node-id convention.
func (k NodeKey) String() string {
	hash := k.Context.Hash()
	if hash == "global" {
		return k.Action
	}
	return k.Action + "@" + hash
}

// Label renders a human-readable identifier combining the action name and
// the context's label, used by the planner's dry-run output.
func (k NodeKey) Label() string {
	return k.Action + "[" + k.Context.Label() + "]"
}
