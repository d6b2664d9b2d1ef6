// Package planner turns a validated graph into an execution plan: the
// strong-reachable set, pruned weak edges, a topological order with a stable
// tie-break, and runtime promotion of soft targets.
package planner

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mudyla/mdl/internal/graph"
	apperrors "github.com/mudyla/mdl/pkg/errors"
)

// Plan is the executable subset of a graph plus the bookkeeping the
// scheduler needs: dispatch order, per-node wait sets, and the soft edges
// that may promote more nodes mid-run.
type Plan struct {
	Graph *graph.Graph

	// mu guards the mutable sets below: workers read them at dispatch time
	// while the scheduler thread promotes soft targets.
	mu sync.RWMutex

	// Order is the topological order (over strong edges) of the initially
	// executable nodes. Promotion appends to it.
	Order []string

	executable map[string]struct{}
	planOrder  map[string]int
	nextOrder  int

	// weakKept records, per source node, the weak targets retained by the
	// retention rule (target independently strong-reachable).
	weakKept map[string]map[string]struct{}

	// dependents counts incoming strong edges per target, used by the
	// dry-run rendering to mark shared nodes.
	dependents map[string]int
}

// New computes the execution plan for a validated graph.
func New(g *graph.Graph) (*Plan, error) {
	p := &Plan{
		Graph:      g,
		executable: make(map[string]struct{}),
		planOrder:  make(map[string]int),
		weakKept:   make(map[string]map[string]struct{}),
		dependents: make(map[string]int),
	}

	// Strong reachability from the goals. Retainers ride along: they are
	// strong prerequisites of their soft edge's source.
	var reach func(id string)
	reach = func(id string) {
		if _, ok := p.executable[id]; ok {
			return
		}
		node := g.Nodes[id]
		if node == nil {
			return
		}
		p.executable[id] = struct{}{}
		for dep := range node.Strong {
			reach(dep)
		}
	}
	for _, goal := range g.Goals {
		reach(goal)
	}

	// Weak retention: an edge u -> v survives iff v is independently
	// strong-reachable. Soft targets are never pulled in here.
	for id := range p.executable {
		node := g.Nodes[id]
		for target := range node.Weak {
			if _, ok := p.executable[target]; ok {
				if p.weakKept[id] == nil {
					p.weakKept[id] = make(map[string]struct{})
				}
				p.weakKept[id][target] = struct{}{}
			}
		}
	}

	for id := range p.executable {
		for dep := range g.Nodes[id].Strong {
			p.dependents[dep]++
		}
	}

	order, err := p.topoSort()
	if err != nil {
		return nil, err
	}
	p.Order = order
	for i, id := range order {
		p.planOrder[id] = i
	}
	p.nextOrder = len(order)

	return p, nil
}

// topoSort orders the executable set over strong edges only. Ties break by
// lexicographic node id, which keeps plans stable across runs.
func (p *Plan) topoSort() ([]string, error) {
	indegree := make(map[string]int, len(p.executable))
	for id := range p.executable {
		indegree[id] = 0
	}
	for id := range p.executable {
		for dep := range p.Graph.Nodes[id].Strong {
			if _, ok := p.executable[dep]; ok {
				indegree[id]++
			}
		}
	}

	var ready []string
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(p.executable))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		// Dependents of id move one step closer to readiness.
		for candidate := range p.executable {
			node := p.Graph.Nodes[candidate]
			if _, ok := node.Strong[id]; !ok {
				continue
			}
			indegree[candidate]--
			if indegree[candidate] == 0 {
				ready = insertSorted(ready, candidate)
			}
		}
	}

	if len(order) != len(p.executable) {
		return nil, apperrors.NewPlanningError("dependency graph is not acyclic", nil)
	}
	return order, nil
}

func insertSorted(list []string, id string) []string {
	i := sort.SearchStrings(list, id)
	list = append(list, "")
	copy(list[i+1:], list[i:])
	list[i] = id
	return list
}

// IsExecutable reports whether the node is currently in the executable set.
func (p *Plan) IsExecutable(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.executable[id]
	return ok
}

// ExecutableCount returns the current size of the executable set.
func (p *Plan) ExecutableCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.executable)
}

// WeakKept reports whether the weak edge from source to target was retained.
func (p *Plan) WeakKept(source, target string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.weakKept[source][target]
	return ok
}

// WaitTargets returns every node the given node must wait on before
// dispatch: strong dependencies, retained weak targets, and soft targets
// already promoted into the executable set.
func (p *Plan) WaitTargets(id string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	node := p.Graph.Nodes[id]
	seen := make(map[string]struct{})
	var out []string
	add := func(target string) {
		if _, ok := seen[target]; ok {
			return
		}
		if _, ok := p.executable[target]; !ok {
			return
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}

	for dep := range node.Strong {
		add(dep)
	}
	for target := range p.weakKept[id] {
		add(target)
	}
	for _, edge := range node.SoftEdges() {
		add(edge.Target)
	}
	sort.Strings(out)
	return out
}

// Promote adds a soft target and its strong closure to the executable set
//. Newly added nodes are appended to the plan order, dependencies
// first. Returns the added node ids in dispatch order.
func (p *Plan) Promote(id string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var added []string
	var walk func(string)
	walk = func(n string) {
		if _, ok := p.executable[n]; ok {
			return
		}
		node := p.Graph.Nodes[n]
		if node == nil {
			return
		}
		p.executable[n] = struct{}{}
		deps := node.StrongTargets()
		for _, dep := range deps {
			walk(dep)
		}
		p.planOrder[n] = p.nextOrder
		p.nextOrder++
		p.Order = append(p.Order, n)
		added = append(added, n)
	}
	walk(id)

	// A freshly promoted node may also retain weak edges whose targets are
	// now executable.
	for _, n := range added {
		node := p.Graph.Nodes[n]
		for target := range node.Weak {
			if _, ok := p.executable[target]; ok {
				if p.weakKept[n] == nil {
					p.weakKept[n] = make(map[string]struct{})
				}
				p.weakKept[n][target] = struct{}{}
			}
		}
	}
	return added
}

// OrderOf returns the node's position in the plan order; later positions
// dispatch later when several nodes are ready at once.
func (p *Plan) OrderOf(id string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if pos, ok := p.planOrder[id]; ok {
		return pos
	}
	return int(^uint(0) >> 1)
}

// Less is the ready-queue tie-break: plan order first, then node id.
func (p *Plan) Less(a, b string) bool {
	oa, ob := p.OrderOf(a), p.OrderOf(b)
	if oa != ob {
		return oa < ob
	}
	return a < b
}

// GoalIDs returns the goal node ids in invocation order.
func (p *Plan) GoalIDs() []string {
	return append([]string(nil), p.Graph.Goals...)
}

// Render emits the dry-run presentation: one line per node in plan order,
// with edge annotations marking nodes shared by several dependents.
func (p *Plan) Render() string {
	out := fmt.Sprintf("Execution plan (%d nodes):\n", len(p.Order))
	for i, id := range p.Order {
		node := p.Graph.Nodes[id]
		out += fmt.Sprintf("%3d. %s\n", i+1, node.Key.Label())
		for _, dep := range node.StrongTargets() {
			out += p.renderEdge("dep", dep)
		}
		for _, target := range node.WeakTargets() {
			kind := "weak (pruned)"
			if p.WeakKept(id, target) {
				kind = "weak"
			}
			out += p.renderEdge(kind, target)
		}
		for _, edge := range node.SoftEdges() {
			retainer := p.Graph.Nodes[edge.Retainer]
			out += fmt.Sprintf("       soft %s retain %s\n",
				p.Graph.Nodes[edge.Target].Key.Label(), retainer.Key.Label())
		}
	}
	return out
}

func (p *Plan) renderEdge(kind, target string) string {
	node := p.Graph.Nodes[target]
	if n := p.dependents[target]; n > 1 {
		return fmt.Sprintf("       %s %s (⏬%d %s)\n", kind, node.Key.Action, n, node.Key.Context.Label())
	}
	return fmt.Sprintf("       %s %s\n", kind, node.Key.Label())
}
