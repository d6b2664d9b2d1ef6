package scheduler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/mudyla/mdl/internal/planner"
	"github.com/mudyla/mdl/internal/ports"
	mdlruntime "github.com/mudyla/mdl/internal/runtime"
)

// Coordinator gates soft-dependency retention on retainer outcomes.
// When a retainer node settles successfully and its directory holds the
// retain sentinel, every soft target it gates is promoted into the
// executable set, strong closure included, before any consumer dispatches.
type Coordinator struct {
	plan   *planner.Plan
	events ports.EventPublisher

	// byRetainer maps a retainer node id to the soft targets it gates.
	byRetainer map[string][]string
}

// NewCoordinator indexes the graph's soft edges by retainer.
func NewCoordinator(plan *planner.Plan, events ports.EventPublisher) *Coordinator {
	c := &Coordinator{
		plan:       plan,
		events:     events,
		byRetainer: make(map[string][]string),
	}
	for _, node := range plan.Graph.Nodes {
		for _, edge := range node.SoftEdges() {
			c.byRetainer[edge.Retainer] = append(c.byRetainer[edge.Retainer], edge.Target)
		}
	}
	return c
}

// Signalled reports whether the settled retainer wrote its sentinel.
func Signalled(nodeDir string) bool {
	_, err := os.Stat(filepath.Join(nodeDir, mdlruntime.RetainSentinel))
	return err == nil
}

// OnNodeSettled inspects a successfully settled node. If it is a retainer
// that signalled retain, its soft targets and their strong closures are
// promoted; the newly executable node ids are returned so the scheduler can
// start tracking them. A target already executable via another path is left
// untouched: the retainer result then only affects the consumer's
// `retained` expansion.
func (c *Coordinator) OnNodeSettled(ctx context.Context, id, nodeDir string) []string {
	targets, ok := c.byRetainer[id]
	if !ok {
		return nil
	}
	if !Signalled(nodeDir) {
		return nil
	}

	var added []string
	for _, target := range targets {
		promoted := c.plan.Promote(target)
		if len(promoted) == 0 {
			continue
		}
		added = append(added, promoted...)
		if c.events != nil {
			_ = c.events.Publish(ctx, nodeEvent{
				eventType: ports.EventNodePromoted,
				payload: map[string]interface{}{
					"node_id":  target,
					"retainer": id,
					"added":    len(promoted),
				},
			})
		}
	}
	return added
}
