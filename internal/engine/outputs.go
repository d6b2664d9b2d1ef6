package engine

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/mudyla/mdl/internal/graph"
	"github.com/mudyla/mdl/internal/planner"
	"github.com/mudyla/mdl/internal/scheduler"
)

// GoalOutputs assembles the final output JSON: one entry per goal mapping
// return names to their typed values. When the same action is a goal
// in several contexts, each entry is keyed by its full node label so no
// variant shadows another.
func GoalOutputs(g *graph.Graph, plan *planner.Plan, sched *scheduler.Scheduler) map[string]map[string]interface{} {
	byAction := make(map[string]int)
	for _, id := range plan.GoalIDs() {
		byAction[g.Nodes[id].Key.Action]++
	}

	out := make(map[string]map[string]interface{}, len(g.Goals))
	for _, id := range plan.GoalIDs() {
		node := g.Nodes[id]
		outputs, ok := sched.OutputsOf(id)
		if !ok {
			continue
		}

		key := node.Key.Action
		if byAction[key] > 1 {
			key = node.Key.Label()
		}

		values := make(map[string]interface{}, len(outputs))
		for name, tv := range outputs {
			values[name] = tv.Value
		}
		out[key] = values
	}
	return out
}

// emitGoalOutputs writes the goal outputs to stdout and, when requested, to
// the --out path.
func (e *Engine) emitGoalOutputs(g *graph.Graph, plan *planner.Plan, sched *scheduler.Scheduler, outPath string) error {
	payload := GoalOutputs(g, plan, sched)

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode goal outputs: %w", err)
	}

	fmt.Fprintln(e.Out, string(data))

	if outPath != "" {
		if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	return nil
}
