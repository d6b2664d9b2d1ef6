// Package livetable renders scheduler progress as a dynamic table when
// stdout is a TTY. The model follows the usual bubbletea shape: scheduler
// events become messages, Update folds them into node states, View renders
// the table.
package livetable

import (
	"time"

	"github.com/mudyla/mdl/internal/logging/livetable/components"
)

// NodeStartMsg indicates a node has been dispatched.
type NodeStartMsg struct {
	ID   string
	Time time.Time
}

// NodeDoneMsg reports a node's terminal state.
type NodeDoneMsg struct {
	ID       string
	Status   string
	Message  string
	Duration time.Duration
}

// NodePromotedMsg appends a newly promoted node to the table.
type NodePromotedMsg struct {
	ID string
}

// RunDoneMsg ends the run.
type RunDoneMsg struct {
	Cancelled bool
}

// Node status strings rendered by the table.
const (
	StatusPending  = "pending"
	StatusRunning  = "running"
	StatusRestored = "restored"
	StatusSuccess  = "success"
	StatusFailed   = "failed"
)

// Model contains the bubbletea state for the live table.
type Model struct {
	runID     string
	nodes     map[string]components.NodeState
	order     []string
	total     int
	completed int
	restored  int
	failed    int
	finished  bool
	cancelled bool
}

// NewModel constructs a table model over the plan's dispatch order.
func NewModel(runID string, order []string) Model {
	m := Model{
		runID: runID,
		nodes: make(map[string]components.NodeState, len(order)),
		order: append([]string(nil), order...),
		total: len(order),
	}
	for _, id := range order {
		m.nodes[id] = components.NodeState{ID: id, Status: StatusPending}
	}
	return m
}

func (m *Model) ensureNode(id string) {
	if _, ok := m.nodes[id]; ok {
		return
	}
	m.nodes[id] = components.NodeState{ID: id, Status: StatusPending}
	m.order = append(m.order, id)
	m.total++
}
