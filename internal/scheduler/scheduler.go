// Package scheduler dispatches plan nodes onto a bounded worker pool,
// supervises their child processes, publishes outputs, and coordinates
// retainer-gated promotion. Dispatch and completion are serialized through a
// single completion channel; workers never touch shared state directly.
package scheduler

import (
	"context"
	"io"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/mudyla/mdl/internal/domain/action"
	"github.com/mudyla/mdl/internal/planner"
	"github.com/mudyla/mdl/internal/ports"
	mdlruntime "github.com/mudyla/mdl/internal/runtime"
	"github.com/mudyla/mdl/internal/runstore"
)

// MaxWorkers caps the pool regardless of CPU count.
const MaxWorkers = 32

// DefaultWorkers returns the worker pool size for this host.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n > MaxWorkers {
		return MaxWorkers
	}
	if n < 1 {
		return 1
	}
	return n
}

// Status is a node's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusRestored  Status = "restored"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Settled reports whether the status is terminal.
func (s Status) Settled() bool {
	switch s {
	case StatusRestored, StatusSucceeded, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Successful reports whether the node's outputs are published.
func (s Status) Successful() bool {
	return s == StatusSucceeded || s == StatusRestored
}

// Outcome is one node's final state.
type Outcome struct {
	ID      string
	Status  Status
	Record  action.RunRecord
	Outputs action.ActionOutputs
}

// Summary is the whole run's result.
type Summary struct {
	Outcomes  map[string]Outcome
	Failed    []string
	Cancelled bool
}

// OK reports whether every dispatched node succeeded and nothing was
// cancelled.
func (s *Summary) OK() bool {
	return len(s.Failed) == 0 && !s.Cancelled
}

// Options configures a run.
type Options struct {
	Workers     int
	NodeTimeout time.Duration
	WithoutNix  bool
	Platform    string
	ProjectDir  string
	EnvLookup   func(string) (string, bool)
	Runner      mdlruntime.Runner

	// PrevRun enables --continue restoration when non-nil.
	PrevRun *runstore.Run

	// EchoFor, when non-nil, returns a console writer for a node's streams
	// plus a close callback (verbose and CI-group modes). A nil writer
	// disables echo for that node.
	EchoFor func(nodeID string) (io.Writer, func())
}

// Scheduler executes a plan.
type Scheduler struct {
	plan    *planner.Plan
	run     *runstore.Run
	opts    Options
	logger  ports.Logger
	events  ports.EventPublisher
	retain  *Coordinator
	systems map[string]string

	mu       sync.Mutex
	status   map[string]Status
	outcomes map[string]Outcome
	outputs  map[string]action.ActionOutputs
	aborted  bool
}

// New constructs a Scheduler for one run.
func New(plan *planner.Plan, run *runstore.Run, opts Options, logger ports.Logger, events ports.EventPublisher) *Scheduler {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	if opts.Runner == nil {
		opts.Runner = mdlruntime.NewProcessRunner()
	}

	s := &Scheduler{
		plan:     plan,
		run:      run,
		opts:     opts,
		logger:   logger,
		events:   events,
		status:   make(map[string]Status),
		outcomes: make(map[string]Outcome),
		outputs:  make(map[string]action.ActionOutputs),
		systems: map[string]string{
			"platform":    opts.Platform,
			"run_id":      run.ID,
			"run_dir":     run.Dir,
			"project_dir": opts.ProjectDir,
		},
	}
	s.retain = NewCoordinator(plan, events)
	return s
}

type completion struct {
	outcome Outcome
}

// Run executes the plan until every executable node settles, a node fails,
// or ctx is cancelled. The first failure stops further dispatch; in-flight
// nodes drain and record their outcomes.
func (s *Scheduler) Run(ctx context.Context) *Summary {
	for _, id := range s.plan.Order {
		s.status[id] = StatusPending
	}

	s.publish(ctx, ports.EventRunStarted, map[string]interface{}{
		"run_id": s.run.ID,
		"nodes":  len(s.plan.Order),
	})

	completions := make(chan completion)
	inFlight := 0

	for {
		if ctx.Err() != nil {
			s.mu.Lock()
			s.aborted = true
			s.mu.Unlock()
		}

		for _, id := range s.dispatchable() {
			s.setStatus(id, StatusRunning)
			s.publish(ctx, ports.EventNodeDispatched, map[string]interface{}{"node_id": id})
			inFlight++
			go func(id string) {
				completions <- completion{outcome: s.executeNode(ctx, id)}
			}(id)
			if inFlight >= s.opts.Workers {
				break
			}
		}

		if inFlight == 0 {
			break
		}

		c := <-completions
		inFlight--
		s.handleCompletion(ctx, c.outcome)
	}

	return s.finish(ctx)
}

// dispatchable returns ready pending nodes in plan order, capped by the
// worker budget upstream.
func (s *Scheduler) dispatchable() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aborted {
		return nil
	}

	var ready []string
	for id, st := range s.status {
		if st != StatusPending {
			continue
		}
		if s.readyLocked(id) {
			ready = append(ready, id)
		}
	}
	sort.Slice(ready, func(i, j int) bool { return s.plan.Less(ready[i], ready[j]) })
	return ready
}

func (s *Scheduler) readyLocked(id string) bool {
	for _, target := range s.plan.WaitTargets(id) {
		if !s.status[target].Successful() {
			return false
		}
	}
	return true
}

func (s *Scheduler) handleCompletion(ctx context.Context, out Outcome) {
	s.mu.Lock()
	s.status[out.ID] = out.Status
	s.outcomes[out.ID] = out
	if out.Status.Successful() {
		// Outputs become visible to dependents only now, in the scheduler
		// thread, under the same mutex the ready check takes.
		s.outputs[out.ID] = out.Outputs
	}
	failed := out.Status == StatusFailed
	if failed {
		s.aborted = true
	}
	s.mu.Unlock()

	switch out.Status {
	case StatusRestored:
		s.publish(ctx, ports.EventNodeRestored, map[string]interface{}{"node_id": out.ID})
	case StatusSucceeded:
		s.publish(ctx, ports.EventNodeCompleted, map[string]interface{}{
			"node_id":     out.ID,
			"duration_ms": out.Record.Duration.Milliseconds(),
		})
	case StatusFailed:
		s.publish(ctx, ports.EventNodeFailed, map[string]interface{}{
			"node_id":   out.ID,
			"exit_code": out.Record.ExitCode,
			"error":     out.Record.ErrorMessage,
		})
	}

	// Retainer settlement may promote soft targets; promotion happens here,
	// before the next dispatch round, so it is observable before any
	// consumer of the soft edge dispatches.
	if out.Status.Successful() {
		nodeDir, err := s.run.NodeDir(out.ID)
		if err == nil {
			promoted := s.retain.OnNodeSettled(ctx, out.ID, nodeDir)
			s.mu.Lock()
			for _, id := range promoted {
				if _, ok := s.status[id]; !ok {
					s.status[id] = StatusPending
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *Scheduler) finish(ctx context.Context) *Summary {
	s.mu.Lock()
	summary := &Summary{Outcomes: make(map[string]Outcome, len(s.outcomes))}
	for id, out := range s.outcomes {
		summary.Outcomes[id] = out
		if out.Status == StatusFailed {
			summary.Failed = append(summary.Failed, id)
		}
	}
	sort.Strings(summary.Failed)
	for id, st := range s.status {
		if st == StatusPending {
			s.status[id] = StatusCancelled
			summary.Outcomes[id] = Outcome{ID: id, Status: StatusCancelled}
		}
	}
	summary.Cancelled = ctx.Err() != nil
	s.mu.Unlock()

	if len(summary.Failed) > 0 || summary.Cancelled {
		s.publish(ctx, ports.EventRunFailed, map[string]interface{}{
			"run_id": s.run.ID,
			"failed": len(summary.Failed),
		})
	} else {
		s.publish(ctx, ports.EventRunCompleted, map[string]interface{}{"run_id": s.run.ID})
	}
	return summary
}

// OutputsOf returns a settled node's published outputs.
func (s *Scheduler) OutputsOf(id string) (action.ActionOutputs, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.outputs[id]
	return out, ok
}

func (s *Scheduler) setStatus(id string, st Status) {
	s.mu.Lock()
	s.status[id] = st
	s.mu.Unlock()
}

func (s *Scheduler) publish(ctx context.Context, eventType string, payload map[string]interface{}) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, nodeEvent{eventType: eventType, payload: payload})
}

type nodeEvent struct {
	eventType string
	payload   map[string]interface{}
}

func (e nodeEvent) EventType() string    { return e.eventType }
func (e nodeEvent) Payload() interface{} { return e.payload }
