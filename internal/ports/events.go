package ports

import "context"

// Scheduler node-lifecycle event types. The live-table logger
// backend (internal/logging/livetable) subscribes to these to drive its
// bubbletea program; the simple/CI-group backends log them as plain lines.
const (
	// EventRunStarted is emitted once, before the scheduler dispatches any node.
	EventRunStarted = "run.started"
	// EventRunCompleted is emitted after every node has settled, no failures.
	EventRunCompleted = "run.completed"
	// EventRunFailed is emitted when the scheduler aborts after a node failure.
	EventRunFailed = "run.failed"
	// EventNodeDispatched is emitted when a node enters the ready queue and a
	// worker begins its lifecycle.
	EventNodeDispatched = "node.dispatched"
	// EventNodeRestored is emitted when --continue restores a node from a
	// prior run directory without spawning a child.
	EventNodeRestored = "node.restored"
	// EventNodeCompleted is emitted when a node's child process exits zero
	// and its outputs pass validation.
	EventNodeCompleted = "node.completed"
	// EventNodeFailed is emitted on a non-zero exit, missing output.json,
	// type mismatch, missing file/directory output, or timeout.
	EventNodeFailed = "node.failed"
	// EventNodePromoted is emitted when the retainer coordinator promotes a
	// soft target into the executable set.
	EventNodePromoted = "node.promoted"
)

// DomainEvent represents a significant occurrence within the domain or
// application layer. Events carry structured payloads that downstream
// subscribers can use for logging, UI updates, or integrations.
type DomainEvent interface {
	EventType() string
	Payload() interface{}
}

// EventPublisher distributes events to interested subscribers. Dispatch is
// synchronous—Publish blocks until all handlers run—ensuring observability
// signals appear before the process exits. Handlers may spawn goroutines for
// async processing if work should continue in the background. Implementations
// must be thread-safe.
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
}

// EventHandler processes an event of a specific type. Handlers should avoid
// panicking; failures should be surfaced via returned errors so publishers can
// log diagnostics and continue delivering to remaining subscribers.
type EventHandler func(context.Context, DomainEvent) error

// Subscription represents a registered handler. Callers must invoke
// Unsubscribe to stop receiving events and release resources.
type Subscription interface {
	Unsubscribe()
}
