// Package logging provides the user-facing presentation backends: a plain
// line-oriented logger, a CI grouped logger, and a live table rendered with
// bubbletea. Backends observe scheduler state transitions through the event
// publisher; they never reach into the scheduler.
package logging

import (
	"context"
	"io"

	"github.com/mudyla/mdl/internal/ports"
)

// Backend presents scheduler progress to the user.
type Backend interface {
	// Start begins rendering (the live table starts its program here).
	Start() error
	// HandleEvent consumes one scheduler event.
	HandleEvent(event ports.DomainEvent)
	// EchoFor returns a console writer for a node's child streams plus a
	// release callback, or nil when child output is not streamed.
	EchoFor(nodeID string) (io.Writer, func())
	// Stop finishes rendering and flushes.
	Stop()
}

var nodeEventTypes = []string{
	ports.EventRunStarted,
	ports.EventRunCompleted,
	ports.EventRunFailed,
	ports.EventNodeDispatched,
	ports.EventNodeRestored,
	ports.EventNodeCompleted,
	ports.EventNodeFailed,
	ports.EventNodePromoted,
}

// Subscribe wires a backend to every scheduler event type.
func Subscribe(b Backend, pub ports.EventPublisher) ([]ports.Subscription, error) {
	subs := make([]ports.Subscription, 0, len(nodeEventTypes))
	for _, eventType := range nodeEventTypes {
		sub, err := pub.Subscribe(eventType, func(_ context.Context, event ports.DomainEvent) error {
			b.HandleEvent(event)
			return nil
		})
		if err != nil {
			return subs, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// payloadOf extracts the conventional map payload from an event.
func payloadOf(event ports.DomainEvent) map[string]interface{} {
	if m, ok := event.Payload().(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func payloadString(event ports.DomainEvent, key string) string {
	if v, ok := payloadOf(event)[key].(string); ok {
		return v
	}
	return ""
}
