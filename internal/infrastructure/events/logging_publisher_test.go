package events

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	cblog "github.com/charmbracelet/log"
	"github.com/stretchr/testify/require"

	logginginfra "github.com/mudyla/mdl/internal/infrastructure/logging"
	"github.com/mudyla/mdl/internal/ports"
)

func jsonPublisher(t *testing.T) (*LoggingPublisher, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := logginginfra.New(logginginfra.Options{
		Writer:    buf,
		Level:     "debug",
		Component: "publisher",
		Formatter: cblog.JSONFormatter,
	})
	require.NoError(t, err)
	return NewLoggingPublisher(logger), buf
}

func TestLoggingPublisherIncludesCorrelationID(t *testing.T) {
	t.Parallel()

	publisher, buf := jsonPublisher(t)

	ctx := ports.WithCorrelationID(context.Background(), "abc-123")
	err := publisher.Publish(ctx, sampleEvent{
		eventType: ports.EventNodeDispatched,
		payload:   map[string]interface{}{"node_id": "build"},
	})
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "scheduler event", entry["msg"])
	require.Equal(t, ports.EventNodeDispatched, entry["event_type"])
	require.Equal(t, "abc-123", entry["correlation_id"])
	require.Equal(t, "build", entry["node_id"])
	require.Equal(t, "debug", entry["level"])
}

func TestLoggingPublisherWarnsOnFailureEvents(t *testing.T) {
	t.Parallel()

	publisher, buf := jsonPublisher(t)

	err := publisher.Publish(context.Background(), sampleEvent{
		eventType: ports.EventNodeFailed,
		payload:   map[string]interface{}{"node_id": "bad", "exit_code": 2},
	})
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "warn", entry["level"])
	require.Equal(t, ports.EventNodeFailed, entry["event_type"])
}

func TestLoggingPublisherInvokesSubscribers(t *testing.T) {
	t.Parallel()

	publisher, _ := jsonPublisher(t)

	var handled bool
	_, err := publisher.Subscribe(ports.EventRunCompleted, func(ctx context.Context, event ports.DomainEvent) error {
		handled = true
		return nil
	})
	require.NoError(t, err)

	err = publisher.Publish(context.Background(), sampleEvent{
		eventType: ports.EventRunCompleted,
		payload:   map[string]interface{}{"run_id": "demo"},
	})
	require.NoError(t, err)
	require.True(t, handled, "subscriber should be invoked")
}

func TestLoggingPublisherUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()

	publisher, _ := jsonPublisher(t)

	var calls int
	sub, err := publisher.Subscribe(ports.EventNodeCompleted, func(ctx context.Context, event ports.DomainEvent) error {
		calls++
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(context.Background(), sampleEvent{eventType: ports.EventNodeCompleted}))
	sub.Unsubscribe()
	require.NoError(t, publisher.Publish(context.Background(), sampleEvent{eventType: ports.EventNodeCompleted}))

	require.Equal(t, 1, calls)
}

type sampleEvent struct {
	eventType string
	payload   interface{}
}

func (e sampleEvent) EventType() string    { return e.eventType }
func (e sampleEvent) Payload() interface{} { return e.payload }
