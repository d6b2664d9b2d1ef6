package livetable

import (
	"io"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mudyla/mdl/internal/ports"
)

// Backend drives the live table from scheduler events. It satisfies the
// logging.Backend interface structurally; child output is never streamed in
// table mode (it lives in the per-node log files).
type Backend struct {
	program *tea.Program
	done    chan struct{}
	once    sync.Once
}

// NewBackend constructs the live-table backend over the plan order.
func NewBackend(runID string, order []string, out io.Writer) *Backend {
	model := NewModel(runID, order)
	return &Backend{
		program: tea.NewProgram(model, tea.WithOutput(out)),
		done:    make(chan struct{}),
	}
}

// Start implements the backend contract: the program runs until RunDoneMsg.
func (b *Backend) Start() error {
	go func() {
		defer close(b.done)
		_, _ = b.program.Run()
	}()
	return nil
}

// HandleEvent translates scheduler events into table messages.
func (b *Backend) HandleEvent(event ports.DomainEvent) {
	payload, _ := event.Payload().(map[string]interface{})
	nodeID, _ := payload["node_id"].(string)

	switch event.EventType() {
	case ports.EventNodeDispatched:
		b.program.Send(NodeStartMsg{ID: nodeID, Time: time.Now()})
	case ports.EventNodeRestored:
		b.program.Send(NodeDoneMsg{ID: nodeID, Status: StatusRestored, Message: "restored from previous run"})
	case ports.EventNodeCompleted:
		var duration time.Duration
		if ms, ok := payload["duration_ms"].(int64); ok {
			duration = time.Duration(ms) * time.Millisecond
		}
		b.program.Send(NodeDoneMsg{ID: nodeID, Status: StatusSuccess, Duration: duration})
	case ports.EventNodeFailed:
		message, _ := payload["error"].(string)
		b.program.Send(NodeDoneMsg{ID: nodeID, Status: StatusFailed, Message: message})
	case ports.EventNodePromoted:
		b.program.Send(NodePromotedMsg{ID: nodeID})
	case ports.EventRunCompleted:
		b.program.Send(RunDoneMsg{})
	case ports.EventRunFailed:
		b.program.Send(RunDoneMsg{})
	}
}

// EchoFor implements the backend contract; table mode never echoes.
func (b *Backend) EchoFor(string) (io.Writer, func()) {
	return nil, func() {}
}

// Stop quits the program and waits for the final frame.
func (b *Backend) Stop() {
	b.once.Do(func() {
		b.program.Send(RunDoneMsg{})
		select {
		case <-b.done:
		case <-time.After(2 * time.Second):
			b.program.Kill()
		}
	})
}
