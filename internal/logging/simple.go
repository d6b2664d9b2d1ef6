package logging

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mudyla/mdl/internal/ports"
)

var (
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	runStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	promotStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
)

// SimpleOptions configures the line-oriented backend.
type SimpleOptions struct {
	Out io.Writer
	// Verbose streams child output to the console without group markers.
	Verbose bool
	// GroupMarkers wraps each node's output in ::group:: / ::endgroup::
	// markers (--github-actions). Output is buffered per node so parallel
	// children do not interleave inside a group.
	GroupMarkers bool
	NoColor      bool
}

// Simple is the plain line-oriented backend used by --simple-log,
// --verbose, --github-actions, and any non-TTY stdout.
type Simple struct {
	opts SimpleOptions
	mu   sync.Mutex
}

// NewSimple constructs the backend.
func NewSimple(opts SimpleOptions) *Simple {
	return &Simple{opts: opts}
}

// Start implements Backend.
func (s *Simple) Start() error { return nil }

// Stop implements Backend.
func (s *Simple) Stop() {}

// HandleEvent implements Backend.
func (s *Simple) HandleEvent(event ports.DomainEvent) {
	nodeID := payloadString(event, "node_id")

	switch event.EventType() {
	case ports.EventRunStarted:
		s.printf("%s run %s\n", s.style(dimStyle, "▸"), payloadString(event, "run_id"))
	case ports.EventNodeDispatched:
		s.printf("%s %s\n", s.style(runStyle, "▶"), nodeID)
	case ports.EventNodeRestored:
		s.printf("%s %s restored from previous run\n", s.style(okStyle, "↩"), nodeID)
	case ports.EventNodeCompleted:
		duration := ""
		if ms, ok := payloadOf(event)["duration_ms"].(int64); ok {
			duration = fmt.Sprintf(" (%s)", (time.Duration(ms) * time.Millisecond).String())
		}
		s.printf("%s %s%s\n", s.style(okStyle, "✓"), nodeID, duration)
	case ports.EventNodeFailed:
		s.printf("%s %s: %s\n", s.style(failStyle, "✗"), nodeID, payloadString(event, "error"))
	case ports.EventNodePromoted:
		s.printf("%s %s promoted by %s\n", s.style(promotStyle, "⤴"), nodeID, payloadString(event, "retainer"))
	case ports.EventRunCompleted:
		s.printf("%s run finished\n", s.style(okStyle, "✓"))
	case ports.EventRunFailed:
		s.printf("%s run failed\n", s.style(failStyle, "✗"))
	}
}

// EchoFor implements Backend. Verbose mode streams directly under the
// console mutex; group mode buffers and flushes the whole node at once.
func (s *Simple) EchoFor(nodeID string) (io.Writer, func()) {
	switch {
	case s.opts.GroupMarkers:
		buf := &bytes.Buffer{}
		return buf, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			fmt.Fprintf(s.opts.Out, "::group::%s\n", nodeID)
			_, _ = io.Copy(s.opts.Out, buf)
			fmt.Fprintln(s.opts.Out, "::endgroup::")
		}
	case s.opts.Verbose:
		return &lockedWriter{mu: &s.mu, out: s.opts.Out}, func() {}
	default:
		return nil, func() {}
	}
}

func (s *Simple) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.opts.Out, format, args...)
}

func (s *Simple) style(style lipgloss.Style, glyph string) string {
	if s.opts.NoColor {
		return glyph
	}
	return style.Render(glyph)
}

type lockedWriter struct {
	mu  *sync.Mutex
	out io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Write(p)
}
