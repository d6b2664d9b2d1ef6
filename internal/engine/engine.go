// Package engine wires the planner-executor core together for one CLI
// invocation: document loading, context algebra, graph construction,
// validation, planning, scheduling and goal-output assembly. All
// process-wide state (run directory, run id, logger, event publisher) lives
// in the Engine value; there are no singletons.
package engine

import (
	"io"
	"os"
	"runtime"
	"time"

	"github.com/mudyla/mdl/internal/docmodel"
	eventsinfra "github.com/mudyla/mdl/internal/infrastructure/events"
	logginginfra "github.com/mudyla/mdl/internal/infrastructure/logging"
	"github.com/mudyla/mdl/internal/ports"
	mdlruntime "github.com/mudyla/mdl/internal/runtime"
	"github.com/mudyla/mdl/internal/runstore"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitUserError  = 1
	ExitActionFail = 2
	ExitCancelled  = 130
)

// Engine executes mdl invocations against one project directory.
type Engine struct {
	ProjectDir string
	Platform   string
	Out        io.Writer
	Logger     ports.Logger
	Events     ports.EventPublisher
	EnvLookup  func(string) (string, bool)
	Runner     mdlruntime.Runner
	Now        func() time.Time

	loader *docmodel.Loader
	store  *runstore.Store
}

// New constructs an Engine with host defaults for anything left nil. The
// event publisher is the spine between the scheduler and the logging
// backends, so a quiet one is installed when the caller supplies none.
func New(projectDir string, logger ports.Logger, events ports.EventPublisher) *Engine {
	if events == nil {
		events = eventsinfra.NewLoggingPublisher(logginginfra.NewNoOpLogger())
	}
	e := &Engine{
		ProjectDir: projectDir,
		Platform:   runtime.GOOS,
		Out:        os.Stdout,
		Logger:     logger,
		Events:     events,
		EnvLookup:  os.LookupEnv,
		Now:        time.Now,
	}
	e.loader = docmodel.NewLoader(loggerFor(logger, "loader"))
	e.store = runstore.New(projectDir, loggerFor(logger, "runstore"))
	return e
}

// Store exposes the run store, mainly for tests.
func (e *Engine) Store() *runstore.Store {
	return e.store
}

func loggerFor(logger ports.Logger, component string) ports.Logger {
	if logger == nil {
		return nil
	}
	return logger.With("component", component)
}
