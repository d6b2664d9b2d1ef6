package main

import (
	"github.com/mudyla/mdl/internal/engine"
	"github.com/mudyla/mdl/internal/ports"
)

// AppContext bundles the long-lived services created at startup and carries
// the process exit code out of cobra's error-only return path.
type AppContext struct {
	Logger   ports.Logger
	Events   ports.EventPublisher
	Engine   *engine.Engine
	ExitCode int
}

// LoggerFor derives a child logger with the supplied component name.
func (a *AppContext) LoggerFor(component string) ports.Logger {
	if a == nil || a.Logger == nil {
		return nil
	}
	return a.Logger.With("component", component)
}
