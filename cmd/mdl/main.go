package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mudyla/mdl/internal/engine"
	eventsinfra "github.com/mudyla/mdl/internal/infrastructure/events"
	logginginfra "github.com/mudyla/mdl/internal/infrastructure/logging"
	"github.com/mudyla/mdl/internal/ports"
)

func main() {
	level := os.Getenv("MDL_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	appLogger, err := logginginfra.New(logginginfra.Options{
		Writer:    os.Stderr,
		Level:     level,
		Component: "cli",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create application logger: %v\n", err)
		os.Exit(engine.ExitUserError)
	}

	correlationID := ports.GenerateCorrelationID()
	ctx := ports.WithCorrelationID(signalContext(), correlationID)

	projectDir, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve working directory: %v\n", err)
		os.Exit(engine.ExitUserError)
	}

	eventPublisher := eventsinfra.NewLoggingPublisher(logginginfra.NewNoOpLogger())

	app := &AppContext{
		Logger: appLogger,
		Events: eventPublisher,
		Engine: engine.New(projectDir, appLogger, eventPublisher),
	}

	rootCmd := newRootCmd(app)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "mdl: %v\n", err)
		if app.ExitCode == 0 {
			app.ExitCode = engine.ExitUserError
		}
	}
	os.Exit(app.ExitCode)
}

func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	return ctx
}
