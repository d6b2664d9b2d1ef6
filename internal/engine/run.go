package engine

import (
	"context"
	"fmt"

	"github.com/mudyla/mdl/internal/ctxalgebra"
	"github.com/mudyla/mdl/internal/docmodel"
	"github.com/mudyla/mdl/internal/domain/action"
	"github.com/mudyla/mdl/internal/graph"
	"github.com/mudyla/mdl/internal/logging"
	"github.com/mudyla/mdl/internal/planner"
	"github.com/mudyla/mdl/internal/ports"
	"github.com/mudyla/mdl/internal/runstore"
	"github.com/mudyla/mdl/internal/scheduler"
)

// Run executes one CLI invocation end to end and returns the process exit
// code. Document, validation and planning failures return ExitUserError
// together with the error; node failures and cancellation are presented by
// the logging backend and reflected in the code alone.
func (e *Engine) Run(ctx context.Context, opts RunOptions) (int, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	g, plan, err := e.resolve(ctx, opts)
	if err != nil {
		return ExitUserError, err
	}

	if opts.DryRun {
		fmt.Fprint(e.Out, plan.Render())
		return ExitOK, nil
	}

	run, err := e.store.NewRun(ctx, e.Now())
	if err != nil {
		return ExitUserError, err
	}
	// Log lines from here on belong to this run.
	ctx = ports.WithRunID(ctx, run.ID)

	var prevRun *runstore.Run
	if opts.Continue {
		prevRun, err = e.store.LatestRun(run.ID)
		if err != nil {
			return ExitUserError, err
		}
	}

	backend := logging.Select(logging.SelectOptions{
		Out:          e.Out,
		RunID:        run.ID,
		PlanOrder:    plan.Order,
		SimpleLog:    opts.SimpleLog,
		Verbose:      opts.Verbose,
		GroupMarkers: opts.GithubActions,
		NoColor:      opts.NoColor,
	})
	if e.Events != nil {
		if _, err := logging.Subscribe(backend, e.Events); err != nil {
			return ExitUserError, err
		}
	}
	if err := backend.Start(); err != nil {
		return ExitUserError, err
	}
	defer backend.Stop()

	workers := 0
	if opts.Sequential {
		workers = 1
	}

	sched := scheduler.New(plan, run, scheduler.Options{
		Workers:     workers,
		NodeTimeout: opts.Timeout,
		WithoutNix:  opts.WithoutNix,
		Platform:    e.Platform,
		ProjectDir:  e.ProjectDir,
		EnvLookup:   e.EnvLookup,
		Runner:      e.Runner,
		PrevRun:     prevRun,
		EchoFor:     backend.EchoFor,
	}, loggerFor(e.Logger, "scheduler"), e.Events)

	summary := sched.Run(ctx)
	backend.Stop()

	if summary.OK() {
		if err := e.emitGoalOutputs(g, plan, sched, opts.OutPath); err != nil {
			return ExitUserError, err
		}
		if !opts.KeepRunDir {
			if err := run.Remove(); err != nil && e.Logger != nil {
				e.Logger.Warn(ctx, "run directory cleanup failed", "run_id", run.ID, "error", err)
			}
		}
		return ExitOK, nil
	}

	if summary.Cancelled {
		return ExitCancelled, nil
	}
	return ExitActionFail, nil
}

// resolve loads the document and produces a validated plan. Shared by Run
// and the dry-run path.
func (e *Engine) resolve(ctx context.Context, opts RunOptions) (*graph.Graph, *planner.Plan, error) {
	pattern := opts.DefsPattern
	if pattern == "" {
		pattern = DefaultDefsPattern
	}

	doc, err := e.loader.LoadNormalized(ctx, pattern)
	if err != nil {
		return nil, nil, err
	}
	axes, actions, env := docmodel.ToDomain(doc)

	axisMap := make(map[string]action.AxisDefinition, len(axes))
	for _, a := range axes {
		axisMap[a.Name] = a
	}
	defaults := ctxalgebra.DefaultContext(axes)

	var invocations []action.Invocation
	for _, spec := range opts.Invocations {
		merged := opts.mergedInvocation(spec)
		expanded, err := ctxalgebra.ExpandWildcards(merged, axisMap)
		if err != nil {
			return nil, nil, err
		}
		for _, inv := range expanded {
			inv.AxisBindings = ctxalgebra.Layer(defaults, inv.AxisBindings, nil)
			invocations = append(invocations, inv)
		}
	}
	if len(invocations) == 0 {
		return nil, nil, fmt.Errorf("no goals given (expected at least one :goal)")
	}

	g, batch := graph.Build(graph.BuildInput{
		Actions:     actions,
		Axes:        axes,
		Environment: env,
		Platform:    e.Platform,
		Invocations: invocations,
	})
	graph.Validate(g, invocations, e.EnvLookup, batch)
	if err := batch.ErrorOrNil(); err != nil {
		return nil, nil, err
	}

	plan, err := planner.New(g)
	if err != nil {
		return nil, nil, err
	}
	return g, plan, nil
}
