package engine

import (
	"time"

	"github.com/mudyla/mdl/internal/domain/action"
)

// InvocationSpec is one `:goal` group from the CLI, before wildcard
// expansion and context layering.
type InvocationSpec struct {
	Goal  string
	Axis  map[string]string
	Args  map[string]string
	Flags map[string]bool
}

// RunOptions carries the recognized global options.
type RunOptions struct {
	DefsPattern   string
	DryRun        bool
	Continue      bool
	KeepRunDir    bool
	WithoutNix    bool
	Verbose       bool
	GithubActions bool
	SimpleLog     bool
	NoColor       bool
	Sequential    bool
	OutPath       string
	Timeout       time.Duration

	GlobalAxis  map[string]string
	GlobalArgs  map[string]string
	GlobalFlags map[string]bool

	Invocations []InvocationSpec
}

// DefaultDefsPattern is the definition discovery glob.
const DefaultDefsPattern = ".mdl/defs/**/*.md"

// mergedInvocation layers global bindings under one invocation group.
func (o RunOptions) mergedInvocation(spec InvocationSpec) action.Invocation {
	axis := make(action.Context, len(o.GlobalAxis)+len(spec.Axis))
	for k, v := range o.GlobalAxis {
		axis[k] = v
	}
	for k, v := range spec.Axis {
		axis[k] = v
	}

	args := make(map[string]string, len(o.GlobalArgs)+len(spec.Args))
	for k, v := range o.GlobalArgs {
		args[k] = v
	}
	for k, v := range spec.Args {
		args[k] = v
	}

	flags := make(map[string]bool, len(o.GlobalFlags)+len(spec.Flags))
	for k, v := range o.GlobalFlags {
		flags[k] = v
	}
	for k, v := range spec.Flags {
		flags[k] = v
	}

	return action.Invocation{Goal: spec.Goal, AxisBindings: axis, Args: args, Flags: flags}
}
