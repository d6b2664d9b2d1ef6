package logging

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/mudyla/mdl/internal/logging/livetable"
)

// SelectOptions chooses the presentation backend per the CLI flags.
type SelectOptions struct {
	Out          io.Writer
	RunID        string
	PlanOrder    []string
	SimpleLog    bool
	Verbose      bool
	GroupMarkers bool
	NoColor      bool
	ForceTTY     *bool
}

// Select picks the backend: the live table on an interactive terminal,
// otherwise the plain line logger. Verbose and CI-group modes always use
// the line logger since they stream child output.
func Select(opts SelectOptions) Backend {
	simple := SimpleOptions{
		Out:          opts.Out,
		Verbose:      opts.Verbose,
		GroupMarkers: opts.GroupMarkers,
		NoColor:      opts.NoColor,
	}

	if opts.SimpleLog || opts.Verbose || opts.GroupMarkers {
		return NewSimple(simple)
	}
	if !isTerminal(opts) {
		return NewSimple(simple)
	}
	return livetable.NewBackend(opts.RunID, opts.PlanOrder, opts.Out)
}

func isTerminal(opts SelectOptions) bool {
	if opts.ForceTTY != nil {
		return *opts.ForceTTY
	}
	f, ok := opts.Out.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
