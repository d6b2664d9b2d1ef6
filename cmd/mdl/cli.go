package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/mudyla/mdl/internal/engine"
)

// cliMode selects what the invocation does besides running goals.
type cliMode int

const (
	modeRun cliMode = iota
	modeListActions
	modeAutocomplete
)

// cliInvocation is the fully tokenized command line: global options plus the
// per-goal groups introduced by `:goal` tokens.
type cliInvocation struct {
	Mode             cliMode
	AutocompleteKind engine.AutocompleteKind
	AutocompleteAxis string
	Options          engine.RunOptions
}

// parseArgs implements the CLI grammar:
//
//	mdl [<global-opt|global-axis|global-arg|global-flag>]* (:goal [<local...>]*)*
//
// Anything before the first `:goal` is global; each `:goal` opens a local
// scope whose bindings win over the global ones.
func parseArgs(args []string) (*cliInvocation, error) {
	inv := &cliInvocation{
		Options: engine.RunOptions{
			GlobalAxis:  map[string]string{},
			GlobalArgs:  map[string]string{},
			GlobalFlags: map[string]bool{},
		},
	}

	var current *engine.InvocationSpec
	axisSink := func() map[string]string {
		if current != nil {
			return current.Axis
		}
		return inv.Options.GlobalAxis
	}
	argSink := func() map[string]string {
		if current != nil {
			return current.Args
		}
		return inv.Options.GlobalArgs
	}
	flagSink := func() map[string]bool {
		if current != nil {
			return current.Flags
		}
		return inv.Options.GlobalFlags
	}
	flush := func() {
		if current != nil {
			inv.Options.Invocations = append(inv.Options.Invocations, *current)
			current = nil
		}
	}

	for i := 0; i < len(args); i++ {
		tok := args[i]

		switch {
		case strings.HasPrefix(tok, ":"):
			goal := strings.TrimPrefix(tok, ":")
			if goal == "" {
				return nil, fmt.Errorf("empty goal name")
			}
			flush()
			current = &engine.InvocationSpec{
				Goal:  goal,
				Axis:  map[string]string{},
				Args:  map[string]string{},
				Flags: map[string]bool{},
			}

		case tok == "--axis" || tok == "--use" || tok == "-u" || tok == "-a":
			i++
			if i >= len(args) {
				return nil, fmt.Errorf("%s requires a <name>:<value> argument", tok)
			}
			if err := bindAxis(axisSink(), args[i]); err != nil {
				return nil, err
			}
		case strings.HasPrefix(tok, "--axis=") || strings.HasPrefix(tok, "--use="):
			if err := bindAxis(axisSink(), tok[strings.Index(tok, "=")+1:]); err != nil {
				return nil, err
			}

		case tok == "--list-actions":
			inv.Mode = modeListActions
		case tok == "--autocomplete":
			inv.Mode = modeAutocomplete
			inv.AutocompleteKind = engine.CompleteActions
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") && !strings.HasPrefix(args[i+1], ":") {
				i++
				inv.AutocompleteKind = engine.AutocompleteKind(args[i])
			}
		case strings.HasPrefix(tok, "--autocomplete-axis="):
			inv.AutocompleteAxis = strings.TrimPrefix(tok, "--autocomplete-axis=")

		case strings.HasPrefix(tok, "--defs="):
			inv.Options.DefsPattern = strings.TrimPrefix(tok, "--defs=")
		case strings.HasPrefix(tok, "--out="):
			inv.Options.OutPath = strings.TrimPrefix(tok, "--out=")
		case strings.HasPrefix(tok, "--timeout="):
			d, err := time.ParseDuration(strings.TrimPrefix(tok, "--timeout="))
			if err != nil {
				return nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			inv.Options.Timeout = d

		case tok == "--dry-run":
			inv.Options.DryRun = true
		case tok == "--continue":
			inv.Options.Continue = true
		case tok == "--keep-run-dir":
			inv.Options.KeepRunDir = true
		case tok == "--without-nix":
			inv.Options.WithoutNix = true
		case tok == "--verbose":
			inv.Options.Verbose = true
		case tok == "--github-actions":
			inv.Options.GithubActions = true
		case tok == "--simple-log":
			inv.Options.SimpleLog = true
		case tok == "--no-color":
			inv.Options.NoColor = true
		case tok == "--seq":
			inv.Options.Sequential = true

		case strings.HasPrefix(tok, "--"):
			name := strings.TrimPrefix(tok, "--")
			if eq := strings.Index(name, "="); eq >= 0 {
				argSink()[name[:eq]] = name[eq+1:]
			} else {
				flagSink()[name] = true
			}

		default:
			return nil, fmt.Errorf("unexpected argument %q (goals start with ':')", tok)
		}
	}
	flush()

	return inv, nil
}

func bindAxis(sink map[string]string, spec string) error {
	name, value, ok := strings.Cut(spec, ":")
	if !ok || name == "" || value == "" {
		return fmt.Errorf("axis binding %q must be <name>:<value>", spec)
	}
	sink[name] = value
	return nil
}
