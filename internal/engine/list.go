package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mudyla/mdl/internal/docmodel"
	"github.com/mudyla/mdl/internal/domain/action"
	"github.com/mudyla/mdl/internal/runstore"
)

// ListActions prints every declared action with its description,
// dependencies, required environment and returns.
func (e *Engine) ListActions(ctx context.Context, defsPattern string) error {
	if defsPattern == "" {
		defsPattern = DefaultDefsPattern
	}
	doc, err := e.loader.LoadNormalized(ctx, defsPattern)
	if err != nil {
		return err
	}
	_, actions, _ := docmodel.ToDomain(doc)

	if state := runstore.InspectWorktree(e.ProjectDir); state.InRepository {
		note := "clean"
		if state.Dirty {
			note = "dirty"
		}
		if state.Branch != "" {
			fmt.Fprintf(e.Out, "# repository %s (%s)\n\n", state.Branch, note)
		} else {
			fmt.Fprintf(e.Out, "# repository (%s)\n\n", note)
		}
	}

	sort.Slice(actions, func(i, j int) bool { return actions[i].Name < actions[j].Name })
	for _, a := range actions {
		fmt.Fprintf(e.Out, "%s\n", a.Name)
		if a.Description != "" {
			fmt.Fprintf(e.Out, "    %s\n", a.Description)
		}
		if len(a.RequiredEnv) > 0 {
			fmt.Fprintf(e.Out, "    env: %s\n", strings.Join(a.RequiredEnv, ", "))
		}
		for _, line := range describeVersions(a) {
			fmt.Fprintf(e.Out, "    %s\n", line)
		}
	}
	return nil
}

func describeVersions(a action.ActionDefinition) []string {
	strong := map[string]struct{}{}
	weak := map[string]struct{}{}
	soft := map[string]struct{}{}
	returns := map[string]string{}

	for _, v := range a.Versions {
		for _, d := range v.StrongDeps {
			strong[d] = struct{}{}
		}
		for _, e := range v.Expansions {
			switch e.Kind {
			case action.ExpansionActionStrong:
				strong[e.Target] = struct{}{}
			case action.ExpansionActionWeak:
				weak[e.Target] = struct{}{}
			}
		}
		for _, d := range v.WeakDeps {
			weak[d] = struct{}{}
		}
		for _, s := range v.SoftDeps {
			soft[fmt.Sprintf("%s (retain %s)", s.Target, s.Retainer)] = struct{}{}
		}
		for _, r := range v.Returns {
			returns[r.Name] = string(r.Type)
		}
	}

	var lines []string
	if names := sortedKeys(strong); len(names) > 0 {
		lines = append(lines, "deps: "+strings.Join(names, ", "))
	}
	if names := sortedKeys(weak); len(names) > 0 {
		lines = append(lines, "weak: "+strings.Join(names, ", "))
	}
	if names := sortedKeys(soft); len(names) > 0 {
		lines = append(lines, "soft: "+strings.Join(names, ", "))
	}
	if len(returns) > 0 {
		pairs := make([]string, 0, len(returns))
		for _, name := range sortedKeys(returnsSet(returns)) {
			pairs = append(pairs, fmt.Sprintf("%s:%s", name, returns[name]))
		}
		lines = append(lines, "returns: "+strings.Join(pairs, ", "))
	}
	return lines
}

func returnsSet(m map[string]string) map[string]struct{} {
	out := make(map[string]struct{}, len(m))
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// AutocompleteKind selects the completion data source.
type AutocompleteKind string

const (
	CompleteActions    AutocompleteKind = "actions"
	CompleteFlags      AutocompleteKind = "flags"
	CompleteAxisNames  AutocompleteKind = "axis-names"
	CompleteAxisValues AutocompleteKind = "axis-values"
)

// Autocomplete prints completion candidates one per line. It is a plain read-only query over the loaded document;
// shell script generation happens outside the core.
func (e *Engine) Autocomplete(ctx context.Context, defsPattern string, kind AutocompleteKind, axisName string) error {
	if defsPattern == "" {
		defsPattern = DefaultDefsPattern
	}
	doc, err := e.loader.LoadNormalized(ctx, defsPattern)
	if err != nil {
		return err
	}
	axes, actions, _ := docmodel.ToDomain(doc)

	var candidates []string
	switch kind {
	case CompleteActions:
		for _, a := range actions {
			candidates = append(candidates, a.Name)
		}
	case CompleteFlags:
		seen := map[string]struct{}{}
		for _, a := range actions {
			for _, v := range a.Versions {
				for _, f := range v.Flags {
					seen[f.Name] = struct{}{}
				}
			}
		}
		candidates = sortedKeys(seen)
	case CompleteAxisNames:
		for _, a := range axes {
			candidates = append(candidates, a.Name)
		}
	case CompleteAxisValues:
		for _, a := range axes {
			if a.Name == axisName {
				candidates = append(candidates, a.Values...)
			}
		}
	default:
		return fmt.Errorf("unknown autocomplete source %q", kind)
	}

	sort.Strings(candidates)
	for _, c := range candidates {
		fmt.Fprintln(e.Out, c)
	}
	return nil
}
