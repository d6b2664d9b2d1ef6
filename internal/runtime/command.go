package runtime

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mudyla/mdl/internal/docmodel"
	"github.com/mudyla/mdl/internal/domain/action"
)

// CommandSpec describes the child process for one node before wrapping.
type CommandSpec struct {
	Argv []string
	// Env is the complete child environment ("KEY=VALUE"). Nil means
	// inherit the parent environment.
	Env []string
	Dir string
}

// Wrapper adjusts the command a node runs under. The hermetic wrapper is
// the default; Nix integration plugs in here as an external collaborator.
type Wrapper interface {
	Wrap(spec CommandSpec) CommandSpec
}

// InterpreterArgv returns the interpreter invocation for a rendered script.
func InterpreterArgv(lang action.Language, scriptPath string) []string {
	if lang == action.LanguagePython {
		return []string{"python3", scriptPath}
	}
	return []string{"bash", scriptPath}
}

// baseEnvVars are always forwarded so interpreters and spawned tools keep
// working inside the hermetic environment.
var baseEnvVars = []string{"PATH", "HOME", "TMPDIR", "LANG", "LC_ALL"}

// HermeticWrapper strips the child environment down to the union of the
// globally passthrough vars and the action's declared required vars, then
// layers the document's declared var assignments on top.
type HermeticWrapper struct {
	Environment docmodel.Environment
	RequiredEnv []string
	Lookup      func(string) (string, bool)
}

// Wrap implements Wrapper.
func (w HermeticWrapper) Wrap(spec CommandSpec) CommandSpec {
	lookup := w.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	keep := make(map[string]string)
	forward := func(name string) {
		if _, ok := keep[name]; ok {
			return
		}
		if v, ok := lookup(name); ok {
			keep[name] = v
		}
	}

	for _, name := range baseEnvVars {
		forward(name)
	}
	for _, name := range w.Environment.Passthrough {
		forward(name)
	}
	for _, name := range w.RequiredEnv {
		forward(name)
	}
	// Document-declared vars win over anything forwarded from the parent.
	for name, value := range w.Environment.Vars {
		keep[name] = value
	}

	names := make([]string, 0, len(keep))
	for name := range keep {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make([]string, 0, len(names))
	for _, name := range names {
		env = append(env, fmt.Sprintf("%s=%s", name, keep[name]))
	}

	spec.Env = env
	return spec
}

// DirectWrapper runs the interpreter directly, inheriting the parent
// environment with the document's declared vars appended (--without-nix).
type DirectWrapper struct {
	Environment docmodel.Environment
}

// Wrap implements Wrapper.
func (w DirectWrapper) Wrap(spec CommandSpec) CommandSpec {
	if len(w.Environment.Vars) == 0 {
		spec.Env = nil
		return spec
	}

	names := make([]string, 0, len(w.Environment.Vars))
	for name := range w.Environment.Vars {
		names = append(names, name)
	}
	sort.Strings(names)

	env := os.Environ()
	for _, name := range names {
		env = append(env, fmt.Sprintf("%s=%s", name, w.Environment.Vars[name]))
	}
	spec.Env = env
	return spec
}

// EnvValue extracts a variable from a rendered environment list, for tests
// and diagnostics.
func EnvValue(env []string, name string) (string, bool) {
	prefix := name + "="
	for _, kv := range env {
		if strings.HasPrefix(kv, prefix) {
			return strings.TrimPrefix(kv, prefix), true
		}
	}
	return "", false
}
