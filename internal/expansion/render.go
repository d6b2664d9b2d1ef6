// Package expansion substitutes `${...}` references inside action scripts
// using the binding environment the scheduler resolves at dispatch time.
// Rendering is pure string substitution over the expansions the document
// loader extracted; the renderer never re-parses the script grammar.
package expansion

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mudyla/mdl/internal/domain/action"
	apperrors "github.com/mudyla/mdl/pkg/errors"
)

// Bindings is the fully resolved substitution environment for one node at
// dispatch time. Strong ancestor outputs are guaranteed present by the
// scheduler's ordering; weak outputs may be absent and substitute as empty.
type Bindings struct {
	System   map[string]string
	Env      map[string]string
	Args     map[string]string
	Flags    map[string]bool
	Strong   map[string]action.ActionOutputs
	Weak     map[string]action.ActionOutputs
	Retained map[string]bool
}

// Render substitutes every expansion in the script. Strong action
// references and args/flags/env/system references must resolve; a miss is a
// rendering error (the validator should have caught it earlier, so a miss
// here indicates an internal inconsistency). Weak references that do not
// resolve substitute the empty string; `retained.*` substitutes "1" or "0".
func Render(script string, expansions []action.Expansion, b Bindings) (string, error) {
	out := script
	for _, e := range expansions {
		value, err := resolve(e, b)
		if err != nil {
			return "", err
		}
		out = strings.ReplaceAll(out, e.RawLiteral, value)
	}
	return out, nil
}

func resolve(e action.Expansion, b Bindings) (string, error) {
	switch e.Kind {
	case action.ExpansionSystem:
		if v, ok := b.System[e.Target]; ok {
			return v, nil
		}
		return "", missing("system", e.Target)

	case action.ExpansionEnv:
		if v, ok := b.Env[e.Target]; ok {
			return v, nil
		}
		return "", missing("env", e.Target)

	case action.ExpansionArgs:
		if v, ok := b.Args[e.Target]; ok {
			return v, nil
		}
		return "", missing("args", e.Target)

	case action.ExpansionFlags:
		if v, ok := b.Flags[e.Target]; ok {
			return strconv.FormatBool(v), nil
		}
		return "", missing("flags", e.Target)

	case action.ExpansionActionStrong:
		outputs, ok := b.Strong[e.Target]
		if !ok {
			return "", missing("action", e.Target)
		}
		v, ok := outputs[e.Field]
		if !ok {
			return "", missing("action output", e.Target+"."+e.Field)
		}
		return FormatValue(v), nil

	case action.ExpansionActionWeak:
		outputs, ok := b.Weak[e.Target]
		if !ok {
			return "", nil
		}
		v, ok := outputs[e.Field]
		if !ok {
			return "", nil
		}
		return FormatValue(v), nil

	case action.ExpansionRetained:
		if b.Retained[e.Target] {
			return "1", nil
		}
		return "0", nil

	default:
		return "", apperrors.NewExecutionError("", fmt.Errorf("unknown expansion kind %q", e.Kind))
	}
}

func missing(kind, target string) error {
	return apperrors.NewExecutionError("", fmt.Errorf("unresolved %s reference %q", kind, target))
}

// FormatValue renders a typed output for script substitution: numbers and
// booleans in their canonical textual form, everything else verbatim.
func FormatValue(v action.TypedValue) string {
	switch val := v.Value.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", val)
	}
}
