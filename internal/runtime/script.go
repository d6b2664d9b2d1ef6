// Package runtime renders runtime-assisted scripts, constructs child
// commands, and supervises their execution. The bash prelude and python
// preamble generated here are the only surface an action script sees; both
// write typed outputs to output.json and the retain sentinel the retainer
// coordinator reads.
package runtime

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/mudyla/mdl/internal/domain/action"
	"github.com/mudyla/mdl/internal/expansion"
)

// RetainSentinel is the file a retainer touches to signal promotion.
const RetainSentinel = "retain.flag"

// OutputFile is the per-node typed-output file name.
const OutputFile = "output.json"

// ScriptFileName returns the on-disk script name for a language.
func ScriptFileName(lang action.Language) string {
	if lang == action.LanguagePython {
		return "script.py"
	}
	return "script.sh"
}

// bashPrelude is sourced ahead of every bash action body. `ret` records a
// typed output; `dep`, `weak` and `soft` are parse-time declarations so they
// execute as no-ops; `retain` drops the sentinel file the retainer
// coordinator inspects.
const bashPrelude = `#!/usr/bin/env bash
set -euo pipefail

export MDL_OUTPUT_JSON=%q
__MDL_NODE_DIR=%q
__mdl_entries=()

__mdl_write() {
	local joined=""
	local entry
	for entry in "${__mdl_entries[@]+"${__mdl_entries[@]}"}"; do
		if [ -n "$joined" ]; then joined="$joined, "; fi
		joined="$joined$entry"
	done
	printf '{%%s}' "$joined" > "$MDL_OUTPUT_JSON"
}

ret() {
	local spec="$1"
	local name="${spec%%%%:*}"
	local rest="${spec#*:}"
	local type="${rest%%%%=*}"
	local value="${rest#*=}"
	local json
	case "$type" in
	int)
		json="$value"
		;;
	bool)
		if [ "$value" = "true" ] || [ "$value" = "1" ]; then json=true; else json=false; fi
		;;
	*)
		json=$(printf '%%s' "$value" | sed -e 's/\\/\\\\/g' -e 's/"/\\"/g')
		json="\"$json\""
		;;
	esac
	__mdl_entries+=("\"$name\": {\"type\": \"$type\", \"value\": $json}")
	__mdl_write
}

dep() { :; }
weak() { :; }
soft() { :; }

retain() {
	: > "$__MDL_NODE_DIR/%s"
}

__mdl_write

`

// RenderBashScript produces the complete script.sh contents: prelude plus
// the expansion-substituted action body.
func RenderBashScript(body, nodeDir string) string {
	outputPath := filepath.Join(nodeDir, OutputFile)
	return fmt.Sprintf(bashPrelude, outputPath, nodeDir, RetainSentinel) + body + "\n"
}

// PythonSurface is the data injected into the generated `mdl` object: fixed
// immutable mappings, generated per node (code generation, not reflection).
type PythonSurface struct {
	Sys      map[string]string
	Env      map[string]string
	Args     map[string]string
	Flags    map[string]bool
	Actions  map[string]map[string]interface{}
	Retained map[string]bool
}

// SurfaceFromBindings projects the scheduler's resolved bindings onto the
// python runtime surface. Strong ancestor outputs appear under
// mdl.actions[name][return] with their coerced values.
func SurfaceFromBindings(b expansion.Bindings) PythonSurface {
	actions := make(map[string]map[string]interface{}, len(b.Strong))
	for name, outputs := range b.Strong {
		values := make(map[string]interface{}, len(outputs))
		for ret, tv := range outputs {
			values[ret] = tv.Value
		}
		actions[name] = values
	}
	return PythonSurface{
		Sys:      b.System,
		Env:      b.Env,
		Args:     b.Args,
		Flags:    b.Flags,
		Actions:  actions,
		Retained: b.Retained,
	}
}

const pythonPreamble = `import json as _mdl_json
import os as _mdl_os


class _MdlRuntime:
    def __init__(self):
        self.sys = _mdl_json.loads(%q)
        self.env = _mdl_json.loads(%q)
        self.args = _mdl_json.loads(%q)
        self.flags = _mdl_json.loads(%q)
        self.actions = _mdl_json.loads(%q)
        self._retained = _mdl_json.loads(%q)
        self._node_dir = %q
        self._output_path = %q
        self._outputs = {}
        self._write()

    def ret(self, name, value, type="string"):
        if type == "int":
            value = int(value)
        elif type == "bool":
            value = bool(value)
        else:
            value = str(value)
        self._outputs[name] = {"type": type, "value": value}
        self._write()

    def dep(self, _):
        pass

    def weak(self, _):
        pass

    def soft(self, *_):
        pass

    def retain(self):
        open(_mdl_os.path.join(self._node_dir, %q), "w").close()

    def is_retained(self, name):
        return bool(self._retained.get(name, False))

    def _write(self):
        with open(self._output_path, "w") as f:
            _mdl_json.dump(self._outputs, f)


mdl = _MdlRuntime()

`

// RenderPythonScript produces the complete script.py contents: the injected
// runtime surface plus the expansion-substituted action body.
func RenderPythonScript(body, nodeDir string, surface PythonSurface) (string, error) {
	marshal := func(v interface{}) (string, error) {
		data, err := json.Marshal(orEmpty(v))
		if err != nil {
			return "", fmt.Errorf("encode python surface: %w", err)
		}
		return string(data), nil
	}

	sys, err := marshal(surface.Sys)
	if err != nil {
		return "", err
	}
	env, err := marshal(surface.Env)
	if err != nil {
		return "", err
	}
	args, err := marshal(surface.Args)
	if err != nil {
		return "", err
	}
	flags, err := marshal(surface.Flags)
	if err != nil {
		return "", err
	}
	actions, err := marshal(surface.Actions)
	if err != nil {
		return "", err
	}
	retained, err := marshal(surface.Retained)
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(nodeDir, OutputFile)
	preamble := fmt.Sprintf(pythonPreamble,
		sys, env, args, flags, actions, retained,
		nodeDir, outputPath, RetainSentinel)
	return preamble + body + "\n", nil
}

func orEmpty(v interface{}) interface{} {
	switch m := v.(type) {
	case map[string]string:
		if m == nil {
			return map[string]string{}
		}
	case map[string]bool:
		if m == nil {
			return map[string]bool{}
		}
	case map[string]map[string]interface{}:
		if m == nil {
			return map[string]map[string]interface{}{}
		}
	}
	return v
}
