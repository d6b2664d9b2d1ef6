package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDefs(t *testing.T, projectDir, content string) string {
	t.Helper()
	defsDir := filepath.Join(projectDir, ".mdl", "defs")
	require.NoError(t, os.MkdirAll(defsDir, 0o755))
	path := filepath.Join(defsDir, "core.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return filepath.Join(projectDir, ".mdl", "defs", "*.md")
}

func newTestEngine(t *testing.T) (*Engine, string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	var out bytes.Buffer
	e := New(dir, nil, nil)
	e.Out = &out
	return e, dir, &out
}

const chainDefs = `
actions:
  - name: a
    versions:
      - language: bash
        script: |
          mkdir -p test-output
          ret d:directory=test-output
        returns:
          - name: d
            type: directory
  - name: b
    versions:
      - language: bash
        script: |
          dep action.a
          echo hello > ${action.strong.a.d}/msg.txt
          ret f:file=${action.strong.a.d}/msg.txt
        returns:
          - name: f
            type: file
`

func TestRunSimpleChain(t *testing.T) {
	e, dir, out := newTestEngine(t)
	pattern := writeDefs(t, dir, chainDefs)

	code, err := e.Run(context.Background(), RunOptions{
		DefsPattern: pattern,
		WithoutNix:  true,
		SimpleLog:   true,
		Invocations: []InvocationSpec{{Goal: "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)

	var payload map[string]map[string]interface{}
	start := bytes.IndexByte(out.Bytes(), '{')
	require.GreaterOrEqual(t, start, 0)
	require.NoError(t, json.Unmarshal(out.Bytes()[start:], &payload))
	require.Contains(t, payload, "b")
	assert.FileExists(t, filepath.Join(dir, payload["b"]["f"].(string)))

	// Run dir removed on success without --keep-run-dir.
	entries, err := os.ReadDir(filepath.Join(dir, ".mdl", "runs"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunDryRun(t *testing.T) {
	e, dir, out := newTestEngine(t)
	pattern := writeDefs(t, dir, chainDefs)

	code, err := e.Run(context.Background(), RunOptions{
		DefsPattern: pattern,
		DryRun:      true,
		Invocations: []InvocationSpec{{Goal: "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, out.String(), "Execution plan (2 nodes):")

	assert.NoDirExists(t, filepath.Join(dir, ".mdl", "runs"))
}

func TestRunValidationErrorsExitOne(t *testing.T) {
	e, dir, _ := newTestEngine(t)
	pattern := writeDefs(t, dir, `
actions:
  - name: a
    versions:
      - language: bash
        script: |
          echo ${args.missing}
`)

	code, err := e.Run(context.Background(), RunOptions{
		DefsPattern: pattern,
		Invocations: []InvocationSpec{{Goal: "a"}},
	})
	require.Error(t, err)
	assert.Equal(t, ExitUserError, code)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestRunActionFailureExitTwoAndRetainsRunDir(t *testing.T) {
	e, dir, _ := newTestEngine(t)
	pattern := writeDefs(t, dir, `
actions:
  - name: bad
    versions:
      - language: bash
        script: |
          exit 7
`)

	code, err := e.Run(context.Background(), RunOptions{
		DefsPattern: pattern,
		WithoutNix:  true,
		SimpleLog:   true,
		Invocations: []InvocationSpec{{Goal: "bad"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ExitActionFail, code)

	entries, err := os.ReadDir(filepath.Join(dir, ".mdl", "runs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "failed runs are retained")
}

func TestRunKeepRunDir(t *testing.T) {
	e, dir, _ := newTestEngine(t)
	pattern := writeDefs(t, dir, chainDefs)

	code, err := e.Run(context.Background(), RunOptions{
		DefsPattern: pattern,
		WithoutNix:  true,
		SimpleLog:   true,
		KeepRunDir:  true,
		Invocations: []InvocationSpec{{Goal: "b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, code)

	entries, err := os.ReadDir(filepath.Join(dir, ".mdl", "runs"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRunContinueProducesIdenticalOutput(t *testing.T) {
	e, dir, out := newTestEngine(t)
	pattern := writeDefs(t, dir, chainDefs)

	opts := RunOptions{
		DefsPattern: pattern,
		WithoutNix:  true,
		SimpleLog:   true,
		KeepRunDir:  true,
		Invocations: []InvocationSpec{{Goal: "b"}},
	}
	code, err := e.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)
	firstJSON := out.Bytes()[bytes.IndexByte(out.Bytes(), '{'):]
	var first map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(firstJSON, &first))

	out.Reset()
	opts.Continue = true
	code, err = e.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)

	assert.Contains(t, out.String(), "restored from previous run")

	secondJSON := out.Bytes()[bytes.IndexByte(out.Bytes(), '{'):]
	var second map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(secondJSON, &second))
	assert.Equal(t, first, second)
}

const variantDefs = `
axes:
  - name: build-mode
    values: [development, release]
    default: development
actions:
  - name: build
    versions:
      - language: bash
        script: |
          ret mode:string=development
        returns:
          - name: mode
            type: string
        conditions:
          - axis: build-mode
            value: development
      - language: bash
        script: |
          ret mode:string=release
        returns:
          - name: mode
            type: string
        conditions:
          - axis: build-mode
            value: release
`

func TestRunAxisVariants(t *testing.T) {
	e, dir, out := newTestEngine(t)
	pattern := writeDefs(t, dir, variantDefs)

	code, err := e.Run(context.Background(), RunOptions{
		DefsPattern: pattern,
		WithoutNix:  true,
		SimpleLog:   true,
		Invocations: []InvocationSpec{
			{Goal: "build"},
			{Goal: "build", Axis: map[string]string{"build-mode": "release"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)

	payload := decodeOutput(t, out.Bytes())
	require.Len(t, payload, 2)
	assert.Equal(t, "development", payload["build[build-mode:development]"]["mode"])
	assert.Equal(t, "release", payload["build[build-mode:release]"]["mode"])
}

func TestRunUnifiedGoalsListedOnce(t *testing.T) {
	e, dir, out := newTestEngine(t)
	pattern := writeDefs(t, dir, variantDefs)

	code, err := e.Run(context.Background(), RunOptions{
		DefsPattern: pattern,
		WithoutNix:  true,
		SimpleLog:   true,
		Invocations: []InvocationSpec{
			{Goal: "build", Axis: map[string]string{"build-mode": "release"}},
			{Goal: "build", Axis: map[string]string{"build-mode": "release"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)

	payload := decodeOutput(t, out.Bytes())
	require.Len(t, payload, 1)
	assert.Equal(t, "release", payload["build"]["mode"])
}

func TestRunWildcardExpansion(t *testing.T) {
	e, dir, out := newTestEngine(t)
	pattern := writeDefs(t, dir, variantDefs)

	code, err := e.Run(context.Background(), RunOptions{
		DefsPattern: pattern,
		WithoutNix:  true,
		SimpleLog:   true,
		Invocations: []InvocationSpec{
			{Goal: "build", Axis: map[string]string{"build-mode": "*"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)

	payload := decodeOutput(t, out.Bytes())
	assert.Len(t, payload, 2, "axis:* yields one invocation per allowed value")
}

func TestRunWildcardNoMatchFails(t *testing.T) {
	e, dir, _ := newTestEngine(t)
	pattern := writeDefs(t, dir, variantDefs)

	code, err := e.Run(context.Background(), RunOptions{
		DefsPattern: pattern,
		Invocations: []InvocationSpec{
			{Goal: "build", Axis: map[string]string{"build-mode": "z*"}},
		},
	})
	require.Error(t, err)
	assert.Equal(t, ExitUserError, code)
	assert.Contains(t, err.Error(), "no matches for build-mode:z*")
}

func TestRunOutFile(t *testing.T) {
	e, dir, _ := newTestEngine(t)
	pattern := writeDefs(t, dir, chainDefs)
	outPath := filepath.Join(dir, "result.json")

	code, err := e.Run(context.Background(), RunOptions{
		DefsPattern: pattern,
		WithoutNix:  true,
		SimpleLog:   true,
		OutPath:     outPath,
		Invocations: []InvocationSpec{{Goal: "b"}},
	})
	require.NoError(t, err)
	require.Equal(t, ExitOK, code)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var payload map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Contains(t, payload, "b")
}

func TestListActions(t *testing.T) {
	e, dir, out := newTestEngine(t)
	pattern := writeDefs(t, dir, chainDefs)

	require.NoError(t, e.ListActions(context.Background(), pattern))
	text := out.String()
	assert.Contains(t, text, "a\n")
	assert.Contains(t, text, "b\n")
	assert.Contains(t, text, "deps: a")
	assert.Contains(t, text, "returns: f:file")
}

func TestAutocompleteSources(t *testing.T) {
	e, dir, out := newTestEngine(t)
	pattern := writeDefs(t, dir, variantDefs)

	require.NoError(t, e.Autocomplete(context.Background(), pattern, CompleteActions, ""))
	assert.Contains(t, out.String(), "build")

	out.Reset()
	require.NoError(t, e.Autocomplete(context.Background(), pattern, CompleteAxisNames, ""))
	assert.Contains(t, out.String(), "build-mode")

	out.Reset()
	require.NoError(t, e.Autocomplete(context.Background(), pattern, CompleteAxisValues, "build-mode"))
	assert.Contains(t, out.String(), "development")
	assert.Contains(t, out.String(), "release")
}

func decodeOutput(t *testing.T, raw []byte) map[string]map[string]interface{} {
	t.Helper()
	start := bytes.IndexByte(raw, '{')
	require.GreaterOrEqual(t, start, 0)
	var payload map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(raw[start:], &payload))
	return payload
}
