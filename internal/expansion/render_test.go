package expansion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudyla/mdl/internal/docmodel"
	"github.com/mudyla/mdl/internal/domain/action"
)

func render(t *testing.T, script string, b Bindings) string {
	t.Helper()
	got, err := Render(script, docmodel.ScanExpansions(script), b)
	require.NoError(t, err)
	return got
}

func TestRenderArgsAndFlags(t *testing.T) {
	b := Bindings{
		Args:  map[string]string{"jobs": "4"},
		Flags: map[string]bool{"enable": true, "quiet": false},
	}

	got := render(t, `make -j${args.jobs} ENABLE=${flags.enable} QUIET=${flags.quiet}`, b)
	assert.Equal(t, "make -j4 ENABLE=true QUIET=false", got)
}

func TestRenderEnvAndSystem(t *testing.T) {
	b := Bindings{
		Env:    map[string]string{"HOME": "/home/u"},
		System: map[string]string{"platform": "linux"},
	}

	got := render(t, `echo ${env.HOME} on ${system.platform}`, b)
	assert.Equal(t, "echo /home/u on linux", got)
}

func TestRenderStrongActionOutput(t *testing.T) {
	b := Bindings{
		Strong: map[string]action.ActionOutputs{
			"compile": {
				"out":   {Type: action.TypeDirectory, Value: "build/out"},
				"count": {Type: action.TypeInt, Value: 7},
				"ok":    {Type: action.TypeBool, Value: true},
			},
		},
	}

	got := render(t, `cp ${action.strong.compile.out} dest; n=${action.strong.compile.count}; ok=${action.strong.compile.ok}`, b)
	assert.Equal(t, "cp build/out dest; n=7; ok=true", got)
}

func TestRenderStrongMissingFails(t *testing.T) {
	script := `echo ${action.strong.compile.out}`
	_, err := Render(script, docmodel.ScanExpansions(script), Bindings{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile")
}

func TestRenderWeakMissingIsEmpty(t *testing.T) {
	got := render(t, `v="${action.weak.provider.value}"`, Bindings{})
	assert.Equal(t, `v=""`, got)
}

func TestRenderWeakPresent(t *testing.T) {
	b := Bindings{
		Weak: map[string]action.ActionOutputs{
			"provider": {"value": {Type: action.TypeString, Value: "hit"}},
		},
	}
	got := render(t, `v="${action.weak.provider.value}"`, b)
	assert.Equal(t, `v="hit"`, got)
}

func TestRenderRetained(t *testing.T) {
	b := Bindings{Retained: map[string]bool{"provider": true}}

	got := render(t, `w=${retained.weak.provider} s=${retained.soft.other}`, b)
	assert.Equal(t, "w=1 s=0", got)
}

func TestRenderMissingArgFails(t *testing.T) {
	script := `echo ${args.missing}`
	_, err := Render(script, docmodel.ScanExpansions(script), Bindings{})
	require.Error(t, err)
}

func TestFormatValueFloatFromJSON(t *testing.T) {
	// JSON round-trips ints as float64; the renderer must not print "7.0".
	assert.Equal(t, "7", FormatValue(action.TypedValue{Type: action.TypeInt, Value: float64(7)}))
}
