package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudyla/mdl/internal/docmodel"
	"github.com/mudyla/mdl/internal/domain/action"
)

func strptr(s string) *string { return &s }

func bashVersion(script string, mutate ...func(*action.ActionVersion)) action.ActionVersion {
	v := action.ActionVersion{
		Script:     script,
		Language:   action.LanguageBash,
		Expansions: docmodel.ScanExpansions(script),
	}
	decl := docmodel.ScanDeclarations(script)
	v.StrongDeps = decl.Strong
	v.WeakDeps = decl.Weak
	v.SoftDeps = decl.Soft
	v.EnvDeps = decl.Env
	for _, m := range mutate {
		m(&v)
	}
	return v
}

func withCondition(axis, value string) func(*action.ActionVersion) {
	return func(v *action.ActionVersion) {
		v.Conditions = append(v.Conditions, action.Condition{Kind: action.ConditionAxis, AxisName: axis, AxisValue: value})
	}
}

func withReturn(name string, typ action.ArgumentType) func(*action.ActionVersion) {
	return func(v *action.ActionVersion) {
		v.Returns = append(v.Returns, action.ReturnDeclaration{Name: name, Type: typ, ValueExpr: "x"})
	}
}

func buildGraph(t *testing.T, actions []action.ActionDefinition, axes []action.AxisDefinition, invs ...action.Invocation) (*Graph, *ValidationBatch) {
	t.Helper()
	return Build(BuildInput{
		Actions:     actions,
		Axes:        axes,
		Platform:    "linux",
		Invocations: invs,
	})
}

func TestBuildSimpleChain(t *testing.T) {
	actions := []action.ActionDefinition{
		{Name: "a", Versions: []action.ActionVersion{bashVersion(`echo hi`, withReturn("d", action.TypeDirectory))}},
		{Name: "b", Versions: []action.ActionVersion{bashVersion(`cp ${action.strong.a.d} out`)}},
	}

	g, batch := buildGraph(t, actions, nil, action.Invocation{Goal: "b"})
	require.Empty(t, batch.Findings)

	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Goals, 1)

	b := g.Nodes[g.Goals[0]]
	require.NotNil(t, b)
	assert.Equal(t, "b", b.Key.Action)
	assert.Equal(t, []string{"a"}, b.StrongTargets())
}

func TestBuildScriptDeclarations(t *testing.T) {
	actions := []action.ActionDefinition{
		{Name: "p", Versions: []action.ActionVersion{bashVersion(`echo p`)}},
		{Name: "r", Versions: []action.ActionVersion{bashVersion(`echo r`)}},
		{Name: "f", Versions: []action.ActionVersion{bashVersion(`echo f`)}},
		{Name: "c", Versions: []action.ActionVersion{bashVersion("dep action.p\nweak action.p\nsoft action.f retain.action.r\necho c")}},
	}

	g, batch := buildGraph(t, actions, nil, action.Invocation{Goal: "c"})
	require.Empty(t, batch.Findings)

	c := g.Nodes["c"]
	require.NotNil(t, c)
	assert.Contains(t, c.Strong, "p")
	assert.Contains(t, c.Strong, "r", "retainer is a strong prerequisite of the soft edge's source")
	assert.Contains(t, c.Weak, "p")
	require.Len(t, c.SoftEdges(), 1)
	assert.Equal(t, SoftEdge{Target: "f", Retainer: "r"}, c.SoftEdges()[0])
	assert.NotContains(t, g.Nodes["f"].Strong, "r", "retainer never gates the target itself")
}

func TestBuildAxisVariantsDistinctNodes(t *testing.T) {
	axes := []action.AxisDefinition{
		{Name: "build-mode", Values: []string{"development", "release"}, Default: strptr("development")},
	}
	actions := []action.ActionDefinition{
		{Name: "build", Versions: []action.ActionVersion{
			bashVersion(`echo dev`, withCondition("build-mode", "development")),
			bashVersion(`echo rel`, withCondition("build-mode", "release")),
		}},
	}

	g, batch := buildGraph(t, actions, axes,
		action.Invocation{Goal: "build", AxisBindings: action.Context{"build-mode": "development"}},
		action.Invocation{Goal: "build", AxisBindings: action.Context{"build-mode": "release"}},
	)
	require.Empty(t, batch.Findings)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Goals, 2)
}

func TestBuildUnifiesIdenticalInvocations(t *testing.T) {
	axes := []action.AxisDefinition{
		{Name: "build-mode", Values: []string{"development", "release"}, Default: strptr("development")},
	}
	actions := []action.ActionDefinition{
		{Name: "build", Versions: []action.ActionVersion{
			bashVersion(`echo dev`, withCondition("build-mode", "development")),
			bashVersion(`echo rel`, withCondition("build-mode", "release")),
		}},
	}

	g, batch := buildGraph(t, actions, axes,
		action.Invocation{Goal: "build", AxisBindings: action.Context{"build-mode": "release"}},
		action.Invocation{Goal: "build", AxisBindings: action.Context{"build-mode": "release"}},
	)
	require.Empty(t, batch.Findings)
	assert.Len(t, g.Nodes, 1)
	assert.Len(t, g.Goals, 1, "identical goal invocations unify onto one node")
}

func TestBuildReductionSharesDependency(t *testing.T) {
	axes := []action.AxisDefinition{
		{Name: "build-mode", Values: []string{"development", "release"}, Default: strptr("development")},
	}
	actions := []action.ActionDefinition{
		{Name: "common", Versions: []action.ActionVersion{bashVersion(`echo common`)}},
		{Name: "build", Versions: []action.ActionVersion{
			bashVersion("dep action.common\necho dev", withCondition("build-mode", "development")),
			bashVersion("dep action.common\necho rel", withCondition("build-mode", "release")),
		}},
	}

	g, batch := buildGraph(t, actions, axes,
		action.Invocation{Goal: "build", AxisBindings: action.Context{"build-mode": "development"}},
		action.Invocation{Goal: "build", AxisBindings: action.Context{"build-mode": "release"}},
	)
	require.Empty(t, batch.Findings)

	require.Len(t, g.Nodes, 3, "common reduces to the global context and is shared")
	common := g.Nodes["common"]
	require.NotNil(t, common)
	assert.Equal(t, "global", common.Key.Context.Hash())
}

func TestBuildNoMatchingVersionFinding(t *testing.T) {
	axes := []action.AxisDefinition{
		{Name: "build-mode", Values: []string{"development", "release"}},
	}
	actions := []action.ActionDefinition{
		{Name: "only-release", Versions: []action.ActionVersion{
			bashVersion(`echo rel`, withCondition("build-mode", "release")),
		}},
	}

	_, batch := buildGraph(t, actions, axes,
		action.Invocation{Goal: "only-release", AxisBindings: action.Context{"build-mode": "development"}})
	require.Len(t, batch.Findings, 1)
	assert.Equal(t, FindingNoVersion, batch.Findings[0].Kind)
}

func TestBuildMissingRequiredAxisFinding(t *testing.T) {
	axes := []action.AxisDefinition{
		{Name: "build-mode", Values: []string{"development", "release"}},
	}
	actions := []action.ActionDefinition{
		{Name: "build", Versions: []action.ActionVersion{
			bashVersion(`echo dev`, withCondition("build-mode", "development")),
			bashVersion(`echo rel`, withCondition("build-mode", "release")),
		}},
	}

	_, batch := buildGraph(t, actions, axes, action.Invocation{Goal: "build"})
	require.Len(t, batch.Findings, 1)
	assert.Equal(t, FindingMissingAxis, batch.Findings[0].Kind)
}

func TestBuildAmbiguousVersionFinding(t *testing.T) {
	axes := []action.AxisDefinition{
		{Name: "build-mode", Values: []string{"release"}, Default: strptr("release")},
		{Name: "target", Values: []string{"linux"}, Default: strptr("linux")},
	}
	actions := []action.ActionDefinition{
		{Name: "build", Versions: []action.ActionVersion{
			bashVersion(`echo a`, withCondition("build-mode", "release")),
			bashVersion(`echo b`, withCondition("target", "linux")),
		}},
	}

	_, batch := buildGraph(t, actions, axes,
		action.Invocation{Goal: "build", AxisBindings: action.Context{"build-mode": "release", "target": "linux"}})
	require.Len(t, batch.Findings, 1)
	assert.Equal(t, FindingAmbiguous, batch.Findings[0].Kind)
}

func TestBuildUnknownActionFinding(t *testing.T) {
	_, batch := buildGraph(t, nil, nil, action.Invocation{Goal: "ghost"})
	require.Len(t, batch.Findings, 1)
	assert.Contains(t, batch.Findings[0].Message, "ghost")
}

func TestBuildMaximalConditionCountWins(t *testing.T) {
	axes := []action.AxisDefinition{
		{Name: "build-mode", Values: []string{"development", "release"}, Default: strptr("release")},
		{Name: "target", Values: []string{"linux", "darwin"}, Default: strptr("linux")},
	}
	actions := []action.ActionDefinition{
		{Name: "build", Versions: []action.ActionVersion{
			bashVersion(`echo generic`),
			bashVersion(`echo specific`, withCondition("build-mode", "release"), withCondition("target", "linux")),
		}},
	}

	// Build expects bindings already layered over the axis defaults.
	g, batch := buildGraph(t, actions, axes,
		action.Invocation{Goal: "build", AxisBindings: action.Context{"build-mode": "release", "target": "linux"}})
	require.Empty(t, batch.Findings)

	node := g.Nodes[g.Goals[0]]
	assert.Contains(t, node.Version.Script, "specific")
}
