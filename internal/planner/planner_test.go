package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudyla/mdl/internal/docmodel"
	"github.com/mudyla/mdl/internal/domain/action"
	"github.com/mudyla/mdl/internal/graph"
)

func bashVersion(script string) action.ActionVersion {
	decl := docmodel.ScanDeclarations(script)
	return action.ActionVersion{
		Script:     script,
		Language:   action.LanguageBash,
		Expansions: docmodel.ScanExpansions(script),
		StrongDeps: decl.Strong,
		WeakDeps:   decl.Weak,
		SoftDeps:   decl.Soft,
		EnvDeps:    decl.Env,
	}
}

func simpleAction(name, script string) action.ActionDefinition {
	return action.ActionDefinition{Name: name, Versions: []action.ActionVersion{bashVersion(script)}}
}

func plan(t *testing.T, actions []action.ActionDefinition, goals ...string) *Plan {
	t.Helper()
	invs := make([]action.Invocation, 0, len(goals))
	for _, g := range goals {
		invs = append(invs, action.Invocation{Goal: g})
	}
	g, batch := graph.Build(graph.BuildInput{Actions: actions, Platform: "linux", Invocations: invs})
	require.Empty(t, batch.Findings)

	p, err := New(g)
	require.NoError(t, err)
	return p
}

func TestPlanTopologicalOrder(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("a", "echo a"),
		simpleAction("b", "dep action.a\necho b"),
		simpleAction("c", "dep action.b\necho c"),
	}

	p := plan(t, actions, "c")
	assert.Equal(t, []string{"a", "b", "c"}, p.Order)
}

func TestPlanTieBreakLexicographic(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("zeta", "echo z"),
		simpleAction("alpha", "echo a"),
		simpleAction("goal", "dep action.zeta\ndep action.alpha\necho g"),
	}

	p := plan(t, actions, "goal")
	assert.Equal(t, []string{"alpha", "zeta", "goal"}, p.Order)
}

func TestPlanWeakPruned(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("provider", "echo p"),
		simpleAction("consumer", "weak action.provider\necho c"),
	}

	p := plan(t, actions, "consumer")

	assert.False(t, p.IsExecutable("provider"), "weak target not strong-reachable is pruned")
	assert.False(t, p.WeakKept("consumer", "provider"))
	assert.Equal(t, []string{"consumer"}, p.Order)
}

func TestPlanWeakRetained(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("provider", "echo p"),
		simpleAction("consumer", "weak action.provider\necho c"),
		simpleAction("user", "dep action.provider\necho u"),
	}

	p := plan(t, actions, "consumer", "user")

	assert.True(t, p.IsExecutable("provider"))
	assert.True(t, p.WeakKept("consumer", "provider"))
	assert.Contains(t, p.WaitTargets("consumer"), "provider", "retained weak target is waited on")
}

func TestPlanSoftTargetNotInitiallyExecutable(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("feature", "echo f"),
		simpleAction("decider", "retain"),
		simpleAction("x", "soft action.feature retain.action.decider\necho x"),
	}

	p := plan(t, actions, "x")

	assert.True(t, p.IsExecutable("decider"), "retainer is a strong requirement")
	assert.False(t, p.IsExecutable("feature"), "soft target awaits promotion")
	assert.NotContains(t, p.WaitTargets("x"), "feature")
}

func TestPlanPromoteSoftTarget(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("base", "echo b"),
		simpleAction("feature", "dep action.base\necho f"),
		simpleAction("decider", "retain"),
		simpleAction("x", "soft action.feature retain.action.decider\necho x"),
	}

	p := plan(t, actions, "x")
	require.False(t, p.IsExecutable("feature"))

	added := p.Promote("feature")

	assert.Equal(t, []string{"base", "feature"}, added, "closure promoted dependencies-first")
	assert.True(t, p.IsExecutable("feature"))
	assert.True(t, p.IsExecutable("base"))
	assert.Contains(t, p.WaitTargets("x"), "feature", "promoted soft target is now waited on")
}

func TestPlanPromoteIdempotent(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("feature", "echo f"),
		simpleAction("decider", "retain"),
		simpleAction("x", "soft action.feature retain.action.decider\necho x"),
	}

	p := plan(t, actions, "x")
	first := p.Promote("feature")
	second := p.Promote("feature")

	assert.Len(t, first, 1)
	assert.Empty(t, second)
}

func TestPlanSoftTargetIndependentlyReachable(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("feature", "echo f"),
		simpleAction("decider", "retain"),
		simpleAction("x", "soft action.feature retain.action.decider\necho x"),
		simpleAction("y", "dep action.feature\necho y"),
	}

	p := plan(t, actions, "x", "y")

	assert.True(t, p.IsExecutable("feature"), "independently strong-reachable soft target is planned")
	assert.Contains(t, p.WaitTargets("x"), "feature")
}

func TestPlanSharedNodeSingleExecution(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("shared", "echo s"),
		simpleAction("a", "dep action.shared\necho a"),
		simpleAction("b", "dep action.shared\necho b"),
	}

	p := plan(t, actions, "a", "b")

	count := 0
	for _, id := range p.Order {
		if id == "shared" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPlanRenderAnnotatesSharedNodes(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("shared", "echo s"),
		simpleAction("a", "dep action.shared\necho a"),
		simpleAction("b", "dep action.shared\necho b"),
	}

	p := plan(t, actions, "a", "b")
	rendered := p.Render()

	assert.Contains(t, rendered, "Execution plan (3 nodes):")
	assert.Contains(t, rendered, "(⏬2 global)")
}

func TestPlanLessOrdersByPlanPosition(t *testing.T) {
	actions := []action.ActionDefinition{
		simpleAction("a", "echo a"),
		simpleAction("b", "dep action.a\necho b"),
	}

	p := plan(t, actions, "b")
	assert.True(t, p.Less("a", "b"))
	assert.False(t, p.Less("b", "a"))
}
