package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/mudyla/mdl/internal/docmodel"
	"github.com/mudyla/mdl/internal/domain/action"
	"github.com/mudyla/mdl/internal/expansion"
	"github.com/mudyla/mdl/internal/graph"
	mdlruntime "github.com/mudyla/mdl/internal/runtime"
	"github.com/mudyla/mdl/internal/runstore"
)

// executeNode runs one node's full lifecycle on a worker. All shared-state
// reads go through the scheduler's mutex-guarded accessors; publication of
// results happens back in the scheduler thread.
func (s *Scheduler) executeNode(ctx context.Context, id string) Outcome {
	node := s.plan.Graph.Nodes[id]

	// Step 1: restoration from a previous run (--continue).
	if runstore.Restorable(s.opts.PrevRun, id) {
		return s.restoreNode(ctx, id)
	}

	nodeDir, err := s.run.NodeDir(id)
	if err != nil {
		return s.failOutcome(id, node, time.Now(), -1, err.Error())
	}

	start := time.Now()

	// Steps 2-3: resolve bindings and render the runtime-assisted script.
	bindings := s.bindingsFor(node)
	body, err := expansion.Render(node.Version.Script, node.Version.Expansions, bindings)
	if err != nil {
		return s.failOutcome(id, node, start, -1, err.Error())
	}

	var script string
	if node.Version.Language == action.LanguagePython {
		script, err = mdlruntime.RenderPythonScript(body, nodeDir, mdlruntime.SurfaceFromBindings(bindings))
		if err != nil {
			return s.failOutcome(id, node, start, -1, err.Error())
		}
	} else {
		script = mdlruntime.RenderBashScript(body, nodeDir)
	}

	scriptPath := filepath.Join(nodeDir, mdlruntime.ScriptFileName(node.Version.Language))
	if err := os.WriteFile(scriptPath, []byte(script), 0o755); err != nil {
		return s.failOutcome(id, node, start, -1, "write script: "+err.Error())
	}

	// Step 4: construct and wrap the child command.
	spec := mdlruntime.CommandSpec{
		Argv: mdlruntime.InterpreterArgv(node.Version.Language, scriptPath),
		Dir:  s.opts.ProjectDir,
	}
	spec = s.wrapper(node).Wrap(spec)

	// Step 5: spawn and drain.
	req := mdlruntime.RunRequest{
		Spec:       spec,
		StdoutPath: filepath.Join(nodeDir, "stdout.log"),
		StderrPath: filepath.Join(nodeDir, "stderr.log"),
		Timeout:    s.opts.NodeTimeout,
	}
	if s.opts.EchoFor != nil {
		echo, closeEcho := s.opts.EchoFor(id)
		if echo != nil {
			req.Echo = echo
			defer closeEcho()
		}
	}

	res, runErr := s.opts.Runner.Run(ctx, req)
	end := res.End
	if end.IsZero() {
		end = time.Now()
	}

	if runErr != nil {
		msg := runErr.Error()
		if res.TimedOut {
			msg = "timeout exceeded"
		}
		out := s.failOutcome(id, node, start, res.ExitCode, msg)
		out.Record.EndTime = end
		out.Record.Duration = end.Sub(start)
		s.writeMeta(nodeDir, out.Record)
		return out
	}
	if res.ExitCode != 0 {
		out := s.failOutcome(id, node, start, res.ExitCode, "exit status "+strconv.Itoa(res.ExitCode))
		out.Record.EndTime = end
		out.Record.Duration = end.Sub(start)
		s.writeMeta(nodeDir, out.Record)
		return out
	}

	// Step 6: typed outputs.
	outputs, err := mdlruntime.ParseOutputs(id, filepath.Join(nodeDir, mdlruntime.OutputFile), s.opts.ProjectDir, node.Version.Returns)
	if err != nil {
		out := s.failOutcome(id, node, start, res.ExitCode, err.Error())
		out.Record.EndTime = end
		out.Record.Duration = end.Sub(start)
		s.writeMeta(nodeDir, out.Record)
		return out
	}

	record := action.RunRecord{
		ActionName: node.Key.Action,
		Success:    true,
		StartTime:  start,
		EndTime:    end,
		Duration:   end.Sub(start),
		ExitCode:   0,
	}
	s.writeMeta(nodeDir, record)

	return Outcome{ID: id, Status: StatusSucceeded, Record: record, Outputs: outputs}
}

func (s *Scheduler) restoreNode(ctx context.Context, id string) Outcome {
	node := s.plan.Graph.Nodes[id]

	dst, err := runstore.RestoreNode(s.opts.PrevRun, s.run, id)
	if err != nil {
		return s.failOutcome(id, node, time.Now(), -1, err.Error())
	}

	record, err := runstore.ReadMeta(dst)
	if err != nil {
		return s.failOutcome(id, node, time.Now(), -1, "restored meta unreadable: "+err.Error())
	}
	record.Restored = true

	outputs, err := mdlruntime.ParseOutputs(id, filepath.Join(dst, mdlruntime.OutputFile), s.opts.ProjectDir, node.Version.Returns)
	if err != nil {
		return s.failOutcome(id, node, time.Now(), -1, "restored outputs invalid: "+err.Error())
	}

	if s.logger != nil {
		s.logger.Info(ctx, "restored from previous run", "node_id", id, "prev_run", s.opts.PrevRun.ID)
	}
	return Outcome{ID: id, Status: StatusRestored, Record: record, Outputs: outputs}
}

// bindingsFor assembles the substitution environment for a node at dispatch
// time: strong ancestor outputs, retained weak outputs, env contract values,
// argument defaults under CLI overrides, and the retained signal map.
func (s *Scheduler) bindingsFor(node *graph.Node) expansion.Bindings {
	env := docmodel.PassthroughEnv(s.plan.Graph.Environment, s.envLookup())
	for _, e := range node.Version.Expansions {
		if e.Kind != action.ExpansionEnv {
			continue
		}
		if _, ok := env[e.Target]; ok {
			continue
		}
		if v, ok := s.envLookup()(e.Target); ok {
			env[e.Target] = v
		}
	}
	for _, name := range node.Version.EnvDeps {
		if _, ok := env[name]; ok {
			continue
		}
		if v, ok := s.envLookup()(name); ok {
			env[name] = v
		}
	}

	args := make(map[string]string, len(node.Version.Args))
	for _, def := range node.Version.Args {
		if def.Default != nil {
			args[def.Name] = *def.Default
		}
	}
	for k, v := range node.Args {
		args[k] = v
	}

	flags := make(map[string]bool, len(node.Version.Flags))
	for _, def := range node.Version.Flags {
		flags[def.Name] = def.Default
	}
	for k, v := range node.Flags {
		flags[k] = v
	}

	strong := make(map[string]action.ActionOutputs)
	for depID := range node.Strong {
		dep := s.plan.Graph.Nodes[depID]
		if outputs, ok := s.OutputsOf(depID); ok {
			strong[dep.Key.Action] = outputs
		}
	}

	weak := make(map[string]action.ActionOutputs)
	retained := make(map[string]bool)
	for targetID := range node.Weak {
		target := s.plan.Graph.Nodes[targetID]
		kept := s.plan.WeakKept(node.ID(), targetID)
		produced := false
		if kept {
			if outputs, ok := s.OutputsOf(targetID); ok {
				weak[target.Key.Action] = outputs
				produced = true
			}
		}
		retained[target.Key.Action] = kept && produced
	}
	for _, edge := range node.SoftEdges() {
		target := s.plan.Graph.Nodes[edge.Target]
		produced := false
		if s.plan.IsExecutable(edge.Target) {
			if outputs, ok := s.OutputsOf(edge.Target); ok {
				weak[target.Key.Action] = outputs
				produced = true
			}
		}
		retained[target.Key.Action] = produced
	}

	return expansion.Bindings{
		System:   s.systems,
		Env:      env,
		Args:     args,
		Flags:    flags,
		Strong:   strong,
		Weak:     weak,
		Retained: retained,
	}
}

func (s *Scheduler) wrapper(node *graph.Node) mdlruntime.Wrapper {
	if s.opts.WithoutNix {
		return mdlruntime.DirectWrapper{Environment: s.plan.Graph.Environment}
	}
	def := s.plan.Graph.Actions[node.Key.Action]
	return mdlruntime.HermeticWrapper{
		Environment: s.plan.Graph.Environment,
		RequiredEnv: def.RequiredEnv,
		Lookup:      s.envLookup(),
	}
}

func (s *Scheduler) envLookup() func(string) (string, bool) {
	if s.opts.EnvLookup != nil {
		return s.opts.EnvLookup
	}
	return os.LookupEnv
}

func (s *Scheduler) failOutcome(id string, node *graph.Node, start time.Time, exitCode int, msg string) Outcome {
	record := action.RunRecord{
		ActionName:   node.Key.Action,
		Success:      false,
		StartTime:    start,
		EndTime:      time.Now(),
		ExitCode:     exitCode,
		ErrorMessage: msg,
	}
	record.Duration = record.EndTime.Sub(record.StartTime)
	return Outcome{ID: id, Status: StatusFailed, Record: record}
}

func (s *Scheduler) writeMeta(nodeDir string, record action.RunRecord) {
	if err := runstore.WriteMeta(nodeDir, record); err != nil && s.logger != nil {
		s.logger.Warn(context.Background(), "meta.json write failed", "dir", nodeDir, "error", err)
	}
}
