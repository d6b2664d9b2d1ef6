package docmodel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mudyla/mdl/internal/domain/action"
	"github.com/mudyla/mdl/internal/ports"
	apperrors "github.com/mudyla/mdl/pkg/errors"
)

// Loader discovers normalized definition files via the `--defs=<glob>`
// pattern and merges the fragments into one Document.
type Loader struct {
	logger ports.Logger
}

// NewLoader constructs a Loader.
func NewLoader(logger ports.Logger) *Loader {
	return &Loader{logger: logger}
}

// LoadNormalized discovers every file matching pattern, decodes it as a
// normalized-document fragment, and merges the fragments into a single
// Document. Duplicate action names across fragments fail
// ingestion.
func (l *Loader) LoadNormalized(ctx context.Context, pattern string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewExecutionError("", err)
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, apperrors.NewInfrastructureError("invalid --defs pattern", err)
	}
	sort.Strings(matches)

	if l.logger != nil {
		l.logger.Debug(ctx, "discovered definition files", "pattern", pattern, "count", len(matches))
	}

	merged := &Document{}
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.NewInfrastructureError(fmt.Sprintf("read %s", path), err)
		}

		frag, err := Decode(data)
		if err != nil {
			return nil, apperrors.NewParseError(path, 0, err)
		}

		merged.Axes = append(merged.Axes, frag.Axes...)
		merged.Actions = append(merged.Actions, frag.Actions...)
		mergeEnvironment(&merged.Environment, frag.Environment)
	}

	if err := ValidateDocument(merged); err != nil {
		if l.logger != nil {
			l.logger.Error(ctx, "normalized document failed validation", "error", err)
		}
		return nil, err
	}

	if l.logger != nil {
		l.logger.Info(ctx, "definitions loaded", "actions", len(merged.Actions), "axes", len(merged.Axes))
	}
	return merged, nil
}

func mergeEnvironment(dst *Environment, src Environment) {
	if len(src.Vars) > 0 {
		if dst.Vars == nil {
			dst.Vars = make(map[string]string, len(src.Vars))
		}
		for k, v := range src.Vars {
			dst.Vars[k] = v
		}
	}
	dst.Passthrough = append(dst.Passthrough, src.Passthrough...)
}

// PassthroughEnv resolves the document's environment contract against
// the process environment: vars are always exported with their declared
// value; passthrough vars are forwarded only when set in the parent
// process.
func PassthroughEnv(env Environment, processEnv func(string) (string, bool)) map[string]string {
	out := make(map[string]string, len(env.Vars)+len(env.Passthrough))
	for k, v := range env.Vars {
		out[k] = v
	}
	for _, name := range env.Passthrough {
		if v, ok := processEnv(name); ok {
			out[name] = v
		}
	}
	return out
}

// compile-time assurance the normalized document composes into the domain
// model without surprises.
var _ = action.ActionDefinition{}
