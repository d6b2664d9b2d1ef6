package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mudyla/mdl/internal/domain/action"
	apperrors "github.com/mudyla/mdl/pkg/errors"
)

// rawOutput is one output.json entry as the runtime writes it.
type rawOutput struct {
	Type  string      `json:"type"`
	Value interface{} `json:"value"`
}

// ParseOutputs reads and validates a node's output.json against the
// version's return declarations: every declared return must be present, its
// value must coerce to the declared type, and file/directory returns must
// reference existing paths resolved against workDir.
func ParseOutputs(nodeID, path, workDir string, returns []action.ReturnDeclaration) (action.ActionOutputs, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewExecutionError(nodeID, fmt.Errorf("missing output.json: %w", err))
	}

	var raw map[string]rawOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.NewExecutionError(nodeID, fmt.Errorf("invalid output.json: %w", err))
	}

	outputs := make(action.ActionOutputs, len(returns))
	for _, decl := range returns {
		entry, ok := raw[decl.Name]
		if !ok {
			return nil, apperrors.NewExecutionError(nodeID, fmt.Errorf("declared return %q missing from output.json", decl.Name))
		}

		value, err := coerce(decl, entry)
		if err != nil {
			return nil, apperrors.NewExecutionError(nodeID, err)
		}

		if decl.Type == action.TypeFile || decl.Type == action.TypeDirectory {
			if err := checkPath(decl, value.(string), workDir); err != nil {
				return nil, apperrors.NewExecutionError(nodeID, err)
			}
		}

		outputs[decl.Name] = action.TypedValue{Type: decl.Type, Value: value}
	}

	return outputs, nil
}

func coerce(decl action.ReturnDeclaration, entry rawOutput) (interface{}, error) {
	switch decl.Type {
	case action.TypeInt:
		switch v := entry.Value.(type) {
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("return %q: expected int, got %v", decl.Name, v)
			}
			return int(v), nil
		default:
			return nil, fmt.Errorf("return %q: expected int, got %T", decl.Name, entry.Value)
		}
	case action.TypeBool:
		if v, ok := entry.Value.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("return %q: expected bool, got %T", decl.Name, entry.Value)
	case action.TypeString, action.TypeFile, action.TypeDirectory:
		if v, ok := entry.Value.(string); ok {
			return v, nil
		}
		return nil, fmt.Errorf("return %q: expected string, got %T", decl.Name, entry.Value)
	default:
		return nil, fmt.Errorf("return %q: unknown type %q", decl.Name, decl.Type)
	}
}

func checkPath(decl action.ReturnDeclaration, value, workDir string) error {
	path := value
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("return %q: %s %q does not exist", decl.Name, decl.Type, value)
	}
	if decl.Type == action.TypeDirectory && !info.IsDir() {
		return fmt.Errorf("return %q: %q is not a directory", decl.Name, value)
	}
	if decl.Type == action.TypeFile && info.IsDir() {
		return fmt.Errorf("return %q: %q is not a file", decl.Name, value)
	}
	return nil
}
