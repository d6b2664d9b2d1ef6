package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudyla/mdl/internal/domain/action"
)

func writeOutput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, OutputFile)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseOutputsTypedRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeOutput(t, dir, `{
		"count": {"type": "int", "value": 7},
		"ok": {"type": "bool", "value": true},
		"msg": {"type": "string", "value": "hello"}
	}`)

	returns := []action.ReturnDeclaration{
		{Name: "count", Type: action.TypeInt},
		{Name: "ok", Type: action.TypeBool},
		{Name: "msg", Type: action.TypeString},
	}

	outputs, err := ParseOutputs("n", path, dir, returns)
	require.NoError(t, err)
	assert.Equal(t, 7, outputs["count"].Value)
	assert.Equal(t, true, outputs["ok"].Value)
	assert.Equal(t, "hello", outputs["msg"].Value)
}

func TestParseOutputsMissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := ParseOutputs("n", filepath.Join(dir, OutputFile), dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing output.json")
}

func TestParseOutputsMissingDeclaredReturn(t *testing.T) {
	dir := t.TempDir()
	path := writeOutput(t, dir, `{}`)

	_, err := ParseOutputs("n", path, dir, []action.ReturnDeclaration{{Name: "x", Type: action.TypeString}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"x"`)
}

func TestParseOutputsTypeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writeOutput(t, dir, `{"count": {"type": "int", "value": "seven"}}`)

	_, err := ParseOutputs("n", path, dir, []action.ReturnDeclaration{{Name: "count", Type: action.TypeInt}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected int")
}

func TestParseOutputsNonIntegralNumber(t *testing.T) {
	dir := t.TempDir()
	path := writeOutput(t, dir, `{"count": {"type": "int", "value": 1.5}}`)

	_, err := ParseOutputs("n", path, dir, []action.ReturnDeclaration{{Name: "count", Type: action.TypeInt}})
	require.Error(t, err)
}

func TestParseOutputsFileExistence(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "artifact.txt"), []byte("x"), 0o644))
	path := writeOutput(t, dir, `{"f": {"type": "file", "value": "artifact.txt"}}`)

	outputs, err := ParseOutputs("n", path, dir, []action.ReturnDeclaration{{Name: "f", Type: action.TypeFile}})
	require.NoError(t, err)
	assert.Equal(t, "artifact.txt", outputs["f"].Value)
}

func TestParseOutputsFileMissingFails(t *testing.T) {
	dir := t.TempDir()
	path := writeOutput(t, dir, `{"f": {"type": "file", "value": "nope.txt"}}`)

	_, err := ParseOutputs("n", path, dir, []action.ReturnDeclaration{{Name: "f", Type: action.TypeFile}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestParseOutputsDirectoryChecks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "out"), 0o755))
	path := writeOutput(t, dir, `{"d": {"type": "directory", "value": "out"}}`)

	_, err := ParseOutputs("n", path, dir, []action.ReturnDeclaration{{Name: "d", Type: action.TypeDirectory}})
	require.NoError(t, err)

	// A file is not a directory.
	path = writeOutput(t, dir, `{"d": {"type": "directory", "value": "output.json"}}`)
	_, err = ParseOutputs("n", path, dir, []action.ReturnDeclaration{{Name: "d", Type: action.TypeDirectory}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestParseOutputsAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "abs.txt")
	require.NoError(t, os.WriteFile(abs, []byte("x"), 0o644))
	path := writeOutput(t, dir, `{"f": {"type": "file", "value": "`+abs+`"}}`)

	_, err := ParseOutputs("n", path, "/elsewhere", []action.ReturnDeclaration{{Name: "f", Type: action.TypeFile}})
	require.NoError(t, err)
}
