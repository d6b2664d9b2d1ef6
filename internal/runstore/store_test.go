package runstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mudyla/mdl/internal/domain/action"
)

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	return New(dir, nil), dir
}

func TestNewRunLayout(t *testing.T) {
	s, dir := newStore(t)

	now := time.Date(2026, 8, 2, 15, 4, 5, 123456789, time.UTC)
	run, err := s.NewRun(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, "20260802-150405-123456789", run.ID)
	assert.DirExists(t, filepath.Join(dir, ".mdl", "runs", run.ID))
}

func TestNodeDirIdempotent(t *testing.T) {
	s, _ := newStore(t)
	run, err := s.NewRun(context.Background(), time.Now())
	require.NoError(t, err)

	first, err := run.NodeDir("build@abc123")
	require.NoError(t, err)
	second, err := run.NodeDir("build@abc123")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.DirExists(t, first)
}

func TestMetaRoundTrip(t *testing.T) {
	s, _ := newStore(t)
	run, err := s.NewRun(context.Background(), time.Now())
	require.NoError(t, err)
	nodeDir, err := run.NodeDir("build")
	require.NoError(t, err)

	start := time.Date(2026, 8, 2, 10, 0, 0, 0, time.UTC)
	record := action.RunRecord{
		ActionName: "build",
		Success:    true,
		StartTime:  start,
		EndTime:    start.Add(2500 * time.Millisecond),
		Duration:   2500 * time.Millisecond,
		ExitCode:   0,
	}
	require.NoError(t, WriteMeta(nodeDir, record))

	got, err := ReadMeta(nodeDir)
	require.NoError(t, err)
	assert.Equal(t, "build", got.ActionName)
	assert.True(t, got.Success)
	assert.Equal(t, 2500*time.Millisecond, got.Duration)
	assert.Equal(t, 0, got.ExitCode)
}

func TestMetaFailureMessage(t *testing.T) {
	s, _ := newStore(t)
	run, err := s.NewRun(context.Background(), time.Now())
	require.NoError(t, err)
	nodeDir, err := run.NodeDir("bad")
	require.NoError(t, err)

	require.NoError(t, WriteMeta(nodeDir, action.RunRecord{
		ActionName:   "bad",
		Success:      false,
		ExitCode:     2,
		ErrorMessage: "boom",
	}))

	got, err := ReadMeta(nodeDir)
	require.NoError(t, err)
	assert.False(t, got.Success)
	assert.Equal(t, "boom", got.ErrorMessage)
}

func TestLatestRunLexicographic(t *testing.T) {
	s, _ := newStore(t)

	older, err := s.NewRun(context.Background(), time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	newer, err := s.NewRun(context.Background(), time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	latest, err := s.LatestRun("")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newer.ID, latest.ID)

	// The current run excludes itself when resuming.
	latest, err = s.LatestRun(newer.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, older.ID, latest.ID)
}

func TestLatestRunEmpty(t *testing.T) {
	s, _ := newStore(t)
	latest, err := s.LatestRun("")
	require.NoError(t, err)
	assert.Nil(t, latest)
}

func TestRestorable(t *testing.T) {
	s, _ := newStore(t)
	prev, err := s.NewRun(context.Background(), time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	okDir, err := prev.NodeDir("ok")
	require.NoError(t, err)
	require.NoError(t, WriteMeta(okDir, action.RunRecord{ActionName: "ok", Success: true}))

	badDir, err := prev.NodeDir("bad")
	require.NoError(t, err)
	require.NoError(t, WriteMeta(badDir, action.RunRecord{ActionName: "bad", Success: false}))

	_, err = prev.NodeDir("incomplete")
	require.NoError(t, err)

	assert.True(t, Restorable(prev, "ok"))
	assert.False(t, Restorable(prev, "bad"), "failed nodes are not restored")
	assert.False(t, Restorable(prev, "incomplete"), "missing meta.json means no restore")
	assert.False(t, Restorable(nil, "ok"))
}

func TestRestoreNodeCopies(t *testing.T) {
	s, _ := newStore(t)
	prev, err := s.NewRun(context.Background(), time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	cur, err := s.NewRun(context.Background(), time.Date(2026, 8, 2, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	nodeDir, err := prev.NodeDir("a")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(nodeDir, "output.json"), []byte(`{"x": {"type": "string", "value": "v"}}`), 0o644))
	require.NoError(t, WriteMeta(nodeDir, action.RunRecord{ActionName: "a", Success: true}))

	dst, err := RestoreNode(prev, cur, "a")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dst, "output.json"))
	record, err := ReadMeta(dst)
	require.NoError(t, err)
	assert.True(t, record.Success)
}

func TestRunRemove(t *testing.T) {
	s, _ := newStore(t)
	run, err := s.NewRun(context.Background(), time.Now())
	require.NoError(t, err)
	_, err = run.NodeDir("a")
	require.NoError(t, err)

	require.NoError(t, run.Remove())
	assert.NoDirExists(t, run.Dir)
}

func TestInspectWorktreeOutsideRepository(t *testing.T) {
	state := InspectWorktree(t.TempDir())
	assert.False(t, state.InRepository)
	assert.False(t, state.Dirty)
}
