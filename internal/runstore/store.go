// Package runstore owns the on-disk layout of runs: one directory per run
// under .mdl/runs, one directory per node inside it, with the node's
// rendered script, stream logs, typed outputs and meta record.
package runstore

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/mudyla/mdl/internal/domain/action"
	"github.com/mudyla/mdl/internal/ports"
	apperrors "github.com/mudyla/mdl/pkg/errors"
)

// MetaFile is the per-node execution record file name.
const MetaFile = "meta.json"

// Store manages run directories under a project root.
type Store struct {
	root   string
	logger ports.Logger
}

// New constructs a Store rooted at <projectDir>/.mdl/runs.
func New(projectDir string, logger ports.Logger) *Store {
	return &Store{
		root:   filepath.Join(projectDir, ".mdl", "runs"),
		logger: logger,
	}
}

// Root returns the runs directory.
func (s *Store) Root() string {
	return s.root
}

// Run is one run directory in the store.
type Run struct {
	ID  string
	Dir string
}

// NewRun creates a fresh run directory named <YYYYMMDD-HHMMSS>-<nanotail>.
// The timestamp prefix keeps directory names monotonic so "latest" is the
// lexicographic maximum.
func (s *Store) NewRun(ctx context.Context, now time.Time) (*Run, error) {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return nil, apperrors.NewInfrastructureError("create run store", err)
	}

	id := fmt.Sprintf("%s-%09d", now.Format("20060102-150405"), now.Nanosecond())
	dir := filepath.Join(s.root, id)
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, apperrors.NewInfrastructureError("create run directory", err)
	}

	if s.logger != nil {
		s.logger.Debug(ctx, "run directory created", "run_id", id, "dir", dir)
	}
	return &Run{ID: id, Dir: dir}, nil
}

// LatestRun returns the most recent run other than exceptID, or nil when
// none exists.
func (s *Store) LatestRun(exceptID string) (*Run, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewInfrastructureError("read run store", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != exceptID {
			ids = append(ids, e.Name())
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Strings(ids)
	id := ids[len(ids)-1]
	return &Run{ID: id, Dir: filepath.Join(s.root, id)}, nil
}

// NodeDir creates (if needed) and returns the directory for one node.
func (r *Run) NodeDir(nodeID string) (string, error) {
	dir := filepath.Join(r.Dir, nodeID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.NewInfrastructureError("create node directory", err)
	}
	return dir, nil
}

// Remove deletes the whole run directory. Called on success unless
// keep-run-dir is set; failed runs are always retained.
func (r *Run) Remove() error {
	return os.RemoveAll(r.Dir)
}

// meta is the wire form of meta.json.
type meta struct {
	ActionName      string  `json:"action_name"`
	Success         bool    `json:"success"`
	StartTime       string  `json:"start_time"`
	EndTime         string  `json:"end_time"`
	DurationSeconds float64 `json:"duration_seconds"`
	ExitCode        int     `json:"exit_code"`
	ErrorMessage    string  `json:"error_message,omitempty"`
}

// WriteMeta persists a node's execution record into its directory.
func WriteMeta(nodeDir string, record action.RunRecord) error {
	m := meta{
		ActionName:      record.ActionName,
		Success:         record.Success,
		StartTime:       record.StartTime.Format(time.RFC3339Nano),
		EndTime:         record.EndTime.Format(time.RFC3339Nano),
		DurationSeconds: record.Duration.Seconds(),
		ExitCode:        record.ExitCode,
		ErrorMessage:    record.ErrorMessage,
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return apperrors.NewInfrastructureError("encode meta.json", err)
	}
	if err := os.WriteFile(filepath.Join(nodeDir, MetaFile), data, 0o644); err != nil {
		return apperrors.NewInfrastructureError("write meta.json", err)
	}
	return nil
}

// ReadMeta loads a node's execution record; os.IsNotExist errors mean the
// node never completed in that run.
func ReadMeta(nodeDir string) (action.RunRecord, error) {
	var record action.RunRecord

	data, err := os.ReadFile(filepath.Join(nodeDir, MetaFile))
	if err != nil {
		return record, err
	}
	var m meta
	if err := json.Unmarshal(data, &m); err != nil {
		return record, apperrors.NewInfrastructureError("decode meta.json", err)
	}

	start, _ := time.Parse(time.RFC3339Nano, m.StartTime)
	end, _ := time.Parse(time.RFC3339Nano, m.EndTime)
	record = action.RunRecord{
		ActionName:   m.ActionName,
		Success:      m.Success,
		StartTime:    start,
		EndTime:      end,
		Duration:     time.Duration(m.DurationSeconds * float64(time.Second)),
		ExitCode:     m.ExitCode,
		ErrorMessage: m.ErrorMessage,
	}
	return record, nil
}

// Restorable reports whether the previous run completed this node
// successfully, making it eligible for --continue restoration.
func Restorable(prevRun *Run, nodeID string) bool {
	if prevRun == nil {
		return false
	}
	record, err := ReadMeta(filepath.Join(prevRun.Dir, nodeID))
	return err == nil && record.Success
}

// RestoreNode copies the node's directory from a previous run into the
// current one. Outputs are republished verbatim by the caller.
func RestoreNode(prevRun, curRun *Run, nodeID string) (string, error) {
	src := filepath.Join(prevRun.Dir, nodeID)
	dst := filepath.Join(curRun.Dir, nodeID)
	if err := copyTree(src, dst); err != nil {
		return "", apperrors.NewInfrastructureError(fmt.Sprintf("restore node %s", nodeID), err)
	}
	return dst, nil
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode().Perm())
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
