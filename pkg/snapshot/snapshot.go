// Package snapshot implements the history engine: capturing tracked
// files into the content store, diffing current state against baselines,
// and rolling files back through the backup-guarded writer. File paths
// are stored tilde-contracted so history stays portable across hosts.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/dotkeep/pkg/diff"
	"github.com/arthur-debert/dotkeep/pkg/errors"
	"github.com/arthur-debert/dotkeep/pkg/logging"
	"github.com/arthur-debert/dotkeep/pkg/manifest"
	"github.com/arthur-debert/dotkeep/pkg/paths"
	"github.com/arthur-debert/dotkeep/pkg/store"
	"github.com/arthur-debert/dotkeep/pkg/writer"
)

// DefaultHistoryLimit applies when a caller asks for history without a
// limit.
const DefaultHistoryLimit = 20

// FileStatus is the per-file outcome of a snapshot batch.
type FileStatus int

const (
	// StatusSnapshotted: a new snapshot entry was recorded
	StatusSnapshotted FileStatus = iota
	// StatusUnchanged: the triple already existed, nothing recorded
	StatusUnchanged
	// StatusMissing: the configured path does not exist on disk
	StatusMissing
	// StatusFailed: reading or recording the file failed
	StatusFailed
)

func (s FileStatus) String() string {
	switch s {
	case StatusSnapshotted:
		return "snapshotted"
	case StatusUnchanged:
		return "unchanged"
	case StatusMissing:
		return "missing"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FileResult reports one file in a snapshot batch.
type FileResult struct {
	// FilePath is tilde-contracted, as stored
	FilePath string
	Status   FileStatus
	// SnapshotID is set when Status is Snapshotted or Unchanged
	SnapshotID int64
	Err        error
}

// ToolResult aggregates a snapshot batch for one tool.
type ToolResult struct {
	Tool  string
	Files []FileResult
}

// Summary renders the batch as "N snapshotted, M unchanged" with missing
// and failed counts appended only when present.
func (r ToolResult) Summary() string {
	var snapped, unchanged, missing, failed int
	for _, f := range r.Files {
		switch f.Status {
		case StatusSnapshotted:
			snapped++
		case StatusUnchanged:
			unchanged++
		case StatusMissing:
			missing++
		case StatusFailed:
			failed++
		}
	}
	s := fmt.Sprintf("%d snapshotted, %d unchanged", snapped, unchanged)
	if missing > 0 {
		s += fmt.Sprintf(", %d missing", missing)
	}
	if failed > 0 {
		s += fmt.Sprintf(", %d failed", failed)
	}
	return s
}

// RollbackPlan describes what a rollback would write.
type RollbackPlan struct {
	// FilePath is the live path being restored, tilde-contracted
	FilePath string
	// OldHash is the digest of the current content, empty when the file
	// is missing
	OldHash string
	// NewHash is the digest being restored
	NewHash string
	// Outcome is the writer's classification and action for the target
	Outcome writer.Outcome
}

// Engine captures and restores file states against a store, writing
// through the backup-guarded writer.
type Engine struct {
	store  *store.Store
	writer *writer.Writer
	logger zerolog.Logger
}

// New creates a snapshot engine.
func New(s *store.Store, w *writer.Writer) *Engine {
	return &Engine{
		store:  s,
		writer: w,
		logger: logging.GetLogger("snapshot"),
	}
}

// SnapshotFile captures one file. filePath may be tilde-contracted or
// absolute; it is stored tilde-contracted. Capturing identical content
// twice returns the existing entry with created=false, not an error.
func (e *Engine) SnapshotFile(tool, filePath, message string) (int64, bool, error) {
	absPath := paths.ExpandTilde(filePath)
	if err := paths.CheckPathSafety(absPath); err != nil {
		return 0, false, err
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return 0, false, errors.Wrapf(err, errors.ErrIoFailure, "failed to read %s", filePath)
	}

	stored := paths.ContractTilde(absPath)
	id, created, err := e.store.RecordSnapshot(tool, stored, content, message)
	if err != nil {
		return 0, false, err
	}

	e.logger.Debug().
		Str("tool", tool).
		Str("path", stored).
		Int64("id", id).
		Bool("created", created).
		Msg("file snapshotted")
	return id, created, nil
}

// SnapshotTool captures every file a tool's config paths resolve to.
// Directory paths expand one level deep; missing paths and per-file
// failures are recorded in the result and never abort the batch.
func (e *Engine) SnapshotTool(tool string, configPaths []string, message string) ToolResult {
	result := ToolResult{Tool: tool}

	for _, configPath := range configPaths {
		for _, file := range expandPath(configPath) {
			fr := FileResult{FilePath: paths.ContractTilde(file.path)}
			switch {
			case file.missing:
				fr.Status = StatusMissing
			default:
				id, created, err := e.SnapshotFile(tool, file.path, message)
				if err != nil {
					fr.Status = StatusFailed
					fr.Err = err
					e.logger.Warn().Err(err).Str("path", fr.FilePath).Msg("snapshot failed for file")
				} else {
					fr.SnapshotID = id
					if created {
						fr.Status = StatusSnapshotted
					} else {
						fr.Status = StatusUnchanged
					}
				}
			}
			result.Files = append(result.Files, fr)
		}
	}

	return result
}

// SnapshotAll captures every tracked tool in the manifest.
func (e *Engine) SnapshotAll(m *manifest.Manifest, message string) []ToolResult {
	var results []ToolResult
	for _, tool := range m.ToolNames() {
		entry, err := m.Get(tool)
		if err != nil {
			continue
		}
		results = append(results, e.SnapshotTool(tool, entry.ConfigPaths, message))
	}
	return results
}

// History returns a tool's snapshots newest-first. A non-positive limit
// falls back to DefaultHistoryLimit.
func (e *Engine) History(tool string, limit int) ([]store.Entry, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return e.store.History(tool, limit)
}

// DiffCurrent compares each on-disk file against its latest snapshot.
// A file with no snapshot yet diffs as a pure addition, flagged
// Untracked. Files configured but absent from disk are skipped.
func (e *Engine) DiffCurrent(tool string, configPaths []string) ([]diff.FileDiff, error) {
	var diffs []diff.FileDiff

	for _, configPath := range configPaths {
		for _, file := range expandPath(configPath) {
			if file.missing {
				continue
			}

			content, err := os.ReadFile(file.path)
			if err != nil {
				return nil, errors.Wrapf(err, errors.ErrIoFailure, "failed to read %s", file.path)
			}

			stored := paths.ContractTilde(file.path)
			latest, found, err := e.store.LatestFor(tool, stored)
			if err != nil {
				return nil, err
			}

			d := diff.FileDiff{FilePath: stored, New: string(content)}
			if found {
				old, err := e.store.GetBlob(latest.Hash)
				if err != nil {
					return nil, err
				}
				d.Old = string(old)
			} else {
				d.Untracked = true
			}
			diffs = append(diffs, d)
		}
	}

	return diffs, nil
}

// DiffBetween renders a unified diff between two snapshot entries. The
// entries may belong to different tools or paths; the labels carry
// enough context to read the result either way.
func (e *Engine) DiffBetween(idA, idB int64) (string, error) {
	a, err := e.store.GetSnapshot(idA)
	if err != nil {
		return "", err
	}
	b, err := e.store.GetSnapshot(idB)
	if err != nil {
		return "", err
	}

	oldContent, err := e.store.GetBlob(a.Hash)
	if err != nil {
		return "", err
	}
	newContent, err := e.store.GetBlob(b.Hash)
	if err != nil {
		return "", err
	}

	fromLabel := fmt.Sprintf("snapshot %d (%s)", a.ID, a.FilePath)
	toLabel := fmt.Sprintf("snapshot %d (%s)", b.ID, b.FilePath)
	return diff.Between(string(oldContent), string(newContent), fromLabel, toLabel)
}

// Rollback restores the file recorded in snapshot id to its captured
// content. The current state is backed up by the writer before the
// restore; under dry-run the returned plan describes the write without
// performing it.
func (e *Engine) Rollback(id int64, dryRun bool) (RollbackPlan, error) {
	entry, err := e.store.GetSnapshot(id)
	if err != nil {
		return RollbackPlan{}, err
	}

	content, err := e.store.GetBlob(entry.Hash)
	if err != nil {
		return RollbackPlan{}, err
	}

	absPath := paths.ExpandTilde(entry.FilePath)
	if err := paths.CheckPathSafety(absPath); err != nil {
		return RollbackPlan{}, err
	}

	plan := RollbackPlan{FilePath: entry.FilePath, NewHash: entry.Hash}
	if current, err := os.ReadFile(absPath); err == nil {
		plan.OldHash = store.Hash(current)
	}

	outcome, err := e.writer.WriteFile(absPath, content, dryRun)
	if err != nil {
		return plan, err
	}
	plan.Outcome = outcome

	if !dryRun {
		e.logger.Info().
			Int64("id", id).
			Str("path", entry.FilePath).
			Str("hash", store.ShortHash(entry.Hash)).
			Msg("rollback applied")
	}
	return plan, nil
}

type expandedFile struct {
	path    string
	missing bool
}

// expandPath resolves one configured path to concrete files. Regular
// files pass through; directories list their regular files one level
// deep (sorted, no recursion); a missing path yields a single missing
// marker so batches can report it.
func expandPath(configPath string) []expandedFile {
	abs := paths.ExpandTilde(configPath)

	info, err := os.Stat(abs)
	if err != nil {
		return []expandedFile{{path: abs, missing: true}}
	}

	if !info.IsDir() {
		return []expandedFile{{path: abs}}
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return []expandedFile{{path: abs, missing: true}}
	}

	var files []expandedFile
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, expandedFile{path: filepath.Join(abs, entry.Name())})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files
}
