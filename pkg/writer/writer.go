// Package writer implements the backup-guarded write primitive shared by
// every mutation path (deploy, rollback, profile restore). The contract:
// no destructive write happens before the prior state has been preserved
// in the backup area, and the write itself is staged and renamed into
// place so a crash never leaves a half-written file at the live path.
package writer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/dotkeep/pkg/errors"
	"github.com/arthur-debert/dotkeep/pkg/logging"
)

// TargetState classifies what currently occupies a write target. The
// enumeration is closed; every writer decision is an exhaustive switch
// over these five states.
type TargetState int

const (
	// TargetMissing: nothing exists at the target path
	TargetMissing TargetState = iota
	// TargetLinkCorrect: a symlink already points to the intended source
	TargetLinkCorrect
	// TargetLinkStale: a symlink exists but points elsewhere
	TargetLinkStale
	// TargetExists: a regular file or directory occupies the target
	TargetExists
	// TargetSourceMissing: the symlink source itself does not exist
	TargetSourceMissing
)

func (s TargetState) String() string {
	switch s {
	case TargetMissing:
		return "missing"
	case TargetLinkCorrect:
		return "already-correct"
	case TargetLinkStale:
		return "stale-link"
	case TargetExists:
		return "exists"
	case TargetSourceMissing:
		return "source-missing"
	default:
		return "unknown"
	}
}

// Action is what the writer did (or would do, under dry-run) for one
// target.
type Action int

const (
	ActionCreate Action = iota
	ActionNone
	ActionRelink
	ActionBackupReplace
	ActionSkip
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionNone:
		return "no-op"
	case ActionRelink:
		return "relink"
	case ActionBackupReplace:
		return "backup-and-replace"
	case ActionSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Outcome reports one writer invocation. Under dry-run Performed is
// false and the filesystem is untouched; the rest of the fields form the
// identical plan the real run would execute.
type Outcome struct {
	Target     string
	State      TargetState
	Action     Action
	BackupPath string
	Performed  bool
}

// Writer performs backup-guarded writes into a fixed backup directory.
type Writer struct {
	backupDir string
	logger    zerolog.Logger
}

// New creates a Writer that preserves prior state under backupDir.
func New(backupDir string) *Writer {
	return &Writer{
		backupDir: backupDir,
		logger:    logging.GetLogger("writer"),
	}
}

// BackupDir returns the directory backups are written to.
func (w *Writer) BackupDir() string {
	return w.backupDir
}

// ClassifyLink determines the target state for a symlink operation.
func (w *Writer) ClassifyLink(source, target string) TargetState {
	if _, err := os.Lstat(source); err != nil {
		return TargetSourceMissing
	}

	info, err := os.Lstat(target)
	if err != nil {
		return TargetMissing
	}

	if info.Mode()&os.ModeSymlink != 0 {
		current, err := os.Readlink(target)
		if err != nil || current != source {
			return TargetLinkStale
		}
		return TargetLinkCorrect
	}

	return TargetExists
}

// ClassifyWrite determines the target state for a content write. Content
// writes have no source, so only Missing and Exists apply; a symlink at
// the target counts as Exists and gets preserved like anything else.
func (w *Writer) ClassifyWrite(target string) TargetState {
	if _, err := os.Lstat(target); err != nil {
		return TargetMissing
	}
	return TargetExists
}

// WriteLink places a symlink at target pointing to source, classified
// per ClassifyLink. Existing regular files and directories are backed up
// first; correct links are a no-op; a missing source is skipped with a
// warning rather than treated as an error.
func (w *Writer) WriteLink(source, target string, dryRun bool) (Outcome, error) {
	state := w.ClassifyLink(source, target)
	out := Outcome{Target: target, State: state}

	switch state {
	case TargetSourceMissing:
		out.Action = ActionSkip
		w.logger.Warn().Str("source", source).Str("target", target).Msg("symlink source does not exist, skipping")
		return out, nil
	case TargetLinkCorrect:
		out.Action = ActionNone
		return out, nil
	case TargetMissing:
		out.Action = ActionCreate
	case TargetLinkStale:
		out.Action = ActionRelink
	case TargetExists:
		out.Action = ActionBackupReplace
		out.BackupPath = w.backupName(target)
	}

	if dryRun {
		return out, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return out, errors.Wrapf(err, errors.ErrIoFailure, "failed to create parent directory for %s", target)
	}

	if out.Action == ActionBackupReplace {
		backupPath, err := w.backupExisting(target)
		if err != nil {
			return out, err
		}
		out.BackupPath = backupPath
	}

	if err := symlinkAtomic(source, target); err != nil {
		return out, err
	}

	out.Performed = true
	w.logger.Debug().
		Str("source", source).
		Str("target", target).
		Str("action", out.Action.String()).
		Msg("link written")
	return out, nil
}

// WriteFile replaces target with content. Existing state is backed up
// first, then content is staged next to the target and renamed into
// place. Created files are owner-only.
func (w *Writer) WriteFile(target string, content []byte, dryRun bool) (Outcome, error) {
	state := w.ClassifyWrite(target)
	out := Outcome{Target: target, State: state}

	switch state {
	case TargetMissing:
		out.Action = ActionCreate
	default:
		out.Action = ActionBackupReplace
		out.BackupPath = w.backupName(target)
	}

	if dryRun {
		return out, nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return out, errors.Wrapf(err, errors.ErrIoFailure, "failed to create parent directory for %s", target)
	}

	if out.Action == ActionBackupReplace {
		backupPath, err := w.backupExisting(target)
		if err != nil {
			return out, err
		}
		out.BackupPath = backupPath
	}

	if err := atomicWrite(target, content); err != nil {
		return out, err
	}

	out.Performed = true
	w.logger.Debug().
		Str("target", target).
		Str("action", out.Action.String()).
		Int("bytes", len(content)).
		Msg("file written")
	return out, nil
}

// backupName computes the backup path for target without touching the
// filesystem; used for dry-run plans.
func (w *Writer) backupName(target string) string {
	timestamp := time.Now().Format("20060102_150405")
	name := filepath.Base(target)
	return filepath.Join(w.backupDir, fmt.Sprintf("%s.%s.bak", name, timestamp))
}

// backupExisting preserves whatever occupies target in the backup area.
// Regular file content is copied so the live path stays intact until the
// rename; directories and symlinks are moved wholesale. Backups are
// never overwritten: a name collision gets a counter suffix.
func (w *Writer) backupExisting(target string) (string, error) {
	if err := os.MkdirAll(w.backupDir, 0700); err != nil {
		return "", errors.Wrap(err, errors.ErrIoFailure, "failed to create backup directory")
	}

	backupPath := w.backupName(target)
	for i := 1; ; i++ {
		if _, err := os.Lstat(backupPath); err != nil {
			break
		}
		backupPath = filepath.Join(w.backupDir,
			fmt.Sprintf("%s.%s.%d.bak", filepath.Base(target), time.Now().Format("20060102_150405"), i))
	}

	info, err := os.Lstat(target)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrIoFailure, "failed to stat %s", target)
	}

	if info.Mode().IsRegular() {
		if err := copyFile(target, backupPath); err != nil {
			return "", err
		}
	} else {
		// Directories and symlinks move into the backup area whole
		if err := os.Rename(target, backupPath); err != nil {
			return "", errors.Wrapf(err, errors.ErrIoFailure, "failed to move %s to backup", target)
		}
	}

	w.logger.Info().Str("target", target).Str("backup", backupPath).Msg("backed up prior state")
	return backupPath, nil
}

// symlinkAtomic creates the link under a staged name in the target's
// directory and renames it into place, so stale links and backed-up
// regular files are replaced in a single step.
func symlinkAtomic(source, target string) error {
	staged := filepath.Join(filepath.Dir(target),
		fmt.Sprintf(".%s.lnk%d", filepath.Base(target), os.Getpid()))
	if err := os.Symlink(source, staged); err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to stage symlink for %s", target)
	}
	if err := os.Rename(staged, target); err != nil {
		_ = os.Remove(staged)
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to move symlink into place at %s", target)
	}
	return nil
}

// atomicWrite stages content under a temporary name in the target's
// directory and renames it into place. The staged file is cleaned up on
// any failure; writes are never retried.
func atomicWrite(target string, content []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp*")
	if err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to stage write for %s", target)
	}
	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(content); err != nil {
		cleanup()
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to write staged file for %s", target)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to sync staged file for %s", target)
	}
	if err := tmp.Chmod(0600); err != nil {
		cleanup()
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to set permissions on staged file for %s", target)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to close staged file for %s", target)
	}

	// Existing symlinks must not capture the rename through themselves
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err := os.Remove(target); err != nil {
			_ = os.Remove(tmpName)
			return errors.Wrapf(err, errors.ErrIoFailure, "failed to remove symlink at %s", target)
		}
	}

	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to move staged file into place at %s", target)
	}

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to open %s for backup", src)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to create backup file %s", dst)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to copy %s to backup", src)
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to sync backup file %s", dst)
	}
	return out.Close()
}
