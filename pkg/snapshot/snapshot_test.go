// pkg/snapshot/snapshot_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: Real filesystem (temp HOME), SQLite store in temp dir
// PURPOSE: Test snapshot capture, diffing, history, rollback round trip

package snapshot_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/dotkeep/pkg/diff"
	"github.com/arthur-debert/dotkeep/pkg/errors"
	"github.com/arthur-debert/dotkeep/pkg/manifest"
	"github.com/arthur-debert/dotkeep/pkg/snapshot"
	"github.com/arthur-debert/dotkeep/pkg/store"
	"github.com/arthur-debert/dotkeep/pkg/testutil"
	"github.com/arthur-debert/dotkeep/pkg/writer"
)

// newEngine gives each test an isolated HOME, store, and backup area.
func newEngine(t *testing.T) (*snapshot.Engine, string) {
	t.Helper()

	home := testutil.TempHome(t)
	s := store.OpenTemp(t)
	w := writer.New(filepath.Join(home, ".backups"))
	return snapshot.New(s, w), home
}

func writeHomeFile(t *testing.T, home, name, content string) string {
	t.Helper()
	return testutil.WriteHome(t, home, name, content)
}

func TestSnapshotFileStoresContracted(t *testing.T) {
	e, home := newEngine(t)
	writeHomeFile(t, home, ".tmux.conf", "set -g mouse on\n")

	id, created, err := e.SnapshotFile("tmux", "~/.tmux.conf", "initial")
	require.NoError(t, err)
	assert.True(t, created)

	history, err := e.History("tmux", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0].ID)
	assert.Equal(t, "~/.tmux.conf", history[0].FilePath, "paths are stored tilde-contracted")
}

func TestSnapshotFileIdempotent(t *testing.T) {
	e, home := newEngine(t)
	writeHomeFile(t, home, ".zshrc", "export EDITOR=vim\n")

	id1, created, err := e.SnapshotFile("zsh", "~/.zshrc", "")
	require.NoError(t, err)
	require.True(t, created)

	id2, created, err := e.SnapshotFile("zsh", "~/.zshrc", "")
	require.NoError(t, err)
	assert.False(t, created, "unchanged content records nothing new")
	assert.Equal(t, id1, id2)
}

func TestSnapshotFileMissing(t *testing.T) {
	e, _ := newEngine(t)

	_, _, err := e.SnapshotFile("tmux", "~/.tmux.conf", "")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrIoFailure))
}

func TestSnapshotFileOutsideHome(t *testing.T) {
	e, home := newEngine(t)

	outside := filepath.Join(t.TempDir(), "escape.conf")
	require.NoError(t, os.WriteFile(outside, []byte("x"), 0600))
	link := filepath.Join(home, ".escape")
	require.NoError(t, os.Symlink(outside, link))

	_, _, err := e.SnapshotFile("tmux", link, "")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrPathUnsafe))
}

func TestSnapshotToolBatch(t *testing.T) {
	e, home := newEngine(t)
	writeHomeFile(t, home, ".zshrc", "a\n")
	// ~/.zprofile deliberately absent

	result := e.SnapshotTool("zsh", []string{"~/.zshrc", "~/.zprofile"}, "")
	require.Len(t, result.Files, 2)

	assert.Equal(t, snapshot.StatusSnapshotted, result.Files[0].Status)
	assert.Equal(t, snapshot.StatusMissing, result.Files[1].Status)
	assert.Equal(t, "1 snapshotted, 0 unchanged, 1 missing", result.Summary())
}

func TestSnapshotToolDirectoryExpansion(t *testing.T) {
	e, home := newEngine(t)
	writeHomeFile(t, home, ".config/git/config", "[user]\n")
	writeHomeFile(t, home, ".config/git/ignore", "*.log\n")
	// Nested directories are not descended into
	writeHomeFile(t, home, ".config/git/hooks/pre-commit", "#!/bin/sh\n")

	result := e.SnapshotTool("git", []string{"~/.config/git"}, "")
	require.Len(t, result.Files, 2, "one level deep, regular files only")

	assert.Equal(t, "~/.config/git/config", result.Files[0].FilePath)
	assert.Equal(t, "~/.config/git/ignore", result.Files[1].FilePath)
}

func TestSnapshotAll(t *testing.T) {
	e, home := newEngine(t)
	writeHomeFile(t, home, ".tmux.conf", "a\n")
	writeHomeFile(t, home, ".gitconfig", "b\n")

	m := manifest.New(filepath.Join(home, "manifest.toml"))
	require.NoError(t, m.Add("tmux", 1, []string{"~/.tmux.conf"}))
	require.NoError(t, m.Add("git", 1, []string{"~/.gitconfig"}))

	results := e.SnapshotAll(m, "bulk")
	require.Len(t, results, 2)
	// ToolNames is sorted, so git first
	assert.Equal(t, "git", results[0].Tool)
	assert.Equal(t, "tmux", results[1].Tool)
}

func TestHistoryDefaultLimit(t *testing.T) {
	e, home := newEngine(t)
	path := writeHomeFile(t, home, ".tmux.conf", "v0\n")

	for i := 0; i < 25; i++ {
		require.NoError(t, os.WriteFile(path, []byte{byte('a' + i), '\n'}, 0600))
		_, _, err := e.SnapshotFile("tmux", "~/.tmux.conf", "")
		require.NoError(t, err)
	}

	history, err := e.History("tmux", 0)
	require.NoError(t, err)
	assert.Len(t, history, snapshot.DefaultHistoryLimit)
}

func TestDiffCurrentNoBaseline(t *testing.T) {
	e, home := newEngine(t)
	writeHomeFile(t, home, ".zshrc", "export PATH=$PATH\n")

	diffs, err := e.DiffCurrent("zsh", []string{"~/.zshrc"})
	require.NoError(t, err)
	require.Len(t, diffs, 1)

	d := diffs[0]
	assert.True(t, d.Untracked)
	assert.Empty(t, d.Old)
	assert.Equal(t, "export PATH=$PATH\n", d.New)

	out, err := diff.Unified(d)
	require.NoError(t, err)
	assert.Contains(t, out, "+export PATH=$PATH")
}

func TestDiffCurrentAgainstLatest(t *testing.T) {
	e, home := newEngine(t)
	path := writeHomeFile(t, home, ".zshrc", "old line\n")

	_, _, err := e.SnapshotFile("zsh", "~/.zshrc", "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("new line\n"), 0600))

	diffs, err := e.DiffCurrent("zsh", []string{"~/.zshrc"})
	require.NoError(t, err)
	require.Len(t, diffs, 1)

	d := diffs[0]
	assert.False(t, d.Untracked)
	assert.True(t, d.HasChanges())
	assert.Equal(t, "old line\n", d.Old)
	assert.Equal(t, "new line\n", d.New)
}

func TestDiffBetween(t *testing.T) {
	e, home := newEngine(t)
	path := writeHomeFile(t, home, ".tmux.conf", "set -g mouse off\n")

	idA, _, err := e.SnapshotFile("tmux", "~/.tmux.conf", "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("set -g mouse on\n"), 0600))
	idB, _, err := e.SnapshotFile("tmux", "~/.tmux.conf", "")
	require.NoError(t, err)

	out, err := e.DiffBetween(idA, idB)
	require.NoError(t, err)

	assert.Contains(t, out, "-set -g mouse off")
	assert.Contains(t, out, "+set -g mouse on")
	assert.Contains(t, out, "snapshot")
}

func TestDiffBetweenUnknownID(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.DiffBetween(1, 2)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestRollbackRoundTrip(t *testing.T) {
	e, home := newEngine(t)
	path := writeHomeFile(t, home, ".tmux.conf", "good config\n")

	id, _, err := e.SnapshotFile("tmux", "~/.tmux.conf", "known good")
	require.NoError(t, err)

	// Break the file, then roll back
	require.NoError(t, os.WriteFile(path, []byte("broken config\n"), 0600))

	plan, err := e.Rollback(id, false)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "good config\n", string(content))

	// The broken state was preserved before the restore
	require.NotEmpty(t, plan.Outcome.BackupPath)
	backed, err := os.ReadFile(plan.Outcome.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "broken config\n", string(backed))

	assert.Equal(t, store.Hash([]byte("broken config\n")), plan.OldHash)
	assert.Equal(t, store.Hash([]byte("good config\n")), plan.NewHash)
}

func TestRollbackDryRun(t *testing.T) {
	e, home := newEngine(t)
	path := writeHomeFile(t, home, ".tmux.conf", "v1\n")

	id, _, err := e.SnapshotFile("tmux", "~/.tmux.conf", "")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("v2\n"), 0600))

	plan, err := e.Rollback(id, true)
	require.NoError(t, err)

	assert.False(t, plan.Outcome.Performed)
	assert.Equal(t, writer.ActionBackupReplace, plan.Outcome.Action)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v2\n", string(content), "dry run leaves the file alone")
}

func TestRollbackRestoresDeletedFile(t *testing.T) {
	e, home := newEngine(t)
	path := writeHomeFile(t, home, ".gitconfig", "[user]\nname = x\n")

	id, _, err := e.SnapshotFile("git", "~/.gitconfig", "")
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	plan, err := e.Rollback(id, false)
	require.NoError(t, err)

	assert.Empty(t, plan.OldHash, "no current content for a deleted file")
	assert.Equal(t, writer.ActionCreate, plan.Outcome.Action)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[user]\nname = x\n", string(content))
}

func TestRollbackUnknownID(t *testing.T) {
	e, _ := newEngine(t)

	_, err := e.Rollback(404, false)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}
