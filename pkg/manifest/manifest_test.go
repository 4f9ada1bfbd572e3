// pkg/manifest/manifest_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: Real filesystem (TOML files in temp dir)
// PURPOSE: Test tracked-tool registry load/save, add/remove, error codes

package manifest_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/dotkeep/pkg/errors"
	"github.com/arthur-debert/dotkeep/pkg/manifest"
)

func manifestPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "manifest.toml")
}

func TestLoadMissingManifest(t *testing.T) {
	_, err := manifest.Load(manifestPath(t))
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotInitialized))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := manifestPath(t)

	m := manifest.New(path)
	require.NoError(t, m.Add("tmux", 1, []string{"~/.tmux.conf"}))
	require.NoError(t, m.Add("zsh", 1, []string{"~/.zshrc", "~/.zprofile"}))
	require.NoError(t, m.Save())

	loaded, err := manifest.Load(path)
	require.NoError(t, err)

	assert.True(t, loaded.Has("tmux"))
	entry, err := loaded.Get("zsh")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Tier)
	assert.Equal(t, []string{"~/.zshrc", "~/.zprofile"}, entry.ConfigPaths)
	assert.NotEmpty(t, entry.AddedAt)
}

func TestAddDuplicate(t *testing.T) {
	m := manifest.New(manifestPath(t))
	require.NoError(t, m.Add("git", 1, []string{"~/.gitconfig"}))

	err := m.Add("git", 1, []string{"~/.gitconfig"})
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrAlreadyTracked))
}

func TestRemove(t *testing.T) {
	m := manifest.New(manifestPath(t))
	require.NoError(t, m.Add("git", 1, []string{"~/.gitconfig"}))
	require.NoError(t, m.Remove("git"))
	assert.False(t, m.Has("git"))

	err := m.Remove("git")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotTracked))
}

func TestGetUntracked(t *testing.T) {
	m := manifest.New(manifestPath(t))
	_, err := m.Get("vim")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotTracked))
}

func TestTouchSnapshot(t *testing.T) {
	path := manifestPath(t)
	m := manifest.New(path)
	require.NoError(t, m.Add("tmux", 1, []string{"~/.tmux.conf"}))

	entry, err := m.Get("tmux")
	require.NoError(t, err)
	assert.Empty(t, entry.LastSnapshot)

	require.NoError(t, m.TouchSnapshot("tmux"))
	require.NoError(t, m.Save())

	loaded, err := manifest.Load(path)
	require.NoError(t, err)
	entry, err = loaded.Get("tmux")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.LastSnapshot)
}

func TestToolNamesSorted(t *testing.T) {
	m := manifest.New(manifestPath(t))
	require.NoError(t, m.Add("zsh", 1, nil))
	require.NoError(t, m.Add("git", 1, nil))
	require.NoError(t, m.Add("tmux", 1, nil))

	assert.Equal(t, []string{"git", "tmux", "zsh"}, m.ToolNames())
}

func TestSavePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}

	path := manifestPath(t)
	m := manifest.New(path)
	require.NoError(t, m.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSaveNoStagedLeftovers(t *testing.T) {
	path := manifestPath(t)
	m := manifest.New(path)
	require.NoError(t, m.Add("tmux", 1, []string{"~/.tmux.conf"}))
	require.NoError(t, m.Save())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "manifest.toml", entries[0].Name())
}

func TestExists(t *testing.T) {
	path := manifestPath(t)
	assert.False(t, manifest.Exists(path))

	require.NoError(t, manifest.New(path).Save())
	assert.True(t, manifest.Exists(path))
}
