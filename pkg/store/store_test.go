// pkg/store/store_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: Real filesystem (SQLite database in temp dir)
// PURPOSE: Test blob dedup, snapshot uniqueness, history ordering, durability

package store_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/dotkeep/pkg/errors"
	"github.com/arthur-debert/dotkeep/pkg/store"
)

func TestPutBlobRoundTrip(t *testing.T) {
	s := store.OpenTemp(t)

	content := []byte("set -g mouse on\n")
	hash, err := s.PutBlob(content)
	require.NoError(t, err)
	assert.Len(t, hash, 64, "sha256 hex digest")

	got, err := s.GetBlob(hash)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestPutBlobIdempotent(t *testing.T) {
	s := store.OpenTemp(t)

	h1, err := s.PutBlob([]byte("same bytes"))
	require.NoError(t, err)
	h2, err := s.PutBlob([]byte("same bytes"))
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestGetBlobUnknownHash(t *testing.T) {
	s := store.OpenTemp(t)

	_, err := s.GetBlob("deadbeef")
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestRecordSnapshotDedup(t *testing.T) {
	s := store.OpenTemp(t)

	id1, created, err := s.RecordSnapshot("tmux", "~/.tmux.conf", []byte("x"), "first")
	require.NoError(t, err)
	assert.True(t, created)

	// Same triple again: no new entry, same id, not an error
	id2, created, err := s.RecordSnapshot("tmux", "~/.tmux.conf", []byte("x"), "second")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	history, err := s.History("tmux", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRecordSnapshotNewContent(t *testing.T) {
	s := store.OpenTemp(t)

	_, created, err := s.RecordSnapshot("tmux", "~/.tmux.conf", []byte("x"), "")
	require.NoError(t, err)
	require.True(t, created)

	_, created, err = s.RecordSnapshot("tmux", "~/.tmux.conf", []byte("y"), "")
	require.NoError(t, err)
	assert.True(t, created)

	history, err := s.History("tmux", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	// Newest first
	assert.Greater(t, history[0].ID, history[1].ID)
}

func TestBlobDedupAcrossTools(t *testing.T) {
	s := store.OpenTemp(t)

	content := []byte("shared content")
	id1, _, err := s.RecordSnapshot("tmux", "~/.tmux.conf", content, "")
	require.NoError(t, err)
	id2, _, err := s.RecordSnapshot("zsh", "~/.zshrc", content, "")
	require.NoError(t, err)

	e1, err := s.GetSnapshot(id1)
	require.NoError(t, err)
	e2, err := s.GetSnapshot(id2)
	require.NoError(t, err)

	// Two entries, one underlying blob
	assert.Equal(t, e1.Hash, e2.Hash)
}

func TestGetSnapshotNotFound(t *testing.T) {
	s := store.OpenTemp(t)

	_, err := s.GetSnapshot(9999)
	require.Error(t, err)
	assert.True(t, errors.IsErrorCode(err, errors.ErrNotFound))
}

func TestHistoryLimit(t *testing.T) {
	s := store.OpenTemp(t)

	contents := []string{"a", "b", "c", "d", "e"}
	for _, c := range contents {
		_, _, err := s.RecordSnapshot("git", "~/.gitconfig", []byte(c), "")
		require.NoError(t, err)
	}

	history, err := s.History("git", 3)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

func TestHistoryToolIsolation(t *testing.T) {
	s := store.OpenTemp(t)

	_, _, err := s.RecordSnapshot("tmux", "~/.tmux.conf", []byte("a"), "")
	require.NoError(t, err)
	_, _, err = s.RecordSnapshot("zsh", "~/.zshrc", []byte("b"), "")
	require.NoError(t, err)

	history, err := s.History("tmux", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "tmux", history[0].Tool)
}

func TestLatestFor(t *testing.T) {
	s := store.OpenTemp(t)

	_, found, err := s.LatestFor("tmux", "~/.tmux.conf")
	require.NoError(t, err)
	assert.False(t, found, "no baseline yet")

	_, _, err = s.RecordSnapshot("tmux", "~/.tmux.conf", []byte("v1"), "")
	require.NoError(t, err)
	_, _, err = s.RecordSnapshot("tmux", "~/.tmux.conf", []byte("v2"), "")
	require.NoError(t, err)

	latest, found, err := s.LatestFor("tmux", "~/.tmux.conf")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, store.Hash([]byte("v2")), latest.Hash)
}

func TestMessageStored(t *testing.T) {
	s := store.OpenTemp(t)

	id, _, err := s.RecordSnapshot("tmux", "~/.tmux.conf", []byte("x"), "before upgrade")
	require.NoError(t, err)

	e, err := s.GetSnapshot(id)
	require.NoError(t, err)
	assert.Equal(t, "before upgrade", e.Message)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "snapshots.db")

	s, err := store.Open(dbPath)
	require.NoError(t, err)
	id, _, err := s.RecordSnapshot("tmux", "~/.tmux.conf", []byte("persisted"), "")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	e, err := s2.GetSnapshot(id)
	require.NoError(t, err)

	content, err := s2.GetBlob(e.Hash)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), content)
}

func TestDatabasePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix permissions")
	}

	dir := t.TempDir()
	dbPath := filepath.Join(dir, "snapshots.db")
	s, err := store.Open(dbPath)
	require.NoError(t, err)
	defer s.Close()

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abcdefabcdef", store.ShortHash("abcdefabcdefabcdef"))
	assert.Equal(t, "short", store.ShortHash("short"))
}
