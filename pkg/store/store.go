// Package store implements the content-addressed snapshot store: an
// append-only blob table keyed by SHA-256 digest plus an indexed table
// of snapshot entries, both in a single SQLite database opened in WAL
// mode. The store handle is passed explicitly to every component that
// needs it and has an Open/Close lifecycle scoped to one command
// invocation.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/arthur-debert/dotkeep/pkg/errors"
	"github.com/arthur-debert/dotkeep/pkg/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS blobs (
	hash       TEXT PRIMARY KEY,
	content    BLOB NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
CREATE TABLE IF NOT EXISTS snapshots (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tool       TEXT NOT NULL,
	file_path  TEXT NOT NULL,
	hash       TEXT NOT NULL REFERENCES blobs(hash),
	message    TEXT,
	created_at TEXT NOT NULL DEFAULT (datetime('now')),
	UNIQUE(tool, file_path, hash)
);
CREATE INDEX IF NOT EXISTS idx_snapshots_tool ON snapshots(tool);
CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at);
`

// Entry is one recorded snapshot: a (tool, path, content) association
// pointing at a blob. Entries are never updated or deleted.
type Entry struct {
	ID        int64
	Tool      string
	FilePath  string
	Hash      string
	Message   string
	CreatedAt string
}

// Store is a handle to the snapshot database. Not safe for concurrent
// use from multiple processes; dotkeep is a single-writer system.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens (or creates) the snapshot database at dbPath, applies the
// WAL pragmas, and ensures the schema exists. The database file is
// restricted to owner-only read/write.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, errors.Wrapf(err, errors.ErrStoreOpen, "failed to create store directory for %s", dbPath)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrStoreOpen, "failed to open snapshot database at %s", dbPath)
	}

	s := &Store{db: db, logger: logging.GetLogger("store")}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Owner-only permissions; may race with first creation, which is fine
	_ = os.Chmod(dbPath, 0600)

	s.logger.Debug().Str("path", dbPath).Msg("store opened")
	return s, nil
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return errors.Wrapf(err, errors.ErrStoreOpen, "%s", p)
		}
	}

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, errors.ErrStoreOpen, "failed to create schema")
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Hash computes the hex-encoded SHA-256 digest of content. This is the
// blob key used throughout the store.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// PutBlob stores content if not already present and returns its digest.
// Storing identical bytes twice is a no-op returning the same digest.
func (s *Store) PutBlob(content []byte) (string, error) {
	hash := Hash(content)
	_, err := s.db.Exec(
		"INSERT OR IGNORE INTO blobs (hash, content) VALUES (?, ?)",
		hash, content,
	)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrIoFailure, "failed to store blob")
	}
	return hash, nil
}

// GetBlob returns the content for a digest, or NOT_FOUND if the digest
// is unknown.
func (s *Store) GetBlob(hash string) ([]byte, error) {
	var content []byte
	err := s.db.QueryRow("SELECT content FROM blobs WHERE hash = ?", hash).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, errors.Newf(errors.ErrNotFound, "no blob with hash %s", hash)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIoFailure, "failed to read blob")
	}
	return content, nil
}

// RecordSnapshot stores content as a blob and inserts a snapshot entry
// for (tool, filePath) in one transaction. When the (tool, filePath,
// hash) triple already exists the insert is skipped and created is
// false; callers must not treat that as an error, it means "unchanged".
func (s *Store) RecordSnapshot(tool, filePath string, content []byte, message string) (id int64, created bool, err error) {
	hash := Hash(content)

	tx, err := s.db.Begin()
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrIoFailure, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec("INSERT OR IGNORE INTO blobs (hash, content) VALUES (?, ?)", hash, content); err != nil {
		return 0, false, errors.Wrap(err, errors.ErrIoFailure, "failed to store blob")
	}

	var msg interface{}
	if message != "" {
		msg = message
	}
	res, err := tx.Exec(
		"INSERT OR IGNORE INTO snapshots (tool, file_path, hash, message) VALUES (?, ?, ?, ?)",
		tool, filePath, hash, msg,
	)
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrIoFailure, "failed to insert snapshot")
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrIoFailure, "failed to read insert result")
	}

	if rows == 0 {
		// Unchanged content; look up the existing entry's id
		err = tx.QueryRow(
			"SELECT id FROM snapshots WHERE tool = ? AND file_path = ? AND hash = ?",
			tool, filePath, hash,
		).Scan(&id)
		if err != nil {
			return 0, false, errors.Wrap(err, errors.ErrIoFailure, "failed to look up existing snapshot")
		}
		if err = tx.Commit(); err != nil {
			return 0, false, errors.Wrap(err, errors.ErrIoFailure, "failed to commit")
		}
		return id, false, nil
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrIoFailure, "failed to read insert id")
	}
	if err = tx.Commit(); err != nil {
		return 0, false, errors.Wrap(err, errors.ErrIoFailure, "failed to commit")
	}

	s.logger.Debug().
		Str("tool", tool).
		Str("path", filePath).
		Str("hash", hash[:12]).
		Int64("id", id).
		Msg("snapshot recorded")

	return id, true, nil
}

// GetSnapshot returns the entry with the given id, or NOT_FOUND.
func (s *Store) GetSnapshot(id int64) (Entry, error) {
	var e Entry
	var msg sql.NullString
	err := s.db.QueryRow(
		"SELECT id, tool, file_path, hash, message, created_at FROM snapshots WHERE id = ?",
		id,
	).Scan(&e.ID, &e.Tool, &e.FilePath, &e.Hash, &msg, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return Entry{}, errors.Newf(errors.ErrNotFound, "snapshot %d not found", id)
	}
	if err != nil {
		return Entry{}, errors.Wrap(err, errors.ErrIoFailure, "failed to read snapshot")
	}
	e.Message = msg.String
	return e, nil
}

// History returns snapshot entries for a tool, newest first, bounded by
// limit.
func (s *Store) History(tool string, limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		"SELECT id, tool, file_path, hash, message, created_at FROM snapshots WHERE tool = ? ORDER BY id DESC LIMIT ?",
		tool, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrIoFailure, "failed to query history")
	}
	defer rows.Close()

	return scanEntries(rows)
}

// LatestFor returns the most recent entry for (tool, filePath). The
// second return is false when the file has no snapshot yet.
func (s *Store) LatestFor(tool, filePath string) (Entry, bool, error) {
	var e Entry
	var msg sql.NullString
	err := s.db.QueryRow(
		"SELECT id, tool, file_path, hash, message, created_at FROM snapshots WHERE tool = ? AND file_path = ? ORDER BY id DESC LIMIT 1",
		tool, filePath,
	).Scan(&e.ID, &e.Tool, &e.FilePath, &e.Hash, &msg, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, errors.Wrap(err, errors.ErrIoFailure, "failed to read latest snapshot")
	}
	e.Message = msg.String
	return e, true, nil
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var msg sql.NullString
		if err := rows.Scan(&e.ID, &e.Tool, &e.FilePath, &e.Hash, &msg, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrIoFailure, "failed to scan snapshot row")
		}
		e.Message = msg.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrIoFailure, "failed to iterate snapshot rows")
	}
	return entries, nil
}

// ShortHash returns the first 12 characters of a digest for display.
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
