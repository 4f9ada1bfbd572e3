package store

import "testing"

// OpenTemp opens a store in a per-test temporary directory and registers
// cleanup. Each test gets its own database file so WAL side files never
// leak between tests.
func OpenTemp(t testing.TB) *Store {
	t.Helper()
	s, err := Open(t.TempDir() + "/snapshots.db")
	if err != nil {
		t.Fatalf("store.OpenTemp: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}
