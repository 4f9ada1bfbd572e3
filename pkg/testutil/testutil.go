// pkg/testutil/testutil.go
// DEPENDENCIES: None (base test utilities)
// PURPOSE: Isolated HOME environments for filesystem-heavy tests

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// TempHome points HOME at a fresh temp directory for the duration of the
// test and returns it. Everything that resolves paths through the home
// directory (tilde expansion, safety checks) then operates inside the
// sandbox.
func TempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

// WriteHome writes content to a path relative to home, creating parent
// directories as needed, and returns the absolute path.
func WriteHome(t *testing.T, home, rel, content string) string {
	t.Helper()
	path := filepath.Join(home, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
