// Package paths provides centralized path handling for dotkeep.
// It implements XDG Base Directory specification compliance and
// provides a consistent API for all path operations in the codebase.
package paths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"

	"github.com/arthur-debert/dotkeep/pkg/errors"
)

// Environment variable names
const (
	// EnvConfigDir overrides the XDG config directory for dotkeep
	EnvConfigDir = "DOTKEEP_CONFIG_DIR"

	// EnvDataDir overrides the XDG data directory for dotkeep
	EnvDataDir = "DOTKEEP_DATA_DIR"

	// EnvBackupDir overrides the backup directory
	EnvBackupDir = "DOTKEEP_BACKUP_DIR"

	// EnvHome is the standard home directory variable
	EnvHome = "HOME"
)

// Directory and file names inside the dotkeep directories.
// These define dotkeep's on-disk layout and are not user-configurable.
const (
	AppDirName       = "dotkeep"
	ManifestFileName = "manifest.toml"
	DatabaseFileName = "snapshots.db"
	BackupDirName    = "backups"
	ProfilesDirName  = "profiles"
	ConfigsDirName   = "configs"
)

// Paths provides centralized path management for dotkeep
type Paths interface {
	ConfigDir() string
	DataDir() string
	StateDir() string
	BackupDir() string
	ProfilesDir() string
	ConfigsDir() string
	ManifestPath() string
	DatabasePath() string
}

type paths struct {
	configDir string
	dataDir   string
	stateDir  string
	backupDir string
}

// New creates a new Paths instance. Directories are resolved once, from
// the DOTKEEP_* environment overrides first and the XDG base directories
// otherwise. No directories are created here; callers create what they
// write to.
func New() Paths {
	configDir := os.Getenv(EnvConfigDir)
	if configDir == "" {
		configDir = filepath.Join(xdg.ConfigHome, AppDirName)
	}

	dataDir := os.Getenv(EnvDataDir)
	if dataDir == "" {
		dataDir = filepath.Join(xdg.DataHome, AppDirName)
	}

	stateDir := filepath.Join(xdg.StateHome, AppDirName)

	backupDir := os.Getenv(EnvBackupDir)
	if backupDir == "" {
		backupDir = filepath.Join(dataDir, BackupDirName)
	}

	return &paths{
		configDir: configDir,
		dataDir:   dataDir,
		stateDir:  stateDir,
		backupDir: backupDir,
	}
}

func (p *paths) ConfigDir() string { return p.configDir }
func (p *paths) DataDir() string   { return p.dataDir }
func (p *paths) StateDir() string  { return p.stateDir }
func (p *paths) BackupDir() string { return p.backupDir }

func (p *paths) ProfilesDir() string {
	return filepath.Join(p.dataDir, ProfilesDirName)
}

func (p *paths) ConfigsDir() string {
	return filepath.Join(p.dataDir, ConfigsDirName)
}

func (p *paths) ManifestPath() string {
	return filepath.Join(p.configDir, ManifestFileName)
}

func (p *paths) DatabasePath() string {
	return filepath.Join(p.dataDir, DatabaseFileName)
}

// homeDir returns the user's home directory, preferring HOME for testability.
func homeDir() string {
	if home := os.Getenv(EnvHome); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// ExpandTilde expands a leading "~/" (or a bare "~") to the user's home
// directory. "~user/path" forms are not handled.
func ExpandTilde(path string) string {
	home := homeDir()
	if home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		return filepath.Join(home, rest)
	}
	return path
}

// ContractTilde replaces the home directory prefix of an absolute path
// with "~" so stored paths stay portable across hosts.
func ContractTilde(path string) string {
	home := homeDir()
	if home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	if rest, ok := strings.CutPrefix(path, home+string(filepath.Separator)); ok {
		return "~/" + filepath.ToSlash(rest)
	}
	return path
}

// CheckPathSafety verifies that a path, after resolving symlinks, stays
// within the user's home directory. Paths that cannot be resolved (the
// file may not exist yet) are not a safety issue. A path that escapes
// home is always fatal to the operation and never auto-corrected.
func CheckPathSafety(path string) error {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil
	}

	home := homeDir()
	if home == "" {
		return nil
	}
	resolvedHome, err := filepath.EvalSymlinks(home)
	if err != nil {
		resolvedHome = home
	}

	if resolved != resolvedHome && !strings.HasPrefix(resolved, resolvedHome+string(filepath.Separator)) {
		return errors.Newf(errors.ErrPathUnsafe,
			"path %q resolves to %q which is outside your home directory", path, resolved)
	}

	return nil
}
