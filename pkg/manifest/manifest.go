// Package manifest persists the set of tracked tools. The manifest is a
// single TOML file under the config directory; it is the source of truth
// for what snapshot, deploy, and watch operate on.
package manifest

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/arthur-debert/dotkeep/pkg/errors"
	"github.com/arthur-debert/dotkeep/pkg/logging"
)

// ToolEntry describes one tracked tool.
type ToolEntry struct {
	// Tier is the support level the tool was added at (1 = catalog tool)
	Tier int `toml:"tier"`
	// ConfigPaths are the tracked paths, tilde-contracted, in catalog order
	ConfigPaths []string `toml:"config_paths"`
	// AddedAt records when tracking started (RFC 3339)
	AddedAt string `toml:"added_at"`
	// LastSnapshot is the most recent snapshot time, empty until one exists
	LastSnapshot string `toml:"last_snapshot,omitempty"`
}

// Manifest is the on-disk tracked-tool registry.
type Manifest struct {
	Tools map[string]ToolEntry `toml:"tools"`

	path string
}

// New returns an empty manifest that will save to path.
func New(path string) *Manifest {
	return &Manifest{
		Tools: make(map[string]ToolEntry),
		path:  path,
	}
}

// Load reads the manifest at path. A missing file means dotkeep has not
// been initialized; that is a distinct error so commands can suggest
// `dotkeep init`.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Newf(errors.ErrNotInitialized,
				"no manifest found at %s (run 'dotkeep init' first)", path)
		}
		return nil, errors.Wrapf(err, errors.ErrIoFailure, "failed to read manifest %s", path)
	}

	m := New(path)
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, errors.ErrInvalidInput, "failed to parse manifest %s", path)
	}
	if m.Tools == nil {
		m.Tools = make(map[string]ToolEntry)
	}
	m.path = path
	return m, nil
}

// Exists reports whether a manifest file is present at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Save writes the manifest atomically with owner-only permissions.
func (m *Manifest) Save() error {
	data, err := toml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, errors.ErrInternal, "failed to encode manifest")
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to create config directory %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".manifest.toml.tmp*")
	if err != nil {
		return errors.Wrap(err, errors.ErrIoFailure, "failed to stage manifest write")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrIoFailure, "failed to write staged manifest")
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrIoFailure, "failed to set manifest permissions")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrIoFailure, "failed to close staged manifest")
	}
	if err := os.Rename(tmpName, m.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to move manifest into place at %s", m.path)
	}

	logger := logging.GetLogger("manifest")
	logger.Debug().
		Str("path", m.path).
		Int("tools", len(m.Tools)).
		Msg("manifest saved")
	return nil
}

// Path returns the manifest file location.
func (m *Manifest) Path() string {
	return m.path
}

// Has reports whether tool is tracked.
func (m *Manifest) Has(tool string) bool {
	_, ok := m.Tools[tool]
	return ok
}

// Get returns the entry for tool.
func (m *Manifest) Get(tool string) (ToolEntry, error) {
	entry, ok := m.Tools[tool]
	if !ok {
		return ToolEntry{}, errors.Newf(errors.ErrNotTracked, "tool %q is not tracked", tool)
	}
	return entry, nil
}

// Add starts tracking a tool. Adding a tool twice is an error; use
// Remove first to re-add with different paths.
func (m *Manifest) Add(tool string, tier int, configPaths []string) error {
	if m.Has(tool) {
		return errors.Newf(errors.ErrAlreadyTracked, "tool %q is already tracked", tool)
	}
	m.Tools[tool] = ToolEntry{
		Tier:        tier,
		ConfigPaths: configPaths,
		AddedAt:     time.Now().UTC().Format(time.RFC3339),
	}
	return nil
}

// Remove stops tracking a tool. Snapshot history is retained in the
// store; only the tracking entry goes away.
func (m *Manifest) Remove(tool string) error {
	if !m.Has(tool) {
		return errors.Newf(errors.ErrNotTracked, "tool %q is not tracked", tool)
	}
	delete(m.Tools, tool)
	return nil
}

// TouchSnapshot records that tool was just snapshotted.
func (m *Manifest) TouchSnapshot(tool string) error {
	entry, ok := m.Tools[tool]
	if !ok {
		return errors.Newf(errors.ErrNotTracked, "tool %q is not tracked", tool)
	}
	entry.LastSnapshot = time.Now().UTC().Format(time.RFC3339)
	m.Tools[tool] = entry
	return nil
}

// ToolNames returns tracked tool names in sorted order for stable output.
func (m *Manifest) ToolNames() []string {
	names := make([]string, 0, len(m.Tools))
	for name := range m.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
