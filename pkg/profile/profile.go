// Package profile saves and restores named machine setups. A profile is
// a directory holding copies of every tracked file plus a profile.toml
// with the tool entries and per-file checksums, so a profile can be
// carried to another machine and loaded there. Restores run through the
// backup-guarded writer.
package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog"

	"github.com/arthur-debert/dotkeep/pkg/errors"
	"github.com/arthur-debert/dotkeep/pkg/logging"
	"github.com/arthur-debert/dotkeep/pkg/manifest"
	"github.com/arthur-debert/dotkeep/pkg/paths"
	"github.com/arthur-debert/dotkeep/pkg/writer"
)

const (
	metaFileName = "profile.toml"
	filesDirName = "files"
	maxNameLen   = 64
)

// Meta is the profile.toml payload.
type Meta struct {
	Name      string                        `toml:"name"`
	CreatedAt string                        `toml:"created_at"`
	Tools     map[string]manifest.ToolEntry `toml:"tools"`
	// Checksums maps "tool/filename" keys to sha256 hex digests of the
	// saved copies
	Checksums map[string]string `toml:"checksums"`
}

// Summary describes one saved profile for listing.
type Summary struct {
	Name      string
	CreatedAt string
	ToolCount int
	FileCount int
}

// SaveResult reports what a save captured.
type SaveResult struct {
	Files int
	Tools int
}

// LoadResult reports what a load restored.
type LoadResult struct {
	Outcomes     []writer.Outcome
	Restored     int
	BackedUp     int
	ToolsAdded   []string
	ToolsSkipped []string
}

// Manager operates on the profiles directory.
type Manager struct {
	profilesDir string
	writer      *writer.Writer
	logger      zerolog.Logger
}

// NewManager creates a profile manager writing restores through w.
func NewManager(profilesDir string, w *writer.Writer) *Manager {
	return &Manager{
		profilesDir: profilesDir,
		writer:      w,
		logger:      logging.GetLogger("profile"),
	}
}

// ValidateName enforces profile naming: 1-64 ASCII letters, digits,
// dashes, underscores. Keeps names safe as directory components.
func ValidateName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return errors.Newf(errors.ErrProfileName, "invalid profile name %q", name)
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return errors.Newf(errors.ErrProfileName,
				"invalid profile name %q: only letters, digits, dash and underscore allowed", name)
		}
	}
	return nil
}

func (p *Manager) dir(name string) string {
	return filepath.Join(p.profilesDir, name)
}

// Save captures every tracked file in the manifest into a new profile.
// An existing profile with the same name is never overwritten.
func (p *Manager) Save(name string, m *manifest.Manifest) (SaveResult, error) {
	var result SaveResult

	if err := ValidateName(name); err != nil {
		return result, err
	}

	profileDir := p.dir(name)
	if _, err := os.Stat(profileDir); err == nil {
		return result, errors.Newf(errors.ErrProfileExists, "profile %q already exists", name)
	}

	filesDir := filepath.Join(profileDir, filesDirName)
	if err := os.MkdirAll(filesDir, 0700); err != nil {
		return result, errors.Wrapf(err, errors.ErrIoFailure, "failed to create profile directory %s", profileDir)
	}

	meta := Meta{
		Name:      name,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Tools:     make(map[string]manifest.ToolEntry),
		Checksums: make(map[string]string),
	}

	for _, tool := range m.ToolNames() {
		entry, err := m.Get(tool)
		if err != nil {
			continue
		}
		meta.Tools[tool] = entry

		for _, configPath := range entry.ConfigPaths {
			abs := paths.ExpandTilde(configPath)
			info, err := os.Stat(abs)
			if err != nil {
				continue
			}

			if info.IsDir() {
				n, err := p.saveDir(abs, tool, filesDir, meta.Checksums)
				if err != nil {
					return result, err
				}
				result.Files += n
				continue
			}

			key := tool + "/" + filepath.Base(abs)
			hash, err := p.saveFile(abs, filepath.Join(filesDir, tool, filepath.Base(abs)))
			if err != nil {
				return result, err
			}
			meta.Checksums[key] = hash
			result.Files++
		}
	}
	result.Tools = len(meta.Tools)

	data, err := toml.Marshal(meta)
	if err != nil {
		return result, errors.Wrap(err, errors.ErrInternal, "failed to encode profile metadata")
	}
	if err := os.WriteFile(filepath.Join(profileDir, metaFileName), data, 0600); err != nil {
		return result, errors.Wrap(err, errors.ErrIoFailure, "failed to write profile metadata")
	}

	p.logger.Info().
		Str("profile", name).
		Int("tools", result.Tools).
		Int("files", result.Files).
		Msg("profile saved")
	return result, nil
}

// saveDir copies a config directory's regular files, one level deep.
func (p *Manager) saveDir(absDir, tool, filesDir string, checksums map[string]string) (int, error) {
	entries, err := os.ReadDir(absDir)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrIoFailure, "failed to read %s", absDir)
	}

	dirName := filepath.Base(absDir)
	count := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		src := filepath.Join(absDir, entry.Name())
		dest := filepath.Join(filesDir, tool, dirName, entry.Name())
		hash, err := p.saveFile(src, dest)
		if err != nil {
			return count, err
		}
		checksums[tool+"/"+dirName+"/"+entry.Name()] = hash
		count++
	}
	return count, nil
}

// saveFile copies src into the profile and returns its digest.
func (p *Manager) saveFile(src, dest string) (string, error) {
	content, err := os.ReadFile(src)
	if err != nil {
		return "", errors.Wrapf(err, errors.ErrIoFailure, "failed to read %s", src)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0700); err != nil {
		return "", errors.Wrapf(err, errors.ErrIoFailure, "failed to create %s", filepath.Dir(dest))
	}
	if err := os.WriteFile(dest, content, 0600); err != nil {
		return "", errors.Wrapf(err, errors.ErrIoFailure, "failed to write %s", dest)
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:]), nil
}

// readMeta loads and parses a profile's metadata.
func (p *Manager) readMeta(name string) (Meta, error) {
	var meta Meta
	data, err := os.ReadFile(filepath.Join(p.dir(name), metaFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return meta, errors.Newf(errors.ErrProfileNotFound, "profile %q not found", name)
		}
		return meta, errors.Wrapf(err, errors.ErrIoFailure, "failed to read profile %q", name)
	}
	if err := toml.Unmarshal(data, &meta); err != nil {
		return meta, errors.Wrapf(err, errors.ErrInvalidInput, "failed to parse metadata for profile %q", name)
	}
	return meta, nil
}

// Load restores a profile's files to their live paths through the
// writer. Tools not yet in the manifest are merged in when addUntracked
// is set and skipped otherwise; the caller persists the manifest. Under
// dry-run the returned outcomes form the plan and nothing is written.
func (p *Manager) Load(name string, m *manifest.Manifest, addUntracked, dryRun bool) (LoadResult, error) {
	var result LoadResult

	if err := ValidateName(name); err != nil {
		return result, err
	}
	meta, err := p.readMeta(name)
	if err != nil {
		return result, err
	}

	filesDir := filepath.Join(p.dir(name), filesDirName)

	toolNames := make([]string, 0, len(meta.Tools))
	for tool := range meta.Tools {
		toolNames = append(toolNames, tool)
	}
	sort.Strings(toolNames)

	for _, tool := range toolNames {
		entry := meta.Tools[tool]

		if !m.Has(tool) {
			if !addUntracked {
				result.ToolsSkipped = append(result.ToolsSkipped, tool)
				continue
			}
			if err := m.Add(tool, entry.Tier, entry.ConfigPaths); err != nil {
				return result, err
			}
			result.ToolsAdded = append(result.ToolsAdded, tool)
		}

		for _, configPath := range entry.ConfigPaths {
			target := paths.ExpandTilde(configPath)
			if err := paths.CheckPathSafety(target); err != nil {
				return result, err
			}

			for _, source := range p.sourcesFor(filesDir, tool, target) {
				content, err := os.ReadFile(source.savedPath)
				if err != nil {
					continue
				}
				out, err := p.writer.WriteFile(source.livePath, content, dryRun)
				if err != nil {
					return result, err
				}
				result.Outcomes = append(result.Outcomes, out)
				result.Restored++
				if out.Action == writer.ActionBackupReplace {
					result.BackedUp++
				}
			}
		}
	}

	if !dryRun {
		p.logger.Info().
			Str("profile", name).
			Int("restored", result.Restored).
			Int("backed_up", result.BackedUp).
			Strs("tools_added", result.ToolsAdded).
			Msg("profile loaded")
	}
	return result, nil
}

type restoreSource struct {
	savedPath string
	livePath  string
}

// sourcesFor maps a config path back to its saved copies. A file path
// has one candidate; a directory path restores every file saved under
// its directory name.
func (p *Manager) sourcesFor(filesDir, tool, target string) []restoreSource {
	base := filepath.Base(target)

	// Directory layout: files/<tool>/<dirname>/<file>
	dirCopy := filepath.Join(filesDir, tool, base)
	if info, err := os.Stat(dirCopy); err == nil && info.IsDir() {
		entries, err := os.ReadDir(dirCopy)
		if err != nil {
			return nil
		}
		var sources []restoreSource
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				sources = append(sources, restoreSource{
					savedPath: filepath.Join(dirCopy, entry.Name()),
					livePath:  filepath.Join(target, entry.Name()),
				})
			}
		}
		sort.Slice(sources, func(i, j int) bool { return sources[i].savedPath < sources[j].savedPath })
		return sources
	}

	saved := filepath.Join(filesDir, tool, base)
	if info, err := os.Stat(saved); err == nil && info.Mode().IsRegular() {
		return []restoreSource{{savedPath: saved, livePath: target}}
	}
	return nil
}

// List returns summaries of every saved profile, sorted by name.
func (p *Manager) List() ([]Summary, error) {
	entries, err := os.ReadDir(p.profilesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrIoFailure, "failed to read profiles directory")
	}

	var summaries []Summary
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := p.readMeta(entry.Name())
		if err != nil {
			continue
		}
		summaries = append(summaries, Summary{
			Name:      meta.Name,
			CreatedAt: meta.CreatedAt,
			ToolCount: len(meta.Tools),
			FileCount: len(meta.Checksums),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Name < summaries[j].Name })
	return summaries, nil
}

// Delete removes a saved profile. The live files it restored are not
// touched.
func (p *Manager) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	profileDir := p.dir(name)
	if _, err := os.Stat(profileDir); err != nil {
		return errors.Newf(errors.ErrProfileNotFound, "profile %q not found", name)
	}
	if err := os.RemoveAll(profileDir); err != nil {
		return errors.Wrapf(err, errors.ErrIoFailure, "failed to delete profile %q", name)
	}
	p.logger.Info().Str("profile", name).Msg("profile deleted")
	return nil
}
