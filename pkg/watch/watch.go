// Package watch runs the polling loop that auto-snapshots tracked files
// when they change. Polling is deliberate: a 2-second interval over a
// handful of dotfiles costs nothing, survives editors that replace files
// by rename, and needs no platform-specific watch machinery. A change is
// only recorded once the content hash differs; an mtime bump with
// identical bytes is a non-event.
package watch

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/arthur-debert/dotkeep/pkg/logging"
	"github.com/arthur-debert/dotkeep/pkg/manifest"
	"github.com/arthur-debert/dotkeep/pkg/paths"
	"github.com/arthur-debert/dotkeep/pkg/snapshot"
	"github.com/arthur-debert/dotkeep/pkg/store"
)

// DefaultInterval is the polling period.
const DefaultInterval = 2 * time.Second

// autoMessage tags snapshots the watcher records.
const autoMessage = "auto-snapshot (watch)"

// Event reports one auto-snapshot taken by the loop.
type Event struct {
	Tool       string
	FilePath   string
	SnapshotID int64
}

// fileState is the per-file poll cache: hashing happens only after the
// mtime moves.
type fileState struct {
	tool    string
	modTime time.Time
	hash    string
	known   bool
}

// Watcher polls tracked files and snapshots changes.
type Watcher struct {
	engine   *snapshot.Engine
	interval time.Duration
	logger   zerolog.Logger

	// states is keyed by absolute path; single-goroutine access only
	states map[string]*fileState

	// OnEvent, when set, receives each auto-snapshot as it happens
	OnEvent func(Event)
}

// New creates a watcher over the snapshot engine.
func New(engine *snapshot.Engine, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Watcher{
		engine:   engine,
		interval: interval,
		logger:   logging.GetLogger("watch"),
		states:   make(map[string]*fileState),
	}
}

// Run polls every tracked file in the manifest until ctx is cancelled.
// The first tick seeds the state cache without snapshotting, so only
// changes made while watching are recorded.
func (w *Watcher) Run(ctx context.Context, m *manifest.Manifest) error {
	w.seed(m)
	w.logger.Info().
		Int("files", len(w.states)).
		Dur("interval", w.interval).
		Msg("watch loop started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("watch loop stopped")
			return ctx.Err()
		case <-ticker.C:
			w.poll()
		}
	}
}

// seed records the current state of every tracked file.
func (w *Watcher) seed(m *manifest.Manifest) {
	for _, tool := range m.ToolNames() {
		entry, err := m.Get(tool)
		if err != nil {
			continue
		}
		for _, configPath := range entry.ConfigPaths {
			abs := paths.ExpandTilde(configPath)
			state := &fileState{tool: tool}
			if info, err := os.Stat(abs); err == nil && !info.IsDir() {
				state.modTime = info.ModTime()
				if content, err := os.ReadFile(abs); err == nil {
					state.hash = store.Hash(content)
					state.known = true
				}
			}
			w.states[abs] = state
		}
	}
}

// poll runs one pass over the watched files.
func (w *Watcher) poll() {
	for abs, state := range w.states {
		info, err := os.Stat(abs)
		if err != nil {
			// Deleted or unreadable; forget the hash so a reappearance
			// counts as a change
			state.known = false
			continue
		}
		if info.IsDir() {
			continue
		}

		modTime := info.ModTime()
		if state.known && modTime.Equal(state.modTime) {
			continue
		}
		state.modTime = modTime

		content, err := os.ReadFile(abs)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", abs).Msg("watched file unreadable")
			continue
		}

		hash := store.Hash(content)
		if state.known && hash == state.hash {
			// mtime moved but bytes did not
			continue
		}
		state.hash = hash
		state.known = true

		id, created, err := w.engine.SnapshotFile(state.tool, abs, autoMessage)
		if err != nil {
			w.logger.Warn().Err(err).Str("path", abs).Msg("auto-snapshot failed")
			continue
		}
		if !created {
			continue
		}

		event := Event{
			Tool:       state.tool,
			FilePath:   paths.ContractTilde(abs),
			SnapshotID: id,
		}
		w.logger.Info().
			Str("tool", event.Tool).
			Str("path", event.FilePath).
			Int64("id", id).
			Msg("auto-snapshot recorded")
		if w.OnEvent != nil {
			w.OnEvent(event)
		}
	}
}

// PollOnce runs a single poll pass. Exposed for tests and for callers
// that drive their own loop.
func (w *Watcher) PollOnce(m *manifest.Manifest) {
	if len(w.states) == 0 {
		w.seed(m)
		return
	}
	w.poll()
}
