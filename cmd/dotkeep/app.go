package main

import (
	"github.com/arthur-debert/dotkeep/pkg/manifest"
	"github.com/arthur-debert/dotkeep/pkg/paths"
	"github.com/arthur-debert/dotkeep/pkg/snapshot"
	"github.com/arthur-debert/dotkeep/pkg/store"
	"github.com/arthur-debert/dotkeep/pkg/writer"
)

// app bundles the wired-up engines commands operate on. Each command
// opens what it needs and closes the store when done.
type app struct {
	paths    paths.Paths
	manifest *manifest.Manifest
	store    *store.Store
	writer   *writer.Writer
	engine   *snapshot.Engine
}

// openApp loads the manifest and opens the store. Fails with
// NotInitialized when `dotkeep init` has not run yet.
func openApp() (*app, error) {
	p := paths.New()

	m, err := manifest.Load(p.ManifestPath())
	if err != nil {
		return nil, err
	}

	s, err := store.Open(p.DatabasePath())
	if err != nil {
		return nil, err
	}

	w := writer.New(p.BackupDir())
	return &app{
		paths:    p,
		manifest: m,
		store:    s,
		writer:   w,
		engine:   snapshot.New(s, w),
	}, nil
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}
