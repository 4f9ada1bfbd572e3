// Package modules holds the built-in tool catalog. Tier 1 tools ship as
// embedded TOML definitions; anything else is tracked as a tier 2 tool
// with caller-supplied paths. The core engines treat config paths as
// opaque; only this package knows what a tool's files usually are.
package modules

import (
	"embed"
	"fmt"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

//go:embed data/*.toml
var builtinFS embed.FS

// Definition describes one supported tool.
type Definition struct {
	Metadata Metadata `toml:"metadata"`
}

// Metadata is the per-tool descriptor block.
type Metadata struct {
	Name        string `toml:"name"`
	DisplayName string `toml:"display_name"`
	Description string `toml:"description"`
	Homepage    string `toml:"homepage"`

	// ConfigPaths are checked in priority order; tilde forms are kept
	// as-is and expanded by callers
	ConfigPaths []string `toml:"config_paths"`

	// DetectCommand checks whether the tool is installed
	DetectCommand string `toml:"detect_command"`

	// ReloadCommand reloads the tool's config; {config_path} is a
	// placeholder for the deployed file
	ReloadCommand string `toml:"reload_command,omitempty"`

	ConfigFormat     string `toml:"config_format"`
	PluginsSupported bool   `toml:"plugins_supported"`
	PluginDir        string `toml:"plugin_dir,omitempty"`
}

var (
	catalogOnce sync.Once
	catalog     map[string]Definition
)

func loadCatalog() {
	catalog = make(map[string]Definition)
	entries, err := builtinFS.ReadDir("data")
	if err != nil {
		panic(fmt.Sprintf("embedded module catalog unreadable: %v", err))
	}
	for _, entry := range entries {
		data, err := builtinFS.ReadFile("data/" + entry.Name())
		if err != nil {
			panic(fmt.Sprintf("embedded module %s unreadable: %v", entry.Name(), err))
		}
		var def Definition
		if err := toml.Unmarshal(data, &def); err != nil {
			panic(fmt.Sprintf("embedded module %s malformed: %v", entry.Name(), err))
		}
		catalog[def.Metadata.Name] = def
	}
}

// Get returns the built-in definition for name, if one exists.
func Get(name string) (Definition, bool) {
	catalogOnce.Do(loadCatalog)
	def, ok := catalog[name]
	return def, ok
}

// Names returns the built-in tool names in sorted order.
func Names() []string {
	catalogOnce.Do(loadCatalog)
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TierFor reports the support tier for a tool name: 1 for catalog tools,
// 2 for everything else.
func TierFor(name string) int {
	if _, ok := Get(name); ok {
		return 1
	}
	return 2
}
