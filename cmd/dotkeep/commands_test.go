// cmd/dotkeep/commands_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: Real filesystem (temp HOME)
// PURPOSE: Test adoption of config paths into the managed directory and
// that directory-tracked tools deploy as directory symlinks

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/dotkeep/pkg/deploy"
	"github.com/arthur-debert/dotkeep/pkg/testutil"
	"github.com/arthur-debert/dotkeep/pkg/writer"
)

func TestAdoptConfigsFile(t *testing.T) {
	home := testutil.TempHome(t)
	testutil.WriteHome(t, home, ".tmux.conf", "set -g mouse on\n")

	configsDir := filepath.Join(home, "configs")
	require.NoError(t, adoptConfigs(configsDir, "tmux", []string{"~/.tmux.conf"}))

	content, err := os.ReadFile(filepath.Join(configsDir, "tmux", ".tmux.conf"))
	require.NoError(t, err)
	assert.Equal(t, "set -g mouse on\n", string(content))
}

func TestAdoptConfigsDirectory(t *testing.T) {
	home := testutil.TempHome(t)
	testutil.WriteHome(t, home, ".config/nvim/init.lua", "vim.o.number = true\n")
	testutil.WriteHome(t, home, ".config/nvim/keymaps.lua", "-- maps\n")
	// Nested directories are not descended into
	testutil.WriteHome(t, home, ".config/nvim/lua/plugins.lua", "return {}\n")

	configsDir := filepath.Join(home, "configs")
	require.NoError(t, adoptConfigs(configsDir, "nvim", []string{"~/.config/nvim"}))

	managed := filepath.Join(configsDir, "nvim", "nvim")
	content, err := os.ReadFile(filepath.Join(managed, "init.lua"))
	require.NoError(t, err)
	assert.Equal(t, "vim.o.number = true\n", string(content))
	assert.FileExists(t, filepath.Join(managed, "keymaps.lua"))
	assert.NoFileExists(t, filepath.Join(managed, "lua", "plugins.lua"))
}

func TestAdoptConfigsMissingPathIgnored(t *testing.T) {
	home := testutil.TempHome(t)

	configsDir := filepath.Join(home, "configs")
	require.NoError(t, adoptConfigs(configsDir, "vim", []string{"~/.vimrc"}))

	assert.NoDirExists(t, filepath.Join(configsDir, "vim"))
}

func TestAdoptedDirectoryDeploys(t *testing.T) {
	home := testutil.TempHome(t)
	testutil.WriteHome(t, home, ".config/nvim/init.lua", "vim.o.number = true\n")

	configsDir := filepath.Join(home, "configs")
	require.NoError(t, adoptConfigs(configsDir, "nvim", []string{"~/.config/nvim"}))

	pairs := deploy.PairsForTool(configsDir, "nvim", []string{"~/.config/nvim"})
	engine := deploy.New(writer.New(filepath.Join(home, ".backups")))

	result, err := engine.Deploy(pairs, false)
	require.NoError(t, err)

	// The live directory existed, so it is backed up and replaced by a
	// symlink to the managed copy, not skipped
	assert.Zero(t, result.Skipped)
	assert.Equal(t, 1, result.BackedUp)

	target := filepath.Join(home, ".config", "nvim")
	dest, err := os.Readlink(target)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(configsDir, "nvim", "nvim"), dest)

	content, err := os.ReadFile(filepath.Join(target, "init.lua"))
	require.NoError(t, err)
	assert.Equal(t, "vim.o.number = true\n", string(content))
}
