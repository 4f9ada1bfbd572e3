// pkg/logging/logging_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: Environment variables (XDG_STATE_HOME)
// PURPOSE: Test logger setup and component logger creation

package logging

import (
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setStateHome points the XDG state directory at a temp dir. xdg caches
// its base directories at init, so a reload is needed after Setenv.
func setStateHome(t *testing.T) string {
	t.Helper()
	stateHome := t.TempDir()
	t.Cleanup(xdg.Reload) // runs after Setenv's restore, dropping the temp dir
	t.Setenv("XDG_STATE_HOME", stateHome)
	xdg.Reload()
	return stateHome
}

func TestSetupLoggerVerbosityLevels(t *testing.T) {
	setStateHome(t)

	tests := []struct {
		verbosity int
		want      zerolog.Level
	}{
		{0, zerolog.WarnLevel},
		{1, zerolog.InfoLevel},
		{2, zerolog.DebugLevel},
		{3, zerolog.TraceLevel},
		{9, zerolog.TraceLevel},
	}

	for _, tt := range tests {
		SetupLogger(tt.verbosity)
		assert.Equal(t, tt.want, zerolog.GlobalLevel(), "verbosity %d", tt.verbosity)
	}
}

func TestSetupLoggerCreatesLogFile(t *testing.T) {
	stateHome := setStateHome(t)

	SetupLogger(1)

	logPath := filepath.Join(stateHome, "dotkeep", "dotkeep.log")
	assert.FileExists(t, logPath)
}

func TestGetLogger(t *testing.T) {
	setStateHome(t)
	SetupLogger(0)

	logger := GetLogger("store")
	require.NotNil(t, logger)

	// Should not panic when logging
	logger.Debug().Str("hash", "abc123").Msg("test message")
}
