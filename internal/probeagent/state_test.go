package probeagent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{APIBase: "https://coordinator.example.com", AccessToken: "lmp_abc123", UserID: 7}

	require.NoError(t, SaveConfig(dir, cfg))

	loaded, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadConfig_MissingFileReportsNotLoggedIn(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadConfig(dir)

	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestStateDir_CreatesDirectory(t *testing.T) {
	dir, err := StateDir()
	require.NoError(t, err)
	assert.DirExists(t, dir)
}

func TestPIDPathAndLogPath_LiveUnderStateDir(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, dir+"/probe.pid", PIDPath(dir))
	assert.Equal(t, dir+"/probe.log", LogPath(dir))
}
