package prefs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agalue/lva/internal/config"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "preferences.json"))
	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Preferences{}, p)
}

func TestSyncThenLoadRoundTrips(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nested", "preferences.json"))

	cfg := config.DefaultConfig()
	cfg.VisionEnabled = true
	cfg.AttentionRequired = true
	cfg.CustomThreshold = 0.37
	cfg.WakeThresholdPreset = config.PresetCustom

	require.NoError(t, store.Sync(cfg))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.True(t, loaded.VisionEnabled)
	assert.True(t, loaded.AttentionRequired)
	assert.Equal(t, float32(0.37), loaded.CustomThreshold)
	assert.Equal(t, config.PresetCustom, loaded.WakeThresholdPreset)
}

func TestApplyToOverlaysTrackedFieldsOnly(t *testing.T) {
	cfg := config.DefaultConfig()
	originalIPCDir := cfg.IPCDir

	p := Preferences{
		WakeThresholdPreset: config.PresetStrict,
		VisionEnabled:       true,
	}
	p.ApplyTo(cfg)

	assert.Equal(t, config.PresetStrict, cfg.WakeThresholdPreset)
	assert.True(t, cfg.VisionEnabled)
	assert.Equal(t, originalIPCDir, cfg.IPCDir, "ApplyTo must not touch fields prefs doesn't track")
}

func TestSyncLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "preferences.json"))

	require.NoError(t, store.Sync(config.DefaultConfig()))

	entries, err := filepathGlobTmp(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a successful Sync must not leave .prefs-*.tmp files around")
}

func filepathGlobTmp(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, ".prefs-*.tmp"))
}
