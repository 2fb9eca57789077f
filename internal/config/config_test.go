package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadMergesOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"distance_activation": true, "hub_port": 7000}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.DistanceActivation)
	assert.Equal(t, 7000, cfg.HubPort)
	// Untouched fields keep their default.
	assert.Equal(t, DefaultConfig().VisionCooldownS, cfg.VisionCooldownS)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"vision_cooldown_s": 100}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadUnknownKeyIsNonFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"totally_unknown_field": 1}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestEffectiveWakeThresholdPresets(t *testing.T) {
	cfg := DefaultConfig()

	cfg.WakeThresholdPreset = PresetModelDefault
	assert.Equal(t, float32(0.42), cfg.EffectiveWakeThreshold(0.42))

	cfg.WakeThresholdPreset = PresetStrict
	assert.Equal(t, float32(0.60), cfg.EffectiveWakeThreshold(0.42))

	cfg.WakeThresholdPreset = PresetCustom
	cfg.CustomThreshold = 0.33
	assert.Equal(t, float32(0.33), cfg.EffectiveWakeThreshold(0.42))
}

func TestValidateRejectsBadDistanceSensorModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DistanceSensorModel = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestValidateAcceptsDefaults(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestResolvePathHonorsEnvOverride(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "/tmp/custom-lva-config.json")
	assert.Equal(t, "/tmp/custom-lva-config.json", ResolvePath())
}

func TestResolvePathFallsBackToDefault(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	assert.Equal(t, DefaultConfigPath, ResolvePath())
}
