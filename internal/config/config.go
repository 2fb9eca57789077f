// Package config provides configuration loading, validation, and
// hot-mutation for the voice assistant. The teacher's flag-based
// DefaultConfig/ParseFlags/validate shape is kept, but the primary source of
// truth is now a JSON file (spec section 6) rather than CLI flags; flags
// remain available for process-level overrides.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

// WakeThresholdPreset names a wake-word threshold preset (spec section 3).
type WakeThresholdPreset string

const (
	PresetModelDefault  WakeThresholdPreset = "ModelDefault"
	PresetStrict        WakeThresholdPreset = "Strict"
	PresetDefault       WakeThresholdPreset = "Default"
	PresetSensitive     WakeThresholdPreset = "Sensitive"
	PresetVerySensitive WakeThresholdPreset = "VerySensitive"
	PresetCustom        WakeThresholdPreset = "Custom"
)

// presetValues maps a fixed preset to its threshold. ModelDefault and
// Custom are resolved elsewhere (model's own default, or CustomThreshold).
var presetValues = map[WakeThresholdPreset]float32{
	PresetStrict:        0.60,
	PresetDefault:       0.50,
	PresetSensitive:     0.45,
	PresetVerySensitive: 0.40,
}

// DistanceSensorModel names which VL53L0X/VL53L1X variant is configured.
type DistanceSensorModel string

const (
	SensorL0X DistanceSensorModel = "l0x"
	SensorL1X DistanceSensorModel = "l1x"
)

// Config is the recognized configuration surface from spec section 3.
// Unknown JSON keys are ignored with a warning; missing keys fall back to
// DefaultConfig's values.
type Config struct {
	WakeWordDetection bool `json:"wake_word_detection"`

	DistanceActivation            bool                `json:"distance_activation"`
	DistanceActivationThresholdMM int                 `json:"distance_activation_threshold_mm"`
	DistanceSensorModel           DistanceSensorModel `json:"distance_sensor_model"`

	VisionEnabled       bool    `json:"vision_enabled"`
	AttentionRequired   bool    `json:"attention_required"`
	VisionCooldownS     float64 `json:"vision_cooldown_s"`
	VisionMinConfidence float32 `json:"vision_min_confidence"`
	// VisionFallbackOnError governs the VISION_GLANCE timeout/error branch
	// of spec's transition table: when true, a timeout or vision error
	// proceeds to ENGAGED (distance-only fallback) instead of IDLE.
	VisionFallbackOnError bool `json:"vision_fallback_on_error"`

	EngagedVADWindowS float64 `json:"engaged_vad_window_s"`

	WakeThresholdPreset WakeThresholdPreset `json:"wake_threshold_preset"`
	CustomThreshold     float32             `json:"custom_threshold"`

	EnableThinkingSound bool `json:"enable_thinking_sound"`

	WakeModelDir   string `json:"wake_model_dir"`
	SoundThinking  string `json:"sound_thinking_path"`
	AudioInputDev  string `json:"audio_input_device"`
	AudioOutputDev string `json:"audio_output_device"`

	HubHost string `json:"hub_host"`
	HubPort int    `json:"hub_port"`

	GPIOEnabled  bool   `json:"gpio_enabled"`
	GPIOChip     string `json:"gpio_chip"`
	GPIOTouch    int    `json:"gpio_touch_line"`
	GPIOEncoderA int    `json:"gpio_encoder_a_line"`
	GPIOEncoderB int    `json:"gpio_encoder_b_line"`

	IPCDir string `json:"ipc_dir"`
}

// EffectiveWakeThreshold resolves the active threshold given the configured
// preset, falling back to modelDefault when the preset is ModelDefault.
func (c *Config) EffectiveWakeThreshold(modelDefault float32) float32 {
	switch c.WakeThresholdPreset {
	case PresetModelDefault, "":
		return modelDefault
	case PresetCustom:
		return c.CustomThreshold
	default:
		if v, ok := presetValues[c.WakeThresholdPreset]; ok {
			return v
		}
		return modelDefault
	}
}

// DefaultConfig returns a configuration with sensible defaults, following
// the teacher's DefaultConfig() shape.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	if homeDir == "" {
		homeDir = "/home/user"
	}
	base := filepath.Join(homeDir, "linux-voice-assistant")

	return &Config{
		WakeWordDetection: true,

		DistanceActivation:            false,
		DistanceActivationThresholdMM: 150,
		DistanceSensorModel:           SensorL0X,

		VisionEnabled:         false,
		AttentionRequired:     false,
		VisionCooldownS:       4.0,
		VisionMinConfidence:   0.60,
		VisionFallbackOnError: true,

		EngagedVADWindowS: 2.5,

		WakeThresholdPreset: PresetDefault,
		CustomThreshold:     0.50,

		EnableThinkingSound: true,

		WakeModelDir:   filepath.Join(base, "wake-models"),
		SoundThinking:  filepath.Join(base, "sounds", "thinking.wav"),
		AudioInputDev:  "",
		AudioOutputDev: "",

		HubHost: "",
		HubPort: 6053,

		GPIOEnabled:  false,
		GPIOChip:     "gpiochip0",
		GPIOTouch:    17,
		GPIOEncoderA: 27,
		GPIOEncoderB: 22,

		IPCDir: "/tmp/lva-ipc",
	}
}

// DefaultConfigPath is spec section 6's documented default config location.
const DefaultConfigPath = "/home/user/linux-voice-assistant/config.json"

// ConfigPathEnvVar is the environment override per spec section 6.
const ConfigPathEnvVar = "LVA_CONFIG_PATH"

// ResolvePath returns the config file path: LVA_CONFIG_PATH if set, else
// DefaultConfigPath.
func ResolvePath() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	return DefaultConfigPath
}

// Load reads and merges a JSON configuration file onto DefaultConfig().
// Unknown keys are ignored with a warning printed to stderr (matching the
// teacher's pattern of non-fatal warnings during setup); missing keys keep
// their default value. A missing file is not an error — Load returns
// defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	known := knownKeys()
	for k := range raw {
		if !known[k] {
			fmt.Fprintf(os.Stderr, "config: warning: unknown key %q ignored\n", k)
		}
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func knownKeys() map[string]bool {
	t := jsonFieldNames(&Config{})
	m := make(map[string]bool, len(t))
	for _, k := range t {
		m[k] = true
	}
	return m
}

// Validate enforces the range/enum invariants from spec section 3. Refuses
// to run (returns an error) on an invalid value, per spec section 7's
// Configuration error policy for startup-time validation.
func (c *Config) Validate() error {
	if c.DistanceActivationThresholdMM < 0 {
		return fmt.Errorf("config: distance_activation_threshold_mm must be >= 0")
	}
	if c.DistanceSensorModel != SensorL0X && c.DistanceSensorModel != SensorL1X {
		return fmt.Errorf("config: distance_sensor_model must be %q or %q", SensorL0X, SensorL1X)
	}
	if c.VisionCooldownS < 0.5 || c.VisionCooldownS > 15.0 {
		return fmt.Errorf("config: vision_cooldown_s must be in [0.5, 15.0]")
	}
	if c.VisionMinConfidence < 0 || c.VisionMinConfidence > 1 {
		return fmt.Errorf("config: vision_min_confidence must be in [0,1]")
	}
	if c.EngagedVADWindowS < 0.5 || c.EngagedVADWindowS > 10.0 {
		return fmt.Errorf("config: engaged_vad_window_s must be in [0.5, 10.0]")
	}
	switch c.WakeThresholdPreset {
	case PresetModelDefault, PresetStrict, PresetDefault, PresetSensitive, PresetVerySensitive, PresetCustom, "":
	default:
		return fmt.Errorf("config: invalid wake_threshold_preset %q", c.WakeThresholdPreset)
	}
	if c.CustomThreshold < 0.10 || c.CustomThreshold > 0.95 {
		return fmt.Errorf("config: custom_threshold must be in [0.10, 0.95]")
	}
	if c.HubPort <= 0 || c.HubPort > 65535 {
		return fmt.Errorf("config: hub_port out of range")
	}
	return nil
}

// Flags registers process-level overrides on fs, following the teacher's
// ParseFlags pattern. Call after Load so flags win over file values.
func Flags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.IPCDir, "ipc-dir", cfg.IPCDir, "Directory containing the UNIX-domain IPC sockets")
	fs.StringVar(&cfg.HubHost, "hub-host", cfg.HubHost, "Home-automation hub hostname or IP")
	fs.IntVar(&cfg.HubPort, "hub-port", cfg.HubPort, "Home-automation hub native API port")
	fs.BoolVar(&cfg.GPIOEnabled, "gpio", cfg.GPIOEnabled, "Enable front-panel GPIO hardware")
}
