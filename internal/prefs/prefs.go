// Package prefs persists the subset of configuration that survives a
// restart to disk, satisfying invariant I3 ("preferences on disk are
// never partial") via a temp-file-then-rename write, the same atomic-write
// idiom the teacher's config package documents for its own settings file.
package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agalue/lva/internal/config"
)

// Preferences is the persisted subset of config.Config: everything a hub
// entity write can change, so a restart resumes with the last-known
// settings instead of silently reverting to defaults.
type Preferences struct {
	WakeThresholdPreset config.WakeThresholdPreset `json:"wake_threshold_preset"`
	CustomThreshold     float32                    `json:"custom_threshold"`
	VisionEnabled       bool                       `json:"vision_enabled"`
	AttentionRequired   bool                       `json:"attention_required"`
	VisionCooldownS     float64                    `json:"vision_cooldown_s"`
	VisionMinConfidence float32                    `json:"vision_min_confidence"`
	EngagedVADWindowS   float64                    `json:"engaged_vad_window_s"`
	EnableThinkingSound bool                       `json:"enable_thinking_sound"`
}

func fromConfig(cfg *config.Config) Preferences {
	return Preferences{
		WakeThresholdPreset: cfg.WakeThresholdPreset,
		CustomThreshold:     cfg.CustomThreshold,
		VisionEnabled:       cfg.VisionEnabled,
		AttentionRequired:   cfg.AttentionRequired,
		VisionCooldownS:     cfg.VisionCooldownS,
		VisionMinConfidence: cfg.VisionMinConfidence,
		EngagedVADWindowS:   cfg.EngagedVADWindowS,
		EnableThinkingSound: cfg.EnableThinkingSound,
	}
}

// ApplyTo overlays p onto cfg, leaving fields prefs doesn't track (audio
// device paths, IPC dir, etc) at their config-file/default values.
func (p Preferences) ApplyTo(cfg *config.Config) {
	cfg.WakeThresholdPreset = p.WakeThresholdPreset
	cfg.CustomThreshold = p.CustomThreshold
	cfg.VisionEnabled = p.VisionEnabled
	cfg.AttentionRequired = p.AttentionRequired
	cfg.VisionCooldownS = p.VisionCooldownS
	cfg.VisionMinConfidence = p.VisionMinConfidence
	cfg.EngagedVADWindowS = p.EngagedVADWindowS
	cfg.EnableThinkingSound = p.EnableThinkingSound
}

// Store reads and writes a Preferences file atomically.
type Store struct {
	path string
}

// NewStore constructs a Store at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the preferences file, returning a zero Preferences and nil
// error if the file does not exist (first run).
func (s *Store) Load() (Preferences, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Preferences{}, nil
		}
		return Preferences{}, fmt.Errorf("prefs: read %s: %w", s.path, err)
	}
	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("prefs: decode %s: %w", s.path, err)
	}
	return p, nil
}

// Sync implements activation.PreferencesSyncer: writes cfg's persisted
// subset to disk via a temp file + rename so a crash mid-write never
// leaves a partially-written preferences file.
func (s *Store) Sync(cfg *config.Config) error {
	return s.write(fromConfig(cfg))
}

func (s *Store) write(p Preferences) error {
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("prefs: encode: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("prefs: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.tmp")
	if err != nil {
		return fmt.Errorf("prefs: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("prefs: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("prefs: fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("prefs: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("prefs: rename into place: %w", err)
	}
	return nil
}
