package hub

import (
	"fmt"

	"github.com/agalue/lva/internal/activation"
	"github.com/agalue/lva/internal/config"
	"github.com/agalue/lva/internal/entity"
)

// RegisterEntities wires every hub-exposed entity from spec section 6 into
// registry. Each write-capable entity's WriteHandler enqueues a
// ConfigMutation event rather than touching cfgStore directly, so the
// activation reducer remains the sole writer (invariant I2).
func RegisterEntities(registry *entity.Registry, machine *activation.Machine, cfgStore *config.Store) {
	mutate := func(f func(cfg *config.Config)) {
		machine.Enqueue(activation.Event{Kind: activation.EventConfigMutation, ConfigMutate: f})
	}

	registry.Register(entity.Entity{
		Key: "select.wake_word_threshold_preset", Kind: entity.KindSelect,
		Name: "Wake Word Threshold Preset",
		Options: []string{
			string(config.PresetModelDefault), string(config.PresetStrict), string(config.PresetDefault),
			string(config.PresetSensitive), string(config.PresetVerySensitive), string(config.PresetCustom),
		},
		WriteHandler: func(v any) error {
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("expected string")
			}
			preset := config.WakeThresholdPreset(s)
			mutate(func(cfg *config.Config) { cfg.WakeThresholdPreset = preset })
			return nil
		},
	})

	registry.Register(entity.Entity{
		Key: "number.wake_word_threshold", Kind: entity.KindNumber,
		Name: "Wake Word Threshold", Unit: "%", Min: 10, Max: 95,
		WriteHandler: numberHandler(mutate, 10, 95, func(cfg *config.Config, pct float64) {
			cfg.WakeThresholdPreset = config.PresetCustom
			cfg.CustomThreshold = float32(pct / 100.0)
		}),
	})

	registry.Register(entity.Entity{
		Key: "switch.vision_enabled", Kind: entity.KindSwitch, Name: "Vision Enabled",
		WriteHandler: boolHandler(mutate, func(cfg *config.Config, b bool) { cfg.VisionEnabled = b }),
	})

	registry.Register(entity.Entity{
		Key: "switch.attention_required", Kind: entity.KindSwitch, Name: "Attention Required",
		WriteHandler: boolHandler(mutate, func(cfg *config.Config, b bool) { cfg.AttentionRequired = b }),
	})

	registry.Register(entity.Entity{
		Key: "number.vision_cooldown_s", Kind: entity.KindNumber,
		Name: "Vision Cooldown", Unit: "s", Min: 0.5, Max: 15.0,
		WriteHandler: numberHandler(mutate, 0.5, 15.0, func(cfg *config.Config, v float64) { cfg.VisionCooldownS = v }),
	})

	registry.Register(entity.Entity{
		Key: "number.vision_min_confidence", Kind: entity.KindNumber,
		Name: "Vision Minimum Confidence", Min: 0.0, Max: 1.0,
		WriteHandler: numberHandler(mutate, 0.0, 1.0, func(cfg *config.Config, v float64) { cfg.VisionMinConfidence = float32(v) }),
	})

	registry.Register(entity.Entity{
		Key: "number.engaged_vad_window_s", Kind: entity.KindNumber,
		Name: "Engaged VAD Window", Unit: "s", Min: 0.5, Max: 10.0,
		WriteHandler: numberHandler(mutate, 0.5, 10.0, func(cfg *config.Config, v float64) { cfg.EngagedVADWindowS = v }),
	})

	registry.Register(entity.Entity{
		Key: "switch.enable_thinking_sound", Kind: entity.KindSwitch, Name: "Enable Thinking Sound",
		WriteHandler: boolHandler(mutate, func(cfg *config.Config, b bool) { cfg.EnableThinkingSound = b }),
	})

	// Sensors are read-only; the satellite publishes them via
	// registry.Publish: sensor.distance from core's distance-reading
	// callback, the others from core's activation StateListener.
	registry.Register(entity.Entity{Key: "sensor.distance", Kind: entity.KindSensor, Name: "Distance", Unit: "mm"})
	registry.Register(entity.Entity{Key: "sensor.last_attention_state", Kind: entity.KindSensor, Name: "Last Attention State"})
	registry.Register(entity.Entity{Key: "sensor.last_vision_latency_ms", Kind: entity.KindSensor, Name: "Last Vision Latency", Unit: "ms"})
	registry.Register(entity.Entity{Key: "sensor.last_vision_error", Kind: entity.KindSensor, Name: "Last Vision Error"})
}

func boolHandler(mutate func(func(cfg *config.Config)), set func(cfg *config.Config, b bool)) func(v any) error {
	return func(v any) error {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool")
		}
		mutate(func(cfg *config.Config) { set(cfg, b) })
		return nil
	}
}

func numberHandler(mutate func(func(cfg *config.Config)), min, max float64, set func(cfg *config.Config, v float64)) func(v any) error {
	return func(v any) error {
		f, ok := toFloat(v)
		if !ok {
			return fmt.Errorf("expected number")
		}
		if f < min || f > max {
			return fmt.Errorf("value %v out of range [%v, %v]", f, min, max)
		}
		mutate(func(cfg *config.Config) { set(cfg, f) })
		return nil
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
