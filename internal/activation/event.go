package activation

import "github.com/agalue/lva/internal/config"

// EventKind tags the variant carried by an Event. Triggers, vision replies,
// VAD signals, timeouts, manual commands, configuration mutations, and mute
// toggles all flow through the same serialized queue (spec section 4.4).
type EventKind int

const (
	// EventTrigger carries a TriggerSource (WakeWord, Distance, Manual).
	EventTrigger EventKind = iota
	// EventVisionVerdict carries an AttentionVerdict from the vision client.
	EventVisionVerdict
	// EventVisionGlanceTimeout fires when the 1.2s glance timer elapses
	// without a matching verdict arriving first.
	EventVisionGlanceTimeout
	// EventSessionProcessing signals the hub session moved to "processing".
	EventSessionProcessing
	// EventSessionSpeaking signals the hub session moved to "speaking".
	EventSessionSpeaking
	// EventPlaybackComplete signals audio playback finished.
	EventPlaybackComplete
	// EventVADStart signals local VAD detected speech onset during ENGAGED.
	EventVADStart
	// EventVADWindowElapsed fires when engaged_vad_window_s elapses with no
	// VAD start.
	EventVADWindowElapsed
	// EventManualCancel is a Manual{cancel} command (handled distinctly from
	// other Manual reasons since it applies in every state).
	EventManualCancel
	// EventMuteToggle carries the desired MUTED overlay value.
	EventMuteToggle
	// EventConfigMutation carries a single configuration key/value change
	// originating from a hub entity write.
	EventConfigMutation
)

// priority implements the Manual > WakeWord > Distance tie-break from spec
// section 4.4. Non-trigger events sort before every trigger, with Manual
// cancel ahead of all of them; the drain sort is stable within a rank.
func (e Event) priority() int {
	if e.Kind != EventTrigger {
		// Non-trigger events are control/status signals; process them
		// before any trigger so a cancel always pre-empts a fresh trigger
		// observed in the same drain.
		if e.Kind == EventManualCancel {
			return -1
		}
		return 0
	}
	switch e.Trigger.Kind {
	case TriggerManual:
		return 1
	case TriggerWakeWord:
		return 2
	case TriggerDistance:
		return 3
	default:
		return 4
	}
}

// Event is the single envelope type flowing through Machine's event queue.
type Event struct {
	Kind EventKind

	Trigger TriggerSource    // EventTrigger
	Verdict AttentionVerdict // EventVisionVerdict

	Muted bool // EventMuteToggle

	// ConfigMutate applies a single hub-entity-driven configuration change.
	// Carrying the mutation as a closure (built by internal/hub at the
	// entity-write site, which already knows the concrete field) avoids a
	// string-keyed reflection dispatch inside the reducer.
	ConfigMutate func(cfg *config.Config)
}
