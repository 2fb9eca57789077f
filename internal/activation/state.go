// Package activation implements the activation pipeline and session state
// machine: the subsystem that ingests wake-word, distance, and manual
// triggers, gates them through an attention check, drives a hub
// conversation session, and coordinates audio capture/playback.
package activation

import "fmt"

// State is the primary session state. Exactly one State is active at a
// time; MUTED is tracked independently on Machine.
type State int

const (
	StateIdle State = iota
	StateProxVerify
	StateVisionGlance
	StateEngaged
	StateListening
	StateProcessing
	StateSpeaking
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateProxVerify:
		return "PROX_VERIFY"
	case StateVisionGlance:
		return "VISION_GLANCE"
	case StateEngaged:
		return "ENGAGED"
	case StateListening:
		return "LISTENING"
	case StateProcessing:
		return "PROCESSING"
	case StateSpeaking:
		return "SPEAKING"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// TriggerKind tags the variant carried by a TriggerSource.
type TriggerKind int

const (
	TriggerWakeWord TriggerKind = iota
	TriggerDistance
	TriggerManual
)

// TriggerSource is the tagged union of {WakeWord, Distance, Manual}
// described in spec section 3.
type TriggerSource struct {
	Kind TriggerKind

	// WakeWord fields.
	ModelID string
	Score   float32

	// Distance fields.
	DistanceMM int

	// Manual fields.
	Reason string // e.g. "wake", "cancel"
}

// AttentionKind tags the variant carried by an AttentionVerdict.
type AttentionKind int

const (
	AttentionFaceToward AttentionKind = iota
	AttentionFaceAway
	AttentionNoFace
	AttentionError
)

// AttentionVerdict is the tagged union of {FaceToward, FaceAway, NoFace,
// Error} returned by the vision daemon.
type AttentionVerdict struct {
	Kind       AttentionKind
	Confidence float32 // in [0,1], meaningful for FaceToward
	Message    string  // meaningful for Error
	LatencyMs  float64 // glance round-trip time, 0 for a synthesized local Error
}
