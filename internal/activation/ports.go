package activation

import "context"

// SessionController is the subset of the hub conversation session the state
// machine drives. Implemented by internal/hub.Session.
type SessionController interface {
	// Start opens (or resumes) a conversation turn. useVAD is true on the
	// ENGAGED path and for a Manual wake, and false for a WakeWord wake.
	Start(ctx context.Context, useVAD bool) error
	// Cancel tears down any outstanding request/stream and is always safe
	// to call even if nothing is active.
	Cancel()
}

// VisionRequester is the subset of the vision client the state machine
// drives. Implemented by internal/vision.Client.
type VisionRequester interface {
	// RequestGlance starts (or continues, if a request is already
	// in-flight — which must never happen per invariant I1) a single
	// vision glance request. The result is delivered asynchronously via
	// Machine.Enqueue(EventVisionVerdict) by the caller that owns the
	// VisionRequester, not returned here.
	RequestGlance(ctx context.Context)
	// Cancel drops any outstanding reply without delivering it.
	Cancel()
}

// PlaybackController starts the configured thinking sound and stops any
// current utterance playback. Implemented by internal/audio.PlaybackController.
type PlaybackController interface {
	PlayThinkingSound()
	StopPlayback()
}

// Metrics is the subset of internal/metrics.Counters the state machine
// touches directly.
type Metrics interface {
	IncVisionRequests()
	IncVisionSuccess()
	IncVisionTimeout()
	IncFalseTriggersPrevented()
	IncStateTransition()
	ObserveVisionLatencyMs(ms float64)
}
