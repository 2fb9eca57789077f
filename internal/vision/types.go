// Package vision implements the glance request/reply protocol between core
// and the vision daemon (visd), and visd's own camera+face-orientation
// pipeline. The camera and face detector are external collaborators (spec
// section 1): this package only depends on the narrow Camera/FaceDetector
// capability interfaces, with null implementations for hardware-absent
// deployments.
package vision

import (
	"encoding/json"
	"time"
)

// glanceRequestPayload is VISION_GLANCE_REQUEST's JSON payload.
type glanceRequestPayload struct {
	RequestID string `json:"request_id"`
}

// glanceResultPayload is VISION_GLANCE_RESULT's JSON payload.
type glanceResultPayload struct {
	RequestID  string  `json:"request_id"`
	Verdict    string  `json:"verdict"` // "FaceToward" | "FaceAway" | "NoFace" | "Error"
	Confidence float32 `json:"confidence,omitempty"`
	LatencyMs  float64 `json:"latency_ms"`
	Error      string  `json:"error,omitempty"`
}

func marshalPayload(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}

func decodePayload(raw json.RawMessage, v any) error {
	return json.Unmarshal(raw, v)
}

// glanceTimeout is how long the client waits for a matching reply before
// synthesizing Error{timeout} (spec section 4.5).
const glanceTimeout = 1200 * time.Millisecond

// dialBackoff is the connection-failure backoff ladder (spec section 4.5):
// 0.5s, 1s, 2s, capped at 2s.
var dialBackoff = []time.Duration{
	500 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
}
