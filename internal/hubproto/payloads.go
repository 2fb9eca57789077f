package hubproto

import "encoding/json"

// EntityKind mirrors the hub's device-class vocabulary for the subset of
// entity kinds this satellite exposes.
type EntityKind string

const (
	KindSwitch EntityKind = "switch"
	KindSelect EntityKind = "select"
	KindNumber EntityKind = "number"
	KindSensor EntityKind = "sensor"
)

// EntityDescriptor announces one entity's identity and metadata during
// MsgEntityList, the native-protocol analogue of ESPHome's device info
// exchange.
type EntityDescriptor struct {
	Key     string     `json:"key"`
	Kind    EntityKind `json:"kind"`
	Name    string     `json:"name"`
	Unit    string     `json:"unit,omitempty"`
	Min     float64    `json:"min,omitempty"`
	Max     float64    `json:"max,omitempty"`
	Options []string   `json:"options,omitempty"`
}

// EntityState carries a single entity's current value on MsgEntityState.
type EntityState struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// EntityCommand carries a hub-initiated write on MsgEntityCommand.
type EntityCommand struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// AudioChunkHeader precedes raw PCM bytes within an MsgAudioChunk payload:
// the first 4 bytes (big-endian) give the header length, json-encoded
// metadata follows, then raw samples — kept simple since this framing
// already length-prefixes the whole message.
type AudioChunkHeader struct {
	SampleRate int  `json:"sample_rate"`
	Final      bool `json:"final"`
}

func MarshalJSON(v any) []byte {
	data, _ := json.Marshal(v)
	return data
}

func UnmarshalJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
