// Package wakeword scores incoming audio against one or more wake-word
// models and emits TriggerSource events when a model crosses its threshold.
// The neural scoring kernel itself is treated as an external black box
// (spec section 1): Model only exposes the score-production surface a
// caller needs, mirroring how the teacher treats sherpa-onnx as an opaque
// scoring/decoding engine behind a narrow Go interface.
package wakeword

import "context"

// Model scores fixed-size audio blocks and reports a wake confidence in
// [0,1]. Implementations are not required to be safe for concurrent
// Score calls; the Scorer serializes calls per model.
type Model interface {
	// ID identifies the model, matching the file stem under the wake-model
	// directory (e.g. "hey_jarvis").
	ID() string
	// DefaultThreshold is the model's own recommended activation threshold,
	// used when config.PresetModelDefault is selected.
	DefaultThreshold() float32
	// Score consumes one block of mono float32 samples at the model's
	// expected sample rate and returns an updated confidence.
	Score(ctx context.Context, block []float32) (float32, error)
	// Close releases any resources (ONNX session, file handles).
	Close() error
}

// nullModel is an inert Model that never fires; core's wake-model loader
// returns one for every model file it finds.
type nullModel struct{ id string }

// NewNullModel returns a Model that never scores above zero.
func NewNullModel(id string) Model { return nullModel{id: id} }

func (n nullModel) ID() string                                         { return n.id }
func (n nullModel) DefaultThreshold() float32                          { return 1.0 }
func (n nullModel) Score(context.Context, []float32) (float32, error) { return 0, nil }
func (n nullModel) Close() error                                       { return nil }
