package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agalue/lva/internal/hubproto"
)

func TestRegisterAndDescriptors(t *testing.T) {
	r := NewRegistry()
	r.Register(Entity{Key: "switch.foo", Kind: KindSwitch, Name: "Foo"})
	r.Register(Entity{Key: "sensor.bar", Kind: KindSensor, Name: "Bar", Unit: "mm"})

	descs := r.Descriptors()
	assert.Len(t, descs, 2)

	byKey := make(map[string]hubproto.EntityDescriptor, len(descs))
	for _, d := range descs {
		byKey[d.Key] = d
	}
	assert.Equal(t, "Foo", byKey["switch.foo"].Name)
	assert.Equal(t, "mm", byKey["sensor.bar"].Unit)
}

func TestPublishUpdatesValueWithoutWriteHandler(t *testing.T) {
	r := NewRegistry()
	r.Register(Entity{Key: "sensor.distance", Kind: KindSensor})

	r.Publish("sensor.distance", 123)

	v, ok := r.Get("sensor.distance")
	require.True(t, ok)
	assert.Equal(t, 123, v)
}

func TestPublishToUnknownKeyIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Publish("sensor.unknown", 1)

	_, ok := r.Get("sensor.unknown")
	assert.False(t, ok)
}

func TestDispatchUnknownKeyErrors(t *testing.T) {
	r := NewRegistry()
	err := r.Dispatch("switch.missing", true)
	assert.Error(t, err)
}

func TestDispatchReadOnlyEntityErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(Entity{Key: "sensor.distance", Kind: KindSensor})

	err := r.Dispatch("sensor.distance", 5)
	assert.Error(t, err)
}

func TestDispatchRunsWriteHandlerAndUpdatesValueOnSuccess(t *testing.T) {
	r := NewRegistry()
	var received any
	r.Register(Entity{
		Key:  "switch.vision_enabled",
		Kind: KindSwitch,
		WriteHandler: func(v any) error {
			received = v
			return nil
		},
	})

	require.NoError(t, r.Dispatch("switch.vision_enabled", true))

	assert.Equal(t, true, received)
	v, ok := r.Get("switch.vision_enabled")
	require.True(t, ok)
	assert.Equal(t, true, v)
}

func TestDispatchWriteHandlerErrorLeavesValueUnchanged(t *testing.T) {
	r := NewRegistry()
	r.Register(Entity{
		Key:  "number.threshold",
		Kind: KindNumber,
		WriteHandler: func(v any) error {
			return assert.AnError
		},
	})
	r.Publish("number.threshold", 42.0)

	err := r.Dispatch("number.threshold", 99.0)
	assert.Error(t, err)

	v, ok := r.Get("number.threshold")
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
}
