package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaybackRingPushPopOrder(t *testing.T) {
	rb := &playbackRing{}
	written := rb.push([]float32{1, 2, 3})
	assert.Equal(t, 3, written)

	for _, want := range []float32{1, 2, 3} {
		got, ok := rb.pop()
		assert.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok := rb.pop()
	assert.False(t, ok, "ring must report empty once drained")
}

func TestPlaybackRingClearDropsQueuedSamples(t *testing.T) {
	rb := &playbackRing{}
	rb.push([]float32{1, 2, 3})
	rb.clear()

	assert.True(t, rb.isEmpty())
	_, ok := rb.pop()
	assert.False(t, ok)
}

func TestPlaybackRingPushBeyondCapacityTruncates(t *testing.T) {
	rb := &playbackRing{}
	oversized := make([]float32, playbackRingSize+10)
	written := rb.push(oversized)
	assert.Equal(t, playbackRingSize, written)
}
