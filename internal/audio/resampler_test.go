package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResamplerUpsamplesToExpectedLength(t *testing.T) {
	r := NewResampler(8000, 16000)
	out := r.Resample([]float32{0, 1, 2, 3})
	assert.Len(t, out, 8)
}

func TestResamplerNoopWhenRatesMatch(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out := ResampleInPlace(in, 16000, 16000)
	assert.Equal(t, in, out)
}

func TestPolyphaseResamplerDownsamplesToExpectedLength(t *testing.T) {
	r := NewPolyphaseResampler(48000, 16000)
	in := make([]float32, 480)
	out := r.Resample(in)
	assert.Len(t, out, 160)
}

func TestPolyphaseResamplerUpsampleUsesSharedLinearInterpolate(t *testing.T) {
	r := NewPolyphaseResampler(8000, 16000)
	out := r.Resample([]float32{0, 1, 2, 3})
	assert.Len(t, out, 8)
}
