package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeMonoWAV builds a minimal canonical 16-bit PCM mono WAV file for tests.
func writeMonoWAV(t *testing.T, path string, sampleRate int, samples []int16) {
	t.Helper()
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}

	var buf []byte
	buf = append(buf, []byte("RIFF")...)
	buf = append(buf, make([]byte, 4)...) // chunk size, unused by loadWAV
	buf = append(buf, []byte("WAVE")...)

	buf = append(buf, []byte("fmt ")...)
	fmtChunk := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtChunk[0:2], 1) // PCM
	binary.LittleEndian.PutUint16(fmtChunk[2:4], 1) // mono
	binary.LittleEndian.PutUint32(fmtChunk[4:8], uint32(sampleRate))
	binary.LittleEndian.PutUint32(fmtChunk[8:12], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(fmtChunk[12:14], 2)
	binary.LittleEndian.PutUint16(fmtChunk[14:16], 16)
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(len(fmtChunk)))
	buf = append(buf, sizeBuf...)
	buf = append(buf, fmtChunk...)

	buf = append(buf, []byte("data")...)
	dataSizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(dataSizeBuf, uint32(len(data)))
	buf = append(buf, dataSizeBuf...)
	buf = append(buf, data...)

	require.NoError(t, os.WriteFile(path, buf, 0o644))
}

func TestLoadWAVReadsMonoPCM16(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thinking.wav")
	writeMonoWAV(t, path, 24000, []int16{0, 16384, -16384, 32767})

	buf, err := loadWAV(path)
	require.NoError(t, err)
	assert.Equal(t, 24000, buf.SampleRate)
	require.Len(t, buf.Samples, 4)
	assert.InDelta(t, 0.0, buf.Samples[0], 0.0001)
	assert.InDelta(t, 0.5, buf.Samples[1], 0.001)
	assert.InDelta(t, -0.5, buf.Samples[2], 0.001)
}

func TestLoadWAVRejectsNonRIFFFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a-wav.wav")
	require.NoError(t, os.WriteFile(path, []byte("not a wav file at all, padded to 44+ bytes......"), 0o644))

	_, err := loadWAV(path)
	assert.Error(t, err)
}

func TestLoadWAVMissingFileErrors(t *testing.T) {
	_, err := loadWAV(filepath.Join(t.TempDir(), "missing.wav"))
	assert.Error(t, err)
}

func TestDownmixStereoAverages(t *testing.T) {
	mono := downmixStereo([]float32{1.0, -1.0, 0.5, 0.5})
	require.Len(t, mono, 2)
	assert.InDelta(t, 0.0, mono[0], 0.0001)
	assert.InDelta(t, 0.5, mono[1], 0.0001)
}

func TestPlaybackControllerWithoutClipIsNoop(t *testing.T) {
	pc := NewPlaybackController(nil, "")
	pc.PlayThinkingSound()
}
