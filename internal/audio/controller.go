package audio

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
)

// PlaybackController adapts a Player to activation.PlaybackController,
// owning the one pre-decoded "thinking" sound clip played while PROCESSING
// (spec's EnableThinkingSound setting) and exposing the hub response sink
// used by internal/hub.Session.
type PlaybackController struct {
	player   *Player
	thinking AudioBuffer
	hasClip  bool
}

// NewPlaybackController wraps player. thinkingSoundPath, if non-empty, is
// loaded eagerly as a mono 16-bit PCM WAV file; a missing or invalid file
// only disables the thinking sound; it is not fatal.
func NewPlaybackController(player *Player, thinkingSoundPath string) *PlaybackController {
	pc := &PlaybackController{player: player}
	if thinkingSoundPath == "" {
		return pc
	}
	buf, err := loadWAV(thinkingSoundPath)
	if err != nil {
		log.Printf("[audio] thinking sound disabled: %v", err)
		return pc
	}
	pc.thinking = buf
	pc.hasClip = true
	return pc
}

// PlayThinkingSound implements activation.PlaybackController.
func (pc *PlaybackController) PlayThinkingSound() {
	if !pc.hasClip {
		return
	}
	go func() {
		if err := pc.player.Play(pc.thinking); err != nil {
			log.Printf("[audio] thinking sound playback error: %v", err)
		}
	}()
}

// StopPlayback implements activation.PlaybackController.
func (pc *PlaybackController) StopPlayback() {
	pc.player.Interrupt()
}

// PlayChunk implements hub.AudioSink: plays one raw PCM16LE mono chunk
// received from the hub during SPEAKING.
func (pc *PlaybackController) PlayChunk(samples []byte, sampleRate int) error {
	floats := make([]float32, len(samples)/2)
	for i := range floats {
		v := int16(binary.LittleEndian.Uint16(samples[i*2:]))
		floats[i] = float32(v) / 32768.0
	}
	return pc.player.Play(AudioBuffer{Samples: floats, SampleRate: sampleRate})
}

// loadWAV reads a minimal canonical 16-bit PCM WAV file. Mono data is used
// as is; two-channel data is downmixed to mono by averaging the channels.
func loadWAV(path string) (AudioBuffer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AudioBuffer{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) < 44 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return AudioBuffer{}, fmt.Errorf("%s: not a RIFF/WAVE file", path)
	}

	var sampleRate uint32
	var bitsPerSample uint16
	var channels uint16
	offset := 12
	for offset+8 <= len(data) {
		chunkID := string(data[offset : offset+4])
		chunkSize := binary.LittleEndian.Uint32(data[offset+4 : offset+8])
		body := offset + 8

		if chunkID == "fmt " && body+16 <= len(data) {
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bitsPerSample = binary.LittleEndian.Uint16(data[body+14 : body+16])
		}
		if chunkID == "data" {
			end := body + int(chunkSize)
			if end > len(data) {
				end = len(data)
			}
			if bitsPerSample != 16 {
				return AudioBuffer{}, fmt.Errorf("%s: unsupported bit depth %d", path, bitsPerSample)
			}
			pcm := data[body:end]
			n := len(pcm) / 2
			samples := make([]float32, 0, n)
			for i := 0; i+1 < len(pcm); i += 2 {
				v := int16(binary.LittleEndian.Uint16(pcm[i : i+2]))
				samples = append(samples, float32(v)/32768.0)
			}
			if channels == 2 {
				samples = downmixStereo(samples)
			}
			return AudioBuffer{Samples: samples, SampleRate: int(sampleRate)}, nil
		}
		offset = body + int(chunkSize) + int(chunkSize%2)
	}
	return AudioBuffer{}, fmt.Errorf("%s: no data chunk found", path)
}

func downmixStereo(interleaved []float32) []float32 {
	mono := make([]float32, 0, len(interleaved)/2)
	for i := 0; i+1 < len(interleaved); i += 2 {
		mono = append(mono, (interleaved[i]+interleaved[i+1])*0.5)
	}
	return mono
}
