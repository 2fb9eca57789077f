// Package vad detects speech onset and silence-timeout during an ENGAGED
// session, using the same sherpa-onnx Silero VAD surface the teacher used
// ahead of its Whisper transcription step. There is no transcription here:
// the hub owns speech-to-text, so this package's only job is producing the
// VAD_START / window-elapsed signals the activation state machine consumes.
package vad

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/agalue/lva/internal/sherpa"
)

const (
	// minSpeechDurationS is the minimum speech duration to register as a
	// genuine VAD_START rather than a transient blip.
	minSpeechDurationS = 0.1
	// maxSpeechDurationS bounds a single continuous segment.
	maxSpeechDurationS = 30.0
	// windowSize is the VAD frame size in samples at 16kHz (32ms).
	windowSize = 512
	// bufferDurationS is how much audio the detector buffers internally.
	bufferDurationS = 60.0
)

// Config configures the detector.
type Config struct {
	ModelPath          string
	Threshold          float32
	SampleRate         int
	MinSilenceDuration float32 // seconds of silence before speech is considered ended
	NumThreads         int
	Verbose            bool
}

// Detector wraps a sherpa-onnx Silero VAD instance behind a small
// speech-onset/offset state machine. Safe for concurrent AcceptWaveform
// calls from a single producer (the audio capture goroutine); IsSpeaking
// may be polled from any goroutine.
type Detector struct {
	vad *sherpa.VoiceActivityDetector

	mu sync.Mutex

	speaking atomic.Bool
}

// New constructs a Detector, or returns an error if the underlying model
// fails to load.
func New(cfg Config) (*Detector, error) {
	vadConfig := &sherpa.VadModelConfig{}
	vadConfig.SileroVad.Model = cfg.ModelPath
	vadConfig.SileroVad.Threshold = cfg.Threshold
	vadConfig.SileroVad.MinSilenceDuration = cfg.MinSilenceDuration
	vadConfig.SileroVad.MinSpeechDuration = minSpeechDurationS
	vadConfig.SileroVad.MaxSpeechDuration = maxSpeechDurationS
	vadConfig.SileroVad.WindowSize = windowSize
	vadConfig.SampleRate = cfg.SampleRate
	vadConfig.NumThreads = cfg.NumThreads
	if cfg.Verbose {
		vadConfig.Debug = 1
	}

	vad := sherpa.NewVoiceActivityDetector(vadConfig, bufferDurationS)
	if vad == nil {
		return nil, fmt.Errorf("vad: failed to create Silero VAD (model %q)", cfg.ModelPath)
	}
	return &Detector{vad: vad}, nil
}

// AcceptWaveform feeds one block of mono float32 samples. onSegment, if
// non-nil, is invoked with each completed speech segment's samples (the
// window the hub session should forward once LISTENING starts); the
// returned bool reports whether speech transitioned from silent to
// speaking on this call (the ENGAGED→LISTENING trigger).
func (d *Detector) AcceptWaveform(samples []float32, onSegment func([]float32)) (becameSpeaking bool) {
	d.mu.Lock()
	d.vad.AcceptWaveform(samples)
	isSpeech := d.vad.IsSpeech()

	for !d.vad.IsEmpty() {
		segment := d.vad.Front()
		d.vad.Pop()
		if len(segment.Samples) > 0 && onSegment != nil {
			cp := make([]float32, len(segment.Samples))
			copy(cp, segment.Samples)
			onSegment(cp)
		}
	}
	d.mu.Unlock()

	was := d.speaking.Load()
	if isSpeech && !was {
		d.speaking.Store(true)
		return true
	}
	if !isSpeech && was {
		d.speaking.Store(false)
	}
	return false
}

// IsSpeaking reports the last observed speech state.
func (d *Detector) IsSpeaking() bool { return d.speaking.Load() }

// Reset clears internal VAD buffering, used when re-entering ENGAGED.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vad.Clear()
	d.speaking.Store(false)
}

// Close releases the underlying sherpa-onnx VAD instance.
func (d *Detector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.vad != nil {
		sherpa.DeleteVoiceActivityDetector(d.vad)
		d.vad = nil
	}
}
