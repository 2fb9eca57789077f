//go:build darwin

// Package sherpa provides platform-specific sherpa-onnx bindings.
// This file contains macOS-specific imports with CoreML support.
package sherpa

import impl "github.com/k2-fsa/sherpa-onnx-go-macos"

// Re-export the sherpa-onnx VAD surface for cross-platform use. Whisper
// offline recognition and Kokoro TTS are not re-exported: speech-to-text
// and response synthesis are the remote hub's job here, not this process's.

type VoiceActivityDetector = impl.VoiceActivityDetector
type VadModelConfig = impl.VadModelConfig
type SpeechSegment = impl.SpeechSegment

var NewVoiceActivityDetector = impl.NewVoiceActivityDetector
var DeleteVoiceActivityDetector = impl.DeleteVoiceActivityDetector

// DefaultProvider returns the recommended provider for this platform.
// On macOS, CoreML provides hardware acceleration via Apple's Neural Engine.
func DefaultProvider() string {
	return "coreml"
}

// AvailableProviders returns the list of available providers on this platform.
func AvailableProviders() []string {
	return []string{"cpu", "coreml"}
}

// HasNvidiaGPU returns false on macOS as NVIDIA GPUs are not supported.
func HasNvidiaGPU() bool {
	return false
}
