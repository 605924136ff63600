// Package audiocapture provides microphone capture for dictation sessions.
package audiocapture

import "errors"

var (
	// ErrUnsupported is returned when the binary was built without a capture backend.
	ErrUnsupported = errors.New("audiocapture: unsupported platform")

	// ErrRunning is returned when starting a capturer that is already running.
	ErrRunning = errors.New("audiocapture: already running")

	// ErrDeviceUnavailable is returned when no input device can be opened.
	ErrDeviceUnavailable = errors.New("audiocapture: input device unavailable")

	// ErrNotRecording is returned when stopping a buffer that was never started.
	ErrNotRecording = errors.New("audiocapture: not recording")
)

// AudioHandler receives float32 samples in the range [-1, 1].
// The slice is only valid for the duration of the call.
type AudioHandler func(samples []float32)

// Capturer is a platform capture stream.
type Capturer interface {
	Start(handler AudioHandler) error
	Stop() error
}

// Config holds configuration for audio capture.
type Config struct {
	SampleRate      int // Sample rate, default 16000 Hz (what whisper expects)
	Channels        int // Channel count, default mono
	FramesPerBuffer int // Frames delivered per callback
}

// DefaultConfig returns the default capture configuration.
func DefaultConfig() Config {
	return Config{
		SampleRate:      16000,
		Channels:        1,
		FramesPerBuffer: 1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SampleRate <= 0 {
		c.SampleRate = d.SampleRate
	}
	if c.Channels <= 0 {
		c.Channels = d.Channels
	}
	if c.FramesPerBuffer <= 0 {
		c.FramesPerBuffer = d.FramesPerBuffer
	}
	return c
}
