package audiocapture

import (
	"errors"
	"fmt"
	"sync"
)

// Buffer accumulates the samples of a single recording.
// Start opens the underlying capture stream, the stream appends frames until
// Stop closes it and hands back the complete clip.
type Buffer struct {
	capture Capturer
	cfg     Config

	mu        sync.Mutex // serializes Start/Stop/Discard
	recording bool

	smu     sync.Mutex // guards samples; taken on the capture callback
	open    bool
	samples []float32
}

// NewBuffer creates a Buffer reading from c.
func NewBuffer(c Capturer, cfg Config) *Buffer {
	return &Buffer{
		capture: c,
		cfg:     cfg.withDefaults(),
	}
}

// Start opens the capture stream. A device that cannot be opened is
// reported as ErrDeviceUnavailable before any recording state is entered.
func (b *Buffer) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.recording {
		return ErrRunning
	}
	if b.capture == nil {
		return ErrDeviceUnavailable
	}

	b.smu.Lock()
	b.samples = make([]float32, 0, b.cfg.SampleRate*b.cfg.Channels*30)
	b.open = true
	b.smu.Unlock()

	if err := b.capture.Start(b.append); err != nil {
		b.close()
		if errors.Is(err, ErrRunning) || errors.Is(err, ErrDeviceUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	b.recording = true
	return nil
}

// Stop closes the stream and returns everything captured since Start.
// A recording with no frames yields an empty, zero-duration clip.
func (b *Buffer) Stop() (Clip, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording {
		return Clip{SampleRate: b.cfg.SampleRate, Channels: b.cfg.Channels}, ErrNotRecording
	}
	b.recording = false

	err := b.capture.Stop()
	clip := Clip{
		Samples:    b.close(),
		SampleRate: b.cfg.SampleRate,
		Channels:   b.cfg.Channels,
	}
	if err != nil {
		return clip, fmt.Errorf("stop capture: %w", err)
	}
	return clip, nil
}

// Discard closes the stream and drops the captured samples.
func (b *Buffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording {
		return
	}
	b.recording = false
	_ = b.capture.Stop()
	b.close()
}

// Recording reports whether a capture stream is open.
func (b *Buffer) Recording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.recording
}

// append is the capture callback. Frames are copied since the stream reuses its slice.
func (b *Buffer) append(in []float32) {
	b.smu.Lock()
	defer b.smu.Unlock()
	if !b.open {
		return
	}
	b.samples = append(b.samples, in...)
}

func (b *Buffer) close() []float32 {
	b.smu.Lock()
	defer b.smu.Unlock()
	samples := b.samples
	b.samples = nil
	b.open = false
	return samples
}
