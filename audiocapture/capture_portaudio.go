//go:build cgo

package audiocapture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// capturer reads the default input device through PortAudio.
type capturer struct {
	cfg Config

	mu     sync.Mutex
	stream *portaudio.Stream
}

// New creates a PortAudio backed Capturer.
func New(cfg Config) (Capturer, error) {
	return &capturer{cfg: cfg.withDefaults()}, nil
}

func (c *capturer) Start(handler AudioHandler) error {
	if handler == nil {
		return errors.New("audiocapture: nil handler")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream != nil {
		return ErrRunning
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialize portaudio: %v", ErrDeviceUnavailable, err)
	}

	// Probe first so a missing microphone fails here rather than on the first read.
	if _, err := portaudio.DefaultInputDevice(); err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}

	stream, err := portaudio.OpenDefaultStream(
		c.cfg.Channels, 0,
		float64(c.cfg.SampleRate),
		c.cfg.FramesPerBuffer,
		func(in []float32) { handler(in) },
	)
	if err != nil {
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: open stream: %v", ErrDeviceUnavailable, err)
	}

	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return fmt.Errorf("%w: start stream: %v", ErrDeviceUnavailable, err)
	}

	c.stream = stream
	return nil
}

func (c *capturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return nil
	}

	err := errors.Join(
		c.stream.Stop(),
		c.stream.Close(),
		portaudio.Terminate(),
	)
	c.stream = nil
	return err
}
