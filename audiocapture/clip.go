package audiocapture

import (
	"math"
	"time"
)

// Clip is the immutable result of one recording.
type Clip struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames in the clip.
func (c Clip) Frames() int {
	if c.Channels <= 1 {
		return len(c.Samples)
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the length of the captured audio.
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 || len(c.Samples) == 0 {
		return 0
	}
	return time.Duration(float64(c.Frames()) / float64(c.SampleRate) * float64(time.Second))
}

// RMS returns the root mean square level of the clip.
func (c Clip) RMS() float32 {
	if len(c.Samples) == 0 {
		return 0
	}

	var sum float64
	for _, s := range c.Samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(c.Samples))))
}
