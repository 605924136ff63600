package cue

import (
	"sync"
	"testing"
	"time"
)

type fakeOutput struct {
	mu       sync.Mutex
	beeps    []float64
	messages []string
	played   chan struct{}
	notified chan struct{}
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{
		played:   make(chan struct{}, 16),
		notified: make(chan struct{}, 16),
	}
}

func (f *fakeOutput) beep(freq float64, ms int) error {
	f.mu.Lock()
	f.beeps = append(f.beeps, freq)
	f.mu.Unlock()
	f.played <- struct{}{}
	return nil
}

func (f *fakeOutput) notify(title, message, _ string) error {
	f.mu.Lock()
	f.messages = append(f.messages, title+": "+message)
	f.mu.Unlock()
	f.notified <- struct{}{}
	return nil
}

func wait(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestPlayInOrder(t *testing.T) {
	out := newFakeOutput()
	p := newPlayer(out.beep, out.notify)
	defer p.Close()

	p.Play(CueStart)
	p.Play(CueStop)
	p.Play(CueError)
	for range 3 {
		wait(t, out.played)
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	want := []float64{1000, 600, 300}
	for i, f := range want {
		if out.beeps[i] != f {
			t.Errorf("beep %d = %v Hz, want %v Hz", i, out.beeps[i], f)
		}
	}
}

func TestCueTones(t *testing.T) {
	start, stop := CueStart.Tone(), CueStop.Tone()
	if start.Freq <= stop.Freq {
		t.Error("start cue must be higher pitched than stop cue")
	}
	if start.Duration != 150*time.Millisecond || stop.Duration != 150*time.Millisecond {
		t.Error("start and stop cues last 150ms")
	}
	seen := map[float64]Cue{}
	for _, c := range []Cue{CueStart, CueStop, CueError, CueBusy, CueCancel} {
		if prev, dup := seen[c.Tone().Freq]; dup {
			t.Errorf("%s and %s share a tone", prev, c)
		}
		seen[c.Tone().Freq] = c
	}
}

func TestIndicatorColors(t *testing.T) {
	tests := []struct {
		ind  Indicator
		want uint32
	}{
		{IndicatorIdle, 0x888888},
		{IndicatorActive, 0x4CAF50},
		{IndicatorProcessing, 0xFFC107},
		{IndicatorError, 0xF44336},
		{IndicatorWarning, 0xFF9800},
	}
	for _, tt := range tests {
		if got := tt.ind.Color(); got != tt.want {
			t.Errorf("%s.Color() = %06X, want %06X", tt.ind, got, tt.want)
		}
	}
}

func TestIndicatorSinks(t *testing.T) {
	out := newFakeOutput()
	p := newPlayer(out.beep, out.notify)
	defer p.Close()

	var got []Indicator
	p.OnIndicator(func(i Indicator) { got = append(got, i) })
	p.SetIndicator(IndicatorActive)
	p.SetIndicator(IndicatorProcessing)

	want := []Indicator{IndicatorIdle, IndicatorActive, IndicatorProcessing}
	if len(got) != len(want) {
		t.Fatalf("sink got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sink got %v, want %v", got, want)
		}
	}
	if p.Indicator() != IndicatorProcessing {
		t.Errorf("Indicator() = %s", p.Indicator())
	}
}

func TestNotify(t *testing.T) {
	out := newFakeOutput()
	p := newPlayer(out.beep, out.notify)
	defer p.Close()

	p.Notify("Transcription failed 3 times in a row")
	wait(t, out.notified)

	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.messages) != 1 || out.messages[0] != "GhostWriter: Transcription failed 3 times in a row" {
		t.Fatalf("messages = %q", out.messages)
	}
}

func TestPlayAfterClose(t *testing.T) {
	out := newFakeOutput()
	p := newPlayer(out.beep, out.notify)
	p.Close()
	p.Close()
	p.Play(CueStart) // must not block or panic
}
