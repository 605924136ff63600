// Package cue plays the audible cues, fans out the indicator state and
// shows desktop notifications.
package cue

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// Cue is an audible signal for a session event.
type Cue int

const (
	CueStart  Cue = iota // Recording started
	CueStop              // Recording stopped
	CueError             // Session failed
	CueBusy              // Toggle ignored while typing
	CueCancel            // Session cancelled
)

// Tone is a single beep.
type Tone struct {
	Freq     float64
	Duration time.Duration
}

var tones = map[Cue]Tone{
	CueStart:  {1000, 150 * time.Millisecond},
	CueStop:   {600, 150 * time.Millisecond},
	CueError:  {300, 400 * time.Millisecond},
	CueBusy:   {1500, 60 * time.Millisecond},
	CueCancel: {440, 100 * time.Millisecond},
}

// Tone returns the tone played for c.
func (c Cue) Tone() Tone { return tones[c] }

func (c Cue) String() string {
	switch c {
	case CueStart:
		return "start"
	case CueStop:
		return "stop"
	case CueError:
		return "error"
	case CueBusy:
		return "busy"
	case CueCancel:
		return "cancel"
	}
	return "unknown"
}

// Indicator is the state shown by the tray icon.
type Indicator int

const (
	IndicatorIdle Indicator = iota
	IndicatorActive
	IndicatorProcessing
	IndicatorError
	IndicatorWarning
)

// Indicators lists every indicator state.
var Indicators = []Indicator{IndicatorIdle, IndicatorActive, IndicatorProcessing, IndicatorError, IndicatorWarning}

// Color returns the indicator colour as 0xRRGGBB.
func (i Indicator) Color() uint32 {
	switch i {
	case IndicatorActive:
		return 0x4CAF50
	case IndicatorProcessing:
		return 0xFFC107
	case IndicatorError:
		return 0xF44336
	case IndicatorWarning:
		return 0xFF9800
	}
	return 0x888888
}

func (i Indicator) String() string {
	switch i {
	case IndicatorIdle:
		return "idle"
	case IndicatorActive:
		return "active"
	case IndicatorProcessing:
		return "processing"
	case IndicatorError:
		return "error"
	case IndicatorWarning:
		return "warning"
	}
	return "unknown"
}

const (
	appTitle  = "GhostWriter"
	queueSize = 8
)

// Player implements the session cue sink.
// Tones play one at a time on a background goroutine so callers never block.
type Player struct {
	beep   func(freq float64, ms int) error
	notify func(title, message, icon string) error

	queue chan Tone
	done  chan struct{}
	once  sync.Once

	mu        sync.Mutex
	indicator Indicator
	sinks     []func(Indicator)
}

// NewPlayer starts a Player.
func NewPlayer() *Player {
	return newPlayer(beeep.Beep, beeep.Notify)
}

func newPlayer(beep func(float64, int) error, notify func(string, string, string) error) *Player {
	p := &Player{
		beep:   beep,
		notify: notify,
		queue:  make(chan Tone, queueSize),
		done:   make(chan struct{}),
	}
	go p.loop()
	return p
}

func (p *Player) loop() {
	for {
		select {
		case t := <-p.queue:
			if err := p.beep(t.Freq, int(t.Duration.Milliseconds())); err != nil {
				slog.Debug("play tone", "freq", t.Freq, "error", err)
			}
		case <-p.done:
			return
		}
	}
}

// Play queues the tone for c. It is dropped when the queue is full.
func (p *Player) Play(c Cue) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- c.Tone():
	default:
		slog.Debug("drop cue", "cue", c)
	}
}

// OnIndicator registers fn to receive indicator changes. fn is called
// immediately with the current state.
func (p *Player) OnIndicator(fn func(Indicator)) {
	p.mu.Lock()
	p.sinks = append(p.sinks, fn)
	cur := p.indicator
	p.mu.Unlock()
	fn(cur)
}

// SetIndicator records the indicator state and forwards it to the sinks.
func (p *Player) SetIndicator(i Indicator) {
	p.mu.Lock()
	p.indicator = i
	sinks := slices.Clone(p.sinks)
	p.mu.Unlock()

	for _, fn := range sinks {
		fn(i)
	}
}

// Indicator returns the current indicator state.
func (p *Player) Indicator() Indicator {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.indicator
}

// Notify shows a non-modal desktop notification.
func (p *Player) Notify(message string) {
	go func() {
		if err := p.notify(appTitle, message, ""); err != nil {
			slog.Warn("show notification", "error", err)
		}
	}()
}

// Close stops the playback goroutine. Queued tones are dropped.
func (p *Player) Close() {
	p.once.Do(func() { close(p.done) })
}
