package hotkey

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	hook "github.com/robotn/gohook"
)

// ErrNotBound is returned when starting a listener without a binding.
var ErrNotBound = errors.New("hotkey: no binding")

// Source produces global keyboard events.
type Source interface {
	Events() <-chan hook.Event
	Close()
}

// gohookSource wraps the process-wide gohook event loop.
type gohookSource struct {
	ch chan hook.Event
}

// NewGohookSource starts the gohook event loop.
func NewGohookSource() Source {
	return &gohookSource{ch: hook.Start()}
}

func (s *gohookSource) Events() <-chan hook.Event { return s.ch }
func (s *gohookSource) Close()                    { hook.End() }

// Listener fires a callback once per physical press of the bound key,
// whichever application holds focus. Events are observed, never swallowed.
type Listener struct {
	onToggle  func()
	newSource func() Source

	mu      sync.Mutex
	binding Binding
	bound   bool
	held    map[uint16]bool
	mods    map[uint16]Modifier

	runMu  sync.Mutex
	source Source
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Listener.
type Option func(*Listener)

// WithSource replaces the gohook event source.
func WithSource(newSource func() Source) Option {
	return func(l *Listener) { l.newSource = newSource }
}

// NewListener creates a listener that calls onToggle for every press.
func NewListener(onToggle func(), opts ...Option) *Listener {
	l := &Listener{
		onToggle:  onToggle,
		newSource: NewGohookSource,
		held:      make(map[uint16]bool),
		mods:      make(map[uint16]Modifier),
	}
	for name, m := range modifierKeys {
		if code, ok := hook.Keycode[name]; ok {
			l.mods[code] = m
		}
	}
	l.mods[rightCtrl] = ModCtrl
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Bind replaces the current binding. The swap happens under the same lock as
// event matching, so once Bind returns the old key can no longer fire.
func (l *Listener) Bind(name string) error {
	b, err := Parse(name)
	if err != nil {
		return err
	}

	l.mu.Lock()
	prev, hadPrev := l.binding, l.bound
	l.binding = b
	l.bound = true
	l.mu.Unlock()

	if hadPrev && prev.Name != b.Name {
		slog.Info("hotkey rebound", "from", prev.Name, "to", b.Name)
	} else if !hadPrev {
		slog.Info("hotkey bound", "key", b.Name)
	}
	return nil
}

// Binding returns the active binding.
func (l *Listener) Binding() (Binding, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.binding, l.bound
}

// Start begins listening until ctx is cancelled or Stop is called.
func (l *Listener) Start(ctx context.Context) error {
	if _, ok := l.Binding(); !ok {
		return ErrNotBound
	}

	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.source != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	src := l.newSource()
	l.source = src
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.pump(ctx, src.Events(), l.done)
	slog.Info("hotkey listener started")
	return nil
}

// Stop ends the event loop and waits for the pump to exit.
func (l *Listener) Stop() {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	if l.source == nil {
		return
	}

	l.cancel()
	l.source.Close()
	<-l.done

	l.source = nil
	l.cancel = nil
	l.done = nil

	l.mu.Lock()
	clear(l.held)
	l.mu.Unlock()
	slog.Info("hotkey listener stopped")
}

func (l *Listener) pump(ctx context.Context, events <-chan hook.Event, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if l.handle(ev) && l.onToggle != nil {
				l.onToggle()
			}
		}
	}
}

// handle updates the physical key state and reports whether ev is a fresh
// press of the bound key with its modifiers held.
func (l *Listener) handle(ev hook.Event) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch ev.Kind {
	case hook.KeyDown, hook.KeyHold:
		// gohook reports both pressed and typed events; only the up->down edge counts.
		if ev.Keycode == 0 || l.held[ev.Keycode] {
			return false
		}
		l.held[ev.Keycode] = true
		if !l.bound || ev.Keycode != l.binding.Key {
			return false
		}
		return l.heldMods()&l.binding.Mods == l.binding.Mods
	case hook.KeyUp:
		delete(l.held, ev.Keycode)
	}
	return false
}

func (l *Listener) heldMods() Modifier {
	var m Modifier
	for code := range l.held {
		m |= l.mods[code]
	}
	return m
}
