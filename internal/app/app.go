// Package app wires the dictation process together: settings, engines,
// hotkey, microphone, cues, history and the session controller.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"go.aimuz.me/ghostwriter/audiocapture"
	"go.aimuz.me/ghostwriter/clipboard"
	"go.aimuz.me/ghostwriter/config"
	"go.aimuz.me/ghostwriter/cue"
	"go.aimuz.me/ghostwriter/history"
	"go.aimuz.me/ghostwriter/hotkey"
	"go.aimuz.me/ghostwriter/inject"
	"go.aimuz.me/ghostwriter/internal/session"
	"go.aimuz.me/ghostwriter/internal/types"
	"go.aimuz.me/ghostwriter/stt"
)

// Cues is the feedback sink shared by the controller and the tray.
type Cues interface {
	session.Cues
	OnIndicator(fn func(cue.Indicator))
	Close()
}

// Options configures a Runtime. Only Store is required; the rest default
// to the real devices.
type Options struct {
	Store   *config.Store
	History *history.Store // Optional, nil disables history

	Cues         Cues                  // Defaults to cue.NewPlayer
	Capturer     audiocapture.Capturer // Defaults to the PortAudio capturer
	Typer        inject.Typer          // Defaults to robotgo
	HotkeySource func() hotkey.Source  // Defaults to gohook

	// ErrorHold overrides session.DefaultErrorHold.
	ErrorHold time.Duration
}

// Runtime is the running dictation process.
type Runtime struct {
	store    *config.Store
	history  *history.Store
	cues     Cues
	registry *stt.Registry

	controller *session.Controller
	listener   *hotkey.Listener

	mu        sync.Mutex
	whisper   *stt.WhisperLocal
	engineKey string
}

// New builds a Runtime from the stored settings.
func New(opts Options) (*Runtime, error) {
	if opts.Store == nil {
		return nil, errors.New("app: settings store is required")
	}
	settings := opts.Store.Snapshot()

	r := &Runtime{
		store:    opts.Store,
		history:  opts.History,
		cues:     opts.Cues,
		registry: stt.NewRegistry(),
	}
	if r.cues == nil {
		r.cues = cue.NewPlayer()
	}
	r.configureEngines(settings)

	capturer := opts.Capturer
	if capturer == nil {
		c, err := audiocapture.New(audiocapture.DefaultConfig())
		if err != nil {
			// Sessions will report the device as unavailable.
			slog.Warn("open audio capture", "error", err)
		}
		capturer = c
	}

	typer := opts.Typer
	if typer == nil {
		t, err := inject.NewRobotTyper()
		if err != nil {
			slog.Warn("init keystroke injection", "error", err)
		} else {
			typer = t
		}
	}

	sessionOpts := session.Options{
		Recorder:    audiocapture.NewBuffer(capturer, audiocapture.DefaultConfig()),
		Transcriber: stt.NewDispatcher(r.registry, stt.WithDefaultEngine(settings.Engine)),
		Injector:    inject.New(typer),
		Cues:        r.cues,
		Settings:    r.store,
		ErrorHold:   opts.ErrorHold,
	}
	if r.history != nil {
		sessionOpts.History = r.history
	}
	controller, err := session.New(sessionOpts)
	if err != nil {
		return nil, fmt.Errorf("create session controller: %w", err)
	}
	r.controller = controller

	var listenerOpts []hotkey.Option
	if opts.HotkeySource != nil {
		listenerOpts = append(listenerOpts, hotkey.WithSource(opts.HotkeySource))
	}
	r.listener = hotkey.NewListener(controller.Toggle, listenerOpts...)
	if err := r.listener.Bind(settings.Hotkey); err != nil {
		return nil, fmt.Errorf("bind hotkey: %w", err)
	}

	r.store.OnChange(r.applySettings)
	return r, nil
}

// Run starts the controller and the hotkey listener and blocks until ctx
// is cancelled or one of them fails.
func (r *Runtime) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return r.controller.Run(ctx)
	})
	g.Go(func() error {
		if err := r.listener.Start(ctx); err != nil {
			return fmt.Errorf("start hotkey listener: %w", err)
		}
		<-ctx.Done()
		r.listener.Stop()
		return nil
	})

	r.announce(r.store.Snapshot())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close releases the engines and the cue player.
func (r *Runtime) Close() error {
	r.cues.Close()
	return r.registry.Close()
}

// announce reports a missing engine and, unless the app starts quietly in
// the tray, how to begin dictating.
func (r *Runtime) announce(s config.Settings) {
	if s.Engine == stt.EngineWhisperCLI {
		if w := r.whisperEngine(); w == nil {
			r.cues.Notify(msgEngineMissing)
		} else if err := w.Check(); err != nil {
			slog.Warn("whisper engine not ready", "error", err)
			r.cues.Notify(msgEngineMissing)
		}
	}
	if !s.StartInTray {
		r.cues.Notify(fmt.Sprintf(msgStartupHint, s.Hotkey))
	}
	slog.Info("ghostwriter ready", "hotkey", s.Hotkey, "engine", s.Engine, "paste_speed", s.PasteSpeed)
}

// ─────────────────────────────────────────────────────────────────────────────
// Engines
// ─────────────────────────────────────────────────────────────────────────────

func engineKey(s config.Settings) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s", s.WhisperBinary, s.WhisperModel, s.ModelSize, s.ServerURL, s.ServerModel)
}

// configureEngines registers the engines s describes, replacing earlier ones.
func (r *Runtime) configureEngines(s config.Settings) {
	key := engineKey(s)

	r.mu.Lock()
	defer r.mu.Unlock()
	if key == r.engineKey {
		return
	}
	r.engineKey = key
	r.whisper = registerEngines(r.registry, s)
}

// registerEngines fills reg from s and returns the whisper-cli engine, or
// nil when it could not be created.
func registerEngines(reg *stt.Registry, s config.Settings) *stt.WhisperLocal {
	w, err := stt.NewWhisperLocal(stt.WhisperLocalConfig{
		ModelSize: s.ModelSize,
		ModelPath: s.WhisperModel,
		BinPath:   s.WhisperBinary,
	})
	if err != nil {
		slog.Error("init whisper local", "error", err)
		reg.Remove(stt.EngineWhisperCLI)
		w = nil
	} else {
		reg.Register(w)
		slog.Debug("registered engine", "engine", w.Name(), "ready", w.IsReady())
	}

	if s.ServerURL == "" {
		reg.Remove(stt.EngineLocalServer)
		return w
	}
	srv, err := stt.NewLocalServer(stt.LocalServerConfig{BaseURL: s.ServerURL, Model: s.ServerModel})
	if err != nil {
		slog.Error("init local server engine", "url", s.ServerURL, "error", err)
		reg.Remove(stt.EngineLocalServer)
		return w
	}
	reg.Register(srv)
	slog.Debug("registered engine", "engine", srv.Name(), "url", s.ServerURL)
	return w
}

// ListEngines describes the engines s would use, without starting anything.
func ListEngines(s config.Settings) []types.EngineInfo {
	reg := stt.NewRegistry()
	defer reg.Close()
	registerEngines(reg, s)
	return describeEngines(reg, s.Engine)
}

func describeEngines(reg *stt.Registry, active string) []types.EngineInfo {
	providers := reg.List()
	out := make([]types.EngineInfo, len(providers))
	for i, p := range providers {
		out[i] = types.EngineInfo{
			Name:          p.Name(),
			DisplayName:   p.DisplayName(),
			RequiresSetup: p.RequiresSetup(),
			SetupProgress: p.SetupProgress(),
			IsReady:       p.IsReady(),
			Active:        p.Name() == active,
		}
	}
	return out
}

func (r *Runtime) whisperEngine() *stt.WhisperLocal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.whisper
}

// applySettings follows settings changes made while running.
func (r *Runtime) applySettings(s config.Settings) {
	if b, ok := r.listener.Binding(); !ok || b.Name != s.Hotkey {
		if err := r.listener.Bind(s.Hotkey); err != nil {
			slog.Error("rebind hotkey", "hotkey", s.Hotkey, "error", err)
		} else {
			slog.Info("hotkey changed", "hotkey", s.Hotkey)
		}
	}
	r.configureEngines(s)
}

// ─────────────────────────────────────────────────────────────────────────────
// Tray actions
// ─────────────────────────────────────────────────────────────────────────────

// Toggle starts or stops dictation.
func (r *Runtime) Toggle() { r.controller.Toggle() }

// Cancel abandons the current session.
func (r *Runtime) Cancel() { r.controller.Cancel() }

// State returns the controller state.
func (r *Runtime) State() session.State { return r.controller.State() }

// OnIndicator forwards indicator changes to fn.
func (r *Runtime) OnIndicator(fn func(cue.Indicator)) { r.cues.OnIndicator(fn) }

// Settings returns the effective settings.
func (r *Runtime) Settings() config.Settings { return r.store.Snapshot() }

// OnSettingsChange registers fn to receive settings after every change.
func (r *Runtime) OnSettingsChange(fn func(config.Settings)) { r.store.OnChange(fn) }

// HotkeyBinding returns the binding the listener is using.
func (r *Runtime) HotkeyBinding() (hotkey.Binding, bool) { return r.listener.Binding() }

// SetHotkey changes the trigger. The listener follows through applySettings.
func (r *Runtime) SetHotkey(name string) error {
	return r.store.Set("hotkey", name)
}

// SetPasteSpeed changes the injection tier for the next session.
func (r *Runtime) SetPasteSpeed(speed config.PasteSpeed) error {
	return r.store.Set("paste_speed", string(speed))
}

// SetSoundEnabled turns the cue tones on or off.
func (r *Runtime) SetSoundEnabled(enabled bool) error {
	return r.store.Update(func(s *config.Settings) { s.SoundEnabled = enabled })
}

// LastTranscription returns the most recent session that produced text.
func (r *Runtime) LastTranscription() (types.SessionRecord, error) {
	if r.history == nil {
		return types.SessionRecord{}, history.ErrEmpty
	}
	return r.history.Last()
}

// CopyLastTranscription puts the last transcribed text on the clipboard.
func (r *Runtime) CopyLastTranscription() error {
	rec, err := r.LastTranscription()
	if err != nil {
		return err
	}
	if err := clipboard.SetText(rec.Text); err != nil {
		return fmt.Errorf("copy last transcription: %w", err)
	}
	return nil
}
