// Package tray shows GhostWriter in the system tray. The application has no
// windows; the tray icon reflects the dictation indicator and the menu
// exposes the quick settings.
package tray

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/wailsapp/wails/v3/pkg/application"
	"go.aimuz.me/ghostwriter/config"
	"go.aimuz.me/ghostwriter/cue"
	"go.aimuz.me/ghostwriter/hotkey"
)

const (
	labelStart = "Start dictation"
	labelStop  = "Stop dictation"
)

// Actions is what the tray menu drives.
type Actions interface {
	Toggle()
	Cancel()
	Settings() config.Settings
	SetHotkey(name string) error
	SetPasteSpeed(speed config.PasteSpeed) error
	SetSoundEnabled(enabled bool) error
	CopyLastTranscription() error
}

// Tray owns the wails application and its system tray icon.
type Tray struct {
	app     *application.App
	tray    *application.SystemTray
	actions Actions
	icons   map[cue.Indicator][]byte

	mu         sync.Mutex
	menu       *application.Menu
	toggleItem *application.MenuItem
	hotkeys    map[string]*application.MenuItem
	speeds     map[config.PasteSpeed]*application.MenuItem
	sound      *application.MenuItem
}

// New creates the windowless application and its tray icon.
func New(actions Actions, version string) (*Tray, error) {
	icons, err := icons()
	if err != nil {
		return nil, err
	}

	app := application.New(application.Options{
		Name:        "GhostWriter",
		Description: "Local speech-to-text dictation " + version,
		Mac: application.MacOptions{
			ActivationPolicy: application.ActivationPolicyAccessory,
			ApplicationShouldTerminateAfterLastWindowClosed: false,
		},
	})

	t := &Tray{
		app:     app,
		tray:    app.SystemTray.New(),
		actions: actions,
		icons:   icons,
	}
	t.tray.SetIcon(icons[cue.IndicatorIdle])
	t.tray.SetTooltip("GhostWriter: idle")
	t.buildMenu(actions.Settings())
	return t, nil
}

// Run blocks until the application quits.
func (t *Tray) Run() error {
	if err := t.app.Run(); err != nil {
		return fmt.Errorf("run tray: %w", err)
	}
	return nil
}

// Quit stops the application. Safe to call from any goroutine.
func (t *Tray) Quit() {
	t.app.Quit()
}

// SetIndicator updates the icon and tooltip. It is registered as a cue
// indicator sink.
func (t *Tray) SetIndicator(i cue.Indicator) {
	t.tray.SetIcon(t.icons[i])
	t.tray.SetTooltip("GhostWriter: " + i.String())

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.toggleItem != nil {
		t.toggleItem.SetLabel(toggleLabel(i))
		t.menu.Update()
	}
}

// Refresh syncs the menu checks with s.
func (t *Tray) Refresh(s config.Settings) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.hotkeys[s.Hotkey]; !ok {
		// A binding set outside the menu needs its own radio entry.
		t.buildMenuLocked(s)
		return
	}
	for name, item := range t.hotkeys {
		item.SetChecked(name == s.Hotkey)
	}
	for speed, item := range t.speeds {
		item.SetChecked(speed == s.PasteSpeed)
	}
	t.sound.SetChecked(s.SoundEnabled)
	t.menu.Update()
}

// ─────────────────────────────────────────────────────────────────────────────
// Menu
// ─────────────────────────────────────────────────────────────────────────────

func (t *Tray) buildMenu(s config.Settings) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buildMenuLocked(s)
}

func (t *Tray) buildMenuLocked(s config.Settings) {
	menu := t.app.NewMenu()

	t.toggleItem = menu.Add(labelStart).OnClick(func(*application.Context) {
		t.actions.Toggle()
	})
	menu.Add("Cancel").OnClick(func(*application.Context) {
		t.actions.Cancel()
	})
	menu.AddSeparator()

	hotkeyMenu := menu.AddSubmenu("Hotkey")
	t.hotkeys = make(map[string]*application.MenuItem)
	for _, name := range hotkeyChoices(s.Hotkey) {
		t.hotkeys[name] = hotkeyMenu.AddRadio(name, name == s.Hotkey).OnClick(func(*application.Context) {
			t.apply("set hotkey", t.actions.SetHotkey(name))
		})
	}

	speedMenu := menu.AddSubmenu("Paste speed")
	t.speeds = make(map[config.PasteSpeed]*application.MenuItem)
	for _, speed := range config.PasteSpeeds {
		t.speeds[speed] = speedMenu.AddRadio(speed.Label(), speed == s.PasteSpeed).OnClick(func(*application.Context) {
			t.apply("set paste speed", t.actions.SetPasteSpeed(speed))
		})
	}

	t.sound = menu.AddCheckbox("Sound effects", s.SoundEnabled).OnClick(func(ctx *application.Context) {
		t.apply("set sound", t.actions.SetSoundEnabled(ctx.ClickedMenuItem().Checked()))
	})
	menu.AddSeparator()

	menu.Add("Copy last transcription").OnClick(func(*application.Context) {
		t.apply("copy last transcription", t.actions.CopyLastTranscription())
	})
	menu.AddSeparator()
	menu.Add("Quit").
		SetAccelerator("CmdOrCtrl+Q").
		OnClick(func(*application.Context) {
			t.app.Quit()
		})

	t.menu = menu
	t.tray.SetMenu(menu)
}

func (t *Tray) apply(what string, err error) {
	if err == nil {
		return
	}
	slog.Error(what, "error", err)
	// Put the checks back to what is actually stored.
	go t.Refresh(t.actions.Settings())
}

func toggleLabel(i cue.Indicator) string {
	if i == cue.IndicatorActive {
		return labelStop
	}
	return labelStart
}

// hotkeyChoices lists the built-in bindings plus current when it is custom.
func hotkeyChoices(current string) []string {
	choices := slices.Clone(hotkey.Options)
	if current != "" && !slices.Contains(choices, current) {
		choices = append(choices, current)
	}
	return choices
}
