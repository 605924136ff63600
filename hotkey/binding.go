// Package hotkey provides a global toggle hotkey on top of gohook.
package hotkey

import (
	"errors"
	"fmt"
	"strings"

	hook "github.com/robotn/gohook"
)

// ErrInvalidBinding is returned for hotkey strings that cannot be bound.
var ErrInvalidBinding = errors.New("hotkey: invalid binding")

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModCmd
)

// Options lists the hotkeys offered in the tray menu.
var Options = []string{
	"F1", "F2", "F3", "F4", "F5", "F6",
	"F7", "F8", "F9", "F10", "F11", "F12",
	"Ctrl+Shift+R", "Ctrl+Shift+D", "Ctrl+Alt+V",
}

// Binding is a parsed trigger: one key plus required modifiers.
type Binding struct {
	Name string
	Key  uint16
	Mods Modifier
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"cmd":     ModCmd,
	"command": ModCmd,
	"win":     ModCmd,
	"super":   ModCmd,
}

// modifierKeys maps physical modifier keys (both sides) to their Modifier bit.
var modifierKeys = map[string]Modifier{
	"ctrl":   ModCtrl,
	"shift":  ModShift,
	"rshift": ModShift,
	"alt":    ModAlt,
	"ralt":   ModAlt,
	"cmd":    ModCmd,
	"rcmd":   ModCmd,
}

// rightCtrl is VC_CONTROL_R. gohook's Keycode table has no name for it.
const rightCtrl uint16 = 3613

// Parse parses strings like "F8" or "Ctrl+Shift+R" (case-insensitive).
func Parse(s string) (Binding, error) {
	parts := strings.Split(strings.TrimSpace(s), "+")
	if len(parts) == 0 || strings.TrimSpace(parts[len(parts)-1]) == "" {
		return Binding{}, fmt.Errorf("%w: %q", ErrInvalidBinding, s)
	}

	var b Binding
	names := make([]string, 0, len(parts))
	for _, p := range parts[:len(parts)-1] {
		name := strings.ToLower(strings.TrimSpace(p))
		m, ok := modifierNames[name]
		if !ok {
			return Binding{}, fmt.Errorf("%w: unknown modifier %q", ErrInvalidBinding, p)
		}
		if b.Mods&m != 0 {
			return Binding{}, fmt.Errorf("%w: duplicate modifier %q", ErrInvalidBinding, p)
		}
		b.Mods |= m
	}

	key := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
	if _, isMod := modifierNames[key]; isMod {
		return Binding{}, fmt.Errorf("%w: %q has no trigger key", ErrInvalidBinding, s)
	}
	code, ok := hook.Keycode[key]
	if !ok {
		return Binding{}, fmt.Errorf("%w: unknown key %q", ErrInvalidBinding, key)
	}
	b.Key = code

	// Plain letters would fire while typing.
	if b.Mods == 0 && !isFunctionKey(key) {
		return Binding{}, fmt.Errorf("%w: %q needs a modifier", ErrInvalidBinding, s)
	}

	for _, m := range []struct {
		bit  Modifier
		name string
	}{{ModCtrl, "Ctrl"}, {ModShift, "Shift"}, {ModAlt, "Alt"}, {ModCmd, "Cmd"}} {
		if b.Mods&m.bit != 0 {
			names = append(names, m.name)
		}
	}
	names = append(names, displayKey(key))
	b.Name = strings.Join(names, "+")
	return b, nil
}

// String returns the canonical form of the binding.
func (b Binding) String() string { return b.Name }

func isFunctionKey(key string) bool {
	if len(key) < 2 || key[0] != 'f' {
		return false
	}
	for _, r := range key[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func displayKey(key string) string {
	if len(key) == 1 || isFunctionKey(key) {
		return strings.ToUpper(key)
	}
	return strings.ToUpper(key[:1]) + key[1:]
}
