package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.aimuz.me/ghostwriter/hotkey"
	"go.aimuz.me/ghostwriter/stt"
)

var (
	// ErrInvalidSetting is returned when a setting value is out of range.
	ErrInvalidSetting = errors.New("config: invalid setting")

	// ErrUnknownSetting is returned when setting a key that does not exist.
	ErrUnknownSetting = errors.New("config: unknown setting")
)

// PasteSpeed is the keystroke injection tier.
type PasteSpeed string

const (
	PasteFast     PasteSpeed = "fast"
	PasteNormal   PasteSpeed = "normal"
	PasteSlow     PasteSpeed = "slow"
	PasteVerySlow PasteSpeed = "very_slow"
)

// PasteSpeeds lists the tiers from fastest to slowest.
var PasteSpeeds = []PasteSpeed{PasteFast, PasteNormal, PasteSlow, PasteVerySlow}

var pasteDelays = map[PasteSpeed]time.Duration{
	PasteFast:     5 * time.Millisecond,
	PasteNormal:   10 * time.Millisecond,
	PasteSlow:     25 * time.Millisecond,
	PasteVerySlow: 50 * time.Millisecond,
}

// Delay returns the pause between two typed characters.
func (p PasteSpeed) Delay() time.Duration {
	if d, ok := pasteDelays[p]; ok {
		return d
	}
	return pasteDelays[PasteNormal]
}

// Valid reports whether p is a known tier.
func (p PasteSpeed) Valid() bool {
	_, ok := pasteDelays[p]
	return ok
}

// Label returns the menu label of the tier.
func (p PasteSpeed) Label() string {
	switch p {
	case PasteFast:
		return "Fast"
	case PasteSlow:
		return "Slow"
	case PasteVerySlow:
		return "Very Slow"
	default:
		return "Normal"
	}
}

// ParsePasteSpeed accepts tier names in any case, with a space, dash or
// underscore in "very slow".
func ParsePasteSpeed(s string) (PasteSpeed, error) {
	norm := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.ToLower(strings.TrimSpace(s)))
	p := PasteSpeed(norm)
	if !p.Valid() {
		return "", fmt.Errorf("%w: paste speed %q", ErrInvalidSetting, s)
	}
	return p, nil
}

// speedFromLegacyDelay maps the old paste_delay value (seconds) to a tier.
func speedFromLegacyDelay(seconds float64) PasteSpeed {
	switch {
	case seconds <= 0.05:
		return PasteFast
	case seconds <= 0.15:
		return PasteNormal
	case seconds <= 0.25:
		return PasteSlow
	default:
		return PasteVerySlow
	}
}

// Settings is the persisted application configuration.
type Settings struct {
	Hotkey       string     `json:"hotkey"`
	PasteSpeed   PasteSpeed `json:"paste_speed"`
	StartInTray  bool       `json:"start_in_tray"`
	SoundEnabled bool       `json:"sound_enabled"`

	// Engine selection
	Engine        string `json:"engine"`
	WhisperBinary string `json:"whisper_binary,omitempty"`
	WhisperModel  string `json:"whisper_model,omitempty"`
	ModelSize     string `json:"model_size"`
	ServerURL     string `json:"server_url,omitempty"`
	ServerModel   string `json:"server_model,omitempty"`
	Language      string `json:"language,omitempty"`

	// Session thresholds
	TranscribeTimeoutSeconds int     `json:"transcribe_timeout_seconds"`
	MinRecordingMS           int     `json:"min_recording_ms"`
	SilenceThreshold         float64 `json:"silence_threshold"`
}

// Defaults returns the settings used when nothing is stored.
func Defaults() Settings {
	return Settings{
		Hotkey:                   "F8",
		PasteSpeed:               PasteNormal,
		StartInTray:              false,
		SoundEnabled:             true,
		Engine:                   stt.EngineWhisperCLI,
		ModelSize:                "tiny",
		TranscribeTimeoutSeconds: 30,
		MinRecordingMS:           500,
		SilenceThreshold:         0,
	}
}

// TranscribeTimeout returns the maximum wait for the engine.
func (s Settings) TranscribeTimeout() time.Duration {
	return time.Duration(s.TranscribeTimeoutSeconds) * time.Second
}

// MinRecording returns the shortest recording that is transcribed.
func (s Settings) MinRecording() time.Duration {
	return time.Duration(s.MinRecordingMS) * time.Millisecond
}

// Validate checks every field.
func (s Settings) Validate() error {
	var errs []error
	for _, f := range fields {
		if err := f.check(s); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.key, err))
		}
	}
	return errors.Join(errs...)
}

// ─────────────────────────────────────────────────────────────────────────────
// Per-field decoding
// ─────────────────────────────────────────────────────────────────────────────

// field decodes and validates one settings key.
type field struct {
	key    string
	decode func(raw json.RawMessage, s *Settings) error
	check  func(s Settings) error
}

func stringField(key string, ptr func(*Settings) *string, check func(string) (string, error)) field {
	return field{
		key: key,
		decode: func(raw json.RawMessage, s *Settings) error {
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			if check != nil {
				var err error
				if v, err = check(v); err != nil {
					return err
				}
			}
			*ptr(s) = v
			return nil
		},
		check: func(s Settings) error {
			if check == nil {
				return nil
			}
			_, err := check(*ptr(&s))
			return err
		},
	}
}

func boolField(key string, ptr func(*Settings) *bool) field {
	return field{
		key: key,
		decode: func(raw json.RawMessage, s *Settings) error {
			return json.Unmarshal(raw, ptr(s))
		},
		check: func(Settings) error { return nil },
	}
}

func numberField[T int | float64](key string, ptr func(*Settings) *T, valid func(T) bool) field {
	return field{
		key: key,
		decode: func(raw json.RawMessage, s *Settings) error {
			var v T
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			if !valid(v) {
				return fmt.Errorf("%w: %v", ErrInvalidSetting, v)
			}
			*ptr(s) = v
			return nil
		},
		check: func(s Settings) error {
			if v := *ptr(&s); !valid(v) {
				return fmt.Errorf("%w: %v", ErrInvalidSetting, v)
			}
			return nil
		},
	}
}

func checkHotkey(v string) (string, error) {
	b, err := hotkey.Parse(v)
	if err != nil {
		return "", err
	}
	return b.Name, nil
}

func checkEngine(v string) (string, error) {
	if v != stt.EngineWhisperCLI && v != stt.EngineLocalServer {
		return "", fmt.Errorf("%w: engine %q", ErrInvalidSetting, v)
	}
	return v, nil
}

func checkModelSize(v string) (string, error) {
	if !slices.Contains(stt.ModelSizes(), v) {
		return "", fmt.Errorf("%w: model size %q", ErrInvalidSetting, v)
	}
	return v, nil
}

var fields = []field{
	stringField("hotkey", func(s *Settings) *string { return &s.Hotkey }, checkHotkey),
	{
		key: "paste_speed",
		decode: func(raw json.RawMessage, s *Settings) error {
			var v string
			if err := json.Unmarshal(raw, &v); err != nil {
				return err
			}
			p, err := ParsePasteSpeed(v)
			if err != nil {
				return err
			}
			s.PasteSpeed = p
			return nil
		},
		check: func(s Settings) error {
			if !s.PasteSpeed.Valid() {
				return fmt.Errorf("%w: paste speed %q", ErrInvalidSetting, s.PasteSpeed)
			}
			return nil
		},
	},
	boolField("start_in_tray", func(s *Settings) *bool { return &s.StartInTray }),
	boolField("sound_enabled", func(s *Settings) *bool { return &s.SoundEnabled }),
	stringField("engine", func(s *Settings) *string { return &s.Engine }, checkEngine),
	stringField("whisper_binary", func(s *Settings) *string { return &s.WhisperBinary }, nil),
	stringField("whisper_model", func(s *Settings) *string { return &s.WhisperModel }, nil),
	stringField("model_size", func(s *Settings) *string { return &s.ModelSize }, checkModelSize),
	stringField("server_url", func(s *Settings) *string { return &s.ServerURL }, nil),
	stringField("server_model", func(s *Settings) *string { return &s.ServerModel }, nil),
	stringField("language", func(s *Settings) *string { return &s.Language }, nil),
	numberField("transcribe_timeout_seconds", func(s *Settings) *int { return &s.TranscribeTimeoutSeconds },
		func(v int) bool { return v > 0 && v <= 600 }),
	numberField("min_recording_ms", func(s *Settings) *int { return &s.MinRecordingMS },
		func(v int) bool { return v >= 0 }),
	numberField("silence_threshold", func(s *Settings) *float64 { return &s.SilenceThreshold },
		func(v float64) bool { return v >= 0 && v < 1 }),
}

// Keys returns the setting names in file order.
func Keys() []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	return keys
}

func lookupField(key string) (field, bool) {
	for _, f := range fields {
		if f.key == key {
			return f, true
		}
	}
	return field{}, false
}

// Decode parses a settings file. Keys that are missing or invalid keep their
// defaults; a document that is not a JSON object yields all defaults.
// migrated reports whether legacy keys were converted.
func Decode(data []byte) (s Settings, migrated bool) {
	s = Defaults()

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("ignore malformed settings", "error", err)
		return s, false
	}

	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := f.decode(v, &s); err != nil {
			slog.Warn("ignore setting", "key", f.key, "error", err)
		}
	}

	return s, migrateLegacy(raw, &s)
}

// migrateLegacy converts keys written by older versions.
func migrateLegacy(raw map[string]json.RawMessage, s *Settings) bool {
	migrated := false

	if v, ok := raw["paste_delay"]; ok {
		migrated = true
		var seconds float64
		if _, has := raw["paste_speed"]; !has && json.Unmarshal(v, &seconds) == nil {
			s.PasteSpeed = speedFromLegacyDelay(seconds)
		}
	}
	if v, ok := raw["start_minimized"]; ok {
		migrated = true
		var b bool
		if _, has := raw["start_in_tray"]; !has && json.Unmarshal(v, &b) == nil {
			s.StartInTray = b
		}
	}
	return migrated
}

// Set assigns one key from its text form, as typed on the command line.
func (s *Settings) Set(key, value string) error {
	f, ok := lookupField(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}

	next := *s
	raw := json.RawMessage(value)
	if !json.Valid(raw) || f.decode(raw, &next) != nil {
		quoted, _ := json.Marshal(value)
		next = *s
		if err := f.decode(quoted, &next); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}
	*s = next
	return nil
}
