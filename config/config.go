// Package config handles application settings.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/joho/godotenv"
)

const (
	appName          = "ghostwriter"
	settingsFileName = "settings.json"
	envFileName      = ".env"
)

// Environment overrides. They apply to snapshots but are never saved.
const (
	EnvWhisperBin   = "GHOSTWRITER_WHISPER_BIN"
	EnvWhisperModel = "GHOSTWRITER_WHISPER_MODEL"
	EnvServerURL    = "GHOSTWRITER_SERVER_URL"
	EnvLanguage     = "GHOSTWRITER_LANGUAGE"
)

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// DefaultPath returns <UserConfigDir>/ghostwriter/settings.json.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, settingsFileName), nil
}

// Store holds the current settings and persists them on change.
type Store struct {
	path string

	mu        sync.RWMutex
	settings  Settings
	listeners []func(Settings)
}

// Open loads the settings at path, or at DefaultPath when path is empty.
// A .env file next to the settings file is loaded into the environment.
// A missing file yields defaults.
func Open(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	envPath := filepath.Join(filepath.Dir(path), envFileName)
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("load env file", "path", envPath, "error", err)
	}

	s := &Store{path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.settings = Defaults()
			return nil
		}
		return fmt.Errorf("read settings: %w", err)
	}

	settings, migrated := Decode(data)
	s.settings = settings
	if migrated {
		slog.Info("migrate legacy settings", "path", s.path)
		if err := s.save(settings); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the settings file location.
func (s *Store) Path() string { return s.path }

// Stored returns the settings as saved, without environment overrides.
func (s *Store) Stored() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Snapshot returns the effective settings: the stored values with
// environment overrides applied. The result is a copy.
func (s *Store) Snapshot() Settings {
	settings := s.Stored()
	applyEnv(&settings)
	return settings
}

func applyEnv(s *Settings) {
	if v := os.Getenv(EnvWhisperBin); v != "" {
		s.WhisperBinary = v
	}
	if v := os.Getenv(EnvWhisperModel); v != "" {
		s.WhisperModel = v
	}
	if v := os.Getenv(EnvServerURL); v != "" {
		s.ServerURL = v
	}
	if v := os.Getenv(EnvLanguage); v != "" {
		s.Language = v
	}
}

// Update applies fn to a copy of the stored settings, validates and saves
// the result, then notifies listeners. Nothing changes if fn's result is invalid.
func (s *Store) Update(fn func(*Settings)) error {
	return s.update(func(st *Settings) error {
		fn(st)
		return nil
	})
}

func (s *Store) update(fn func(*Settings) error) error {
	s.mu.Lock()
	next := s.settings
	if err := fn(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.save(next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.settings = next
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	snapshot := next
	applyEnv(&snapshot)
	for _, l := range listeners {
		l(snapshot)
	}
	return nil
}

// Set assigns one key from its text form and saves.
func (s *Store) Set(key, value string) error {
	return s.update(func(st *Settings) error { return st.Set(key, value) })
}

// OnChange registers fn to receive the effective settings after every Update.
func (s *Store) OnChange(fn func(Settings)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// save persists settings to disk.
func (s *Store) save(settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
