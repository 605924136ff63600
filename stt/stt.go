// Package stt provides the local speech-to-text engines and the dispatcher
// that runs one bounded transcription per dictation session.
package stt

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Engine names accepted by the dispatcher and the engine setting.
const (
	EngineWhisperCLI  = "whisper-cli"
	EngineLocalServer = "local-server"
)

var (
	// ErrEngineFailure is the base error for any failed transcription.
	ErrEngineFailure = errors.New("stt: engine failure")

	// ErrEngineTimeout is returned when the engine exceeds the dispatch timeout.
	ErrEngineTimeout = errors.New("stt: engine timed out")

	// ErrEngineUnavailable is returned when the engine binary or model is missing.
	ErrEngineUnavailable = fmt.Errorf("%w: engine unavailable", ErrEngineFailure)

	// ErrEmptyResult is returned when the engine produced no usable text.
	ErrEmptyResult = fmt.Errorf("%w: empty transcription", ErrEngineFailure)

	// ErrRemoteProvider is returned when registering a provider that leaves the machine.
	ErrRemoteProvider = errors.New("stt: provider is not local")
)

// TranscribeResult represents the result of a transcription.
type TranscribeResult struct {
	Text     string `json:"text"`     // Transcribed text
	Language string `json:"language"` // Language code, if reported
}

// Provider defines the interface for speech-to-text engines.
type Provider interface {
	// Name returns the provider identifier.
	Name() string

	// DisplayName returns the human-readable provider name.
	DisplayName() string

	// IsLocal returns true if audio never leaves the machine.
	IsLocal() bool

	// RequiresSetup returns true if setup is needed (e.g., model download).
	RequiresSetup() bool

	// IsReady returns true if the provider is ready to use.
	IsReady() bool

	// SetupProgress returns the setup progress (0-100), -1 if not started.
	SetupProgress() int

	// Setup performs initialization (e.g., download model).
	// The progress callback receives percentage (0-100).
	Setup(ctx context.Context, progress func(percent int)) error

	// Transcribe converts mono PCM float32 samples to text.
	// language: source language code (empty for auto-detect)
	Transcribe(ctx context.Context, audio []float32, sampleRate int, language string) (*TranscribeResult, error)

	// Close releases resources held by the provider.
	Close() error
}

// Registry holds registered STT providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry. Only local providers are accepted.
func (r *Registry) Register(p Provider) error {
	if !p.IsLocal() {
		return fmt.Errorf("register %s: %w", p.Name(), ErrRemoteProvider)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	return nil
}

// Get returns a provider by name.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// Remove closes and drops the named provider, if registered.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	p, ok := r.providers[name]
	delete(r.providers, name)
	r.mu.Unlock()
	if ok {
		p.Close()
	}
}

// List returns all registered providers sorted by name.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	result := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(a, b Provider) int {
		switch {
		case a.Name() < b.Name():
			return -1
		case a.Name() > b.Name():
			return 1
		}
		return 0
	})
	return result
}

// Close releases all providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
