// Package types provides shared type definitions for the application.
package types

import "time"

// Outcome is how a dictation session ended.
type Outcome string

const (
	OutcomeInjected          Outcome = "injected"           // All text typed
	OutcomePartial           Outcome = "partial"            // Some units could not be typed
	OutcomeDiscarded         Outcome = "discarded"          // Recording below the minimum length or silent
	OutcomeCancelled         Outcome = "cancelled"          // User cancelled
	OutcomeFailed            Outcome = "failed"             // Engine failure or timeout
	OutcomeDeviceUnavailable Outcome = "device_unavailable" // No input device
)

// SessionRecord is the persisted summary of one finished session.
type SessionRecord struct {
	ID            string        `json:"id"`
	StartedAt     time.Time     `json:"startedAt"`
	AudioDuration time.Duration `json:"audioDuration"`
	Outcome       Outcome       `json:"outcome"`
	Text          string        `json:"text,omitempty"`
	Error         string        `json:"error,omitempty"`
	Engine        string        `json:"engine,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Engine Types
// ─────────────────────────────────────────────────────────────────────────────

// EngineInfo represents information about a transcription engine.
type EngineInfo struct {
	Name          string `json:"name"`          // Provider identifier
	DisplayName   string `json:"displayName"`   // Human-readable name
	RequiresSetup bool   `json:"requiresSetup"` // Whether setup is needed (e.g., model download)
	SetupProgress int    `json:"setupProgress"` // Setup progress 0-100, -1 if not started
	IsReady       bool   `json:"isReady"`       // Whether the engine is ready to use
	Active        bool   `json:"active"`        // Whether settings select this engine
}
