package app

// Desktop notification texts.
const (
	msgEngineMissing = "Speech engine not found. Install whisper-cli and run: ghostwriter model download"
	msgStartupHint   = "GhostWriter is running in the tray. Press %s to start dictating."
)
