package stt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

// WhisperLocal implements the Provider interface by running the whisper.cpp CLI.
type WhisperLocal struct {
	modelPath string
	modelSize string // "tiny", "base", "small", "medium", "large"
	binPath   string // Explicit whisper-cli path, if configured
	threads   int

	mu            sync.RWMutex
	setupProgress int
}

// WhisperLocalConfig holds configuration for WhisperLocal.
type WhisperLocalConfig struct {
	ModelSize string // "tiny", "base", "small", "medium", "large"
	ModelDir  string // Directory to store models
	ModelPath string // Explicit model file; overrides ModelSize/ModelDir
	BinPath   string // Path to whisper-cli (optional, searched if not set)
	Threads   int    // Inference threads; 0 lets whisper.cpp decide
}

// Model sizes and their approximate download sizes.
var modelSizes = map[string]struct {
	URL  string
	Size int64 // Approximate size in bytes
}{
	"tiny":   {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-tiny.bin", 75 * 1024 * 1024},
	"base":   {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-base.bin", 142 * 1024 * 1024},
	"small":  {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-small.bin", 466 * 1024 * 1024},
	"medium": {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-medium.bin", 1500 * 1024 * 1024},
	"large":  {"https://huggingface.co/ggerganov/whisper.cpp/resolve/main/ggml-large-v3.bin", 3000 * 1024 * 1024},
}

// ModelSizes returns the downloadable model sizes.
func ModelSizes() []string {
	return []string{"tiny", "base", "small", "medium", "large"}
}

// DefaultModelDir returns ~/.ghostwriter/models.
func DefaultModelDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(homeDir, ".ghostwriter", "models"), nil
}

// NewWhisperLocal creates a new WhisperLocal provider.
func NewWhisperLocal(cfg WhisperLocalConfig) (*WhisperLocal, error) {
	if cfg.ModelSize == "" {
		cfg.ModelSize = "tiny"
	}
	if _, ok := modelSizes[cfg.ModelSize]; !ok && cfg.ModelPath == "" {
		return nil, fmt.Errorf("invalid model size: %s", cfg.ModelSize)
	}

	modelPath := cfg.ModelPath
	if modelPath == "" {
		if cfg.ModelDir == "" {
			dir, err := DefaultModelDir()
			if err != nil {
				return nil, err
			}
			cfg.ModelDir = dir
		}
		modelPath = filepath.Join(cfg.ModelDir, fmt.Sprintf("ggml-%s.bin", cfg.ModelSize))
	}

	w := &WhisperLocal{
		modelSize:     cfg.ModelSize,
		modelPath:     modelPath,
		binPath:       cfg.BinPath,
		threads:       cfg.Threads,
		setupProgress: -1,
	}
	if w.Check() == nil {
		w.setupProgress = 100
	}
	return w, nil
}

func (w *WhisperLocal) Name() string { return EngineWhisperCLI }
func (w *WhisperLocal) DisplayName() string {
	if w.binary() == "" {
		return fmt.Sprintf("Whisper Local (%s) [whisper.cpp not installed]", w.modelSize)
	}
	return fmt.Sprintf("Whisper Local (%s)", w.modelSize)
}
func (w *WhisperLocal) IsLocal() bool       { return true }
func (w *WhisperLocal) RequiresSetup() bool { return !w.HasModel() }
func (w *WhisperLocal) IsReady() bool       { return w.Check() == nil }

// ModelPath returns the model file used for transcription.
func (w *WhisperLocal) ModelPath() string { return w.modelPath }

// HasBinary returns true if the whisper-cli binary is available.
func (w *WhisperLocal) HasBinary() bool { return w.binary() != "" }

// HasModel returns true if the model file exists.
func (w *WhisperLocal) HasModel() bool {
	_, err := os.Stat(w.modelPath)
	return err == nil
}

// Check reports which engine files are missing.
func (w *WhisperLocal) Check() error {
	var missing []string
	if !w.HasBinary() {
		missing = append(missing, "whisper-cli binary")
	}
	if !w.HasModel() {
		missing = append(missing, "model "+w.modelPath)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrEngineUnavailable, strings.Join(missing, ", "))
	}
	return nil
}

func (w *WhisperLocal) SetupProgress() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.setupProgress
}

// Setup downloads the whisper model if needed.
func (w *WhisperLocal) Setup(ctx context.Context, progress func(percent int)) error {
	if w.HasModel() {
		w.setProgress(100)
		if progress != nil {
			progress(100)
		}
		return nil
	}
	w.setProgress(0)

	modelInfo, ok := modelSizes[w.modelSize]
	if !ok {
		return fmt.Errorf("unknown model size: %s", w.modelSize)
	}

	if err := os.MkdirAll(filepath.Dir(w.modelPath), 0755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}

	if err := w.downloadModel(ctx, modelInfo.URL, modelInfo.Size, progress); err != nil {
		w.setProgress(-1)
		return fmt.Errorf("download model: %w", err)
	}

	w.setProgress(100)
	if progress != nil {
		progress(100)
	}
	return nil
}

func (w *WhisperLocal) setProgress(pct int) {
	w.mu.Lock()
	w.setupProgress = pct
	w.mu.Unlock()
}

func (w *WhisperLocal) downloadModel(ctx context.Context, url string, expectedSize int64, progress func(percent int)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http status: %d", resp.StatusCode)
	}
	if resp.ContentLength > 0 {
		expectedSize = resp.ContentLength
	}

	tmpPath := w.modelPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // Clean up on failure
	}()

	pw := &progressWriter{total: expectedSize, report: func(pct int) {
		w.setProgress(pct)
		if progress != nil {
			progress(pct)
		}
	}}
	if _, err := io.Copy(f, io.TeeReader(resp.Body, pw)); err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Close file before rename
	if err := f.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpPath, w.modelPath); err != nil {
		return fmt.Errorf("rename file: %w", err)
	}
	return nil
}

// progressWriter reports download progress in whole percent, capped at 99
// until the file is in place.
type progressWriter struct {
	total   int64
	written int64
	last    int
	report  func(int)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 {
		pct := min(int(p.written*100/p.total), 99)
		if pct > p.last {
			p.last = pct
			p.report(pct)
		}
	}
	return len(b), nil
}

// Transcribe writes the samples to a temp WAV and runs
// `whisper-cli -m <model> -f <wav> -nt -np`, returning trimmed stdout.
// The process is killed when ctx is done.
func (w *WhisperLocal) Transcribe(ctx context.Context, audio []float32, sampleRate int, language string) (*TranscribeResult, error) {
	if err := w.Check(); err != nil {
		return nil, err
	}

	audioPath, err := writeTempWAV(audio, sampleRate)
	if err != nil {
		return nil, err
	}
	defer os.Remove(audioPath)

	args := []string{
		"-m", w.modelPath,
		"-f", audioPath,
		"-nt", // no timestamps
		"-np", // no progress prints
	}
	if language != "" {
		args = append(args, "-l", language)
	}
	if w.threads > 0 {
		args = append(args, "-t", strconv.Itoa(w.threads))
	}

	cmd := exec.CommandContext(ctx, w.binary(), args...)
	hideWindow(cmd)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 200 {
			msg = msg[len(msg)-200:]
		}
		return nil, fmt.Errorf("%w: whisper-cli: %w: %s", ErrEngineFailure, err, msg)
	}

	return &TranscribeResult{
		Text:     strings.TrimSpace(stdout.String()),
		Language: language,
	}, nil
}

func (w *WhisperLocal) binary() string {
	if w.binPath != "" {
		if _, err := os.Stat(w.binPath); err == nil {
			return w.binPath
		}
		return ""
	}
	return findWhisperBinary()
}

func findWhisperBinary() string {
	// whisper-cli is the current upstream name; the others are older builds
	names := []string{"whisper-cli", "whisper-cpp", "whisper", "main"}

	// Next to our own executable first, the way the release archive ships it.
	if execPath, err := os.Executable(); err == nil {
		for _, name := range names {
			path := filepath.Join(filepath.Dir(execPath), exeName(name))
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	homeDir, _ := os.UserHomeDir()
	locations := []string{
		"/opt/homebrew/bin",
		"/usr/local/bin",
		filepath.Join(homeDir, ".local", "bin"),
		filepath.Join(homeDir, "whisper.cpp", "build", "bin"),
	}
	for _, loc := range locations {
		for _, name := range names {
			path := filepath.Join(loc, exeName(name))
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func exeName(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".exe"
	}
	return name
}

func (w *WhisperLocal) Close() error {
	return nil
}

var _ Provider = (*WhisperLocal)(nil)
