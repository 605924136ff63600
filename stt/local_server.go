package stt

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// ErrNotLoopback is returned for server URLs that do not point at this machine.
var ErrNotLoopback = errors.New("stt: server url must be a loopback address")

const defaultServerModel = "whisper-1"

// LocalServer transcribes through an OpenAI-compatible server running on
// this machine (whisper.cpp server, faster-whisper-server, LocalAI).
type LocalServer struct {
	baseURL string
	model   string
	client  openai.Client
}

// LocalServerConfig holds configuration for LocalServer.
type LocalServerConfig struct {
	BaseURL string // e.g. http://127.0.0.1:8080/v1/
	Model   string // Optional, defaults to "whisper-1"
	APIKey  string // Optional; most local servers ignore it
}

// NewLocalServer creates a LocalServer provider. Non-loopback URLs are rejected.
func NewLocalServer(cfg LocalServerConfig) (*LocalServer, error) {
	if err := checkLoopback(cfg.BaseURL); err != nil {
		return nil, err
	}

	model := cfg.Model
	if model == "" {
		model = defaultServerModel
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "local"
	}

	baseURL := cfg.BaseURL
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	return &LocalServer{
		baseURL: baseURL,
		model:   model,
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
		),
	}, nil
}

func checkLoopback(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrNotLoopback, raw)
	}
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return nil
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrNotLoopback, raw)
}

func (s *LocalServer) Name() string        { return EngineLocalServer }
func (s *LocalServer) DisplayName() string { return "Local server (" + s.baseURL + ")" }
func (s *LocalServer) IsLocal() bool       { return true }
func (s *LocalServer) RequiresSetup() bool { return false }
func (s *LocalServer) IsReady() bool       { return true }
func (s *LocalServer) SetupProgress() int  { return 100 }

func (s *LocalServer) Setup(context.Context, func(percent int)) error { return nil }

// Transcribe posts the samples as a WAV file to /audio/transcriptions.
func (s *LocalServer) Transcribe(ctx context.Context, audio []float32, sampleRate int, language string) (*TranscribeResult, error) {
	path, err := writeTempWAV(audio, sampleRate)
	if err != nil {
		return nil, err
	}
	defer os.Remove(path)

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(f, "audio.wav", "audio/wav"),
		Model: openai.AudioModel(s.model),
	}
	if language != "" {
		params.Language = openai.String(language)
	}

	resp, err := s.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: local server: %w", ErrEngineFailure, err)
	}

	return &TranscribeResult{
		Text:     strings.TrimSpace(resp.Text),
		Language: language,
	}, nil
}

func (s *LocalServer) Close() error { return nil }

var _ Provider = (*LocalServer)(nil)
