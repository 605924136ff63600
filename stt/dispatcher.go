package stt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds a single transcription when the request sets none.
const DefaultTimeout = 30 * time.Second

// Request is one complete recording handed to the engine.
type Request struct {
	Samples    []float32
	SampleRate int
	Language   string
	Engine     string        // Provider name; empty uses the dispatcher default
	Timeout    time.Duration // Zero uses the dispatcher default
}

// Result is the outcome of a dispatch. Exactly one of Text or Err is set.
type Result struct {
	Text    string
	Engine  string
	Elapsed time.Duration
	Err     error
}

// Dispatcher runs one bounded transcription attempt per request.
// It never retries.
type Dispatcher struct {
	registry      *Registry
	defaultEngine string
	timeout       time.Duration
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDefaultEngine selects the provider used when a request names none.
func WithDefaultEngine(name string) DispatcherOption {
	return func(d *Dispatcher) { d.defaultEngine = name }
}

// WithTimeout sets the default maximum wait.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// NewDispatcher creates a Dispatcher over the registered providers.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:      registry,
		defaultEngine: EngineWhisperCLI,
		timeout:       DefaultTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type transcribeOutcome struct {
	res *TranscribeResult
	err error
}

// Dispatch transcribes req. It returns ErrEngineTimeout once the timeout
// elapses even if the engine ignores cancellation; the abandoned call is
// left to finish in the background. Cancelling ctx returns ctx.Err().
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	start := time.Now()
	name := req.Engine
	if name == "" {
		name = d.defaultEngine
	}
	result := Result{Engine: name}

	p := d.registry.Get(name)
	if p == nil {
		result.Err = fmt.Errorf("%w: no provider %q", ErrEngineUnavailable, name)
		return result
	}
	if !p.IsReady() {
		result.Err = fmt.Errorf("%w: %s is not ready", ErrEngineUnavailable, name)
		return result
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = d.timeout
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan transcribeOutcome, 1)
	go func() {
		res, err := p.Transcribe(ctx, req.Samples, req.SampleRate, req.Language)
		done <- transcribeOutcome{res, err}
	}()

	var out transcribeOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		out.err = ctx.Err()
	}
	result.Elapsed = time.Since(start)

	switch {
	case out.err != nil && parent.Err() != nil:
		result.Err = parent.Err()
	case out.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		result.Err = fmt.Errorf("%w after %s", ErrEngineTimeout, timeout)
	case out.err == nil && out.res == nil:
		result.Err = ErrEmptyResult
	case out.err == nil:
		text := CleanText(out.res.Text)
		if text == "" {
			result.Err = ErrEmptyResult
		} else {
			result.Text = text
		}
	case errors.Is(out.err, ErrEngineFailure):
		result.Err = out.err
	default:
		result.Err = fmt.Errorf("%w: %w", ErrEngineFailure, out.err)
	}

	if result.Err != nil {
		slog.Warn("transcription failed", "engine", name, "elapsed", result.Elapsed, "error", result.Err)
	} else {
		slog.Info("transcription done", "engine", name, "elapsed", result.Elapsed, "chars", len(result.Text))
	}
	return result
}
