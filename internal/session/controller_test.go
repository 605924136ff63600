package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.aimuz.me/ghostwriter/audiocapture"
	"go.aimuz.me/ghostwriter/config"
	"go.aimuz.me/ghostwriter/cue"
	"go.aimuz.me/ghostwriter/inject"
	"go.aimuz.me/ghostwriter/internal/types"
	"go.aimuz.me/ghostwriter/stt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeRecorder struct {
	mu        sync.Mutex
	startErr  error
	stopErr   error
	clip      audiocapture.Clip
	recording bool
	starts    int
	discards  int
	overlap   bool
}

func (r *fakeRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return r.startErr
	}
	if r.recording {
		r.overlap = true
	}
	r.recording = true
	r.starts++
	return nil
}

func (r *fakeRecorder) Stop() (audiocapture.Clip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return audiocapture.Clip{}, audiocapture.ErrNotRecording
	}
	r.recording = false
	if r.stopErr != nil {
		return audiocapture.Clip{}, r.stopErr
	}
	return r.clip, nil
}

func (r *fakeRecorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	r.discards++
}

func (r *fakeRecorder) setClip(d time.Duration, level float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	samples := make([]float32, int(d.Seconds()*16000))
	for i := range samples {
		samples[i] = level
	}
	r.clip = audiocapture.Clip{Samples: samples, SampleRate: 16000, Channels: 1}
}

type transcribeFunc func(ctx context.Context, req stt.Request) stt.Result

func (f transcribeFunc) Dispatch(ctx context.Context, req stt.Request) stt.Result { return f(ctx, req) }

// countingTranscriber returns text for every request and counts calls.
type countingTranscriber struct {
	calls atomic.Int32
	text  string
	err   error
}

func (t *countingTranscriber) Dispatch(_ context.Context, req stt.Request) stt.Result {
	t.calls.Add(1)
	return stt.Result{Text: t.text, Engine: req.Engine, Err: t.err}
}

type injectCall struct {
	text  string
	delay time.Duration
}

type fakeInjector struct {
	mu    sync.Mutex
	calls []injectCall
	block chan struct{} // When set, Inject waits for close or ctx.
}

func (f *fakeInjector) Inject(ctx context.Context, text string, delay time.Duration) inject.Report {
	f.mu.Lock()
	f.calls = append(f.calls, injectCall{text, delay})
	block := f.block
	f.mu.Unlock()

	n := len(inject.Units(text))
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return inject.Report{Units: n, Cancelled: true}
		}
	}
	return inject.Report{Units: n, Typed: n}
}

func (f *fakeInjector) Calls() []injectCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

type fakeCues struct {
	mu         sync.Mutex
	cues       []cue.Cue
	indicators []cue.Indicator
	notes      []string
}

func (f *fakeCues) Play(c cue.Cue) {
	f.mu.Lock()
	f.cues = append(f.cues, c)
	f.mu.Unlock()
}

func (f *fakeCues) SetIndicator(i cue.Indicator) {
	f.mu.Lock()
	f.indicators = append(f.indicators, i)
	f.mu.Unlock()
}

func (f *fakeCues) Notify(msg string) {
	f.mu.Lock()
	f.notes = append(f.notes, msg)
	f.mu.Unlock()
}

func (f *fakeCues) Cues() []cue.Cue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.cues)
}

func (f *fakeCues) Indicators() []cue.Indicator {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.indicators)
}

func (f *fakeCues) Notes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.notes)
}

func (f *fakeCues) Indicator() cue.Indicator {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.indicators) == 0 {
		return cue.IndicatorIdle
	}
	return f.indicators[len(f.indicators)-1]
}

type fakeSettings struct {
	mu sync.Mutex
	s  config.Settings
}

func (f *fakeSettings) Snapshot() config.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func (f *fakeSettings) update(fn func(*config.Settings)) {
	f.mu.Lock()
	fn(&f.s)
	f.mu.Unlock()
}

type fakeHistory struct {
	mu   sync.Mutex
	recs []types.SessionRecord
}

func (f *fakeHistory) Record(rec types.SessionRecord) error {
	f.mu.Lock()
	f.recs = append(f.recs, rec)
	f.mu.Unlock()
	return nil
}

func (f *fakeHistory) Outcomes() []types.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []types.Outcome
	for _, r := range f.recs {
		out = append(out, r.Outcome)
	}
	return out
}

func (f *fakeHistory) Records() []types.SessionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.recs)
}

// ─────────────────────────────────────────────────────────────────────────────
// Harness
// ─────────────────────────────────────────────────────────────────────────────

type harness struct {
	c        *Controller
	rec      *fakeRecorder
	inj      *fakeInjector
	cues     *fakeCues
	settings *fakeSettings
	history  *fakeHistory
}

func newHarness(t *testing.T, tr Transcriber, configure func(*Options)) *harness {
	t.Helper()
	h := &harness{
		rec:      &fakeRecorder{},
		inj:      &fakeInjector{},
		cues:     &fakeCues{},
		settings: &fakeSettings{s: config.Defaults()},
		history:  &fakeHistory{},
	}
	h.rec.setClip(time.Second, 0.1)

	opts := Options{
		Recorder:    h.rec,
		Transcriber: tr,
		Injector:    h.inj,
		Cues:        h.cues,
		Settings:    h.settings,
		History:     h.history,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		ErrorHold:   50 * time.Millisecond,
	}
	if configure != nil {
		configure(&opts)
	}

	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.c = c

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Run did not return")
		}
	})
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func (h *harness) waitState(t *testing.T, want State) {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return h.c.State() == want })
}

func (h *harness) waitOutcomes(t *testing.T, n int) []types.Outcome {
	t.Helper()
	waitFor(t, "session records", func() bool { return len(h.history.Outcomes()) >= n })
	return h.history.Outcomes()
}

// ─────────────────────────────────────────────────────────────────────────────
// Scenarios
// ─────────────────────────────────────────────────────────────────────────────

type bufferTyper struct {
	mu sync.Mutex
	b  strings.Builder
}

func (b *bufferTyper) Type(unit string) error {
	b.mu.Lock()
	b.b.WriteString(unit)
	b.mu.Unlock()
	return nil
}

func (b *bufferTyper) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

func TestHelloWorldAtFastTier(t *testing.T) {
	typer := &bufferTyper{}
	tr := &countingTranscriber{text: "hello world"}
	h := newHarness(t, tr, func(o *Options) {
		o.Injector = inject.New(typer)
	})
	h.settings.update(func(s *config.Settings) { s.PasteSpeed = config.PasteFast })

	h.c.Toggle()
	h.waitState(t, Recording)
	h.c.Toggle()

	outcomes := h.waitOutcomes(t, 1)
	h.waitState(t, Idle)

	if got := typer.String(); got != "hello world" {
		t.Fatalf("typed %q", got)
	}
	if outcomes[0] != types.OutcomeInjected {
		t.Errorf("outcome = %s", outcomes[0])
	}
	if got, want := h.cues.Cues(), []cue.Cue{cue.CueStart, cue.CueStop}; !slices.Equal(got, want) {
		t.Errorf("cues = %v, want %v", got, want)
	}
	want := []cue.Indicator{cue.IndicatorIdle, cue.IndicatorActive, cue.IndicatorProcessing, cue.IndicatorIdle}
	if got := h.cues.Indicators(); !slices.Equal(got, want) {
		t.Errorf("indicators = %v, want %v", got, want)
	}

	rec := h.history.Records()[0]
	if rec.Text != "hello world" || rec.AudioDuration != time.Second || rec.ID == "" {
		t.Errorf("record = %+v", rec)
	}
}

func TestBelowThresholdNeverDispatches(t *testing.T) {
	tests := []struct {
		name      string
		duration  time.Duration
		level     float32
		configure func(*config.Settings)
	}{
		{"toggle toggle within 200ms", 150 * time.Millisecond, 0.1, nil},
		{"empty clip", 0, 0, nil},
		{"just under minimum", 499 * time.Millisecond, 0.1, nil},
		{"raised minimum", time.Second, 0.1, func(s *config.Settings) { s.MinRecordingMS = 2000 }},
		{"silent", time.Second, 0.001, func(s *config.Settings) { s.SilenceThreshold = 0.01 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &countingTranscriber{text: "never"}
			h := newHarness(t, tr, nil)
			h.rec.setClip(tt.duration, tt.level)
			if tt.configure != nil {
				h.settings.update(tt.configure)
			}

			h.c.Toggle()
			h.c.Toggle()

			outcomes := h.waitOutcomes(t, 1)
			h.waitState(t, Idle)
			if outcomes[0] != types.OutcomeDiscarded {
				t.Errorf("outcome = %s", outcomes[0])
			}
			if tr.calls.Load() != 0 {
				t.Errorf("dispatched %d times", tr.calls.Load())
			}
			if len(h.inj.Calls()) != 0 {
				t.Error("injector called")
			}
			if slices.Contains(h.cues.Cues(), cue.CueError) {
				t.Error("discard is not an error")
			}
		})
	}
}

func TestEngineFailureThenNewSession(t *testing.T) {
	tr := &countingTranscriber{err: stt.ErrEmptyResult}
	h := newHarness(t, tr, nil)

	h.c.Toggle()
	h.waitState(t, Recording)
	h.c.Toggle()
	h.waitState(t, Error)

	if h.cues.Indicator() != cue.IndicatorError {
		t.Errorf("indicator = %s, want error", h.cues.Indicator())
	}
	waitFor(t, "error cue", func() bool { return slices.Contains(h.cues.Cues(), cue.CueError) })

	// Auto reset after the hold.
	h.waitState(t, Idle)
	if h.cues.Indicator() != cue.IndicatorIdle {
		t.Errorf("indicator = %s after reset", h.cues.Indicator())
	}

	// The next session succeeds.
	tr.err = nil
	tr.text = "second try"
	h.c.Toggle()
	h.waitState(t, Recording)
	h.c.Toggle()
	outcomes := h.waitOutcomes(t, 2)
	if !slices.Equal(outcomes, []types.Outcome{types.OutcomeFailed, types.OutcomeInjected}) {
		t.Fatalf("outcomes = %v", outcomes)
	}
	recs := h.history.Records()
	if recs[0].ID == recs[1].ID {
		t.Error("sessions share an id")
	}
	if !strings.Contains(recs[0].Error, "empty transcription") {
		t.Errorf("error = %q", recs[0].Error)
	}
}

func TestToggleDuringErrorHoldStartsSession(t *testing.T) {
	tr := &countingTranscriber{err: stt.ErrEngineFailure}
	h := newHarness(t, tr, func(o *Options) { o.ErrorHold = time.Hour })

	h.c.Toggle()
	h.c.Toggle()
	h.waitState(t, Error)

	h.c.Toggle()
	h.waitState(t, Recording)
}

func TestErrorHoldNegativeResetsAtOnce(t *testing.T) {
	tr := &countingTranscriber{err: stt.ErrEngineFailure}
	var mu sync.Mutex
	var seen []State
	h := newHarness(t, tr, func(o *Options) {
		o.ErrorHold = -1
		o.OnTransition = func(_, to State) {
			mu.Lock()
			seen = append(seen, to)
			mu.Unlock()
		}
	})

	h.c.Toggle()
	h.c.Toggle()
	h.waitOutcomes(t, 1)
	h.waitState(t, Idle)

	mu.Lock()
	defer mu.Unlock()
	want := []State{Recording, Transcribing, Error, Idle}
	if !slices.Equal(seen, want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
}

// hungProvider never returns on its own.
type hungProvider struct{ release chan struct{} }

func (p *hungProvider) Name() string                                   { return "hung" }
func (p *hungProvider) DisplayName() string                            { return "hung" }
func (p *hungProvider) IsLocal() bool                                  { return true }
func (p *hungProvider) RequiresSetup() bool                            { return false }
func (p *hungProvider) IsReady() bool                                  { return true }
func (p *hungProvider) SetupProgress() int                             { return 100 }
func (p *hungProvider) Setup(context.Context, func(percent int)) error { return nil }
func (p *hungProvider) Close() error                                   { return nil }
func (p *hungProvider) Transcribe(context.Context, []float32, int, string) (*stt.TranscribeResult, error) {
	<-p.release
	return &stt.TranscribeResult{Text: "too late"}, nil
}

func TestEngineTimeout(t *testing.T) {
	p := &hungProvider{release: make(chan struct{})}
	defer close(p.release)

	reg := stt.NewRegistry()
	if err := reg.Register(p); err != nil {
		t.Fatal(err)
	}
	d := stt.NewDispatcher(reg, stt.WithDefaultEngine("hung"))

	h := newHarness(t, d, func(o *Options) { o.ErrorHold = 100 * time.Millisecond })
	h.settings.update(func(s *config.Settings) {
		s.Engine = "hung"
		s.TranscribeTimeoutSeconds = 1
	})

	h.c.Toggle()
	h.waitState(t, Recording)
	start := time.Now()
	h.c.Toggle()
	h.waitState(t, Error)
	elapsed := time.Since(start)

	if elapsed < time.Second || elapsed > 1500*time.Millisecond {
		t.Errorf("entered Error after %v, want about 1s", elapsed)
	}
	h.waitState(t, Idle)

	recs := h.history.Records()
	if len(recs) != 1 || recs[0].Outcome != types.OutcomeFailed || !strings.Contains(recs[0].Error, "timed out") {
		t.Fatalf("records = %+v", recs)
	}
	if len(h.inj.Calls()) != 0 {
		t.Error("timed out session typed text")
	}
}

func TestFailureEscalation(t *testing.T) {
	tr := &countingTranscriber{err: stt.ErrEngineUnavailable}
	h := newHarness(t, tr, func(o *Options) { o.ErrorHold = -1 })

	runSession := func(n int) {
		t.Helper()
		h.c.Toggle()
		h.waitState(t, Recording)
		h.c.Toggle()
		h.waitOutcomes(t, n)
		h.waitState(t, Idle)
	}

	runSession(1)
	runSession(2)
	if h.cues.Indicator() != cue.IndicatorIdle || len(h.cues.Notes()) != 0 {
		t.Fatalf("escalated early: indicator %s, notes %q", h.cues.Indicator(), h.cues.Notes())
	}

	runSession(3)
	if h.cues.Indicator() != cue.IndicatorWarning {
		t.Errorf("indicator = %s, want warning", h.cues.Indicator())
	}
	waitFor(t, "notification", func() bool { return len(h.cues.Notes()) == 1 })

	// Further failures keep the warning without repeating the notification.
	runSession(4)
	if h.cues.Indicator() != cue.IndicatorWarning || len(h.cues.Notes()) != 1 {
		t.Errorf("indicator %s, notes %q", h.cues.Indicator(), h.cues.Notes())
	}

	// The warning never blocks a new attempt, and success clears it.
	tr.err = nil
	tr.text = "works again"
	runSession(5)
	if h.cues.Indicator() != cue.IndicatorIdle {
		t.Errorf("indicator = %s after success", h.cues.Indicator())
	}
}

func TestToggleWhileInjectingIsDropped(t *testing.T) {
	tr := &countingTranscriber{text: "some text"}
	h := newHarness(t, tr, nil)
	release := make(chan struct{})
	h.inj.block = release

	h.c.Toggle()
	h.c.Toggle()
	h.waitState(t, Injecting)

	h.c.Toggle()
	waitFor(t, "busy cue", func() bool { return slices.Contains(h.cues.Cues(), cue.CueBusy) })
	if h.c.State() != Injecting {
		t.Fatalf("state = %s, want injecting", h.c.State())
	}

	close(release)
	h.waitState(t, Idle)
	h.waitOutcomes(t, 1)

	// The dropped toggle was not queued.
	time.Sleep(20 * time.Millisecond)
	if h.c.State() != Idle {
		t.Fatalf("state = %s, dropped toggle started a session", h.c.State())
	}
	if n := len(h.inj.Calls()); n != 1 {
		t.Fatalf("injector called %d times", n)
	}
}

func TestCancel(t *testing.T) {
	t.Run("recording", func(t *testing.T) {
		tr := &countingTranscriber{text: "x"}
		h := newHarness(t, tr, nil)

		h.c.Toggle()
		h.waitState(t, Recording)
		h.c.Cancel()
		h.waitState(t, Idle)

		if got := h.waitOutcomes(t, 1); got[0] != types.OutcomeCancelled {
			t.Errorf("outcome = %s", got[0])
		}
		h.rec.mu.Lock()
		discards := h.rec.discards
		h.rec.mu.Unlock()
		if discards != 1 {
			t.Errorf("discards = %d", discards)
		}
		if tr.calls.Load() != 0 {
			t.Error("cancelled recording was transcribed")
		}
		if !slices.Contains(h.cues.Cues(), cue.CueCancel) {
			t.Error("no cancel cue")
		}
	})

	t.Run("idle is a no-op", func(t *testing.T) {
		h := newHarness(t, &countingTranscriber{text: "x"}, nil)
		h.c.Cancel()
		h.c.Toggle()
		h.waitState(t, Recording)
	})
}

func TestStopTranscriptionDiscardsResult(t *testing.T) {
	for _, stop := range []string{"cancel", "toggle"} {
		t.Run(stop, func(t *testing.T) {
			release := make(chan struct{})
			var calls atomic.Int32
			tr := transcribeFunc(func(ctx context.Context, req stt.Request) stt.Result {
				calls.Add(1)
				<-release // ignores ctx, like a stuck engine
				return stt.Result{Text: "late text", Engine: req.Engine}
			})
			h := newHarness(t, tr, nil)

			h.c.Toggle()
			h.c.Toggle()
			h.waitState(t, Transcribing)

			if stop == "cancel" {
				h.c.Cancel()
			} else {
				h.c.Toggle()
			}
			h.waitState(t, Idle)
			close(release)

			if got := h.waitOutcomes(t, 1); got[0] != types.OutcomeCancelled {
				t.Errorf("outcome = %s", got[0])
			}
			// The late result must not reach the injector.
			time.Sleep(50 * time.Millisecond)
			if len(h.inj.Calls()) != 0 {
				t.Fatal("stale transcription was typed")
			}
			if h.c.State() != Idle {
				t.Fatalf("state = %s", h.c.State())
			}
		})
	}
}

func TestCancelDuringInjectingWaitsForBoundary(t *testing.T) {
	typer := &bufferTyper{}
	tr := &countingTranscriber{text: "a fairly long sentence to type"}
	h := newHarness(t, tr, func(o *Options) { o.Injector = inject.New(typer) })
	h.settings.update(func(s *config.Settings) { s.PasteSpeed = config.PasteVerySlow })

	h.c.Toggle()
	h.c.Toggle()
	h.waitState(t, Injecting)
	waitFor(t, "first characters", func() bool { return len(typer.String()) >= 2 })

	h.c.Cancel()
	h.waitState(t, Idle)

	if got := h.waitOutcomes(t, 1); got[0] != types.OutcomeCancelled {
		t.Errorf("outcome = %s", got[0])
	}
	typed := typer.String()
	if typed == "" || len(typed) >= len(tr.text) || !strings.HasPrefix(tr.text, typed) {
		t.Errorf("typed %q, want a strict prefix of %q", typed, tr.text)
	}
}

func TestDeviceUnavailable(t *testing.T) {
	tr := &countingTranscriber{text: "x"}
	var mu sync.Mutex
	var seen []State
	h := newHarness(t, tr, func(o *Options) {
		o.OnTransition = func(_, to State) {
			mu.Lock()
			seen = append(seen, to)
			mu.Unlock()
		}
	})
	h.rec.startErr = audiocapture.ErrDeviceUnavailable

	h.c.Toggle()
	if got := h.waitOutcomes(t, 1); got[0] != types.OutcomeDeviceUnavailable {
		t.Fatalf("outcome = %s", got[0])
	}
	waitFor(t, "notification", func() bool { return len(h.cues.Notes()) == 1 })

	if h.c.State() != Idle {
		t.Errorf("state = %s", h.c.State())
	}
	if !slices.Contains(h.cues.Cues(), cue.CueError) || slices.Contains(h.cues.Cues(), cue.CueStart) {
		t.Errorf("cues = %v", h.cues.Cues())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 0 {
		t.Errorf("transitions = %v, want none", seen)
	}
}

func TestStopRecordingFailure(t *testing.T) {
	tr := &countingTranscriber{text: "x"}
	h := newHarness(t, tr, nil)
	h.rec.stopErr = audiocapture.ErrDeviceUnavailable

	h.c.Toggle()
	h.waitState(t, Recording)
	h.c.Toggle()
	if got := h.waitOutcomes(t, 1); got[0] != types.OutcomeDeviceUnavailable {
		t.Fatalf("outcome = %s", got[0])
	}
	h.waitState(t, Idle)
	waitFor(t, "notification", func() bool { return len(h.cues.Notes()) == 1 })

	want := []cue.Cue{cue.CueStart, cue.CueError}
	if got := h.cues.Cues(); !slices.Equal(got, want) {
		t.Errorf("cues = %v, want %v", got, want)
	}
	if tr.calls.Load() != 0 {
		t.Errorf("transcriber called %d times", tr.calls.Load())
	}
}

func TestConcurrentTogglesNeverOverlap(t *testing.T) {
	tr := &countingTranscriber{text: "x"}
	h := newHarness(t, tr, func(o *Options) { o.ErrorHold = -1 })

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 25 {
				h.c.Toggle()
			}
		})
	}
	wg.Wait()

	// Let queued toggles drain, then finish any open session.
	time.Sleep(50 * time.Millisecond)
	waitFor(t, "quiescence", func() bool {
		s := h.c.State()
		return s == Idle || s == Recording
	})
	if h.c.State() == Recording {
		h.c.Toggle()
		h.waitState(t, Idle)
	}

	h.rec.mu.Lock()
	overlap, starts := h.rec.overlap, h.rec.starts
	h.rec.mu.Unlock()
	if overlap {
		t.Fatal("recorder started while already recording")
	}
	if got := int(tr.calls.Load()); got > starts {
		t.Fatalf("%d dispatches for %d sessions", got, starts)
	}
}

func TestSettingsSnapshotPerSession(t *testing.T) {
	tr := &countingTranscriber{text: "abc"}
	h := newHarness(t, tr, nil)
	h.settings.update(func(s *config.Settings) { s.PasteSpeed = config.PasteSlow })

	h.c.Toggle()
	h.waitState(t, Recording)
	// Changes after the session started apply to the next session only.
	h.settings.update(func(s *config.Settings) { s.PasteSpeed = config.PasteFast })
	h.c.Toggle()
	h.waitOutcomes(t, 1)

	h.c.Toggle()
	h.waitState(t, Recording)
	h.c.Toggle()
	h.waitOutcomes(t, 2)

	calls := h.inj.Calls()
	if len(calls) != 2 {
		t.Fatalf("calls = %+v", calls)
	}
	if calls[0].delay != 25*time.Millisecond || calls[1].delay != 5*time.Millisecond {
		t.Errorf("delays = %v, %v", calls[0].delay, calls[1].delay)
	}
}

func TestSoundDisabled(t *testing.T) {
	tr := &countingTranscriber{err: stt.ErrEngineFailure}
	h := newHarness(t, tr, func(o *Options) { o.ErrorHold = -1 })
	h.settings.update(func(s *config.Settings) { s.SoundEnabled = false })

	h.c.Toggle()
	h.c.Toggle()
	h.waitOutcomes(t, 1)
	h.waitState(t, Idle)

	if cues := h.cues.Cues(); len(cues) != 0 {
		t.Errorf("cues = %v, want none", cues)
	}
	if !slices.Contains(h.cues.Indicators(), cue.IndicatorError) {
		t.Error("indicator still reports the error")
	}
}

func TestPartialInjection(t *testing.T) {
	tr := &countingTranscriber{text: "ok"}
	h := newHarness(t, tr, func(o *Options) {
		o.Injector = inject.New(typerFunc(func(string) error { return errors.New("blocked") }))
	})

	h.c.Toggle()
	h.c.Toggle()
	if got := h.waitOutcomes(t, 1); got[0] != types.OutcomePartial {
		t.Fatalf("outcome = %s", got[0])
	}
	h.waitState(t, Idle)
	waitFor(t, "notification", func() bool { return len(h.cues.Notes()) == 1 })
}

type typerFunc func(string) error

func (f typerFunc) Type(unit string) error { return f(unit) }

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, errMissingDependency) {
		t.Fatalf("New(Options{}) = %v", err)
	}
}

func TestRunTwice(t *testing.T) {
	h := newHarness(t, &countingTranscriber{text: "x"}, nil)
	waitFor(t, "running", func() bool { return h.c.running.Load() })
	if err := h.c.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run = %v", err)
	}
}
