// Package session implements the dictation state machine: one session at a
// time moves from recording through transcription to typing.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.aimuz.me/ghostwriter/audiocapture"
	"go.aimuz.me/ghostwriter/config"
	"go.aimuz.me/ghostwriter/cue"
	"go.aimuz.me/ghostwriter/inject"
	"go.aimuz.me/ghostwriter/internal/types"
	"go.aimuz.me/ghostwriter/stt"
)

const (
	// DefaultErrorHold is how long the Error state lasts before returning to Idle.
	DefaultErrorHold = 1500 * time.Millisecond

	// DefaultFailureThreshold is the number of consecutive failures that
	// raises the warning indicator.
	DefaultFailureThreshold = 3

	eventQueueSize = 32
)

var (
	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("session: controller already running")

	errMissingDependency = errors.New("session: missing dependency")
)

// Recorder captures one clip per session.
type Recorder interface {
	Start() error
	Stop() (audiocapture.Clip, error)
	Discard()
}

// Transcriber turns a clip into text.
type Transcriber interface {
	Dispatch(ctx context.Context, req stt.Request) stt.Result
}

// Injector types text into the focused application.
type Injector interface {
	Inject(ctx context.Context, text string, delay time.Duration) inject.Report
}

// Cues receives audible and visual feedback.
type Cues interface {
	Play(c cue.Cue)
	SetIndicator(i cue.Indicator)
	Notify(message string)
}

// SettingsSource provides the settings snapshot taken at session start.
type SettingsSource interface {
	Snapshot() config.Settings
}

// HistorySink stores finished sessions.
type HistorySink interface {
	Record(rec types.SessionRecord) error
}

// Options configures a Controller.
type Options struct {
	Recorder    Recorder
	Transcriber Transcriber
	Injector    Injector
	Cues        Cues
	Settings    SettingsSource
	History     HistorySink  // Optional
	Logger      *slog.Logger // Optional, defaults to slog.Default()

	// ErrorHold is the time spent in Error before returning to Idle.
	// Zero means DefaultErrorHold; negative returns to Idle at once.
	ErrorHold time.Duration

	// FailureThreshold is the number of consecutive failures that raise
	// the warning. Zero means DefaultFailureThreshold.
	FailureThreshold int

	// OnTransition is called on the controller goroutine after every
	// state change.
	OnTransition func(from, to State)
}

type event struct {
	kind   eventKind
	id     string
	result stt.Result
	report inject.Report
}

// session is one recording-to-injection cycle.
type session struct {
	id       string
	started  time.Time
	settings config.Settings
	log      *slog.Logger

	clip   audiocapture.Clip
	text   string
	engine string

	cancel          context.CancelFunc
	cancelRequested bool
}

// Controller is the dictation state machine. All transitions run on the
// goroutine that calls Run; Toggle and Cancel only enqueue events.
type Controller struct {
	opts Options
	log  *slog.Logger

	events  chan event
	done    chan struct{}
	running atomic.Bool
	state   atomic.Int32

	// Owned by the Run goroutine.
	ctx      context.Context
	cur      *session
	failures int
	warning  bool
	heldID   string
	hold     *time.Timer
	workers  sync.WaitGroup
}

// New creates a Controller.
func New(opts Options) (*Controller, error) {
	switch {
	case opts.Recorder == nil:
		return nil, fmt.Errorf("%w: recorder", errMissingDependency)
	case opts.Transcriber == nil:
		return nil, fmt.Errorf("%w: transcriber", errMissingDependency)
	case opts.Injector == nil:
		return nil, fmt.Errorf("%w: injector", errMissingDependency)
	case opts.Cues == nil:
		return nil, fmt.Errorf("%w: cues", errMissingDependency)
	case opts.Settings == nil:
		return nil, fmt.Errorf("%w: settings", errMissingDependency)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ErrorHold == 0 {
		opts.ErrorHold = DefaultErrorHold
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = DefaultFailureThreshold
	}

	return &Controller{
		opts:   opts,
		log:    opts.Logger,
		events: make(chan event, eventQueueSize),
		done:   make(chan struct{}),
	}, nil
}

// State returns the current state. Safe for concurrent use.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Toggle starts a session when idle and stops recording when recording.
func (c *Controller) Toggle() { c.post(event{kind: evToggle}) }

// Cancel abandons the current session.
func (c *Controller) Cancel() { c.post(event{kind: evCancel}) }

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Run processes events until ctx is done. An active session is abandoned
// on return.
func (c *Controller) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	c.ctx = ctx
	c.opts.Cues.SetIndicator(cue.IndicatorIdle)

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Controller) shutdown() {
	if c.hold != nil {
		c.hold.Stop()
	}
	if s := c.cur; s != nil {
		if c.State() == Recording {
			c.opts.Recorder.Discard()
		}
		if s.cancel != nil {
			s.cancel()
		}
		c.cur = nil
	}
	close(c.done)
	c.workers.Wait()
	c.log.Info("session controller stopped")
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evToggle:
		c.onToggle()
	case evCancel:
		c.onCancel()
	case evTranscribed:
		c.onTranscribed(ev)
	case evInjected:
		c.onInjected(ev)
	case evResetError:
		if c.State() == Error && ev.id == c.heldID {
			c.stopHold()
			c.toIdle()
		}
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Transitions
// ─────────────────────────────────────────────────────────────────────────────

func (c *Controller) onToggle() {
	switch c.State() {
	case Idle:
		c.startSession()
	case Recording:
		c.stopRecording()
	case Transcribing:
		c.cur.log.Info("stop transcription by toggle")
		c.abandon(cue.CueCancel)
	case Injecting:
		c.cur.log.Info("drop toggle while typing")
		c.play(c.cur.settings, cue.CueBusy)
	case Error:
		c.stopHold()
		c.toIdle()
		c.startSession()
	}
}

func (c *Controller) onCancel() {
	switch c.State() {
	case Recording:
		c.opts.Recorder.Discard()
		c.cur.log.Info("cancel recording")
		c.abandon(cue.CueCancel)
	case Transcribing:
		c.cur.log.Info("cancel transcription")
		c.abandon(cue.CueCancel)
	case Injecting:
		// Typing stops at the next character boundary; onInjected finishes the session.
		if s := c.cur; !s.cancelRequested {
			s.cancelRequested = true
			s.cancel()
			s.log.Info("stop typing requested")
		}
	case Error:
		c.stopHold()
		c.toIdle()
	}
}

func (c *Controller) startSession() {
	settings := c.opts.Settings.Snapshot()
	id := uuid.NewString()
	s := &session{
		id:       id,
		started:  time.Now(),
		settings: settings,
		log:      c.log.With("session_id", id),
	}

	if err := c.opts.Recorder.Start(); err != nil {
		s.log.Error("start recording", "error", err)
		c.play(settings, cue.CueError)
		c.opts.Cues.Notify("Cannot record: no microphone available")
		c.record(s, types.OutcomeDeviceUnavailable, err)
		return
	}

	c.cur = s
	c.setState(Recording)
	c.opts.Cues.SetIndicator(cue.IndicatorActive)
	c.play(settings, cue.CueStart)
	s.log.Info("recording started")
}

func (c *Controller) stopRecording() {
	s := c.cur
	clip, err := c.opts.Recorder.Stop()
	if err != nil {
		s.log.Error("stop recording", "error", err)
		c.play(s.settings, cue.CueError)
		c.opts.Cues.Notify("Recording failed: " + err.Error())
		c.record(s, types.OutcomeDeviceUnavailable, err)
		c.toIdle()
		return
	}
	c.play(s.settings, cue.CueStop)
	s.clip = clip

	duration := clip.Duration()
	if duration < s.settings.MinRecording() {
		s.log.Info("discard short recording", "duration", duration, "min", s.settings.MinRecording())
		c.record(s, types.OutcomeDiscarded, nil)
		c.toIdle()
		return
	}
	if threshold := s.settings.SilenceThreshold; threshold > 0 {
		if rms := clip.RMS(); float64(rms) < threshold {
			s.log.Info("discard silent recording", "rms", rms, "threshold", threshold)
			c.record(s, types.OutcomeDiscarded, nil)
			c.toIdle()
			return
		}
	}

	c.setState(Transcribing)
	c.opts.Cues.SetIndicator(cue.IndicatorProcessing)
	s.log.Info("recording stopped", "duration", duration)

	ctx, cancel := context.WithCancel(c.ctx)
	s.cancel = cancel
	req := stt.Request{
		Samples:    clip.Samples,
		SampleRate: clip.SampleRate,
		Language:   s.settings.Language,
		Engine:     s.settings.Engine,
		Timeout:    s.settings.TranscribeTimeout(),
	}
	c.workers.Go(func() {
		res := c.opts.Transcriber.Dispatch(ctx, req)
		c.post(event{kind: evTranscribed, id: s.id, result: res})
	})
}

func (c *Controller) onTranscribed(ev event) {
	s := c.cur
	if s == nil || s.id != ev.id || c.State() != Transcribing {
		c.log.Debug("discard stale transcription", "session_id", ev.id)
		return
	}
	s.cancel()
	s.engine = ev.result.Engine

	if err := ev.result.Err; err != nil {
		c.fail(s, err)
		return
	}

	c.failures = 0
	if c.warning {
		c.warning = false
		s.log.Info("clear failure warning")
	}
	s.text = ev.result.Text
	c.setState(Injecting)
	s.log.Info("typing transcription", "chars", len(s.text), "elapsed", ev.result.Elapsed)

	ctx, cancel := context.WithCancel(c.ctx)
	s.cancel = cancel
	text, delay := s.text, s.settings.PasteSpeed.Delay()
	c.workers.Go(func() {
		rep := c.opts.Injector.Inject(ctx, text, delay)
		c.post(event{kind: evInjected, id: s.id, report: rep})
	})
}

func (c *Controller) onInjected(ev event) {
	s := c.cur
	if s == nil || s.id != ev.id || c.State() != Injecting {
		c.log.Debug("discard stale injection report", "session_id", ev.id)
		return
	}
	s.cancel()

	rep := ev.report
	switch err := rep.Err(); {
	case rep.Cancelled:
		s.log.Info("typing cancelled", "typed", rep.Typed, "total", rep.Units)
		c.play(s.settings, cue.CueCancel)
		c.record(s, types.OutcomeCancelled, err)
	case err != nil:
		s.log.Warn("typing incomplete", "failed", rep.Failed, "total", rep.Units, "error", err)
		c.opts.Cues.Notify(fmt.Sprintf("%d of %d characters could not be typed", rep.Failed, rep.Units))
		c.record(s, types.OutcomePartial, err)
	default:
		s.log.Info("session done", "chars", rep.Typed, "elapsed", rep.Elapsed)
		c.record(s, types.OutcomeInjected, nil)
	}
	c.toIdle()
}

// abandon ends the current session as cancelled.
func (c *Controller) abandon(cu cue.Cue) {
	s := c.cur
	if s.cancel != nil {
		s.cancel()
	}
	c.play(s.settings, cu)
	c.record(s, types.OutcomeCancelled, nil)
	c.toIdle()
}

func (c *Controller) fail(s *session, err error) {
	c.failures++
	s.log.Warn("transcription failed", "error", err, "consecutive", c.failures)
	c.record(s, types.OutcomeFailed, err)

	c.cur = nil
	c.setState(Error)
	c.opts.Cues.SetIndicator(cue.IndicatorError)
	c.play(s.settings, cue.CueError)

	if c.failures == c.opts.FailureThreshold {
		c.warning = true
		c.opts.Cues.Notify(fmt.Sprintf("Transcription failed %d times in a row: %v", c.failures, err))
	}

	if c.opts.ErrorHold < 0 {
		c.toIdle()
		return
	}
	id := s.id
	c.heldID = id
	c.hold = time.AfterFunc(c.opts.ErrorHold, func() {
		c.post(event{kind: evResetError, id: id})
	})
}

func (c *Controller) stopHold() {
	if c.hold != nil {
		c.hold.Stop()
		c.hold = nil
	}
	c.heldID = ""
}

func (c *Controller) toIdle() {
	if s := c.cur; s != nil && s.cancel != nil {
		s.cancel()
	}
	c.cur = nil
	c.setState(Idle)
	if c.warning {
		c.opts.Cues.SetIndicator(cue.IndicatorWarning)
	} else {
		c.opts.Cues.SetIndicator(cue.IndicatorIdle)
	}
}

func (c *Controller) setState(to State) {
	from := State(c.state.Swap(int32(to)))
	if from == to {
		return
	}
	c.log.Debug("state change", "from", from, "to", to)
	if c.opts.OnTransition != nil {
		c.opts.OnTransition(from, to)
	}
}

func (c *Controller) play(settings config.Settings, cu cue.Cue) {
	if settings.SoundEnabled {
		c.opts.Cues.Play(cu)
	}
}

func (c *Controller) record(s *session, outcome types.Outcome, err error) {
	if c.opts.History == nil {
		return
	}
	rec := types.SessionRecord{
		ID:            s.id,
		StartedAt:     s.started,
		AudioDuration: s.clip.Duration(),
		Outcome:       outcome,
		Text:          s.text,
		Engine:        s.engine,
	}
	if err != nil {
		rec.Error = err.Error()
	}
	if err := c.opts.History.Record(rec); err != nil {
		s.log.Warn("record session", "error", err)
	}
}
