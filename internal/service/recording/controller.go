package recording

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"voice-chat-service/internal/observability/metrics"
	"voice-chat-service/internal/service/stt"
)

// Renderer is the waveform animation driven by the controller.
type Renderer interface {
	Start()
	Stop()
	Reset()
}

// Hooks are called after the controller's lock is released.
type Hooks struct {
	OnTransition func(from, to State)
	OnInterim    func(text string)
	OnFinal      func(text string, confidence float64)
	OnError      func(err error)
}

// Options configures a Controller.
type Options struct {
	Policy   EndPolicy
	Provider string
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Hooks    Hooks
}

// Controller owns the recording state, transcript and status of one voice
// session. Commands and engine events are serialized by a mutex; the engine
// and renderer are invoked while it is held.
//
// State transitions:
//
//	IDLE ──start──→ RECORDING ──pause──→ PAUSED
//	                   │  ↑                 │
//	                   │  └─────resume──────┘
//	                   └──stop──→ STOPPED ←─stop── PAUSED
//
//	any state ──reset──→ IDLE
type Controller struct {
	mu         sync.Mutex
	state      State
	transcript string
	interim    string
	status     string
	notice     string
	ctx        context.Context
	// stream identifies the open recognition stream; callbacks carrying an
	// older value are dropped.
	stream uint64

	engine   stt.Adapter
	renderer Renderer
	policy   EndPolicy
	provider string
	log      zerolog.Logger
	metrics  *metrics.Metrics
	hooks    Hooks

	// pending hook calls, run by unlock
	pending []func()
}

// New creates an idle controller. A nil engine means the platform has no
// recognition capability; start then fails with ErrUnsupported.
func New(engine stt.Adapter, renderer Renderer, opts Options) *Controller {
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}
	if opts.Provider == "" {
		opts.Provider = "none"
	}
	return &Controller{
		state:    StateIdle,
		status:   StatusIdle,
		ctx:      context.Background(),
		engine:   engine,
		renderer: renderer,
		policy:   opts.Policy,
		provider: opts.Provider,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		hooks:    opts.Hooks,
	}
}

func (c *Controller) unlock() {
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()
	for _, fn := range pending {
		fn()
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Transcript returns the accumulated final text.
func (c *Controller) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// Snapshot returns the user-visible view of the controller.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:      c.state,
		Transcript: c.transcript,
		Interim:    c.interim,
		Status:     c.status,
		Notice:     c.notice,
		CanSend:    c.sendableLocked() != "",
	}
}

// Start begins recording from Idle. ctx bounds the recognition streams of
// this recording and must outlive the call; a cancelled ctx is refused and
// leaves the controller untouched.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock()

	if c.state != StateIdle {
		return c.reject("start")
	}
	if c.engine == nil {
		c.notice = NoticeUnsupported
		c.metrics.RecordUnsupported()
		c.log.Warn().Msg("Start rejected: no speech recognition available")
		return ErrUnsupported
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("start recognition: %w", err)
	}

	c.transcript = ""
	c.interim = ""
	c.notice = ""
	c.ctx = ctx

	if err := c.startEngineLocked(); err != nil {
		c.engineFailedLocked("start", err)
		return fmt.Errorf("start recognition: %w", err)
	}
	c.renderer.Start()
	c.status = StatusRecording
	c.transitionLocked(StateRecording)
	return nil
}

// Pause suspends recording. Only valid while Recording.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.unlock()

	if c.state != StateRecording {
		return c.reject("pause")
	}
	c.closeEngineLocked()
	c.renderer.Stop()
	c.status = StatusPaused
	c.transitionLocked(StatePaused)
	return nil
}

// Resume continues a paused recording.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.unlock()

	if c.state != StatePaused {
		return c.reject("resume")
	}
	if err := c.startEngineLocked(); err != nil {
		c.engineFailedLocked("start", err)
		c.status = c.stoppedStatusLocked()
		c.transitionLocked(StateStopped)
		return fmt.Errorf("resume recognition: %w", err)
	}
	c.renderer.Start()
	c.status = StatusResumed
	c.transitionLocked(StateRecording)
	return nil
}

// Stop freezes the transcript. Stopping an Idle or Stopped controller is a
// no-op.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.unlock()

	c.stopLocked()
	return nil
}

// Reset discards the transcript and returns to Idle from any state.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.unlock()

	c.resetLocked()
	return nil
}

// Consume hands out the transcript, including any pending interim text, and
// resets to Idle. It fails with ErrNothingToSend unless there is text and the
// state is Recording or Stopped.
func (c *Controller) Consume() (string, error) {
	c.mu.Lock()
	defer c.unlock()

	text := c.sendableLocked()
	if text == "" {
		return "", ErrNothingToSend
	}
	c.resetLocked()
	return text, nil
}

// Handle applies an engine event. Results outside Recording are dropped.
func (c *Controller) Handle(ev Event) {
	c.mu.Lock()
	defer c.unlock()

	c.handleLocked(ev)
}

// handleStream applies an event delivered by the recognition stream
// identified by stream.
func (c *Controller) handleStream(stream uint64, ev Event) {
	c.mu.Lock()
	defer c.unlock()

	if stream != c.stream {
		c.log.Debug().Str("event", ev.Kind.String()).Msg("Dropping event from closed recognition stream")
		return
	}
	c.handleLocked(ev)
}

func (c *Controller) handleLocked(ev Event) {
	switch ev.Kind {
	case EventInterim:
		if c.state != StateRecording {
			c.dropLocked(ev)
			return
		}
		c.interim = strings.TrimSpace(ev.Text)
		c.status = StatusDetected
		c.metrics.RecordInterim()
		if fn := c.hooks.OnInterim; fn != nil {
			text := c.interim
			c.pending = append(c.pending, func() { fn(text) })
		}

	case EventFinal:
		if c.state != StateRecording {
			c.dropLocked(ev)
			return
		}
		text := strings.TrimSpace(ev.Text)
		c.interim = ""
		if text == "" {
			return
		}
		if c.transcript != "" {
			c.transcript += " "
		}
		c.transcript += text
		c.status = StatusDetected
		c.metrics.RecordFinal()
		if fn := c.hooks.OnFinal; fn != nil {
			conf := ev.Confidence
			c.pending = append(c.pending, func() { fn(text, conf) })
		}

	case EventEndOfInput:
		if c.state != StateRecording {
			c.dropLocked(ev)
			return
		}
		if c.policy == EndDirect {
			c.stopLocked()
			return
		}
		c.closeEngineLocked()
		if err := c.startEngineLocked(); err != nil {
			c.engineFailedLocked("restart", err)
			c.renderer.Stop()
			c.status = c.stoppedStatusLocked()
			c.transitionLocked(StateStopped)
			return
		}
		c.metrics.RecordEngineRestart()
		c.log.Debug().Msg("Recognition restarted after end of input")

	case EventError:
		if c.state != StateRecording && c.state != StatePaused {
			c.dropLocked(ev)
			return
		}
		err := ev.Err
		if err == nil {
			err = errors.New("recognition failed")
		}
		c.closeEngineLocked()
		c.renderer.Stop()
		c.engineFailedLocked("runtime", err)
		c.status = c.stoppedStatusLocked()
		c.transitionLocked(StateStopped)
	}
}

// Callback adapts the controller to the engine callback interface. The
// callback is bound to the currently open stream.
func (c *Controller) Callback() stt.Callback {
	c.mu.Lock()
	defer c.mu.Unlock()
	return engineCallback{c: c, stream: c.stream}
}

func (c *Controller) stopLocked() {
	if c.state != StateRecording && c.state != StatePaused {
		return
	}
	if c.state == StateRecording {
		c.closeEngineLocked()
	}
	c.renderer.Stop()
	c.status = c.stoppedStatusLocked()
	c.transitionLocked(StateStopped)
}

func (c *Controller) resetLocked() {
	c.stopLocked()
	c.transcript = ""
	c.interim = ""
	c.notice = ""
	c.status = StatusIdle
	c.renderer.Reset()
	c.transitionLocked(StateIdle)
}

func (c *Controller) sendableLocked() string {
	if c.state != StateRecording && c.state != StateStopped {
		return ""
	}
	text := c.transcript
	if c.interim != "" {
		if text != "" {
			text += " "
		}
		text += c.interim
	}
	return text
}

func (c *Controller) stoppedStatusLocked() string {
	if c.transcript != "" || c.interim != "" {
		return StatusComplete
	}
	return StatusNoSpeech
}

func (c *Controller) startEngineLocked() error {
	if err := c.ctx.Err(); err != nil {
		return err
	}
	c.stream++
	return c.engine.Start(c.ctx, engineCallback{c: c, stream: c.stream})
}

func (c *Controller) closeEngineLocked() {
	c.stream++
	if err := c.engine.Close(); err != nil {
		c.log.Warn().Err(err).Msg("Failed to close recognition stream")
	}
}

func (c *Controller) engineFailedLocked(errorType string, err error) {
	c.notice = fmt.Sprintf("Error: %s. Please try again.", err)
	c.metrics.RecordEngineError(c.provider, errorType)
	c.log.Error().Err(err).Str("errorType", errorType).Str("state", c.state.String()).Msg("Recognition engine failed")
	if fn := c.hooks.OnError; fn != nil {
		c.pending = append(c.pending, func() { fn(err) })
	}
}

func (c *Controller) transitionLocked(to State) {
	from := c.state
	if from == to {
		return
	}
	c.state = to
	c.metrics.RecordTransition(from.String(), to.String())
	c.log.Debug().Str("from", from.String()).Str("to", to.String()).Msg("Recording state changed")
	if fn := c.hooks.OnTransition; fn != nil {
		c.pending = append(c.pending, func() { fn(from, to) })
	}
}

func (c *Controller) reject(command string) error {
	c.metrics.RecordRejected(command, c.state.String())
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, command, c.state)
}

func (c *Controller) dropLocked(ev Event) {
	c.log.Debug().Str("event", ev.Kind.String()).Str("state", c.state.String()).Msg("Dropping engine event")
}

type engineCallback struct {
	c      *Controller
	stream uint64
}

func (cb engineCallback) OnPartial(text string) {
	cb.c.handleStream(cb.stream, Event{Kind: EventInterim, Text: text})
}

func (cb engineCallback) OnFinal(text string, confidence float64) {
	cb.c.handleStream(cb.stream, Event{Kind: EventFinal, Text: text, Confidence: confidence})
}

func (cb engineCallback) OnEndOfUtterance() {
	cb.c.handleStream(cb.stream, Event{Kind: EventEndOfInput})
}

func (cb engineCallback) OnError(err error) {
	cb.c.handleStream(cb.stream, Event{Kind: EventError, Err: err})
}
