package waveform

import (
	"math/rand"
	"sync"
	"time"

	"voice-chat-service/internal/observability/metrics"
)

// Frame is one rendered waveform frame.
type Frame struct {
	Seq    uint64  `json:"seq"`
	Active bool    `json:"active"`
	Points []Point `json:"points"`
	Path   string  `json:"path"`
}

// Scheduler runs fn once, some time later, with the time it ran.
type Scheduler interface {
	Schedule(fn func(now time.Time))
}

// TimerScheduler schedules frames on a fixed interval.
type TimerScheduler struct {
	Interval time.Duration
}

func (s TimerScheduler) Schedule(fn func(now time.Time)) {
	time.AfterFunc(s.Interval, func() { fn(time.Now()) })
}

// Options configures an Animator. Zero values select the defaults.
type Options struct {
	Width         float64
	Baseline      float64
	FrameInterval time.Duration
	RelaxDuration time.Duration
	Scheduler     Scheduler
	Rand          *rand.Rand
	Metrics       *metrics.Metrics
}

// Animator drives the frame loop. While active every frame is a fresh sample
// and schedules the next one. Once stopped it eases back to the flat baseline
// over RelaxDuration and then stops scheduling altogether.
type Animator struct {
	mu        sync.Mutex
	width     float64
	baseline  float64
	relaxFor  time.Duration
	scheduler Scheduler
	metrics   *metrics.Metrics
	sampler   *Sampler
	sink      func(Frame)

	active     bool
	relaxing   bool
	running    bool
	relaxFrom  []Point
	relaxStart time.Time
	seq        uint64
	current    Frame
}

// NewAnimator creates an idle animator showing the flat baseline. sink, if
// set, receives every frame outside the animator's lock.
func NewAnimator(opts Options, sink func(Frame)) *Animator {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Baseline == 0 {
		opts.Baseline = DefaultBaseline
	}
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = 16 * time.Millisecond
	}
	if opts.RelaxDuration < 0 {
		opts.RelaxDuration = 0
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler{Interval: opts.FrameInterval}
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}

	a := &Animator{
		width:     opts.Width,
		baseline:  opts.Baseline,
		relaxFor:  opts.RelaxDuration,
		scheduler: opts.Scheduler,
		metrics:   opts.Metrics,
		sampler:   NewSampler(opts.Width, opts.Baseline, opts.Rand),
		sink:      sink,
	}
	a.current = a.flatFrame()
	return a
}

// Start begins (or resumes) the animation.
func (a *Animator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.active = true
	a.relaxing = false
	a.ensureLoop()
}

// Stop ends the animation; the curve relaxes to flat over the next frames.
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return
	}
	a.active = false
	a.relaxing = true
	a.relaxFrom = a.current.Points
	a.relaxStart = time.Time{}
	a.ensureLoop()
}

// Reset jumps straight to the flat baseline.
func (a *Animator) Reset() {
	a.mu.Lock()
	a.active = false
	a.relaxing = false
	a.sampler.Reset()
	a.current = a.flatFrame()
	frame := a.current
	a.mu.Unlock()

	a.emit(frame)
}

// Current returns the latest frame.
func (a *Animator) Current() Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Active reports whether the animation is running (not relaxing).
func (a *Animator) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Running reports whether frames are still being scheduled.
func (a *Animator) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Animator) ensureLoop() {
	if a.running {
		return
	}
	a.running = true
	a.metrics.RecordLoopStarted()
	a.scheduler.Schedule(a.frame)
}

func (a *Animator) frame(now time.Time) {
	a.mu.Lock()

	var frame Frame
	switch {
	case a.active:
		points := a.sampler.Next()
		a.seq++
		frame = Frame{Seq: a.seq, Active: true, Points: points, Path: Path(points)}
		a.metrics.RecordFrame("active")
		a.scheduler.Schedule(a.frame)
	case a.relaxing:
		if a.relaxStart.IsZero() {
			a.relaxStart = now
		}
		t := 1.0
		if a.relaxFor > 0 {
			t = float64(now.Sub(a.relaxStart)) / float64(a.relaxFor)
		}
		if t >= 1 {
			a.relaxing = false
			a.sampler.Reset()
			frame = a.flatFrame()
			a.metrics.RecordFrame("flat")
			a.stopLoop()
		} else {
			points := relax(a.relaxFrom, a.baseline, t)
			a.seq++
			frame = Frame{Seq: a.seq, Points: points, Path: Path(points)}
			a.metrics.RecordFrame("relax")
			a.scheduler.Schedule(a.frame)
		}
	default:
		// Reset while a frame was pending.
		a.stopLoop()
		a.mu.Unlock()
		return
	}

	a.current = frame
	a.mu.Unlock()
	a.emit(frame)
}

func (a *Animator) stopLoop() {
	a.running = false
	a.metrics.RecordLoopStopped()
}

// flatFrame must be called with a.mu held.
func (a *Animator) flatFrame() Frame {
	a.seq++
	return Frame{
		Seq:    a.seq,
		Points: Flat(a.width, a.baseline),
		Path:   FlatPath(a.width, a.baseline),
	}
}

func (a *Animator) emit(frame Frame) {
	if a.sink != nil {
		a.sink(frame)
	}
}
