package waveform

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"voice-chat-service/internal/observability/metrics"
)

// manualScheduler queues frames until the test runs them.
type manualScheduler struct {
	mu    sync.Mutex
	queue []func(time.Time)
	now   time.Time
}

func (s *manualScheduler) Schedule(fn func(now time.Time)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, fn)
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// step advances the clock and runs one queued frame.
func (s *manualScheduler) step(advance time.Duration) bool {
	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return false
	}
	fn := s.queue[0]
	s.queue = s.queue[1:]
	s.now = s.now.Add(advance)
	now := s.now
	s.mu.Unlock()

	fn(now)
	return true
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []Frame
}

func (r *frameRecorder) sink(f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
}

func (r *frameRecorder) last() Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[len(r.frames)-1]
}

func newTestAnimator() (*Animator, *manualScheduler, *frameRecorder, *metrics.Metrics) {
	sched := &manualScheduler{now: time.Unix(0, 0)}
	rec := &frameRecorder{}
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	a := NewAnimator(Options{
		RelaxDuration: 500 * time.Millisecond,
		Scheduler:     sched,
		Rand:          rand.New(rand.NewSource(42)),
		Metrics:       m,
	}, rec.sink)
	return a, sched, rec, m
}

func TestAnimator_InitiallyFlatAndIdle(t *testing.T) {
	a, sched, _, _ := newTestAnimator()

	if a.Active() || a.Running() {
		t.Error("expected idle animator")
	}
	if sched.pending() != 0 {
		t.Errorf("expected no scheduled frames, got %d", sched.pending())
	}
	if got := a.Current().Path; got != FlatPath(DefaultWidth, DefaultBaseline) {
		t.Errorf("expected flat path, got %q", got)
	}
}

func TestAnimator_ActiveFramesReschedule(t *testing.T) {
	a, sched, rec, m := newTestAnimator()

	a.Start()
	if sched.pending() != 1 {
		t.Fatalf("expected 1 scheduled frame, got %d", sched.pending())
	}

	for i := 0; i < 5; i++ {
		sched.step(16 * time.Millisecond)
		if sched.pending() != 1 {
			t.Fatalf("expected frame %d to reschedule exactly once, got %d", i, sched.pending())
		}
	}

	f := rec.last()
	if !f.Active || len(f.Points) != PointCount {
		t.Errorf("expected active frame with %d points, got %+v", PointCount, f)
	}
	if got := testutil.ToFloat64(m.WaveformFrames.WithLabelValues("active")); got != 5 {
		t.Errorf("expected 5 active frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.WaveformLoopsActive); got != 1 {
		t.Errorf("expected 1 active loop, got %v", got)
	}
}

func TestAnimator_StartTwiceSchedulesOnce(t *testing.T) {
	a, sched, _, _ := newTestAnimator()

	a.Start()
	a.Start()

	if sched.pending() != 1 {
		t.Errorf("expected 1 scheduled frame, got %d", sched.pending())
	}
}

func TestAnimator_StopRelaxesToFlat(t *testing.T) {
	a, sched, rec, m := newTestAnimator()

	a.Start()
	for i := 0; i < 3; i++ {
		sched.step(16 * time.Millisecond)
	}
	a.Stop()

	if a.Active() {
		t.Error("expected animator inactive after stop")
	}

	// First relax frame pins the start time, then 100ms per frame.
	sched.step(16 * time.Millisecond)
	for i := 0; i < 10 && sched.pending() > 0; i++ {
		sched.step(100 * time.Millisecond)
	}

	if sched.pending() != 0 {
		t.Fatalf("expected scheduling to stop after relaxing, got %d pending", sched.pending())
	}
	if a.Running() {
		t.Error("expected loop to have stopped")
	}

	f := rec.last()
	if f.Active {
		t.Error("expected final frame inactive")
	}
	if f.Path != "M0,30 Q25,30 50,30 T100,30 T150,30 T200,30 T250,30 T300,30" {
		t.Errorf("expected exact flat path, got %q", f.Path)
	}
	if got := testutil.ToFloat64(m.WaveformFrames.WithLabelValues("relax")); got < 1 {
		t.Errorf("expected relax frames, got %v", got)
	}
	if got := testutil.ToFloat64(m.WaveformLoopsActive); got != 0 {
		t.Errorf("expected no active loops, got %v", got)
	}
}

func TestAnimator_RelaxFramesApproachBaseline(t *testing.T) {
	a, sched, rec, _ := newTestAnimator()

	a.Start()
	for i := 0; i < 10; i++ {
		sched.step(16 * time.Millisecond)
	}
	a.Stop()

	deflection := func(f Frame) float64 {
		var d float64
		for _, p := range f.Points {
			d += DefaultBaseline - p.Y
		}
		return d
	}

	sched.step(16 * time.Millisecond)
	prev := deflection(rec.last())
	for sched.pending() > 0 {
		sched.step(50 * time.Millisecond)
		cur := deflection(rec.last())
		if cur > prev+1e-9 {
			t.Fatalf("expected deflection to shrink while relaxing, got %v after %v", cur, prev)
		}
		prev = cur
	}
	if prev != 0 {
		t.Errorf("expected zero deflection at the end, got %v", prev)
	}
}

func TestAnimator_ResetJumpsToFlat(t *testing.T) {
	a, sched, rec, _ := newTestAnimator()

	a.Start()
	sched.step(16 * time.Millisecond)
	a.Reset()

	if rec.last().Path != FlatPath(DefaultWidth, DefaultBaseline) {
		t.Errorf("expected flat frame emitted on reset, got %q", rec.last().Path)
	}

	// The pending frame finds nothing to do and ends the loop.
	sched.step(16 * time.Millisecond)
	if sched.pending() != 0 || a.Running() {
		t.Error("expected loop to stop after reset")
	}
}

func TestAnimator_StopWhenIdleIsNoop(t *testing.T) {
	a, sched, _, _ := newTestAnimator()

	a.Stop()

	if sched.pending() != 0 {
		t.Errorf("expected no scheduled frames, got %d", sched.pending())
	}
}

func TestAnimator_ResumeDuringRelax(t *testing.T) {
	a, sched, rec, _ := newTestAnimator()

	a.Start()
	sched.step(16 * time.Millisecond)
	a.Stop()
	sched.step(16 * time.Millisecond)
	a.Start()

	if sched.pending() != 1 {
		t.Fatalf("expected a single frame chain, got %d", sched.pending())
	}
	sched.step(16 * time.Millisecond)
	if !rec.last().Active {
		t.Error("expected active frame after resume")
	}
}

func TestTimerScheduler(t *testing.T) {
	done := make(chan time.Time, 1)
	TimerScheduler{Interval: time.Millisecond}.Schedule(func(now time.Time) {
		done <- now
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected scheduled function to run")
	}
}
