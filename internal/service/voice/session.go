// Package voice manages voice sessions: one recording controller, waveform
// animator and recognition stream per open voice panel.
package voice

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"voice-chat-service/internal/service/recording"
	"voice-chat-service/internal/service/stt"
	"voice-chat-service/internal/service/waveform"
)

// Session is one open voice panel.
type Session struct {
	ID      string
	Created time.Time

	controller *recording.Controller
	animator   *waveform.Animator
	engine     stt.Adapter
	provider   string

	ctx    context.Context
	cancel context.CancelFunc
	log    zerolog.Logger

	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	bufferSize  int
	closed      bool
}

// View is the externally visible state of a session.
type View struct {
	ID string `json:"id"`
	recording.Snapshot
	Provider       string `json:"provider"`
	Waveform       string `json:"waveform"`
	WaveformActive bool   `json:"waveformActive"`
}

// View returns the session's current state and waveform path.
func (s *Session) View() View {
	frame := s.animator.Current()
	return View{
		ID:             s.ID,
		Snapshot:       s.controller.Snapshot(),
		Provider:       s.provider,
		Waveform:       frame.Path,
		WaveformActive: frame.Active,
	}
}

// Controller returns the session's recording controller.
func (s *Session) Controller() *recording.Controller {
	return s.controller
}

// Subscription receives waveform frames. Slow consumers lose the oldest
// frames rather than blocking the animation.
type Subscription struct {
	C       <-chan waveform.Frame
	ch      chan waveform.Frame
	session *Session
}

// Close stops delivery and closes C. Safe to call more than once.
func (sub *Subscription) Close() {
	s := sub.session
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[sub]; ok {
		delete(s.subscribers, sub)
		close(sub.ch)
	}
}

func (s *Session) subscribe(initial waveform.Frame) (*Subscription, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false
	}
	ch := make(chan waveform.Frame, s.bufferSize)
	ch <- initial
	sub := &Subscription{C: ch, ch: ch, session: s}
	s.subscribers[sub] = struct{}{}
	return sub, true
}

// broadcast is the animator's frame sink.
func (s *Session) broadcast(frame waveform.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for sub := range s.subscribers {
		select {
		case sub.ch <- frame:
			continue
		default:
		}
		// Full: drop the oldest frame and retry once.
		select {
		case <-sub.ch:
		default:
		}
		select {
		case sub.ch <- frame:
		default:
		}
	}
}

// isClosed reports whether close has begun.
func (s *Session) isClosed() bool {
	return s.ctx.Err() != nil
}

// close cancels the session context before resetting, so a concurrent start
// either completes before the reset or is refused by the controller.
func (s *Session) close() {
	s.cancel()
	s.controller.Reset()
	if s.engine != nil {
		if err := s.engine.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close recognition stream")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for sub := range s.subscribers {
		delete(s.subscribers, sub)
		close(sub.ch)
	}
}
