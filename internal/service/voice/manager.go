package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"voice-chat-service/internal/models"
	"voice-chat-service/internal/observability/metrics"
	"voice-chat-service/internal/service/chat"
	"voice-chat-service/internal/service/recording"
	"voice-chat-service/internal/service/segment"
	"voice-chat-service/internal/service/stt"
	"voice-chat-service/internal/service/waveform"
)

var (
	ErrSessionNotFound = errors.New("voice session not found")
	ErrNotRecording    = errors.New("voice session is not recording")
	ErrUnknownCommand  = errors.New("unknown voice command")
)

// Commands accepted by Manager.Command.
const (
	CommandStart  = "start"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandStop   = "stop"
	CommandReset  = "reset"
)

// ChatHandler answers consumed transcripts.
type ChatHandler interface {
	Handle(ctx context.Context, req models.ChatRequest, source string) (models.ChatResponse, error)
	Forget(conversation string)
}

// Publisher publishes transcript events.
type Publisher interface {
	PublishPartial(ctx context.Context, key string, event any) error
	PublishFinal(ctx context.Context, key string, event any) error
}

// Options configures a Manager.
type Options struct {
	Factory          stt.Factory
	Policy           recording.EndPolicy
	Waveform         waveform.Options
	Chat             ChatHandler
	Publisher        Publisher
	Segments         *segment.Generator
	Metrics          *metrics.Metrics
	SubscriberBuffer int
}

// Manager owns all open voice sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	opts     Options
	log      zerolog.Logger
}

func NewManager(opts Options, logger zerolog.Logger) *Manager {
	if opts.Metrics == nil {
		opts.Metrics = metrics.DefaultMetrics
	}
	if opts.Segments == nil {
		opts.Segments = segment.New()
	}
	if opts.SubscriberBuffer <= 0 {
		opts.SubscriberBuffer = 32
	}
	if opts.Waveform.Metrics == nil {
		opts.Waveform.Metrics = opts.Metrics
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opts:     opts,
		log:      logger,
	}
}

// Create opens a new idle session. A factory without recognition support
// still yields a session; starting it reports the missing capability.
func (m *Manager) Create() (*Session, error) {
	id := uuid.NewString()
	log := m.log.With().
		Str("sessionId", id).
		Str("sttProvider", m.opts.Factory.Provider()).
		Logger()

	engine, err := m.opts.Factory.NewAdapter()
	if err != nil {
		if !errors.Is(err, stt.ErrUnsupported) {
			return nil, fmt.Errorf("create recognition engine: %w", err)
		}
		engine = nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:          id,
		Created:     time.Now(),
		engine:      engine,
		provider:    m.opts.Factory.Provider(),
		ctx:         ctx,
		cancel:      cancel,
		log:         log,
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  m.opts.SubscriberBuffer,
	}
	s.animator = waveform.NewAnimator(m.opts.Waveform, s.broadcast)
	s.controller = recording.New(engine, s.animator, recording.Options{
		Policy:   m.opts.Policy,
		Provider: s.provider,
		Logger:   log,
		Metrics:  m.opts.Metrics,
		Hooks:    m.hooks(s),
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.opts.Metrics.RecordSessionOpened()
	log.Info().Msg("Voice session opened")
	return s, nil
}

func (m *Manager) hooks(s *Session) recording.Hooks {
	return recording.Hooks{
		OnInterim: func(text string) {
			if m.opts.Publisher == nil {
				return
			}
			ev := models.TranscriptPartial{
				EventType: models.EventTranscriptPartial,
				SessionID: s.ID,
				Timestamp: time.Now().UnixMilli(),
				Text:      text,
			}
			if err := m.opts.Publisher.PublishPartial(s.ctx, s.ID, ev); err != nil {
				s.log.Warn().Err(err).Msg("Failed to publish partial transcript")
			}
		},
		OnFinal: func(text string, confidence float64) {
			segmentId := m.opts.Segments.Next(s.ID)
			s.log.Info().Str("segmentId", segmentId).Float64("confidence", confidence).Msg("Final transcript")
			if m.opts.Publisher == nil {
				return
			}
			ev := models.TranscriptFinal{
				EventType:  models.EventTranscriptFinal,
				SessionID:  s.ID,
				SegmentID:  segmentId,
				Timestamp:  time.Now().UnixMilli(),
				Text:       text,
				Confidence: confidence,
			}
			if err := m.opts.Publisher.PublishFinal(s.ctx, s.ID, ev); err != nil {
				s.log.Warn().Err(err).Msg("Failed to publish final transcript")
			}
		},
	}
}

// Get returns an open session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Command applies a recording command and returns the resulting view. The
// view is returned even when the command fails. A session closed while the
// command runs reports ErrSessionNotFound.
func (m *Manager) Command(id, command string) (View, error) {
	s, err := m.Get(id)
	if err != nil {
		return View{}, err
	}
	if s.isClosed() {
		return View{}, ErrSessionNotFound
	}

	c := s.controller
	switch command {
	case CommandStart:
		// Recognition streams live as long as the session, not the request.
		err = c.Start(s.ctx)
	case CommandPause:
		err = c.Pause()
	case CommandResume:
		err = c.Resume()
	case CommandStop:
		err = c.Stop()
	case CommandReset:
		err = c.Reset()
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	if s.isClosed() {
		return View{}, ErrSessionNotFound
	}
	return s.View(), err
}

// SendAudio forwards an audio chunk to the session's engine. Audio is only
// accepted while recording.
func (m *Manager) SendAudio(ctx context.Context, id string, audio []byte) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if s.isClosed() {
		return ErrSessionNotFound
	}
	if s.engine == nil {
		return recording.ErrUnsupported
	}
	if s.controller.State() != recording.StateRecording {
		return ErrNotRecording
	}
	if err := s.engine.SendAudio(ctx, audio); err != nil {
		if errors.Is(err, stt.ErrNotStarted) {
			return ErrNotRecording
		}
		return fmt.Errorf("send audio: %w", err)
	}
	m.opts.Metrics.RecordAudioReceived(len(audio))
	return nil
}

// Subscribe returns a stream of the session's waveform frames, starting with
// the current one.
func (m *Manager) Subscribe(id string) (*Subscription, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	sub, ok := s.subscribe(s.animator.Current())
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sub, nil
}

// Send consumes the session's transcript and hands it to the chat handler.
// It returns the reply and the text that was sent.
func (m *Manager) Send(ctx context.Context, id string) (models.ChatResponse, string, error) {
	s, err := m.Get(id)
	if err != nil {
		return models.ChatResponse{}, "", err
	}
	text, err := s.controller.Consume()
	if err != nil {
		return models.ChatResponse{}, "", err
	}
	s.log.Info().Int("chars", len(text)).Msg("Sending voice message")

	if m.opts.Chat == nil {
		return models.ChatResponse{}, text, errors.New("no chat handler configured")
	}
	resp, err := m.opts.Chat.Handle(ctx, models.ChatRequest{Message: text, SessionID: s.ID}, chat.SourceVoice)
	return resp, text, err
}

// Close resets and removes a session.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.close()
	m.opts.Segments.Forget(id)
	if m.opts.Chat != nil {
		m.opts.Chat.Forget(id)
	}
	m.opts.Metrics.RecordSessionClosed()
	s.log.Info().Dur("age", time.Since(s.Created)).Msg("Voice session closed")
	return nil
}

// CloseAll closes every open session.
func (m *Manager) CloseAll() {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
}
