package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"voice-chat-service/internal/models"
	"voice-chat-service/internal/observability/metrics"
	"voice-chat-service/internal/schema"
)

// Message sources.
const (
	SourceText  = "text"
	SourceVoice = "voice"
)

// FailureMessage is shown to the user when a reply could not be produced.
const FailureMessage = "Sorry, there was an error processing your message."

// ErrResponder wraps responder failures.
var ErrResponder = errors.New("chat responder failed")

// Publisher publishes chat exchanges.
type Publisher interface {
	PublishChat(ctx context.Context, key string, event any) error
}

// Service validates chat messages, asks the responder for a reply and
// publishes the exchange.
type Service struct {
	responder Responder
	validator *schema.Validator
	publisher Publisher
	metrics   *metrics.Metrics
	timeout   time.Duration
	log       zerolog.Logger
}

// NewService creates a chat service. A zero timeout means no timeout beyond
// the caller's context.
func NewService(responder Responder, publisher Publisher, m *metrics.Metrics, timeout time.Duration, logger zerolog.Logger) *Service {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Service{
		responder: responder,
		validator: schema.New(),
		publisher: publisher,
		metrics:   m,
		timeout:   timeout,
		log:       logger,
	}
}

// Provider returns the responder name.
func (s *Service) Provider() string {
	return s.responder.Name()
}

// Handle answers req. Invalid requests fail with an error wrapping
// schema.ErrInvalid; responder failures return a response carrying
// FailureMessage and an error wrapping ErrResponder. There is one attempt per
// call.
func (s *Service) Handle(ctx context.Context, req models.ChatRequest, source string) (models.ChatResponse, error) {
	start := time.Now()

	if err := s.validator.Validate(req); err != nil {
		s.metrics.RecordChat(source, "invalid", s.responder.Name(), time.Since(start).Seconds())
		return models.ChatResponse{Error: err.Error()}, err
	}

	conversation := req.SessionID
	if conversation == "" {
		conversation = "anonymous"
	}
	prompt := Prompt(req)

	rctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		rctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	answer, err := s.responder.Reply(rctx, conversation, prompt)
	latency := time.Since(start).Seconds()

	exchange := models.ChatExchange{
		EventType:  models.EventChatExchange,
		SessionID:  req.SessionID,
		Source:     source,
		Message:    req.Message,
		Attachment: req.AttachmentInfo(),
		Timestamp:  time.Now().UnixMilli(),
	}

	var resp models.ChatResponse
	if err != nil {
		s.metrics.RecordChat(source, "error", s.responder.Name(), latency)
		s.log.Error().Err(err).Str("source", source).Str("sessionId", req.SessionID).Msg("Chat responder failed")
		resp = models.ChatResponse{Error: FailureMessage}
		exchange.Error = err.Error()
		err = fmt.Errorf("%w: %v", ErrResponder, err)
	} else {
		s.metrics.RecordChat(source, "ok", s.responder.Name(), latency)
		resp = models.ChatResponse{Response: answer}
		exchange.Response = answer
	}

	if s.publisher != nil {
		if perr := s.publisher.PublishChat(ctx, conversation, exchange); perr != nil {
			s.log.Warn().Err(perr).Msg("Failed to publish chat exchange")
		}
	}
	return resp, err
}

// Forget drops responder state for a closed conversation.
func (s *Service) Forget(conversation string) {
	if f, ok := s.responder.(Forgetter); ok {
		f.Forget(conversation)
	}
}

// Prompt renders the message and attachment metadata sent to the responder.
func Prompt(req models.ChatRequest) string {
	att := req.AttachmentInfo()
	if att == nil {
		return req.Message
	}
	line := fmt.Sprintf("[Attachment: %s (%s, %d bytes)]", att.Name, att.Type, att.Size)
	if req.Message == "" {
		return line
	}
	return req.Message + "\n" + line
}
