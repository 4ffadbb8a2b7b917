package app

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"voice-chat-service/internal/config"
	"voice-chat-service/internal/events"
	"voice-chat-service/internal/observability/logging"
	"voice-chat-service/internal/observability/metrics"
	"voice-chat-service/internal/service/chat"
	"voice-chat-service/internal/service/recording"
	"voice-chat-service/internal/service/segment"
	"voice-chat-service/internal/service/stt/provider"
	"voice-chat-service/internal/service/upload"
	"voice-chat-service/internal/service/voice"
	"voice-chat-service/internal/service/waveform"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
	Metrics     *metrics.Metrics

	Publisher *events.Publisher
	Chat      *chat.Service
	Uploads   *upload.Store
	Voice     *voice.Manager

	ready        atomic.Bool
	closeEngines func() error
	closeChat    func() error
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Config) *Application {
	a := &Application{
		Cfg:     cfg,
		Metrics: metrics.DefaultMetrics,
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	appLogger.Info().Msg("Voice chat service application created")
	return a
}

// setupLogger configures zerolog for the service.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:  a.Cfg.Observability.LogLevel,
		Format: a.Cfg.Observability.LogFormat,
	})

	a.Logger = logging.WithComponent("application").With().
		Str("service", "voice-chat-service").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("logFormat", a.Cfg.Observability.LogFormat).
		Msg("Logger setup completed")
}

// Start wires the services and marks the application ready. ctx is only
// used while connecting to external engines.
func (a *Application) Start(ctx context.Context) error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	cfg := a.Cfg

	policy, err := recording.ParseEndPolicy(cfg.Recording.EndPolicy)
	if err != nil {
		startLogger.Warn().Err(err).Msg("Falling back to continuous recording")
	}

	factory, closeEngines, err := provider.New(ctx, cfg.STT, policy == recording.EndDirect)
	if err != nil {
		return fmt.Errorf("speech recognition: %w", err)
	}
	a.closeEngines = closeEngines

	uploads, err := upload.New(cfg.Upload, a.Metrics)
	if err != nil {
		closeEngines()
		return err
	}
	a.Uploads = uploads

	a.Publisher = events.NewWithMetrics(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		TopicChat:    cfg.Kafka.TopicChat,
		Principal:    cfg.Kafka.Principal,
	}, a.Metrics)

	responder, closeChat, err := a.responder(ctx)
	if err != nil {
		closeEngines()
		a.Publisher.Close()
		return fmt.Errorf("chat responder: %w", err)
	}
	a.closeChat = closeChat

	a.Chat = chat.NewService(responder, a.Publisher, a.Metrics, cfg.Chat.Timeout,
		logging.WithComponent("chat"))

	a.Voice = voice.NewManager(voice.Options{
		Factory: factory,
		Policy:  policy,
		Waveform: waveform.Options{
			Width:         cfg.Waveform.Width,
			Baseline:      cfg.Waveform.Baseline,
			FrameInterval: cfg.Waveform.FrameInterval,
			RelaxDuration: cfg.Waveform.RelaxDuration,
		},
		Chat:      a.Chat,
		Publisher: a.Publisher,
		Segments:  segment.New(),
		Metrics:   a.Metrics,
	}, logging.WithComponent("voice"))

	a.StartupTime = time.Now().UTC()
	a.ready.Store(true)
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Str("sttProvider", factory.Provider()).
		Str("chatProvider", a.Chat.Provider()).
		Str("endPolicy", policy.String()).
		Bool("kafka", a.Publisher.Enabled()).
		Msg("Voice chat service starting")

	return nil
}

// responder builds the configured chat backend and its release function.
func (a *Application) responder(ctx context.Context) (chat.Responder, func() error, error) {
	noop := func() error { return nil }
	c := a.Cfg.Chat

	switch c.Provider {
	case "dialogflow":
		if c.DialogflowProjectID == "" {
			a.Logger.Warn().Msg("DIALOGFLOW_PROJECT_ID not set, using echo responder")
			return chat.EchoResponder{}, noop, nil
		}
		r, err := chat.NewDialogflowResponder(ctx, chat.DialogflowConfig{
			ProjectID:    c.DialogflowProjectID,
			LanguageCode: c.DialogflowLanguageCode,
		})
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	case "openai":
		if c.OpenAIAPIKey != "" {
			return chat.NewOpenAIResponder(c.OpenAIAPIKey, c.Model, c.SystemPrompt, c.MaxHistory), noop, nil
		}
		a.Logger.Warn().Msg("OPENAI_API_KEY not set, using echo responder")
	}
	return chat.EchoResponder{}, noop, nil
}

// Ready reports whether the application is serving traffic.
func (a *Application) Ready() bool {
	return a.ready.Load()
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	a.ready.Store(false)
	if a.Voice != nil {
		a.Voice.CloseAll()
	}
	if a.closeEngines != nil {
		if err := a.closeEngines(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Failed to close recognition engines")
		}
	}
	if a.closeChat != nil {
		if err := a.closeChat(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Failed to close chat responder")
		}
		a.closeChat = nil
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			shutdownLogger.Warn().Err(err).Msg("Failed to close publisher")
		}
	}

	shutdownLogger.Info().Msg("Voice chat service shutting down")
}
