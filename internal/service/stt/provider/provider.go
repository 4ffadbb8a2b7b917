// Package provider selects the recognition engine from configuration.
package provider

import (
	"context"
	"fmt"
	"strings"

	"voice-chat-service/internal/config"
	"voice-chat-service/internal/service/stt"
	"voice-chat-service/internal/service/stt/google"
	"voice-chat-service/internal/service/stt/mock"
)

// Unsupported is the factory used when no recognition engine is available.
type Unsupported struct{}

func (Unsupported) Provider() string { return "none" }

func (Unsupported) NewAdapter() (stt.Adapter, error) {
	return nil, stt.ErrUnsupported
}

// New builds the factory named by cfg.Provider. singleUtterance asks engines
// that support it to end the stream after one utterance. The returned close
// function releases shared engine resources.
func New(ctx context.Context, cfg config.STTConfig, singleUtterance bool) (stt.Factory, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(cfg.Provider) {
	case "google":
		f, err := google.NewFactory(ctx, google.Config{
			LanguageCode:     cfg.LanguageCode,
			SampleRateHz:     cfg.SampleRateHz,
			InterimResults:   cfg.InterimResults,
			AudioEncoding:    cfg.AudioEncoding,
			SingleUtterance:  singleUtterance,
			SpeechEndTimeout: cfg.SpeechEndTimeout,
		})
		if err != nil {
			return nil, noop, err
		}
		return f, f.Close, nil
	case "mock", "":
		return mock.Factory{}, noop, nil
	case "none":
		return Unsupported{}, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown STT provider %q", cfg.Provider)
	}
}
