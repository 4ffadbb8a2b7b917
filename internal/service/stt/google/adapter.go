// Package google provides a Google Cloud Speech-to-Text adapter.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"

	"voice-chat-service/internal/service/stt"
)

// Config holds recognition settings sent with every stream.
type Config struct {
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
	// SingleUtterance ends the stream after the first utterance.
	SingleUtterance bool
	// SpeechEndTimeout enables voice activity events when non-zero.
	SpeechEndTimeout time.Duration
}

// DefaultConfig returns settings for telephony-grade LINEAR16 audio.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   8000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
	}
}

// parseAudioEncoding maps an encoding name to its enum value. Unknown names
// fall back to LINEAR16.
func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	if v, ok := speechpb.RecognitionConfig_AudioEncoding_value[s]; ok && v != 0 {
		return speechpb.RecognitionConfig_AudioEncoding(v)
	}
	return speechpb.RecognitionConfig_LINEAR16
}

func (c Config) streamingConfig() *speechpb.StreamingRecognitionConfig {
	sc := &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(c.AudioEncoding),
			SampleRateHertz:            int32(c.SampleRateHz),
			LanguageCode:               c.LanguageCode,
			EnableAutomaticPunctuation: true,
		},
		InterimResults:  c.InterimResults,
		SingleUtterance: c.SingleUtterance,
	}
	if c.SpeechEndTimeout > 0 {
		sc.EnableVoiceActivityEvents = true
		sc.VoiceActivityTimeout = &speechpb.StreamingRecognitionConfig_VoiceActivityTimeout{
			SpeechEndTimeout: durationpb.New(c.SpeechEndTimeout),
		}
	}
	return sc
}

// Adapter implements stt.Adapter using Google Cloud Speech-to-Text.
type Adapter struct {
	client *speech.Client
	cfg    Config

	mu         sync.Mutex
	stream     speechpb.Speech_StreamingRecognizeClient
	cancel     context.CancelFunc
	cb         stt.Callback
	generation uint64
}

// New creates an adapter sharing client with other sessions.
func New(client *speech.Client, cfg Config) *Adapter {
	return &Adapter{client: client, cfg: cfg}
}

// Start opens a streaming recognition session, sends the config and starts
// receiving results. A stream already open is closed first.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.closeLocked()

	sctx, cancel := context.WithCancel(ctx)
	stream, err := a.client.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		return fmt.Errorf("google stt: open stream: %w", err)
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: a.cfg.streamingConfig(),
		},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("google stt: send config: %w", err)
	}

	a.generation++
	a.stream = stream
	a.cancel = cancel
	a.cb = cb

	go a.listen(a.generation, stream, cb)
	return nil
}

// SendAudio sends audio bytes on the open stream.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stream == nil {
		return stt.ErrNotStarted
	}
	return a.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Close ends the current stream.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closeLocked()
}

func (a *Adapter) closeLocked() error {
	if a.stream == nil {
		return nil
	}
	a.generation++
	err := a.stream.CloseSend()
	a.cancel()
	a.stream = nil
	a.cancel = nil
	return err
}

func (a *Adapter) halfClose(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.generation == gen && a.stream != nil {
		a.stream.CloseSend()
	}
}

func (a *Adapter) current(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.generation == gen && a.stream != nil
}

// listen receives responses until the stream ends and relays them to cb.
func (a *Adapter) listen(gen uint64, stream speechpb.Speech_StreamingRecognizeClient, cb stt.Callback) {
	for {
		resp, err := stream.Recv()
		if !a.current(gen) {
			return
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				cb.OnEndOfUtterance()
				return
			}
			code := status.Code(err)
			if code == codes.Canceled {
				return
			}
			log.Warn().Err(err).Str("code", code.String()).Msg("Google STT stream failed")
			cb.OnError(fmt.Errorf("google stt: %s: %w", code, err))
			return
		}

		for _, r := range resp.Results {
			if len(r.Alternatives) == 0 {
				continue
			}
			alt := r.Alternatives[0]
			if r.IsFinal {
				cb.OnFinal(alt.Transcript, float64(alt.Confidence))
			} else {
				cb.OnPartial(alt.Transcript)
			}
		}

		// The server keeps sending results after this event and then ends
		// the stream, which is reported as end-of-utterance above.
		if resp.SpeechEventType == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			a.halfClose(gen)
		}
	}
}

// Factory creates adapters sharing one Speech client.
type Factory struct {
	client *speech.Client
	cfg    Config
}

// NewFactory dials the Speech API. Credentials come from
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFactory(ctx context.Context, cfg Config) (*Factory, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("google stt: create client: %w", err)
	}
	return &Factory{client: c, cfg: cfg}, nil
}

func (f *Factory) Provider() string { return "google" }

func (f *Factory) NewAdapter() (stt.Adapter, error) {
	return New(f.client, f.cfg), nil
}

// Close closes the shared client.
func (f *Factory) Close() error {
	return f.client.Close()
}
