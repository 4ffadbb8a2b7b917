// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the root configuration for the voice chat service.
type Config struct {
	Service       ServiceConfig
	STT           STTConfig
	Recording     RecordingConfig
	Waveform      WaveformConfig
	Chat          ChatConfig
	Upload        UploadConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
	GRPCPort  string
}

// STTConfig selects and configures the recognition engine.
type STTConfig struct {
	Provider         string // google, mock, none
	LanguageCode     string
	SampleRateHz     int
	InterimResults   bool
	AudioEncoding    string
	SpeechEndTimeout time.Duration
}

// RecordingConfig holds recording controller settings.
type RecordingConfig struct {
	// EndPolicy decides what happens when the engine ends input on its own:
	// "continuous" restarts it, "direct" treats it as an implicit stop.
	EndPolicy string
}

// WaveformConfig holds renderer geometry and timing.
type WaveformConfig struct {
	Width         float64
	Baseline      float64
	FrameInterval time.Duration
	RelaxDuration time.Duration
}

// ChatConfig selects the chat responder.
type ChatConfig struct {
	Provider     string // dialogflow, openai, echo
	OpenAIAPIKey string
	Model        string
	SystemPrompt string
	MaxHistory   int
	Timeout      time.Duration

	DialogflowProjectID    string
	DialogflowLanguageCode string
}

// UploadConfig holds attachment upload limits.
type UploadConfig struct {
	Dir               string
	MaxBytes          int64
	AllowedExtensions []string
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicPartial string
	TopicFinal   string
	TopicChat    string
	Principal    string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

const defaultSystemPrompt = "You are a friendly travel booking assistant. Answer briefly and helpfully."

// Load reads the configuration from the environment. Invalid values fall back
// to their defaults.
func Load() *Config {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-voice-chat")

	return &Config{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("PORT", "8080"),
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
		},
		STT: STTConfig{
			Provider:         envOrDefault("STT_PROVIDER", "mock"),
			LanguageCode:     envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:     envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			InterimResults:   envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:    envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			SpeechEndTimeout: envOrDefaultDuration("STT_SPEECH_END_TIMEOUT", 0),
		},
		Recording: RecordingConfig{
			EndPolicy: envOrDefault("RECORDING_END_POLICY", "continuous"),
		},
		Waveform: WaveformConfig{
			Width:         envOrDefaultFloat("WAVEFORM_WIDTH", 300),
			Baseline:      envOrDefaultFloat("WAVEFORM_BASELINE", 30),
			FrameInterval: envOrDefaultDuration("WAVEFORM_FRAME_INTERVAL", 16*time.Millisecond),
			RelaxDuration: envOrDefaultDuration("WAVEFORM_RELAX_DURATION", 500*time.Millisecond),
		},
		Chat: ChatConfig{
			Provider:     envOrDefault("CHAT_PROVIDER", "echo"),
			OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
			Model:        envOrDefault("CHAT_MODEL", "gpt-4o-mini"),
			SystemPrompt: envOrDefault("CHAT_SYSTEM_PROMPT", defaultSystemPrompt),
			MaxHistory:   envOrDefaultInt("CHAT_MAX_HISTORY", 20),
			Timeout:      envOrDefaultDuration("CHAT_TIMEOUT", 30*time.Second),

			DialogflowProjectID:    envOrDefault("DIALOGFLOW_PROJECT_ID", os.Getenv("GOOGLE_CLOUD_PROJECT")),
			DialogflowLanguageCode: envOrDefault("DIALOGFLOW_LANGUAGE_CODE", "en-US"),
		},
		Upload: UploadConfig{
			Dir:      envOrDefault("UPLOAD_DIR", "static/uploads"),
			MaxBytes: envOrDefaultInt64("UPLOAD_MAX_BYTES", 16*1024*1024),
			AllowedExtensions: envOrDefaultList("UPLOAD_ALLOWED_EXTENSIONS",
				[]string{"txt", "pdf", "png", "jpg", "jpeg", "gif", "doc", "docx", "xls", "xlsx"}),
		},
		Kafka: KafkaConfig{
			Enabled:      envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:      envOrDefaultList("KAFKA_BROKERS", nil),
			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "voice.transcript.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "voice.transcript.final"),
			TopicChat:    envOrDefault("KAFKA_TOPIC_CHAT", "voice.chat.exchange"),
			Principal:    envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma separated value, dropping empty entries.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
