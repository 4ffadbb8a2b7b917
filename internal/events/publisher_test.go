package events

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"voice-chat-service/internal/models"
	"voice-chat-service/internal/observability/metrics"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.Enabled() {
				t.Error("expected publisher to be disabled")
			}
			if p.writerPartial != nil || p.writerFinal != nil || p.writerChat != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_ConfigValues(t *testing.T) {
	p := New(&Config{
		Enabled:      false,
		Brokers:      []string{"localhost:9092"},
		TopicPartial: "test.partial",
		TopicFinal:   "test.final",
		TopicChat:    "test.chat",
		Principal:    "test-principal",
	})

	if p.principal != "test-principal" {
		t.Errorf("expected principal 'test-principal', got %s", p.principal)
	}
	if p.topicPartial != "test.partial" {
		t.Errorf("expected topic partial 'test.partial', got %s", p.topicPartial)
	}
	if p.topicFinal != "test.final" {
		t.Errorf("expected topic final 'test.final', got %s", p.topicFinal)
	}
	if p.topicChat != "test.chat" {
		t.Errorf("expected topic chat 'test.chat', got %s", p.topicChat)
	}
}

func TestNew_EnabledCreatesWriters(t *testing.T) {
	p := NewWithMetrics(&Config{
		Enabled:      true,
		Brokers:      []string{"localhost:9092"},
		TopicPartial: "p",
		TopicFinal:   "f",
		TopicChat:    "c",
	}, metrics.NewMetricsWith(prometheus.NewRegistry()))
	defer p.Close()

	if !p.Enabled() {
		t.Fatal("expected publisher to be enabled")
	}
	if p.writerChat == nil || p.writerChat.Topic != "c" {
		t.Errorf("expected chat writer on topic c, got %+v", p.writerChat)
	}
}

func TestPublisher_Disabled_RecordsMetrics(t *testing.T) {
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	p := NewWithMetrics(&Config{
		TopicPartial: "test.partial",
		TopicFinal:   "test.final",
		TopicChat:    "test.chat",
		Principal:    "test-svc",
	}, m)
	ctx := context.Background()

	partial := models.TranscriptPartial{EventType: models.EventTranscriptPartial, SessionID: "s1", Text: "hel"}
	final := models.TranscriptFinal{EventType: models.EventTranscriptFinal, SessionID: "s1", SegmentID: "s1-seg-1", Text: "hello"}
	chat := models.ChatExchange{EventType: models.EventChatExchange, Source: "text", Message: "hi"}

	if err := p.PublishPartial(ctx, "s1", partial); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := p.PublishFinal(ctx, "s1", final); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := p.PublishChat(ctx, "s1", chat); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	for topic, eventType := range map[string]string{
		"test.partial": "partial",
		"test.final":   "final",
		"test.chat":    "chat",
	} {
		if got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues(topic, eventType)); got != 1 {
			t.Errorf("expected 1 publish on %s, got %v", topic, got)
		}
	}
}

func TestPublisher_InvalidJSON(t *testing.T) {
	p := New(&Config{Enabled: false})
	ctx := context.Background()

	// channels cannot be marshalled
	event := make(chan int)

	if err := p.PublishPartial(ctx, "k", event); err == nil {
		t.Error("expected error for unmarshalable partial event")
	}
	if err := p.PublishFinal(ctx, "k", event); err == nil {
		t.Error("expected error for unmarshalable final event")
	}
	if err := p.PublishChat(ctx, "k", event); err == nil {
		t.Error("expected error for unmarshalable chat event")
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	p := New(&Config{Enabled: false})

	if err := p.Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
}
