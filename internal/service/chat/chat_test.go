package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"voice-chat-service/internal/models"
	"voice-chat-service/internal/observability/metrics"
	"voice-chat-service/internal/schema"
)

type failingResponder struct{}

func (failingResponder) Name() string { return "failing" }

func (failingResponder) Reply(ctx context.Context, conversation, message string) (string, error) {
	return "", errors.New("upstream unavailable")
}

type capturePublisher struct {
	mu     sync.Mutex
	events []models.ChatExchange
}

func (p *capturePublisher) PublishChat(ctx context.Context, key string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(models.ChatExchange))
	return nil
}

func newTestService(r Responder) (*Service, *capturePublisher, *metrics.Metrics) {
	pub := &capturePublisher{}
	m := metrics.NewMetricsWith(prometheus.NewRegistry())
	return NewService(r, pub, m, 0, zerolog.Nop()), pub, m
}

func TestService_Handle_Echo(t *testing.T) {
	s, pub, m := newTestService(EchoResponder{})

	resp, err := s.Handle(context.Background(), models.ChatRequest{Message: "book a flight", SessionID: "s1"}, SourceVoice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Response != "You said: book a flight" {
		t.Errorf("expected echo reply, got %q", resp.Response)
	}
	if resp.Error != "" {
		t.Errorf("expected no error field, got %q", resp.Error)
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published exchange, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Source != SourceVoice || ev.SessionID != "s1" || ev.Response != resp.Response {
		t.Errorf("unexpected exchange %+v", ev)
	}
	if got := testutil.ToFloat64(m.ChatRequests.WithLabelValues(SourceVoice, "ok")); got != 1 {
		t.Errorf("expected 1 ok chat, got %v", got)
	}
}

func TestService_Handle_Invalid(t *testing.T) {
	s, pub, m := newTestService(EchoResponder{})

	resp, err := s.Handle(context.Background(), models.ChatRequest{}, SourceText)
	if !errors.Is(err, schema.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if resp.Error == "" || resp.Response != "" {
		t.Errorf("expected error response, got %+v", resp)
	}
	if len(pub.events) != 0 {
		t.Errorf("expected nothing published, got %d", len(pub.events))
	}
	if got := testutil.ToFloat64(m.ChatRequests.WithLabelValues(SourceText, "invalid")); got != 1 {
		t.Errorf("expected 1 invalid chat, got %v", got)
	}
}

func TestService_Handle_ResponderFailure(t *testing.T) {
	s, pub, _ := newTestService(failingResponder{})

	resp, err := s.Handle(context.Background(), models.ChatRequest{Message: "hi"}, SourceText)
	if !errors.Is(err, ErrResponder) {
		t.Fatalf("expected ErrResponder, got %v", err)
	}
	if resp.Error != FailureMessage {
		t.Errorf("expected generic failure message, got %q", resp.Error)
	}
	if len(pub.events) != 1 || pub.events[0].Error == "" {
		t.Errorf("expected failed exchange published, got %+v", pub.events)
	}
}

func TestPrompt(t *testing.T) {
	tests := []struct {
		name string
		req  models.ChatRequest
		want string
	}{
		{"message", models.ChatRequest{Message: "hi"}, "hi"},
		{"attachment only", models.ChatRequest{Attachment: &models.Attachment{Name: "t.pdf", Type: "application/pdf", Size: 42}},
			"[Attachment: t.pdf (application/pdf, 42 bytes)]"},
		{"both via legacy key", models.ChatRequest{Message: "see file", File: &models.Attachment{Name: "a.txt", Type: "text/plain", Size: 1}},
			"see file\n[Attachment: a.txt (text/plain, 1 bytes)]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Prompt(tt.req); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

type messageCounts struct {
	mu     sync.Mutex
	counts []int
}

func (m *messageCounts) get() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int{}, m.counts...)
}

// fakeOpenAI serves chat completions and records the message counts it saw.
func fakeOpenAI(t *testing.T, status int) (*httptest.Server, *messageCounts) {
	seen := &messageCounts{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openai.ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		seen.mu.Lock()
		seen.counts = append(seen.counts, len(req.Messages))
		seen.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}
		json.NewEncoder(w).Encode(openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: " Sure. "},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newTestOpenAI(url string, maxHistory int) *OpenAIResponder {
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = url + "/v1"
	return NewOpenAIResponderWithConfig(cfg, "gpt-4o-mini", "be brief", maxHistory)
}

func TestOpenAIResponder_Reply(t *testing.T) {
	srv, seen := fakeOpenAI(t, http.StatusOK)
	r := newTestOpenAI(srv.URL, 20)

	answer, err := r.Reply(context.Background(), "s1", "book a flight")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "Sure." {
		t.Errorf("expected 'Sure.', got %q", answer)
	}
	if _, err := r.Reply(context.Background(), "s1", "to Lisbon"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// system + user, then system + user + assistant + user
	if counts := seen.get(); len(counts) != 2 || counts[0] != 2 || counts[1] != 4 {
		t.Errorf("expected message counts [2 4], got %v", counts)
	}
	if got := r.historyLen("s1"); got != 4 {
		t.Errorf("expected 4 history messages, got %d", got)
	}
}

func TestOpenAIResponder_HistoryBounded(t *testing.T) {
	srv, _ := fakeOpenAI(t, http.StatusOK)
	r := newTestOpenAI(srv.URL, 3)

	for i := 0; i < 5; i++ {
		if _, err := r.Reply(context.Background(), "s1", "again"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := r.historyLen("s1"); got != 3 {
		t.Errorf("expected history capped at 3, got %d", got)
	}

	r.Forget("s1")
	if got := r.historyLen("s1"); got != 0 {
		t.Errorf("expected history dropped, got %d", got)
	}
}

func TestOpenAIResponder_ErrorKeepsHistory(t *testing.T) {
	srv, _ := fakeOpenAI(t, http.StatusInternalServerError)
	r := newTestOpenAI(srv.URL, 20)

	if _, err := r.Reply(context.Background(), "s1", "hi"); err == nil {
		t.Fatal("expected error")
	}
	if got := r.historyLen("s1"); got != 0 {
		t.Errorf("expected failed exchange not recorded, got %d", got)
	}
}
