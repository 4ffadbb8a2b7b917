package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"cloud.google.com/go/dialogflow/apiv2/dialogflowpb"

	"voice-chat-service/internal/models"
)

type fakeDetector struct {
	requests []*dialogflowpb.DetectIntentRequest
	resp     *dialogflowpb.DetectIntentResponse
	err      error
}

func (f *fakeDetector) detect(ctx context.Context, req *dialogflowpb.DetectIntentRequest) (*dialogflowpb.DetectIntentResponse, error) {
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func TestDialogflowResponder_Reply(t *testing.T) {
	fake := &fakeDetector{resp: &dialogflowpb.DetectIntentResponse{
		QueryResult: &dialogflowpb.QueryResult{FulfillmentText: " Where would you like to fly? "},
	}}
	r := newDialogflowResponder(DialogflowConfig{ProjectID: "travel-agent"}, fake.detect)

	reply, err := r.Reply(context.Background(), "session-1", "book a flight")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply != "Where would you like to fly?" {
		t.Errorf("expected trimmed fulfillment, got %q", reply)
	}

	if len(fake.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(fake.requests))
	}
	req := fake.requests[0]
	if req.GetSession() != "projects/travel-agent/agent/sessions/session-1" {
		t.Errorf("unexpected session path %q", req.GetSession())
	}
	text := req.GetQueryInput().GetText()
	if text.GetText() != "book a flight" || text.GetLanguageCode() != "en-US" {
		t.Errorf("unexpected text input %+v", text)
	}
}

func TestDialogflowResponder_SessionPerConversation(t *testing.T) {
	fake := &fakeDetector{resp: &dialogflowpb.DetectIntentResponse{
		QueryResult: &dialogflowpb.QueryResult{FulfillmentText: "ok"},
	}}
	r := newDialogflowResponder(DialogflowConfig{ProjectID: "p", LanguageCode: "de-DE"}, fake.detect)

	r.Reply(context.Background(), "a", "hallo")
	r.Reply(context.Background(), "b", "hallo")

	if fake.requests[0].GetSession() == fake.requests[1].GetSession() {
		t.Error("expected distinct sessions per conversation")
	}
	if got := fake.requests[1].GetQueryInput().GetText().GetLanguageCode(); got != "de-DE" {
		t.Errorf("expected language de-DE, got %s", got)
	}
}

func TestDialogflowResponder_FulfillmentMessages(t *testing.T) {
	fake := &fakeDetector{resp: &dialogflowpb.DetectIntentResponse{
		QueryResult: &dialogflowpb.QueryResult{
			FulfillmentMessages: []*dialogflowpb.Intent_Message{{
				Message: &dialogflowpb.Intent_Message_Text_{
					Text: &dialogflowpb.Intent_Message_Text{Text: []string{"", "Which city?"}},
				},
			}},
		},
	}}
	r := newDialogflowResponder(DialogflowConfig{ProjectID: "p"}, fake.detect)

	reply, err := r.Reply(context.Background(), "s", "book")
	if err != nil || reply != "Which city?" {
		t.Errorf("expected 'Which city?', got %q (err %v)", reply, err)
	}
}

func TestDialogflowResponder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		fake    *fakeDetector
		wantErr string
	}{
		{"detect fails", &fakeDetector{err: errors.New("permission denied")}, "permission denied"},
		{"empty fulfillment", &fakeDetector{resp: &dialogflowpb.DetectIntentResponse{
			QueryResult: &dialogflowpb.QueryResult{Intent: &dialogflowpb.Intent{DisplayName: "Default Fallback"}},
		}}, "Default Fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newDialogflowResponder(DialogflowConfig{ProjectID: "p"}, tt.fake.detect)
			_, err := r.Reply(context.Background(), "s", "hi")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDialogflowResponder_FailureMapsToGenericMessage(t *testing.T) {
	fake := &fakeDetector{err: errors.New("unavailable")}
	s, _, _ := newTestService(newDialogflowResponder(DialogflowConfig{ProjectID: "p"}, fake.detect))

	resp, err := s.Handle(context.Background(), models.ChatRequest{Message: "hi", SessionID: "s1"}, SourceText)
	if !errors.Is(err, ErrResponder) || resp.Error != FailureMessage {
		t.Errorf("expected generic failure, got %+v (err %v)", resp, err)
	}
	if got := fake.requests[0].GetSession(); got != "projects/p/agent/sessions/s1" {
		t.Errorf("expected session from request, got %q", got)
	}
}

func TestNewDialogflowResponder_RequiresProject(t *testing.T) {
	if _, err := NewDialogflowResponder(context.Background(), DialogflowConfig{}); err == nil {
		t.Error("expected error without project ID")
	}
}
