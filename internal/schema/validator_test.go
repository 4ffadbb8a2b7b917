package schema

import (
	"errors"
	"testing"

	"voice-chat-service/internal/models"
)

func TestValidate_ChatRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     models.ChatRequest
		wantErr bool
	}{
		{"message only", models.ChatRequest{Message: "book a flight"}, false},
		{"attachment only", models.ChatRequest{Attachment: &models.Attachment{Name: "a.pdf", Size: 10}}, false},
		{"legacy file key", models.ChatRequest{File: &models.Attachment{Name: "a.pdf"}}, false},
		{"empty", models.ChatRequest{}, true},
		{"blank message", models.ChatRequest{Message: "   "}, true},
		{"unnamed attachment", models.ChatRequest{Message: "hi", Attachment: &models.Attachment{Size: 1}}, true},
		{"negative size", models.ChatRequest{Attachment: &models.Attachment{Name: "a", Size: -1}}, true},
	}

	v := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("expected error to wrap ErrInvalid, got %v", err)
			}
		})
	}
}

func TestValidate_ChatRequestPointer(t *testing.T) {
	v := New()

	var nilReq *models.ChatRequest
	if err := v.Validate(nilReq); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for nil request, got %v", err)
	}
	if err := v.Validate(&models.ChatRequest{Message: "hi"}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestValidate_TranscriptFinal(t *testing.T) {
	v := New()

	ok := models.TranscriptFinal{SessionID: "s", SegmentID: "s-seg-1", Text: "hello"}
	if err := v.Validate(ok); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	missing := models.TranscriptFinal{SessionID: "s", Text: "hello"}
	if err := v.Validate(missing); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for missing segment, got %v", err)
	}

	empty := models.TranscriptFinal{SessionID: "s", SegmentID: "s-seg-1", Text: " "}
	if err := v.Validate(empty); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid for empty text, got %v", err)
	}
}

func TestValidate_UnknownTypePasses(t *testing.T) {
	if err := New().Validate(map[string]string{"k": "v"}); err != nil {
		t.Errorf("expected unknown types to pass, got %v", err)
	}
}
