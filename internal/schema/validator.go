// Package schema validates messages before they are handled or published.
package schema

import (
	"errors"
	"fmt"
	"strings"

	"voice-chat-service/internal/models"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid message")

// Validator checks the required fields of known message types.
type Validator struct{}

func New() *Validator {
	return &Validator{}
}

// Validate returns an error wrapping ErrInvalid when event is missing
// required fields. Unknown types pass.
func (v *Validator) Validate(event any) error {
	switch ev := event.(type) {
	case models.ChatRequest:
		return validateChatRequest(ev)
	case *models.ChatRequest:
		if ev == nil {
			return fmt.Errorf("%w: nil chat request", ErrInvalid)
		}
		return validateChatRequest(*ev)
	case models.TranscriptFinal:
		if ev.SessionID == "" || ev.SegmentID == "" {
			return fmt.Errorf("%w: transcript final without session or segment", ErrInvalid)
		}
		if strings.TrimSpace(ev.Text) == "" {
			return fmt.Errorf("%w: empty final transcript", ErrInvalid)
		}
	case models.TranscriptPartial:
		if ev.SessionID == "" {
			return fmt.Errorf("%w: transcript partial without session", ErrInvalid)
		}
	case models.ChatExchange:
		if ev.Source == "" {
			return fmt.Errorf("%w: chat exchange without source", ErrInvalid)
		}
	}
	return nil
}

func validateChatRequest(r models.ChatRequest) error {
	att := r.AttachmentInfo()
	if strings.TrimSpace(r.Message) == "" && att == nil {
		return fmt.Errorf("%w: message or attachment required", ErrInvalid)
	}
	if att != nil {
		if strings.TrimSpace(att.Name) == "" {
			return fmt.Errorf("%w: attachment name required", ErrInvalid)
		}
		if att.Size < 0 {
			return fmt.Errorf("%w: attachment size must not be negative", ErrInvalid)
		}
	}
	return nil
}
