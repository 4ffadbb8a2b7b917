// Package recording implements the recording state machine of a voice session.
package recording

import (
	"errors"
	"fmt"
	"strings"
)

// State represents the recording state of a voice session.
type State int

const (
	// StateIdle - nothing recorded, transcript empty.
	StateIdle State = iota
	// StateRecording - engine listening, renderer animating.
	StateRecording
	// StatePaused - engine stopped, transcript kept, resumable.
	StatePaused
	// StateStopped - transcript frozen, ready to send or reset.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StatePaused:
		return "PAUSED"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateRecording, StatePaused, StateStopped} {
		if strings.EqualFold(string(text), st.String()) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown recording state %q", text)
}

// EndPolicy decides what happens when the engine ends input on its own.
type EndPolicy int

const (
	// EndContinuous restarts the engine and keeps recording.
	EndContinuous EndPolicy = iota
	// EndDirect treats end of input as an implicit stop.
	EndDirect
)

func (p EndPolicy) String() string {
	if p == EndDirect {
		return "direct"
	}
	return "continuous"
}

// ParseEndPolicy parses "continuous" or "direct".
func ParseEndPolicy(s string) (EndPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "continuous", "":
		return EndContinuous, nil
	case "direct":
		return EndDirect, nil
	default:
		return EndContinuous, fmt.Errorf("unknown end policy %q", s)
	}
}

// EventKind identifies an engine event.
type EventKind int

const (
	EventInterim EventKind = iota
	EventFinal
	EventEndOfInput
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventInterim:
		return "interim"
	case EventFinal:
		return "final"
	case EventEndOfInput:
		return "end_of_input"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Event is a recognition engine event consumed by the controller.
type Event struct {
	Kind       EventKind
	Text       string
	Confidence float64
	Err        error
}

// Errors returned by controller commands.
var (
	ErrInvalidTransition = errors.New("invalid recording transition")
	ErrUnsupported       = errors.New("speech recognition not supported")
	ErrNothingToSend     = errors.New("no transcript to send")
)

// Status lines shown to the user.
const (
	StatusIdle      = "Click the microphone to start recording"
	StatusRecording = "Recording... speak now"
	StatusPaused    = "Recording paused"
	StatusResumed   = "Recording resumed... speak now"
	StatusComplete  = "Recording complete. You can send or reset."
	StatusNoSpeech  = "Recording stopped. Click microphone to try again."
	StatusDetected  = "Speech detected!"

	NoticeUnsupported = "Speech recognition is not supported by this service."
)

// Snapshot is the user-visible view of a controller.
type Snapshot struct {
	State      State  `json:"state"`
	Transcript string `json:"transcript"`
	Interim    string `json:"interim,omitempty"`
	Status     string `json:"status"`
	Notice     string `json:"notice,omitempty"`
	CanSend    bool   `json:"canSend"`
}
