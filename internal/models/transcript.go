// Package models defines the data structures exchanged by the service.
package models

// Event types carried in the eventType field.
const (
	EventTranscriptPartial = "voice.transcript.partial"
	EventTranscriptFinal   = "voice.transcript.final"
	EventChatExchange      = "voice.chat.exchange"
)

// TranscriptPartial represents an interim recognition result.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// TranscriptFinal represents a final recognition result appended to a
// session transcript.
type TranscriptFinal struct {
	EventType  string  `json:"eventType"`
	SessionID  string  `json:"sessionId"`
	SegmentID  string  `json:"segmentId"`
	Timestamp  int64   `json:"timestamp"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}
