// Package stt defines the interface for speech recognition engines.
package stt

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported means no recognition capability is available.
	ErrUnsupported = errors.New("speech recognition not supported")
	// ErrNotStarted is returned when audio is sent without an open stream.
	ErrNotStarted = errors.New("recognition stream not started")
)

// Callback receives recognition results. Implementations are called from
// the engine's own goroutines, never from inside Start, SendAudio or Close.
type Callback interface {
	// OnPartial is called when an interim transcript is received.
	OnPartial(text string)

	// OnFinal is called when a final transcript is received.
	OnFinal(text string, confidence float64)

	// OnEndOfUtterance is called when the engine ends input on its own.
	OnEndOfUtterance()

	// OnError is called when the stream fails.
	OnError(err error)
}

// Adapter is a restartable recognition stream. Close ends the current stream
// and Start may be called again afterwards. Adapters stop delivering callbacks
// for a stream once it is closed, but a callback already in flight may still
// arrive; consumers tie callbacks to the Start call that registered them.
type Adapter interface {
	// Start opens a recognition stream.
	Start(ctx context.Context, cb Callback) error

	// SendAudio sends audio bytes on the current stream.
	SendAudio(ctx context.Context, audio []byte) error

	// Close ends the current stream.
	Close() error
}

// Factory creates one Adapter per voice session.
type Factory interface {
	Provider() string
	NewAdapter() (Adapter, error)
}
