// Package mock provides a scripted recognition engine for running without
// cloud credentials. Each stream plays one utterance: one partial per audio
// chunk, then exactly one final followed by end-of-utterance.
package mock

import (
	"context"
	"errors"
	"sync"
	"time"

	"voice-chat-service/internal/service/stt"
)

// SimulatedUtterance represents a mock utterance with progressive transcripts.
type SimulatedUtterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances are sample requests a chat widget user might speak.
var DefaultUtterances = []SimulatedUtterance{
	{
		Partials:   []string{"I want", "I want to", "I want to book"},
		Final:      "I want to book a flight to Lisbon",
		Confidence: 0.94,
	},
	{
		Partials:   []string{"Yes", "Yes please"},
		Final:      "Yes please go ahead",
		Confidence: 0.97,
	},
	{
		Partials:   []string{"Can you", "Can you find", "Can you find me"},
		Final:      "Can you find me a hotel near the beach",
		Confidence: 0.91,
	},
	{
		Partials:   []string{"What is", "What is the", "What is the cheapest"},
		Final:      "What is the cheapest option for next weekend",
		Confidence: 0.89,
	},
	{
		Partials:   []string{"Thank you"},
		Final:      "Thank you very much",
		Confidence: 0.98,
	},
}

const (
	defaultPartialDelay = 50 * time.Millisecond
	defaultFinalDelay   = 100 * time.Millisecond
)

// Adapter implements stt.Adapter with scripted responses.
type Adapter struct {
	mu            sync.Mutex
	cb            stt.Callback
	utterances    []SimulatedUtterance
	next          int
	utterance     SimulatedUtterance
	partialIndex  int
	finalSent     bool
	active        bool
	generation    uint64
	audioReceived int
	partialDelay  time.Duration
	finalDelay    time.Duration
}

// utteranceCounter spreads new adapters across the default utterances.
var (
	utteranceCounter int
	counterMu        sync.Mutex
)

// New creates a mock adapter cycling through DefaultUtterances.
func New() *Adapter {
	counterMu.Lock()
	idx := utteranceCounter % len(DefaultUtterances)
	utteranceCounter++
	counterMu.Unlock()

	a := NewWithUtterances(DefaultUtterances, defaultPartialDelay, defaultFinalDelay)
	a.next = idx
	return a
}

// NewWithUtterances creates a mock adapter with its own script and delays.
func NewWithUtterances(utterances []SimulatedUtterance, partialDelay, finalDelay time.Duration) *Adapter {
	return &Adapter{
		utterances:   utterances,
		partialDelay: partialDelay,
		finalDelay:   finalDelay,
	}
}

// Start opens a stream playing the next scripted utterance.
func (a *Adapter) Start(ctx context.Context, cb stt.Callback) error {
	if cb == nil {
		return errors.New("mock stt: nil callback")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.utterances) == 0 {
		return errors.New("mock stt: no utterances")
	}

	a.generation++
	a.cb = cb
	a.active = true
	a.utterance = a.utterances[a.next%len(a.utterances)]
	a.next++
	a.partialIndex = 0
	a.finalSent = false
	return nil
}

// SendAudio emits the next partial, or the final once the partials run out.
func (a *Adapter) SendAudio(ctx context.Context, audio []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return stt.ErrNotStarted
	}
	a.audioReceived++

	gen := a.generation
	if a.partialIndex < len(a.utterance.Partials) {
		text := a.utterance.Partials[a.partialIndex]
		a.partialIndex++
		go a.deliver(gen, a.partialDelay, func(cb stt.Callback) {
			cb.OnPartial(text)
		})
	} else if !a.finalSent {
		// Partials exhausted, behave as if silence was detected.
		a.finalSent = true
		utt := a.utterance
		go a.deliver(gen, a.finalDelay, func(cb stt.Callback) {
			cb.OnFinal(utt.Final, utt.Confidence)
		}, func(cb stt.Callback) {
			cb.OnEndOfUtterance()
		})
	}
	return nil
}

// deliver runs each step after delay unless the stream has since been closed.
func (a *Adapter) deliver(gen uint64, delay time.Duration, steps ...func(stt.Callback)) {
	time.Sleep(delay)
	for _, step := range steps {
		a.mu.Lock()
		current := a.active && a.generation == gen
		cb := a.cb
		a.mu.Unlock()
		if !current {
			return
		}
		step(cb)
	}
}

// Close ends the current stream. Pending results are discarded.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.active {
		return nil
	}
	a.active = false
	a.generation++
	return nil
}

// AudioReceived returns the number of audio chunks received.
func (a *Adapter) AudioReceived() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.audioReceived
}

// Factory creates mock adapters.
type Factory struct{}

func (Factory) Provider() string { return "mock" }

func (Factory) NewAdapter() (stt.Adapter, error) {
	return New(), nil
}
