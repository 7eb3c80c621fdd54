// Package stt turns user speech into text. Recognizers run continuous
// capture with interim results and report final utterances through
// callbacks.
//
// Three engines are provided:
//   - Relay: the browser's own speech recognition, driven over the bridge
//   - Google: Cloud Speech-to-Text over audio from an audioio.Source
//   - Mock: scripted events for tests
package stt

import (
	"context"
	"strings"

	"github.com/teslashibe/agrivoice/pkg/language"
)

// MaxAlternatives caps the hypotheses carried on an Event.
const MaxAlternatives = 3

// Alternative is one recognition hypothesis.
type Alternative struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Event is one recognition result.
type Event struct {
	Final            string        `json:"finalTranscript"`
	Interim          string        `json:"interimTranscript"`
	Confidence       float64       `json:"confidence"`
	Alternatives     []Alternative `json:"alternatives"`
	IsFinal          bool          `json:"isFinal"`
	DetectedLanguage string        `json:"detectedLanguage"`
}

// Transcript returns the final text, or the interim text when the event is
// not final.
func (e Event) Transcript() string {
	if e.Final != "" {
		return e.Final
	}
	return e.Interim
}

// NewEvent builds an Event, capping alternatives and detecting the script.
// Text in a non-Latin script overrides requested; otherwise requested is
// kept.
func NewEvent(final, interim string, confidence float64, alts []Alternative, requested string) Event {
	if len(alts) > MaxAlternatives {
		alts = alts[:MaxAlternatives]
	}
	if confidence < 0 {
		confidence = 0
	}
	final = strings.TrimSpace(final)

	ev := Event{
		Final:            final,
		Interim:          strings.TrimSpace(interim),
		Confidence:       confidence,
		Alternatives:     alts,
		IsFinal:          final != "",
		DetectedLanguage: requested,
	}
	if d := language.Detect(ev.Transcript()); d != language.English {
		ev.DetectedLanguage = d
	}
	if ev.DetectedLanguage == "" {
		ev.DetectedLanguage = language.Default
	}
	return ev
}

// Callbacks receive recognizer events. Any field may be nil.
type Callbacks struct {
	OnResult func(Event)
	OnError  func(error)
	OnStart  func()
	OnEnd    func()
}

func (c Callbacks) result(e Event) {
	if c.OnResult != nil {
		c.OnResult(e)
	}
}

func (c Callbacks) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}

func (c Callbacks) start() {
	if c.OnStart != nil {
		c.OnStart()
	}
}

func (c Callbacks) end() {
	if c.OnEnd != nil {
		c.OnEnd()
	}
}

// Recognizer is a speech-to-text engine.
type Recognizer interface {
	// Name returns the engine name.
	Name() string

	// IsSupported reports whether the engine can capture right now.
	IsSupported() bool

	// IsListening reports whether a capture is in progress.
	IsListening() bool

	// Start begins continuous capture in lang. A capture already in
	// progress is stopped first. Start returns an *Error with
	// KindUnsupported when the engine cannot capture.
	Start(ctx context.Context, lang string, cb Callbacks) error

	// Stop ends the capture. No callbacks fire after Stop returns.
	// It is idempotent.
	Stop() error
}
