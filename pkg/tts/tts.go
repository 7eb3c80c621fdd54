// Package tts speaks responses through a pluggable synthesis engine.
//
// A Synthesizer picks a voice for the target language, hands the utterance
// to an Engine and reports lifecycle events to observers. Only one
// utterance plays at a time: a new Speak stops the previous one.
//
// Example usage:
//
//	synth := tts.New(tts.NewRelay(bridge, logger),
//	    tts.WithPreferences(prefs),
//	    tts.WithObservers(tts.Observers{OnEnd: func(p *tts.Playback) { ... }}),
//	)
//	pb, _ := synth.Speak(ctx, "गेहूं की बुआई नवंबर में करें", "hi", tts.DefaultOptions())
//	err := pb.Wait(ctx)
package tts

import (
	"context"
)

// Engine is a speech-synthesis backend.
type Engine interface {
	// Name identifies the engine in logs and playback records.
	Name() string

	// IsSupported reports whether the engine can speak right now.
	IsSupported() bool

	// Voices lists the voices the engine offers.
	Voices(ctx context.Context) ([]Voice, error)

	// Speak plays u and blocks until playback ends. started is called once
	// audio begins. Speak returns ErrInterrupted when Stop cuts it short.
	Speak(ctx context.Context, u Utterance, started func()) error

	// Stop, Pause and Resume act on the utterance being played.
	Stop() error
	Pause() error
	Resume() error
}

// Options control how an utterance sounds. Rate and Pitch are relative to
// 1.0; Volume is 0..1.
type Options struct {
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`

	// Voice forces a voice ID, bypassing selection.
	Voice string `json:"voice,omitempty"`
}

// DefaultOptions returns the playback defaults: a slightly slow rate for
// clarity, normal pitch, full volume.
func DefaultOptions() Options {
	return Options{Rate: 0.9, Pitch: 1, Volume: 1}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Rate <= 0 {
		o.Rate = d.Rate
	}
	if o.Pitch <= 0 {
		o.Pitch = d.Pitch
	}
	if o.Volume <= 0 || o.Volume > 1 {
		o.Volume = d.Volume
	}
	return o
}

// Utterance is one request handed to an Engine.
type Utterance struct {
	ID       string
	Text     string
	Language string
	Locale   string
	Voice    Voice
	Options  Options
}
