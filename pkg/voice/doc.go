// Package voice coordinates one spoken or typed interaction from capture to
// playback.
//
// The Orchestrator owns the interaction state machine:
//
//	idle → listening → processing → speaking → idle
//
// with error reachable from listening, processing and speaking, and always
// returning to idle once reported. A final transcript from the stt
// Recognizer is sent to the reasoning Gateway, the answer is spoken through
// the tts Synthesizer, and every step is recorded by the transcript Logger.
//
// # Usage
//
//	o, err := voice.New(voice.Deps{
//	    Recognizer:  recognizer,
//	    Synthesizer: synth,
//	    Gateway:     gateway,
//	    Transcripts: logger,
//	    Events:      eventHub,
//	}, voice.WithLanguage(language.Hindi), voice.WithLocation("Pune"))
//	if err != nil {
//	    return err
//	}
//
//	o.SetCallbacks(voice.Callbacks{
//	    OnResponse: func(r voice.Response) { fmt.Println(r.Text) },
//	})
//
//	// Mic press: start listening, or stop if already busy.
//	err = o.StartVoiceInteraction()
//
//	// Typed query: skip capture and go straight to processing.
//	res, err := o.ProcessTextQuery(ctx, "गेहूं में कितना पानी दें?", "")
//
// Callbacks fire outside the orchestrator lock, in transition order. A
// callback may call back into the Orchestrator.
package voice
