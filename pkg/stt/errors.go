package stt

import (
	"errors"
	"fmt"
)

// Kind classifies recognition failures. The values double as keys into
// the localized message table.
type Kind string

const (
	KindNoSpeech         Kind = "no-speech"
	KindAudioCapture     Kind = "audio-capture"
	KindPermissionDenied Kind = "not-allowed"
	KindNetwork          Kind = "network"
	KindUnsupported      Kind = "unsupported"
	KindUnknown          Kind = "unknown"
)

// Error is a typed recognition failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("stt %s: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("stt %s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("stt %s: %v", e.Kind, e.Err)
	}
	return "stt " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same Kind, so sentinels work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is.
var (
	ErrNoSpeech         = &Error{Kind: KindNoSpeech}
	ErrAudioCapture     = &Error{Kind: KindAudioCapture}
	ErrPermissionDenied = &Error{Kind: KindPermissionDenied}
	ErrNetwork          = &Error{Kind: KindNetwork}
	ErrUnsupported      = &Error{Kind: KindUnsupported}
)

// NewError creates an *Error.
func NewError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// KindFromCode maps a browser SpeechRecognition error code to a Kind.
func KindFromCode(code string) Kind {
	switch code {
	case "no-speech":
		return KindNoSpeech
	case "audio-capture":
		return KindAudioCapture
	case "not-allowed", "service-not-allowed":
		return KindPermissionDenied
	case "network":
		return KindNetwork
	}
	return KindUnknown
}
