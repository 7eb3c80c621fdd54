package voice

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/agrivoice/pkg/language"
	"github.com/teslashibe/agrivoice/pkg/reasoning"
	"github.com/teslashibe/agrivoice/pkg/stt"
	"github.com/teslashibe/agrivoice/pkg/tts"
)

// ErrorKind classifies failures reported to the user.
type ErrorKind string

const (
	KindCapabilityUnsupported ErrorKind = "capability-unsupported"
	KindPermissionDenied      ErrorKind = "permission-denied"
	KindNoSpeech              ErrorKind = "no-speech"
	KindAudioCapture          ErrorKind = "audio-capture"
	KindNetwork               ErrorKind = "network"
	KindProviderUnavailable   ErrorKind = "provider-unavailable"
	KindSynthesis             ErrorKind = "synthesis"
	KindStorage               ErrorKind = "storage"
	KindUnknown               ErrorKind = "unknown"
)

var (
	// ErrUnsupported is returned by StartVoiceInteraction when the host has
	// neither recognition nor synthesis.
	ErrUnsupported = &Error{Kind: KindCapabilityUnsupported}

	// ErrEmptyQuery is returned for blank text queries.
	ErrEmptyQuery = errors.New("voice: empty query")

	// ErrSuperseded is returned by ProcessTextQuery when the turn was
	// stopped or replaced before its answer arrived.
	ErrSuperseded = errors.New("voice: turn superseded")

	// ErrUnsupportedLanguage is returned by SetLanguage for unknown codes.
	ErrUnsupportedLanguage = errors.New("voice: unsupported language")

	// ErrMissingDependency is returned by New when a required service is nil.
	ErrMissingDependency = errors.New("voice: missing dependency")
)

// Error is a user-facing failure of one turn.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("voice %s: %v", e.Kind, e.Err)
	}
	return "voice " + string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a bare *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Err == nil
}

// KindOf classifies err.
func KindOf(err error) ErrorKind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind
	}
	var se *stt.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case stt.KindNoSpeech:
			return KindNoSpeech
		case stt.KindAudioCapture:
			return KindAudioCapture
		case stt.KindPermissionDenied:
			return KindPermissionDenied
		case stt.KindNetwork:
			return KindNetwork
		case stt.KindUnsupported:
			return KindCapabilityUnsupported
		}
		return KindUnknown
	}
	switch {
	case errors.Is(err, tts.ErrUnsupported):
		return KindCapabilityUnsupported
	case errors.Is(err, tts.ErrSynthesis):
		return KindSynthesis
	case errors.Is(err, reasoning.ErrProviderUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return KindProviderUnavailable
	}
	return KindUnknown
}

// messages holds the localized user-facing text. Languages without an entry
// get English.
var messages = map[string]map[ErrorKind]string{
	language.Hindi: {
		KindNoSpeech:              "कोई आवाज नहीं सुनाई दी। कृपया दोबारा कोशिश करें।",
		KindAudioCapture:          "माइक्रोफोन की समस्या। कृपया अनुमति दें।",
		KindPermissionDenied:      "माइक्रोफोन की अनुमति नहीं है। कृपया सेटिंग में अनुमति दें।",
		KindNetwork:               "इंटरनेट कनेक्शन की समस्या।",
		KindCapabilityUnsupported: "इस डिवाइस पर आवाज़ सुविधा उपलब्ध नहीं है।",
		KindUnknown:               "कुछ गलत हुआ। कृपया दोबारा कोशिश करें।",
	},
	language.English: {
		KindNoSpeech:              "No speech detected. Please try again.",
		KindAudioCapture:          "Microphone issue. Please allow access.",
		KindPermissionDenied:      "Microphone access denied. Please enable in settings.",
		KindNetwork:               "Network connection issue.",
		KindCapabilityUnsupported: "Voice features are not supported on this device.",
		KindUnknown:               "Something went wrong. Please try again.",
	},
}

// Message returns the localized text for kind in lang.
func Message(kind ErrorKind, lang string) string {
	table, ok := messages[lang]
	if !ok {
		table = messages[language.English]
	}
	if msg, ok := table[kind]; ok {
		return msg
	}
	return table[KindUnknown]
}
